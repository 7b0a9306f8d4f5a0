package main

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"merchant-payout-platform/config"
	"merchant-payout-platform/internal/adapter/gateway/silkpay"
	httpHandler "merchant-payout-platform/internal/adapter/http/handler"
	pgStorage "merchant-payout-platform/internal/adapter/storage/postgres"
	redisStorage "merchant-payout-platform/internal/adapter/storage/redis"
	"merchant-payout-platform/internal/core/ports"
	"merchant-payout-platform/internal/service"
	"merchant-payout-platform/pkg/logger"
)

func main() {
	// Load configuration
	cfg, err := config.Load("")
	if err != nil {
		fmt.Fprintf(os.Stderr, "failed to load config: %v\n", err)
		os.Exit(1)
	}

	// Initialize logger
	log := logger.New(cfg.Log.Level, cfg.Log.Pretty)

	log.Info().
		Str("mode", cfg.Server.Mode).
		Int("port", cfg.Server.Port).
		Msg("Starting Merchant Payout Platform API")

	ctx := context.Background()

	// Initialize PostgreSQL pool
	pool, err := pgStorage.NewPool(ctx, cfg.Database, log)
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to connect to PostgreSQL")
	}
	defer pool.Close()
	log.Info().Msg("PostgreSQL connected")

	// Initialize Redis client
	rdb, err := redisStorage.NewClient(ctx, cfg.Redis, log)
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to connect to Redis")
	}
	defer rdb.Close()
	log.Info().Msg("Redis connected")

	// Initialize repositories
	merchantRepo := pgStorage.NewMerchantRepo(pool)
	beneficiaryRepo := pgStorage.NewBeneficiaryRepo(pool)
	payoutRepo := pgStorage.NewPayoutRepo(pool)
	txRepo := pgStorage.NewTransactionRepo(pool)
	transactor := pgStorage.NewTransactor(pool)

	// Initialize core services
	encSvc, err := service.NewAESEncryptionService(cfg.AES.Key)
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to initialize encryption service")
	}
	sigSvc := service.NewMD5SignatureService()
	hashSvc := service.NewArgon2HashService()
	tokenSvc := service.NewJWTTokenService(cfg.JWT.Secret, cfg.JWT.Expiry, cfg.JWT.Issuer)

	// Initialize SilkPay gateway client
	gateway := silkpay.NewClient(silkpay.Config{
		BaseURL:        cfg.SilkPay.BaseURL,
		NotifyURL:      cfg.SilkPay.NotifyURL,
		CreateTimeout:  cfg.SilkPay.CreateTimeout,
		QueryTimeout:   cfg.SilkPay.QueryTimeout,
		BalanceTimeout: cfg.SilkPay.BalanceTimeout,
	}, sigSvc, log)

	// Initialize business services
	ledgerSvc := service.NewLedgerService(merchantRepo, txRepo, log)
	authSvc := service.NewAuthService(merchantRepo, hashSvc, tokenSvc, log)
	payoutSvc := service.NewPayoutService(
		merchantRepo,
		beneficiaryRepo,
		payoutRepo,
		ledgerSvc,
		gateway,
		encSvc,
		sigSvc,
		transactor,
		log,
	)
	syncGuard := redisStorage.NewSyncGuard(rdb)
	balanceSvc := service.NewBalanceService(
		merchantRepo,
		ledgerSvc,
		gateway,
		encSvc,
		transactor,
		syncGuard,
		cfg.Sync.MerchantDelay,
		cfg.Sync.LockTTL,
		log,
	)

	// Initialize rate limit store
	rateLimitStore := redisStorage.NewRateLimitStore(rdb)

	// Initialize health checkers
	pgHealth := pgStorage.NewHealthCheck(pool)
	redisHealth := redisStorage.NewHealthCheck(rdb)

	// Setup Gin router with all routes
	router := httpHandler.SetupRouter(httpHandler.RouterDeps{
		AuthSvc:         authSvc,
		PayoutSvc:       payoutSvc,
		BalanceSvc:      balanceSvc,
		TransactionRepo: txRepo,
		MerchantRepo:    merchantRepo,
		TokenSvc:        tokenSvc,
		RateLimitStore:  rateLimitStore,
		HealthCheckers:  []ports.HealthChecker{pgHealth, redisHealth},
		Logger:          log,
	})

	// HTTP Server with graceful shutdown
	addr := fmt.Sprintf("%s:%d", cfg.Server.Host, cfg.Server.Port)
	srv := &http.Server{
		Addr:    addr,
		Handler: router,
	}

	// Start server in goroutine
	go func() {
		log.Info().Str("addr", addr).Msg("HTTP server listening")
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatal().Err(err).Msg("HTTP server failed")
		}
	}()

	// Graceful shutdown
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit
	log.Info().Msg("Shutting down server...")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		log.Error().Err(err).Msg("Server forced to shutdown")
	}

	log.Info().Msg("Server exited")
}
