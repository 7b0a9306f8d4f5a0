package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"merchant-payout-platform/config"
	"merchant-payout-platform/internal/adapter/gateway/silkpay"
	pgStorage "merchant-payout-platform/internal/adapter/storage/postgres"
	redisStorage "merchant-payout-platform/internal/adapter/storage/redis"
	"merchant-payout-platform/internal/scheduler"
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
		Str("schedule", cfg.Sync.Schedule).
		Msg("Starting Merchant Payout Platform worker")

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

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
	txRepo := pgStorage.NewTransactionRepo(pool)
	transactor := pgStorage.NewTransactor(pool)

	// Initialize core services
	encSvc, err := service.NewAESEncryptionService(cfg.AES.Key)
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to initialize encryption service")
	}
	sigSvc := service.NewMD5SignatureService()

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

	// Start the balance-sync scheduler
	sched := scheduler.New(balanceSvc, cfg.Sync.Schedule, log)
	if err := sched.Start(ctx); err != nil {
		log.Fatal().Err(err).Msg("Failed to start scheduler")
	}

	// Graceful shutdown
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit
	log.Info().Msg("Shutting down worker...")

	cancel()
	sched.Stop()

	log.Info().Msg("Worker exited")
}
