package handler

import (
	"merchant-payout-platform/internal/adapter/http/middleware"
	redisStore "merchant-payout-platform/internal/adapter/storage/redis"
	"merchant-payout-platform/internal/core/ports"

	"github.com/gin-gonic/gin"
	"github.com/rs/zerolog"
)

// RouterDeps holds all dependencies needed to set up routes.
type RouterDeps struct {
	AuthSvc         ports.AuthService
	PayoutSvc       ports.PayoutService
	BalanceSvc      ports.BalanceService
	TransactionRepo ports.TransactionRepository
	MerchantRepo    ports.MerchantRepository
	TokenSvc        ports.TokenService
	RateLimitStore  *redisStore.RateLimitStore // nil = rate limiting disabled
	HealthCheckers  []ports.HealthChecker
	Logger          zerolog.Logger
}

// SetupRouter initialises the Gin engine with all routes and middleware.
func SetupRouter(deps RouterDeps) *gin.Engine {
	gin.SetMode(gin.ReleaseMode)
	r := gin.New()

	// Global middleware
	r.Use(middleware.Recovery(deps.Logger))
	r.Use(middleware.RequestID())
	r.Use(middleware.RequestLogger(deps.Logger))
	r.Use(middleware.MaxBodySize(1 << 20)) // 1 MB request body limit

	// Health check (deep — verifies PostgreSQL + Redis)
	r.GET("/health", HealthCheck(deps.HealthCheckers...))

	// Rate limit rules
	rules := middleware.DefaultRateLimitRules()

	// Helper: return rate limiter middleware if store is available, else noop.
	rl := func(group string) gin.HandlerFunc {
		if deps.RateLimitStore == nil {
			return func(c *gin.Context) { c.Next() }
		}
		rule, ok := rules[group]
		if !ok {
			return func(c *gin.Context) { c.Next() }
		}
		return middleware.RateLimiter(deps.RateLimitStore, group, rule, deps.Logger)
	}

	// --- Gateway callback (public, signature-verified in the service) ---
	webhookHandler := NewWebhookHandler(deps.PayoutSvc)
	r.POST("/api/webhook/silkpay", rl("webhook"), webhookHandler.Receive)

	// API v1 routes
	v1 := r.Group("/api/v1")

	// --- Public routes (no auth) ---
	authHandler := NewAuthHandler(deps.AuthSvc)
	auth := v1.Group("/auth")
	{
		auth.POST("/login", rl("auth_login"), authHandler.Login)
	}

	// --- JWT-authenticated routes (dashboard) ---
	jwtAuth := middleware.JWTAuth(deps.TokenSvc, deps.MerchantRepo, deps.Logger)
	payoutHandler := NewPayoutHandler(deps.PayoutSvc)
	balanceHandler := NewBalanceHandler(deps.BalanceSvc)
	transactionHandler := NewTransactionHandler(deps.TransactionRepo)

	payouts := v1.Group("/payouts", jwtAuth)
	{
		payouts.POST("", rl("payouts"), payoutHandler.Create)
		payouts.GET("", rl("dashboard"), payoutHandler.List)
		payouts.GET("/:id", rl("dashboard"), payoutHandler.Get)
		payouts.GET("/:id/status", rl("dashboard"), payoutHandler.QueryStatus)
	}

	balance := v1.Group("/balance", jwtAuth)
	{
		balance.GET("", rl("dashboard"), balanceHandler.Get)
		balance.POST("/sync", rl("dashboard"), balanceHandler.Sync)
	}

	transactions := v1.Group("/transactions", jwtAuth)
	{
		transactions.GET("", rl("dashboard"), transactionHandler.List)
	}

	return r
}
