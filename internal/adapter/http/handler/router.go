package handler

import (
	"zkvault/internal/adapter/http/middleware"
	"zkvault/internal/core/ports"

	"github.com/gin-gonic/gin"
	"github.com/rs/zerolog"
)

// RouterDeps holds all dependencies needed to set up routes.
type RouterDeps struct {
	Ledger           ports.LedgerService
	Vault            ports.VaultService
	Oracle           ports.ConfidentialOracle
	AuthSvc          ports.AuthService
	TokenSvc         ports.TokenService
	SigSvc           ports.SignatureService
	NonceStore       ports.NonceStore
	Issuer           middleware.IssuerCredentials
	IdempotencyCache ports.IdempotencyCache // nil = Idempotency-Key ignored
	RateLimitStore   ports.RateLimitStore   // nil = rate limiting disabled
	AuditSvc         ports.AuditService     // nil = audit logging disabled
	Metrics          *middleware.Metrics    // nil = no /metrics endpoint
	HealthCheckers   []ports.HealthChecker
	Logger           zerolog.Logger
}

// SetupRouter initialises the Gin engine with all routes and middleware.
func SetupRouter(deps RouterDeps) *gin.Engine {
	r := gin.New()

	r.Use(middleware.RequestID())
	r.Use(middleware.Recovery(deps.Logger))
	r.Use(middleware.RequestLogger(deps.Logger))
	r.Use(middleware.MaxBodySize(1 << 20)) // 1 MB request body limit

	if deps.Metrics != nil {
		r.Use(deps.Metrics.Middleware())
		r.GET("/metrics", gin.WrapH(deps.Metrics.Handler()))
	}

	// Audit logging (after response)
	if deps.AuditSvc != nil {
		r.Use(middleware.AuditLog(deps.AuditSvc))
	}

	r.GET("/health", HealthCheck(deps.HealthCheckers...))

	rules := middleware.DefaultRateLimitRules()
	noop := func(c *gin.Context) { c.Next() }

	rl := func(group string) gin.HandlerFunc {
		if deps.RateLimitStore == nil {
			return noop
		}
		rule, ok := rules[group]
		if !ok {
			return noop
		}
		return middleware.RateLimiter(deps.RateLimitStore, group, rule, deps.Logger)
	}
	idem := func(route string) gin.HandlerFunc {
		if deps.IdempotencyCache == nil {
			return noop
		}
		return middleware.Idempotency(deps.IdempotencyCache, route, deps.Logger)
	}

	ledgerHandler := NewLedgerHandler(deps.Ledger, deps.Oracle)
	vaultHandler := NewVaultHandler(deps.Ledger, deps.Vault)
	authHandler := NewAuthHandler(deps.AuthSvc)

	v1 := r.Group("/api/v1")

	// --- Public routes (no auth) ---
	v1.POST("/auth/login", rl("auth_login"), authHandler.Login)
	v1.GET("/token", rl("reads"), ledgerHandler.GetToken)
	v1.GET("/balances/:address", rl("reads"), ledgerHandler.GetBalance)
	v1.GET("/stakes/:address", rl("reads"), vaultHandler.GetStake)

	// --- Issuer routes (HMAC) ---
	issuerAuth := middleware.IssuerAuth(deps.Issuer, deps.SigSvc, deps.NonceStore, deps.Logger)
	v1.POST("/mint", issuerAuth, rl("mint"), idem("mint"), ledgerHandler.Mint)

	// --- Account routes (JWT) ---
	account := v1.Group("", middleware.JWTAuth(deps.TokenSvc, deps.Logger))
	{
		account.POST("/inputs", rl("inputs"), ledgerHandler.EncryptInput)
		account.POST("/decrypt", rl("decrypt"), ledgerHandler.Decrypt)

		account.POST("/transfers", rl("transfers"), idem("transfer"), ledgerHandler.Transfer)
		account.POST("/transfers/notify", rl("transfers"), idem("transfer_notify"), ledgerHandler.TransferAndNotify)

		account.POST("/stakes", rl("stakes"), idem("stake"), vaultHandler.Stake)
		account.POST("/stakes/withdraw", rl("stakes"), idem("withdraw"), vaultHandler.Withdraw)

		account.GET("/receipts", rl("reads"), ledgerHandler.ListReceipts)
		account.GET("/receipts/:id", rl("reads"), ledgerHandler.GetReceipt)
	}

	return r
}
