package main

import (
	"context"
	"crypto/rand"
	"encoding/hex"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"zkvault/config"
	httpHandler "zkvault/internal/adapter/http/handler"
	"zkvault/internal/adapter/http/middleware"
	memStorage "zkvault/internal/adapter/storage/memory"
	pgStorage "zkvault/internal/adapter/storage/postgres"
	redisStorage "zkvault/internal/adapter/storage/redis"
	"zkvault/internal/core/domain"
	"zkvault/internal/core/ports"
	"zkvault/internal/fhe"
	"zkvault/internal/service"
	"zkvault/pkg/logger"

	"github.com/ethereum/go-ethereum/common"
	"github.com/gin-gonic/gin"
)

func main() {
	configPath := ""
	if len(os.Args) > 1 {
		configPath = os.Args[1]
	}

	// Load configuration
	cfg, err := config.Load(configPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "failed to load config: %v\n", err)
		os.Exit(1)
	}

	// Initialize logger
	log := logger.New(cfg.Log.Level, cfg.Log.Pretty)

	log.Info().
		Str("mode", cfg.Server.Mode).
		Int("port", cfg.Server.Port).
		Str("storage", cfg.Storage.Driver).
		Msg("Starting zkvault")

	if cfg.Server.Mode == gin.ReleaseMode || cfg.Server.Mode == gin.TestMode {
		gin.SetMode(cfg.Server.Mode)
	}

	ctx := context.Background()

	// Ledger and vault state
	var (
		transactor     ports.Transactor
		reader         ports.StateReader
		auditRepo      ports.AuditRepository
		healthCheckers []ports.HealthChecker
	)
	switch cfg.Storage.Driver {
	case "postgres":
		pool, err := pgStorage.NewPool(ctx, cfg.Database, log)
		if err != nil {
			log.Fatal().Err(err).Msg("Failed to connect to PostgreSQL")
		}
		defer pool.Close()
		log.Info().Msg("PostgreSQL connected")

		if err := pgStorage.Migrate(ctx, pool); err != nil {
			log.Fatal().Err(err).Msg("Failed to apply schema")
		}

		transactor = pgStorage.NewTransactor(pool)
		reader = pgStorage.NewReader(pool)
		auditRepo = pgStorage.NewAuditRepository(pool)
		healthCheckers = append(healthCheckers, pgStorage.NewHealthCheck(pool))
	default:
		store := memStorage.NewStore()
		transactor = store
		reader = store
		log.Warn().Msg("Using in-memory storage, state is lost on exit")
	}

	// Ciphertexts, nonces, idempotency and rate limits
	var (
		ciphertexts    ports.CiphertextStore
		nonceStore     ports.NonceStore
		idemCache      ports.IdempotencyCache
		rateLimitStore ports.RateLimitStore
	)
	if cfg.Redis.Enabled {
		rdb, err := redisStorage.NewClient(ctx, cfg.Redis, log)
		if err != nil {
			log.Fatal().Err(err).Msg("Failed to connect to Redis")
		}
		defer rdb.Close()
		log.Info().Msg("Redis connected")

		ciphertexts = redisStorage.NewCiphertextStore(rdb)
		nonceStore = redisStorage.NewNonceStore(rdb)
		idemCache = redisStorage.NewIdempotencyCache(rdb)
		rateLimitStore = redisStorage.NewRateLimitStore(rdb)
		healthCheckers = append(healthCheckers, redisStorage.NewHealthCheck(rdb))
	} else {
		kv := memStorage.NewKV()
		ciphertexts = memStorage.NewCiphertextStore()
		nonceStore = memStorage.NewNonceStore(kv)
		idemCache = memStorage.NewIdempotencyCache(kv)
		rateLimitStore = memStorage.NewRateLimitStore(kv)
		if cfg.Storage.Driver == "postgres" {
			log.Warn().Msg("Redis disabled, ciphertexts referenced by stored handles do not survive a restart")
		}
	}

	// Coprocessor
	keys := fhe.KeyMaterial{MasterKey: cfg.Coprocessor.MasterKey, SignerKey: cfg.Coprocessor.SignerKey}
	if keys.MasterKey == "" || keys.SignerKey == "" {
		keys, err = fhe.GenerateKeyMaterial()
		if err != nil {
			log.Fatal().Err(err).Msg("Failed to generate coprocessor keys")
		}
		log.Warn().Msg("Coprocessor keys not configured, generated ephemeral keys")
	}
	sealer, err := fhe.NewSealerFromHex(keys.MasterKey)
	if err != nil {
		log.Fatal().Err(err).Msg("Invalid coprocessor master key")
	}
	signer, err := fhe.NewInputSignerFromHex(keys.SignerKey, cfg.Coprocessor.ChainID)
	if err != nil {
		log.Fatal().Err(err).Msg("Invalid coprocessor signer key")
	}
	coprocessor := fhe.New(ciphertexts, nonceStore, sealer, signer, cfg.Coprocessor.ChainID, logger.Component(log, "coprocessor"))

	// Ledger and vault
	meta := domain.TokenMetadata{
		Name:         cfg.Token.Name,
		Symbol:       cfg.Token.Symbol,
		Decimals:     cfg.Token.Decimals,
		Address:      common.HexToAddress(cfg.Token.Address),
		VaultAddress: common.HexToAddress(cfg.Vault.Address),
	}
	ledgerSvc := service.NewLedgerService(
		meta,
		coprocessor,
		transactor,
		reader,
		service.BalancePolicy(cfg.Ledger.InsufficientBalancePolicy),
		logger.Component(log, "ledger"),
	)
	vaultSvc := service.NewVaultService(
		meta.VaultAddress,
		ledgerSvc,
		coprocessor,
		transactor,
		reader,
		service.SystemClock{},
		cfg.Vault.MaxLock,
		logger.Component(log, "vault"),
	)
	ledgerSvc.RegisterReceiver(meta.VaultAddress, vaultSvc)

	// Authentication
	jwtSecret := cfg.JWT.Secret
	if jwtSecret == "" {
		jwtSecret = randomSecret()
		log.Warn().Msg("JWT secret not configured, issued tokens do not survive a restart")
	}
	tokenSvc := service.NewJWTTokenService(jwtSecret, cfg.JWT.Expiry, cfg.JWT.Issuer)
	authSvc := service.NewAuthService(tokenSvc, nonceStore, logger.Component(log, "auth"))
	sigSvc := service.NewHMACSignatureService()
	if cfg.Issuer.AccessKey == "" || cfg.Issuer.Secret == "" {
		log.Warn().Msg("Issuer credentials not configured, minting is disabled")
	}

	var auditSvc ports.AuditService
	if auditRepo != nil {
		auditSvc = service.NewAuditService(auditRepo, log)
	}

	var metrics *middleware.Metrics
	if cfg.Server.Metrics {
		metrics = middleware.NewMetrics()
	}

	// Setup Gin router with all routes
	router := httpHandler.SetupRouter(httpHandler.RouterDeps{
		Ledger:     ledgerSvc,
		Vault:      vaultSvc,
		Oracle:     coprocessor,
		AuthSvc:    authSvc,
		TokenSvc:   tokenSvc,
		SigSvc:     sigSvc,
		NonceStore: nonceStore,
		Issuer: middleware.IssuerCredentials{
			AccessKey: cfg.Issuer.AccessKey,
			Secret:    cfg.Issuer.Secret,
		},
		IdempotencyCache: idemCache,
		RateLimitStore:   rateLimitStore,
		AuditSvc:         auditSvc,
		Metrics:          metrics,
		HealthCheckers:   healthCheckers,
		Logger:           logger.Component(log, "http"),
	})

	// HTTP Server with graceful shutdown
	addr := fmt.Sprintf("%s:%d", cfg.Server.Host, cfg.Server.Port)
	srv := &http.Server{
		Addr:              addr,
		Handler:           router,
		ReadHeaderTimeout: 10 * time.Second,
	}

	go func() {
		log.Info().
			Str("addr", addr).
			Str("token", meta.Address.Hex()).
			Str("vault", meta.VaultAddress.Hex()).
			Msg("HTTP server listening")
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatal().Err(err).Msg("HTTP server failed")
		}
	}()

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

func randomSecret() string {
	b := make([]byte, 32)
	if _, err := rand.Read(b); err != nil {
		panic(fmt.Sprintf("read random: %v", err))
	}
	return hex.EncodeToString(b)
}
