package redis

import (
	"context"
	"fmt"

	"zkvault/config"

	goredis "github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"
)

// NewClient connects to Redis and checks that the server will not evict keys.
// Sealed ciphertexts live here and ledger rows reference them by handle.
func NewClient(ctx context.Context, cfg config.RedisConfig, log zerolog.Logger) (*goredis.Client, error) {
	client := goredis.NewClient(&goredis.Options{
		Addr:     cfg.Addr(),
		Password: cfg.Password,
		DB:       cfg.DB,
	})

	if err := client.Ping(ctx).Err(); err != nil {
		_ = client.Close()
		return nil, fmt.Errorf("pinging redis at %s: %w", cfg.Addr(), err)
	}

	policy := evictionPolicy(ctx, client)
	switch policy {
	case "noeviction":
	case "":
		log.Debug().Msg("Redis eviction policy unavailable")
	default:
		log.Warn().
			Str("maxmemory_policy", policy).
			Msg("Redis may evict ciphertexts, set maxmemory-policy to noeviction")
	}

	log.Info().
		Str("addr", cfg.Addr()).
		Int("db", cfg.DB).
		Msg("Redis ciphertext store ready")

	return client, nil
}

// evictionPolicy returns "" when the server does not answer CONFIG GET.
func evictionPolicy(ctx context.Context, client goredis.Cmdable) string {
	res, err := client.ConfigGet(ctx, "maxmemory-policy").Result()
	if err != nil {
		return ""
	}
	return res["maxmemory-policy"]
}
