package redis

import (
	"context"
	"errors"
	"fmt"
	"time"

	"zkvault/internal/core/ports"

	goredis "github.com/redis/go-redis/v9"
)

// NonceStore implements ports.NonceStore using Redis SET NX. It backs
// both request nonces and consumed input proofs.
type NonceStore struct {
	client goredis.Cmdable
	prefix string
}

// NewNonceStore creates a new Redis-backed nonce store.
func NewNonceStore(client goredis.Cmdable) *NonceStore {
	return &NonceStore{
		client: client,
		prefix: "nonce:",
	}
}

var _ ports.NonceStore = (*NonceStore)(nil)

// CheckAndSet records nonce under scope. A zero ttl keeps it forever.
func (s *NonceStore) CheckAndSet(ctx context.Context, scope string, nonce string, ttl time.Duration) (bool, error) {
	key := s.prefix + scope + ":" + nonce
	result, err := s.client.SetArgs(ctx, key, 1, goredis.SetArgs{
		Mode: "NX",
		TTL:  ttl,
	}).Result()
	if err != nil {
		if errors.Is(err, goredis.Nil) {
			return false, nil
		}
		return false, fmt.Errorf("redis nonce check: %w", err)
	}
	return result == "OK", nil
}
