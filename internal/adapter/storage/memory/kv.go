package memory

import (
	"context"
	"sync"
	"time"

	"zkvault/internal/core/ports"
)

// Nonces, idempotency entries and rate limit windows share one expiring map
// when redis is disabled.

type entry struct {
	value     []byte
	count     int64
	expiresAt time.Time // zero = never
}

func (e entry) expired(now time.Time) bool {
	return !e.expiresAt.IsZero() && !now.Before(e.expiresAt)
}

// KV is an expiring key/value map.
type KV struct {
	mu   sync.Mutex
	data map[string]entry
	now  func() time.Time
}

// NewKV creates an empty map using the wall clock.
func NewKV() *KV {
	return &KV{data: make(map[string]entry), now: time.Now}
}

func (kv *KV) expiry(ttl time.Duration) time.Time {
	if ttl <= 0 {
		return time.Time{}
	}
	return kv.now().Add(ttl)
}

// NonceStore implements ports.NonceStore over a KV.
type NonceStore struct{ kv *KV }

func NewNonceStore(kv *KV) *NonceStore { return &NonceStore{kv: kv} }

var _ ports.NonceStore = (*NonceStore)(nil)

func (s *NonceStore) CheckAndSet(_ context.Context, scope string, nonce string, ttl time.Duration) (bool, error) {
	key := "nonce:" + scope + ":" + nonce

	s.kv.mu.Lock()
	defer s.kv.mu.Unlock()
	if e, ok := s.kv.data[key]; ok && !e.expired(s.kv.now()) {
		return false, nil
	}
	s.kv.data[key] = entry{expiresAt: s.kv.expiry(ttl)}
	return true, nil
}

// IdempotencyCache implements ports.IdempotencyCache over a KV.
type IdempotencyCache struct{ kv *KV }

func NewIdempotencyCache(kv *KV) *IdempotencyCache { return &IdempotencyCache{kv: kv} }

var _ ports.IdempotencyCache = (*IdempotencyCache)(nil)

func (c *IdempotencyCache) Get(_ context.Context, key string) ([]byte, error) {
	c.kv.mu.Lock()
	defer c.kv.mu.Unlock()
	e, ok := c.kv.data["idempotency:"+key]
	if !ok || e.expired(c.kv.now()) {
		return nil, nil
	}
	return e.value, nil
}

func (c *IdempotencyCache) Set(_ context.Context, key string, value []byte, ttl time.Duration) error {
	c.kv.mu.Lock()
	defer c.kv.mu.Unlock()
	c.kv.data["idempotency:"+key] = entry{value: value, expiresAt: c.kv.expiry(ttl)}
	return nil
}

// RateLimitStore implements ports.RateLimitStore over a KV.
type RateLimitStore struct{ kv *KV }

func NewRateLimitStore(kv *KV) *RateLimitStore { return &RateLimitStore{kv: kv} }

var _ ports.RateLimitStore = (*RateLimitStore)(nil)

func (s *RateLimitStore) Allow(_ context.Context, key string, limit int64, window time.Duration) (*ports.RateLimitResult, error) {
	fullKey := "ratelimit:" + key

	s.kv.mu.Lock()
	defer s.kv.mu.Unlock()

	now := s.kv.now()
	e, ok := s.kv.data[fullKey]
	if !ok || e.expired(now) {
		e = entry{expiresAt: now.Add(window)}
	}
	e.count++
	s.kv.data[fullKey] = e

	remaining := limit - e.count
	if remaining < 0 {
		remaining = 0
	}
	return &ports.RateLimitResult{
		Allowed:   e.count <= limit,
		Limit:     limit,
		Remaining: remaining,
		ResetAt:   e.expiresAt.Unix(),
	}, nil
}
