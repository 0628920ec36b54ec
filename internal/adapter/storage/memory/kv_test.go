package memory

import (
	"context"
	"testing"
	"time"

	"zkvault/internal/core/domain"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeClock struct{ t time.Time }

func (f *fakeClock) now() time.Time { return f.t }

func newTestKV() (*KV, *fakeClock) {
	clk := &fakeClock{t: time.Unix(1_700_000_000, 0)}
	kv := NewKV()
	kv.now = clk.now
	return kv, clk
}

func TestNonceStore_CheckAndSet(t *testing.T) {
	kv, clk := newTestKV()
	store := NewNonceStore(kv)
	ctx := context.Background()

	ok, err := store.CheckAndSet(ctx, "scope", "n1", time.Minute)
	require.NoError(t, err)
	assert.True(t, ok)

	ok, _ = store.CheckAndSet(ctx, "scope", "n1", time.Minute)
	assert.False(t, ok, "reused nonce")

	ok, _ = store.CheckAndSet(ctx, "other", "n1", time.Minute)
	assert.True(t, ok, "scopes are independent")

	clk.t = clk.t.Add(time.Minute)
	ok, _ = store.CheckAndSet(ctx, "scope", "n1", time.Minute)
	assert.True(t, ok, "expired nonce can be reused")
}

func TestNonceStore_ZeroTTLNeverExpires(t *testing.T) {
	kv, clk := newTestKV()
	store := NewNonceStore(kv)
	ctx := context.Background()

	ok, _ := store.CheckAndSet(ctx, "proof", "p", 0)
	assert.True(t, ok)

	clk.t = clk.t.Add(24 * 365 * time.Hour)
	ok, _ = store.CheckAndSet(ctx, "proof", "p", 0)
	assert.False(t, ok)
}

func TestIdempotencyCache_GetSet(t *testing.T) {
	kv, clk := newTestKV()
	cache := NewIdempotencyCache(kv)
	ctx := context.Background()

	got, err := cache.Get(ctx, "k")
	require.NoError(t, err)
	assert.Nil(t, got)

	require.NoError(t, cache.Set(ctx, "k", []byte(`{"ok":true}`), time.Hour))
	got, _ = cache.Get(ctx, "k")
	assert.Equal(t, []byte(`{"ok":true}`), got)

	clk.t = clk.t.Add(2 * time.Hour)
	got, _ = cache.Get(ctx, "k")
	assert.Nil(t, got)
}

func TestRateLimitStore_FixedWindow(t *testing.T) {
	kv, clk := newTestKV()
	store := NewRateLimitStore(kv)
	ctx := context.Background()

	for i := 0; i < 3; i++ {
		res, err := store.Allow(ctx, "ip:transfers", 3, time.Minute)
		require.NoError(t, err)
		assert.True(t, res.Allowed)
		assert.Equal(t, int64(2-i), res.Remaining)
	}

	res, _ := store.Allow(ctx, "ip:transfers", 3, time.Minute)
	assert.False(t, res.Allowed)
	assert.Equal(t, int64(0), res.Remaining)

	clk.t = clk.t.Add(time.Minute)
	res, _ = store.Allow(ctx, "ip:transfers", 3, time.Minute)
	assert.True(t, res.Allowed)
}

func TestCiphertextStore_PutGetACL(t *testing.T) {
	s := NewCiphertextStore()
	ctx := context.Background()
	h := handle(7)

	got, err := s.Get(ctx, h)
	require.NoError(t, err)
	assert.Nil(t, got)

	blob := []byte{1, 2, 3}
	require.NoError(t, s.Put(ctx, h, blob))
	blob[0] = 9
	got, _ = s.Get(ctx, h)
	assert.Equal(t, []byte{1, 2, 3}, got)

	ok, _ := s.IsAllowed(ctx, h, alice)
	assert.False(t, ok)
	require.NoError(t, s.Allow(ctx, h, alice))
	ok, _ = s.IsAllowed(ctx, h, alice)
	assert.True(t, ok)
	ok, _ = s.IsAllowed(ctx, domain.ZeroHandle, alice)
	assert.False(t, ok)
}
