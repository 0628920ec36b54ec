package redis

import (
	"context"
	"testing"
	"time"

	"zkvault/internal/core/domain"

	"github.com/ethereum/go-ethereum/common"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNonceStore_CheckAndSet(t *testing.T) {
	s, client := newTestClient(t)
	store := NewNonceStore(client)
	ctx := context.Background()

	ok, err := store.CheckAndSet(ctx, "issuer-key", "nonce-abc", 2*time.Minute)
	require.NoError(t, err)
	assert.True(t, ok, "new nonce")

	ok, err = store.CheckAndSet(ctx, "issuer-key", "nonce-abc", 2*time.Minute)
	require.NoError(t, err)
	assert.False(t, ok, "replayed nonce")

	ok, err = store.CheckAndSet(ctx, "other-key", "nonce-abc", 2*time.Minute)
	require.NoError(t, err)
	assert.True(t, ok, "scopes are independent")

	s.FastForward(3 * time.Minute)
	ok, err = store.CheckAndSet(ctx, "issuer-key", "nonce-abc", 2*time.Minute)
	require.NoError(t, err)
	assert.True(t, ok, "expired nonce can be reused")
}

func TestNonceStore_ZeroTTLPersists(t *testing.T) {
	s, client := newTestClient(t)
	store := NewNonceStore(client)
	ctx := context.Background()

	ok, err := store.CheckAndSet(ctx, "input-proof:0xabc", "deadbeef", 0)
	require.NoError(t, err)
	assert.True(t, ok)
	assert.Equal(t, time.Duration(0), s.TTL("nonce:input-proof:0xabc:deadbeef"))

	s.FastForward(365 * 24 * time.Hour)
	ok, err = store.CheckAndSet(ctx, "input-proof:0xabc", "deadbeef", 0)
	require.NoError(t, err)
	assert.False(t, ok)
}

func TestIdempotencyCache_SetGetExpire(t *testing.T) {
	s, client := newTestClient(t)
	cache := NewIdempotencyCache(client)
	ctx := context.Background()

	key := "0xa11ce:transfer:req-1"
	value := []byte(`{"status":201}`)

	got, err := cache.Get(ctx, key)
	require.NoError(t, err)
	assert.Nil(t, got)

	require.NoError(t, cache.Set(ctx, key, value, time.Hour))
	got, err = cache.Get(ctx, key)
	require.NoError(t, err)
	assert.Equal(t, value, got)

	require.NoError(t, cache.Set(ctx, key, []byte("second"), time.Hour))
	got, _ = cache.Get(ctx, key)
	assert.Equal(t, []byte("second"), got)

	s.FastForward(2 * time.Hour)
	got, err = cache.Get(ctx, key)
	require.NoError(t, err)
	assert.Nil(t, got)
}

func TestRateLimitStore_Allow(t *testing.T) {
	mr, client := newTestClient(t)
	store := NewRateLimitStore(client)
	frozen := time.Unix(1_700_000_040, 0)
	store.now = func() time.Time { return frozen }
	ctx := context.Background()

	for i := int64(1); i <= 3; i++ {
		result, err := store.Allow(ctx, "1.2.3.4:transfers", 3, time.Minute)
		require.NoError(t, err)
		assert.True(t, result.Allowed, "request %d", i)
		assert.Equal(t, 3-i, result.Remaining)
	}

	result, err := store.Allow(ctx, "1.2.3.4:transfers", 3, time.Minute)
	require.NoError(t, err)
	assert.False(t, result.Allowed)
	assert.Equal(t, int64(0), result.Remaining)
	assert.Equal(t, int64(1_700_000_040/60+1)*60, result.ResetAt)

	result, err = store.Allow(ctx, "5.6.7.8:transfers", 3, time.Minute)
	require.NoError(t, err)
	assert.True(t, result.Allowed, "different keys are independent")

	mr.FastForward(61 * time.Second)
	result, err = store.Allow(ctx, "1.2.3.4:transfers", 3, time.Minute)
	require.NoError(t, err)
	assert.True(t, result.Allowed, "counter expired")
}

func TestCiphertextStore_PutGetACL(t *testing.T) {
	_, client := newTestClient(t)
	store := NewCiphertextStore(client)
	ctx := context.Background()

	var h domain.Handle
	h[0], h[30] = 0xaa, byte(domain.ValueUint64)
	alice := common.HexToAddress("0x00000000000000000000000000000000000A11CE")

	got, err := store.Get(ctx, h)
	require.NoError(t, err)
	assert.Nil(t, got)

	require.NoError(t, store.Put(ctx, h, []byte{1, 2, 3}))
	got, err = store.Get(ctx, h)
	require.NoError(t, err)
	assert.Equal(t, []byte{1, 2, 3}, got)

	ok, err := store.IsAllowed(ctx, h, alice)
	require.NoError(t, err)
	assert.False(t, ok)

	require.NoError(t, store.Allow(ctx, h, alice))
	ok, err = store.IsAllowed(ctx, h, alice)
	require.NoError(t, err)
	assert.True(t, ok)

	members, err := client.SMembers(ctx, "acl:"+h.Hex()).Result()
	require.NoError(t, err)
	assert.Equal(t, []string{"0x00000000000000000000000000000000000a11ce"}, members)
}
