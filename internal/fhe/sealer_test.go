package fhe

import (
	"math"
	"testing"

	"zkvault/internal/core/domain"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func testSealer(t *testing.T) *Sealer {
	t.Helper()
	s, err := NewSealerFromHex("0123456789abcdef0123456789abcdef0123456789abcdef0123456789abcdef")
	require.NoError(t, err)
	return s
}

func TestSealer_RoundTrip(t *testing.T) {
	s := testSealer(t)
	var h domain.Handle
	h[0] = 1

	for _, v := range []uint64{0, 1, 1000, math.MaxUint64} {
		sealed, err := s.Seal(h, domain.ValueUint64, v)
		require.NoError(t, err)

		typ, got, err := s.Open(h, sealed)
		require.NoError(t, err)
		assert.Equal(t, domain.ValueUint64, typ)
		assert.Equal(t, v, got)
	}
}

func TestSealer_NonceIsRandom(t *testing.T) {
	s := testSealer(t)
	var h domain.Handle

	a, err := s.Seal(h, domain.ValueUint64, 5)
	require.NoError(t, err)
	b, err := s.Seal(h, domain.ValueUint64, 5)
	require.NoError(t, err)
	assert.NotEqual(t, a, b)
}

func TestSealer_Rejects(t *testing.T) {
	s := testSealer(t)
	var h, other domain.Handle
	other[0] = 2

	sealed, err := s.Seal(h, domain.ValueBool, 1)
	require.NoError(t, err)

	_, _, err = s.Open(other, sealed)
	assert.Error(t, err, "wrong handle as additional data")

	tampered := append([]byte(nil), sealed...)
	tampered[len(tampered)-1] ^= 0xff
	_, _, err = s.Open(h, tampered)
	assert.Error(t, err)

	_, _, err = s.Open(h, []byte{1, 2})
	assert.ErrorIs(t, err, errSealedTooShort)
}

func TestNewSealer_KeyValidation(t *testing.T) {
	_, err := NewSealer(make([]byte, 16))
	assert.Error(t, err)

	_, err = NewSealerFromHex("not-hex")
	assert.Error(t, err)
}

func TestComputeHandle_Deterministic(t *testing.T) {
	a := computeHandle(1, opAdd, domain.ValueUint64, []byte{1}, []byte{2})
	b := computeHandle(1, opAdd, domain.ValueUint64, []byte{1}, []byte{2})
	c := computeHandle(2, opAdd, domain.ValueUint64, []byte{1}, []byte{2})
	d := computeHandle(1, opSub, domain.ValueUint64, []byte{1}, []byte{2})

	assert.Equal(t, a, b)
	assert.NotEqual(t, a, c, "chain id is bound")
	assert.NotEqual(t, a, d, "opcode is bound")
	assert.Equal(t, domain.ValueUint64, a.Type())
	assert.Equal(t, domain.HandleVersion, a[31])
}
