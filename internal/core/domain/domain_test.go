package domain

import (
	"encoding/json"
	"testing"
	"time"

	"github.com/ethereum/go-ethereum/common"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestHandle_ZeroValue(t *testing.T) {
	var h Handle
	assert.True(t, h.IsZero())
	assert.Equal(t, ValueUint64, h.Type())
	assert.Equal(t, "0x0000000000000000000000000000000000000000000000000000000000000000", h.Hex())
}

func TestHandle_TypeByte(t *testing.T) {
	var h Handle
	h[0] = 0xaa
	h[30] = byte(ValueBool)
	assert.Equal(t, ValueBool, h.Type())

	h[30] = byte(ValueUint64)
	assert.Equal(t, ValueUint64, h.Type())
	assert.Equal(t, "euint64", h.Type().String())
}

func TestParseHandle(t *testing.T) {
	valid := "0x0102030405060708090a0b0c0d0e0f101112131415161718191a1b1c1d1e0500"

	tests := []struct {
		name    string
		input   string
		wantErr bool
	}{
		{"with prefix", valid, false},
		{"without prefix", valid[2:], false},
		{"too short", "0x0102", true},
		{"not hex", "0xzz02030405060708090a0b0c0d0e0f101112131415161718191a1b1c1d1e0500", true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			h, err := ParseHandle(tt.input)
			if tt.wantErr {
				assert.Error(t, err)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, valid, h.Hex())
		})
	}
}

func TestHandle_JSONText(t *testing.T) {
	var h Handle
	h[0], h[31] = 0xde, 0x01

	raw, err := json.Marshal(struct {
		H Handle `json:"h"`
	}{h})
	require.NoError(t, err)
	assert.Contains(t, string(raw), `"0xde`)

	var decoded struct {
		H Handle `json:"h"`
	}
	require.NoError(t, json.Unmarshal(raw, &decoded))
	assert.Equal(t, h, decoded.H)
}

func TestHandleFromBytes(t *testing.T) {
	_, err := HandleFromBytes([]byte{1, 2, 3})
	assert.Error(t, err)

	b := make([]byte, HandleLength)
	b[5] = 9
	h, err := HandleFromBytes(b)
	require.NoError(t, err)
	assert.Equal(t, byte(9), h[5])

	// Bytes returns a copy.
	out := h.Bytes()
	out[5] = 0
	assert.Equal(t, byte(9), h[5])
}

func TestParseAccount(t *testing.T) {
	addr, err := ParseAccount("0x00000000000000000000000000000000000c0de1")
	require.NoError(t, err)
	assert.Equal(t, common.HexToAddress("0xc0de1"), addr)

	_, err = ParseAccount("alice")
	assert.Error(t, err)
}

func TestStakePosition_Lifecycle(t *testing.T) {
	account := common.HexToAddress("0xa11ce")
	p := InactivePosition(account)
	assert.True(t, p.IsCanonical())
	assert.False(t, p.Unlocked(1_000_000))

	var staked Handle
	staked[0] = 1
	p.StakedAmount, p.UnlockTime, p.Active = staked, 100, true
	assert.True(t, p.IsCanonical())
	assert.False(t, p.Unlocked(99))
	assert.True(t, p.Unlocked(100))
	assert.True(t, p.Unlocked(101))

	p.Reset()
	assert.Equal(t, InactivePosition(account), p, "reset position must equal a never-used one")
}

func TestStakePosition_IsCanonical_RejectsDirtyInactive(t *testing.T) {
	p := &StakePosition{UnlockTime: 5}
	assert.False(t, p.IsCanonical())
}

func TestReceipt_Involves(t *testing.T) {
	from := common.HexToAddress("0x1")
	to := common.HexToAddress("0x2")
	r := NewReceipt(ReceiptKindTransfer, from, to, ZeroHandle, time.Unix(10, 0))

	assert.NotEqual(t, "00000000-0000-0000-0000-000000000000", r.ID.String())
	assert.True(t, r.Involves(from))
	assert.True(t, r.Involves(to))
	assert.False(t, r.Involves(common.HexToAddress("0x3")))
	assert.Equal(t, time.UTC, r.CreatedAt.Location())
}

func TestBuildIdempotencyKey(t *testing.T) {
	caller := common.HexToAddress("0x00000000000000000000000000000000000000AB")
	key := BuildIdempotencyKey(caller, "transfer", "req-1")
	assert.Equal(t, "0x00000000000000000000000000000000000000ab:transfer:req-1", key)
}

func TestReceiptKind_Constants(t *testing.T) {
	assert.Equal(t, ReceiptKind("MINT"), ReceiptKindMint)
	assert.Equal(t, ReceiptKind("TRANSFER"), ReceiptKindTransfer)
	assert.Equal(t, ReceiptKind("STAKE"), ReceiptKindStake)
	assert.Equal(t, ReceiptKind("WITHDRAW"), ReceiptKindWithdraw)
}
