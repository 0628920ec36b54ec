package dto

import (
	"strings"
	"testing"

	"github.com/gin-gonic/gin/binding"
	"github.com/stretchr/testify/assert"
)

const (
	testAccount = "0x00000000000000000000000000000000000a11ce"
	testHandle  = "0x0102030405060708090a0b0c0d0e0f101112131415161718191a1b1c1d1e0500"
)

// --- SanitizeStruct tests ---

func TestSanitizeStruct_TrimsWhitespace(t *testing.T) {
	req := MintRequest{To: "  " + testAccount + "  ", Amount: " 1000 "}
	SanitizeStruct(&req)

	assert.Equal(t, testAccount, req.To)
	assert.Equal(t, "1000", req.Amount)
}

func TestSanitizeStruct_EscapesHTML(t *testing.T) {
	req := DecryptRequest{Handle: "<script>alert('x')</script>"}
	SanitizeStruct(&req)

	assert.Contains(t, req.Handle, "&lt;script&gt;")
	assert.NotContains(t, req.Handle, "<script>")
}

func TestSanitizeStruct_HandlesPointerString(t *testing.T) {
	minted := "  42  "
	resp := ReceiptResponse{MintedValue: &minted}
	SanitizeStruct(&resp)
	assert.Equal(t, "42", *resp.MintedValue)

	resp = ReceiptResponse{}
	SanitizeStruct(&resp)
	assert.Nil(t, resp.MintedValue)
}

func TestSanitizeStruct_NonPointerIsNoOp(t *testing.T) {
	SanitizeStruct("hello") // should not panic
}

// --- Custom Validator tests ---

func TestValidators_TransferRequest(t *testing.T) {
	valid := TransferRequest{To: testAccount, Handle: testHandle, Proof: "0xdeadbeef"}
	assert.NoError(t, binding.Validator.ValidateStruct(&valid))

	withPayload := valid
	withPayload.Payload = "0x" + strings.Repeat("00", 31) + "3c"
	assert.NoError(t, binding.Validator.ValidateStruct(&withPayload))

	tests := []struct {
		name   string
		mutate func(r *TransferRequest)
	}{
		{"bad account", func(r *TransferRequest) { r.To = "alice" }},
		{"short handle", func(r *TransferRequest) { r.Handle = "0x0102" }},
		{"proof without prefix", func(r *TransferRequest) { r.Proof = "deadbeef" }},
		{"odd payload", func(r *TransferRequest) { r.Payload = "0xabc" }},
		{"missing proof", func(r *TransferRequest) { r.Proof = "" }},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			r := valid
			tt.mutate(&r)
			assert.Error(t, binding.Validator.ValidateStruct(&r))
		})
	}
}

func TestValidators_Uint64String(t *testing.T) {
	for _, ok := range []string{"0", "1000", "18446744073709551615"} {
		req := MintRequest{To: testAccount, Amount: ok}
		assert.NoError(t, binding.Validator.ValidateStruct(&req), ok)
	}
	for _, bad := range []string{"-1", "1e3", "1.5", "18446744073709551616", "0x10"} {
		req := MintRequest{To: testAccount, Amount: bad}
		assert.Error(t, binding.Validator.ValidateStruct(&req), bad)
	}
}

func TestValidators_StakeRequest(t *testing.T) {
	req := StakeRequest{Handle: testHandle, Proof: "0x01", LockSeconds: "3600"}
	assert.NoError(t, binding.Validator.ValidateStruct(&req))

	req.LockSeconds = "one hour"
	assert.Error(t, binding.Validator.ValidateStruct(&req))
}

func TestIsSafeID(t *testing.T) {
	for _, tc := range []string{"req-001", "REQ_002", "a.b.c", "7f0c"} {
		assert.True(t, IsSafeID(tc), "expected valid: %s", tc)
	}
	for _, tc := range []string{"", "req 001", "req<001>", "req;DROP", "req\n001", strings.Repeat("a", 101)} {
		assert.False(t, IsSafeID(tc), "expected invalid: %q", tc)
	}
}
