package domain

import (
	"encoding/hex"
	"fmt"
	"strings"
)

// HandleLength is the size of a ciphertext handle in bytes.
const HandleLength = 32

// ValueType tags the plaintext type a handle refers to. It is stored in
// byte 30 of every non-zero handle; byte 31 carries the handle version.
type ValueType uint8

const (
	ValueBool   ValueType = 0
	ValueUint64 ValueType = 5
)

// HandleVersion is written to byte 31 of handles minted by this service.
const HandleVersion byte = 0

func (t ValueType) String() string {
	switch t {
	case ValueBool:
		return "ebool"
	case ValueUint64:
		return "euint64"
	default:
		return fmt.Sprintf("etype(%d)", uint8(t))
	}
}

// Handle is an opaque reference to a ciphertext held by the coprocessor.
// The zero handle means "no value yet" and reads as an encrypted 0.
type Handle [HandleLength]byte

// ZeroHandle is the uninitialized handle.
var ZeroHandle Handle

// IsZero reports whether h is the uninitialized handle.
func (h Handle) IsZero() bool {
	return h == ZeroHandle
}

// Type returns the value type encoded in the handle. The zero handle is an euint64.
func (h Handle) Type() ValueType {
	if h.IsZero() {
		return ValueUint64
	}
	return ValueType(h[30])
}

// Hex returns the 0x-prefixed hex form of the handle.
func (h Handle) Hex() string {
	return "0x" + hex.EncodeToString(h[:])
}

func (h Handle) String() string {
	return h.Hex()
}

// Bytes returns a copy of the handle bytes.
func (h Handle) Bytes() []byte {
	b := make([]byte, HandleLength)
	copy(b, h[:])
	return b
}

// MarshalText implements encoding.TextMarshaler.
func (h Handle) MarshalText() ([]byte, error) {
	return []byte(h.Hex()), nil
}

// UnmarshalText implements encoding.TextUnmarshaler.
func (h *Handle) UnmarshalText(text []byte) error {
	parsed, err := ParseHandle(string(text))
	if err != nil {
		return err
	}
	*h = parsed
	return nil
}

// ParseHandle decodes a 32-byte hex handle, with or without 0x prefix.
func ParseHandle(s string) (Handle, error) {
	var h Handle
	s = strings.TrimPrefix(strings.TrimPrefix(s, "0x"), "0X")
	if len(s) != HandleLength*2 {
		return h, fmt.Errorf("handle must be %d hex characters, got %d", HandleLength*2, len(s))
	}
	if _, err := hex.Decode(h[:], []byte(s)); err != nil {
		return h, fmt.Errorf("invalid handle hex: %w", err)
	}
	return h, nil
}

// HandleFromBytes copies b into a handle. b must be exactly 32 bytes.
func HandleFromBytes(b []byte) (Handle, error) {
	var h Handle
	if len(b) != HandleLength {
		return h, fmt.Errorf("handle must be %d bytes, got %d", HandleLength, len(b))
	}
	copy(h[:], b)
	return h, nil
}
