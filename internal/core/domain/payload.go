package domain

import (
	"errors"
	"fmt"
	"math/big"

	"github.com/ethereum/go-ethereum/accounts/abi"
)

// lockPayloadArgs is the ABI layout of a stake payload: a single uint64
// holding the lock duration in seconds.
var lockPayloadArgs = func() abi.Arguments {
	t, err := abi.NewType("uint64", "", nil)
	if err != nil {
		panic(err)
	}
	return abi.Arguments{{Name: "lockSeconds", Type: t}}
}()

var maxUint64 = new(big.Int).SetUint64(^uint64(0))

// EncodeLockPayload packs seconds as an ABI encoded uint64.
func EncodeLockPayload(seconds uint64) ([]byte, error) {
	return lockPayloadArgs.Pack(seconds)
}

// DecodeLockPayload unpacks an ABI encoded uint64. The payload must be
// exactly one 32 byte word whose value fits in 64 bits.
func DecodeLockPayload(payload []byte) (uint64, error) {
	if len(payload) != 32 {
		return 0, fmt.Errorf("payload must be 32 bytes, got %d", len(payload))
	}
	if new(big.Int).SetBytes(payload).Cmp(maxUint64) > 0 {
		return 0, errors.New("lock duration overflows uint64")
	}

	values, err := lockPayloadArgs.Unpack(payload)
	if err != nil {
		return 0, fmt.Errorf("unpack payload: %w", err)
	}
	seconds, ok := values[0].(uint64)
	if !ok {
		return 0, fmt.Errorf("unexpected payload value %T", values[0])
	}
	return seconds, nil
}
