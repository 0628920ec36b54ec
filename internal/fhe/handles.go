package fhe

import (
	"encoding/binary"

	"zkvault/internal/core/domain"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/crypto"
)

type opcode byte

const (
	opTrivial opcode = iota + 1
	opInput
	opAdd
	opSub
	opGe
	opSelect
)

// computeHandle derives a result handle from the operation and its operands.
// Bytes 30 and 31 are overwritten with the value type and handle version.
func computeHandle(chainID uint64, op opcode, typ domain.ValueType, parts ...[]byte) domain.Handle {
	var chain [8]byte
	binary.BigEndian.PutUint64(chain[:], chainID)

	data := make([][]byte, 0, len(parts)+2)
	data = append(data, []byte{byte(op)}, chain[:])
	data = append(data, parts...)

	var h domain.Handle
	copy(h[:], crypto.Keccak256(data...))
	h[30] = byte(typ)
	h[31] = domain.HandleVersion
	return h
}

func u64Bytes(v uint64) []byte {
	var b [8]byte
	binary.BigEndian.PutUint64(b[:], v)
	return b[:]
}

func inputHandle(chainID uint64, salt []byte, contract, sender common.Address) domain.Handle {
	return computeHandle(chainID, opInput, domain.ValueUint64, salt, contract.Bytes(), sender.Bytes())
}
