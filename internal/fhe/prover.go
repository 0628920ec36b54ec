package fhe

import (
	"crypto/ecdsa"
	"errors"
	"fmt"
	"math/big"

	"zkvault/internal/core/domain"
	"zkvault/internal/core/ports"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/crypto"
)

const proofDomain = "zkvault/input-proof/v1"

var (
	ErrProofLength    = errors.New("proof must be a 65-byte signature")
	ErrProofSignature = errors.New("proof signature is not from the input signer")
)

// InputSigner attests that a ciphertext was encrypted for one (contract,
// sender) pair. A proof is a secp256k1 signature over the binding digest.
type InputSigner struct {
	key     *ecdsa.PrivateKey
	address common.Address
	chainID uint64
}

// NewInputSigner wraps a secp256k1 key.
func NewInputSigner(key *ecdsa.PrivateKey, chainID uint64) *InputSigner {
	return &InputSigner{
		key:     key,
		address: crypto.PubkeyToAddress(key.PublicKey),
		chainID: chainID,
	}
}

// NewInputSignerFromHex parses a hex secp256k1 private key.
func NewInputSignerFromHex(hexKey string, chainID uint64) (*InputSigner, error) {
	key, err := crypto.HexToECDSA(hexKey)
	if err != nil {
		return nil, fmt.Errorf("parse signer key: %w", err)
	}
	return NewInputSigner(key, chainID), nil
}

// Address is the signer account proofs are checked against.
func (s *InputSigner) Address() common.Address {
	return s.address
}

func (s *InputSigner) digest(in ports.InputContext, handle domain.Handle) []byte {
	return crypto.Keccak256(
		[]byte(proofDomain),
		u64Bytes(s.chainID),
		handle[:],
		in.Contract.Bytes(),
		in.Sender.Bytes(),
	)
}

// Sign produces the proof for handle under in.
func (s *InputSigner) Sign(in ports.InputContext, handle domain.Handle) ([]byte, error) {
	sig, err := crypto.Sign(s.digest(in, handle), s.key)
	if err != nil {
		return nil, fmt.Errorf("sign input proof: %w", err)
	}
	return sig, nil
}

// Verify checks that proof was issued by this signer for handle under in.
func (s *InputSigner) Verify(in ports.InputContext, handle domain.Handle, proof []byte) error {
	if len(proof) != crypto.SignatureLength {
		return ErrProofLength
	}
	r := new(big.Int).SetBytes(proof[:32])
	sv := new(big.Int).SetBytes(proof[32:64])
	if !crypto.ValidateSignatureValues(proof[64], r, sv, true) {
		return ErrProofSignature
	}

	pub, err := crypto.SigToPub(s.digest(in, handle), proof)
	if err != nil {
		return fmt.Errorf("%w: %v", ErrProofSignature, err)
	}
	if crypto.PubkeyToAddress(*pub) != s.address {
		return ErrProofSignature
	}
	return nil
}
