package fhe

import (
	"crypto/rand"
	"encoding/hex"
	"fmt"

	"github.com/ethereum/go-ethereum/crypto"
)

// KeyMaterial is the hex-encoded secret pair a coprocessor runs with.
type KeyMaterial struct {
	MasterKey string
	SignerKey string
}

// GenerateKeyMaterial creates fresh random keys. Ciphertexts sealed under
// them are unreadable once the process exits.
func GenerateKeyMaterial() (KeyMaterial, error) {
	master := make([]byte, masterKeySize)
	if _, err := rand.Read(master); err != nil {
		return KeyMaterial{}, fmt.Errorf("generate master key: %w", err)
	}
	signer, err := crypto.GenerateKey()
	if err != nil {
		return KeyMaterial{}, fmt.Errorf("generate signer key: %w", err)
	}
	return KeyMaterial{
		MasterKey: hex.EncodeToString(master),
		SignerKey: hex.EncodeToString(crypto.FromECDSA(signer)),
	}, nil
}
