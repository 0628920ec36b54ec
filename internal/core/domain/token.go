package domain

import "github.com/ethereum/go-ethereum/common"

// TokenMetadata describes the confidential token served by the ledger.
type TokenMetadata struct {
	Name         string         `json:"name"`
	Symbol       string         `json:"symbol"`
	Decimals     uint8          `json:"decimals"`
	Address      common.Address `json:"address"`
	VaultAddress common.Address `json:"vault_address"`
}

// EncryptedInput is a client ciphertext plus its attestation for one (contract, sender) pair.
type EncryptedInput struct {
	Handle Handle `json:"handle"`
	Proof  []byte `json:"proof"`
}
