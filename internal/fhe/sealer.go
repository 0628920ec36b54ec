package fhe

import (
	"crypto/aes"
	"crypto/cipher"
	"crypto/rand"
	"crypto/sha256"
	"encoding/binary"
	"encoding/hex"
	"errors"
	"fmt"
	"io"

	"zkvault/internal/core/domain"

	"golang.org/x/crypto/hkdf"
)

const (
	masterKeySize = 32
	plaintextSize = 9 // type byte + big-endian uint64
	sealInfo      = "zkvault/ciphertext-seal/v1"
)

var errSealedTooShort = errors.New("sealed ciphertext too short")

// Sealer encrypts ciphertext payloads at rest with AES-256-GCM. The handle is
// bound as additional data, so a payload cannot be replayed under another handle.
type Sealer struct {
	gcm cipher.AEAD
}

// NewSealer derives the sealing key from a 32-byte master key.
func NewSealer(masterKey []byte) (*Sealer, error) {
	if len(masterKey) != masterKeySize {
		return nil, fmt.Errorf("master key must be %d bytes, got %d", masterKeySize, len(masterKey))
	}

	key := make([]byte, 32)
	if _, err := io.ReadFull(hkdf.New(sha256.New, masterKey, nil, []byte(sealInfo)), key); err != nil {
		return nil, fmt.Errorf("derive sealing key: %w", err)
	}

	block, err := aes.NewCipher(key)
	if err != nil {
		return nil, fmt.Errorf("create AES cipher: %w", err)
	}
	gcm, err := cipher.NewGCM(block)
	if err != nil {
		return nil, fmt.Errorf("create GCM: %w", err)
	}
	return &Sealer{gcm: gcm}, nil
}

// NewSealerFromHex is NewSealer for a hex-encoded key.
func NewSealerFromHex(hexKey string) (*Sealer, error) {
	key, err := hex.DecodeString(hexKey)
	if err != nil {
		return nil, fmt.Errorf("decode master key hex: %w", err)
	}
	return NewSealer(key)
}

// Seal returns nonce || ciphertext || tag.
func (s *Sealer) Seal(handle domain.Handle, typ domain.ValueType, value uint64) ([]byte, error) {
	nonce := make([]byte, s.gcm.NonceSize())
	if _, err := io.ReadFull(rand.Reader, nonce); err != nil {
		return nil, fmt.Errorf("generate nonce: %w", err)
	}

	plaintext := make([]byte, plaintextSize)
	plaintext[0] = byte(typ)
	binary.BigEndian.PutUint64(plaintext[1:], value)

	return s.gcm.Seal(nonce, nonce, plaintext, handle[:]), nil
}

// Open authenticates and decrypts a payload produced by Seal for handle.
func (s *Sealer) Open(handle domain.Handle, sealed []byte) (domain.ValueType, uint64, error) {
	nonceSize := s.gcm.NonceSize()
	if len(sealed) < nonceSize+s.gcm.Overhead() {
		return 0, 0, errSealedTooShort
	}

	plaintext, err := s.gcm.Open(nil, sealed[:nonceSize], sealed[nonceSize:], handle[:])
	if err != nil {
		return 0, 0, fmt.Errorf("open sealed ciphertext: %w", err)
	}
	if len(plaintext) != plaintextSize {
		return 0, 0, fmt.Errorf("unexpected plaintext size %d", len(plaintext))
	}
	return domain.ValueType(plaintext[0]), binary.BigEndian.Uint64(plaintext[1:]), nil
}
