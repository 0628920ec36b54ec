package fhe

import (
	"context"
	"crypto/rand"
	"encoding/hex"
	"errors"
	"fmt"
	"io"

	"zkvault/internal/core/domain"
	"zkvault/internal/core/ports"
	"zkvault/pkg/apperror"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/crypto"
	"github.com/rs/zerolog"
)

var (
	ErrUnknownHandle = errors.New("unknown ciphertext handle")
	ErrTypeMismatch  = errors.New("ciphertext type mismatch")
	ErrProofReplayed = errors.New("input proof already consumed")
)

const proofScopePrefix = "input-proof:"

// Coprocessor is an in-process confidential computation backend. Values are
// sealed at rest in the ciphertext store; callers only ever see handles.
type Coprocessor struct {
	store   ports.CiphertextStore
	nonces  ports.NonceStore
	sealer  *Sealer
	signer  *InputSigner
	chainID uint64
	log     zerolog.Logger
}

// New wires a coprocessor. nonces records consumed input proofs.
func New(store ports.CiphertextStore, nonces ports.NonceStore, sealer *Sealer, signer *InputSigner, chainID uint64, log zerolog.Logger) *Coprocessor {
	return &Coprocessor{
		store:   store,
		nonces:  nonces,
		sealer:  sealer,
		signer:  signer,
		chainID: chainID,
		log:     log,
	}
}

var (
	_ ports.FHEBackend         = (*Coprocessor)(nil)
	_ ports.ConfidentialOracle = (*Coprocessor)(nil)
)

// load returns the plaintext behind h, checking its type. The zero handle is 0.
func (c *Coprocessor) load(ctx context.Context, h domain.Handle, want domain.ValueType) (uint64, error) {
	if h.IsZero() {
		return 0, nil
	}
	if h.Type() != want {
		return 0, fmt.Errorf("%w: handle %s is %s, want %s", ErrTypeMismatch, h.Hex(), h.Type(), want)
	}

	sealed, err := c.store.Get(ctx, h)
	if err != nil {
		return 0, fmt.Errorf("load ciphertext: %w", err)
	}
	if sealed == nil {
		return 0, fmt.Errorf("%w: %s", ErrUnknownHandle, h.Hex())
	}

	typ, value, err := c.sealer.Open(h, sealed)
	if err != nil {
		return 0, err
	}
	if typ != want {
		return 0, fmt.Errorf("%w: sealed %s under %s handle", ErrTypeMismatch, typ, want)
	}
	return value, nil
}

func (c *Coprocessor) persist(ctx context.Context, h domain.Handle, value uint64) (domain.Handle, error) {
	sealed, err := c.sealer.Seal(h, h.Type(), value)
	if err != nil {
		return domain.ZeroHandle, err
	}
	if err := c.store.Put(ctx, h, sealed); err != nil {
		return domain.ZeroHandle, fmt.Errorf("store ciphertext: %w", err)
	}
	return h, nil
}

func (c *Coprocessor) loadPair(ctx context.Context, a, b domain.Handle) (uint64, uint64, error) {
	x, err := c.load(ctx, a, domain.ValueUint64)
	if err != nil {
		return 0, 0, err
	}
	y, err := c.load(ctx, b, domain.ValueUint64)
	if err != nil {
		return 0, 0, err
	}
	return x, y, nil
}

// TrivialEncrypt wraps a public value as a ciphertext.
func (c *Coprocessor) TrivialEncrypt(ctx context.Context, value uint64) (domain.Handle, error) {
	h := computeHandle(c.chainID, opTrivial, domain.ValueUint64, u64Bytes(value))
	return c.persist(ctx, h, value)
}

// Add returns a + b, wrapping modulo 2^64.
func (c *Coprocessor) Add(ctx context.Context, a, b domain.Handle) (domain.Handle, error) {
	x, y, err := c.loadPair(ctx, a, b)
	if err != nil {
		return domain.ZeroHandle, err
	}
	return c.persist(ctx, computeHandle(c.chainID, opAdd, domain.ValueUint64, a[:], b[:]), x+y)
}

// Sub returns a - b, wrapping modulo 2^64.
func (c *Coprocessor) Sub(ctx context.Context, a, b domain.Handle) (domain.Handle, error) {
	x, y, err := c.loadPair(ctx, a, b)
	if err != nil {
		return domain.ZeroHandle, err
	}
	return c.persist(ctx, computeHandle(c.chainID, opSub, domain.ValueUint64, a[:], b[:]), x-y)
}

// Ge returns an ebool handle for a >= b.
func (c *Coprocessor) Ge(ctx context.Context, a, b domain.Handle) (domain.Handle, error) {
	x, y, err := c.loadPair(ctx, a, b)
	if err != nil {
		return domain.ZeroHandle, err
	}
	var bit uint64
	if x >= y {
		bit = 1
	}
	return c.persist(ctx, computeHandle(c.chainID, opGe, domain.ValueBool, a[:], b[:]), bit)
}

// Select picks ifTrue or ifFalse under an encrypted condition.
func (c *Coprocessor) Select(ctx context.Context, cond, ifTrue, ifFalse domain.Handle) (domain.Handle, error) {
	bit, err := c.load(ctx, cond, domain.ValueBool)
	if err != nil {
		return domain.ZeroHandle, err
	}
	x, y, err := c.loadPair(ctx, ifTrue, ifFalse)
	if err != nil {
		return domain.ZeroHandle, err
	}
	value := y
	if bit != 0 {
		value = x
	}
	h := computeHandle(c.chainID, opSelect, domain.ValueUint64, cond[:], ifTrue[:], ifFalse[:])
	return c.persist(ctx, h, value)
}

// VerifyInput checks the attestation for handle and consumes it. Any failure
// is reported as an invalid proof.
func (c *Coprocessor) VerifyInput(ctx context.Context, in ports.InputContext, handle domain.Handle, proof []byte) (domain.Handle, error) {
	if handle.IsZero() || handle.Type() != domain.ValueUint64 {
		return domain.ZeroHandle, apperror.ErrInvalidProof(fmt.Errorf("%w: input must be a non-zero euint64 handle", ErrTypeMismatch))
	}
	if err := c.signer.Verify(in, handle, proof); err != nil {
		return domain.ZeroHandle, apperror.ErrInvalidProof(err)
	}

	sealed, err := c.store.Get(ctx, handle)
	if err != nil {
		return domain.ZeroHandle, apperror.ErrCoprocessorFailure(err)
	}
	if sealed == nil {
		return domain.ZeroHandle, apperror.ErrInvalidProof(ErrUnknownHandle)
	}

	fresh, err := c.nonces.CheckAndSet(ctx, proofScopePrefix+in.Sender.Hex(), hex.EncodeToString(crypto.Keccak256(proof)), 0)
	if err != nil {
		return domain.ZeroHandle, apperror.ErrCoprocessorFailure(fmt.Errorf("record input proof: %w", err))
	}
	if !fresh {
		return domain.ZeroHandle, apperror.ErrInvalidProof(ErrProofReplayed)
	}

	return handle, nil
}

// Allow adds account to the handle's access list.
func (c *Coprocessor) Allow(ctx context.Context, handle domain.Handle, account common.Address) error {
	if handle.IsZero() {
		return nil
	}
	return c.store.Allow(ctx, handle, account)
}

// EncryptInput encrypts value for (contract, sender) and issues its proof.
func (c *Coprocessor) EncryptInput(ctx context.Context, in ports.InputContext, value uint64) (*domain.EncryptedInput, error) {
	salt := make([]byte, 32)
	if _, err := io.ReadFull(rand.Reader, salt); err != nil {
		return nil, fmt.Errorf("generate input salt: %w", err)
	}

	h, err := c.persist(ctx, inputHandle(c.chainID, salt, in.Contract, in.Sender), value)
	if err != nil {
		return nil, err
	}
	if err := c.store.Allow(ctx, h, in.Sender); err != nil {
		return nil, fmt.Errorf("allow input: %w", err)
	}

	proof, err := c.signer.Sign(in, h)
	if err != nil {
		return nil, err
	}

	c.log.Debug().Str("handle", h.Hex()).Str("sender", in.Sender.Hex()).Msg("encrypted input issued")
	return &domain.EncryptedInput{Handle: h, Proof: proof}, nil
}

// UserDecrypt reveals a handle to an account on its access list. The zero
// handle decrypts to 0 for anyone.
func (c *Coprocessor) UserDecrypt(ctx context.Context, handle domain.Handle, requester common.Address) (uint64, error) {
	if handle.IsZero() {
		return 0, nil
	}

	allowed, err := c.store.IsAllowed(ctx, handle, requester)
	if err != nil {
		return 0, apperror.ErrCoprocessorFailure(err)
	}
	if !allowed {
		return 0, apperror.ErrHandleNotAllowed()
	}

	value, err := c.load(ctx, handle, handle.Type())
	if err != nil {
		if errors.Is(err, ErrUnknownHandle) {
			return 0, apperror.ErrNotFound("Ciphertext")
		}
		return 0, apperror.ErrCoprocessorFailure(err)
	}
	return value, nil
}

// DecryptUnchecked reveals any handle, bypassing the access list. It is the
// operator view used by local tooling and tests.
func (c *Coprocessor) DecryptUnchecked(ctx context.Context, handle domain.Handle) (uint64, error) {
	return c.load(ctx, handle, handle.Type())
}
