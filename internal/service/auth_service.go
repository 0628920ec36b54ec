package service

import (
	"context"
	"encoding/hex"
	"fmt"
	"time"

	"zkvault/internal/core/ports"
	"zkvault/pkg/apperror"

	"github.com/ethereum/go-ethereum/accounts"
	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/crypto"
	"github.com/rs/zerolog"
)

const (
	loginMaxDrift   = 60 * time.Second
	loginNonceScope = "login"
)

// LoginMessage is the text a wallet personal-signs to log in.
func LoginMessage(account common.Address, timestamp int64) string {
	return fmt.Sprintf("zkvault-login:%s:%d", account.Hex(), timestamp)
}

// AuthServiceImpl implements ports.AuthService with wallet signatures.
type AuthServiceImpl struct {
	tokenSvc ports.TokenService
	nonces   ports.NonceStore
	now      func() time.Time
	log      zerolog.Logger
}

// NewAuthService creates a new AuthServiceImpl.
func NewAuthService(tokenSvc ports.TokenService, nonces ports.NonceStore, log zerolog.Logger) *AuthServiceImpl {
	return &AuthServiceImpl{
		tokenSvc: tokenSvc,
		nonces:   nonces,
		now:      time.Now,
		log:      log,
	}
}

// Login checks a personal_sign signature over LoginMessage and issues a JWT.
// Each signature is accepted once.
func (s *AuthServiceImpl) Login(ctx context.Context, req ports.LoginRequest) (string, time.Time, error) {
	drift := s.now().Sub(time.Unix(req.Timestamp, 0))
	if drift > loginMaxDrift || drift < -loginMaxDrift {
		return "", time.Time{}, apperror.ErrTimestampExpired()
	}

	signer, err := recoverPersonalSigner(LoginMessage(req.Address, req.Timestamp), req.Signature)
	if err != nil || signer != req.Address {
		return "", time.Time{}, apperror.ErrInvalidCredentials()
	}

	fresh, err := s.nonces.CheckAndSet(ctx, loginNonceScope, hex.EncodeToString(crypto.Keccak256(req.Signature)), 2*loginMaxDrift)
	if err != nil {
		return "", time.Time{}, apperror.InternalError(fmt.Errorf("record login nonce: %w", err))
	}
	if !fresh {
		return "", time.Time{}, apperror.ErrNonceUsed()
	}

	token, expiresAt, err := s.tokenSvc.Generate(req.Address)
	if err != nil {
		return "", time.Time{}, apperror.InternalError(fmt.Errorf("generate token: %w", err))
	}

	s.log.Info().Str("account", req.Address.Hex()).Msg("account logged in")
	return token, expiresAt, nil
}

// recoverPersonalSigner returns the address that produced sig over the
// EIP-191 hash of msg. Both 0/1 and 27/28 recovery ids are accepted.
func recoverPersonalSigner(msg string, sig []byte) (common.Address, error) {
	if len(sig) != crypto.SignatureLength {
		return common.Address{}, fmt.Errorf("signature must be %d bytes", crypto.SignatureLength)
	}
	normalized := make([]byte, len(sig))
	copy(normalized, sig)
	if normalized[crypto.RecoveryIDOffset] >= 27 {
		normalized[crypto.RecoveryIDOffset] -= 27
	}

	pub, err := crypto.SigToPub(accounts.TextHash([]byte(msg)), normalized)
	if err != nil {
		return common.Address{}, err
	}
	return crypto.PubkeyToAddress(*pub), nil
}
