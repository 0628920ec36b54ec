package ports

import (
	"context"
	"time"

	"zkvault/internal/core/domain"

	"github.com/ethereum/go-ethereum/common"
	"github.com/google/uuid"
)

// Clock supplies the host time in unix seconds.
type Clock interface {
	Now() uint64
}

// SignatureService signs and verifies issuer requests with HMAC-SHA256.
type SignatureService interface {
	Sign(secretKey string, payload string) string
	Verify(secretKey string, payload string, signature string) bool
	// BuildCanonicalString commits to the request body by its SHA-256 digest.
	BuildCanonicalString(method, path string, timestamp int64, nonce string, body []byte) string
}

// TokenService handles JWT token operations.
type TokenService interface {
	Generate(account common.Address) (string, time.Time, error)
	Validate(tokenString string) (*TokenClaims, error)
}

// TokenClaims holds the parsed JWT claims.
type TokenClaims struct {
	Account common.Address
}

// IdempotencyCache stores write responses keyed by client idempotency key.
type IdempotencyCache interface {
	Get(ctx context.Context, key string) ([]byte, error) // nil when absent
	Set(ctx context.Context, key string, value []byte, ttl time.Duration) error
}

// NonceStore manages single-use values for replay prevention.
type NonceStore interface {
	// CheckAndSet records nonce under scope. It returns true if the nonce
	// was new, false if it had already been used.
	CheckAndSet(ctx context.Context, scope string, nonce string, ttl time.Duration) (bool, error)
}

// RateLimitResult holds the outcome of a rate limit check.
type RateLimitResult struct {
	Allowed   bool
	Limit     int64
	Remaining int64
	ResetAt   int64 // Unix timestamp when the window resets
}

// RateLimitStore implements a fixed-window counter.
type RateLimitStore interface {
	Allow(ctx context.Context, key string, limit int64, window time.Duration) (*RateLimitResult, error)
}

// --- Confidential computation ---

// InputContext binds an encrypted input to the contract and sender it was made for.
type InputContext struct {
	Contract common.Address
	Sender   common.Address
}

// FHEBackend performs blind arithmetic over ciphertext handles. The zero
// handle is accepted wherever an euint64 is expected and reads as 0.
type FHEBackend interface {
	TrivialEncrypt(ctx context.Context, value uint64) (domain.Handle, error)
	Add(ctx context.Context, a, b domain.Handle) (domain.Handle, error)
	Sub(ctx context.Context, a, b domain.Handle) (domain.Handle, error)
	// Ge returns an ebool handle for a >= b.
	Ge(ctx context.Context, a, b domain.Handle) (domain.Handle, error)
	// Select returns ifTrue when cond decrypts to true, ifFalse otherwise.
	Select(ctx context.Context, cond, ifTrue, ifFalse domain.Handle) (domain.Handle, error)
	// VerifyInput checks the proof for handle under in and consumes it.
	VerifyInput(ctx context.Context, in InputContext, handle domain.Handle, proof []byte) (domain.Handle, error)
	Allow(ctx context.Context, handle domain.Handle, account common.Address) error
}

// ConfidentialOracle is the client-facing side of the coprocessor.
type ConfidentialOracle interface {
	EncryptInput(ctx context.Context, in InputContext, value uint64) (*domain.EncryptedInput, error)
	// UserDecrypt reveals a handle to an account on its access list.
	UserDecrypt(ctx context.Context, handle domain.Handle, requester common.Address) (uint64, error)
}

// --- Service Ports (Business Logic) ---

// TransferRequest carries a confidential transfer from the caller.
type TransferRequest struct {
	Caller          common.Address
	To              common.Address
	EncryptedAmount domain.Handle
	Proof           []byte
	Payload         []byte
}

// MintRequest carries a privileged plaintext mint.
type MintRequest struct {
	To     common.Address
	Amount uint64
}

// LedgerService defines the confidential token ledger.
type LedgerService interface {
	Metadata() domain.TokenMetadata
	Mint(ctx context.Context, req MintRequest) (*domain.Receipt, error)
	ConfidentialTotalSupply(ctx context.Context) (domain.Handle, error)
	ConfidentialBalanceOf(ctx context.Context, account common.Address) (domain.Handle, error)
	ConfidentialTransfer(ctx context.Context, req TransferRequest) (*domain.Receipt, error)
	ConfidentialTransferAndNotify(ctx context.Context, req TransferRequest) (*domain.Receipt, error)
	GetReceipt(ctx context.Context, caller common.Address, id uuid.UUID) (*domain.Receipt, error)
	ListReceipts(ctx context.Context, caller common.Address, limit int) ([]domain.Receipt, error)
}

// TransferReceiver is notified synchronously by the ledger when it is the
// target of a transfer-and-notify. The returned handle is the amount the
// receiver accepted; an error rejects the whole transfer.
type TransferReceiver interface {
	OnConfidentialTransferReceived(ctx context.Context, tx Tx, from common.Address, amount domain.Handle, payload []byte) (domain.Handle, error)
}

// CustodyLedger lets a registered receiver release custody back to an account.
type CustodyLedger interface {
	Credit(ctx context.Context, tx Tx, custodian, to common.Address, amount domain.Handle) error
}

// VaultService defines the staking vault.
type VaultService interface {
	Address() common.Address
	GetStake(ctx context.Context, account common.Address) (*domain.StakePosition, error)
	Withdraw(ctx context.Context, caller common.Address) (*domain.Receipt, error)
}

// LoginRequest carries a signed login message.
type LoginRequest struct {
	Address   common.Address
	Timestamp int64
	Signature []byte
}

// AuthService exchanges a wallet signature for an access token.
type AuthService interface {
	Login(ctx context.Context, req LoginRequest) (string, time.Time, error) // token, expiry, error
}

// AuditService records audit entries without blocking the caller.
type AuditService interface {
	Log(ctx context.Context, entry *domain.AuditLog)
}
