package apperror

import (
	"fmt"
	"net/http"
)

// AppError is a structured error that maps to HTTP responses.
type AppError struct {
	Code       string         `json:"error_code"`
	Message    string         `json:"message"`
	HTTPStatus int            `json:"-"`
	Details    map[string]any `json:"details,omitempty"`
	Err        error          `json:"-"` // Wrapped internal error (not exposed to client)
}

func (e *AppError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("[%s] %s: %v", e.Code, e.Message, e.Err)
	}
	return fmt.Sprintf("[%s] %s", e.Code, e.Message)
}

func (e *AppError) Unwrap() error {
	return e.Err
}

// WithDetail attaches a client-visible detail to the error.
func (e *AppError) WithDetail(key string, value any) *AppError {
	if e.Details == nil {
		e.Details = make(map[string]any)
	}
	e.Details[key] = value
	return e
}

// New creates a new AppError.
func New(code string, message string, httpStatus int) *AppError {
	return &AppError{
		Code:       code,
		Message:    message,
		HTTPStatus: httpStatus,
	}
}

// Wrap wraps an internal error with an AppError.
func Wrap(code string, message string, httpStatus int, err error) *AppError {
	return &AppError{
		Code:       code,
		Message:    message,
		HTTPStatus: httpStatus,
		Err:        err,
	}
}

// HasCode reports whether any AppError in err's chain carries code.
func HasCode(err error, code string) bool {
	for err != nil {
		if appErr, ok := err.(*AppError); ok && appErr.Code == code {
			return true
		}
		u, ok := err.(interface{ Unwrap() error })
		if !ok {
			return false
		}
		err = u.Unwrap()
	}
	return false
}

const (
	CodeInvalidProof        = "PROOF_001"
	CodeReceiverRejected    = "XFER_001"
	CodeMalformedPayload    = "XFER_002"
	CodeReentrantCall       = "XFER_003"
	CodeStakeLocked         = "VAULT_001"
	CodeNoActiveStake       = "VAULT_002"
	CodeInvalidLockDuration = "VAULT_003"
)

// ---- Security & Authentication (SEC) ----

func ErrInvalidAccessKey() *AppError {
	return New("SEC_001", "Invalid access key", http.StatusUnauthorized)
}

func ErrInvalidSignature() *AppError {
	return New("SEC_002", "Invalid signature", http.StatusUnauthorized)
}

func ErrTimestampExpired() *AppError {
	return New("SEC_003", "Request timestamp expired", http.StatusForbidden)
}

func ErrNonceUsed() *AppError {
	return New("SEC_004", "Nonce has already been used", http.StatusForbidden)
}

// ---- Confidential inputs (PROOF) ----

func ErrInvalidProof(err error) *AppError {
	return Wrap(CodeInvalidProof, "Encrypted input proof is invalid", http.StatusBadRequest, err)
}

// ---- Transfers (XFER) ----

// ErrReceiverRejected reports that the receiver hook refused a transfer.
// The cause is kept in the chain so callers can inspect it with HasCode.
func ErrReceiverRejected(cause error) *AppError {
	e := Wrap(CodeReceiverRejected, "Receiver rejected the transfer", http.StatusUnprocessableEntity, cause)
	if inner, ok := cause.(*AppError); ok {
		e.WithDetail("reason", inner.Code)
	}
	return e
}

func ErrMalformedPayload(err error) *AppError {
	return Wrap(CodeMalformedPayload, "Transfer payload is malformed", http.StatusBadRequest, err)
}

func ErrReentrantCall() *AppError {
	return New(CodeReentrantCall, "Re-entrant call rejected", http.StatusConflict)
}

// ---- Staking vault (VAULT) ----

func ErrStakeLocked(unlockTime uint64) *AppError {
	return New(CodeStakeLocked, "Stake is still locked", http.StatusLocked).
		WithDetail("unlock_time", unlockTime)
}

func ErrNoActiveStake() *AppError {
	return New(CodeNoActiveStake, "No active stake", http.StatusNotFound)
}

func ErrInvalidLockDuration(message string) *AppError {
	return New(CodeInvalidLockDuration, message, http.StatusBadRequest)
}

// ---- Access control (ACL) ----

func ErrHandleNotAllowed() *AppError {
	return New("ACL_001", "Caller is not allowed to access this ciphertext", http.StatusForbidden)
}

// ---- Lookups (REQ) ----

func ErrNotFound(entity string) *AppError {
	return New("REQ_002", fmt.Sprintf("%s not found", entity), http.StatusNotFound)
}

// ---- Authentication (AUTH) ----

func ErrInvalidCredentials() *AppError {
	return New("AUTH_001", "Invalid credentials", http.StatusUnauthorized)
}

func ErrInvalidToken() *AppError {
	return New("AUTH_003", "Invalid or expired token", http.StatusUnauthorized)
}

// ---- Rate Limiting (RATE) ----

func ErrRateLimitExceeded() *AppError {
	return New("RATE_001", "Rate limit exceeded", http.StatusTooManyRequests)
}

// ---- System & Infrastructure (SYS) ----

func ErrDatabaseError(err error) *AppError {
	return Wrap("SYS_001", "Internal database error", http.StatusInternalServerError, err)
}

func ErrCoprocessorFailure(err error) *AppError {
	return Wrap("SYS_003", "Confidential computation failure", http.StatusInternalServerError, err)
}

// InternalError wraps an internal error as a SYS_001 error.
func InternalError(err error) *AppError {
	return Wrap("SYS_001", "Internal server error", http.StatusInternalServerError, err)
}

// Validation returns a REQ_001 validation error.
func Validation(message string) *AppError {
	return New("REQ_001", message, http.StatusBadRequest)
}
