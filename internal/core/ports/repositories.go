package ports

import (
	"context"

	"zkvault/internal/core/domain"

	"github.com/ethereum/go-ethereum/common"
	"github.com/google/uuid"
)

// BalanceStore reads and writes encrypted balances inside a transaction.
// Get returns the zero handle for accounts that were never credited.
type BalanceStore interface {
	Get(ctx context.Context, account common.Address) (domain.Handle, error)
	Put(ctx context.Context, account common.Address, balance domain.Handle) error
}

// PositionStore reads and writes stake positions inside a transaction.
// Get returns the canonical inactive position for unknown accounts.
type PositionStore interface {
	Get(ctx context.Context, account common.Address) (*domain.StakePosition, error)
	Put(ctx context.Context, position *domain.StakePosition) error
}

// SupplyStore reads and writes the encrypted total supply. Get returns the
// zero handle before the first mint.
type SupplyStore interface {
	Get(ctx context.Context) (domain.Handle, error)
	Put(ctx context.Context, supply domain.Handle) error
}

// ReceiptStore appends receipts inside a transaction.
type ReceiptStore interface {
	Create(ctx context.Context, receipt *domain.Receipt) error
}

// Tx is the set of stores bound to one all-or-nothing unit of work.
type Tx interface {
	Balances() BalanceStore
	Positions() PositionStore
	Supply() SupplyStore
	Receipts() ReceiptStore
}

// Transactor runs fn inside a serialized transaction. If fn returns an
// error every write made through tx is discarded. Calling WithinTx with a
// context that already carries a transaction fails with a re-entrancy error.
type Transactor interface {
	WithinTx(ctx context.Context, fn func(ctx context.Context, tx Tx) error) error
}

// StateReader serves committed state outside of any transaction.
type StateReader interface {
	Balance(ctx context.Context, account common.Address) (domain.Handle, error)
	Position(ctx context.Context, account common.Address) (*domain.StakePosition, error)
	Supply(ctx context.Context) (domain.Handle, error)
	// Receipt returns nil, nil when id is unknown.
	Receipt(ctx context.Context, id uuid.UUID) (*domain.Receipt, error)
	ReceiptsByAccount(ctx context.Context, account common.Address, limit int) ([]domain.Receipt, error)
}

// CiphertextStore persists sealed ciphertexts and the handle access list.
type CiphertextStore interface {
	Put(ctx context.Context, handle domain.Handle, sealed []byte) error
	// Get returns nil, nil when the handle is unknown.
	Get(ctx context.Context, handle domain.Handle) ([]byte, error)
	Allow(ctx context.Context, handle domain.Handle, account common.Address) error
	IsAllowed(ctx context.Context, handle domain.Handle, account common.Address) (bool, error)
}

// AuditRepository persists audit log entries.
type AuditRepository interface {
	Create(ctx context.Context, entry *domain.AuditLog) error
}
