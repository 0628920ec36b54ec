package postgres

import (
	"context"
	"fmt"

	"zkvault/internal/core/domain"
	"zkvault/internal/core/ports"
	"zkvault/pkg/apperror"

	"github.com/ethereum/go-ethereum/common"
	"github.com/google/uuid"
)

// ledgerLockKey is the advisory lock that serializes every ledger write.
const ledgerLockKey int64 = 0x7a6b7661756c74 // "zkvault"

// Transactor implements ports.Transactor on a pgx pool.
type Transactor struct {
	pool Pool
}

// NewTransactor creates a new Transactor wrapping the connection pool.
func NewTransactor(pool Pool) *Transactor {
	return &Transactor{pool: pool}
}

var _ ports.Transactor = (*Transactor)(nil)

type pgTx struct {
	balances  *BalanceRepo
	positions *PositionRepo
	supply    *SupplyRepo
	receipts  *ReceiptRepo
}

func (t *pgTx) Balances() ports.BalanceStore   { return t.balances }
func (t *pgTx) Positions() ports.PositionStore { return t.positions }
func (t *pgTx) Supply() ports.SupplyStore      { return t.supply }
func (t *pgTx) Receipts() ports.ReceiptStore   { return t.receipts }

// WithinTx begins a transaction, takes the ledger advisory lock and runs fn.
// The transaction commits only if fn returns nil.
func (t *Transactor) WithinTx(ctx context.Context, fn func(ctx context.Context, tx ports.Tx) error) error {
	if ports.InTx(ctx) {
		return apperror.ErrReentrantCall()
	}

	dbTx, err := t.pool.Begin(ctx)
	if err != nil {
		return apperror.ErrDatabaseError(fmt.Errorf("begin tx: %w", err))
	}
	committed := false
	defer func() {
		if !committed {
			_ = dbTx.Rollback(ctx)
		}
	}()

	if _, err := dbTx.Exec(ctx, `SELECT pg_advisory_xact_lock($1)`, ledgerLockKey); err != nil {
		return apperror.ErrDatabaseError(fmt.Errorf("acquire ledger lock: %w", err))
	}

	tx := &pgTx{
		balances:  newLockingBalanceRepo(dbTx),
		positions: newLockingPositionRepo(dbTx),
		supply:    newLockingSupplyRepo(dbTx),
		receipts:  NewReceiptRepo(dbTx),
	}
	if err := fn(ports.MarkTx(ctx), tx); err != nil {
		return err
	}

	if err := dbTx.Commit(ctx); err != nil {
		return apperror.ErrDatabaseError(fmt.Errorf("commit tx: %w", err))
	}
	committed = true
	return nil
}

// Reader implements ports.StateReader with non-locking reads on the pool.
type Reader struct {
	balances  *BalanceRepo
	positions *PositionRepo
	supply    *SupplyRepo
	receipts  *ReceiptRepo
}

func NewReader(db DBTX) *Reader {
	return &Reader{
		balances:  NewBalanceRepo(db),
		positions: NewPositionRepo(db),
		supply:    NewSupplyRepo(db),
		receipts:  NewReceiptRepo(db),
	}
}

var _ ports.StateReader = (*Reader)(nil)

func (r *Reader) Balance(ctx context.Context, account common.Address) (domain.Handle, error) {
	return r.balances.Get(ctx, account)
}

func (r *Reader) Position(ctx context.Context, account common.Address) (*domain.StakePosition, error) {
	return r.positions.Get(ctx, account)
}

func (r *Reader) Supply(ctx context.Context) (domain.Handle, error) {
	return r.supply.Get(ctx)
}

func (r *Reader) Receipt(ctx context.Context, id uuid.UUID) (*domain.Receipt, error) {
	return r.receipts.GetByID(ctx, id)
}

func (r *Reader) ReceiptsByAccount(ctx context.Context, account common.Address, limit int) ([]domain.Receipt, error) {
	return r.receipts.ListByAccount(ctx, account, limit)
}
