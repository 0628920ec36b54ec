package postgres

import (
	"context"
	"errors"
	"fmt"

	"zkvault/internal/core/domain"
	"zkvault/internal/core/ports"

	"github.com/ethereum/go-ethereum/common"
	"github.com/jackc/pgx/v5"
)

// BalanceRepo implements ports.BalanceStore. Inside a transaction reads take
// a row lock so the read-modify-write of a balance is not interleaved.
type BalanceRepo struct {
	db        DBTX
	forUpdate bool
}

// NewBalanceRepo creates a repo for plain reads on db.
func NewBalanceRepo(db DBTX) *BalanceRepo {
	return &BalanceRepo{db: db}
}

func newLockingBalanceRepo(tx pgx.Tx) *BalanceRepo {
	return &BalanceRepo{db: tx, forUpdate: true}
}

var _ ports.BalanceStore = (*BalanceRepo)(nil)

// Get returns the zero handle when the account has no row.
func (r *BalanceRepo) Get(ctx context.Context, account common.Address) (domain.Handle, error) {
	query := `SELECT handle FROM balances WHERE account = $1`
	if r.forUpdate {
		query += ` FOR UPDATE`
	}

	var raw []byte
	err := r.db.QueryRow(ctx, query, account.Bytes()).Scan(&raw)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return domain.ZeroHandle, nil
		}
		return domain.ZeroHandle, fmt.Errorf("get balance: %w", err)
	}

	h, err := domain.HandleFromBytes(raw)
	if err != nil {
		return domain.ZeroHandle, fmt.Errorf("decode balance handle: %w", err)
	}
	return h, nil
}

// Put upserts the balance handle for account.
func (r *BalanceRepo) Put(ctx context.Context, account common.Address, balance domain.Handle) error {
	query := `INSERT INTO balances (account, handle, updated_at) VALUES ($1, $2, NOW())
		ON CONFLICT (account) DO UPDATE SET handle = EXCLUDED.handle, updated_at = NOW()`

	if _, err := r.db.Exec(ctx, query, account.Bytes(), balance.Bytes()); err != nil {
		return fmt.Errorf("upsert balance: %w", err)
	}
	return nil
}
