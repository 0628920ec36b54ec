package postgres

import (
	"context"
	"errors"
	"fmt"

	"zkvault/internal/core/domain"
	"zkvault/internal/core/ports"

	"github.com/jackc/pgx/v5"
)

// SupplyRepo implements ports.SupplyStore on the single-row token_supply table.
type SupplyRepo struct {
	db        DBTX
	forUpdate bool
}

func NewSupplyRepo(db DBTX) *SupplyRepo {
	return &SupplyRepo{db: db}
}

func newLockingSupplyRepo(tx pgx.Tx) *SupplyRepo {
	return &SupplyRepo{db: tx, forUpdate: true}
}

var _ ports.SupplyStore = (*SupplyRepo)(nil)

func (r *SupplyRepo) Get(ctx context.Context) (domain.Handle, error) {
	query := `SELECT handle FROM token_supply WHERE id = 1`
	if r.forUpdate {
		query += ` FOR UPDATE`
	}

	var raw []byte
	if err := r.db.QueryRow(ctx, query).Scan(&raw); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return domain.ZeroHandle, nil
		}
		return domain.ZeroHandle, fmt.Errorf("get supply: %w", err)
	}

	h, err := domain.HandleFromBytes(raw)
	if err != nil {
		return domain.ZeroHandle, fmt.Errorf("decode supply handle: %w", err)
	}
	return h, nil
}

func (r *SupplyRepo) Put(ctx context.Context, supply domain.Handle) error {
	query := `INSERT INTO token_supply (id, handle, updated_at) VALUES (1, $1, NOW())
		ON CONFLICT (id) DO UPDATE SET handle = EXCLUDED.handle, updated_at = NOW()`

	if _, err := r.db.Exec(ctx, query, supply.Bytes()); err != nil {
		return fmt.Errorf("upsert supply: %w", err)
	}
	return nil
}
