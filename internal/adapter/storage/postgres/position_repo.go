package postgres

import (
	"context"
	"errors"
	"fmt"
	"strconv"

	"zkvault/internal/core/domain"
	"zkvault/internal/core/ports"

	"github.com/ethereum/go-ethereum/common"
	"github.com/jackc/pgx/v5"
)

// PositionRepo implements ports.PositionStore. unlock_time is NUMERIC(20,0)
// to hold the full uint64 range and crosses the wire as text.
type PositionRepo struct {
	db        DBTX
	forUpdate bool
}

func NewPositionRepo(db DBTX) *PositionRepo {
	return &PositionRepo{db: db}
}

func newLockingPositionRepo(tx pgx.Tx) *PositionRepo {
	return &PositionRepo{db: tx, forUpdate: true}
}

var _ ports.PositionStore = (*PositionRepo)(nil)

// Get returns the canonical inactive position when the account has no row.
func (r *PositionRepo) Get(ctx context.Context, account common.Address) (*domain.StakePosition, error) {
	query := `SELECT staked_amount, unlock_time::text, active FROM stake_positions WHERE account = $1`
	if r.forUpdate {
		query += ` FOR UPDATE`
	}

	var (
		raw    []byte
		unlock string
		active bool
	)
	err := r.db.QueryRow(ctx, query, account.Bytes()).Scan(&raw, &unlock, &active)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return domain.InactivePosition(account), nil
		}
		return nil, fmt.Errorf("get stake position: %w", err)
	}

	staked, err := domain.HandleFromBytes(raw)
	if err != nil {
		return nil, fmt.Errorf("decode staked amount: %w", err)
	}
	unlockTime, err := strconv.ParseUint(unlock, 10, 64)
	if err != nil {
		return nil, fmt.Errorf("decode unlock time: %w", err)
	}

	return &domain.StakePosition{
		Account:      account,
		StakedAmount: staked,
		UnlockTime:   unlockTime,
		Active:       active,
	}, nil
}

// Put upserts the position.
func (r *PositionRepo) Put(ctx context.Context, p *domain.StakePosition) error {
	query := `INSERT INTO stake_positions (account, staked_amount, unlock_time, active, updated_at)
		VALUES ($1, $2, $3::numeric, $4, NOW())
		ON CONFLICT (account) DO UPDATE SET
			staked_amount = EXCLUDED.staked_amount,
			unlock_time = EXCLUDED.unlock_time,
			active = EXCLUDED.active,
			updated_at = NOW()`

	_, err := r.db.Exec(ctx, query,
		p.Account.Bytes(), p.StakedAmount.Bytes(), strconv.FormatUint(p.UnlockTime, 10), p.Active,
	)
	if err != nil {
		return fmt.Errorf("upsert stake position: %w", err)
	}
	return nil
}
