package postgres

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"time"

	"zkvault/internal/core/domain"
	"zkvault/internal/core/ports"

	"github.com/ethereum/go-ethereum/common"
	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
)

// ReceiptRepo implements ports.ReceiptStore plus receipt lookups.
type ReceiptRepo struct {
	db DBTX
}

func NewReceiptRepo(db DBTX) *ReceiptRepo {
	return &ReceiptRepo{db: db}
}

var _ ports.ReceiptStore = (*ReceiptRepo)(nil)

const receiptColumns = `id, kind, from_account, to_account, amount, minted_value::text, created_at`

func optionalNumeric(v *uint64) *string {
	if v == nil {
		return nil
	}
	s := strconv.FormatUint(*v, 10)
	return &s
}

func parseOptionalNumeric(s *string) (*uint64, error) {
	if s == nil {
		return nil, nil
	}
	v, err := strconv.ParseUint(*s, 10, 64)
	if err != nil {
		return nil, err
	}
	return &v, nil
}

// Create inserts a receipt.
func (r *ReceiptRepo) Create(ctx context.Context, rc *domain.Receipt) error {
	query := `INSERT INTO receipts (id, kind, from_account, to_account, amount, minted_value, created_at)
		VALUES ($1, $2, $3, $4, $5, $6::numeric, $7)`

	_, err := r.db.Exec(ctx, query,
		rc.ID, string(rc.Kind), rc.From.Bytes(), rc.To.Bytes(), rc.Amount.Bytes(),
		optionalNumeric(rc.MintedValue), rc.CreatedAt,
	)
	if err != nil {
		return fmt.Errorf("insert receipt: %w", err)
	}
	return nil
}

func scanReceipt(row pgx.Row) (*domain.Receipt, error) {
	var (
		rc        domain.Receipt
		kind      string
		from, to  []byte
		amount    []byte
		minted    *string
		createdAt time.Time
	)
	if err := row.Scan(&rc.ID, &kind, &from, &to, &amount, &minted, &createdAt); err != nil {
		return nil, err
	}

	h, err := domain.HandleFromBytes(amount)
	if err != nil {
		return nil, fmt.Errorf("decode receipt amount: %w", err)
	}
	if rc.MintedValue, err = parseOptionalNumeric(minted); err != nil {
		return nil, fmt.Errorf("decode minted value: %w", err)
	}

	rc.Kind = domain.ReceiptKind(kind)
	rc.From = common.BytesToAddress(from)
	rc.To = common.BytesToAddress(to)
	rc.Amount = h
	rc.CreatedAt = createdAt
	return &rc, nil
}

// GetByID returns nil, nil when no receipt has id.
func (r *ReceiptRepo) GetByID(ctx context.Context, id uuid.UUID) (*domain.Receipt, error) {
	rc, err := scanReceipt(r.db.QueryRow(ctx, `SELECT `+receiptColumns+` FROM receipts WHERE id = $1`, id))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, nil
		}
		return nil, fmt.Errorf("get receipt by id: %w", err)
	}
	return rc, nil
}

// ListByAccount returns receipts where account is sender or recipient, newest first.
func (r *ReceiptRepo) ListByAccount(ctx context.Context, account common.Address, limit int) ([]domain.Receipt, error) {
	query := `SELECT ` + receiptColumns + ` FROM receipts
		WHERE from_account = $1 OR to_account = $1
		ORDER BY created_at DESC LIMIT $2`

	rows, err := r.db.Query(ctx, query, account.Bytes(), limit)
	if err != nil {
		return nil, fmt.Errorf("list receipts: %w", err)
	}
	defer rows.Close()

	out := make([]domain.Receipt, 0)
	for rows.Next() {
		rc, err := scanReceipt(rows)
		if err != nil {
			return nil, fmt.Errorf("scan receipt: %w", err)
		}
		out = append(out, *rc)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate receipts: %w", err)
	}
	return out, nil
}
