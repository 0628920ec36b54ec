package memory

import (
	"context"
	"errors"
	"testing"
	"time"

	"zkvault/internal/core/domain"
	"zkvault/internal/core/ports"
	"zkvault/pkg/apperror"

	"github.com/ethereum/go-ethereum/common"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var (
	alice = common.HexToAddress("0xa11ce")
	bob   = common.HexToAddress("0xb0b")
)

func handle(b byte) domain.Handle {
	var h domain.Handle
	h[0] = b
	h[30] = byte(domain.ValueUint64)
	return h
}

func TestStore_CommitPersistsWrites(t *testing.T) {
	s := NewStore()
	ctx := context.Background()

	err := s.WithinTx(ctx, func(ctx context.Context, tx ports.Tx) error {
		require.NoError(t, tx.Balances().Put(ctx, alice, handle(1)))
		require.NoError(t, tx.Positions().Put(ctx, &domain.StakePosition{
			Account: alice, StakedAmount: handle(2), UnlockTime: 50, Active: true,
		}))
		return tx.Receipts().Create(ctx, domain.NewReceipt(domain.ReceiptKindMint, common.Address{}, alice, handle(1), time.Now()))
	})
	require.NoError(t, err)

	bal, err := s.Balance(ctx, alice)
	require.NoError(t, err)
	assert.Equal(t, handle(1), bal)

	pos, err := s.Position(ctx, alice)
	require.NoError(t, err)
	assert.True(t, pos.Active)
	assert.Equal(t, uint64(50), pos.UnlockTime)

	receipts, err := s.ReceiptsByAccount(ctx, alice, 10)
	require.NoError(t, err)
	assert.Len(t, receipts, 1)
}

func TestStore_RollbackDiscardsWrites(t *testing.T) {
	s := NewStore()
	ctx := context.Background()

	require.NoError(t, s.WithinTx(ctx, func(ctx context.Context, tx ports.Tx) error {
		return tx.Balances().Put(ctx, alice, handle(1))
	}))

	boom := errors.New("hook rejected")
	err := s.WithinTx(ctx, func(ctx context.Context, tx ports.Tx) error {
		require.NoError(t, tx.Balances().Put(ctx, alice, handle(9)))
		require.NoError(t, tx.Balances().Put(ctx, bob, handle(8)))

		// The transaction sees its own writes.
		h, _ := tx.Balances().Get(ctx, alice)
		assert.Equal(t, handle(9), h)

		require.NoError(t, tx.Receipts().Create(ctx, domain.NewReceipt(domain.ReceiptKindTransfer, alice, bob, handle(9), time.Now())))
		return boom
	})
	assert.ErrorIs(t, err, boom)

	bal, _ := s.Balance(ctx, alice)
	assert.Equal(t, handle(1), bal)
	bal, _ = s.Balance(ctx, bob)
	assert.True(t, bal.IsZero())
	assert.Equal(t, []common.Address{alice}, s.Accounts())

	receipts, _ := s.ReceiptsByAccount(ctx, bob, 0)
	assert.Empty(t, receipts)
}

func TestStore_NestedTxIsRejected(t *testing.T) {
	s := NewStore()
	ctx := context.Background()

	var inner error
	err := s.WithinTx(ctx, func(ctx context.Context, tx ports.Tx) error {
		inner = s.WithinTx(ctx, func(context.Context, ports.Tx) error { return nil })
		return inner
	})

	assert.True(t, apperror.HasCode(inner, apperror.CodeReentrantCall))
	assert.True(t, apperror.HasCode(err, apperror.CodeReentrantCall))
}

func TestStore_UnknownAccountsReadAsEmpty(t *testing.T) {
	s := NewStore()
	ctx := context.Background()

	bal, err := s.Balance(ctx, alice)
	require.NoError(t, err)
	assert.True(t, bal.IsZero())

	pos, err := s.Position(ctx, alice)
	require.NoError(t, err)
	assert.Equal(t, domain.InactivePosition(alice), pos)

	require.NoError(t, s.WithinTx(ctx, func(ctx context.Context, tx ports.Tx) error {
		p, err := tx.Positions().Get(ctx, bob)
		require.NoError(t, err)
		assert.Equal(t, domain.InactivePosition(bob), p)
		return nil
	}))
}

func TestStore_PositionIsCopied(t *testing.T) {
	s := NewStore()
	ctx := context.Background()

	p := &domain.StakePosition{Account: alice, StakedAmount: handle(3), UnlockTime: 10, Active: true}
	require.NoError(t, s.WithinTx(ctx, func(ctx context.Context, tx ports.Tx) error {
		return tx.Positions().Put(ctx, p)
	}))
	p.UnlockTime = 999

	got, _ := s.Position(ctx, alice)
	assert.Equal(t, uint64(10), got.UnlockTime)
}

func TestStore_ReceiptLookup(t *testing.T) {
	s := NewStore()
	ctx := context.Background()

	first := domain.NewReceipt(domain.ReceiptKindMint, common.Address{}, alice, handle(1), time.Now())
	second := domain.NewReceipt(domain.ReceiptKindTransfer, alice, bob, handle(2), time.Now())
	require.NoError(t, s.WithinTx(ctx, func(ctx context.Context, tx ports.Tx) error {
		require.NoError(t, tx.Receipts().Create(ctx, first))
		return tx.Receipts().Create(ctx, second)
	}))

	got, err := s.Receipt(ctx, second.ID)
	require.NoError(t, err)
	require.NotNil(t, got)
	assert.Equal(t, domain.ReceiptKindTransfer, got.Kind)

	missing, err := s.Receipt(ctx, uuid.New())
	require.NoError(t, err)
	assert.Nil(t, missing)

	list, _ := s.ReceiptsByAccount(ctx, alice, 0)
	require.Len(t, list, 2)
	assert.Equal(t, second.ID, list[0].ID, "newest first")

	list, _ = s.ReceiptsByAccount(ctx, alice, 1)
	assert.Len(t, list, 1)
}

func TestStore_SupplyFollowsTx(t *testing.T) {
	s := NewStore()
	ctx := context.Background()

	require.NoError(t, s.WithinTx(ctx, func(ctx context.Context, tx ports.Tx) error {
		cur, err := tx.Supply().Get(ctx)
		require.NoError(t, err)
		assert.True(t, cur.IsZero())
		return tx.Supply().Put(ctx, handle(4))
	}))

	_ = s.WithinTx(ctx, func(ctx context.Context, tx ports.Tx) error {
		require.NoError(t, tx.Supply().Put(ctx, handle(5)))
		return errors.New("abort")
	})

	got, err := s.Supply(ctx)
	require.NoError(t, err)
	assert.Equal(t, handle(4), got)
}
