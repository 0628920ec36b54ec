package service

import (
	"context"
	"fmt"
	"time"

	"zkvault/internal/core/domain"
	"zkvault/internal/core/ports"
	"zkvault/pkg/apperror"
	"zkvault/pkg/numfmt"

	"github.com/ethereum/go-ethereum/common"
	"github.com/rs/zerolog"
)

// VaultServiceImpl implements the staking vault. It is registered on the
// ledger as the receiver for its own address and keeps custody of staked
// amounts in its positions rather than in a ledger balance.
type VaultServiceImpl struct {
	address    common.Address
	ledger     ports.CustodyLedger
	fhe        ports.FHEBackend
	transactor ports.Transactor
	reader     ports.StateReader
	clock      ports.Clock
	maxLock    uint64
	now        func() time.Time
	log        zerolog.Logger
}

// NewVaultService creates a new VaultServiceImpl. A zero maxLock means the
// lock duration is only bounded by the unlock time fitting in 64 bits.
func NewVaultService(
	address common.Address,
	ledger ports.CustodyLedger,
	fhe ports.FHEBackend,
	transactor ports.Transactor,
	reader ports.StateReader,
	clock ports.Clock,
	maxLock time.Duration,
	log zerolog.Logger,
) *VaultServiceImpl {
	return &VaultServiceImpl{
		address:    address,
		ledger:     ledger,
		fhe:        fhe,
		transactor: transactor,
		reader:     reader,
		clock:      clock,
		maxLock:    uint64(maxLock / time.Second),
		now:        time.Now,
		log:        log,
	}
}

var (
	_ ports.VaultService     = (*VaultServiceImpl)(nil)
	_ ports.TransferReceiver = (*VaultServiceImpl)(nil)
)

func (s *VaultServiceImpl) Address() common.Address {
	return s.address
}

// OnConfidentialTransferReceived books a stake deposit. The payload is the
// ABI encoded lock duration in seconds. A new lock starts from the later of
// now and the current unlock time, so locks never shorten.
func (s *VaultServiceImpl) OnConfidentialTransferReceived(ctx context.Context, tx ports.Tx, from common.Address, amount domain.Handle, payload []byte) (domain.Handle, error) {
	lock, err := domain.DecodeLockPayload(payload)
	if err != nil {
		return domain.ZeroHandle, apperror.ErrMalformedPayload(err)
	}
	if lock == 0 {
		return domain.ZeroHandle, apperror.ErrInvalidLockDuration("Lock duration must be positive")
	}
	if s.maxLock > 0 && lock > s.maxLock {
		return domain.ZeroHandle, apperror.ErrInvalidLockDuration(
			fmt.Sprintf("Lock duration exceeds maximum of %s", numfmt.FormatSeconds(s.maxLock)))
	}
	grants, err := grantsFrom(ctx)
	if err != nil {
		return domain.ZeroHandle, err
	}

	now := s.clock.Now()
	pos, err := tx.Positions().Get(ctx, from)
	if err != nil {
		return domain.ZeroHandle, apperror.ErrDatabaseError(fmt.Errorf("get position: %w", err))
	}

	start := now
	if pos.Active && pos.UnlockTime > now {
		start = pos.UnlockTime
	}
	if start > ^uint64(0)-lock {
		return domain.ZeroHandle, apperror.ErrInvalidLockDuration("Unlock time overflows")
	}

	staked, err := s.fhe.Add(ctx, pos.StakedAmount, amount)
	if err != nil {
		return domain.ZeroHandle, coprocessorError(err)
	}
	pos.StakedAmount = staked
	pos.UnlockTime = start + lock
	pos.Active = true

	if err := tx.Positions().Put(ctx, pos); err != nil {
		return domain.ZeroHandle, apperror.ErrDatabaseError(fmt.Errorf("put position: %w", err))
	}
	grants.allow(staked, from, s.address)

	s.log.Info().
		Str("staker", from.Hex()).
		Uint64("lock_seconds", lock).
		Uint64("unlock_time", pos.UnlockTime).
		Msg("stake locked")
	return amount, nil
}

// GetStake returns the account's position, inactive if it never staked.
func (s *VaultServiceImpl) GetStake(ctx context.Context, account common.Address) (*domain.StakePosition, error) {
	pos, err := s.reader.Position(ctx, account)
	if err != nil {
		return nil, apperror.ErrDatabaseError(fmt.Errorf("get position: %w", err))
	}
	return pos, nil
}

// Withdraw releases the caller's whole stake once it is unlocked.
func (s *VaultServiceImpl) Withdraw(ctx context.Context, caller common.Address) (*domain.Receipt, error) {
	var (
		receipt  *domain.Receipt
		unlockAt uint64
	)
	ctx, grants := withGrants(ctx)
	err := s.transactor.WithinTx(ctx, func(ctx context.Context, tx ports.Tx) error {
		now := s.clock.Now()
		pos, err := tx.Positions().Get(ctx, caller)
		if err != nil {
			return apperror.ErrDatabaseError(fmt.Errorf("get position: %w", err))
		}
		if !pos.Active {
			return apperror.ErrNoActiveStake()
		}
		if !pos.Unlocked(now) {
			return apperror.ErrStakeLocked(pos.UnlockTime)
		}

		released := pos.StakedAmount
		unlockAt = pos.UnlockTime
		pos.Reset()
		if err := tx.Positions().Put(ctx, pos); err != nil {
			return apperror.ErrDatabaseError(fmt.Errorf("put position: %w", err))
		}

		if err := s.ledger.Credit(ctx, tx, s.address, caller, released); err != nil {
			return err
		}

		receipt = domain.NewReceipt(domain.ReceiptKindWithdraw, s.address, caller, released, s.now())
		if err := tx.Receipts().Create(ctx, receipt); err != nil {
			return apperror.ErrDatabaseError(fmt.Errorf("create receipt: %w", err))
		}
		return grants.flush(ctx, s.fhe)
	})
	if err != nil {
		return nil, err
	}

	s.log.Info().
		Str("receipt_id", receipt.ID.String()).
		Str("staker", caller.Hex()).
		Uint64("unlock_time", unlockAt).
		Msg("stake withdrawn")
	return receipt, nil
}
