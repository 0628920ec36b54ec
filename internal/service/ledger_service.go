package service

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"zkvault/internal/core/domain"
	"zkvault/internal/core/ports"
	"zkvault/pkg/apperror"

	"github.com/ethereum/go-ethereum/common"
	"github.com/google/uuid"
	"github.com/rs/zerolog"
)

// BalancePolicy decides what a transfer moves when the sender's balance is
// smaller than the requested amount.
type BalancePolicy string

const (
	// PolicyClamp moves the sender's whole balance.
	PolicyClamp BalancePolicy = "clamp"
	// PolicyZero moves nothing.
	PolicyZero BalancePolicy = "zero"
)

const (
	defaultReceiptLimit = 20
	maxReceiptLimit     = 100
)

// LedgerServiceImpl implements ports.LedgerService and ports.CustodyLedger.
type LedgerServiceImpl struct {
	meta       domain.TokenMetadata
	fhe        ports.FHEBackend
	transactor ports.Transactor
	reader     ports.StateReader
	policy     BalancePolicy
	receivers  map[common.Address]ports.TransferReceiver
	now        func() time.Time
	log        zerolog.Logger
}

// NewLedgerService creates a new LedgerServiceImpl.
func NewLedgerService(
	meta domain.TokenMetadata,
	fhe ports.FHEBackend,
	transactor ports.Transactor,
	reader ports.StateReader,
	policy BalancePolicy,
	log zerolog.Logger,
) *LedgerServiceImpl {
	if policy == "" {
		policy = PolicyClamp
	}
	return &LedgerServiceImpl{
		meta:       meta,
		fhe:        fhe,
		transactor: transactor,
		reader:     reader,
		policy:     policy,
		receivers:  make(map[common.Address]ports.TransferReceiver),
		now:        time.Now,
		log:        log,
	}
}

var (
	_ ports.LedgerService = (*LedgerServiceImpl)(nil)
	_ ports.CustodyLedger = (*LedgerServiceImpl)(nil)
)

// RegisterReceiver attaches a receiver hook to addr. Receivers must be
// registered before the ledger starts serving requests.
func (s *LedgerServiceImpl) RegisterReceiver(addr common.Address, r ports.TransferReceiver) {
	s.receivers[addr] = r
}

func (s *LedgerServiceImpl) Metadata() domain.TokenMetadata {
	return s.meta
}

// Mint credits a plaintext amount to an account. The amount is added to
// the encrypted total supply first; if that would overflow, nothing is
// minted and the receipt still commits.
func (s *LedgerServiceImpl) Mint(ctx context.Context, req ports.MintRequest) (*domain.Receipt, error) {
	if req.To == (common.Address{}) {
		return nil, apperror.Validation("cannot mint to the zero address")
	}

	ctx, grants := withGrants(ctx)
	var receipt *domain.Receipt
	err := s.transactor.WithinTx(ctx, func(ctx context.Context, tx ports.Tx) error {
		amount, err := s.fhe.TrivialEncrypt(ctx, req.Amount)
		if err != nil {
			return coprocessorError(err)
		}

		minted, err := s.increaseSupply(ctx, tx, amount)
		if err != nil {
			return err
		}
		if err := s.credit(ctx, tx, grants, req.To, minted); err != nil {
			return err
		}
		grants.allow(minted, req.To)

		receipt = domain.NewReceipt(domain.ReceiptKindMint, common.Address{}, req.To, minted, s.now())
		value := req.Amount
		receipt.MintedValue = &value
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
		Str("to", receipt.To.Hex()).
		Uint64("amount", req.Amount).
		Msg("tokens minted")
	return receipt, nil
}

// increaseSupply adds amount to the total supply and returns the amount
// actually minted: amount itself, or encrypted zero on overflow.
func (s *LedgerServiceImpl) increaseSupply(ctx context.Context, tx ports.Tx, amount domain.Handle) (domain.Handle, error) {
	supply, err := tx.Supply().Get(ctx)
	if err != nil {
		return domain.ZeroHandle, apperror.ErrDatabaseError(fmt.Errorf("get supply: %w", err))
	}

	sum, err := s.fhe.Add(ctx, supply, amount)
	if err != nil {
		return domain.ZeroHandle, coprocessorError(err)
	}
	fits, err := s.fhe.Ge(ctx, sum, supply)
	if err != nil {
		return domain.ZeroHandle, coprocessorError(err)
	}
	newSupply, err := s.fhe.Select(ctx, fits, sum, supply)
	if err != nil {
		return domain.ZeroHandle, coprocessorError(err)
	}
	minted, err := s.fhe.Select(ctx, fits, amount, domain.ZeroHandle)
	if err != nil {
		return domain.ZeroHandle, coprocessorError(err)
	}

	if err := tx.Supply().Put(ctx, newSupply); err != nil {
		return domain.ZeroHandle, apperror.ErrDatabaseError(fmt.Errorf("put supply: %w", err))
	}
	return minted, nil
}

func (s *LedgerServiceImpl) ConfidentialTotalSupply(ctx context.Context) (domain.Handle, error) {
	h, err := s.reader.Supply(ctx)
	if err != nil {
		return domain.ZeroHandle, apperror.ErrDatabaseError(fmt.Errorf("get supply: %w", err))
	}
	return h, nil
}

// ConfidentialBalanceOf returns the balance handle of account, or the zero
// handle if it never held tokens.
func (s *LedgerServiceImpl) ConfidentialBalanceOf(ctx context.Context, account common.Address) (domain.Handle, error) {
	h, err := s.reader.Balance(ctx, account)
	if err != nil {
		return domain.ZeroHandle, apperror.ErrDatabaseError(fmt.Errorf("get balance: %w", err))
	}
	return h, nil
}

// ConfidentialTransfer moves an encrypted amount without notifying the
// recipient, even if it has a receiver hook.
func (s *LedgerServiceImpl) ConfidentialTransfer(ctx context.Context, req ports.TransferRequest) (*domain.Receipt, error) {
	return s.transfer(ctx, req, false)
}

// ConfidentialTransferAndNotify moves an encrypted amount and, when the
// recipient has a receiver hook, calls it inside the same transaction. A
// rejection by the hook rolls back the debit.
func (s *LedgerServiceImpl) ConfidentialTransferAndNotify(ctx context.Context, req ports.TransferRequest) (*domain.Receipt, error) {
	return s.transfer(ctx, req, true)
}

func (s *LedgerServiceImpl) transfer(ctx context.Context, req ports.TransferRequest, notify bool) (*domain.Receipt, error) {
	if req.To == (common.Address{}) {
		return nil, apperror.Validation("cannot transfer to the zero address")
	}
	if ports.InTx(ctx) {
		return nil, apperror.ErrReentrantCall()
	}

	amount, err := s.fhe.VerifyInput(ctx, ports.InputContext{Contract: s.meta.Address, Sender: req.Caller}, req.EncryptedAmount, req.Proof)
	if err != nil {
		return nil, err
	}

	receiver, hooked := s.receivers[req.To]
	hooked = hooked && notify

	ctx, grants := withGrants(ctx)
	var receipt *domain.Receipt
	err = s.transactor.WithinTx(ctx, func(ctx context.Context, tx ports.Tx) error {
		transferred, err := s.debit(ctx, tx, grants, req.Caller, amount)
		if err != nil {
			return err
		}

		kind := domain.ReceiptKindTransfer
		accepted := transferred
		if hooked {
			kind = domain.ReceiptKindStake
			grants.allow(transferred, req.To)
			accepted, err = receiver.OnConfidentialTransferReceived(ctx, tx, req.Caller, transferred, req.Payload)
			if err != nil {
				return receiverError(err)
			}
			if accepted != transferred {
				if err := s.refund(ctx, tx, grants, req.Caller, transferred, accepted); err != nil {
					return err
				}
			}
		} else if err := s.credit(ctx, tx, grants, req.To, transferred); err != nil {
			return err
		}
		grants.allow(accepted, req.Caller, req.To)

		receipt = domain.NewReceipt(kind, req.Caller, req.To, accepted, s.now())
		if err := tx.Receipts().Create(ctx, receipt); err != nil {
			return apperror.ErrDatabaseError(fmt.Errorf("create receipt: %w", err))
		}
		return grants.flush(ctx, s.fhe)
	})
	if err != nil {
		s.log.Warn().Err(err).
			Str("from", req.Caller.Hex()).
			Str("to", req.To.Hex()).
			Bool("notify", notify).
			Msg("confidential transfer rolled back")
		return nil, err
	}

	s.log.Info().
		Str("receipt_id", receipt.ID.String()).
		Str("kind", string(receipt.Kind)).
		Str("from", receipt.From.Hex()).
		Str("to", receipt.To.Hex()).
		Str("amount", receipt.Amount.Hex()).
		Msg("confidential transfer committed")
	return receipt, nil
}

// debit subtracts amount from the sender under the balance policy and
// returns the handle of what was actually taken.
func (s *LedgerServiceImpl) debit(ctx context.Context, tx ports.Tx, grants *grantSet, from common.Address, amount domain.Handle) (domain.Handle, error) {
	balance, err := tx.Balances().Get(ctx, from)
	if err != nil {
		return domain.ZeroHandle, apperror.ErrDatabaseError(fmt.Errorf("get balance: %w", err))
	}

	enough, err := s.fhe.Ge(ctx, balance, amount)
	if err != nil {
		return domain.ZeroHandle, coprocessorError(err)
	}
	fallback := balance
	if s.policy == PolicyZero {
		fallback = domain.ZeroHandle
	}
	transferred, err := s.fhe.Select(ctx, enough, amount, fallback)
	if err != nil {
		return domain.ZeroHandle, coprocessorError(err)
	}

	remaining, err := s.fhe.Sub(ctx, balance, transferred)
	if err != nil {
		return domain.ZeroHandle, coprocessorError(err)
	}
	if err := tx.Balances().Put(ctx, from, remaining); err != nil {
		return domain.ZeroHandle, apperror.ErrDatabaseError(fmt.Errorf("put balance: %w", err))
	}
	grants.allow(remaining, from)
	return transferred, nil
}

// credit adds amount to the account's balance.
func (s *LedgerServiceImpl) credit(ctx context.Context, tx ports.Tx, grants *grantSet, to common.Address, amount domain.Handle) error {
	balance, err := tx.Balances().Get(ctx, to)
	if err != nil {
		return apperror.ErrDatabaseError(fmt.Errorf("get balance: %w", err))
	}
	updated, err := s.fhe.Add(ctx, balance, amount)
	if err != nil {
		return coprocessorError(err)
	}
	if err := tx.Balances().Put(ctx, to, updated); err != nil {
		return apperror.ErrDatabaseError(fmt.Errorf("put balance: %w", err))
	}
	grants.allow(updated, to)
	return nil
}

// refund returns the part of a hooked transfer the receiver did not accept.
func (s *LedgerServiceImpl) refund(ctx context.Context, tx ports.Tx, grants *grantSet, to common.Address, transferred, accepted domain.Handle) error {
	rest, err := s.fhe.Sub(ctx, transferred, accepted)
	if err != nil {
		return coprocessorError(err)
	}
	return s.credit(ctx, tx, grants, to, rest)
}

// Credit releases amount held by a registered custodian back to an
// account. It must run inside the custodian's transaction, and the
// custodian flushes the queued access grants before it commits.
func (s *LedgerServiceImpl) Credit(ctx context.Context, tx ports.Tx, custodian, to common.Address, amount domain.Handle) error {
	if _, ok := s.receivers[custodian]; !ok {
		return apperror.Validation(fmt.Sprintf("%s is not a registered custodian", custodian.Hex()))
	}
	if tx == nil || !ports.InTx(ctx) {
		return apperror.InternalError(errors.New("credit must run inside a transaction"))
	}
	grants, err := grantsFrom(ctx)
	if err != nil {
		return err
	}
	if err := s.credit(ctx, tx, grants, to, amount); err != nil {
		return err
	}
	grants.allow(amount, to)
	return nil
}

// GetReceipt returns a receipt the caller is a party to.
func (s *LedgerServiceImpl) GetReceipt(ctx context.Context, caller common.Address, id uuid.UUID) (*domain.Receipt, error) {
	r, err := s.reader.Receipt(ctx, id)
	if err != nil {
		return nil, apperror.ErrDatabaseError(fmt.Errorf("get receipt: %w", err))
	}
	if r == nil || !r.Involves(caller) {
		return nil, apperror.ErrNotFound("Receipt")
	}
	return r, nil
}

// ListReceipts returns the caller's receipts, newest first.
func (s *LedgerServiceImpl) ListReceipts(ctx context.Context, caller common.Address, limit int) ([]domain.Receipt, error) {
	if limit <= 0 {
		limit = defaultReceiptLimit
	}
	if limit > maxReceiptLimit {
		limit = maxReceiptLimit
	}

	receipts, err := s.reader.ReceiptsByAccount(ctx, caller, limit)
	if err != nil {
		return nil, apperror.ErrDatabaseError(fmt.Errorf("list receipts: %w", err))
	}
	return receipts, nil
}

func coprocessorError(err error) error {
	var appErr *apperror.AppError
	if errors.As(err, &appErr) {
		return err
	}
	return apperror.ErrCoprocessorFailure(err)
}

// receiverError wraps a hook failure as a rejection. Infrastructure
// failures inside the hook pass through unchanged.
func receiverError(err error) error {
	var appErr *apperror.AppError
	if errors.As(err, &appErr) {
		if appErr.Code == apperror.CodeReceiverRejected || strings.HasPrefix(appErr.Code, "SYS_") {
			return err
		}
	}
	return apperror.ErrReceiverRejected(err)
}
