package memory

import (
	"context"
	"sort"
	"sync"

	"zkvault/internal/core/domain"
	"zkvault/internal/core/ports"
	"zkvault/pkg/apperror"

	"github.com/ethereum/go-ethereum/common"
	"github.com/google/uuid"
)

// Store keeps ledger and vault state in process memory. Transactions run
// one at a time and buffer their writes until commit.
type Store struct {
	mu        sync.RWMutex
	balances  map[common.Address]domain.Handle
	positions map[common.Address]domain.StakePosition
	supply    domain.Handle
	receipts  []domain.Receipt
}

// NewStore creates an empty store.
func NewStore() *Store {
	return &Store{
		balances:  make(map[common.Address]domain.Handle),
		positions: make(map[common.Address]domain.StakePosition),
	}
}

var (
	_ ports.Transactor  = (*Store)(nil)
	_ ports.StateReader = (*Store)(nil)
)

type memTx struct {
	balances  *balanceView
	positions *positionView
	supply    *supplyView
	receipts  *receiptView
}

func (t *memTx) Balances() ports.BalanceStore   { return t.balances }
func (t *memTx) Positions() ports.PositionStore { return t.positions }
func (t *memTx) Supply() ports.SupplyStore      { return t.supply }
func (t *memTx) Receipts() ports.ReceiptStore   { return t.receipts }

// WithinTx implements ports.Transactor.
func (s *Store) WithinTx(ctx context.Context, fn func(ctx context.Context, tx ports.Tx) error) error {
	if ports.InTx(ctx) {
		return apperror.ErrReentrantCall()
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	tx := &memTx{
		balances:  &balanceView{o: newOverlay(s.balances)},
		positions: &positionView{o: newOverlay(s.positions)},
		supply:    &supplyView{value: s.supply},
		receipts:  &receiptView{},
	}

	if err := fn(ports.MarkTx(ctx), tx); err != nil {
		return err
	}

	tx.balances.o.commit()
	tx.positions.o.commit()
	s.supply = tx.supply.value
	s.receipts = append(s.receipts, tx.receipts.pending...)
	return nil
}

type balanceView struct {
	o *overlay[common.Address, domain.Handle]
}

func (v *balanceView) Get(_ context.Context, account common.Address) (domain.Handle, error) {
	h, _ := v.o.get(account)
	return h, nil
}

func (v *balanceView) Put(_ context.Context, account common.Address, balance domain.Handle) error {
	v.o.put(account, balance)
	return nil
}

type positionView struct {
	o *overlay[common.Address, domain.StakePosition]
}

func (v *positionView) Get(_ context.Context, account common.Address) (*domain.StakePosition, error) {
	p, ok := v.o.get(account)
	if !ok {
		return domain.InactivePosition(account), nil
	}
	return &p, nil
}

func (v *positionView) Put(_ context.Context, position *domain.StakePosition) error {
	v.o.put(position.Account, *position)
	return nil
}

type supplyView struct {
	value domain.Handle
}

func (v *supplyView) Get(context.Context) (domain.Handle, error) {
	return v.value, nil
}

func (v *supplyView) Put(_ context.Context, supply domain.Handle) error {
	v.value = supply
	return nil
}

type receiptView struct {
	pending []domain.Receipt
}

func (v *receiptView) Create(_ context.Context, receipt *domain.Receipt) error {
	v.pending = append(v.pending, *receipt)
	return nil
}

// Balance implements ports.StateReader.
func (s *Store) Balance(_ context.Context, account common.Address) (domain.Handle, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.balances[account], nil
}

// Position implements ports.StateReader.
func (s *Store) Position(_ context.Context, account common.Address) (*domain.StakePosition, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	p, ok := s.positions[account]
	if !ok {
		return domain.InactivePosition(account), nil
	}
	return &p, nil
}

// Supply implements ports.StateReader.
func (s *Store) Supply(context.Context) (domain.Handle, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.supply, nil
}

// Receipt implements ports.StateReader.
func (s *Store) Receipt(_ context.Context, id uuid.UUID) (*domain.Receipt, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	for i := range s.receipts {
		if s.receipts[i].ID == id {
			r := s.receipts[i]
			return &r, nil
		}
	}
	return nil, nil
}

// ReceiptsByAccount implements ports.StateReader. Newest first.
func (s *Store) ReceiptsByAccount(_ context.Context, account common.Address, limit int) ([]domain.Receipt, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	out := make([]domain.Receipt, 0)
	for i := len(s.receipts) - 1; i >= 0; i-- {
		if s.receipts[i].Involves(account) {
			out = append(out, s.receipts[i])
			if limit > 0 && len(out) == limit {
				break
			}
		}
	}
	return out, nil
}

// Accounts lists every account holding a balance record, in address order.
func (s *Store) Accounts() []common.Address {
	s.mu.RLock()
	defer s.mu.RUnlock()

	out := make([]common.Address, 0, len(s.balances))
	for a := range s.balances {
		out = append(out, a)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Cmp(out[j]) < 0 })
	return out
}

// Positions lists every stored position, in account order.
func (s *Store) Positions() []domain.StakePosition {
	s.mu.RLock()
	defer s.mu.RUnlock()

	out := make([]domain.StakePosition, 0, len(s.positions))
	for _, p := range s.positions {
		out = append(out, p)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Account.Cmp(out[j].Account) < 0 })
	return out
}
