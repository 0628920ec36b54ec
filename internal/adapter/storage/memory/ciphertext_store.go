package memory

import (
	"context"
	"sync"

	"zkvault/internal/core/domain"
	"zkvault/internal/core/ports"

	"github.com/ethereum/go-ethereum/common"
)

// CiphertextStore keeps sealed ciphertexts and their access lists in memory.
type CiphertextStore struct {
	mu   sync.RWMutex
	data map[domain.Handle][]byte
	acl  map[domain.Handle]map[common.Address]struct{}
}

// NewCiphertextStore creates an empty store.
func NewCiphertextStore() *CiphertextStore {
	return &CiphertextStore{
		data: make(map[domain.Handle][]byte),
		acl:  make(map[domain.Handle]map[common.Address]struct{}),
	}
}

var _ ports.CiphertextStore = (*CiphertextStore)(nil)

func (s *CiphertextStore) Put(_ context.Context, handle domain.Handle, sealed []byte) error {
	cp := make([]byte, len(sealed))
	copy(cp, sealed)

	s.mu.Lock()
	s.data[handle] = cp
	s.mu.Unlock()
	return nil
}

func (s *CiphertextStore) Get(_ context.Context, handle domain.Handle) ([]byte, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	sealed, ok := s.data[handle]
	if !ok {
		return nil, nil
	}
	cp := make([]byte, len(sealed))
	copy(cp, sealed)
	return cp, nil
}

func (s *CiphertextStore) Allow(_ context.Context, handle domain.Handle, account common.Address) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	set, ok := s.acl[handle]
	if !ok {
		set = make(map[common.Address]struct{})
		s.acl[handle] = set
	}
	set[account] = struct{}{}
	return nil
}

func (s *CiphertextStore) IsAllowed(_ context.Context, handle domain.Handle, account common.Address) (bool, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	_, ok := s.acl[handle][account]
	return ok, nil
}
