package redis

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"zkvault/internal/core/domain"
	"zkvault/internal/core/ports"

	"github.com/ethereum/go-ethereum/common"
	goredis "github.com/redis/go-redis/v9"
)

// CiphertextStore keeps sealed ciphertexts under ct:<handle> and the handle
// access list as a set under acl:<handle>. Neither expires.
type CiphertextStore struct {
	client goredis.Cmdable
}

func NewCiphertextStore(client goredis.Cmdable) *CiphertextStore {
	return &CiphertextStore{client: client}
}

var _ ports.CiphertextStore = (*CiphertextStore)(nil)

func ctKey(h domain.Handle) string  { return "ct:" + h.Hex() }
func aclKey(h domain.Handle) string { return "acl:" + h.Hex() }

func member(a common.Address) string { return strings.ToLower(a.Hex()) }

func (s *CiphertextStore) Put(ctx context.Context, handle domain.Handle, sealed []byte) error {
	if err := s.client.Set(ctx, ctKey(handle), sealed, 0).Err(); err != nil {
		return fmt.Errorf("redis ciphertext set: %w", err)
	}
	return nil
}

func (s *CiphertextStore) Get(ctx context.Context, handle domain.Handle) ([]byte, error) {
	val, err := s.client.Get(ctx, ctKey(handle)).Bytes()
	if err != nil {
		if errors.Is(err, goredis.Nil) {
			return nil, nil
		}
		return nil, fmt.Errorf("redis ciphertext get: %w", err)
	}
	return val, nil
}

func (s *CiphertextStore) Allow(ctx context.Context, handle domain.Handle, account common.Address) error {
	if err := s.client.SAdd(ctx, aclKey(handle), member(account)).Err(); err != nil {
		return fmt.Errorf("redis acl add: %w", err)
	}
	return nil
}

func (s *CiphertextStore) IsAllowed(ctx context.Context, handle domain.Handle, account common.Address) (bool, error) {
	ok, err := s.client.SIsMember(ctx, aclKey(handle), member(account)).Result()
	if err != nil {
		return false, fmt.Errorf("redis acl check: %w", err)
	}
	return ok, nil
}
