package service

import (
	"context"
	"errors"

	"zkvault/internal/core/domain"
	"zkvault/internal/core/ports"
	"zkvault/pkg/apperror"

	"github.com/ethereum/go-ethereum/common"
)

var errNoGrantSet = errors.New("access grants must be collected by the enclosing ledger call")

type grant struct {
	handle  domain.Handle
	account common.Address
}

// grantSet queues access-list entries produced by one ledger call. They are
// written as the last step of the transaction body, so a rejected or failed
// call leaves no entries behind.
type grantSet struct {
	seen    map[grant]struct{}
	pending []grant
}

type grantSetKey struct{}

// withGrants returns a context carrying a fresh grant set.
func withGrants(ctx context.Context) (context.Context, *grantSet) {
	g := &grantSet{seen: make(map[grant]struct{})}
	return context.WithValue(ctx, grantSetKey{}, g), g
}

func grantsFrom(ctx context.Context) (*grantSet, error) {
	g, ok := ctx.Value(grantSetKey{}).(*grantSet)
	if !ok {
		return nil, apperror.InternalError(errNoGrantSet)
	}
	return g, nil
}

// allow queues access to handle for each account. The zero handle is public.
func (g *grantSet) allow(handle domain.Handle, accounts ...common.Address) {
	if handle.IsZero() {
		return
	}
	for _, a := range accounts {
		e := grant{handle: handle, account: a}
		if _, dup := g.seen[e]; dup {
			continue
		}
		g.seen[e] = struct{}{}
		g.pending = append(g.pending, e)
	}
}

// flush writes the queued entries.
func (g *grantSet) flush(ctx context.Context, backend ports.FHEBackend) error {
	for _, e := range g.pending {
		if err := backend.Allow(ctx, e.handle, e.account); err != nil {
			return coprocessorError(err)
		}
	}
	g.pending = nil
	return nil
}
