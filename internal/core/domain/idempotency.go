package domain

import (
	"strings"

	"github.com/ethereum/go-ethereum/common"
)

// CachedResponse is a write response kept so a retried request gets the same answer.
type CachedResponse struct {
	Status int    `json:"status"`
	Body   []byte `json:"body"`
}

// BuildIdempotencyKey scopes a client idempotency key to the caller and route.
func BuildIdempotencyKey(caller common.Address, route, key string) string {
	return strings.ToLower(caller.Hex()) + ":" + route + ":" + key
}
