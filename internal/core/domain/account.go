package domain

import (
	"fmt"

	"github.com/ethereum/go-ethereum/common"
)

// ParseAccount validates and decodes a hex account address.
func ParseAccount(s string) (common.Address, error) {
	if !common.IsHexAddress(s) {
		return common.Address{}, fmt.Errorf("invalid account address %q", s)
	}
	return common.HexToAddress(s), nil
}
