package domain

import "github.com/ethereum/go-ethereum/common"

// BalanceRecord maps an account to the handle of its encrypted balance.
// Accounts without a record hold the zero handle.
type BalanceRecord struct {
	Account common.Address `json:"account"`
	Balance Handle         `json:"balance"`
}
