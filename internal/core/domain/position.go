package domain

import "github.com/ethereum/go-ethereum/common"

// StakePosition is an account's encrypted stake held by the vault.
//
// An inactive position always has the zero handle and a zero unlock time,
// so a withdrawn position cannot be told apart from one never used.
type StakePosition struct {
	Account      common.Address `json:"account"`
	StakedAmount Handle         `json:"staked_amount"`
	UnlockTime   uint64         `json:"unlock_time"`
	Active       bool           `json:"active"`
}

// InactivePosition returns the canonical empty position for account.
func InactivePosition(account common.Address) *StakePosition {
	return &StakePosition{Account: account}
}

// IsCanonical reports whether the position respects the active/inactive invariant.
func (p *StakePosition) IsCanonical() bool {
	if p.Active {
		return true
	}
	return p.StakedAmount.IsZero() && p.UnlockTime == 0
}

// Unlocked reports whether an active position may be withdrawn at now.
func (p *StakePosition) Unlocked(now uint64) bool {
	return p.Active && now >= p.UnlockTime
}

// Reset returns the position to its canonical inactive state.
func (p *StakePosition) Reset() {
	p.StakedAmount = ZeroHandle
	p.UnlockTime = 0
	p.Active = false
}
