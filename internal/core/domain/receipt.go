package domain

import (
	"time"

	"github.com/ethereum/go-ethereum/common"
	"github.com/google/uuid"
)

// ReceiptKind identifies the ledger operation that produced a receipt.
type ReceiptKind string

const (
	ReceiptKindMint     ReceiptKind = "MINT"
	ReceiptKindTransfer ReceiptKind = "TRANSFER"
	ReceiptKindStake    ReceiptKind = "STAKE"
	ReceiptKindWithdraw ReceiptKind = "WITHDRAW"
)

// Receipt is the immutable record of a committed write. Amounts are
// handles; only mints carry a plaintext amount since it is public anyway.
type Receipt struct {
	ID          uuid.UUID      `json:"id"`
	Kind        ReceiptKind    `json:"kind"`
	From        common.Address `json:"from"`
	To          common.Address `json:"to"`
	Amount      Handle         `json:"amount"`
	MintedValue *uint64        `json:"minted_value,omitempty"`
	CreatedAt   time.Time      `json:"created_at"`
}

// NewReceipt stamps a receipt with a fresh id and creation time.
func NewReceipt(kind ReceiptKind, from, to common.Address, amount Handle, now time.Time) *Receipt {
	return &Receipt{
		ID:        uuid.New(),
		Kind:      kind,
		From:      from,
		To:        to,
		Amount:    amount,
		CreatedAt: now.UTC(),
	}
}

// Involves reports whether account is a party to the receipt.
func (r *Receipt) Involves(account common.Address) bool {
	return r.From == account || r.To == account
}
