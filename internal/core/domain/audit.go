package domain

import (
	"time"

	"github.com/ethereum/go-ethereum/common"
	"github.com/google/uuid"
)

// AuditAction represents the type of audited action.
type AuditAction string

const (
	AuditActionMint     AuditAction = "MINT"
	AuditActionTransfer AuditAction = "TRANSFER"
	AuditActionStake    AuditAction = "STAKE"
	AuditActionWithdraw AuditAction = "WITHDRAW"
	AuditActionLogin    AuditAction = "LOGIN"
	AuditActionDecrypt  AuditAction = "DECRYPT"
	AuditActionInput    AuditAction = "ENCRYPT_INPUT"
)

// AuditLog records a single audited action in the system.
type AuditLog struct {
	ID           uuid.UUID       `json:"id"`
	Account      *common.Address `json:"account,omitempty"`
	Action       AuditAction     `json:"action"`
	ResourceType string          `json:"resource_type"`
	ResourceID   string          `json:"resource_id,omitempty"`
	Details      string          `json:"details,omitempty"` // JSON string
	IPAddress    string          `json:"ip_address"`
	CreatedAt    time.Time       `json:"created_at"`
}
