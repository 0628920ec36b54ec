package postgres

import (
	"context"
	"fmt"

	"zkvault/internal/core/domain"
	"zkvault/internal/core/ports"
)

type auditRepo struct {
	db DBTX
}

// NewAuditRepository creates a PostgreSQL-backed AuditRepository.
func NewAuditRepository(db DBTX) ports.AuditRepository {
	return &auditRepo{db: db}
}

func (r *auditRepo) Create(ctx context.Context, entry *domain.AuditLog) error {
	var account []byte
	if entry.Account != nil {
		account = entry.Account.Bytes()
	}
	var details *string
	if entry.Details != "" {
		details = &entry.Details
	}

	_, err := r.db.Exec(ctx,
		`INSERT INTO audit_logs (id, account, action, resource_type, resource_id, details, ip_address, created_at)
		 VALUES ($1, $2, $3, $4, $5, $6, $7, $8)`,
		entry.ID, account, string(entry.Action), entry.ResourceType,
		entry.ResourceID, details, entry.IPAddress, entry.CreatedAt,
	)
	if err != nil {
		return fmt.Errorf("insert audit log: %w", err)
	}
	return nil
}
