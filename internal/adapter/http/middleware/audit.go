package middleware

import (
	"encoding/json"
	"net/http"
	"time"

	"zkvault/internal/core/domain"
	"zkvault/internal/core/ports"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
)

// AuditLog creates an audit middleware that logs successful write operations.
// It maps HTTP methods and paths to audit actions.
func AuditLog(auditSvc ports.AuditService) gin.HandlerFunc {
	return func(c *gin.Context) {
		c.Next()

		if c.Writer.Status() < 200 || c.Writer.Status() >= 300 {
			return
		}
		if c.Request.Method != http.MethodPost {
			return
		}

		action, resourceType := mapPathToAction(c.FullPath())
		if action == "" {
			return
		}

		entry := &domain.AuditLog{
			ID:           uuid.New(),
			Action:       action,
			ResourceType: resourceType,
			ResourceID:   c.GetString(CtxResourceID),
			IPAddress:    c.ClientIP(),
			CreatedAt:    time.Now(),
		}
		if caller, ok := Account(c); ok {
			entry.Account = &caller
		}

		details, _ := json.Marshal(map[string]interface{}{
			"method":     c.Request.Method,
			"path":       c.Request.URL.Path,
			"status":     c.Writer.Status(),
			"request_id": c.GetString(CtxRequestID),
		})
		entry.Details = string(details)

		auditSvc.Log(c.Request.Context(), entry)
	}
}

func mapPathToAction(route string) (domain.AuditAction, string) {
	switch route {
	case "/api/v1/auth/login":
		return domain.AuditActionLogin, "session"
	case "/api/v1/mint":
		return domain.AuditActionMint, "receipt"
	case "/api/v1/transfers", "/api/v1/transfers/notify":
		return domain.AuditActionTransfer, "receipt"
	case "/api/v1/stakes":
		return domain.AuditActionStake, "receipt"
	case "/api/v1/stakes/withdraw":
		return domain.AuditActionWithdraw, "receipt"
	case "/api/v1/inputs":
		return domain.AuditActionInput, "ciphertext"
	case "/api/v1/decrypt":
		return domain.AuditActionDecrypt, "ciphertext"
	}
	return "", ""
}
