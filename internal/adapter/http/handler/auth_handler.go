package handler

import (
	"context"
	"net/http"
	"sync"
	"time"

	"zkvault/internal/adapter/http/dto"
	"zkvault/internal/core/ports"
	"zkvault/pkg/apperror"
	"zkvault/pkg/response"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/common/hexutil"
	"github.com/gin-gonic/gin"
)

// AuthHandler handles authentication endpoints.
type AuthHandler struct {
	authSvc ports.AuthService
}

// NewAuthHandler creates a new AuthHandler.
func NewAuthHandler(authSvc ports.AuthService) *AuthHandler {
	return &AuthHandler{authSvc: authSvc}
}

// Login handles POST /api/v1/auth/login.
func (h *AuthHandler) Login(c *gin.Context) {
	var req dto.LoginRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, apperror.Validation(err.Error()))
		return
	}
	dto.SanitizeStruct(&req)

	signature, err := hexutil.Decode(req.Signature)
	if err != nil {
		response.Error(c, apperror.Validation("signature must be 0x-prefixed hex"))
		return
	}
	account := common.HexToAddress(req.Address)

	token, expiry, err := h.authSvc.Login(c.Request.Context(), ports.LoginRequest{
		Address:   account,
		Timestamp: req.Timestamp,
		Signature: signature,
	})
	if err != nil {
		response.Error(c, err)
		return
	}

	response.OK(c, dto.LoginResponse{
		Account: account.Hex(),
		Token:   token,
		Expiry:  expiry.Unix(),
	})
}

// healthTimeout bounds each dependency ping.
const healthTimeout = 2 * time.Second

type depStatus struct {
	Status  string `json:"status"`
	Error   string `json:"error,omitempty"`
	Latency string `json:"latency"`
}

// HealthCheck handles GET /health. Every dependency is pinged concurrently.
func HealthCheck(checkers ...ports.HealthChecker) gin.HandlerFunc {
	return func(c *gin.Context) {
		results := make([]depStatus, len(checkers))
		var wg sync.WaitGroup
		for i, checker := range checkers {
			wg.Add(1)
			go func(i int, checker ports.HealthChecker) {
				defer wg.Done()
				ctx, cancel := context.WithTimeout(c.Request.Context(), healthTimeout)
				defer cancel()

				start := time.Now()
				err := checker.Ping(ctx)
				results[i] = depStatus{Status: "healthy", Latency: time.Since(start).Round(time.Microsecond).String()}
				if err != nil {
					results[i].Status = "unhealthy"
					results[i].Error = err.Error()
				}
			}(i, checker)
		}
		wg.Wait()

		deps := make(map[string]depStatus, len(checkers))
		status, httpCode := "healthy", http.StatusOK
		for i, checker := range checkers {
			deps[checker.Name()] = results[i]
			if results[i].Error != "" {
				status, httpCode = "degraded", http.StatusServiceUnavailable
			}
		}

		c.JSON(httpCode, gin.H{
			"status":       status,
			"dependencies": deps,
		})
	}
}
