package handler

import (
	"time"

	"zkvault/internal/adapter/http/dto"
	"zkvault/internal/adapter/http/middleware"
	"zkvault/internal/core/domain"
	"zkvault/internal/core/ports"
	"zkvault/pkg/apperror"
	"zkvault/pkg/numfmt"
	"zkvault/pkg/response"

	"github.com/ethereum/go-ethereum/common/hexutil"
	"github.com/gin-gonic/gin"
)

// VaultHandler serves the staking endpoints.
type VaultHandler struct {
	ledger ports.LedgerService
	vault  ports.VaultService
	now    func() time.Time
}

// NewVaultHandler creates a new VaultHandler.
func NewVaultHandler(ledger ports.LedgerService, vault ports.VaultService) *VaultHandler {
	return &VaultHandler{ledger: ledger, vault: vault, now: time.Now}
}

// Stake handles POST /api/v1/stakes. It is a transfer-and-notify to the
// vault with the lock duration as payload.
func (h *VaultHandler) Stake(c *gin.Context) {
	caller, ok := middleware.Account(c)
	if !ok {
		response.Error(c, apperror.ErrInvalidToken())
		return
	}

	var req dto.StakeRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, apperror.Validation(err.Error()))
		return
	}
	dto.SanitizeStruct(&req)

	handle, err := domain.ParseHandle(req.Handle)
	if err != nil {
		response.Error(c, apperror.Validation(err.Error()))
		return
	}
	proof, err := hexutil.Decode(req.Proof)
	if err != nil {
		response.Error(c, apperror.Validation("proof must be 0x-prefixed hex"))
		return
	}
	lock, err := numfmt.ParseUint64(req.LockSeconds)
	if err != nil {
		response.Error(c, apperror.Validation(err.Error()))
		return
	}
	payload, err := domain.EncodeLockPayload(lock)
	if err != nil {
		response.Error(c, apperror.InternalError(err))
		return
	}

	receipt, err := h.ledger.ConfidentialTransferAndNotify(c.Request.Context(), ports.TransferRequest{
		Caller:          caller,
		To:              h.vault.Address(),
		EncryptedAmount: handle,
		Proof:           proof,
		Payload:         payload,
	})
	if err != nil {
		response.Error(c, err)
		return
	}

	c.Set(middleware.CtxResourceID, receipt.ID.String())
	response.Created(c, toReceiptResponse(receipt))
}

// GetStake handles GET /api/v1/stakes/:address.
func (h *VaultHandler) GetStake(c *gin.Context) {
	account, err := domain.ParseAccount(c.Param("address"))
	if err != nil {
		response.Error(c, apperror.Validation(err.Error()))
		return
	}

	pos, err := h.vault.GetStake(c.Request.Context(), account)
	if err != nil {
		response.Error(c, err)
		return
	}

	resp := dto.StakeResponse{
		Account:      account.Hex(),
		StakedAmount: pos.StakedAmount.Hex(),
		UnlockTime:   pos.UnlockTime,
		Active:       pos.Active,
	}
	if now := uint64(h.now().Unix()); pos.Active && pos.UnlockTime > now {
		resp.UnlocksIn = numfmt.FormatSeconds(pos.UnlockTime - now)
	}
	response.OK(c, resp)
}

// Withdraw handles POST /api/v1/stakes/withdraw.
func (h *VaultHandler) Withdraw(c *gin.Context) {
	caller, ok := middleware.Account(c)
	if !ok {
		response.Error(c, apperror.ErrInvalidToken())
		return
	}

	receipt, err := h.vault.Withdraw(c.Request.Context(), caller)
	if err != nil {
		response.Error(c, err)
		return
	}

	c.Set(middleware.CtxResourceID, receipt.ID.String())
	response.Created(c, toReceiptResponse(receipt))
}
