package handler

import (
	"context"
	"strconv"
	"time"

	"zkvault/internal/adapter/http/dto"
	"zkvault/internal/adapter/http/middleware"
	"zkvault/internal/core/domain"
	"zkvault/internal/core/ports"
	"zkvault/pkg/apperror"
	"zkvault/pkg/numfmt"
	"zkvault/pkg/response"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/common/hexutil"
	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
)

// LedgerHandler serves the confidential token endpoints.
type LedgerHandler struct {
	ledger ports.LedgerService
	oracle ports.ConfidentialOracle
}

// NewLedgerHandler creates a new LedgerHandler.
func NewLedgerHandler(ledger ports.LedgerService, oracle ports.ConfidentialOracle) *LedgerHandler {
	return &LedgerHandler{ledger: ledger, oracle: oracle}
}

// GetToken handles GET /api/v1/token.
func (h *LedgerHandler) GetToken(c *gin.Context) {
	supply, err := h.ledger.ConfidentialTotalSupply(c.Request.Context())
	if err != nil {
		response.Error(c, err)
		return
	}

	meta := h.ledger.Metadata()
	response.OK(c, dto.TokenResponse{
		Name:         meta.Name,
		Symbol:       meta.Symbol,
		Decimals:     meta.Decimals,
		Address:      meta.Address.Hex(),
		VaultAddress: meta.VaultAddress.Hex(),
		TotalSupply:  supply.Hex(),
	})
}

// GetBalance handles GET /api/v1/balances/:address.
func (h *LedgerHandler) GetBalance(c *gin.Context) {
	account, err := domain.ParseAccount(c.Param("address"))
	if err != nil {
		response.Error(c, apperror.Validation(err.Error()))
		return
	}

	balance, err := h.ledger.ConfidentialBalanceOf(c.Request.Context(), account)
	if err != nil {
		response.Error(c, err)
		return
	}

	response.OK(c, dto.BalanceResponse{Account: account.Hex(), Balance: balance.Hex()})
}

// EncryptInput handles POST /api/v1/inputs. The input is bound to the
// ledger and the caller, which is what transfers verify against.
func (h *LedgerHandler) EncryptInput(c *gin.Context) {
	caller, ok := middleware.Account(c)
	if !ok {
		response.Error(c, apperror.ErrInvalidToken())
		return
	}

	var req dto.EncryptInputRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, apperror.Validation(err.Error()))
		return
	}
	dto.SanitizeStruct(&req)

	value, err := numfmt.ParseUint64(req.Value)
	if err != nil {
		response.Error(c, apperror.Validation(err.Error()))
		return
	}

	contract := h.ledger.Metadata().Address
	input, err := h.oracle.EncryptInput(c.Request.Context(), ports.InputContext{Contract: contract, Sender: caller}, value)
	if err != nil {
		response.Error(c, err)
		return
	}

	c.Set(middleware.CtxResourceID, input.Handle.Hex())
	response.Created(c, dto.EncryptInputResponse{
		Handle:   input.Handle.Hex(),
		Proof:    hexutil.Encode(input.Proof),
		Contract: contract.Hex(),
	})
}

// Transfer handles POST /api/v1/transfers.
func (h *LedgerHandler) Transfer(c *gin.Context) {
	h.transfer(c, h.ledger.ConfidentialTransfer)
}

// TransferAndNotify handles POST /api/v1/transfers/notify.
func (h *LedgerHandler) TransferAndNotify(c *gin.Context) {
	h.transfer(c, h.ledger.ConfidentialTransferAndNotify)
}

type transferFunc func(ctx context.Context, req ports.TransferRequest) (*domain.Receipt, error)

func (h *LedgerHandler) transfer(c *gin.Context, send transferFunc) {
	caller, ok := middleware.Account(c)
	if !ok {
		response.Error(c, apperror.ErrInvalidToken())
		return
	}

	var req dto.TransferRequest
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
	var payload []byte
	if req.Payload != "" {
		if payload, err = hexutil.Decode(req.Payload); err != nil {
			response.Error(c, apperror.Validation("payload must be 0x-prefixed hex"))
			return
		}
	}

	receipt, err := send(c.Request.Context(), ports.TransferRequest{
		Caller:          caller,
		To:              common.HexToAddress(req.To),
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

// Mint handles POST /api/v1/mint. Only the issuer reaches it.
func (h *LedgerHandler) Mint(c *gin.Context) {
	var req dto.MintRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, apperror.Validation(err.Error()))
		return
	}
	dto.SanitizeStruct(&req)

	amount, err := numfmt.ParseUint64(req.Amount)
	if err != nil {
		response.Error(c, apperror.Validation(err.Error()))
		return
	}

	receipt, err := h.ledger.Mint(c.Request.Context(), ports.MintRequest{
		To:     common.HexToAddress(req.To),
		Amount: amount,
	})
	if err != nil {
		response.Error(c, err)
		return
	}

	c.Set(middleware.CtxResourceID, receipt.ID.String())
	response.Created(c, toReceiptResponse(receipt))
}

// Decrypt handles POST /api/v1/decrypt.
func (h *LedgerHandler) Decrypt(c *gin.Context) {
	caller, ok := middleware.Account(c)
	if !ok {
		response.Error(c, apperror.ErrInvalidToken())
		return
	}

	var req dto.DecryptRequest
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

	// The zero handle is an encrypted 0 that nobody needs permission to read.
	var value uint64
	if !handle.IsZero() {
		value, err = h.oracle.UserDecrypt(c.Request.Context(), handle, caller)
		if err != nil {
			response.Error(c, err)
			return
		}
	}

	c.Set(middleware.CtxResourceID, handle.Hex())
	response.OK(c, dto.DecryptResponse{Handle: handle.Hex(), Value: strconv.FormatUint(value, 10)})
}

// ListReceipts handles GET /api/v1/receipts?limit=N.
func (h *LedgerHandler) ListReceipts(c *gin.Context) {
	caller, ok := middleware.Account(c)
	if !ok {
		response.Error(c, apperror.ErrInvalidToken())
		return
	}

	limit := 0
	if raw := c.Query("limit"); raw != "" {
		n, err := strconv.Atoi(raw)
		if err != nil || n < 1 {
			response.Error(c, apperror.Validation("limit must be a positive integer"))
			return
		}
		limit = n
	}

	receipts, err := h.ledger.ListReceipts(c.Request.Context(), caller, limit)
	if err != nil {
		response.Error(c, err)
		return
	}

	items := make([]dto.ReceiptResponse, 0, len(receipts))
	for i := range receipts {
		items = append(items, toReceiptResponse(&receipts[i]))
	}
	response.OK(c, dto.ReceiptListResponse{Items: items, Count: len(items)})
}

// GetReceipt handles GET /api/v1/receipts/:id.
func (h *LedgerHandler) GetReceipt(c *gin.Context) {
	caller, ok := middleware.Account(c)
	if !ok {
		response.Error(c, apperror.ErrInvalidToken())
		return
	}

	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		response.Error(c, apperror.ErrNotFound("Receipt"))
		return
	}

	receipt, err := h.ledger.GetReceipt(c.Request.Context(), caller, id)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.OK(c, toReceiptResponse(receipt))
}

// toReceiptResponse converts domain.Receipt to DTO.
func toReceiptResponse(r *domain.Receipt) dto.ReceiptResponse {
	resp := dto.ReceiptResponse{
		ID:        r.ID.String(),
		Kind:      string(r.Kind),
		From:      r.From.Hex(),
		To:        r.To.Hex(),
		Amount:    r.Amount.Hex(),
		CreatedAt: r.CreatedAt.Format(time.RFC3339),
	}
	if r.MintedValue != nil {
		s := strconv.FormatUint(*r.MintedValue, 10)
		resp.MintedValue = &s
	}
	return resp
}
