package handler

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"zkvault/internal/adapter/http/dto"
	"zkvault/internal/adapter/http/middleware"
	"zkvault/internal/core/domain"
	"zkvault/internal/core/ports"
	"zkvault/internal/core/ports/mocks"
	"zkvault/pkg/apperror"

	"github.com/ethereum/go-ethereum/common"
	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/mock/gomock"
)

func init() {
	gin.SetMode(gin.TestMode)
}

var (
	tokenAddr = common.HexToAddress("0x00000000000000000000000000000000000c0de1")
	vaultAddr = common.HexToAddress("0x00000000000000000000000000000000000c0de2")
	alice     = common.HexToAddress("0x00000000000000000000000000000000000a11ce")
	bob       = common.HexToAddress("0x0000000000000000000000000000000000000b0b")

	testMeta = domain.TokenMetadata{
		Name:         "Confidential USDT",
		Symbol:       "cUSDT",
		Decimals:     6,
		Address:      tokenAddr,
		VaultAddress: vaultAddr,
	}
)

func testHandle(b byte) domain.Handle {
	var h domain.Handle
	h[0] = b
	h[30] = byte(domain.ValueUint64)
	return h
}

// newContext builds a test context, optionally authenticated as account.
func newContext(method, path string, body interface{}, account *common.Address) (*gin.Context, *httptest.ResponseRecorder) {
	var reader *bytes.Reader
	switch b := body.(type) {
	case nil:
		reader = bytes.NewReader(nil)
	case string:
		reader = bytes.NewReader([]byte(b))
	default:
		raw, _ := json.Marshal(b)
		reader = bytes.NewReader(raw)
	}

	w := httptest.NewRecorder()
	c, _ := gin.CreateTestContext(w)
	c.Request = httptest.NewRequest(method, path, reader)
	c.Request.Header.Set("Content-Type", "application/json")
	if account != nil {
		c.Set(middleware.CtxAccount, *account)
	}
	return c, w
}

func decodeData(t *testing.T, w *httptest.ResponseRecorder) map[string]interface{} {
	t.Helper()
	var resp map[string]interface{}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	data, ok := resp["data"].(map[string]interface{})
	require.True(t, ok, "response has no data: %s", w.Body.String())
	return data
}

func decodeError(t *testing.T, w *httptest.ResponseRecorder) string {
	t.Helper()
	var resp map[string]interface{}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	code, _ := resp["error_code"].(string)
	return code
}

// --- Auth Handler Tests ---

func TestLogin_Success(t *testing.T) {
	ctrl := gomock.NewController(t)
	defer ctrl.Finish()

	mockAuth := mocks.NewMockAuthService(ctrl)
	h := NewAuthHandler(mockAuth)

	expiry := time.Now().Add(24 * time.Hour)
	mockAuth.EXPECT().Login(gomock.Any(), ports.LoginRequest{
		Address:   alice,
		Timestamp: 1_700_000_000,
		Signature: []byte{0xde, 0xad},
	}).Return("jwt-token-123", expiry, nil)

	c, w := newContext(http.MethodPost, "/api/v1/auth/login", dto.LoginRequest{
		Address:   alice.Hex(),
		Timestamp: 1_700_000_000,
		Signature: "0xdead",
	}, nil)
	h.Login(c)

	assert.Equal(t, http.StatusOK, w.Code)
	data := decodeData(t, w)
	assert.Equal(t, "jwt-token-123", data["token"])
	assert.Equal(t, alice.Hex(), data["account"])
	assert.Equal(t, float64(expiry.Unix()), data["expiry"])
}

func TestLogin_ValidationError(t *testing.T) {
	ctrl := gomock.NewController(t)
	defer ctrl.Finish()

	h := NewAuthHandler(mocks.NewMockAuthService(ctrl))

	for _, body := range []string{
		"{}",
		`{"address":"alice","timestamp":1,"signature":"0x01"}`,
		`{"address":"0x00000000000000000000000000000000000a11ce","timestamp":1,"signature":"dead"}`,
	} {
		c, w := newContext(http.MethodPost, "/", body, nil)
		h.Login(c)
		assert.Equal(t, http.StatusBadRequest, w.Code, body)
	}
}

func TestLogin_InvalidCredentials(t *testing.T) {
	ctrl := gomock.NewController(t)
	defer ctrl.Finish()

	mockAuth := mocks.NewMockAuthService(ctrl)
	h := NewAuthHandler(mockAuth)

	mockAuth.EXPECT().Login(gomock.Any(), gomock.Any()).Return("", time.Time{}, apperror.ErrInvalidCredentials())

	c, w := newContext(http.MethodPost, "/", dto.LoginRequest{Address: alice.Hex(), Timestamp: 1, Signature: "0x01"}, nil)
	h.Login(c)

	assert.Equal(t, http.StatusUnauthorized, w.Code)
	assert.Equal(t, "AUTH_001", decodeError(t, w))
}

// --- Ledger Handler Tests ---

func TestGetToken(t *testing.T) {
	ctrl := gomock.NewController(t)
	defer ctrl.Finish()

	ledger := mocks.NewMockLedgerService(ctrl)
	h := NewLedgerHandler(ledger, mocks.NewMockConfidentialOracle(ctrl))

	ledger.EXPECT().ConfidentialTotalSupply(gomock.Any()).Return(testHandle(7), nil)
	ledger.EXPECT().Metadata().Return(testMeta)

	c, w := newContext(http.MethodGet, "/api/v1/token", nil, nil)
	h.GetToken(c)

	assert.Equal(t, http.StatusOK, w.Code)
	data := decodeData(t, w)
	assert.Equal(t, "cUSDT", data["symbol"])
	assert.Equal(t, float64(6), data["decimals"])
	assert.Equal(t, vaultAddr.Hex(), data["vault_address"])
	assert.Equal(t, testHandle(7).Hex(), data["total_supply"])
}

func TestGetBalance(t *testing.T) {
	ctrl := gomock.NewController(t)
	defer ctrl.Finish()

	ledger := mocks.NewMockLedgerService(ctrl)
	h := NewLedgerHandler(ledger, mocks.NewMockConfidentialOracle(ctrl))

	ledger.EXPECT().ConfidentialBalanceOf(gomock.Any(), alice).Return(testHandle(3), nil)

	c, w := newContext(http.MethodGet, "/", nil, nil)
	c.Params = gin.Params{{Key: "address", Value: alice.Hex()}}
	h.GetBalance(c)

	assert.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, testHandle(3).Hex(), decodeData(t, w)["balance"])

	c, w = newContext(http.MethodGet, "/", nil, nil)
	c.Params = gin.Params{{Key: "address", Value: "nobody"}}
	h.GetBalance(c)
	assert.Equal(t, http.StatusBadRequest, w.Code)
}

func TestEncryptInput(t *testing.T) {
	ctrl := gomock.NewController(t)
	defer ctrl.Finish()

	ledger := mocks.NewMockLedgerService(ctrl)
	oracle := mocks.NewMockConfidentialOracle(ctrl)
	h := NewLedgerHandler(ledger, oracle)

	ledger.EXPECT().Metadata().Return(testMeta)
	oracle.EXPECT().EncryptInput(gomock.Any(), ports.InputContext{Contract: tokenAddr, Sender: alice}, uint64(250)).
		Return(&domain.EncryptedInput{Handle: testHandle(9), Proof: []byte{0xab, 0xcd}}, nil)

	c, w := newContext(http.MethodPost, "/api/v1/inputs", dto.EncryptInputRequest{Value: "250"}, &alice)
	h.EncryptInput(c)

	assert.Equal(t, http.StatusCreated, w.Code)
	data := decodeData(t, w)
	assert.Equal(t, testHandle(9).Hex(), data["handle"])
	assert.Equal(t, "0xabcd", data["proof"])
	assert.Equal(t, tokenAddr.Hex(), data["contract"])
}

func TestEncryptInput_RequiresAccount(t *testing.T) {
	ctrl := gomock.NewController(t)
	defer ctrl.Finish()

	h := NewLedgerHandler(mocks.NewMockLedgerService(ctrl), mocks.NewMockConfidentialOracle(ctrl))

	c, w := newContext(http.MethodPost, "/", dto.EncryptInputRequest{Value: "1"}, nil)
	h.EncryptInput(c)
	assert.Equal(t, http.StatusUnauthorized, w.Code)
}

func TestTransferAndNotify_PassesPayload(t *testing.T) {
	ctrl := gomock.NewController(t)
	defer ctrl.Finish()

	ledger := mocks.NewMockLedgerService(ctrl)
	h := NewLedgerHandler(ledger, mocks.NewMockConfidentialOracle(ctrl))

	receipt := domain.NewReceipt(domain.ReceiptKindStake, alice, vaultAddr, testHandle(4), time.Now())
	ledger.EXPECT().ConfidentialTransferAndNotify(gomock.Any(), gomock.Any()).DoAndReturn(
		func(_ context.Context, req ports.TransferRequest) (*domain.Receipt, error) {
			assert.Equal(t, alice, req.Caller)
			assert.Equal(t, vaultAddr, req.To)
			assert.Equal(t, testHandle(4), req.EncryptedAmount)
			assert.Equal(t, []byte{0x01, 0x02}, req.Proof)
			assert.Equal(t, []byte{0x0e, 0x10}, req.Payload)
			return receipt, nil
		})

	c, w := newContext(http.MethodPost, "/api/v1/transfers/notify", dto.TransferRequest{
		To: vaultAddr.Hex(), Handle: testHandle(4).Hex(), Proof: "0x0102", Payload: "0x0e10",
	}, &alice)
	h.TransferAndNotify(c)

	assert.Equal(t, http.StatusCreated, w.Code)
	data := decodeData(t, w)
	assert.Equal(t, receipt.ID.String(), data["id"])
	assert.Equal(t, "STAKE", data["kind"])
	assert.Equal(t, receipt.ID.String(), c.GetString(middleware.CtxResourceID))
}

func TestTransfer_ReceiverRejected(t *testing.T) {
	ctrl := gomock.NewController(t)
	defer ctrl.Finish()

	ledger := mocks.NewMockLedgerService(ctrl)
	h := NewLedgerHandler(ledger, mocks.NewMockConfidentialOracle(ctrl))

	ledger.EXPECT().ConfidentialTransfer(gomock.Any(), gomock.Any()).
		Return(nil, apperror.ErrReceiverRejected(apperror.ErrInvalidLockDuration("Lock duration must be positive")))

	c, w := newContext(http.MethodPost, "/", dto.TransferRequest{
		To: bob.Hex(), Handle: testHandle(1).Hex(), Proof: "0x01",
	}, &alice)
	h.Transfer(c)

	assert.Equal(t, http.StatusUnprocessableEntity, w.Code)
	var resp map[string]interface{}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	assert.Equal(t, "XFER_001", resp["error_code"])
	assert.Equal(t, "VAULT_003", resp["details"].(map[string]interface{})["reason"])
}

func TestTransfer_ValidationError(t *testing.T) {
	ctrl := gomock.NewController(t)
	defer ctrl.Finish()

	h := NewLedgerHandler(mocks.NewMockLedgerService(ctrl), mocks.NewMockConfidentialOracle(ctrl))

	c, w := newContext(http.MethodPost, "/", dto.TransferRequest{To: bob.Hex(), Handle: "0x01", Proof: "0x01"}, &alice)
	h.Transfer(c)
	assert.Equal(t, http.StatusBadRequest, w.Code)
	assert.Equal(t, "REQ_001", decodeError(t, w))
}

func TestMint(t *testing.T) {
	ctrl := gomock.NewController(t)
	defer ctrl.Finish()

	ledger := mocks.NewMockLedgerService(ctrl)
	h := NewLedgerHandler(ledger, mocks.NewMockConfidentialOracle(ctrl))

	minted := uint64(18446744073709551615)
	receipt := domain.NewReceipt(domain.ReceiptKindMint, common.Address{}, alice, testHandle(2), time.Now())
	receipt.MintedValue = &minted
	ledger.EXPECT().Mint(gomock.Any(), ports.MintRequest{To: alice, Amount: minted}).Return(receipt, nil)

	c, w := newContext(http.MethodPost, "/api/v1/mint", dto.MintRequest{To: alice.Hex(), Amount: "18446744073709551615"}, nil)
	h.Mint(c)

	assert.Equal(t, http.StatusCreated, w.Code)
	data := decodeData(t, w)
	assert.Equal(t, "MINT", data["kind"])
	assert.Equal(t, "18446744073709551615", data["minted_value"])
}

func TestMint_RejectsOutOfRangeAmount(t *testing.T) {
	ctrl := gomock.NewController(t)
	defer ctrl.Finish()

	h := NewLedgerHandler(mocks.NewMockLedgerService(ctrl), mocks.NewMockConfidentialOracle(ctrl))

	c, w := newContext(http.MethodPost, "/", dto.MintRequest{To: alice.Hex(), Amount: "18446744073709551616"}, nil)
	h.Mint(c)
	assert.Equal(t, http.StatusBadRequest, w.Code)
}

func TestDecrypt(t *testing.T) {
	ctrl := gomock.NewController(t)
	defer ctrl.Finish()

	oracle := mocks.NewMockConfidentialOracle(ctrl)
	h := NewLedgerHandler(mocks.NewMockLedgerService(ctrl), oracle)

	oracle.EXPECT().UserDecrypt(gomock.Any(), testHandle(5), alice).Return(uint64(990), nil)

	c, w := newContext(http.MethodPost, "/", dto.DecryptRequest{Handle: testHandle(5).Hex()}, &alice)
	h.Decrypt(c)

	assert.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "990", decodeData(t, w)["value"])
}

func TestDecrypt_ZeroHandleSkipsOracle(t *testing.T) {
	ctrl := gomock.NewController(t)
	defer ctrl.Finish()

	h := NewLedgerHandler(mocks.NewMockLedgerService(ctrl), mocks.NewMockConfidentialOracle(ctrl))

	c, w := newContext(http.MethodPost, "/", dto.DecryptRequest{Handle: domain.ZeroHandle.Hex()}, &bob)
	h.Decrypt(c)

	assert.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "0", decodeData(t, w)["value"])
}

func TestDecrypt_NotAllowed(t *testing.T) {
	ctrl := gomock.NewController(t)
	defer ctrl.Finish()

	oracle := mocks.NewMockConfidentialOracle(ctrl)
	h := NewLedgerHandler(mocks.NewMockLedgerService(ctrl), oracle)

	oracle.EXPECT().UserDecrypt(gomock.Any(), testHandle(5), bob).Return(uint64(0), apperror.ErrHandleNotAllowed())

	c, w := newContext(http.MethodPost, "/", dto.DecryptRequest{Handle: testHandle(5).Hex()}, &bob)
	h.Decrypt(c)

	assert.Equal(t, http.StatusForbidden, w.Code)
	assert.Equal(t, "ACL_001", decodeError(t, w))
}

func TestListReceipts(t *testing.T) {
	ctrl := gomock.NewController(t)
	defer ctrl.Finish()

	ledger := mocks.NewMockLedgerService(ctrl)
	h := NewLedgerHandler(ledger, mocks.NewMockConfidentialOracle(ctrl))

	r := domain.NewReceipt(domain.ReceiptKindTransfer, alice, bob, testHandle(1), time.Now())
	ledger.EXPECT().ListReceipts(gomock.Any(), alice, 5).Return([]domain.Receipt{*r}, nil)

	c, w := newContext(http.MethodGet, "/api/v1/receipts?limit=5", nil, &alice)
	h.ListReceipts(c)

	assert.Equal(t, http.StatusOK, w.Code)
	data := decodeData(t, w)
	assert.Equal(t, float64(1), data["count"])
	items := data["items"].([]interface{})
	assert.Equal(t, r.ID.String(), items[0].(map[string]interface{})["id"])

	c, w = newContext(http.MethodGet, "/api/v1/receipts?limit=zero", nil, &alice)
	h.ListReceipts(c)
	assert.Equal(t, http.StatusBadRequest, w.Code)
}

func TestGetReceipt(t *testing.T) {
	ctrl := gomock.NewController(t)
	defer ctrl.Finish()

	ledger := mocks.NewMockLedgerService(ctrl)
	h := NewLedgerHandler(ledger, mocks.NewMockConfidentialOracle(ctrl))

	id := uuid.New()
	ledger.EXPECT().GetReceipt(gomock.Any(), bob, id).Return(nil, apperror.ErrNotFound("Receipt"))

	c, w := newContext(http.MethodGet, "/", nil, &bob)
	c.Params = gin.Params{{Key: "id", Value: id.String()}}
	h.GetReceipt(c)
	assert.Equal(t, http.StatusNotFound, w.Code)

	c, w = newContext(http.MethodGet, "/", nil, &bob)
	c.Params = gin.Params{{Key: "id", Value: "not-a-uuid"}}
	h.GetReceipt(c)
	assert.Equal(t, http.StatusNotFound, w.Code)
}

// --- Vault Handler Tests ---

func TestStake_EncodesLockPayload(t *testing.T) {
	ctrl := gomock.NewController(t)
	defer ctrl.Finish()

	ledger := mocks.NewMockLedgerService(ctrl)
	vault := mocks.NewMockVaultService(ctrl)
	h := NewVaultHandler(ledger, vault)

	want, err := domain.EncodeLockPayload(3600)
	require.NoError(t, err)

	vault.EXPECT().Address().Return(vaultAddr)
	ledger.EXPECT().ConfidentialTransferAndNotify(gomock.Any(), ports.TransferRequest{
		Caller:          alice,
		To:              vaultAddr,
		EncryptedAmount: testHandle(8),
		Proof:           []byte{0x99},
		Payload:         want,
	}).Return(domain.NewReceipt(domain.ReceiptKindStake, alice, vaultAddr, testHandle(8), time.Now()), nil)

	c, w := newContext(http.MethodPost, "/api/v1/stakes", dto.StakeRequest{
		Handle: testHandle(8).Hex(), Proof: "0x99", LockSeconds: "3600",
	}, &alice)
	h.Stake(c)

	assert.Equal(t, http.StatusCreated, w.Code)
	assert.Equal(t, "STAKE", decodeData(t, w)["kind"])
}

func TestGetStake(t *testing.T) {
	ctrl := gomock.NewController(t)
	defer ctrl.Finish()

	vault := mocks.NewMockVaultService(ctrl)
	h := NewVaultHandler(mocks.NewMockLedgerService(ctrl), vault)
	h.now = func() time.Time { return time.Unix(1_000, 0) }

	vault.EXPECT().GetStake(gomock.Any(), alice).Return(&domain.StakePosition{
		Account: alice, StakedAmount: testHandle(6), UnlockTime: 1_000 + 3_661, Active: true,
	}, nil)

	c, w := newContext(http.MethodGet, "/", nil, nil)
	c.Params = gin.Params{{Key: "address", Value: alice.Hex()}}
	h.GetStake(c)

	assert.Equal(t, http.StatusOK, w.Code)
	data := decodeData(t, w)
	assert.Equal(t, true, data["active"])
	assert.Equal(t, float64(4_661), data["unlock_time"])
	assert.Equal(t, "1h 1m 1s", data["unlocks_in"])
}

func TestGetStake_Inactive(t *testing.T) {
	ctrl := gomock.NewController(t)
	defer ctrl.Finish()

	vault := mocks.NewMockVaultService(ctrl)
	h := NewVaultHandler(mocks.NewMockLedgerService(ctrl), vault)

	vault.EXPECT().GetStake(gomock.Any(), bob).Return(domain.InactivePosition(bob), nil)

	c, w := newContext(http.MethodGet, "/", nil, nil)
	c.Params = gin.Params{{Key: "address", Value: bob.Hex()}}
	h.GetStake(c)

	data := decodeData(t, w)
	assert.Equal(t, false, data["active"])
	assert.Equal(t, domain.ZeroHandle.Hex(), data["staked_amount"])
	assert.NotContains(t, data, "unlocks_in")
}

func TestWithdraw_Locked(t *testing.T) {
	ctrl := gomock.NewController(t)
	defer ctrl.Finish()

	vault := mocks.NewMockVaultService(ctrl)
	h := NewVaultHandler(mocks.NewMockLedgerService(ctrl), vault)

	vault.EXPECT().Withdraw(gomock.Any(), alice).Return(nil, apperror.ErrStakeLocked(1_700_003_600))

	c, w := newContext(http.MethodPost, "/api/v1/stakes/withdraw", nil, &alice)
	h.Withdraw(c)

	assert.Equal(t, http.StatusLocked, w.Code)
	var resp map[string]interface{}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	assert.Equal(t, "VAULT_001", resp["error_code"])
	assert.Equal(t, float64(1_700_003_600), resp["details"].(map[string]interface{})["unlock_time"])
}

func TestWithdraw_Success(t *testing.T) {
	ctrl := gomock.NewController(t)
	defer ctrl.Finish()

	vault := mocks.NewMockVaultService(ctrl)
	h := NewVaultHandler(mocks.NewMockLedgerService(ctrl), vault)

	receipt := domain.NewReceipt(domain.ReceiptKindWithdraw, vaultAddr, alice, testHandle(6), time.Now())
	vault.EXPECT().Withdraw(gomock.Any(), alice).Return(receipt, nil)

	c, w := newContext(http.MethodPost, "/", nil, &alice)
	h.Withdraw(c)

	assert.Equal(t, http.StatusCreated, w.Code)
	assert.Equal(t, "WITHDRAW", decodeData(t, w)["kind"])
}

// --- Health ---

func TestHealthCheck(t *testing.T) {
	ctrl := gomock.NewController(t)
	defer ctrl.Finish()

	pg := mocks.NewMockHealthChecker(ctrl)
	rd := mocks.NewMockHealthChecker(ctrl)
	pg.EXPECT().Name().Return("postgresql").AnyTimes()
	rd.EXPECT().Name().Return("redis").AnyTimes()
	pg.EXPECT().Ping(gomock.Any()).Return(nil).Times(2)
	rd.EXPECT().Ping(gomock.Any()).Return(nil)
	rd.EXPECT().Ping(gomock.Any()).Return(errors.New("connection refused"))

	handler := HealthCheck(pg, rd)

	c, w := newContext(http.MethodGet, "/health", nil, nil)
	handler(c)
	assert.Equal(t, http.StatusOK, w.Code)

	c, w = newContext(http.MethodGet, "/health", nil, nil)
	handler(c)
	assert.Equal(t, http.StatusServiceUnavailable, w.Code)
	assert.Contains(t, w.Body.String(), "degraded")
	assert.Contains(t, w.Body.String(), "connection refused")
}
