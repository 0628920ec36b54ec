package main

import (
	"bytes"
	"context"
	"crypto/ecdsa"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strconv"
	"strings"
	"time"

	"zkvault/internal/adapter/http/dto"
	"zkvault/internal/adapter/http/middleware"
	"zkvault/internal/service"

	"github.com/ethereum/go-ethereum/accounts"
	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/common/hexutil"
	"github.com/ethereum/go-ethereum/crypto"
	"github.com/google/uuid"
)

// HTTPClient interface for testability.
type HTTPClient interface {
	Do(req *http.Request) (*http.Response, error)
}

// APIError is a non-2xx answer from the server.
type APIError struct {
	Status  int
	Code    string         `json:"error_code"`
	Message string         `json:"message"`
	Details map[string]any `json:"details,omitempty"`
}

func (e *APIError) Error() string {
	if e.Code == "" {
		return fmt.Sprintf("http %d", e.Status)
	}
	return fmt.Sprintf("%s: %s (http %d)", e.Code, e.Message, e.Status)
}

// client talks to a zkvault server.
type client struct {
	baseURL string
	http    HTTPClient
	token   string
	now     func() time.Time
}

func newClient(baseURL string, httpClient HTTPClient) *client {
	return &client{
		baseURL: strings.TrimRight(baseURL, "/"),
		http:    httpClient,
		now:     time.Now,
	}
}

// call sends a JSON request and decodes the data field of the envelope into out.
func (c *client) call(ctx context.Context, method, path string, body any, header http.Header, out any) error {
	var raw []byte
	if body != nil {
		var err error
		if raw, err = json.Marshal(body); err != nil {
			return fmt.Errorf("encode request: %w", err)
		}
	}
	return c.send(ctx, method, path, raw, header, out)
}

func (c *client) send(ctx context.Context, method, path string, raw []byte, header http.Header, out any) error {
	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, bytes.NewReader(raw))
	if err != nil {
		return fmt.Errorf("build request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	for k, vs := range header {
		for _, v := range vs {
			req.Header.Add(k, v)
		}
	}
	if c.token != "" {
		req.Header.Set("Authorization", "Bearer "+c.token)
	}

	resp, err := c.http.Do(req)
	if err != nil {
		return fmt.Errorf("%s %s: %w", method, path, err)
	}
	defer resp.Body.Close()

	payload, err := io.ReadAll(resp.Body)
	if err != nil {
		return fmt.Errorf("read response: %w", err)
	}

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		apiErr := &APIError{Status: resp.StatusCode}
		_ = json.Unmarshal(payload, apiErr)
		return apiErr
	}
	if out == nil {
		return nil
	}

	envelope := struct {
		Data json.RawMessage `json:"data"`
	}{}
	if err := json.Unmarshal(payload, &envelope); err != nil {
		return fmt.Errorf("decode response: %w", err)
	}
	return json.Unmarshal(envelope.Data, out)
}

// login exchanges a personal_sign signature for a bearer token and keeps it.
func (c *client) login(ctx context.Context, key *ecdsa.PrivateKey) (*dto.LoginResponse, error) {
	account := crypto.PubkeyToAddress(key.PublicKey)
	ts := c.now().Unix()
	sig, err := crypto.Sign(accounts.TextHash([]byte(service.LoginMessage(account, ts))), key)
	if err != nil {
		return nil, fmt.Errorf("sign login message: %w", err)
	}

	var out dto.LoginResponse
	err = c.call(ctx, http.MethodPost, "/api/v1/auth/login", dto.LoginRequest{
		Address:   account.Hex(),
		Timestamp: ts,
		Signature: hexutil.Encode(sig),
	}, nil, &out)
	if err != nil {
		return nil, err
	}
	c.token = out.Token
	return &out, nil
}

func (c *client) tokenInfo(ctx context.Context) (*dto.TokenResponse, error) {
	var out dto.TokenResponse
	if err := c.call(ctx, http.MethodGet, "/api/v1/token", nil, nil, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

// mint sends an issuer request signed with the shared HMAC secret.
func (c *client) mint(ctx context.Context, accessKey, secret string, to common.Address, amount uint64) (*dto.ReceiptResponse, error) {
	const path = "/api/v1/mint"
	body, err := json.Marshal(dto.MintRequest{To: to.Hex(), Amount: strconv.FormatUint(amount, 10)})
	if err != nil {
		return nil, fmt.Errorf("encode request: %w", err)
	}

	sigSvc := service.NewHMACSignatureService()
	ts := c.now().Unix()
	nonce := uuid.NewString()
	canonical := sigSvc.BuildCanonicalString(http.MethodPost, path, ts, nonce, body)

	header := http.Header{}
	header.Set(middleware.HeaderAccessKey, accessKey)
	header.Set(middleware.HeaderSignature, sigSvc.Sign(secret, canonical))
	header.Set(middleware.HeaderTimestamp, strconv.FormatInt(ts, 10))
	header.Set(middleware.HeaderNonce, nonce)
	header.Set("Idempotency-Key", nonce)

	var out dto.ReceiptResponse
	if err := c.send(ctx, http.MethodPost, path, body, header, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

// stake encrypts amount server-side and sends it to the vault in one go.
func (c *client) stake(ctx context.Context, amount, lockSeconds uint64) (*dto.ReceiptResponse, error) {
	var input dto.EncryptInputResponse
	err := c.call(ctx, http.MethodPost, "/api/v1/inputs", dto.EncryptInputRequest{
		Value: strconv.FormatUint(amount, 10),
	}, nil, &input)
	if err != nil {
		return nil, fmt.Errorf("encrypt amount: %w", err)
	}

	var out dto.ReceiptResponse
	err = c.call(ctx, http.MethodPost, "/api/v1/stakes", dto.StakeRequest{
		Handle:      input.Handle,
		Proof:       input.Proof,
		LockSeconds: strconv.FormatUint(lockSeconds, 10),
	}, nil, &out)
	if err != nil {
		return nil, err
	}
	return &out, nil
}

func (c *client) position(ctx context.Context, account common.Address) (*dto.StakeResponse, error) {
	var out dto.StakeResponse
	if err := c.call(ctx, http.MethodGet, "/api/v1/stakes/"+account.Hex(), nil, nil, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

func (c *client) withdraw(ctx context.Context) (*dto.ReceiptResponse, error) {
	var out dto.ReceiptResponse
	if err := c.call(ctx, http.MethodPost, "/api/v1/stakes/withdraw", nil, nil, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

// decrypt reveals a handle the logged-in account may read.
func (c *client) decrypt(ctx context.Context, handle string) (string, error) {
	var out dto.DecryptResponse
	if err := c.call(ctx, http.MethodPost, "/api/v1/decrypt", dto.DecryptRequest{Handle: handle}, nil, &out); err != nil {
		return "", err
	}
	return out.Value, nil
}
