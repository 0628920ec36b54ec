package dto

// Hex fields are 0x-prefixed. Amounts and lock durations travel as decimal
// strings so JSON clients never round them through a float.

// LoginRequest is the request body for wallet login.
type LoginRequest struct {
	Address   string `json:"address" binding:"required,account"`
	Timestamp int64  `json:"timestamp" binding:"required"`
	Signature string `json:"signature" binding:"required,hexbytes"`
}

// LoginResponse is the response body for successful login.
type LoginResponse struct {
	Account string `json:"account"`
	Token   string `json:"token"`
	Expiry  int64  `json:"expiry"` // Unix timestamp
}

// TokenResponse describes the ledger and its encrypted total supply.
type TokenResponse struct {
	Name         string `json:"name"`
	Symbol       string `json:"symbol"`
	Decimals     uint8  `json:"decimals"`
	Address      string `json:"address"`
	VaultAddress string `json:"vault_address"`
	TotalSupply  string `json:"total_supply"`
}

// EncryptInputRequest asks the coprocessor to encrypt an amount for the caller.
type EncryptInputRequest struct {
	Value string `json:"value" binding:"required,uint64_str"`
}

// EncryptInputResponse carries the input handle and its proof.
type EncryptInputResponse struct {
	Handle   string `json:"handle"`
	Proof    string `json:"proof"`
	Contract string `json:"contract"`
}

// TransferRequest is the request body for confidential transfers.
type TransferRequest struct {
	To      string `json:"to" binding:"required,account"`
	Handle  string `json:"handle" binding:"required,handle"`
	Proof   string `json:"proof" binding:"required,hexbytes"`
	Payload string `json:"payload,omitempty" binding:"omitempty,hexbytes"`
}

// StakeRequest deposits an encrypted amount into the vault.
type StakeRequest struct {
	Handle      string `json:"handle" binding:"required,handle"`
	Proof       string `json:"proof" binding:"required,hexbytes"`
	LockSeconds string `json:"lock_seconds" binding:"required,uint64_str"`
}

// MintRequest is the issuer's request to mint a plaintext amount.
type MintRequest struct {
	To     string `json:"to" binding:"required,account"`
	Amount string `json:"amount" binding:"required,uint64_str"`
}

// DecryptRequest asks for the plaintext behind a handle.
type DecryptRequest struct {
	Handle string `json:"handle" binding:"required,handle"`
}

// DecryptResponse is the response body for decryption.
type DecryptResponse struct {
	Handle string `json:"handle"`
	Value  string `json:"value"`
}

// BalanceResponse is the response for balance query.
type BalanceResponse struct {
	Account string `json:"account"`
	Balance string `json:"balance"`
}

// StakeResponse is an account's vault position.
type StakeResponse struct {
	Account      string `json:"account"`
	StakedAmount string `json:"staked_amount"`
	UnlockTime   uint64 `json:"unlock_time"`
	Active       bool   `json:"active"`
	UnlocksIn    string `json:"unlocks_in,omitempty"`
}

// ReceiptResponse is the response body for a committed write.
type ReceiptResponse struct {
	ID          string  `json:"id"`
	Kind        string  `json:"kind"`
	From        string  `json:"from"`
	To          string  `json:"to"`
	Amount      string  `json:"amount"`
	MintedValue *string `json:"minted_value,omitempty"`
	CreatedAt   string  `json:"created_at"`
}

// ReceiptListResponse wraps the caller's receipts.
type ReceiptListResponse struct {
	Items []ReceiptResponse `json:"items"`
	Count int               `json:"count"`
}
