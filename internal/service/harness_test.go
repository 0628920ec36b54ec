package service

import (
	"context"
	"io"
	"testing"

	"zkvault/internal/adapter/storage/memory"
	"zkvault/internal/core/domain"
	"zkvault/internal/core/ports"
	"zkvault/internal/fhe"

	"github.com/ethereum/go-ethereum/common"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/require"
)

const testChainID = 31337

var (
	tokenAddr = common.HexToAddress("0x00000000000000000000000000000000000c0de1")
	vaultAddr = common.HexToAddress("0x00000000000000000000000000000000000c0de2")
	alice     = common.HexToAddress("0x00000000000000000000000000000000000a11ce")
	bob       = common.HexToAddress("0x0000000000000000000000000000000000000b0b")
)

func newTestLogger() zerolog.Logger {
	return zerolog.New(io.Discard)
}

type fixedClock struct{ now uint64 }

func (c *fixedClock) Now() uint64 { return c.now }

func (c *fixedClock) Advance(seconds uint64) { c.now += seconds }

// harness wires a ledger and vault on in-memory state and a local coprocessor.
type harness struct {
	store  *memory.Store
	cop    *fhe.Coprocessor
	ledger *LedgerServiceImpl
	vault  *VaultServiceImpl
	clock  *fixedClock
	minted uint64
}

func newHarness(t *testing.T, policy BalancePolicy) *harness {
	t.Helper()

	keys, err := fhe.GenerateKeyMaterial()
	require.NoError(t, err)
	sealer, err := fhe.NewSealerFromHex(keys.MasterKey)
	require.NoError(t, err)
	signer, err := fhe.NewInputSignerFromHex(keys.SignerKey, testChainID)
	require.NoError(t, err)

	store := memory.NewStore()
	cop := fhe.New(memory.NewCiphertextStore(), memory.NewNonceStore(memory.NewKV()), sealer, signer, testChainID, newTestLogger())
	clock := &fixedClock{now: 1_700_000_000}

	meta := domain.TokenMetadata{Name: "Confidential USDT", Symbol: "cUSDT", Decimals: 6, Address: tokenAddr, VaultAddress: vaultAddr}
	ledger := NewLedgerService(meta, cop, store, store, policy, newTestLogger())
	vault := NewVaultService(vaultAddr, ledger, cop, store, store, clock, 0, newTestLogger())
	ledger.RegisterReceiver(vaultAddr, vault)

	return &harness{store: store, cop: cop, ledger: ledger, vault: vault, clock: clock}
}

func (h *harness) mint(t *testing.T, to common.Address, amount uint64) {
	t.Helper()
	_, err := h.ledger.Mint(context.Background(), ports.MintRequest{To: to, Amount: amount})
	require.NoError(t, err)
	h.minted += amount
}

// input encrypts value as caller for the ledger contract.
func (h *harness) input(t *testing.T, caller common.Address, value uint64) *domain.EncryptedInput {
	t.Helper()
	in, err := h.cop.EncryptInput(context.Background(), ports.InputContext{Contract: tokenAddr, Sender: caller}, value)
	require.NoError(t, err)
	return in
}

func (h *harness) transferReq(t *testing.T, from, to common.Address, value uint64, payload []byte) ports.TransferRequest {
	t.Helper()
	in := h.input(t, from, value)
	return ports.TransferRequest{Caller: from, To: to, EncryptedAmount: in.Handle, Proof: in.Proof, Payload: payload}
}

func (h *harness) stake(t *testing.T, from common.Address, amount, lock uint64) (*domain.Receipt, error) {
	t.Helper()
	payload, err := domain.EncodeLockPayload(lock)
	require.NoError(t, err)
	return h.ledger.ConfidentialTransferAndNotify(context.Background(), h.transferReq(t, from, vaultAddr, amount, payload))
}

func (h *harness) decrypt(t *testing.T, handle domain.Handle) uint64 {
	t.Helper()
	v, err := h.cop.DecryptUnchecked(context.Background(), handle)
	require.NoError(t, err)
	return v
}

func (h *harness) balance(t *testing.T, account common.Address) uint64 {
	t.Helper()
	handle, err := h.ledger.ConfidentialBalanceOf(context.Background(), account)
	require.NoError(t, err)
	return h.decrypt(t, handle)
}

func (h *harness) position(t *testing.T, account common.Address) *domain.StakePosition {
	t.Helper()
	pos, err := h.vault.GetStake(context.Background(), account)
	require.NoError(t, err)
	return pos
}

// total sums every balance and every active stake.
func (h *harness) total(t *testing.T) uint64 {
	t.Helper()
	var sum uint64
	for _, a := range h.store.Accounts() {
		sum += h.balance(t, a)
	}
	for _, p := range h.store.Positions() {
		if p.Active {
			sum += h.decrypt(t, p.StakedAmount)
		}
	}
	return sum
}
