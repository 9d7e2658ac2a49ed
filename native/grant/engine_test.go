package grant

import (
	"math/big"
	"testing"

	"github.com/stretchr/testify/require"

	"nhbchain/crypto"
	"nhbchain/ledger/store"
	"nhbchain/storage"
)

func newTestEngine(t *testing.T) *Engine {
	t.Helper()
	kv := store.New(storage.NewMemDB())
	e := NewEngine()
	e.SetState(NewStore(kv))
	return e
}

func newTestIdentity(t *testing.T, seed byte) Identity {
	t.Helper()
	b := make([]byte, 20)
	for i := range b {
		b[i] = seed
	}
	addr, err := crypto.NewAddress(crypto.NHBPrefix, b)
	require.NoError(t, err)
	return addr
}

// Scenario 3: ten-year grant.
func TestScenarioTenYearGrant(t *testing.T) {
	e := newTestEngine(t)
	recipient := newTestIdentity(t, 0x70)

	e.SetNowFunc(func() int64 { return 0 })
	require.NoError(t, e.InitializeGrant(recipient, big.NewInt(100_000_000), 315_360_000))

	e.SetNowFunc(func() int64 { return 157_680_000 })
	claimable, err := e.ClaimableBalance()
	require.NoError(t, err)
	require.True(t, claimable.Cmp(big.NewInt(49_999_999)) >= 0)
	require.True(t, claimable.Cmp(big.NewInt(50_000_000)) <= 0)

	e.SetNowFunc(func() int64 { return 315_360_000 })
	claimed, err := e.Claim(recipient)
	require.NoError(t, err)
	require.Equal(t, 0, big.NewInt(100_000_000).Cmp(claimed))

	_, err = e.Claim(recipient)
	require.ErrorIs(t, err, ErrInvalidAmount)
}

func TestInitializeGrantRejectsSecondCall(t *testing.T) {
	e := newTestEngine(t)
	recipient := newTestIdentity(t, 0x70)
	require.NoError(t, e.InitializeGrant(recipient, big.NewInt(1_000), 1000))
	err := e.InitializeGrant(recipient, big.NewInt(1_000), 1000)
	require.ErrorIs(t, err, ErrAlreadyInitialized)
}

func TestClaimRejectsNonRecipient(t *testing.T) {
	e := newTestEngine(t)
	recipient := newTestIdentity(t, 0x70)
	stranger := newTestIdentity(t, 0xF)
	e.SetNowFunc(func() int64 { return 0 })
	require.NoError(t, e.InitializeGrant(recipient, big.NewInt(1_000), 1000))

	e.SetNowFunc(func() int64 { return 500 })
	_, err := e.Claim(stranger)
	require.ErrorIs(t, err, ErrUnauthorized)
}

func TestGetGrantInfoReflectsProgress(t *testing.T) {
	e := newTestEngine(t)
	recipient := newTestIdentity(t, 0x70)
	e.SetNowFunc(func() int64 { return 1000 })
	require.NoError(t, e.InitializeGrant(recipient, big.NewInt(1_000), 1000))

	e.SetNowFunc(func() int64 { return 1500 })
	_, err := e.Claim(recipient)
	require.NoError(t, err)

	info, err := e.GetGrantInfo()
	require.NoError(t, err)
	require.Equal(t, uint64(1000), info.Start)
	require.Equal(t, uint64(2000), info.End)
	require.Equal(t, big.NewInt(500), info.Claimed)
}
