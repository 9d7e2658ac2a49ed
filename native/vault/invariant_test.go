package vault

import (
	"math/big"
	"testing"

	"github.com/stretchr/testify/require"
)

// TestGlobalConservationAcrossLifecycle is P4: the invariant holds after
// creation, partial claim, and revoke, across a small fleet of vaults.
func TestGlobalConservationAcrossLifecycle(t *testing.T) {
	e, _ := newTestEngine(t)
	admin := newTestIdentity(t, 0xA)
	b1 := newTestIdentity(t, 0xB1)
	b2 := newTestIdentity(t, 0xB2)
	require.NoError(t, e.Initialize(admin, big.NewInt(3_000_000)))

	id1, err := e.CreateVaultFull(admin, b1, big.NewInt(1_000_000), 0, 1000, CurveLinear, VaultOptions{})
	require.NoError(t, err)
	id2, err := e.CreateVaultFull(admin, b2, big.NewInt(1_000_000), 0, 1000, CurveExponential, VaultOptions{})
	require.NoError(t, err)

	ok, err := e.CheckInvariant()
	require.NoError(t, err)
	require.True(t, ok)

	e.SetNowFunc(func() int64 { return 500 })
	_, err = e.ClaimTokens(b1, id1, big.NewInt(400_000))
	require.NoError(t, err)

	ok, err = e.CheckInvariant()
	require.NoError(t, err)
	require.True(t, ok)

	_, err = e.RevokeTokens(admin, id2)
	require.NoError(t, err)

	ok, err = e.CheckInvariant()
	require.NoError(t, err)
	require.True(t, ok)

	state, err := e.GetContractState()
	require.NoError(t, err)
	require.Equal(t, big.NewInt(600_000), state.TotalLocked)
	require.Equal(t, big.NewInt(400_000), state.TotalClaimed)
}

func TestCheckInvariantFalseBeforeInitialize(t *testing.T) {
	e, _ := newTestEngine(t)
	ok, err := e.CheckInvariant()
	require.NoError(t, err)
	require.False(t, ok)
}
