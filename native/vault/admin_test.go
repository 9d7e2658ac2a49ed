package vault

import (
	"math/big"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestInitializeRejectsSecondCall(t *testing.T) {
	e, _ := newTestEngine(t)
	admin := newTestIdentity(t, 0xA)
	require.NoError(t, e.Initialize(admin, big.NewInt(100)))
	err := e.Initialize(admin, big.NewInt(100))
	require.ErrorIs(t, err, ErrAlreadyInitialized)
}

func TestProposeNewAdminOverwritesPending(t *testing.T) {
	e, _ := newTestEngine(t)
	admin := newTestIdentity(t, 0xA)
	first := newTestIdentity(t, 0xC1)
	second := newTestIdentity(t, 0xC2)
	require.NoError(t, e.Initialize(admin, big.NewInt(1)))

	require.NoError(t, e.ProposeNewAdmin(admin, first))
	require.NoError(t, e.ProposeNewAdmin(admin, second))

	require.ErrorIs(t, e.AcceptOwnership(first), ErrUnauthorized)
	require.NoError(t, e.AcceptOwnership(second))
}

func TestAcceptOwnershipFailsWithoutProposal(t *testing.T) {
	e, _ := newTestEngine(t)
	admin := newTestIdentity(t, 0xA)
	candidate := newTestIdentity(t, 0xC)
	require.NoError(t, e.Initialize(admin, big.NewInt(1)))
	require.ErrorIs(t, e.AcceptOwnership(candidate), ErrUnauthorized)
}

// requireAdmin must fail Unauthorized, not NotInitialized, when admin_address
// is unset — spec §4.C is explicit that an unset admin is an Unauthorized
// case for every admin-gated call, not a distinct failure kind.
func TestAdminGatedCallsFailUnauthorizedBeforeInitialize(t *testing.T) {
	e, _ := newTestEngine(t)
	caller := newTestIdentity(t, 0xA)
	owner := newTestIdentity(t, 0xB)

	_, err := e.CreateVaultFull(caller, owner, big.NewInt(1), 0, 100, CurveLinear, VaultOptions{})
	require.ErrorIs(t, err, ErrUnauthorized)

	err = e.FreezeVault(caller, 0)
	require.ErrorIs(t, err, ErrUnauthorized)

	_, err = e.RevokeTokens(caller, 0)
	require.ErrorIs(t, err, ErrUnauthorized)
}
