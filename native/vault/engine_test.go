package vault

import (
	"math/big"
	"testing"

	"github.com/stretchr/testify/require"
)

// Scenario 1: linear half-vested.
func TestScenarioLinearHalfVested(t *testing.T) {
	e, _ := newTestEngine(t)
	admin := newTestIdentity(t, 0xA)
	owner := newTestIdentity(t, 0xB)

	require.NoError(t, e.Initialize(admin, big.NewInt(1_000_000)))

	id, err := e.CreateVaultFull(admin, owner, big.NewInt(1_000_000), 1000, 1100, CurveLinear, VaultOptions{})
	require.NoError(t, err)
	require.Equal(t, uint64(0), id)

	e.SetNowFunc(func() int64 { return 1050 })

	claimed, err := e.ClaimTokens(owner, id, big.NewInt(500_000))
	require.NoError(t, err)
	require.Equal(t, big.NewInt(500_000), claimed)

	_, err = e.ClaimTokens(owner, id, big.NewInt(500_000))
	require.ErrorIs(t, err, ErrInsufficientFunds)

	ok, err := e.CheckInvariant()
	require.NoError(t, err)
	require.True(t, ok)
}

// Scenario 2: exponential quarter-vested.
func TestScenarioExponentialQuarterVested(t *testing.T) {
	e, _ := newTestEngine(t)
	admin := newTestIdentity(t, 0xA)
	owner := newTestIdentity(t, 0xB)

	require.NoError(t, e.Initialize(admin, big.NewInt(1_000_000)))
	id, err := e.CreateVaultFull(admin, owner, big.NewInt(1_000_000), 1000, 1100, CurveExponential, VaultOptions{})
	require.NoError(t, err)

	e.SetNowFunc(func() int64 { return 1050 })

	claimed, err := e.ClaimTokens(owner, id, big.NewInt(250_000))
	require.NoError(t, err)
	require.Equal(t, big.NewInt(250_000), claimed)

	_, err = e.ClaimTokens(owner, id, big.NewInt(1))
	require.ErrorIs(t, err, ErrInsufficientFunds)
}

// Scenario 4: freeze-then-revoke success.
func TestScenarioFreezeThenRevoke(t *testing.T) {
	e, _ := newTestEngine(t)
	admin := newTestIdentity(t, 0xA)
	owner := newTestIdentity(t, 0xB)

	require.NoError(t, e.Initialize(admin, big.NewInt(100_000)))
	id, err := e.CreateVaultFull(admin, owner, big.NewInt(100_000), 0, 1000, CurveLinear, VaultOptions{})
	require.NoError(t, err)

	require.NoError(t, e.FreezeVault(admin, id))

	e.SetNowFunc(func() int64 { return 500 })
	_, err = e.ClaimTokens(owner, id, big.NewInt(1))
	require.ErrorIs(t, err, ErrVaultFrozen)

	balanceBefore, _, err := e.state.GetAdminBalance()
	require.NoError(t, err)

	revoked, err := e.RevokeTokens(admin, id)
	require.NoError(t, err)
	require.Equal(t, big.NewInt(100_000), revoked)

	balanceAfter, _, err := e.state.GetAdminBalance()
	require.NoError(t, err)
	require.Equal(t, new(big.Int).Add(balanceBefore, big.NewInt(100_000)), balanceAfter)

	// Re-revoke is idempotent-barrier: fails since remaining is zero.
	_, err = e.RevokeTokens(admin, id)
	require.ErrorIs(t, err, ErrNothingToRevoke)
}

// Revoke succeeds on a frozen vault (P6) but fails on an irrevocable one.
func TestRevokeIgnoresFreezeRespectsIrrevocable(t *testing.T) {
	e, _ := newTestEngine(t)
	admin := newTestIdentity(t, 0xA)
	owner := newTestIdentity(t, 0xB)
	require.NoError(t, e.Initialize(admin, big.NewInt(200_000)))

	id, err := e.CreateVaultFull(admin, owner, big.NewInt(100_000), 0, 1000, CurveLinear, VaultOptions{IsIrrevocable: true})
	require.NoError(t, err)
	_, err = e.RevokeTokens(admin, id)
	require.ErrorIs(t, err, ErrVaultIrrevocable)

	frozenID, err := e.CreateVaultFull(admin, owner, big.NewInt(100_000), 0, 1000, CurveLinear, VaultOptions{})
	require.NoError(t, err)
	require.NoError(t, e.FreezeVault(admin, frozenID))
	revoked, err := e.RevokeTokens(admin, frozenID)
	require.NoError(t, err)
	require.Equal(t, big.NewInt(100_000), revoked)
}

// Scenario 5: admin handover.
func TestScenarioAdminHandover(t *testing.T) {
	e, _ := newTestEngine(t)
	admin := newTestIdentity(t, 0xA)
	candidate := newTestIdentity(t, 0xC)
	stranger := newTestIdentity(t, 0xD)

	require.NoError(t, e.Initialize(admin, big.NewInt(1)))
	require.NoError(t, e.ProposeNewAdmin(admin, candidate))

	err := e.AcceptOwnership(stranger)
	require.ErrorIs(t, err, ErrUnauthorized)

	require.NoError(t, e.AcceptOwnership(candidate))

	err = e.ProposeNewAdmin(admin, stranger)
	require.ErrorIs(t, err, ErrUnauthorized)
}

// Scenario 6: batch atomicity.
func TestScenarioBatchAtomicity(t *testing.T) {
	e, _ := newTestEngine(t)
	admin := newTestIdentity(t, 0xA)
	b1 := newTestIdentity(t, 0xB1)
	b2 := newTestIdentity(t, 0xB2)

	require.NoError(t, e.Initialize(admin, big.NewInt(1_000)))

	specs := []CreateSpec{
		{Owner: b1, Amount: big.NewInt(600), Start: 0, End: 100, Curve: CurveLinear},
		{Owner: b2, Amount: big.NewInt(500), Start: 0, End: 100, Curve: CurveLinear},
	}
	_, err := e.BatchCreateVaultsFull(admin, specs)
	require.ErrorIs(t, err, ErrInsufficientFunds)

	count, err := e.state.GetVaultCount()
	require.NoError(t, err)
	require.Equal(t, uint64(0), count)
}

func TestCreateVaultLazyDefersIndexAndPromotes(t *testing.T) {
	e, _ := newTestEngine(t)
	admin := newTestIdentity(t, 0xA)
	owner := newTestIdentity(t, 0xB)
	require.NoError(t, e.Initialize(admin, big.NewInt(1_000)))

	id, err := e.CreateVaultLazy(admin, owner, big.NewInt(1_000), 0, 100, CurveLinear, VaultOptions{})
	require.NoError(t, err)

	ids, err := e.GetUserVaults(owner)
	require.NoError(t, err)
	require.Empty(t, ids)

	promoted, err := e.InitializeVaultMetadata(owner, id)
	require.NoError(t, err)
	require.True(t, promoted)

	promotedAgain, err := e.InitializeVaultMetadata(owner, id)
	require.NoError(t, err)
	require.False(t, promotedAgain)

	ids, err = e.GetUserVaults(owner)
	require.NoError(t, err)
	require.Equal(t, []uint64{id}, ids)
}

func TestTransferBeneficiaryMovesIndex(t *testing.T) {
	e, _ := newTestEngine(t)
	admin := newTestIdentity(t, 0xA)
	owner := newTestIdentity(t, 0xB)
	newOwner := newTestIdentity(t, 0xC)
	require.NoError(t, e.Initialize(admin, big.NewInt(1_000)))

	id, err := e.CreateVaultFull(admin, owner, big.NewInt(1_000), 0, 100, CurveLinear, VaultOptions{})
	require.NoError(t, err)

	require.NoError(t, e.TransferBeneficiary(admin, id, newOwner))

	oldIdx, err := e.GetUserVaults(owner)
	require.NoError(t, err)
	require.Empty(t, oldIdx)

	newIdx, err := e.GetUserVaults(newOwner)
	require.NoError(t, err)
	require.Equal(t, []uint64{id}, newIdx)
}

func TestMigrateLiquidityBlocksMutations(t *testing.T) {
	e, _ := newTestEngine(t)
	admin := newTestIdentity(t, 0xA)
	successor := newTestIdentity(t, 0xF)
	owner := newTestIdentity(t, 0xB)
	require.NoError(t, e.Initialize(admin, big.NewInt(1_000)))

	require.NoError(t, e.MigrateLiquidity(admin, successor))

	_, err := e.CreateVaultFull(admin, owner, big.NewInt(100), 0, 100, CurveLinear, VaultOptions{})
	require.ErrorIs(t, err, ErrDeprecated)

	deprecated, err := e.IsDeprecated()
	require.NoError(t, err)
	require.True(t, deprecated)

	target, err := e.GetMigrationTarget()
	require.NoError(t, err)
	require.NotNil(t, target)
}

func TestPauseBlocksClaimOnly(t *testing.T) {
	e, _ := newTestEngine(t)
	admin := newTestIdentity(t, 0xA)
	owner := newTestIdentity(t, 0xB)
	require.NoError(t, e.Initialize(admin, big.NewInt(1_000)))
	id, err := e.CreateVaultFull(admin, owner, big.NewInt(1_000), 0, 100, CurveLinear, VaultOptions{})
	require.NoError(t, err)

	require.NoError(t, e.Pause(admin))
	e.SetNowFunc(func() int64 { return 50 })
	_, err = e.ClaimTokens(owner, id, big.NewInt(1))
	require.ErrorIs(t, err, ErrPaused)

	require.NoError(t, e.Unpause(admin))
	_, err = e.ClaimTokens(owner, id, big.NewInt(1))
	require.NoError(t, err)
}

func TestFreezeUnfreezeRejectDoubleCalls(t *testing.T) {
	e, _ := newTestEngine(t)
	admin := newTestIdentity(t, 0xA)
	owner := newTestIdentity(t, 0xB)
	require.NoError(t, e.Initialize(admin, big.NewInt(1_000)))
	id, err := e.CreateVaultFull(admin, owner, big.NewInt(1_000), 0, 100, CurveLinear, VaultOptions{})
	require.NoError(t, err)

	// Unfreezing an already-unfrozen vault fails distinctly.
	err = e.UnfreezeVault(admin, id)
	require.ErrorIs(t, err, ErrVaultNotFrozen)

	require.NoError(t, e.FreezeVault(admin, id))

	// Freezing an already-frozen vault fails distinctly.
	err = e.FreezeVault(admin, id)
	require.ErrorIs(t, err, ErrVaultFrozen)

	require.NoError(t, e.UnfreezeVault(admin, id))
}

func TestMilestoneDrivenVault(t *testing.T) {
	e, _ := newTestEngine(t)
	admin := newTestIdentity(t, 0xA)
	owner := newTestIdentity(t, 0xB)
	require.NoError(t, e.Initialize(admin, big.NewInt(1_000_000)))

	opts := VaultOptions{Milestones: []Milestone{
		{Label: "launch", Weight: 40},
		{Label: "ga", Weight: 60},
	}}
	id, err := e.CreateVaultFull(admin, owner, big.NewInt(1_000_000), 0, 100, CurveLinear, opts)
	require.NoError(t, err)

	_, err = e.ClaimTokens(owner, id, big.NewInt(1))
	require.ErrorIs(t, err, ErrInsufficientFunds)

	require.NoError(t, e.UnlockMilestone(admin, id, "launch"))
	claimed, err := e.ClaimTokens(owner, id, big.NewInt(400_000))
	require.NoError(t, err)
	require.Equal(t, big.NewInt(400_000), claimed)
}

func TestClaimAsDelegateRequiresDelegateSet(t *testing.T) {
	e, _ := newTestEngine(t)
	admin := newTestIdentity(t, 0xA)
	owner := newTestIdentity(t, 0xB)
	delegate := newTestIdentity(t, 0xD)
	require.NoError(t, e.Initialize(admin, big.NewInt(1_000)))
	id, err := e.CreateVaultFull(admin, owner, big.NewInt(1_000), 0, 100, CurveLinear, VaultOptions{})
	require.NoError(t, err)

	e.SetNowFunc(func() int64 { return 50 })
	_, err = e.ClaimAsDelegate(delegate, id, big.NewInt(1))
	require.ErrorIs(t, err, ErrUnauthorized)

	require.NoError(t, e.SetDelegate(owner, id, &delegate))
	claimed, err := e.ClaimAsDelegate(delegate, id, big.NewInt(100))
	require.NoError(t, err)
	require.Equal(t, big.NewInt(100), claimed)

	v, err := e.GetVault(id)
	require.NoError(t, err)
	require.Equal(t, big.NewInt(100), v.ReleasedAmount)
}
