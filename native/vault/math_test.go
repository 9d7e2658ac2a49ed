package vault

import (
	"math/big"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestVestedLinearHalfway(t *testing.T) {
	total := big.NewInt(1_000_000)
	got := Vested(total, 1000, 1100, 1050, CurveLinear)
	require.Equal(t, big.NewInt(500_000), got)
}

func TestVestedExponentialQuarter(t *testing.T) {
	total := big.NewInt(1_000_000)
	got := Vested(total, 1000, 1100, 1050, CurveExponential)
	require.Equal(t, big.NewInt(250_000), got)
}

func TestVestedBeforeStart(t *testing.T) {
	total := big.NewInt(1_000_000)
	require.Equal(t, big.NewInt(0), Vested(total, 1000, 1100, 999, CurveLinear))
	require.Equal(t, big.NewInt(0), Vested(total, 1000, 1100, 1000, CurveLinear))
}

func TestVestedAtOrAfterEnd(t *testing.T) {
	total := big.NewInt(1_000_000)
	require.Equal(t, 0, total.Cmp(Vested(total, 1000, 1100, 1100, CurveLinear)))
	require.Equal(t, 0, total.Cmp(Vested(total, 1000, 1100, 5_000_000, CurveExponential)))
}

// TestVestedPartition is property P1: vested + unvested == total for every
// observation point across the window, for both curves.
func TestVestedPartition(t *testing.T) {
	total := big.NewInt(987_654_321)
	start, end := uint64(2000), uint64(500_000)
	for _, curve := range []Curve{CurveLinear, CurveExponential} {
		for now := start - 10; now <= end+10; now += 977 {
			vested := Vested(total, start, end, now, curve)
			unvested := Unvested(total, vested)
			sum := new(big.Int).Add(vested, unvested)
			require.Equal(t, 0, total.Cmp(sum), "curve=%v now=%d vested=%s unvested=%s", curve, now, vested, unvested)
			require.True(t, vested.Sign() >= 0)
			require.True(t, vested.Cmp(total) <= 0)
		}
	}
}

// TestVestedMaturation is property P2: vested(v, t) == total for all t >= end.
func TestVestedMaturation(t *testing.T) {
	total := big.NewInt(42_000_000)
	for _, curve := range []Curve{CurveLinear, CurveExponential} {
		for _, now := range []uint64{1100, 1101, 999_999_999} {
			got := Vested(total, 1000, 1100, now, curve)
			require.Equal(t, 0, total.Cmp(got))
		}
	}
}

func TestTenYearGrantHalfway(t *testing.T) {
	total := big.NewInt(100_000_000)
	got := Vested(total, 0, 315_360_000, 157_680_000, CurveLinear)
	require.True(t, got.Cmp(big.NewInt(49_999_999)) >= 0)
	require.True(t, got.Cmp(big.NewInt(50_000_000)) <= 0)
}

func TestVestedFromMilestones(t *testing.T) {
	total := big.NewInt(1_000_000)
	require.Equal(t, big.NewInt(0), VestedFromMilestones(total, 0))
	require.Equal(t, big.NewInt(250_000), VestedFromMilestones(total, 25))
	require.Equal(t, big.NewInt(1_000_000), VestedFromMilestones(total, 100))
	// Over-unlocked input clamps to 100, never exceeding total.
	require.Equal(t, big.NewInt(1_000_000), VestedFromMilestones(total, 150))
}

func TestVestedAtDispatchesToMilestones(t *testing.T) {
	v := &Vault{
		TotalAmount: big.NewInt(1_000_000),
		StartTime:   0,
		EndTime:     100,
		Curve:       CurveLinear,
		Milestones: []Milestone{
			{Label: "launch", Weight: 40, Unlocked: true},
			{Label: "ga", Weight: 60, Unlocked: false},
		},
	}
	require.Equal(t, big.NewInt(400_000), VestedAt(v, 50))
}
