package vault

import "math/big"

// Vested computes the portion of total that has unlocked by now under the
// given curve over the half-open window [start, end). All intermediate
// products use math/big, which offers arbitrarily wide precision — far
// beyond the 256 bits the largest total*elapsed^2 product can ever need
// here, since total is bounded to 128 bits and elapsed to MaxDuration.
//
// Division truncates toward zero, so the result can underestimate the
// continuous value by at most one unit; callers tolerate that drift.
func Vested(total *big.Int, start, end, now uint64, curve Curve) *big.Int {
	if total == nil || total.Sign() <= 0 {
		return big.NewInt(0)
	}
	if now <= start {
		return big.NewInt(0)
	}
	if now >= end {
		return new(big.Int).Set(total)
	}

	span := new(big.Int).SetUint64(end - start)
	elapsed := new(big.Int).SetUint64(now - start)

	switch curve {
	case CurveExponential:
		numerator := new(big.Int).Mul(total, elapsed)
		numerator.Mul(numerator, elapsed)
		denominator := new(big.Int).Mul(span, span)
		return numerator.Quo(numerator, denominator)
	default: // CurveLinear
		numerator := new(big.Int).Mul(total, elapsed)
		return numerator.Quo(numerator, span)
	}
}

// Unvested returns total-vested, completing the partition invariant
// vested + unvested = total by construction.
func Unvested(total, vested *big.Int) *big.Int {
	t := cloneBigInt(total)
	v := cloneBigInt(vested)
	out := new(big.Int).Sub(t, v)
	if out.Sign() < 0 {
		return big.NewInt(0)
	}
	return out
}

// VestedFromMilestones computes the vested amount for a vault whose unlock
// schedule is driven by discrete, administratively-unlocked milestones
// rather than a continuous curve. unlockedWeightSum is the sum of the
// weights of every milestone currently marked unlocked (0-100); the pure
// math function does not know how milestones get unlocked, only how to
// translate the unlocked fraction into an amount.
func VestedFromMilestones(total *big.Int, unlockedWeightSum uint64) *big.Int {
	if total == nil || total.Sign() <= 0 || unlockedWeightSum == 0 {
		return big.NewInt(0)
	}
	if unlockedWeightSum > 100 {
		unlockedWeightSum = 100
	}
	numerator := new(big.Int).Mul(total, new(big.Int).SetUint64(unlockedWeightSum))
	return numerator.Quo(numerator, big.NewInt(100))
}

// VestedAt is a convenience wrapper that dispatches to the milestone or
// continuous-curve computation depending on how the vault is configured.
func VestedAt(v *Vault, now uint64) *big.Int {
	if v == nil {
		return big.NewInt(0)
	}
	if v.HasMilestones() {
		return VestedFromMilestones(v.TotalAmount, v.UnlockedMilestoneWeight())
	}
	return Vested(v.TotalAmount, v.StartTime, v.EndTime, now, v.Curve)
}
