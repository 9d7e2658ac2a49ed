// Package grant implements the single-beneficiary degenerate case of the
// vault ledger: one recipient, one linear schedule, one running claimed
// total. It reuses the vault package's vesting math directly rather than
// re-deriving it.
package grant

import (
	"math/big"

	"nhbchain/crypto"
)

// Identity is the caller/recipient address type.
type Identity = crypto.Address

// Grant is the sole accounting record for a deployment: a fixed total
// released linearly between start and start+duration.
type Grant struct {
	Recipient Identity
	Total     *big.Int
	Start     uint64
	End       uint64
	Claimed   *big.Int
}

func (g *Grant) Clone() *Grant {
	if g == nil {
		return nil
	}
	clone := *g
	clone.Total = new(big.Int).Set(g.Total)
	clone.Claimed = new(big.Int).Set(g.Claimed)
	return &clone
}
