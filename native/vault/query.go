package vault

import "math/big"

// ContractState summarizes the fleet: total_locked = Σ(total-released),
// total_claimed = Σ released, plus the current admin_balance.
type ContractState struct {
	TotalLocked  *big.Int
	TotalClaimed *big.Int
	AdminBalance *big.Int
}

// GetContractState folds across every allocated vault id. It is O(n) in
// vault count, matching the design's bounded-fleet assumption.
func (e *Engine) GetContractState() (*ContractState, error) {
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.state == nil {
		return nil, errNilState
	}
	return e.contractStateLocked()
}

func (e *Engine) contractStateLocked() (*ContractState, error) {
	count, err := e.state.GetVaultCount()
	if err != nil {
		return nil, err
	}
	totalLocked := big.NewInt(0)
	totalClaimed := big.NewInt(0)
	for id := uint64(0); id < count; id++ {
		v, ok, err := e.state.GetVault(id)
		if err != nil {
			return nil, err
		}
		if !ok {
			continue
		}
		locked := new(big.Int).Sub(v.TotalAmount, v.ReleasedAmount)
		totalLocked.Add(totalLocked, locked)
		totalClaimed.Add(totalClaimed, v.ReleasedAmount)
	}
	balance, _, err := e.state.GetAdminBalance()
	if err != nil {
		return nil, err
	}
	return &ContractState{TotalLocked: totalLocked, TotalClaimed: totalClaimed, AdminBalance: balance}, nil
}

// CheckInvariant reports whether total_locked + total_claimed + admin_balance
// equals initial_supply — the global conservation law (P4).
func (e *Engine) CheckInvariant() (bool, error) {
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.state == nil {
		return false, errNilState
	}
	state, err := e.contractStateLocked()
	if err != nil {
		return false, err
	}
	supply, ok, err := e.state.GetInitialSupply()
	if err != nil {
		return false, err
	}
	if !ok {
		return false, nil
	}
	sum := new(big.Int).Add(state.TotalLocked, state.TotalClaimed)
	sum.Add(sum, state.AdminBalance)
	ok = sum.Cmp(supply) == 0
	if !ok {
		e.telemetry.ObserveInvariantFailure()
	}
	return ok, nil
}

// GetVault is a pure read: it never promotes a lazy vault, unlike the
// source pattern that mutated state from a getter. Use
// InitializeVaultMetadata to promote explicitly.
func (e *Engine) GetVault(vaultID uint64) (*Vault, error) {
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.state == nil {
		return nil, errNilState
	}
	v, ok, err := e.state.GetVault(vaultID)
	if err != nil {
		return nil, err
	}
	if !ok {
		return nil, ErrVaultNotFound
	}
	return v.Clone(), nil
}

// GetUserVaults returns the owner's current vault-id index; it contains
// only active (non-lazy) vaults by construction.
func (e *Engine) GetUserVaults(owner Identity) ([]uint64, error) {
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.state == nil {
		return nil, errNilState
	}
	return e.state.GetUserIndex(owner)
}

// GetAdmin returns the current admin identity.
func (e *Engine) GetAdmin() (*Identity, error) {
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.state == nil {
		return nil, errNilState
	}
	return e.state.GetAdminAddress()
}

// GetProposedAdmin returns the pending admin handover target, if any.
func (e *Engine) GetProposedAdmin() (*Identity, error) {
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.state == nil {
		return nil, errNilState
	}
	return e.state.GetProposedAdmin()
}

// IsDeprecated reports whether migrate_liquidity has run.
func (e *Engine) IsDeprecated() (bool, error) {
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.state == nil {
		return false, errNilState
	}
	return e.state.GetIsDeprecated()
}

// GetMigrationTarget returns the successor recorded by migrate_liquidity.
func (e *Engine) GetMigrationTarget() (*Identity, error) {
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.state == nil {
		return nil, errNilState
	}
	return e.state.GetMigrationTarget()
}
