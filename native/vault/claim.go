package vault

import "math/big"

// ClaimTokens validates every precondition in order — pause/deprecation,
// vault existence and activation, freeze state, amount positivity, caller
// authorization, then the vested-minus-released bound — before crediting
// released_amount. The credited identity is always the vault's owner, even
// when a delegate invoked; delegates cannot redirect funds.
func (e *Engine) ClaimTokens(caller Identity, vaultID uint64, amount *big.Int) (*big.Int, error) {
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.state == nil {
		return nil, errNilState
	}
	if err := e.checkNotPaused(); err != nil {
		return nil, err
	}
	if err := e.checkNotDeprecated(); err != nil {
		return nil, err
	}
	v, ok, err := e.state.GetVault(vaultID)
	if err != nil {
		return nil, err
	}
	if !ok {
		return nil, ErrVaultNotFound
	}
	if !v.IsInitialized {
		return nil, ErrVaultNotFound
	}
	if v.IsFrozen {
		return nil, ErrVaultFrozen
	}
	if amount == nil || amount.Sign() <= 0 {
		return nil, ErrInvalidAmount
	}
	if err := requireDelegateOrOwner(v, caller); err != nil {
		return nil, err
	}

	now := uint64(e.nowFn())
	unlocked := VestedAt(v, now)
	available := new(big.Int).Sub(unlocked, v.ReleasedAmount)
	if available.Sign() <= 0 {
		return nil, ErrInsufficientFunds
	}
	if amount.Cmp(available) > 0 {
		return nil, ErrInsufficientFunds
	}

	v.ReleasedAmount = new(big.Int).Add(v.ReleasedAmount, amount)
	if err := e.state.PutVault(v); err != nil {
		return nil, err
	}
	e.emit(tokensClaimedEvent(vaultID, v.Owner, amount.String(), e.nowFn()))
	e.telemetry.ObserveClaim(bigFloat(amount))
	return new(big.Int).Set(amount), nil
}

// ClaimAsDelegate is a convenience front door that additionally requires the
// vault to have a delegate set and the caller to be that delegate; otherwise
// it is identical to ClaimTokens.
func (e *Engine) ClaimAsDelegate(caller Identity, vaultID uint64, amount *big.Int) (*big.Int, error) {
	if err := e.requireDelegate(vaultID, caller); err != nil {
		return nil, err
	}
	return e.ClaimTokens(caller, vaultID, amount)
}

func (e *Engine) requireDelegate(vaultID uint64, caller Identity) error {
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.state == nil {
		return errNilState
	}
	v, ok, err := e.state.GetVault(vaultID)
	if err != nil {
		return err
	}
	if !ok {
		return ErrVaultNotFound
	}
	if v.Delegate == nil || !identityEqual(*v.Delegate, caller) {
		return ErrUnauthorized
	}
	return nil
}
