package vault

// ProposeNewAdmin begins a two-step handover: the current admin names a
// candidate, overwriting any prior pending proposal. The candidate must
// separately call AcceptOwnership to complete the transfer, eliminating the
// single-transaction lockout where an admin hands control to an identity
// unable to sign.
func (e *Engine) ProposeNewAdmin(caller Identity, candidate Identity) error {
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.state == nil {
		return errNilState
	}
	if err := e.requireAdminCaller(caller); err != nil {
		return err
	}
	admin, err := e.state.GetAdminAddress()
	if err != nil {
		return err
	}
	if err := e.state.SetProposedAdmin(&candidate); err != nil {
		return err
	}
	e.emit(adminProposedEvent(*admin, candidate, e.nowFn()))
	return nil
}

// AcceptOwnership completes the handover: the caller must equal the pending
// proposed_admin exactly. On success admin_address swaps to the caller and
// proposed_admin clears.
func (e *Engine) AcceptOwnership(caller Identity) error {
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.state == nil {
		return errNilState
	}
	proposed, err := e.state.GetProposedAdmin()
	if err != nil {
		return err
	}
	if err := requireProposedAdmin(proposed, caller); err != nil {
		return err
	}
	oldAdmin, err := e.state.GetAdminAddress()
	if err != nil {
		return err
	}
	if err := e.state.SetAdminAddress(caller); err != nil {
		return err
	}
	if err := e.state.SetProposedAdmin(nil); err != nil {
		return err
	}
	if oldAdmin != nil {
		e.emit(adminAcceptedEvent(*oldAdmin, caller, e.nowFn()))
	}
	return nil
}
