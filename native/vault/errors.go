package vault

import "errors"

// Error taxonomy. Each kind is a distinct failure signal the caller can
// distinguish via errors.Is; none of them are recovered in-engine, and no
// mutation is committed on any of these paths.
var (
	ErrUnauthorized      = errors.New("vault: unauthorized")
	ErrNotInitialized    = errors.New("vault: not initialized")
	ErrAlreadyInitialized = errors.New("vault: already initialized")
	ErrVaultNotFound     = errors.New("vault: vault not found")
	ErrVaultFrozen       = errors.New("vault: vault is frozen")
	ErrVaultNotFrozen    = errors.New("vault: vault is not frozen")
	ErrVaultIrrevocable  = errors.New("vault: vault is irrevocable")
	ErrNothingToRevoke   = errors.New("vault: nothing to revoke")
	ErrInsufficientFunds = errors.New("vault: insufficient funds")
	ErrInvalidAmount     = errors.New("vault: amount must be positive")
	ErrInvalidDuration   = errors.New("vault: invalid vesting duration")
	ErrDeprecated        = errors.New("vault: contract is deprecated")
	ErrPaused            = errors.New("vault: contract is paused")

	errNilState = errors.New("vault: state not configured")
)
