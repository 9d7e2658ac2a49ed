package grant

import "errors"

var (
	ErrUnauthorized       = errors.New("grant: unauthorized")
	ErrAlreadyInitialized = errors.New("grant: already initialized")
	ErrNotInitialized     = errors.New("grant: not initialized")
	ErrInvalidAmount      = errors.New("grant: amount must be positive")
	ErrInvalidDuration    = errors.New("grant: invalid duration")

	errNilState = errors.New("grant: state not configured")
)
