package rate

import "errors"

var (
	// ErrRateLimited is an exported constant or variable used by the authentication engine.
	ErrRateLimited = errors.New("rate limited")
	// ErrLockedOut is an exported constant or variable used by the authentication engine.
	ErrLockedOut = errors.New("account locked out")
)
