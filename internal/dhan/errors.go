package dhan

import "errors"

var (
	ErrNotFound    = errors.New("no data for this underlying/expiry")
	ErrRateLimited = errors.New("rate limited by API")
	ErrAuthFailed  = errors.New("authentication failed")
	ErrCircuitOpen = errors.New("circuit breaker open")
	ErrNoExpiry    = errors.New("no expiries listed")
)
