package dashboard

import "errors"

var (
	ErrUnknownUnderlying = errors.New("unknown underlying")
	ErrUnknownTimestamp  = errors.New("timestamp not in history")
	ErrNoTimestamps      = errors.New("no common snapshot timestamps")
	ErrEmptyChain        = errors.New("option chain has no strikes")
)
