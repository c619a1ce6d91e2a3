package rate

import "errors"

var (
	// ErrRateLimited means the caller must wait for the window to end.
	ErrRateLimited = errors.New("rate limited")
	// ErrRedisUnavailable wraps a failed counter read or write.
	ErrRedisUnavailable = errors.New("redis unavailable")
)
