package rate

import "errors"

var (
	// ErrRedisUnavailable reports that the Redis backend could not be reached.
	ErrRedisUnavailable = errors.New("redis unavailable")
	// ErrContention reports that optimistic retries were exhausted.
	ErrContention = errors.New("rate window contention")
)
