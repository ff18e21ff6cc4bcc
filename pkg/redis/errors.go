package redis

import "errors"

// Connection errors. Each wraps the underlying driver error via errors.Join.
var (
	// ErrNoURL means Connect was called without REDIS_URL; callers should
	// check Config.Enabled first and fall back to in-process locking.
	ErrNoURL = errors.New("redis: connection url is not set")

	// ErrInvalidURL means REDIS_URL could not be parsed by go-redis.
	ErrInvalidURL = errors.New("redis: invalid connection url")

	// ErrNotReady means no PING succeeded within the retry budget.
	ErrNotReady = errors.New("redis: server did not answer ping")

	ErrUnhealthy = errors.New("redis: ping failed")
)
