package mongo

import "errors"

var (
	ErrNoURL      = errors.New("mongo: connection url is not set")
	ErrNoDatabase = errors.New("mongo: database name is not set")

	// ErrConnect wraps the last dial or ping error after all retries.
	ErrConnect = errors.New("mongo: could not connect")

	ErrUnhealthy = errors.New("mongo: ping failed")

	// ErrIndexes wraps a failed index bootstrap for the billing collections.
	ErrIndexes = errors.New("mongo: could not create indexes")
)
