package gateway

import (
	"errors"
	"fmt"
)

var (
	ErrUnavailable        = errors.New("gateway: unavailable")
	ErrRejected           = errors.New("gateway: request rejected")
	ErrMissingCredentials = errors.New("gateway: missing credentials")
	ErrMockInProduction   = errors.New("gateway: mock mode must not be enabled in production")
	ErrMalformedWebhook   = errors.New("gateway: malformed webhook payload")
	ErrInvalidRequest     = errors.New("gateway: invalid link request")
)

// RejectedError is a structured gateway refusal. It matches ErrRejected.
type RejectedError struct {
	Code string
	Desc string
}

func (e *RejectedError) Error() string {
	return fmt.Sprintf("gateway: rejected with code %s: %s", e.Code, e.Desc)
}

func (e *RejectedError) Is(target error) bool {
	return target == ErrRejected
}
