package notifier

import "errors"

var (
	ErrRender = errors.New("notifier: failed to render message")
	ErrSend   = errors.New("notifier: failed to send message")
)
