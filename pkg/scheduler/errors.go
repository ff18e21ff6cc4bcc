package scheduler

import "errors"

var (
	ErrTaskAlreadyRegistered  = errors.New("scheduler: task already registered")
	ErrTaskNotFound           = errors.New("scheduler: task not found")
	ErrSchedulerNotConfigured = errors.New("scheduler: no tasks registered")
	ErrTaskPanicked           = errors.New("scheduler: task panicked")
)
