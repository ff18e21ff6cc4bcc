package admin

import "errors"

var (
	ErrLoginDisabled      = errors.New("admin: super-admin login is not configured")
	ErrInvalidCredentials = errors.New("admin: invalid email or password")
	ErrInvalidPeriod      = errors.New("admin: period must be month or year")
)
