package handler

import (
	"errors"
	"net/http"
	"sort"
	"strings"
)

var ErrNilResponse = errors.New("handler returned nil response")

// HTTPError is a bare status with a machine-readable key.
type HTTPError struct {
	Code int
	Key  string
}

func (e HTTPError) Error() string { return e.Key }

var (
	ErrBadRequest          = HTTPError{Code: http.StatusBadRequest, Key: "bad_request"}
	ErrUnauthorized        = HTTPError{Code: http.StatusUnauthorized, Key: "unauthorized"}
	ErrForbidden           = HTTPError{Code: http.StatusForbidden, Key: "forbidden"}
	ErrNotFound            = HTTPError{Code: http.StatusNotFound, Key: "not_found"}
	ErrConflict            = HTTPError{Code: http.StatusConflict, Key: "conflict"}
	ErrUnsupportedMedia    = HTTPError{Code: http.StatusUnsupportedMediaType, Key: "unsupported_media_type"}
	ErrTooManyRequests     = HTTPError{Code: http.StatusTooManyRequests, Key: "too_many_requests"}
	ErrInternalServerError = HTTPError{Code: http.StatusInternalServerError, Key: "internal_error"}
	ErrBadGateway          = HTTPError{Code: http.StatusBadGateway, Key: "bad_gateway"}
	ErrServiceUnavailable  = HTTPError{Code: http.StatusServiceUnavailable, Key: "service_unavailable"}
)

// StatusError gives a wrapped domain error a status, a code and a message
// that are safe to show clients.
type StatusError struct {
	Status  int
	Code    string
	Message string
	Details map[string][]string
	Err     error
}

// NewStatusError takes status and code from base. An empty message falls
// back to the status text.
func NewStatusError(base HTTPError, message string, err error) *StatusError {
	if message == "" {
		message = http.StatusText(base.Code)
	}
	return &StatusError{Status: base.Code, Code: base.Key, Message: message, Err: err}
}

func (e *StatusError) WithDetails(details map[string][]string) *StatusError {
	e.Details = details
	return e
}

func (e *StatusError) Error() string {
	if e.Err == nil {
		return e.Code
	}
	return e.Code + ": " + e.Err.Error()
}

func (e *StatusError) Unwrap() error { return e.Err }

// ValidationError lists failure messages per request field. It renders as 422.
type ValidationError map[string][]string

// FieldError is a ValidationError for a single field.
func FieldError(field, message string) ValidationError {
	return ValidationError{field: {message}}
}

func (e ValidationError) Add(field, message string) {
	e[field] = append(e[field], message)
}

func (e ValidationError) Has(field string) bool { return len(e[field]) > 0 }

// Empty reports whether no field failed.
func (e ValidationError) Empty() bool { return len(e) == 0 }

func (e ValidationError) Error() string {
	fields := make([]string, 0, len(e))
	for f, msgs := range e {
		if len(msgs) > 0 {
			fields = append(fields, f+": "+msgs[0])
		}
	}
	sort.Strings(fields)
	return "invalid request: " + strings.Join(fields, "; ")
}
