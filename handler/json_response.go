package handler

import (
	"encoding/json"
	"errors"
	"maps"
	"net/http"
)

// Envelope is the body of every JSON response.
type Envelope struct {
	Data  any            `json:"data,omitempty"`
	Meta  map[string]any `json:"meta,omitempty"`
	Error *ErrorBody     `json:"error,omitempty"`
}

// ErrorBody is the client-facing view of a failure.
type ErrorBody struct {
	Code    string              `json:"code"`
	Message string              `json:"message"`
	Details map[string][]string `json:"details,omitempty"`
}

type jsonResponse struct {
	status int
	body   Envelope
}

func (j jsonResponse) Render(w http.ResponseWriter, _ *http.Request) error {
	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	w.WriteHeader(j.status)
	return json.NewEncoder(w).Encode(j.body)
}

// JSONOption tweaks a JSON response.
type JSONOption func(*jsonResponse)

func WithJSONStatus(status int) JSONOption {
	return func(r *jsonResponse) { r.status = status }
}

func WithJSONMeta(meta map[string]any) JSONOption {
	return func(r *jsonResponse) { r.body.Meta = meta }
}

// JSON renders v as the envelope's data with status 200 unless overridden.
func JSON(v any, opts ...JSONOption) Response {
	r := &jsonResponse{status: http.StatusOK, body: Envelope{Data: v}}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

// JSONError renders err as the envelope's error. The status follows the
// error's classification.
func JSONError(err error, opts ...JSONOption) Response {
	status, body := describe(err)
	r := &jsonResponse{status: status, body: Envelope{Error: body}}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

// StatusOf reports the HTTP status err renders with.
func StatusOf(err error) int {
	status, _ := describe(err)
	return status
}

// describe classifies err. Unknown errors never leak their text.
func describe(err error) (int, *ErrorBody) {
	var verr ValidationError
	if errors.As(err, &verr) {
		body := &ErrorBody{Code: "validation_error", Message: "request validation failed"}
		if len(verr) > 0 {
			body.Details = maps.Clone(map[string][]string(verr))
		}
		return http.StatusUnprocessableEntity, body
	}

	var se *StatusError
	if errors.As(err, &se) {
		return se.Status, &ErrorBody{Code: se.Code, Message: se.Message, Details: se.Details}
	}

	var he HTTPError
	if errors.As(err, &he) {
		return he.Code, &ErrorBody{Code: he.Key, Message: http.StatusText(he.Code)}
	}

	return http.StatusInternalServerError, &ErrorBody{
		Code:    ErrInternalServerError.Key,
		Message: http.StatusText(http.StatusInternalServerError),
	}
}
