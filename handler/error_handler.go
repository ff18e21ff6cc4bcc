package handler

import (
	"errors"
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5/middleware"

	"github.com/dmitrymomot/qrmenu/pkg/binder"
	"github.com/dmitrymomot/qrmenu/pkg/logger"
)

// ErrorMapper translates an error into one the JSON envelope understands.
// It returns nil when it does not recognise the error.
type ErrorMapper func(err error) error

// BinderErrors maps request binding failures to client errors.
func BinderErrors(err error) error {
	switch {
	case errors.Is(err, binder.ErrMissingContentType), errors.Is(err, binder.ErrUnsupportedMediaType):
		return NewStatusError(ErrUnsupportedMedia, "request body must be application/json", err)
	case errors.Is(err, binder.ErrFailedToParseJSON),
		errors.Is(err, binder.ErrFailedToParseQuery),
		errors.Is(err, binder.ErrFailedToParsePath):
		return NewStatusError(ErrBadRequest, "malformed request", err)
	}
	return nil
}

// MapError runs err through mappers and returns the first translation,
// or err unchanged when none applies.
func MapError(err error, mappers ...ErrorMapper) error {
	for _, m := range mappers {
		if mapped := m(err); mapped != nil {
			return mapped
		}
	}
	return err
}

// NewErrorHandler renders the envelope for err after running it through
// BinderErrors and mappers. 5xx is logged at error level, the rest at warn.
func NewErrorHandler(log *slog.Logger, mappers ...ErrorMapper) ErrorHandler {
	if log == nil {
		log = slog.Default()
	}
	mappers = append([]ErrorMapper{BinderErrors}, mappers...)

	return func(ctx Context, err error) {
		mapped := MapError(err, mappers...)
		status := StatusOf(mapped)

		level := slog.LevelError
		if status < http.StatusInternalServerError {
			level = slog.LevelWarn
		}
		r := ctx.Request()
		log.LogAttrs(r.Context(), level, "request error",
			logger.RequestID(middleware.GetReqID(r.Context())),
			logger.Error(err),
			slog.Int("status_code", status),
			slog.String("method", r.Method),
			slog.String("path", r.URL.Path),
			logger.Component("error_handler"),
		)

		if renderErr := JSONError(mapped).Render(ctx.ResponseWriter(), r); renderErr != nil {
			log.Error("failed to render error response",
				logger.Error(renderErr),
				logger.Event("render_error"),
			)
		}
	}
}
