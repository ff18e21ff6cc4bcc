package handler

import (
	"errors"
	"net/http"

	"github.com/dmitrymomot/qrmenu/pkg/binder"
)

// HandlerFunc handles one request bound into R.
type HandlerFunc[R any] func(ctx Context, req R) Response

// Response renders itself to an http.ResponseWriter. A non-nil error from
// Render goes to the route's ErrorHandler, so nothing must be written first.
type Response interface {
	Render(w http.ResponseWriter, r *http.Request) error
}

// Bind decodes part of a request into v. Binders that have nothing to read
// return binder.ErrBinderNotApplicable.
type Bind func(r *http.Request, v any) error

// ErrorHandler writes the response for a failed request.
type ErrorHandler func(ctx Context, err error)

type route struct {
	binders      []Bind
	errorHandler ErrorHandler
}

// Option configures a wrapped route.
type Option func(*route)

// WithBinders appends binders, applied in order.
func WithBinders(binders ...Bind) Option {
	return func(rt *route) {
		for _, b := range binders {
			if b != nil {
				rt.binders = append(rt.binders, b)
			}
		}
	}
}

// WithErrorHandler replaces the default error handler, which renders the
// envelope without logging.
func WithErrorHandler(h ErrorHandler) Option {
	return func(rt *route) {
		if h != nil {
			rt.errorHandler = h
		}
	}
}

func renderError(ctx Context, err error) {
	_ = JSONError(MapError(err, BinderErrors)).Render(ctx.ResponseWriter(), ctx.Request())
}

// Wrap adapts h to an http.HandlerFunc:
//
//	r.Post("/create-checkout", handler.Wrap(m.checkout,
//		handler.WithBinders(binder.JSON()),
//		handler.WithErrorHandler(apierr.Handler(log)),
//	))
func Wrap[R any](h HandlerFunc[R], opts ...Option) http.HandlerFunc {
	rt := &route{errorHandler: renderError}
	for _, opt := range opts {
		opt(rt)
	}

	return func(w http.ResponseWriter, r *http.Request) {
		ctx := NewContext(w, r)

		var req R
		for _, bind := range rt.binders {
			err := bind(r, &req)
			if errors.Is(err, binder.ErrBinderNotApplicable) {
				continue
			}
			if err != nil {
				rt.errorHandler(ctx, err)
				return
			}
		}

		resp := h(ctx, req)
		if resp == nil {
			rt.errorHandler(ctx, ErrNilResponse)
			return
		}
		if err := resp.Render(w, r); err != nil {
			rt.errorHandler(ctx, err)
		}
	}
}
