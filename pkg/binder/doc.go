// Package binder binds HTTP request data to Go structs.
//
// Three binders are provided, each processing only its own struct tags:
//
//   - JSON(): strict JSON body decoding (unknown fields rejected, 1MB limit)
//   - Query(): URL query parameters via `query:` tags
//   - Path(extractor): router path parameters via `path:` tags
//
// Binders are plugged into handler.Wrap:
//
//	r.Post("/subscriptions/create-checkout", handler.Wrap(h.createCheckout,
//	    handler.WithBinders(binder.JSON()),
//	))
//
// Path(nil) defaults to chi.URLParam.
//
// All string fields decoded from JSON are stripped of control characters.
// A binder that has nothing to bind for the request returns
// ErrBinderNotApplicable, which handler.Wrap skips.
package binder
