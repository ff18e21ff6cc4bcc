package binder

import "net/http"

// Query creates a binder for URL query parameters using `query:` tags.
func Query() func(r *http.Request, v any) error {
	return func(r *http.Request, v any) error {
		values := r.URL.Query()
		if len(values) == 0 {
			return ErrBinderNotApplicable
		}
		return bindToStruct(v, "query", values, ErrFailedToParseQuery)
	}
}
