package binder

import (
	"net/http"
	"reflect"

	"github.com/go-chi/chi/v5"
)

// PathExtractor returns the value of a named path parameter.
type PathExtractor func(r *http.Request, name string) string

// Path creates a binder for path parameters using `path:` tags.
// A nil extractor falls back to chi.URLParam.
func Path(extract PathExtractor) func(r *http.Request, v any) error {
	if extract == nil {
		extract = chi.URLParam
	}
	return func(r *http.Request, v any) error {
		values := make(map[string][]string)
		rv := reflect.ValueOf(v)
		if rv.Kind() == reflect.Ptr && !rv.IsNil() && rv.Elem().Kind() == reflect.Struct {
			rt := rv.Elem().Type()
			for i := range rt.NumField() {
				tag := rt.Field(i).Tag.Get("path")
				if tag == "" || tag == "-" {
					continue
				}
				if val := extract(r, tag); val != "" {
					values[tag] = []string{val}
				}
			}
		}
		if len(values) == 0 {
			return ErrBinderNotApplicable
		}
		return bindToStruct(v, "path", values, ErrFailedToParsePath)
	}
}
