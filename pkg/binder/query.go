package binder

import "net/http"

// Query binds URL query parameters into fields tagged `query:"name"`.
// Fields without a tag use their lowercased name; `query:"-"` skips a field.
func Query() func(r *http.Request, v any) error {
	return func(r *http.Request, v any) error {
		return bindToStruct(v, "query", r.URL.Query(), ErrFailedToParseQuery)
	}
}
