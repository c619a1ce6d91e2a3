package middleware

import (
	"net/http"
	"strings"
)

// InternalFetch recognises framework-internal data fetches, for which guard redirects
// are suppressed.
type InternalFetch func(r *http.Request) bool

// InternalFetchByQuery matches requests carrying the query parameter param, with any value.
func InternalFetchByQuery(param string) InternalFetch {
	return func(r *http.Request) bool {
		return param != "" && r.URL.Query().Has(param)
	}
}

// InternalFetchByHeader matches requests whose header name equals value (case
// insensitive). An empty value matches any non-empty header.
func InternalFetchByHeader(name, value string) InternalFetch {
	return func(r *http.Request) bool {
		v := r.Header.Get(name)
		if value == "" {
			return v != ""
		}
		return strings.EqualFold(v, value)
	}
}

// AnyInternalFetch matches when any of preds does.
func AnyInternalFetch(preds ...InternalFetch) InternalFetch {
	return func(r *http.Request) bool {
		for _, p := range preds {
			if p != nil && p(r) {
				return true
			}
		}
		return false
	}
}
