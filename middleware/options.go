package middleware

import (
	"io"
	"net/http"
)

// Placeholder writes the loading view shown instead of protected content. status is
// 303 for redirects (Location is already set), 401 for suppressed redirects and 503
// while the session is not ready.
type Placeholder func(w http.ResponseWriter, r *http.Request, status int)

const placeholderHTML = `<!doctype html>
<html><head><meta charset="utf-8"><title>Loading</title></head>
<body><div class="loading" role="status">Loading...</div></body></html>
`

// DefaultPlaceholder writes a minimal loading page.
func DefaultPlaceholder(w http.ResponseWriter, r *http.Request, status int) {
	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	w.WriteHeader(status)
	if r.Method == http.MethodHead {
		return
	}
	_, _ = io.WriteString(w, placeholderHTML)
}

type Option func(*options)

type options struct {
	placeholder Placeholder
	internal    InternalFetch
}

// WithPlaceholder replaces [DefaultPlaceholder].
func WithPlaceholder(p Placeholder) Option {
	return func(o *options) {
		o.placeholder = p
	}
}

// WithInternalFetch overrides the portal's configured internal-fetch detection.
func WithInternalFetch(fn InternalFetch) Option {
	return func(o *options) {
		o.internal = fn
	}
}

func buildOptions(opts []Option) options {
	o := options{placeholder: DefaultPlaceholder}
	for _, opt := range opts {
		opt(&o)
	}
	if o.placeholder == nil {
		o.placeholder = DefaultPlaceholder
	}
	return o
}
