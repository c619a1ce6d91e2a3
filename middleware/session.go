package middleware

import (
	"net"
	"net/http"

	"github.com/MrEthical07/carebook"
)

// Session opens the request's page and hydrates it before calling next. Later
// middleware and the handler reach it through [PageFromContext].
func Session(portal *carebook.Portal, opts ...Option) func(http.Handler) http.Handler {
	o := buildOptions(opts)
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			r, ok := openPage(portal, o, w, r, remoteIP(r))
			if !ok {
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}

// openPage is idempotent per request: a page already in the context is reused so
// stacking Session and Guard never hydrates twice.
func openPage(portal *carebook.Portal, o options, w http.ResponseWriter, r *http.Request, ip string) (*http.Request, bool) {
	if _, ok := PageFromContext(r.Context()); ok {
		return r, true
	}

	page, err := portal.Open(w, r)
	if err != nil {
		portal.Logger().WithError(err).WithField("request_id", carebook.RequestIDFromContext(r.Context())).
			Error("open session page")
		w.Header().Set("Retry-After", "1")
		o.placeholder(w, r, http.StatusServiceUnavailable)
		return r, false
	}
	if o.internal != nil {
		page.Internal = o.internal(r)
	}

	ctx := r.Context()
	if ip != "" {
		ctx = carebook.WithClientIP(ctx, ip)
	}
	page.Boot.Activate(ctx)

	return r.WithContext(withPage(ctx, page)), true
}

func remoteIP(r *http.Request) string {
	host, _, err := net.SplitHostPort(r.RemoteAddr)
	if err != nil {
		return r.RemoteAddr
	}
	return host
}
