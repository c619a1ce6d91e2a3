package middleware

import (
	"context"
	"net/http"

	"github.com/MrEthical07/carebook"
	"github.com/MrEthical07/carebook/guard"
	"github.com/MrEthical07/carebook/session"
)

// Guard lets a request reach next only when the session may view a page requiring
// required ("" admits any logged-in user). Otherwise it answers with:
//
//   - 303 to the guard's destination, placeholder as body;
//   - 401 with the placeholder when the redirect is suppressed for an internal fetch;
//   - 503 with the placeholder while the session is not ready.
//
// The guard stays mounted while next runs, so a session ended mid-request (a 401 from
// the API) is visible to the handler through [Redirect].
func Guard(portal *carebook.Portal, required session.Role, opts ...Option) func(http.Handler) http.Handler {
	o := buildOptions(opts)
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			r, release, ok := guardRequest(portal, o, required, w, r, remoteIP(r))
			if !ok {
				return
			}
			defer release()
			next.ServeHTTP(w, r)
		})
	}
}

// Shell forwards an authenticated visitor of login or registration to their home.
func Shell(portal *carebook.Portal, opts ...Option) func(http.Handler) http.Handler {
	o := buildOptions(opts)
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			r, ok := openPage(portal, o, w, r, remoteIP(r))
			if !ok {
				return
			}
			if shellForward(portal, o, w, r) {
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}

func guardRequest(portal *carebook.Portal, o options, required session.Role, w http.ResponseWriter, r *http.Request, ip string) (*http.Request, func(), bool) {
	r, ok := openPage(portal, o, w, r, ip)
	if !ok {
		return r, nil, false
	}
	page, _ := PageFromContext(r.Context())

	nav := &navigation{portal: portal}
	g := guard.New(required, nav,
		guard.WithInternal(page.Internal),
		guard.WithDecisionHook(portal.ObserveGuard),
	)
	nav.g = g
	unmount := g.Mount(page.Boot)

	w.Header().Set("Cache-Control", "no-store")

	d := g.Decision()
	switch {
	case d.Renders():
		ctx := context.WithValue(r.Context(), guardContextKey{}, nav)
		return r.WithContext(ctx), unmount, true
	case d.Navigates():
		unmount()
		w.Header().Set("Location", portal.URL(d.Redirect))
		o.placeholder(w, r, http.StatusSeeOther)
	case d.Suppressed:
		unmount()
		o.placeholder(w, r, http.StatusUnauthorized)
	default:
		unmount()
		w.Header().Set("Retry-After", "1")
		o.placeholder(w, r, http.StatusServiceUnavailable)
	}
	return r, nil, false
}

func shellForward(portal *carebook.Portal, o options, w http.ResponseWriter, r *http.Request) bool {
	page, ok := PageFromContext(r.Context())
	if !ok || page.Internal {
		return false
	}
	dest := guard.Shell(guard.InputFrom(page.Boot.Ready(), page.Store.Snapshot(), page.Internal))
	if dest == guard.None {
		return false
	}

	portal.ObserveShellForward()
	w.Header().Set("Cache-Control", "no-store")
	w.Header().Set("Location", portal.URL(dest))
	o.placeholder(w, r, http.StatusSeeOther)
	return true
}
