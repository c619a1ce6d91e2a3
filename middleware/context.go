package middleware

import (
	"context"
	"sync"

	"github.com/MrEthical07/carebook"
	"github.com/MrEthical07/carebook/guard"
	"github.com/MrEthical07/carebook/session"
)

type pageContextKey struct{}
type guardContextKey struct{}

func withPage(ctx context.Context, page *carebook.Page) context.Context {
	return context.WithValue(ctx, pageContextKey{}, page)
}

// PageFromContext returns the page opened by [Session].
func PageFromContext(ctx context.Context) (*carebook.Page, bool) {
	page, ok := ctx.Value(pageContextKey{}).(*carebook.Page)
	return page, ok && page != nil
}

// SessionFromContext returns the request's session store.
func SessionFromContext(ctx context.Context) (*session.Store, bool) {
	page, ok := PageFromContext(ctx)
	if !ok {
		return nil, false
	}
	return page.Store, true
}

// BootstrapperFromContext returns the request's bootstrapper.
func BootstrapperFromContext(ctx context.Context) (*session.Bootstrapper, bool) {
	page, ok := PageFromContext(ctx)
	if !ok {
		return nil, false
	}
	return page.Boot, true
}

// navigation records the destination a mounted guard navigated to. Handlers consult
// it after a call that may have ended the session.
type navigation struct {
	mu     sync.Mutex
	portal *carebook.Portal
	dest   guard.Destination
	g      *guard.Guard
}

func (n *navigation) Navigate(d guard.Destination) {
	n.mu.Lock()
	n.dest = d
	n.mu.Unlock()
}

func (n *navigation) destination() guard.Destination {
	n.mu.Lock()
	defer n.mu.Unlock()
	return n.dest
}

// DecisionFromContext returns the current decision of the guard mounted for this request.
func DecisionFromContext(ctx context.Context) (guard.Decision, bool) {
	nav, ok := ctx.Value(guardContextKey{}).(*navigation)
	if !ok {
		return guard.Decision{}, false
	}
	return nav.g.Decision(), true
}

// Redirect reports where the request's guard navigated while the handler ran, e.g.
// to the login page after the API rejected the session's credential.
func Redirect(ctx context.Context) (string, bool) {
	nav, ok := ctx.Value(guardContextKey{}).(*navigation)
	if !ok {
		return "", false
	}
	d := nav.destination()
	if d == guard.None {
		return "", false
	}
	return nav.portal.URL(d), true
}
