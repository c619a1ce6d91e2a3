package guard

import (
	"sync"

	"github.com/MrEthical07/carebook/session"
)

// Navigator performs the side effect of a redirect.
type Navigator interface {
	Navigate(d Destination)
}

// NavigatorFunc adapts a function to [Navigator].
type NavigatorFunc func(Destination)

func (f NavigatorFunc) Navigate(d Destination) { f(d) }

// Option configures a [Guard].
type Option func(*Guard)

// WithInternal marks the guarded navigation as an internal re-fetch.
func WithInternal(internal bool) Option {
	return func(g *Guard) {
		g.internal = internal
	}
}

// WithDecisionHook installs fn to observe every distinct decision.
func WithDecisionHook(fn func(Decision)) Option {
	return func(g *Guard) {
		g.onDecision = fn
	}
}

type observed struct {
	ready         bool
	authenticated bool
	role          session.Role
}

// Guard is the stateful, per-view form of [Evaluate]. Many guards may watch the same
// store; each navigates on its own edge only.
type Guard struct {
	required   session.Role
	nav        Navigator
	internal   bool
	onDecision func(Decision)

	mu       sync.Mutex
	boot     *session.Bootstrapper
	seen     bool
	last     observed
	decision Decision
	unsub    func()
	mounted  bool
}

// New returns an unmounted guard for a view requiring role. Pass "" to require only a login.
func New(required session.Role, nav Navigator, opts ...Option) *Guard {
	g := &Guard{required: required, nav: nav}
	for _, opt := range opts {
		opt(g)
	}
	return g
}

// Mount starts watching boot and its store and evaluates immediately. The returned
// function stops watching; it is safe to call more than once.
func (g *Guard) Mount(boot *session.Bootstrapper) func() {
	g.mu.Lock()
	g.boot = boot
	g.mounted = true
	g.mu.Unlock()

	unsub := boot.Store().Subscribe(func(st session.State) {
		g.refresh(st)
	})
	g.mu.Lock()
	g.unsub = unsub
	g.mu.Unlock()

	boot.OnReady(func() {
		g.refresh(boot.Store().Snapshot())
	})
	g.refresh(boot.Store().Snapshot())

	return g.unmount
}

func (g *Guard) unmount() {
	g.mu.Lock()
	unsub := g.unsub
	g.unsub = nil
	g.mounted = false
	g.mu.Unlock()

	if unsub != nil {
		unsub()
	}
}

// Decision returns the latest decision. Before Mount it is [Pending].
func (g *Guard) Decision() Decision {
	g.mu.Lock()
	defer g.mu.Unlock()
	return g.decision
}

func (g *Guard) refresh(st session.State) {
	g.mu.Lock()
	if !g.mounted {
		g.mu.Unlock()
		return
	}

	cur := observed{
		ready:         g.boot.Ready(),
		authenticated: st.IsAuthenticated,
		role:          st.Role(),
	}
	if g.seen && cur == g.last {
		g.mu.Unlock()
		return
	}

	prev := g.decision
	wasSeen := g.seen
	next := Evaluate(g.required, Input{
		Ready:         cur.ready,
		Authenticated: cur.authenticated,
		Role:          cur.role,
		Internal:      g.internal,
	})
	g.seen = true
	g.last = cur
	g.decision = next
	g.mu.Unlock()

	if g.onDecision != nil && (!wasSeen || next != prev) {
		g.onDecision(next)
	}

	if !next.Navigates() {
		return
	}
	if wasSeen && prev.Navigates() && prev.Redirect == next.Redirect {
		return
	}
	if g.nav != nil {
		g.nav.Navigate(next.Redirect)
	}
}
