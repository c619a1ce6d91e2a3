package session

import (
	"context"
	"sync"
	"sync/atomic"
)

// Bootstrapper hydrates a [Store] from durable storage exactly once per page load and
// exposes a monotonic ready signal. Consumers must not branch on auth state until
// Ready reports true.
type Bootstrapper struct {
	store *Store

	once  sync.Once
	ready atomic.Bool
	done  chan struct{}

	mu      sync.Mutex
	outcome Outcome
	onReady []func()
}

// NewBootstrapper returns a bootstrapper for store. Nothing runs until Activate.
func NewBootstrapper(store *Store) *Bootstrapper {
	return &Bootstrapper{
		store: store,
		done:  make(chan struct{}),
	}
}

// Store returns the store this bootstrapper hydrates.
func (b *Bootstrapper) Store() *Store {
	return b.store
}

// Activate runs InitializeAuth on the first call and then flips ready. Concurrent
// callers block until hydration has finished; later calls return immediately.
func (b *Bootstrapper) Activate(ctx context.Context) {
	b.once.Do(func() {
		outcome := b.store.InitializeAuth(ctx)

		b.mu.Lock()
		b.outcome = outcome
		callbacks := b.onReady
		b.onReady = nil
		b.ready.Store(true)
		close(b.done)
		b.mu.Unlock()

		for _, fn := range callbacks {
			fn()
		}
	})
}

// Rehydrate handles an explicit rehydration event. It re-reads durable storage; ready
// stays true. Before activation it simply activates.
func (b *Bootstrapper) Rehydrate(ctx context.Context) Outcome {
	if !b.ready.Load() {
		b.Activate(ctx)
		return b.Outcome()
	}

	outcome := b.store.InitializeAuth(ctx)
	b.mu.Lock()
	b.outcome = outcome
	b.mu.Unlock()
	return outcome
}

// Ready reports whether hydration has been attempted this page load.
func (b *Bootstrapper) Ready() bool {
	return b.ready.Load()
}

// Done is closed once the bootstrapper becomes ready.
func (b *Bootstrapper) Done() <-chan struct{} {
	return b.done
}

// Wait blocks until ready or ctx ends.
func (b *Bootstrapper) Wait(ctx context.Context) error {
	select {
	case <-b.done:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// Outcome returns the result of the latest hydration.
func (b *Bootstrapper) Outcome() Outcome {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.outcome
}

// OnReady registers fn to run once the bootstrapper becomes ready. If it already is,
// fn runs immediately on the caller's goroutine.
func (b *Bootstrapper) OnReady(fn func()) {
	b.mu.Lock()
	if b.ready.Load() {
		b.mu.Unlock()
		fn()
		return
	}
	b.onReady = append(b.onReady, fn)
	b.mu.Unlock()
}
