package session

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
)

var (
	// ErrEmptyToken is returned by Login when the credential is blank.
	ErrEmptyToken = errors.New("empty token")
	// ErrInvalidUser is returned when a user record lacks an id or a known role.
	ErrInvalidUser = errors.New("invalid user record")
	// ErrPersistFailed wraps durable-storage failures from Login and Logout. In-memory
	// state has already been updated when it is returned.
	ErrPersistFailed = errors.New("session persist failed")
)

// Outcome describes what InitializeAuth found.
type Outcome int

const (
	// OutcomeEmpty means no durable session existed.
	OutcomeEmpty Outcome = iota
	// OutcomeAuthenticated means a complete session was restored.
	OutcomeAuthenticated
	// OutcomeCorrupt means unusable entries were found and purged.
	OutcomeCorrupt
	// OutcomeUnavailable means durable storage could not be read.
	OutcomeUnavailable
)

func (o Outcome) String() string {
	switch o {
	case OutcomeEmpty:
		return "empty"
	case OutcomeAuthenticated:
		return "authenticated"
	case OutcomeCorrupt:
		return "corrupt"
	case OutcomeUnavailable:
		return "unavailable"
	default:
		return "unknown"
	}
}

// EventKind classifies lifecycle events reported to a store observer.
type EventKind int

const (
	EventLogin EventKind = iota
	EventLogout
	EventHydrated
	EventCleared
	EventPurged
	EventPersistFailed
	EventStorageUnavailable
)

func (k EventKind) String() string {
	switch k {
	case EventLogin:
		return "login"
	case EventLogout:
		return "logout"
	case EventHydrated:
		return "hydrated"
	case EventCleared:
		return "cleared"
	case EventPurged:
		return "purged"
	case EventPersistFailed:
		return "persist_failed"
	case EventStorageUnavailable:
		return "storage_unavailable"
	default:
		return "unknown"
	}
}

// Event is reported to the observer installed with [WithObserver].
type Event struct {
	Kind    EventKind
	UserID  string
	Role    Role
	Entries []string
	Err     error
}

// Option configures a [Store].
type Option func(*Store)

// WithObserver installs a lifecycle event callback. It runs synchronously after the
// mutation completes and must not call back into the store's mutators.
func WithObserver(fn func(ctx context.Context, ev Event)) Option {
	return func(s *Store) {
		s.observer = fn
	}
}

// Store is the single owned session state. Every consumer in a page load shares one
// instance; it is never recreated per component.
//
// Mutators (Login, Logout, InitializeAuth) are serialized and each runs to completion
// before the next starts. Reads are cheap snapshots.
type Store struct {
	persister Persister
	observer  func(context.Context, Event)

	op sync.Mutex

	mu    sync.RWMutex
	state State

	subMu  sync.Mutex
	nextID uint64
	subs   map[uint64]func(State)
}

// NewStore creates an empty store persisting through p.
func NewStore(p Persister, opts ...Option) *Store {
	s := &Store{
		persister: p,
		subs:      make(map[uint64]func(State)),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Snapshot returns a copy of the current state.
func (s *Store) Snapshot() State {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return State{
		Token:           s.state.Token,
		User:            s.state.User.clone(),
		IsAuthenticated: s.state.IsAuthenticated,
	}
}

// Token returns the bearer credential, or "" when logged out.
func (s *Store) Token() string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.state.Token
}

// User returns a copy of the current user, or nil.
func (s *Store) User() *User {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.state.User.clone()
}

// IsAuthenticated reports whether a token and user are both present.
func (s *Store) IsAuthenticated() bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.state.IsAuthenticated
}

// Subscribe registers fn to receive the new state after every mutation.
// The returned function removes the subscription.
func (s *Store) Subscribe(fn func(State)) func() {
	s.subMu.Lock()
	id := s.nextID
	s.nextID++
	s.subs[id] = fn
	s.subMu.Unlock()

	return func() {
		s.subMu.Lock()
		delete(s.subs, id)
		s.subMu.Unlock()
	}
}

// Login persists token and user, then marks the session authenticated.
//
// A storage-write failure does not abort: memory becomes the source of truth for the
// rest of the page lifetime and the failure is returned wrapped in [ErrPersistFailed].
func (s *Store) Login(ctx context.Context, token string, user *User) error {
	if strings.TrimSpace(token) == "" {
		return ErrEmptyToken
	}
	if !user.WellFormed() {
		return ErrInvalidUser
	}

	s.op.Lock()
	persistErr := s.persister.Save(ctx, token, user)
	next := s.set(State{Token: token, User: user.clone(), IsAuthenticated: true})
	s.op.Unlock()

	s.emit(ctx, Event{Kind: EventLogin, UserID: user.ID, Role: user.Role})
	if persistErr != nil {
		s.emit(ctx, Event{Kind: EventPersistFailed, UserID: user.ID, Role: user.Role, Err: persistErr})
	}
	s.notify(next)

	if persistErr != nil {
		return fmt.Errorf("%w: %v", ErrPersistFailed, persistErr)
	}
	return nil
}

// Logout erases durable entries and clears the session. Calling it while logged out
// only re-asserts the cleared state.
func (s *Store) Logout(ctx context.Context) error {
	s.op.Lock()
	prev := s.Snapshot()
	eraseErr := s.persister.Erase(ctx)
	next := s.set(clearedState())
	s.op.Unlock()

	ev := Event{Kind: EventLogout}
	if prev.User != nil {
		ev.UserID = prev.User.ID
		ev.Role = prev.User.Role
	}
	s.emit(ctx, ev)
	if eraseErr != nil {
		s.emit(ctx, Event{Kind: EventPersistFailed, UserID: ev.UserID, Role: ev.Role, Err: eraseErr})
	}
	s.notify(next)

	if eraseErr != nil {
		return fmt.Errorf("%w: %v", ErrPersistFailed, eraseErr)
	}
	return nil
}

// InitializeAuth hydrates the session from durable storage.
//
// A complete, well-formed record authenticates the session. Anything else clears it,
// and entries that are present but unusable (empty markers, unparsable records, a token
// without a user) are deleted so the next load does not trip over them again.
func (s *Store) InitializeAuth(ctx context.Context) Outcome {
	s.op.Lock()

	rec, err := s.persister.Load(ctx)
	if err != nil {
		next := s.set(clearedState())
		s.op.Unlock()
		s.emit(ctx, Event{Kind: EventStorageUnavailable, Err: err})
		s.notify(next)
		return OutcomeUnavailable
	}

	if rec.Complete() {
		next := s.set(State{Token: rec.Token, User: rec.User, IsAuthenticated: true})
		s.op.Unlock()
		s.emit(ctx, Event{Kind: EventHydrated, UserID: rec.User.ID, Role: rec.User.Role})
		s.notify(next)
		return OutcomeAuthenticated
	}

	purge := append([]string(nil), rec.Corrupt...)
	if rec.Token != "" {
		purge = append(purge, EntryToken)
	}
	if rec.User != nil {
		purge = append(purge, EntryUser)
	}

	var purgeErr error
	if len(purge) > 0 {
		purgeErr = s.persister.Erase(ctx, purge...)
	}
	next := s.set(clearedState())
	s.op.Unlock()

	outcome := OutcomeEmpty
	if len(purge) > 0 {
		outcome = OutcomeCorrupt
		s.emit(ctx, Event{Kind: EventPurged, Entries: purge, Err: purgeErr})
	}
	s.emit(ctx, Event{Kind: EventCleared})
	s.notify(next)
	return outcome
}

func (s *Store) set(next State) State {
	s.mu.Lock()
	s.state = next
	s.mu.Unlock()
	return s.Snapshot()
}

func (s *Store) emit(ctx context.Context, ev Event) {
	if s.observer != nil {
		s.observer(ctx, ev)
	}
}

func (s *Store) notify(st State) {
	s.subMu.Lock()
	fns := make([]func(State), 0, len(s.subs))
	for _, fn := range s.subs {
		fns = append(fns, fn)
	}
	s.subMu.Unlock()

	for _, fn := range fns {
		fn(st)
	}
}
