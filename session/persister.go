package session

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"
)

// Record is what a [Persister] found in durable storage.
//
// Corrupt lists entries that were present but unusable; they are candidates for purging.
type Record struct {
	Token   string
	User    *User
	Corrupt []string
}

// Complete reports whether the record can back an authenticated session.
func (r Record) Complete() bool {
	return r.Token != "" && r.User != nil
}

// Persister is the durable-write side channel of the [Store]. It is injected so the
// state transitions can be exercised without a real backend.
type Persister interface {
	Save(ctx context.Context, token string, user *User) error
	Load(ctx context.Context) (Record, error)
	// Erase deletes the named entries, or both entries when none are named.
	Erase(ctx context.Context, entries ...string) error
}

// DurablePersister is the [Persister] over a [Storage].
type DurablePersister struct {
	storage Storage
	ttl     time.Duration
}

// NewDurablePersister returns a persister writing entries with the given expiry.
// A non-positive ttl falls back to [DefaultTTL].
func NewDurablePersister(storage Storage, ttl time.Duration) *DurablePersister {
	if ttl <= 0 {
		ttl = DefaultTTL
	}
	return &DurablePersister{storage: storage, ttl: ttl}
}

func (p *DurablePersister) Save(ctx context.Context, token string, user *User) error {
	data, err := EncodeUser(user)
	if err != nil {
		return err
	}
	if err := p.storage.Set(ctx, EntryToken, token, p.ttl); err != nil {
		return fmt.Errorf("write %s: %w", EntryToken, err)
	}
	if err := p.storage.Set(ctx, EntryUser, data, p.ttl); err != nil {
		return fmt.Errorf("write %s: %w", EntryUser, err)
	}
	return nil
}

func (p *DurablePersister) Load(ctx context.Context) (Record, error) {
	var rec Record

	token, ok, err := p.storage.Get(ctx, EntryToken)
	switch {
	case errors.Is(err, ErrCorruptEntry):
		rec.Corrupt = append(rec.Corrupt, EntryToken)
	case err != nil:
		return Record{}, fmt.Errorf("read %s: %w", EntryToken, err)
	case ok:
		if _, empty := emptyMarkers[strings.TrimSpace(token)]; empty {
			rec.Corrupt = append(rec.Corrupt, EntryToken)
		} else {
			rec.Token = token
		}
	}

	raw, ok, err := p.storage.Get(ctx, EntryUser)
	switch {
	case errors.Is(err, ErrCorruptEntry):
		rec.Corrupt = append(rec.Corrupt, EntryUser)
	case err != nil:
		return Record{}, fmt.Errorf("read %s: %w", EntryUser, err)
	case ok:
		user, err := DecodeUser(raw)
		if err != nil {
			rec.Corrupt = append(rec.Corrupt, EntryUser)
		} else {
			rec.User = user
		}
	}

	return rec, nil
}

func (p *DurablePersister) Erase(ctx context.Context, entries ...string) error {
	if len(entries) == 0 {
		entries = []string{EntryToken, EntryUser}
	}
	var errs []error
	for _, e := range entries {
		if err := p.storage.Delete(ctx, e); err != nil {
			errs = append(errs, fmt.Errorf("delete %s: %w", e, err))
		}
	}
	return errors.Join(errs...)
}
