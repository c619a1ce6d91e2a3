package session

import (
	"context"
	"errors"
	"sync"
	"time"
)

const (
	// EntryToken is the durable key holding the bearer credential.
	EntryToken = "token"
	// EntryUser is the durable key holding the serialized user record.
	EntryUser = "user"

	// DefaultTTL bounds how long durable entries survive.
	DefaultTTL = 7 * 24 * time.Hour
)

// ErrCorruptEntry is returned by a [Storage] when an entry exists but cannot be read back,
// e.g. a sealed cookie that fails to open.
var ErrCorruptEntry = errors.New("durable entry corrupt")

// ErrStorageUnavailable wraps backend failures (network, closed connection).
var ErrStorageUnavailable = errors.New("durable storage unavailable")

// Storage is the durable key/value boundary the session persists through.
//
// Get reports (value, true, nil) for present entries and ("", false, nil) for absent ones.
// Delete of an absent key is not an error.
type Storage interface {
	Get(ctx context.Context, key string) (string, bool, error)
	Set(ctx context.Context, key, value string, ttl time.Duration) error
	Delete(ctx context.Context, key string) error
}

type memoryEntry struct {
	value     string
	expiresAt time.Time
}

// MemoryStorage is an in-process [Storage]. It is safe for concurrent use.
type MemoryStorage struct {
	mu      sync.Mutex
	entries map[string]memoryEntry
	now     func() time.Time
}

// NewMemoryStorage returns an empty MemoryStorage.
func NewMemoryStorage() *MemoryStorage {
	return &MemoryStorage{
		entries: make(map[string]memoryEntry),
		now:     time.Now,
	}
}

func (m *MemoryStorage) Get(_ context.Context, key string) (string, bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	e, ok := m.entries[key]
	if !ok {
		return "", false, nil
	}
	if !e.expiresAt.IsZero() && !m.now().Before(e.expiresAt) {
		delete(m.entries, key)
		return "", false, nil
	}
	return e.value, true, nil
}

func (m *MemoryStorage) Set(_ context.Context, key, value string, ttl time.Duration) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	e := memoryEntry{value: value}
	if ttl > 0 {
		e.expiresAt = m.now().Add(ttl)
	}
	m.entries[key] = e
	return nil
}

func (m *MemoryStorage) Delete(_ context.Context, key string) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	delete(m.entries, key)
	return nil
}

// Len returns the number of stored entries, expired ones included until next read.
func (m *MemoryStorage) Len() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.entries)
}
