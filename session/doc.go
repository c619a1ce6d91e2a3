// Package session holds the portal's login state: the in-memory [Store], the durable
// [Storage] boundary it persists through, and the one-shot [Bootstrapper] that hydrates
// it before anything reads it.
//
// # Durable storage
//
// Two entries are kept, "token" (opaque bearer credential) and "user" (JSON record).
// Backends are interchangeable: [MemoryStorage], [CookieStorage] (per request, optionally
// sealed) and [RedisStorage] (server-side, keyed by a session id cookie). Entries that are
// present but unusable are purged on hydration so the next load starts clean.
//
// # Architecture boundaries
//
// This package owns state transitions and persistence. It does NOT decide redirects,
// call the remote API, or render anything; those belong to guard, apiclient and the
// web layer.
//
// # What this package must NOT do
//
//   - Import carebook, guard, middleware or apiclient (no upward imports).
//   - Let a storage failure leave in-memory state stale.
//   - Treat a corrupt durable record as a fatal error.
package session
