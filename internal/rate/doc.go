// Package rate throttles failed portal logins with Redis counters.
//
// # Window semantics
//
// Fixed-window counters: INCR + conditional EXPIRE on first hit. Keys:
//   - <prefix>:login:email:<email> failures per account email
//   - <prefix>:login:ip:<ip>       failures per client address
//
// The limiter fails closed only on [ErrRateLimited]; callers decide how to treat
// [ErrRedisUnavailable].
package rate
