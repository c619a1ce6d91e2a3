// Package middleware adapts carebook sessions and route guards to net/http and gin.
//
// # Adapters
//
//   - [Session] opens the per-request [carebook.Page], runs hydration once and stores
//     the page in the request context.
//   - [Guard] mounts a [guard.Guard] for the view: authorized requests reach the
//     handler, others get a redirect or the loading placeholder.
//   - [Shell] forwards authenticated visitors away from login and registration.
//
// [GinSession], [GinGuard] and [GinShell] are the gin forms of the same adapters.
//
// # Architecture boundaries
//
// This package translates HTTP semantics into guard decisions. It does NOT decide
// access itself; every decision comes from [guard.Evaluate] via [guard.Guard].
//
// # What this package must NOT do
//
//   - Read or write cookies directly (the Portal's storage does).
//   - Call the remote API.
//   - Render protected content for an unauthorized request.
package middleware
