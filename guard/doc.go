// Package guard decides whether a protected view may render for the current session and
// where the viewer should be sent when it may not.
//
// # Decision rule
//
// [Evaluate] is the pure form. Given the bootstrapper readiness, the authentication flag
// and the user role, it returns one of three states:
//
//   - [Pending]: hydration has not finished. Render the placeholder, never redirect.
//   - [Unauthorized]: not logged in, or logged in with the wrong role. Render the
//     placeholder and redirect to the login page or to the viewer's own home.
//   - [Authorized]: render the view.
//
// Redirects are suppressed for internal re-fetches of the current page so a partial
// render request cannot bounce between destinations.
//
// # Stateful guards
//
// [Guard] mounts on a [session.Bootstrapper] and its store. It re-evaluates whenever
// readiness, authentication or role changes and navigates once per transition into a
// redirecting decision.
//
// # What this package must NOT do
//
//   - Read or write durable storage (the session package owns that).
//   - Treat [Shell] as a security boundary. It is a convenience forward only.
package guard
