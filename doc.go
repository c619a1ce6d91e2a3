// Package carebook is the server-side core of the appointment portal: persisted browser
// sessions, role-gated pages, and the remote API collaborator, assembled per request.
//
// A [Portal] is built once through [Builder.Build] and is safe for concurrent use. Each
// page load calls [Portal.Open] to get a [Page]: its own session store, bootstrapper and
// API view, bound to the request's cookies (or its Redis-backed session id).
//
// # Architecture boundaries
//
// carebook is the public surface. It exposes [Portal], [Builder], [Config], metrics and
// audit types. Session persistence lives in session/, access decisions in guard/, remote
// calls in apiclient/. The web layer in internal/web only consumes this package.
//
// # What this package must NOT do
//
//   - Render pages or know about templates.
//   - Share a session store between two page loads.
//   - Import any sub-package that re-imports carebook (no import cycles).
package carebook
