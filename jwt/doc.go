// Package jwt issues and inspects bearer tokens.
//
// [Manager] signs and verifies tokens (HS256 or Ed25519) and backs the development API.
// [Inspector] runs on the portal side before protected calls: it rejects JWTs whose
// expiry has passed and lets opaque credentials through, since the portal cannot know
// every token format the remote service hands out.
package jwt
