// Package apiclient talks to the remote appointment API.
//
// A [Client] is shared by the whole process. Each request binds it to that request's
// session with [Client.Bind]; the bound view attaches the bearer token, pre-checks JWT
// expiry, and logs the session out when the API answers 401.
//
// Read and write calls on appointments and doctors go through the retry collaborator
// (bounded exponential backoff). Authentication calls are never retried, and neither
// is any 4xx response.
package apiclient
