// Package goAuthClient augments an HTTP client with transparent bearer-token renewal
// and gates server-rendered handlers behind a session guard.
//
// A [Client] attaches the access token it snapshotted at construction to every request.
// When the API answers 401 with the renewable error code, the client's refresh
// coordinator issues exactly one renewal call for that expiry, queues every request
// that fails meanwhile, and replays the queue in arrival order with the new token.
// A failed renewal rejects every queued caller with a [*RenewalError].
//
// Non-renewable 401s depend on the client's [ExecutionContext]: Interactive clients
// destroy the session directly, Rendering clients return [ErrAuthToken] for the
// session guard ([WithSessionGuard], [Guard]) to turn into a session reset redirect.
//
// # Architecture boundaries
//
// goAuthClient is the public surface. It exposes [Engine], [Builder], [Config], [Client]
// and the guard types. Collaborators live in sub-packages: session storage in session,
// token decoding in jwt, permission evaluation in permission, framework adapters in
// middleware.
//
// # What this package must NOT do
//
//   - Share renewal state between clients. Each Client owns its coordinator.
//   - Issue a second renewal for a request that was already replayed.
//   - Convert a renewal failure into ErrAuthToken.
//   - Import middleware or any sub-package that re-imports goAuthClient.
package goAuthClient
