// Package session provides storage for the two session artifacts (access token and
// refresh token) scoped to a request/response pair or to an ambient key.
//
// # Stores
//
//   - [CookieStore]: HTTP cookies, through a [CookieJar] (net/http by default).
//   - [MemoryStore]: process-local map with per-value expiry.
//   - [RedisStore]: Redis string keys with per-value TTL.
//
// # Architecture boundaries
//
// This package is pure I/O. It does NOT decode tokens, decide when a renewal is
// needed, or evaluate permissions. Those responsibilities belong to the Engine.
//
// # What this package must NOT do
//
//   - Import goAuthClient, jwt, or permission (no upward imports).
//   - Interpret stored values.
package session
