// Package middleware adapts the goAuthClient session guard to HTTP frameworks.
//
// # Adapters
//
//   - [Guard]: net/http middleware that gates admission only.
//   - [Render]: net/http handler for a guarded goAuthClient.RenderFunc, including the
//     ErrAuthToken session reset.
//   - [Fiber]: gofiber/fiber/v3 middleware that gates admission and resets the session
//     when the downstream chain returns ErrAuthToken.
//
// # Architecture boundaries
//
// This package translates HTTP semantics into Guard.Admit and Guard.Recover calls. It does
// NOT decide admission itself.
//
// # What this package must NOT do
//
//   - Decode tokens or evaluate permissions directly (delegates to the Engine's guard).
//   - Touch session storage other than through session.Context.
package middleware
