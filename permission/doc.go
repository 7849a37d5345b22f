// Package permission evaluates a token's permission and role claims against the
// requirements of a guarded handler.
//
// # Evaluation rule
//
// Every required permission must be held, and at least one required role must be
// held. Empty requirement lists always pass.
//
// # Registry
//
// An optional [Registry] maps permission names to bit positions so requirements
// are compiled once into a [Mask] at guard setup and each request only performs a
// word-wise subset test. Claims naming permissions that are not registered are
// ignored; requirements naming unregistered permissions never pass.
//
// # What this package must NOT do
//
//   - Access the network or any store.
//   - Import goAuthClient, jwt, or session.
package permission
