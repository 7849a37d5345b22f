// Package jwt decodes access-token claims for session guards and issues tokens for
// fake authorization servers used in tests and load runs.
//
// # Decoding modes
//
// A [Decoder] without keys extracts claims without verifying the signature or
// expiry, the same contract as a browser-side token decoder: the guard only needs
// the permission and role claims, and the API remains the authority on validity.
// With keys configured, the signature, issuer, and audience are verified as well.
//
// # What this package must NOT do
//
//   - Perform I/O or network calls.
//   - Import goAuthClient, session, or permission.
package jwt
