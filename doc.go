// Package pairauth manages the lifecycle of a login session built from a
// short-lived access token and a long-lived, single-use refresh token.
//
// Each user has at most one live refresh token. Login installs a new one
// unconditionally, Refresh rotates it with a compare-and-set against the
// session store, and Logout clears it. Because rotation is conditional, two
// concurrent refreshes with the same token never both succeed.
//
// The Engine is built once through [Builder.Build] and is safe for
// concurrent use afterwards.
//
// # Architecture boundaries
//
// pairauth is the public surface: [Engine], [Builder], [Config], [Error] and
// value types. Token encoding lives in the jwt package, persistence in the
// session package, and flow orchestration under internal/flows. The HTTP
// boundary is the httpauth package.
//
// # What this package must NOT do
//
//   - Expose stored fingerprints or key material through its API.
//   - Reveal whether a login failed on the identifier or the password.
//   - Import httpauth or middleware (no import cycles).
package pairauth
