// Package jwt issues and verifies the signed access and refresh tokens of a
// session token pair.
//
// Access and refresh tokens are signed with separate key material and carry
// separate lifetimes. Verification checks the signing algorithm, the
// signature, the expiry and the token role; every failure is reported as a
// *TokenError with one of three kinds.
//
// # Architecture boundaries
//
// The codec is stateless. It knows nothing about users, sessions or storage,
// and it never imports the root pairauth package.
//
// # What this package must NOT do
//
//   - Persist or look up tokens.
//   - Make business decisions (staleness, reuse, credentials).
//   - Read the wall clock directly when a clock is configured.
package jwt
