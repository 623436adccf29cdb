// Package session persists the single live refresh-token value of each
// subject and replaces it only through compare-and-swap.
//
// # Storage contract
//
// A [Store] maps a subject to an optional [Value]. [Store.SetIfMatches] is
// atomic with respect to every other call on the same subject: it writes only
// when the current value matches the [Expectation], and a mismatch is reported
// as swapped == false rather than as an error. Callers never read-modify-write
// session state any other way.
//
// Three implementations ship with the package: [MemoryStore] for tests and
// single-process demos, [RedisStore] (Lua script CAS) and [PostgresStore]
// (conditional statements on a row per subject).
//
// # Architecture boundaries
//
// The package stores opaque values. It does NOT issue or verify tokens,
// and it does not decide what a conflict means for the caller.
//
// # What this package must NOT do
//
//   - Import pairauth or jwt (no upward imports).
//   - Retry a failed or conflicting swap.
//   - Store refresh tokens in plaintext; callers store [Fingerprint] output.
package session
