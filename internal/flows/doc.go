// Package flows contains the pure orchestration of every session lifecycle
// operation.
//
// Each flow function (RunLogin, RunRefresh, RunLogout) takes a typed
// dependency struct and returns a result value whose Failure field names
// exactly one failure kind. The root Engine maps those kinds to public
// errors, metrics and audit events.
//
// # Architecture boundaries
//
// Flows coordinate the user lookup, credential check, token codec and
// session store. They do NOT own any of them; ownership stays with the
// Engine.
//
// # What this package must NOT do
//
//   - Hold mutable state between calls.
//   - Import pairauth (to avoid import cycles).
//   - Retry a lost compare-and-swap.
package flows
