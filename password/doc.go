// Package password implements the default credential verifier: Argon2id
// hashing in PHC string format.
//
//	$argon2id$v=19$m=<memory>,t=<time>,p=<threads>$<salt>$<hash>
//
// [Argon2.NeedsUpgrade] reports hashes produced with weaker parameters so a
// user provider can re-hash after a successful login.
//
// # Architecture boundaries
//
// This package owns hashing and verification only. Looking up the stored
// hash and deciding what a mismatch means belong to the Engine.
//
// # What this package must NOT do
//
//   - Store or retrieve passwords.
//   - Import any other pairauth package.
//   - Log plaintext passwords or hash parameters at runtime.
package password
