// Package identity provides read-only pairauth.UserProvider implementations.
//
// [MemoryProvider] keeps users in a map and is meant for tests, demos and
// the memory backend of the server binary. [PostgresProvider] reads the
// users table created by the migrations package.
//
// Lookups by identifier match the username or the email address, case
// insensitively. Misses return pairauth.ErrUserNotFound.
//
// Registration and profile management are not part of this package.
package identity
