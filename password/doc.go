// Package password implements password hashing and verification with Argon2id defaults,
// plus detection of legacy plaintext credentials scheduled for migration.
//
// # Output format
//
// Hashes are encoded in PHC string format:
//
//	$argon2id$v=19$m=<memory>,t=<time>,p=<threads>$<salt>$<hash>
//
// The [Argon2] hasher supports transparent parameter upgrades: if the stored hash
// was produced with weaker parameters, [Argon2.NeedsUpgrade] returns true so the
// caller can re-hash on the next successful login.
//
// # Legacy credentials
//
// [IsHashed] distinguishes PHC-format hashes from legacy plaintext values.
// [VerifyLegacy] compares plaintext in constant time; the engine only calls it
// when migration mode is explicitly enabled, and re-hashes on first success.
//
// # Architecture boundaries
//
// This package owns hashing and verification only. Password policy (length, reuse
// history) and the migration decision are enforced by the Engine.
//
// # What this package must NOT do
//
//   - Store or retrieve passwords — callers supply plaintext and receive hashes.
//   - Import any other authcore package.
//   - Log plaintext passwords or hash parameters at runtime.
package password
