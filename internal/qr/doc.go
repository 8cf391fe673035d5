// Package qr stores cross-device login sessions in the transient store.
//
// # Record layout
//
// Sessions are versioned binary records: version byte, state byte, expiry,
// then length-prefixed account and token fields. Tokens are only present in
// the APPROVED state and are removed from the store by the consuming read.
//
// # State machine
//
// PENDING is the only state a session is created in. PENDING moves to
// APPROVED or REJECTED exactly once; APPROVED is consumed by a single
// read-and-delete. Absence means EXPIRED — callers never observe a distinct
// expired record.
//
// # What this package must NOT do
//
//   - Authenticate anyone; credential checks happen in the root engine.
//   - Render QR images or build payload URLs.
package qr
