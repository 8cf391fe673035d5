// Package internal contains helper utilities that are intentionally private to
// authcore, including secure random generation, one-time code helpers, and
// device fingerprint hashing.
//
// # Sub-packages
//
//   - audit — async event dispatch (Dispatcher + Sink implementations)
//   - kv — transient store adapter (Redis + in-memory backends)
//   - qr — QR login session records and state transitions
//   - rate — fixed-window attempt counters and MFA lockout
//
// # What this package must NOT do
//
//   - Export types that appear in the public authcore API.
//   - Be imported by any package outside the authcore module.
package internal
