// Package authcore provides a step-up authentication engine with JWT access tokens,
// refresh-token revocation mirrored in a transient store, OTP and TOTP second factors,
// backup codes, trusted-device short-circuiting, and QR cross-device login.
//
// The package is designed for concurrent server workloads: Engine methods are safe to
// call from multiple goroutines after initialization through [Builder.Build].
//
// # Architecture boundaries
//
// authcore is the public surface. It exposes [Engine], [Builder], [Config], the
// [AccountProvider] and [Deliverer] extension points, and value types (LoginResult,
// MFAEnrollment, QRLoginSession, etc.). All internal coordination — transient-store
// access, window counters, QR session encoding, audit dispatch — lives under internal/
// and is never exported.
//
// # Degraded operation
//
// The transient store is an availability dependency, not a correctness dependency.
// When it is unreachable the engine keeps authenticating: OTP codes fall back to an
// in-process map, token issuance and refresh fall back to JWT-only validation, and
// rate limiting fails open. Every degraded decision is logged and counted.
//
// # What this package must NOT do
//
//   - Expose Redis clients, internal stores, or encoding details in its public API.
//   - Surface transient-store errors raw to callers; they map to ErrStoreUnavailable
//     or a degraded-mode result.
//   - Perform I/O outside of Engine methods (construction via Builder is
//     allocation-only until Build).
package authcore
