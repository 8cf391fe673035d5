// Package rate provides fixed-window attempt counters and the MFA failure
// lockout counter for security-sensitive authentication workflows.
//
// # Window semantics
//
// Fixed-window counters: INCR + conditional EXPIRE on first hit. Key prefixes:
//   - rl:<action>:id: — per-identity, one window per action
//   - rl:<action>:ip: — per-IP, armed when IP throttling is enabled
//   - lk:             — MFA failure lockout per account
//
// # Degraded mode
//
// Counters live in the transient store. When the store is unreachable the
// limiter fails open: the attempt proceeds and the outage is reported through
// the logger so operators can see the unprotected window. Availability of
// login wins over strict throttling.
//
// # What this package must NOT do
//
//   - Implement domain-specific flows (those live in the root engine).
//   - Be imported outside the authcore module.
package rate
