// Package middleware exposes net/http middleware adapters built on top of
// authcore.Engine token validation, for callers that do not use the gin-based
// httpapi package.
//
// # Guards
//
//   - [RequireAuth] — access-token verification via Engine.ValidateAccess.
//   - [RequireRole] — RequireAuth plus a role allow-list.
//
// Each guard reads the Authorization header, calls Engine.ValidateAccess, and
// injects the validated result into the request context.
//
// # Architecture boundaries
//
// This package translates HTTP semantics into Engine calls. It does NOT implement
// authentication logic itself — all decisions are delegated to the Engine.
//
// # What this package must NOT do
//
//   - Parse or create JWTs directly (delegates to Engine).
//   - Access the transient store (Engine handles I/O).
//   - Make authorization decisions beyond pass/reject from Engine.ValidateAccess
//     and the caller-supplied role list.
package middleware
