// Package token issues and validates the JWT pair used by authcore: a
// short-lived access token and a longer-lived refresh token. Both are
// stateless JWTs; the engine additionally mirrors a digest of each refresh
// token in the transient store so revocation works while the store is up.
//
// # Claims
//
// Claims use short JSON tags (uid, role, typ) to keep tokens compact. The
// typ claim separates access from refresh tokens; parsers reject a token
// presented for the wrong purpose.
//
// # What this package must NOT do
//
//   - Touch the transient store; the revocation mirror is the engine's job.
//   - Embed secrets, OTP codes, or device fingerprints in claims.
package token
