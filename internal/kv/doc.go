// Package kv is the transient-store adapter used for OTP codes, rate-limit
// counters, QR login sessions, and refresh-token revocation mirrors.
//
// # Components
//
//   - [Store] — the minimal key/value contract (TTL writes, atomic increment,
//     read-and-delete) that every backend must satisfy.
//   - [RedisStore] — the production backend over go-redis.
//   - [MemoryStore] — an in-process backend with the same TTL semantics, used
//     in tests and single-node deployments.
//
// # Architecture boundaries
//
// Backend failures surface as [ErrUnavailable] so callers can branch into
// their degraded modes without inspecting driver errors. A missing key is
// [ErrNotFound], never a nil-value convention.
//
// # What this package must NOT do
//
//   - Encode domain records; callers own their byte layouts.
//   - Import authcore or any sibling internal package.
//   - Retry or queue writes; degraded handling belongs to callers.
package kv
