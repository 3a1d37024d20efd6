// Package tokencore is a dual-token lifecycle and revocation engine: it
// mints, validates, rotates, and revokes paired JWT access/refresh tokens
// backed by Redis bookkeeping, so downstream services can authenticate a
// caller without a central round-trip on every request.
//
// The package is designed for concurrent server workloads: Engine methods
// are safe to call from multiple goroutines after initialization through
// [Builder.Build].
//
// # Architecture boundaries
//
// tokencore is the public surface. It exposes [Engine], [Builder], [Config],
// and value types (Principal, TokenPair, AuditEvent, MetricsSnapshot). The
// codec lives in token/ and the Redis bookkeeping in store/; neither imports
// this package back.
//
// Credential verification, user-profile retrieval, and role sourcing are the
// caller's problem: the engine receives an already-verified [Principal] with
// opaque authority strings and never touches passwords or a user database.
//
// # What this package must NOT do
//
//   - Expose the Redis client, store keys, or codec internals in its API.
//   - Fail open: if the store cannot answer a blacklist or used-marker
//     check, the request is rejected, never silently allowed.
//   - Retry internally. Store unavailability surfaces as
//     [ErrStoreUnavailable] and the caller decides.
//
// # Performance contract
//
// ValidateAccess is the hot path: one codec decode plus a single Redis
// EXISTS, no writes. Mint and Rotate are allowed a handful of Redis
// round-trips. Every store call is bounded by the configured operation
// timeout so the hot path has a bounded worst case.
package tokencore
