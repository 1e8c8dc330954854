// Package authcore is the identity and access security core for content
// platforms: permission resolution over a role hierarchy, a TOTP two-factor
// enrollment state machine with encrypted secrets and one-time backup codes,
// single-use security tokens (password reset, email verification), a
// security-stamp mechanism that invalidates live sessions on sensitive
// account changes, and a TTL-backed configuration/feature-flag cache with
// audit history.
//
// The package is designed for concurrent server workloads: Engine methods are
// safe to call from multiple goroutines after initialization through
// [Builder.Build].
//
// # Architecture boundaries
//
// authcore is the public surface. It exposes [Engine], [Builder], [Config],
// the persistence ports ([UserStore], [TokenStore], [ConfigStore]), and value
// types. Internal coordination (TTL caching, rate limiting, audit dispatch,
// random credential generation) lives under internal/ and is never exported.
//
// The host application owns rendering, routing, localization, and the
// relational schema. It integrates by implementing the ports and calling
// Engine methods; reference adapters live under store/pg (Postgres) and
// session (Redis-backed sessions with security-stamp validation).
//
// # What this package must NOT do
//
//   - Persist or log plaintext tokens, backup codes, or TOTP secrets.
//   - Expose database or Redis handles through its public API.
//   - Spawn background work that outlives the request, except the audit
//     dispatcher goroutine owned by the Engine and stopped by [Engine.Close].
package authcore
