// Package joysky provides a low-latency account engine with smart identifier
// routing, Redis-backed result caching, rate-limited password-reset mail
// codes, RSA protection for PII at rest, and fire-and-forget side-effect
// dispatch.
//
// The package is designed for concurrent server workloads: Engine methods are
// safe to call from multiple goroutines after initialization through
// [Builder.Build].
//
// # Architecture boundaries
//
// joysky is the public surface. It exposes [Engine], [Builder], [Config], the
// collaborator interfaces ([UserDirectory], [Mailer], [CaptchaService]), and
// value types (User, AuditEvent, MetricsSnapshot). Durable storage lives
// behind [UserDirectory]; implementations ship under directory/. Metric
// export adapters live under metrics/export.
//
// # What this package must NOT do
//
//   - Expose the Redis client, cache key layout, or store encodings in its
//     public API.
//   - Block a request on any secondary operation: audit logging, statistics,
//     and notifications run through the async dispatcher and their failures
//     are swallowed.
//   - Enforce timeouts on the durable store or the mail transport; timeout
//     policy belongs to those collaborators.
//
// # Performance contract
//
// Login is the hot path. A cache hit must complete without touching the
// durable store; a miss performs exactly one indexed lookup chosen by
// identifier shape instead of a multi-field OR query.
package joysky
