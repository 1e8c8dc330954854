// Package rate enforces fixed-window attempt budgets for credential
// verification flows using Redis counters. The window TTL doubles as the
// retry-after hint surfaced to callers.
package rate
