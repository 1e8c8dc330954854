// Package cache implements the mutex-guarded TTL map behind the engine's
// configuration cache. Concurrent misses may both repopulate the same key;
// writes are idempotent so the race is tolerated rather than serialized.
package cache
