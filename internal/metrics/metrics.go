package metrics

import "sync/atomic"

// MetricID identifies a counter slot.
type MetricID int

const (
	MetricPermissionCheck MetricID = iota
	MetricPermissionDenied
	MetricTwoFactorSetup
	MetricTwoFactorConfirmSuccess
	MetricTwoFactorConfirmFailure
	MetricTwoFactorDisabled
	MetricTwoFactorLoginSuccess
	MetricTwoFactorLoginFailure
	MetricBackupCodeUsed
	MetricBackupCodeFailed
	MetricTokenIssued
	MetricTokenConsumed
	MetricTokenConsumeFailure
	MetricPasswordResetRequest
	MetricPasswordChanged
	MetricEmailVerified
	MetricConfigCacheHit
	MetricConfigCacheMiss
	MetricConfigSet
	MetricFeatureFlagCheck
	MetricRateLimitHit
	MetricStampRotated
	MetricSessionsRevoked

	// MetricIDCount is the number of counter slots. Keep last.
	MetricIDCount
)

var metricNames = [MetricIDCount]string{
	MetricPermissionCheck:         "permission_check",
	MetricPermissionDenied:        "permission_denied",
	MetricTwoFactorSetup:          "twofactor_setup",
	MetricTwoFactorConfirmSuccess: "twofactor_confirm_success",
	MetricTwoFactorConfirmFailure: "twofactor_confirm_failure",
	MetricTwoFactorDisabled:       "twofactor_disabled",
	MetricTwoFactorLoginSuccess:   "twofactor_login_success",
	MetricTwoFactorLoginFailure:   "twofactor_login_failure",
	MetricBackupCodeUsed:          "backup_code_used",
	MetricBackupCodeFailed:        "backup_code_failed",
	MetricTokenIssued:             "token_issued",
	MetricTokenConsumed:           "token_consumed",
	MetricTokenConsumeFailure:     "token_consume_failure",
	MetricPasswordResetRequest:    "password_reset_request",
	MetricPasswordChanged:         "password_changed",
	MetricEmailVerified:           "email_verified",
	MetricConfigCacheHit:          "config_cache_hit",
	MetricConfigCacheMiss:         "config_cache_miss",
	MetricConfigSet:               "config_set",
	MetricFeatureFlagCheck:        "feature_flag_check",
	MetricRateLimitHit:            "rate_limit_hit",
	MetricStampRotated:            "security_stamp_rotated",
	MetricSessionsRevoked:         "sessions_revoked",
}

// Name returns the stable snake_case name for a metric, or "unknown" for
// out-of-range IDs.
func (id MetricID) Name() string {
	if id < 0 || id >= MetricIDCount {
		return "unknown"
	}
	return metricNames[id]
}

// Config controls metrics collection.
type Config struct {
	Enabled bool
}

// Metrics holds one atomic counter per MetricID. A nil or disabled Metrics
// value turns every operation into a no-op.
type Metrics struct {
	enabled  bool
	counters [MetricIDCount]atomic.Uint64
}

// Snapshot is a point-in-time copy of all counters.
type Snapshot struct {
	Counters map[MetricID]uint64
}

// New creates a Metrics instance. When cfg.Enabled is false all operations
// are no-ops.
func New(cfg Config) *Metrics {
	return &Metrics{enabled: cfg.Enabled}
}

// Inc increments the counter for id. Safe for concurrent use.
func (m *Metrics) Inc(id MetricID) {
	m.Add(id, 1)
}

// Add increments the counter for id by delta.
func (m *Metrics) Add(id MetricID, delta uint64) {
	if m == nil || !m.enabled || id < 0 || id >= MetricIDCount {
		return
	}
	m.counters[id].Add(delta)
}

// Get returns the current value of a single counter.
func (m *Metrics) Get(id MetricID) uint64 {
	if m == nil || !m.enabled || id < 0 || id >= MetricIDCount {
		return 0
	}
	return m.counters[id].Load()
}

// Snapshot returns a deep copy of every counter. The returned map is owned
// by the caller.
func (m *Metrics) Snapshot() Snapshot {
	out := Snapshot{Counters: make(map[MetricID]uint64, MetricIDCount)}
	if m == nil || !m.enabled {
		return out
	}
	for id := MetricID(0); id < MetricIDCount; id++ {
		out.Counters[id] = m.counters[id].Load()
	}
	return out
}
