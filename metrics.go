package authcore

import internalmetrics "github.com/hexfold/authcore/internal/metrics"

const (
	// MetricPermissionCheck counts permission predicate evaluations.
	MetricPermissionCheck = internalmetrics.MetricPermissionCheck
	// MetricPermissionDenied counts Require* helpers that aborted.
	MetricPermissionDenied = internalmetrics.MetricPermissionDenied
	// MetricTwoFactorSetup counts started enrollments.
	MetricTwoFactorSetup = internalmetrics.MetricTwoFactorSetup
	// MetricTwoFactorConfirmSuccess counts completed enrollments.
	MetricTwoFactorConfirmSuccess = internalmetrics.MetricTwoFactorConfirmSuccess
	// MetricTwoFactorConfirmFailure counts rejected enrollment confirmations.
	MetricTwoFactorConfirmFailure = internalmetrics.MetricTwoFactorConfirmFailure
	// MetricTwoFactorDisabled counts disablements.
	MetricTwoFactorDisabled = internalmetrics.MetricTwoFactorDisabled
	// MetricTwoFactorLoginSuccess counts successful login verifications.
	MetricTwoFactorLoginSuccess = internalmetrics.MetricTwoFactorLoginSuccess
	// MetricTwoFactorLoginFailure counts failed login verifications.
	MetricTwoFactorLoginFailure = internalmetrics.MetricTwoFactorLoginFailure
	// MetricBackupCodeUsed counts consumed backup codes.
	MetricBackupCodeUsed = internalmetrics.MetricBackupCodeUsed
	// MetricBackupCodeFailed counts rejected backup codes.
	MetricBackupCodeFailed = internalmetrics.MetricBackupCodeFailed
	// MetricTokenIssued counts issued security tokens.
	MetricTokenIssued = internalmetrics.MetricTokenIssued
	// MetricTokenConsumed counts successfully consumed tokens.
	MetricTokenConsumed = internalmetrics.MetricTokenConsumed
	// MetricTokenConsumeFailure counts not-found and expired consume calls.
	MetricTokenConsumeFailure = internalmetrics.MetricTokenConsumeFailure
	// MetricPasswordResetRequest counts reset requests, including the
	// silently swallowed ones.
	MetricPasswordResetRequest = internalmetrics.MetricPasswordResetRequest
	// MetricPasswordChanged counts password changes and resets.
	MetricPasswordChanged = internalmetrics.MetricPasswordChanged
	// MetricEmailVerified counts completed email verifications.
	MetricEmailVerified = internalmetrics.MetricEmailVerified
	// MetricConfigCacheHit counts cache hits on ConfigGet.
	MetricConfigCacheHit = internalmetrics.MetricConfigCacheHit
	// MetricConfigCacheMiss counts cache misses on ConfigGet.
	MetricConfigCacheMiss = internalmetrics.MetricConfigCacheMiss
	// MetricConfigSet counts configuration writes.
	MetricConfigSet = internalmetrics.MetricConfigSet
	// MetricFeatureFlagCheck counts feature flag evaluations.
	MetricFeatureFlagCheck = internalmetrics.MetricFeatureFlagCheck
	// MetricRateLimitHit counts operations rejected by a limiter.
	MetricRateLimitHit = internalmetrics.MetricRateLimitHit
	// MetricStampRotated counts security stamp rotations.
	MetricStampRotated = internalmetrics.MetricStampRotated
	// MetricSessionsRevoked counts RevokeAll invocations.
	MetricSessionsRevoked = internalmetrics.MetricSessionsRevoked

	// MetricIDCount is the number of counter slots.
	MetricIDCount = internalmetrics.MetricIDCount
)

// NewMetrics creates a [Metrics] instance. When cfg.Enabled is false all
// operations are no-ops.
func NewMetrics(cfg MetricsConfig) *Metrics {
	return internalmetrics.New(internalmetrics.Config{Enabled: cfg.Enabled})
}
