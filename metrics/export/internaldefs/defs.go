package internaldefs

import (
	"github.com/hexfold/authcore"
)

// CounterDef maps one engine counter to an exported series.
type CounterDef struct {
	ID   authcore.MetricID
	Name string
	Help string
}

// CounterDefs lists every exported counter in a stable order.
var CounterDefs = []CounterDef{
	{ID: authcore.MetricPermissionCheck, Name: "authcore_permission_check_total", Help: "Permission checks evaluated."},
	{ID: authcore.MetricPermissionDenied, Name: "authcore_permission_denied_total", Help: "Permission checks denied by require variants."},
	{ID: authcore.MetricTwoFactorSetup, Name: "authcore_twofactor_setup_total", Help: "Two-factor enrollments started."},
	{ID: authcore.MetricTwoFactorConfirmSuccess, Name: "authcore_twofactor_confirm_success_total", Help: "Successful two-factor enrollment confirmations."},
	{ID: authcore.MetricTwoFactorConfirmFailure, Name: "authcore_twofactor_confirm_failure_total", Help: "Failed two-factor enrollment confirmations."},
	{ID: authcore.MetricTwoFactorDisabled, Name: "authcore_twofactor_disabled_total", Help: "Two-factor disable operations."},
	{ID: authcore.MetricTwoFactorLoginSuccess, Name: "authcore_twofactor_login_success_total", Help: "Successful second-factor login verifications."},
	{ID: authcore.MetricTwoFactorLoginFailure, Name: "authcore_twofactor_login_failure_total", Help: "Failed second-factor login verifications."},
	{ID: authcore.MetricBackupCodeUsed, Name: "authcore_backup_code_used_total", Help: "Successful backup-code authentications."},
	{ID: authcore.MetricBackupCodeFailed, Name: "authcore_backup_code_failed_total", Help: "Failed backup-code authentications."},
	{ID: authcore.MetricTokenIssued, Name: "authcore_token_issued_total", Help: "Single-use security tokens issued."},
	{ID: authcore.MetricTokenConsumed, Name: "authcore_token_consumed_total", Help: "Single-use security tokens consumed."},
	{ID: authcore.MetricTokenConsumeFailure, Name: "authcore_token_consume_failure_total", Help: "Failed token consume attempts."},
	{ID: authcore.MetricPasswordResetRequest, Name: "authcore_password_reset_request_total", Help: "Password reset requests."},
	{ID: authcore.MetricPasswordChanged, Name: "authcore_password_changed_total", Help: "Password changes and reset confirmations."},
	{ID: authcore.MetricEmailVerified, Name: "authcore_email_verified_total", Help: "Email addresses marked verified."},
	{ID: authcore.MetricConfigCacheHit, Name: "authcore_config_cache_hit_total", Help: "Config reads served from the TTL cache."},
	{ID: authcore.MetricConfigCacheMiss, Name: "authcore_config_cache_miss_total", Help: "Config reads that went to the store."},
	{ID: authcore.MetricConfigSet, Name: "authcore_config_set_total", Help: "Config write operations."},
	{ID: authcore.MetricFeatureFlagCheck, Name: "authcore_feature_flag_check_total", Help: "Feature flag evaluations."},
	{ID: authcore.MetricRateLimitHit, Name: "authcore_rate_limit_hit_total", Help: "Rate-limit checks that denied requests."},
	{ID: authcore.MetricStampRotated, Name: "authcore_security_stamp_rotated_total", Help: "Security stamp rotations."},
	{ID: authcore.MetricSessionsRevoked, Name: "authcore_sessions_revoked_total", Help: "Session revocation sweeps after sensitive mutations."},
}

// AuditDroppedName is the series for audit events lost to dispatcher
// backpressure.
const AuditDroppedName = "authcore_audit_dropped_total"

// AuditDroppedHelp documents the audit dropped counter.
const AuditDroppedHelp = "Dropped audit events due to dispatcher backpressure."
