package authcore

import (
	"context"
	"time"

	internalaudit "github.com/hexfold/authcore/internal/audit"
)

const (
	auditEventPermissionDenied       = "permission.denied"
	auditEventTwoFactorSetup         = "twofactor.setup"
	auditEventTwoFactorConfirmed     = "twofactor.confirmed"
	auditEventTwoFactorConfirmFailed = "twofactor.confirm_failed"
	auditEventTwoFactorDisabled      = "twofactor.disabled"
	auditEventTwoFactorLogin         = "twofactor.login"
	auditEventBackupCodeUsed         = "twofactor.backup_code_used"
	auditEventTokenIssued            = "token.issued"
	auditEventTokenConsumed          = "token.consumed"
	auditEventTokenConsumeFailed     = "token.consume_failed"
	auditEventPasswordResetRequest   = "password.reset_requested"
	auditEventPasswordChanged        = "password.changed"
	auditEventEmailVerified          = "email.verified"
	auditEventConfigChanged          = "config.changed"
	auditEventStampRotated           = "security_stamp.rotated"
)

func (e *Engine) emitAudit(ctx context.Context, eventType string, success bool, userID, actor string, cause error, metadata map[string]string) {
	if e == nil || e.audit == nil {
		return
	}

	event := internalaudit.Event{
		Timestamp: e.now(),
		EventType: eventType,
		UserID:    userID,
		Actor:     actor,
		Success:   success,
		Metadata:  metadata,
	}
	if cause != nil {
		event.Error = cause.Error()
	}

	e.audit.Emit(ctx, event)
}

// AuditDropped returns the number of audit events discarded because the
// dispatcher buffer was full.
func (e *Engine) AuditDropped() uint64 {
	if e == nil || e.audit == nil {
		return 0
	}
	return e.audit.Dropped()
}

// now returns the engine clock, falling back to wall time before Build.
func (e *Engine) now() time.Time {
	if e == nil || e.clock == nil {
		return time.Now()
	}
	return e.clock()
}
