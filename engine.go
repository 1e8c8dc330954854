package authcore

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/hexfold/authcore/internal"
	internalaudit "github.com/hexfold/authcore/internal/audit"
	"github.com/hexfold/authcore/internal/cache"
	"github.com/hexfold/authcore/internal/rate"
	"github.com/hexfold/authcore/password"
	"github.com/hexfold/authcore/permission"
)

// Engine is the security core. Construct it through [Builder.Build]; all
// methods are safe for concurrent use afterwards.
type Engine struct {
	config   Config
	registry *permission.Registry

	users    UserStore
	tokens   TokenStore
	configs  ConfigStore
	notifier Notifier
	sessions SessionRevoker
	keys     KeyProvider

	passwordHash     *password.Argon2
	totp             *totpManager
	configCache      *cache.TTL
	twoFactorLimiter *rate.Limiter
	tokenLimiter     *rate.Limiter
	audit            *internalaudit.Dispatcher
	metrics          *Metrics

	clock   func() time.Time
	randInt func(n int) int
	sleep   func(d time.Duration)
}

// Close stops the audit dispatcher and flushes buffered events. Safe to
// call more than once.
func (e *Engine) Close() {
	if e == nil {
		return
	}
	if e.audit != nil {
		e.audit.Close()
	}
}

// MetricsSnapshot returns a point-in-time copy of all engine counters.
func (e *Engine) MetricsSnapshot() MetricsSnapshot {
	if e == nil || e.metrics == nil {
		return MetricsSnapshot{Counters: map[MetricID]uint64{}}
	}
	return e.metrics.Snapshot()
}

func (e *Engine) metricInc(id MetricID) {
	if e == nil || e.metrics == nil {
		return
	}
	e.metrics.Inc(id)
}

// rotateSecurityStamp writes a fresh stamp for the user and verifies the
// replacement took effect. Sessions issued against the old stamp become
// detectably stale; RevokeAll is the eager companion where a session layer
// is wired.
func (e *Engine) rotateSecurityStamp(ctx context.Context, user UserRecord) error {
	stamp, err := internal.NewSecurityStamp()
	if err != nil {
		return fmt.Errorf("%w: %v", ErrCryptoUnavailable, err)
	}
	if stamp == user.SecurityStamp {
		return ErrStampNotRotated
	}

	if err := e.users.UpdateSecurityStamp(ctx, user.UserID, stamp); err != nil {
		return fmt.Errorf("%w: %v", ErrStoreUnavailable, err)
	}

	e.metricInc(MetricStampRotated)
	e.emitAudit(ctx, auditEventStampRotated, true, user.UserID, "", nil, nil)
	return nil
}

// revokeSessions invalidates every live session for the user, when a
// session layer is wired. Revocation failures are surfaced because the
// triggering mutation has already happened.
func (e *Engine) revokeSessions(ctx context.Context, userID string) error {
	if e.sessions == nil {
		return nil
	}
	if err := e.sessions.RevokeAll(ctx, userID); err != nil {
		return errors.Join(ErrSessionInvalidationFailed, err)
	}
	e.metricInc(MetricSessionsRevoked)
	return nil
}

func (e *Engine) encryptionKey() ([]byte, error) {
	if e.keys == nil {
		return nil, ErrCryptoUnavailable
	}
	key, err := e.keys.EncryptionKey()
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrCryptoUnavailable, err)
	}
	return key, nil
}

func (e *Engine) userByID(ctx context.Context, userID string) (UserRecord, error) {
	if userID == "" {
		return UserRecord{}, ErrUserNotFound
	}
	user, err := e.users.UserByID(ctx, userID)
	if err != nil {
		if errors.Is(err, ErrUserNotFound) {
			return UserRecord{}, ErrUserNotFound
		}
		return UserRecord{}, fmt.Errorf("%w: %v", ErrStoreUnavailable, err)
	}
	return user, nil
}

func accountStatusToError(status AccountStatus) error {
	switch status {
	case AccountDisabled:
		return ErrAccountDisabled
	case AccountLocked:
		return ErrAccountLocked
	case AccountDeleted:
		return ErrUserNotFound
	}
	return nil
}

// operableAccount reports whether an account may be the target of password
// reset issuance. Pending verification is allowed: a user who never
// verified their email can still recover their password.
func operableAccount(status AccountStatus) bool {
	return status == AccountActive || status == AccountPendingVerification
}
