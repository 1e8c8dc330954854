package authcore

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/hexfold/authcore/internal"
)

// tokenTTL returns the configured lifetime for a purpose.
func (e *Engine) tokenTTL(purpose TokenPurpose) (time.Duration, error) {
	switch purpose {
	case PurposePasswordReset:
		return e.config.Tokens.PasswordResetTTL, nil
	case PurposeEmailVerification:
		return e.config.Tokens.EmailVerificationTTL, nil
	}
	return 0, fmt.Errorf("unknown token purpose %q", purpose)
}

// IssueToken mints a single-use token for the user and purpose and returns
// its plaintext. Only the SHA-256 hash is persisted; issuing replaces any
// prior outstanding token for the same user and purpose.
func (e *Engine) IssueToken(ctx context.Context, userID string, purpose TokenPurpose) (string, error) {
	if e == nil || e.tokens == nil {
		return "", ErrEngineNotReady
	}

	ttl, err := e.tokenTTL(purpose)
	if err != nil {
		return "", err
	}

	secret, err := internal.NewTokenSecret()
	if err != nil {
		return "", fmt.Errorf("%w: %v", ErrCryptoUnavailable, err)
	}

	record := TokenRecord{
		ID:        uuid.NewString(),
		UserID:    userID,
		Purpose:   purpose,
		Hash:      internal.HashTokenSecret(secret),
		ExpiresAt: e.now().Add(ttl),
	}
	if err := e.tokens.SaveToken(ctx, record); err != nil {
		return "", fmt.Errorf("%w: %v", ErrStoreUnavailable, err)
	}

	e.metricInc(MetricTokenIssued)
	e.emitAudit(ctx, auditEventTokenIssued, true, userID, "", nil, map[string]string{
		"purpose": string(purpose),
	})

	return internal.EncodeToken(secret), nil
}

// PeekToken validates a token without consuming it. Malformed input and
// unknown hashes both come back as [ErrTokenNotFound] so callers cannot
// distinguish a near-miss from a wild guess.
func (e *Engine) PeekToken(ctx context.Context, token string, purpose TokenPurpose) (*TokenValidity, error) {
	if e == nil || e.tokens == nil {
		return nil, ErrEngineNotReady
	}

	hash, ok := internal.HashToken(token)
	if !ok {
		return nil, ErrTokenNotFound
	}

	record, err := e.tokens.TokenByHash(ctx, hash, purpose)
	if err != nil {
		if errors.Is(err, ErrTokenNotFound) {
			return nil, ErrTokenNotFound
		}
		return nil, fmt.Errorf("%w: %v", ErrStoreUnavailable, err)
	}

	now := e.now()
	if !now.Before(record.ExpiresAt) {
		return nil, ErrTokenExpired
	}

	return &TokenValidity{
		UserID:    record.UserID,
		Purpose:   record.Purpose,
		ExpiresAt: record.ExpiresAt,
		Remaining: record.ExpiresAt.Sub(now),
	}, nil
}

// ConsumeToken validates a token, runs effect, and deletes the token, as
// one unit. The effect runs at most once per token: concurrent consumers of
// the same plaintext see at most one success, the rest get
// [ErrTokenNotFound]. An expired token fails without running the effect.
func (e *Engine) ConsumeToken(ctx context.Context, token string, purpose TokenPurpose, effect func(ctx context.Context, record TokenRecord) error) error {
	if e == nil || e.tokens == nil {
		return ErrEngineNotReady
	}

	hash, ok := internal.HashToken(token)
	if !ok {
		return e.tokenConsumeFailed(ctx, purpose, ErrTokenNotFound)
	}

	err := e.tokens.ConsumeToken(ctx, hash, purpose, func(ctx context.Context, record TokenRecord) error {
		if !e.now().Before(record.ExpiresAt) {
			return ErrTokenExpired
		}
		if effect == nil {
			return nil
		}
		return effect(ctx, record)
	})
	switch {
	case err == nil:
	case errors.Is(err, ErrTokenNotFound), errors.Is(err, ErrTokenExpired):
		return e.tokenConsumeFailed(ctx, purpose, err)
	case isDomainError(err):
		return err
	default:
		return fmt.Errorf("%w: %v", ErrStoreUnavailable, err)
	}

	e.metricInc(MetricTokenConsumed)
	e.emitAudit(ctx, auditEventTokenConsumed, true, "", "", nil, map[string]string{
		"purpose": string(purpose),
	})
	return nil
}

// tokenConsumeFailed records a failed consume. Guessing is not rate limited
// here: tokens carry 256 bits of entropy and are single use, and there is
// no caller identity to key a budget on at consume time.
func (e *Engine) tokenConsumeFailed(ctx context.Context, purpose TokenPurpose, cause error) error {
	e.metricInc(MetricTokenConsumeFailure)
	e.emitAudit(ctx, auditEventTokenConsumeFailed, false, "", "", cause, map[string]string{
		"purpose": string(purpose),
	})
	return cause
}

// isDomainError reports whether err is one of the package's sentinel
// conditions that must pass through to callers unwrapped in store clothing.
func isDomainError(err error) bool {
	for _, sentinel := range []error{
		ErrUserNotFound, ErrWeakPassword, ErrInvalidCredentials,
		ErrAccountDisabled, ErrAccountLocked, ErrStampNotRotated,
		ErrSessionInvalidationFailed, ErrCryptoUnavailable,
	} {
		if errors.Is(err, sentinel) {
			return true
		}
	}
	return false
}

// RequestPasswordReset starts a password reset for the account behind
// identifier. It always reports success: unknown identifiers and
// non-operable accounts are indistinguishable from real issuance, and every
// path takes a small randomized delay so timing does not leak account
// existence either.
func (e *Engine) RequestPasswordReset(ctx context.Context, identifier string) error {
	if e == nil || e.users == nil || e.tokens == nil {
		return ErrEngineNotReady
	}
	defer e.antiEnumerationDelay()

	e.metricInc(MetricPasswordResetRequest)

	if err := e.tokenLimiter.Check(ctx, "reset:"+identifier); err != nil {
		return e.mapLimiterError(ctx, e.tokenLimiter, "reset:"+identifier, err)
	}
	_ = e.tokenLimiter.RecordFailure(ctx, "reset:"+identifier)

	user, err := e.users.UserByIdentifier(ctx, identifier)
	if err != nil {
		// Unknown identifier: generic success. Store outages still surface.
		if errors.Is(err, ErrUserNotFound) {
			e.emitAudit(ctx, auditEventPasswordResetRequest, false, "", "", ErrUserNotFound, nil)
			return nil
		}
		return fmt.Errorf("%w: %v", ErrStoreUnavailable, err)
	}
	if !operableAccount(user.Status) {
		e.emitAudit(ctx, auditEventPasswordResetRequest, false, user.UserID, "", accountStatusToError(user.Status), nil)
		return nil
	}

	token, err := e.IssueToken(ctx, user.UserID, PurposePasswordReset)
	if err != nil {
		return err
	}

	if e.notifier == nil {
		return ErrNotifierUnavailable
	}
	expiresAt := e.now().Add(e.config.Tokens.PasswordResetTTL)
	if err := e.notifier.SendToken(ctx, user, PurposePasswordReset, token, expiresAt); err != nil {
		return fmt.Errorf("%w: %v", ErrNotifierUnavailable, err)
	}

	e.emitAudit(ctx, auditEventPasswordResetRequest, true, user.UserID, "", nil, nil)
	return nil
}

// ConfirmPasswordReset consumes a reset token and installs the new
// password. On success the security stamp rotates and every live session is
// revoked, so stolen sessions die with the old password.
func (e *Engine) ConfirmPasswordReset(ctx context.Context, token, newPassword string) error {
	if e == nil || e.users == nil || e.tokens == nil || e.passwordHash == nil {
		return ErrEngineNotReady
	}

	if violations := e.config.Password.Policy.Validate(newPassword); len(violations) > 0 {
		return &PolicyError{Violations: violations}
	}

	err := e.ConsumeToken(ctx, token, PurposePasswordReset, func(ctx context.Context, record TokenRecord) error {
		user, err := e.userByID(ctx, record.UserID)
		if err != nil {
			return err
		}
		if statusErr := accountStatusToError(user.Status); statusErr != nil {
			return statusErr
		}

		hash, err := e.passwordHash.Hash(newPassword)
		if err != nil {
			return fmt.Errorf("%w: %v", ErrCryptoUnavailable, err)
		}
		if err := e.users.UpdatePasswordHash(ctx, user.UserID, hash); err != nil {
			return fmt.Errorf("%w: %v", ErrStoreUnavailable, err)
		}

		if err := e.rotateSecurityStamp(ctx, user); err != nil {
			return err
		}
		if err := e.revokeSessions(ctx, user.UserID); err != nil {
			return err
		}

		e.metricInc(MetricPasswordChanged)
		e.emitAudit(ctx, auditEventPasswordChanged, true, user.UserID, "", nil, map[string]string{
			"via": "password-reset",
		})
		return nil
	})
	return err
}

// RequestEmailVerification issues and delivers a verification token for the
// user. Verifying an already-verified account is a no-op success.
func (e *Engine) RequestEmailVerification(ctx context.Context, userID string) error {
	if e == nil || e.users == nil || e.tokens == nil {
		return ErrEngineNotReady
	}

	user, err := e.userByID(ctx, userID)
	if err != nil {
		return err
	}
	if statusErr := accountStatusToError(user.Status); statusErr != nil {
		return statusErr
	}
	if user.EmailVerified {
		return nil
	}

	if err := e.tokenLimiter.Check(ctx, "verify:"+userID); err != nil {
		return e.mapLimiterError(ctx, e.tokenLimiter, "verify:"+userID, err)
	}
	_ = e.tokenLimiter.RecordFailure(ctx, "verify:"+userID)

	token, err := e.IssueToken(ctx, user.UserID, PurposeEmailVerification)
	if err != nil {
		return err
	}

	if e.notifier == nil {
		return ErrNotifierUnavailable
	}
	expiresAt := e.now().Add(e.config.Tokens.EmailVerificationTTL)
	if err := e.notifier.SendToken(ctx, user, PurposeEmailVerification, token, expiresAt); err != nil {
		return fmt.Errorf("%w: %v", ErrNotifierUnavailable, err)
	}
	return nil
}

// ConfirmEmailVerification consumes a verification token and marks the
// owning account's email as verified.
func (e *Engine) ConfirmEmailVerification(ctx context.Context, token string) error {
	if e == nil || e.users == nil || e.tokens == nil {
		return ErrEngineNotReady
	}

	return e.ConsumeToken(ctx, token, PurposeEmailVerification, func(ctx context.Context, record TokenRecord) error {
		user, err := e.userByID(ctx, record.UserID)
		if err != nil {
			return err
		}
		if user.EmailVerified {
			return nil
		}

		if err := e.users.MarkEmailVerified(ctx, user.UserID); err != nil {
			return fmt.Errorf("%w: %v", ErrStoreUnavailable, err)
		}

		e.metricInc(MetricEmailVerified)
		e.emitAudit(ctx, auditEventEmailVerified, true, user.UserID, "", nil, nil)
		return nil
	})
}

// antiEnumerationDelay sleeps 20..40ms so response timing is dominated by
// the jitter rather than by which branch was taken.
func (e *Engine) antiEnumerationDelay() {
	if e.sleep == nil {
		return
	}
	e.sleep(time.Duration(20+e.randInt(21)) * time.Millisecond)
}
