package authcore

import (
	"context"
	"fmt"
)

// ChangePassword replaces a user's password after verifying the current
// one. The new password must satisfy the configured policy. On success the
// security stamp rotates and live sessions are revoked; the caller is
// expected to re-authenticate the current session.
func (e *Engine) ChangePassword(ctx context.Context, userID, currentPassword, newPassword string) error {
	if e == nil || e.users == nil || e.passwordHash == nil {
		return ErrEngineNotReady
	}

	user, err := e.userByID(ctx, userID)
	if err != nil {
		return err
	}
	if statusErr := accountStatusToError(user.Status); statusErr != nil {
		return statusErr
	}
	if user.PasswordHash == "" {
		return ErrNoPassword
	}

	match, err := e.passwordHash.Verify(currentPassword, user.PasswordHash)
	if err != nil {
		return fmt.Errorf("%w: %v", ErrCryptoUnavailable, err)
	}
	if !match {
		return ErrInvalidCredentials
	}

	if violations := e.config.Password.Policy.Validate(newPassword); len(violations) > 0 {
		return &PolicyError{Violations: violations}
	}

	hash, err := e.passwordHash.Hash(newPassword)
	if err != nil {
		return fmt.Errorf("%w: %v", ErrCryptoUnavailable, err)
	}
	if err := e.users.UpdatePasswordHash(ctx, userID, hash); err != nil {
		return fmt.Errorf("%w: %v", ErrStoreUnavailable, err)
	}

	if err := e.rotateSecurityStamp(ctx, user); err != nil {
		return err
	}
	if err := e.revokeSessions(ctx, userID); err != nil {
		return err
	}

	e.metricInc(MetricPasswordChanged)
	e.emitAudit(ctx, auditEventPasswordChanged, true, userID, "", nil, map[string]string{
		"via": "change-password",
	})
	return nil
}

// VerifyPassword checks a plaintext password against a user's stored hash
// and transparently upgrades hashes produced under older Argon2 parameters.
func (e *Engine) VerifyPassword(ctx context.Context, userID, plaintext string) error {
	if e == nil || e.users == nil || e.passwordHash == nil {
		return ErrEngineNotReady
	}

	user, err := e.userByID(ctx, userID)
	if err != nil {
		return err
	}
	if user.PasswordHash == "" {
		return ErrNoPassword
	}

	match, err := e.passwordHash.Verify(plaintext, user.PasswordHash)
	if err != nil {
		return fmt.Errorf("%w: %v", ErrCryptoUnavailable, err)
	}
	if !match {
		return ErrInvalidCredentials
	}

	if upgrade, err := e.passwordHash.NeedsUpgrade(user.PasswordHash); err == nil && upgrade {
		if rehash, err := e.passwordHash.Hash(plaintext); err == nil {
			// Best effort: a failed upgrade write never fails the login.
			_ = e.users.UpdatePasswordHash(ctx, userID, rehash)
		}
	}
	return nil
}
