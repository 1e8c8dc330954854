package authcore

import (
	"context"
	"errors"
	"fmt"

	"github.com/hexfold/authcore/internal"
	"github.com/hexfold/authcore/internal/rate"
)

// SetupTwoFactor starts enrollment for a user: it generates a fresh TOTP
// secret, stores it as the pending secret, and returns the provisioning
// material. Enrollment does not change the enabled flag until
// ConfirmTwoFactor.
//
// Calling SetupTwoFactor again before confirmation replaces the pending
// secret (last write wins); only the most recent secret confirms.
func (e *Engine) SetupTwoFactor(ctx context.Context, userID, accountLabel string) (*TwoFactorSetup, error) {
	if e == nil || e.users == nil || e.totp == nil {
		return nil, ErrEngineNotReady
	}

	user, err := e.userByID(ctx, userID)
	if err != nil {
		return nil, err
	}
	if statusErr := accountStatusToError(user.Status); statusErr != nil {
		return nil, statusErr
	}
	if user.TwoFactorEnabled {
		return nil, ErrTwoFactorAlreadyEnabled
	}

	label := accountLabel
	if label == "" {
		label = user.Identifier
	}
	if label == "" {
		label = user.UserID
	}

	key, err := e.totp.GenerateSecret(label)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrCryptoUnavailable, err)
	}

	if err := e.users.SavePendingTwoFactorSecret(ctx, userID, key.Secret()); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrStoreUnavailable, err)
	}

	qr, err := e.totp.QRImage(key)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrCryptoUnavailable, err)
	}

	e.metricInc(MetricTwoFactorSetup)
	e.emitAudit(ctx, auditEventTwoFactorSetup, true, userID, "", nil, nil)

	return &TwoFactorSetup{
		SecretBase32:    key.Secret(),
		ProvisioningURI: key.URL(),
		QRPNG:           qr,
	}, nil
}

// ConfirmTwoFactor completes enrollment. The code must validate against
// the pending secret within the configured skew. On success the pending
// secret is encrypted into the confirmed slot, two-factor is enabled, the
// security stamp rotates, live sessions are revoked, and the plaintext
// backup codes are returned. They are not retrievable afterwards.
func (e *Engine) ConfirmTwoFactor(ctx context.Context, userID, code string) ([]string, error) {
	if e == nil || e.users == nil || e.totp == nil {
		return nil, ErrEngineNotReady
	}

	user, err := e.userByID(ctx, userID)
	if err != nil {
		return nil, err
	}
	if user.TwoFactorEnabled {
		return nil, ErrTwoFactorAlreadyEnabled
	}
	if user.PendingTwoFactorSecret == "" {
		return nil, ErrNoPendingSecret
	}

	if err := e.checkTwoFactorBudget(ctx, userID); err != nil {
		return nil, err
	}

	if !e.totp.VerifyCode(user.PendingTwoFactorSecret, code, e.now()) {
		e.metricInc(MetricTwoFactorConfirmFailure)
		e.emitAudit(ctx, auditEventTwoFactorConfirmFailed, false, userID, "", ErrInvalidCode, nil)
		return nil, e.recordTwoFactorFailure(ctx, userID)
	}

	plaintext, records, err := e.newBackupCodes(userID)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrCryptoUnavailable, err)
	}
	if err := e.users.ReplaceBackupCodes(ctx, userID, records); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrStoreUnavailable, err)
	}

	key, err := e.encryptionKey()
	if err != nil {
		return nil, err
	}
	sealed, err := sealSecret(key, []byte(user.PendingTwoFactorSecret))
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrCryptoUnavailable, err)
	}

	// EnableTwoFactor moves the secret into the confirmed slot, clears the
	// pending slot, and sets the enabled flag as one mutation.
	if err := e.users.EnableTwoFactor(ctx, userID, sealed); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrStoreUnavailable, err)
	}

	if err := e.rotateSecurityStamp(ctx, user); err != nil {
		return nil, err
	}
	if err := e.revokeSessions(ctx, userID); err != nil {
		return nil, err
	}

	_ = e.resetTwoFactorBudget(ctx, userID)
	e.metricInc(MetricTwoFactorConfirmSuccess)
	e.emitAudit(ctx, auditEventTwoFactorConfirmed, true, userID, "", nil, nil)

	return plaintext, nil
}

// DisableTwoFactor turns two-factor off. It requires the account password
// and a currently valid TOTP code, clears the confirmed secret, deletes
// all backup codes, rotates the security stamp, and revokes live sessions.
func (e *Engine) DisableTwoFactor(ctx context.Context, userID, accountPassword, code string) error {
	if e == nil || e.users == nil || e.totp == nil || e.passwordHash == nil {
		return ErrEngineNotReady
	}

	user, err := e.userByID(ctx, userID)
	if err != nil {
		return err
	}
	if !user.TwoFactorEnabled {
		return ErrTwoFactorNotEnabled
	}
	if user.PasswordHash == "" {
		return ErrNoPassword
	}

	match, err := e.passwordHash.Verify(accountPassword, user.PasswordHash)
	if err != nil {
		return fmt.Errorf("%w: %v", ErrCryptoUnavailable, err)
	}
	if !match {
		return ErrInvalidCredentials
	}

	secret, err := e.confirmedSecret(user)
	if err != nil {
		return err
	}

	if err := e.checkTwoFactorBudget(ctx, userID); err != nil {
		return err
	}
	if !e.totp.VerifyCode(secret, code, e.now()) {
		return e.recordTwoFactorFailure(ctx, userID)
	}

	if err := e.users.DisableTwoFactor(ctx, userID); err != nil {
		return fmt.Errorf("%w: %v", ErrStoreUnavailable, err)
	}
	if err := e.users.DeleteBackupCodes(ctx, userID); err != nil {
		return fmt.Errorf("%w: %v", ErrStoreUnavailable, err)
	}

	if err := e.rotateSecurityStamp(ctx, user); err != nil {
		return err
	}
	if err := e.revokeSessions(ctx, userID); err != nil {
		return err
	}

	_ = e.resetTwoFactorBudget(ctx, userID)
	e.metricInc(MetricTwoFactorDisabled)
	e.emitAudit(ctx, auditEventTwoFactorDisabled, true, userID, "", nil, nil)
	return nil
}

// VerifyTwoFactorLogin checks a second factor during login. TOTP is tried
// first; input shaped like a backup code falls through to single-use
// backup-code consumption. A consumed backup code never authenticates
// again.
func (e *Engine) VerifyTwoFactorLogin(ctx context.Context, userID, codeOrBackupCode string) error {
	if e == nil || e.users == nil || e.totp == nil {
		return ErrEngineNotReady
	}

	user, err := e.userByID(ctx, userID)
	if err != nil {
		return err
	}
	if statusErr := accountStatusToError(user.Status); statusErr != nil {
		return statusErr
	}
	if !user.TwoFactorEnabled {
		return ErrTwoFactorNotEnabled
	}

	if err := e.checkTwoFactorBudget(ctx, userID); err != nil {
		return err
	}

	secret, err := e.confirmedSecret(user)
	if err != nil {
		return err
	}
	if e.totp.VerifyCode(secret, codeOrBackupCode, e.now()) {
		_ = e.resetTwoFactorBudget(ctx, userID)
		e.metricInc(MetricTwoFactorLoginSuccess)
		e.emitAudit(ctx, auditEventTwoFactorLogin, true, userID, "", nil, nil)
		return nil
	}

	if internal.LooksLikeBackupCode(codeOrBackupCode, e.config.TwoFactor.BackupCodeLength) {
		canonical := internal.CanonicalizeBackupCode(codeOrBackupCode)
		hash := internal.BackupCodeHash(userID, canonical)

		consumed, err := e.users.ConsumeBackupCode(ctx, userID, hash)
		if err != nil {
			return fmt.Errorf("%w: %v", ErrStoreUnavailable, err)
		}
		if consumed {
			_ = e.resetTwoFactorBudget(ctx, userID)
			e.metricInc(MetricBackupCodeUsed)
			e.emitAudit(ctx, auditEventBackupCodeUsed, true, userID, "", nil, nil)
			return nil
		}
		e.metricInc(MetricBackupCodeFailed)
	}

	e.metricInc(MetricTwoFactorLoginFailure)
	e.emitAudit(ctx, auditEventTwoFactorLogin, false, userID, "", ErrInvalidCode, nil)
	return e.recordTwoFactorFailure(ctx, userID)
}

func (e *Engine) newBackupCodes(userID string) ([]string, []BackupCodeRecord, error) {
	count := e.config.TwoFactor.BackupCodeCount
	length := e.config.TwoFactor.BackupCodeLength

	plaintext := make([]string, 0, count)
	records := make([]BackupCodeRecord, 0, count)
	for i := 0; i < count; i++ {
		code, err := internal.NewBackupCode(length)
		if err != nil {
			return nil, nil, err
		}
		plaintext = append(plaintext, internal.FormatBackupCode(code))
		records = append(records, BackupCodeRecord{
			Hash: internal.BackupCodeHash(userID, code),
		})
	}
	return plaintext, records, nil
}

func (e *Engine) confirmedSecret(user UserRecord) (string, error) {
	if user.TwoFactorSecret == "" {
		return "", ErrTwoFactorNotEnabled
	}
	key, err := e.encryptionKey()
	if err != nil {
		return "", err
	}
	secret, err := openSecret(key, user.TwoFactorSecret)
	if err != nil {
		return "", fmt.Errorf("%w: %v", ErrCryptoUnavailable, err)
	}
	return string(secret), nil
}

func (e *Engine) checkTwoFactorBudget(ctx context.Context, userID string) error {
	err := e.twoFactorLimiter.Check(ctx, userID)
	if err == nil {
		return nil
	}
	return e.mapLimiterError(ctx, e.twoFactorLimiter, userID, err)
}

// recordTwoFactorFailure counts a failed attempt and returns the error the
// caller should surface: ErrInvalidCode normally, a rate-limit error once
// the budget is gone.
func (e *Engine) recordTwoFactorFailure(ctx context.Context, userID string) error {
	err := e.twoFactorLimiter.RecordFailure(ctx, userID)
	if err == nil {
		return ErrInvalidCode
	}
	if mapped := e.mapLimiterError(ctx, e.twoFactorLimiter, userID, err); mapped != nil {
		return mapped
	}
	return ErrInvalidCode
}

func (e *Engine) resetTwoFactorBudget(ctx context.Context, userID string) error {
	return e.twoFactorLimiter.Reset(ctx, userID)
}

func (e *Engine) mapLimiterError(ctx context.Context, limiter *rate.Limiter, id string, err error) error {
	if errors.Is(err, rate.ErrRateLimited) {
		e.metricInc(MetricRateLimitHit)
		return &RateLimitError{RetryAfter: limiter.RetryAfter(ctx, id)}
	}
	return fmt.Errorf("%w: %v", ErrStoreUnavailable, err)
}
