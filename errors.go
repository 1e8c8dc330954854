package authcore

import (
	"errors"
	"fmt"
	"strings"
	"time"
)

var (
	// ErrEngineNotReady is returned when an Engine method is called before
	// Build completed or with a nil receiver.
	ErrEngineNotReady = errors.New("engine not ready")
	// ErrUnauthenticated is returned when an operation requires an
	// authenticated principal and none was supplied.
	ErrUnauthenticated = errors.New("unauthenticated")
	// ErrPermissionDenied is returned by the Require* permission helpers.
	ErrPermissionDenied = errors.New("permission denied")
	// ErrUserNotFound is returned when the referenced account does not exist.
	ErrUserNotFound = errors.New("user not found")
	// ErrAccountDisabled is returned for operations against a disabled account.
	ErrAccountDisabled = errors.New("account disabled")
	// ErrAccountLocked is returned for operations against a locked account.
	ErrAccountLocked = errors.New("account locked")
	// ErrInvalidCredentials is returned when a password does not match the
	// stored hash.
	ErrInvalidCredentials = errors.New("invalid credentials")
	// ErrInvalidCode is returned when a TOTP code or backup code fails
	// verification.
	ErrInvalidCode = errors.New("invalid verification code")
	// ErrTwoFactorAlreadyEnabled is returned by SetupTwoFactor when the
	// account already has two-factor enabled.
	ErrTwoFactorAlreadyEnabled = errors.New("two-factor already enabled")
	// ErrTwoFactorNotEnabled is returned by operations that require an
	// enabled second factor.
	ErrTwoFactorNotEnabled = errors.New("two-factor not enabled")
	// ErrNoPendingSecret is returned by ConfirmTwoFactor when no enrollment
	// is in progress.
	ErrNoPendingSecret = errors.New("no pending two-factor secret")
	// ErrNoPassword is returned when a password-gated operation targets a
	// federated account without a local password hash.
	ErrNoPassword = errors.New("account has no password set")
	// ErrTokenNotFound is returned when a security token does not match any
	// live record. Consumed and superseded tokens surface as not found.
	ErrTokenNotFound = errors.New("security token not found")
	// ErrTokenExpired is returned when a security token matched but its
	// expiry has passed.
	ErrTokenExpired = errors.New("security token expired")
	// ErrWeakPassword wraps password policy violations. Use
	// [PolicyViolations] to recover the violated rules.
	ErrWeakPassword = errors.New("password policy violation")
	// ErrRateLimited is returned when an attempt budget is exhausted. Use
	// [RetryAfter] to recover the cooldown hint.
	ErrRateLimited = errors.New("rate limited")
	// ErrConfigNotFound is returned when a configuration key does not exist
	// and no default was provided.
	ErrConfigNotFound = errors.New("config key not found")
	// ErrConfigType is returned when a stored configuration value cannot be
	// parsed as its declared type.
	ErrConfigType = errors.New("config value type mismatch")
	// ErrStoreUnavailable is returned when a persistence port fails for a
	// reason other than a domain condition.
	ErrStoreUnavailable = errors.New("persistence backend unavailable")
	// ErrCryptoUnavailable is returned when secret encryption or decryption
	// fails, including key provider failures.
	ErrCryptoUnavailable = errors.New("crypto backend unavailable")
	// ErrNotifierUnavailable is returned when token delivery fails after a
	// token was issued.
	ErrNotifierUnavailable = errors.New("notifier unavailable")
	// ErrSessionInvalidationFailed is returned when a sensitive mutation
	// succeeded but live sessions could not be revoked.
	ErrSessionInvalidationFailed = errors.New("session invalidation failed")
	// ErrStampNotRotated is returned when a sensitive mutation completed but
	// the stored security stamp did not change.
	ErrStampNotRotated = errors.New("security stamp not rotated")
)

// RateLimitError carries the cooldown hint for a rate-limited operation.
// It matches [ErrRateLimited] under errors.Is.
type RateLimitError struct {
	RetryAfter time.Duration
}

func (e *RateLimitError) Error() string {
	return fmt.Sprintf("rate limited, retry after %s", e.RetryAfter)
}

func (e *RateLimitError) Unwrap() error { return ErrRateLimited }

// RetryAfter extracts the cooldown hint from a rate-limit error. Returns
// zero when err carries no hint.
func RetryAfter(err error) time.Duration {
	var rl *RateLimitError
	if errors.As(err, &rl) {
		return rl.RetryAfter
	}
	return 0
}

// PolicyError reports the password rules a candidate password violated.
// It matches [ErrWeakPassword] under errors.Is.
type PolicyError struct {
	Violations []string
}

func (e *PolicyError) Error() string {
	return "password policy violation: " + strings.Join(e.Violations, "; ")
}

func (e *PolicyError) Unwrap() error { return ErrWeakPassword }

// PolicyViolations extracts the violated rule descriptions from a password
// policy error. Returns nil for other errors.
func PolicyViolations(err error) []string {
	var pe *PolicyError
	if errors.As(err, &pe) {
		return pe.Violations
	}
	return nil
}
