package authcore

import (
	"errors"
	"time"

	"github.com/hexfold/authcore/password"
)

// Config is the engine configuration. Zero-valued sections are filled from
// defaults at Build; see defaultConfig for the baseline.
type Config struct {
	TwoFactor TwoFactorConfig
	Tokens    TokenConfig
	Password  PasswordConfig
	Cache     CacheConfig
	Audit     AuditConfig
	Metrics   MetricsConfig
}

// TwoFactorConfig tunes TOTP enrollment and verification.
type TwoFactorConfig struct {
	// Issuer is the label shown by authenticator apps. Required when
	// two-factor flows are used.
	Issuer string
	// Digits and Period follow RFC 6238; Skew is the tolerance in time
	// steps on either side of now.
	Digits int
	Period time.Duration
	Skew   uint
	// QRSize is the pixel width and height of the provisioning QR image.
	QRSize int

	BackupCodeCount  int
	BackupCodeLength int

	// MaxAttempts failed verifications per user within Cooldown trip the
	// rate limiter. Zero disables limiting.
	MaxAttempts int
	Cooldown    time.Duration
}

// TokenConfig tunes single-use security tokens.
type TokenConfig struct {
	PasswordResetTTL     time.Duration
	EmailVerificationTTL time.Duration

	// MaxAttempts token issuance requests per identity within Cooldown
	// trip the rate limiter. Zero disables limiting.
	MaxAttempts int
	Cooldown    time.Duration
}

// PasswordConfig combines the Argon2id parameters and the structural
// policy enforced on password changes and resets.
type PasswordConfig struct {
	Hash   password.Config
	Policy password.Policy
}

// CacheConfig tunes the configuration cache.
type CacheConfig struct {
	TTL time.Duration
}

// AuditConfig controls the audit dispatcher.
type AuditConfig struct {
	Enabled    bool
	BufferSize int
	// DropIfFull drops events when the buffer is full instead of emitting
	// inline on the caller's goroutine.
	DropIfFull bool
}

// MetricsConfig controls the in-process counters.
type MetricsConfig struct {
	Enabled bool
}

func defaultConfig() Config {
	return Config{
		TwoFactor: TwoFactorConfig{
			Digits:           6,
			Period:           30 * time.Second,
			Skew:             1,
			QRSize:           256,
			BackupCodeCount:  10,
			BackupCodeLength: 12,
			MaxAttempts:      5,
			Cooldown:         5 * time.Minute,
		},
		Tokens: TokenConfig{
			PasswordResetTTL:     30 * time.Minute,
			EmailVerificationTTL: 24 * time.Hour,
			MaxAttempts:          10,
			Cooldown:             15 * time.Minute,
		},
		Password: PasswordConfig{
			Hash: password.Config{
				Memory:      64 * 1024,
				Time:        2,
				Parallelism: 2,
				SaltLength:  16,
				KeyLength:   32,
			},
			Policy: password.DefaultPolicy(),
		},
		Cache: CacheConfig{
			TTL: 5 * time.Minute,
		},
		Audit: AuditConfig{
			Enabled:    true,
			BufferSize: 256,
			DropIfFull: true,
		},
		Metrics: MetricsConfig{
			Enabled: true,
		},
	}
}

func mergeDefaults(cfg Config) Config {
	def := defaultConfig()

	if cfg.TwoFactor.Digits == 0 {
		cfg.TwoFactor.Digits = def.TwoFactor.Digits
	}
	if cfg.TwoFactor.Period == 0 {
		cfg.TwoFactor.Period = def.TwoFactor.Period
	}
	if cfg.TwoFactor.Skew == 0 {
		cfg.TwoFactor.Skew = def.TwoFactor.Skew
	}
	if cfg.TwoFactor.QRSize == 0 {
		cfg.TwoFactor.QRSize = def.TwoFactor.QRSize
	}
	if cfg.TwoFactor.BackupCodeCount == 0 {
		cfg.TwoFactor.BackupCodeCount = def.TwoFactor.BackupCodeCount
	}
	if cfg.TwoFactor.BackupCodeLength == 0 {
		cfg.TwoFactor.BackupCodeLength = def.TwoFactor.BackupCodeLength
	}
	if cfg.Tokens.PasswordResetTTL == 0 {
		cfg.Tokens.PasswordResetTTL = def.Tokens.PasswordResetTTL
	}
	if cfg.Tokens.EmailVerificationTTL == 0 {
		cfg.Tokens.EmailVerificationTTL = def.Tokens.EmailVerificationTTL
	}
	if cfg.Password.Hash == (password.Config{}) {
		cfg.Password.Hash = def.Password.Hash
	}
	if cfg.Password.Policy == (password.Policy{}) {
		cfg.Password.Policy = def.Password.Policy
	}
	if cfg.Cache.TTL == 0 {
		cfg.Cache.TTL = def.Cache.TTL
	}
	if cfg.Audit.BufferSize == 0 {
		cfg.Audit.BufferSize = def.Audit.BufferSize
	}

	return cfg
}

func validateConfig(cfg Config) error {
	if cfg.TwoFactor.Digits < 6 || cfg.TwoFactor.Digits > 8 {
		return errors.New("two-factor digits must be 6..8")
	}
	if cfg.TwoFactor.Period < time.Second {
		return errors.New("two-factor period must be at least one second")
	}
	if cfg.TwoFactor.BackupCodeCount < 1 {
		return errors.New("backup code count must be positive")
	}
	if cfg.TwoFactor.BackupCodeLength < 8 || cfg.TwoFactor.BackupCodeLength > 32 {
		return errors.New("backup code length must be 8..32")
	}
	if cfg.Tokens.PasswordResetTTL <= 0 {
		return errors.New("password reset TTL must be positive")
	}
	if cfg.Tokens.EmailVerificationTTL <= 0 {
		return errors.New("email verification TTL must be positive")
	}
	if cfg.Cache.TTL <= 0 {
		return errors.New("config cache TTL must be positive")
	}
	return nil
}
