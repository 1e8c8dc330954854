package authcore

import (
	"encoding/hex"
	"errors"
	"fmt"
	"os"
	"time"

	"github.com/caarlos0/env/v11"
	"github.com/joho/godotenv"
)

// EnvConfig maps the engine configuration onto environment variables for
// hosts that configure through the environment. Unset variables keep the
// engine defaults.
type EnvConfig struct {
	TwoFactorIssuer      string        `env:"AUTHCORE_2FA_ISSUER"`
	TwoFactorDigits      int           `env:"AUTHCORE_2FA_DIGITS" envDefault:"6"`
	TwoFactorPeriod      time.Duration `env:"AUTHCORE_2FA_PERIOD" envDefault:"30s"`
	BackupCodeCount      int           `env:"AUTHCORE_2FA_BACKUP_CODES" envDefault:"10"`
	BackupCodeLength     int           `env:"AUTHCORE_2FA_BACKUP_CODE_LENGTH" envDefault:"12"`
	TwoFactorMaxAttempts int           `env:"AUTHCORE_2FA_MAX_ATTEMPTS" envDefault:"5"`
	TwoFactorCooldown    time.Duration `env:"AUTHCORE_2FA_COOLDOWN" envDefault:"5m"`

	PasswordResetTTL     time.Duration `env:"AUTHCORE_RESET_TTL" envDefault:"30m"`
	EmailVerificationTTL time.Duration `env:"AUTHCORE_VERIFY_TTL" envDefault:"24h"`
	TokenMaxAttempts     int           `env:"AUTHCORE_TOKEN_MAX_ATTEMPTS" envDefault:"10"`
	TokenCooldown        time.Duration `env:"AUTHCORE_TOKEN_COOLDOWN" envDefault:"15m"`

	PasswordMinLength int `env:"AUTHCORE_PASSWORD_MIN_LENGTH" envDefault:"10"`

	CacheTTL time.Duration `env:"AUTHCORE_CONFIG_CACHE_TTL" envDefault:"5m"`

	AuditEnabled   bool `env:"AUTHCORE_AUDIT_ENABLED" envDefault:"true"`
	MetricsEnabled bool `env:"AUTHCORE_METRICS_ENABLED" envDefault:"true"`
}

// LoadEnvConfig reads an [EnvConfig] from the process environment, loading
// a .env file first when one exists.
func LoadEnvConfig() (Config, error) {
	if err := godotenv.Load(); err != nil {
		var pathErr *os.PathError
		if !errors.As(err, &pathErr) {
			return Config{}, fmt.Errorf("load .env file: %w", err)
		}
	}

	var ec EnvConfig
	if err := env.Parse(&ec); err != nil {
		return Config{}, fmt.Errorf("parse env config: %w", err)
	}
	return ec.Config(), nil
}

// Config converts the environment mapping into the engine [Config].
func (ec EnvConfig) Config() Config {
	cfg := defaultConfig()
	cfg.TwoFactor.Issuer = ec.TwoFactorIssuer
	cfg.TwoFactor.Digits = ec.TwoFactorDigits
	cfg.TwoFactor.Period = ec.TwoFactorPeriod
	cfg.TwoFactor.BackupCodeCount = ec.BackupCodeCount
	cfg.TwoFactor.BackupCodeLength = ec.BackupCodeLength
	cfg.TwoFactor.MaxAttempts = ec.TwoFactorMaxAttempts
	cfg.TwoFactor.Cooldown = ec.TwoFactorCooldown
	cfg.Tokens.PasswordResetTTL = ec.PasswordResetTTL
	cfg.Tokens.EmailVerificationTTL = ec.EmailVerificationTTL
	cfg.Tokens.MaxAttempts = ec.TokenMaxAttempts
	cfg.Tokens.Cooldown = ec.TokenCooldown
	cfg.Password.Policy.MinLength = ec.PasswordMinLength
	cfg.Cache.TTL = ec.CacheTTL
	cfg.Audit.Enabled = ec.AuditEnabled
	cfg.Metrics.Enabled = ec.MetricsEnabled
	return cfg
}

// EnvKeyProvider reads the 32-byte secret encryption key from an
// environment variable as 64 hex characters. The key is read once per call
// so rotation does not require a restart.
type EnvKeyProvider struct {
	// Var is the environment variable name. Empty means
	// AUTHCORE_ENCRYPTION_KEY.
	Var string
}

const defaultKeyVar = "AUTHCORE_ENCRYPTION_KEY"

// EncryptionKey implements [KeyProvider].
func (p EnvKeyProvider) EncryptionKey() ([]byte, error) {
	name := p.Var
	if name == "" {
		name = defaultKeyVar
	}

	raw := os.Getenv(name)
	if raw == "" {
		return nil, fmt.Errorf("environment variable %s is not set", name)
	}
	key, err := hex.DecodeString(raw)
	if err != nil {
		return nil, fmt.Errorf("environment variable %s is not valid hex: %v", name, err)
	}
	if len(key) != 32 {
		return nil, fmt.Errorf("environment variable %s must decode to 32 bytes, got %d", name, len(key))
	}
	return key, nil
}
