package authcore

import (
	"context"
	"io"
	"time"

	internalaudit "github.com/hexfold/authcore/internal/audit"
	internalmetrics "github.com/hexfold/authcore/internal/metrics"
)

// AccountStatus represents the lifecycle state of a user account.
type AccountStatus uint8

const (
	// AccountActive is the normal operating state.
	AccountActive AccountStatus = iota
	// AccountPendingVerification marks an account whose email address has
	// not been verified yet.
	AccountPendingVerification
	// AccountDisabled marks an administratively disabled account.
	AccountDisabled
	// AccountLocked marks an account locked by security policy.
	AccountLocked
	// AccountDeleted marks a soft-deleted account.
	AccountDeleted
)

// Principal is the authenticated caller as resolved by the session layer.
// It is rebuilt per request from session claims and never persisted.
type Principal struct {
	UserID        string
	RoleName      string
	RoleLevel     int
	Permissions   map[string]struct{}
	SecurityStamp string
}

// Authenticated reports whether the principal identifies a user.
func (p *Principal) Authenticated() bool {
	return p != nil && p.UserID != ""
}

// UserRecord is the security-relevant slice of an account as stored by the
// host application. PasswordHash is empty for federated accounts.
// TwoFactorSecret holds the encrypted confirmed secret in the
// nonce:tag:ciphertext hex layout; PendingTwoFactorSecret holds the base32
// secret of an enrollment in progress.
type UserRecord struct {
	UserID                 string
	Identifier             string
	PasswordHash           string
	SecurityStamp          string
	Status                 AccountStatus
	Role                   string
	EmailVerified          bool
	TwoFactorEnabled       bool
	TwoFactorSecret        string
	PendingTwoFactorSecret string
}

// BackupCodeRecord stores the SHA-256 hash of a single backup code and its
// consumption flag. The plaintext is never persisted.
type BackupCodeRecord struct {
	Hash [32]byte
	Used bool
}

// TokenPurpose discriminates single-use security tokens.
type TokenPurpose string

const (
	// PurposePasswordReset identifies password-reset tokens.
	PurposePasswordReset TokenPurpose = "password-reset"
	// PurposeEmailVerification identifies email-verification tokens.
	PurposeEmailVerification TokenPurpose = "email-verification"
)

// TokenRecord is a persisted single-use security token. Only the SHA-256
// hash of the plaintext is stored; expiry is absolute.
type TokenRecord struct {
	ID        string
	UserID    string
	Purpose   TokenPurpose
	Hash      [32]byte
	ExpiresAt time.Time
}

// ConfigValueType declares how a configuration value is parsed.
type ConfigValueType string

const (
	// ConfigString values are returned verbatim.
	ConfigString ConfigValueType = "string"
	// ConfigNumber values parse as float64 (integral values stay exact
	// within float64 range).
	ConfigNumber ConfigValueType = "number"
	// ConfigBoolean values parse with strconv.ParseBool.
	ConfigBoolean ConfigValueType = "boolean"
	// ConfigJSON values decode into map[string]any or []any.
	ConfigJSON ConfigValueType = "json"
	// ConfigDuration values parse with time.ParseDuration.
	ConfigDuration ConfigValueType = "duration"
)

// ConfigEntry is a typed configuration record.
type ConfigEntry struct {
	Key      string
	RawValue string
	Type     ConfigValueType
	Category string
	Public   bool
}

// ConfigHistoryRecord is an append-only change record written on every
// ConfigSet. Records are never mutated or deleted.
type ConfigHistoryRecord struct {
	ID        string
	Key       string
	OldValue  string
	NewValue  string
	Actor     string
	Reason    string
	ChangedAt time.Time
}

// FeatureFlag is a read-mostly rollout switch. Percentage is 0..100.
type FeatureFlag struct {
	Name       string
	Enabled    bool
	Percentage int
}

// UserStore is the persistence port for security-relevant account state.
// Implementations must return [ErrUserNotFound] for unknown accounts and
// treat each method as a single atomic mutation.
//
// ConsumeBackupCode must be a compare-and-swap: it flips exactly one
// matching unused code to used and reports whether it did. Two concurrent
// calls with the same hash must not both succeed.
type UserStore interface {
	UserByID(ctx context.Context, userID string) (UserRecord, error)
	UserByIdentifier(ctx context.Context, identifier string) (UserRecord, error)
	UpdatePasswordHash(ctx context.Context, userID, newHash string) error
	UpdateSecurityStamp(ctx context.Context, userID, stamp string) error
	MarkEmailVerified(ctx context.Context, userID string) error

	SavePendingTwoFactorSecret(ctx context.Context, userID, secretBase32 string) error
	EnableTwoFactor(ctx context.Context, userID, encryptedSecret string) error
	DisableTwoFactor(ctx context.Context, userID string) error

	BackupCodes(ctx context.Context, userID string) ([]BackupCodeRecord, error)
	ReplaceBackupCodes(ctx context.Context, userID string, codes []BackupCodeRecord) error
	DeleteBackupCodes(ctx context.Context, userID string) error
	ConsumeBackupCode(ctx context.Context, userID string, hash [32]byte) (bool, error)
}

// TokenStore is the persistence port for single-use security tokens.
// SaveToken must delete prior tokens for the same user and purpose in the
// same unit of work. ConsumeToken must run lookup, effect, and deletion as
// one transaction: the effect is applied at most once per token, and
// concurrent consumers of the same hash see at most one success.
//
// TokenByHash and ConsumeToken return [ErrTokenNotFound] when no record
// matches the hash and purpose.
type TokenStore interface {
	SaveToken(ctx context.Context, record TokenRecord) error
	TokenByHash(ctx context.Context, hash [32]byte, purpose TokenPurpose) (TokenRecord, error)
	DeleteTokensFor(ctx context.Context, userID string, purpose TokenPurpose) error
	ConsumeToken(ctx context.Context, hash [32]byte, purpose TokenPurpose, effect func(ctx context.Context, record TokenRecord) error) error
}

// ConfigStore is the persistence port for configuration and feature flags.
// ConfigByKey and FeatureFlagByName return [ErrConfigNotFound] for unknown
// keys. UpdateConfig must write the new value and append the history record
// in one unit of work.
type ConfigStore interface {
	ConfigByKey(ctx context.Context, key string) (ConfigEntry, error)
	ConfigsByKeys(ctx context.Context, keys []string) ([]ConfigEntry, error)
	ConfigsByCategory(ctx context.Context, category string) ([]ConfigEntry, error)
	PublicConfigs(ctx context.Context) ([]ConfigEntry, error)
	UpdateConfig(ctx context.Context, key, newValue string, history ConfigHistoryRecord) error
	FeatureFlagByName(ctx context.Context, name string) (FeatureFlag, error)
}

// Notifier delivers a freshly issued token out of band. The engine never
// logs or persists the plaintext; the notifier is its only reader.
type Notifier interface {
	SendToken(ctx context.Context, user UserRecord, purpose TokenPurpose, token string, expiresAt time.Time) error
}

// SessionRevoker invalidates every live session of a user. Sensitive
// mutations call it after rotating the security stamp; stamp validation in
// the session layer is the backstop when revocation is eventually
// consistent.
type SessionRevoker interface {
	RevokeAll(ctx context.Context, userID string) error
}

// KeyProvider supplies the 32-byte key used to encrypt confirmed TOTP
// secrets at rest. See [EnvKeyProvider] for the environment-backed default.
type KeyProvider interface {
	EncryptionKey() ([]byte, error)
}

// TwoFactorSetup is returned by [Engine.SetupTwoFactor]. QRPNG is the
// provisioning URI rendered as a PNG image.
type TwoFactorSetup struct {
	SecretBase32    string
	ProvisioningURI string
	QRPNG           []byte
}

// TokenValidity is returned by [Engine.PeekToken].
type TokenValidity struct {
	UserID    string
	Purpose   TokenPurpose
	ExpiresAt time.Time
	Remaining time.Duration
}

// AuditEvent is a structured audit record emitted by the engine.
type AuditEvent = internalaudit.Event

// AuditSink receives [AuditEvent] values from the engine's audit dispatcher.
type AuditSink = internalaudit.Sink

// NoOpSink is an [AuditSink] that silently discards all events.
type NoOpSink = internalaudit.NoOpSink

// ChannelSink is a buffered channel-based [AuditSink].
type ChannelSink = internalaudit.ChannelSink

// JSONWriterSink is an [AuditSink] that writes JSON-encoded events to an
// [io.Writer], one object per line.
type JSONWriterSink = internalaudit.JSONWriterSink

// NewChannelSink creates a [ChannelSink] with the given buffer capacity.
func NewChannelSink(buffer int) *ChannelSink {
	return internalaudit.NewChannelSink(buffer)
}

// NewJSONWriterSink creates a [JSONWriterSink] that writes to w.
func NewJSONWriterSink(w io.Writer) *JSONWriterSink {
	return internalaudit.NewJSONWriterSink(w)
}

// MetricID identifies a counter in the in-process metrics system.
type MetricID = internalmetrics.MetricID

// Metrics holds atomic counters for engine operations.
type Metrics = internalmetrics.Metrics

// MetricsSnapshot is a point-in-time copy of all counters.
type MetricsSnapshot = internalmetrics.Snapshot
