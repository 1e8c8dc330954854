package authcore

import (
	"errors"
	"math/rand"
	"time"

	internalaudit "github.com/hexfold/authcore/internal/audit"
	"github.com/hexfold/authcore/internal/cache"
	internalmetrics "github.com/hexfold/authcore/internal/metrics"
	internalrate "github.com/hexfold/authcore/internal/rate"
	"github.com/hexfold/authcore/password"
	"github.com/hexfold/authcore/permission"
	"github.com/redis/go-redis/v9"
)

// Builder assembles an [Engine]. Construction is allocation-only; no I/O
// happens until the first Engine method call.
type Builder struct {
	config Config

	users    UserStore
	tokens   TokenStore
	configs  ConfigStore
	notifier Notifier
	sessions SessionRevoker
	keys     KeyProvider
	redis    redis.UniversalClient

	roles     map[string]RoleSpec
	auditSink AuditSink

	clock   func() time.Time
	randInt func(n int) int

	built bool
}

// RoleSpec declares one role for [Builder.WithRoles].
type RoleSpec struct {
	Level       int
	Permissions []string
}

// New returns a Builder seeded with the default configuration.
func New() *Builder {
	return &Builder{
		config: defaultConfig(),
	}
}

// WithConfig replaces the configuration. Zero-valued sections are filled
// from defaults at Build.
func (b *Builder) WithConfig(cfg Config) *Builder {
	b.config = cfg
	return b
}

// WithUsers sets the account persistence port. Required.
func (b *Builder) WithUsers(store UserStore) *Builder {
	b.users = store
	return b
}

// WithTokens sets the security-token persistence port. Required for token
// flows.
func (b *Builder) WithTokens(store TokenStore) *Builder {
	b.tokens = store
	return b
}

// WithConfigs sets the configuration persistence port. Required for the
// config cache and feature flags.
func (b *Builder) WithConfigs(store ConfigStore) *Builder {
	b.configs = store
	return b
}

// WithNotifier sets the out-of-band token delivery port.
func (b *Builder) WithNotifier(n Notifier) *Builder {
	b.notifier = n
	return b
}

// WithSessions sets the session revocation port. Optional: without it,
// stamp validation in the session layer is the only invalidation path.
func (b *Builder) WithSessions(s SessionRevoker) *Builder {
	b.sessions = s
	return b
}

// WithKeyProvider sets the encryption key source for TOTP secrets at rest.
// Required for two-factor flows.
func (b *Builder) WithKeyProvider(kp KeyProvider) *Builder {
	b.keys = kp
	return b
}

// WithRedis provides the Redis client backing the attempt limiters.
// Optional: without it, limiting is disabled.
func (b *Builder) WithRedis(client redis.UniversalClient) *Builder {
	b.redis = client
	return b
}

// WithRoles declares the role hierarchy: name to level and permission
// strings.
func (b *Builder) WithRoles(roles map[string]RoleSpec) *Builder {
	b.roles = roles
	return b
}

// WithAuditSink sets the destination for audit events.
func (b *Builder) WithAuditSink(sink AuditSink) *Builder {
	b.auditSink = sink
	return b
}

// WithClock overrides the engine clock. Intended for tests.
func (b *Builder) WithClock(clock func() time.Time) *Builder {
	b.clock = clock
	return b
}

// WithRand overrides the uniform integer source used for percentage
// rollout draws. Intended for tests.
func (b *Builder) WithRand(randInt func(n int) int) *Builder {
	b.randInt = randInt
	return b
}

// Build validates the configuration, wires the internals, and returns a
// ready Engine. A Builder builds at most once.
func (b *Builder) Build() (*Engine, error) {
	if b == nil {
		return nil, ErrEngineNotReady
	}
	if b.built {
		return nil, errors.New("builder already used")
	}
	if b.users == nil {
		return nil, errors.New("user store is required")
	}

	cfg := mergeDefaults(b.config)
	if err := validateConfig(cfg); err != nil {
		return nil, err
	}

	hasher, err := password.NewArgon2(cfg.Password.Hash)
	if err != nil {
		return nil, err
	}

	registry := permission.NewRegistry()
	for name, spec := range b.roles {
		if err := registry.RegisterRole(name, spec.Level, spec.Permissions); err != nil {
			return nil, err
		}
	}
	registry.Freeze()

	clock := b.clock
	if clock == nil {
		clock = time.Now
	}
	randInt := b.randInt
	if randInt == nil {
		randInt = rand.Intn
	}

	e := &Engine{
		config:       cfg,
		registry:     registry,
		users:        b.users,
		tokens:       b.tokens,
		configs:      b.configs,
		notifier:     b.notifier,
		sessions:     b.sessions,
		keys:         b.keys,
		passwordHash: hasher,
		totp:         newTOTPManager(cfg.TwoFactor),
		configCache:  cache.New(cfg.Cache.TTL, clock),
		metrics:      internalmetrics.New(internalmetrics.Config{Enabled: cfg.Metrics.Enabled}),
		audit: internalaudit.NewDispatcher(internalaudit.Config{
			Enabled:    cfg.Audit.Enabled,
			BufferSize: cfg.Audit.BufferSize,
			DropIfFull: cfg.Audit.DropIfFull,
		}, b.auditSink),
		clock:   clock,
		randInt: randInt,
		sleep:   time.Sleep,
	}

	if b.redis != nil {
		if cfg.TwoFactor.MaxAttempts > 0 {
			e.twoFactorLimiter = internalrate.New(b.redis, "a2f", internalrate.Config{
				MaxAttempts: cfg.TwoFactor.MaxAttempts,
				Cooldown:    cfg.TwoFactor.Cooldown,
			})
		}
		if cfg.Tokens.MaxAttempts > 0 {
			e.tokenLimiter = internalrate.New(b.redis, "atk", internalrate.Config{
				MaxAttempts: cfg.Tokens.MaxAttempts,
				Cooldown:    cfg.Tokens.Cooldown,
			})
		}
	}

	b.built = true
	return e, nil
}
