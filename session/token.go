package session

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/golang-jwt/jwt/v5"
)

// ErrTokenInvalid is returned for tokens that fail signature, shape, or
// expiry checks.
var ErrTokenInvalid = errors.New("access token invalid")

// ErrStampStale is returned when a token's embedded security stamp no
// longer matches the stored one. The session it came from predates a
// sensitive account mutation and must not be honored.
var ErrStampStale = errors.New("security stamp stale")

// AccessClaims are the JWT claims carried by an access token. The security
// stamp rides along so staleness is detectable without loading the session.
type AccessClaims struct {
	SID   string `json:"sid"`
	Role  string `json:"role,omitempty"`
	Stamp string `json:"stamp"`
	jwt.RegisteredClaims
}

// StampSource reads the current security stamp of a user. authcore hosts
// typically back this with their UserStore.
type StampSource interface {
	SecurityStamp(ctx context.Context, userID string) (string, error)
}

// TokenConfig tunes the JWT token manager.
type TokenConfig struct {
	// Secret is the HS256 signing key.
	Secret []byte
	// TTL is the access token lifetime.
	TTL time.Duration
	// Issuer and Audience are verified on parse when non-empty.
	Issuer   string
	Audience string
	// Leeway tolerates small clock drift between issuer and verifier.
	Leeway time.Duration
}

// TokenManager issues and verifies HS256 access tokens bound to a session
// and its security stamp.
type TokenManager struct {
	config TokenConfig
	now    func() time.Time
}

// NewTokenManager validates the configuration and returns a manager.
func NewTokenManager(cfg TokenConfig) (*TokenManager, error) {
	if len(cfg.Secret) < 32 {
		return nil, errors.New("signing secret must be at least 32 bytes")
	}
	if cfg.TTL <= 0 {
		return nil, errors.New("token ttl must be positive")
	}
	if cfg.Leeway < 0 || cfg.Leeway > 2*time.Minute {
		return nil, errors.New("leeway must be 0..2m")
	}
	return &TokenManager{config: cfg, now: time.Now}, nil
}

// Issue signs an access token for the session.
func (m *TokenManager) Issue(sess Session) (string, error) {
	now := m.now()
	claims := AccessClaims{
		SID:   sess.SessionID,
		Role:  sess.Role,
		Stamp: sess.SecurityStamp,
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   sess.UserID,
			Issuer:    m.config.Issuer,
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(m.config.TTL)),
		},
	}
	if m.config.Audience != "" {
		claims.Audience = jwt.ClaimStrings{m.config.Audience}
	}

	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	signed, err := token.SignedString(m.config.Secret)
	if err != nil {
		return "", fmt.Errorf("sign access token: %w", err)
	}
	return signed, nil
}

// Parse verifies the signature and registered claims and returns the access
// claims. It does not check stamp freshness; see Validate.
func (m *TokenManager) Parse(tokenString string) (*AccessClaims, error) {
	opts := []jwt.ParserOption{
		jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}),
		jwt.WithLeeway(m.config.Leeway),
		jwt.WithExpirationRequired(),
		jwt.WithTimeFunc(m.now),
	}
	if m.config.Issuer != "" {
		opts = append(opts, jwt.WithIssuer(m.config.Issuer))
	}
	if m.config.Audience != "" {
		opts = append(opts, jwt.WithAudience(m.config.Audience))
	}

	var claims AccessClaims
	token, err := jwt.ParseWithClaims(tokenString, &claims, func(*jwt.Token) (any, error) {
		return m.config.Secret, nil
	}, opts...)
	if err != nil || !token.Valid {
		return nil, ErrTokenInvalid
	}
	if claims.Subject == "" || claims.SID == "" {
		return nil, ErrTokenInvalid
	}
	return &claims, nil
}

// Validate parses the token and checks its embedded security stamp against
// the stored one. The read goes to the source of truth, not a cache, so a
// stamp rotation is observed immediately.
func (m *TokenManager) Validate(ctx context.Context, tokenString string, stamps StampSource) (*AccessClaims, error) {
	claims, err := m.Parse(tokenString)
	if err != nil {
		return nil, err
	}

	current, err := stamps.SecurityStamp(ctx, claims.Subject)
	if err != nil {
		return nil, err
	}
	if current == "" || claims.Stamp != current {
		return nil, ErrStampStale
	}
	return claims, nil
}
