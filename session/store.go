package session

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
)

// ErrSessionNotFound is returned for unknown or expired session IDs.
var ErrSessionNotFound = errors.New("session not found")

// ErrRedisUnavailable wraps transport failures talking to Redis.
var ErrRedisUnavailable = errors.New("session redis unavailable")

// Session is the server-side record behind an issued access token.
type Session struct {
	SessionID     string    `json:"sid"`
	UserID        string    `json:"uid"`
	Role          string    `json:"role"`
	SecurityStamp string    `json:"stamp"`
	CreatedAt     time.Time `json:"created_at"`
	ExpiresAt     time.Time `json:"expires_at"`
}

// revokeAllScript deletes every session in a user's index and the index
// itself in one atomic step, so a concurrent Create cannot leave a deleted
// session behind in the set.
const revokeAllScript = `
local ids = redis.call("SMEMBERS", KEYS[1])
local removed = 0
for _, id in ipairs(ids) do
  removed = removed + redis.call("DEL", ARGV[1] .. id)
end
redis.call("DEL", KEYS[1])
return removed
`

var revokeAllLua = redis.NewScript(revokeAllScript)

// Store persists sessions in Redis under prefix, with a per-user set
// indexing live session IDs. It implements authcore's SessionRevoker port.
type Store struct {
	redis  redis.UniversalClient
	prefix string
	ttl    time.Duration
	now    func() time.Time
}

// NewStore creates a session Store. prefix namespaces the Redis keys; ttl
// is the session lifetime.
func NewStore(client redis.UniversalClient, prefix string, ttl time.Duration) (*Store, error) {
	if client == nil {
		return nil, errors.New("redis client is required")
	}
	if prefix == "" {
		return nil, errors.New("key prefix is required")
	}
	if ttl <= 0 {
		return nil, errors.New("session ttl must be positive")
	}
	return &Store{
		redis:  client,
		prefix: prefix,
		ttl:    ttl,
		now:    time.Now,
	}, nil
}

func (s *Store) sessionKey(sessionID string) string {
	return s.prefix + ":s:" + sessionID
}

func (s *Store) userKey(userID string) string {
	return s.prefix + ":u:" + userID
}

// Create persists a new session for the user and returns it.
func (s *Store) Create(ctx context.Context, userID, role, securityStamp string) (Session, error) {
	now := s.now()
	sess := Session{
		SessionID:     uuid.NewString(),
		UserID:        userID,
		Role:          role,
		SecurityStamp: securityStamp,
		CreatedAt:     now,
		ExpiresAt:     now.Add(s.ttl),
	}

	blob, err := json.Marshal(sess)
	if err != nil {
		return Session{}, err
	}

	pipe := s.redis.TxPipeline()
	pipe.Set(ctx, s.sessionKey(sess.SessionID), blob, s.ttl)
	pipe.SAdd(ctx, s.userKey(userID), sess.SessionID)
	// The index outlives individual sessions slightly; RevokeAll and Get
	// both tolerate stale members.
	pipe.Expire(ctx, s.userKey(userID), s.ttl)
	if _, err := pipe.Exec(ctx); err != nil {
		return Session{}, fmt.Errorf("%w: %v", ErrRedisUnavailable, err)
	}
	return sess, nil
}

// Get loads a live session by ID.
func (s *Store) Get(ctx context.Context, sessionID string) (Session, error) {
	blob, err := s.redis.Get(ctx, s.sessionKey(sessionID)).Bytes()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return Session{}, ErrSessionNotFound
		}
		return Session{}, fmt.Errorf("%w: %v", ErrRedisUnavailable, err)
	}

	var sess Session
	if err := json.Unmarshal(blob, &sess); err != nil {
		return Session{}, ErrSessionNotFound
	}
	if !s.now().Before(sess.ExpiresAt) {
		_ = s.Delete(ctx, sessionID)
		return Session{}, ErrSessionNotFound
	}
	return sess, nil
}

// Delete removes one session. Deleting an absent session is not an error.
func (s *Store) Delete(ctx context.Context, sessionID string) error {
	sess, err := s.Get(ctx, sessionID)
	if err != nil {
		if errors.Is(err, ErrSessionNotFound) {
			return nil
		}
		return err
	}

	pipe := s.redis.TxPipeline()
	pipe.Del(ctx, s.sessionKey(sessionID))
	pipe.SRem(ctx, s.userKey(sess.UserID), sessionID)
	if _, err := pipe.Exec(ctx); err != nil {
		return fmt.Errorf("%w: %v", ErrRedisUnavailable, err)
	}
	return nil
}

// RevokeAll deletes every live session of a user atomically. It implements
// authcore's SessionRevoker port.
func (s *Store) RevokeAll(ctx context.Context, userID string) error {
	err := revokeAllLua.Run(ctx, s.redis,
		[]string{s.userKey(userID)},
		s.prefix+":s:",
	).Err()
	if err != nil && !errors.Is(err, redis.Nil) {
		return fmt.Errorf("%w: %v", ErrRedisUnavailable, err)
	}
	return nil
}

// LiveSessions returns the IDs of the user's live sessions. Stale index
// members for already-expired sessions are filtered out.
func (s *Store) LiveSessions(ctx context.Context, userID string) ([]string, error) {
	ids, err := s.redis.SMembers(ctx, s.userKey(userID)).Result()
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrRedisUnavailable, err)
	}

	live := make([]string, 0, len(ids))
	for _, id := range ids {
		if _, err := s.Get(ctx, id); err == nil {
			live = append(live, id)
		}
	}
	return live, nil
}
