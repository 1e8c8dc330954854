package authcore

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"
)

// memUserStore is an in-memory UserStore with the same atomicity contract
// as a real adapter: every method is a single mutation under one lock.
type memUserStore struct {
	mu    sync.Mutex
	users map[string]UserRecord
	codes map[string][]BackupCodeRecord
}

func newMemUserStore(users ...UserRecord) *memUserStore {
	s := &memUserStore{
		users: make(map[string]UserRecord),
		codes: make(map[string][]BackupCodeRecord),
	}
	for _, u := range users {
		s.users[u.UserID] = u
	}
	return s
}

func (s *memUserStore) UserByID(_ context.Context, userID string) (UserRecord, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	u, ok := s.users[userID]
	if !ok {
		return UserRecord{}, ErrUserNotFound
	}
	return u, nil
}

func (s *memUserStore) UserByIdentifier(_ context.Context, identifier string) (UserRecord, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, u := range s.users {
		if u.Identifier == identifier {
			return u, nil
		}
	}
	return UserRecord{}, ErrUserNotFound
}

func (s *memUserStore) mutate(userID string, fn func(*UserRecord)) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	u, ok := s.users[userID]
	if !ok {
		return ErrUserNotFound
	}
	fn(&u)
	s.users[userID] = u
	return nil
}

func (s *memUserStore) UpdatePasswordHash(_ context.Context, userID, newHash string) error {
	return s.mutate(userID, func(u *UserRecord) { u.PasswordHash = newHash })
}

func (s *memUserStore) UpdateSecurityStamp(_ context.Context, userID, stamp string) error {
	return s.mutate(userID, func(u *UserRecord) { u.SecurityStamp = stamp })
}

func (s *memUserStore) MarkEmailVerified(_ context.Context, userID string) error {
	return s.mutate(userID, func(u *UserRecord) { u.EmailVerified = true })
}

func (s *memUserStore) SavePendingTwoFactorSecret(_ context.Context, userID, secretBase32 string) error {
	return s.mutate(userID, func(u *UserRecord) { u.PendingTwoFactorSecret = secretBase32 })
}

func (s *memUserStore) EnableTwoFactor(_ context.Context, userID, encryptedSecret string) error {
	return s.mutate(userID, func(u *UserRecord) {
		u.TwoFactorEnabled = true
		u.TwoFactorSecret = encryptedSecret
		u.PendingTwoFactorSecret = ""
	})
}

func (s *memUserStore) DisableTwoFactor(_ context.Context, userID string) error {
	return s.mutate(userID, func(u *UserRecord) {
		u.TwoFactorEnabled = false
		u.TwoFactorSecret = ""
		u.PendingTwoFactorSecret = ""
	})
}

func (s *memUserStore) BackupCodes(_ context.Context, userID string) ([]BackupCodeRecord, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]BackupCodeRecord, len(s.codes[userID]))
	copy(out, s.codes[userID])
	return out, nil
}

func (s *memUserStore) ReplaceBackupCodes(_ context.Context, userID string, codes []BackupCodeRecord) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	replacement := make([]BackupCodeRecord, len(codes))
	copy(replacement, codes)
	s.codes[userID] = replacement
	return nil
}

func (s *memUserStore) DeleteBackupCodes(_ context.Context, userID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.codes, userID)
	return nil
}

func (s *memUserStore) ConsumeBackupCode(_ context.Context, userID string, hash [32]byte) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	codes := s.codes[userID]
	for i := range codes {
		if codes[i].Hash == hash && !codes[i].Used {
			codes[i].Used = true
			return true, nil
		}
	}
	return false, nil
}

// memTokenStore implements TokenStore with transactional consume semantics
// under a single lock.
type memTokenStore struct {
	mu     sync.Mutex
	tokens map[[32]byte]TokenRecord
}

func newMemTokenStore() *memTokenStore {
	return &memTokenStore{tokens: make(map[[32]byte]TokenRecord)}
}

func (s *memTokenStore) SaveToken(_ context.Context, record TokenRecord) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	for hash, existing := range s.tokens {
		if existing.UserID == record.UserID && existing.Purpose == record.Purpose {
			delete(s.tokens, hash)
		}
	}
	s.tokens[record.Hash] = record
	return nil
}

func (s *memTokenStore) TokenByHash(_ context.Context, hash [32]byte, purpose TokenPurpose) (TokenRecord, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	record, ok := s.tokens[hash]
	if !ok || record.Purpose != purpose {
		return TokenRecord{}, ErrTokenNotFound
	}
	return record, nil
}

func (s *memTokenStore) DeleteTokensFor(_ context.Context, userID string, purpose TokenPurpose) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	for hash, existing := range s.tokens {
		if existing.UserID == userID && existing.Purpose == purpose {
			delete(s.tokens, hash)
		}
	}
	return nil
}

func (s *memTokenStore) ConsumeToken(ctx context.Context, hash [32]byte, purpose TokenPurpose, effect func(ctx context.Context, record TokenRecord) error) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	record, ok := s.tokens[hash]
	if !ok || record.Purpose != purpose {
		return ErrTokenNotFound
	}
	if effect != nil {
		if err := effect(ctx, record); err != nil {
			return err
		}
	}
	delete(s.tokens, hash)
	return nil
}

func (s *memTokenStore) count() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.tokens)
}

// memConfigStore implements ConfigStore and counts reads so cache behavior
// is observable.
type memConfigStore struct {
	mu      sync.Mutex
	entries map[string]ConfigEntry
	flags   map[string]FeatureFlag
	history []ConfigHistoryRecord
	reads   int
}

func newMemConfigStore() *memConfigStore {
	return &memConfigStore{
		entries: make(map[string]ConfigEntry),
		flags:   make(map[string]FeatureFlag),
	}
}

func (s *memConfigStore) put(entry ConfigEntry) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.entries[entry.Key] = entry
}

func (s *memConfigStore) putFlag(flag FeatureFlag) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.flags[flag.Name] = flag
}

func (s *memConfigStore) readCount() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.reads
}

func (s *memConfigStore) ConfigByKey(_ context.Context, key string) (ConfigEntry, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.reads++
	entry, ok := s.entries[key]
	if !ok {
		return ConfigEntry{}, ErrConfigNotFound
	}
	return entry, nil
}

func (s *memConfigStore) ConfigsByKeys(_ context.Context, keys []string) ([]ConfigEntry, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.reads++
	var out []ConfigEntry
	for _, key := range keys {
		if entry, ok := s.entries[key]; ok {
			out = append(out, entry)
		}
	}
	return out, nil
}

func (s *memConfigStore) ConfigsByCategory(_ context.Context, category string) ([]ConfigEntry, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.reads++
	var out []ConfigEntry
	for _, entry := range s.entries {
		if entry.Category == category {
			out = append(out, entry)
		}
	}
	return out, nil
}

func (s *memConfigStore) PublicConfigs(_ context.Context) ([]ConfigEntry, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.reads++
	var out []ConfigEntry
	for _, entry := range s.entries {
		if entry.Public {
			out = append(out, entry)
		}
	}
	return out, nil
}

func (s *memConfigStore) UpdateConfig(_ context.Context, key, newValue string, history ConfigHistoryRecord) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	entry, ok := s.entries[key]
	if !ok {
		return ErrConfigNotFound
	}
	entry.RawValue = newValue
	s.entries[key] = entry
	s.history = append(s.history, history)
	return nil
}

func (s *memConfigStore) FeatureFlagByName(_ context.Context, name string) (FeatureFlag, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	flag, ok := s.flags[name]
	if !ok {
		return FeatureFlag{}, ErrConfigNotFound
	}
	return flag, nil
}

// memNotifier captures delivered tokens.
type memNotifier struct {
	mu   sync.Mutex
	sent []sentToken
	fail error
}

type sentToken struct {
	UserID  string
	Purpose TokenPurpose
	Token   string
}

func (n *memNotifier) SendToken(_ context.Context, user UserRecord, purpose TokenPurpose, token string, _ time.Time) error {
	n.mu.Lock()
	defer n.mu.Unlock()
	if n.fail != nil {
		return n.fail
	}
	n.sent = append(n.sent, sentToken{UserID: user.UserID, Purpose: purpose, Token: token})
	return nil
}

func (n *memNotifier) last() (sentToken, bool) {
	n.mu.Lock()
	defer n.mu.Unlock()
	if len(n.sent) == 0 {
		return sentToken{}, false
	}
	return n.sent[len(n.sent)-1], true
}

// memRevoker counts RevokeAll calls.
type memRevoker struct {
	mu    sync.Mutex
	calls map[string]int
	fail  error
}

func newMemRevoker() *memRevoker {
	return &memRevoker{calls: make(map[string]int)}
}

func (r *memRevoker) RevokeAll(_ context.Context, userID string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.fail != nil {
		return r.fail
	}
	r.calls[userID]++
	return nil
}

func (r *memRevoker) count(userID string) int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.calls[userID]
}

// fixedKeyProvider returns a static 32-byte key.
type fixedKeyProvider struct{ key []byte }

func (p fixedKeyProvider) EncryptionKey() ([]byte, error) {
	if p.key == nil {
		return bytesRepeat(0x42, 32), nil
	}
	return p.key, nil
}

func bytesRepeat(b byte, n int) []byte {
	out := make([]byte, n)
	for i := range out {
		out[i] = b
	}
	return out
}

// testEnv bundles an engine with its fakes.
type testEnv struct {
	engine   *Engine
	users    *memUserStore
	tokens   *memTokenStore
	configs  *memConfigStore
	notifier *memNotifier
	revoker  *memRevoker
	now      time.Time
}

type envOption func(*Builder)

func newTestEnv(t *testing.T, users *memUserStore, opts ...envOption) *testEnv {
	t.Helper()

	env := &testEnv{
		users:    users,
		tokens:   newMemTokenStore(),
		configs:  newMemConfigStore(),
		notifier: &memNotifier{},
		revoker:  newMemRevoker(),
		now:      time.Date(2026, 3, 14, 12, 0, 0, 0, time.UTC),
	}

	cfg := defaultConfig()
	cfg.TwoFactor.Issuer = "authcore-test"
	// Keep tests fast: small Argon2 parameters, no hidden I/O.
	cfg.Password.Hash.Memory = 8 * 1024
	cfg.Password.Hash.Time = 1
	cfg.Password.Hash.Parallelism = 1

	b := New().
		WithConfig(cfg).
		WithUsers(users).
		WithTokens(env.tokens).
		WithConfigs(env.configs).
		WithNotifier(env.notifier).
		WithSessions(env.revoker).
		WithKeyProvider(fixedKeyProvider{}).
		WithRoles(map[string]RoleSpec{
			"ADMIN":  {Level: 100},
			"EDITOR": {Level: 50, Permissions: []string{"posts:read", "posts:update", "posts:manage"}},
			"USER":   {Level: 10, Permissions: []string{"posts:read", "posts:update"}},
		}).
		WithClock(func() time.Time { return env.now }).
		WithRand(func(n int) int { return 0 })

	for _, opt := range opts {
		opt(b)
	}

	engine, err := b.Build()
	if err != nil {
		t.Fatalf("Build: %v", err)
	}
	engine.sleep = func(time.Duration) {}
	t.Cleanup(engine.Close)

	env.engine = engine
	return env
}

func hashTestPassword(t *testing.T, e *Engine, plaintext string) string {
	t.Helper()
	hash, err := e.passwordHash.Hash(plaintext)
	if err != nil {
		t.Fatalf("hash password: %v", err)
	}
	return hash
}

func mustErrorIs(t *testing.T, err, want error) {
	t.Helper()
	if !errors.Is(err, want) {
		t.Fatalf("got error %v, want %v", err, want)
	}
}
