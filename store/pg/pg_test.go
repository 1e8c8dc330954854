package pg

import (
	"context"
	"crypto/sha256"
	"database/sql"
	"errors"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"

	"github.com/hexfold/authcore"
)

func newMockStore(t *testing.T) (*Store, sqlmock.Sqlmock) {
	t.Helper()
	db, mock, err := sqlmock.New()
	if err != nil {
		t.Fatalf("sqlmock.New: %v", err)
	}
	t.Cleanup(func() { _ = db.Close() })
	return NewStore(db), mock
}

func finish(t *testing.T, mock sqlmock.Sqlmock) {
	t.Helper()
	if err := mock.ExpectationsWereMet(); err != nil {
		t.Fatalf("unmet expectations: %v", err)
	}
}

var userRows = []string{
	"id", "identifier", "password_hash", "security_stamp", "status", "role",
	"email_verified", "twofa_enabled", "twofa_secret", "twofa_pending_secret",
}

func TestUserByID(t *testing.T) {
	store, mock := newMockStore(t)

	mock.ExpectQuery("select .* from auth_users where id").
		WithArgs("u1").
		WillReturnRows(sqlmock.NewRows(userRows).
			AddRow("u1", "u1@example.test", "hash", "stamp", 0, "USER", true, false, "", ""))

	user, err := store.UserByID(context.Background(), "u1")
	if err != nil {
		t.Fatalf("UserByID: %v", err)
	}
	if user.Identifier != "u1@example.test" || user.Status != authcore.AccountActive {
		t.Fatalf("user = %+v", user)
	}
	finish(t, mock)
}

func TestUserByIDNotFound(t *testing.T) {
	store, mock := newMockStore(t)

	mock.ExpectQuery("select .* from auth_users where id").
		WithArgs("ghost").
		WillReturnError(sql.ErrNoRows)

	_, err := store.UserByID(context.Background(), "ghost")
	if !errors.Is(err, authcore.ErrUserNotFound) {
		t.Fatalf("got %v, want ErrUserNotFound", err)
	}
	finish(t, mock)
}

func TestUpdateSecurityStampMissingUser(t *testing.T) {
	store, mock := newMockStore(t)

	mock.ExpectExec("update auth_users set security_stamp").
		WithArgs("ghost", "stamp-2").
		WillReturnResult(sqlmock.NewResult(0, 0))

	err := store.UpdateSecurityStamp(context.Background(), "ghost", "stamp-2")
	if !errors.Is(err, authcore.ErrUserNotFound) {
		t.Fatalf("got %v, want ErrUserNotFound", err)
	}
	finish(t, mock)
}

func TestConsumeBackupCodeCAS(t *testing.T) {
	store, mock := newMockStore(t)
	hash := sha256.Sum256([]byte("u1:CODE"))

	mock.ExpectExec("update auth_backup_codes").
		WithArgs("u1", hash[:]).
		WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectExec("update auth_backup_codes").
		WithArgs("u1", hash[:]).
		WillReturnResult(sqlmock.NewResult(0, 0))

	consumed, err := store.ConsumeBackupCode(context.Background(), "u1", hash)
	if err != nil || !consumed {
		t.Fatalf("first consume = %v, %v", consumed, err)
	}
	consumed, err = store.ConsumeBackupCode(context.Background(), "u1", hash)
	if err != nil || consumed {
		t.Fatalf("second consume = %v, %v", consumed, err)
	}
	finish(t, mock)
}

func TestReplaceBackupCodes(t *testing.T) {
	store, mock := newMockStore(t)
	codes := []authcore.BackupCodeRecord{
		{Hash: sha256.Sum256([]byte("a"))},
		{Hash: sha256.Sum256([]byte("b"))},
	}

	mock.ExpectBegin()
	mock.ExpectExec("delete from auth_backup_codes").
		WithArgs("u1").
		WillReturnResult(sqlmock.NewResult(0, 0))
	for _, code := range codes {
		code := code
		mock.ExpectExec("insert into auth_backup_codes").
			WithArgs("u1", code.Hash[:], false).
			WillReturnResult(sqlmock.NewResult(1, 1))
	}
	mock.ExpectCommit()

	if err := store.ReplaceBackupCodes(context.Background(), "u1", codes); err != nil {
		t.Fatalf("ReplaceBackupCodes: %v", err)
	}
	finish(t, mock)
}

func TestSaveTokenReplacesPrior(t *testing.T) {
	store, mock := newMockStore(t)
	record := authcore.TokenRecord{
		ID:        "t1",
		UserID:    "u1",
		Purpose:   authcore.PurposePasswordReset,
		Hash:      sha256.Sum256([]byte("token")),
		ExpiresAt: time.Now().Add(time.Hour),
	}

	mock.ExpectBegin()
	mock.ExpectExec("delete from auth_tokens where user_id").
		WithArgs("u1", authcore.PurposePasswordReset).
		WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectExec("insert into auth_tokens").
		WithArgs("t1", "u1", authcore.PurposePasswordReset, record.Hash[:], record.ExpiresAt).
		WillReturnResult(sqlmock.NewResult(1, 1))
	mock.ExpectCommit()

	if err := store.SaveToken(context.Background(), record); err != nil {
		t.Fatalf("SaveToken: %v", err)
	}
	finish(t, mock)
}

func TestConsumeToken(t *testing.T) {
	store, mock := newMockStore(t)
	hash := sha256.Sum256([]byte("token"))
	expires := time.Now().Add(time.Hour)

	mock.ExpectBegin()
	mock.ExpectQuery("select .* from auth_tokens.*for update").
		WithArgs(hash[:], authcore.PurposePasswordReset).
		WillReturnRows(sqlmock.NewRows([]string{"id", "user_id", "purpose", "token_hash", "expires_at"}).
			AddRow("t1", "u1", "password-reset", hash[:], expires))
	mock.ExpectExec("delete from auth_tokens where token_hash").
		WithArgs(hash[:]).
		WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectCommit()

	var seen authcore.TokenRecord
	err := store.ConsumeToken(context.Background(), hash, authcore.PurposePasswordReset,
		func(_ context.Context, record authcore.TokenRecord) error {
			seen = record
			return nil
		})
	if err != nil {
		t.Fatalf("ConsumeToken: %v", err)
	}
	if seen.UserID != "u1" || seen.ID != "t1" {
		t.Fatalf("effect saw %+v", seen)
	}
	finish(t, mock)
}

func TestConsumeTokenNotFound(t *testing.T) {
	store, mock := newMockStore(t)
	hash := sha256.Sum256([]byte("missing"))

	mock.ExpectBegin()
	mock.ExpectQuery("select .* from auth_tokens.*for update").
		WithArgs(hash[:], authcore.PurposePasswordReset).
		WillReturnError(sql.ErrNoRows)
	mock.ExpectRollback()

	err := store.ConsumeToken(context.Background(), hash, authcore.PurposePasswordReset, nil)
	if !errors.Is(err, authcore.ErrTokenNotFound) {
		t.Fatalf("got %v, want ErrTokenNotFound", err)
	}
	finish(t, mock)
}

func TestConsumeTokenEffectFailureRollsBack(t *testing.T) {
	store, mock := newMockStore(t)
	hash := sha256.Sum256([]byte("token"))
	boom := errors.New("effect failed")

	mock.ExpectBegin()
	mock.ExpectQuery("select .* from auth_tokens.*for update").
		WithArgs(hash[:], authcore.PurposeEmailVerification).
		WillReturnRows(sqlmock.NewRows([]string{"id", "user_id", "purpose", "token_hash", "expires_at"}).
			AddRow("t1", "u1", "email-verification", hash[:], time.Now().Add(time.Hour)))
	mock.ExpectRollback()

	err := store.ConsumeToken(context.Background(), hash, authcore.PurposeEmailVerification,
		func(context.Context, authcore.TokenRecord) error { return boom })
	if !errors.Is(err, boom) {
		t.Fatalf("got %v, want effect error", err)
	}
	finish(t, mock)
}

func TestUpdateConfig(t *testing.T) {
	store, mock := newMockStore(t)
	history := authcore.ConfigHistoryRecord{
		ID: "h1", Key: "site.name", OldValue: "a", NewValue: "b",
		Actor: "admin-1", Reason: "rename", ChangedAt: time.Now(),
	}

	mock.ExpectBegin()
	mock.ExpectExec("update auth_config set value").
		WithArgs("site.name", "b").
		WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectExec("insert into auth_config_history").
		WithArgs("h1", "site.name", "a", "b", "admin-1", "rename", history.ChangedAt).
		WillReturnResult(sqlmock.NewResult(1, 1))
	mock.ExpectCommit()

	if err := store.UpdateConfig(context.Background(), "site.name", "b", history); err != nil {
		t.Fatalf("UpdateConfig: %v", err)
	}
	finish(t, mock)
}

func TestUpdateConfigUnknownKey(t *testing.T) {
	store, mock := newMockStore(t)

	mock.ExpectBegin()
	mock.ExpectExec("update auth_config set value").
		WithArgs("missing", "v").
		WillReturnResult(sqlmock.NewResult(0, 0))
	mock.ExpectRollback()

	err := store.UpdateConfig(context.Background(), "missing", "v", authcore.ConfigHistoryRecord{})
	if !errors.Is(err, authcore.ErrConfigNotFound) {
		t.Fatalf("got %v, want ErrConfigNotFound", err)
	}
	finish(t, mock)
}

func TestFeatureFlagByName(t *testing.T) {
	store, mock := newMockStore(t)

	mock.ExpectQuery("select name, enabled, percentage from auth_feature_flags").
		WithArgs("rollout").
		WillReturnRows(sqlmock.NewRows([]string{"name", "enabled", "percentage"}).
			AddRow("rollout", true, 40))
	mock.ExpectQuery("select name, enabled, percentage from auth_feature_flags").
		WithArgs("missing").
		WillReturnError(sql.ErrNoRows)

	flag, err := store.FeatureFlagByName(context.Background(), "rollout")
	if err != nil || !flag.Enabled || flag.Percentage != 40 {
		t.Fatalf("flag = %+v, %v", flag, err)
	}
	if _, err := store.FeatureFlagByName(context.Background(), "missing"); !errors.Is(err, authcore.ErrConfigNotFound) {
		t.Fatalf("got %v, want ErrConfigNotFound", err)
	}
	finish(t, mock)
}
