package pg

import (
	"context"
	"database/sql"
	"errors"

	"github.com/hexfold/authcore"
)

const userColumns = `id, identifier, password_hash, security_stamp, status, role,
	email_verified, twofa_enabled, twofa_secret, twofa_pending_secret`

func scanUser(row *sql.Row) (authcore.UserRecord, error) {
	var u authcore.UserRecord
	var status int16
	err := row.Scan(&u.UserID, &u.Identifier, &u.PasswordHash, &u.SecurityStamp,
		&status, &u.Role, &u.EmailVerified, &u.TwoFactorEnabled,
		&u.TwoFactorSecret, &u.PendingTwoFactorSecret)
	if errors.Is(err, sql.ErrNoRows) {
		return authcore.UserRecord{}, authcore.ErrUserNotFound
	}
	if err != nil {
		return authcore.UserRecord{}, err
	}
	u.Status = authcore.AccountStatus(status)
	return u, nil
}

func (s *Store) UserByID(ctx context.Context, userID string) (authcore.UserRecord, error) {
	row := s.db.QueryRowContext(ctx, `select `+userColumns+` from auth_users where id = $1`, userID)
	return scanUser(row)
}

func (s *Store) UserByIdentifier(ctx context.Context, identifier string) (authcore.UserRecord, error) {
	row := s.db.QueryRowContext(ctx, `select `+userColumns+` from auth_users where identifier = $1`, identifier)
	return scanUser(row)
}

// updateUser runs an update that must hit exactly one row; zero rows means
// the user does not exist.
func (s *Store) updateUser(ctx context.Context, query string, args ...any) error {
	res, err := s.db.ExecContext(ctx, query, args...)
	if err != nil {
		return err
	}
	n, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if n == 0 {
		return authcore.ErrUserNotFound
	}
	return nil
}

func (s *Store) UpdatePasswordHash(ctx context.Context, userID, newHash string) error {
	return s.updateUser(ctx, `update auth_users set password_hash = $2 where id = $1`, userID, newHash)
}

func (s *Store) UpdateSecurityStamp(ctx context.Context, userID, stamp string) error {
	return s.updateUser(ctx, `update auth_users set security_stamp = $2 where id = $1`, userID, stamp)
}

func (s *Store) MarkEmailVerified(ctx context.Context, userID string) error {
	return s.updateUser(ctx, `update auth_users set email_verified = true where id = $1`, userID)
}

func (s *Store) SavePendingTwoFactorSecret(ctx context.Context, userID, secretBase32 string) error {
	return s.updateUser(ctx, `update auth_users set twofa_pending_secret = $2 where id = $1`, userID, secretBase32)
}

func (s *Store) EnableTwoFactor(ctx context.Context, userID, encryptedSecret string) error {
	return s.updateUser(ctx, `
		update auth_users
		set twofa_enabled = true, twofa_secret = $2, twofa_pending_secret = ''
		where id = $1`, userID, encryptedSecret)
}

func (s *Store) DisableTwoFactor(ctx context.Context, userID string) error {
	return s.updateUser(ctx, `
		update auth_users
		set twofa_enabled = false, twofa_secret = '', twofa_pending_secret = ''
		where id = $1`, userID)
}

func (s *Store) BackupCodes(ctx context.Context, userID string) ([]authcore.BackupCodeRecord, error) {
	rows, err := s.db.QueryContext(ctx,
		`select code_hash, used from auth_backup_codes where user_id = $1`, userID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []authcore.BackupCodeRecord
	for rows.Next() {
		var hash []byte
		var record authcore.BackupCodeRecord
		if err := rows.Scan(&hash, &record.Used); err != nil {
			return nil, err
		}
		copy(record.Hash[:], hash)
		out = append(out, record)
	}
	return out, rows.Err()
}

func (s *Store) ReplaceBackupCodes(ctx context.Context, userID string, codes []authcore.BackupCodeRecord) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer func() { _ = tx.Rollback() }()

	if _, err := tx.ExecContext(ctx, `delete from auth_backup_codes where user_id = $1`, userID); err != nil {
		return err
	}
	for _, code := range codes {
		if _, err := tx.ExecContext(ctx, `
			insert into auth_backup_codes (user_id, code_hash, used)
			values ($1, $2, $3)`, userID, code.Hash[:], code.Used); err != nil {
			return err
		}
	}
	return tx.Commit()
}

func (s *Store) DeleteBackupCodes(ctx context.Context, userID string) error {
	_, err := s.db.ExecContext(ctx, `delete from auth_backup_codes where user_id = $1`, userID)
	return err
}

// ConsumeBackupCode is a compare-and-swap on the used flag. The conditional
// update guarantees at most one of any number of concurrent consumers wins.
func (s *Store) ConsumeBackupCode(ctx context.Context, userID string, hash [32]byte) (bool, error) {
	res, err := s.db.ExecContext(ctx, `
		update auth_backup_codes
		set used = true
		where user_id = $1 and code_hash = $2 and used = false`, userID, hash[:])
	if err != nil {
		return false, err
	}
	n, err := res.RowsAffected()
	if err != nil {
		return false, err
	}
	return n == 1, nil
}
