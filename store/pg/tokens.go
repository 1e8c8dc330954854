package pg

import (
	"context"
	"database/sql"
	"errors"

	"github.com/hexfold/authcore"
)

func (s *Store) SaveToken(ctx context.Context, record authcore.TokenRecord) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer func() { _ = tx.Rollback() }()

	// One live token per user and purpose.
	if _, err := tx.ExecContext(ctx,
		`delete from auth_tokens where user_id = $1 and purpose = $2`,
		record.UserID, record.Purpose); err != nil {
		return err
	}
	if _, err := tx.ExecContext(ctx, `
		insert into auth_tokens (id, user_id, purpose, token_hash, expires_at)
		values ($1, $2, $3, $4, $5)`,
		record.ID, record.UserID, record.Purpose, record.Hash[:], record.ExpiresAt); err != nil {
		return err
	}
	return tx.Commit()
}

func (s *Store) TokenByHash(ctx context.Context, hash [32]byte, purpose authcore.TokenPurpose) (authcore.TokenRecord, error) {
	row := s.db.QueryRowContext(ctx, `
		select id, user_id, purpose, token_hash, expires_at
		from auth_tokens where token_hash = $1 and purpose = $2`, hash[:], purpose)

	var record authcore.TokenRecord
	var rawHash []byte
	err := row.Scan(&record.ID, &record.UserID, &record.Purpose, &rawHash, &record.ExpiresAt)
	if errors.Is(err, sql.ErrNoRows) {
		return authcore.TokenRecord{}, authcore.ErrTokenNotFound
	}
	if err != nil {
		return authcore.TokenRecord{}, err
	}
	copy(record.Hash[:], rawHash)
	return record, nil
}

func (s *Store) DeleteTokensFor(ctx context.Context, userID string, purpose authcore.TokenPurpose) error {
	_, err := s.db.ExecContext(ctx,
		`delete from auth_tokens where user_id = $1 and purpose = $2`, userID, purpose)
	return err
}

// ConsumeToken locks the token row, runs effect, and deletes the row in one
// transaction. The row lock serializes concurrent consumers of the same
// hash: the first deletes the row on commit, the rest find nothing.
func (s *Store) ConsumeToken(ctx context.Context, hash [32]byte, purpose authcore.TokenPurpose, effect func(ctx context.Context, record authcore.TokenRecord) error) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer func() { _ = tx.Rollback() }()

	row := tx.QueryRowContext(ctx, `
		select id, user_id, purpose, token_hash, expires_at
		from auth_tokens
		where token_hash = $1 and purpose = $2
		for update`, hash[:], purpose)

	var record authcore.TokenRecord
	var rawHash []byte
	err = row.Scan(&record.ID, &record.UserID, &record.Purpose, &rawHash, &record.ExpiresAt)
	if errors.Is(err, sql.ErrNoRows) {
		return authcore.ErrTokenNotFound
	}
	if err != nil {
		return err
	}
	copy(record.Hash[:], rawHash)

	if effect != nil {
		if err := effect(ctx, record); err != nil {
			return err
		}
	}

	if _, err := tx.ExecContext(ctx,
		`delete from auth_tokens where token_hash = $1`, hash[:]); err != nil {
		return err
	}
	return tx.Commit()
}
