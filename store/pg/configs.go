package pg

import (
	"context"
	"database/sql"
	"errors"

	"github.com/hexfold/authcore"
)

const configColumns = `key, value, type, category, is_public`

func scanConfig(scan func(dest ...any) error) (authcore.ConfigEntry, error) {
	var entry authcore.ConfigEntry
	err := scan(&entry.Key, &entry.RawValue, &entry.Type, &entry.Category, &entry.Public)
	return entry, err
}

func (s *Store) ConfigByKey(ctx context.Context, key string) (authcore.ConfigEntry, error) {
	row := s.db.QueryRowContext(ctx, `select `+configColumns+` from auth_config where key = $1`, key)
	entry, err := scanConfig(row.Scan)
	if errors.Is(err, sql.ErrNoRows) {
		return authcore.ConfigEntry{}, authcore.ErrConfigNotFound
	}
	if err != nil {
		return authcore.ConfigEntry{}, err
	}
	return entry, nil
}

func (s *Store) queryConfigs(ctx context.Context, query string, args ...any) ([]authcore.ConfigEntry, error) {
	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []authcore.ConfigEntry
	for rows.Next() {
		entry, err := scanConfig(rows.Scan)
		if err != nil {
			return nil, err
		}
		out = append(out, entry)
	}
	return out, rows.Err()
}

func (s *Store) ConfigsByKeys(ctx context.Context, keys []string) ([]authcore.ConfigEntry, error) {
	return s.queryConfigs(ctx,
		`select `+configColumns+` from auth_config where key = any($1)`, keys)
}

func (s *Store) ConfigsByCategory(ctx context.Context, category string) ([]authcore.ConfigEntry, error) {
	return s.queryConfigs(ctx,
		`select `+configColumns+` from auth_config where category = $1`, category)
}

func (s *Store) PublicConfigs(ctx context.Context) ([]authcore.ConfigEntry, error) {
	return s.queryConfigs(ctx,
		`select `+configColumns+` from auth_config where is_public = true`)
}

// UpdateConfig writes the new value and appends the history record in one
// transaction. The history table is append-only.
func (s *Store) UpdateConfig(ctx context.Context, key, newValue string, history authcore.ConfigHistoryRecord) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer func() { _ = tx.Rollback() }()

	res, err := tx.ExecContext(ctx, `update auth_config set value = $2 where key = $1`, key, newValue)
	if err != nil {
		return err
	}
	n, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if n == 0 {
		return authcore.ErrConfigNotFound
	}

	if _, err := tx.ExecContext(ctx, `
		insert into auth_config_history (id, key, old_value, new_value, actor, reason, changed_at)
		values ($1, $2, $3, $4, $5, $6, $7)`,
		history.ID, history.Key, history.OldValue, history.NewValue,
		history.Actor, history.Reason, history.ChangedAt); err != nil {
		return err
	}
	return tx.Commit()
}

func (s *Store) FeatureFlagByName(ctx context.Context, name string) (authcore.FeatureFlag, error) {
	row := s.db.QueryRowContext(ctx,
		`select name, enabled, percentage from auth_feature_flags where name = $1`, name)

	var flag authcore.FeatureFlag
	err := row.Scan(&flag.Name, &flag.Enabled, &flag.Percentage)
	if errors.Is(err, sql.ErrNoRows) {
		return authcore.FeatureFlag{}, authcore.ErrConfigNotFound
	}
	if err != nil {
		return authcore.FeatureFlag{}, err
	}
	return flag, nil
}
