// Package pg provides Postgres-backed implementations of authcore's
// persistence ports, built on database/sql with the pgx stdlib driver.
package pg

import (
	"database/sql"
	"time"

	_ "github.com/jackc/pgx/v5/stdlib"

	"github.com/hexfold/authcore"
)

// Store implements authcore.UserStore, authcore.TokenStore, and
// authcore.ConfigStore against one Postgres database.
type Store struct {
	db *sql.DB
}

var (
	_ authcore.UserStore   = (*Store)(nil)
	_ authcore.TokenStore  = (*Store)(nil)
	_ authcore.ConfigStore = (*Store)(nil)
)

// Open connects to Postgres and returns a Store.
func Open(dsn string) (*Store, error) {
	db, err := sql.Open("pgx", dsn)
	if err != nil {
		return nil, err
	}
	db.SetMaxOpenConns(50)
	db.SetMaxIdleConns(25)
	db.SetConnMaxLifetime(15 * time.Minute)
	db.SetConnMaxIdleTime(5 * time.Minute)
	return &Store{db: db}, nil
}

// NewStore wraps an existing database handle. Used by hosts that manage
// their own pool and by tests.
func NewStore(db *sql.DB) *Store { return &Store{db: db} }

// Close releases the underlying pool.
func (s *Store) Close() error { return s.db.Close() }

// DB exposes the underlying handle for migrations and health checks.
func (s *Store) DB() *sql.DB { return s.db }

// Schema is the DDL for the tables this package reads and writes. Hosts
// owning their users table only need the parts they delegate here.
const Schema = `
create table if not exists auth_users (
    id                   text primary key,
    identifier           text not null unique,
    password_hash        text not null default '',
    security_stamp       text not null default '',
    status               smallint not null default 0,
    role                 text not null default '',
    email_verified       boolean not null default false,
    twofa_enabled        boolean not null default false,
    twofa_secret         text not null default '',
    twofa_pending_secret text not null default ''
);

create table if not exists auth_backup_codes (
    user_id   text not null references auth_users(id) on delete cascade,
    code_hash bytea not null,
    used      boolean not null default false,
    primary key (user_id, code_hash)
);

create table if not exists auth_tokens (
    id         text primary key,
    user_id    text not null,
    purpose    text not null,
    token_hash bytea not null unique,
    expires_at timestamptz not null
);
create index if not exists auth_tokens_user_purpose on auth_tokens (user_id, purpose);

create table if not exists auth_config (
    key       text primary key,
    value     text not null,
    type      text not null,
    category  text not null default '',
    is_public boolean not null default false
);

create table if not exists auth_config_history (
    id         text primary key,
    key        text not null,
    old_value  text not null,
    new_value  text not null,
    actor      text not null default '',
    reason     text not null default '',
    changed_at timestamptz not null
);

create table if not exists auth_feature_flags (
    name       text primary key,
    enabled    boolean not null default false,
    percentage integer not null default 0
);
`
