package sqlstore

import (
	"database/sql"
	"errors"
	"time"

	"github.com/jackc/pgx/v5/pgconn"
	_ "github.com/jackc/pgx/v5/stdlib" // registers the "pgx" database/sql driver
)

// SQLSTATE codes, see https://www.postgresql.org/docs/current/errcodes-appendix.html
const (
	pgUniqueViolation     = "23505"
	pgForeignKeyViolation = "23503"
)

type postgresDialect struct{}

func (postgresDialect) name() string                 { return "postgres" }
func (postgresDialect) driverName() string           { return "pgx" }
func (postgresDialect) prepareDSN(dsn string) string { return dsn }

func (postgresDialect) configurePool(conn *sql.DB) {
	conn.SetMaxOpenConns(20)
	conn.SetMaxIdleConns(5)
	conn.SetConnMaxLifetime(30 * time.Minute)
}

func (postgresDialect) schema() []string {
	return []string{
		`CREATE TABLE IF NOT EXISTS users (
			user_id       BIGINT GENERATED BY DEFAULT AS IDENTITY PRIMARY KEY,
			username      TEXT NOT NULL UNIQUE,
			salt          TEXT NOT NULL,
			password_hash TEXT NOT NULL,
			created_at    TIMESTAMPTZ NOT NULL DEFAULT NOW()
		)`,
		`CREATE TABLE IF NOT EXISTS posts (
			post_id    BIGINT GENERATED BY DEFAULT AS IDENTITY PRIMARY KEY,
			title      TEXT NOT NULL,
			text       TEXT NOT NULL DEFAULT '',
			image_ref  TEXT,
			author_id  BIGINT REFERENCES users(user_id),
			created_at TIMESTAMPTZ NOT NULL DEFAULT NOW()
		)`,
		`CREATE TABLE IF NOT EXISTS likes (
			user_id BIGINT NOT NULL REFERENCES users(user_id) ON DELETE CASCADE,
			post_id BIGINT NOT NULL REFERENCES posts(post_id) ON DELETE CASCADE,
			UNIQUE (user_id, post_id)
		)`,
		`CREATE INDEX IF NOT EXISTS idx_likes_post_id ON likes(post_id)`,
		`CREATE TABLE IF NOT EXISTS comments (
			child_post_id  BIGINT NOT NULL UNIQUE REFERENCES posts(post_id) ON DELETE CASCADE,
			parent_post_id BIGINT NOT NULL REFERENCES posts(post_id) ON DELETE CASCADE,
			CHECK (child_post_id <> parent_post_id)
		)`,
		`CREATE INDEX IF NOT EXISTS idx_comments_parent ON comments(parent_post_id)`,
	}
}

func (postgresDialect) rebind(query string) string { return rebindDollar(query) }

func (postgresDialect) isUniqueViolation(err error) bool {
	var pgErr *pgconn.PgError
	return errors.As(err, &pgErr) && pgErr.Code == pgUniqueViolation
}

func (postgresDialect) isForeignKeyViolation(err error) bool {
	var pgErr *pgconn.PgError
	return errors.As(err, &pgErr) && pgErr.Code == pgForeignKeyViolation
}
