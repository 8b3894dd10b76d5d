package sqlstore

import (
	"database/sql"
	"errors"
	"strings"
	"time"

	"modernc.org/sqlite"
	sqlite3 "modernc.org/sqlite/lib"
)

// sqliteDialect targets modernc.org/sqlite, a pure Go translation of SQLite
// (no CGo, cross-compiles anywhere Go does).
type sqliteDialect struct{}

func (sqliteDialect) name() string       { return "sqlite" }
func (sqliteDialect) driverName() string { return "sqlite" }

// prepareDSN appends the connection pragmas as DSN parameters. PRAGMA
// statements executed once on the pool would only reach one connection;
// DSN pragmas are applied to every connection the pool opens.
//
//   - foreign_keys(1): SQLite ships with FK enforcement off
//   - journal_mode(WAL): readers don't block the writer and vice versa
//   - busy_timeout(5000): wait for the write lock instead of failing fast
//   - _txlock=immediate: transactions take the write lock at BEGIN, so two
//     read-then-write transactions can't deadlock on lock upgrade
func (sqliteDialect) prepareDSN(dsn string) string {
	if dsn == "" {
		dsn = "data/feed.db"
	}
	params := "_pragma=foreign_keys(1)&_pragma=journal_mode(WAL)&_pragma=busy_timeout(5000)&_txlock=immediate"
	if strings.Contains(dsn, "?") {
		return dsn + "&" + params
	}
	return dsn + "?" + params
}

func (sqliteDialect) configurePool(conn *sql.DB) {
	conn.SetConnMaxLifetime(5 * time.Minute)
}

func (sqliteDialect) schema() []string {
	return []string{
		`CREATE TABLE IF NOT EXISTS users (
			user_id       INTEGER PRIMARY KEY AUTOINCREMENT,
			username      TEXT NOT NULL UNIQUE,
			salt          TEXT NOT NULL,
			password_hash TEXT NOT NULL,
			created_at    DATETIME NOT NULL DEFAULT CURRENT_TIMESTAMP
		)`,
		`CREATE TABLE IF NOT EXISTS posts (
			post_id    INTEGER PRIMARY KEY AUTOINCREMENT,
			title      TEXT NOT NULL,
			text       TEXT NOT NULL DEFAULT '',
			image_ref  TEXT,
			author_id  INTEGER REFERENCES users(user_id),
			created_at DATETIME NOT NULL DEFAULT CURRENT_TIMESTAMP
		)`,
		`CREATE TABLE IF NOT EXISTS likes (
			user_id INTEGER NOT NULL REFERENCES users(user_id) ON DELETE CASCADE,
			post_id INTEGER NOT NULL REFERENCES posts(post_id) ON DELETE CASCADE,
			UNIQUE (user_id, post_id)
		)`,
		`CREATE INDEX IF NOT EXISTS idx_likes_post_id ON likes(post_id)`,
		`CREATE TABLE IF NOT EXISTS comments (
			child_post_id  INTEGER NOT NULL UNIQUE REFERENCES posts(post_id) ON DELETE CASCADE,
			parent_post_id INTEGER NOT NULL REFERENCES posts(post_id) ON DELETE CASCADE,
			CHECK (child_post_id <> parent_post_id)
		)`,
		`CREATE INDEX IF NOT EXISTS idx_comments_parent ON comments(parent_post_id)`,
	}
}

func (sqliteDialect) rebind(query string) string { return query }

func (sqliteDialect) isUniqueViolation(err error) bool {
	var liteErr *sqlite.Error
	if errors.As(err, &liteErr) {
		switch liteErr.Code() {
		case sqlite3.SQLITE_CONSTRAINT_PRIMARYKEY, sqlite3.SQLITE_CONSTRAINT_UNIQUE:
			return true
		}
	}
	return false
}

func (sqliteDialect) isForeignKeyViolation(err error) bool {
	var liteErr *sqlite.Error
	return errors.As(err, &liteErr) && liteErr.Code() == sqlite3.SQLITE_CONSTRAINT_FOREIGNKEY
}
