package sqlstore

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/sakif/social-feed/internal/apperror"
	"github.com/sakif/social-feed/internal/model"
	"github.com/sakif/social-feed/internal/repository"
)

// compile-time check that *DB implements repository.UserRepository
var _ repository.UserRepository = (*DB)(nil)

// CreateUser inserts a user and fills in ID and CreatedAt.
//
// Username uniqueness is enforced by the UNIQUE constraint, not by a prior
// SELECT: two concurrent registrations for the same name can't both win.
func (db *DB) CreateUser(ctx context.Context, user *model.User) error {
	user.CreatedAt = now()

	err := db.conn.QueryRowContext(ctx,
		db.q(`INSERT INTO users (username, salt, password_hash, created_at)
		 VALUES (?, ?, ?, ?)
		 RETURNING user_id`),
		user.Username,
		user.Salt,
		user.PasswordHash,
		user.CreatedAt,
	).Scan(&user.ID)
	if err != nil {
		if db.dialect.isUniqueViolation(err) {
			return apperror.DuplicateUsername(user.Username)
		}
		return fmt.Errorf("sqlstore: inserting user: %w", apperror.Storage("insert user", err))
	}

	return nil
}

// GetUserByUsername returns apperror.ErrNotFound if no such user exists.
func (db *DB) GetUserByUsername(ctx context.Context, username string) (*model.User, error) {
	u, err := db.getUser(ctx, `WHERE username = ?`, username)
	if err != nil {
		return nil, fmt.Errorf("sqlstore: getting user %q: %w", username, err)
	}
	return u, nil
}

// GetUserByID returns apperror.ErrNotFound if no user exists with that ID.
func (db *DB) GetUserByID(ctx context.Context, id int64) (*model.User, error) {
	u, err := db.getUser(ctx, `WHERE user_id = ?`, id)
	if err != nil {
		return nil, fmt.Errorf("sqlstore: getting user %d: %w", id, err)
	}
	return u, nil
}

func (db *DB) getUser(ctx context.Context, where string, arg any) (*model.User, error) {
	var u model.User

	err := db.conn.QueryRowContext(ctx,
		db.q(`SELECT user_id, username, salt, password_hash, created_at FROM users `+where),
		arg,
	).Scan(&u.ID, &u.Username, &u.Salt, &u.PasswordHash, &u.CreatedAt)
	if err != nil {
		if isNoRows(err) {
			return nil, apperror.NotFound("user", arg)
		}
		return nil, apperror.Storage("select user", err)
	}

	return &u, nil
}

func isNoRows(err error) bool {
	return errors.Is(err, sql.ErrNoRows)
}
