package sqlstore

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/sakif/social-feed/internal/apperror"
	"github.com/sakif/social-feed/internal/repository"
)

var _ repository.LikeRepository = (*DB)(nil)

func (db *DB) HasLiked(ctx context.Context, userID, postID int64) (bool, error) {
	var one int
	err := db.conn.QueryRowContext(ctx,
		db.q(`SELECT 1 FROM likes WHERE user_id = ? AND post_id = ?`),
		userID, postID,
	).Scan(&one)
	if err != nil {
		if isNoRows(err) {
			return false, nil
		}
		return false, fmt.Errorf("sqlstore: checking like: %w", apperror.Storage("select like", err))
	}
	return true, nil
}

// ToggleLike flips the (user, post) like and reports the new state.
//
// One transaction: try DELETE; if it removed a row the post is now unliked.
// Otherwise INSERT ... ON CONFLICT DO NOTHING and report liked. A concurrent
// toggle that inserted first leaves the row in place, and the caller still
// observes "liked", which is the state the store is in.
//
// A missing post yields apperror.ErrNotFound and writes nothing.
func (db *DB) ToggleLike(ctx context.Context, userID, postID int64) (bool, error) {
	var liked bool

	err := db.withTx(ctx, "toggle like", func(tx *sql.Tx) error {
		res, err := tx.ExecContext(ctx,
			db.q(`DELETE FROM likes WHERE user_id = ? AND post_id = ?`),
			userID, postID,
		)
		if err != nil {
			return apperror.Storage("delete like", err)
		}
		n, err := res.RowsAffected()
		if err != nil {
			return apperror.Storage("delete like: rows affected", err)
		}
		if n > 0 {
			liked = false
			return nil
		}

		exists, err := db.postExists(ctx, tx, postID)
		if err != nil {
			return err
		}
		if !exists {
			return apperror.NotFound("post", postID)
		}

		_, err = tx.ExecContext(ctx,
			db.q(`INSERT INTO likes (user_id, post_id) VALUES (?, ?)
			 ON CONFLICT (user_id, post_id) DO NOTHING`),
			userID, postID,
		)
		if err != nil {
			if db.dialect.isForeignKeyViolation(err) {
				return apperror.NotFound("user", userID)
			}
			return apperror.Storage("insert like", err)
		}
		liked = true
		return nil
	})
	if err != nil {
		return false, fmt.Errorf("sqlstore: toggling like (user=%d post=%d): %w", userID, postID, err)
	}

	return liked, nil
}
