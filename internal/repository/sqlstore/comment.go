package sqlstore

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/sakif/social-feed/internal/apperror"
	"github.com/sakif/social-feed/internal/model"
	"github.com/sakif/social-feed/internal/repository"
)

var _ repository.CommentRepository = (*DB)(nil)

// AddComment links an existing post under parentID.
//
// A post can be a comment of at most one parent and never of itself. Both
// rules are also constraints in the schema; checking them here gives callers
// typed errors instead of a driver message.
func (db *DB) AddComment(ctx context.Context, childID, parentID int64) error {
	err := db.withTx(ctx, "add comment", func(tx *sql.Tx) error {
		return db.link(ctx, tx, childID, parentID)
	})
	if err != nil {
		return fmt.Errorf("sqlstore: linking post %d under %d: %w", childID, parentID, err)
	}
	return nil
}

// CreateComment inserts the comment's post and its link in one transaction,
// so a failed link never leaves a stray post behind.
func (db *DB) CreateComment(ctx context.Context, parentID int64, author model.Viewer, p model.NewPost) (int64, error) {
	var childID int64

	err := db.withTx(ctx, "create comment", func(tx *sql.Tx) error {
		var err error
		childID, err = db.insertPost(ctx, tx, author, p)
		if err != nil {
			return err
		}
		return db.link(ctx, tx, childID, parentID)
	})
	if err != nil {
		return 0, fmt.Errorf("sqlstore: creating comment on post %d: %w", parentID, err)
	}

	return childID, nil
}

func (db *DB) link(ctx context.Context, tx *sql.Tx, childID, parentID int64) error {
	if childID == parentID {
		return apperror.ValidationFailed("parentId", "a post cannot be a comment of itself")
	}

	for _, id := range []int64{parentID, childID} {
		exists, err := db.postExists(ctx, tx, id)
		if err != nil {
			return err
		}
		if !exists {
			return apperror.NotFound("post", id)
		}
	}

	_, err := tx.ExecContext(ctx,
		db.q(`INSERT INTO comments (child_post_id, parent_post_id) VALUES (?, ?)`),
		childID, parentID,
	)
	if err != nil {
		if db.dialect.isUniqueViolation(err) {
			return apperror.Conflict("comment", childID)
		}
		return apperror.Storage("insert comment link", err)
	}
	return nil
}

// GetComments returns every post linked under parentID, oldest first, each
// with the same aggregates as any other post. A missing parent yields
// apperror.ErrNotFound; a parent without comments yields an empty slice.
func (db *DB) GetComments(ctx context.Context, parentID int64, viewer model.Viewer) ([]model.Post, error) {
	exists, err := db.postExists(ctx, db.conn, parentID)
	if err != nil {
		return nil, fmt.Errorf("sqlstore: getting comments of %d: %w", parentID, err)
	}
	if !exists {
		return nil, apperror.NotFound("post", parentID)
	}

	posts, err := db.aggregate(ctx, db.conn, commentsOf(parentID), viewer)
	if err != nil {
		return nil, fmt.Errorf("sqlstore: getting comments of %d: %w", parentID, err)
	}
	return posts, nil
}
