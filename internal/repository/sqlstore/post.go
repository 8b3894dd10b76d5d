package sqlstore

import (
	"context"
	"fmt"

	"github.com/sakif/social-feed/internal/apperror"
	"github.com/sakif/social-feed/internal/model"
	"github.com/sakif/social-feed/internal/repository"
)

// compile-time check that *DB implements repository.PostRepository
var _ repository.PostRepository = (*DB)(nil)

// InsertPost stores a new post and returns its assigned id. An anonymous
// author is stored as NULL.
func (db *DB) InsertPost(ctx context.Context, author model.Viewer, p model.NewPost) (int64, error) {
	id, err := db.insertPost(ctx, db.conn, author, p)
	if err != nil {
		return 0, fmt.Errorf("sqlstore: inserting post: %w", err)
	}
	return id, nil
}

func (db *DB) insertPost(ctx context.Context, q queryer, author model.Viewer, p model.NewPost) (int64, error) {
	var id int64
	err := q.QueryRowContext(ctx,
		db.q(`INSERT INTO posts (title, text, image_ref, author_id, created_at)
		 VALUES (?, ?, ?, ?, ?)
		 RETURNING post_id`),
		p.Title,
		p.Text,
		p.ImageRef,
		author.NullableID(),
		now(),
	).Scan(&id)
	if err != nil {
		if db.dialect.isForeignKeyViolation(err) {
			uid, _ := author.UserID()
			return 0, apperror.NotFound("user", uid)
		}
		return 0, apperror.Storage("insert post", err)
	}
	return id, nil
}

// GetPost returns one post with its aggregates scoped to viewer.
func (db *DB) GetPost(ctx context.Context, id int64, viewer model.Viewer) (*model.Post, error) {
	posts, err := db.aggregate(ctx, db.conn, singlePost(id), viewer)
	if err != nil {
		return nil, fmt.Errorf("sqlstore: getting post %d: %w", id, err)
	}
	if len(posts) == 0 {
		return nil, apperror.NotFound("post", id)
	}
	return &posts[0], nil
}

// GetFeed returns up to opts.Limit posts starting at opts.Offset, oldest
// first. Limit 0 means repository.DefaultFeedLimit; the upper bound is the
// caller's business.
func (db *DB) GetFeed(ctx context.Context, viewer model.Viewer, opts repository.ListOptions) ([]model.Post, error) {
	if opts.Limit <= 0 {
		opts.Limit = repository.DefaultFeedLimit
	}
	if opts.Offset < 0 {
		opts.Offset = 0
	}

	posts, err := db.aggregate(ctx, db.conn, feedWindow(opts.Limit, opts.Offset), viewer)
	if err != nil {
		return nil, fmt.Errorf("sqlstore: getting feed (limit=%d offset=%d): %w", opts.Limit, opts.Offset, err)
	}
	return posts, nil
}

func (db *DB) postExists(ctx context.Context, q queryer, id int64) (bool, error) {
	var one int
	err := q.QueryRowContext(ctx, db.q(`SELECT 1 FROM posts WHERE post_id = ?`), id).Scan(&one)
	if err != nil {
		if isNoRows(err) {
			return false, nil
		}
		return false, apperror.Storage("checking post", err)
	}
	return true, nil
}
