// Package repository declares the storage contracts the service layer
// depends on. The sqlstore package implements all of them on one *DB.
package repository

import (
	"context"
	"math"

	"github.com/sakif/social-feed/internal/model"
)

const (
	DefaultFeedLimit = 10
	MaxFeedLimit     = 100
)

// ListOptions selects one window of the feed.
type ListOptions struct {
	Limit  int
	Offset int
}

// Normalize clamps Limit into [1, MaxFeedLimit] (0 means default) and
// Offset to be non-negative.
func (o ListOptions) Normalize() ListOptions {
	if o.Limit <= 0 {
		o.Limit = DefaultFeedLimit
	}
	if o.Limit > MaxFeedLimit {
		o.Limit = MaxFeedLimit
	}
	if o.Offset < 0 {
		o.Offset = 0
	}
	return o
}

// PageOptions converts a zero-based page number into a window. A page whose
// offset does not fit in an int saturates at math.MaxInt, past any real row.
func PageOptions(limit, page int) ListOptions {
	o := ListOptions{Limit: limit}.Normalize()
	switch {
	case page > MaxPage(o.Limit):
		o.Offset = math.MaxInt
	case page > 0:
		o.Offset = o.Limit * page
	}
	return o
}

// MaxPage is the largest page number whose offset limit*page fits in an int.
func MaxPage(limit int) int {
	if limit <= 0 {
		limit = DefaultFeedLimit
	}
	return math.MaxInt / limit
}

type UserRepository interface {
	// CreateUser inserts the user and sets user.ID. A taken username yields
	// apperror.ErrConflict.
	CreateUser(ctx context.Context, user *model.User) error
	GetUserByUsername(ctx context.Context, username string) (*model.User, error)
	GetUserByID(ctx context.Context, id int64) (*model.User, error)
}

type PostRepository interface {
	InsertPost(ctx context.Context, author model.Viewer, p model.NewPost) (int64, error)
	GetPost(ctx context.Context, id int64, viewer model.Viewer) (*model.Post, error)
	GetFeed(ctx context.Context, viewer model.Viewer, opts ListOptions) ([]model.Post, error)
}

type LikeRepository interface {
	HasLiked(ctx context.Context, userID, postID int64) (bool, error)
	ToggleLike(ctx context.Context, userID, postID int64) (bool, error)
}

type CommentRepository interface {
	AddComment(ctx context.Context, childID, parentID int64) error
	// CreateComment inserts the child post and links it under parentID as
	// one unit of work, returning the child's id.
	CreateComment(ctx context.Context, parentID int64, author model.Viewer, p model.NewPost) (int64, error)
	GetComments(ctx context.Context, parentID int64, viewer model.Viewer) ([]model.Post, error)
}

// FeedRepository is everything the feed service needs.
type FeedRepository interface {
	PostRepository
	LikeRepository
	CommentRepository
}
