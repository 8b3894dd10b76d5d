// Package service contains the business logic layer of the application.
//
//	Handler (HTTP layer)     → parses requests, writes responses
//	Service (Business layer) → validates, enforces identity rules, orchestrates
//	Repository (Data layer)  → reads/writes the database
//
// Services accept primitives and model types, never *http.Request, so the
// same logic serves the HTTP API and the CLI.
package service

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"time"
	"unicode/utf8"

	"github.com/sakif/social-feed/internal/apperror"
	"github.com/sakif/social-feed/internal/media"
	"github.com/sakif/social-feed/internal/model"
	"github.com/sakif/social-feed/internal/repository"
)

const (
	MaxTitleLength = 200
	MaxTextLength  = 10000
)

// PostInput is what a caller submits for a post or a comment.
type PostInput struct {
	Title string
	Text  string
	Image []byte // optional raw upload
}

// FeedService handles posts, likes and comments.
type FeedService struct {
	repo   repository.FeedRepository
	images media.Store
	logger *slog.Logger
}

// NewFeedService creates a FeedService. images may be nil, in which case
// uploads are rejected.
func NewFeedService(repo repository.FeedRepository, images media.Store, logger *slog.Logger) *FeedService {
	return &FeedService{
		repo:   repo,
		images: images,
		logger: logger,
	}
}

// CreatePost validates and stores a new post authored by viewer.
func (s *FeedService) CreatePost(ctx context.Context, viewer model.Viewer, in PostInput) (*model.Post, error) {
	if viewer.IsAnonymous() {
		return nil, apperror.Unauthenticated("create posts")
	}

	np, err := s.prepare(ctx, in)
	if err != nil {
		return nil, err
	}

	id, err := s.repo.InsertPost(ctx, viewer, np)
	if err != nil {
		s.discardImage(np.ImageRef)
		return nil, fmt.Errorf("service/feed: creating post: %w", err)
	}

	s.logger.Info("post created",
		slog.Int64("postID", id),
		slog.String("viewer", viewer.String()),
		slog.Bool("image", np.ImageRef != nil),
	)

	return s.GetPost(ctx, id, viewer)
}

// GetPost returns one post with aggregates scoped to viewer.
func (s *FeedService) GetPost(ctx context.Context, id int64, viewer model.Viewer) (*model.Post, error) {
	p, err := s.repo.GetPost(ctx, id, viewer)
	if err != nil {
		return nil, fmt.Errorf("service/feed: getting post %d: %w", id, err)
	}
	return p, nil
}

// Feed returns page (zero-based) of the feed with limit posts per page.
// limit 0 means the default; it is capped at repository.MaxFeedLimit.
func (s *FeedService) Feed(ctx context.Context, viewer model.Viewer, page, limit int) (*model.FeedPage, error) {
	if page < 0 {
		return nil, apperror.ValidationFailed("page", "page must not be negative")
	}
	if limit < 0 {
		return nil, apperror.ValidationFailed("limit", "limit must not be negative")
	}

	opts := repository.PageOptions(limit, page)
	if page > repository.MaxPage(opts.Limit) {
		return nil, apperror.ValidationFailed("page",
			fmt.Sprintf("page must be at most %d for limit %d", repository.MaxPage(opts.Limit), opts.Limit))
	}

	// Ask for one extra row to learn whether another page exists.
	posts, err := s.repo.GetFeed(ctx, viewer, repository.ListOptions{Limit: opts.Limit + 1, Offset: opts.Offset})
	if err != nil {
		return nil, fmt.Errorf("service/feed: listing page %d: %w", page, err)
	}

	hasMore := len(posts) > opts.Limit
	if hasMore {
		posts = posts[:opts.Limit]
	}

	return &model.FeedPage{
		Page:    page,
		Limit:   opts.Limit,
		Posts:   posts,
		HasMore: hasMore,
	}, nil
}

// ToggleLike flips viewer's like on postID and returns the new state.
func (s *FeedService) ToggleLike(ctx context.Context, viewer model.Viewer, postID int64) (bool, error) {
	userID, ok := viewer.UserID()
	if !ok {
		return false, apperror.Unauthenticated("like posts")
	}

	liked, err := s.repo.ToggleLike(ctx, userID, postID)
	if err != nil {
		return false, fmt.Errorf("service/feed: toggling like on %d: %w", postID, err)
	}

	s.logger.Debug("like toggled",
		slog.Int64("postID", postID),
		slog.Int64("userID", userID),
		slog.Bool("liked", liked),
	)
	return liked, nil
}

// HasLiked reports whether the viewer likes postID. Anonymous viewers like
// nothing.
func (s *FeedService) HasLiked(ctx context.Context, viewer model.Viewer, postID int64) (bool, error) {
	userID, ok := viewer.UserID()
	if !ok {
		return false, nil
	}
	liked, err := s.repo.HasLiked(ctx, userID, postID)
	if err != nil {
		return false, fmt.Errorf("service/feed: checking like on %d: %w", postID, err)
	}
	return liked, nil
}

// AddComment creates a post from in and attaches it under parentID.
func (s *FeedService) AddComment(ctx context.Context, viewer model.Viewer, parentID int64, in PostInput) (*model.Post, error) {
	if viewer.IsAnonymous() {
		return nil, apperror.Unauthenticated("comment")
	}

	np, err := s.prepare(ctx, in)
	if err != nil {
		return nil, err
	}

	id, err := s.repo.CreateComment(ctx, parentID, viewer, np)
	if err != nil {
		s.discardImage(np.ImageRef)
		return nil, fmt.Errorf("service/feed: commenting on %d: %w", parentID, err)
	}

	s.logger.Info("comment created",
		slog.Int64("postID", id),
		slog.Int64("parentID", parentID),
		slog.String("viewer", viewer.String()),
	)

	return s.GetPost(ctx, id, viewer)
}

// Comments returns the comments of parentID, oldest first.
func (s *FeedService) Comments(ctx context.Context, parentID int64, viewer model.Viewer) ([]model.Post, error) {
	posts, err := s.repo.GetComments(ctx, parentID, viewer)
	if err != nil {
		return nil, fmt.Errorf("service/feed: listing comments of %d: %w", parentID, err)
	}
	return posts, nil
}

// discardImage removes an image whose post was never stored. It runs on a
// fresh context so a cancelled request still cleans up.
func (s *FeedService) discardImage(ref *string) {
	if ref == nil || s.images == nil {
		return
	}
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := s.images.Delete(ctx, *ref); err != nil {
		s.logger.Warn("orphaned image left behind",
			slog.String("ref", *ref),
			slog.String("error", err.Error()),
		)
	}
}

// prepare validates in and stores its image, if any.
func (s *FeedService) prepare(ctx context.Context, in PostInput) (model.NewPost, error) {
	title := strings.TrimSpace(in.Title)
	if title == "" {
		return model.NewPost{}, apperror.ValidationFailed("title", "title is required")
	}
	if utf8.RuneCountInString(title) > MaxTitleLength {
		return model.NewPost{}, apperror.ValidationFailed("title",
			fmt.Sprintf("title must be at most %d characters", MaxTitleLength))
	}
	if utf8.RuneCountInString(in.Text) > MaxTextLength {
		return model.NewPost{}, apperror.ValidationFailed("text",
			fmt.Sprintf("text must be at most %d characters", MaxTextLength))
	}

	np := model.NewPost{Title: title, Text: in.Text}

	if len(in.Image) > 0 {
		if s.images == nil {
			return model.NewPost{}, apperror.ValidationFailed("image", "image uploads are disabled")
		}
		ref, err := s.images.Save(ctx, in.Image)
		if err != nil {
			return model.NewPost{}, fmt.Errorf("service/feed: storing image: %w", err)
		}
		np.ImageRef = &ref
	}

	return np, nil
}
