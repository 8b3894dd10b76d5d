// Package model defines the data structures used throughout the application.
package model

import "time"

// Post is a single entry in the feed. Comments are Posts too: a comment is a
// Post that has been linked under a parent via the comments table.
//
// The last three fields are aggregates. They are never stored; every read
// computes them from the likes and comments tables.
//
// ViewerLiked is three-valued:
//
//	nil    → the read was anonymous, nothing to report
//	false  → the viewer has not liked this post
//	true   → the viewer has liked this post
type Post struct {
	ID        int64     `json:"id"`
	Title     string    `json:"title"`
	Text      string    `json:"text"`
	ImageRef  *string   `json:"imageRef,omitempty"` // opaque media reference, nil if no image
	AuthorID  *int64    `json:"authorId,omitempty"` // nil for anonymous posts
	CreatedAt time.Time `json:"createdAt"`

	LikeCount    int   `json:"likeCount"`
	ViewerLiked  *bool `json:"viewerLiked,omitempty"`
	CommentCount int   `json:"commentCount"`
}

// NewPost holds the caller-supplied fields for a post insert.
type NewPost struct {
	Title    string
	Text     string
	ImageRef *string
}

// FeedPage is one window of the feed.
type FeedPage struct {
	Page    int    `json:"page"`
	Limit   int    `json:"limit"`
	Posts   []Post `json:"posts"`
	HasMore bool   `json:"hasMore"`
}
