package sqlstore

import (
	"context"
	"database/sql"
	"fmt"
	"strings"

	"github.com/sakif/social-feed/internal/apperror"
	"github.com/sakif/social-feed/internal/model"
)

// AGGREGATION QUERY ENGINE
//
// Every read path (one post, one feed page, one post's comments) differs only
// in WHICH post ids it wants. That set is the "candidate set". Given it, one
// statement computes for each candidate:
//
//	like_count    = COUNT(likes) for the post          (0, never NULL)
//	viewer_liked  = does (viewer, post) exist in likes (NULL when anonymous)
//	comment_count = COUNT(comments) parented on it     (0, never NULL)
//
// and LEFT JOINs them onto the post rows. The candidate CTE is JOINed (not
// LEFT JOINed) to posts, and every aggregate CTE is grouped by post id, so
// each candidate post appears exactly once and only its own counts attach to
// it.
//
// The whole thing is a single SELECT, so on both backends it reads from one
// statement-level snapshot.

// candidateSet is a SELECT yielding one column named post_id.
type candidateSet struct {
	what  string
	query string
	args  []any
}

func singlePost(id int64) candidateSet {
	return candidateSet{
		what:  "post",
		query: `SELECT post_id FROM posts WHERE post_id = ?`,
		args:  []any{id},
	}
}

// feedWindow orders by post_id so a page keeps its content when newer posts
// are inserted.
func feedWindow(limit, offset int) candidateSet {
	return candidateSet{
		what:  "feed",
		query: `SELECT post_id FROM posts ORDER BY post_id LIMIT ? OFFSET ?`,
		args:  []any{limit, offset},
	}
}

func commentsOf(parentID int64) candidateSet {
	return candidateSet{
		what:  "comments",
		query: `SELECT child_post_id AS post_id FROM comments WHERE parent_post_id = ?`,
		args:  []any{parentID},
	}
}

// buildAggregateQuery assembles the statement for c as seen by viewer.
// Placeholders appear in text order: candidate args, then the viewer id.
func buildAggregateQuery(c candidateSet, viewer model.Viewer) (string, []any) {
	var b strings.Builder
	args := append([]any{}, c.args...)

	b.WriteString("WITH candidate AS (")
	b.WriteString(c.query)
	b.WriteString(`),
like_count AS (
	SELECT l.post_id, COUNT(*) AS n
	FROM likes l JOIN candidate k ON k.post_id = l.post_id
	GROUP BY l.post_id
),
comment_count AS (
	SELECT cm.parent_post_id AS post_id, COUNT(*) AS n
	FROM comments cm JOIN candidate k ON k.post_id = cm.parent_post_id
	GROUP BY cm.parent_post_id
)`)

	viewerID, authed := viewer.UserID()
	if authed {
		b.WriteString(`,
viewer_like AS (
	SELECT DISTINCT l.post_id
	FROM likes l JOIN candidate k ON k.post_id = l.post_id
	WHERE l.user_id = ?
)`)
		args = append(args, viewerID)
	}

	b.WriteString(`
SELECT p.post_id, p.title, p.text, p.image_ref, p.author_id, p.created_at,
	COALESCE(lc.n, 0) AS like_count,
`)
	if authed {
		b.WriteString("\tCASE WHEN vl.post_id IS NULL THEN FALSE ELSE TRUE END AS viewer_liked,\n")
	} else {
		b.WriteString("\tCAST(NULL AS BOOLEAN) AS viewer_liked,\n")
	}
	b.WriteString(`	COALESCE(cc.n, 0) AS comment_count
FROM posts p
JOIN candidate k ON k.post_id = p.post_id
LEFT JOIN like_count lc ON lc.post_id = p.post_id
LEFT JOIN comment_count cc ON cc.post_id = p.post_id
`)
	if authed {
		b.WriteString("LEFT JOIN viewer_like vl ON vl.post_id = p.post_id\n")
	}
	b.WriteString("ORDER BY p.post_id")

	return b.String(), args
}

// aggregate runs the engine for c and returns the populated posts in
// post_id order.
func (db *DB) aggregate(ctx context.Context, q queryer, c candidateSet, viewer model.Viewer) ([]model.Post, error) {
	query, args := buildAggregateQuery(c, viewer)

	rows, err := q.QueryContext(ctx, db.q(query), args...)
	if err != nil {
		return nil, apperror.Storage("aggregating "+c.what, err)
	}
	defer rows.Close()

	posts := make([]model.Post, 0)
	for rows.Next() {
		p, err := scanPost(rows)
		if err != nil {
			return nil, apperror.Storage("scanning "+c.what+" row", err)
		}
		posts = append(posts, p)
	}
	if err := rows.Err(); err != nil {
		return nil, apperror.Storage("iterating "+c.what, err)
	}

	return posts, nil
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanPost(r rowScanner) (model.Post, error) {
	var (
		p           model.Post
		imageRef    sql.NullString
		authorID    sql.NullInt64
		viewerLiked sql.NullBool
	)
	if err := r.Scan(
		&p.ID, &p.Title, &p.Text, &imageRef, &authorID, &p.CreatedAt,
		&p.LikeCount, &viewerLiked, &p.CommentCount,
	); err != nil {
		return model.Post{}, fmt.Errorf("scan post: %w", err)
	}

	if imageRef.Valid {
		p.ImageRef = &imageRef.String
	}
	if authorID.Valid {
		p.AuthorID = &authorID.Int64
	}
	if viewerLiked.Valid {
		p.ViewerLiked = &viewerLiked.Bool
	}
	return p, nil
}
