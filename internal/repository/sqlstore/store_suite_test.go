package sqlstore

import (
	"context"
	"fmt"
	"math"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sakif/social-feed/internal/apperror"
	"github.com/sakif/social-feed/internal/model"
	"github.com/sakif/social-feed/internal/repository"
)

// runStoreSuite runs every repository behaviour test against databases
// produced by newDB. Each subtest gets its own database.
func runStoreSuite(t *testing.T, newDB func(t *testing.T) *DB) {
	tests := []struct {
		name string
		fn   func(t *testing.T, db *DB)
	}{
		{"CreateUser", testCreateUser},
		{"CreateUser_Duplicate", testCreateUserDuplicate},
		{"GetUser_NotFound", testGetUserNotFound},
		{"InsertPost_AndGet", testInsertPostAndGet},
		{"InsertPost_Anonymous", testInsertPostAnonymous},
		{"InsertPost_UnknownAuthor", testInsertPostUnknownAuthor},
		{"GetPost_NotFound", testGetPostNotFound},
		{"ZeroLikesReportZero", testZeroLikesReportZero},
		{"Feed_Pagination", testFeedPagination},
		{"Feed_StableAfterInsert", testFeedStableAfterInsert},
		{"Feed_HugePageIsEmpty", testFeedHugePageIsEmpty},
		{"Feed_ViewerScopesOnlyViewerLiked", testFeedViewerScoping},
		{"ToggleLike_RoundTrip", testToggleLikeRoundTrip},
		{"ToggleLike_MissingPost", testToggleLikeMissingPost},
		{"ToggleLike_Concurrent", testToggleLikeConcurrent},
		{"Comments_Scenario", testCommentsScenario},
		{"Comments_SelfLink", testCommentSelfLink},
		{"Comments_SingleParent", testCommentSingleParent},
		{"Comments_MissingParent", testCommentMissingParent},
		{"Comments_Aggregates", testCommentAggregates},
		{"NoCrossPostLeakage", testNoCrossPostLeakage},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			tt.fn(t, newDB(t))
		})
	}
}

// =========================================================================
// HELPERS
// =========================================================================

func createTestUser(t *testing.T, db *DB, username string) model.Viewer {
	t.Helper()
	u := &model.User{Username: username, Salt: "00ff", PasswordHash: "abcd"}
	require.NoError(t, db.CreateUser(context.Background(), u))
	return model.Authenticated(u.ID, u.Username)
}

func createTestPost(t *testing.T, db *DB, author model.Viewer, title string) int64 {
	t.Helper()
	id, err := db.InsertPost(context.Background(), author, model.NewPost{Title: title, Text: "body of " + title})
	require.NoError(t, err)
	return id
}

func ids(posts []model.Post) []int64 {
	out := make([]int64, len(posts))
	for i, p := range posts {
		out[i] = p.ID
	}
	return out
}

// =========================================================================
// USERS
// =========================================================================

func testCreateUser(t *testing.T, db *DB) {
	ctx := context.Background()
	u := &model.User{Username: "alice", Salt: "aa", PasswordHash: "bb"}

	require.NoError(t, db.CreateUser(ctx, u))
	assert.NotZero(t, u.ID)
	assert.False(t, u.CreatedAt.IsZero())

	got, err := db.GetUserByUsername(ctx, "alice")
	require.NoError(t, err)
	assert.Equal(t, u.ID, got.ID)
	assert.Equal(t, "aa", got.Salt)
	assert.Equal(t, "bb", got.PasswordHash)

	byID, err := db.GetUserByID(ctx, u.ID)
	require.NoError(t, err)
	assert.Equal(t, "alice", byID.Username)
}

func testCreateUserDuplicate(t *testing.T, db *DB) {
	ctx := context.Background()
	createTestUser(t, db, "alice")

	err := db.CreateUser(ctx, &model.User{Username: "alice", Salt: "cc", PasswordHash: "dd"})
	require.Error(t, err)
	assert.ErrorIs(t, err, apperror.ErrConflict)

	var n int
	require.NoError(t, db.conn.QueryRowContext(ctx,
		db.q(`SELECT COUNT(*) FROM users WHERE username = ?`), "alice").Scan(&n))
	assert.Equal(t, 1, n)

	// The original row is untouched.
	got, err := db.GetUserByUsername(ctx, "alice")
	require.NoError(t, err)
	assert.Equal(t, "00ff", got.Salt)
}

func testGetUserNotFound(t *testing.T, db *DB) {
	_, err := db.GetUserByUsername(context.Background(), "nobody")
	assert.ErrorIs(t, err, apperror.ErrNotFound)

	_, err = db.GetUserByID(context.Background(), 999)
	assert.ErrorIs(t, err, apperror.ErrNotFound)
}

// =========================================================================
// POSTS
// =========================================================================

func testInsertPostAndGet(t *testing.T, db *DB) {
	ctx := context.Background()
	alice := createTestUser(t, db, "alice")
	ref := "cv37rs3pp9olc6atsptg.png"

	id, err := db.InsertPost(ctx, alice, model.NewPost{Title: "first", Text: "hi", ImageRef: &ref})
	require.NoError(t, err)
	assert.NotZero(t, id)

	p, err := db.GetPost(ctx, id, model.Anonymous())
	require.NoError(t, err)
	assert.Equal(t, id, p.ID)
	assert.Equal(t, "first", p.Title)
	assert.Equal(t, "hi", p.Text)
	require.NotNil(t, p.ImageRef)
	assert.Equal(t, ref, *p.ImageRef)
	aliceID, _ := alice.UserID()
	require.NotNil(t, p.AuthorID)
	assert.Equal(t, aliceID, *p.AuthorID)
	assert.False(t, p.CreatedAt.IsZero())
}

func testInsertPostAnonymous(t *testing.T, db *DB) {
	id := createTestPost(t, db, model.Anonymous(), "anon")

	p, err := db.GetPost(context.Background(), id, model.Anonymous())
	require.NoError(t, err)
	assert.Nil(t, p.AuthorID)
	assert.Nil(t, p.ImageRef)
}

func testInsertPostUnknownAuthor(t *testing.T, db *DB) {
	_, err := db.InsertPost(context.Background(), model.Authenticated(12345, "ghost"), model.NewPost{Title: "x"})
	assert.ErrorIs(t, err, apperror.ErrNotFound)
}

func testGetPostNotFound(t *testing.T, db *DB) {
	_, err := db.GetPost(context.Background(), 424242, model.Anonymous())
	assert.ErrorIs(t, err, apperror.ErrNotFound)
}

func testZeroLikesReportZero(t *testing.T, db *DB) {
	ctx := context.Background()
	alice := createTestUser(t, db, "alice")
	id := createTestPost(t, db, alice, "lonely")

	for _, viewer := range []model.Viewer{model.Anonymous(), alice} {
		p, err := db.GetPost(ctx, id, viewer)
		require.NoError(t, err)
		assert.Equal(t, 0, p.LikeCount)
		assert.Equal(t, 0, p.CommentCount)

		feed, err := db.GetFeed(ctx, viewer, repository.ListOptions{Limit: 10})
		require.NoError(t, err)
		require.Len(t, feed, 1)
		assert.Equal(t, 0, feed[0].LikeCount)
		assert.Equal(t, 0, feed[0].CommentCount)
	}
}

func testFeedPagination(t *testing.T, db *DB) {
	ctx := context.Background()
	var want []int64
	for i := 0; i < 25; i++ {
		want = append(want, createTestPost(t, db, model.Anonymous(), fmt.Sprintf("post %d", i)))
	}

	page0, err := db.GetFeed(ctx, model.Anonymous(), repository.PageOptions(10, 0))
	require.NoError(t, err)
	page1, err := db.GetFeed(ctx, model.Anonymous(), repository.PageOptions(10, 1))
	require.NoError(t, err)
	page2, err := db.GetFeed(ctx, model.Anonymous(), repository.PageOptions(10, 2))
	require.NoError(t, err)
	page3, err := db.GetFeed(ctx, model.Anonymous(), repository.PageOptions(10, 3))
	require.NoError(t, err)

	assert.Equal(t, want[0:10], ids(page0))
	assert.Equal(t, want[10:20], ids(page1))
	assert.Equal(t, want[20:25], ids(page2))
	assert.Empty(t, page3)

	// Limit 0 falls back to the default page size.
	def, err := db.GetFeed(ctx, model.Anonymous(), repository.ListOptions{})
	require.NoError(t, err)
	assert.Len(t, def, repository.DefaultFeedLimit)
}

func testFeedHugePageIsEmpty(t *testing.T, db *DB) {
	for i := 0; i < 3; i++ {
		createTestPost(t, db, model.Anonymous(), fmt.Sprintf("post %d", i))
	}

	// 10 * page overflows int; the window must land past every row, not
	// wrap around to the first page.
	posts, err := db.GetFeed(context.Background(), model.Anonymous(), repository.PageOptions(10, math.MaxInt/10+1))
	require.NoError(t, err)
	assert.Empty(t, posts)
}

func testFeedStableAfterInsert(t *testing.T, db *DB) {
	ctx := context.Background()
	for i := 0; i < 12; i++ {
		createTestPost(t, db, model.Anonymous(), fmt.Sprintf("p%d", i))
	}

	before, err := db.GetFeed(ctx, model.Anonymous(), repository.ListOptions{Limit: 10, Offset: 0})
	require.NoError(t, err)

	createTestPost(t, db, model.Anonymous(), "newcomer")

	after, err := db.GetFeed(ctx, model.Anonymous(), repository.ListOptions{Limit: 10, Offset: 0})
	require.NoError(t, err)
	assert.Equal(t, before, after)
}

func testFeedViewerScoping(t *testing.T, db *DB) {
	ctx := context.Background()
	alice := createTestUser(t, db, "alice")
	bob := createTestUser(t, db, "bob")
	aliceID, _ := alice.UserID()
	bobID, _ := bob.UserID()

	p1 := createTestPost(t, db, alice, "one")
	p2 := createTestPost(t, db, alice, "two")

	_, err := db.ToggleLike(ctx, aliceID, p1)
	require.NoError(t, err)
	_, err = db.ToggleLike(ctx, bobID, p1)
	require.NoError(t, err)

	check := func(viewer model.Viewer, want1, want2 *bool) {
		t.Helper()
		feed, err := db.GetFeed(ctx, viewer, repository.ListOptions{Limit: 10})
		require.NoError(t, err)
		require.Len(t, feed, 2)
		assert.Equal(t, p1, feed[0].ID)
		assert.Equal(t, 2, feed[0].LikeCount)
		assert.Equal(t, want1, feed[0].ViewerLiked)
		assert.Equal(t, p2, feed[1].ID)
		assert.Equal(t, 0, feed[1].LikeCount)
		assert.Equal(t, want2, feed[1].ViewerLiked)
	}

	yes, no := true, false
	check(model.Anonymous(), nil, nil)
	check(alice, &yes, &no)

	carol := createTestUser(t, db, "carol")
	check(carol, &no, &no)
}

// =========================================================================
// LIKES
// =========================================================================

func testToggleLikeRoundTrip(t *testing.T, db *DB) {
	ctx := context.Background()
	alice := createTestUser(t, db, "alice")
	aliceID, _ := alice.UserID()
	post := createTestPost(t, db, alice, "likeable")

	liked, err := db.HasLiked(ctx, aliceID, post)
	require.NoError(t, err)
	assert.False(t, liked)

	now, err := db.ToggleLike(ctx, aliceID, post)
	require.NoError(t, err)
	assert.True(t, now)

	liked, _ = db.HasLiked(ctx, aliceID, post)
	assert.True(t, liked)

	now, err = db.ToggleLike(ctx, aliceID, post)
	require.NoError(t, err)
	assert.False(t, now)

	liked, _ = db.HasLiked(ctx, aliceID, post)
	assert.False(t, liked)

	p, err := db.GetPost(ctx, post, alice)
	require.NoError(t, err)
	assert.Equal(t, 0, p.LikeCount)
}

func testToggleLikeMissingPost(t *testing.T, db *DB) {
	ctx := context.Background()
	alice := createTestUser(t, db, "alice")
	aliceID, _ := alice.UserID()

	_, err := db.ToggleLike(ctx, aliceID, 9999)
	assert.ErrorIs(t, err, apperror.ErrNotFound)

	var n int
	require.NoError(t, db.conn.QueryRowContext(ctx, `SELECT COUNT(*) FROM likes`).Scan(&n))
	assert.Zero(t, n, "no orphaned like may be written")
}

func testToggleLikeConcurrent(t *testing.T, db *DB) {
	ctx := context.Background()
	post := createTestPost(t, db, model.Anonymous(), "popular")

	const users = 8
	viewers := make([]int64, users)
	for i := range viewers {
		viewers[i], _ = createTestUser(t, db, fmt.Sprintf("user%d", i)).UserID()
	}

	var wg sync.WaitGroup
	errs := make(chan error, users)
	for _, uid := range viewers {
		wg.Add(1)
		go func(uid int64) {
			defer wg.Done()
			if _, err := db.ToggleLike(ctx, uid, post); err != nil {
				errs <- err
			}
		}(uid)
	}
	wg.Wait()
	close(errs)
	for err := range errs {
		t.Errorf("ToggleLike() concurrent error = %v", err)
	}

	p, err := db.GetPost(ctx, post, model.Anonymous())
	require.NoError(t, err)
	assert.Equal(t, users, p.LikeCount)
}

// =========================================================================
// COMMENTS
// =========================================================================

func testCommentsScenario(t *testing.T, db *DB) {
	ctx := context.Background()
	author := createTestUser(t, db, "author")

	a, err := db.InsertPost(ctx, author, model.NewPost{Title: "first", Text: "hi"})
	require.NoError(t, err)

	b, err := db.InsertPost(ctx, author, model.NewPost{Title: "reply", Text: "hello back"})
	require.NoError(t, err)
	require.NoError(t, db.AddComment(ctx, b, a))

	comments, err := db.GetComments(ctx, a, model.Anonymous())
	require.NoError(t, err)
	require.Len(t, comments, 1)
	assert.Equal(t, b, comments[0].ID)
	assert.Equal(t, 0, comments[0].CommentCount)
	assert.Nil(t, comments[0].ViewerLiked)

	parent, err := db.GetPost(ctx, a, model.Anonymous())
	require.NoError(t, err)
	assert.Equal(t, 1, parent.CommentCount)
}

func testCommentSelfLink(t *testing.T, db *DB) {
	a := createTestPost(t, db, model.Anonymous(), "a")

	err := db.AddComment(context.Background(), a, a)
	assert.ErrorIs(t, err, apperror.ErrValidation)
}

func testCommentSingleParent(t *testing.T, db *DB) {
	ctx := context.Background()
	a := createTestPost(t, db, model.Anonymous(), "a")
	b := createTestPost(t, db, model.Anonymous(), "b")
	c := createTestPost(t, db, model.Anonymous(), "c")

	require.NoError(t, db.AddComment(ctx, c, a))
	err := db.AddComment(ctx, c, b)
	assert.ErrorIs(t, err, apperror.ErrConflict)

	comments, err := db.GetComments(ctx, b, model.Anonymous())
	require.NoError(t, err)
	assert.Empty(t, comments)
}

func testCommentMissingParent(t *testing.T, db *DB) {
	ctx := context.Background()
	author := createTestUser(t, db, "author")

	_, err := db.CreateComment(ctx, 777, author, model.NewPost{Title: "orphan"})
	assert.ErrorIs(t, err, apperror.ErrNotFound)

	// The child post insert was rolled back with the failed link.
	feed, err := db.GetFeed(ctx, model.Anonymous(), repository.ListOptions{Limit: 10})
	require.NoError(t, err)
	assert.Empty(t, feed)

	_, err = db.GetComments(ctx, 777, model.Anonymous())
	assert.ErrorIs(t, err, apperror.ErrNotFound)
}

func testCommentAggregates(t *testing.T, db *DB) {
	ctx := context.Background()
	alice := createTestUser(t, db, "alice")
	aliceID, _ := alice.UserID()
	parent := createTestPost(t, db, alice, "parent")

	c1, err := db.CreateComment(ctx, parent, alice, model.NewPost{Title: "c1", Text: "one"})
	require.NoError(t, err)
	c2, err := db.CreateComment(ctx, parent, model.Anonymous(), model.NewPost{Title: "c2", Text: "two"})
	require.NoError(t, err)
	// A comment can itself carry comments; they count but aren't threaded here.
	_, err = db.CreateComment(ctx, c2, alice, model.NewPost{Title: "c2.1"})
	require.NoError(t, err)

	_, err = db.ToggleLike(ctx, aliceID, c1)
	require.NoError(t, err)

	comments, err := db.GetComments(ctx, parent, alice)
	require.NoError(t, err)
	require.Equal(t, []int64{c1, c2}, ids(comments))

	yes, no := true, false
	assert.Equal(t, 1, comments[0].LikeCount)
	assert.Equal(t, &yes, comments[0].ViewerLiked)
	assert.Equal(t, 0, comments[0].CommentCount)

	assert.Equal(t, 0, comments[1].LikeCount)
	assert.Equal(t, &no, comments[1].ViewerLiked)
	assert.Equal(t, 1, comments[1].CommentCount)

	p, err := db.GetPost(ctx, parent, model.Anonymous())
	require.NoError(t, err)
	assert.Equal(t, 2, p.CommentCount)
}

// Aggregates from one post must never attach to another.
func testNoCrossPostLeakage(t *testing.T, db *DB) {
	ctx := context.Background()
	var viewers []int64
	for i := 0; i < 3; i++ {
		id, _ := createTestUser(t, db, fmt.Sprintf("u%d", i)).UserID()
		viewers = append(viewers, id)
	}

	posts := make([]int64, 4)
	for i := range posts {
		posts[i] = createTestPost(t, db, model.Anonymous(), fmt.Sprintf("post-%d", i))
	}

	// post i gets i likes and (3-i) comments
	for i, pid := range posts {
		for j := 0; j < i; j++ {
			_, err := db.ToggleLike(ctx, viewers[j], pid)
			require.NoError(t, err)
		}
		for j := 0; j < 3-i; j++ {
			_, err := db.CreateComment(ctx, pid, model.Anonymous(), model.NewPost{Title: "c"})
			require.NoError(t, err)
		}
	}

	feed, err := db.GetFeed(ctx, model.Anonymous(), repository.ListOptions{Limit: 4})
	require.NoError(t, err)
	require.Len(t, feed, 4)
	for i, p := range feed {
		assert.Equal(t, posts[i], p.ID)
		assert.Equal(t, fmt.Sprintf("post-%d", i), p.Title)
		assert.Equal(t, i, p.LikeCount, "post %d like count", i)
		assert.Equal(t, 3-i, p.CommentCount, "post %d comment count", i)
	}
}
