package handler

import (
	"errors"
	"io"
	"log/slog"
	"mime"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"

	"github.com/sakif/social-feed/internal/apperror"
	"github.com/sakif/social-feed/internal/auth"
	"github.com/sakif/social-feed/internal/media"
	"github.com/sakif/social-feed/internal/service"
)

// maxPostBody bounds a create request: the largest image plus room for the
// form fields and multipart framing.
const maxPostBody = media.MaxImageBytes + 1<<20

// PostHandler serves the feed, single posts, likes and comments.
//
// Read routes run behind OptionalAuth: anyone can read, a valid token only
// adds viewerLiked. Write routes run behind RequireAuth.
type PostHandler struct {
	feed   *service.FeedService
	logger *slog.Logger
}

// NewPostHandler creates a PostHandler.
func NewPostHandler(feed *service.FeedService, logger *slog.Logger) *PostHandler {
	return &PostHandler{feed: feed, logger: logger}
}

type postRequest struct {
	Title string `json:"title"`
	Text  string `json:"text"`
}

type likeResponse struct {
	PostID int64 `json:"postId"`
	Liked  bool  `json:"liked"`
}

// HandleFeed returns one page of the feed.
//
// HTTP: GET /api/posts?page=0&limit=10
func (h *PostHandler) HandleFeed(w http.ResponseWriter, r *http.Request) {
	page, err := queryInt(r, "page")
	if err != nil {
		writeError(w, err)
		return
	}
	limit, err := queryInt(r, "limit")
	if err != nil {
		writeError(w, err)
		return
	}

	result, err := h.feed.Feed(r.Context(), auth.ViewerFromContext(r.Context()), page, limit)
	if err != nil {
		writeError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, result)
}

// HandleGet returns one post.
//
// HTTP: GET /api/posts/{id}
func (h *PostHandler) HandleGet(w http.ResponseWriter, r *http.Request) {
	id, err := postIDParam(r)
	if err != nil {
		writeError(w, err)
		return
	}

	post, err := h.feed.GetPost(r.Context(), id, auth.ViewerFromContext(r.Context()))
	if err != nil {
		writeError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, post)
}

// HandleCreate creates a post.
//
// HTTP: POST /api/posts
//
// Two body encodings are accepted:
//   - application/json:    {"title": "...", "text": "..."}
//   - multipart/form-data: fields "title" and "text", optional file "image"
func (h *PostHandler) HandleCreate(w http.ResponseWriter, r *http.Request) {
	in, err := readPostInput(w, r)
	if err != nil {
		writeError(w, err)
		return
	}

	post, err := h.feed.CreatePost(r.Context(), auth.ViewerFromContext(r.Context()), in)
	if err != nil {
		writeError(w, err)
		return
	}

	writeJSON(w, http.StatusCreated, post)
}

// HandleToggleLike flips the caller's like on a post.
//
// HTTP: POST /api/posts/{id}/like
// RESPONSE: {"postId": 42, "liked": true}
func (h *PostHandler) HandleToggleLike(w http.ResponseWriter, r *http.Request) {
	id, err := postIDParam(r)
	if err != nil {
		writeError(w, err)
		return
	}

	liked, err := h.feed.ToggleLike(r.Context(), auth.ViewerFromContext(r.Context()), id)
	if err != nil {
		writeError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, likeResponse{PostID: id, Liked: liked})
}

// HandleComments lists the comments of a post, oldest first.
//
// HTTP: GET /api/posts/{id}/comments
func (h *PostHandler) HandleComments(w http.ResponseWriter, r *http.Request) {
	id, err := postIDParam(r)
	if err != nil {
		writeError(w, err)
		return
	}

	comments, err := h.feed.Comments(r.Context(), id, auth.ViewerFromContext(r.Context()))
	if err != nil {
		writeError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, comments)
}

// HandleCreateComment creates a post and attaches it as a comment.
//
// HTTP: POST /api/posts/{id}/comments
// Body: same encodings as HandleCreate.
func (h *PostHandler) HandleCreateComment(w http.ResponseWriter, r *http.Request) {
	parentID, err := postIDParam(r)
	if err != nil {
		writeError(w, err)
		return
	}

	in, err := readPostInput(w, r)
	if err != nil {
		writeError(w, err)
		return
	}

	comment, err := h.feed.AddComment(r.Context(), auth.ViewerFromContext(r.Context()), parentID, in)
	if err != nil {
		writeError(w, err)
		return
	}

	writeJSON(w, http.StatusCreated, comment)
}

// postIDParam reads the {id} URL parameter.
func postIDParam(r *http.Request) (int64, error) {
	raw := chi.URLParam(r, "id")
	id, err := strconv.ParseInt(raw, 10, 64)
	if err != nil || id <= 0 {
		return 0, apperror.ValidationFailed("id", "post id must be a positive integer")
	}
	return id, nil
}

// readPostInput decodes a JSON or multipart post body.
func readPostInput(w http.ResponseWriter, r *http.Request) (service.PostInput, error) {
	r.Body = http.MaxBytesReader(w, r.Body, maxPostBody)

	mediaType, _, _ := mime.ParseMediaType(r.Header.Get("Content-Type"))
	if mediaType != "multipart/form-data" {
		var req postRequest
		if err := decodeJSON(r, &req); err != nil {
			return service.PostInput{}, err
		}
		return service.PostInput{Title: req.Title, Text: req.Text}, nil
	}

	// Keep up to 1 MiB in memory; larger parts spill to temp files.
	if err := r.ParseMultipartForm(1 << 20); err != nil {
		var maxBytes *http.MaxBytesError
		if errors.As(err, &maxBytes) {
			return service.PostInput{}, err
		}
		return service.PostInput{}, apperror.ValidationFailed("body", "malformed multipart body")
	}
	defer r.MultipartForm.RemoveAll()

	in := service.PostInput{
		Title: r.FormValue("title"),
		Text:  r.FormValue("text"),
	}

	file, _, err := r.FormFile("image")
	switch {
	case errors.Is(err, http.ErrMissingFile):
		return in, nil
	case err != nil:
		return service.PostInput{}, apperror.ValidationFailed("image", "unreadable image part")
	}
	defer file.Close()

	data, err := io.ReadAll(io.LimitReader(file, media.MaxImageBytes+1))
	if err != nil {
		return service.PostInput{}, apperror.ValidationFailed("image", "unreadable image part")
	}
	in.Image = data
	return in, nil
}
