package handler

import (
	"io"
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/sakif/social-feed/internal/media"
)

// MediaHandler serves stored post images.
type MediaHandler struct {
	store  media.Store
	logger *slog.Logger
}

// NewMediaHandler creates a MediaHandler.
func NewMediaHandler(store media.Store, logger *slog.Logger) *MediaHandler {
	return &MediaHandler{store: store, logger: logger}
}

// HandleGet streams an image by reference.
//
// HTTP: GET /media/{ref}
//
// A reference names exactly one upload and is never rewritten, so
// responses can be cached forever.
func (h *MediaHandler) HandleGet(w http.ResponseWriter, r *http.Request) {
	ref := chi.URLParam(r, "ref")

	rc, mimeType, err := h.store.Open(r.Context(), ref)
	if err != nil {
		writeError(w, err)
		return
	}
	defer rc.Close()

	w.Header().Set("Content-Type", mimeType)
	w.Header().Set("Cache-Control", "public, max-age=31536000, immutable")
	w.Header().Set("X-Content-Type-Options", "nosniff")
	w.WriteHeader(http.StatusOK)

	if _, err := io.Copy(w, rc); err != nil {
		h.logger.Warn("image stream interrupted",
			slog.String("ref", ref),
			slog.String("error", err.Error()),
		)
	}
}
