package auth

import (
	"context"
	"net/http"
	"time"

	"github.com/sakif/social-feed/internal/model"
)

// contextKey is an unexported type used for context keys in this package,
// so no other package can read or shadow the viewer value.
type contextKey string

const viewerKey contextKey = "viewer"

// CookieName is the cookie the login handler stores the session token in.
const CookieName = "token"

// RequireAuth is a middleware that enforces authentication on protected routes.
//
// It reads the token (see tokenFromRequest), validates it, and stores the
// viewer in the request context. If the token is missing or invalid, it
// returns 401 Unauthorized and stops the request chain.
func RequireAuth(tokens *TokenService) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			viewer, ok := tokens.Verify(tokenFromRequest(r), time.Now())
			if !ok {
				w.Header().Set("Content-Type", "application/json")
				w.WriteHeader(http.StatusUnauthorized)
				_, _ = w.Write([]byte(`{"error":"unauthenticated","message":"valid authentication required"}`))
				return
			}
			next.ServeHTTP(w, r.WithContext(WithViewer(r.Context(), viewer)))
		})
	}
}

// OptionalAuth attaches the viewer when a valid token is present, and lets
// the request through as anonymous otherwise. Used on read routes: the feed
// is public, the token only scopes the viewerLiked field.
func OptionalAuth(tokens *TokenService) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if viewer, ok := tokens.Verify(tokenFromRequest(r), time.Now()); ok {
				r = r.WithContext(WithViewer(r.Context(), viewer))
			}
			next.ServeHTTP(w, r)
		})
	}
}

// WithViewer returns a copy of ctx carrying v.
func WithViewer(ctx context.Context, v model.Viewer) context.Context {
	return context.WithValue(ctx, viewerKey, v)
}

// ViewerFromContext returns the viewer attached by the middleware, or the
// anonymous viewer when there is none.
func ViewerFromContext(ctx context.Context) model.Viewer {
	v, ok := ctx.Value(viewerKey).(model.Viewer)
	if !ok {
		return model.Anonymous()
	}
	return v
}

// tokenFromRequest returns the raw token string, preferring the
// Authorization header over the cookie. Either may carry a "Bearer " prefix.
func tokenFromRequest(r *http.Request) string {
	if h := r.Header.Get("Authorization"); h != "" {
		return h
	}
	if c, err := r.Cookie(CookieName); err == nil {
		return c.Value
	}
	return ""
}
