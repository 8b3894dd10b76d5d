// Package server sets up the HTTP server, router, and all route definitions.
//
// SERVER ARCHITECTURE:
// This package is the "wiring" layer: it connects handlers, middleware, and
// routes, and owns the resources that must be closed on shutdown.
//
// DEPENDENCY INJECTION FLOW:
//
//	cmd/server builds a Config → server.New
//	server.New creates: sqlstore.DB   → AuthService, FeedService → handlers
//	                    media store   ↗                          ↘ MediaHandler
//	                    TokenService  → RequireAuth / OptionalAuth middleware
//
// This is the "composition root" pattern: all dependencies are wired in one
// place rather than scattered across the codebase.
package server

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/go-chi/chi/v5"
	chimiddleware "github.com/go-chi/chi/v5/middleware"

	"github.com/sakif/social-feed/internal/auth"
	"github.com/sakif/social-feed/internal/handler"
	"github.com/sakif/social-feed/internal/media"
	"github.com/sakif/social-feed/internal/middleware"
	"github.com/sakif/social-feed/internal/repository/sqlstore"
	"github.com/sakif/social-feed/internal/service"
)

// Config holds server configuration.
type Config struct {
	Port          int
	DBDriver      string // "sqlite" or "postgres"
	DSN           string // sqlite file path or postgres URL
	JWTSecret     string
	MediaDir      string // root directory for uploaded images
	SecureCookies bool   // mark the session cookie Secure (HTTPS deployments)
	Argon2        auth.Params
}

// Server represents the HTTP server and all its dependencies.
//
// RESOURCE MANAGEMENT:
// The Server owns the database pool. Start closes it after the HTTP server
// has drained; callers that never Start must call Close.
type Server struct {
	router *chi.Mux
	config Config
	logger *slog.Logger
	db     *sqlstore.DB
}

// New creates a new Server with the given config.
//
// Each layer only receives what it needs:
//   - services get repository interfaces (not the concrete sqlstore.DB)
//   - handlers get services (not repositories)
func New(ctx context.Context, cfg Config, logger *slog.Logger) (*Server, error) {
	// === CREDENTIAL PRIMITIVES ===
	tokens, err := auth.NewTokenService(cfg.JWTSecret)
	if err != nil {
		return nil, fmt.Errorf("server: %w", err)
	}
	passwords := auth.NewPasswordServiceWithParams(cfg.Argon2)

	// === STORAGE ===
	images, err := media.NewFileSystemStore(cfg.MediaDir, logger)
	if err != nil {
		return nil, fmt.Errorf("server: %w", err)
	}

	db, err := sqlstore.New(ctx, sqlstore.Config{Driver: cfg.DBDriver, DSN: cfg.DSN})
	if err != nil {
		return nil, fmt.Errorf("server: opening database: %w", err)
	}

	s := &Server{
		router: chi.NewRouter(),
		config: cfg,
		logger: logger,
		db:     db,
	}

	authService := service.NewAuthService(db, tokens, passwords, logger)
	feedService := service.NewFeedService(db, images, logger)

	s.setupRoutes(
		tokens,
		handler.NewAuthHandler(authService, cfg.SecureCookies, logger),
		handler.NewPostHandler(feedService, logger),
		handler.NewMediaHandler(images, logger),
	)

	return s, nil
}

// setupRoutes configures all middleware and route handlers.
//
// ROUTE STRUCTURE:
//
//	GET  /healthz                  → liveness + database ping
//	POST /auth/register            → create account
//	POST /auth/login               → issue token (body + cookie)
//	POST /auth/logout              → clear cookie
//	GET  /media/{ref}              → stored image
//	GET  /api/me                   → current user            [auth]
//	GET  /api/posts                → feed page               [optional auth]
//	GET  /api/posts/{id}           → one post                [optional auth]
//	GET  /api/posts/{id}/comments  → comments of a post      [optional auth]
//	POST /api/posts                → create post             [auth]
//	POST /api/posts/{id}/like      → toggle like             [auth]
//	POST /api/posts/{id}/comments  → comment on a post       [auth]
//
// MIDDLEWARE ORDER MATTERS:
// 1. RequestID: assigns a unique ID to each request (for tracing)
// 2. RealIP: extracts real client IP from proxy headers
// 3. Logger: logs each request with timing info and the request ID
// 4. Recoverer: catches panics and returns 500 instead of crashing
func (s *Server) setupRoutes(
	tokens *auth.TokenService,
	authHandler *handler.AuthHandler,
	postHandler *handler.PostHandler,
	mediaHandler *handler.MediaHandler,
) {
	s.router.Use(chimiddleware.RequestID)
	s.router.Use(chimiddleware.RealIP)
	s.router.Use(middleware.Logger(s.logger))
	s.router.Use(chimiddleware.Recoverer)

	s.router.Get("/healthz", s.handleHealth)

	s.router.Route("/auth", func(r chi.Router) {
		r.Post("/register", authHandler.HandleRegister)
		r.Post("/login", authHandler.HandleLogin)
		r.Post("/logout", authHandler.HandleLogout)
	})

	s.router.Get("/media/{ref}", mediaHandler.HandleGet)

	s.router.Route("/api", func(r chi.Router) {
		// Public reads: the token only scopes viewerLiked.
		r.Group(func(r chi.Router) {
			r.Use(auth.OptionalAuth(tokens))
			r.Get("/posts", postHandler.HandleFeed)
			r.Get("/posts/{id}", postHandler.HandleGet)
			r.Get("/posts/{id}/comments", postHandler.HandleComments)
		})

		// Writes and /me need an identity.
		r.Group(func(r chi.Router) {
			r.Use(auth.RequireAuth(tokens))
			r.Get("/me", authHandler.HandleMe)
			r.Post("/posts", postHandler.HandleCreate)
			r.Post("/posts/{id}/like", postHandler.HandleToggleLike)
			r.Post("/posts/{id}/comments", postHandler.HandleCreateComment)
		})
	})
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), 2*time.Second)
	defer cancel()

	w.Header().Set("Content-Type", "application/json")
	if err := s.db.Ping(ctx); err != nil {
		s.logger.Error("health check failed", slog.String("error", err.Error()))
		w.WriteHeader(http.StatusServiceUnavailable)
		_, _ = w.Write([]byte(`{"status":"unavailable"}`))
		return
	}
	_, _ = w.Write([]byte(`{"status":"ok","database":"` + s.db.Driver() + `"}`))
}

// Handler exposes the router, e.g. for httptest.
func (s *Server) Handler() http.Handler {
	return s.router
}

// Close releases the database pool.
func (s *Server) Close() error {
	return s.db.Close()
}

// Start starts the HTTP server and handles graceful shutdown.
//
// GRACEFUL SHUTDOWN:
// 1. Stop accepting new HTTP connections
// 2. Wait for in-flight requests to finish (30s timeout)
// 3. Close the database pool (flushes WAL, releases the file lock)
func (s *Server) Start() error {
	defer s.db.Close()

	srv := &http.Server{
		Addr:              fmt.Sprintf(":%d", s.config.Port),
		Handler:           s.router,
		ReadHeaderTimeout: 5 * time.Second,
		ReadTimeout:       30 * time.Second, // uploads can be up to 5 MiB
		WriteTimeout:      30 * time.Second,
		IdleTimeout:       60 * time.Second,
	}

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	defer signal.Stop(quit)

	serverErrors := make(chan error, 1)

	go func() {
		s.logger.Info("server starting",
			slog.Int("port", s.config.Port),
			slog.String("url", fmt.Sprintf("http://localhost:%d", s.config.Port)),
			slog.String("database", s.db.Driver()),
			slog.String("media", s.config.MediaDir),
		)
		serverErrors <- srv.ListenAndServe()
	}()

	select {
	case err := <-serverErrors:
		if !errors.Is(err, http.ErrServerClosed) {
			return fmt.Errorf("server error: %w", err)
		}

	case sig := <-quit:
		s.logger.Info("shutdown signal received", slog.String("signal", sig.String()))

		ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
		defer cancel()

		if err := srv.Shutdown(ctx); err != nil {
			return fmt.Errorf("graceful shutdown failed: %w", err)
		}
		s.logger.Info("server stopped gracefully")
	}

	return nil
}
