package main

import (
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strconv"

	"github.com/spf13/cobra"

	"github.com/sakif/social-feed/internal/auth"
	"github.com/sakif/social-feed/internal/repository/sqlstore"
	"github.com/sakif/social-feed/internal/server"
)

// options holds every persistent flag. Each flag defaults to its environment
// variable, so `PORT=9000 server serve` and `server serve --port 9000` agree.
type options struct {
	port          int
	dbDriver      string
	dsn           string
	jwtSecret     string
	mediaDir      string
	logLevel      string
	secureCookies bool
	argon2Time    uint32
	argon2Memory  uint32
}

func newRootCmd() *cobra.Command {
	opts := &options{}

	root := &cobra.Command{
		Use:   "server",
		Short: "Social feed API server",
		Long: `A small social feed: accounts, posts with optional images, likes and
comments, served as a JSON API over SQLite or PostgreSQL.

Every flag falls back to an environment variable (shown in brackets).`,
		SilenceUsage: true,
	}

	f := root.PersistentFlags()
	f.IntVar(&opts.port, "port", envInt("PORT", 8080), "HTTP listen port [PORT]")
	f.StringVar(&opts.dbDriver, "db-driver", envOr("DB_DRIVER", "sqlite"), "database driver: sqlite or postgres [DB_DRIVER]")
	f.StringVar(&opts.dsn, "db-dsn", envOr("DB_DSN", envOr("DB_PATH", "")), "sqlite file path or postgres URL [DB_DSN, DB_PATH]")
	f.StringVar(&opts.jwtSecret, "jwt-secret", os.Getenv("JWT_SECRET"), "token signing secret, at least 16 chars [JWT_SECRET]")
	f.StringVar(&opts.mediaDir, "media-dir", envOr("MEDIA_DIR", "data/media"), "directory for uploaded images [MEDIA_DIR]")
	f.StringVar(&opts.logLevel, "log-level", envOr("LOG_LEVEL", "info"), "debug, info, warn or error [LOG_LEVEL]")
	f.BoolVar(&opts.secureCookies, "secure-cookies", envBool("SECURE_COOKIES", false), "mark the session cookie Secure [SECURE_COOKIES]")
	f.Uint32Var(&opts.argon2Time, "argon2-time", envUint32("ARGON2_TIME", 0), "argon2id iterations, 0 for default [ARGON2_TIME]")
	f.Uint32Var(&opts.argon2Memory, "argon2-memory-kb", envUint32("ARGON2_MEMORY_KB", 0), "argon2id memory in KiB, 0 for default [ARGON2_MEMORY_KB]")

	serve := newServeCmd(opts)
	root.AddCommand(serve, newMigrateCmd(opts), newUserCmd(opts))

	// Bare `server` runs serve.
	root.RunE = serve.RunE

	return root
}

// logger builds the process logger at the configured level.
func (o *options) logger() (*slog.Logger, error) {
	var level slog.Level
	if err := level.UnmarshalText([]byte(o.logLevel)); err != nil {
		return nil, fmt.Errorf("invalid log level %q: %w", o.logLevel, err)
	}
	return slog.New(slog.NewTextHandler(os.Stdout, &slog.HandlerOptions{Level: level})), nil
}

// storeConfig resolves the database settings. For sqlite the parent directory
// of the file is created if needed.
func (o *options) storeConfig() (sqlstore.Config, error) {
	cfg := sqlstore.Config{Driver: o.dbDriver, DSN: o.dsn}
	if cfg.Driver == "" || cfg.Driver == "sqlite" {
		cfg.Driver = "sqlite"
		if cfg.DSN == "" {
			cfg.DSN = "data/feed.db"
		}
		if dir := filepath.Dir(cfg.DSN); dir != "." {
			if err := os.MkdirAll(dir, 0o755); err != nil {
				return sqlstore.Config{}, fmt.Errorf("creating database directory %s: %w", dir, err)
			}
		}
	}
	return cfg, nil
}

func (o *options) argon2() auth.Params {
	return auth.Params{Time: o.argon2Time, Memory: o.argon2Memory}
}

func (o *options) serverConfig() (server.Config, error) {
	store, err := o.storeConfig()
	if err != nil {
		return server.Config{}, err
	}
	return server.Config{
		Port:          o.port,
		DBDriver:      store.Driver,
		DSN:           store.DSN,
		JWTSecret:     o.jwtSecret,
		MediaDir:      o.mediaDir,
		SecureCookies: o.secureCookies,
		Argon2:        o.argon2(),
	}, nil
}

func envOr(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

func envInt(key string, fallback int) int {
	if v := os.Getenv(key); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			return n
		}
	}
	return fallback
}

// envUint32 rejects negative and out-of-range values, falling back instead.
func envUint32(key string, fallback uint32) uint32 {
	if v := os.Getenv(key); v != "" {
		if n, err := strconv.ParseUint(v, 10, 32); err == nil {
			return uint32(n)
		}
	}
	return fallback
}

func envBool(key string, fallback bool) bool {
	if v := os.Getenv(key); v != "" {
		if b, err := strconv.ParseBool(v); err == nil {
			return b
		}
	}
	return fallback
}
