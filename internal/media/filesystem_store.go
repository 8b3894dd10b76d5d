package media

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"strings"

	"github.com/rs/xid"

	"github.com/sakif/social-feed/internal/apperror"
)

// FileSystemStore keeps images under a two-level fan-out directory tree:
//
//	<basedir>/<id[16:18]>/<id[18:20]>/<id>.<ext>
//
// The last characters of an xid come from its counter and vary the most, so
// they spread files evenly.
type FileSystemStore struct {
	basedir string
	logger  *slog.Logger
}

var _ Store = (*FileSystemStore)(nil)

// NewFileSystemStore creates basedir if needed.
func NewFileSystemStore(basedir string, logger *slog.Logger) (*FileSystemStore, error) {
	if err := os.MkdirAll(basedir, 0o755); err != nil {
		return nil, fmt.Errorf("media: creating %s: %w", basedir, err)
	}
	return &FileSystemStore{basedir: basedir, logger: logger}, nil
}

// Save writes data to a temp file and renames it into place, so a reader
// never sees a partial image.
func (s *FileSystemStore) Save(ctx context.Context, data []byte) (string, error) {
	if err := ctx.Err(); err != nil {
		return "", err
	}

	mime, ext, err := Sniff(data)
	if err != nil {
		return "", err
	}

	id := xid.New().String()
	ref := id + "." + ext
	path := s.path(id, ref)

	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return "", fmt.Errorf("media: creating dir: %w", apperror.Storage("save image", err))
	}

	tmp, err := os.CreateTemp(filepath.Dir(path), "."+id+".*.tmp")
	if err != nil {
		return "", fmt.Errorf("media: creating temp file: %w", apperror.Storage("save image", err))
	}
	defer os.Remove(tmp.Name())

	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		return "", fmt.Errorf("media: writing %s: %w", ref, apperror.Storage("save image", err))
	}
	if err := tmp.Close(); err != nil {
		return "", fmt.Errorf("media: closing %s: %w", ref, apperror.Storage("save image", err))
	}
	if err := os.Rename(tmp.Name(), path); err != nil {
		return "", fmt.Errorf("media: renaming %s: %w", ref, apperror.Storage("save image", err))
	}

	s.logger.Debug("image stored",
		slog.String("ref", ref),
		slog.String("mime", mime),
		slog.Int("bytes", len(data)),
	)
	return ref, nil
}

func (s *FileSystemStore) Open(ctx context.Context, ref string) (io.ReadCloser, string, error) {
	if err := ctx.Err(); err != nil {
		return nil, "", err
	}

	id, mime, ok := parseRef(ref)
	if !ok {
		return nil, "", apperror.NotFound("image", ref)
	}

	f, err := os.Open(s.path(id, ref))
	if err != nil {
		if os.IsNotExist(err) {
			return nil, "", apperror.NotFound("image", ref)
		}
		return nil, "", fmt.Errorf("media: opening %s: %w", ref, apperror.Storage("open image", err))
	}
	return f, mime, nil
}

func (s *FileSystemStore) Delete(ctx context.Context, ref string) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	id, _, ok := parseRef(ref)
	if !ok {
		return nil
	}

	if err := os.Remove(s.path(id, ref)); err != nil && !os.IsNotExist(err) {
		return fmt.Errorf("media: removing %s: %w", ref, apperror.Storage("delete image", err))
	}
	s.logger.Debug("image removed", slog.String("ref", ref))
	return nil
}

func (s *FileSystemStore) path(id, ref string) string {
	return filepath.Join(s.basedir, id[16:18], id[18:20], ref)
}

// parseRef accepts only "<xid>.<known ext>", which also rules out any path
// separators or "..".
func parseRef(ref string) (id, mime string, ok bool) {
	id, ext, found := strings.Cut(ref, ".")
	if !found {
		return "", "", false
	}
	mime, known := extTypes[ext]
	if !known {
		return "", "", false
	}
	if _, err := xid.FromString(id); err != nil {
		return "", "", false
	}
	return id, mime, true
}
