package media

import (
	"bytes"
	"context"
	"image"
	"image/color"
	"image/gif"
	"image/jpeg"
	"image/png"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sakif/social-feed/internal/apperror"
)

func newTestStore(t *testing.T) *FileSystemStore {
	t.Helper()
	logger := slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: slog.LevelError}))
	s, err := NewFileSystemStore(filepath.Join(t.TempDir(), "media"), logger)
	require.NoError(t, err)
	return s
}

func testImage() image.Image {
	img := image.NewRGBA(image.Rect(0, 0, 4, 3))
	img.Set(1, 1, color.RGBA{R: 255, A: 255})
	return img
}

func encodePNG(t *testing.T) []byte {
	t.Helper()
	var buf bytes.Buffer
	require.NoError(t, png.Encode(&buf, testImage()))
	return buf.Bytes()
}

func TestSniff(t *testing.T) {
	var jpg, gf bytes.Buffer
	require.NoError(t, jpeg.Encode(&jpg, testImage(), nil))
	require.NoError(t, gif.Encode(&gf, testImage(), nil))

	tests := []struct {
		name     string
		data     []byte
		wantMIME string
		wantExt  string
		wantErr  bool
	}{
		{"png", encodePNG(t), MIMETypePNG, "png", false},
		{"jpeg", jpg.Bytes(), MIMETypeJPEG, "jpg", false},
		{"gif", gf.Bytes(), MIMETypeGIF, "gif", false},
		{"empty", nil, "", "", true},
		{"text", []byte("hello, definitely not an image"), "", "", true},
		{"png magic with garbage", append([]byte("\x89PNG\r\n\x1a\n"), []byte("garbage-garbage")...), "", "", true},
		{"webp marker without riff", []byte("XXXX\x00\x00\x00\x00WEBPVP8 "), "", "", true},
		{"too large", append(encodePNG(t), make([]byte, MaxImageBytes)...), "", "", true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			mime, ext, err := Sniff(tt.data)
			if tt.wantErr {
				require.Error(t, err)
				assert.ErrorIs(t, err, apperror.ErrValidation)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.wantMIME, mime)
			assert.Equal(t, tt.wantExt, ext)
		})
	}
}

func TestFileSystemStore_SaveOpen(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()
	data := encodePNG(t)

	ref, err := s.Save(ctx, data)
	require.NoError(t, err)
	assert.True(t, strings.HasSuffix(ref, ".png"), "ref = %q", ref)

	rc, mime, err := s.Open(ctx, ref)
	require.NoError(t, err)
	defer rc.Close()

	got, err := io.ReadAll(rc)
	require.NoError(t, err)
	assert.Equal(t, MIMETypePNG, mime)
	assert.Equal(t, data, got)
}

func TestFileSystemStore_Delete(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	ref, err := s.Save(ctx, encodePNG(t))
	require.NoError(t, err)

	require.NoError(t, s.Delete(ctx, ref))

	_, _, err = s.Open(ctx, ref)
	assert.ErrorIs(t, err, apperror.ErrNotFound)

	// Repeated and malformed deletes are no-ops.
	assert.NoError(t, s.Delete(ctx, ref))
	assert.NoError(t, s.Delete(ctx, "../../etc/passwd"))
}

func TestFileSystemStore_DistinctRefs(t *testing.T) {
	s := newTestStore(t)
	data := encodePNG(t)

	a, err := s.Save(context.Background(), data)
	require.NoError(t, err)
	b, err := s.Save(context.Background(), data)
	require.NoError(t, err)
	assert.NotEqual(t, a, b)
}

func TestFileSystemStore_RejectsNonImage(t *testing.T) {
	s := newTestStore(t)

	_, err := s.Save(context.Background(), []byte("#!/bin/sh\nrm -rf /\n"))
	assert.ErrorIs(t, err, apperror.ErrValidation)
	assert.ErrorIs(t, err, ErrNotAnImage)
}

func TestFileSystemStore_OpenBadRefs(t *testing.T) {
	s := newTestStore(t)

	for _, ref := range []string{
		"",
		"../../etc/passwd",
		"cv37rs3pp9olc6atsptg.exe",
		"cv37rs3pp9olc6atsptg",
		"not-an-xid-at-all!!.png",
		"cv37rs3pp9olc6atsptg.png", // well-formed but never stored
	} {
		_, _, err := s.Open(context.Background(), ref)
		assert.ErrorIs(t, err, apperror.ErrNotFound, "ref=%q", ref)
	}
}
