// Package media stores uploaded post images and hands back an opaque
// reference. Posts keep only the reference; the bytes live here.
package media

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"image"
	_ "image/gif"
	_ "image/jpeg"
	_ "image/png"
	"io"

	_ "golang.org/x/image/webp"

	"github.com/sakif/social-feed/internal/apperror"
)

const (
	MIMETypeJPEG = "image/jpeg"
	MIMETypePNG  = "image/png"
	MIMETypeGIF  = "image/gif"
	MIMETypeWebP = "image/webp"

	// MaxImageBytes bounds a single upload.
	MaxImageBytes = 5 << 20
)

var ErrNotAnImage = errors.New("not a supported image")

// Store persists image bytes under generated references.
type Store interface {
	// Save validates data as an image and stores it, returning its reference.
	Save(ctx context.Context, data []byte) (string, error)
	// Open returns the stored bytes and their MIME type. An unknown or
	// malformed reference yields apperror.ErrNotFound.
	Open(ctx context.Context, ref string) (io.ReadCloser, string, error)
	// Delete removes a stored image. Deleting an unknown reference is not
	// an error.
	Delete(ctx context.Context, ref string) error
}

//nolint:gochecknoglobals
var (
	imageHeaders = []struct {
		mime   string
		ext    string
		prefix string
		at     int
	}{
		{MIMETypeJPEG, "jpg", "\xFF\xD8\xFF", 0},
		{MIMETypePNG, "png", "\x89PNG\r\n\x1a\n", 0},
		{MIMETypeGIF, "gif", "GIF87a", 0},
		{MIMETypeGIF, "gif", "GIF89a", 0},
		{MIMETypeWebP, "webp", "WEBP", 8}, // "RIFF" <size> "WEBP"
	}

	extTypes = map[string]string{
		"jpg":  MIMETypeJPEG,
		"png":  MIMETypePNG,
		"gif":  MIMETypeGIF,
		"webp": MIMETypeWebP,
	}
)

// Sniff identifies the image type from magic bytes and confirms the header
// decodes. It returns the MIME type and file extension.
func Sniff(data []byte) (string, string, error) {
	if len(data) == 0 {
		return "", "", apperror.ValidationFailed("image", "image is empty")
	}
	if len(data) > MaxImageBytes {
		return "", "", apperror.ValidationFailed("image", fmt.Sprintf("image exceeds %d bytes", MaxImageBytes))
	}

	for _, h := range imageHeaders {
		end := h.at + len(h.prefix)
		if len(data) < end || string(data[h.at:end]) != h.prefix {
			continue
		}
		if h.mime == MIMETypeWebP && string(data[:4]) != "RIFF" {
			continue
		}
		if _, _, err := image.DecodeConfig(bytes.NewReader(data)); err != nil {
			return "", "", &apperror.AppError{
				Err:     apperror.ErrValidation,
				Message: "image header is corrupt",
				Field:   "image",
				Cause:   fmt.Errorf("%w: %w", ErrNotAnImage, err),
			}
		}
		return h.mime, h.ext, nil
	}

	return "", "", &apperror.AppError{
		Err:     apperror.ErrValidation,
		Message: "image must be PNG, JPEG, GIF or WebP",
		Field:   "image",
		Cause:   ErrNotAnImage,
	}
}
