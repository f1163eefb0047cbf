// Package artwork normalizes cover images before they are cached on disk.
package artwork

import (
	"bytes"
	"fmt"
	"image"
	_ "image/gif"
	"image/jpeg"
	_ "image/png"
	"log/slog"
	"os"
	"path/filepath"

	"github.com/nfnt/resize"
	_ "golang.org/x/image/bmp"
	_ "golang.org/x/image/webp"

	"github.com/tejashwikalptaru/tunelib/internal/ports"
)

const (
	// DefaultMaxEdge bounds the longest side of a cached cover, in pixels.
	DefaultMaxEdge = 600

	// DefaultQuality is the JPEG quality of cached covers.
	DefaultQuality = 85
)

// Writer decodes cover bytes, scales them down to fit MaxEdge and stores them
// as JPEG. Bytes that do not decode as an image are stored unchanged.
type Writer struct {
	logger  *slog.Logger
	maxEdge int
	quality int
}

// NewWriter creates a cover writer. Non-positive settings fall back to the defaults.
func NewWriter(logger *slog.Logger, maxEdge, quality int) *Writer {
	if maxEdge <= 0 {
		maxEdge = DefaultMaxEdge
	}
	if quality <= 0 || quality > 100 {
		quality = DefaultQuality
	}
	return &Writer{
		logger:  logger.With(slog.String("adapter", "artwork")),
		maxEdge: maxEdge,
		quality: quality,
	}
}

// WriteCover stores data at dest, creating parent directories.
func (w *Writer) WriteCover(data []byte, dest string) error {
	if len(data) == 0 {
		return fmt.Errorf("empty cover image")
	}
	if err := os.MkdirAll(filepath.Dir(dest), 0o755); err != nil {
		return fmt.Errorf("failed to create covers directory: %w", err)
	}

	out, err := w.Normalize(data)
	if err != nil {
		w.logger.Warn("storing cover unmodified", slog.String("dest", dest), slog.Any("error", err))
		out = data
	}

	// Write to a sibling first so a reader never sees a partial image
	tmp := dest + ".tmp"
	if err := os.WriteFile(tmp, out, 0o644); err != nil {
		return fmt.Errorf("failed to write cover: %w", err)
	}
	if err := os.Rename(tmp, dest); err != nil {
		_ = os.Remove(tmp)
		return fmt.Errorf("failed to write cover: %w", err)
	}
	return nil
}

// Normalize decodes an image and re-encodes it as JPEG, scaled down with
// Lanczos3 when its longest side exceeds the configured edge.
func (w *Writer) Normalize(data []byte) ([]byte, error) {
	img, format, err := image.Decode(bytes.NewReader(data))
	if err != nil {
		return nil, fmt.Errorf("failed to decode image: %w", err)
	}

	width, height := fit(img.Bounds().Dx(), img.Bounds().Dy(), w.maxEdge)
	if width != img.Bounds().Dx() || height != img.Bounds().Dy() {
		img = resize.Resize(uint(width), uint(height), img, resize.Lanczos3)
	}

	var buf bytes.Buffer
	if err := jpeg.Encode(&buf, img, &jpeg.Options{Quality: w.quality}); err != nil {
		return nil, fmt.Errorf("failed to encode %s image: %w", format, err)
	}
	return buf.Bytes(), nil
}

// fit scales width and height so neither exceeds maxEdge, keeping the aspect ratio.
func fit(width, height, maxEdge int) (int, int) {
	if width <= maxEdge && height <= maxEdge {
		return width, height
	}
	if width > height {
		return maxEdge, max(height*maxEdge/width, 1)
	}
	return max(width*maxEdge/height, 1), maxEdge
}

var _ ports.CoverWriter = (*Writer)(nil)
