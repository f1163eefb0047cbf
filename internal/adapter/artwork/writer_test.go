package artwork

import (
	"bytes"
	"image"
	"image/color"
	"image/jpeg"
	"image/png"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/tejashwikalptaru/tunelib/internal/logger"
)

func pngBytes(t *testing.T, width, height int) []byte {
	t.Helper()
	img := image.NewRGBA(image.Rect(0, 0, width, height))
	for x := 0; x < width; x++ {
		for y := 0; y < height; y++ {
			img.Set(x, y, color.RGBA{R: uint8(x), G: uint8(y), B: 128, A: 255})
		}
	}
	var buf bytes.Buffer
	require.NoError(t, png.Encode(&buf, img))
	return buf.Bytes()
}

func decodeJPEG(t *testing.T, path string) image.Image {
	t.Helper()
	f, err := os.Open(path)
	require.NoError(t, err)
	defer f.Close()
	img, err := jpeg.Decode(f)
	require.NoError(t, err)
	return img
}

func TestWriteCover_ScalesDownToJPEG(t *testing.T) {
	w := NewWriter(logger.NewTestLogger(), 100, 0)
	dest := filepath.Join(t.TempDir(), "covers", "7.jpg")

	require.NoError(t, w.WriteCover(pngBytes(t, 400, 200), dest))

	img := decodeJPEG(t, dest)
	assert.Equal(t, 100, img.Bounds().Dx())
	assert.Equal(t, 50, img.Bounds().Dy())

	_, err := os.Stat(dest + ".tmp")
	assert.True(t, os.IsNotExist(err))
}

func TestWriteCover_SmallImageKeepsSize(t *testing.T) {
	w := NewWriter(logger.NewTestLogger(), 100, 90)
	dest := filepath.Join(t.TempDir(), "1.jpg")

	require.NoError(t, w.WriteCover(pngBytes(t, 40, 60), dest))

	img := decodeJPEG(t, dest)
	assert.Equal(t, 40, img.Bounds().Dx())
	assert.Equal(t, 60, img.Bounds().Dy())
}

func TestWriteCover_UndecodableStoredRaw(t *testing.T) {
	w := NewWriter(logger.NewTestLogger(), 0, 0)
	dest := filepath.Join(t.TempDir(), "2.jpg")
	raw := []byte("not an image")

	require.NoError(t, w.WriteCover(raw, dest))

	got, err := os.ReadFile(dest)
	require.NoError(t, err)
	assert.Equal(t, raw, got)
}

func TestWriteCover_Empty(t *testing.T) {
	w := NewWriter(logger.NewTestLogger(), 0, 0)
	assert.Error(t, w.WriteCover(nil, filepath.Join(t.TempDir(), "3.jpg")))
}

func TestFit(t *testing.T) {
	tests := []struct {
		name          string
		width, height int
		wantW, wantH  int
	}{
		{"within bounds", 50, 80, 50, 80},
		{"landscape", 1000, 500, 100, 50},
		{"portrait", 300, 600, 50, 100},
		{"square", 200, 200, 100, 100},
		{"sliver", 10000, 1, 100, 1},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			w, h := fit(tt.width, tt.height, 100)
			assert.Equal(t, tt.wantW, w)
			assert.Equal(t, tt.wantH, h)
		})
	}
}
