// Package metadata reads tags, duration and embedded cover art from audio files.
package metadata

import (
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/dhowden/tag"
	"github.com/go-audio/wav"
	"github.com/mewkiz/flac"
	"github.com/tcolgate/mp3"

	"github.com/tejashwikalptaru/tunelib/internal/domain"
	"github.com/tejashwikalptaru/tunelib/internal/ports"
)

// wavHeaderSize is the size of a canonical PCM WAV header.
const wavHeaderSize = 44

// Extractor implements ports.MetadataExtractor with dhowden/tag for tags and
// cover art, and per-format decoders for the duration.
//
// Thread-safety: Extractor holds no state and is safe for concurrent use.
type Extractor struct {
	logger *slog.Logger
}

// NewExtractor creates a metadata extractor.
func NewExtractor(logger *slog.Logger) *Extractor {
	return &Extractor{
		logger: logger.With(slog.String("adapter", "metadata")),
	}
}

// Extract returns whatever metadata the file carries. A file without readable
// tags is not an error: the result simply has empty fields.
func (e *Extractor) Extract(path string) (domain.ExtractedMetadata, error) {
	var meta domain.ExtractedMetadata

	file, err := os.Open(path)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return meta, domain.NewMediaError(path, "file does not exist", domain.ErrFileNotFound)
		}
		return meta, domain.NewMediaError(path, "cannot open file", err)
	}
	defer file.Close()

	if tags, err := tag.ReadFrom(file); err != nil {
		e.logger.Debug("no readable tags", slog.String("path", path), slog.Any("error", err))
	} else {
		meta.Title = strings.TrimSpace(tags.Title())
		// Album artist names the release; fall back to the performing artist
		meta.Artist = strings.TrimSpace(tags.AlbumArtist())
		if meta.Artist == "" {
			meta.Artist = strings.TrimSpace(tags.Artist())
		}
		meta.Album = strings.TrimSpace(tags.Album())
		if picture := tags.Picture(); picture != nil && len(picture.Data) > 0 {
			meta.Cover = picture.Data
		}
	}

	duration, err := Duration(path)
	if err != nil {
		e.logger.Debug("duration unavailable", slog.String("path", path), slog.Any("error", err))
	}
	meta.Duration = duration.Milliseconds()

	return meta, nil
}

// Duration measures the playing time of mp3, flac and wav files.
// Other formats report zero and an error; the engine supplies their length on load.
func Duration(path string) (time.Duration, error) {
	switch strings.ToLower(filepath.Ext(path)) {
	case ".mp3":
		return durationMP3(path)
	case ".flac":
		return durationFLAC(path)
	case ".wav":
		return durationWAV(path)
	default:
		return 0, fmt.Errorf("%w: no duration reader for %s", domain.ErrUnsupportedFormat, filepath.Ext(path))
	}
}

// durationMP3 sums the duration of every decodable frame.
func durationMP3(path string) (time.Duration, error) {
	f, err := os.Open(path)
	if err != nil {
		return 0, err
	}
	defer f.Close()

	dec := mp3.NewDecoder(f)
	var (
		total   time.Duration
		frame   mp3.Frame
		skipped int
		frames  int
	)
	for {
		if err := dec.Decode(&frame, &skipped); err != nil {
			if errors.Is(err, io.EOF) || frames > 0 {
				break
			}
			return 0, fmt.Errorf("no mp3 frames: %w", err)
		}
		total += frame.Duration()
		frames++
	}
	return total, nil
}

// durationFLAC reads the sample count from the STREAMINFO block.
func durationFLAC(path string) (time.Duration, error) {
	stream, err := flac.Open(path)
	if err != nil {
		return 0, err
	}
	defer stream.Close()

	info := stream.Info
	if info.NSamples == 0 || info.SampleRate == 0 {
		return 0, errors.New("flac stream missing sample info")
	}
	return time.Duration(float64(info.NSamples) / float64(info.SampleRate) * float64(time.Second)), nil
}

// durationWAV derives the length from the header format and the PCM payload size.
func durationWAV(path string) (time.Duration, error) {
	f, err := os.Open(path)
	if err != nil {
		return 0, err
	}
	defer f.Close()

	dec := wav.NewDecoder(f)
	if !dec.IsValidFile() {
		return 0, errors.New("invalid wav file")
	}
	frameSize := int64(dec.BitDepth/8) * int64(dec.NumChans)
	if dec.SampleRate == 0 || frameSize <= 0 {
		return 0, errors.New("invalid wav header")
	}

	st, err := f.Stat()
	if err != nil {
		return 0, err
	}
	pcm := max(st.Size()-wavHeaderSize, 0)
	frames := pcm / frameSize
	return time.Duration(float64(frames) / float64(dec.SampleRate) * float64(time.Second)), nil
}

var _ ports.MetadataExtractor = (*Extractor)(nil)
