// Package ports define the interfaces of the external media collaborators.
package ports

import (
	"context"

	"github.com/tejashwikalptaru/tunelib/internal/domain"
)

// EventSink receives engine events. The queue controller's Post method is the usual sink.
type EventSink func(event domain.Event)

// PlaybackEngine is the interface to an audio engine.
// Engines decode and output audio on their own pipeline and report back only through
// the sink: media status, position ticks, duration, transport state and errors.
// Callers never poll an engine.
//
// Events must be delivered in order, once each, and the sink must not be
// called while the engine holds a lock the caller could be waiting on.
type PlaybackEngine interface {
	// SetEventSink installs the receiver of engine events.
	SetEventSink(sink EventSink)

	// Load starts loading a media file. Completion is reported as a
	// domain.MediaStatusEvent (ready or invalid).
	Load(path string) error

	// Play starts or resumes playback.
	Play() error

	// Pause pauses playback.
	Pause() error

	// Stop stops playback and rewinds.
	Stop() error

	// Seek moves the playback position, in milliseconds.
	Seek(positionMs int64) error

	// SetVolume sets the output volume (0.0 to 1.0).
	SetVolume(volume float64) error
}

// MetadataExtractor reads tags, duration and embedded cover art from a media file.
type MetadataExtractor interface {
	// Extract returns whatever metadata the file carries. Missing fields are empty.
	//
	// Returns an error only when the file cannot be read at all.
	Extract(path string) (domain.ExtractedMetadata, error)
}

// Transcoder converts non-audio containers into a playable audio file.
type Transcoder interface {
	// Transcode blocks until the output is written or ctx ends, and returns the
	// output path. A deadline is treated as failure.
	Transcode(ctx context.Context, inputPath string) (string, error)
}

// CoverWriter persists cover image bytes to a destination file.
type CoverWriter interface {
	// WriteCover stores data at dest, creating parent directories.
	WriteCover(data []byte, dest string) error
}
