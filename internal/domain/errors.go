// Package domain defines domain-specific errors.
// These errors represent business logic failures and are independent of infrastructure.
package domain

import (
	"errors"
	"fmt"
)

// Common errors that services and adapters can return.
var (
	// ErrTrackNotFound is returned when a requested track cannot be found.
	ErrTrackNotFound = errors.New("track not found")

	// ErrPlaylistNotFound is returned when a requested playlist cannot be found.
	ErrPlaylistNotFound = errors.New("playlist not found")

	// ErrArtistNotFound is returned when an artist name has no row.
	ErrArtistNotFound = errors.New("artist not found")

	// ErrAlbumNotFound is returned when an album name has no row.
	ErrAlbumNotFound = errors.New("album not found")

	// ErrTagNotFound is returned when a tag name has no row.
	ErrTagNotFound = errors.New("tag not found")

	// ErrInvalidID is returned for negative or otherwise impossible identifiers.
	ErrInvalidID = errors.New("invalid id")

	// ErrEmptyName is returned when a name is required but blank.
	ErrEmptyName = errors.New("name must not be empty")

	// ErrQueueEmpty is returned when the current projection has no tracks.
	ErrQueueEmpty = errors.New("queue is empty")

	// ErrNoTrackLoaded is returned when playback is attempted with no track loaded.
	ErrNoTrackLoaded = errors.New("no track loaded")

	// ErrInvalidIndex is returned when a projection index is out of bounds.
	ErrInvalidIndex = errors.New("invalid queue index")

	// ErrInvalidVolume is returned when the volume is out of valid range (0.0-1.0).
	ErrInvalidVolume = errors.New("invalid volume: must be between 0.0 and 1.0")

	// ErrUnsupportedFormat is returned when a file extension is not importable.
	ErrUnsupportedFormat = errors.New("unsupported audio format")

	// ErrFileNotFound is returned when a file does not exist.
	ErrFileNotFound = errors.New("file not found")

	// ErrTranscodeTimeout is returned when the transcoder exceeds its deadline.
	ErrTranscodeTimeout = errors.New("transcode timed out")

	// ErrImportCancelled is returned when an import batch is canceled.
	ErrImportCancelled = errors.New("import cancelled")

	// ErrImportInProgress is returned when an import starts while another is running.
	ErrImportInProgress = errors.New("import already in progress")

	// ErrNoImport is returned when canceling with no import running.
	ErrNoImport = errors.New("no import in progress")
)

// IsNotFound reports whether err belongs to the NotFound category.
func IsNotFound(err error) bool {
	return errors.Is(err, ErrTrackNotFound) ||
		errors.Is(err, ErrPlaylistNotFound) ||
		errors.Is(err, ErrArtistNotFound) ||
		errors.Is(err, ErrAlbumNotFound) ||
		errors.Is(err, ErrTagNotFound) ||
		errors.Is(err, ErrFileNotFound)
}

// StoreError represents a storage failure.
// This wraps database errors with the operation and entity involved.
type StoreError struct {
	Op     string // Operation that failed (e.g., "upsert_track", "add_to_playlist")
	Entity string // Entity involved (e.g., "track", "playlist")
	Err    error  // Underlying error
}

// Error implements the error interface.
func (e *StoreError) Error() string {
	return fmt.Sprintf("store %s.%s failed: %v", e.Entity, e.Op, e.Err)
}

// Unwrap returns the underlying error.
func (e *StoreError) Unwrap() error {
	return e.Err
}

// NewStoreError creates a new StoreError.
func NewStoreError(op, entity string, err error) *StoreError {
	return &StoreError{
		Op:     op,
		Entity: entity,
		Err:    err,
	}
}

// MediaError represents media the engine could not load or play.
type MediaError struct {
	Path    string // File path (if known)
	Message string // Message reported by the engine
	Err     error  // Underlying error (if any)
}

// Error implements the error interface.
func (e *MediaError) Error() string {
	if e.Path != "" {
		return fmt.Sprintf("media error for '%s': %s", e.Path, e.Message)
	}
	return fmt.Sprintf("media error: %s", e.Message)
}

// Unwrap returns the underlying error.
func (e *MediaError) Unwrap() error {
	return e.Err
}

// NewMediaError creates a new MediaError.
func NewMediaError(path, message string, err error) *MediaError {
	return &MediaError{
		Path:    path,
		Message: message,
		Err:     err,
	}
}

// ToolError represents a failure of an external tool such as the transcoder.
type ToolError struct {
	Tool   string // Tool name (e.g., "ffmpeg")
	Op     string // Operation that failed
	Path   string // Input path
	Output string // Tail of the tool output, if captured
	Err    error  // Underlying error
}

// Error implements the error interface.
func (e *ToolError) Error() string {
	msg := fmt.Sprintf("%s %s failed for '%s': %v", e.Tool, e.Op, e.Path, e.Err)
	if e.Output != "" {
		msg += ": " + e.Output
	}
	return msg
}

// Unwrap returns the underlying error.
func (e *ToolError) Unwrap() error {
	return e.Err
}

// NewToolError creates a new ToolError.
func NewToolError(tool, op, path, output string, err error) *ToolError {
	return &ToolError{
		Tool:   tool,
		Op:     op,
		Path:   path,
		Output: output,
		Err:    err,
	}
}

// ValidationError represents a validation error.
type ValidationError struct {
	Field   string      // Field that failed validation
	Value   interface{} // Value that failed validation
	Message string      // Error message
}

// Error implements the error interface.
func (e *ValidationError) Error() string {
	return fmt.Sprintf("validation error for %s: %s (value: %v)", e.Field, e.Message, e.Value)
}

// NewValidationError creates a new ValidationError.
func NewValidationError(field string, value interface{}, message string) *ValidationError {
	return &ValidationError{
		Field:   field,
		Value:   value,
		Message: message,
	}
}
