// Package domain contains core business models and logic with no external dependencies.
// This package defines the fundamental entities of the tunelib media library.
package domain

import (
	"path/filepath"
	"strings"
	"time"
)

// NoTrackID is the identity of the "no track" sentinel.
const NoTrackID int64 = -1

// NoIndex marks an unresolved position in the current projection.
const NoIndex = -1

// Track represents a single audio file in the catalog.
type Track struct {
	// ID is the stable store identity of the track (NoTrackID for the sentinel)
	ID int64

	// FilePath is the absolute path to the audio file, unique across the catalog
	FilePath string

	// Title is the song title (from metadata or the file name)
	Title string

	// Artist is the derived artist string: normalized names sorted and joined
	// with ", " when relationships exist, otherwise the flat field
	Artist string

	// Album is the derived album string, computed like Artist
	Album string

	// Duration is the track length in milliseconds
	Duration int64

	// Tags is the sorted set of tag names attached to the track
	Tags []string

	// CoverPath is the cover image path, empty when none is assigned
	CoverPath string

	// LastPlayed is when the track was last played (zero if never)
	LastPlayed time.Time

	// PlayCount is the number of recorded plays
	PlayCount int
}

// NoTrack returns the sentinel track used for out-of-range lookups.
func NoTrack() Track {
	return Track{ID: NoTrackID}
}

// Valid reports whether t refers to a real catalog entry.
func (t Track) Valid() bool {
	return t.ID >= 0
}

// DisplayTitle returns the title, falling back to the file base name.
func (t Track) DisplayTitle() string {
	if strings.TrimSpace(t.Title) != "" {
		return t.Title
	}
	return BaseName(t.FilePath)
}

// HasTag reports whether the track carries the named tag.
func (t Track) HasTag(name string) bool {
	for _, tag := range t.Tags {
		if tag == name {
			return true
		}
	}
	return false
}

// BaseName returns the file name of path without its extension.
func BaseName(path string) string {
	base := filepath.Base(path)
	return strings.TrimSuffix(base, filepath.Ext(base))
}

// TrackMetadata is the full set of flat fields replaced by a metadata update.
type TrackMetadata struct {
	Title     string
	Artist    string
	Album     string
	Duration  int64 // milliseconds
	CoverPath string
}

// ExtractedMetadata is what a metadata extractor reads from a media file.
// Empty strings mean the field was absent.
type ExtractedMetadata struct {
	Title    string
	Artist   string
	Album    string
	Duration int64 // milliseconds
	Cover    []byte
}

// Artist is a normalized artist name.
type Artist struct {
	ID   int64
	Name string
}

// Album is a normalized album name.
type Album struct {
	ID   int64
	Name string
}

// Tag is a user label attached to tracks.
type Tag struct {
	ID   int64
	Name string
}

// Playlist is a named, ordered collection of track references.
type Playlist struct {
	// ID is the store identity of the playlist
	ID int64

	// Name is the playlist name (not required to be unique)
	Name string

	// Created is when the playlist was created
	Created time.Time

	// Modified is bumped on every rename and membership change
	Modified time.Time
}

// HistoryEntry is a single recorded play.
type HistoryEntry struct {
	ID       int64
	TrackID  int64
	PlayedAt time.Time
}

// QueryKind selects the predicate of a track listing.
type QueryKind int

const (
	// QueryAll lists every track
	QueryAll QueryKind = iota

	// QuerySearch matches text against title, artist and album
	QuerySearch

	// QueryFilter combines artist, album and tag constraints
	QueryFilter

	// QueryByTag lists tracks carrying a tag name
	QueryByTag

	// QueryByArtist lists tracks related to an artist id
	QueryByArtist

	// QueryByAlbum lists tracks related to an album id
	QueryByAlbum

	// QueryPlaylist lists the members of a playlist in stored order
	QueryPlaylist

	// QueryHistory lists recently played tracks, most recent first
	QueryHistory
)

// String returns a human-readable name for the query kind.
func (k QueryKind) String() string {
	switch k {
	case QueryAll:
		return "all"
	case QuerySearch:
		return "search"
	case QueryFilter:
		return "filter"
	case QueryByTag:
		return "tag"
	case QueryByArtist:
		return "artist"
	case QueryByAlbum:
		return "album"
	case QueryPlaylist:
		return "playlist"
	case QueryHistory:
		return "history"
	default:
		return "unknown"
	}
}

// DefaultHistoryLimit is the number of entries a history view shows by default.
const DefaultHistoryLimit = 100

// TrackQuery is the predicate passed to a track listing.
// Build it with the constructor functions below rather than by hand.
type TrackQuery struct {
	Kind   QueryKind
	Text   string
	Artist string
	Album  string
	Tags   []string
	ID     int64
	Limit  int
}

// AllTracks lists the whole catalog.
func AllTracks() TrackQuery { return TrackQuery{Kind: QueryAll} }

// Search matches text case-insensitively against the flat title, artist and album.
func Search(text string) TrackQuery { return TrackQuery{Kind: QuerySearch, Text: text} }

// Filter constrains by artist, album and tags. Empty constraints are ignored.
func Filter(artist, album string, tags ...string) TrackQuery {
	return TrackQuery{Kind: QueryFilter, Artist: artist, Album: album, Tags: tags}
}

// ByTag lists tracks carrying the named tag.
func ByTag(name string) TrackQuery { return TrackQuery{Kind: QueryByTag, Text: name} }

// ByArtist lists tracks related to the artist id.
func ByArtist(id int64) TrackQuery { return TrackQuery{Kind: QueryByArtist, ID: id} }

// ByAlbum lists tracks related to the album id.
func ByAlbum(id int64) TrackQuery { return TrackQuery{Kind: QueryByAlbum, ID: id} }

// PlaylistMembers lists a playlist's tracks by position.
func PlaylistMembers(id int64) TrackQuery { return TrackQuery{Kind: QueryPlaylist, ID: id} }

// History lists the most recently played distinct tracks.
func History(limit int) TrackQuery {
	if limit <= 0 {
		limit = DefaultHistoryLimit
	}
	return TrackQuery{Kind: QueryHistory, Limit: limit}
}

// PlaybackState mirrors the engine-driven lifecycle of the current track.
type PlaybackState int

const (
	// StateStopped means nothing is playing
	StateStopped PlaybackState = iota

	// StateLoading means the engine is loading the current track
	StateLoading

	// StateReady means the track is loaded and waiting for play
	StateReady

	// StatePlaying means playback is active
	StatePlaying

	// StatePaused means playback is paused
	StatePaused

	// StateError means the engine rejected the media
	StateError
)

// String returns a human-readable representation of the playback state.
func (s PlaybackState) String() string {
	switch s {
	case StateStopped:
		return "stopped"
	case StateLoading:
		return "loading"
	case StateReady:
		return "ready"
	case StatePlaying:
		return "playing"
	case StatePaused:
		return "paused"
	case StateError:
		return "error"
	default:
		return "unknown"
	}
}

// MediaStatus is the load status reported by a playback engine.
type MediaStatus int

const (
	MediaNone MediaStatus = iota
	MediaLoading
	MediaReady
	MediaInvalid
	MediaEnded
)

// String returns a human-readable representation of the media status.
func (s MediaStatus) String() string {
	switch s {
	case MediaNone:
		return "none"
	case MediaLoading:
		return "loading"
	case MediaReady:
		return "ready"
	case MediaInvalid:
		return "invalid"
	case MediaEnded:
		return "ended"
	default:
		return "unknown"
	}
}

// EngineState is the transport state reported by a playback engine.
type EngineState int

const (
	EngineStopped EngineState = iota
	EnginePlaying
	EnginePaused
)

// String returns a human-readable representation of the engine state.
func (s EngineState) String() string {
	switch s {
	case EngineStopped:
		return "stopped"
	case EnginePlaying:
		return "playing"
	case EnginePaused:
		return "paused"
	default:
		return "unknown"
	}
}

// Direction selects the way the queue advances.
type Direction int

const (
	Next Direction = iota
	Previous
)

// QueueState is a snapshot of the queue controller.
type QueueState struct {
	// Track is the nominal current track (NoTrack when none)
	Track Track

	// CurrentIndex is the position in the projection, or NoIndex
	CurrentIndex int

	// State is the mirrored playback state
	State PlaybackState

	// Shuffle and Repeat are the advance flags
	Shuffle bool
	Repeat  bool

	// Seeking is set while a user-driven seek is in flight
	Seeking bool

	// Loaded reports whether the engine finished loading the current track
	Loaded bool

	// Position and Duration are in milliseconds
	Position int64
	Duration int64

	// Volume is the engine volume (0.0 to 1.0)
	Volume float64
}

// ImportProgress represents the progress of an import batch.
type ImportProgress struct {
	// CurrentFile is the file currently being imported
	CurrentFile string

	// FilesProcessed is the number of files handled so far
	FilesProcessed int

	// TotalFiles is the number of files in the batch
	TotalFiles int

	// TracksImported is the number of files that produced a track
	TracksImported int
}

// Percentage returns the completion percentage (0-100), or -1 if total is unknown.
func (p ImportProgress) Percentage() float64 {
	if p.TotalFiles <= 0 {
		return -1
	}
	return float64(p.FilesProcessed) / float64(p.TotalFiles) * 100
}

// PlaybackPrefs are the playback settings restored at startup.
type PlaybackPrefs struct {
	// Volume is the output volume (0.0 to 1.0)
	Volume float64

	// Shuffle and Repeat are the queue modes
	Shuffle bool
	Repeat  bool
}

// DefaultPlaybackPrefs returns the settings of a fresh install.
func DefaultPlaybackPrefs() PlaybackPrefs {
	return PlaybackPrefs{Volume: 0.8}
}
