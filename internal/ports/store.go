// Package ports define repository interfaces for the persistent catalog.
// The SQLite adapter implements all of them; services depend on the narrowest one they need.
package ports

import (
	"context"

	"github.com/tejashwikalptaru/tunelib/internal/domain"
)

// TrackStore persists tracks and answers track listings.
//
// Thread-safety: Implementations must be thread-safe.
type TrackStore interface {
	// UpsertTrack inserts a track keyed by its unique path, or returns the id of the
	// existing row without overwriting its metadata. Empty strings store as empty.
	UpsertTrack(ctx context.Context, path, title, artist, album string) (int64, error)

	// UpdateTrackMetadata replaces the flat fields of a track.
	// Normalized relationships and tags are left untouched.
	//
	// Returns domain.ErrTrackNotFound if the id has no row.
	UpdateTrackMetadata(ctx context.Context, id int64, meta domain.TrackMetadata) error

	// SetTrackCover replaces only the cover path of a track.
	SetTrackCover(ctx context.Context, id int64, coverPath string) error

	// GetTrack assembles a track with its tags and derived artist/album.
	//
	// Returns domain.ErrTrackNotFound if the id has no row.
	GetTrack(ctx context.Context, id int64) (domain.Track, error)

	// FindTrackByPath looks a track up by its file path.
	//
	// Returns domain.ErrTrackNotFound if no track has that path.
	FindTrackByPath(ctx context.Context, path string) (domain.Track, error)

	// ListTracks returns the tracks matching q. Results are ordered by title,
	// except playlist members (by position) and history (most recent first).
	ListTracks(ctx context.Context, q domain.TrackQuery) ([]domain.Track, error)

	// CountTracks returns the number of tracks in the catalog.
	CountTracks(ctx context.Context) (int, error)

	// DeleteTrack removes a track and every junction and history row referencing it.
	// Deleting a missing id is not an error.
	DeleteTrack(ctx context.Context, id int64) error
}

// PlaylistStore persists playlists and their ordered membership.
//
// Thread-safety: Implementations must be thread-safe.
type PlaylistStore interface {
	// CreatePlaylist creates an empty playlist and returns its id.
	CreatePlaylist(ctx context.Context, name string) (int64, error)

	// DeletePlaylist removes a playlist and its membership rows, never the tracks.
	DeletePlaylist(ctx context.Context, id int64) error

	// RenamePlaylist changes the name and bumps the modified timestamp.
	RenamePlaylist(ctx context.Context, id int64, name string) error

	// GetPlaylist returns one playlist.
	//
	// Returns domain.ErrPlaylistNotFound if the id has no row.
	GetPlaylist(ctx context.Context, id int64) (domain.Playlist, error)

	// ListPlaylists returns all playlists ordered by name.
	ListPlaylists(ctx context.Context) ([]domain.Playlist, error)

	// AddToPlaylist adds a track at position, or after the last member when position
	// is negative. Adding an existing member is a no-op.
	AddToPlaylist(ctx context.Context, playlistID, trackID int64, position int) error

	// RemoveFromPlaylist removes a member. Removing a non-member is a no-op.
	RemoveFromPlaylist(ctx context.Context, playlistID, trackID int64) error
}

// RelationStore persists artists, albums and tags and their links to tracks.
// Name lookups are case-exact.
//
// Thread-safety: Implementations must be thread-safe.
type RelationStore interface {
	AddArtist(ctx context.Context, name string) (int64, error)
	ArtistID(ctx context.Context, name string) (int64, error)
	AddArtistToTrack(ctx context.Context, trackID, artistID int64) error
	RemoveArtistFromTrack(ctx context.Context, trackID, artistID int64) error
	ListArtists(ctx context.Context) ([]domain.Artist, error)

	AddAlbum(ctx context.Context, name string) (int64, error)
	AlbumID(ctx context.Context, name string) (int64, error)
	AddAlbumToTrack(ctx context.Context, trackID, albumID int64) error
	RemoveAlbumFromTrack(ctx context.Context, trackID, albumID int64) error
	ListAlbums(ctx context.Context) ([]domain.Album, error)

	// ListAlbumsByArtist returns the distinct albums of every track related to the artist.
	ListAlbumsByArtist(ctx context.Context, artistID int64) ([]domain.Album, error)

	AddTag(ctx context.Context, name string) (int64, error)
	TagID(ctx context.Context, name string) (int64, error)
	AddTagToTrack(ctx context.Context, trackID, tagID int64) error
	RemoveTagFromTrack(ctx context.Context, trackID, tagID int64) error
	ListTags(ctx context.Context) ([]domain.Tag, error)
}

// PlayRecorder records plays. It is all the queue controller needs from the store.
type PlayRecorder interface {
	// RecordPlay appends a history entry, increments the play count and stamps
	// the last-played time of the track as one unit.
	RecordPlay(ctx context.Context, trackID int64) error
}

// HistoryStore manages play history.
type HistoryStore interface {
	PlayRecorder

	// TrackHistory returns the raw history entries of a track, newest first.
	TrackHistory(ctx context.Context, trackID int64) ([]domain.HistoryEntry, error)

	// ClearHistory removes every history entry. Play counts are kept.
	ClearHistory(ctx context.Context) error
}

// LibraryStore is the complete persistent catalog.
type LibraryStore interface {
	TrackStore
	PlaylistStore
	RelationStore
	HistoryStore

	// Close releases the underlying database.
	Close() error
}
