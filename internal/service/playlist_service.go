package service

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"path/filepath"
	"strings"

	"github.com/tejashwikalptaru/tunelib/internal/domain"
	"github.com/tejashwikalptaru/tunelib/internal/ports"
)

// m3uHeader opens an extended M3U file.
const m3uHeader = "#EXTM3U"

// M3UImport summarizes a playlist read from an M3U file.
type M3UImport struct {
	PlaylistID int64
	Added      int      // distinct tracks added
	Unknown    []string // entries with no track in the catalog
}

// PlaylistService manages named playlists and their membership.
// Every change publishes a playlist.updated event so the current list can
// follow a displayed playlist.
type PlaylistService struct {
	// Dependencies (injected)
	logger *slog.Logger
	store  ports.LibraryStore
	bus    ports.EventBus
}

// NewPlaylistService creates a new playlist service.
func NewPlaylistService(logger *slog.Logger, store ports.LibraryStore, bus ports.EventBus) *PlaylistService {
	return &PlaylistService{
		logger: logger.With(slog.String("service", "playlist")),
		store:  store,
		bus:    bus,
	}
}

// Create creates an empty playlist and returns its id.
func (s *PlaylistService) Create(ctx context.Context, name string) (int64, error) {
	name = strings.TrimSpace(name)
	if name == "" {
		return 0, domain.ErrEmptyName
	}

	id, err := s.store.CreatePlaylist(ctx, name)
	if err != nil {
		return 0, err
	}

	s.logger.Info("playlist created", slog.Int64("playlist_id", id), slog.String("name", name))
	s.bus.Publish(domain.NewPlaylistUpdatedEvent(id, false))
	return id, nil
}

// Rename renames a playlist.
func (s *PlaylistService) Rename(ctx context.Context, id int64, name string) error {
	name = strings.TrimSpace(name)
	if name == "" {
		return domain.ErrEmptyName
	}
	if err := s.store.RenamePlaylist(ctx, id, name); err != nil {
		return err
	}

	s.bus.Publish(domain.NewPlaylistUpdatedEvent(id, false))
	return nil
}

// Delete removes a playlist. Its tracks stay in the catalog.
func (s *PlaylistService) Delete(ctx context.Context, id int64) error {
	if err := s.store.DeletePlaylist(ctx, id); err != nil {
		return err
	}

	s.logger.Info("playlist deleted", slog.Int64("playlist_id", id))
	s.bus.Publish(domain.NewPlaylistUpdatedEvent(id, true))
	return nil
}

// Add inserts a track at position, or appends it when position is negative.
func (s *PlaylistService) Add(ctx context.Context, playlistID, trackID int64, position int) error {
	if err := s.store.AddToPlaylist(ctx, playlistID, trackID, position); err != nil {
		return err
	}

	s.bus.Publish(domain.NewPlaylistUpdatedEvent(playlistID, false))
	return nil
}

// Remove drops a track from a playlist. Removing a non-member does nothing.
func (s *PlaylistService) Remove(ctx context.Context, playlistID, trackID int64) error {
	if err := s.store.RemoveFromPlaylist(ctx, playlistID, trackID); err != nil {
		return err
	}

	s.bus.Publish(domain.NewPlaylistUpdatedEvent(playlistID, false))
	return nil
}

// List returns every playlist.
func (s *PlaylistService) List(ctx context.Context) ([]domain.Playlist, error) {
	return s.store.ListPlaylists(ctx)
}

// Get returns a single playlist.
func (s *PlaylistService) Get(ctx context.Context, id int64) (domain.Playlist, error) {
	return s.store.GetPlaylist(ctx, id)
}

// Tracks returns the members of a playlist in order.
func (s *PlaylistService) Tracks(ctx context.Context, id int64) ([]domain.Track, error) {
	if _, err := s.store.GetPlaylist(ctx, id); err != nil {
		return nil, err
	}
	return s.store.ListTracks(ctx, domain.PlaylistMembers(id))
}

// ExportM3U writes a playlist as extended M3U.
func (s *PlaylistService) ExportM3U(ctx context.Context, id int64, w io.Writer) error {
	tracks, err := s.Tracks(ctx, id)
	if err != nil {
		return err
	}

	bw := bufio.NewWriter(w)
	fmt.Fprintln(bw, m3uHeader)
	for _, track := range tracks {
		fmt.Fprintf(bw, "#EXTINF:%d,%s\n", extinfSeconds(track.Duration), extinfTitle(track))
		fmt.Fprintln(bw, track.FilePath)
	}
	return bw.Flush()
}

// extinfSeconds rounds to whole seconds; -1 marks an unknown length.
func extinfSeconds(ms int64) int64 {
	if ms <= 0 {
		return -1
	}
	return (ms + 500) / 1000
}

func extinfTitle(track domain.Track) string {
	title := track.DisplayTitle()
	if track.Artist == "" {
		return title
	}
	return track.Artist + " - " + title
}

// ImportM3U creates a playlist named name from an M3U stream. Relative entries
// are resolved against baseDir. Entries that are not in the catalog are
// skipped and reported.
func (s *PlaylistService) ImportM3U(ctx context.Context, name string, r io.Reader, baseDir string) (M3UImport, error) {
	entries, err := parseM3U(r)
	if err != nil {
		return M3UImport{}, err
	}

	id, err := s.Create(ctx, name)
	if err != nil {
		return M3UImport{}, err
	}
	result := M3UImport{PlaylistID: id}
	seen := make(map[int64]bool)

	for _, entry := range entries {
		path := entry
		if !filepath.IsAbs(path) && baseDir != "" {
			path = filepath.Join(baseDir, path)
		}
		path = filepath.Clean(path)

		track, err := s.store.FindTrackByPath(ctx, path)
		if errors.Is(err, domain.ErrTrackNotFound) {
			s.logger.Warn("playlist entry not in library", slog.String("path", path))
			result.Unknown = append(result.Unknown, entry)
			continue
		}
		if err != nil {
			return result, err
		}
		if seen[track.ID] {
			continue
		}
		seen[track.ID] = true
		if err := s.store.AddToPlaylist(ctx, id, track.ID, -1); err != nil {
			return result, err
		}
		result.Added++
	}

	s.logger.Info("playlist imported",
		slog.Int64("playlist_id", id),
		slog.Int("added", result.Added),
		slog.Int("unknown", len(result.Unknown)))
	if result.Added > 0 {
		s.bus.Publish(domain.NewPlaylistUpdatedEvent(id, false))
	}
	return result, nil
}

// parseM3U returns the path entries of an M3U stream in order.
func parseM3U(r io.Reader) ([]string, error) {
	var entries []string

	scanner := bufio.NewScanner(r)
	for scanner.Scan() {
		line := strings.TrimSpace(scanner.Text())
		// Byte order mark on the first line
		line = strings.TrimPrefix(line, "\ufeff")
		if line == "" || strings.HasPrefix(line, "#") {
			continue
		}
		line = strings.Trim(line, `"'`)
		if line != "" {
			entries = append(entries, line)
		}
	}
	if err := scanner.Err(); err != nil {
		return nil, fmt.Errorf("failed to read playlist file: %w", err)
	}
	return entries, nil
}
