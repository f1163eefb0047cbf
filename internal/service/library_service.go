// Package service provides the business logic of the tunelib media library.
package service

import (
	"context"
	"errors"
	"io/fs"
	"log/slog"
	"path/filepath"
	"slices"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/tejashwikalptaru/tunelib/internal/catalog"
	"github.com/tejashwikalptaru/tunelib/internal/domain"
	"github.com/tejashwikalptaru/tunelib/internal/ports"
)

var (
	// audioExtensions are imported as they are.
	audioExtensions = []string{".mp3", ".wav", ".flac", ".ogg", ".m4a", ".aac", ".wma"}

	// videoExtensions are converted to mp3 before import.
	videoExtensions = []string{".mp4", ".m4v"}
)

// ImportFailure is a file an import batch skipped.
type ImportFailure struct {
	Path string
	Err  error
}

// ImportResult summarizes an import batch.
type ImportResult struct {
	BatchID   string
	Imported  []domain.Track // tracks created by this batch
	Existing  int            // files already in the catalog
	Failed    []ImportFailure
	Cancelled bool
}

// View selects what the current list shows.
// The first non-empty selector wins: search text, then the artist/album/tag
// filter, then the playlist. An empty view shows the whole catalog.
type View struct {
	Search     string
	Artist     string
	Album      string
	Tags       []string
	PlaylistID int64
}

// Query returns the store predicate of the view.
func (v View) Query() domain.TrackQuery {
	switch {
	case strings.TrimSpace(v.Search) != "":
		return domain.Search(v.Search)
	case v.Artist != "" || v.Album != "" || len(v.Tags) > 0:
		return domain.Filter(v.Artist, v.Album, v.Tags...)
	case v.PlaylistID > 0:
		return domain.PlaylistMembers(v.PlaylistID)
	default:
		return domain.AllTracks()
	}
}

// LibraryService imports files into the catalog, keeps track metadata current
// and maintains the current list the queue plays from.
// All operations are thread-safe via sync.RWMutex.
type LibraryService struct {
	// Dependencies (injected)
	logger     *slog.Logger
	store      ports.LibraryStore
	extractor  ports.MetadataExtractor
	transcoder ports.Transcoder
	covers     *CoverResolver
	projection *catalog.Projection
	queue      *QueueController
	bus        ports.EventBus

	// State
	importing    bool
	cancelImport context.CancelFunc
	query        domain.TrackQuery

	// Concurrency control
	mu sync.RWMutex

	// Event subscriptions
	playlistSub domain.SubscriptionID
	historySub  domain.SubscriptionID
}

// NewLibraryService creates a library service. A nil transcoder makes video
// containers fail to import.
func NewLibraryService(
	logger *slog.Logger,
	store ports.LibraryStore,
	extractor ports.MetadataExtractor,
	transcoder ports.Transcoder,
	covers *CoverResolver,
	projection *catalog.Projection,
	queue *QueueController,
	bus ports.EventBus,
) *LibraryService {
	s := &LibraryService{
		logger:     logger.With(slog.String("service", "library")),
		store:      store,
		extractor:  extractor,
		transcoder: transcoder,
		covers:     covers,
		projection: projection,
		queue:      queue,
		bus:        bus,
		query:      domain.AllTracks(),
	}

	// Keep a displayed playlist in step with its membership
	s.playlistSub = bus.Subscribe(domain.EventPlaylistUpdated, s.handlePlaylistUpdated)
	// and a displayed history in step with new plays
	s.historySub = bus.Subscribe(domain.EventPlayRecorded, s.handlePlayRecorded)

	return s
}

// IsFormatSupported reports whether path has an importable extension.
func (s *LibraryService) IsFormatSupported(path string) bool {
	ext := strings.ToLower(filepath.Ext(path))
	return slices.Contains(audioExtensions, ext) || slices.Contains(videoExtensions, ext)
}

// SupportedFormats returns the importable extensions.
func (s *LibraryService) SupportedFormats() []string {
	return slices.Concat(audioExtensions, videoExtensions)
}

func needsTranscode(path string) bool {
	return slices.Contains(videoExtensions, strings.ToLower(filepath.Ext(path)))
}

// ImportFiles imports the given files as one batch. Unsupported or unreadable
// files are skipped and reported in the result; the batch carries on.
// Canceling ctx (or calling CancelImport) stops the batch and returns
// domain.ErrImportCancelled along with what was imported so far.
func (s *LibraryService) ImportFiles(ctx context.Context, paths []string) (ImportResult, error) {
	ctx, done, err := s.beginImport(ctx)
	if err != nil {
		return ImportResult{}, err
	}
	defer done()

	return s.importBatch(ctx, paths)
}

// ImportFolder imports every supported file under dir, recursively.
func (s *LibraryService) ImportFolder(ctx context.Context, dir string) (ImportResult, error) {
	ctx, done, err := s.beginImport(ctx)
	if err != nil {
		return ImportResult{}, err
	}
	defer done()

	files, err := s.collectFiles(ctx, dir)
	if err != nil {
		if errors.Is(err, context.Canceled) {
			return ImportResult{Cancelled: true}, domain.ErrImportCancelled
		}
		return ImportResult{}, err
	}
	return s.importBatch(ctx, files)
}

// CancelImport cancels the running import.
func (s *LibraryService) CancelImport() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if !s.importing {
		return domain.ErrNoImport
	}
	if s.cancelImport != nil {
		s.cancelImport()
	}
	return nil
}

// IsImporting returns true while an import batch runs.
func (s *LibraryService) IsImporting() bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.importing
}

func (s *LibraryService) beginImport(parent context.Context) (context.Context, func(), error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.importing {
		return nil, nil, domain.ErrImportInProgress
	}
	ctx, cancel := context.WithCancel(parent)
	s.importing = true
	s.cancelImport = cancel

	return ctx, func() {
		cancel()
		s.mu.Lock()
		s.importing = false
		s.cancelImport = nil
		s.mu.Unlock()
	}, nil
}

func (s *LibraryService) importBatch(ctx context.Context, paths []string) (ImportResult, error) {
	start := time.Now()
	result := ImportResult{BatchID: uuid.NewString()}
	log := s.logger.With(slog.String("batch_id", result.BatchID))

	log.Info("import started", slog.Int("files", len(paths)))
	s.bus.Publish(domain.NewImportStartedEvent(result.BatchID, len(paths)))

	for i, path := range paths {
		if ctx.Err() != nil {
			result.Cancelled = true
			break
		}

		track, created, err := s.importFile(ctx, path)
		switch {
		case err != nil:
			log.Warn("skipping file", slog.String("path", path), slog.Any("error", err))
			result.Failed = append(result.Failed, ImportFailure{Path: path, Err: err})
		case created:
			result.Imported = append(result.Imported, track)
			s.bus.Publish(domain.NewTrackImportedEvent(track))
		default:
			result.Existing++
		}

		s.bus.Publish(domain.NewImportProgressEvent(result.BatchID, domain.ImportProgress{
			CurrentFile:    path,
			FilesProcessed: i + 1,
			TotalFiles:     len(paths),
			TracksImported: len(result.Imported),
		}))
	}

	skipped := result.Existing + len(result.Failed)
	s.bus.Publish(domain.NewImportCompletedEvent(result.BatchID, len(result.Imported), skipped, result.Cancelled, time.Since(start)))
	log.Info("import finished",
		slog.Int("imported", len(result.Imported)),
		slog.Int("existing", result.Existing),
		slog.Int("failed", len(result.Failed)),
		slog.Bool("cancelled", result.Cancelled))

	if len(result.Imported) > 0 {
		if _, err := s.Reload(context.WithoutCancel(ctx)); err != nil {
			log.Warn("failed to refresh current list", slog.Any("error", err))
		}
	}

	if result.Cancelled {
		return result, domain.ErrImportCancelled
	}
	return result, nil
}

// importFile adds one file and reports whether a new track was created.
func (s *LibraryService) importFile(ctx context.Context, path string) (domain.Track, bool, error) {
	if !s.IsFormatSupported(path) {
		return domain.NoTrack(), false, domain.ErrUnsupportedFormat
	}
	abs, err := filepath.Abs(path)
	if err != nil {
		return domain.NoTrack(), false, err
	}
	if !regularFileExists(abs) {
		return domain.NoTrack(), false, domain.NewMediaError(path, "file does not exist", domain.ErrFileNotFound)
	}

	if needsTranscode(abs) {
		if s.transcoder == nil {
			return domain.NoTrack(), false, domain.NewToolError("ffmpeg", "transcode", abs, "", errors.New("no transcoder configured"))
		}
		out, err := s.transcoder.Transcode(ctx, abs)
		if err != nil {
			return domain.NoTrack(), false, err
		}
		abs = out
	}

	existing, err := s.store.FindTrackByPath(ctx, abs)
	if err == nil {
		return existing, false, nil
	}
	if !errors.Is(err, domain.ErrTrackNotFound) {
		return domain.NoTrack(), false, err
	}

	id, err := s.store.UpsertTrack(ctx, abs, domain.BaseName(abs), "", "")
	if err != nil {
		return domain.NoTrack(), false, err
	}
	track, err := s.store.GetTrack(ctx, id)
	if err != nil {
		return domain.NoTrack(), false, err
	}

	refreshed, err := s.RefreshMetadata(ctx, track)
	if err != nil {
		// The row exists; it keeps its file-name title until the next refresh
		s.logger.Warn("metadata unavailable", slog.String("path", abs), slog.Any("error", err))
		return track, true, nil
	}
	return refreshed, true, nil
}

// collectFiles recursively collects supported files under dir.
func (s *LibraryService) collectFiles(ctx context.Context, dir string) ([]string, error) {
	files := make([]string, 0)

	err := filepath.WalkDir(dir, func(path string, d fs.DirEntry, err error) error {
		if ctx.Err() != nil {
			return context.Canceled
		}
		if err != nil {
			if path == dir {
				return err
			}
			// Skip entries we can't access
			return nil
		}
		if !d.IsDir() && s.IsFormatSupported(path) {
			files = append(files, path)
		}
		return nil
	})
	return files, err
}

// RefreshMetadata re-reads the file of track and stores the result: the title
// falls back to the file name, and an embedded cover is cached unless the
// track already has one. It returns the updated track.
//
// RefreshMetadata publishes nothing, so it can run as the queue's refresher.
func (s *LibraryService) RefreshMetadata(ctx context.Context, track domain.Track) (domain.Track, error) {
	if !track.Valid() {
		return track, domain.ErrInvalidID
	}

	meta, err := s.extractor.Extract(track.FilePath)
	if err != nil {
		return track, err
	}

	stored, err := s.store.GetTrack(ctx, track.ID)
	if err != nil {
		return track, err
	}

	title := meta.Title
	if strings.TrimSpace(title) == "" {
		title = domain.BaseName(track.FilePath)
	}
	duration := meta.Duration
	if duration <= 0 {
		duration = stored.Duration
	}

	update := domain.TrackMetadata{
		Title:     title,
		Artist:    meta.Artist,
		Album:     meta.Album,
		Duration:  duration,
		CoverPath: stored.CoverPath,
	}
	if err := s.store.UpdateTrackMetadata(ctx, track.ID, update); err != nil {
		return track, err
	}

	if len(meta.Cover) > 0 && s.covers != nil {
		if _, _, err := s.covers.CacheEmbedded(ctx, stored, meta.Cover); err != nil {
			s.logger.Warn("embedded cover not cached", slog.Int64("track_id", track.ID), slog.Any("error", err))
		}
	}

	return s.store.GetTrack(ctx, track.ID)
}

// RemoveFile deletes the track whose file is gone. Unknown paths are ignored.
func (s *LibraryService) RemoveFile(ctx context.Context, path string) error {
	track, err := s.store.FindTrackByPath(ctx, path)
	if errors.Is(err, domain.ErrTrackNotFound) {
		return nil
	}
	if err != nil {
		return err
	}
	return s.DeleteTrack(ctx, track.ID)
}

// DeleteTrack removes a track, everything referencing it and its cached cover,
// then refreshes the current list. Playback of the deleted track is not interrupted.
func (s *LibraryService) DeleteTrack(ctx context.Context, id int64) error {
	if id < 0 {
		return domain.ErrInvalidID
	}
	track, err := s.store.GetTrack(ctx, id)
	if errors.Is(err, domain.ErrTrackNotFound) {
		return nil
	}
	if err != nil {
		return err
	}

	if err := s.store.DeleteTrack(ctx, id); err != nil {
		return err
	}
	if s.covers != nil {
		s.covers.RemoveCached(id)
	}
	s.logger.Info("track removed", slog.Int64("track_id", id), slog.String("path", track.FilePath))
	s.bus.Publish(domain.NewTrackRemovedEvent(id, track.FilePath))

	_, err = s.Reload(ctx)
	return err
}

// ShowAll shows the whole catalog.
func (s *LibraryService) ShowAll(ctx context.Context) (int, error) {
	return s.show(ctx, domain.AllTracks())
}

// ShowSearch shows the tracks whose title, artist or album contains text.
func (s *LibraryService) ShowSearch(ctx context.Context, text string) (int, error) {
	return s.show(ctx, domain.Search(text))
}

// ShowFilter shows the tracks matching every given constraint.
func (s *LibraryService) ShowFilter(ctx context.Context, artist, album string, tags ...string) (int, error) {
	return s.show(ctx, domain.Filter(artist, album, tags...))
}

// ShowPlaylist shows the members of a playlist in their stored order.
func (s *LibraryService) ShowPlaylist(ctx context.Context, playlistID int64) (int, error) {
	if _, err := s.store.GetPlaylist(ctx, playlistID); err != nil {
		return 0, err
	}
	return s.show(ctx, domain.PlaylistMembers(playlistID))
}

// ShowTag shows the tracks carrying a tag.
func (s *LibraryService) ShowTag(ctx context.Context, name string) (int, error) {
	return s.show(ctx, domain.ByTag(name))
}

// ShowArtist shows the tracks related to an artist.
func (s *LibraryService) ShowArtist(ctx context.Context, artistID int64) (int, error) {
	return s.show(ctx, domain.ByArtist(artistID))
}

// ShowAlbum shows the tracks related to an album.
func (s *LibraryService) ShowAlbum(ctx context.Context, albumID int64) (int, error) {
	return s.show(ctx, domain.ByAlbum(albumID))
}

// ShowHistory shows the most recently played tracks.
func (s *LibraryService) ShowHistory(ctx context.Context, limit int) (int, error) {
	return s.show(ctx, domain.History(limit))
}

// ApplyView shows the selection of v. See View for the precedence rules.
func (s *LibraryService) ApplyView(ctx context.Context, v View) (int, error) {
	return s.show(ctx, v.Query())
}

// Reload re-runs the current selection.
func (s *LibraryService) Reload(ctx context.Context) (int, error) {
	return s.show(ctx, s.CurrentQuery())
}

// CurrentQuery returns the selection behind the current list.
func (s *LibraryService) CurrentQuery() domain.TrackQuery {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.query
}

// show rebuilds the current list from q and resynchronizes the queue by
// track identity. Playback is never interrupted. On failure the list is kept.
func (s *LibraryService) show(ctx context.Context, q domain.TrackQuery) (int, error) {
	tracks, err := s.store.ListTracks(ctx, q)
	if err != nil {
		s.logger.Error("failed to list tracks", slog.String("query", q.Kind.String()), slog.Any("error", err))
		return 0, err
	}

	s.mu.Lock()
	s.query = q
	s.projection.SetTracks(tracks)
	s.mu.Unlock()

	s.queue.Resync()
	s.bus.Publish(domain.NewProjectionRebuiltEvent(q, len(tracks)))

	s.logger.Debug("current list rebuilt", slog.String("query", q.Kind.String()), slog.Int("count", len(tracks)))
	return len(tracks), nil
}

// Tracks returns a copy of the current list.
func (s *LibraryService) Tracks() []domain.Track {
	return s.projection.Tracks()
}

// PlayFromHistory plays a track picked from the history. A track missing from
// the current list is appended to it first.
func (s *LibraryService) PlayFromHistory(track domain.Track) error {
	if !track.Valid() {
		return domain.ErrInvalidID
	}

	index := s.projection.IndexOf(track.ID)
	if index == domain.NoIndex {
		index = s.projection.Append(track)
	}
	return s.queue.PlayAt(index)
}

// TagTrack attaches a tag, creating it when needed.
func (s *LibraryService) TagTrack(ctx context.Context, trackID int64, name string) error {
	tagID, err := s.store.AddTag(ctx, name)
	if err != nil {
		return err
	}
	if err := s.store.AddTagToTrack(ctx, trackID, tagID); err != nil {
		return err
	}
	return s.refreshListed(ctx, trackID)
}

// UntagTrack detaches a tag. Unknown tags are ignored.
func (s *LibraryService) UntagTrack(ctx context.Context, trackID int64, name string) error {
	tagID, err := s.store.TagID(ctx, name)
	if errors.Is(err, domain.ErrTagNotFound) {
		return nil
	}
	if err != nil {
		return err
	}
	if err := s.store.RemoveTagFromTrack(ctx, trackID, tagID); err != nil {
		return err
	}
	return s.refreshListed(ctx, trackID)
}

// LinkArtist relates a track to an artist, creating the artist when needed.
// The track's displayed artist becomes the sorted list of its related artists.
func (s *LibraryService) LinkArtist(ctx context.Context, trackID int64, name string) error {
	artistID, err := s.store.AddArtist(ctx, name)
	if err != nil {
		return err
	}
	if err := s.store.AddArtistToTrack(ctx, trackID, artistID); err != nil {
		return err
	}
	return s.refreshListed(ctx, trackID)
}

// UnlinkArtist removes a track-artist relation. Unknown artists are ignored.
func (s *LibraryService) UnlinkArtist(ctx context.Context, trackID int64, name string) error {
	artistID, err := s.store.ArtistID(ctx, name)
	if errors.Is(err, domain.ErrArtistNotFound) {
		return nil
	}
	if err != nil {
		return err
	}
	if err := s.store.RemoveArtistFromTrack(ctx, trackID, artistID); err != nil {
		return err
	}
	return s.refreshListed(ctx, trackID)
}

// LinkAlbum relates a track to an album, creating the album when needed.
func (s *LibraryService) LinkAlbum(ctx context.Context, trackID int64, name string) error {
	albumID, err := s.store.AddAlbum(ctx, name)
	if err != nil {
		return err
	}
	if err := s.store.AddAlbumToTrack(ctx, trackID, albumID); err != nil {
		return err
	}
	return s.refreshListed(ctx, trackID)
}

// UnlinkAlbum removes a track-album relation. Unknown albums are ignored.
func (s *LibraryService) UnlinkAlbum(ctx context.Context, trackID int64, name string) error {
	albumID, err := s.store.AlbumID(ctx, name)
	if errors.Is(err, domain.ErrAlbumNotFound) {
		return nil
	}
	if err != nil {
		return err
	}
	if err := s.store.RemoveAlbumFromTrack(ctx, trackID, albumID); err != nil {
		return err
	}
	return s.refreshListed(ctx, trackID)
}

// refreshListed replaces the listed copy of a track after its relations changed.
func (s *LibraryService) refreshListed(ctx context.Context, trackID int64) error {
	track, err := s.store.GetTrack(ctx, trackID)
	if err != nil {
		return err
	}
	s.projection.Replace(track)
	return nil
}

// AssignCover makes the image at imagePath the cover of a track.
func (s *LibraryService) AssignCover(ctx context.Context, trackID int64, imagePath string) (string, error) {
	path, err := s.covers.AssignUserCover(ctx, trackID, imagePath)
	if err != nil {
		return "", err
	}
	if err := s.refreshListed(ctx, trackID); err != nil {
		return "", err
	}
	return path, nil
}

// Cover resolves the cover image of a track.
func (s *LibraryService) Cover(ctx context.Context, trackID int64) (string, bool, error) {
	track, err := s.store.GetTrack(ctx, trackID)
	if err != nil {
		return "", false, err
	}
	path, ok := s.covers.Resolve(track)
	return path, ok, nil
}

// Artists lists every artist by name.
func (s *LibraryService) Artists(ctx context.Context) ([]domain.Artist, error) {
	return s.store.ListArtists(ctx)
}

// Albums lists every album by name.
func (s *LibraryService) Albums(ctx context.Context) ([]domain.Album, error) {
	return s.store.ListAlbums(ctx)
}

// AlbumsByArtist lists the albums of the tracks related to an artist.
func (s *LibraryService) AlbumsByArtist(ctx context.Context, artistID int64) ([]domain.Album, error) {
	return s.store.ListAlbumsByArtist(ctx, artistID)
}

// Tags lists every tag by name.
func (s *LibraryService) Tags(ctx context.Context) ([]domain.Tag, error) {
	return s.store.ListTags(ctx)
}

// ClearHistory forgets every recorded play. Play counts are kept.
func (s *LibraryService) ClearHistory(ctx context.Context) error {
	if err := s.store.ClearHistory(ctx); err != nil {
		return err
	}
	if s.CurrentQuery().Kind == domain.QueryHistory {
		_, err := s.Reload(ctx)
		return err
	}
	return nil
}

func (s *LibraryService) handlePlaylistUpdated(event domain.Event) {
	e, ok := event.(domain.PlaylistUpdatedEvent)
	if !ok {
		return
	}
	q := s.CurrentQuery()
	if q.Kind != domain.QueryPlaylist || q.ID != e.PlaylistID {
		return
	}

	ctx := context.Background()
	var err error
	if e.Deleted {
		_, err = s.ShowAll(ctx)
	} else {
		_, err = s.Reload(ctx)
	}
	if err != nil {
		s.logger.Warn("failed to refresh playlist view", slog.Int64("playlist_id", e.PlaylistID), slog.Any("error", err))
	}
}

func (s *LibraryService) handlePlayRecorded(event domain.Event) {
	if s.CurrentQuery().Kind != domain.QueryHistory {
		return
	}
	if _, err := s.Reload(context.Background()); err != nil {
		s.logger.Warn("failed to refresh history view", slog.Any("error", err))
	}
}

// Shutdown cancels any running import and stops listening for playlist and history changes.
func (s *LibraryService) Shutdown() error {
	s.bus.Unsubscribe(s.playlistSub)
	s.bus.Unsubscribe(s.historySub)

	s.mu.Lock()
	defer s.mu.Unlock()
	if s.importing && s.cancelImport != nil {
		s.cancelImport()
	}
	return nil
}
