package service

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"log/slog"
	"os"
	"path/filepath"
	"strconv"

	"github.com/tejashwikalptaru/tunelib/internal/domain"
	"github.com/tejashwikalptaru/tunelib/internal/ports"
)

// CoverNames are the image file names looked for next to a track, in order.
var CoverNames = []string{
	"cover.jpg", "cover.png",
	"folder.jpg", "folder.png",
	"album.jpg", "album.png",
	"artwork.jpg", "artwork.png",
}

// CoverResolver finds the image to show for a track and maintains the
// per-track cover cache.
//
// Resolution order:
//  1. the cover path stored on the track, if the file still exists
//  2. the cached copy of the embedded image, <coversDir>/<id>.jpg
//  3. a well-known image file next to the media file (see CoverNames)
//
// No cover is a normal outcome, not an error.
type CoverResolver struct {
	logger    *slog.Logger
	store     ports.TrackStore
	writer    ports.CoverWriter
	coversDir string
}

// NewCoverResolver creates a resolver caching covers under coversDir.
func NewCoverResolver(logger *slog.Logger, store ports.TrackStore, writer ports.CoverWriter, coversDir string) *CoverResolver {
	return &CoverResolver{
		logger:    logger.With(slog.String("service", "covers")),
		store:     store,
		writer:    writer,
		coversDir: coversDir,
	}
}

// CachePath returns the cache file of a track.
func (r *CoverResolver) CachePath(trackID int64) string {
	return filepath.Join(r.coversDir, strconv.FormatInt(trackID, 10)+".jpg")
}

// Resolve returns the cover image path for track, or false if there is none.
func (r *CoverResolver) Resolve(track domain.Track) (string, bool) {
	if track.CoverPath != "" && regularFileExists(track.CoverPath) {
		return track.CoverPath, true
	}

	if track.Valid() {
		if cached := r.CachePath(track.ID); regularFileExists(cached) {
			return cached, true
		}
	}

	if track.FilePath == "" {
		return "", false
	}
	dir := filepath.Dir(track.FilePath)
	for _, name := range CoverNames {
		candidate := filepath.Join(dir, name)
		if regularFileExists(candidate) {
			return candidate, true
		}
	}
	return "", false
}

// HasCover reports whether the track already has a cover file of its own.
// Such a cover is never replaced by an embedded image.
func (r *CoverResolver) HasCover(track domain.Track) bool {
	return track.CoverPath != "" && regularFileExists(track.CoverPath)
}

// CacheEmbedded stores an embedded image as the track's cover. It does nothing
// and returns false when the track already has a cover or data is empty.
func (r *CoverResolver) CacheEmbedded(ctx context.Context, track domain.Track, data []byte) (string, bool, error) {
	if !track.Valid() {
		return "", false, domain.ErrInvalidID
	}
	if len(data) == 0 || r.HasCover(track) {
		return "", false, nil
	}

	dest := r.CachePath(track.ID)
	if err := r.writer.WriteCover(data, dest); err != nil {
		r.logger.Warn("failed to cache embedded cover", slog.Int64("track_id", track.ID), slog.Any("error", err))
		return "", false, err
	}
	if err := r.store.SetTrackCover(ctx, track.ID, dest); err != nil {
		return "", false, err
	}

	r.logger.Debug("embedded cover cached", slog.Int64("track_id", track.ID), slog.String("path", dest))
	return dest, true, nil
}

// RemoveCached deletes the cached cover of trackID, if there is one.
func (r *CoverResolver) RemoveCached(trackID int64) {
	err := os.Remove(r.CachePath(trackID))
	if err != nil && !errors.Is(err, fs.ErrNotExist) {
		r.logger.Warn("failed to remove cached cover", slog.Int64("track_id", trackID), slog.Any("error", err))
	}
}

// AssignUserCover copies the image at imagePath into the cache and makes it the
// track's cover, replacing whatever cover it had.
func (r *CoverResolver) AssignUserCover(ctx context.Context, trackID int64, imagePath string) (string, error) {
	if trackID < 0 {
		return "", domain.ErrInvalidID
	}
	if !regularFileExists(imagePath) {
		return "", domain.NewMediaError(imagePath, "cover image does not exist", domain.ErrFileNotFound)
	}
	if _, err := r.store.GetTrack(ctx, trackID); err != nil {
		return "", err
	}

	data, err := os.ReadFile(imagePath)
	if err != nil {
		return "", fmt.Errorf("failed to read cover image: %w", err)
	}

	dest := r.CachePath(trackID)
	if err := r.writer.WriteCover(data, dest); err != nil {
		return "", err
	}
	if err := r.store.SetTrackCover(ctx, trackID, dest); err != nil {
		return "", err
	}

	r.logger.Info("cover assigned", slog.Int64("track_id", trackID), slog.String("source", imagePath))
	return dest, nil
}
