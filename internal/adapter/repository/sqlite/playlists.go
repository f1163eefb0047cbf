package sqlite

import (
	"context"
	"database/sql"
	"errors"
	"log/slog"
	"strings"
	"time"

	"github.com/tejashwikalptaru/tunelib/internal/domain"
)

// CreatePlaylist creates an empty playlist and returns its id.
func (s *Store) CreatePlaylist(ctx context.Context, name string) (int64, error) {
	if strings.TrimSpace(name) == "" {
		return 0, domain.ErrEmptyName
	}

	now := s.now()
	res, err := s.db.ExecContext(ctx,
		`INSERT INTO playlists (name, created, modified) VALUES (?, ?, ?)`, name, now, now)
	if err != nil {
		return 0, s.fail("create", "playlist", err)
	}
	id, err := res.LastInsertId()
	if err != nil {
		return 0, s.fail("create", "playlist", err)
	}

	s.logger.Debug("playlist created", slog.Int64("id", id), slog.String("name", name))
	return id, nil
}

// DeletePlaylist removes a playlist; membership rows cascade, tracks stay.
func (s *Store) DeletePlaylist(ctx context.Context, id int64) error {
	if id < 0 {
		return domain.ErrInvalidID
	}

	if _, err := s.db.ExecContext(ctx, `DELETE FROM playlists WHERE id = ?`, id); err != nil {
		return s.fail("delete", "playlist", err)
	}
	return nil
}

// RenamePlaylist changes the name and bumps the modified timestamp.
func (s *Store) RenamePlaylist(ctx context.Context, id int64, name string) error {
	if id < 0 {
		return domain.ErrInvalidID
	}
	if strings.TrimSpace(name) == "" {
		return domain.ErrEmptyName
	}

	res, err := s.db.ExecContext(ctx,
		`UPDATE playlists SET name = ?, modified = ? WHERE id = ?`, name, s.now(), id)
	if err != nil {
		return s.fail("rename", "playlist", err)
	}
	if n, err := res.RowsAffected(); err == nil && n == 0 {
		return domain.ErrPlaylistNotFound
	}
	return nil
}

// GetPlaylist returns one playlist.
func (s *Store) GetPlaylist(ctx context.Context, id int64) (domain.Playlist, error) {
	var p domain.Playlist
	err := s.db.QueryRowContext(ctx,
		`SELECT id, name, created, modified FROM playlists WHERE id = ?`, id).
		Scan(&p.ID, &p.Name, &p.Created, &p.Modified)
	if errors.Is(err, sql.ErrNoRows) {
		return domain.Playlist{}, domain.ErrPlaylistNotFound
	}
	if err != nil {
		return domain.Playlist{}, s.fail("get", "playlist", err)
	}
	return p, nil
}

// ListPlaylists returns all playlists ordered by name.
func (s *Store) ListPlaylists(ctx context.Context) ([]domain.Playlist, error) {
	rows, err := s.db.QueryContext(ctx, `SELECT id, name, created, modified FROM playlists ORDER BY name, id`)
	if err != nil {
		return nil, s.fail("list", "playlist", err)
	}
	defer rows.Close()

	playlists := make([]domain.Playlist, 0)
	for rows.Next() {
		var p domain.Playlist
		if err := rows.Scan(&p.ID, &p.Name, &p.Created, &p.Modified); err != nil {
			return nil, s.fail("list", "playlist", err)
		}
		playlists = append(playlists, p)
	}
	if err := rows.Err(); err != nil {
		return nil, s.fail("list", "playlist", err)
	}
	return playlists, nil
}

// AddToPlaylist adds a track at position, or after the last member when position
// is negative. Members at or after an explicit position shift down by one so
// positions stay unique. Adding an existing member changes nothing.
func (s *Store) AddToPlaylist(ctx context.Context, playlistID, trackID int64, position int) error {
	if playlistID < 0 || trackID < 0 {
		return domain.ErrInvalidID
	}

	added := false
	err := s.withTx(ctx, func(tx *sql.Tx) error {
		if err := requireRow(ctx, tx, "playlists", playlistID, domain.ErrPlaylistNotFound); err != nil {
			return err
		}
		if err := requireRow(ctx, tx, "tracks", trackID, domain.ErrTrackNotFound); err != nil {
			return err
		}

		var member int
		err := tx.QueryRowContext(ctx,
			`SELECT 1 FROM playlist_tracks WHERE playlist_id = ? AND track_id = ?`, playlistID, trackID).Scan(&member)
		if err == nil {
			return nil
		}
		if !errors.Is(err, sql.ErrNoRows) {
			return err
		}

		if position < 0 {
			err = tx.QueryRowContext(ctx,
				`SELECT COALESCE(MAX(position), -1) + 1 FROM playlist_tracks WHERE playlist_id = ?`,
				playlistID).Scan(&position)
			if err != nil {
				return err
			}
		} else {
			_, err = tx.ExecContext(ctx,
				`UPDATE playlist_tracks SET position = position + 1 WHERE playlist_id = ? AND position >= ?`,
				playlistID, position)
			if err != nil {
				return err
			}
		}

		_, err = tx.ExecContext(ctx,
			`INSERT INTO playlist_tracks (playlist_id, track_id, position) VALUES (?, ?, ?)`,
			playlistID, trackID, position)
		if err != nil {
			return err
		}
		added = true
		return touchPlaylist(ctx, tx, playlistID, s.now())
	})
	if err != nil {
		return s.fail("add_member", "playlist", err)
	}

	if added {
		s.logger.Debug("track added to playlist",
			slog.Int64("playlist_id", playlistID),
			slog.Int64("track_id", trackID),
			slog.Int("position", position))
	}
	return nil
}

// RemoveFromPlaylist removes a member and bumps the modified timestamp.
func (s *Store) RemoveFromPlaylist(ctx context.Context, playlistID, trackID int64) error {
	if playlistID < 0 || trackID < 0 {
		return domain.ErrInvalidID
	}

	err := s.withTx(ctx, func(tx *sql.Tx) error {
		res, err := tx.ExecContext(ctx,
			`DELETE FROM playlist_tracks WHERE playlist_id = ? AND track_id = ?`, playlistID, trackID)
		if err != nil {
			return err
		}
		if n, err := res.RowsAffected(); err != nil || n == 0 {
			return err
		}
		return touchPlaylist(ctx, tx, playlistID, s.now())
	})
	if err != nil {
		return s.fail("remove_member", "playlist", err)
	}
	return nil
}

func touchPlaylist(ctx context.Context, tx *sql.Tx, id int64, now time.Time) error {
	_, err := tx.ExecContext(ctx, `UPDATE playlists SET modified = ? WHERE id = ?`, now, id)
	return err
}
