package sqlite

import (
	"context"
	"database/sql"
	"errors"
	"log/slog"
	"path/filepath"
	"strings"

	"github.com/tejashwikalptaru/tunelib/internal/domain"
)

// trackColumns is the select list read by scanTrack.
// last_played is selected bare so the driver keeps its DATETIME type.
const trackColumns = `t.id, t.file_path, COALESCE(t.title, ''), COALESCE(t.artist, ''),
	COALESCE(t.album, ''), COALESCE(t.duration, 0), COALESCE(t.cover_path, ''),
	t.last_played, COALESCE(t.play_count, 0)`

type rowScanner interface {
	Scan(dest ...any) error
}

func scanTrack(row rowScanner) (domain.Track, error) {
	var (
		t          domain.Track
		lastPlayed sql.NullTime
	)
	err := row.Scan(&t.ID, &t.FilePath, &t.Title, &t.Artist, &t.Album,
		&t.Duration, &t.CoverPath, &lastPlayed, &t.PlayCount)
	if err != nil {
		return domain.Track{}, err
	}
	if lastPlayed.Valid {
		t.LastPlayed = lastPlayed.Time
	}
	return t, nil
}

// UpsertTrack inserts a track keyed by path or returns the existing row's id.
// Existing metadata is never overwritten.
func (s *Store) UpsertTrack(ctx context.Context, path, title, artist, album string) (int64, error) {
	if strings.TrimSpace(path) == "" {
		return 0, domain.NewValidationError("path", path, "must not be empty")
	}
	path = filepath.Clean(path)

	var id int64
	err := s.withTx(ctx, func(tx *sql.Tx) error {
		res, err := tx.ExecContext(ctx,
			`INSERT OR IGNORE INTO tracks (file_path, title, artist, album) VALUES (?, ?, ?, ?)`,
			path, title, artist, album)
		if err != nil {
			return err
		}
		if n, err := res.RowsAffected(); err == nil && n == 1 {
			id, err = res.LastInsertId()
			return err
		}
		return tx.QueryRowContext(ctx, `SELECT id FROM tracks WHERE file_path = ?`, path).Scan(&id)
	})
	if err != nil {
		return 0, s.fail("upsert", "track", err)
	}

	s.logger.Debug("track upserted", slog.Int64("id", id), slog.String("path", path))
	return id, nil
}

// UpdateTrackMetadata replaces the flat fields of a track.
func (s *Store) UpdateTrackMetadata(ctx context.Context, id int64, meta domain.TrackMetadata) error {
	if id < 0 {
		return domain.ErrInvalidID
	}

	res, err := s.db.ExecContext(ctx,
		`UPDATE tracks SET title = ?, artist = ?, album = ?, duration = ?, cover_path = ? WHERE id = ?`,
		meta.Title, meta.Artist, meta.Album, meta.Duration, nullString(meta.CoverPath), id)
	if err != nil {
		return s.fail("update_metadata", "track", err)
	}
	if n, err := res.RowsAffected(); err == nil && n == 0 {
		return domain.ErrTrackNotFound
	}
	return nil
}

// SetTrackCover replaces only the cover path of a track.
func (s *Store) SetTrackCover(ctx context.Context, id int64, coverPath string) error {
	if id < 0 {
		return domain.ErrInvalidID
	}

	res, err := s.db.ExecContext(ctx, `UPDATE tracks SET cover_path = ? WHERE id = ?`, nullString(coverPath), id)
	if err != nil {
		return s.fail("set_cover", "track", err)
	}
	if n, err := res.RowsAffected(); err == nil && n == 0 {
		return domain.ErrTrackNotFound
	}
	return nil
}

// GetTrack assembles a track with its tags and derived artist/album.
func (s *Store) GetTrack(ctx context.Context, id int64) (domain.Track, error) {
	if id < 0 {
		return domain.NoTrack(), domain.ErrInvalidID
	}

	t, err := scanTrack(s.db.QueryRowContext(ctx, `SELECT `+trackColumns+` FROM tracks t WHERE t.id = ?`, id))
	if errors.Is(err, sql.ErrNoRows) {
		return domain.NoTrack(), domain.ErrTrackNotFound
	}
	if err != nil {
		return domain.NoTrack(), s.fail("get", "track", err)
	}

	tracks := []domain.Track{t}
	if err := s.attachRelations(ctx, tracks); err != nil {
		return domain.NoTrack(), s.fail("get", "track", err)
	}
	return tracks[0], nil
}

// FindTrackByPath looks a track up by its file path.
func (s *Store) FindTrackByPath(ctx context.Context, path string) (domain.Track, error) {
	t, err := scanTrack(s.db.QueryRowContext(ctx,
		`SELECT `+trackColumns+` FROM tracks t WHERE t.file_path = ?`, filepath.Clean(path)))
	if errors.Is(err, sql.ErrNoRows) {
		return domain.NoTrack(), domain.ErrTrackNotFound
	}
	if err != nil {
		return domain.NoTrack(), s.fail("find_by_path", "track", err)
	}

	tracks := []domain.Track{t}
	if err := s.attachRelations(ctx, tracks); err != nil {
		return domain.NoTrack(), s.fail("find_by_path", "track", err)
	}
	return tracks[0], nil
}

// ListTracks returns the tracks matching q.
func (s *Store) ListTracks(ctx context.Context, q domain.TrackQuery) ([]domain.Track, error) {
	query, args := buildTrackQuery(q)

	tracks, err := s.queryTracks(ctx, query, args...)
	if err != nil {
		return nil, s.fail("list_"+q.Kind.String(), "track", err)
	}
	if err := s.attachRelations(ctx, tracks); err != nil {
		return nil, s.fail("list_"+q.Kind.String(), "track", err)
	}
	return tracks, nil
}

// CountTracks returns the number of tracks in the catalog.
func (s *Store) CountTracks(ctx context.Context) (int, error) {
	var n int
	if err := s.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM tracks`).Scan(&n); err != nil {
		return 0, s.fail("count", "track", err)
	}
	return n, nil
}

// DeleteTrack removes a track. Junction and history rows go with it through
// the foreign key cascades.
func (s *Store) DeleteTrack(ctx context.Context, id int64) error {
	if id < 0 {
		return domain.ErrInvalidID
	}

	res, err := s.db.ExecContext(ctx, `DELETE FROM tracks WHERE id = ?`, id)
	if err != nil {
		return s.fail("delete", "track", err)
	}
	if n, err := res.RowsAffected(); err == nil && n == 0 {
		s.logger.Debug("delete of missing track ignored", slog.Int64("id", id))
	}
	return nil
}

// queryTracks runs a track select and reads every row before returning,
// freeing the connection for follow-up queries.
func (s *Store) queryTracks(ctx context.Context, query string, args ...any) ([]domain.Track, error) {
	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	tracks := make([]domain.Track, 0)
	for rows.Next() {
		t, err := scanTrack(rows)
		if err != nil {
			return nil, err
		}
		tracks = append(tracks, t)
	}
	return tracks, rows.Err()
}

// relationBatch bounds the number of ids bound into one IN clause.
const relationBatch = 500

// attachRelations fills tags and overrides the flat artist/album with the sorted,
// comma-joined normalized names when any relationship exists.
func (s *Store) attachRelations(ctx context.Context, tracks []domain.Track) error {
	if len(tracks) == 0 {
		return nil
	}

	ids := make([]int64, len(tracks))
	for i, t := range tracks {
		ids[i] = t.ID
	}

	artists, err := s.namesByTrack(ctx, artistRelation, ids)
	if err != nil {
		return err
	}
	albums, err := s.namesByTrack(ctx, albumRelation, ids)
	if err != nil {
		return err
	}
	tags, err := s.namesByTrack(ctx, tagRelation, ids)
	if err != nil {
		return err
	}

	for i := range tracks {
		id := tracks[i].ID
		if names := artists[id]; len(names) > 0 {
			tracks[i].Artist = strings.Join(names, ", ")
		}
		if names := albums[id]; len(names) > 0 {
			tracks[i].Album = strings.Join(names, ", ")
		}
		tracks[i].Tags = tags[id]
	}
	return nil
}

// namesByTrack maps each track id to its related names, ordered by name.
func (s *Store) namesByTrack(ctx context.Context, rel relation, ids []int64) (map[int64][]string, error) {
	out := make(map[int64][]string)
	for start := 0; start < len(ids); start += relationBatch {
		end := min(start+relationBatch, len(ids))
		chunk := ids[start:end]

		args := make([]any, len(chunk))
		for i, id := range chunk {
			args[i] = id
		}

		query := `SELECT j.track_id, n.name FROM ` + rel.junction + ` j
			JOIN ` + rel.table + ` n ON n.id = j.` + rel.column + `
			WHERE j.track_id IN (` + placeholders(len(chunk)) + `)
			ORDER BY j.track_id, n.name`

		if err := s.collectNames(ctx, out, query, args); err != nil {
			return nil, err
		}
	}
	return out, nil
}

func (s *Store) collectNames(ctx context.Context, out map[int64][]string, query string, args []any) error {
	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return err
	}
	defer rows.Close()

	for rows.Next() {
		var (
			trackID int64
			name    string
		)
		if err := rows.Scan(&trackID, &name); err != nil {
			return err
		}
		out[trackID] = append(out[trackID], name)
	}
	return rows.Err()
}

func nullString(s string) sql.NullString {
	return sql.NullString{String: s, Valid: s != ""}
}
