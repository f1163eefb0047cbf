package sqlite

import (
	"context"
	"database/sql"
	"errors"
	"strings"

	"github.com/tejashwikalptaru/tunelib/internal/domain"
)

// relation describes one normalized name table and its junction with tracks.
// Artists, albums and tags share the same shape.
type relation struct {
	entity   string
	table    string
	junction string
	column   string
	notFound error
}

var (
	artistRelation = relation{"artist", "artists", "track_artists", "artist_id", domain.ErrArtistNotFound}
	albumRelation  = relation{"album", "albums", "track_albums", "album_id", domain.ErrAlbumNotFound}
	tagRelation    = relation{"tag", "tags", "track_tags", "tag_id", domain.ErrTagNotFound}
)

type namedRow struct {
	id   int64
	name string
}

// addName inserts a name or fetches the id of the existing row. Names are case-exact.
func (s *Store) addName(ctx context.Context, rel relation, name string) (int64, error) {
	if strings.TrimSpace(name) == "" {
		return 0, domain.ErrEmptyName
	}

	var id int64
	err := s.withTx(ctx, func(tx *sql.Tx) error {
		res, err := tx.ExecContext(ctx, `INSERT OR IGNORE INTO `+rel.table+` (name) VALUES (?)`, name)
		if err != nil {
			return err
		}
		if n, err := res.RowsAffected(); err == nil && n == 1 {
			id, err = res.LastInsertId()
			return err
		}
		return tx.QueryRowContext(ctx, `SELECT id FROM `+rel.table+` WHERE name = ?`, name).Scan(&id)
	})
	if err != nil {
		return 0, s.fail("add", rel.entity, err)
	}
	return id, nil
}

func (s *Store) lookupName(ctx context.Context, rel relation, name string) (int64, error) {
	var id int64
	err := s.db.QueryRowContext(ctx, `SELECT id FROM `+rel.table+` WHERE name = ?`, name).Scan(&id)
	if errors.Is(err, sql.ErrNoRows) {
		return 0, rel.notFound
	}
	if err != nil {
		return 0, s.fail("lookup", rel.entity, err)
	}
	return id, nil
}

func (s *Store) link(ctx context.Context, rel relation, trackID, id int64) error {
	if trackID < 0 || id < 0 {
		return domain.ErrInvalidID
	}

	err := s.withTx(ctx, func(tx *sql.Tx) error {
		if err := requireRow(ctx, tx, "tracks", trackID, domain.ErrTrackNotFound); err != nil {
			return err
		}
		if err := requireRow(ctx, tx, rel.table, id, rel.notFound); err != nil {
			return err
		}
		_, err := tx.ExecContext(ctx,
			`INSERT OR IGNORE INTO `+rel.junction+` (track_id, `+rel.column+`) VALUES (?, ?)`, trackID, id)
		return err
	})
	if err != nil {
		return s.fail("link", rel.entity, err)
	}
	return nil
}

func (s *Store) unlink(ctx context.Context, rel relation, trackID, id int64) error {
	if trackID < 0 || id < 0 {
		return domain.ErrInvalidID
	}

	_, err := s.db.ExecContext(ctx,
		`DELETE FROM `+rel.junction+` WHERE track_id = ? AND `+rel.column+` = ?`, trackID, id)
	if err != nil {
		return s.fail("unlink", rel.entity, err)
	}
	return nil
}

func (s *Store) listNames(ctx context.Context, rel relation, query string, args ...any) ([]namedRow, error) {
	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, s.fail("list", rel.entity, err)
	}
	defer rows.Close()

	out := make([]namedRow, 0)
	for rows.Next() {
		var r namedRow
		if err := rows.Scan(&r.id, &r.name); err != nil {
			return nil, s.fail("list", rel.entity, err)
		}
		out = append(out, r)
	}
	if err := rows.Err(); err != nil {
		return nil, s.fail("list", rel.entity, err)
	}
	return out, nil
}

func (s *Store) listAll(ctx context.Context, rel relation) ([]namedRow, error) {
	return s.listNames(ctx, rel, `SELECT id, name FROM `+rel.table+` ORDER BY name`)
}

// requireRow returns notFound unless table has a row with the id.
func requireRow(ctx context.Context, tx *sql.Tx, table string, id int64, notFound error) error {
	var one int
	err := tx.QueryRowContext(ctx, `SELECT 1 FROM `+table+` WHERE id = ?`, id).Scan(&one)
	if errors.Is(err, sql.ErrNoRows) {
		return notFound
	}
	return err
}

// AddArtist inserts an artist name or returns the existing id.
func (s *Store) AddArtist(ctx context.Context, name string) (int64, error) {
	return s.addName(ctx, artistRelation, name)
}

// ArtistID looks an artist up by exact name.
func (s *Store) ArtistID(ctx context.Context, name string) (int64, error) {
	return s.lookupName(ctx, artistRelation, name)
}

// AddArtistToTrack relates an artist to a track. Existing links are kept.
func (s *Store) AddArtistToTrack(ctx context.Context, trackID, artistID int64) error {
	return s.link(ctx, artistRelation, trackID, artistID)
}

// RemoveArtistFromTrack drops the relation, if any.
func (s *Store) RemoveArtistFromTrack(ctx context.Context, trackID, artistID int64) error {
	return s.unlink(ctx, artistRelation, trackID, artistID)
}

// ListArtists returns every artist ordered by name.
func (s *Store) ListArtists(ctx context.Context) ([]domain.Artist, error) {
	rows, err := s.listAll(ctx, artistRelation)
	if err != nil {
		return nil, err
	}
	out := make([]domain.Artist, len(rows))
	for i, r := range rows {
		out[i] = domain.Artist{ID: r.id, Name: r.name}
	}
	return out, nil
}

// AddAlbum inserts an album name or returns the existing id.
func (s *Store) AddAlbum(ctx context.Context, name string) (int64, error) {
	return s.addName(ctx, albumRelation, name)
}

// AlbumID looks an album up by exact name.
func (s *Store) AlbumID(ctx context.Context, name string) (int64, error) {
	return s.lookupName(ctx, albumRelation, name)
}

// AddAlbumToTrack relates an album to a track. Existing links are kept.
func (s *Store) AddAlbumToTrack(ctx context.Context, trackID, albumID int64) error {
	return s.link(ctx, albumRelation, trackID, albumID)
}

// RemoveAlbumFromTrack drops the relation, if any.
func (s *Store) RemoveAlbumFromTrack(ctx context.Context, trackID, albumID int64) error {
	return s.unlink(ctx, albumRelation, trackID, albumID)
}

// ListAlbums returns every album ordered by name.
func (s *Store) ListAlbums(ctx context.Context) ([]domain.Album, error) {
	rows, err := s.listAll(ctx, albumRelation)
	if err != nil {
		return nil, err
	}
	return toAlbums(rows), nil
}

// ListAlbumsByArtist returns the distinct albums of every track related to the artist.
func (s *Store) ListAlbumsByArtist(ctx context.Context, artistID int64) ([]domain.Album, error) {
	if artistID < 0 {
		return nil, domain.ErrInvalidID
	}

	rows, err := s.listNames(ctx, albumRelation, `SELECT DISTINCT al.id, al.name FROM albums al
		JOIN track_albums tal ON tal.album_id = al.id
		JOIN track_artists ta ON ta.track_id = tal.track_id
		WHERE ta.artist_id = ?
		ORDER BY al.name`, artistID)
	if err != nil {
		return nil, err
	}
	return toAlbums(rows), nil
}

func toAlbums(rows []namedRow) []domain.Album {
	out := make([]domain.Album, len(rows))
	for i, r := range rows {
		out[i] = domain.Album{ID: r.id, Name: r.name}
	}
	return out
}

// AddTag inserts a tag name or returns the existing id.
func (s *Store) AddTag(ctx context.Context, name string) (int64, error) {
	return s.addName(ctx, tagRelation, name)
}

// TagID looks a tag up by exact name.
func (s *Store) TagID(ctx context.Context, name string) (int64, error) {
	return s.lookupName(ctx, tagRelation, name)
}

// AddTagToTrack attaches a tag to a track. Existing links are kept.
func (s *Store) AddTagToTrack(ctx context.Context, trackID, tagID int64) error {
	return s.link(ctx, tagRelation, trackID, tagID)
}

// RemoveTagFromTrack detaches the tag, if attached.
func (s *Store) RemoveTagFromTrack(ctx context.Context, trackID, tagID int64) error {
	return s.unlink(ctx, tagRelation, trackID, tagID)
}

// ListTags returns every tag ordered by name.
func (s *Store) ListTags(ctx context.Context) ([]domain.Tag, error) {
	rows, err := s.listAll(ctx, tagRelation)
	if err != nil {
		return nil, err
	}
	out := make([]domain.Tag, len(rows))
	for i, r := range rows {
		out[i] = domain.Tag{ID: r.id, Name: r.name}
	}
	return out, nil
}
