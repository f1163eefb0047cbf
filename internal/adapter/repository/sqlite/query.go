package sqlite

import (
	"strings"

	"github.com/tejashwikalptaru/tunelib/internal/domain"
)

const orderByTitle = ` ORDER BY t.title, t.id`

// buildTrackQuery translates a listing predicate into SQL and its arguments.
func buildTrackQuery(q domain.TrackQuery) (string, []any) {
	base := `SELECT ` + trackColumns + ` FROM tracks t`

	switch q.Kind {
	case domain.QuerySearch:
		if q.Text == "" {
			return base + orderByTitle, nil
		}
		pattern := likeContains(foldValue(q.Text))
		return base + ` WHERE fold(t.title) LIKE ? ESCAPE '\' OR fold(t.artist) LIKE ? ESCAPE '\' OR fold(t.album) LIKE ? ESCAPE '\'` +
			orderByTitle, []any{pattern, pattern, pattern}

	case domain.QueryFilter:
		return buildFilterQuery(q)

	case domain.QueryByTag:
		return base + ` JOIN track_tags tt ON tt.track_id = t.id
			JOIN tags g ON g.id = tt.tag_id
			WHERE g.name = ?` + orderByTitle, []any{q.Text}

	case domain.QueryByArtist:
		return base + ` JOIN track_artists ta ON ta.track_id = t.id
			WHERE ta.artist_id = ?` + orderByTitle, []any{q.ID}

	case domain.QueryByAlbum:
		return base + ` JOIN track_albums tal ON tal.track_id = t.id
			WHERE tal.album_id = ?` + orderByTitle, []any{q.ID}

	case domain.QueryPlaylist:
		return base + ` JOIN playlist_tracks pt ON pt.track_id = t.id
			WHERE pt.playlist_id = ?
			ORDER BY pt.position, t.id`, []any{q.ID}

	case domain.QueryHistory:
		limit := q.Limit
		if limit <= 0 {
			limit = domain.DefaultHistoryLimit
		}
		return base + ` JOIN (SELECT track_id, MAX(id) AS last_entry FROM history GROUP BY track_id) h
			ON h.track_id = t.id
			ORDER BY h.last_entry DESC
			LIMIT ?`, []any{limit}

	default:
		return base + orderByTitle, nil
	}
}

// buildFilterQuery ANDs the artist, album and tag constraints.
// An artist (or album) matches its normalized name exactly, the flat field exactly,
// or the flat field as a substring. Tags match when the track carries any of them.
func buildFilterQuery(q domain.TrackQuery) (string, []any) {
	var (
		conditions []string
		args       []any
	)

	if q.Artist != "" {
		conditions = append(conditions, `(EXISTS (SELECT 1 FROM track_artists ta
			JOIN artists a ON a.id = ta.artist_id WHERE ta.track_id = t.id AND a.name = ?)
			OR t.artist = ? OR fold(t.artist) LIKE ? ESCAPE '\')`)
		args = append(args, q.Artist, q.Artist, likeContains(foldValue(q.Artist)))
	}

	if q.Album != "" {
		conditions = append(conditions, `(EXISTS (SELECT 1 FROM track_albums tal
			JOIN albums al ON al.id = tal.album_id WHERE tal.track_id = t.id AND al.name = ?)
			OR t.album = ? OR fold(t.album) LIKE ? ESCAPE '\')`)
		args = append(args, q.Album, q.Album, likeContains(foldValue(q.Album)))
	}

	tags := make([]string, 0, len(q.Tags))
	for _, tag := range q.Tags {
		if tag != "" {
			tags = append(tags, tag)
		}
	}
	if len(tags) > 0 {
		conditions = append(conditions, `t.id IN (SELECT tt.track_id FROM track_tags tt
			JOIN tags g ON g.id = tt.tag_id WHERE g.name IN (`+placeholders(len(tags))+`))`)
		for _, tag := range tags {
			args = append(args, tag)
		}
	}

	query := `SELECT ` + trackColumns + ` FROM tracks t`
	if len(conditions) > 0 {
		query += " WHERE " + strings.Join(conditions, " AND ")
	}
	return query + orderByTitle, args
}
