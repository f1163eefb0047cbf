package sqlite

import "fmt"

// Table layout is shared with existing library databases; column names and
// junction keys must not change.
var schemaTables = []string{
	`CREATE TABLE IF NOT EXISTS tracks (
		id INTEGER PRIMARY KEY AUTOINCREMENT,
		file_path TEXT UNIQUE NOT NULL,
		title TEXT,
		artist TEXT,
		album TEXT,
		duration INTEGER DEFAULT 0,
		cover_path TEXT,
		last_played DATETIME,
		play_count INTEGER DEFAULT 0
	)`,
	`CREATE TABLE IF NOT EXISTS playlists (
		id INTEGER PRIMARY KEY AUTOINCREMENT,
		name TEXT NOT NULL,
		created DATETIME DEFAULT CURRENT_TIMESTAMP,
		modified DATETIME DEFAULT CURRENT_TIMESTAMP
	)`,
	`CREATE TABLE IF NOT EXISTS playlist_tracks (
		playlist_id INTEGER NOT NULL,
		track_id INTEGER NOT NULL,
		position INTEGER NOT NULL,
		PRIMARY KEY (playlist_id, track_id),
		FOREIGN KEY (playlist_id) REFERENCES playlists(id) ON DELETE CASCADE,
		FOREIGN KEY (track_id) REFERENCES tracks(id) ON DELETE CASCADE
	)`,
	`CREATE TABLE IF NOT EXISTS tags (
		id INTEGER PRIMARY KEY AUTOINCREMENT,
		name TEXT UNIQUE NOT NULL
	)`,
	`CREATE TABLE IF NOT EXISTS track_tags (
		track_id INTEGER NOT NULL,
		tag_id INTEGER NOT NULL,
		PRIMARY KEY (track_id, tag_id),
		FOREIGN KEY (track_id) REFERENCES tracks(id) ON DELETE CASCADE,
		FOREIGN KEY (tag_id) REFERENCES tags(id) ON DELETE CASCADE
	)`,
	`CREATE TABLE IF NOT EXISTS artists (
		id INTEGER PRIMARY KEY AUTOINCREMENT,
		name TEXT UNIQUE NOT NULL
	)`,
	`CREATE TABLE IF NOT EXISTS track_artists (
		track_id INTEGER NOT NULL,
		artist_id INTEGER NOT NULL,
		PRIMARY KEY (track_id, artist_id),
		FOREIGN KEY (track_id) REFERENCES tracks(id) ON DELETE CASCADE,
		FOREIGN KEY (artist_id) REFERENCES artists(id) ON DELETE CASCADE
	)`,
	`CREATE TABLE IF NOT EXISTS albums (
		id INTEGER PRIMARY KEY AUTOINCREMENT,
		name TEXT UNIQUE NOT NULL
	)`,
	`CREATE TABLE IF NOT EXISTS track_albums (
		track_id INTEGER NOT NULL,
		album_id INTEGER NOT NULL,
		PRIMARY KEY (track_id, album_id),
		FOREIGN KEY (track_id) REFERENCES tracks(id) ON DELETE CASCADE,
		FOREIGN KEY (album_id) REFERENCES albums(id) ON DELETE CASCADE
	)`,
	`CREATE TABLE IF NOT EXISTS history (
		id INTEGER PRIMARY KEY AUTOINCREMENT,
		track_id INTEGER NOT NULL,
		played_at DATETIME DEFAULT CURRENT_TIMESTAMP,
		FOREIGN KEY (track_id) REFERENCES tracks(id) ON DELETE CASCADE
	)`,
}

var schemaIndexes = []string{
	`CREATE INDEX IF NOT EXISTS idx_tracks_artist ON tracks(artist)`,
	`CREATE INDEX IF NOT EXISTS idx_tracks_album ON tracks(album)`,
	`CREATE INDEX IF NOT EXISTS idx_history_played_at ON history(played_at)`,
	`CREATE INDEX IF NOT EXISTS idx_history_track ON history(track_id)`,
	`CREATE INDEX IF NOT EXISTS idx_playlist_tracks_position ON playlist_tracks(playlist_id, position)`,
}

// createSchema creates tables and indexes if they do not already exist.
// This is idempotent and safe to call on every open.
func (s *Store) createSchema() error {
	for _, stmt := range schemaTables {
		if _, err := s.db.Exec(stmt); err != nil {
			return fmt.Errorf("create table: %w", err)
		}
	}
	for _, stmt := range schemaIndexes {
		if _, err := s.db.Exec(stmt); err != nil {
			return fmt.Errorf("create index: %w", err)
		}
	}
	return nil
}
