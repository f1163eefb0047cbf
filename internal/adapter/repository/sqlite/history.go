package sqlite

import (
	"context"
	"database/sql"

	"github.com/tejashwikalptaru/tunelib/internal/domain"
)

// RecordPlay appends a history row, increments the play count and stamps
// last_played in one transaction.
func (s *Store) RecordPlay(ctx context.Context, trackID int64) error {
	if trackID < 0 {
		return domain.ErrInvalidID
	}

	now := s.now()
	err := s.withTx(ctx, func(tx *sql.Tx) error {
		res, err := tx.ExecContext(ctx,
			`UPDATE tracks SET play_count = COALESCE(play_count, 0) + 1, last_played = ? WHERE id = ?`,
			now, trackID)
		if err != nil {
			return err
		}
		if n, err := res.RowsAffected(); err == nil && n == 0 {
			return domain.ErrTrackNotFound
		}

		_, err = tx.ExecContext(ctx, `INSERT INTO history (track_id, played_at) VALUES (?, ?)`, trackID, now)
		return err
	})
	if err != nil {
		return s.fail("record_play", "history", err)
	}
	return nil
}

// ClearHistory removes every history entry. Play counts and last-played stamps stay.
func (s *Store) ClearHistory(ctx context.Context) error {
	if _, err := s.db.ExecContext(ctx, `DELETE FROM history`); err != nil {
		return s.fail("clear", "history", err)
	}
	return nil
}

// TrackHistory returns the raw history rows of a track, newest first.
func (s *Store) TrackHistory(ctx context.Context, trackID int64) ([]domain.HistoryEntry, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT id, track_id, played_at FROM history WHERE track_id = ? ORDER BY id DESC`, trackID)
	if err != nil {
		return nil, s.fail("track_history", "history", err)
	}
	defer rows.Close()

	entries := make([]domain.HistoryEntry, 0)
	for rows.Next() {
		var e domain.HistoryEntry
		if err := rows.Scan(&e.ID, &e.TrackID, &e.PlayedAt); err != nil {
			return nil, s.fail("track_history", "history", err)
		}
		entries = append(entries, e)
	}
	if err := rows.Err(); err != nil {
		return nil, s.fail("track_history", "history", err)
	}
	return entries, nil
}
