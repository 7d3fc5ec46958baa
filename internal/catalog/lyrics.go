package catalog

import (
	"context"
	"database/sql"
	"fmt"
)

// LyricsLinesReplace atomically swaps a track's lyrics lines for a new
// set, the only mutation lyrics support — spec.md §4.2 treats lyrics as
// replace-the-whole-set rather than line-by-line editing, since they are
// always imported as a complete block from a tag or a provider.
func (s *Store) LyricsLinesReplace(ctx context.Context, tx *sql.Tx, trackID int64, lines []LyricsLine) error {
	q := s.q(tx)
	if _, err := q.ExecContext(ctx, `DELETE FROM lyrics_lines WHERE track_id = ?`, trackID); err != nil {
		return fmt.Errorf("failed to clear lyrics lines: %w", err)
	}
	for _, line := range lines {
		_, err := q.ExecContext(ctx, `
			INSERT INTO lyrics_lines (track_id, offset_ms, duration_ms, text) VALUES (?, ?, ?, ?)
		`, trackID, line.OffsetMs, line.DurationMs, line.Text)
		if err != nil {
			return fmt.Errorf("failed to insert lyrics line: %w", err)
		}
	}
	return nil
}

// LyricsLinesList returns a track's lyrics lines ordered by offset.
func (s *Store) LyricsLinesList(ctx context.Context, tx *sql.Tx, trackID int64) ([]LyricsLine, error) {
	rows, err := s.q(tx).QueryContext(ctx, `
		SELECT id, track_id, offset_ms, duration_ms, text FROM lyrics_lines
		WHERE track_id = ? ORDER BY offset_ms ASC
	`, trackID)
	if err != nil {
		return nil, fmt.Errorf("failed to list lyrics lines: %w", err)
	}
	defer rows.Close()

	var out []LyricsLine
	for rows.Next() {
		var l LyricsLine
		if err := rows.Scan(&l.ID, &l.TrackID, &l.OffsetMs, &l.DurationMs, &l.Text); err != nil {
			return nil, fmt.Errorf("failed to scan lyrics line: %w", err)
		}
		out = append(out, l)
	}
	return out, rows.Err()
}

// LyricsLinesClear removes a track's lyrics entirely.
func (s *Store) LyricsLinesClear(ctx context.Context, tx *sql.Tx, trackID int64) error {
	_, err := s.q(tx).ExecContext(ctx, `DELETE FROM lyrics_lines WHERE track_id = ?`, trackID)
	if err != nil {
		return fmt.Errorf("failed to clear lyrics lines: %w", err)
	}
	return nil
}
