package catalog

import (
	"context"
	"database/sql"
	"fmt"
)

// ScrobbleSubmissionRecord marks a scrobble as successfully submitted to
// scrobbler. Safe to call more than once for the same (scrobble, scrobbler)
// pair — the unique index makes a repeat a no-op rather than a Conflict,
// since the dispatch loop may retry after a crash without knowing whether
// its previous attempt actually landed.
func (s *Store) ScrobbleSubmissionRecord(ctx context.Context, tx *sql.Tx, scrobbleID int64, scrobbler string) (ScrobbleSubmission, error) {
	_, err := s.q(tx).ExecContext(ctx, `
		INSERT INTO scrobble_submissions (scrobble_id, scrobbler) VALUES (?, ?)
		ON CONFLICT (scrobble_id, scrobbler) DO NOTHING
	`, scrobbleID, scrobbler)
	if err != nil {
		return ScrobbleSubmission{}, fmt.Errorf("failed to record scrobble submission: %w", err)
	}
	var sub ScrobbleSubmission
	err = s.q(tx).QueryRowContext(ctx, `
		SELECT id, scrobble_id, scrobbler, created_at FROM scrobble_submissions
		WHERE scrobble_id = ? AND scrobbler = ?
	`, scrobbleID, scrobbler).Scan(&sub.ID, &sub.ScrobbleID, &sub.Scrobbler, &sub.CreatedAt)
	if err != nil {
		return ScrobbleSubmission{}, fmt.Errorf("failed to read scrobble submission: %w", err)
	}
	return sub, nil
}

// ScrobbleSubmissionExists reports whether scrobbleID has already been
// submitted to scrobbler.
func (s *Store) ScrobbleSubmissionExists(ctx context.Context, tx *sql.Tx, scrobbleID int64, scrobbler string) (bool, error) {
	var count int
	err := s.q(tx).QueryRowContext(ctx, `
		SELECT COUNT(*) FROM scrobble_submissions WHERE scrobble_id = ? AND scrobbler = ?
	`, scrobbleID, scrobbler).Scan(&count)
	if err != nil {
		return false, fmt.Errorf("failed to check scrobble submission: %w", err)
	}
	return count > 0, nil
}
