package catalog

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/sonar-music/sonar/internal/sonarerr"
)

const scrobbleSelectColumns = `id, user_id, track_id, listen_at, listen_duration_ms, device, created_at`

func scanScrobble(row *sql.Row) (Scrobble, error) {
	var sc Scrobble
	var device sql.NullString
	err := row.Scan(&sc.ID, &sc.UserID, &sc.TrackID, &sc.ListenAt, &sc.ListenDurationMs, &device, &sc.CreatedAt)
	if err != nil {
		return Scrobble{}, err
	}
	sc.Device = device.String
	return sc, nil
}

// ScrobbleCreate records a listen. Callers must increment the track's,
// album's, and artist's listen_count in the same transaction — this
// method only inserts the scrobble row itself, matching the rest of the
// package's separation between mutation primitives and the denormalized
// counters layered on top of them.
func (s *Store) ScrobbleCreate(ctx context.Context, tx *sql.Tx, userID, trackID int64, listenAt time.Time, listenDurationMs int64, device string) (Scrobble, error) {
	res, err := s.q(tx).ExecContext(ctx, `
		INSERT INTO scrobbles (user_id, track_id, listen_at, listen_duration_ms, device) VALUES (?, ?, ?, ?, ?)
	`, userID, trackID, listenAt, listenDurationMs, device)
	if err != nil {
		return Scrobble{}, fmt.Errorf("failed to insert scrobble: %w", err)
	}
	id, err := res.LastInsertId()
	if err != nil {
		return Scrobble{}, fmt.Errorf("failed to read inserted scrobble id: %w", err)
	}
	return s.ScrobbleGet(ctx, tx, id)
}

// ScrobbleGet retrieves a Scrobble by internal id.
func (s *Store) ScrobbleGet(ctx context.Context, tx *sql.Tx, id int64) (Scrobble, error) {
	row := s.q(tx).QueryRowContext(ctx, `SELECT `+scrobbleSelectColumns+` FROM scrobbles WHERE id = ?`, id)
	sc, err := scanScrobble(row)
	if errors.Is(err, sql.ErrNoRows) {
		return Scrobble{}, sonarerr.NotFound("scrobble", fmt.Sprint(id))
	}
	if err != nil {
		return Scrobble{}, fmt.Errorf("failed to query scrobble: %w", err)
	}
	return sc, nil
}

// ScrobbleListByUser returns a user's scrobbles, most recent first.
func (s *Store) ScrobbleListByUser(ctx context.Context, tx *sql.Tx, userID int64, params ListParams) ([]Scrobble, error) {
	offset, limit := params.normalize()
	rows, err := s.q(tx).QueryContext(ctx, `
		SELECT `+scrobbleSelectColumns+` FROM scrobbles
		WHERE user_id = ? ORDER BY listen_at DESC LIMIT ? OFFSET ?
	`, userID, limit, offset)
	if err != nil {
		return nil, fmt.Errorf("failed to list scrobbles: %w", err)
	}
	defer rows.Close()

	var out []Scrobble
	for rows.Next() {
		var sc Scrobble
		var device sql.NullString
		if err := rows.Scan(&sc.ID, &sc.UserID, &sc.TrackID, &sc.ListenAt, &sc.ListenDurationMs, &device, &sc.CreatedAt); err != nil {
			return nil, fmt.Errorf("failed to scan scrobble: %w", err)
		}
		sc.Device = device.String
		out = append(out, sc)
	}
	return out, rows.Err()
}

// ScrobbleDelete removes a scrobble.
func (s *Store) ScrobbleDelete(ctx context.Context, tx *sql.Tx, id int64) error {
	_, err := s.q(tx).ExecContext(ctx, `DELETE FROM scrobbles WHERE id = ?`, id)
	if err != nil {
		return fmt.Errorf("failed to delete scrobble: %w", err)
	}
	return nil
}

// ScrobblePendingSubmissions returns up to limit scrobbles, across all
// users, that have not yet been submitted to scrobbler, the primitive the scrobble
// dispatch loop polls to find work (spec.md §4.9).
func (s *Store) ScrobblePendingSubmissions(ctx context.Context, tx *sql.Tx, scrobbler string, limit int) ([]Scrobble, error) {
	rows, err := s.q(tx).QueryContext(ctx, `
		SELECT `+scrobbleSelectColumns+` FROM scrobbles sc
		WHERE NOT EXISTS (
			SELECT 1 FROM scrobble_submissions ss
			WHERE ss.scrobble_id = sc.id AND ss.scrobbler = ?
		)
		ORDER BY sc.listen_at ASC LIMIT ?
	`, scrobbler, limit)
	if err != nil {
		return nil, fmt.Errorf("failed to list pending scrobble submissions: %w", err)
	}
	defer rows.Close()

	var out []Scrobble
	for rows.Next() {
		var sc Scrobble
		var device sql.NullString
		if err := rows.Scan(&sc.ID, &sc.UserID, &sc.TrackID, &sc.ListenAt, &sc.ListenDurationMs, &device, &sc.CreatedAt); err != nil {
			return nil, fmt.Errorf("failed to scan scrobble: %w", err)
		}
		sc.Device = device.String
		out = append(out, sc)
	}
	return out, rows.Err()
}
