package catalog

import (
	"context"
	"database/sql"
	"fmt"
)

// PlaylistTrackList returns a playlist's tracks in membership order.
func (s *Store) PlaylistTrackList(ctx context.Context, tx *sql.Tx, playlistID int64, params ListParams) ([]PlaylistTrack, error) {
	offset, limit := params.normalize()
	if params.Count == nil {
		limit = maxListCount
	}
	rows, err := s.q(tx).QueryContext(ctx, `
		SELECT playlist_id, track_id, created_at FROM playlist_tracks
		WHERE playlist_id = ? ORDER BY created_at ASC LIMIT ? OFFSET ?
	`, playlistID, limit, offset)
	if err != nil {
		return nil, fmt.Errorf("failed to list playlist tracks: %w", err)
	}
	defer rows.Close()

	var out []PlaylistTrack
	for rows.Next() {
		var pt PlaylistTrack
		if err := rows.Scan(&pt.PlaylistID, &pt.TrackID, &pt.CreatedAt); err != nil {
			return nil, fmt.Errorf("failed to scan playlist track: %w", err)
		}
		out = append(out, pt)
	}
	return out, rows.Err()
}

// PlaylistTrackAppend adds trackID to the end of playlistID's track list.
// A track already on the playlist is left where it is and no duplicate
// row is created — spec.md §4.8's "inserting an already-present track is
// a no-op" idempotence rule.
func (s *Store) PlaylistTrackAppend(ctx context.Context, tx *sql.Tx, playlistID, trackID int64) (PlaylistTrack, error) {
	q := s.q(tx)
	var exists int
	if err := q.QueryRowContext(ctx, `
		SELECT COUNT(*) FROM playlist_tracks WHERE playlist_id = ? AND track_id = ?
	`, playlistID, trackID).Scan(&exists); err != nil {
		return PlaylistTrack{}, fmt.Errorf("failed to check playlist track membership: %w", err)
	}
	if exists > 0 {
		var pt PlaylistTrack
		err := q.QueryRowContext(ctx, `
			SELECT playlist_id, track_id, created_at FROM playlist_tracks WHERE playlist_id = ? AND track_id = ?
		`, playlistID, trackID).Scan(&pt.PlaylistID, &pt.TrackID, &pt.CreatedAt)
		if err != nil {
			return PlaylistTrack{}, fmt.Errorf("failed to re-read playlist track: %w", err)
		}
		return pt, nil
	}
	if _, err := q.ExecContext(ctx, `INSERT INTO playlist_tracks (playlist_id, track_id) VALUES (?, ?)`, playlistID, trackID); err != nil {
		return PlaylistTrack{}, fmt.Errorf("failed to insert playlist track: %w", err)
	}
	var pt PlaylistTrack
	err := q.QueryRowContext(ctx, `
		SELECT playlist_id, track_id, created_at FROM playlist_tracks WHERE playlist_id = ? AND track_id = ?
	`, playlistID, trackID).Scan(&pt.PlaylistID, &pt.TrackID, &pt.CreatedAt)
	if err != nil {
		return PlaylistTrack{}, fmt.Errorf("failed to read inserted playlist track: %w", err)
	}
	return pt, nil
}

// PlaylistTrackRemove removes trackID from playlistID's track list.
// Removing a track that is not a member is a no-op, not an error.
func (s *Store) PlaylistTrackRemove(ctx context.Context, tx *sql.Tx, playlistID, trackID int64) error {
	_, err := s.q(tx).ExecContext(ctx, `DELETE FROM playlist_tracks WHERE playlist_id = ? AND track_id = ?`, playlistID, trackID)
	if err != nil {
		return fmt.Errorf("failed to remove playlist track: %w", err)
	}
	return nil
}

// PlaylistTrackClear removes every track from playlistID, leaving an
// empty playlist.
func (s *Store) PlaylistTrackClear(ctx context.Context, tx *sql.Tx, playlistID int64) error {
	_, err := s.q(tx).ExecContext(ctx, `DELETE FROM playlist_tracks WHERE playlist_id = ?`, playlistID)
	if err != nil {
		return fmt.Errorf("failed to clear playlist tracks: %w", err)
	}
	return nil
}
