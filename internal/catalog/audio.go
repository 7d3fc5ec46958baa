package catalog

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/sonar-music/sonar/internal/sonarerr"
)

// AudioCreate inserts an Audio row pointing at an already-durable Blob,
// carrying the technical metadata the audio extractor capability produced
// (spec.md §4.6: bitrate, duration, channels, sample rate).
func (s *Store) AudioCreate(ctx context.Context, tx *sql.Tx, blobID int64, mime string, bitrate int, durationMs int64, channels, sampleFreq int, filename string) (Audio, error) {
	q := s.q(tx)
	res, err := q.ExecContext(ctx, `
		INSERT INTO audios (blob_id, mime, bitrate, duration_ms, channels, sample_freq, filename)
		VALUES (?, ?, ?, ?, ?, ?, ?)
	`, blobID, mime, bitrate, durationMs, channels, sampleFreq, filename)
	if err != nil {
		return Audio{}, fmt.Errorf("failed to insert audio: %w", err)
	}
	id, err := res.LastInsertId()
	if err != nil {
		return Audio{}, fmt.Errorf("failed to read inserted audio id: %w", err)
	}
	return s.AudioGet(ctx, tx, id)
}

// AudioGet retrieves an Audio row by internal id.
func (s *Store) AudioGet(ctx context.Context, tx *sql.Tx, id int64) (Audio, error) {
	var a Audio
	var filename sql.NullString
	err := s.q(tx).QueryRowContext(ctx, `
		SELECT id, blob_id, mime, bitrate, duration_ms, channels, sample_freq, filename, created_at
		FROM audios WHERE id = ?
	`, id).Scan(&a.ID, &a.BlobID, &a.Mime, &a.Bitrate, &a.DurationMs, &a.Channels, &a.SampleFreq, &filename, &a.CreatedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return Audio{}, sonarerr.NotFound("audio", fmt.Sprint(id))
	}
	if err != nil {
		return Audio{}, fmt.Errorf("failed to query audio: %w", err)
	}
	a.Filename = filename.String
	return a, nil
}

// AudioReferenced reports whether any track_audios row still references
// the audio with internal id audioID.
func (s *Store) AudioReferenced(ctx context.Context, audioID int64) (bool, error) {
	var count int
	err := s.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM track_audios WHERE audio_id = ?`, audioID).Scan(&count)
	if err != nil {
		return false, fmt.Errorf("failed to check audio references: %w", err)
	}
	return count > 0, nil
}

// TrackAudioAttach links an Audio to a Track. If this is the track's first
// audio, it becomes preferred automatically; otherwise it joins the track's
// audio set as non-preferred, leaving the existing preferred audio in place
// (spec.md §3: "exactly one audio per track has preferred = true once the
// track has at least one audio"). Must run inside the caller's transaction.
func (s *Store) TrackAudioAttach(ctx context.Context, tx *sql.Tx, trackID, audioID int64) (TrackAudio, error) {
	q := s.q(tx)

	var existing int
	if err := q.QueryRowContext(ctx, `SELECT COUNT(*) FROM track_audios WHERE track_id = ?`, trackID).Scan(&existing); err != nil {
		return TrackAudio{}, fmt.Errorf("failed to count existing track audios: %w", err)
	}
	preferred := existing == 0

	res, err := q.ExecContext(ctx, `
		INSERT INTO track_audios (track_id, audio_id, preferred) VALUES (?, ?, ?)
	`, trackID, audioID, preferred)
	if err != nil {
		return TrackAudio{}, fmt.Errorf("failed to attach audio to track: %w", err)
	}
	id, err := res.LastInsertId()
	if err != nil {
		return TrackAudio{}, fmt.Errorf("failed to read inserted track_audio id: %w", err)
	}
	if preferred {
		if err := s.trackSyncPreferredAudio(ctx, tx, trackID); err != nil {
			return TrackAudio{}, err
		}
	}
	return s.trackAudioGet(ctx, tx, id)
}

func (s *Store) trackAudioGet(ctx context.Context, tx *sql.Tx, id int64) (TrackAudio, error) {
	var ta TrackAudio
	err := s.q(tx).QueryRowContext(ctx, `
		SELECT id, track_id, audio_id, preferred, created_at FROM track_audios WHERE id = ?
	`, id).Scan(&ta.ID, &ta.TrackID, &ta.AudioID, &ta.Preferred, &ta.CreatedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return TrackAudio{}, sonarerr.NotFound("track_audio", fmt.Sprint(id))
	}
	if err != nil {
		return TrackAudio{}, fmt.Errorf("failed to query track_audio: %w", err)
	}
	return ta, nil
}

// TrackAudioList returns every audio attached to a track, preferred first.
func (s *Store) TrackAudioList(ctx context.Context, tx *sql.Tx, trackID int64) ([]TrackAudio, error) {
	rows, err := s.q(tx).QueryContext(ctx, `
		SELECT id, track_id, audio_id, preferred, created_at FROM track_audios
		WHERE track_id = ? ORDER BY preferred DESC, created_at ASC
	`, trackID)
	if err != nil {
		return nil, fmt.Errorf("failed to list track audios: %w", err)
	}
	defer rows.Close()

	var out []TrackAudio
	for rows.Next() {
		var ta TrackAudio
		if err := rows.Scan(&ta.ID, &ta.TrackID, &ta.AudioID, &ta.Preferred, &ta.CreatedAt); err != nil {
			return nil, fmt.Errorf("failed to scan track_audio: %w", err)
		}
		out = append(out, ta)
	}
	return out, rows.Err()
}

// TrackAudioSetPreferred marks the given track_audio as the track's
// preferred audio, demoting any previously preferred one. Must run inside
// the caller's transaction so the demote+promote pair is atomic.
func (s *Store) TrackAudioSetPreferred(ctx context.Context, tx *sql.Tx, trackID, trackAudioID int64) error {
	q := s.q(tx)
	var count int
	if err := q.QueryRowContext(ctx, `SELECT COUNT(*) FROM track_audios WHERE id = ? AND track_id = ?`, trackAudioID, trackID).Scan(&count); err != nil {
		return fmt.Errorf("failed to verify track_audio membership: %w", err)
	}
	if count == 0 {
		return sonarerr.NotFound("track_audio", fmt.Sprint(trackAudioID))
	}
	if _, err := q.ExecContext(ctx, `UPDATE track_audios SET preferred = 0 WHERE track_id = ?`, trackID); err != nil {
		return fmt.Errorf("failed to demote preferred audio: %w", err)
	}
	if _, err := q.ExecContext(ctx, `UPDATE track_audios SET preferred = 1 WHERE id = ?`, trackAudioID); err != nil {
		return fmt.Errorf("failed to promote preferred audio: %w", err)
	}
	return s.trackSyncPreferredAudio(ctx, tx, trackID)
}

// TrackAudioDetach removes an audio from a track. If the detached audio was
// preferred and others remain, the earliest-attached remaining audio is
// promoted so the "exactly one preferred once non-empty" invariant holds.
func (s *Store) TrackAudioDetach(ctx context.Context, tx *sql.Tx, trackID, trackAudioID int64) error {
	q := s.q(tx)
	var wasPreferred bool
	err := q.QueryRowContext(ctx, `SELECT preferred FROM track_audios WHERE id = ? AND track_id = ?`, trackAudioID, trackID).Scan(&wasPreferred)
	if errors.Is(err, sql.ErrNoRows) {
		return sonarerr.NotFound("track_audio", fmt.Sprint(trackAudioID))
	}
	if err != nil {
		return fmt.Errorf("failed to query track_audio: %w", err)
	}
	if _, err := q.ExecContext(ctx, `DELETE FROM track_audios WHERE id = ?`, trackAudioID); err != nil {
		return fmt.Errorf("failed to detach audio: %w", err)
	}
	if wasPreferred {
		_, err := q.ExecContext(ctx, `
			UPDATE track_audios SET preferred = 1 WHERE id = (
				SELECT id FROM track_audios WHERE track_id = ? ORDER BY created_at ASC LIMIT 1
			)
		`, trackID)
		if err != nil {
			return fmt.Errorf("failed to promote replacement preferred audio: %w", err)
		}
	}
	return s.trackSyncPreferredAudio(ctx, tx, trackID)
}

// trackSyncPreferredAudio refreshes tracks.preferred_audio_id and
// tracks.duration_ms from the current preferred track_audios row, the
// denormalized read view spec.md §3 requires stay consistent "as of the
// read's transaction".
func (s *Store) trackSyncPreferredAudio(ctx context.Context, tx *sql.Tx, trackID int64) error {
	q := s.q(tx)
	var audioID sql.NullInt64
	var durationMs sql.NullInt64
	err := q.QueryRowContext(ctx, `
		SELECT ta.audio_id, a.duration_ms FROM track_audios ta
		JOIN audios a ON a.id = ta.audio_id
		WHERE ta.track_id = ? AND ta.preferred = 1
	`, trackID).Scan(&audioID, &durationMs)
	if errors.Is(err, sql.ErrNoRows) {
		audioID, durationMs = sql.NullInt64{}, sql.NullInt64{}
	} else if err != nil {
		return fmt.Errorf("failed to resolve preferred audio: %w", err)
	}

	var preferredID any
	if audioID.Valid {
		preferredID = audioID.Int64
	}
	_, err = q.ExecContext(ctx, `
		UPDATE tracks SET preferred_audio_id = ?, duration_ms = ? WHERE id = ?
	`, preferredID, durationMs.Int64, trackID)
	if err != nil {
		return fmt.Errorf("failed to sync track preferred audio: %w", err)
	}
	s.cacheDel(ctx, cacheKey("track", trackID))
	return nil
}
