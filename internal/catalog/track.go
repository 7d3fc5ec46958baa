package catalog

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"

	"github.com/sonar-music/sonar/internal/sonarerr"
)

const trackSelectColumns = `
	t.id, t.name, t.album_id, t.cover_image_id, t.lyrics_kind, t.listen_count,
	t.duration_ms, t.preferred_audio_id, t.created_at, t.updated_at
`

func scanTrack(row *sql.Row) (Track, error) {
	var t Track
	var lyricsKind sql.NullString
	err := row.Scan(&t.ID, &t.Name, &t.AlbumID, &t.CoverImageID, &lyricsKind, &t.ListenCount,
		&t.DurationMs, &t.PreferredAudioID, &t.CreatedAt, &t.UpdatedAt)
	if err != nil {
		return Track{}, err
	}
	if lyricsKind.Valid {
		k := LyricsKind(lyricsKind.String)
		t.LyricsKind = &k
	}
	return t, nil
}

func scanTrackRows(rows *sql.Rows) ([]Track, error) {
	var out []Track
	for rows.Next() {
		var t Track
		var lyricsKind sql.NullString
		if err := rows.Scan(&t.ID, &t.Name, &t.AlbumID, &t.CoverImageID, &lyricsKind, &t.ListenCount,
			&t.DurationMs, &t.PreferredAudioID, &t.CreatedAt, &t.UpdatedAt); err != nil {
			return nil, fmt.Errorf("failed to scan track: %w", err)
		}
		if lyricsKind.Valid {
			k := LyricsKind(lyricsKind.String)
			t.LyricsKind = &k
		}
		out = append(out, t)
	}
	return out, rows.Err()
}

// TrackCreate inserts a new Track row under albumID.
func (s *Store) TrackCreate(ctx context.Context, tx *sql.Tx, albumID int64, name string) (Track, error) {
	res, err := s.q(tx).ExecContext(ctx, `INSERT INTO tracks (album_id, name) VALUES (?, ?)`, albumID, name)
	if err != nil {
		return Track{}, fmt.Errorf("failed to insert track: %w", err)
	}
	id, err := res.LastInsertId()
	if err != nil {
		return Track{}, fmt.Errorf("failed to read inserted track id: %w", err)
	}
	return s.TrackGet(ctx, tx, id)
}

// TrackGet retrieves a Track by internal id, with its denormalized
// DurationMs/PreferredAudioID views.
func (s *Store) TrackGet(ctx context.Context, tx *sql.Tx, id int64) (Track, error) {
	key := cacheKey("track", id)
	var cached Track
	if s.cacheGet(ctx, tx, key, &cached) {
		return cached, nil
	}
	row := s.q(tx).QueryRowContext(ctx, `SELECT `+trackSelectColumns+` FROM tracks t WHERE t.id = ?`, id)
	t, err := scanTrack(row)
	if errors.Is(err, sql.ErrNoRows) {
		return Track{}, sonarerr.NotFound("track", fmt.Sprint(id))
	}
	if err != nil {
		return Track{}, fmt.Errorf("failed to query track: %w", err)
	}
	s.cacheSet(ctx, tx, key, t)
	return t, nil
}

// TrackFindByAlbumAndName looks up a Track by (albumID, name) exact,
// case-insensitive match — the importer's "resolve track" step.
func (s *Store) TrackFindByAlbumAndName(ctx context.Context, tx *sql.Tx, albumID int64, name string) (Track, error) {
	row := s.q(tx).QueryRowContext(ctx, `
		SELECT `+trackSelectColumns+` FROM tracks t WHERE t.album_id = ? AND t.name = ? COLLATE NOCASE
	`, albumID, name)
	t, err := scanTrack(row)
	if errors.Is(err, sql.ErrNoRows) {
		return Track{}, sonarerr.NotFound("track", name)
	}
	if err != nil {
		return Track{}, fmt.Errorf("failed to query track: %w", err)
	}
	return t, nil
}

// TrackListByAlbum returns an album's tracks ordered by name, paginated.
func (s *Store) TrackListByAlbum(ctx context.Context, tx *sql.Tx, albumID int64, params ListParams) ([]Track, error) {
	offset, limit := params.normalize()
	rows, err := s.q(tx).QueryContext(ctx, `
		SELECT `+trackSelectColumns+` FROM tracks t
		WHERE t.album_id = ? ORDER BY t.name COLLATE NOCASE ASC LIMIT ? OFFSET ?
	`, albumID, limit, offset)
	if err != nil {
		return nil, fmt.Errorf("failed to list tracks: %w", err)
	}
	defer rows.Close()
	return scanTrackRows(rows)
}

// TrackUpdate applies tri-state patches to a Track's mutable fields.
func (s *Store) TrackUpdate(ctx context.Context, tx *sql.Tx, id int64, name Update[string], coverImageID Update[*int64]) (Track, error) {
	current, err := s.TrackGet(ctx, tx, id)
	if err != nil {
		return Track{}, err
	}
	newName := name.Apply(current.Name)
	newCover := coverImageID.Apply(current.CoverImageID)
	_, err = s.q(tx).ExecContext(ctx, `
		UPDATE tracks SET name = ?, cover_image_id = ?, updated_at = CURRENT_TIMESTAMP WHERE id = ?
	`, newName, newCover, id)
	if err != nil {
		return Track{}, fmt.Errorf("failed to update track: %w", err)
	}
	s.cacheDel(ctx, cacheKey("track", id))
	return s.TrackGet(ctx, tx, id)
}

// TrackSetLyricsKind records whether a track's lyrics are synced,
// unsynced, or absent (nil clears it).
func (s *Store) TrackSetLyricsKind(ctx context.Context, tx *sql.Tx, id int64, kind *LyricsKind) error {
	var v any
	if kind != nil {
		v = string(*kind)
	}
	_, err := s.q(tx).ExecContext(ctx, `UPDATE tracks SET lyrics_kind = ?, updated_at = CURRENT_TIMESTAMP WHERE id = ?`, v, id)
	if err != nil {
		return fmt.Errorf("failed to update track lyrics kind: %w", err)
	}
	s.cacheDel(ctx, cacheKey("track", id))
	return nil
}

// TrackIncrementListenCount bumps a track's denormalized listen count.
func (s *Store) TrackIncrementListenCount(ctx context.Context, tx *sql.Tx, id int64, delta int64) error {
	_, err := s.q(tx).ExecContext(ctx, `UPDATE tracks SET listen_count = listen_count + ? WHERE id = ?`, delta, id)
	if err != nil {
		return fmt.Errorf("failed to update track listen count: %w", err)
	}
	s.cacheDel(ctx, cacheKey("track", id))
	return nil
}

// TrackDelete removes a Track row along with its track_audios and
// lyrics_lines rows, which have no independent existence once the track
// is gone. Playlist memberships and scrobble history are left for the
// caller to reconcile.
func (s *Store) TrackDelete(ctx context.Context, tx *sql.Tx, id int64) error {
	q := s.q(tx)
	if _, err := q.ExecContext(ctx, `DELETE FROM track_audios WHERE track_id = ?`, id); err != nil {
		return fmt.Errorf("failed to delete track audios: %w", err)
	}
	if _, err := q.ExecContext(ctx, `DELETE FROM lyrics_lines WHERE track_id = ?`, id); err != nil {
		return fmt.Errorf("failed to delete track lyrics: %w", err)
	}
	if _, err := q.ExecContext(ctx, `DELETE FROM tracks WHERE id = ?`, id); err != nil {
		return fmt.Errorf("failed to delete track: %w", err)
	}
	s.cacheDel(ctx, cacheKey("track", id))
	return nil
}

// TrackSearch returns tracks whose name contains q, case-insensitive.
func (s *Store) TrackSearch(ctx context.Context, tx *sql.Tx, q string, params ListParams) ([]Track, error) {
	offset, limit := params.normalize()
	pattern := "%" + strings.ReplaceAll(q, "%", "\\%") + "%"
	rows, err := s.q(tx).QueryContext(ctx, `
		SELECT `+trackSelectColumns+` FROM tracks t
		WHERE t.name LIKE ? ESCAPE '\' COLLATE NOCASE
		ORDER BY t.name COLLATE NOCASE ASC LIMIT ? OFFSET ?
	`, pattern, limit, offset)
	if err != nil {
		return nil, fmt.Errorf("failed to search tracks: %w", err)
	}
	defer rows.Close()
	return scanTrackRows(rows)
}
