package catalog

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"

	"github.com/sonar-music/sonar/internal/sonarerr"
)

const playlistSelectColumns = `
	p.id, p.owner_id, p.name, p.cover_image_id, p.created_at, p.updated_at,
	(SELECT COUNT(*) FROM playlist_tracks WHERE playlist_tracks.playlist_id = p.id),
	(SELECT COALESCE(SUM(tracks.duration_ms), 0) FROM playlist_tracks
		JOIN tracks ON tracks.id = playlist_tracks.track_id
		WHERE playlist_tracks.playlist_id = p.id)
`

func scanPlaylist(row *sql.Row) (Playlist, error) {
	var p Playlist
	err := row.Scan(&p.ID, &p.OwnerID, &p.Name, &p.CoverImageID, &p.CreatedAt, &p.UpdatedAt, &p.TrackCount, &p.TotalDurationMs)
	return p, err
}

// PlaylistCreate inserts a new Playlist owned by ownerID. Fails with
// Conflict if the owner already has a playlist of that name, per spec.md
// §3's unique (owner_id, name) constraint.
func (s *Store) PlaylistCreate(ctx context.Context, tx *sql.Tx, ownerID int64, name string) (Playlist, error) {
	res, err := s.q(tx).ExecContext(ctx, `INSERT INTO playlists (owner_id, name) VALUES (?, ?)`, ownerID, name)
	if err != nil {
		if isUniqueViolation(err) {
			return Playlist{}, sonarerr.Conflict(fmt.Sprintf("playlist %q already exists", name))
		}
		return Playlist{}, fmt.Errorf("failed to insert playlist: %w", err)
	}
	id, err := res.LastInsertId()
	if err != nil {
		return Playlist{}, fmt.Errorf("failed to read inserted playlist id: %w", err)
	}
	return s.PlaylistGet(ctx, tx, id)
}

// PlaylistGet retrieves a Playlist by internal id.
func (s *Store) PlaylistGet(ctx context.Context, tx *sql.Tx, id int64) (Playlist, error) {
	row := s.q(tx).QueryRowContext(ctx, `SELECT `+playlistSelectColumns+` FROM playlists p WHERE p.id = ?`, id)
	p, err := scanPlaylist(row)
	if errors.Is(err, sql.ErrNoRows) {
		return Playlist{}, sonarerr.NotFound("playlist", fmt.Sprint(id))
	}
	if err != nil {
		return Playlist{}, fmt.Errorf("failed to query playlist: %w", err)
	}
	return p, nil
}

// PlaylistListByOwner returns an owner's playlists ordered by name.
func (s *Store) PlaylistListByOwner(ctx context.Context, tx *sql.Tx, ownerID int64, params ListParams) ([]Playlist, error) {
	offset, limit := params.normalize()
	rows, err := s.q(tx).QueryContext(ctx, `
		SELECT `+playlistSelectColumns+` FROM playlists p
		WHERE p.owner_id = ? ORDER BY p.name COLLATE NOCASE ASC LIMIT ? OFFSET ?
	`, ownerID, limit, offset)
	if err != nil {
		return nil, fmt.Errorf("failed to list playlists: %w", err)
	}
	defer rows.Close()

	var out []Playlist
	for rows.Next() {
		var p Playlist
		if err := rows.Scan(&p.ID, &p.OwnerID, &p.Name, &p.CoverImageID, &p.CreatedAt, &p.UpdatedAt, &p.TrackCount, &p.TotalDurationMs); err != nil {
			return nil, fmt.Errorf("failed to scan playlist: %w", err)
		}
		out = append(out, p)
	}
	return out, rows.Err()
}

// PlaylistSearch returns playlists whose name contains q, case-insensitive,
// the same substring-candidate shape internal/search layers its
// exact/prefix/substring ranking over for Artist/Album/Track.
func (s *Store) PlaylistSearch(ctx context.Context, tx *sql.Tx, q string, params ListParams) ([]Playlist, error) {
	offset, limit := params.normalize()
	pattern := "%" + strings.ReplaceAll(q, "%", "\\%") + "%"
	rows, err := s.q(tx).QueryContext(ctx, `
		SELECT `+playlistSelectColumns+` FROM playlists p
		WHERE p.name LIKE ? ESCAPE '\' COLLATE NOCASE
		ORDER BY p.name COLLATE NOCASE ASC LIMIT ? OFFSET ?
	`, pattern, limit, offset)
	if err != nil {
		return nil, fmt.Errorf("failed to search playlists: %w", err)
	}
	defer rows.Close()

	var out []Playlist
	for rows.Next() {
		var p Playlist
		if err := rows.Scan(&p.ID, &p.OwnerID, &p.Name, &p.CoverImageID, &p.CreatedAt, &p.UpdatedAt, &p.TrackCount, &p.TotalDurationMs); err != nil {
			return nil, fmt.Errorf("failed to scan playlist: %w", err)
		}
		out = append(out, p)
	}
	return out, rows.Err()
}

// PlaylistUpdate applies tri-state patches to a Playlist's mutable fields.
func (s *Store) PlaylistUpdate(ctx context.Context, tx *sql.Tx, id int64, name Update[string], coverImageID Update[*int64]) (Playlist, error) {
	current, err := s.PlaylistGet(ctx, tx, id)
	if err != nil {
		return Playlist{}, err
	}
	newName := name.Apply(current.Name)
	newCover := coverImageID.Apply(current.CoverImageID)
	_, err = s.q(tx).ExecContext(ctx, `
		UPDATE playlists SET name = ?, cover_image_id = ?, updated_at = CURRENT_TIMESTAMP WHERE id = ?
	`, newName, newCover, id)
	if err != nil {
		if isUniqueViolation(err) {
			return Playlist{}, sonarerr.Conflict(fmt.Sprintf("playlist %q already exists", newName))
		}
		return Playlist{}, fmt.Errorf("failed to update playlist: %w", err)
	}
	return s.PlaylistGet(ctx, tx, id)
}

// PlaylistDuplicate creates a new playlist owned by ownerID with newName,
// copying sourceID's track list in order (spec.md §4.8's "duplicate"
// operation).
func (s *Store) PlaylistDuplicate(ctx context.Context, tx *sql.Tx, sourceID, ownerID int64, newName string) (Playlist, error) {
	dup, err := s.PlaylistCreate(ctx, tx, ownerID, newName)
	if err != nil {
		return Playlist{}, err
	}
	tracks, err := s.PlaylistTrackList(ctx, tx, sourceID, ListParams{})
	if err != nil {
		return Playlist{}, err
	}
	for _, pt := range tracks {
		if _, err := s.PlaylistTrackAppend(ctx, tx, dup.ID, pt.TrackID); err != nil {
			return Playlist{}, err
		}
	}
	return s.PlaylistGet(ctx, tx, dup.ID)
}

// PlaylistDelete removes a Playlist and its track memberships.
func (s *Store) PlaylistDelete(ctx context.Context, tx *sql.Tx, id int64) error {
	q := s.q(tx)
	if _, err := q.ExecContext(ctx, `DELETE FROM playlist_tracks WHERE playlist_id = ?`, id); err != nil {
		return fmt.Errorf("failed to delete playlist tracks: %w", err)
	}
	if _, err := q.ExecContext(ctx, `DELETE FROM playlists WHERE id = ?`, id); err != nil {
		return fmt.Errorf("failed to delete playlist: %w", err)
	}
	return nil
}
