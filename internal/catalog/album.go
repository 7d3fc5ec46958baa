package catalog

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"

	"github.com/sonar-music/sonar/internal/sonarerr"
)

const albumSelectColumns = `
	b.id, b.name, b.artist_id, b.listen_count, b.cover_image_id, b.created_at, b.updated_at,
	(SELECT COUNT(*) FROM tracks WHERE tracks.album_id = b.id),
	(SELECT COALESCE(SUM(duration_ms), 0) FROM tracks WHERE tracks.album_id = b.id)
`

func scanAlbum(row *sql.Row) (Album, error) {
	var a Album
	err := row.Scan(&a.ID, &a.Name, &a.ArtistID, &a.ListenCount, &a.CoverImageID, &a.CreatedAt, &a.UpdatedAt, &a.TrackCount, &a.TotalDurationMs)
	return a, err
}

// AlbumCreate inserts a new Album row under artistID.
func (s *Store) AlbumCreate(ctx context.Context, tx *sql.Tx, artistID int64, name string) (Album, error) {
	res, err := s.q(tx).ExecContext(ctx, `INSERT INTO albums (artist_id, name) VALUES (?, ?)`, artistID, name)
	if err != nil {
		return Album{}, fmt.Errorf("failed to insert album: %w", err)
	}
	id, err := res.LastInsertId()
	if err != nil {
		return Album{}, fmt.Errorf("failed to read inserted album id: %w", err)
	}
	return s.AlbumGet(ctx, tx, id)
}

// AlbumGet retrieves an Album by internal id, including denormalized
// TrackCount/TotalDurationMs views.
func (s *Store) AlbumGet(ctx context.Context, tx *sql.Tx, id int64) (Album, error) {
	key := cacheKey("album", id)
	var cached Album
	if s.cacheGet(ctx, tx, key, &cached) {
		return cached, nil
	}
	row := s.q(tx).QueryRowContext(ctx, `SELECT `+albumSelectColumns+` FROM albums b WHERE b.id = ?`, id)
	a, err := scanAlbum(row)
	if errors.Is(err, sql.ErrNoRows) {
		return Album{}, sonarerr.NotFound("album", fmt.Sprint(id))
	}
	if err != nil {
		return Album{}, fmt.Errorf("failed to query album: %w", err)
	}
	s.cacheSet(ctx, tx, key, a)
	return a, nil
}

// AlbumFindByArtistAndName looks up an Album by (artistID, name) exact,
// case-insensitive match — the importer's "resolve album" step.
func (s *Store) AlbumFindByArtistAndName(ctx context.Context, tx *sql.Tx, artistID int64, name string) (Album, error) {
	row := s.q(tx).QueryRowContext(ctx, `
		SELECT `+albumSelectColumns+` FROM albums b WHERE b.artist_id = ? AND b.name = ? COLLATE NOCASE
	`, artistID, name)
	a, err := scanAlbum(row)
	if errors.Is(err, sql.ErrNoRows) {
		return Album{}, sonarerr.NotFound("album", name)
	}
	if err != nil {
		return Album{}, fmt.Errorf("failed to query album: %w", err)
	}
	return a, nil
}

// AlbumListByArtist returns an artist's albums ordered by name, paginated.
func (s *Store) AlbumListByArtist(ctx context.Context, tx *sql.Tx, artistID int64, params ListParams) ([]Album, error) {
	offset, limit := params.normalize()
	rows, err := s.q(tx).QueryContext(ctx, `
		SELECT `+albumSelectColumns+` FROM albums b
		WHERE b.artist_id = ? ORDER BY b.name COLLATE NOCASE ASC LIMIT ? OFFSET ?
	`, artistID, limit, offset)
	if err != nil {
		return nil, fmt.Errorf("failed to list albums: %w", err)
	}
	defer rows.Close()
	return scanAlbumRows(rows)
}

func scanAlbumRows(rows *sql.Rows) ([]Album, error) {
	var out []Album
	for rows.Next() {
		var a Album
		if err := rows.Scan(&a.ID, &a.Name, &a.ArtistID, &a.ListenCount, &a.CoverImageID, &a.CreatedAt, &a.UpdatedAt, &a.TrackCount, &a.TotalDurationMs); err != nil {
			return nil, fmt.Errorf("failed to scan album: %w", err)
		}
		out = append(out, a)
	}
	return out, rows.Err()
}

// AlbumUpdate applies tri-state patches to an Album's mutable fields.
func (s *Store) AlbumUpdate(ctx context.Context, tx *sql.Tx, id int64, name Update[string], coverImageID Update[*int64]) (Album, error) {
	current, err := s.AlbumGet(ctx, tx, id)
	if err != nil {
		return Album{}, err
	}
	newName := name.Apply(current.Name)
	newCover := coverImageID.Apply(current.CoverImageID)
	_, err = s.q(tx).ExecContext(ctx, `
		UPDATE albums SET name = ?, cover_image_id = ?, updated_at = CURRENT_TIMESTAMP WHERE id = ?
	`, newName, newCover, id)
	if err != nil {
		return Album{}, fmt.Errorf("failed to update album: %w", err)
	}
	s.cacheDel(ctx, cacheKey("album", id))
	return s.AlbumGet(ctx, tx, id)
}

// AlbumIncrementListenCount bumps an album's denormalized listen count.
func (s *Store) AlbumIncrementListenCount(ctx context.Context, tx *sql.Tx, id int64, delta int64) error {
	_, err := s.q(tx).ExecContext(ctx, `UPDATE albums SET listen_count = listen_count + ? WHERE id = ?`, delta, id)
	if err != nil {
		return fmt.Errorf("failed to update album listen count: %w", err)
	}
	s.cacheDel(ctx, cacheKey("album", id))
	return nil
}

// AlbumDelete removes an Album row. As with ArtistDelete there is no
// cascade: while tracks still reference the album it returns Conflict.
func (s *Store) AlbumDelete(ctx context.Context, tx *sql.Tx, id int64) error {
	_, err := s.q(tx).ExecContext(ctx, `DELETE FROM albums WHERE id = ?`, id)
	if isForeignKeyViolation(err) {
		return sonarerr.Conflict("album has tracks; delete them first")
	}
	if err != nil {
		return fmt.Errorf("failed to delete album: %w", err)
	}
	s.cacheDel(ctx, cacheKey("album", id))
	return nil
}

// AlbumSearch returns albums whose name contains q, case-insensitive.
func (s *Store) AlbumSearch(ctx context.Context, tx *sql.Tx, q string, params ListParams) ([]Album, error) {
	offset, limit := params.normalize()
	pattern := "%" + strings.ReplaceAll(q, "%", "\\%") + "%"
	rows, err := s.q(tx).QueryContext(ctx, `
		SELECT `+albumSelectColumns+` FROM albums b
		WHERE b.name LIKE ? ESCAPE '\' COLLATE NOCASE
		ORDER BY b.name COLLATE NOCASE ASC LIMIT ? OFFSET ?
	`, pattern, limit, offset)
	if err != nil {
		return nil, fmt.Errorf("failed to search albums: %w", err)
	}
	defer rows.Close()
	return scanAlbumRows(rows)
}
