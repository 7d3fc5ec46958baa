package catalog

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"

	"github.com/sonar-music/sonar/internal/sonarerr"
)

// ArtistCreate inserts a new Artist row.
func (s *Store) ArtistCreate(ctx context.Context, tx *sql.Tx, name string) (Artist, error) {
	res, err := s.q(tx).ExecContext(ctx, `INSERT INTO artists (name) VALUES (?)`, name)
	if err != nil {
		return Artist{}, fmt.Errorf("failed to insert artist: %w", err)
	}
	id, err := res.LastInsertId()
	if err != nil {
		return Artist{}, fmt.Errorf("failed to read inserted artist id: %w", err)
	}
	return s.ArtistGet(ctx, tx, id)
}

const artistSelectColumns = `
	a.id, a.name, a.listen_count, a.cover_image_id, a.created_at, a.updated_at,
	(SELECT COUNT(*) FROM albums WHERE albums.artist_id = a.id)
`

func scanArtist(row *sql.Row) (Artist, error) {
	var a Artist
	err := row.Scan(&a.ID, &a.Name, &a.ListenCount, &a.CoverImageID, &a.CreatedAt, &a.UpdatedAt, &a.AlbumCount)
	if err != nil {
		return Artist{}, err
	}
	return a, nil
}

// ArtistGet retrieves an Artist by internal id, including its denormalized
// AlbumCount view. Standalone calls (tx == nil) are read-through cached,
// keyed by id, so repeated lookups of the same artist (e.g. from streaming
// or OpenSubsonic traffic) skip SQLite entirely on a hit.
func (s *Store) ArtistGet(ctx context.Context, tx *sql.Tx, id int64) (Artist, error) {
	key := cacheKey("artist", id)
	var cached Artist
	if s.cacheGet(ctx, tx, key, &cached) {
		return cached, nil
	}
	row := s.q(tx).QueryRowContext(ctx, `SELECT `+artistSelectColumns+` FROM artists a WHERE a.id = ?`, id)
	a, err := scanArtist(row)
	if errors.Is(err, sql.ErrNoRows) {
		return Artist{}, sonarerr.NotFound("artist", fmt.Sprint(id))
	}
	if err != nil {
		return Artist{}, fmt.Errorf("failed to query artist: %w", err)
	}
	s.cacheSet(ctx, tx, key, a)
	return a, nil
}

// ArtistFindByName looks up an Artist by exact, case-insensitive name
// match, the resolution step the importer uses before minting a new
// Artist (spec.md §4.10's "resolve artist" pipeline step).
func (s *Store) ArtistFindByName(ctx context.Context, tx *sql.Tx, name string) (Artist, error) {
	row := s.q(tx).QueryRowContext(ctx, `SELECT `+artistSelectColumns+` FROM artists a WHERE a.name = ? COLLATE NOCASE`, name)
	a, err := scanArtist(row)
	if errors.Is(err, sql.ErrNoRows) {
		return Artist{}, sonarerr.NotFound("artist", name)
	}
	if err != nil {
		return Artist{}, fmt.Errorf("failed to query artist: %w", err)
	}
	return a, nil
}

// ArtistList returns artists ordered by name, paginated per params.
func (s *Store) ArtistList(ctx context.Context, tx *sql.Tx, params ListParams) ([]Artist, error) {
	offset, limit := params.normalize()
	rows, err := s.q(tx).QueryContext(ctx, `
		SELECT `+artistSelectColumns+` FROM artists a ORDER BY a.name COLLATE NOCASE ASC LIMIT ? OFFSET ?
	`, limit, offset)
	if err != nil {
		return nil, fmt.Errorf("failed to list artists: %w", err)
	}
	defer rows.Close()

	var out []Artist
	for rows.Next() {
		var a Artist
		if err := rows.Scan(&a.ID, &a.Name, &a.ListenCount, &a.CoverImageID, &a.CreatedAt, &a.UpdatedAt, &a.AlbumCount); err != nil {
			return nil, fmt.Errorf("failed to scan artist: %w", err)
		}
		out = append(out, a)
	}
	return out, rows.Err()
}

// ArtistUpdate applies tri-state patches to an Artist's mutable fields.
func (s *Store) ArtistUpdate(ctx context.Context, tx *sql.Tx, id int64, name Update[string], coverImageID Update[*int64]) (Artist, error) {
	current, err := s.ArtistGet(ctx, tx, id)
	if err != nil {
		return Artist{}, err
	}
	newName := name.Apply(current.Name)
	newCover := coverImageID.Apply(current.CoverImageID)
	_, err = s.q(tx).ExecContext(ctx, `
		UPDATE artists SET name = ?, cover_image_id = ?, updated_at = CURRENT_TIMESTAMP WHERE id = ?
	`, newName, newCover, id)
	if err != nil {
		return Artist{}, fmt.Errorf("failed to update artist: %w", err)
	}
	s.cacheDel(ctx, cacheKey("artist", id))
	return s.ArtistGet(ctx, tx, id)
}

// ArtistIncrementListenCount bumps an artist's denormalized listen count by
// delta (delta may be negative, to undo a scrobble deletion).
func (s *Store) ArtistIncrementListenCount(ctx context.Context, tx *sql.Tx, id int64, delta int64) error {
	_, err := s.q(tx).ExecContext(ctx, `UPDATE artists SET listen_count = listen_count + ? WHERE id = ?`, delta, id)
	if err != nil {
		return fmt.Errorf("failed to update artist listen count: %w", err)
	}
	s.cacheDel(ctx, cacheKey("artist", id))
	return nil
}

// ArtistDelete removes an Artist row. It does not cascade: while albums
// still reference the artist, the foreign key rejects the delete and
// ArtistDelete returns Conflict.
func (s *Store) ArtistDelete(ctx context.Context, tx *sql.Tx, id int64) error {
	_, err := s.q(tx).ExecContext(ctx, `DELETE FROM artists WHERE id = ?`, id)
	if isForeignKeyViolation(err) {
		return sonarerr.Conflict("artist has albums; delete them first")
	}
	if err != nil {
		return fmt.Errorf("failed to delete artist: %w", err)
	}
	s.cacheDel(ctx, cacheKey("artist", id))
	return nil
}

// ArtistSearch returns artists whose name contains q (case-insensitive
// substring match), the catalog-level primitive behind spec.md §4.12's
// search ranking.
func (s *Store) ArtistSearch(ctx context.Context, tx *sql.Tx, q string, params ListParams) ([]Artist, error) {
	offset, limit := params.normalize()
	pattern := "%" + strings.ReplaceAll(q, "%", "\\%") + "%"
	rows, err := s.q(tx).QueryContext(ctx, `
		SELECT `+artistSelectColumns+` FROM artists a
		WHERE a.name LIKE ? ESCAPE '\' COLLATE NOCASE
		ORDER BY a.name COLLATE NOCASE ASC LIMIT ? OFFSET ?
	`, pattern, limit, offset)
	if err != nil {
		return nil, fmt.Errorf("failed to search artists: %w", err)
	}
	defer rows.Close()

	var out []Artist
	for rows.Next() {
		var a Artist
		if err := rows.Scan(&a.ID, &a.Name, &a.ListenCount, &a.CoverImageID, &a.CreatedAt, &a.UpdatedAt, &a.AlbumCount); err != nil {
			return nil, fmt.Errorf("failed to scan artist: %w", err)
		}
		out = append(out, a)
	}
	return out, rows.Err()
}
