package catalog

import (
	"context"
	"database/sql"
	"fmt"
)

// GenreAdd attaches genre to (namespace, identifier). Idempotent: adding
// a genre that is already attached is a no-op, the set semantics spec.md
// §4.4 describes for genres.
func (s *Store) GenreAdd(ctx context.Context, tx *sql.Tx, namespace string, identifier int64, genre string) error {
	_, err := s.q(tx).ExecContext(ctx, `
		INSERT INTO genres (namespace, identifier, genre) VALUES (?, ?, ?)
		ON CONFLICT (namespace, identifier, genre) DO NOTHING
	`, namespace, identifier, genre)
	if err != nil {
		return fmt.Errorf("failed to add genre: %w", err)
	}
	return nil
}

// GenreRemove detaches genre from (namespace, identifier).
func (s *Store) GenreRemove(ctx context.Context, tx *sql.Tx, namespace string, identifier int64, genre string) error {
	_, err := s.q(tx).ExecContext(ctx, `
		DELETE FROM genres WHERE namespace = ? AND identifier = ? AND genre = ?
	`, namespace, identifier, genre)
	if err != nil {
		return fmt.Errorf("failed to remove genre: %w", err)
	}
	return nil
}

// GenreListByEntity returns the set of genres attached to (namespace, identifier).
func (s *Store) GenreListByEntity(ctx context.Context, tx *sql.Tx, namespace string, identifier int64) ([]string, error) {
	rows, err := s.q(tx).QueryContext(ctx, `
		SELECT genre FROM genres WHERE namespace = ? AND identifier = ? ORDER BY genre ASC
	`, namespace, identifier)
	if err != nil {
		return nil, fmt.Errorf("failed to list genres: %w", err)
	}
	defer rows.Close()

	var out []string
	for rows.Next() {
		var g string
		if err := rows.Scan(&g); err != nil {
			return nil, fmt.Errorf("failed to scan genre: %w", err)
		}
		out = append(out, g)
	}
	return out, rows.Err()
}

// GenreListEntitiesByGenre returns the identifiers within namespace that
// carry genre, paginated — the browse-by-genre primitive.
func (s *Store) GenreListEntitiesByGenre(ctx context.Context, tx *sql.Tx, namespace, genre string, params ListParams) ([]int64, error) {
	offset, limit := params.normalize()
	rows, err := s.q(tx).QueryContext(ctx, `
		SELECT identifier FROM genres WHERE namespace = ? AND genre = ? ORDER BY identifier ASC LIMIT ? OFFSET ?
	`, namespace, genre, limit, offset)
	if err != nil {
		return nil, fmt.Errorf("failed to list entities by genre: %w", err)
	}
	defer rows.Close()

	var out []int64
	for rows.Next() {
		var id int64
		if err := rows.Scan(&id); err != nil {
			return nil, fmt.Errorf("failed to scan entity id: %w", err)
		}
		out = append(out, id)
	}
	return out, rows.Err()
}
