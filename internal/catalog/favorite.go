package catalog

import (
	"context"
	"database/sql"
	"fmt"
)

// FavoriteSet marks (namespace, identifier) as a favorite of userID.
// Idempotent: favoriting an already-favorited item is a no-op.
func (s *Store) FavoriteSet(ctx context.Context, tx *sql.Tx, userID int64, namespace string, identifier int64) error {
	_, err := s.q(tx).ExecContext(ctx, `
		INSERT INTO favorites (user_id, namespace, identifier) VALUES (?, ?, ?)
		ON CONFLICT (user_id, namespace, identifier) DO NOTHING
	`, userID, namespace, identifier)
	if err != nil {
		return fmt.Errorf("failed to set favorite: %w", err)
	}
	return nil
}

// FavoriteUnset removes a favorite. Unsetting something that was never
// favorited is a no-op.
func (s *Store) FavoriteUnset(ctx context.Context, tx *sql.Tx, userID int64, namespace string, identifier int64) error {
	_, err := s.q(tx).ExecContext(ctx, `
		DELETE FROM favorites WHERE user_id = ? AND namespace = ? AND identifier = ?
	`, userID, namespace, identifier)
	if err != nil {
		return fmt.Errorf("failed to unset favorite: %w", err)
	}
	return nil
}

// FavoriteIsSet reports whether userID has favorited (namespace, identifier).
func (s *Store) FavoriteIsSet(ctx context.Context, tx *sql.Tx, userID int64, namespace string, identifier int64) (bool, error) {
	var count int
	err := s.q(tx).QueryRowContext(ctx, `
		SELECT COUNT(*) FROM favorites WHERE user_id = ? AND namespace = ? AND identifier = ?
	`, userID, namespace, identifier).Scan(&count)
	if err != nil {
		return false, fmt.Errorf("failed to check favorite: %w", err)
	}
	return count > 0, nil
}

// FavoriteListByUser returns every favorite belonging to userID, most
// recently favorited first.
func (s *Store) FavoriteListByUser(ctx context.Context, tx *sql.Tx, userID int64, params ListParams) ([]Favorite, error) {
	offset, limit := params.normalize()
	rows, err := s.q(tx).QueryContext(ctx, `
		SELECT user_id, namespace, identifier, created_at FROM favorites
		WHERE user_id = ? ORDER BY created_at DESC LIMIT ? OFFSET ?
	`, userID, limit, offset)
	if err != nil {
		return nil, fmt.Errorf("failed to list favorites: %w", err)
	}
	defer rows.Close()

	var out []Favorite
	for rows.Next() {
		var f Favorite
		if err := rows.Scan(&f.UserID, &f.Namespace, &f.Identifier, &f.CreatedAt); err != nil {
			return nil, fmt.Errorf("failed to scan favorite: %w", err)
		}
		out = append(out, f)
	}
	return out, rows.Err()
}
