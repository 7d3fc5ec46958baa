package catalog

import (
	"context"
	"database/sql"
	"fmt"
)

// PinSet pins (namespace, identifier) for userID. Idempotent.
func (s *Store) PinSet(ctx context.Context, tx *sql.Tx, userID int64, namespace string, identifier int64) error {
	_, err := s.q(tx).ExecContext(ctx, `
		INSERT INTO pins (user_id, namespace, identifier) VALUES (?, ?, ?)
		ON CONFLICT (user_id, namespace, identifier) DO NOTHING
	`, userID, namespace, identifier)
	if err != nil {
		return fmt.Errorf("failed to set pin: %w", err)
	}
	return nil
}

// PinUnset removes a pin. Unsetting an absent pin is a no-op.
func (s *Store) PinUnset(ctx context.Context, tx *sql.Tx, userID int64, namespace string, identifier int64) error {
	_, err := s.q(tx).ExecContext(ctx, `
		DELETE FROM pins WHERE user_id = ? AND namespace = ? AND identifier = ?
	`, userID, namespace, identifier)
	if err != nil {
		return fmt.Errorf("failed to unset pin: %w", err)
	}
	return nil
}

// PinListByUser returns every pin belonging to userID, most recently
// pinned first — the "continue listening" shelf's backing data.
func (s *Store) PinListByUser(ctx context.Context, tx *sql.Tx, userID int64, params ListParams) ([]Pin, error) {
	offset, limit := params.normalize()
	rows, err := s.q(tx).QueryContext(ctx, `
		SELECT user_id, namespace, identifier, created_at FROM pins
		WHERE user_id = ? ORDER BY created_at DESC LIMIT ? OFFSET ?
	`, userID, limit, offset)
	if err != nil {
		return nil, fmt.Errorf("failed to list pins: %w", err)
	}
	defer rows.Close()

	var out []Pin
	for rows.Next() {
		var p Pin
		if err := rows.Scan(&p.UserID, &p.Namespace, &p.Identifier, &p.CreatedAt); err != nil {
			return nil, fmt.Errorf("failed to scan pin: %w", err)
		}
		out = append(out, p)
	}
	return out, rows.Err()
}
