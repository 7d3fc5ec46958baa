package catalog

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/sonar-music/sonar/internal/sonarerr"
)

// globalPropertyUser is the sentinel user_id stored for properties with
// no per-user override, working around SQLite's NULL-distinctness in
// unique indexes (see the migrations/000_initial_schema.sql comment).
const globalPropertyUser int64 = 0

// PropertySet writes a property value. userID nil sets the global value;
// non-nil sets a per-user override (spec.md §4.4: "a user's properties
// shadow the global value for keys they've set, and fall back to it for
// keys they haven't").
func (s *Store) PropertySet(ctx context.Context, tx *sql.Tx, namespace string, identifier int64, key string, userID *int64, value string) error {
	uid := globalPropertyUser
	if userID != nil {
		uid = *userID
	}
	_, err := s.q(tx).ExecContext(ctx, `
		INSERT INTO properties (namespace, identifier, key, user_id, value) VALUES (?, ?, ?, ?, ?)
		ON CONFLICT (namespace, identifier, key, user_id) DO UPDATE SET value = excluded.value
	`, namespace, identifier, key, uid, value)
	if err != nil {
		return fmt.Errorf("failed to set property: %w", err)
	}
	return nil
}

// PropertyGet resolves a property's value, preferring a per-user override
// over the global value when userID is non-nil and an override exists.
func (s *Store) PropertyGet(ctx context.Context, tx *sql.Tx, namespace string, identifier int64, key string, userID *int64) (string, error) {
	q := s.q(tx)
	if userID != nil {
		var value string
		err := q.QueryRowContext(ctx, `
			SELECT value FROM properties WHERE namespace = ? AND identifier = ? AND key = ? AND user_id = ?
		`, namespace, identifier, key, *userID).Scan(&value)
		if err == nil {
			return value, nil
		}
		if !errors.Is(err, sql.ErrNoRows) {
			return "", fmt.Errorf("failed to query property override: %w", err)
		}
	}
	var value string
	err := q.QueryRowContext(ctx, `
		SELECT value FROM properties WHERE namespace = ? AND identifier = ? AND key = ? AND user_id = ?
	`, namespace, identifier, key, globalPropertyUser).Scan(&value)
	if errors.Is(err, sql.ErrNoRows) {
		return "", sonarerr.NotFound("property", key)
	}
	if err != nil {
		return "", fmt.Errorf("failed to query property: %w", err)
	}
	return value, nil
}

// PropertyUnset removes a property value. userID nil clears the global
// value; non-nil clears only that user's override.
func (s *Store) PropertyUnset(ctx context.Context, tx *sql.Tx, namespace string, identifier int64, key string, userID *int64) error {
	uid := globalPropertyUser
	if userID != nil {
		uid = *userID
	}
	_, err := s.q(tx).ExecContext(ctx, `
		DELETE FROM properties WHERE namespace = ? AND identifier = ? AND key = ? AND user_id = ?
	`, namespace, identifier, key, uid)
	if err != nil {
		return fmt.Errorf("failed to unset property: %w", err)
	}
	return nil
}

// PropertyListByEntity returns every property set on (namespace,
// identifier), both global and per-user, for the entity's full property
// dump (spec.md §4.4's "list properties" operation).
func (s *Store) PropertyListByEntity(ctx context.Context, tx *sql.Tx, namespace string, identifier int64) ([]Property, error) {
	rows, err := s.q(tx).QueryContext(ctx, `
		SELECT namespace, identifier, key, user_id, value FROM properties
		WHERE namespace = ? AND identifier = ?
		ORDER BY key ASC, user_id ASC
	`, namespace, identifier)
	if err != nil {
		return nil, fmt.Errorf("failed to list properties: %w", err)
	}
	defer rows.Close()

	var out []Property
	for rows.Next() {
		var p Property
		var uid int64
		if err := rows.Scan(&p.Namespace, &p.Identifier, &p.Key, &uid, &p.Value); err != nil {
			return nil, fmt.Errorf("failed to scan property: %w", err)
		}
		if uid != globalPropertyUser {
			p.UserID = &uid
		}
		out = append(out, p)
	}
	return out, rows.Err()
}
