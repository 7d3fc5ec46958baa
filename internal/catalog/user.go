package catalog

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/sonar-music/sonar/internal/sonarerr"
)

func scanUser(row *sql.Row) (User, error) {
	var u User
	err := row.Scan(&u.ID, &u.Username, &u.PasswordHash, &u.AvatarImageID, &u.IsAdmin, &u.CreatedAt, &u.UpdatedAt)
	return u, err
}

const userSelectColumns = `id, username, password_hash, avatar_image_id, is_admin, created_at, updated_at`

// UserCreate inserts a new User row. The caller (internal/auth) is
// responsible for password hashing before this is called; the catalog
// stores whatever hash string it is given.
func (s *Store) UserCreate(ctx context.Context, tx *sql.Tx, username, passwordHash string, isAdmin bool) (User, error) {
	res, err := s.q(tx).ExecContext(ctx, `
		INSERT INTO users (username, password_hash, is_admin) VALUES (?, ?, ?)
	`, username, passwordHash, isAdmin)
	if err != nil {
		if isUniqueViolation(err) {
			return User{}, sonarerr.Conflict(fmt.Sprintf("username %q already taken", username))
		}
		return User{}, fmt.Errorf("failed to insert user: %w", err)
	}
	id, err := res.LastInsertId()
	if err != nil {
		return User{}, fmt.Errorf("failed to read inserted user id: %w", err)
	}
	return s.UserGet(ctx, tx, id)
}

// UserGet retrieves a User by internal id.
func (s *Store) UserGet(ctx context.Context, tx *sql.Tx, id int64) (User, error) {
	row := s.q(tx).QueryRowContext(ctx, `SELECT `+userSelectColumns+` FROM users WHERE id = ?`, id)
	u, err := scanUser(row)
	if errors.Is(err, sql.ErrNoRows) {
		return User{}, sonarerr.NotFound("user", fmt.Sprint(id))
	}
	if err != nil {
		return User{}, fmt.Errorf("failed to query user: %w", err)
	}
	return u, nil
}

// UserFindByUsername looks up a User by exact username — the lookup the
// login flow uses before verifying a password hash.
func (s *Store) UserFindByUsername(ctx context.Context, tx *sql.Tx, username string) (User, error) {
	row := s.q(tx).QueryRowContext(ctx, `SELECT `+userSelectColumns+` FROM users WHERE username = ?`, username)
	u, err := scanUser(row)
	if errors.Is(err, sql.ErrNoRows) {
		return User{}, sonarerr.NotFound("user", username)
	}
	if err != nil {
		return User{}, fmt.Errorf("failed to query user: %w", err)
	}
	return u, nil
}

// UserList returns every user ordered by username, paginated.
func (s *Store) UserList(ctx context.Context, tx *sql.Tx, params ListParams) ([]User, error) {
	offset, limit := params.normalize()
	rows, err := s.q(tx).QueryContext(ctx, `
		SELECT `+userSelectColumns+` FROM users ORDER BY username ASC LIMIT ? OFFSET ?
	`, limit, offset)
	if err != nil {
		return nil, fmt.Errorf("failed to list users: %w", err)
	}
	defer rows.Close()

	var out []User
	for rows.Next() {
		var u User
		if err := rows.Scan(&u.ID, &u.Username, &u.PasswordHash, &u.AvatarImageID, &u.IsAdmin, &u.CreatedAt, &u.UpdatedAt); err != nil {
			return nil, fmt.Errorf("failed to scan user: %w", err)
		}
		out = append(out, u)
	}
	return out, rows.Err()
}

// UserUpdatePassword overwrites a user's stored password hash.
func (s *Store) UserUpdatePassword(ctx context.Context, tx *sql.Tx, id int64, passwordHash string) error {
	_, err := s.q(tx).ExecContext(ctx, `
		UPDATE users SET password_hash = ?, updated_at = CURRENT_TIMESTAMP WHERE id = ?
	`, passwordHash, id)
	if err != nil {
		return fmt.Errorf("failed to update user password: %w", err)
	}
	return nil
}

// UserUpdateAvatar sets or clears a user's avatar image.
func (s *Store) UserUpdateAvatar(ctx context.Context, tx *sql.Tx, id int64, avatarImageID *int64) error {
	_, err := s.q(tx).ExecContext(ctx, `
		UPDATE users SET avatar_image_id = ?, updated_at = CURRENT_TIMESTAMP WHERE id = ?
	`, avatarImageID, id)
	if err != nil {
		return fmt.Errorf("failed to update user avatar: %w", err)
	}
	return nil
}

// UserDelete removes a user and every row keyed by their user_id —
// favorites, pins, subscriptions, playlists and their memberships,
// scrobbles — since none of those have meaning without the owning user.
func (s *Store) UserDelete(ctx context.Context, tx *sql.Tx, id int64) error {
	q := s.q(tx)
	stmts := []string{
		`DELETE FROM favorites WHERE user_id = ?`,
		`DELETE FROM pins WHERE user_id = ?`,
		`DELETE FROM subscriptions WHERE user_id = ?`,
		`DELETE FROM properties WHERE user_id = ?`,
		`DELETE FROM scrobble_submissions WHERE scrobble_id IN (SELECT id FROM scrobbles WHERE user_id = ?)`,
		`DELETE FROM scrobbles WHERE user_id = ?`,
		`DELETE FROM playlist_tracks WHERE playlist_id IN (SELECT id FROM playlists WHERE owner_id = ?)`,
		`DELETE FROM playlists WHERE owner_id = ?`,
		`DELETE FROM users WHERE id = ?`,
	}
	for _, stmt := range stmts {
		if _, err := q.ExecContext(ctx, stmt, id); err != nil {
			return fmt.Errorf("failed to delete user data: %w", err)
		}
	}
	return nil
}

// UserCount reports the total number of users, used at boot to decide
// whether to bootstrap a default admin account.
func (s *Store) UserCount(ctx context.Context, tx *sql.Tx) (int64, error) {
	var count int64
	err := s.q(tx).QueryRowContext(ctx, `SELECT COUNT(*) FROM users`).Scan(&count)
	if err != nil {
		return 0, fmt.Errorf("failed to count users: %w", err)
	}
	return count, nil
}
