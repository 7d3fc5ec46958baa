package catalog

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/sonar-music/sonar/internal/sonarerr"
)

const subscriptionSelectColumns = `
	id, user_id, artist_id, album_id, track_id, playlist_id, external_id,
	media_type, interval_seconds, last_submitted, backoff_until, description,
	created_at, updated_at
`

func scanSubscription(row *sql.Row) (Subscription, error) {
	var sub Subscription
	var externalID sql.NullString
	var lastSubmitted, backoffUntil sql.NullTime
	err := row.Scan(&sub.ID, &sub.UserID, &sub.ArtistID, &sub.AlbumID, &sub.TrackID, &sub.PlaylistID, &externalID,
		&sub.MediaType, &sub.IntervalSeconds, &lastSubmitted, &backoffUntil, &sub.Description,
		&sub.CreatedAt, &sub.UpdatedAt)
	if err != nil {
		return Subscription{}, err
	}
	if externalID.Valid {
		sub.ExternalID = &externalID.String
	}
	if lastSubmitted.Valid {
		sub.LastSubmitted = &lastSubmitted.Time
	}
	if backoffUntil.Valid {
		sub.BackoffUntil = &backoffUntil.Time
	}
	return sub, nil
}

// SubscriptionCreate registers userID's subscription to a catalog entity
// or an external provider identifier (exactly one of artistID/albumID/
// trackID/playlistID/externalID is expected to be non-nil, a rule the
// social package enforces before calling this).
func (s *Store) SubscriptionCreate(ctx context.Context, tx *sql.Tx, userID int64, mediaType MediaType, artistID, albumID, trackID, playlistID *int64, externalID *string, intervalSeconds int64, description string) (Subscription, error) {
	res, err := s.q(tx).ExecContext(ctx, `
		INSERT INTO subscriptions (user_id, artist_id, album_id, track_id, playlist_id, external_id, media_type, interval_seconds, description)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)
	`, userID, artistID, albumID, trackID, playlistID, externalID, mediaType, intervalSeconds, description)
	if err != nil {
		return Subscription{}, fmt.Errorf("failed to insert subscription: %w", err)
	}
	id, err := res.LastInsertId()
	if err != nil {
		return Subscription{}, fmt.Errorf("failed to read inserted subscription id: %w", err)
	}
	return s.SubscriptionGet(ctx, tx, id)
}

// SubscriptionGet retrieves a Subscription by internal id.
func (s *Store) SubscriptionGet(ctx context.Context, tx *sql.Tx, id int64) (Subscription, error) {
	row := s.q(tx).QueryRowContext(ctx, `SELECT `+subscriptionSelectColumns+` FROM subscriptions WHERE id = ?`, id)
	sub, err := scanSubscription(row)
	if errors.Is(err, sql.ErrNoRows) {
		return Subscription{}, sonarerr.NotFound("subscription", fmt.Sprint(id))
	}
	if err != nil {
		return Subscription{}, fmt.Errorf("failed to query subscription: %w", err)
	}
	return sub, nil
}

// SubscriptionListByUser returns a user's subscriptions.
func (s *Store) SubscriptionListByUser(ctx context.Context, tx *sql.Tx, userID int64, params ListParams) ([]Subscription, error) {
	offset, limit := params.normalize()
	rows, err := s.q(tx).QueryContext(ctx, `
		SELECT `+subscriptionSelectColumns+` FROM subscriptions
		WHERE user_id = ? ORDER BY created_at ASC LIMIT ? OFFSET ?
	`, userID, limit, offset)
	if err != nil {
		return nil, fmt.Errorf("failed to list subscriptions: %w", err)
	}
	defer rows.Close()
	return scanSubscriptionRows(rows)
}

// SubscriptionDue returns subscriptions ready for the scheduler to poll:
// those whose backoff_until (if set) has passed, and whose last_submitted
// is either null (never polled) or older than interval_seconds. A null
// last_submitted is treated as immediately due, per spec.md §4.9's "newly
// created subscriptions are checked on the next scheduler tick" rule.
func (s *Store) SubscriptionDue(ctx context.Context, tx *sql.Tx, now time.Time, limit int) ([]Subscription, error) {
	rows, err := s.q(tx).QueryContext(ctx, `
		SELECT `+subscriptionSelectColumns+` FROM subscriptions
		WHERE (backoff_until IS NULL OR backoff_until <= ?)
		AND (last_submitted IS NULL OR last_submitted <= datetime(?, '-' || interval_seconds || ' seconds'))
		ORDER BY last_submitted ASC NULLS FIRST
		LIMIT ?
	`, now, now, limit)
	if err != nil {
		return nil, fmt.Errorf("failed to list due subscriptions: %w", err)
	}
	defer rows.Close()
	return scanSubscriptionRows(rows)
}

func scanSubscriptionRows(rows *sql.Rows) ([]Subscription, error) {
	var out []Subscription
	for rows.Next() {
		var sub Subscription
		var externalID sql.NullString
		var lastSubmitted, backoffUntil sql.NullTime
		if err := rows.Scan(&sub.ID, &sub.UserID, &sub.ArtistID, &sub.AlbumID, &sub.TrackID, &sub.PlaylistID, &externalID,
			&sub.MediaType, &sub.IntervalSeconds, &lastSubmitted, &backoffUntil, &sub.Description,
			&sub.CreatedAt, &sub.UpdatedAt); err != nil {
			return nil, fmt.Errorf("failed to scan subscription: %w", err)
		}
		if externalID.Valid {
			sub.ExternalID = &externalID.String
		}
		if lastSubmitted.Valid {
			sub.LastSubmitted = &lastSubmitted.Time
		}
		if backoffUntil.Valid {
			sub.BackoffUntil = &backoffUntil.Time
		}
		out = append(out, sub)
	}
	return out, rows.Err()
}

// SubscriptionMarkPolled records a successful poll: last_submitted
// advances to now and any backoff is cleared.
func (s *Store) SubscriptionMarkPolled(ctx context.Context, tx *sql.Tx, id int64, now time.Time) error {
	_, err := s.q(tx).ExecContext(ctx, `
		UPDATE subscriptions SET last_submitted = ?, backoff_until = NULL, updated_at = CURRENT_TIMESTAMP WHERE id = ?
	`, now, id)
	if err != nil {
		return fmt.Errorf("failed to mark subscription polled: %w", err)
	}
	return nil
}

// SubscriptionBackoff sets backoffUntil after a failed poll, so the
// scheduler skips this subscription until the backoff window elapses
// (the social Dispatcher computes backoffUntil, capped at interval_seconds).
func (s *Store) SubscriptionBackoff(ctx context.Context, tx *sql.Tx, id int64, backoffUntil time.Time) error {
	_, err := s.q(tx).ExecContext(ctx, `
		UPDATE subscriptions SET backoff_until = ?, updated_at = CURRENT_TIMESTAMP WHERE id = ?
	`, backoffUntil, id)
	if err != nil {
		return fmt.Errorf("failed to set subscription backoff: %w", err)
	}
	return nil
}

// SubscriptionDelete removes a subscription.
func (s *Store) SubscriptionDelete(ctx context.Context, tx *sql.Tx, id int64) error {
	_, err := s.q(tx).ExecContext(ctx, `DELETE FROM subscriptions WHERE id = ?`, id)
	if err != nil {
		return fmt.Errorf("failed to delete subscription: %w", err)
	}
	return nil
}
