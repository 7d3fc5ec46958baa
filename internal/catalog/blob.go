package catalog

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/sonar-music/sonar/internal/sonarerr"
)

// BlobGetOrCreate inserts a Blob row for the given content descriptor, or
// returns the existing row if one already exists for sha256 — the catalog
// side of spec.md §4.1's "exactly one row per distinct sha256" invariant.
// The blob bytes themselves are expected to already be durable in the blob
// store by the time this is called (spec.md §4.10: "blob is written before
// the transaction begins").
func (s *Store) BlobGetOrCreate(ctx context.Context, tx *sql.Tx, key string, size int64, sha256 string) (Blob, error) {
	q := s.q(tx)

	var b Blob
	err := q.QueryRowContext(ctx, `SELECT id, key, size, sha256, created_at FROM blobs WHERE sha256 = ?`, sha256).
		Scan(&b.ID, &b.Key, &b.Size, &b.SHA256, &b.CreatedAt)
	if err == nil {
		return b, nil
	}
	if !errors.Is(err, sql.ErrNoRows) {
		return Blob{}, fmt.Errorf("failed to query blob by sha256: %w", err)
	}

	res, err := q.ExecContext(ctx, `INSERT INTO blobs (key, size, sha256) VALUES (?, ?, ?)`, key, size, sha256)
	if err != nil {
		return Blob{}, fmt.Errorf("failed to insert blob: %w", err)
	}
	id, err := res.LastInsertId()
	if err != nil {
		return Blob{}, fmt.Errorf("failed to read inserted blob id: %w", err)
	}
	return s.BlobGet(ctx, tx, id)
}

// BlobGet retrieves a Blob row by internal id.
func (s *Store) BlobGet(ctx context.Context, tx *sql.Tx, id int64) (Blob, error) {
	var b Blob
	err := s.q(tx).QueryRowContext(ctx, `SELECT id, key, size, sha256, created_at FROM blobs WHERE id = ?`, id).
		Scan(&b.ID, &b.Key, &b.Size, &b.SHA256, &b.CreatedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return Blob{}, sonarerr.NotFound("blob", fmt.Sprint(id))
	}
	if err != nil {
		return Blob{}, fmt.Errorf("failed to query blob: %w", err)
	}
	return b, nil
}

// BlobReferenced reports whether any image or audio row still references
// the blob with internal id blobID — the check the Blob Store's Delete
// contract defers to the catalog (spec.md §4.1).
func (s *Store) BlobReferenced(ctx context.Context, blobID int64) (bool, error) {
	var count int
	err := s.db.QueryRowContext(ctx, `
		SELECT
			(SELECT COUNT(*) FROM images WHERE blob_id = ?) +
			(SELECT COUNT(*) FROM audios WHERE blob_id = ?)
	`, blobID, blobID).Scan(&count)
	if err != nil {
		return false, fmt.Errorf("failed to check blob references: %w", err)
	}
	return count > 0, nil
}
