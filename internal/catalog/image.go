package catalog

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/sonar-music/sonar/internal/sonarerr"
)

// ImageCreate inserts an Image row pointing at an already-durable Blob.
func (s *Store) ImageCreate(ctx context.Context, tx *sql.Tx, blobID int64, mime string) (Image, error) {
	q := s.q(tx)
	res, err := q.ExecContext(ctx, `INSERT INTO images (blob_id, mime) VALUES (?, ?)`, blobID, mime)
	if err != nil {
		return Image{}, fmt.Errorf("failed to insert image: %w", err)
	}
	id, err := res.LastInsertId()
	if err != nil {
		return Image{}, fmt.Errorf("failed to read inserted image id: %w", err)
	}
	return s.ImageGet(ctx, tx, id)
}

// ImageGet retrieves an Image row by internal id.
func (s *Store) ImageGet(ctx context.Context, tx *sql.Tx, id int64) (Image, error) {
	var img Image
	err := s.q(tx).QueryRowContext(ctx, `SELECT id, blob_id, mime, created_at FROM images WHERE id = ?`, id).
		Scan(&img.ID, &img.BlobID, &img.Mime, &img.CreatedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return Image{}, sonarerr.NotFound("image", fmt.Sprint(id))
	}
	if err != nil {
		return Image{}, fmt.Errorf("failed to query image: %w", err)
	}
	return img, nil
}

// ImageReferenced reports whether any artist/album/track/playlist cover or
// user avatar still references the image with internal id imageID.
func (s *Store) ImageReferenced(ctx context.Context, imageID int64) (bool, error) {
	var count int
	err := s.db.QueryRowContext(ctx, `
		SELECT
			(SELECT COUNT(*) FROM artists WHERE cover_image_id = ?) +
			(SELECT COUNT(*) FROM albums WHERE cover_image_id = ?) +
			(SELECT COUNT(*) FROM tracks WHERE cover_image_id = ?) +
			(SELECT COUNT(*) FROM playlists WHERE cover_image_id = ?) +
			(SELECT COUNT(*) FROM users WHERE avatar_image_id = ?)
	`, imageID, imageID, imageID, imageID, imageID).Scan(&count)
	if err != nil {
		return false, fmt.Errorf("failed to check image references: %w", err)
	}
	return count > 0, nil
}

// ImageDelete removes an Image row. Callers must have already confirmed
// via ImageReferenced that nothing points at it (spec.md §4.5: delete
// fails with Conflict if referenced — enforced by the image service, not
// here, mirroring the Blob Store's division of responsibility).
func (s *Store) ImageDelete(ctx context.Context, tx *sql.Tx, id int64) error {
	_, err := s.q(tx).ExecContext(ctx, `DELETE FROM images WHERE id = ?`, id)
	if err != nil {
		return fmt.Errorf("failed to delete image: %w", err)
	}
	return nil
}
