// Package image implements spec.md §4.5: magic-byte mime sniffing,
// content-addressed storage via internal/blob, and the referenced-before-
// delete guard enforced at the catalog layer.
package image

import (
	"bytes"
	"context"
	"database/sql"
	"io"
	"net/http"

	"github.com/sonar-music/sonar/internal/blob"
	"github.com/sonar-music/sonar/internal/catalog"
	"github.com/sonar-music/sonar/internal/sonarerr"
)

var allowedMimes = map[string]bool{
	"image/jpeg": true,
	"image/png":  true,
	"image/webp": true,
}

// sniffSize is how many leading bytes net/http.DetectContentType inspects.
const sniffSize = 512

// Service stores and retrieves image payloads.
type Service struct {
	blob    *blob.Store
	catalog *catalog.Store
}

// New constructs a Service over an already-open blob store and catalog.
func New(blobStore *blob.Store, catalogStore *catalog.Store) *Service {
	return &Service{blob: blobStore, catalog: catalogStore}
}

// Create sniffs r's mime type from its leading bytes, rejects anything
// outside {image/jpeg, image/png, image/webp}, stores the payload in the
// blob store, and creates an Image row. Returns the created Image row.
func (s *Service) Create(ctx context.Context, tx *sql.Tx, r io.Reader) (catalog.Image, error) {
	head := make([]byte, sniffSize)
	n, err := io.ReadFull(r, head)
	if err != nil && err != io.ErrUnexpectedEOF && err != io.EOF {
		return catalog.Image{}, sonarerr.IO("failed to read image payload header", err)
	}
	head = head[:n]
	mime := http.DetectContentType(head)
	if !allowedMimes[mime] {
		return catalog.Image{}, sonarerr.UnsupportedMime(mime)
	}

	desc, err := s.blob.Put(io.MultiReader(bytes.NewReader(head), r))
	if err != nil {
		return catalog.Image{}, err
	}
	b, err := s.catalog.BlobGetOrCreate(ctx, tx, desc.Key, desc.Size, desc.SHA256)
	if err != nil {
		return catalog.Image{}, err
	}
	return s.catalog.ImageCreate(ctx, tx, b.ID, mime)
}

// Get retrieves an Image row by internal id.
func (s *Service) Get(ctx context.Context, tx *sql.Tx, id int64) (catalog.Image, error) {
	return s.catalog.ImageGet(ctx, tx, id)
}

// Download streams an image's raw bytes along with its mime type.
func (s *Service) Download(ctx context.Context, tx *sql.Tx, id int64) (io.ReadCloser, string, error) {
	img, err := s.catalog.ImageGet(ctx, tx, id)
	if err != nil {
		return nil, "", err
	}
	b, err := s.catalog.BlobGet(ctx, tx, img.BlobID)
	if err != nil {
		return nil, "", err
	}
	r, err := s.blob.Get(b.SHA256)
	if err != nil {
		return nil, "", err
	}
	return r, img.Mime, nil
}

// Delete removes an Image row, failing with Conflict if any entity still
// references it.
func (s *Service) Delete(ctx context.Context, tx *sql.Tx, id int64) error {
	referenced, err := s.catalog.ImageReferenced(ctx, id)
	if err != nil {
		return err
	}
	if referenced {
		return sonarerr.Conflict("image is still referenced by an entity")
	}
	return s.catalog.ImageDelete(ctx, tx, id)
}
