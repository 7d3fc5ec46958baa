// Package blob implements sonar's content-addressed byte store: a
// filesystem tree sharded by the first two hex characters of a payload's
// sha256, written via a staging file and an atomic rename so partial
// writes are never visible (spec.md §4.1). The pattern of streaming a
// write to a staging path named with a fresh UUID before rename is
// grounded on original_source/sonar/src/bytestream.rs's fold-into-staging
// shape; google/uuid names the staging file the way every example repo in
// the pack already depends on it for disposable identifiers.
package blob

import (
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"io"
	"os"
	"path/filepath"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/sonar-music/sonar/internal/sonarerr"
)

// Descriptor is what Put returns: the store's internal key plus the size
// and sha256 of the payload now durably stored under it.
type Descriptor struct {
	Key    string
	Size   int64
	SHA256 string // 64 lowercase hex characters
}

// Store is a content-addressed byte store rooted at a directory.
type Store struct {
	root string
	log  *zap.Logger
}

// New creates a Store rooted at root, creating root/staging if absent.
func New(root string, log *zap.Logger) (*Store, error) {
	if log == nil {
		log = zap.NewNop()
	}
	if err := os.MkdirAll(filepath.Join(root, "staging"), 0o755); err != nil {
		return nil, sonarerr.IO("failed to create blob staging directory", err)
	}
	return &Store{root: root, log: log}, nil
}

func (s *Store) stagingPath() string {
	return filepath.Join(s.root, "staging", uuid.NewString())
}

// finalPath returns the sharded final location for a given sha256 hex
// digest: <root>/<first2>/<sha256>.
func (s *Store) finalPath(sha256Hex string) string {
	return filepath.Join(s.root, sha256Hex[:2], sha256Hex)
}

// Put streams r into the store, hashing as it writes, and atomically
// publishes the result under its content hash. If a blob with the same
// sha256 already exists, the staged copy is discarded and the existing
// blob's descriptor is returned (dedup by content, spec.md §4.1).
func (s *Store) Put(r io.Reader) (Descriptor, error) {
	staging := s.stagingPath()
	f, err := os.OpenFile(staging, os.O_CREATE|os.O_WRONLY|os.O_EXCL, 0o644)
	if err != nil {
		return Descriptor{}, sonarerr.IO("failed to create staging file", err)
	}
	defer os.Remove(staging) // no-op once renamed away

	h := sha256.New()
	size, err := io.Copy(f, io.TeeReader(r, h))
	closeErr := f.Close()
	if err != nil {
		return Descriptor{}, sonarerr.IO("failed to write blob payload", err)
	}
	if closeErr != nil {
		return Descriptor{}, sonarerr.IO("failed to flush blob payload", closeErr)
	}

	sum := hex.EncodeToString(h.Sum(nil))
	final := s.finalPath(sum)

	if _, err := os.Stat(final); err == nil {
		s.log.Debug("blob already present, discarding staged duplicate", zap.String("sha256", sum))
		return Descriptor{Key: sum, Size: size, SHA256: sum}, nil
	}

	if err := os.MkdirAll(filepath.Dir(final), 0o755); err != nil {
		return Descriptor{}, sonarerr.IO("failed to create blob shard directory", err)
	}
	if err := os.Rename(staging, final); err != nil {
		if os.IsExist(err) {
			return Descriptor{Key: sum, Size: size, SHA256: sum}, nil
		}
		return Descriptor{}, sonarerr.IO("failed to publish blob", err)
	}

	s.log.Info("blob stored", zap.String("sha256", sum), zap.Int64("size", size))
	return Descriptor{Key: sum, Size: size, SHA256: sum}, nil
}

// Get opens the blob stored under key (its sha256 hex digest) for
// streaming reads. The caller must Close the returned ReadCloser.
func (s *Store) Get(key string) (io.ReadCloser, error) {
	f, err := os.Open(s.finalPath(key))
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return nil, sonarerr.NotFound("blob", key)
		}
		return nil, sonarerr.IO("failed to open blob", err)
	}
	return f, nil
}

// GetRange opens the blob and seeks to offset, returning a reader bounded
// to length bytes (length <= 0 means read to EOF). Used by the Audio
// Service to honor HTTP range requests without loading the full blob into
// memory (spec.md §4.6).
func (s *Store) GetRange(key string, offset, length int64) (io.ReadCloser, error) {
	f, err := os.Open(s.finalPath(key))
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return nil, sonarerr.NotFound("blob", key)
		}
		return nil, sonarerr.IO("failed to open blob", err)
	}
	if offset > 0 {
		if _, err := f.Seek(offset, io.SeekStart); err != nil {
			f.Close()
			return nil, sonarerr.IO("failed to seek blob", err)
		}
	}
	if length <= 0 {
		return f, nil
	}
	return boundedReadCloser{r: io.LimitReader(f, length), c: f}, nil
}

type boundedReadCloser struct {
	r io.Reader
	c io.Closer
}

func (b boundedReadCloser) Read(p []byte) (int, error) { return b.r.Read(p) }
func (b boundedReadCloser) Close() error                { return b.c.Close() }

// Stat reports the size and presence of the blob stored under key, by
// re-deriving sha256 is not necessary: key already is the sha256.
func (s *Store) Stat(key string) (Descriptor, error) {
	info, err := os.Stat(s.finalPath(key))
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return Descriptor{}, sonarerr.NotFound("blob", key)
		}
		return Descriptor{}, sonarerr.IO("failed to stat blob", err)
	}
	return Descriptor{Key: key, Size: info.Size(), SHA256: key}, nil
}

// Verify re-hashes the blob on disk and reports sonarerr.HashMismatch if it
// no longer matches its key.
func (s *Store) Verify(key string) error {
	f, err := s.Get(key)
	if err != nil {
		return err
	}
	defer f.Close()

	h := sha256.New()
	if _, err := io.Copy(h, f); err != nil {
		return sonarerr.IO("failed to read blob for verification", err)
	}
	if hex.EncodeToString(h.Sum(nil)) != key {
		return sonarerr.HashMismatch()
	}
	return nil
}

// Delete removes the blob stored under key. Callers (the catalog layer)
// must have already established that no image/audio row references it;
// the store itself enforces no such constraint (spec.md §4.1).
func (s *Store) Delete(key string) error {
	if err := os.Remove(s.finalPath(key)); err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return nil
		}
		return sonarerr.IO("failed to delete blob", err)
	}
	return nil
}
