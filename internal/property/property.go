// Package property is the side-table attachment service of spec.md §4.4,
// wrapping the catalog package's raw properties/genres tables with key
// validation and the reserved-namespace guard described in
// original_source/sonar/src/prop.rs: any key under the sonar.io/ or
// external.sonar.io/ prefixes is written by Import or Audio itself and
// rejected from ordinary user writes.
package property

import (
	"context"
	"database/sql"
	"strings"

	"github.com/sonar-music/sonar/internal/catalog"
	"github.com/sonar-music/sonar/internal/sonarerr"
)

const maxKeyLength = 64

// Well-known keys Import writes directly, matching
// original_source/sonar/src/prop.rs's constants.
const (
	KeyDescription       = "sonar.io/description"
	KeyReleaseDate       = "sonar.io/release-date"
	KeyTrackNumber       = "sonar.io/track-number"
	KeyDiscNumber        = "sonar.io/disc-number"
	KeyMime              = "sonar.io/mime"
	KeyExternalSpotifyID = "external.sonar.io/spotify-id"
	KeyExternalMBID      = "external.sonar.io/musicbrainz-id"
)

var reservedPrefixes = []string{"sonar.io/", "external.sonar.io/"}

// IsReserved reports whether key falls under a prefix Import/Audio own.
func IsReserved(key string) bool {
	for _, prefix := range reservedPrefixes {
		if strings.HasPrefix(key, prefix) {
			return true
		}
	}
	return false
}

// ValidateKey enforces original_source's PropertyKey grammar: lowercase
// ASCII letters, digits, '-', '_', '/', '.', max 64 characters.
func ValidateKey(key string) error {
	if key == "" {
		return sonarerr.InvalidArgument("key", "must not be empty")
	}
	if len(key) > maxKeyLength {
		return sonarerr.InvalidArgument("key", "must be at most 64 characters")
	}
	for _, c := range key {
		switch {
		case c >= 'a' && c <= 'z':
		case c >= '0' && c <= '9':
		case c == '-' || c == '_' || c == '/' || c == '.':
		default:
			return sonarerr.InvalidArgument("key", "must contain only lowercase letters, digits, '-', '_', '/', '.'")
		}
	}
	return nil
}

// Service is the property/genre attachment service handed to the engine
// facade and the importer.
type Service struct {
	catalog *catalog.Store
}

// New constructs a Service over an already-open catalog Store.
func New(catalogStore *catalog.Store) *Service {
	return &Service{catalog: catalogStore}
}

// Set writes a property value. internal is true for calls originating
// from Import/Audio themselves, the only callers allowed to write
// reserved keys.
func (s *Service) Set(ctx context.Context, tx *sql.Tx, namespace string, identifier int64, key string, userID *int64, value string, internal bool) error {
	if err := ValidateKey(key); err != nil {
		return err
	}
	if IsReserved(key) && !internal {
		return sonarerr.PermissionDenied("writing reserved property " + key)
	}
	return s.catalog.PropertySet(ctx, tx, namespace, identifier, key, userID, value)
}

// Get resolves a property's value, preferring a per-user override.
func (s *Service) Get(ctx context.Context, tx *sql.Tx, namespace string, identifier int64, key string, userID *int64) (string, error) {
	return s.catalog.PropertyGet(ctx, tx, namespace, identifier, key, userID)
}

// Unset clears a property value. Reserved keys may only be cleared by
// internal callers, mirroring Set's guard.
func (s *Service) Unset(ctx context.Context, tx *sql.Tx, namespace string, identifier int64, key string, userID *int64, internal bool) error {
	if IsReserved(key) && !internal {
		return sonarerr.PermissionDenied("clearing reserved property " + key)
	}
	return s.catalog.PropertyUnset(ctx, tx, namespace, identifier, key, userID)
}

// List returns every property attached to (namespace, identifier).
func (s *Service) List(ctx context.Context, tx *sql.Tx, namespace string, identifier int64) ([]catalog.Property, error) {
	return s.catalog.PropertyListByEntity(ctx, tx, namespace, identifier)
}

// AddGenre attaches genre to (namespace, identifier). Genre names are
// lowercased to keep the set semantics case-insensitive.
func (s *Service) AddGenre(ctx context.Context, tx *sql.Tx, namespace string, identifier int64, genre string) error {
	return s.catalog.GenreAdd(ctx, tx, namespace, identifier, strings.ToLower(genre))
}

// RemoveGenre detaches genre from (namespace, identifier).
func (s *Service) RemoveGenre(ctx context.Context, tx *sql.Tx, namespace string, identifier int64, genre string) error {
	return s.catalog.GenreRemove(ctx, tx, namespace, identifier, strings.ToLower(genre))
}

// Genres returns the set of genres attached to (namespace, identifier).
func (s *Service) Genres(ctx context.Context, tx *sql.Tx, namespace string, identifier int64) ([]string, error) {
	return s.catalog.GenreListByEntity(ctx, tx, namespace, identifier)
}
