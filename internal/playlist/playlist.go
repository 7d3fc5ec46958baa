// Package playlist implements spec.md §4.8's Playlist Engine: owner-scoped
// ordered track sets with insert/remove/clear/duplicate. Mutation
// primitives already live in internal/catalog (PlaylistTrackAppend's
// idempotent insert, PlaylistDuplicate's order-preserving copy); this
// package adds the owner-authorization check every mutating operation
// needs and a read-through cache for track-list reads, mirroring
// cache/playlist_cache.go's get-or-populate shape.
package playlist

import (
	"context"
	"database/sql"
	"encoding/json"
	"strconv"
	"strings"

	"go.uber.org/zap"

	"github.com/sonar-music/sonar/internal/catalog"
	"github.com/sonar-music/sonar/internal/sonarerr"
)

// Service is the Playlist Engine of spec.md §4.8.
type Service struct {
	catalog *catalog.Store
	cache   Cache
	log     *zap.Logger
}

// Cache is the narrow read-through cache interface this package needs;
// internal/cache.Redis satisfies it. A nil Cache disables caching.
type Cache interface {
	Get(ctx context.Context, key string) (string, bool, error)
	Set(ctx context.Context, key, value string) error
	Del(ctx context.Context, keys ...string) error
}

// New constructs a Service over an already-open catalog Store and an
// optional Cache.
func New(catalogStore *catalog.Store, cache Cache, log *zap.Logger) *Service {
	if log == nil {
		log = zap.NewNop()
	}
	return &Service{catalog: catalogStore, cache: cache, log: log}
}

// requireOwner fails with PermissionDenied unless userID owns playlistID.
func (s *Service) requireOwner(ctx context.Context, tx *sql.Tx, playlistID, userID int64) (catalog.Playlist, error) {
	p, err := s.catalog.PlaylistGet(ctx, tx, playlistID)
	if err != nil {
		return catalog.Playlist{}, err
	}
	if p.OwnerID != userID {
		return catalog.Playlist{}, sonarerr.PermissionDenied("modify playlist")
	}
	return p, nil
}

// Create makes a new playlist owned by userID.
func (s *Service) Create(ctx context.Context, tx *sql.Tx, userID int64, name string) (catalog.Playlist, error) {
	if strings.TrimSpace(name) == "" {
		return catalog.Playlist{}, sonarerr.InvalidArgument("name", "must not be empty")
	}
	return s.catalog.PlaylistCreate(ctx, tx, userID, name)
}

// Get retrieves a playlist by id.
func (s *Service) Get(ctx context.Context, tx *sql.Tx, playlistID int64) (catalog.Playlist, error) {
	return s.catalog.PlaylistGet(ctx, tx, playlistID)
}

// Update applies tri-state patches; only the owner may update.
func (s *Service) Update(ctx context.Context, tx *sql.Tx, userID, playlistID int64, name catalog.Update[string], coverImageID catalog.Update[*int64]) (catalog.Playlist, error) {
	if _, err := s.requireOwner(ctx, tx, playlistID, userID); err != nil {
		return catalog.Playlist{}, err
	}
	return s.catalog.PlaylistUpdate(ctx, tx, playlistID, name, coverImageID)
}

// Delete removes a playlist; only the owner may delete.
func (s *Service) Delete(ctx context.Context, tx *sql.Tx, userID, playlistID int64) error {
	if _, err := s.requireOwner(ctx, tx, playlistID, userID); err != nil {
		return err
	}
	if err := s.catalog.PlaylistDelete(ctx, tx, playlistID); err != nil {
		return err
	}
	s.invalidate(ctx, playlistID)
	return nil
}

// Duplicate copies source's track list into a new playlist owned by
// userID under newName. Any user may duplicate any playlist they can see
// (spec.md §4.8 does not restrict duplicate to the source's owner, only
// mutation of the source).
func (s *Service) Duplicate(ctx context.Context, tx *sql.Tx, userID, sourceID int64, newName string) (catalog.Playlist, error) {
	return s.catalog.PlaylistDuplicate(ctx, tx, sourceID, userID, newName)
}

func (s *Service) trackListCacheKey(playlistID int64) string {
	return "playlist:tracks:" + strconv.FormatInt(playlistID, 10)
}

func (s *Service) invalidate(ctx context.Context, playlistID int64) {
	if s.cache == nil {
		return
	}
	if err := s.cache.Del(ctx, s.trackListCacheKey(playlistID)); err != nil {
		s.log.Warn("failed to invalidate playlist track cache", zap.Error(err), zap.Int64("playlist_id", playlistID))
	}
}

// TrackList returns a playlist's tracks in insertion order, paginated.
// Unpaginated, standalone reads (params.Offset == 0, params.Count == nil,
// tx == nil) are the ones cached; paginated or in-transaction reads go
// straight to the catalog, uncached.
func (s *Service) TrackList(ctx context.Context, tx *sql.Tx, playlistID int64, params catalog.ListParams) ([]catalog.PlaylistTrack, error) {
	cacheable := s.cache != nil && tx == nil && params.Offset == 0 && params.Count == nil
	key := s.trackListCacheKey(playlistID)
	if cacheable {
		if raw, ok, err := s.cache.Get(ctx, key); err != nil {
			s.log.Warn("playlist track cache get failed", zap.Error(err), zap.Int64("playlist_id", playlistID))
		} else if ok {
			var tracks []catalog.PlaylistTrack
			if err := json.Unmarshal([]byte(raw), &tracks); err == nil {
				return tracks, nil
			}
			s.log.Warn("playlist track cache decode failed", zap.Int64("playlist_id", playlistID))
		}
	}

	tracks, err := s.catalog.PlaylistTrackList(ctx, tx, playlistID, params)
	if err != nil {
		return nil, err
	}

	if cacheable {
		raw, err := json.Marshal(tracks)
		if err != nil {
			s.log.Warn("playlist track cache encode failed", zap.Error(err), zap.Int64("playlist_id", playlistID))
		} else if err := s.cache.Set(ctx, key, string(raw)); err != nil {
			s.log.Warn("playlist track cache set failed", zap.Error(err), zap.Int64("playlist_id", playlistID))
		}
	}
	return tracks, nil
}

// TrackInsert appends trackIDs to playlistID in order, skipping ids
// already present (spec.md §4.8: "removing/inserting a missing/present
// track is a no-op" idempotence rule). Only the owner may insert.
func (s *Service) TrackInsert(ctx context.Context, tx *sql.Tx, userID, playlistID int64, trackIDs []int64) error {
	if _, err := s.requireOwner(ctx, tx, playlistID, userID); err != nil {
		return err
	}
	for _, trackID := range trackIDs {
		if _, err := s.catalog.PlaylistTrackAppend(ctx, tx, playlistID, trackID); err != nil {
			return err
		}
	}
	s.invalidate(ctx, playlistID)
	return nil
}

// TrackRemove removes trackIDs from playlistID; removing an absent track
// is a no-op. Only the owner may remove.
func (s *Service) TrackRemove(ctx context.Context, tx *sql.Tx, userID, playlistID int64, trackIDs []int64) error {
	if _, err := s.requireOwner(ctx, tx, playlistID, userID); err != nil {
		return err
	}
	for _, trackID := range trackIDs {
		if err := s.catalog.PlaylistTrackRemove(ctx, tx, playlistID, trackID); err != nil {
			return err
		}
	}
	s.invalidate(ctx, playlistID)
	return nil
}

// TrackClear empties a playlist. Only the owner may clear.
func (s *Service) TrackClear(ctx context.Context, tx *sql.Tx, userID, playlistID int64) error {
	if _, err := s.requireOwner(ctx, tx, playlistID, userID); err != nil {
		return err
	}
	if err := s.catalog.PlaylistTrackClear(ctx, tx, playlistID); err != nil {
		return err
	}
	s.invalidate(ctx, playlistID)
	return nil
}
