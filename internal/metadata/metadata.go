// Package metadata implements spec.md §4.11's Metadata Enrichment: a
// registry of named MetadataProvider capabilities, fanned out in
// registration order with a field-by-field first-wins merge, each call
// bounded by a per-provider timeout so one slow provider never blocks the
// others. Grounded on sphildreth-tunez's provider registry pattern,
// generalized from its single-provider dispatch to spec.md's explicit
// multi-provider merge.
package metadata

import (
	"bytes"
	"context"
	"database/sql"
	"strconv"
	"time"

	"go.uber.org/zap"

	"github.com/sonar-music/sonar/internal/capability"
	"github.com/sonar-music/sonar/internal/catalog"
	"github.com/sonar-music/sonar/internal/image"
	"github.com/sonar-music/sonar/internal/property"
	"github.com/sonar-music/sonar/internal/sonarerr"
)

// Service is the Metadata Enrichment service of spec.md §4.11.
type Service struct {
	catalog   *catalog.Store
	image     *image.Service
	property  *property.Service
	providers []capability.MetadataProvider
	timeout   time.Duration
	log       *zap.Logger
}

// New constructs a Service with no registered providers; call Register
// to add them in the order they should be consulted.
func New(catalogStore *catalog.Store, imageSvc *image.Service, propertySvc *property.Service, providerTimeout time.Duration, log *zap.Logger) *Service {
	if log == nil {
		log = zap.NewNop()
	}
	if providerTimeout <= 0 {
		providerTimeout = 10 * time.Second
	}
	return &Service{catalog: catalogStore, image: imageSvc, property: propertySvc, timeout: providerTimeout, log: log}
}

// Register adds a provider, consulted after every provider already
// registered (spec.md §4.11: "fan out to named providers in registration
// order").
func (s *Service) Register(p capability.MetadataProvider) {
	s.providers = append(s.providers, p)
}

// Providers returns the names of every registered provider, in
// registration order.
func (s *Service) Providers() []string {
	names := make([]string, len(s.providers))
	for i, p := range s.providers {
		names[i] = p.Name()
	}
	return names
}

// Fetch fans a metadata request for (kind, itemID) out to providerNames
// (or every registered provider if providerNames is empty), merges their
// patches field-by-field with first-non-empty-wins semantics, and applies
// the merged result to the catalog entity: properties are upserted,
// names and covers are written through Image/catalog update calls.
func (s *Service) Fetch(ctx context.Context, kind capability.EntityKind, itemID int64, item capability.ItemView, fields []string, providerNames []string) (capability.Patch, error) {
	selected := s.selectProviders(kind, providerNames)
	if len(selected) == 0 {
		return capability.Patch{}, sonarerr.NotFound("metadata provider", "")
	}

	merged := capability.Patch{Properties: map[string]string{}, TrackPatches: map[string]capability.Patch{}}
	for _, p := range selected {
		patch, err := s.fetchOne(ctx, p, kind, item, fields)
		if err != nil {
			s.log.Warn("metadata provider failed", zap.String("provider", p.Name()), zap.Error(err))
			continue
		}
		mergePatch(&merged, patch)
	}

	if err := s.apply(ctx, kind, itemID, merged); err != nil {
		return capability.Patch{}, err
	}
	return merged, nil
}

func (s *Service) selectProviders(kind capability.EntityKind, names []string) []capability.MetadataProvider {
	var wanted map[string]bool
	if len(names) > 0 {
		wanted = make(map[string]bool, len(names))
		for _, n := range names {
			wanted[n] = true
		}
	}
	var out []capability.MetadataProvider
	for _, p := range s.providers {
		if wanted != nil && !wanted[p.Name()] {
			continue
		}
		if !p.Supports(kind) {
			continue
		}
		out = append(out, p)
	}
	return out
}

func (s *Service) fetchOne(ctx context.Context, p capability.MetadataProvider, kind capability.EntityKind, item capability.ItemView, fields []string) (capability.Patch, error) {
	ctx, cancel := context.WithTimeout(ctx, s.timeout)
	defer cancel()
	return p.Fetch(ctx, kind, item, fields)
}

// mergePatch folds next into merged, keeping merged's existing value for
// any field next also sets (first provider to answer wins).
func mergePatch(merged *capability.Patch, next capability.Patch) {
	if merged.Name == nil && next.Name != nil {
		merged.Name = next.Name
	}
	if merged.Cover == nil && len(next.Cover) > 0 {
		merged.Cover = next.Cover
	}
	for k, v := range next.Properties {
		if _, exists := merged.Properties[k]; !exists {
			merged.Properties[k] = v
		}
	}
	for trackID, patch := range next.TrackPatches {
		if _, exists := merged.TrackPatches[trackID]; !exists {
			merged.TrackPatches[trackID] = patch
		}
	}
}

func (s *Service) apply(ctx context.Context, kind capability.EntityKind, itemID int64, patch capability.Patch) error {
	namespace := namespaceFor(kind)
	return s.catalog.WithTx(ctx, func(tx *sql.Tx) error {
		if patch.Name != nil {
			if err := s.setName(ctx, tx, kind, itemID, *patch.Name); err != nil {
				return err
			}
		}
		for key, value := range patch.Properties {
			if err := s.property.Set(ctx, tx, namespace, itemID, key, nil, value, true); err != nil {
				return err
			}
		}
		if len(patch.Cover) > 0 {
			img, err := s.image.Create(ctx, tx, bytes.NewReader(patch.Cover))
			if err != nil {
				s.log.Warn("failed to materialize provider cover art", zap.Error(err))
			} else if err := s.setCover(ctx, tx, kind, itemID, img.ID); err != nil {
				return err
			}
		}
		return nil
	})
}

func namespaceFor(kind capability.EntityKind) string {
	switch kind {
	case capability.EntityArtist:
		return "artist"
	case capability.EntityAlbum:
		return "album"
	case capability.EntityTrack:
		return "track"
	case capability.EntityPlaylist:
		return "playlist"
	default:
		return string(kind)
	}
}

func (s *Service) setName(ctx context.Context, tx *sql.Tx, kind capability.EntityKind, itemID int64, name string) error {
	switch kind {
	case capability.EntityArtist:
		_, err := s.catalog.ArtistUpdate(ctx, tx, itemID, catalog.SetValue(name), catalog.Unchanged[*int64]())
		return err
	case capability.EntityAlbum:
		_, err := s.catalog.AlbumUpdate(ctx, tx, itemID, catalog.SetValue(name), catalog.Unchanged[*int64]())
		return err
	case capability.EntityTrack:
		_, err := s.catalog.TrackUpdate(ctx, tx, itemID, catalog.SetValue(name), catalog.Unchanged[*int64]())
		return err
	default:
		return nil
	}
}

func (s *Service) setCover(ctx context.Context, tx *sql.Tx, kind capability.EntityKind, itemID, imageID int64) error {
	switch kind {
	case capability.EntityArtist:
		_, err := s.catalog.ArtistUpdate(ctx, tx, itemID, catalog.Unchanged[string](), catalog.SetValue(&imageID))
		return err
	case capability.EntityAlbum:
		_, err := s.catalog.AlbumUpdate(ctx, tx, itemID, catalog.Unchanged[string](), catalog.SetValue(&imageID))
		return err
	case capability.EntityTrack:
		_, err := s.catalog.TrackUpdate(ctx, tx, itemID, catalog.Unchanged[string](), catalog.SetValue(&imageID))
		return err
	default:
		return nil
	}
}

// AlbumTracks implements MetadataAlbumTracks: per-track metadata keyed by
// track id, not yet written to the catalog (spec.md §4.11 — callers
// decide whether to apply each track's patch).
func (s *Service) AlbumTracks(ctx context.Context, albumID int64, item capability.ItemView, fields []string, providerNames []string) (map[int64]capability.Patch, error) {
	patch, err := s.Fetch(ctx, capability.EntityAlbum, albumID, item, fields, providerNames)
	if err != nil {
		return nil, err
	}
	out := make(map[int64]capability.Patch, len(patch.TrackPatches))
	for k, v := range patch.TrackPatches {
		trackID, parseErr := strconv.ParseInt(k, 10, 64)
		if parseErr != nil {
			continue
		}
		out[trackID] = v
	}
	return out, nil
}
