// Package engine wires every collaborator package into the single Go API
// spec.md §1 calls "the core": the RPC surface, OpenSubsonic adapter, and
// CLI each hold no catalog or blob state of their own and call only into
// an Engine. The wiring mirrors the way Zzhihon-Bt1QFM's cmd/root.go
// builds its dependency graph before handing it to cobra commands, but
// collects the graph into one struct instead of a handful of package
// globals.
package engine

import (
	"context"
	"crypto/rand"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"go.uber.org/zap"

	"github.com/sonar-music/sonar/internal/audio"
	"github.com/sonar-music/sonar/internal/auth"
	"github.com/sonar-music/sonar/internal/blob"
	"github.com/sonar-music/sonar/internal/cache"
	"github.com/sonar-music/sonar/internal/capability"
	"github.com/sonar-music/sonar/internal/catalog"
	"github.com/sonar-music/sonar/internal/config"
	"github.com/sonar-music/sonar/internal/image"
	"github.com/sonar-music/sonar/internal/importer"
	"github.com/sonar-music/sonar/internal/lyrics"
	"github.com/sonar-music/sonar/internal/metadata"
	"github.com/sonar-music/sonar/internal/playlist"
	"github.com/sonar-music/sonar/internal/property"
	"github.com/sonar-music/sonar/internal/search"
	"github.com/sonar-music/sonar/internal/social"
)

// Engine is the fully wired library engine: one Catalog store plus one
// Service per component named in spec.md §4, shared by every external
// collaborator the process starts.
type Engine struct {
	Config *config.Config
	Log    *zap.Logger

	Catalog *catalog.Store
	Blob    *blob.Store

	Auth     *auth.Service
	Image    *image.Service
	Property *property.Service
	Audio    *audio.Service
	Lyrics   *lyrics.Service
	Playlist *playlist.Service
	Social   *social.Service
	Importer *importer.Service
	Metadata *metadata.Service
	Search   *search.Service

	dispatcher         *social.Dispatcher
	scrobbleDispatcher *social.ScrobbleDispatcher
	credentialsWatcher interface{ Close() error }
}

// Options carries the pluggable capabilities a New caller supplies.
// Providers, Scrobblers and SubscriptionChecker may be left empty, which
// leaves the matching feature off. TagExtractor and AudioExtractor are
// called without a nil check by the importer and the audio service, so
// imports and audio uploads need both to be set.
type Options struct {
	TagExtractor   capability.TagExtractor
	AudioExtractor capability.AudioExtractor
	Providers      []capability.MetadataProvider
	Scrobblers     []capability.Scrobbler

	// SubscriptionChecker answers due-subscription polls for the
	// background dispatcher; a nil checker disables the dispatcher
	// entirely rather than panicking, since not every deployment
	// registers a MetadataProvider capable of driving one.
	SubscriptionChecker social.Checker
}

// New opens the catalog and blob stores, constructs every component
// service, and returns a ready-to-use Engine. It does not start any
// background goroutines; call Run for that.
func New(ctx context.Context, cfg *config.Config, log *zap.Logger, opts Options) (*Engine, error) {
	if log == nil {
		log = zap.NewNop()
	}
	if err := os.MkdirAll(cfg.DataDir, 0o755); err != nil {
		return nil, fmt.Errorf("failed to create data directory: %w", err)
	}

	var cacheImpl catalog.Cache
	if cfg.RedisAddr != "" {
		redisCache, err := cache.New(ctx, cache.Options{
			Addr:     cfg.RedisAddr,
			Password: cfg.RedisPassword,
			DB:       cfg.RedisDB,
			TTL:      5 * time.Minute,
		}, log)
		if err != nil {
			return nil, fmt.Errorf("failed to connect to redis cache: %w", err)
		}
		cacheImpl = redisCache
	}

	catalogStore, err := catalog.Open(ctx, cfg.DBPath(), cfg.DBMaxConns, cacheImpl, log)
	if err != nil {
		return nil, err
	}

	blobStore, err := blob.New(cfg.BlobDir(), log)
	if err != nil {
		catalogStore.Close()
		return nil, err
	}

	signingKey, err := loadOrCreateSessionKey(cfg.SessionKeyPath())
	if err != nil {
		catalogStore.Close()
		return nil, err
	}

	imageSvc := image.New(blobStore, catalogStore)
	propertySvc := property.New(catalogStore)
	audioSvc := audio.New(blobStore, catalogStore, opts.AudioExtractor)

	e := &Engine{
		Config:   cfg,
		Log:      log,
		Catalog:  catalogStore,
		Blob:     blobStore,
		Auth:     auth.New(catalogStore, signingKey, log),
		Image:    imageSvc,
		Property: propertySvc,
		Audio:    audioSvc,
		Lyrics:   lyrics.New(catalogStore),
		Playlist: playlist.New(catalogStore, asPlaylistCache(cacheImpl), log),
		Social:   social.New(catalogStore, log),
		Importer: importer.New(blobStore, catalogStore, audioSvc, imageSvc, propertySvc, opts.TagExtractor, cfg.FFProbePath, log),
		Metadata: metadata.New(catalogStore, imageSvc, propertySvc, cfg.ProviderTimeout, log),
		Search:   search.New(catalogStore),
	}

	for _, p := range opts.Providers {
		e.Metadata.Register(p)
	}

	if opts.SubscriptionChecker != nil {
		e.dispatcher = social.NewDispatcher(catalogStore, opts.SubscriptionChecker, cfg.SubscriptionInterval, 50, log)
	}
	if len(opts.Scrobblers) > 0 {
		e.scrobbleDispatcher = social.NewScrobbleDispatcher(catalogStore, opts.Scrobblers, cfg.SubscriptionInterval, 50, log)
	}

	if err := e.bootstrapAdmin(ctx, cfg); err != nil {
		catalogStore.Close()
		return nil, err
	}

	return e, nil
}

// asPlaylistCache adapts catalog.Cache to playlist.Cache; both are the
// same narrow Get/Set/Del shape but kept as distinct named interfaces per
// package so neither package imports the other for it.
func asPlaylistCache(c catalog.Cache) playlist.Cache {
	if c == nil {
		return nil
	}
	return playlistCacheAdapter{c}
}

type playlistCacheAdapter struct{ catalog.Cache }

// bootstrapAdmin creates the configured default admin account on first
// boot only, matching spec.md §6's "created once, at first boot, if no
// users exist" rule.
func (e *Engine) bootstrapAdmin(ctx context.Context, cfg *config.Config) error {
	if cfg.DefaultAdminUsername == "" || cfg.DefaultAdminPassword == "" {
		return nil
	}
	count, err := e.Catalog.UserCount(ctx, nil)
	if err != nil {
		return err
	}
	if count > 0 {
		return nil
	}
	_, err = e.Auth.CreateUser(ctx, cfg.DefaultAdminUsername, cfg.DefaultAdminPassword, true)
	return err
}

// Run starts every background goroutine the Engine owns (the
// subscription dispatcher, the scrobble dispatcher, and the provider
// credentials file watcher) and blocks until ctx is canceled.
func (e *Engine) Run(ctx context.Context) {
	if closer, err := e.Config.WatchProviderCredentialsFile(e.onCredentialsReload, e.Log); err != nil {
		e.Log.Warn("failed to start provider credentials watcher", zap.Error(err))
	} else {
		e.credentialsWatcher = closer
	}

	if e.dispatcher != nil {
		go e.dispatcher.Run(ctx)
	}
	if e.scrobbleDispatcher != nil {
		go e.scrobbleDispatcher.Run(ctx)
	}

	<-ctx.Done()
	e.Close()
}

// onCredentialsReload logs a rotated provider credential set. Providers
// registered with internal/metadata read credentials at construction
// time and are not rebuilt here, since only the process that built each
// capability.MetadataProvider knows how to rebuild it from fresh
// credentials; a running provider keeps the credentials it was built with.
func (e *Engine) onCredentialsReload(creds map[string]string) {
	e.Log.Info("provider credentials file reloaded", zap.Int("keys", len(creds)))
}

// Close stops background goroutines and closes the catalog store; the
// Redis cache client, when configured, is not closed. Run calls Close
// itself once its ctx is canceled, so a caller that used Run does not call
// it again. With no dispatcher configured, Close may also be called
// directly on an Engine whose Run was never called.
func (e *Engine) Close() {
	if e.dispatcher != nil {
		e.dispatcher.Stop()
	}
	if e.scrobbleDispatcher != nil {
		e.scrobbleDispatcher.Stop()
	}
	if e.credentialsWatcher != nil {
		_ = e.credentialsWatcher.Close()
	}
	_ = e.Catalog.Close()
}

func loadOrCreateSessionKey(path string) ([]byte, error) {
	if data, err := os.ReadFile(path); err == nil {
		return data, nil
	}
	if err := os.MkdirAll(filepath.Dir(path), 0o700); err != nil {
		return nil, fmt.Errorf("failed to create secrets directory: %w", err)
	}
	key := make([]byte, 32)
	if _, err := rand.Read(key); err != nil {
		return nil, fmt.Errorf("failed to generate session signing key: %w", err)
	}
	if err := os.WriteFile(path, key, 0o600); err != nil {
		return nil, fmt.Errorf("failed to persist session signing key: %w", err)
	}
	return key, nil
}
