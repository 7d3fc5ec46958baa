// Package social implements spec.md §4.9: favorites, pins, scrobbles, and
// subscriptions. Favorites/pins are thin idempotent wrappers over
// internal/catalog's tables; scrobbling additionally increments the
// denormalized track/album/artist listen counters in the same
// transaction the scrobble row is inserted in, and subscriptions are
// served by a single background dispatch loop modeled on
// core/netease's polling goroutines, generalized to a generic
// Scrobbler/MetadataProvider-driven check instead of a hardcoded
// provider.
package social

import (
	"context"
	"database/sql"
	"math"
	"time"

	"go.uber.org/zap"

	"github.com/sonar-music/sonar/internal/capability"
	"github.com/sonar-music/sonar/internal/catalog"
	"github.com/sonar-music/sonar/internal/id"
)

// Service is the Favorites/Pins/Scrobbles/Subscriptions service of
// spec.md §4.9.
type Service struct {
	catalog *catalog.Store
	log     *zap.Logger
}

// New constructs a Service over an already-open catalog Store.
func New(catalogStore *catalog.Store, log *zap.Logger) *Service {
	if log == nil {
		log = zap.NewNop()
	}
	return &Service{catalog: catalogStore, log: log}
}

// FavoriteAdd marks namespace/identifier as a favorite of userID.
func (s *Service) FavoriteAdd(ctx context.Context, tx *sql.Tx, userID int64, namespace string, identifier int64) error {
	return s.catalog.FavoriteSet(ctx, tx, userID, namespace, identifier)
}

// FavoriteRemove removes a favorite.
func (s *Service) FavoriteRemove(ctx context.Context, tx *sql.Tx, userID int64, namespace string, identifier int64) error {
	return s.catalog.FavoriteUnset(ctx, tx, userID, namespace, identifier)
}

// FavoriteList returns a user's favorites, most recent first.
func (s *Service) FavoriteList(ctx context.Context, tx *sql.Tx, userID int64, params catalog.ListParams) ([]catalog.Favorite, error) {
	return s.catalog.FavoriteListByUser(ctx, tx, userID, params)
}

// PinAdd pins namespace/identifier for userID.
func (s *Service) PinAdd(ctx context.Context, tx *sql.Tx, userID int64, namespace string, identifier int64) error {
	return s.catalog.PinSet(ctx, tx, userID, namespace, identifier)
}

// PinRemove unpins namespace/identifier for userID.
func (s *Service) PinRemove(ctx context.Context, tx *sql.Tx, userID int64, namespace string, identifier int64) error {
	return s.catalog.PinUnset(ctx, tx, userID, namespace, identifier)
}

// PinList returns a user's pins, most recently pinned first.
func (s *Service) PinList(ctx context.Context, tx *sql.Tx, userID int64, params catalog.ListParams) ([]catalog.Pin, error) {
	return s.catalog.PinListByUser(ctx, tx, userID, params)
}

// ScrobbleSubmit records a listen and bumps the track's, its album's, and
// its album's artist's denormalized listen_count in the same
// transaction, per spec.md §4.9's "a scrobble updates listen counts along
// the track/album/artist chain" rule.
func (s *Service) ScrobbleSubmit(ctx context.Context, tx *sql.Tx, userID, trackID int64, listenAt time.Time, listenDurationMs int64, device string) (catalog.Scrobble, error) {
	if tx == nil {
		var sc catalog.Scrobble
		err := s.catalog.WithTx(ctx, func(tx *sql.Tx) error {
			var err error
			sc, err = s.ScrobbleSubmit(ctx, tx, userID, trackID, listenAt, listenDurationMs, device)
			return err
		})
		return sc, err
	}
	sc, err := s.catalog.ScrobbleCreate(ctx, tx, userID, trackID, listenAt, listenDurationMs, device)
	if err != nil {
		return catalog.Scrobble{}, err
	}
	if err := s.bumpListenCounts(ctx, tx, trackID, 1); err != nil {
		return catalog.Scrobble{}, err
	}
	return sc, nil
}

// ScrobbleDelete removes a scrobble and reverses its listen count
// contribution.
func (s *Service) ScrobbleDelete(ctx context.Context, tx *sql.Tx, scrobbleID int64) error {
	sc, err := s.catalog.ScrobbleGet(ctx, tx, scrobbleID)
	if err != nil {
		return err
	}
	if err := s.catalog.ScrobbleDelete(ctx, tx, sc.ID); err != nil {
		return err
	}
	return s.bumpListenCounts(ctx, tx, sc.TrackID, -1)
}

func (s *Service) bumpListenCounts(ctx context.Context, tx *sql.Tx, trackID, delta int64) error {
	track, err := s.catalog.TrackGet(ctx, tx, trackID)
	if err != nil {
		return err
	}
	if err := s.catalog.TrackIncrementListenCount(ctx, tx, trackID, delta); err != nil {
		return err
	}
	album, err := s.catalog.AlbumGet(ctx, tx, track.AlbumID)
	if err != nil {
		return err
	}
	if err := s.catalog.AlbumIncrementListenCount(ctx, tx, track.AlbumID, delta); err != nil {
		return err
	}
	return s.catalog.ArtistIncrementListenCount(ctx, tx, album.ArtistID, delta)
}

// ScrobbleList returns a user's scrobbles, most recent first.
func (s *Service) ScrobbleList(ctx context.Context, tx *sql.Tx, userID int64, params catalog.ListParams) ([]catalog.Scrobble, error) {
	return s.catalog.ScrobbleListByUser(ctx, tx, userID, params)
}

// SubscriptionAdd registers a subscription for userID. It does not check
// that any of artistID/albumID/trackID/playlistID/externalID is non-nil;
// the RPC handler rejects a request with none of them set before calling.
func (s *Service) SubscriptionAdd(ctx context.Context, tx *sql.Tx, userID int64, mediaType catalog.MediaType, artistID, albumID, trackID, playlistID *int64, externalID *string, interval time.Duration, description string) (catalog.Subscription, error) {
	return s.catalog.SubscriptionCreate(ctx, tx, userID, mediaType, artistID, albumID, trackID, playlistID, externalID, int64(interval.Seconds()), description)
}

// SubscriptionRemove cancels a subscription.
func (s *Service) SubscriptionRemove(ctx context.Context, tx *sql.Tx, subscriptionID int64) error {
	return s.catalog.SubscriptionDelete(ctx, tx, subscriptionID)
}

// SubscriptionList returns a user's subscriptions.
func (s *Service) SubscriptionList(ctx context.Context, tx *sql.Tx, userID int64, params catalog.ListParams) ([]catalog.Subscription, error) {
	return s.catalog.SubscriptionListByUser(ctx, tx, userID, params)
}

// Checker inspects a single due Subscription. A failed check (err != nil)
// makes the dispatcher set a backoff; a nil error marks the subscription
// polled. Callers register one Checker per MediaType/provider combination
// they support.
type Checker interface {
	Check(ctx context.Context, sub catalog.Subscription) error
}

// Dispatcher is the subscription polling loop of spec.md §4.9: a single
// background goroutine wakes on a fixed tick, fetches due subscriptions,
// and checks each one serially, setting a backoff on failure (see
// nextBackoff; capped at the subscription's own interval).
type Dispatcher struct {
	catalog *catalog.Store
	checker Checker
	log     *zap.Logger

	tick      time.Duration
	batchSize int

	stop chan struct{}
	done chan struct{}
}

// NewDispatcher constructs a Dispatcher polling every tick for up to
// batchSize due subscriptions at a time.
func NewDispatcher(catalogStore *catalog.Store, checker Checker, tick time.Duration, batchSize int, log *zap.Logger) *Dispatcher {
	if log == nil {
		log = zap.NewNop()
	}
	if batchSize <= 0 {
		batchSize = 50
	}
	return &Dispatcher{
		catalog:   catalogStore,
		checker:   checker,
		log:       log,
		tick:      tick,
		batchSize: batchSize,
		stop:      make(chan struct{}),
		done:      make(chan struct{}),
	}
}

// Run blocks, polling on Dispatcher's tick interval, until ctx is
// canceled or Stop is called. Intended to be launched in its own
// goroutine by the engine facade at startup.
func (d *Dispatcher) Run(ctx context.Context) {
	defer close(d.done)
	ticker := time.NewTicker(d.tick)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-d.stop:
			return
		case <-ticker.C:
			d.pollOnce(ctx)
		}
	}
}

// Stop signals Run to return and blocks until it has.
func (d *Dispatcher) Stop() {
	close(d.stop)
	<-d.done
}

func (d *Dispatcher) pollOnce(ctx context.Context) {
	var due []catalog.Subscription
	err := d.catalog.WithTx(ctx, func(tx *sql.Tx) error {
		var err error
		due, err = d.catalog.SubscriptionDue(ctx, tx, time.Now(), d.batchSize)
		return err
	})
	if err != nil {
		d.log.Warn("failed to list due subscriptions", zap.Error(err))
		return
	}
	for _, sub := range due {
		d.checkOne(ctx, sub)
	}
}

func (d *Dispatcher) checkOne(ctx context.Context, sub catalog.Subscription) {
	now := time.Now()
	if err := d.checker.Check(ctx, sub); err != nil {
		d.log.Warn("subscription check failed", zap.Int64("subscription_id", sub.ID), zap.Error(err))
		backoff := nextBackoff(sub, now)
		if updateErr := d.catalog.WithTx(ctx, func(tx *sql.Tx) error {
			return d.catalog.SubscriptionBackoff(ctx, tx, sub.ID, backoff)
		}); updateErr != nil {
			d.log.Warn("failed to record subscription backoff", zap.Int64("subscription_id", sub.ID), zap.Error(updateErr))
		}
		return
	}
	if err := d.catalog.WithTx(ctx, func(tx *sql.Tx) error {
		return d.catalog.SubscriptionMarkPolled(ctx, tx, sub.ID, now)
	}); err != nil {
		d.log.Warn("failed to mark subscription polled", zap.Int64("subscription_id", sub.ID), zap.Error(err))
	}
}

// nextBackoff returns now plus twice the time that has passed since the
// subscription's previous backoff expired (one minute when there is no
// expired backoff), capped at the subscription's own interval. The delay
// depends only on that one gap, so it does not keep doubling across
// consecutive failures.
func nextBackoff(sub catalog.Subscription, now time.Time) time.Time {
	base := time.Minute
	if sub.BackoffUntil != nil {
		if since := now.Sub(*sub.BackoffUntil); since > 0 {
			base = since
		}
	}
	delay := time.Duration(math.Min(
		float64(base*2),
		float64(time.Duration(sub.IntervalSeconds)*time.Second),
	))
	return now.Add(delay)
}

// ScrobbleDispatcher forwards scrobbles to every registered external
// Scrobbler (Last.fm, ListenBrainz, ...), polling
// catalog.ScrobblePendingSubmissions per scrobbler on a fixed tick so a
// scrobbler outage never blocks ScrobbleSubmit's own transaction.
type ScrobbleDispatcher struct {
	catalog    *catalog.Store
	scrobblers []capability.Scrobbler
	log        *zap.Logger

	tick      time.Duration
	batchSize int

	stop chan struct{}
	done chan struct{}
}

// NewScrobbleDispatcher constructs a ScrobbleDispatcher submitting up to
// batchSize pending scrobbles per scrobbler on every tick.
func NewScrobbleDispatcher(catalogStore *catalog.Store, scrobblers []capability.Scrobbler, tick time.Duration, batchSize int, log *zap.Logger) *ScrobbleDispatcher {
	if log == nil {
		log = zap.NewNop()
	}
	if batchSize <= 0 {
		batchSize = 50
	}
	return &ScrobbleDispatcher{
		catalog:    catalogStore,
		scrobblers: scrobblers,
		log:        log,
		tick:       tick,
		batchSize:  batchSize,
		stop:       make(chan struct{}),
		done:       make(chan struct{}),
	}
}

// Run blocks, submitting pending scrobbles on every tick, until ctx is
// canceled or Stop is called.
func (d *ScrobbleDispatcher) Run(ctx context.Context) {
	defer close(d.done)
	ticker := time.NewTicker(d.tick)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-d.stop:
			return
		case <-ticker.C:
			d.pollOnce(ctx)
		}
	}
}

// Stop signals Run to return and blocks until it has.
func (d *ScrobbleDispatcher) Stop() {
	close(d.stop)
	<-d.done
}

func (d *ScrobbleDispatcher) pollOnce(ctx context.Context) {
	for _, scrobbler := range d.scrobblers {
		pending, err := d.catalog.ScrobblePendingSubmissions(ctx, nil, scrobbler.Name(), d.batchSize)
		if err != nil {
			d.log.Warn("failed to list pending scrobble submissions", zap.String("scrobbler", scrobbler.Name()), zap.Error(err))
			continue
		}
		for _, sc := range pending {
			d.submitOne(ctx, scrobbler, sc)
		}
	}
}

func (d *ScrobbleDispatcher) submitOne(ctx context.Context, scrobbler capability.Scrobbler, sc catalog.Scrobble) {
	view, err := d.scrobbleView(ctx, sc)
	if err != nil {
		d.log.Warn("failed to build scrobble view", zap.Int64("scrobble_id", sc.ID), zap.Error(err))
		return
	}
	result, err := scrobbler.Submit(ctx, view)
	if err != nil {
		d.log.Warn("scrobbler submit errored", zap.String("scrobbler", scrobbler.Name()), zap.Int64("scrobble_id", sc.ID), zap.Error(err))
		return
	}
	switch result {
	case capability.SubmitRetryable:
		return
	case capability.SubmitOK, capability.SubmitFatal:
		if _, err := d.catalog.ScrobbleSubmissionRecord(ctx, nil, sc.ID, scrobbler.Name()); err != nil {
			d.log.Warn("failed to record scrobble submission", zap.Int64("scrobble_id", sc.ID), zap.Error(err))
		}
	}
}

func (d *ScrobbleDispatcher) scrobbleView(ctx context.Context, sc catalog.Scrobble) (capability.ScrobbleView, error) {
	track, err := d.catalog.TrackGet(ctx, nil, sc.TrackID)
	if err != nil {
		return capability.ScrobbleView{}, err
	}
	album, err := d.catalog.AlbumGet(ctx, nil, track.AlbumID)
	if err != nil {
		return capability.ScrobbleView{}, err
	}
	artist, err := d.catalog.ArtistGet(ctx, nil, album.ArtistID)
	if err != nil {
		return capability.ScrobbleView{}, err
	}
	return capability.ScrobbleView{
		TrackName:   track.Name,
		ArtistName:  artist.Name,
		AlbumName:   album.Name,
		ListenAt:    sc.ListenAt.Unix(),
		DurationSec: sc.ListenDurationMs / 1000,
	}, nil
}

// MetadataProviderChecker adapts a capability.MetadataProvider into a
// Checker for artist/album media-type subscriptions. The fetched patch is
// discarded; this adapter only reports failure for backoff purposes.
type MetadataProviderChecker struct {
	Provider capability.MetadataProvider
}

// Check fetches the subscribed entity's metadata to confirm the provider
// is still reachable; a transport or provider error drives backoff.
func (c *MetadataProviderChecker) Check(ctx context.Context, sub catalog.Subscription) error {
	var kind capability.EntityKind
	var ns id.Namespace
	var key int64
	switch {
	case sub.ArtistID != nil:
		kind, ns, key = capability.EntityArtist, id.NamespaceArtist, *sub.ArtistID
	case sub.AlbumID != nil:
		kind, ns, key = capability.EntityAlbum, id.NamespaceAlbum, *sub.AlbumID
	default:
		return nil
	}
	if !c.Provider.Supports(kind) {
		return nil
	}
	_, err := c.Provider.Fetch(ctx, kind, capability.ItemView{ID: id.New(ns, key).String()}, nil)
	return err
}
