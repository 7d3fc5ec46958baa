package social

import (
	"context"
	"database/sql"
	"path/filepath"
	"testing"
	"time"

	"github.com/sonar-music/sonar/internal/capability"
	"github.com/sonar-music/sonar/internal/catalog"
)

func newTestStore(t *testing.T) *catalog.Store {
	t.Helper()
	ctx := context.Background()
	dbPath := filepath.Join(t.TempDir(), "test.db")
	store, err := catalog.Open(ctx, dbPath, 4, nil, nil)
	if err != nil {
		t.Fatalf("Open: %v", err)
	}
	t.Cleanup(func() { store.Close() })
	return store
}

type fixture struct {
	user   catalog.User
	artist catalog.Artist
	album  catalog.Album
	track  catalog.Track
}

func newFixture(t *testing.T, store *catalog.Store) fixture {
	t.Helper()
	ctx := context.Background()
	user, err := store.UserCreate(ctx, nil, "listener", "hash", false)
	if err != nil {
		t.Fatalf("UserCreate: %v", err)
	}
	artist, err := store.ArtistCreate(ctx, nil, "Artist")
	if err != nil {
		t.Fatalf("ArtistCreate: %v", err)
	}
	album, err := store.AlbumCreate(ctx, nil, artist.ID, "Album")
	if err != nil {
		t.Fatalf("AlbumCreate: %v", err)
	}
	track, err := store.TrackCreate(ctx, nil, album.ID, "Track")
	if err != nil {
		t.Fatalf("TrackCreate: %v", err)
	}
	return fixture{user: user, artist: artist, album: album, track: track}
}

func TestFavoriteAddIsIdempotent(t *testing.T) {
	ctx := context.Background()
	store := newTestStore(t)
	svc := New(store, nil)
	fx := newFixture(t, store)

	if err := svc.FavoriteAdd(ctx, nil, fx.user.ID, "track", fx.track.ID); err != nil {
		t.Fatalf("FavoriteAdd #1: %v", err)
	}
	if err := svc.FavoriteAdd(ctx, nil, fx.user.ID, "track", fx.track.ID); err != nil {
		t.Fatalf("FavoriteAdd #2: %v", err)
	}

	favorites, err := svc.FavoriteList(ctx, nil, fx.user.ID, catalog.ListParams{})
	if err != nil {
		t.Fatalf("FavoriteList: %v", err)
	}
	if len(favorites) != 1 {
		t.Fatalf("expected 1 favorite, got %d", len(favorites))
	}
}

func TestPinRemoveIsNoOpWhenAbsent(t *testing.T) {
	ctx := context.Background()
	store := newTestStore(t)
	svc := New(store, nil)
	fx := newFixture(t, store)

	if err := svc.PinRemove(ctx, nil, fx.user.ID, "track", fx.track.ID); err != nil {
		t.Fatalf("expected no-op unpin to succeed, got: %v", err)
	}
}

func TestScrobbleSubmitBumpsListenCountsAlongChain(t *testing.T) {
	ctx := context.Background()
	store := newTestStore(t)
	svc := New(store, nil)
	fx := newFixture(t, store)

	if _, err := svc.ScrobbleSubmit(ctx, nil, fx.user.ID, fx.track.ID, time.Now(), 180_000, "test"); err != nil {
		t.Fatalf("ScrobbleSubmit: %v", err)
	}

	track, err := store.TrackGet(ctx, nil, fx.track.ID)
	if err != nil {
		t.Fatalf("TrackGet: %v", err)
	}
	if track.ListenCount != 1 {
		t.Fatalf("track listen count = %d, want 1", track.ListenCount)
	}
	album, err := store.AlbumGet(ctx, nil, fx.album.ID)
	if err != nil {
		t.Fatalf("AlbumGet: %v", err)
	}
	if album.ListenCount != 1 {
		t.Fatalf("album listen count = %d, want 1", album.ListenCount)
	}
	artist, err := store.ArtistGet(ctx, nil, fx.artist.ID)
	if err != nil {
		t.Fatalf("ArtistGet: %v", err)
	}
	if artist.ListenCount != 1 {
		t.Fatalf("artist listen count = %d, want 1", artist.ListenCount)
	}
}

func TestScrobbleDeleteReversesListenCounts(t *testing.T) {
	ctx := context.Background()
	store := newTestStore(t)
	svc := New(store, nil)
	fx := newFixture(t, store)

	sc, err := svc.ScrobbleSubmit(ctx, nil, fx.user.ID, fx.track.ID, time.Now(), 180_000, "test")
	if err != nil {
		t.Fatalf("ScrobbleSubmit: %v", err)
	}
	if err := svc.ScrobbleDelete(ctx, nil, sc.ID); err != nil {
		t.Fatalf("ScrobbleDelete: %v", err)
	}

	track, err := store.TrackGet(ctx, nil, fx.track.ID)
	if err != nil {
		t.Fatalf("TrackGet: %v", err)
	}
	if track.ListenCount != 0 {
		t.Fatalf("track listen count = %d, want 0 after delete", track.ListenCount)
	}
}

type stubChecker struct {
	err error
	n   int
}

func (c *stubChecker) Check(ctx context.Context, sub catalog.Subscription) error {
	c.n++
	return c.err
}

func TestDispatcherMarksPolledOnSuccess(t *testing.T) {
	ctx := context.Background()
	store := newTestStore(t)
	fx := newFixture(t, store)

	_, err := store.SubscriptionCreate(ctx, nil, fx.user.ID, catalog.MediaTypeArtist, &fx.artist.ID, nil, nil, nil, nil, 3600, "")
	if err != nil {
		t.Fatalf("SubscriptionCreate: %v", err)
	}

	checker := &stubChecker{}
	d := NewDispatcher(store, checker, time.Hour, 10, nil)
	d.pollOnce(ctx)

	if checker.n != 1 {
		t.Fatalf("expected checker invoked once, got %d", checker.n)
	}

	due, err := store.SubscriptionDue(ctx, nil, time.Now(), 10)
	if err != nil {
		t.Fatalf("SubscriptionDue: %v", err)
	}
	if len(due) != 0 {
		t.Fatalf("expected subscription no longer due after a successful poll, got %d still due", len(due))
	}
}

func TestDispatcherBacksOffOnFailure(t *testing.T) {
	ctx := context.Background()
	store := newTestStore(t)
	fx := newFixture(t, store)

	_, err := store.SubscriptionCreate(ctx, nil, fx.user.ID, catalog.MediaTypeArtist, &fx.artist.ID, nil, nil, nil, nil, 3600, "")
	if err != nil {
		t.Fatalf("SubscriptionCreate: %v", err)
	}

	checker := &stubChecker{err: sql.ErrNoRows}
	d := NewDispatcher(store, checker, time.Hour, 10, nil)
	d.pollOnce(ctx)

	due, err := store.SubscriptionDue(ctx, nil, time.Now(), 10)
	if err != nil {
		t.Fatalf("SubscriptionDue: %v", err)
	}
	if len(due) != 0 {
		t.Fatalf("expected subscription to be in backoff and not due, got %d due", len(due))
	}
}

type stubScrobbler struct {
	name   string
	result capability.SubmitResult
	err    error
	seen   []capability.ScrobbleView
}

func (s *stubScrobbler) Name() string { return s.name }
func (s *stubScrobbler) Submit(ctx context.Context, view capability.ScrobbleView) (capability.SubmitResult, error) {
	s.seen = append(s.seen, view)
	return s.result, s.err
}

func TestScrobbleDispatcherRecordsSubmissionOnSuccess(t *testing.T) {
	ctx := context.Background()
	store := newTestStore(t)
	svc := New(store, nil)
	fx := newFixture(t, store)

	sc, err := svc.ScrobbleSubmit(ctx, nil, fx.user.ID, fx.track.ID, time.Now(), 180_000, "test")
	if err != nil {
		t.Fatalf("ScrobbleSubmit: %v", err)
	}

	lastfm := &stubScrobbler{name: "lastfm", result: capability.SubmitOK}
	d := NewScrobbleDispatcher(store, []capability.Scrobbler{lastfm}, time.Hour, 10, nil)
	d.pollOnce(ctx)

	if len(lastfm.seen) != 1 {
		t.Fatalf("expected scrobbler to see 1 submission, got %d", len(lastfm.seen))
	}
	if lastfm.seen[0].TrackName != fx.track.Name {
		t.Fatalf("submitted track name = %q, want %q", lastfm.seen[0].TrackName, fx.track.Name)
	}

	exists, err := store.ScrobbleSubmissionExists(ctx, nil, sc.ID, "lastfm")
	if err != nil {
		t.Fatalf("ScrobbleSubmissionExists: %v", err)
	}
	if !exists {
		t.Fatal("expected submission to be recorded after a successful submit")
	}

	d.pollOnce(ctx)
	if len(lastfm.seen) != 1 {
		t.Fatalf("expected no re-submission of an already-recorded scrobble, got %d total submits", len(lastfm.seen))
	}
}

func TestScrobbleDispatcherLeavesRetryablePending(t *testing.T) {
	ctx := context.Background()
	store := newTestStore(t)
	svc := New(store, nil)
	fx := newFixture(t, store)

	sc, err := svc.ScrobbleSubmit(ctx, nil, fx.user.ID, fx.track.ID, time.Now(), 180_000, "test")
	if err != nil {
		t.Fatalf("ScrobbleSubmit: %v", err)
	}

	flaky := &stubScrobbler{name: "flaky", result: capability.SubmitRetryable}
	d := NewScrobbleDispatcher(store, []capability.Scrobbler{flaky}, time.Hour, 10, nil)
	d.pollOnce(ctx)

	exists, err := store.ScrobbleSubmissionExists(ctx, nil, sc.ID, "flaky")
	if err != nil {
		t.Fatalf("ScrobbleSubmissionExists: %v", err)
	}
	if exists {
		t.Fatal("expected a retryable result to leave the scrobble pending")
	}
}
