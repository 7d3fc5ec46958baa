package catalog

import (
	"context"
	"database/sql"
	"errors"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sonar-music/sonar/internal/sonarerr"
)

func newTestStore(t *testing.T) *Store {
	t.Helper()
	ctx := context.Background()
	store, err := Open(ctx, filepath.Join(t.TempDir(), "test.db"), 4, nil, nil)
	require.NoError(t, err)
	t.Cleanup(func() { store.Close() })
	return store
}

func TestArtistCreateGetUpdate(t *testing.T) {
	ctx := context.Background()
	store := newTestStore(t)

	artist, err := store.ArtistCreate(ctx, nil, "Radiohead")
	require.NoError(t, err)
	assert.NotZero(t, artist.ID)
	assert.Equal(t, "Radiohead", artist.Name)

	got, err := store.ArtistGet(ctx, nil, artist.ID)
	require.NoError(t, err)
	assert.Equal(t, artist, got)

	updated, err := store.ArtistUpdate(ctx, nil, artist.ID, SetValue("Radiohead (remaster)"), Unchanged[*int64]())
	require.NoError(t, err)
	assert.Equal(t, "Radiohead (remaster)", updated.Name)

	unchanged, err := store.ArtistUpdate(ctx, nil, artist.ID, Unchanged[string](), Unchanged[*int64]())
	require.NoError(t, err)
	assert.Equal(t, updated.Name, unchanged.Name)
}

func TestArtistDeleteConflictsWithAlbums(t *testing.T) {
	ctx := context.Background()
	store := newTestStore(t)

	artist, err := store.ArtistCreate(ctx, nil, "Boards of Canada")
	require.NoError(t, err)
	_, err = store.AlbumCreate(ctx, nil, artist.ID, "Music Has the Right to Children")
	require.NoError(t, err)

	err = store.ArtistDelete(ctx, nil, artist.ID)
	require.Error(t, err)
	assert.True(t, sonarerr.Is(err, sonarerr.KindConflict))

	_, err = store.ArtistGet(ctx, nil, artist.ID)
	require.NoError(t, err, "artist must survive a rejected delete")
}

func TestAlbumDeleteConflictsWithTracks(t *testing.T) {
	ctx := context.Background()
	store := newTestStore(t)

	artist, err := store.ArtistCreate(ctx, nil, "Boards of Canada")
	require.NoError(t, err)
	album, err := store.AlbumCreate(ctx, nil, artist.ID, "Geogaddi")
	require.NoError(t, err)
	_, err = store.TrackCreate(ctx, nil, album.ID, "Music Is Math")
	require.NoError(t, err)

	err = store.AlbumDelete(ctx, nil, album.ID)
	require.Error(t, err)
	assert.True(t, sonarerr.Is(err, sonarerr.KindConflict))
}

func TestArtistListPagination(t *testing.T) {
	ctx := context.Background()
	store := newTestStore(t)

	for i := 0; i < 3; i++ {
		_, err := store.ArtistCreate(ctx, nil, "Artist")
		require.NoError(t, err)
	}

	count := 2
	page, err := store.ArtistList(ctx, nil, ListParams{Offset: 0, Count: &count})
	require.NoError(t, err)
	assert.Len(t, page, 2)
}

func TestWithTxRollsBackOnError(t *testing.T) {
	ctx := context.Background()
	store := newTestStore(t)

	boom := errors.New("boom")
	err := store.WithTx(ctx, func(tx *sql.Tx) error {
		if _, err := store.ArtistCreate(ctx, tx, "Rolled Back"); err != nil {
			return err
		}
		return boom
	})
	require.ErrorIs(t, err, boom)

	artists, err := store.ArtistList(ctx, nil, ListParams{})
	require.NoError(t, err)
	assert.Empty(t, artists, "the transaction's insert must not have committed")
}
