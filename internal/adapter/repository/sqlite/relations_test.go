package sqlite

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/tejashwikalptaru/tunelib/internal/domain"
)

func TestAddArtist_InsertOrFetch(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()

	first, err := store.AddArtist(ctx, "Björk")
	require.NoError(t, err)
	second, err := store.AddArtist(ctx, "Björk")
	require.NoError(t, err)
	assert.Equal(t, first, second)

	// Case-exact names
	other, err := store.AddArtist(ctx, "björk")
	require.NoError(t, err)
	assert.NotEqual(t, first, other)

	id, err := store.ArtistID(ctx, "Björk")
	require.NoError(t, err)
	assert.Equal(t, first, id)

	_, err = store.ArtistID(ctx, "Nobody")
	assert.ErrorIs(t, err, domain.ErrArtistNotFound)

	_, err = store.AddArtist(ctx, " ")
	assert.ErrorIs(t, err, domain.ErrEmptyName)
}

func TestLinkUnlink(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()

	track := mustUpsert(t, store, "/m/a.mp3", "A", "", "")
	tag, err := store.AddTag(ctx, "jazz")
	require.NoError(t, err)

	require.NoError(t, store.AddTagToTrack(ctx, track, tag))
	// Linking twice keeps a single row
	require.NoError(t, store.AddTagToTrack(ctx, track, tag))

	got, err := store.GetTrack(ctx, track)
	require.NoError(t, err)
	assert.Equal(t, []string{"jazz"}, got.Tags)

	require.NoError(t, store.RemoveTagFromTrack(ctx, track, tag))
	got, err = store.GetTrack(ctx, track)
	require.NoError(t, err)
	assert.Empty(t, got.Tags)

	// Unlinking again is a no-op
	assert.NoError(t, store.RemoveTagFromTrack(ctx, track, tag))
}

func TestLink_MissingRows(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()

	track := mustUpsert(t, store, "/m/a.mp3", "A", "", "")
	album, err := store.AddAlbum(ctx, "Album")
	require.NoError(t, err)

	assert.ErrorIs(t, store.AddAlbumToTrack(ctx, 999, album), domain.ErrTrackNotFound)
	assert.ErrorIs(t, store.AddAlbumToTrack(ctx, track, 999), domain.ErrAlbumNotFound)
	assert.ErrorIs(t, store.AddArtistToTrack(ctx, track, 999), domain.ErrArtistNotFound)
	assert.ErrorIs(t, store.AddTagToTrack(ctx, track, -4), domain.ErrInvalidID)
}

func TestListAlbumsByArtist(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()

	t1 := mustUpsert(t, store, "/m/1.mp3", "One", "", "")
	t2 := mustUpsert(t, store, "/m/2.mp3", "Two", "", "")
	t3 := mustUpsert(t, store, "/m/3.mp3", "Three", "", "")

	artist, _ := store.AddArtist(ctx, "Artist")
	other, _ := store.AddArtist(ctx, "Other")
	second, _ := store.AddAlbum(ctx, "Second")
	first, _ := store.AddAlbum(ctx, "First")
	foreign, _ := store.AddAlbum(ctx, "Foreign")

	require.NoError(t, store.AddArtistToTrack(ctx, t1, artist))
	require.NoError(t, store.AddArtistToTrack(ctx, t2, artist))
	require.NoError(t, store.AddArtistToTrack(ctx, t3, other))
	require.NoError(t, store.AddAlbumToTrack(ctx, t1, second))
	require.NoError(t, store.AddAlbumToTrack(ctx, t2, second))
	require.NoError(t, store.AddAlbumToTrack(ctx, t2, first))
	require.NoError(t, store.AddAlbumToTrack(ctx, t3, foreign))

	albums, err := store.ListAlbumsByArtist(ctx, artist)
	require.NoError(t, err)
	require.Len(t, albums, 2)
	assert.Equal(t, "First", albums[0].Name)
	assert.Equal(t, "Second", albums[1].Name)

	all, err := store.ListAlbums(ctx)
	require.NoError(t, err)
	assert.Len(t, all, 3)
}

func TestListTags_Ordered(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()

	for _, name := range []string{"rock", "ambient", "metal"} {
		_, err := store.AddTag(ctx, name)
		require.NoError(t, err)
	}

	tags, err := store.ListTags(ctx)
	require.NoError(t, err)
	require.Len(t, tags, 3)
	assert.Equal(t, "ambient", tags[0].Name)
	assert.Equal(t, "metal", tags[1].Name)
	assert.Equal(t, "rock", tags[2].Name)
}
