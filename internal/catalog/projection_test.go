package catalog

import (
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/tejashwikalptaru/tunelib/internal/domain"
)

func sampleTracks() []domain.Track {
	return []domain.Track{
		{ID: 1, FilePath: "/a.mp3", Title: "A"},
		{ID: 2, FilePath: "/b.mp3", Title: "B"},
		{ID: 3, FilePath: "/c.mp3", Title: "C"},
	}
}

func TestProjection_SetTracksCopies(t *testing.T) {
	p := NewProjection()
	tracks := sampleTracks()

	p.SetTracks(tracks)
	tracks[0].Title = "mutated"

	require.Equal(t, 3, p.Count())
	assert.Equal(t, "A", p.At(0).Title)

	out := p.Tracks()
	out[1].Title = "mutated"
	assert.Equal(t, "B", p.At(1).Title)
}

func TestProjection_AtOutOfRange(t *testing.T) {
	p := NewProjection()
	p.SetTracks(sampleTracks())

	for _, index := range []int{-1, 3, 100} {
		track := p.At(index)
		assert.Equal(t, domain.NoTrackID, track.ID, "index %d", index)
		assert.False(t, track.Valid())
	}
}

func TestProjection_AppendRemoveClear(t *testing.T) {
	p := NewProjection()
	p.SetTracks(sampleTracks())

	index := p.Append(domain.Track{ID: 4, Title: "D"})
	assert.Equal(t, 3, index)
	assert.Equal(t, int64(4), p.At(3).ID)

	p.RemoveAt(0)
	assert.Equal(t, 3, p.Count())
	assert.Equal(t, int64(2), p.At(0).ID)

	// Ignored
	p.RemoveAt(-1)
	p.RemoveAt(10)
	assert.Equal(t, 3, p.Count())

	p.Clear()
	assert.Zero(t, p.Count())
	assert.Empty(t, p.Tracks())
}

func TestProjection_IndexOf(t *testing.T) {
	p := NewProjection()
	p.SetTracks(sampleTracks())

	assert.Equal(t, 2, p.IndexOf(3))
	assert.Equal(t, domain.NoIndex, p.IndexOf(99))
	assert.Equal(t, domain.NoIndex, p.IndexOf(domain.NoTrackID))
}

func TestProjection_Replace(t *testing.T) {
	p := NewProjection()
	p.SetTracks(sampleTracks())

	assert.True(t, p.Replace(domain.Track{ID: 2, Title: "B (remastered)"}))
	assert.Equal(t, "B (remastered)", p.At(1).Title)

	assert.False(t, p.Replace(domain.Track{ID: 9}))
}

func TestProjection_SetTracksNil(t *testing.T) {
	p := NewProjection()
	p.SetTracks(nil)

	assert.Zero(t, p.Count())
	assert.NotNil(t, p.Tracks())
}

func TestProjection_ConcurrentAccess(t *testing.T) {
	p := NewProjection()

	var wg sync.WaitGroup
	for i := range 10 {
		wg.Add(2)
		go func() {
			defer wg.Done()
			p.Append(domain.Track{ID: int64(i)})
		}()
		go func() {
			defer wg.Done()
			_ = p.At(0)
			_ = p.IndexOf(int64(i))
		}()
	}
	wg.Wait()

	assert.Equal(t, 10, p.Count())
}
