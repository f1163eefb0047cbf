// Package catalog holds the in-memory ordered view of tracks that playback runs over.
package catalog

import (
	"slices"
	"sync"

	"github.com/tejashwikalptaru/tunelib/internal/domain"
)

// Projection is the current list: an ordered snapshot of tracks produced by the
// active view (all, search, filter, playlist, tag, history). It is rebuilt
// wholesale on every view change and carries no policy of its own.
//
// Thread-safety: all methods are safe for concurrent use.
type Projection struct {
	mu     sync.RWMutex
	tracks []domain.Track
}

// NewProjection creates an empty projection.
func NewProjection() *Projection {
	return &Projection{tracks: make([]domain.Track, 0)}
}

// SetTracks replaces the contents. The slice is copied.
func (p *Projection) SetTracks(tracks []domain.Track) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.tracks = slices.Clone(tracks)
	if p.tracks == nil {
		p.tracks = make([]domain.Track, 0)
	}
}

// Append adds a track at the end and returns its index.
func (p *Projection) Append(track domain.Track) int {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.tracks = append(p.tracks, track)
	return len(p.tracks) - 1
}

// RemoveAt drops the track at index. Out-of-range indexes are ignored.
func (p *Projection) RemoveAt(index int) {
	p.mu.Lock()
	defer p.mu.Unlock()
	if index < 0 || index >= len(p.tracks) {
		return
	}
	p.tracks = slices.Delete(p.tracks, index, index+1)
}

// Clear empties the projection.
func (p *Projection) Clear() {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.tracks = make([]domain.Track, 0)
}

// Count returns the number of tracks.
func (p *Projection) Count() int {
	p.mu.RLock()
	defer p.mu.RUnlock()
	return len(p.tracks)
}

// At returns the track at index, or domain.NoTrack when out of range.
func (p *Projection) At(index int) domain.Track {
	p.mu.RLock()
	defer p.mu.RUnlock()
	if index < 0 || index >= len(p.tracks) {
		return domain.NoTrack()
	}
	return p.tracks[index]
}

// IndexOf returns the index of the first track with the id, or domain.NoIndex.
func (p *Projection) IndexOf(id int64) int {
	if id < 0 {
		return domain.NoIndex
	}
	p.mu.RLock()
	defer p.mu.RUnlock()
	i := slices.IndexFunc(p.tracks, func(t domain.Track) bool { return t.ID == id })
	if i < 0 {
		return domain.NoIndex
	}
	return i
}

// Replace swaps the stored copy of a track, matched by id, for a fresher one.
// It reports whether the track was present.
func (p *Projection) Replace(track domain.Track) bool {
	p.mu.Lock()
	defer p.mu.Unlock()
	replaced := false
	for i := range p.tracks {
		if p.tracks[i].ID == track.ID {
			p.tracks[i] = track
			replaced = true
		}
	}
	return replaced
}

// Tracks returns a copy of the contents.
func (p *Projection) Tracks() []domain.Track {
	p.mu.RLock()
	defer p.mu.RUnlock()
	return slices.Clone(p.tracks)
}
