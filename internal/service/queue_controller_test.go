package service

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/tejashwikalptaru/tunelib/internal/adapter/audio/mock"
	"github.com/tejashwikalptaru/tunelib/internal/adapter/eventbus"
	"github.com/tejashwikalptaru/tunelib/internal/catalog"
	"github.com/tejashwikalptaru/tunelib/internal/domain"
	"github.com/tejashwikalptaru/tunelib/internal/logger"
	"github.com/tejashwikalptaru/tunelib/internal/testutil"
)

// fakeRecorder counts recorded plays per track.
type fakeRecorder struct {
	mu    sync.Mutex
	plays []int64
	err   error
}

func (r *fakeRecorder) RecordPlay(_ context.Context, trackID int64) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.err != nil {
		return r.err
	}
	r.plays = append(r.plays, trackID)
	return nil
}

func (r *fakeRecorder) recorded() []int64 {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]int64(nil), r.plays...)
}

type queueFixture struct {
	controller *QueueController
	engine     *mock.Engine
	projection *catalog.Projection
	recorder   *fakeRecorder
	bus        *eventbus.SyncEventBus
	tracks     []domain.Track
}

// Helper to create a controller over tracks A, B and C backed by temp files
func newQueueFixture(t *testing.T) *queueFixture {
	t.Helper()

	dir := t.TempDir()
	tracks := make([]domain.Track, 0, 3)
	for i, name := range []string{"a", "b", "c"} {
		path := filepath.Join(dir, name+".mp3")
		require.NoError(t, os.WriteFile(path, []byte("audio"), 0o644))
		tracks = append(tracks, domain.Track{ID: int64(i + 1), FilePath: path, Title: name})
	}

	log := logger.NewTestLogger()
	engine := mock.NewEngine(log)
	for _, tr := range tracks {
		engine.SetDuration(tr.FilePath, 3000)
	}
	projection := catalog.NewProjection()
	projection.SetTracks(tracks)
	recorder := &fakeRecorder{}
	bus := eventbus.NewSyncEventBus(log)
	t.Cleanup(func() { _ = bus.Close() })

	controller := NewQueueController(log, engine, projection, recorder, bus)
	controller.SetRandSeed(7)

	return &queueFixture{
		controller: controller,
		engine:     engine,
		projection: projection,
		recorder:   recorder,
		bus:        bus,
		tracks:     tracks,
	}
}

func (f *queueFixture) settle(t *testing.T) {
	t.Helper()
	f.controller.ProcessPending(context.Background())
}

func (f *queueFixture) playAt(t *testing.T, index int) {
	t.Helper()
	require.NoError(t, f.controller.PlayAt(index))
	f.settle(t)
	require.Equal(t, domain.StatePlaying, f.controller.State().State)
}

func TestQueue_PlayAt(t *testing.T) {
	f := newQueueFixture(t)

	var changed []domain.TrackChangedEvent
	f.bus.Subscribe(domain.EventTrackChanged, func(e domain.Event) {
		changed = append(changed, e.(domain.TrackChangedEvent))
	})

	f.playAt(t, 1)

	state := f.controller.State()
	assert.Equal(t, int64(2), state.Track.ID)
	assert.Equal(t, 1, state.CurrentIndex)
	assert.True(t, state.Loaded)
	assert.Equal(t, int64(3000), state.Duration)
	assert.Equal(t, f.tracks[1].FilePath, f.engine.Path())

	// Once on selection and once when loaded
	require.Len(t, changed, 2)
	assert.Equal(t, int64(2), changed[1].Track.ID)

	assert.ErrorIs(t, f.controller.PlayAt(5), domain.ErrInvalidIndex)
}

func TestQueue_NextThroughPlaylistThenStops(t *testing.T) {
	f := newQueueFixture(t)
	f.playAt(t, 0)

	track, err := f.controller.Next()
	require.NoError(t, err)
	assert.Equal(t, int64(2), track.ID)
	f.settle(t)

	track, err = f.controller.Next()
	require.NoError(t, err)
	assert.Equal(t, int64(3), track.ID)
	f.settle(t)
	assert.Equal(t, 2, f.controller.State().CurrentIndex)

	f.engine.ResetCalls()
	track, err = f.controller.Next()
	require.NoError(t, err)
	f.settle(t)

	assert.False(t, track.Valid())
	state := f.controller.State()
	assert.Equal(t, domain.NoTrackID, state.Track.ID)
	assert.Equal(t, domain.NoIndex, state.CurrentIndex)
	assert.Equal(t, domain.StateStopped, state.State)
	assert.Equal(t, []string{"stop"}, f.engine.Calls())
}

func TestQueue_NextWrapsWithRepeat(t *testing.T) {
	f := newQueueFixture(t)
	f.controller.SetRepeat(true)
	f.playAt(t, 2)

	track, err := f.controller.Next()
	require.NoError(t, err)
	f.settle(t)

	assert.Equal(t, int64(1), track.ID)
	assert.Equal(t, 0, f.controller.State().CurrentIndex)
}

func TestQueue_PreviousAlwaysWraps(t *testing.T) {
	for _, repeat := range []bool{false, true} {
		f := newQueueFixture(t)
		f.controller.SetRepeat(repeat)
		f.playAt(t, 0)

		track, err := f.controller.Previous()
		require.NoError(t, err)
		f.settle(t)

		assert.Equal(t, int64(3), track.ID, "repeat=%v", repeat)
		assert.Equal(t, 2, f.controller.State().CurrentIndex)
	}
}

func TestQueue_PreviousMovesBack(t *testing.T) {
	f := newQueueFixture(t)
	f.playAt(t, 2)

	track, err := f.controller.Previous()
	require.NoError(t, err)
	assert.Equal(t, int64(2), track.ID)
}

func TestQueue_ShuffleIgnoresDirection(t *testing.T) {
	f := newQueueFixture(t)
	f.controller.SetShuffle(true)
	f.playAt(t, 0)

	for range 20 {
		for _, dir := range []domain.Direction{domain.Next, domain.Previous} {
			track, err := f.controller.Advance(dir)
			require.NoError(t, err)
			assert.True(t, track.Valid())
			f.settle(t)

			index := f.controller.State().CurrentIndex
			assert.GreaterOrEqual(t, index, 0)
			assert.Less(t, index, 3)
		}
	}
}

func TestQueue_EmptyProjection(t *testing.T) {
	f := newQueueFixture(t)
	f.projection.Clear()

	track, err := f.controller.Next()
	assert.ErrorIs(t, err, domain.ErrQueueEmpty)
	assert.False(t, track.Valid())
	assert.ErrorIs(t, f.controller.Play(), domain.ErrNoTrackLoaded)
}

func TestQueue_EmptyProjectionKeepsPlaying(t *testing.T) {
	f := newQueueFixture(t)
	f.playAt(t, 0)
	stops := f.engine.CallCount("stop")

	// A search with no hits empties the view
	f.projection.Clear()
	f.controller.Resync()

	for _, dir := range []domain.Direction{domain.Next, domain.Previous} {
		track, err := f.controller.Advance(dir)
		assert.ErrorIs(t, err, domain.ErrQueueEmpty)
		assert.False(t, track.Valid())
		f.settle(t)
	}

	state := f.controller.State()
	assert.Equal(t, stops, f.engine.CallCount("stop"))
	assert.Equal(t, int64(1), state.Track.ID)
	assert.Equal(t, domain.StatePlaying, state.State)
}

func TestQueue_PlayWithoutTrackStartsFirst(t *testing.T) {
	f := newQueueFixture(t)

	require.NoError(t, f.controller.Play())
	f.settle(t)

	state := f.controller.State()
	assert.Equal(t, int64(1), state.Track.ID)
	assert.Equal(t, 0, state.CurrentIndex)
	assert.Equal(t, domain.StatePlaying, state.State)
}

func TestQueue_TogglePlayPauseAfterEndOfQueue(t *testing.T) {
	f := newQueueFixture(t)
	f.playAt(t, 2)

	// Past the last track without repeat forgets the current track
	_, err := f.controller.Next()
	require.NoError(t, err)
	f.settle(t)
	require.False(t, f.controller.State().Track.Valid())

	require.NoError(t, f.controller.TogglePlayPause())
	f.settle(t)

	state := f.controller.State()
	assert.Equal(t, int64(1), state.Track.ID)
	assert.Equal(t, domain.StatePlaying, state.State)
}

func TestQueue_NaturalStopAdvances(t *testing.T) {
	f := newQueueFixture(t)
	f.playAt(t, 0)

	f.engine.Advance(3000)
	f.settle(t)

	state := f.controller.State()
	assert.Equal(t, int64(2), state.Track.ID)
	assert.Equal(t, domain.StatePlaying, state.State)
}

func TestQueue_NaturalStopAtEndRemainsStopped(t *testing.T) {
	f := newQueueFixture(t)
	f.playAt(t, 2)
	f.engine.ResetCalls()

	f.engine.Advance(3000)
	f.settle(t)

	state := f.controller.State()
	assert.Equal(t, domain.StateStopped, state.State)
	assert.Equal(t, int64(3), state.Track.ID)
	assert.Equal(t, 2, state.CurrentIndex)
	assert.Zero(t, f.engine.CallCount("load"))
}

func TestQueue_NaturalStopWithRepeatReplays(t *testing.T) {
	f := newQueueFixture(t)
	f.controller.SetRepeat(true)
	f.playAt(t, 1)
	f.engine.ResetCalls()

	// Running straight past the end skips the soft-loop window
	f.engine.SetTick(5000)
	f.engine.Advance(5000)
	f.settle(t)

	state := f.controller.State()
	assert.Equal(t, int64(2), state.Track.ID)
	assert.Equal(t, domain.StatePlaying, state.State)
	assert.Equal(t, 1, f.engine.CallCount("load"))
	assert.Equal(t, []int64{2, 2}, f.recorder.recorded())
}

func TestQueue_ManualStopNeverAdvances(t *testing.T) {
	f := newQueueFixture(t)
	f.playAt(t, 0)

	f.controller.Stop()
	f.settle(t)

	state := f.controller.State()
	assert.Equal(t, domain.StateStopped, state.State)
	assert.Equal(t, int64(1), state.Track.ID)
	assert.Equal(t, 0, state.CurrentIndex)

	// Playing again resumes normal end-of-media handling
	require.NoError(t, f.controller.Play())
	f.settle(t)
	f.engine.Advance(3000)
	f.settle(t)
	assert.Equal(t, int64(2), f.controller.State().Track.ID)
}

func TestQueue_SoftLoop(t *testing.T) {
	f := newQueueFixture(t)
	f.controller.SetRepeat(true)
	f.playAt(t, 0)
	f.engine.ResetCalls()

	f.engine.SetTick(2950)
	f.engine.Advance(2950)
	f.settle(t)

	assert.Equal(t, []string{"seek 0", "play"}, f.engine.Calls())
	state := f.controller.State()
	assert.Equal(t, int64(0), state.Position)
	assert.Equal(t, domain.StatePlaying, state.State)
}

func TestQueue_NoSoftLoopWhenTrackLeftView(t *testing.T) {
	f := newQueueFixture(t)
	f.controller.SetRepeat(true)
	f.playAt(t, 0)

	f.projection.SetTracks(f.tracks[1:])
	f.controller.Resync()
	f.engine.ResetCalls()

	f.engine.SetTick(2950)
	f.engine.Advance(2950)
	f.settle(t)

	assert.Empty(t, f.engine.Calls())
}

func TestQueue_NoSoftLoopWithoutRepeat(t *testing.T) {
	f := newQueueFixture(t)
	f.playAt(t, 0)
	f.engine.ResetCalls()

	f.engine.SetTick(2950)
	f.engine.Advance(2950)
	f.settle(t)

	assert.Empty(t, f.engine.Calls())
	assert.Equal(t, int64(2950), f.controller.State().Position)
}

func TestQueue_SeekLatch(t *testing.T) {
	f := newQueueFixture(t)
	f.playAt(t, 0)

	f.engine.Advance(500)
	f.settle(t)
	require.Equal(t, int64(500), f.controller.State().Position)

	f.controller.BeginSeek()
	f.engine.Advance(500)
	f.settle(t)

	state := f.controller.State()
	assert.True(t, state.Seeking)
	assert.Equal(t, int64(500), state.Position)

	require.NoError(t, f.controller.EndSeek(2000))
	assert.Contains(t, f.engine.Calls(), "seek 2000")

	f.settle(t)
	state = f.controller.State()
	assert.False(t, state.Seeking)
	assert.Equal(t, int64(2000), state.Position)
}

func TestQueue_EndSeekWithoutTrack(t *testing.T) {
	f := newQueueFixture(t)

	f.controller.BeginSeek()
	assert.ErrorIs(t, f.controller.EndSeek(10), domain.ErrNoTrackLoaded)
	assert.False(t, f.controller.State().Seeking)
}

func TestQueue_AutoPlayAfterLoad(t *testing.T) {
	f := newQueueFixture(t)

	require.NoError(t, f.controller.PlayAt(0))

	// Play is issued immediately, and again once ready is handled
	assert.Equal(t, 1, f.engine.CallCount("play"))
	f.settle(t)
	assert.Equal(t, 2, f.engine.CallCount("play"))
	assert.Equal(t, domain.StatePlaying, f.controller.State().State)
}

func TestQueue_SetTrackDoesNotPlay(t *testing.T) {
	f := newQueueFixture(t)

	require.NoError(t, f.controller.SetTrack(f.tracks[1]))
	f.settle(t)

	state := f.controller.State()
	assert.Equal(t, domain.StateReady, state.State)
	assert.Equal(t, 1, state.CurrentIndex)
	assert.Zero(t, f.engine.CallCount("play"))

	assert.ErrorIs(t, f.controller.SetTrack(domain.NoTrack()), domain.ErrInvalidID)
	assert.Equal(t, int64(2), f.controller.State().Track.ID)
}

func TestQueue_MissingFileNeverReachesEngine(t *testing.T) {
	f := newQueueFixture(t)

	var mediaErrors []domain.MediaErrorEvent
	f.bus.Subscribe(domain.EventMediaError, func(e domain.Event) {
		mediaErrors = append(mediaErrors, e.(domain.MediaErrorEvent))
	})

	missing := domain.Track{ID: 9, FilePath: filepath.Join(t.TempDir(), "gone.mp3"), Title: "gone"}
	err := f.controller.PlayTrack(missing)

	assert.ErrorIs(t, err, domain.ErrFileNotFound)
	assert.Zero(t, f.engine.CallCount("load"))
	require.Len(t, mediaErrors, 1)
	assert.Equal(t, int64(9), mediaErrors[0].Track.ID)
	assert.Equal(t, domain.StateStopped, f.controller.State().State)
}

func TestQueue_InvalidMedia(t *testing.T) {
	f := newQueueFixture(t)
	f.engine.SetInvalidMedia(f.tracks[0].FilePath)

	var states []domain.PlaybackState
	f.bus.Subscribe(domain.EventStateChanged, func(e domain.Event) {
		states = append(states, e.(domain.StateChangedEvent).NewState)
	})
	var mediaErrors int
	f.bus.Subscribe(domain.EventMediaError, func(domain.Event) { mediaErrors++ })

	require.NoError(t, f.controller.PlayAt(0))
	f.settle(t)

	state := f.controller.State()
	assert.Equal(t, domain.StateStopped, state.State)
	assert.False(t, state.Loaded)
	assert.Equal(t, 1, mediaErrors)
	assert.Equal(t, []domain.PlaybackState{domain.StateLoading, domain.StateError, domain.StateStopped}, states)
	assert.Empty(t, f.recorder.recorded())
}

func TestQueue_EngineError(t *testing.T) {
	f := newQueueFixture(t)
	f.playAt(t, 0)

	var mediaErrors []domain.MediaErrorEvent
	f.bus.Subscribe(domain.EventMediaError, func(e domain.Event) {
		mediaErrors = append(mediaErrors, e.(domain.MediaErrorEvent))
	})

	f.engine.Fail("device lost")
	f.settle(t)

	require.Len(t, mediaErrors, 1)
	var mediaErr *domain.MediaError
	require.True(t, errors.As(mediaErrors[0].Err, &mediaErr))
	assert.Equal(t, "device lost", mediaErr.Message)

	state := f.controller.State()
	assert.Equal(t, domain.StateStopped, state.State)
	assert.Equal(t, int64(1), state.Track.ID)
}

func TestQueue_RecordsPlayOncePerLoad(t *testing.T) {
	f := newQueueFixture(t)

	var recorded int
	f.bus.Subscribe(domain.EventPlayRecorded, func(domain.Event) { recorded++ })

	f.playAt(t, 0)
	require.NoError(t, f.controller.Pause())
	f.settle(t)
	assert.Equal(t, domain.StatePaused, f.controller.State().State)

	require.NoError(t, f.controller.TogglePlayPause())
	f.settle(t)
	assert.Equal(t, domain.StatePlaying, f.controller.State().State)

	assert.Equal(t, []int64{1}, f.recorder.recorded())
	assert.Equal(t, 1, recorded)
}

func TestQueue_RecordFailureIsTolerated(t *testing.T) {
	f := newQueueFixture(t)
	f.recorder.err = errors.New("disk full")

	f.playAt(t, 0)

	assert.Equal(t, int64(1), f.controller.State().Track.ID)
}

func TestQueue_ResyncByIdentity(t *testing.T) {
	f := newQueueFixture(t)
	f.playAt(t, 0)
	f.engine.ResetCalls()

	// Rebuilt view in a different order
	f.projection.SetTracks([]domain.Track{f.tracks[2], f.tracks[1], f.tracks[0]})
	f.controller.Resync()

	state := f.controller.State()
	assert.Equal(t, 2, state.CurrentIndex)
	assert.Equal(t, domain.StatePlaying, state.State)
	assert.Empty(t, f.engine.Calls())

	// A view without the track leaves the index unresolved but keeps playing
	f.projection.SetTracks(f.tracks[1:])
	f.controller.Resync()

	state = f.controller.State()
	assert.Equal(t, domain.NoIndex, state.CurrentIndex)
	assert.Equal(t, int64(1), state.Track.ID)
	assert.Equal(t, domain.StatePlaying, state.State)

	// Next from an unresolved index starts the view from the top
	track, err := f.controller.Next()
	require.NoError(t, err)
	assert.Equal(t, int64(2), track.ID)
}

func TestQueue_ReadyReresolvesIndex(t *testing.T) {
	f := newQueueFixture(t)

	require.NoError(t, f.controller.PlayAt(0))
	// The view changes while the load is in flight
	f.projection.SetTracks([]domain.Track{f.tracks[1], f.tracks[0]})
	f.settle(t)

	assert.Equal(t, 1, f.controller.State().CurrentIndex)
}

func TestQueue_RefresherUpdatesTrack(t *testing.T) {
	f := newQueueFixture(t)
	f.controller.SetRefresher(func(_ context.Context, track domain.Track) (domain.Track, error) {
		track.Title = "Refreshed"
		track.Duration = 2500
		return track, nil
	})

	f.playAt(t, 0)

	assert.Equal(t, "Refreshed", f.controller.State().Track.Title)
	assert.Equal(t, "Refreshed", f.projection.At(0).Title)
}

func TestQueue_StaleStatusIgnored(t *testing.T) {
	f := newQueueFixture(t)
	f.playAt(t, 0)

	f.controller.Post(domain.NewMediaStatusEvent(domain.MediaInvalid, "/elsewhere.mp3"))
	f.settle(t)

	assert.Equal(t, domain.StatePlaying, f.controller.State().State)
}

func TestQueue_Volume(t *testing.T) {
	f := newQueueFixture(t)

	var volumes []float64
	f.bus.Subscribe(domain.EventVolumeChanged, func(e domain.Event) {
		volumes = append(volumes, e.(domain.VolumeChangedEvent).Volume)
	})

	require.NoError(t, f.controller.SetVolumePercent(40))
	assert.InDelta(t, 0.4, f.engine.Volume(), 1e-9)
	assert.InDelta(t, 0.4, f.controller.State().Volume, 1e-9)

	assert.ErrorIs(t, f.controller.SetVolumePercent(150), domain.ErrInvalidVolume)
	assert.ErrorIs(t, f.controller.SetVolume(-1), domain.ErrInvalidVolume)
	assert.Equal(t, []float64{0.4}, volumes)
}

func TestQueue_ModesPublished(t *testing.T) {
	f := newQueueFixture(t)

	var modes []domain.ModesChangedEvent
	f.bus.Subscribe(domain.EventModesChanged, func(e domain.Event) {
		modes = append(modes, e.(domain.ModesChangedEvent))
	})

	f.controller.SetShuffle(true)
	f.controller.SetShuffle(true)
	f.controller.SetRepeat(true)

	require.Len(t, modes, 2)
	assert.True(t, modes[1].Shuffle)
	assert.True(t, modes[1].Repeat)
}

func TestQueue_HandlersMayQueryController(t *testing.T) {
	f := newQueueFixture(t)

	var seen domain.QueueState
	f.bus.Subscribe(domain.EventTrackChanged, func(domain.Event) {
		seen = f.controller.State()
	})

	f.playAt(t, 1)

	assert.Equal(t, int64(2), seen.Track.ID)
}

func TestQueue_Run(t *testing.T) {
	defer testutil.VerifyNoLeaks(t)

	f := newQueueFixture(t)

	playing := make(chan struct{}, 1)
	f.bus.Subscribe(domain.EventStateChanged, func(e domain.Event) {
		if e.(domain.StateChangedEvent).NewState == domain.StatePlaying {
			select {
			case playing <- struct{}{}:
			default:
			}
		}
	})

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- f.controller.Run(ctx) }()

	require.NoError(t, f.controller.PlayAt(0))

	select {
	case <-playing:
	case <-time.After(2 * time.Second):
		t.Fatal("controller never reported playing")
	}

	cancel()
	select {
	case err := <-done:
		assert.NoError(t, err)
	case <-time.After(2 * time.Second):
		t.Fatal("Run did not return after cancel")
	}
}
