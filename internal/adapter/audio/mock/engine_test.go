package mock

import (
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/tejashwikalptaru/tunelib/internal/domain"
	"github.com/tejashwikalptaru/tunelib/internal/logger"
)

// recorder collects engine events in delivery order.
type recorder struct {
	mu     sync.Mutex
	events []domain.Event
}

func (r *recorder) sink(ev domain.Event) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.events = append(r.events, ev)
}

func (r *recorder) types() []domain.EventType {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]domain.EventType, len(r.events))
	for i, ev := range r.events {
		out[i] = ev.Type()
	}
	return out
}

func (r *recorder) last() domain.Event {
	r.mu.Lock()
	defer r.mu.Unlock()
	if len(r.events) == 0 {
		return nil
	}
	return r.events[len(r.events)-1]
}

func (r *recorder) reset() {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.events = nil
}

func newTestEngine(t *testing.T) (*Engine, *recorder) {
	t.Helper()
	engine := NewEngine(logger.NewTestLogger())
	rec := &recorder{}
	engine.SetEventSink(rec.sink)
	return engine, rec
}

func TestLoad_ReportsReadyAndDuration(t *testing.T) {
	engine, rec := newTestEngine(t)
	engine.SetDuration("/a.mp3", 5000)

	require.NoError(t, engine.Load("/a.mp3"))

	require.Len(t, rec.events, 3)
	loading := rec.events[0].(domain.MediaStatusEvent)
	assert.Equal(t, domain.MediaLoading, loading.Status)
	ready := rec.events[1].(domain.MediaStatusEvent)
	assert.Equal(t, domain.MediaReady, ready.Status)
	assert.Equal(t, "/a.mp3", ready.Path)
	duration := rec.events[2].(domain.EngineDurationEvent)
	assert.Equal(t, int64(5000), duration.Duration)

	assert.Equal(t, "/a.mp3", engine.Path())
}

func TestLoad_DefaultDuration(t *testing.T) {
	engine, rec := newTestEngine(t)

	require.NoError(t, engine.Load("/a.mp3"))

	duration := rec.last().(domain.EngineDurationEvent)
	assert.Equal(t, DefaultDuration, duration.Duration)
}

func TestLoad_InvalidMedia(t *testing.T) {
	engine, rec := newTestEngine(t)
	engine.SetInvalidMedia("/broken.mp3")

	require.NoError(t, engine.Load("/broken.mp3"))

	status := rec.last().(domain.MediaStatusEvent)
	assert.Equal(t, domain.MediaInvalid, status.Status)
	assert.ErrorIs(t, engine.Play(), domain.ErrNoTrackLoaded)
}

func TestLoad_Failure(t *testing.T) {
	engine, rec := newTestEngine(t)
	engine.SetFailLoad(true)

	err := engine.Load("/a.mp3")

	var mediaErr *domain.MediaError
	require.ErrorAs(t, err, &mediaErr)
	assert.Equal(t, "/a.mp3", mediaErr.Path)
	assert.Empty(t, rec.events)
}

func TestLoad_StopsActivePlayback(t *testing.T) {
	engine, rec := newTestEngine(t)
	require.NoError(t, engine.Load("/a.mp3"))
	require.NoError(t, engine.Play())
	rec.reset()

	require.NoError(t, engine.Load("/b.mp3"))

	assert.Equal(t, []domain.EventType{
		domain.EventEngineState,
		domain.EventMediaStatus,
		domain.EventMediaStatus,
		domain.EventEngineDuration,
	}, rec.types())
	assert.Equal(t, domain.EngineStopped, rec.events[0].(domain.EngineStateEvent).State)
}

func TestTransport(t *testing.T) {
	engine, rec := newTestEngine(t)
	require.NoError(t, engine.Load("/a.mp3"))
	rec.reset()

	require.NoError(t, engine.Play())
	assert.Equal(t, domain.EnginePlaying, engine.State())

	// Repeated play is not reported again
	require.NoError(t, engine.Play())

	require.NoError(t, engine.Pause())
	assert.Equal(t, domain.EnginePaused, engine.State())

	require.NoError(t, engine.Stop())
	assert.Equal(t, domain.EngineStopped, engine.State())

	require.Len(t, rec.events, 3)
	assert.Equal(t, domain.EnginePlaying, rec.events[0].(domain.EngineStateEvent).State)
	assert.Equal(t, domain.EnginePaused, rec.events[1].(domain.EngineStateEvent).State)
	assert.Equal(t, domain.EngineStopped, rec.events[2].(domain.EngineStateEvent).State)
}

func TestPlay_NothingLoaded(t *testing.T) {
	engine, _ := newTestEngine(t)

	assert.ErrorIs(t, engine.Play(), domain.ErrNoTrackLoaded)
	assert.ErrorIs(t, engine.Seek(10), domain.ErrNoTrackLoaded)
}

func TestSeek_Clamps(t *testing.T) {
	engine, rec := newTestEngine(t)
	engine.SetDuration("/a.mp3", 1000)
	require.NoError(t, engine.Load("/a.mp3"))

	require.NoError(t, engine.Seek(5000))
	assert.Equal(t, int64(1000), rec.last().(domain.EnginePositionEvent).Position)

	require.NoError(t, engine.Seek(-20))
	assert.Equal(t, int64(0), engine.Position())
}

func TestSetVolume(t *testing.T) {
	engine, _ := newTestEngine(t)

	require.NoError(t, engine.SetVolume(0.25))
	assert.InDelta(t, 0.25, engine.Volume(), 1e-9)

	assert.ErrorIs(t, engine.SetVolume(1.5), domain.ErrInvalidVolume)
	assert.ErrorIs(t, engine.SetVolume(-0.1), domain.ErrInvalidVolume)
	assert.InDelta(t, 0.25, engine.Volume(), 1e-9)
}

func TestAdvance_TicksAndEndOfMedia(t *testing.T) {
	engine, rec := newTestEngine(t)
	engine.SetDuration("/a.mp3", 1000)
	engine.SetTick(400)
	require.NoError(t, engine.Load("/a.mp3"))
	require.NoError(t, engine.Play())
	rec.reset()

	engine.Advance(500)
	require.Len(t, rec.events, 2)
	assert.Equal(t, int64(400), rec.events[0].(domain.EnginePositionEvent).Position)
	assert.Equal(t, int64(500), rec.events[1].(domain.EnginePositionEvent).Position)
	assert.Equal(t, domain.EnginePlaying, engine.State())

	rec.reset()
	engine.Advance(10_000)

	assert.Equal(t, []domain.EventType{
		domain.EventEnginePosition,
		domain.EventMediaStatus,
		domain.EventEngineState,
	}, rec.types())
	assert.Equal(t, int64(900), rec.events[0].(domain.EnginePositionEvent).Position)
	assert.Equal(t, domain.MediaEnded, rec.events[1].(domain.MediaStatusEvent).Status)
	assert.Equal(t, domain.EngineStopped, engine.State())
}

func TestAdvance_IgnoredWhenNotPlaying(t *testing.T) {
	engine, rec := newTestEngine(t)
	require.NoError(t, engine.Load("/a.mp3"))
	rec.reset()

	engine.Advance(1000)

	assert.Empty(t, rec.events)
}

func TestFail(t *testing.T) {
	engine, rec := newTestEngine(t)
	require.NoError(t, engine.Load("/a.mp3"))
	require.NoError(t, engine.Play())
	rec.reset()

	engine.Fail("device lost")

	require.Len(t, rec.events, 1)
	assert.Equal(t, "device lost", rec.events[0].(domain.EngineErrorEvent).Message)
	assert.Equal(t, domain.EngineStopped, engine.State())
	assert.ErrorIs(t, engine.Play(), domain.ErrNoTrackLoaded)
}

func TestCalls(t *testing.T) {
	engine, _ := newTestEngine(t)

	require.NoError(t, engine.Load("/a.mp3"))
	require.NoError(t, engine.Play())
	require.NoError(t, engine.Seek(0))
	require.NoError(t, engine.Play())

	assert.Equal(t, []string{"load /a.mp3", "play", "seek 0", "play"}, engine.Calls())
	assert.Equal(t, 2, engine.CallCount("play"))
	assert.Equal(t, 1, engine.CallCount("load"))

	engine.ResetCalls()
	assert.Empty(t, engine.Calls())
}

func TestNoSink(t *testing.T) {
	engine := NewEngine(nil)

	assert.NotPanics(t, func() {
		require.NoError(t, engine.Load("/a.mp3"))
		require.NoError(t, engine.Play())
		engine.Advance(DefaultDuration)
	})
}
