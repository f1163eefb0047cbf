// Package mock provides a simulated playback engine.
// It reports media status, position, duration and transport state through the
// event sink the way a real engine would, without decoding or playing audio.
package mock

import (
	"fmt"
	"log/slog"
	"slices"
	"strings"
	"sync"

	"github.com/tejashwikalptaru/tunelib/internal/domain"
	"github.com/tejashwikalptaru/tunelib/internal/ports"
)

const (
	// DefaultDuration is the length of media with no configured duration (3 minutes).
	DefaultDuration int64 = 3 * 60 * 1000

	// DefaultTick is the position reporting cadence used by Advance.
	DefaultTick int64 = 250
)

// Engine is an in-memory implementation of ports.PlaybackEngine.
// Events are collected under the lock and handed to the sink after it is released.
//
// Thread-safety: This implementation is thread-safe.
type Engine struct {
	logger *slog.Logger

	mu   sync.Mutex
	sink ports.EventSink

	// Media state
	path     string
	loaded   bool
	state    domain.EngineState
	position int64
	duration int64
	volume   float64

	// Behavior configuration (for testing error scenarios)
	durations map[string]int64
	invalid   map[string]bool
	failLoad  bool
	tick      int64

	calls []string
}

// NewEngine creates a simulated engine. A nil logger discards engine diagnostics.
func NewEngine(logger *slog.Logger) *Engine {
	if logger == nil {
		logger = slog.New(slog.DiscardHandler)
	}
	return &Engine{
		logger:    logger.With(slog.String("adapter", "mock-engine")),
		volume:    1.0,
		durations: make(map[string]int64),
		invalid:   make(map[string]bool),
		tick:      DefaultTick,
	}
}

// SetEventSink installs the receiver of engine events.
func (m *Engine) SetEventSink(sink ports.EventSink) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.sink = sink
}

// SetFailLoad makes Load return an error without emitting anything.
func (m *Engine) SetFailLoad(fail bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.failLoad = fail
}

// SetInvalidMedia marks paths the engine will report as invalid on load.
func (m *Engine) SetInvalidMedia(paths ...string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, p := range paths {
		m.invalid[p] = true
	}
}

// SetDuration configures the media length reported for path.
func (m *Engine) SetDuration(path string, ms int64) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.durations[path] = ms
}

// SetTick changes the position reporting cadence used by Advance.
func (m *Engine) SetTick(ms int64) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if ms > 0 {
		m.tick = ms
	}
}

// Load reports loading, then ready and the duration, or invalid for media
// marked with SetInvalidMedia. Loading over active playback stops it first.
func (m *Engine) Load(path string) error {
	m.mu.Lock()
	m.record("load " + path)

	if m.failLoad {
		m.mu.Unlock()
		return domain.NewMediaError(path, "simulated load failure", nil)
	}
	if path == "" {
		m.mu.Unlock()
		return domain.NewMediaError(path, "empty media path", nil)
	}

	var events []domain.Event
	if m.state != domain.EngineStopped {
		m.state = domain.EngineStopped
		events = append(events, domain.NewEngineStateEvent(domain.EngineStopped))
	}

	m.path = path
	m.position = 0
	m.loaded = false
	m.duration = 0
	events = append(events, domain.NewMediaStatusEvent(domain.MediaLoading, path))

	if m.invalid[path] {
		events = append(events, domain.NewMediaStatusEvent(domain.MediaInvalid, path))
	} else {
		m.loaded = true
		m.duration = DefaultDuration
		if d, ok := m.durations[path]; ok {
			m.duration = d
		}
		events = append(events,
			domain.NewMediaStatusEvent(domain.MediaReady, path),
			domain.NewEngineDurationEvent(m.duration))
	}

	m.emit(events)
	return nil
}

// Play starts or resumes playback. Playing again is not reported twice.
func (m *Engine) Play() error {
	m.mu.Lock()
	m.record("play")

	if !m.loaded {
		m.mu.Unlock()
		return domain.ErrNoTrackLoaded
	}
	m.emit(m.transition(domain.EnginePlaying))
	return nil
}

// Pause pauses active playback.
func (m *Engine) Pause() error {
	m.mu.Lock()
	m.record("pause")

	if m.state != domain.EnginePlaying {
		m.mu.Unlock()
		return nil
	}
	m.emit(m.transition(domain.EnginePaused))
	return nil
}

// Stop stops playback and rewinds to the start.
func (m *Engine) Stop() error {
	m.mu.Lock()
	m.record("stop")

	m.position = 0
	m.emit(m.transition(domain.EngineStopped))
	return nil
}

// Seek moves the position, clamped to the media length, and reports it.
func (m *Engine) Seek(positionMs int64) error {
	m.mu.Lock()
	m.record(fmt.Sprintf("seek %d", positionMs))

	if !m.loaded {
		m.mu.Unlock()
		return domain.ErrNoTrackLoaded
	}
	m.position = min(max(positionMs, 0), m.duration)
	m.emit([]domain.Event{domain.NewEnginePositionEvent(m.position)})
	return nil
}

// SetVolume sets the output volume (0.0 to 1.0).
func (m *Engine) SetVolume(volume float64) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.record(fmt.Sprintf("volume %.2f", volume))

	if volume < 0.0 || volume > 1.0 {
		return domain.ErrInvalidVolume
	}
	m.volume = volume
	return nil
}

// Advance simulates ms of playback: position ticks at the configured cadence and,
// on reaching the end of the media, an ended status followed by the stopped state.
// Nothing happens unless the engine is playing.
func (m *Engine) Advance(ms int64) {
	m.mu.Lock()
	if m.state != domain.EnginePlaying || ms <= 0 {
		m.mu.Unlock()
		return
	}

	var events []domain.Event
	target := m.position + ms
	for m.position < target {
		next := min(m.position+m.tick, target)
		if next >= m.duration {
			m.state = domain.EngineStopped
			m.position = 0
			events = append(events,
				domain.NewMediaStatusEvent(domain.MediaEnded, m.path),
				domain.NewEngineStateEvent(domain.EngineStopped))
			break
		}
		m.position = next
		events = append(events, domain.NewEnginePositionEvent(m.position))
	}
	m.emit(events)
}

// Fail drops the loaded media and reports an engine error. The transport is
// torn down without a separate stopped report.
func (m *Engine) Fail(message string) {
	m.mu.Lock()
	m.loaded = false
	m.state = domain.EngineStopped
	m.position = 0
	m.emit([]domain.Event{domain.NewEngineErrorEvent(message)})
}

// transition changes the transport state and returns the event to report, if any.
// Caller must hold the lock.
func (m *Engine) transition(state domain.EngineState) []domain.Event {
	if m.state == state {
		return nil
	}
	m.state = state
	return []domain.Event{domain.NewEngineStateEvent(state)}
}

// emit releases the lock and delivers events. Caller must hold the lock.
func (m *Engine) emit(events []domain.Event) {
	sink := m.sink
	m.mu.Unlock()

	if sink == nil {
		return
	}
	for _, ev := range events {
		m.logger.Debug("engine event", slog.String("event_type", string(ev.Type())))
		sink(ev)
	}
}

func (m *Engine) record(call string) {
	m.calls = append(m.calls, call)
}

// State returns the transport state.
func (m *Engine) State() domain.EngineState {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.state
}

// Position returns the playback position in milliseconds.
func (m *Engine) Position() int64 {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.position
}

// Path returns the path of the loaded media.
func (m *Engine) Path() string {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.path
}

// Volume returns the output volume.
func (m *Engine) Volume() float64 {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.volume
}

// Calls returns every call received so far, e.g. "load /a.mp3", "play", "seek 0".
func (m *Engine) Calls() []string {
	m.mu.Lock()
	defer m.mu.Unlock()
	return slices.Clone(m.calls)
}

// CallCount counts received calls whose method (first word) is method.
func (m *Engine) CallCount(method string) int {
	m.mu.Lock()
	defer m.mu.Unlock()
	n := 0
	for _, c := range m.calls {
		if name, _, _ := strings.Cut(c, " "); name == method {
			n++
		}
	}
	return n
}

// ResetCalls forgets the recorded calls.
func (m *Engine) ResetCalls() {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.calls = nil
}

var _ ports.PlaybackEngine = (*Engine)(nil)
