package service

import (
	"context"
	"errors"
	"log/slog"
	"math/rand/v2"
	"os"
	"sync"

	"github.com/tejashwikalptaru/tunelib/internal/catalog"
	"github.com/tejashwikalptaru/tunelib/internal/domain"
	"github.com/tejashwikalptaru/tunelib/internal/ports"
)

// softLoopWindow is how close to the end a position tick must be for repeat
// to restart the track without waiting for the engine to stop.
const softLoopWindow int64 = 100

// TrackRefresher re-reads a track after the engine finished loading it, typically
// extracting metadata and persisting it. It must not call back into the controller.
type TrackRefresher func(ctx context.Context, track domain.Track) (domain.Track, error)

// QueueController decides what plays next over the current projection and keeps
// that decision consistent with the engine.
//
// The engine reports back only through Post, which queues the event in a mailbox.
// Queued events are applied one at a time by handle, either from Run or from
// ProcessPending. Observers are notified through the event bus after the
// controller lock is released, so handlers may query the controller.
//
// Thread-safety: all exported methods are safe for concurrent use.
type QueueController struct {
	// Dependencies (injected)
	logger     *slog.Logger
	engine     ports.PlaybackEngine
	projection *catalog.Projection
	recorder   ports.PlayRecorder
	bus        ports.EventBus

	// Optional collaborators
	refresher  TrackRefresher
	fileExists func(path string) bool
	rng        *rand.Rand

	// Queue state
	mu           sync.Mutex
	current      domain.Track
	currentIndex int
	state        domain.PlaybackState
	shuffle      bool
	repeat       bool
	seeking      bool
	loaded       bool
	autoPlay     bool
	ended        bool // the engine reported the end of the current media
	playRecorded bool // the current load has been recorded in history
	position     int64
	duration     int64
	volume       float64
	outbox       []domain.Event

	// Mailbox
	mailMu  sync.Mutex
	pending []domain.Event
	notify  chan struct{}
	drainMu sync.Mutex
}

// NewQueueController creates a controller and installs it as the engine's event sink.
func NewQueueController(
	logger *slog.Logger,
	engine ports.PlaybackEngine,
	projection *catalog.Projection,
	recorder ports.PlayRecorder,
	bus ports.EventBus,
) *QueueController {
	c := &QueueController{
		logger:       logger.With(slog.String("service", "queue")),
		engine:       engine,
		projection:   projection,
		recorder:     recorder,
		bus:          bus,
		fileExists:   regularFileExists,
		rng:          rand.New(rand.NewPCG(rand.Uint64(), rand.Uint64())),
		current:      domain.NoTrack(),
		currentIndex: domain.NoIndex,
		state:        domain.StateStopped,
		volume:       0.8,
		notify:       make(chan struct{}, 1),
	}
	engine.SetEventSink(c.Post)

	c.logger.Debug("queue controller initialized")
	return c
}

// SetRefresher installs the hook run when the engine reports the current track ready.
func (c *QueueController) SetRefresher(refresher TrackRefresher) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.refresher = refresher
}

// SetRandSeed makes shuffle deterministic.
func (c *QueueController) SetRandSeed(seed uint64) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.rng = rand.New(rand.NewPCG(seed, seed))
}

// SetFileChecker replaces the check run before handing a path to the engine.
func (c *QueueController) SetFileChecker(exists func(path string) bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.fileExists = exists
}

func regularFileExists(path string) bool {
	info, err := os.Stat(path)
	return err == nil && !info.IsDir()
}

// unlockAndPublish releases the controller lock, then publishes what the
// locked section queued.
func (c *QueueController) unlockAndPublish() {
	events := c.outbox
	c.outbox = nil
	c.mu.Unlock()

	for _, ev := range events {
		c.bus.Publish(ev)
	}
}

func (c *QueueController) emit(ev domain.Event) {
	c.outbox = append(c.outbox, ev)
}

func (c *QueueController) setState(state domain.PlaybackState) {
	if c.state == state {
		return
	}
	old := c.state
	c.state = state
	c.emit(domain.NewStateChangedEvent(old, state))
}

func (c *QueueController) setIndex(index int) {
	if c.currentIndex == index {
		return
	}
	old := c.currentIndex
	c.currentIndex = index
	c.emit(domain.NewIndexChangedEvent(old, index))
}

// SetTrack makes track current and starts loading it, without playing.
// The index is resolved by id in the projection.
func (c *QueueController) SetTrack(track domain.Track) error {
	if !track.Valid() {
		return domain.ErrInvalidID
	}

	c.mu.Lock()
	defer c.unlockAndPublish()
	return c.setTrack(track, c.projection.IndexOf(track.ID))
}

// setTrack stops the engine, resets the load flags and hands the file to the engine.
// A missing file is reported and never reaches the engine. Caller must hold the lock.
func (c *QueueController) setTrack(track domain.Track, index int) error {
	c.stopEngine()
	c.loaded = false
	c.autoPlay = false
	c.playRecorded = false
	c.position = 0
	c.duration = track.Duration

	c.current = track
	c.setIndex(index)
	c.emit(domain.NewTrackChangedEvent(track, index))

	if !c.fileExists(track.FilePath) {
		err := domain.NewMediaError(track.FilePath, "file does not exist", domain.ErrFileNotFound)
		c.logger.Warn("track file missing", slog.Int64("track_id", track.ID), slog.String("path", track.FilePath))
		c.fail(err)
		return err
	}

	if err := c.engine.Load(track.FilePath); err != nil {
		c.logger.Error("engine rejected track", slog.String("path", track.FilePath), slog.Any("error", err))
		c.fail(err)
		return err
	}

	c.logger.Debug("track loading",
		slog.Int64("track_id", track.ID),
		slog.Int("index", index),
		slog.String("path", track.FilePath))
	return nil
}

// fail reports a media error and resets to Stopped. Caller must hold the lock.
func (c *QueueController) fail(err error) {
	c.ended = false
	c.emit(domain.NewMediaErrorEvent(c.current, err))
	c.setState(domain.StateError)
	c.setState(domain.StateStopped)
	c.loaded = false
	c.autoPlay = false
}

// stopEngine issues a stop. Only an ended report precedes a natural stop, so
// the stop the engine reports back never auto-advances.
func (c *QueueController) stopEngine() {
	c.ended = false
	if err := c.engine.Stop(); err != nil {
		c.logger.Warn("failed to stop engine", slog.Any("error", err))
	}
}

// Play starts or resumes the current track. With no current track it starts
// the first entry of the projection. If the track is still loading the intent
// is latched and play is issued again once the engine reports ready.
func (c *QueueController) Play() error {
	c.mu.Lock()
	defer c.unlockAndPublish()
	return c.play()
}

func (c *QueueController) play() error {
	if !c.current.Valid() {
		first := c.projection.At(0)
		if !first.Valid() {
			return domain.ErrNoTrackLoaded
		}
		if err := c.setTrack(first, 0); err != nil {
			return err
		}
	}
	if !c.loaded {
		c.autoPlay = true
	}
	if err := c.engine.Play(); err != nil {
		if c.autoPlay {
			c.logger.Debug("play deferred until ready", slog.Any("error", err))
			return nil
		}
		return err
	}
	return nil
}

// PlayAt loads and plays the projection entry at index.
func (c *QueueController) PlayAt(index int) error {
	c.mu.Lock()
	defer c.unlockAndPublish()

	track := c.projection.At(index)
	if !track.Valid() {
		return domain.ErrInvalidIndex
	}
	if err := c.setTrack(track, index); err != nil {
		return err
	}
	return c.play()
}

// PlayTrack loads and plays track, resolving its index by id.
func (c *QueueController) PlayTrack(track domain.Track) error {
	if !track.Valid() {
		return domain.ErrInvalidID
	}

	c.mu.Lock()
	defer c.unlockAndPublish()
	if err := c.setTrack(track, c.projection.IndexOf(track.ID)); err != nil {
		return err
	}
	return c.play()
}

// Pause pauses active playback.
func (c *QueueController) Pause() error {
	c.mu.Lock()
	defer c.unlockAndPublish()

	if c.state != domain.StatePlaying {
		return nil
	}
	return c.engine.Pause()
}

// TogglePlayPause pauses when playing and plays otherwise.
func (c *QueueController) TogglePlayPause() error {
	c.mu.Lock()
	defer c.unlockAndPublish()

	if c.state == domain.StatePlaying {
		return c.engine.Pause()
	}
	return c.play()
}

// Stop stops playback. The current track stays selected and nothing auto-advances.
func (c *QueueController) Stop() {
	c.mu.Lock()
	defer c.unlockAndPublish()

	c.autoPlay = false
	c.stopEngine()
}

// Next advances forward. See Advance.
func (c *QueueController) Next() (domain.Track, error) {
	return c.Advance(domain.Next)
}

// Previous advances backward. See Advance.
func (c *QueueController) Previous() (domain.Track, error) {
	return c.Advance(domain.Previous)
}

// Advance moves to the next or previous track and plays it.
//
// With shuffle on, a uniformly random index is picked whatever the direction.
// Otherwise next stops past the end unless repeat is on, and previous always
// wraps to the last track. Stopping returns domain.NoTrack.
func (c *QueueController) Advance(dir domain.Direction) (domain.Track, error) {
	c.mu.Lock()
	defer c.unlockAndPublish()
	return c.advance(dir)
}

func (c *QueueController) advance(dir domain.Direction) (domain.Track, error) {
	count := c.projection.Count()
	if count == 0 {
		// An empty view leaves the current track alone
		return domain.NoTrack(), domain.ErrQueueEmpty
	}

	index := c.nextIndex(dir, count)
	if index == domain.NoIndex {
		c.clearCurrent()
		return domain.NoTrack(), nil
	}

	track := c.projection.At(index)
	if err := c.setTrack(track, index); err != nil {
		return track, err
	}
	return track, c.play()
}

// nextIndex applies the advance rules. Caller must hold the lock.
func (c *QueueController) nextIndex(dir domain.Direction, count int) int {
	if c.shuffle {
		return c.rng.IntN(count)
	}

	switch dir {
	case domain.Previous:
		index := c.currentIndex - 1
		if c.currentIndex == domain.NoIndex || index < 0 {
			return count - 1
		}
		return index
	default:
		index := c.currentIndex + 1
		if index >= count {
			if c.repeat {
				return 0
			}
			return domain.NoIndex
		}
		return index
	}
}

// clearCurrent stops the engine and forgets the current track. Caller must hold the lock.
func (c *QueueController) clearCurrent() {
	c.stopEngine()
	c.loaded = false
	c.autoPlay = false
	c.position = 0
	c.duration = 0
	c.setIndex(domain.NoIndex)
	if c.current.Valid() {
		c.current = domain.NoTrack()
		c.emit(domain.NewTrackChangedEvent(c.current, domain.NoIndex))
	}
	c.setState(domain.StateStopped)
}

// SetShuffle enables or disables shuffle.
func (c *QueueController) SetShuffle(on bool) {
	c.mu.Lock()
	defer c.unlockAndPublish()

	if c.shuffle == on {
		return
	}
	c.shuffle = on
	c.emit(domain.NewModesChangedEvent(c.shuffle, c.repeat))
}

// SetRepeat enables or disables repeat.
func (c *QueueController) SetRepeat(on bool) {
	c.mu.Lock()
	defer c.unlockAndPublish()

	if c.repeat == on {
		return
	}
	c.repeat = on
	c.emit(domain.NewModesChangedEvent(c.shuffle, c.repeat))
}

// SetVolume sets the engine volume (0.0 to 1.0).
func (c *QueueController) SetVolume(volume float64) error {
	if volume < 0.0 || volume > 1.0 {
		return domain.ErrInvalidVolume
	}

	c.mu.Lock()
	defer c.unlockAndPublish()

	if err := c.engine.SetVolume(volume); err != nil {
		return err
	}
	c.volume = volume
	c.emit(domain.NewVolumeChangedEvent(volume))
	return nil
}

// SetVolumePercent sets the volume from a 0-100 scale.
func (c *QueueController) SetVolumePercent(percent int) error {
	volume, err := VolumeFromPercent(percent)
	if err != nil {
		return err
	}
	return c.SetVolume(volume)
}

// BeginSeek latches seeking: engine position reports are ignored until EndSeek.
func (c *QueueController) BeginSeek() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.seeking = true
}

// EndSeek releases the latch and moves playback to positionMs.
func (c *QueueController) EndSeek(positionMs int64) error {
	c.mu.Lock()
	defer c.unlockAndPublish()

	c.seeking = false
	if !c.current.Valid() || !c.loaded {
		return domain.ErrNoTrackLoaded
	}

	positionMs = max(positionMs, 0)
	if c.duration > 0 {
		positionMs = min(positionMs, c.duration)
	}
	if err := c.engine.Seek(positionMs); err != nil {
		return err
	}
	c.position = positionMs
	c.emit(domain.NewProgressEvent(c.position, c.duration))
	return nil
}

// Seek is a BeginSeek immediately followed by EndSeek.
func (c *QueueController) Seek(positionMs int64) error {
	c.BeginSeek()
	return c.EndSeek(positionMs)
}

// Resync re-resolves the current index by id after the projection was rebuilt.
// Playback is never interrupted; a track missing from the new view leaves the
// index unresolved.
func (c *QueueController) Resync() {
	c.mu.Lock()
	defer c.unlockAndPublish()

	c.setIndex(c.projection.IndexOf(c.current.ID))
}

// State returns a snapshot of the controller.
func (c *QueueController) State() domain.QueueState {
	c.mu.Lock()
	defer c.mu.Unlock()

	return domain.QueueState{
		Track:        c.current,
		CurrentIndex: c.currentIndex,
		State:        c.state,
		Shuffle:      c.shuffle,
		Repeat:       c.repeat,
		Seeking:      c.seeking,
		Loaded:       c.loaded,
		Position:     c.position,
		Duration:     c.duration,
		Volume:       c.volume,
	}
}

// Post queues an engine event. It never blocks on the controller and is the
// sink installed on the engine.
func (c *QueueController) Post(event domain.Event) {
	if event == nil {
		return
	}

	c.mailMu.Lock()
	c.pending = append(c.pending, event)
	c.mailMu.Unlock()

	select {
	case c.notify <- struct{}{}:
	default:
	}
}

// ProcessPending applies queued engine events until the mailbox is empty,
// including events raised while handling, and returns how many were applied.
func (c *QueueController) ProcessPending(ctx context.Context) int {
	c.drainMu.Lock()
	defer c.drainMu.Unlock()

	processed := 0
	for {
		c.mailMu.Lock()
		batch := c.pending
		c.pending = nil
		c.mailMu.Unlock()

		if len(batch) == 0 {
			return processed
		}
		for _, ev := range batch {
			c.handle(ctx, ev)
			processed++
		}
	}
}

// Run applies engine events as they arrive until ctx is done.
func (c *QueueController) Run(ctx context.Context) error {
	c.logger.Debug("queue controller running")
	for {
		c.ProcessPending(ctx)

		select {
		case <-ctx.Done():
			c.logger.Debug("queue controller stopped")
			if errors.Is(ctx.Err(), context.Canceled) {
				return nil
			}
			return ctx.Err()
		case <-c.notify:
		}
	}
}

// handle is the single state-transition function for engine events.
func (c *QueueController) handle(ctx context.Context, event domain.Event) {
	c.mu.Lock()
	defer c.unlockAndPublish()

	switch ev := event.(type) {
	case domain.MediaStatusEvent:
		c.onMediaStatus(ctx, ev)
	case domain.EnginePositionEvent:
		c.onPosition(ev.Position)
	case domain.EngineDurationEvent:
		c.duration = ev.Duration
	case domain.EngineStateEvent:
		c.onEngineState(ctx, ev.State)
	case domain.EngineErrorEvent:
		c.logger.Error("engine error", slog.String("message", ev.Message), slog.String("path", c.current.FilePath))
		c.fail(domain.NewMediaError(c.current.FilePath, ev.Message, nil))
	default:
		c.logger.Debug("ignoring event", slog.String("event_type", string(event.Type())))
	}
}

func (c *QueueController) onMediaStatus(ctx context.Context, ev domain.MediaStatusEvent) {
	// Reports about media loaded before the current track are stale
	if ev.Path != "" && ev.Path != c.current.FilePath {
		c.logger.Debug("stale media status", slog.String("path", ev.Path), slog.String("status", ev.Status.String()))
		return
	}

	switch ev.Status {
	case domain.MediaLoading:
		c.loaded = false
		c.setState(domain.StateLoading)

	case domain.MediaReady:
		c.loaded = true
		c.setState(domain.StateReady)
		c.refresh(ctx)

		// The projection may have been rebuilt since the load started
		c.setIndex(c.projection.IndexOf(c.current.ID))
		c.emit(domain.NewTrackChangedEvent(c.current, c.currentIndex))

		if c.autoPlay {
			c.autoPlay = false
			if err := c.engine.Play(); err != nil {
				c.logger.Warn("deferred play failed", slog.Any("error", err))
			}
		}

	case domain.MediaInvalid:
		c.logger.Warn("invalid media", slog.String("path", ev.Path))
		c.fail(domain.NewMediaError(c.current.FilePath, "invalid or unsupported media", domain.ErrUnsupportedFormat))

	case domain.MediaEnded:
		c.ended = true

	case domain.MediaNone:
		c.loaded = false
	}
}

// refresh runs the refresher and adopts the updated track. Caller must hold the lock.
func (c *QueueController) refresh(ctx context.Context) {
	if c.refresher == nil || !c.current.Valid() {
		return
	}

	track, err := c.refresher(ctx, c.current)
	if err != nil {
		c.logger.Warn("failed to refresh track", slog.Int64("track_id", c.current.ID), slog.Any("error", err))
		return
	}
	if track.ID != c.current.ID {
		return
	}
	c.current = track
	if track.Duration > 0 && c.duration == 0 {
		c.duration = track.Duration
	}
	c.projection.Replace(track)
}

func (c *QueueController) onPosition(position int64) {
	if c.seeking {
		return
	}
	c.position = position
	c.emit(domain.NewProgressEvent(position, c.duration))

	if !c.repeat || c.duration <= 0 || position < c.duration-softLoopWindow {
		return
	}
	if c.projection.At(c.currentIndex).ID != c.current.ID {
		return
	}

	c.logger.Debug("soft loop", slog.Int64("track_id", c.current.ID))
	if err := c.engine.Seek(0); err != nil {
		c.logger.Warn("soft loop seek failed", slog.Any("error", err))
		return
	}
	if err := c.engine.Play(); err != nil {
		c.logger.Warn("soft loop play failed", slog.Any("error", err))
	}
}

func (c *QueueController) onEngineState(ctx context.Context, state domain.EngineState) {
	switch state {
	case domain.EnginePlaying:
		c.setState(domain.StatePlaying)
		c.recordPlay(ctx)

	case domain.EnginePaused:
		c.setState(domain.StatePaused)

	case domain.EngineStopped:
		c.setState(domain.StateStopped)
		c.position = 0
		if !c.ended || !c.current.Valid() {
			return
		}
		c.ended = false
		c.onNaturalStop()
	}
}

// onNaturalStop handles the engine reaching the end of the media. Caller must hold the lock.
func (c *QueueController) onNaturalStop() {
	if c.repeat {
		c.logger.Debug("repeating track", slog.Int64("track_id", c.current.ID))
		if err := c.setTrack(c.current, c.currentIndex); err == nil {
			_ = c.play()
		}
		return
	}

	if c.currentIndex != domain.NoIndex && c.currentIndex < c.projection.Count()-1 {
		if _, err := c.advance(domain.Next); err != nil {
			c.logger.Warn("auto advance failed", slog.Any("error", err))
		}
		return
	}

	c.logger.Debug("end of queue")
}

// recordPlay stores one history entry per load. Failures are logged only.
func (c *QueueController) recordPlay(ctx context.Context) {
	if c.playRecorded || !c.current.Valid() || c.recorder == nil {
		return
	}
	c.playRecorded = true

	if err := c.recorder.RecordPlay(ctx, c.current.ID); err != nil {
		c.logger.Warn("failed to record play", slog.Int64("track_id", c.current.ID), slog.Any("error", err))
		return
	}
	c.emit(domain.NewPlayRecordedEvent(c.current.ID))
}
