// Package domain defines events for the event-driven architecture.
// Engine events feed the queue controller's mailbox; the rest are published
// on the event bus for observers.
package domain

import (
	"time"
)

// Event is the base interface for all events in the system.
// All events must implement this interface to be published via the event bus.
type Event interface {
	// Type returns the event type identifier
	Type() EventType

	// Timestamp returns when the event occurred
	Timestamp() time.Time
}

// EventType is a string identifier for different event types.
type EventType string

// Event type constants define all possible events in the system.
const (
	// Engine events (engine -> controller mailbox)
	EventMediaStatus    EventType = "engine.media_status"
	EventEnginePosition EventType = "engine.position"
	EventEngineDuration EventType = "engine.duration"
	EventEngineState    EventType = "engine.state"
	EventEngineError    EventType = "engine.error"

	// Queue events (controller -> observers)
	EventTrackChanged  EventType = "queue.track_changed"
	EventIndexChanged  EventType = "queue.index_changed"
	EventStateChanged  EventType = "queue.state_changed"
	EventProgress      EventType = "queue.progress"
	EventMediaError    EventType = "queue.media_error"
	EventModesChanged  EventType = "queue.modes_changed"
	EventVolumeChanged EventType = "queue.volume_changed"

	// Library events
	EventPlayRecorded      EventType = "library.play_recorded"
	EventTrackImported     EventType = "library.track_imported"
	EventTrackRemoved      EventType = "library.track_removed"
	EventProjectionRebuilt EventType = "library.projection_rebuilt"
	EventPlaylistUpdated   EventType = "playlist.updated"

	// Import batch events
	EventImportStarted   EventType = "import.started"
	EventImportProgress  EventType = "import.progress"
	EventImportCompleted EventType = "import.completed"
)

// EventHandler is a function that handles events.
type EventHandler func(event Event)

// SubscriptionID uniquely identifies an event subscription.
type SubscriptionID string

// baseEvent provides common event functionality.
// All concrete events should embed this struct.
type baseEvent struct {
	timestamp time.Time
}

// Timestamp returns when the event occurred.
func (e baseEvent) Timestamp() time.Time {
	return e.timestamp
}

// newBaseEvent creates a new base event with the current timestamp.
func newBaseEvent() baseEvent {
	return baseEvent{timestamp: time.Now()}
}

// MediaStatusEvent is emitted by an engine when the load status changes.
type MediaStatusEvent struct {
	baseEvent
	Status MediaStatus
	Path   string
}

// Type returns the event type.
func (e MediaStatusEvent) Type() EventType {
	return EventMediaStatus
}

// NewMediaStatusEvent creates a new MediaStatusEvent.
func NewMediaStatusEvent(status MediaStatus, path string) MediaStatusEvent {
	return MediaStatusEvent{
		baseEvent: newBaseEvent(),
		Status:    status,
		Path:      path,
	}
}

// EnginePositionEvent is emitted on every engine position tick.
type EnginePositionEvent struct {
	baseEvent
	Position int64 // milliseconds
}

// Type returns the event type.
func (e EnginePositionEvent) Type() EventType {
	return EventEnginePosition
}

// NewEnginePositionEvent creates a new EnginePositionEvent.
func NewEnginePositionEvent(position int64) EnginePositionEvent {
	return EnginePositionEvent{
		baseEvent: newBaseEvent(),
		Position:  position,
	}
}

// EngineDurationEvent is emitted once the engine knows the media length.
type EngineDurationEvent struct {
	baseEvent
	Duration int64 // milliseconds
}

// Type returns the event type.
func (e EngineDurationEvent) Type() EventType {
	return EventEngineDuration
}

// NewEngineDurationEvent creates a new EngineDurationEvent.
func NewEngineDurationEvent(duration int64) EngineDurationEvent {
	return EngineDurationEvent{
		baseEvent: newBaseEvent(),
		Duration:  duration,
	}
}

// EngineStateEvent is emitted when the engine transport state changes.
type EngineStateEvent struct {
	baseEvent
	State EngineState
}

// Type returns the event type.
func (e EngineStateEvent) Type() EventType {
	return EventEngineState
}

// NewEngineStateEvent creates a new EngineStateEvent.
func NewEngineStateEvent(state EngineState) EngineStateEvent {
	return EngineStateEvent{
		baseEvent: newBaseEvent(),
		State:     state,
	}
}

// EngineErrorEvent is emitted when the engine fails.
type EngineErrorEvent struct {
	baseEvent
	Message string
}

// Type returns the event type.
func (e EngineErrorEvent) Type() EventType {
	return EventEngineError
}

// NewEngineErrorEvent creates a new EngineErrorEvent.
func NewEngineErrorEvent(message string) EngineErrorEvent {
	return EngineErrorEvent{
		baseEvent: newBaseEvent(),
		Message:   message,
	}
}

// TrackChangedEvent is published when the current track changes or finishes loading.
type TrackChangedEvent struct {
	baseEvent
	Track Track
	Index int
}

// Type returns the event type.
func (e TrackChangedEvent) Type() EventType {
	return EventTrackChanged
}

// NewTrackChangedEvent creates a new TrackChangedEvent.
func NewTrackChangedEvent(track Track, index int) TrackChangedEvent {
	return TrackChangedEvent{
		baseEvent: newBaseEvent(),
		Track:     track,
		Index:     index,
	}
}

// IndexChangedEvent is published when the current index moves, including to NoIndex.
type IndexChangedEvent struct {
	baseEvent
	OldIndex int
	NewIndex int
}

// Type returns the event type.
func (e IndexChangedEvent) Type() EventType {
	return EventIndexChanged
}

// NewIndexChangedEvent creates a new IndexChangedEvent.
func NewIndexChangedEvent(oldIndex, newIndex int) IndexChangedEvent {
	return IndexChangedEvent{
		baseEvent: newBaseEvent(),
		OldIndex:  oldIndex,
		NewIndex:  newIndex,
	}
}

// StateChangedEvent is published when the mirrored playback state changes.
type StateChangedEvent struct {
	baseEvent
	OldState PlaybackState
	NewState PlaybackState
}

// Type returns the event type.
func (e StateChangedEvent) Type() EventType {
	return EventStateChanged
}

// NewStateChangedEvent creates a new StateChangedEvent.
func NewStateChangedEvent(oldState, newState PlaybackState) StateChangedEvent {
	return StateChangedEvent{
		baseEvent: newBaseEvent(),
		OldState:  oldState,
		NewState:  newState,
	}
}

// ProgressEvent is published for position and duration updates.
type ProgressEvent struct {
	baseEvent
	Position int64 // milliseconds
	Duration int64 // milliseconds
}

// Type returns the event type.
func (e ProgressEvent) Type() EventType {
	return EventProgress
}

// NewProgressEvent creates a new ProgressEvent.
func NewProgressEvent(position, duration int64) ProgressEvent {
	return ProgressEvent{
		baseEvent: newBaseEvent(),
		Position:  position,
		Duration:  duration,
	}
}

// MediaErrorEvent is published when a track cannot be loaded or played.
type MediaErrorEvent struct {
	baseEvent
	Track Track
	Err   error
}

// Type returns the event type.
func (e MediaErrorEvent) Type() EventType {
	return EventMediaError
}

// NewMediaErrorEvent creates a new MediaErrorEvent.
func NewMediaErrorEvent(track Track, err error) MediaErrorEvent {
	return MediaErrorEvent{
		baseEvent: newBaseEvent(),
		Track:     track,
		Err:       err,
	}
}

// ModesChangedEvent is published when shuffle or repeat is toggled.
type ModesChangedEvent struct {
	baseEvent
	Shuffle bool
	Repeat  bool
}

// Type returns the event type.
func (e ModesChangedEvent) Type() EventType {
	return EventModesChanged
}

// NewModesChangedEvent creates a new ModesChangedEvent.
func NewModesChangedEvent(shuffle, repeat bool) ModesChangedEvent {
	return ModesChangedEvent{
		baseEvent: newBaseEvent(),
		Shuffle:   shuffle,
		Repeat:    repeat,
	}
}

// VolumeChangedEvent is published when the volume changes.
type VolumeChangedEvent struct {
	baseEvent
	Volume float64
}

// Type returns the event type.
func (e VolumeChangedEvent) Type() EventType {
	return EventVolumeChanged
}

// NewVolumeChangedEvent creates a new VolumeChangedEvent.
func NewVolumeChangedEvent(volume float64) VolumeChangedEvent {
	return VolumeChangedEvent{
		baseEvent: newBaseEvent(),
		Volume:    volume,
	}
}

// PlayRecordedEvent is published after a play lands in history.
type PlayRecordedEvent struct {
	baseEvent
	TrackID int64
}

// Type returns the event type.
func (e PlayRecordedEvent) Type() EventType {
	return EventPlayRecorded
}

// NewPlayRecordedEvent creates a new PlayRecordedEvent.
func NewPlayRecordedEvent(trackID int64) PlayRecordedEvent {
	return PlayRecordedEvent{
		baseEvent: newBaseEvent(),
		TrackID:   trackID,
	}
}

// TrackImportedEvent is published when a file is imported or refreshed.
type TrackImportedEvent struct {
	baseEvent
	Track Track
}

// Type returns the event type.
func (e TrackImportedEvent) Type() EventType {
	return EventTrackImported
}

// NewTrackImportedEvent creates a new TrackImportedEvent.
func NewTrackImportedEvent(track Track) TrackImportedEvent {
	return TrackImportedEvent{
		baseEvent: newBaseEvent(),
		Track:     track,
	}
}

// TrackRemovedEvent is published when a track is deleted from the catalog.
type TrackRemovedEvent struct {
	baseEvent
	TrackID int64
	Path    string
}

// Type returns the event type.
func (e TrackRemovedEvent) Type() EventType {
	return EventTrackRemoved
}

// NewTrackRemovedEvent creates a new TrackRemovedEvent.
func NewTrackRemovedEvent(trackID int64, path string) TrackRemovedEvent {
	return TrackRemovedEvent{
		baseEvent: newBaseEvent(),
		TrackID:   trackID,
		Path:      path,
	}
}

// ProjectionRebuiltEvent is published after the current list is replaced.
type ProjectionRebuiltEvent struct {
	baseEvent
	Query TrackQuery
	Count int
}

// Type returns the event type.
func (e ProjectionRebuiltEvent) Type() EventType {
	return EventProjectionRebuilt
}

// NewProjectionRebuiltEvent creates a new ProjectionRebuiltEvent.
func NewProjectionRebuiltEvent(query TrackQuery, count int) ProjectionRebuiltEvent {
	return ProjectionRebuiltEvent{
		baseEvent: newBaseEvent(),
		Query:     query,
		Count:     count,
	}
}

// PlaylistUpdatedEvent is published when a playlist or its membership changes.
type PlaylistUpdatedEvent struct {
	baseEvent
	PlaylistID int64
	Deleted    bool
}

// Type returns the event type.
func (e PlaylistUpdatedEvent) Type() EventType {
	return EventPlaylistUpdated
}

// NewPlaylistUpdatedEvent creates a new PlaylistUpdatedEvent.
func NewPlaylistUpdatedEvent(playlistID int64, deleted bool) PlaylistUpdatedEvent {
	return PlaylistUpdatedEvent{
		baseEvent:  newBaseEvent(),
		PlaylistID: playlistID,
		Deleted:    deleted,
	}
}

// ImportStartedEvent is published when an import batch begins.
type ImportStartedEvent struct {
	baseEvent
	BatchID    string
	TotalFiles int
}

// Type returns the event type.
func (e ImportStartedEvent) Type() EventType {
	return EventImportStarted
}

// NewImportStartedEvent creates a new ImportStartedEvent.
func NewImportStartedEvent(batchID string, totalFiles int) ImportStartedEvent {
	return ImportStartedEvent{
		baseEvent:  newBaseEvent(),
		BatchID:    batchID,
		TotalFiles: totalFiles,
	}
}

// ImportProgressEvent is published after each file of a batch.
type ImportProgressEvent struct {
	baseEvent
	BatchID  string
	Progress ImportProgress
}

// Type returns the event type.
func (e ImportProgressEvent) Type() EventType {
	return EventImportProgress
}

// NewImportProgressEvent creates a new ImportProgressEvent.
func NewImportProgressEvent(batchID string, progress ImportProgress) ImportProgressEvent {
	return ImportProgressEvent{
		baseEvent: newBaseEvent(),
		BatchID:   batchID,
		Progress:  progress,
	}
}

// ImportCompletedEvent is published when an import batch finishes or is canceled.
type ImportCompletedEvent struct {
	baseEvent
	BatchID   string
	Imported  int
	Skipped   int
	Cancelled bool
	Duration  time.Duration
}

// Type returns the event type.
func (e ImportCompletedEvent) Type() EventType {
	return EventImportCompleted
}

// NewImportCompletedEvent creates a new ImportCompletedEvent.
func NewImportCompletedEvent(batchID string, imported, skipped int, cancelled bool, duration time.Duration) ImportCompletedEvent {
	return ImportCompletedEvent{
		baseEvent: newBaseEvent(),
		BatchID:   batchID,
		Imported:  imported,
		Skipped:   skipped,
		Cancelled: cancelled,
		Duration:  duration,
	}
}
