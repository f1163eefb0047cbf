package service

import (
	"log/slog"
	"sync"

	"github.com/tejashwikalptaru/tunelib/internal/domain"
	"github.com/tejashwikalptaru/tunelib/internal/ports"
)

// PreferenceService keeps the playback settings (volume, shuffle, repeat) in
// step with the queue controller and persists them on Flush.
// All operations are thread-safe via sync.RWMutex.
type PreferenceService struct {
	// Dependencies (injected)
	logger     *slog.Logger
	repository ports.PreferencesRepository
	bus        ports.EventBus

	// Cached preferences and the last persisted copy
	prefs domain.PlaybackPrefs
	saved domain.PlaybackPrefs

	// Concurrency control
	mu sync.RWMutex

	// Event subscriptions
	subs []domain.SubscriptionID
}

// NewPreferenceService creates a new preference service and loads the saved
// settings. A failing load keeps the defaults.
func NewPreferenceService(
	logger *slog.Logger,
	repository ports.PreferencesRepository,
	bus ports.EventBus,
) *PreferenceService {
	s := &PreferenceService{
		logger:     logger.With(slog.String("service", "preferences")),
		repository: repository,
		bus:        bus,
		prefs:      domain.DefaultPlaybackPrefs(),
	}

	if prefs, err := repository.LoadPlayback(); err != nil {
		s.logger.Warn("failed to load preferences, using defaults", slog.Any("error", err))
	} else {
		s.prefs = prefs
	}
	s.saved = s.prefs

	s.subs = append(s.subs,
		bus.Subscribe(domain.EventVolumeChanged, s.handleVolumeChanged),
		bus.Subscribe(domain.EventModesChanged, s.handleModesChanged),
	)

	return s
}

// Playback returns the cached settings.
func (s *PreferenceService) Playback() domain.PlaybackPrefs {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.prefs
}

// Volume returns the saved volume (0.0 to 1.0).
func (s *PreferenceService) Volume() float64 {
	return s.Playback().Volume
}

// SetVolume changes the cached volume.
func (s *PreferenceService) SetVolume(volume float64) error {
	if volume < 0.0 || volume > 1.0 {
		return domain.ErrInvalidVolume
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	s.prefs.Volume = volume
	return nil
}

// SetModes changes the cached shuffle and repeat modes.
func (s *PreferenceService) SetModes(shuffle, repeat bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.prefs.Shuffle = shuffle
	s.prefs.Repeat = repeat
}

// ApplyTo restores the cached settings on a controller.
func (s *PreferenceService) ApplyTo(controller *QueueController) error {
	prefs := s.Playback()

	if err := controller.SetVolume(prefs.Volume); err != nil {
		return err
	}
	controller.SetShuffle(prefs.Shuffle)
	controller.SetRepeat(prefs.Repeat)

	s.logger.Debug("preferences restored",
		slog.Float64("volume", prefs.Volume),
		slog.Bool("shuffle", prefs.Shuffle),
		slog.Bool("repeat", prefs.Repeat))
	return nil
}

// Flush persists the settings if they differ from the saved ones.
func (s *PreferenceService) Flush() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.prefs == s.saved {
		return nil
	}
	if err := s.repository.SavePlayback(s.prefs); err != nil {
		s.logger.Error("failed to save preferences", slog.Any("error", err))
		return err
	}
	s.saved = s.prefs
	s.logger.Debug("preferences saved")
	return nil
}

// ResetToDefaults resets the settings to default values and saves them.
func (s *PreferenceService) ResetToDefaults() error {
	s.mu.Lock()
	s.prefs = domain.DefaultPlaybackPrefs()
	s.mu.Unlock()

	return s.Flush()
}

func (s *PreferenceService) handleVolumeChanged(event domain.Event) {
	if e, ok := event.(domain.VolumeChangedEvent); ok {
		if err := s.SetVolume(e.Volume); err != nil {
			s.logger.Warn("ignoring volume change", slog.Float64("volume", e.Volume), slog.Any("error", err))
		}
	}
}

func (s *PreferenceService) handleModesChanged(event domain.Event) {
	if e, ok := event.(domain.ModesChangedEvent); ok {
		s.SetModes(e.Shuffle, e.Repeat)
	}
}

// Shutdown stops following the controller and persists pending changes.
func (s *PreferenceService) Shutdown() error {
	for _, id := range s.subs {
		s.bus.Unsubscribe(id)
	}
	s.subs = nil
	return s.Flush()
}
