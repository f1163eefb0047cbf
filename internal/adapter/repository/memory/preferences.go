// Package memory provides in-memory repositories for tests and throwaway sessions.
package memory

import (
	"sync"

	"github.com/tejashwikalptaru/tunelib/internal/domain"
	"github.com/tejashwikalptaru/tunelib/internal/ports"
)

// PreferencesRepository implements ports.PreferencesRepository in memory.
//
// Thread-safe: All operations protected by sync.RWMutex.
type PreferencesRepository struct {
	prefs domain.PlaybackPrefs
	saves int
	err   error
	mu    sync.RWMutex
}

// NewPreferencesRepository creates a repository holding the default settings.
func NewPreferencesRepository() *PreferencesRepository {
	return &PreferencesRepository{prefs: domain.DefaultPlaybackPrefs()}
}

// LoadPlayback returns the stored settings.
func (r *PreferencesRepository) LoadPlayback() (domain.PlaybackPrefs, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.prefs, nil
}

// SavePlayback stores the settings.
func (r *PreferencesRepository) SavePlayback(prefs domain.PlaybackPrefs) error {
	if prefs.Volume < 0 || prefs.Volume > 1 {
		return domain.ErrInvalidVolume
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	if r.err != nil {
		return r.err
	}
	r.prefs = prefs
	r.saves++
	return nil
}

// SetSaveError makes every following save fail with err (nil clears it).
func (r *PreferencesRepository) SetSaveError(err error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.err = err
}

// Saves returns how many saves succeeded.
func (r *PreferencesRepository) Saves() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.saves
}

// Verify interface implementation
var _ ports.PreferencesRepository = (*PreferencesRepository)(nil)
