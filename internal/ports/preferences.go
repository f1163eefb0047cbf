package ports

import "github.com/tejashwikalptaru/tunelib/internal/domain"

// PreferencesRepository persists the playback settings between runs.
//
// Implementations:
//   - config.PreferenceFile: the [playback] section of the TOML config file
//   - memory.PreferencesRepository: in-memory, for tests and throwaway sessions
type PreferencesRepository interface {
	// LoadPlayback returns the saved settings, or the defaults when nothing
	// was saved yet.
	LoadPlayback() (domain.PlaybackPrefs, error)

	// SavePlayback persists the settings.
	SavePlayback(prefs domain.PlaybackPrefs) error
}
