package config

import (
	"errors"
	"io/fs"
	"math"
	"path/filepath"
	"sync"

	"github.com/tejashwikalptaru/tunelib/internal/domain"
	"github.com/tejashwikalptaru/tunelib/internal/ports"
)

// PreferenceFile implements ports.PreferencesRepository on the [playback]
// section of a config file. Saving rewrites the file as it is on disk, so
// environment overrides never leak into it.
type PreferenceFile struct {
	path string
	mu   sync.Mutex
}

// NewPreferenceFile creates a repository over the config file at path.
func NewPreferenceFile(path string) *PreferenceFile {
	return &PreferenceFile{path: path}
}

// LoadPlayback reads the saved playback settings.
func (p *PreferenceFile) LoadPlayback() (domain.PlaybackPrefs, error) {
	p.mu.Lock()
	defer p.mu.Unlock()

	cfg, err := read(p.path)
	if errors.Is(err, fs.ErrNotExist) {
		return domain.DefaultPlaybackPrefs(), nil
	}
	if err != nil {
		return domain.DefaultPlaybackPrefs(), err
	}
	return cfg.PlaybackPrefs(), nil
}

// SavePlayback stores the playback settings, keeping the rest of the file.
func (p *PreferenceFile) SavePlayback(prefs domain.PlaybackPrefs) error {
	if prefs.Volume < 0 || prefs.Volume > 1 {
		return domain.ErrInvalidVolume
	}

	p.mu.Lock()
	defer p.mu.Unlock()

	cfg, err := read(p.path)
	if errors.Is(err, fs.ErrNotExist) {
		cfg = Default(filepath.Dir(p.path))
	} else if err != nil {
		return err
	}

	cfg.SetPlaybackPrefs(prefs)
	return cfg.Save(p.path)
}

// PlaybackPrefs converts the [playback] section.
func (c *Config) PlaybackPrefs() domain.PlaybackPrefs {
	volume := min(max(c.Playback.Volume, 0), 100)
	return domain.PlaybackPrefs{
		Volume:  float64(volume) / 100,
		Shuffle: c.Playback.Shuffle,
		Repeat:  c.Playback.Repeat,
	}
}

// SetPlaybackPrefs stores prefs in the [playback] section.
func (c *Config) SetPlaybackPrefs(prefs domain.PlaybackPrefs) {
	c.Playback = PlaybackConfig{
		Volume:  int(math.Round(prefs.Volume * 100)),
		Shuffle: prefs.Shuffle,
		Repeat:  prefs.Repeat,
	}
}

var _ ports.PreferencesRepository = (*PreferenceFile)(nil)
