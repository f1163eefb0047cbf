// Package config loads and saves the tunelib configuration file.
package config

import (
	"errors"
	"fmt"
	"io/fs"
	"log/slog"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/BurntSushi/toml"
	"github.com/go-playground/validator/v10"
	"github.com/joho/godotenv"

	"github.com/tejashwikalptaru/tunelib/internal/logger"
)

// FileName is the name of the configuration file inside the config directory.
const FileName = "config.toml"

// Config represents the application configuration.
type Config struct {
	Library   LibraryConfig   `toml:"library"`
	Playback  PlaybackConfig  `toml:"playback"`
	Transcode TranscodeConfig `toml:"transcode"`
	Cover     CoverConfig     `toml:"cover"`
	Log       LogConfig       `toml:"log"`
}

// LibraryConfig locates the catalog and its side files.
type LibraryConfig struct {
	Database        string   `toml:"database" validate:"required"`
	CoversDir       string   `toml:"covers_dir" validate:"required"`
	ConvertedDir    string   `toml:"converted_dir" validate:"required"`
	WatchFolders    []string `toml:"watch_folders" validate:"dive,required"`
	WatchDebounceMs int      `toml:"watch_debounce_ms" validate:"gte=0,lte=60000"`
	HistoryLimit    int      `toml:"history_limit" validate:"gte=1,lte=10000"`
}

// PlaybackConfig holds the playback settings saved on shutdown.
type PlaybackConfig struct {
	Volume  int  `toml:"volume" validate:"gte=0,lte=100"`
	Shuffle bool `toml:"shuffle"`
	Repeat  bool `toml:"repeat"`
}

// TranscodeConfig configures the ffmpeg conversion of video containers.
type TranscodeConfig struct {
	FFmpeg         string `toml:"ffmpeg" validate:"required"`
	TimeoutSeconds int    `toml:"timeout_seconds" validate:"gte=1,lte=86400"`
	Bitrate        string `toml:"bitrate" validate:"required"`
	SampleRate     int    `toml:"sample_rate" validate:"oneof=22050 32000 44100 48000 96000"`
}

// CoverConfig bounds the cached cover images.
type CoverConfig struct {
	MaxEdge int `toml:"max_edge" validate:"gte=64,lte=4096"`
	Quality int `toml:"quality" validate:"gte=1,lte=100"`
}

// LogConfig contains logging configuration.
type LogConfig struct {
	Level  string `toml:"level" validate:"oneof=debug info warn warning error"`
	Format string `toml:"format" validate:"oneof=text json pretty"`
}

// DefaultDir returns the per-user configuration directory of tunelib.
func DefaultDir() string {
	if dir, err := os.UserConfigDir(); err == nil {
		return filepath.Join(dir, "tunelib")
	}
	return ".tunelib"
}

// DefaultPath returns the default configuration file path.
func DefaultPath() string {
	return filepath.Join(DefaultDir(), FileName)
}

// Default returns a configuration keeping every file under dir.
func Default(dir string) *Config {
	return &Config{
		Library: LibraryConfig{
			Database:        filepath.Join(dir, "library.db"),
			CoversDir:       filepath.Join(dir, "covers"),
			ConvertedDir:    filepath.Join(dir, "converted"),
			WatchFolders:    []string{},
			WatchDebounceMs: 2000,
			HistoryLimit:    100,
		},
		Playback: PlaybackConfig{
			Volume: 80,
		},
		Transcode: TranscodeConfig{
			FFmpeg:         "ffmpeg",
			TimeoutSeconds: 300,
			Bitrate:        "192k",
			SampleRate:     44100,
		},
		Cover: CoverConfig{
			MaxEdge: 600,
			Quality: 85,
		},
		Log: LogConfig{
			Level:  "info",
			Format: "text",
		},
	}
}

// Load reads the configuration at path, creating it with defaults when it does
// not exist. A .env file next to it is loaded into the environment first, then
// TUNELIB_* variables override the file. Relative paths in the file are
// resolved against its directory.
func Load(path string) (*Config, error) {
	dir := filepath.Dir(path)
	if err := loadDotEnv(filepath.Join(dir, ".env")); err != nil {
		return nil, err
	}

	cfg, err := read(path)
	if errors.Is(err, fs.ErrNotExist) {
		cfg = Default(dir)
		if err := cfg.Save(path); err != nil {
			return nil, fmt.Errorf("failed to create default config file: %w", err)
		}
		slog.Info("created default configuration", slog.String("path", path))
	} else if err != nil {
		return nil, err
	}

	if err := cfg.applyEnv(); err != nil {
		return nil, err
	}
	cfg.resolvePaths(dir)

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// read decodes the file over the defaults, without env overrides.
func read(path string) (*Config, error) {
	if _, err := os.Stat(path); err != nil {
		return nil, err
	}

	cfg := Default(filepath.Dir(path))
	meta, err := toml.DecodeFile(path, cfg)
	if err != nil {
		return nil, fmt.Errorf("failed to parse config file: %w", err)
	}
	if undecoded := meta.Undecoded(); len(undecoded) > 0 {
		keys := make([]string, len(undecoded))
		for i, key := range undecoded {
			keys[i] = key.String()
		}
		slog.Warn("unknown config keys ignored", slog.String("path", path), slog.Any("keys", keys))
	}
	return cfg, nil
}

func loadDotEnv(path string) error {
	err := godotenv.Load(path)
	if err == nil || errors.Is(err, fs.ErrNotExist) {
		return nil
	}
	return fmt.Errorf("failed to load %s: %w", path, err)
}

// applyEnv overrides fields from TUNELIB_* environment variables.
func (c *Config) applyEnv() error {
	setString := func(key string, dst *string) {
		if v, ok := os.LookupEnv(key); ok && v != "" {
			*dst = v
		}
	}
	setString("TUNELIB_DATABASE", &c.Library.Database)
	setString("TUNELIB_COVERS_DIR", &c.Library.CoversDir)
	setString("TUNELIB_CONVERTED_DIR", &c.Library.ConvertedDir)
	setString("TUNELIB_FFMPEG", &c.Transcode.FFmpeg)
	setString("TUNELIB_LOG_LEVEL", &c.Log.Level)
	setString("TUNELIB_LOG_FORMAT", &c.Log.Format)

	if v := os.Getenv("TUNELIB_WATCH"); v != "" {
		c.Library.WatchFolders = filepath.SplitList(v)
	}
	if v := os.Getenv("TUNELIB_VOLUME"); v != "" {
		volume, err := strconv.Atoi(v)
		if err != nil {
			return fmt.Errorf("invalid TUNELIB_VOLUME %q: %w", v, err)
		}
		c.Playback.Volume = volume
	}

	c.Log.Level = strings.ToLower(c.Log.Level)
	c.Log.Format = strings.ToLower(c.Log.Format)
	return nil
}

func (c *Config) resolvePaths(dir string) {
	abs := func(p string) string {
		if p == "" || filepath.IsAbs(p) {
			return p
		}
		return filepath.Join(dir, p)
	}
	c.Library.Database = abs(c.Library.Database)
	c.Library.CoversDir = abs(c.Library.CoversDir)
	c.Library.ConvertedDir = abs(c.Library.ConvertedDir)
	for i, folder := range c.Library.WatchFolders {
		c.Library.WatchFolders[i] = abs(folder)
	}
}

var validate = validator.New(validator.WithRequiredStructEnabled())

// Validate checks every field against its constraints.
func (c *Config) Validate() error {
	err := validate.Struct(c)
	if err == nil {
		return nil
	}

	var verrs validator.ValidationErrors
	if !errors.As(err, &verrs) {
		return fmt.Errorf("config validation failed: %w", err)
	}
	msgs := make([]string, 0, len(verrs))
	for _, fe := range verrs {
		msgs = append(msgs, fmt.Sprintf("%s: failed %q (value %v)", fe.Namespace(), fe.Tag(), fe.Value()))
	}
	return fmt.Errorf("config validation failed: %s", strings.Join(msgs, "; "))
}

// Save writes the configuration to path, replacing it atomically.
func (c *Config) Save(path string) error {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return fmt.Errorf("failed to create config directory: %w", err)
	}

	tmp := path + ".tmp"
	file, err := os.Create(tmp)
	if err != nil {
		return fmt.Errorf("failed to create config file: %w", err)
	}

	header := `# tunelib configuration
# Paths may be relative to this file. TUNELIB_* environment variables
# (or a .env file next to this one) override the values below.

`
	if _, err := file.WriteString(header); err != nil {
		file.Close()
		return fmt.Errorf("failed to write config header: %w", err)
	}
	if err := toml.NewEncoder(file).Encode(c); err != nil {
		file.Close()
		return fmt.Errorf("failed to encode config to TOML: %w", err)
	}
	if err := file.Close(); err != nil {
		return err
	}
	return os.Rename(tmp, path)
}

// LoggerConfig returns the logger settings.
func (c *Config) LoggerConfig() logger.Config {
	return logger.Config{
		Level:  logger.ParseLevel(c.Log.Level, slog.LevelInfo),
		Format: c.Log.Format,
	}
}

// TranscodeTimeout returns the per-file conversion deadline.
func (c *Config) TranscodeTimeout() time.Duration {
	return time.Duration(c.Transcode.TimeoutSeconds) * time.Second
}

// WatchDebounce returns the quiet period of the folder watcher.
func (c *Config) WatchDebounce() time.Duration {
	return time.Duration(c.Library.WatchDebounceMs) * time.Millisecond
}
