// Package app provides application-level orchestration and dependency injection.
// This package wires together all components and manages the application lifecycle.
package app

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/tejashwikalptaru/tunelib/internal/adapter/artwork"
	"github.com/tejashwikalptaru/tunelib/internal/adapter/audio/mock"
	"github.com/tejashwikalptaru/tunelib/internal/adapter/eventbus"
	"github.com/tejashwikalptaru/tunelib/internal/adapter/metadata"
	"github.com/tejashwikalptaru/tunelib/internal/adapter/repository/sqlite"
	"github.com/tejashwikalptaru/tunelib/internal/adapter/transcode"
	"github.com/tejashwikalptaru/tunelib/internal/adapter/watcher"
	"github.com/tejashwikalptaru/tunelib/internal/catalog"
	"github.com/tejashwikalptaru/tunelib/internal/config"
	"github.com/tejashwikalptaru/tunelib/internal/domain"
	"github.com/tejashwikalptaru/tunelib/internal/logger"
	"github.com/tejashwikalptaru/tunelib/internal/ports"
	"github.com/tejashwikalptaru/tunelib/internal/service"
)

// importRetryDelay is how long a watched file waits when another import is running.
const importRetryDelay = 500 * time.Millisecond

// Application is the root application structure that holds all dependencies.
// It follows the Dependency Injection pattern with constructor-based injection.
type Application struct {
	// Core dependencies
	logger     *slog.Logger
	config     *config.Config
	configPath string

	// Infrastructure
	eventBus ports.EventBus
	engine   ports.PlaybackEngine
	store    ports.LibraryStore

	// Catalog
	projection *catalog.Projection
	controller *service.QueueController

	// Services
	covers            *service.CoverResolver
	libraryService    *service.LibraryService
	playlistService   *service.PlaylistService
	preferenceService *service.PreferenceService

	// Background work started by Start and Watch
	mu       sync.Mutex
	started  bool
	cancels  []context.CancelFunc
	watchers []*watcher.Watcher
	wg       sync.WaitGroup

	shutdownOnce sync.Once
	shutdownErr  error
}

// Options overrides parts of the wiring. The zero value gives the production setup
// for the config file at config.DefaultPath.
type Options struct {
	// ConfigPath is the configuration file (config.DefaultPath when empty)
	ConfigPath string

	// Logger replaces the logger built from the [log] section
	Logger *slog.Logger

	// Engine replaces the simulated playback engine
	Engine ports.PlaybackEngine

	// Transcoder replaces the ffmpeg transcoder
	Transcoder ports.Transcoder

	// Preferences replaces the [playback] section of the config file as the settings store
	Preferences ports.PreferencesRepository
}

// NewApplication creates a new application with all dependencies wired.
func NewApplication(opts Options) (*Application, error) {
	app := &Application{configPath: opts.ConfigPath}
	if app.configPath == "" {
		app.configPath = config.DefaultPath()
	}

	// Step 1: Load configuration
	cfg, err := config.Load(app.configPath)
	if err != nil {
		return nil, fmt.Errorf("failed to load configuration: %w", err)
	}
	app.config = cfg

	// Step 2: Create logger
	app.logger = opts.Logger
	if app.logger == nil {
		app.logger = logger.NewLogger(cfg.LoggerConfig())
	}
	app.logger.Info("initializing application",
		slog.String("version", GetVersionInfo().Version),
		slog.String("config", app.configPath))

	// Step 3: Create an event bus
	app.eventBus = eventbus.NewSyncEventBus(app.logger.With(slog.String("component", "eventbus")))

	// Step 4: Open the library store
	store, err := sqlite.Open(cfg.Library.Database, app.logger)
	if err != nil {
		_ = app.eventBus.Close()
		return nil, fmt.Errorf("failed to open library: %w", err)
	}
	app.store = store

	// Step 5: Create media adapters
	app.engine = opts.Engine
	if app.engine == nil {
		app.engine = mock.NewEngine(app.logger)
	}
	transcoder := opts.Transcoder
	if transcoder == nil {
		transcoder = transcode.New(app.logger, transcode.Options{
			Binary:     cfg.Transcode.FFmpeg,
			OutputDir:  cfg.Library.ConvertedDir,
			Timeout:    cfg.TranscodeTimeout(),
			Bitrate:    cfg.Transcode.Bitrate,
			SampleRate: cfg.Transcode.SampleRate,
		})
	}
	extractor := metadata.NewExtractor(app.logger)
	writer := artwork.NewWriter(app.logger, cfg.Cover.MaxEdge, cfg.Cover.Quality)

	// Step 6: Create the projection and the queue controller over it
	app.projection = catalog.NewProjection()
	app.controller = service.NewQueueController(app.logger, app.engine, app.projection, app.store, app.eventBus)

	// Step 7: Create services (with dependency injection)
	app.covers = service.NewCoverResolver(app.logger, app.store, writer, cfg.Library.CoversDir)

	app.libraryService = service.NewLibraryService(
		app.logger,
		app.store,
		extractor,
		transcoder,
		app.covers,
		app.projection,
		app.controller,
		app.eventBus,
	)
	app.controller.SetRefresher(app.libraryService.RefreshMetadata)

	app.playlistService = service.NewPlaylistService(app.logger, app.store, app.eventBus)

	prefs := opts.Preferences
	if prefs == nil {
		prefs = config.NewPreferenceFile(app.configPath)
	}
	app.preferenceService = service.NewPreferenceService(app.logger, prefs, app.eventBus)

	// Step 8: Restore saved state
	if err := app.loadSavedState(); err != nil {
		// Non-fatal
		app.logger.Warn("failed to load saved state", slog.Any("error", err))
	}

	return app, nil
}

// loadSavedState restores the playback settings and the full library view.
func (a *Application) loadSavedState() error {
	if err := a.preferenceService.ApplyTo(a.controller); err != nil {
		return fmt.Errorf("failed to restore playback settings: %w", err)
	}
	if _, err := a.libraryService.ShowAll(context.Background()); err != nil {
		return fmt.Errorf("failed to load library: %w", err)
	}
	return nil
}

// Start runs the queue controller loop in the background until Shutdown.
// It is safe to call more than once.
func (a *Application) Start(ctx context.Context) {
	a.mu.Lock()
	defer a.mu.Unlock()
	if a.started {
		return
	}
	a.started = true

	ctx, cancel := context.WithCancel(ctx)
	a.cancels = append(a.cancels, cancel)
	a.wg.Add(1)
	go func() {
		defer a.wg.Done()
		if err := a.controller.Run(ctx); err != nil {
			a.logger.Warn("queue controller stopped", slog.Any("error", err))
		}
	}()
	a.logger.Info("tunelib started")
}

// Run starts the application, watches the configured folders and blocks until
// ctx is done.
func (a *Application) Run(ctx context.Context) error {
	a.Start(ctx)

	if folders := a.config.Library.WatchFolders; len(folders) > 0 {
		if err := a.Watch(ctx, folders...); err != nil {
			return err
		}
	}

	<-ctx.Done()
	return nil
}

// Watch imports files added below dirs and drops removed ones from the
// library until ctx is done or the application shuts down.
func (a *Application) Watch(ctx context.Context, dirs ...string) error {
	w, err := watcher.New(a.logger, a.libraryService.IsFormatSupported, a.config.WatchDebounce())
	if err != nil {
		return fmt.Errorf("failed to create watcher: %w", err)
	}
	if err := w.AddAll(dirs); err != nil {
		w.Stop()
		return fmt.Errorf("failed to watch folders: %w", err)
	}

	ctx, cancel := context.WithCancel(ctx)
	a.mu.Lock()
	a.cancels = append(a.cancels, cancel)
	a.watchers = append(a.watchers, w)
	a.mu.Unlock()

	w.Start(ctx)
	a.wg.Add(1)
	go func() {
		defer a.wg.Done()
		for ev := range w.Events() {
			a.handleWatchEvent(ctx, ev)
		}
	}()

	a.logger.Info("watching folders", slog.Any("dirs", dirs))
	return nil
}

func (a *Application) handleWatchEvent(ctx context.Context, ev watcher.Event) {
	log := a.logger.With(slog.String("path", ev.Path), slog.String("change", ev.Kind.String()))

	if ev.Kind == watcher.Removed {
		if err := a.libraryService.RemoveFile(ctx, ev.Path); err != nil {
			log.Warn("failed to remove watched file", slog.Any("error", err))
		}
		return
	}

	for {
		_, err := a.libraryService.ImportFiles(ctx, []string{ev.Path})
		if !errors.Is(err, domain.ErrImportInProgress) {
			if err != nil {
				log.Warn("failed to import watched file", slog.Any("error", err))
			}
			return
		}

		select {
		case <-ctx.Done():
			return
		case <-time.After(importRetryDelay):
		}
	}
}

// Shutdown gracefully shuts down the application. Calling it again returns
// the first result.
func (a *Application) Shutdown() error {
	a.shutdownOnce.Do(func() {
		a.shutdownErr = a.shutdown()
	})
	return a.shutdownErr
}

func (a *Application) shutdown() error {
	a.logger.Info("shutting down application")
	var errs []error

	// Stop background work
	a.mu.Lock()
	for _, cancel := range a.cancels {
		cancel()
	}
	a.cancels = nil
	watchers := a.watchers
	a.watchers = nil
	a.mu.Unlock()

	for _, w := range watchers {
		w.Stop()
	}
	if err := a.libraryService.CancelImport(); err != nil && !errors.Is(err, domain.ErrNoImport) {
		a.logger.Warn("failed to cancel import", slog.Any("error", err))
	}
	a.wg.Wait()

	// Stop playback before the services go away
	a.controller.Stop()

	// Shutdown services (in reverse order of creation)
	if err := a.preferenceService.Shutdown(); err != nil {
		a.logger.Warn("failed to shutdown preference service", slog.Any("error", err))
		errs = append(errs, err)
	}

	if err := a.libraryService.Shutdown(); err != nil {
		a.logger.Warn("failed to shutdown library service", slog.Any("error", err))
		errs = append(errs, err)
	}

	// Release infrastructure
	if err := a.store.Close(); err != nil {
		a.logger.Warn("failed to close library store", slog.Any("error", err))
		errs = append(errs, err)
	}

	if err := a.eventBus.Close(); err != nil {
		a.logger.Warn("failed to close event bus", slog.Any("error", err))
		errs = append(errs, err)
	}

	a.logger.Info("application shutdown complete")
	return errors.Join(errs...)
}

// Config returns the loaded configuration.
func (a *Application) Config() *config.Config { return a.config }

// ConfigPath returns the path of the configuration file in use.
func (a *Application) ConfigPath() string { return a.configPath }

// Logger returns the application logger.
func (a *Application) Logger() *slog.Logger { return a.logger }

// EventBus returns the event bus.
func (a *Application) EventBus() ports.EventBus { return a.eventBus }

// Engine returns the playback engine.
func (a *Application) Engine() ports.PlaybackEngine { return a.engine }

// Controller returns the queue controller.
func (a *Application) Controller() *service.QueueController { return a.controller }

// Projection returns the track list the controller plays from.
func (a *Application) Projection() *catalog.Projection { return a.projection }

// Library returns the library service.
func (a *Application) Library() *service.LibraryService { return a.libraryService }

// Playlists returns the playlist service.
func (a *Application) Playlists() *service.PlaylistService { return a.playlistService }

// Preferences returns the preference service.
func (a *Application) Preferences() *service.PreferenceService { return a.preferenceService }
