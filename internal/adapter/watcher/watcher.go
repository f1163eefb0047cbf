// Package watcher reports audio files appearing in and disappearing from the
// library folders.
package watcher

import (
	"context"
	"errors"
	"io/fs"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"github.com/fsnotify/fsnotify"
)

// DefaultDebounce is how long a file must stay quiet before it is reported as added.
const DefaultDebounce = 2 * time.Second

// ErrNotDirectory is reported for watch roots that are not directories.
var ErrNotDirectory = errors.New("watch root is not a directory")

// Kind says what happened to a file.
type Kind int

const (
	// Added means a supported file was created or finished being written
	Added Kind = iota

	// Removed means a file was deleted or moved away
	Removed
)

// String returns a human-readable representation of the kind.
func (k Kind) String() string {
	if k == Removed {
		return "removed"
	}
	return "added"
}

// Event is a debounced change to a library file.
type Event struct {
	Kind Kind
	Path string
}

// Watcher watches folders recursively. Writes to a file are coalesced: the file
// is reported once it has been quiet for the debounce interval. Removals are
// reported immediately.
type Watcher struct {
	logger    *slog.Logger
	fs        *fsnotify.Watcher
	supported func(path string) bool
	debounce  time.Duration

	events chan Event
	fired  chan string

	mu     sync.Mutex
	timers map[string]*time.Timer

	startOnce sync.Once
	stopOnce  sync.Once
	stop      chan struct{}
	exited    chan struct{}
}

// New creates a watcher reporting files accepted by supported.
// A non-positive debounce uses DefaultDebounce.
func New(logger *slog.Logger, supported func(path string) bool, debounce time.Duration) (*Watcher, error) {
	fsw, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, err
	}
	if debounce <= 0 {
		debounce = DefaultDebounce
	}
	return &Watcher{
		logger:    logger.With(slog.String("adapter", "watcher")),
		fs:        fsw,
		supported: supported,
		debounce:  debounce,
		events:    make(chan Event, 64),
		fired:     make(chan string),
		timers:    make(map[string]*time.Timer),
		stop:      make(chan struct{}),
		exited:    make(chan struct{}),
	}, nil
}

// Add watches dir and every directory below it.
func (w *Watcher) Add(dir string) error {
	return filepath.WalkDir(dir, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if !d.IsDir() {
			return nil
		}
		if path != dir && isHidden(path) {
			return filepath.SkipDir
		}
		if err := w.fs.Add(path); err != nil {
			return err
		}
		w.logger.Debug("watching directory", slog.String("dir", path))
		return nil
	})
}

// Events returns the channel of debounced changes. It is closed once the
// watcher has stopped.
func (w *Watcher) Events() <-chan Event {
	return w.events
}

// Start runs the event loop until Stop is called or ctx ends.
func (w *Watcher) Start(ctx context.Context) {
	w.startOnce.Do(func() {
		go w.loop(ctx)
	})
}

// Stop ends the event loop and releases the OS watches. It is safe to call more than once.
func (w *Watcher) Stop() {
	w.stopOnce.Do(func() {
		close(w.stop)
		if err := w.fs.Close(); err != nil {
			w.logger.Warn("failed to close watcher", slog.Any("error", err))
		}
	})

	// Wait only for a loop that was started
	started := true
	w.startOnce.Do(func() {
		started = false
		close(w.exited)
		close(w.events)
	})
	if started {
		<-w.exited
	}
}

func (w *Watcher) loop(ctx context.Context) {
	defer func() {
		w.cancelTimers()
		close(w.exited)
		close(w.events)
	}()

	for {
		select {
		case ev, ok := <-w.fs.Events:
			if !ok {
				return
			}
			w.handle(ev)

		case err, ok := <-w.fs.Errors:
			if !ok {
				return
			}
			w.logger.Error("watch error", slog.Any("error", err))

		case path := <-w.fired:
			if _, err := os.Stat(path); err != nil {
				continue
			}
			if !w.send(ctx, Event{Kind: Added, Path: path}) {
				return
			}

		case <-w.stop:
			return

		case <-ctx.Done():
			return
		}
	}
}

func (w *Watcher) send(ctx context.Context, ev Event) bool {
	select {
	case w.events <- ev:
		w.logger.Debug("file event", slog.String("kind", ev.Kind.String()), slog.String("path", ev.Path))
		return true
	case <-w.stop:
		return false
	case <-ctx.Done():
		return false
	}
}

func (w *Watcher) handle(ev fsnotify.Event) {
	if isHidden(ev.Name) {
		return
	}

	switch {
	case ev.Has(fsnotify.Remove) || ev.Has(fsnotify.Rename):
		w.cancelTimer(ev.Name)
		if w.supported(ev.Name) {
			// Removals are never debounced; the buffer absorbs bursts
			select {
			case w.events <- Event{Kind: Removed, Path: ev.Name}:
			default:
				w.logger.Warn("event buffer full, dropping removal", slog.String("path", ev.Name))
			}
		}

	case ev.Has(fsnotify.Create) || ev.Has(fsnotify.Write):
		info, err := os.Stat(ev.Name)
		if err != nil {
			return
		}
		if info.IsDir() {
			w.addCreatedDir(ev.Name)
			return
		}
		if w.supported(ev.Name) {
			w.schedule(ev.Name)
		}
	}
}

// addCreatedDir watches a new directory and schedules the files already in it,
// since they may have been written before the watch was in place.
func (w *Watcher) addCreatedDir(dir string) {
	if err := w.Add(dir); err != nil {
		w.logger.Warn("failed to watch new directory", slog.String("dir", dir), slog.Any("error", err))
		return
	}
	_ = filepath.WalkDir(dir, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return nil
		}
		if d.IsDir() && path != dir && isHidden(path) {
			return filepath.SkipDir
		}
		if !d.IsDir() && !isHidden(path) && w.supported(path) {
			w.schedule(path)
		}
		return nil
	})
}

// schedule (re)starts the quiet-period timer of path.
func (w *Watcher) schedule(path string) {
	w.mu.Lock()
	defer w.mu.Unlock()

	if t, ok := w.timers[path]; ok {
		t.Reset(w.debounce)
		return
	}
	w.timers[path] = time.AfterFunc(w.debounce, func() {
		w.mu.Lock()
		delete(w.timers, path)
		w.mu.Unlock()

		select {
		case w.fired <- path:
		case <-w.exited:
		}
	})
}

func (w *Watcher) cancelTimer(path string) {
	w.mu.Lock()
	defer w.mu.Unlock()
	if t, ok := w.timers[path]; ok {
		t.Stop()
		delete(w.timers, path)
	}
}

func (w *Watcher) cancelTimers() {
	w.mu.Lock()
	defer w.mu.Unlock()
	for path, t := range w.timers {
		t.Stop()
		delete(w.timers, path)
	}
}

// isHidden skips dot files and partial downloads.
func isHidden(path string) bool {
	name := filepath.Base(path)
	return strings.HasPrefix(name, ".") || strings.HasSuffix(name, ".tmp") || strings.HasSuffix(name, ".part")
}

// AddAll watches every directory in dirs, skipping and logging those that fail.
// It fails only when none of them could be watched.
func (w *Watcher) AddAll(dirs []string) error {
	var errs []error
	watched := 0
	for _, dir := range dirs {
		info, err := os.Stat(dir)
		if err == nil && !info.IsDir() {
			err = ErrNotDirectory
		}
		if err == nil {
			err = w.Add(dir)
		}
		if err != nil {
			w.logger.Warn("cannot watch folder", slog.String("dir", dir), slog.Any("error", err))
			errs = append(errs, err)
			continue
		}
		watched++
	}
	if watched == 0 && len(errs) > 0 {
		return errors.Join(errs...)
	}
	return nil
}
