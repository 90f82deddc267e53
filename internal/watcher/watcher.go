// Package watcher reports source documents dropped into a directory once
// they have stopped changing.
package watcher

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"slices"
	"strings"
	"sync"
	"time"

	"github.com/fsnotify/fsnotify"

	"github.com/JaimeStill/tally/internal/events"
	"github.com/JaimeStill/tally/pkg/lifecycle"
)

// Defaults for Config.
const (
	DefaultDebounce = 2 * time.Second
)

// DefaultExtensions are the file types picked up when none are configured.
var DefaultExtensions = []string{".pdf"}

// Config controls which files are reported and when.
type Config struct {
	Dir        string
	Debounce   time.Duration
	Extensions []string
}

// Watcher debounces filesystem events per file and submits a NewDocument
// for each file that stays unchanged for the debounce period.
type Watcher struct {
	cfg    Config
	submit events.Submitter
	logger *slog.Logger

	mu     sync.Mutex
	timers map[string]*time.Timer
}

// New creates a watcher. The directory is created if missing.
func New(cfg Config, submit events.Submitter, logger *slog.Logger) (*Watcher, error) {
	if cfg.Dir == "" {
		return nil, errors.New("watch directory required")
	}
	if cfg.Debounce <= 0 {
		cfg.Debounce = DefaultDebounce
	}
	if len(cfg.Extensions) == 0 {
		cfg.Extensions = DefaultExtensions
	}
	for i, ext := range cfg.Extensions {
		cfg.Extensions[i] = strings.ToLower(ext)
	}

	if err := os.MkdirAll(cfg.Dir, 0o755); err != nil {
		return nil, fmt.Errorf("create watch directory: %w", err)
	}

	return &Watcher{
		cfg:    cfg,
		submit: submit,
		logger: logger.With("system", "watcher"),
		timers: make(map[string]*time.Timer),
	}, nil
}

// Run watches until ctx is cancelled. Files already present are reported
// first.
func (w *Watcher) Run(ctx context.Context) error {
	fw, err := fsnotify.NewWatcher()
	if err != nil {
		return fmt.Errorf("create fsnotify watcher: %w", err)
	}
	defer fw.Close()

	if err := fw.Add(w.cfg.Dir); err != nil {
		return fmt.Errorf("watch %s: %w", w.cfg.Dir, err)
	}

	w.scan()
	defer w.stopTimers()

	for {
		select {
		case <-ctx.Done():
			return nil
		case ev, ok := <-fw.Events:
			if !ok {
				return nil
			}
			w.handle(ev)
		case err, ok := <-fw.Errors:
			if !ok {
				return nil
			}
			w.logger.Warn("watch error", "error", err)
		}
	}
}

func (w *Watcher) scan() {
	entries, err := os.ReadDir(w.cfg.Dir)
	if err != nil {
		w.logger.Warn("initial scan failed", "dir", w.cfg.Dir, "error", err)
		return
	}
	for _, e := range entries {
		if !e.IsDir() {
			w.schedule(filepath.Join(w.cfg.Dir, e.Name()))
		}
	}
}

func (w *Watcher) handle(ev fsnotify.Event) {
	switch {
	case ev.Has(fsnotify.Create), ev.Has(fsnotify.Write):
		w.schedule(ev.Name)
	case ev.Has(fsnotify.Remove), ev.Has(fsnotify.Rename):
		w.cancel(ev.Name)
	}
}

// Matches reports whether path has one of the watched extensions. Hidden
// and partial download files never match.
func (w *Watcher) Matches(path string) bool {
	name := filepath.Base(path)
	if strings.HasPrefix(name, ".") || strings.HasPrefix(name, "~") {
		return false
	}
	return slices.Contains(w.cfg.Extensions, strings.ToLower(filepath.Ext(name)))
}

func (w *Watcher) schedule(path string) {
	if !w.Matches(path) {
		return
	}

	w.mu.Lock()
	defer w.mu.Unlock()

	if t, ok := w.timers[path]; ok {
		t.Reset(w.cfg.Debounce)
		return
	}
	w.timers[path] = time.AfterFunc(w.cfg.Debounce, func() { w.fire(path) })
}

func (w *Watcher) cancel(path string) {
	w.mu.Lock()
	defer w.mu.Unlock()

	if t, ok := w.timers[path]; ok {
		t.Stop()
		delete(w.timers, path)
	}
}

func (w *Watcher) fire(path string) {
	w.mu.Lock()
	delete(w.timers, path)
	w.mu.Unlock()

	info, err := os.Stat(path)
	if err != nil || !info.Mode().IsRegular() {
		return
	}

	w.logger.Info("document ready", "path", path, "size", info.Size())
	if !w.submit.Submit(events.NewDocument{Path: path}) {
		w.logger.Warn("document dropped, coordinator stopped", "path", path)
	}
}

func (w *Watcher) stopTimers() {
	w.mu.Lock()
	defer w.mu.Unlock()

	for path, t := range w.timers {
		t.Stop()
		delete(w.timers, path)
	}
}

// Start runs the watcher for the lifetime of lc.
func (w *Watcher) Start(lc *lifecycle.Coordinator) error {
	done := make(chan struct{})

	lc.OnStartup(func() {
		w.logger.Info("watching", "dir", w.cfg.Dir, "debounce", w.cfg.Debounce)
		go func() {
			defer close(done)
			if err := w.Run(lc.Context()); err != nil {
				w.logger.Error("watcher stopped", "error", err)
			}
		}()
	})

	lc.OnShutdown(func() {
		<-lc.Context().Done()
		<-done
		w.logger.Info("watcher stopped")
	})

	return nil
}
