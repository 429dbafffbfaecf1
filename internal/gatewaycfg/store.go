package gatewaycfg

import (
	"log/slog"
	"sync/atomic"
	"time"

	"github.com/fsnotify/fsnotify"
)

// Store owns the live Snapshot and republishes it on file change. Current
// always returns a usable, already-validated snapshot; a malformed reload
// is rejected and logged, and the previous snapshot stays in force.
type Store struct {
	path    string
	current atomic.Pointer[Snapshot]
	logger  *slog.Logger
	watcher *fsnotify.Watcher
	stop    chan struct{}
}

// Open loads path once, starts a background watcher (fsnotify-driven with a
// 5-second polling fallback), and returns a ready Store.
func Open(path string, logger *slog.Logger) (*Store, error) {
	if logger == nil {
		logger = slog.Default()
	}
	snap, err := Load(path)
	if err != nil {
		return nil, err
	}
	s := &Store{path: path, logger: logger, stop: make(chan struct{})}
	s.current.Store(snap)

	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		// fsnotify is unavailable (e.g. inotify instance limit); the polling
		// ticker below still keeps the snapshot reasonably fresh.
		logger.Warn("config watcher unavailable, falling back to polling only", slog.String("error", err.Error()))
	} else if err := watcher.Add(path); err != nil {
		logger.Warn("config watch add failed, falling back to polling only", slog.String("error", err.Error()))
		_ = watcher.Close()
		watcher = nil
	}
	s.watcher = watcher

	go s.run()
	return s, nil
}

// NewStoreFromSnapshot wraps an already-built Snapshot in a Store with no
// file backing and no background watcher. Intended for tests and for
// embedding gatewaycfg in a process that sources configuration from
// somewhere other than a local file (e.g. a config service pushing via
// Reload-equivalent calls through a custom wrapper).
func NewStoreFromSnapshot(snap *Snapshot) *Store {
	s := &Store{stop: make(chan struct{})}
	s.current.Store(snap)
	return s
}

// Current returns the snapshot in force right now. Callers should take one
// reference per request and use it for the whole request's duration.
func (s *Store) Current() *Snapshot {
	return s.current.Load()
}

// Reload re-reads the config file immediately, independent of the
// background watcher. It returns only after the new snapshot (if valid) is
// visible to Current.
func (s *Store) Reload() error {
	snap, err := Load(s.path)
	if err != nil {
		s.logger.Warn("config reload rejected, keeping previous snapshot", slog.String("error", err.Error()))
		return err
	}
	s.current.Store(snap)
	s.logger.Info("configuration reloaded",
		slog.Int("providers", len(snap.Providers)),
		slog.Int("canonical_models", len(snap.CanonicalIDs())),
	)
	return nil
}

func (s *Store) run() {
	ticker := time.NewTicker(5 * time.Second)
	defer ticker.Stop()

	var events <-chan fsnotify.Event
	var errs <-chan error
	if s.watcher != nil {
		events = s.watcher.Events
		errs = s.watcher.Errors
	}

	for {
		select {
		case <-s.stop:
			if s.watcher != nil {
				_ = s.watcher.Close()
			}
			return
		case ev, ok := <-events:
			if !ok {
				events = nil
				continue
			}
			if ev.Op&(fsnotify.Write|fsnotify.Create) != 0 {
				_ = s.Reload()
			}
		case err, ok := <-errs:
			if !ok {
				errs = nil
				continue
			}
			s.logger.Warn("config watcher error", slog.String("error", err.Error()))
		case <-ticker.C:
			_ = s.Reload()
		}
	}
}

// Close stops the background watcher goroutine.
func (s *Store) Close() error {
	close(s.stop)
	return nil
}
