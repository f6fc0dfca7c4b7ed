// Package watcher triggers a rescan when the contents of a mods directory
// change, using fsnotify where it works and directory polling where it does
// not.
package watcher

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/fsnotify/fsnotify"

	"github.com/sydlexius/modcheck/internal/archive"
	"github.com/sydlexius/modcheck/internal/event"
)

// Defaults for a new Service.
const (
	DefaultDebounce     = 1 * time.Second
	DefaultPollInterval = 5 * time.Second
	DefaultProbeTimeout = 2 * time.Second
)

// fileState is what polling compares between snapshots.
type fileState struct {
	size    int64
	modTime time.Time
}

// Service watches one mods directory and calls scanFn after changes settle.
type Service struct {
	dir          string
	scanFn       func(ctx context.Context) error
	eventBus     *event.Bus
	logger       *slog.Logger
	debounce     time.Duration
	pollInterval time.Duration
	probeTimeout time.Duration
	forcePoll    bool

	mu       sync.Mutex
	snapshot map[string]fileState
	polling  bool
}

// NewService creates a watcher for dir. eventBus may be nil.
func NewService(dir string, scanFn func(ctx context.Context) error, eventBus *event.Bus, logger *slog.Logger) *Service {
	return &Service{
		dir:          dir,
		scanFn:       scanFn,
		eventBus:     eventBus,
		logger:       logger.With("component", "watcher"),
		debounce:     DefaultDebounce,
		pollInterval: DefaultPollInterval,
		probeTimeout: DefaultProbeTimeout,
	}
}

// SetDebounce overrides the default debounce interval.
func (s *Service) SetDebounce(d time.Duration) {
	s.debounce = d
}

// SetPollInterval overrides the default poll interval.
func (s *Service) SetPollInterval(d time.Duration) {
	s.pollInterval = d
}

// SetProbeTimeout bounds the startup check that fsnotify delivers events
// for the directory. Zero skips the check.
func (s *Service) SetProbeTimeout(d time.Duration) {
	s.probeTimeout = d
}

// ForcePolling skips fsnotify and polls the directory instead.
func (s *Service) ForcePolling(on bool) {
	s.forcePoll = on
}

// Polling reports whether the running service fell back to polling.
func (s *Service) Polling() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.polling
}

// Start blocks until ctx is canceled. It returns an error only when the
// directory cannot be read at startup.
func (s *Service) Start(ctx context.Context) error {
	snap, err := readModSnapshot(s.dir)
	if err != nil {
		return fmt.Errorf("watching %s: %w", s.dir, err)
	}
	s.mu.Lock()
	s.snapshot = snap
	s.mu.Unlock()

	w := s.openWatcher()
	if w != nil {
		defer w.Close() //nolint:errcheck
	}
	s.mu.Lock()
	s.polling = w == nil
	s.mu.Unlock()
	s.logger.Info("watching mods directory", "dir", s.dir, "polling", w == nil, "files", len(snap))

	// When fsnotify is unavailable, use nil channels (never receive).
	var eventCh <-chan fsnotify.Event
	var errCh <-chan error
	var pollCh <-chan time.Time
	if w != nil {
		eventCh = w.Events
		errCh = w.Errors
	} else {
		pollTicker := time.NewTicker(s.pollInterval)
		defer pollTicker.Stop()
		pollCh = pollTicker.C
	}

	// Debounce timer for coalescing bursts of changes into a single scan.
	// Starts stopped; reset on each change.
	debounceTimer := time.NewTimer(0)
	if !debounceTimer.Stop() {
		<-debounceTimer.C
	}
	scanPending := false
	arm := func() {
		if !debounceTimer.Stop() {
			select {
			case <-debounceTimer.C:
			default:
			}
		}
		debounceTimer.Reset(s.debounce)
		scanPending = true
	}

	for {
		select {
		case <-ctx.Done():
			s.logger.Info("watcher stopping")
			return nil

		case ev, ok := <-eventCh:
			if !ok {
				return nil
			}
			if s.handleFSEvent(ev) {
				arm()
			}

		case err, ok := <-errCh:
			if !ok {
				return nil
			}
			s.logger.Error("fsnotify error", "error", err)

		case <-pollCh:
			if s.poll() {
				arm()
			}

		case <-debounceTimer.C:
			if scanPending {
				scanPending = false
				s.logger.Info("changes settled, rescanning")
				if err := s.scanFn(ctx); err != nil {
					s.logger.Error("rescan failed", "error", err)
				}
			}
		}
	}
}

// openWatcher returns a working fsnotify watcher on the directory, or nil
// when polling has to be used instead.
func (s *Service) openWatcher() *fsnotify.Watcher {
	if s.forcePoll {
		return nil
	}
	if s.probeTimeout > 0 && !ProbeFSNotify(s.dir, s.probeTimeout) {
		s.logger.Warn("fsnotify does not deliver events for this directory, polling", "dir", s.dir)
		return nil
	}
	w, err := fsnotify.NewWatcher()
	if err != nil {
		s.logger.Warn("fsnotify unavailable, polling", "error", err)
		return nil
	}
	if err := w.Add(s.dir); err != nil {
		s.logger.Warn("cannot watch directory, polling", "dir", s.dir, "error", err)
		w.Close() //nolint:errcheck,gosec
		return nil
	}
	return w
}

// handleFSEvent reports whether ev changes the set of mods.
func (s *Service) handleFSEvent(ev fsnotify.Event) bool {
	if !ev.Has(fsnotify.Create) && !ev.Has(fsnotify.Remove) &&
		!ev.Has(fsnotify.Rename) && !ev.Has(fsnotify.Write) {
		return false
	}
	if filepath.Dir(ev.Name) != filepath.Clean(s.dir) || !archive.IsModFile(ev.Name) {
		return false
	}
	s.logger.Debug("mod file changed", "file", filepath.Base(ev.Name), "op", ev.Op.String())
	s.publish(ev.Name, ev.Op.String())
	return true
}

// poll compares the directory with the last snapshot and reports whether
// any mod file appeared, disappeared or changed.
func (s *Service) poll() bool {
	snap, err := readModSnapshot(s.dir)
	if err != nil {
		s.logger.Warn("poll failed", "dir", s.dir, "error", err)
		return false
	}

	s.mu.Lock()
	old := s.snapshot
	s.snapshot = snap
	s.mu.Unlock()

	changed := false
	for name, st := range snap {
		prev, existed := old[name]
		switch {
		case !existed:
			s.publish(filepath.Join(s.dir, name), "CREATE")
			changed = true
		case prev != st:
			s.publish(filepath.Join(s.dir, name), "WRITE")
			changed = true
		}
	}
	for name := range old {
		if _, exists := snap[name]; !exists {
			s.publish(filepath.Join(s.dir, name), "REMOVE")
			changed = true
		}
	}
	return changed
}

func (s *Service) publish(path, op string) {
	if s.eventBus == nil {
		return
	}
	s.eventBus.Publish(event.Event{
		Type: event.ModsChanged,
		Data: map[string]any{
			"path": path,
			"name": filepath.Base(path),
			"op":   op,
		},
	})
}

// readModSnapshot records size and modification time of each mod file.
func readModSnapshot(dir string) (map[string]fileState, error) {
	entries, err := os.ReadDir(dir)
	if err != nil {
		return nil, err
	}
	snap := make(map[string]fileState, len(entries))
	for _, e := range entries {
		if e.IsDir() || !archive.IsModFile(e.Name()) {
			continue
		}
		info, err := e.Info()
		if err != nil {
			continue
		}
		snap[e.Name()] = fileState{size: info.Size(), modTime: info.ModTime()}
	}
	return snap, nil
}
