// Package scanner runs the compatibility pipeline over a mods directory.
package scanner

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/google/uuid"
	"golang.org/x/sync/errgroup"

	"github.com/sydlexius/modcheck/internal/archive"
	"github.com/sydlexius/modcheck/internal/compat"
	"github.com/sydlexius/modcheck/internal/event"
	"github.com/sydlexius/modcheck/internal/hashing"
	"github.com/sydlexius/modcheck/internal/manifest"
	"github.com/sydlexius/modcheck/internal/provider"
)

// DefaultWorkers is the worker count used when none is configured.
const DefaultWorkers = 4

var (
	// ErrDirectoryAccess is returned when the mods directory cannot be listed.
	ErrDirectoryAccess = errors.New("mods directory not accessible")
	// ErrScanInProgress is returned when Scan is called while another scan
	// on the same Service is still running.
	ErrScanInProgress = errors.New("scan already in progress")
)

// Resolver looks an archive up online. *provider.Resolver satisfies it.
type Resolver interface {
	Resolve(ctx context.Context, d hashing.Digests) (*provider.LookupResult, error)
}

// Prefetcher is implemented by resolvers that can answer many lookups with
// a few batched requests. *provider.Resolver satisfies it.
type Prefetcher interface {
	Prefetch(ctx context.Context, ds []hashing.Digests)
}

// Service checks every mod file in a directory.
type Service struct {
	resolver Resolver
	logger   *slog.Logger
	workers  int
	eventBus *event.Bus

	mu          sync.Mutex
	currentScan *ScanResult
}

// NewService creates a scanner service. A nil resolver disables online
// lookups entirely; pass an untyped nil rather than a nil *provider.Resolver.
func NewService(resolver Resolver, logger *slog.Logger, workers int) *Service {
	if workers <= 0 {
		workers = DefaultWorkers
	}
	return &Service{
		resolver: resolver,
		logger:   logger.With(slog.String("component", "scanner")),
		workers:  workers,
	}
}

// SetEventBus sets the event bus for publishing scan events.
func (s *Service) SetEventBus(bus *event.Bus) {
	s.eventBus = bus
}

// Status returns a snapshot of the current or most recent scan result.
// The returned value is a copy and safe to read without synchronization.
func (s *Service) Status() *ScanResult {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.currentScan == nil {
		return nil
	}
	snapshot := *s.currentScan
	return &snapshot
}

// ListModFiles returns the mod files directly inside dir, sorted by name.
// Subdirectories are not descended into.
func ListModFiles(dir string) ([]string, error) {
	entries, err := os.ReadDir(dir)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrDirectoryAccess, err)
	}
	var files []string
	for _, e := range entries {
		if e.IsDir() || !archive.IsModFile(e.Name()) {
			continue
		}
		files = append(files, filepath.Join(dir, e.Name()))
	}
	return files, nil
}

// Scan checks every mod file in dir with checker. Every archive yields
// exactly one verdict; a file that cannot be read yields an unknown one.
//
// When ctx is canceled the verdicts finished so far are returned with status
// "interrupted" and archives not yet started are left out. The error is
// non-nil only when dir cannot be listed or another scan is running.
func (s *Service) Scan(ctx context.Context, dir string, checker *compat.Checker) (*ScanResult, error) {
	files, err := ListModFiles(dir)
	if err != nil {
		return nil, err
	}

	s.mu.Lock()
	if s.currentScan != nil && s.currentScan.Status == StatusRunning {
		s.mu.Unlock()
		return nil, ErrScanInProgress
	}
	result := &ScanResult{
		ID:         uuid.New().String(),
		Status:     StatusRunning,
		Directory:  dir,
		StartedAt:  time.Now().UTC(),
		Strategy:   checker.Strategy(),
		Target:     checker.Target(),
		TotalFiles: len(files),
	}
	s.currentScan = result
	s.mu.Unlock()

	log := s.logger.With(slog.String("scan_id", result.ID))
	log.Info("scan started", "dir", dir, "files", len(files), "strategy", string(checker.Strategy()), "target", checker.Target().String())
	s.publish(event.ScanStarted, map[string]any{
		"scan_id": result.ID,
		"dir":     dir,
		"files":   len(files),
	})

	// Read and hash every archive first so online lookups can be batched.
	slots := make([]*compat.Verdict, len(files))
	subjects := make([]*compat.Subject, len(files))
	var g errgroup.Group
	g.SetLimit(s.workers)
	for i, path := range files {
		if ctx.Err() != nil {
			break
		}
		g.Go(func() error {
			if ctx.Err() != nil {
				return nil
			}
			a, err := archive.Open(path)
			if err != nil {
				s.logger.Warn("unreadable archive", "file", filepath.Base(path), "error", err)
				v := checker.Unreadable(path, err)
				slots[i] = &v
				s.published(result.ID, v)
				return nil
			}
			subj := s.subject(ctx, a, false)
			subjects[i] = &subj
			return nil
		})
	}
	_ = g.Wait() // workers never return errors

	online := checker.Strategy().UsesOnline() && s.resolver != nil
	if p, ok := s.resolver.(Prefetcher); ok && online && ctx.Err() == nil {
		var ds []hashing.Digests
		for _, subj := range subjects {
			if subj != nil {
				ds = append(ds, subj.Digests)
			}
		}
		p.Prefetch(ctx, ds)
	}

	var judges errgroup.Group
	judges.SetLimit(s.workers)
	for i, subj := range subjects {
		if subj == nil || ctx.Err() != nil {
			continue
		}
		judges.Go(func() error {
			if ctx.Err() != nil {
				return nil
			}
			if online {
				s.lookup(ctx, subj)
				if subj.LookupErr != nil && ctx.Err() != nil {
					log.Debug("verdict dropped after cancellation", "file", filepath.Base(subj.Path))
					return nil
				}
			}
			v := s.judge(checker, *subj)
			slots[i] = &v
			s.published(result.ID, v)
			return nil
		})
	}
	_ = judges.Wait()

	verdicts := make([]compat.Verdict, 0, len(files))
	for _, v := range slots {
		if v != nil {
			verdicts = append(verdicts, *v)
		}
	}

	s.mu.Lock()
	now := time.Now().UTC()
	result.CompletedAt = &now
	result.Verdicts = verdicts
	result.Counts = countStatuses(verdicts)
	result.Status = StatusCompleted
	if len(verdicts) < len(files) && ctx.Err() != nil {
		result.Status = StatusInterrupted
		result.Error = ctx.Err().Error()
	}
	snapshot := *result
	s.mu.Unlock()

	log.Info("scan finished",
		"status", snapshot.Status,
		"checked", len(verdicts),
		"compatible", snapshot.Count(compat.StatusCompatible),
		"incompatible", snapshot.Count(compat.StatusIncompatible),
		"unknown", snapshot.Count(compat.StatusUnknown),
		"duration", snapshot.Duration().Round(time.Millisecond).String(),
	)
	s.publish(event.ScanCompleted, map[string]any{
		"scan_id":      snapshot.ID,
		"status":       snapshot.Status,
		"total_files":  snapshot.TotalFiles,
		"checked":      len(verdicts),
		"compatible":   snapshot.Count(compat.StatusCompatible),
		"incompatible": snapshot.Count(compat.StatusIncompatible),
		"unknown":      snapshot.Count(compat.StatusUnknown),
	})
	return &snapshot, nil
}

// CheckFile runs the pipeline for a single archive. Unlike Scan it always
// returns a verdict, even when ctx was canceled during the lookup.
func (s *Service) CheckFile(ctx context.Context, path string, checker *compat.Checker) compat.Verdict {
	v, _ := s.check(ctx, path, checker)
	return v
}

// Inspect reads an archive and returns the subject a verdict would be built
// from, without judging it. The lookup runs only when online is set.
func (s *Service) Inspect(ctx context.Context, path string, online bool) (compat.Subject, error) {
	a, err := archive.Open(path)
	if err != nil {
		return compat.Subject{Path: path}, err
	}
	return s.subject(ctx, a, online), nil
}

// check returns false when the verdict is incomplete because ctx was
// canceled while the online lookup was in flight.
func (s *Service) check(ctx context.Context, path string, checker *compat.Checker) (compat.Verdict, bool) {
	a, err := archive.Open(path)
	if err != nil {
		s.logger.Warn("unreadable archive", "file", filepath.Base(path), "error", err)
		return checker.Unreadable(path, err), true
	}

	subj := s.subject(ctx, a, checker.Strategy().UsesOnline())
	if subj.LookupErr != nil && ctx.Err() != nil {
		return checker.Check(subj), false
	}
	return s.judge(checker, subj), true
}

func (s *Service) judge(checker *compat.Checker, subj compat.Subject) compat.Verdict {
	v := checker.Check(subj)
	s.logger.Debug("archive checked",
		"file", v.File,
		"status", string(v.Status),
		"source", string(v.Source),
		"reason", v.Reason,
	)
	return v
}

func (s *Service) subject(ctx context.Context, a *archive.Archive, online bool) compat.Subject {
	subj := compat.Subject{
		Path:    a.Path(),
		Size:    a.Size(),
		Digests: hashing.Compute(a.Bytes()),
	}
	subj.Descriptor, subj.ParseErr = manifest.Parse(a)
	if subj.ParseErr != nil && !errors.Is(subj.ParseErr, manifest.ErrUnknownLoader) {
		s.logger.Warn("manifest problem", "file", a.Name(), "error", subj.ParseErr)
	}

	if online && s.resolver != nil {
		s.lookup(ctx, &subj)
	}
	return subj
}

func (s *Service) lookup(ctx context.Context, subj *compat.Subject) {
	subj.Lookup, subj.LookupErr = s.resolver.Resolve(ctx, subj.Digests)
	if subj.LookupErr != nil && ctx.Err() == nil {
		s.logger.Warn("online lookup failed", "file", filepath.Base(subj.Path), "error", subj.LookupErr)
	}
}

func (s *Service) published(scanID string, v compat.Verdict) {
	s.publish(event.ArchiveChecked, map[string]any{
		"scan_id": scanID,
		"file":    v.File,
		"status":  string(v.Status),
		"source":  string(v.Source),
	})
}

func (s *Service) publish(t event.Type, data map[string]any) {
	if s.eventBus == nil {
		return
	}
	s.eventBus.Publish(event.Event{Type: t, Data: data})
}
