// Package maintenance keeps the lookup cache database small: it prunes
// stale entries, reclaims space and reports what the file holds.
package maintenance

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"time"

	"github.com/sydlexius/modcheck/internal/provider"
)

const lastPruneKey = "cache.last_prune_at"

// Status holds cache database status information.
type Status struct {
	Path        string `json:"path" yaml:"path"`
	Entries     int    `json:"entries" yaml:"entries"`
	DBFileSize  int64  `json:"db_file_size" yaml:"db_file_size"`
	WALFileSize int64  `json:"wal_file_size" yaml:"wal_file_size"`
	PageCount   int64  `json:"page_count" yaml:"page_count"`
	PageSize    int64  `json:"page_size" yaml:"page_size"`
	LastPruneAt string `json:"last_prune_at,omitempty" yaml:"last_prune_at,omitempty"`
}

// Service provides cache database maintenance operations.
type Service struct {
	db     *sql.DB
	dbPath string
	cache  *provider.CacheService
	logger *slog.Logger
	now    func() time.Time
}

// NewService creates a maintenance service for the database at dbPath.
func NewService(db *sql.DB, dbPath string, cache *provider.CacheService, logger *slog.Logger) *Service {
	return &Service{
		db:     db,
		dbPath: dbPath,
		cache:  cache,
		logger: logger.With(slog.String("component", "maintenance")),
		now:    time.Now,
	}
}

// Status returns current cache database status.
func (s *Service) Status(ctx context.Context) (*Status, error) {
	st := &Status{Path: s.dbPath}

	n, err := s.cache.Count(ctx)
	if err != nil {
		return nil, err
	}
	st.Entries = n

	if info, err := os.Stat(s.dbPath); err == nil {
		st.DBFileSize = info.Size()
	}
	if info, err := os.Stat(s.dbPath + "-wal"); err == nil {
		st.WALFileSize = info.Size()
	}

	if err := s.db.QueryRowContext(ctx, "PRAGMA page_count").Scan(&st.PageCount); err != nil {
		s.logger.Warn("reading page_count", "error", err)
	}
	if err := s.db.QueryRowContext(ctx, "PRAGMA page_size").Scan(&st.PageSize); err != nil {
		s.logger.Warn("reading page_size", "error", err)
	}

	if t, ok := s.lastPrune(ctx); ok {
		st.LastPruneAt = t.Format(time.RFC3339)
	}
	return st, nil
}

// Prune removes entries older than olderThan, then optimizes the database
// and records when it ran.
func (s *Service) Prune(ctx context.Context, olderThan time.Duration) (int64, error) {
	n, err := s.cache.Prune(ctx, olderThan)
	if err != nil {
		return 0, err
	}
	s.logger.Info("pruned lookup cache", slog.Int64("removed", n), slog.String("older_than", olderThan.String()))

	if err := s.Optimize(ctx); err != nil {
		return n, err
	}

	now := s.now().UTC().Format(time.RFC3339)
	_, err = s.db.ExecContext(ctx,
		`INSERT INTO settings (key, value, updated_at) VALUES (?, ?, ?)
		ON CONFLICT(key) DO UPDATE SET value = excluded.value, updated_at = excluded.updated_at`,
		lastPruneKey, now, now)
	if err != nil {
		s.logger.Warn("recording prune timestamp", "error", err)
	}
	return n, nil
}

// PruneIfDue prunes entries older than ttl when the last prune happened
// more than ttl ago, or never. It reports whether a prune ran.
func (s *Service) PruneIfDue(ctx context.Context, ttl time.Duration) (bool, error) {
	if t, ok := s.lastPrune(ctx); ok && s.now().Sub(t) < ttl {
		return false, nil
	}
	if _, err := s.Prune(ctx, ttl); err != nil {
		return false, err
	}
	return true, nil
}

// Clear removes every entry and rebuilds the database file.
func (s *Service) Clear(ctx context.Context) (int64, error) {
	n, err := s.cache.Clear(ctx)
	if err != nil {
		return 0, err
	}
	s.logger.Info("cleared lookup cache", slog.Int64("removed", n))
	return n, s.Vacuum(ctx)
}

// Optimize runs PRAGMA optimize followed by a WAL checkpoint.
func (s *Service) Optimize(ctx context.Context) error {
	if _, err := s.db.ExecContext(ctx, "PRAGMA optimize"); err != nil {
		return fmt.Errorf("PRAGMA optimize: %w", err)
	}
	if _, err := s.db.ExecContext(ctx, "PRAGMA wal_checkpoint(TRUNCATE)"); err != nil {
		return fmt.Errorf("WAL checkpoint: %w", err)
	}
	s.logger.Debug("optimize complete")
	return nil
}

// Vacuum runs VACUUM to rebuild the database file.
func (s *Service) Vacuum(ctx context.Context) error {
	if _, err := s.db.ExecContext(ctx, "VACUUM"); err != nil {
		return fmt.Errorf("VACUUM: %w", err)
	}
	s.logger.Debug("vacuum complete")
	return nil
}

func (s *Service) lastPrune(ctx context.Context) (time.Time, bool) {
	var v string
	err := s.db.QueryRowContext(ctx, `SELECT value FROM settings WHERE key = ?`, lastPruneKey).Scan(&v)
	if err != nil {
		if !errors.Is(err, sql.ErrNoRows) {
			s.logger.Warn("reading prune timestamp", "error", err)
		}
		return time.Time{}, false
	}
	t, err := time.Parse(time.RFC3339, v)
	if err != nil {
		return time.Time{}, false
	}
	return t, true
}
