package provider

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"time"
)

// cacheTimeFormat has a fixed-width fraction so stored timestamps sort
// lexically in time order.
const cacheTimeFormat = "2006-01-02T15:04:05.000000000Z07:00"

// CacheEntry is a cached lookup. A nil Result records that the provider had
// no match for the file.
type CacheEntry struct {
	Result    *LookupResult
	FetchedAt time.Time
}

// CacheService stores provider lookups keyed by provider and content key in
// the lookup_cache table. Only definite answers are stored; network
// failures never reach the cache.
type CacheService struct {
	db  *sql.DB
	ttl time.Duration
	now func() time.Time
}

// NewCacheService creates a cache whose entries expire after ttl. A zero
// ttl keeps entries forever.
func NewCacheService(db *sql.DB, ttl time.Duration) *CacheService {
	return &CacheService{db: db, ttl: ttl, now: time.Now}
}

// Get returns the cached entry, or nil when nothing fresh is stored.
func (s *CacheService) Get(ctx context.Context, name ProviderName, key string) (*CacheEntry, error) {
	var (
		found     bool
		raw       sql.NullString
		fetchedAt string
	)
	err := s.db.QueryRowContext(ctx,
		"SELECT found, result, fetched_at FROM lookup_cache WHERE provider = ? AND content_key = ?",
		string(name), key).Scan(&found, &raw, &fetchedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("reading cache entry: %w", err)
	}

	ts, err := time.Parse(cacheTimeFormat, fetchedAt)
	if err != nil {
		return nil, fmt.Errorf("parsing cache timestamp: %w", err)
	}
	if s.ttl > 0 && s.now().Sub(ts) > s.ttl {
		return nil, nil
	}

	entry := &CacheEntry{FetchedAt: ts}
	if found && raw.Valid {
		var r LookupResult
		if err := json.Unmarshal([]byte(raw.String), &r); err != nil {
			return nil, fmt.Errorf("decoding cache entry: %w", err)
		}
		entry.Result = &r
	}
	return entry, nil
}

// Put stores result for the key, replacing any previous entry. A nil result
// stores a negative entry.
func (s *CacheService) Put(ctx context.Context, name ProviderName, key string, result *LookupResult) error {
	var raw sql.NullString
	if result != nil {
		data, err := json.Marshal(result)
		if err != nil {
			return fmt.Errorf("encoding cache entry: %w", err)
		}
		raw = sql.NullString{String: string(data), Valid: true}
	}
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO lookup_cache (provider, content_key, found, result, fetched_at)
		VALUES (?, ?, ?, ?, ?)
		ON CONFLICT(provider, content_key) DO UPDATE SET
			found = excluded.found,
			result = excluded.result,
			fetched_at = excluded.fetched_at`,
		string(name), key, result != nil, raw, s.now().UTC().Format(cacheTimeFormat))
	if err != nil {
		return fmt.Errorf("writing cache entry: %w", err)
	}
	return nil
}

// Prune deletes entries fetched more than olderThan ago and returns how
// many were removed.
func (s *CacheService) Prune(ctx context.Context, olderThan time.Duration) (int64, error) {
	cutoff := s.now().Add(-olderThan).UTC().Format(cacheTimeFormat)
	res, err := s.db.ExecContext(ctx, "DELETE FROM lookup_cache WHERE fetched_at < ?", cutoff)
	if err != nil {
		return 0, fmt.Errorf("pruning cache: %w", err)
	}
	return res.RowsAffected()
}

// Clear deletes every entry.
func (s *CacheService) Clear(ctx context.Context) (int64, error) {
	res, err := s.db.ExecContext(ctx, "DELETE FROM lookup_cache")
	if err != nil {
		return 0, fmt.Errorf("clearing cache: %w", err)
	}
	return res.RowsAffected()
}

// Count returns the number of stored entries.
func (s *CacheService) Count(ctx context.Context) (int, error) {
	var n int
	if err := s.db.QueryRowContext(ctx, "SELECT COUNT(*) FROM lookup_cache").Scan(&n); err != nil {
		return 0, fmt.Errorf("counting cache entries: %w", err)
	}
	return n, nil
}
