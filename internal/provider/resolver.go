package provider

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"slices"
	"sync"

	"github.com/sydlexius/modcheck/internal/hashing"
)

// Resolver queries providers in priority order and returns the first match,
// consulting the lookup cache when one is configured.
type Resolver struct {
	registry *Registry
	cache    *CacheService
	logger   *slog.Logger

	mu         sync.Mutex
	prefetched map[ProviderName]map[string]*LookupResult
}

// NewResolver creates a Resolver. cache may be nil to disable caching.
func NewResolver(registry *Registry, cache *CacheService, logger *slog.Logger) *Resolver {
	return &Resolver{
		registry:   registry,
		cache:      cache,
		logger:     logger.With(slog.String("component", "resolver")),
		prefetched: make(map[ProviderName]map[string]*LookupResult),
	}
}

// Providers returns the registered providers in the order they are queried.
func (r *Resolver) Providers() []Provider { return r.registry.All() }

// Resolve looks the file up by its digests. It returns nil, nil when every
// provider answered that it does not know the file. When no provider
// matched and at least one failed, the failures are returned joined; a
// provider that ran out of retries contributes an error matching
// ErrNetworkFailure.
func (r *Resolver) Resolve(ctx context.Context, d hashing.Digests) (*LookupResult, error) {
	var failures []error

	for _, p := range r.registry.All() {
		name := p.Name()

		if result, ok := r.recall(name, d.ContentKey); ok {
			if result != nil {
				return result, nil
			}
			continue
		}
		if entry := r.cached(ctx, name, d.ContentKey); entry != nil {
			if entry.Result != nil {
				return entry.Result, nil
			}
			continue
		}

		result, err := p.LookupByHash(ctx, d)
		if err != nil {
			r.logger.Warn("provider lookup failed",
				slog.String("provider", string(name)),
				slog.String("sha1", d.SHA1),
				slog.String("error", err.Error()))
			failures = append(failures, fmt.Errorf("%s: %w", name, err))
			continue
		}

		r.store(ctx, name, d.ContentKey, result)
		if result != nil {
			return result, nil
		}
	}

	if len(failures) > 0 {
		return nil, errors.Join(failures...)
	}
	return nil, nil
}

// Prefetch looks many files up at once with every provider that supports
// batch requests, so the Resolve calls that follow need no request of their
// own. A file matched by one provider is not asked of later ones. Failed
// batches are logged and left for Resolve to retry per file.
func (r *Resolver) Prefetch(ctx context.Context, ds []hashing.Digests) {
	pending := make([]hashing.Digests, 0, len(ds))
	for _, d := range ds {
		if d.ContentKey != "" {
			pending = append(pending, d)
		}
	}

	for _, p := range r.registry.All() {
		if len(pending) == 0 || ctx.Err() != nil {
			return
		}
		bp, ok := p.(BatchProvider)
		if !ok {
			continue
		}
		name := p.Name()

		var ask, next []hashing.Digests
		for _, d := range pending {
			if entry := r.cached(ctx, name, d.ContentKey); entry != nil {
				if entry.Result == nil {
					next = append(next, d)
				}
				continue
			}
			ask = append(ask, d)
		}

		for chunk := range slices.Chunk(ask, BatchSize) {
			results, err := bp.LookupBatch(ctx, chunk)
			if err == nil && len(results) != len(chunk) {
				err = fmt.Errorf("got %d results for %d files", len(results), len(chunk))
			}
			if err != nil {
				r.logger.Warn("batch lookup failed",
					slog.String("provider", string(name)),
					slog.Int("files", len(chunk)),
					slog.String("error", err.Error()))
				next = append(next, chunk...)
				continue
			}
			for i, d := range chunk {
				r.remember(name, d.ContentKey, results[i])
				r.store(ctx, name, d.ContentKey, results[i])
				if results[i] == nil {
					next = append(next, d)
				}
			}
		}
		r.logger.Debug("prefetched lookups", slog.String("provider", string(name)), slog.Int("files", len(ask)))
		pending = next
	}
}

func (r *Resolver) remember(name ProviderName, key string, result *LookupResult) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.prefetched == nil {
		r.prefetched = make(map[ProviderName]map[string]*LookupResult)
	}
	m := r.prefetched[name]
	if m == nil {
		m = make(map[string]*LookupResult)
		r.prefetched[name] = m
	}
	m[key] = result
}

func (r *Resolver) recall(name ProviderName, key string) (*LookupResult, bool) {
	if key == "" {
		return nil, false
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	result, ok := r.prefetched[name][key]
	return result, ok
}

func (r *Resolver) cached(ctx context.Context, name ProviderName, key string) *CacheEntry {
	if r.cache == nil || key == "" {
		return nil
	}
	entry, err := r.cache.Get(ctx, name, key)
	if err != nil {
		r.logger.Warn("reading lookup cache", slog.String("provider", string(name)), slog.String("error", err.Error()))
		return nil
	}
	return entry
}

func (r *Resolver) store(ctx context.Context, name ProviderName, key string, result *LookupResult) {
	if r.cache == nil || key == "" {
		return
	}
	if err := r.cache.Put(ctx, name, key, result); err != nil {
		r.logger.Warn("writing lookup cache", slog.String("provider", string(name)), slog.String("error", err.Error()))
	}
}

// TestAll runs TestConnection against every registered provider and returns
// the outcome per provider.
func (r *Resolver) TestAll(ctx context.Context) map[ProviderName]error {
	out := make(map[ProviderName]error)
	for _, p := range r.registry.All() {
		out[p.Name()] = p.TestConnection(ctx)
	}
	return out
}
