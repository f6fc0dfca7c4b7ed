package provider

import (
	"context"
	"sync"

	"golang.org/x/time/rate"
)

// Default rate limits per provider (requests per second). Modrinth allows
// 300 requests per minute per IP.
var defaultRateLimits = map[ProviderName]rate.Limit{
	NameModrinth:   5,
	NameCurseForge: 2,
}

// RateLimiterMap holds one rate.Limiter per provider, created once at startup.
type RateLimiterMap struct {
	mu       sync.RWMutex
	limiters map[ProviderName]*rate.Limiter
}

// NewRateLimiterMap creates all provider rate limiters with default limits.
func NewRateLimiterMap() *RateLimiterMap {
	return NewRateLimiterMapWithLimits(nil)
}

// NewRateLimiterMapWithLimits creates the rate limiters, replacing the
// default limit of any provider present in overrides. A burst equal to the
// rounded-up limit lets a fresh worker pool start without queueing.
func NewRateLimiterMapWithLimits(overrides map[ProviderName]float64) *RateLimiterMap {
	m := &RateLimiterMap{
		limiters: make(map[ProviderName]*rate.Limiter, len(defaultRateLimits)),
	}
	for name, limit := range defaultRateLimits {
		if o, ok := overrides[name]; ok && o > 0 {
			limit = rate.Limit(o)
		}
		m.limiters[name] = rate.NewLimiter(limit, max(1, int(limit+0.999)))
	}
	return m
}

// Wait blocks until the rate limiter for the given provider allows a request,
// or the context is canceled.
func (m *RateLimiterMap) Wait(ctx context.Context, name ProviderName) error {
	m.mu.RLock()
	limiter, ok := m.limiters[name]
	m.mu.RUnlock()
	if !ok {
		return nil
	}
	return limiter.Wait(ctx)
}

// SetLimit changes the limit of one provider at runtime.
func (m *RateLimiterMap) SetLimit(name ProviderName, perSecond float64) {
	if perSecond <= 0 {
		return
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	if l, ok := m.limiters[name]; ok {
		l.SetLimit(rate.Limit(perSecond))
		l.SetBurst(max(1, int(perSecond+0.999)))
		return
	}
	m.limiters[name] = rate.NewLimiter(rate.Limit(perSecond), max(1, int(perSecond+0.999)))
}
