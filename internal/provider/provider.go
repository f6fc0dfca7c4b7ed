package provider

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/sydlexius/modcheck/internal/hashing"
)

// AccessTier classifies a provider's access model.
type AccessTier string

// Access tier constants for classifying a provider's access model.
const (
	TierFree    AccessTier = "free"     // No key required
	TierFreeKey AccessTier = "free_key" // Free account/sign-up required
)

// RateLimitInfo documents the known rate limits for a provider.
type RateLimitInfo struct {
	RequestsPerSecond float64 `json:"requests_per_second,omitempty" yaml:"requests_per_second,omitempty"`
	RequestsPerMinute int     `json:"requests_per_minute,omitempty" yaml:"requests_per_minute,omitempty"` // 0 = unknown/unlimited
}

// ProviderCapability describes a provider's access model and documented rate limits.
type ProviderCapability struct {
	Tier      AccessTier     `json:"tier" yaml:"tier"`
	HelpURL   string         `json:"help_url,omitempty" yaml:"help_url,omitempty"`
	RateLimit *RateLimitInfo `json:"rate_limit,omitempty" yaml:"rate_limit,omitempty"`
}

// ProviderCapabilities returns the known capability metadata for each provider.
func ProviderCapabilities() map[ProviderName]ProviderCapability {
	return map[ProviderName]ProviderCapability{
		NameModrinth: {
			Tier:      TierFree,
			HelpURL:   "https://docs.modrinth.com/api/#ratelimits",
			RateLimit: &RateLimitInfo{RequestsPerSecond: 5, RequestsPerMinute: 300},
		},
		NameCurseForge: {
			Tier:      TierFreeKey,
			HelpURL:   "https://console.curseforge.com/",
			RateLimit: &RateLimitInfo{RequestsPerSecond: 2},
		},
	}
}

// ProviderName uniquely identifies an online lookup provider.
type ProviderName string

// Known provider names.
const (
	NameModrinth   ProviderName = "modrinth"
	NameCurseForge ProviderName = "curseforge"
)

// AllProviderNames returns all known provider names in priority order.
func AllProviderNames() []ProviderName {
	return []ProviderName{NameModrinth, NameCurseForge}
}

// DisplayName returns a human-readable name for the provider.
func (n ProviderName) DisplayName() string {
	switch n {
	case NameModrinth:
		return "Modrinth"
	case NameCurseForge:
		return "CurseForge"
	default:
		return string(n)
	}
}

// GameLoader is one (game version, loader) pair a remote service lists for
// a file.
type GameLoader struct {
	GameVersion string `json:"game_version" yaml:"game_version"`
	Loader      string `json:"loader" yaml:"loader"`
}

// LookupResult is what a provider knows about a file identified by hash.
type LookupResult struct {
	Provider      ProviderName `json:"provider" yaml:"provider"`
	ProjectID     string       `json:"project_id" yaml:"project_id"`
	FileID        string       `json:"file_id" yaml:"file_id"`
	ModName       string       `json:"mod_name,omitempty" yaml:"mod_name,omitempty"`
	VersionNumber string       `json:"version_number,omitempty" yaml:"version_number,omitempty"`
	Pairs         []GameLoader `json:"pairs" yaml:"pairs"`
	PageURL       string       `json:"page_url,omitempty" yaml:"page_url,omitempty"`
	LookedUpAt    time.Time    `json:"looked_up_at" yaml:"looked_up_at"`
}

// GameVersions returns the distinct game versions in listing order.
func (r *LookupResult) GameVersions() []string {
	return distinct(r.Pairs, func(p GameLoader) string { return p.GameVersion })
}

// Loaders returns the distinct loaders in listing order.
func (r *LookupResult) Loaders() []string {
	return distinct(r.Pairs, func(p GameLoader) string { return p.Loader })
}

func distinct(pairs []GameLoader, field func(GameLoader) string) []string {
	seen := make(map[string]bool, len(pairs))
	var out []string
	for _, p := range pairs {
		v := field(p)
		if v != "" && !seen[v] {
			seen[v] = true
			out = append(out, v)
		}
	}
	return out
}

// CrossPairs builds the cartesian product of game versions and loaders, the
// shape both upstreams use to describe a file. A file tagged with no loader
// gets one loader-less pair per game version.
func CrossPairs(gameVersions, loaders []string) []GameLoader {
	pairs := make([]GameLoader, 0, len(gameVersions)*max(len(loaders), 1))
	for _, gv := range gameVersions {
		if len(loaders) == 0 {
			pairs = append(pairs, GameLoader{GameVersion: gv})
			continue
		}
		for _, l := range loaders {
			pairs = append(pairs, GameLoader{GameVersion: gv, Loader: strings.ToLower(l)})
		}
	}
	return pairs
}

// Provider is the interface all online lookup adapters must implement.
type Provider interface {
	// Name returns the unique provider identifier.
	Name() ProviderName

	// RequiresAuth returns true if this provider needs an API key to function.
	RequiresAuth() bool

	// LookupByHash finds the file with the given digests. A file the
	// provider does not know returns nil, nil.
	LookupByHash(ctx context.Context, d hashing.Digests) (*LookupResult, error)

	// TestConnection verifies the provider is reachable and any key is valid.
	TestConnection(ctx context.Context) error
}

// BatchSize is the most files a BatchProvider is asked about per call.
const BatchSize = 50

// BatchProvider is implemented by providers that can look up many files in
// one request.
type BatchProvider interface {
	Provider

	// LookupBatch looks up at most BatchSize files. The result has one
	// entry per digest, nil for files the provider does not know.
	LookupBatch(ctx context.Context, ds []hashing.Digests) ([]*LookupResult, error)
}

// ErrNetworkFailure is matched by errors returned after every retry of a
// transient failure has been used up.
var ErrNetworkFailure = errors.New("network failure")

// ErrProviderUnavailable indicates a transient failure (rate-limited, timeout, server error).
type ErrProviderUnavailable struct {
	Provider   ProviderName
	Cause      error
	RetryAfter time.Duration
}

func (e *ErrProviderUnavailable) Error() string {
	return fmt.Sprintf("provider %s unavailable: %v", e.Provider, e.Cause)
}

func (e *ErrProviderUnavailable) Unwrap() error { return e.Cause }

// ErrNotFound indicates the provider has no file for the requested hash.
type ErrNotFound struct {
	Provider ProviderName
	ID       string
}

func (e *ErrNotFound) Error() string {
	return fmt.Sprintf("provider %s: file %s not found", e.Provider, e.ID)
}

// ErrAuthRequired indicates the provider needs an API key but none is configured.
type ErrAuthRequired struct {
	Provider ProviderName
}

func (e *ErrAuthRequired) Error() string {
	return fmt.Sprintf("provider %s: API key not configured", e.Provider)
}

// ErrRejected is a non-transient HTTP failure such as 400 or 403.
type ErrRejected struct {
	Provider   ProviderName
	StatusCode int
}

func (e *ErrRejected) Error() string {
	return fmt.Sprintf("provider %s: request rejected with HTTP %d", e.Provider, e.StatusCode)
}

// IsNotFound reports whether err is an *ErrNotFound.
func IsNotFound(err error) bool {
	var nf *ErrNotFound
	return errors.As(err, &nf)
}
