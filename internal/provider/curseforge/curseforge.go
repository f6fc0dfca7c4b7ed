package curseforge

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/sydlexius/modcheck/internal/hashing"
	"github.com/sydlexius/modcheck/internal/provider"
	"github.com/sydlexius/modcheck/internal/version"
)

const (
	defaultBaseURL = "https://api.curseforge.com"

	// minecraftGameID is CurseForge's id for Minecraft.
	minecraftGameID = 432
)

// knownLoaders maps CurseForge game-version tags to loader names.
var knownLoaders = map[string]string{
	"forge":      "forge",
	"neoforge":   "neoforge",
	"fabric":     "fabric",
	"quilt":      "quilt",
	"liteloader": "liteloader",
}

// Adapter implements the provider.Provider interface for CurseForge.
type Adapter struct {
	client  *http.Client
	limiter *provider.RateLimiterMap
	policy  provider.RetryPolicy
	logger  *slog.Logger
	baseURL string
	apiKey  string
	now     func() time.Time
}

// New creates a CurseForge adapter with the default base URL.
func New(limiter *provider.RateLimiterMap, policy provider.RetryPolicy, apiKey string, logger *slog.Logger) *Adapter {
	return NewWithBaseURL(limiter, policy, apiKey, logger, defaultBaseURL)
}

// NewWithBaseURL creates a CurseForge adapter with a custom base URL (for testing).
func NewWithBaseURL(limiter *provider.RateLimiterMap, policy provider.RetryPolicy, apiKey string, logger *slog.Logger, baseURL string) *Adapter {
	return &Adapter{
		client:  &http.Client{},
		limiter: limiter,
		policy:  policy,
		logger:  logger.With(slog.String("provider", "curseforge")),
		baseURL: strings.TrimRight(baseURL, "/"),
		apiKey:  strings.TrimSpace(apiKey),
		now:     time.Now,
	}
}

// Name returns the provider name.
func (a *Adapter) Name() provider.ProviderName { return provider.NameCurseForge }

// RequiresAuth returns whether this provider needs an API key.
func (a *Adapter) RequiresAuth() bool { return true }

// LookupByHash matches the file by its CurseForge fingerprint.
func (a *Adapter) LookupByHash(ctx context.Context, d hashing.Digests) (*provider.LookupResult, error) {
	if a.apiKey == "" {
		return nil, &provider.ErrAuthRequired{Provider: provider.NameCurseForge}
	}

	matches, err := a.fingerprints(ctx, []uint32{d.Fingerprint})
	if err != nil {
		return nil, err
	}
	match, ok := matches[d.Fingerprint]
	if !ok {
		return nil, nil
	}

	result := a.result(match)
	if mod, err := a.mod(ctx, modID(match)); err != nil {
		a.logger.Debug("fetching mod", slog.Int("mod_id", modID(match)), slog.String("error", err.Error()))
	} else if mod != nil {
		decorate(result, mod)
	}
	return result, nil
}

// LookupBatch matches up to provider.BatchSize files with one fingerprint
// request and one mod request.
func (a *Adapter) LookupBatch(ctx context.Context, ds []hashing.Digests) ([]*provider.LookupResult, error) {
	if a.apiKey == "" {
		return nil, &provider.ErrAuthRequired{Provider: provider.NameCurseForge}
	}

	prints := make([]uint32, 0, len(ds))
	for _, d := range ds {
		prints = append(prints, d.Fingerprint)
	}
	matches, err := a.fingerprints(ctx, prints)
	if err != nil {
		return nil, err
	}

	out := make([]*provider.LookupResult, len(ds))
	var ids []int
	for i, d := range ds {
		if m, ok := matches[d.Fingerprint]; ok {
			out[i] = a.result(m)
			ids = append(ids, modID(m))
		}
	}
	if len(ids) == 0 {
		return out, nil
	}

	mods, err := a.mods(ctx, ids)
	if err != nil {
		a.logger.Debug("fetching mods", slog.Int("count", len(ids)), slog.String("error", err.Error()))
		return out, nil
	}
	for _, r := range out {
		if r == nil {
			continue
		}
		if id, _ := strconv.Atoi(r.ProjectID); mods[id] != nil {
			decorate(r, mods[id])
		}
	}
	return out, nil
}

// fingerprints returns the exact matches keyed by fingerprint. A match is
// only used for the fingerprint it carries.
func (a *Adapter) fingerprints(ctx context.Context, prints []uint32) (map[uint32]*Match, error) {
	payload, err := json.Marshal(FingerprintRequest{Fingerprints: prints})
	if err != nil {
		return nil, fmt.Errorf("encoding request: %w", err)
	}
	body, err := a.doRequest(ctx, http.MethodPost, fmt.Sprintf("%s/v1/fingerprints/%d", a.baseURL, minecraftGameID), payload)
	if provider.IsNotFound(err) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}

	var resp FingerprintResponse
	if err := json.Unmarshal(body, &resp); err != nil {
		return nil, fmt.Errorf("parsing fingerprint response: %w", err)
	}
	matches := make(map[uint32]*Match, len(resp.Data.ExactMatches))
	for i := range resp.Data.ExactMatches {
		m := &resp.Data.ExactMatches[i]
		if _, seen := matches[m.File.FileFingerprint]; !seen {
			matches[m.File.FileFingerprint] = m
		}
	}
	return matches, nil
}

func (a *Adapter) result(m *Match) *provider.LookupResult {
	gameVersions, loaders := splitGameVersions(m.File.GameVersions)
	return &provider.LookupResult{
		Provider:      provider.NameCurseForge,
		ProjectID:     strconv.Itoa(modID(m)),
		FileID:        strconv.Itoa(m.File.ID),
		ModName:       m.File.DisplayName,
		VersionNumber: m.File.DisplayName,
		Pairs:         provider.CrossPairs(gameVersions, loaders),
		LookedUpAt:    a.now().UTC(),
	}
}

func modID(m *Match) int {
	if m.File.ModID != 0 {
		return m.File.ModID
	}
	return m.ID
}

// decorate fills the display name and page link from the mod.
func decorate(r *provider.LookupResult, mod *Mod) {
	if mod.Name != "" {
		r.ModName = mod.Name
	}
	if mod.Links.WebsiteURL != "" {
		r.PageURL = strings.TrimRight(mod.Links.WebsiteURL, "/") + "/files/" + r.FileID
	}
}

// TestConnection verifies the API key is valid.
func (a *Adapter) TestConnection(ctx context.Context) error {
	if a.apiKey == "" {
		return &provider.ErrAuthRequired{Provider: provider.NameCurseForge}
	}
	_, err := a.doRequest(ctx, http.MethodGet, fmt.Sprintf("%s/v1/games/%d", a.baseURL, minecraftGameID), nil)
	return err
}

func (a *Adapter) mod(ctx context.Context, id int) (*Mod, error) {
	if id == 0 {
		return nil, nil
	}
	body, err := a.doRequest(ctx, http.MethodGet, fmt.Sprintf("%s/v1/mods/%d", a.baseURL, id), nil)
	if provider.IsNotFound(err) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	var resp ModResponse
	if err := json.Unmarshal(body, &resp); err != nil {
		return nil, fmt.Errorf("parsing mod response: %w", err)
	}
	return &resp.Data, nil
}

// mods fetches several mods in one request, keyed by id.
func (a *Adapter) mods(ctx context.Context, ids []int) (map[int]*Mod, error) {
	payload, err := json.Marshal(ModsRequest{ModIDs: ids})
	if err != nil {
		return nil, fmt.Errorf("encoding request: %w", err)
	}
	body, err := a.doRequest(ctx, http.MethodPost, a.baseURL+"/v1/mods", payload)
	if err != nil {
		return nil, err
	}
	var resp ModsResponse
	if err := json.Unmarshal(body, &resp); err != nil {
		return nil, fmt.Errorf("parsing mods response: %w", err)
	}
	out := make(map[int]*Mod, len(resp.Data))
	for i := range resp.Data {
		out[resp.Data[i].ID] = &resp.Data[i]
	}
	return out, nil
}

// splitGameVersions separates game versions (they start with a digit) from
// loader tags; environment tags such as "Client" are dropped.
func splitGameVersions(tags []string) (gameVersions, loaders []string) {
	for _, tag := range tags {
		tag = strings.TrimSpace(tag)
		if tag == "" {
			continue
		}
		if tag[0] >= '0' && tag[0] <= '9' {
			gameVersions = append(gameVersions, tag)
			continue
		}
		if l, ok := knownLoaders[strings.ToLower(tag)]; ok {
			loaders = append(loaders, l)
		}
	}
	return gameVersions, loaders
}

// doRequest executes an HTTP request with rate limiting, retries, the API
// key and standard headers.
func (a *Adapter) doRequest(ctx context.Context, method, reqURL string, payload []byte) ([]byte, error) {
	return provider.Retry(ctx, a.limiter, provider.NameCurseForge, a.policy, a.logger, func(ctx context.Context) ([]byte, error) {
		return a.send(ctx, method, reqURL, payload)
	})
}

func (a *Adapter) send(ctx context.Context, method, reqURL string, payload []byte) ([]byte, error) {
	var body io.Reader
	if payload != nil {
		body = bytes.NewReader(payload)
	}
	req, err := http.NewRequestWithContext(ctx, method, reqURL, body)
	if err != nil {
		return nil, fmt.Errorf("creating request: %w", err)
	}
	req.Header.Set("User-Agent", version.UserAgent())
	req.Header.Set("Accept", "application/json")
	req.Header.Set("x-api-key", a.apiKey)
	if payload != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	a.logger.Debug("requesting", slog.String("method", method), slog.String("url", reqURL))

	resp, err := a.client.Do(req) //nolint:gosec // URL constructed from trusted base + numeric ids
	if err != nil {
		return nil, &provider.ErrProviderUnavailable{
			Provider: provider.NameCurseForge,
			Cause:    err,
		}
	}
	defer resp.Body.Close() //nolint:errcheck

	switch {
	case resp.StatusCode == http.StatusOK:
		data, err := io.ReadAll(io.LimitReader(resp.Body, 2*1024*1024))
		if err != nil {
			return nil, &provider.ErrProviderUnavailable{Provider: provider.NameCurseForge, Cause: fmt.Errorf("reading body: %w", err)}
		}
		return data, nil
	case resp.StatusCode == http.StatusNotFound:
		_, _ = io.Copy(io.Discard, resp.Body)
		return nil, &provider.ErrNotFound{Provider: provider.NameCurseForge, ID: reqURL}
	case resp.StatusCode == http.StatusTooManyRequests || resp.StatusCode >= 500:
		_, _ = io.Copy(io.Discard, resp.Body)
		return nil, &provider.ErrProviderUnavailable{
			Provider:   provider.NameCurseForge,
			Cause:      fmt.Errorf("HTTP %d", resp.StatusCode),
			RetryAfter: 2 * time.Second,
		}
	default:
		_, _ = io.Copy(io.Discard, resp.Body)
		return nil, &provider.ErrRejected{Provider: provider.NameCurseForge, StatusCode: resp.StatusCode}
	}
}
