package modrinth

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/sydlexius/modcheck/internal/hashing"
	"github.com/sydlexius/modcheck/internal/provider"
	"github.com/sydlexius/modcheck/internal/version"
)

const (
	defaultBaseURL = "https://api.modrinth.com"
	siteURL        = "https://modrinth.com"
)

// Adapter implements the provider.Provider interface for Modrinth.
type Adapter struct {
	client  *http.Client
	limiter *provider.RateLimiterMap
	policy  provider.RetryPolicy
	logger  *slog.Logger
	baseURL string
	now     func() time.Time
}

// New creates a Modrinth adapter with the default base URL.
func New(limiter *provider.RateLimiterMap, policy provider.RetryPolicy, logger *slog.Logger) *Adapter {
	return NewWithBaseURL(limiter, policy, logger, defaultBaseURL)
}

// NewWithBaseURL creates a Modrinth adapter with a custom base URL (for testing).
func NewWithBaseURL(limiter *provider.RateLimiterMap, policy provider.RetryPolicy, logger *slog.Logger, baseURL string) *Adapter {
	return &Adapter{
		// Per-attempt deadlines come from the retry policy.
		client:  &http.Client{},
		limiter: limiter,
		policy:  policy,
		logger:  logger.With(slog.String("provider", "modrinth")),
		baseURL: strings.TrimRight(baseURL, "/"),
		now:     time.Now,
	}
}

// Name returns the provider name.
func (a *Adapter) Name() provider.ProviderName { return provider.NameModrinth }

// RequiresAuth returns whether this provider needs an API key.
func (a *Adapter) RequiresAuth() bool { return false }

// LookupByHash finds the version that contains the file. The SHA-1 digest
// is tried first and SHA-512 second.
func (a *Adapter) LookupByHash(ctx context.Context, d hashing.Digests) (*provider.LookupResult, error) {
	var (
		vf  *VersionFile
		err error
	)
	for _, h := range []struct{ algorithm, hash string }{{"sha1", d.SHA1}, {"sha512", d.SHA512}} {
		if h.hash == "" {
			continue
		}
		vf, err = a.versionFile(ctx, h.hash, h.algorithm)
		if err != nil {
			return nil, err
		}
		if vf != nil {
			break
		}
	}
	if vf == nil {
		return nil, nil
	}

	result := a.result(vf)

	// The project title is cosmetic; a failure here keeps the version name.
	if p, err := a.project(ctx, vf.ProjectID); err != nil {
		a.logger.Debug("fetching project", slog.String("project", vf.ProjectID), slog.String("error", err.Error()))
	} else if p != nil {
		decorate(result, p)
	}
	return result, nil
}

// LookupBatch finds the versions of up to provider.BatchSize files with one
// request per hash algorithm and one project request.
func (a *Adapter) LookupBatch(ctx context.Context, ds []hashing.Digests) ([]*provider.LookupResult, error) {
	found := make([]*VersionFile, len(ds))
	for _, algorithm := range []string{"sha1", "sha512"} {
		var hashes []string
		for i, d := range ds {
			if h := digestFor(d, algorithm); found[i] == nil && h != "" {
				hashes = append(hashes, h)
			}
		}
		if len(hashes) == 0 {
			continue
		}
		versions, err := a.versionFiles(ctx, hashes, algorithm)
		if err != nil {
			return nil, err
		}
		for i, d := range ds {
			if found[i] != nil {
				continue
			}
			if vf, ok := versions[digestFor(d, algorithm)]; ok {
				found[i] = &vf
			}
		}
	}

	out := make([]*provider.LookupResult, len(ds))
	var ids []string
	for i, vf := range found {
		if vf != nil {
			out[i] = a.result(vf)
			ids = append(ids, vf.ProjectID)
		}
	}
	if len(ids) == 0 {
		return out, nil
	}

	projects, err := a.projects(ctx, ids)
	if err != nil {
		a.logger.Debug("fetching projects", slog.Int("count", len(ids)), slog.String("error", err.Error()))
		return out, nil
	}
	for _, r := range out {
		if r != nil && projects[r.ProjectID] != nil {
			decorate(r, projects[r.ProjectID])
		}
	}
	return out, nil
}

func digestFor(d hashing.Digests, algorithm string) string {
	if algorithm == "sha512" {
		return d.SHA512
	}
	return d.SHA1
}

func (a *Adapter) result(vf *VersionFile) *provider.LookupResult {
	return &provider.LookupResult{
		Provider:      provider.NameModrinth,
		ProjectID:     vf.ProjectID,
		FileID:        vf.ID,
		ModName:       vf.Name,
		VersionNumber: vf.VersionNumber,
		Pairs:         provider.CrossPairs(vf.GameVersions, vf.Loaders),
		PageURL:       fmt.Sprintf("%s/project/%s/version/%s", siteURL, vf.ProjectID, vf.ID),
		LookedUpAt:    a.now().UTC(),
	}
}

// decorate fills the display name and page link from the project.
func decorate(r *provider.LookupResult, p *Project) {
	if p.Title != "" {
		r.ModName = p.Title
	}
	if p.Slug != "" {
		r.PageURL = fmt.Sprintf("%s/%s/%s/version/%s", siteURL, projectPath(p.ProjectType), p.Slug, r.FileID)
	}
}

// TestConnection verifies connectivity to the Modrinth API.
func (a *Adapter) TestConnection(ctx context.Context) error {
	_, err := a.doRequest(ctx, a.baseURL+"/")
	return err
}

func (a *Adapter) versionFile(ctx context.Context, hash, algorithm string) (*VersionFile, error) {
	reqURL := a.baseURL + "/v2/version_file/" + url.PathEscape(hash) + "?" + url.Values{"algorithm": {algorithm}}.Encode()
	body, err := a.doRequest(ctx, reqURL)
	if provider.IsNotFound(err) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}

	var vf VersionFile
	if err := json.Unmarshal(body, &vf); err != nil {
		return nil, fmt.Errorf("parsing version_file response: %w", err)
	}
	return &vf, nil
}

// versionFiles returns the versions Modrinth knows, keyed by hash.
func (a *Adapter) versionFiles(ctx context.Context, hashes []string, algorithm string) (map[string]VersionFile, error) {
	payload, err := json.Marshal(VersionFilesRequest{Hashes: hashes, Algorithm: algorithm})
	if err != nil {
		return nil, fmt.Errorf("encoding request: %w", err)
	}
	body, err := a.doPost(ctx, a.baseURL+"/v2/version_files", payload)
	if err != nil {
		return nil, err
	}
	var versions map[string]VersionFile
	if err := json.Unmarshal(body, &versions); err != nil {
		return nil, fmt.Errorf("parsing version_files response: %w", err)
	}
	return versions, nil
}

// projects fetches several projects in one request, keyed by id.
func (a *Adapter) projects(ctx context.Context, ids []string) (map[string]*Project, error) {
	encoded, err := json.Marshal(ids)
	if err != nil {
		return nil, fmt.Errorf("encoding ids: %w", err)
	}
	body, err := a.doRequest(ctx, a.baseURL+"/v2/projects?"+url.Values{"ids": {string(encoded)}}.Encode())
	if err != nil {
		return nil, err
	}
	var list []Project
	if err := json.Unmarshal(body, &list); err != nil {
		return nil, fmt.Errorf("parsing projects response: %w", err)
	}
	out := make(map[string]*Project, len(list))
	for i := range list {
		out[list[i].ID] = &list[i]
	}
	return out, nil
}

func (a *Adapter) project(ctx context.Context, id string) (*Project, error) {
	if id == "" {
		return nil, nil
	}
	body, err := a.doRequest(ctx, a.baseURL+"/v2/project/"+url.PathEscape(id))
	if provider.IsNotFound(err) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	var p Project
	if err := json.Unmarshal(body, &p); err != nil {
		return nil, fmt.Errorf("parsing project response: %w", err)
	}
	return &p, nil
}

// doRequest executes an HTTP GET with rate limiting, retries and standard headers.
func (a *Adapter) doRequest(ctx context.Context, reqURL string) ([]byte, error) {
	return provider.Retry(ctx, a.limiter, provider.NameModrinth, a.policy, a.logger, func(ctx context.Context) ([]byte, error) {
		return a.send(ctx, http.MethodGet, reqURL, nil)
	})
}

// doPost is doRequest for a JSON POST body.
func (a *Adapter) doPost(ctx context.Context, reqURL string, payload []byte) ([]byte, error) {
	return provider.Retry(ctx, a.limiter, provider.NameModrinth, a.policy, a.logger, func(ctx context.Context) ([]byte, error) {
		return a.send(ctx, http.MethodPost, reqURL, payload)
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
	if payload != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	a.logger.Debug("requesting", slog.String("method", method), slog.String("url", reqURL))

	resp, err := a.client.Do(req) //nolint:gosec // URL constructed from trusted base + hex digest
	if err != nil {
		return nil, &provider.ErrProviderUnavailable{
			Provider: provider.NameModrinth,
			Cause:    err,
		}
	}
	defer resp.Body.Close() //nolint:errcheck

	switch {
	case resp.StatusCode == http.StatusOK:
		body, err := io.ReadAll(io.LimitReader(resp.Body, 2*1024*1024))
		if err != nil {
			return nil, &provider.ErrProviderUnavailable{Provider: provider.NameModrinth, Cause: fmt.Errorf("reading body: %w", err)}
		}
		return body, nil
	case resp.StatusCode == http.StatusNotFound:
		_, _ = io.Copy(io.Discard, resp.Body)
		return nil, &provider.ErrNotFound{Provider: provider.NameModrinth, ID: reqURL}
	case resp.StatusCode == http.StatusTooManyRequests || resp.StatusCode >= 500:
		_, _ = io.Copy(io.Discard, resp.Body)
		return nil, &provider.ErrProviderUnavailable{
			Provider:   provider.NameModrinth,
			Cause:      fmt.Errorf("HTTP %d", resp.StatusCode),
			RetryAfter: retryAfter(resp.Header),
		}
	default:
		_, _ = io.Copy(io.Discard, resp.Body)
		return nil, &provider.ErrRejected{Provider: provider.NameModrinth, StatusCode: resp.StatusCode}
	}
}

// retryAfter reads Modrinth's X-Ratelimit-Reset (seconds until the window
// resets) or a standard Retry-After header.
func retryAfter(h http.Header) time.Duration {
	for _, key := range []string{"Retry-After", "X-Ratelimit-Reset"} {
		if v := h.Get(key); v != "" {
			var secs int
			if _, err := fmt.Sscanf(v, "%d", &secs); err == nil && secs > 0 {
				return time.Duration(secs) * time.Second
			}
		}
	}
	return 0
}

func projectPath(projectType string) string {
	switch projectType {
	case "modpack", "resourcepack", "shader", "datapack", "plugin":
		return projectType
	default:
		return "mod"
	}
}
