package main

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"path/filepath"
	"strings"
	"time"

	"github.com/sydlexius/modcheck/internal/config"
	"github.com/sydlexius/modcheck/internal/database"
	"github.com/sydlexius/modcheck/internal/encryption"
	"github.com/sydlexius/modcheck/internal/i18n"
	"github.com/sydlexius/modcheck/internal/logging"
	"github.com/sydlexius/modcheck/internal/maintenance"
	"github.com/sydlexius/modcheck/internal/provider"
	"github.com/sydlexius/modcheck/internal/provider/curseforge"
	"github.com/sydlexius/modcheck/internal/provider/modrinth"
	"github.com/sydlexius/modcheck/internal/settings"
)

// app carries the state shared by every command. It is filled in by
// setup, which runs before any command's RunE.
type app struct {
	stdout io.Writer
	stderr io.Writer

	// Persistent flag values.
	configPath   string
	settingsPath string
	verbose      int

	cfg    *config.Config
	logs   *logging.Manager
	logger *slog.Logger
	store  *settings.Store
	saved  settings.Settings
	bundle *i18n.Bundle

	db *sql.DB
}

func newApp(stdout, stderr io.Writer) *app {
	return &app{stdout: stdout, stderr: stderr}
}

// setup loads configuration, last-used settings and translations and builds
// the logger. Unusable config or settings files only produce warnings.
func (a *app) setup() error {
	if a.configPath == "" {
		a.configPath = config.DefaultPath()
	}
	cfg, cfgErr := config.Load(a.configPath)
	a.cfg = cfg

	logCfg := cfg.Logging
	switch {
	case a.verbose >= 2:
		logCfg.Level = "debug"
	case a.verbose == 1:
		logCfg.Level = "info"
	}
	a.logs, a.logger = logging.NewManagerWithWriter(logCfg, a.stderr)

	if cfgErr != nil {
		a.logger.Warn("using default configuration", slog.String("error", cfgErr.Error()))
	}

	if a.settingsPath == "" {
		a.settingsPath = filepath.Join(config.Dir(), "settings.json")
	}
	a.store = settings.NewStore(a.settingsPath)
	saved, err := a.store.Load()
	if err != nil {
		a.logger.Warn("using default settings", slog.String("error", err.Error()))
	}
	a.saved = saved

	bundle, err := i18n.Load()
	if err != nil {
		return fmt.Errorf("loading translations: %w", err)
	}
	a.bundle = bundle
	return nil
}

// close releases what setup and later commands opened.
func (a *app) close() {
	if a.db != nil {
		if err := a.db.Close(); err != nil {
			a.logger.Warn("closing cache database", slog.String("error", err.Error()))
		}
		a.db = nil
	}
	if a.logs != nil {
		a.logs.Close() //nolint:errcheck
	}
}

// translator picks the report language: the flag, then the saved setting,
// then the environment locale.
func (a *app) translator(flagLang string) *i18n.Translator {
	if flagLang == "" && a.saved.Language == "" {
		return a.bundle.Translator(a.bundle.Detect())
	}
	return a.bundle.Translator(a.bundle.Match(flagLang, a.saved.Language))
}

// database opens the cache database on first use.
func (a *app) database() (*sql.DB, error) {
	if a.db != nil {
		return a.db, nil
	}
	db, err := database.Open(a.cfg.Cache.Path)
	if err != nil {
		return nil, err
	}
	if err := database.Migrate(db); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("migrating cache database: %w", err)
	}
	a.db = db
	return db, nil
}

// keyService returns a KeyService for the cache database. The encryption
// key is loaded only when create is set or a key is already stored, so
// read-only commands never create the key file.
func (a *app) keyService(ctx context.Context, create bool) (*provider.KeyService, error) {
	db, err := a.database()
	if err != nil {
		return nil, err
	}
	if !create {
		ks := provider.NewKeyService(db, nil)
		has, err := ks.HasAPIKey(ctx, provider.NameCurseForge)
		if err != nil {
			return nil, err
		}
		if !has {
			return ks, nil
		}
	}
	enc, created, err := encryption.LoadOrCreate(a.cfg.Encryption.KeyFile)
	if err != nil {
		return nil, fmt.Errorf("loading encryption key: %w", err)
	}
	if created {
		a.logger.Info("created encryption key", slog.String("path", a.cfg.Encryption.KeyFile))
	}
	return provider.NewKeyService(db, enc), nil
}

// providerOptions tune how the resolver is built for one command.
type providerOptions struct {
	apiKey  string        // CurseForge key from the command line
	noCache bool
	retries int           // 0 keeps the configured value
	timeout time.Duration // 0 keeps the configured value
}

// curseForgeKey returns the CurseForge key by precedence: command line,
// then config or environment, then the stored key. It also reports whether
// the stored key was the one used.
func (a *app) curseForgeKey(ctx context.Context, flagKey string) (key string, stored bool) {
	override := strings.TrimSpace(flagKey)
	if override == "" {
		override = strings.TrimSpace(a.cfg.Providers.CurseForgeAPIKey)
	}
	if override != "" {
		ctx = provider.WithAPIKeyOverride(ctx, provider.NameCurseForge, override)
	}

	ks, err := a.keyService(ctx, false)
	if err != nil {
		a.logger.Warn("stored API keys unavailable", slog.String("error", err.Error()))
		return override, false
	}
	k, err := ks.GetAPIKey(ctx, provider.NameCurseForge)
	if err != nil {
		a.logger.Warn("reading stored CurseForge key", slog.String("error", err.Error()))
		return override, false
	}
	return k, override == "" && k != ""
}

// resolver builds the provider chain: Modrinth always, CurseForge when a key
// is available. The returned bool reports whether the CurseForge key came
// from the key store.
func (a *app) resolver(ctx context.Context, opts providerOptions) (*provider.Resolver, bool) {
	policy := a.cfg.RetryPolicy()
	if opts.retries > 0 {
		policy.Attempts = opts.retries
	}
	if opts.timeout > 0 {
		policy.Timeout = opts.timeout
	}
	limiter := provider.NewRateLimiterMapWithLimits(a.cfg.RateLimits())

	reg := provider.NewRegistry()
	reg.Register(modrinth.NewWithBaseURL(limiter, policy, a.logger, a.cfg.Providers.ModrinthURL))

	key, stored := a.curseForgeKey(ctx, opts.apiKey)
	if key != "" {
		reg.Register(curseforge.NewWithBaseURL(limiter, policy, key, a.logger, a.cfg.Providers.CurseForgeURL))
	} else {
		a.logger.Info("CurseForge lookups disabled: no API key")
	}

	var cache *provider.CacheService
	if !opts.noCache && !a.cfg.Cache.Disabled {
		db, err := a.database()
		if err != nil {
			a.logger.Warn("lookup cache unavailable", slog.String("error", err.Error()))
		} else {
			cache = provider.NewCacheService(db, a.cfg.Cache.TTL)
		}
	}
	return provider.NewResolver(reg, cache, a.logger), stored
}

// maintenance opens the cache database for upkeep commands.
func (a *app) maintenance() (*maintenance.Service, error) {
	db, err := a.database()
	if err != nil {
		return nil, err
	}
	cache := provider.NewCacheService(db, a.cfg.Cache.TTL)
	return maintenance.NewService(db, a.cfg.Cache.Path, cache, a.logger), nil
}

// pruneIfDue drops stale cache entries once per TTL. It only runs when a
// command already opened the cache database.
func (a *app) pruneIfDue(ctx context.Context) {
	if a.db == nil || a.cfg.Cache.Disabled {
		return
	}
	m, err := a.maintenance()
	if err != nil {
		return
	}
	if _, err := m.PruneIfDue(ctx, a.cfg.Cache.TTL); err != nil {
		a.logger.Warn("pruning lookup cache", slog.String("error", err.Error()))
	}
}

// parseProvider accepts a provider name case-insensitively.
func parseProvider(s string) (provider.ProviderName, error) {
	name := provider.ProviderName(strings.ToLower(strings.TrimSpace(s)))
	for _, known := range provider.AllProviderNames() {
		if name == known {
			return name, nil
		}
	}
	return "", errors.New("unknown provider " + s)
}
