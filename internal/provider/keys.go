package provider

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"maps"

	"github.com/sydlexius/modcheck/internal/encryption"
)

// Key status values.
const (
	KeyStatusOK           = "ok"
	KeyStatusInvalid      = "invalid"
	KeyStatusUntested     = "untested"
	KeyStatusNotRequired  = "not_required"
	KeyStatusUnconfigured = "unconfigured"
)

// KeyService stores provider API keys, encrypted, in the settings table.
type KeyService struct {
	db        *sql.DB
	encryptor *encryption.Encryptor
}

// NewKeyService creates a new KeyService.
func NewKeyService(db *sql.DB, encryptor *encryption.Encryptor) *KeyService {
	return &KeyService{db: db, encryptor: encryptor}
}

func apiKeySettingKey(name ProviderName) string {
	return fmt.Sprintf("provider.%s.api_key", name)
}

func keyStatusSettingKey(name ProviderName) string {
	return fmt.Sprintf("provider.%s.key_status", name)
}

type ctxKeyOverride struct{}

// WithAPIKeyOverride returns a child context whose GetAPIKey answer for name
// is key, without touching the database. The command line uses it for
// --cf-api-key.
func WithAPIKeyOverride(ctx context.Context, name ProviderName, key string) context.Context {
	parent, _ := ctx.Value(ctxKeyOverride{}).(map[ProviderName]string)
	overrides := make(map[ProviderName]string, len(parent)+1)
	maps.Copy(overrides, parent)
	overrides[name] = key
	return context.WithValue(ctx, ctxKeyOverride{}, overrides)
}

// GetAPIKey returns the decrypted API key for a provider, or "" when none is
// stored.
func (s *KeyService) GetAPIKey(ctx context.Context, name ProviderName) (string, error) {
	if overrides, ok := ctx.Value(ctxKeyOverride{}).(map[ProviderName]string); ok {
		if v, found := overrides[name]; found {
			return v, nil
		}
	}

	var encrypted string
	err := s.db.QueryRowContext(ctx, "SELECT value FROM settings WHERE key = ?", apiKeySettingKey(name)).Scan(&encrypted)
	if errors.Is(err, sql.ErrNoRows) {
		return "", nil
	}
	if err != nil {
		return "", fmt.Errorf("reading API key for %s: %w", name, err)
	}
	plaintext, err := s.encryptor.Decrypt(encrypted)
	if err != nil {
		return "", fmt.Errorf("decrypting API key for %s: %w", name, err)
	}
	return plaintext, nil
}

// SetAPIKey encrypts and stores the API key for a provider and resets its
// status to untested in the same transaction.
func (s *KeyService) SetAPIKey(ctx context.Context, name ProviderName, apiKey string) error {
	encrypted, err := s.encryptor.Encrypt(apiKey)
	if err != nil {
		return fmt.Errorf("encrypting API key for %s: %w", name, err)
	}
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("beginning transaction for %s: %w", name, err)
	}
	defer tx.Rollback() //nolint:errcheck // rollback is a no-op after commit
	if _, err := tx.ExecContext(ctx,
		"INSERT INTO settings (key, value) VALUES (?, ?) ON CONFLICT(key) DO UPDATE SET value = excluded.value, updated_at = datetime('now')",
		apiKeySettingKey(name), encrypted,
	); err != nil {
		return fmt.Errorf("storing API key for %s: %w", name, err)
	}
	if _, err := tx.ExecContext(ctx, "DELETE FROM settings WHERE key = ?", keyStatusSettingKey(name)); err != nil {
		return fmt.Errorf("clearing key status for %s: %w", name, err)
	}
	if err := tx.Commit(); err != nil {
		return fmt.Errorf("committing API key for %s: %w", name, err)
	}
	return nil
}

// DeleteAPIKey removes the API key for a provider and its status.
func (s *KeyService) DeleteAPIKey(ctx context.Context, name ProviderName) error {
	_, err := s.db.ExecContext(ctx, "DELETE FROM settings WHERE key IN (?, ?)",
		apiKeySettingKey(name), keyStatusSettingKey(name))
	if err != nil {
		return fmt.Errorf("deleting API key for %s: %w", name, err)
	}
	return nil
}

// SetKeyStatus persists the outcome of a connection test. An empty status
// reverts to untested.
func (s *KeyService) SetKeyStatus(ctx context.Context, name ProviderName, status string) error {
	key := keyStatusSettingKey(name)
	if status == "" {
		if _, err := s.db.ExecContext(ctx, "DELETE FROM settings WHERE key = ?", key); err != nil {
			return fmt.Errorf("clearing key status for %s: %w", name, err)
		}
		return nil
	}
	_, err := s.db.ExecContext(ctx,
		"INSERT INTO settings (key, value) VALUES (?, ?) ON CONFLICT(key) DO UPDATE SET value = excluded.value, updated_at = datetime('now')",
		key, status,
	)
	if err != nil {
		return fmt.Errorf("storing key status for %s: %w", name, err)
	}
	return nil
}

func (s *KeyService) getKeyStatus(ctx context.Context, name ProviderName) (string, error) {
	var value string
	err := s.db.QueryRowContext(ctx, "SELECT value FROM settings WHERE key = ?", keyStatusSettingKey(name)).Scan(&value)
	if errors.Is(err, sql.ErrNoRows) {
		return "", nil
	}
	if err != nil {
		return "", fmt.Errorf("reading key status for %s: %w", name, err)
	}
	return value, nil
}

// HasAPIKey reports whether a key is stored for the provider.
func (s *KeyService) HasAPIKey(ctx context.Context, name ProviderName) (bool, error) {
	var count int
	err := s.db.QueryRowContext(ctx, "SELECT COUNT(*) FROM settings WHERE key = ?", apiKeySettingKey(name)).Scan(&count)
	if err != nil {
		return false, fmt.Errorf("checking API key for %s: %w", name, err)
	}
	return count > 0, nil
}

// KeyStatus describes the API key state of one provider.
type KeyStatus struct {
	Name        ProviderName   `json:"name" yaml:"name"`
	DisplayName string         `json:"display_name" yaml:"display_name"`
	RequiresKey bool           `json:"requires_key" yaml:"requires_key"`
	HasKey      bool           `json:"has_key" yaml:"has_key"`
	Status      string         `json:"status" yaml:"status"`
	AccessTier  AccessTier     `json:"access_tier" yaml:"access_tier"`
	HelpURL     string         `json:"help_url,omitempty" yaml:"help_url,omitempty"`
	RateLimit   *RateLimitInfo `json:"rate_limit,omitempty" yaml:"rate_limit,omitempty"`
}

// ListKeyStatuses returns the key state of every known provider in priority
// order.
func (s *KeyService) ListKeyStatuses(ctx context.Context) ([]KeyStatus, error) {
	caps := ProviderCapabilities()
	statuses := make([]KeyStatus, 0, len(caps))
	for _, name := range AllProviderNames() {
		c := caps[name]
		requiresKey := c.Tier == TierFreeKey
		hasKey, err := s.HasAPIKey(ctx, name)
		if err != nil {
			return nil, err
		}

		status := KeyStatusNotRequired
		switch {
		case hasKey:
			status = KeyStatusUntested
			persisted, err := s.getKeyStatus(ctx, name)
			if err != nil {
				return nil, err
			}
			if persisted != "" {
				status = persisted
			}
		case requiresKey:
			status = KeyStatusUnconfigured
		}

		statuses = append(statuses, KeyStatus{
			Name:        name,
			DisplayName: name.DisplayName(),
			RequiresKey: requiresKey,
			HasKey:      hasKey,
			Status:      status,
			AccessTier:  c.Tier,
			HelpURL:     c.HelpURL,
			RateLimit:   c.RateLimit,
		})
	}
	return statuses, nil
}
