// Package settings persists the choices a user made on the last run so the
// next run can start from them.
package settings

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"

	"github.com/sydlexius/modcheck/internal/filesystem"
)

// ErrConfigLoad marks a settings file that could not be used. Load still
// returns defaults alongside it.
var ErrConfigLoad = errors.New("settings load failure")

// Settings are the last-used scan options. API keys are never stored here.
type Settings struct {
	GameVersion    string `json:"game_version,omitempty"`
	Loader         string `json:"loader,omitempty"`
	Strategy       string `json:"strategy,omitempty"`
	Prefer         string `json:"prefer,omitempty"`
	Language       string `json:"language,omitempty"`
	ModsDir        string `json:"mods_dir,omitempty"`
	Relaxed        bool   `json:"relaxed,omitempty"`
	LoaderFamilies bool   `json:"loader_families,omitempty"`
}

// Defaults returns the settings used before anything was saved.
func Defaults() Settings {
	return Settings{
		Loader:   "any",
		Strategy: "both",
		Prefer:   "none",
	}
}

// Store reads and writes one settings file.
type Store struct {
	path string
}

// NewStore creates a Store backed by path.
func NewStore(path string) *Store {
	return &Store{path: path}
}

// Path returns the backing file path.
func (s *Store) Path() string { return s.path }

// Load reads the settings file. A missing file yields defaults and no error.
// A file that cannot be read or decoded yields defaults and an error wrapping
// ErrConfigLoad; callers are expected to warn and carry on.
func (s *Store) Load() (Settings, error) {
	st := Defaults()
	data, err := os.ReadFile(s.path)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return st, nil
		}
		return st, fmt.Errorf("%w: reading %s: %w", ErrConfigLoad, s.path, err)
	}
	if err := json.Unmarshal(data, &st); err != nil {
		return Defaults(), fmt.Errorf("%w: decoding %s: %w", ErrConfigLoad, s.path, err)
	}
	return st, nil
}

// Save writes st atomically, creating the parent directory if needed.
func (s *Store) Save(st Settings) error {
	data, err := json.MarshalIndent(st, "", "  ")
	if err != nil {
		return fmt.Errorf("encoding settings: %w", err)
	}
	data = append(data, '\n')
	if err := filesystem.WriteFileAtomic(s.path, data, 0o644); err != nil {
		return fmt.Errorf("saving settings: %w", err)
	}
	return nil
}
