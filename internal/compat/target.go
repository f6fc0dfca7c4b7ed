package compat

import (
	"errors"
	"fmt"
	"strings"

	"github.com/sydlexius/modcheck/internal/manifest"
	"github.com/sydlexius/modcheck/internal/mcversion"
)

// Target is the game version and loader a mod set is checked against.
type Target struct {
	GameVersion string          `json:"game_version" yaml:"game_version"`
	Loader      manifest.Loader `json:"loader" yaml:"loader"`

	// Relaxed lets an exact version declaration accept any target on the
	// same major.minor line.
	Relaxed bool `json:"relaxed,omitempty" yaml:"relaxed,omitempty"`
	// LoaderFamilies accepts Fabric mods on Quilt and Forge mods on
	// NeoForge, and the reverse.
	LoaderFamilies bool `json:"loader_families,omitempty" yaml:"loader_families,omitempty"`

	version mcversion.Version
}

// NewTarget validates and builds a Target. loader may be "any".
func NewTarget(gameVersion, loader string) (Target, error) {
	gameVersion = strings.TrimSpace(gameVersion)
	if gameVersion == "" {
		return Target{}, errors.New("target game version is required")
	}
	v := mcversion.Parse(gameVersion)
	if v.IsZero() {
		return Target{}, fmt.Errorf("invalid target game version %q", gameVersion)
	}
	if strings.TrimSpace(loader) == "" {
		loader = string(manifest.LoaderAny)
	}
	l, err := manifest.ParseLoader(loader)
	if err != nil {
		return Target{}, err
	}
	return Target{GameVersion: gameVersion, Loader: l, version: v}, nil
}

// Version returns the parsed target game version.
func (t Target) Version() mcversion.Version {
	if t.version.IsZero() {
		return mcversion.Parse(t.GameVersion)
	}
	return t.version
}

// AcceptsLoader reports whether a mod built for l runs on the target loader.
func (t Target) AcceptsLoader(l manifest.Loader) bool {
	if t.Loader == manifest.LoaderAny || t.Loader == l {
		return true
	}
	return t.LoaderFamilies && l != "" && t.Loader.Family() == l.Family()
}

// AcceptsVersion reports whether v (a version listed for a file) satisfies
// the target game version.
func (t Target) AcceptsVersion(v mcversion.Version) bool {
	target := t.Version()
	if mcversion.Equal(v, target) {
		return true
	}
	return t.Relaxed && mcversion.SameMinor(v, target)
}

// Contains reports whether the target version falls inside c.
func (t Target) Contains(c mcversion.Constraint) bool {
	if t.Relaxed {
		return mcversion.ContainsRelaxed(c, t.Version())
	}
	return c.Contains(t.Version())
}

func (t Target) String() string {
	return t.GameVersion + "/" + string(t.Loader)
}
