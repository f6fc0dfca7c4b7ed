// Package manifest extracts loader and game-version metadata from the
// manifest files embedded in mod archives.
package manifest

import (
	"bytes"
	"errors"
	"fmt"
	"strings"

	"github.com/sydlexius/modcheck/internal/archive"
	"github.com/sydlexius/modcheck/internal/mcversion"
)

var (
	// ErrMalformedMetadata is returned when a manifest is present but cannot
	// be decoded. The accompanying descriptor still names the loader.
	ErrMalformedMetadata = errors.New("malformed metadata")

	// ErrUnknownLoader is returned when an archive carries no known manifest.
	ErrUnknownLoader = errors.New("unknown loader")
)

// Descriptor is the normalized metadata of one mod archive.
type Descriptor struct {
	ModID   string `json:"mod_id,omitempty" yaml:"mod_id,omitempty"`
	Name    string `json:"name,omitempty" yaml:"name,omitempty"`
	Version string `json:"version,omitempty" yaml:"version,omitempty"`
	Loader  Loader `json:"loader" yaml:"loader"`

	// GameVersions is the constraint as written in the manifest.
	GameVersions string `json:"game_versions,omitempty" yaml:"game_versions,omitempty"`
	// Constraint is nil when no game-version dependency is declared or the
	// declaration could not be parsed.
	Constraint mcversion.Constraint `json:"-" yaml:"-"`

	Manifest string `json:"manifest" yaml:"manifest"`
	Hints    Hints  `json:"hints,omitzero" yaml:"hints,omitempty"`
}

// HasConstraint reports whether a usable game-version constraint exists.
func (d *Descriptor) HasConstraint() bool {
	return d != nil && d.Constraint != nil
}

// Parser decodes one manifest format.
type Parser interface {
	Loader() Loader
	Manifest() string
	Parse(data []byte) (*Descriptor, error)
}

// Parsers returns every known parser in precedence order. When an archive
// carries several manifests the first one present wins.
func Parsers() []Parser {
	return []Parser{
		quiltParser{},
		fabricParser{},
		forgeParser{neo: true},
		forgeParser{},
		mcmodParser{},
		litemodParser{},
	}
}

// Parse finds the highest-precedence manifest in a and decodes it.
//
// A present but malformed manifest returns a partial descriptor together
// with an error wrapping ErrMalformedMetadata. An archive with no manifest
// returns a nil descriptor and ErrUnknownLoader.
func Parse(a *archive.Archive) (*Descriptor, error) {
	for _, p := range Parsers() {
		if !a.Has(p.Manifest()) {
			continue
		}
		partial := &Descriptor{Loader: p.Loader(), Manifest: p.Manifest(), Hints: FilenameHints(a.Name())}

		data, err := a.ReadFile(p.Manifest())
		if err != nil {
			return partial, fmt.Errorf("%w: %s: %w", ErrMalformedMetadata, p.Manifest(), err)
		}

		d, err := p.Parse(trimBOM(data))
		if d == nil {
			d = partial
		}
		d.Manifest = p.Manifest()
		d.Hints = partial.Hints
		if strings.Contains(d.Version, "${") {
			d.Version = implementationVersion(a)
		}
		if err != nil {
			return d, fmt.Errorf("%w: %s: %w", ErrMalformedMetadata, p.Manifest(), err)
		}
		return d, nil
	}
	return nil, fmt.Errorf("%w: %s", ErrUnknownLoader, a.Name())
}

// withConstraint parses raw with parse and records both on d. An empty raw
// string leaves the constraint unset.
func withConstraint(d *Descriptor, raw string, parse func(string) (mcversion.Constraint, error)) error {
	d.GameVersions = strings.TrimSpace(raw)
	if d.GameVersions == "" {
		return nil
	}
	c, err := parse(d.GameVersions)
	if err != nil {
		return err
	}
	d.Constraint = c
	return nil
}

func trimBOM(data []byte) []byte {
	return bytes.TrimPrefix(data, []byte("\xef\xbb\xbf"))
}
