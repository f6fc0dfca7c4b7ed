package manifest

import (
	"fmt"
	"maps"
	"slices"
	"strings"

	"github.com/pelletier/go-toml/v2"

	"github.com/sydlexius/modcheck/internal/mcversion"
)

type modsTOML struct {
	ModLoader     string                       `toml:"modLoader"`
	LoaderVersion string                       `toml:"loaderVersion"`
	License       string                       `toml:"license"`
	Mods          []modsTOMLEntry              `toml:"mods"`
	Dependencies  map[string][]modsTOMLDepends `toml:"dependencies"`
}

type modsTOMLEntry struct {
	ModID       string `toml:"modId"`
	Version     string `toml:"version"`
	DisplayName string `toml:"displayName"`
}

type modsTOMLDepends struct {
	ModID        string `toml:"modId"`
	VersionRange string `toml:"versionRange"`
	Type         string `toml:"type"`
	Mandatory    *bool  `toml:"mandatory"`
	Side         string `toml:"side"`
}

// forgeParser reads META-INF/mods.toml, or META-INF/neoforge.mods.toml when
// neo is set. Both use Maven version ranges.
type forgeParser struct {
	neo bool
}

func (p forgeParser) Loader() Loader {
	if p.neo {
		return LoaderNeoForge
	}
	return LoaderForge
}

func (p forgeParser) Manifest() string {
	if p.neo {
		return "META-INF/neoforge.mods.toml"
	}
	return "META-INF/mods.toml"
}

func (p forgeParser) Parse(data []byte) (*Descriptor, error) {
	var m modsTOML
	if err := toml.Unmarshal(data, &m); err != nil {
		return nil, fmt.Errorf("decoding %s: %w", p.Manifest(), err)
	}

	d := &Descriptor{Loader: p.Loader()}
	if len(m.Mods) > 0 {
		d.ModID = m.Mods[0].ModID
		d.Name = m.Mods[0].DisplayName
		d.Version = m.Mods[0].Version
	}
	if d.Name == "" {
		d.Name = d.ModID
	}
	if !p.neo && namesNeoForge(m) {
		d.Loader = LoaderNeoForge
	}

	dep, ok := minecraftDependency(m, d.ModID)
	if !ok {
		return d, nil
	}
	if err := withConstraint(d, dep.VersionRange, mcversion.ParseMaven); err != nil {
		return d, fmt.Errorf("dependencies minecraft: %w", err)
	}
	if d.GameVersions == "" {
		// A minecraft dependency without versionRange accepts any version.
		d.GameVersions = "*"
		d.Constraint = mcversion.Any{}
	}
	return d, nil
}

// minecraftDependency prefers the dependency list of the primary mod and
// falls back to any list that mentions minecraft.
func minecraftDependency(m modsTOML, modID string) (modsTOMLDepends, bool) {
	find := func(deps []modsTOMLDepends) (modsTOMLDepends, bool) {
		for _, dep := range deps {
			if strings.EqualFold(dep.ModID, "minecraft") {
				return dep, true
			}
		}
		return modsTOMLDepends{}, false
	}
	if dep, ok := find(m.Dependencies[modID]); ok {
		return dep, true
	}
	for _, id := range slices.Sorted(maps.Keys(m.Dependencies)) {
		if dep, ok := find(m.Dependencies[id]); ok {
			return dep, true
		}
	}
	return modsTOMLDepends{}, false
}

// namesNeoForge reports whether a mods.toml targets NeoForge. Early NeoForge
// releases kept the Forge file name but depend on "neoforge".
func namesNeoForge(m modsTOML) bool {
	if strings.Contains(strings.ToLower(m.ModLoader), "neoforge") {
		return true
	}
	for _, deps := range m.Dependencies {
		for _, dep := range deps {
			if strings.EqualFold(dep.ModID, "neoforge") {
				return true
			}
		}
	}
	return false
}
