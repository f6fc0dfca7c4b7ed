package manifest

import (
	"encoding/json"
	"fmt"

	"github.com/sydlexius/modcheck/internal/mcversion"
)

// mcmodInfo is one entry of a pre-1.13 Forge mcmod.info file.
type mcmodInfo struct {
	ModID       string   `json:"modid"`
	Name        string   `json:"name"`
	Description string   `json:"description"`
	Version     string   `json:"version"`
	MCVersion   string   `json:"mcversion"`
	URL         string   `json:"url"`
	AuthorList  []string `json:"authorList"`
}

type mcmodParser struct{}

func (mcmodParser) Loader() Loader   { return LoaderForge }
func (mcmodParser) Manifest() string { return "mcmod.info" }

// Parse accepts both the bare array layout and the {"modList": [...]}
// layout of modListVersion 2.
func (p mcmodParser) Parse(data []byte) (*Descriptor, error) {
	var list []mcmodInfo
	if err := json.Unmarshal(data, &list); err != nil {
		var wrapped struct {
			ModListVersion int         `json:"modListVersion"`
			ModList        []mcmodInfo `json:"modList"`
		}
		if err2 := json.Unmarshal(data, &wrapped); err2 != nil {
			return nil, fmt.Errorf("decoding %s: %w", p.Manifest(), err)
		}
		list = wrapped.ModList
	}

	d := &Descriptor{Loader: LoaderForge}
	if len(list) == 0 {
		return d, nil
	}
	first := list[0]
	d.ModID, d.Name, d.Version = first.ModID, first.Name, first.Version
	if d.Name == "" {
		d.Name = d.ModID
	}
	if err := withConstraint(d, first.MCVersion, mcversion.ParseExact); err != nil {
		return d, fmt.Errorf("mcversion: %w", err)
	}
	return d, nil
}

type litemodJSON struct {
	Name      string `json:"name"`
	Version   string `json:"version"`
	MCVersion string `json:"mcversion"`
	Revision  any    `json:"revision"`
	Author    string `json:"author"`
}

type litemodParser struct{}

func (litemodParser) Loader() Loader   { return LoaderLiteLoader }
func (litemodParser) Manifest() string { return "litemod.json" }

func (p litemodParser) Parse(data []byte) (*Descriptor, error) {
	var m litemodJSON
	if err := json.Unmarshal(data, &m); err != nil {
		return nil, fmt.Errorf("decoding %s: %w", p.Manifest(), err)
	}
	d := &Descriptor{ModID: m.Name, Name: m.Name, Version: m.Version, Loader: LoaderLiteLoader}
	if err := withConstraint(d, m.MCVersion, mcversion.ParseExact); err != nil {
		return d, fmt.Errorf("mcversion: %w", err)
	}
	return d, nil
}
