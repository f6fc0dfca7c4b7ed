package manifest

import (
	"encoding/json"
	"fmt"
	"strings"

	"github.com/sydlexius/modcheck/internal/mcversion"
)

type quiltModJSON struct {
	SchemaVersion int `json:"schema_version"`
	QuiltLoader   struct {
		ID       string            `json:"id"`
		Version  string            `json:"version"`
		Metadata struct {
			Name string `json:"name"`
		} `json:"metadata"`
		Depends []json.RawMessage `json:"depends"`
	} `json:"quilt_loader"`
}

type quiltDependency struct {
	ID       string          `json:"id"`
	Versions json.RawMessage `json:"versions"`
}

type quiltParser struct{}

func (quiltParser) Loader() Loader   { return LoaderQuilt }
func (quiltParser) Manifest() string { return "quilt.mod.json" }

func (p quiltParser) Parse(data []byte) (*Descriptor, error) {
	var m quiltModJSON
	if err := json.Unmarshal(data, &m); err != nil {
		return nil, fmt.Errorf("decoding %s: %w", p.Manifest(), err)
	}
	ql := m.QuiltLoader
	d := &Descriptor{ModID: ql.ID, Name: ql.Metadata.Name, Version: ql.Version, Loader: LoaderQuilt}
	if d.Name == "" {
		d.Name = ql.ID
	}

	for _, raw := range ql.Depends {
		// Plain string entries name a mod id with no version requirement.
		var id string
		if json.Unmarshal(raw, &id) == nil {
			if id == "minecraft" {
				d.GameVersions = "*"
				d.Constraint = mcversion.Any{}
			}
			continue
		}
		var dep quiltDependency
		if err := json.Unmarshal(raw, &dep); err != nil {
			return d, fmt.Errorf("quilt_loader.depends: %w", err)
		}
		if dep.ID != "minecraft" {
			continue
		}
		if len(dep.Versions) == 0 {
			d.GameVersions = "*"
			d.Constraint = mcversion.Any{}
			return d, nil
		}
		c, err := quiltVersions(dep.Versions)
		if err != nil {
			return d, fmt.Errorf("quilt_loader.depends minecraft: %w", err)
		}
		d.GameVersions = c.String()
		d.Constraint = c
		return d, nil
	}
	return d, nil
}

// quiltVersions decodes a Quilt version specifier: a string, an array of
// alternatives, or an {"any": [...]} / {"all": [...]} object, nested freely.
func quiltVersions(raw json.RawMessage) (mcversion.Constraint, error) {
	var single string
	if err := json.Unmarshal(raw, &single); err == nil {
		return mcversion.ParseFabric(single)
	}

	var list []json.RawMessage
	if err := json.Unmarshal(raw, &list); err == nil {
		return quiltList(list, false)
	}

	var obj struct {
		Any []json.RawMessage `json:"any"`
		All []json.RawMessage `json:"all"`
	}
	if err := json.Unmarshal(raw, &obj); err != nil {
		return nil, fmt.Errorf("unsupported versions value %s", strings.TrimSpace(string(raw)))
	}
	switch {
	case obj.All != nil:
		return quiltList(obj.All, true)
	case obj.Any != nil:
		return quiltList(obj.Any, false)
	}
	return nil, fmt.Errorf("versions object needs \"any\" or \"all\"")
}

func quiltList(items []json.RawMessage, all bool) (mcversion.Constraint, error) {
	if len(items) == 0 {
		return nil, fmt.Errorf("empty versions list")
	}
	cs := make([]mcversion.Constraint, 0, len(items))
	for _, item := range items {
		c, err := quiltVersions(item)
		if err != nil {
			return nil, err
		}
		cs = append(cs, c)
	}
	if len(cs) == 1 {
		return cs[0], nil
	}
	if all {
		return mcversion.AllOf(cs), nil
	}
	return mcversion.AnyOf(cs), nil
}
