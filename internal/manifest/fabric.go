package manifest

import (
	"encoding/json"
	"fmt"
	"strings"

	"github.com/sydlexius/modcheck/internal/mcversion"
)

type fabricModJSON struct {
	SchemaVersion int                        `json:"schemaVersion"`
	ID            string                     `json:"id"`
	Name          string                     `json:"name"`
	Version       string                     `json:"version"`
	Depends       map[string]json.RawMessage `json:"depends"`
}

type fabricParser struct{}

func (fabricParser) Loader() Loader   { return LoaderFabric }
func (fabricParser) Manifest() string { return "fabric.mod.json" }

func (p fabricParser) Parse(data []byte) (*Descriptor, error) {
	var m fabricModJSON
	if err := json.Unmarshal(data, &m); err != nil {
		return nil, fmt.Errorf("decoding %s: %w", p.Manifest(), err)
	}
	d := &Descriptor{ModID: m.ID, Name: m.Name, Version: m.Version, Loader: LoaderFabric}
	if d.Name == "" {
		d.Name = m.ID
	}

	raw, ok := m.Depends["minecraft"]
	if !ok {
		return d, nil
	}
	preds, err := fabricPredicates(raw)
	if err != nil {
		return d, fmt.Errorf("depends.minecraft: %w", err)
	}
	return d, withConstraint(d, strings.Join(preds, " || "), anyOfFabric(preds))
}

// fabricPredicates accepts a single predicate string, an array of them (any
// may match) or an object with a "version" field.
func fabricPredicates(raw json.RawMessage) ([]string, error) {
	var single string
	if err := json.Unmarshal(raw, &single); err == nil {
		return []string{single}, nil
	}
	var list []string
	if err := json.Unmarshal(raw, &list); err == nil {
		return list, nil
	}
	var obj struct {
		Version json.RawMessage `json:"version"`
	}
	if err := json.Unmarshal(raw, &obj); err == nil && len(obj.Version) > 0 {
		return fabricPredicates(obj.Version)
	}
	return nil, fmt.Errorf("unsupported value %s", string(raw))
}

// anyOfFabric parses each predicate on its own so that an array entry
// containing spaces is not split across alternatives.
func anyOfFabric(preds []string) func(string) (mcversion.Constraint, error) {
	return func(string) (mcversion.Constraint, error) {
		if len(preds) == 0 {
			return mcversion.Any{}, nil
		}
		var out mcversion.AnyOf
		for _, p := range preds {
			c, err := mcversion.ParseFabric(p)
			if err != nil {
				return nil, err
			}
			out = append(out, c)
		}
		if len(out) == 1 {
			return out[0], nil
		}
		return out, nil
	}
}
