package manifest

import (
	"fmt"
	"strings"
)

// Loader identifies a mod-loading runtime.
type Loader string

// Known loaders. LoaderAny is only meaningful as a scan target.
const (
	LoaderForge      Loader = "forge"
	LoaderNeoForge   Loader = "neoforge"
	LoaderFabric     Loader = "fabric"
	LoaderQuilt      Loader = "quilt"
	LoaderLiteLoader Loader = "liteloader"
	LoaderAny        Loader = "any"
)

// AllLoaders returns the concrete loaders in display order.
func AllLoaders() []Loader {
	return []Loader{LoaderForge, LoaderNeoForge, LoaderFabric, LoaderQuilt, LoaderLiteLoader}
}

// ParseLoader accepts a loader name case-insensitively, including "any".
func ParseLoader(s string) (Loader, error) {
	l := Loader(strings.ToLower(strings.TrimSpace(s)))
	if l == LoaderAny || l.Valid() {
		return l, nil
	}
	return "", fmt.Errorf("unknown loader %q", s)
}

// Valid reports whether l is one of the concrete loaders.
func (l Loader) Valid() bool {
	switch l {
	case LoaderForge, LoaderNeoForge, LoaderFabric, LoaderQuilt, LoaderLiteLoader:
		return true
	}
	return false
}

// Family returns the loader whose mods l can also load: Quilt loads Fabric
// mods and NeoForge grew out of Forge. Loaders without a family return
// themselves.
func (l Loader) Family() Loader {
	switch l {
	case LoaderQuilt:
		return LoaderFabric
	case LoaderNeoForge:
		return LoaderForge
	}
	return l
}

func (l Loader) String() string { return string(l) }
