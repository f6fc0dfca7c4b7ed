package provider

import (
	"context"
	"sync/atomic"
	"testing"

	"github.com/sydlexius/modcheck/internal/hashing"
)

// mockProvider is a scripted Provider for registry and resolver tests.
type mockProvider struct {
	name   ProviderName
	result *LookupResult
	err    error
	ping   error
	calls  atomic.Int32
}

func (m *mockProvider) Name() ProviderName { return m.name }
func (m *mockProvider) RequiresAuth() bool { return false }
func (m *mockProvider) LookupByHash(_ context.Context, _ hashing.Digests) (*LookupResult, error) {
	m.calls.Add(1)
	return m.result, m.err
}
func (m *mockProvider) TestConnection(_ context.Context) error { return m.ping }

func TestRegistryRegisterAndGet(t *testing.T) {
	reg := NewRegistry()
	reg.Register(&mockProvider{name: NameModrinth})

	got := reg.Get(NameModrinth)
	if got == nil {
		t.Fatal("expected to get modrinth provider")
	}
	if got.Name() != NameModrinth {
		t.Errorf("expected name modrinth, got %s", got.Name())
	}
	if reg.Len() != 1 {
		t.Errorf("expected 1 provider, got %d", reg.Len())
	}
}

func TestRegistryGetUnknown(t *testing.T) {
	reg := NewRegistry()
	if got := reg.Get(ProviderName("nonexistent")); got != nil {
		t.Errorf("expected nil for unregistered provider, got %v", got)
	}
}

func TestRegistryAllPriorityOrder(t *testing.T) {
	reg := NewRegistry()
	reg.Register(&mockProvider{name: "zeta"})
	reg.Register(&mockProvider{name: NameCurseForge})
	reg.Register(&mockProvider{name: "alpha"})
	reg.Register(&mockProvider{name: NameModrinth})

	all := reg.All()
	want := []ProviderName{NameModrinth, NameCurseForge, "alpha", "zeta"}
	if len(all) != len(want) {
		t.Fatalf("expected %d providers, got %d", len(want), len(all))
	}
	for i, p := range all {
		if p.Name() != want[i] {
			t.Errorf("position %d: expected %s, got %s", i, want[i], p.Name())
		}
	}
}

func TestRegistryAllEmpty(t *testing.T) {
	if all := NewRegistry().All(); len(all) != 0 {
		t.Errorf("expected 0 providers, got %d", len(all))
	}
}

func TestRegistryReplace(t *testing.T) {
	reg := NewRegistry()
	first := &mockProvider{name: NameModrinth}
	second := &mockProvider{name: NameModrinth}
	reg.Register(first)
	reg.Register(second)
	if reg.Len() != 1 {
		t.Errorf("expected re-registration to replace, got %d providers", reg.Len())
	}
	if reg.Get(NameModrinth) != Provider(second) {
		t.Error("expected the later registration to win")
	}
}

func TestCrossPairs(t *testing.T) {
	pairs := CrossPairs([]string{"1.20", "1.20.1"}, []string{"Fabric", "quilt"})
	if len(pairs) != 4 {
		t.Fatalf("expected 4 pairs, got %d", len(pairs))
	}
	if pairs[0] != (GameLoader{GameVersion: "1.20", Loader: "fabric"}) {
		t.Errorf("unexpected first pair %+v", pairs[0])
	}
	r := &LookupResult{Pairs: pairs}
	if gv := r.GameVersions(); len(gv) != 2 || gv[1] != "1.20.1" {
		t.Errorf("GameVersions = %v", gv)
	}
	if l := r.Loaders(); len(l) != 2 || l[0] != "fabric" || l[1] != "quilt" {
		t.Errorf("Loaders = %v", l)
	}
	if len(CrossPairs(nil, []string{"forge"})) != 0 {
		t.Error("expected no pairs without game versions")
	}

	bare := CrossPairs([]string{"1.12.2", "1.12.1"}, nil)
	if len(bare) != 2 || bare[0] != (GameLoader{GameVersion: "1.12.2"}) {
		t.Errorf("loader-less pairs = %+v", bare)
	}
	if l := (&LookupResult{Pairs: bare}).Loaders(); len(l) != 0 {
		t.Errorf("Loaders = %v, want none", l)
	}
}

func TestDisplayName(t *testing.T) {
	if NameCurseForge.DisplayName() != "CurseForge" {
		t.Errorf("unexpected display name %s", NameCurseForge.DisplayName())
	}
	if ProviderName("other").DisplayName() != "other" {
		t.Error("unknown providers should display their raw name")
	}
}
