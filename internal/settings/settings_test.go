package settings

import (
	"errors"
	"os"
	"path/filepath"
	"testing"
)

func TestLoadMissingReturnsDefaults(t *testing.T) {
	s := NewStore(filepath.Join(t.TempDir(), "settings.json"))
	st, err := s.Load()
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if st != Defaults() {
		t.Errorf("got %+v, want defaults", st)
	}
}

func TestSaveLoadRoundTrip(t *testing.T) {
	path := filepath.Join(t.TempDir(), "nested", "settings.json")
	s := NewStore(path)
	want := Settings{
		GameVersion:    "1.20.1",
		Loader:         "fabric",
		Strategy:       "local",
		Prefer:         "online",
		Language:       "ja",
		ModsDir:        "/srv/mc/mods",
		Relaxed:        true,
		LoaderFamilies: true,
	}
	if err := s.Save(want); err != nil {
		t.Fatalf("Save: %v", err)
	}
	got, err := s.Load()
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if got != want {
		t.Errorf("got %+v, want %+v", got, want)
	}
}

func TestLoadPartialKeepsDefaults(t *testing.T) {
	path := filepath.Join(t.TempDir(), "settings.json")
	if err := os.WriteFile(path, []byte(`{"game_version":"1.19.2"}`), 0o600); err != nil {
		t.Fatal(err)
	}
	st, err := NewStore(path).Load()
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if st.GameVersion != "1.19.2" || st.Strategy != "both" || st.Loader != "any" {
		t.Errorf("got %+v", st)
	}
}

func TestLoadBrokenFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "settings.json")
	if err := os.WriteFile(path, []byte(`{"game_version":`), 0o600); err != nil {
		t.Fatal(err)
	}
	st, err := NewStore(path).Load()
	if !errors.Is(err, ErrConfigLoad) {
		t.Fatalf("err = %v, want ErrConfigLoad", err)
	}
	if st != Defaults() {
		t.Errorf("got %+v, want defaults", st)
	}
}
