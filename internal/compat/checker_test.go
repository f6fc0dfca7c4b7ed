package compat

import (
	"errors"
	"fmt"
	"strings"
	"testing"

	"github.com/sydlexius/modcheck/internal/archive"
	"github.com/sydlexius/modcheck/internal/archive/archivetest"
	"github.com/sydlexius/modcheck/internal/manifest"
	"github.com/sydlexius/modcheck/internal/provider"
)

const fabricRangeMod = `{
  "schemaVersion": 1,
  "id": "examplemod",
  "name": "Example Mod",
  "version": "1.0.0",
  "depends": {"fabricloader": ">=0.14", "minecraft": ">=1.20 <=1.20.4"}
}`

const forgeRangeMod = `modLoader="javafml"
loaderVersion="[47,)"
license="MIT"
[[mods]]
modId="forgemod"
displayName="Forge Mod"
version="2.1.0"
[[dependencies.forgemod]]
modId="minecraft"
mandatory=true
versionRange="[1.20.1,1.20.2)"
ordering="NONE"
side="BOTH"
`

const mcmodInfo = `[{"modid":"oldmod","name":"Old Mod","version":"1.0","mcversion":"1.12"}]`

func subjectFor(t *testing.T, name string, files map[string]string) Subject {
	t.Helper()
	a, err := archive.FromBytes(name, archivetest.Build(t, files))
	if err != nil {
		t.Fatalf("FromBytes: %v", err)
	}
	d, perr := manifest.Parse(a)
	return Subject{Path: name, Size: a.Size(), Descriptor: d, ParseErr: perr}
}

func mustTarget(t *testing.T, gameVersion, loader string) Target {
	t.Helper()
	tg, err := NewTarget(gameVersion, loader)
	if err != nil {
		t.Fatalf("NewTarget(%q, %q): %v", gameVersion, loader, err)
	}
	return tg
}

func lookup(gameVersions []string, loaders ...string) *provider.LookupResult {
	return &provider.LookupResult{
		Provider:  provider.NameModrinth,
		ProjectID: "P",
		FileID:    "F",
		ModName:   "Example Mod",
		Pairs:     provider.CrossPairs(gameVersions, loaders),
	}
}

func TestLocalFabricRange(t *testing.T) {
	s := subjectFor(t, "example-1.0.0.jar", map[string]string{"fabric.mod.json": fabricRangeMod})

	tests := []struct {
		mc, loader string
		want       Status
		code       Code
	}{
		{"1.20.1", "fabric", StatusCompatible, CodeMatch},
		{"1.20", "fabric", StatusCompatible, CodeMatch},
		{"1.20.4", "fabric", StatusCompatible, CodeMatch},
		{"1.21", "fabric", StatusIncompatible, CodeWrongGameVersion},
		{"1.19.4", "fabric", StatusIncompatible, CodeWrongGameVersion},
		{"1.20.1", "any", StatusCompatible, CodeMatch},
		{"1.20.1", "forge", StatusIncompatible, CodeWrongLoader},
		{"1.20.1", "quilt", StatusIncompatible, CodeWrongLoader},
	}
	for _, tt := range tests {
		t.Run(tt.mc+"/"+tt.loader, func(t *testing.T) {
			v := NewChecker(StrategyLocal, PreferNone, mustTarget(t, tt.mc, tt.loader)).Check(s)
			if v.Status != tt.want {
				t.Errorf("status = %s, want %s (%s)", v.Status, tt.want, v.Reason)
			}
			if v.Source != SourceLocal {
				t.Errorf("source = %s, want local", v.Source)
			}
			if v.Local == nil || v.Local.Code != tt.code {
				t.Errorf("local = %+v, want code %s", v.Local, tt.code)
			}
			if v.Online != nil {
				t.Error("local strategy must not produce an online sub-verdict")
			}
		})
	}
}

func TestLocalLoaderFamilies(t *testing.T) {
	s := subjectFor(t, "example.jar", map[string]string{"fabric.mod.json": fabricRangeMod})
	target := mustTarget(t, "1.20.1", "quilt")
	target.LoaderFamilies = true

	v := NewChecker(StrategyLocal, PreferNone, target).Check(s)
	if v.Status != StatusCompatible {
		t.Errorf("fabric mod on quilt with families: %s (%s)", v.Status, v.Reason)
	}

	target = mustTarget(t, "1.20.1", "forge")
	target.LoaderFamilies = true
	if v := NewChecker(StrategyLocal, PreferNone, target).Check(s); v.Status != StatusIncompatible {
		t.Errorf("fabric mod on forge must stay incompatible, got %s", v.Status)
	}
}

func TestLocalForgeMavenRange(t *testing.T) {
	s := subjectFor(t, "forgemod.jar", map[string]string{"META-INF/mods.toml": forgeRangeMod})

	tests := []struct {
		mc   string
		want Status
	}{
		{"1.20.1", StatusCompatible},
		{"1.20.2", StatusIncompatible}, // exclusive upper bound
		{"1.20", StatusIncompatible},
	}
	for _, tt := range tests {
		v := NewChecker(StrategyLocal, PreferNone, mustTarget(t, tt.mc, "forge")).Check(s)
		if v.Status != tt.want {
			t.Errorf("%s: status = %s, want %s (%s)", tt.mc, v.Status, tt.want, v.Reason)
		}
	}
}

func TestLocalRelaxedExactVersion(t *testing.T) {
	s := subjectFor(t, "oldmod.jar", map[string]string{"mcmod.info": mcmodInfo})

	strict := NewChecker(StrategyLocal, PreferNone, mustTarget(t, "1.12.2", "forge")).Check(s)
	if strict.Status != StatusIncompatible {
		t.Errorf("strict: status = %s, want incompatible", strict.Status)
	}

	target := mustTarget(t, "1.12.2", "forge")
	target.Relaxed = true
	relaxed := NewChecker(StrategyLocal, PreferNone, target).Check(s)
	if relaxed.Status != StatusCompatible {
		t.Errorf("relaxed: status = %s, want compatible (%s)", relaxed.Status, relaxed.Reason)
	}
}

func TestLocalNoManifest(t *testing.T) {
	s := subjectFor(t, "sodium-fabric-mc1.20.1.jar", map[string]string{"readme.txt": "hi"})
	if !errors.Is(s.ParseErr, manifest.ErrUnknownLoader) {
		t.Fatalf("expected ErrUnknownLoader, got %v", s.ParseErr)
	}

	for _, strategy := range []Strategy{StrategyLocal, StrategyBoth} {
		v := NewChecker(strategy, PreferNone, mustTarget(t, "1.20.1", "fabric")).Check(s)
		if v.Status != StatusUnknown || v.Source != SourceNone {
			t.Errorf("%s: got %s/%s, want unknown/none", strategy, v.Status, v.Source)
		}
		if v.ErrorKind != ErrorUnknownLoader {
			t.Errorf("%s: error kind = %q", strategy, v.ErrorKind)
		}
	}

	v := NewChecker(StrategyLocal, PreferNone, mustTarget(t, "1.20.1", "fabric")).Check(s)
	if !strings.Contains(v.Reason, "file name suggests fabric 1.20.1") {
		t.Errorf("expected filename hint in reason, got %q", v.Reason)
	}
}

func TestLocalNoGameVersion(t *testing.T) {
	s := subjectFor(t, "lib.jar", map[string]string{"fabric.mod.json": `{"schemaVersion":1,"id":"lib","version":"1"}`})
	v := NewChecker(StrategyLocal, PreferNone, mustTarget(t, "1.20.1", "fabric")).Check(s)
	if v.Status != StatusUnknown || v.Source != SourceLocal {
		t.Errorf("got %s/%s, want unknown/local", v.Status, v.Source)
	}
	if v.Local.Code != CodeNoGameVersion {
		t.Errorf("code = %s", v.Local.Code)
	}
}

func TestLocalMalformed(t *testing.T) {
	s := subjectFor(t, "broken.jar", map[string]string{"fabric.mod.json": `{"id": "broken",`})
	v := NewChecker(StrategyLocal, PreferNone, mustTarget(t, "1.20.1", "fabric")).Check(s)
	if v.Status != StatusUnknown {
		t.Errorf("status = %s, want unknown", v.Status)
	}
	if v.ErrorKind != ErrorMalformedMetadata || v.Local.Code != CodeMalformed {
		t.Errorf("got error kind %q code %q", v.ErrorKind, v.Local.Code)
	}
	if v.Descriptor == nil || v.Descriptor.Loader != manifest.LoaderFabric {
		t.Error("the partial descriptor should still name the loader")
	}
}

func TestOnline(t *testing.T) {
	r := lookup([]string{"1.20", "1.20.1"}, "fabric", "quilt")

	tests := []struct {
		name       string
		mc, loader string
		relaxed    bool
		want       Status
		code       Code
	}{
		{"exact pair", "1.20.1", "fabric", false, StatusCompatible, CodeMatch},
		{"any loader", "1.20", "any", false, StatusCompatible, CodeMatch},
		{"padded version", "1.20.0", "quilt", false, StatusCompatible, CodeMatch},
		{"loader not listed", "1.20.1", "forge", false, StatusIncompatible, CodeWrongLoader},
		{"version not listed", "1.20.2", "fabric", false, StatusIncompatible, CodeWrongGameVersion},
		{"relaxed same minor", "1.20.2", "fabric", true, StatusCompatible, CodeMatch},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			target := mustTarget(t, tt.mc, tt.loader)
			target.Relaxed = tt.relaxed
			v := NewChecker(StrategyOnline, PreferNone, target).Check(Subject{Path: "x.jar", Lookup: r})
			if v.Status != tt.want || v.Online.Code != tt.code {
				t.Errorf("got %s/%s, want %s/%s (%s)", v.Status, v.Online.Code, tt.want, tt.code, v.Reason)
			}
			if v.Source != SourceOnline {
				t.Errorf("source = %s, want online", v.Source)
			}
			if v.Local != nil {
				t.Error("online strategy must not produce a local sub-verdict")
			}
		})
	}
}

func TestOnlineNoResult(t *testing.T) {
	c := NewChecker(StrategyOnline, PreferNone, mustTarget(t, "1.20.1", "fabric"))

	v := c.Check(Subject{Path: "x.jar"})
	if v.Status != StatusUnknown || v.Source != SourceNone || v.Online.Code != CodeNotFound {
		t.Errorf("no match: got %s/%s/%s", v.Status, v.Source, v.Online.Code)
	}

	netErr := &provider.NetworkError{Provider: provider.NameModrinth, Attempts: 3, Cause: errors.New("timeout")}
	v = c.Check(Subject{Path: "x.jar", LookupErr: fmt.Errorf("modrinth: %w", netErr)})
	if v.Status != StatusUnknown || v.ErrorKind != ErrorNetworkFailure || v.Online.Code != CodeNetworkFailure {
		t.Errorf("network failure: got %s/%s/%s", v.Status, v.ErrorKind, v.Online.Code)
	}

	v = c.Check(Subject{Path: "x.jar", Lookup: &provider.LookupResult{Provider: provider.NameCurseForge}})
	if v.Status != StatusUnknown || v.Online.Code != CodeNoPairs {
		t.Errorf("no pairs: got %s/%s", v.Status, v.Online.Code)
	}
}

func TestBothDisagreementNoMatch(t *testing.T) {
	s := subjectFor(t, "example.jar", map[string]string{"fabric.mod.json": fabricRangeMod})
	v := NewChecker(StrategyBoth, PreferNone, mustTarget(t, "1.20.1", "fabric")).Check(s)

	if v.Status != StatusUnknown {
		t.Errorf("status = %s, want unknown", v.Status)
	}
	if v.Source != SourceBothDisagree {
		t.Errorf("source = %s, want both-disagree", v.Source)
	}
	if v.Reason != "disagreement: local=compatible, online=unknown" {
		t.Errorf("reason = %q", v.Reason)
	}
	if v.Local == nil || v.Local.Status != StatusCompatible {
		t.Errorf("local sub-verdict = %+v", v.Local)
	}
	if v.Online == nil || v.Online.Status != StatusUnknown {
		t.Errorf("online sub-verdict = %+v", v.Online)
	}
}

func TestBothLookupFailureUsesLocal(t *testing.T) {
	s := subjectFor(t, "example.jar", map[string]string{"fabric.mod.json": fabricRangeMod})
	netErr := &provider.NetworkError{Provider: provider.NameModrinth, Attempts: 3, Cause: errors.New("timeout")}
	s.LookupErr = fmt.Errorf("modrinth: %w", netErr)

	for _, pref := range []Preference{PreferNone, PreferOnline} {
		v := NewChecker(StrategyBoth, pref, mustTarget(t, "1.20.1", "fabric")).Check(s)
		if v.Status != StatusCompatible || v.Source != SourceLocal {
			t.Errorf("prefer %s: got %s/%s, want compatible/local", pref, v.Status, v.Source)
		}
		if v.ErrorKind != ErrorNetworkFailure {
			t.Errorf("prefer %s: error kind = %q, want network_failure", pref, v.ErrorKind)
		}
		if !strings.HasPrefix(v.Reason, "online lookup failed, using local") {
			t.Errorf("prefer %s: reason = %q", pref, v.Reason)
		}
		if v.Online == nil || v.Online.Status != StatusUnknown || v.Online.Code != CodeNetworkFailure {
			t.Errorf("prefer %s: online sub-verdict = %+v", pref, v.Online)
		}
	}

	v := NewChecker(StrategyBoth, PreferNone, mustTarget(t, "1.21", "fabric")).Check(s)
	if v.Status != StatusIncompatible || v.Source != SourceLocal {
		t.Errorf("outside range: got %s/%s, want incompatible/local", v.Status, v.Source)
	}
}

func TestOnlineLoaderlessListing(t *testing.T) {
	r := lookup([]string{"1.12.2"})
	if len(r.Pairs) != 1 || r.Pairs[0].Loader != "" {
		t.Fatalf("pairs = %+v, want one pair without a loader", r.Pairs)
	}

	for _, loader := range []string{"any", "forge"} {
		v := NewChecker(StrategyOnline, PreferNone, mustTarget(t, "1.12.2", loader)).Check(Subject{Path: "x.jar", Lookup: r})
		if v.Status != StatusCompatible || v.Online.Code != CodeMatch {
			t.Errorf("loader %s: got %s/%s (%s)", loader, v.Status, v.Online.Code, v.Reason)
		}
	}

	v := NewChecker(StrategyOnline, PreferNone, mustTarget(t, "1.20.1", "any")).Check(Subject{Path: "x.jar", Lookup: r})
	if v.Status != StatusIncompatible || v.Online.Code != CodeWrongGameVersion {
		t.Errorf("unlisted version: got %s/%s", v.Status, v.Online.Code)
	}
}

func TestBothAgree(t *testing.T) {
	s := subjectFor(t, "example.jar", map[string]string{"fabric.mod.json": fabricRangeMod})
	s.Lookup = lookup([]string{"1.20.1"}, "fabric")

	v := NewChecker(StrategyBoth, PreferNone, mustTarget(t, "1.20.1", "fabric")).Check(s)
	if v.Status != StatusCompatible || v.Source != SourceBothAgree {
		t.Errorf("got %s/%s, want compatible/both-agree", v.Status, v.Source)
	}

	v = NewChecker(StrategyBoth, PreferNone, mustTarget(t, "1.21", "fabric")).Check(s)
	if v.Status != StatusIncompatible || v.Source != SourceBothAgree {
		t.Errorf("got %s/%s, want incompatible/both-agree", v.Status, v.Source)
	}
}

func TestBothPreference(t *testing.T) {
	s := subjectFor(t, "example.jar", map[string]string{"fabric.mod.json": fabricRangeMod})
	s.Lookup = lookup([]string{"1.20.1"}, "forge")
	target := mustTarget(t, "1.20.1", "fabric")

	tests := []struct {
		pref Preference
		want Status
	}{
		{PreferNone, StatusUnknown},
		{PreferLocal, StatusCompatible},
		{PreferOnline, StatusIncompatible},
	}
	for _, tt := range tests {
		v := NewChecker(StrategyBoth, tt.pref, target).Check(s)
		if v.Status != tt.want {
			t.Errorf("prefer %s: status = %s, want %s", tt.pref, v.Status, tt.want)
		}
		if v.Source != SourceBothDisagree {
			t.Errorf("prefer %s: source = %s, want both-disagree", tt.pref, v.Source)
		}
		if !strings.HasPrefix(v.Reason, "disagreement: local=compatible, online=incompatible") {
			t.Errorf("prefer %s: reason = %q", tt.pref, v.Reason)
		}
		if v.Local == nil || v.Online == nil {
			t.Errorf("prefer %s: both sub-verdicts must be surfaced", tt.pref)
		}
	}
}

func TestUnreadable(t *testing.T) {
	err := fmt.Errorf("%w: not a zip", archive.ErrUnreadableArchive)
	v := NewChecker(StrategyBoth, PreferLocal, mustTarget(t, "1.20.1", "any")).Unreadable("/mods/bad.jar", err)
	if v.Status != StatusUnknown || v.Source != SourceNone {
		t.Errorf("got %s/%s", v.Status, v.Source)
	}
	if v.ErrorKind != ErrorUnreadableArchive || v.File != "bad.jar" {
		t.Errorf("got kind %q file %q", v.ErrorKind, v.File)
	}
	if v.Local == nil || v.Online == nil {
		t.Error("both sub-verdicts should be present under the both strategy")
	}
}

func TestModNameFallbacks(t *testing.T) {
	v := Verdict{File: "a.jar"}
	if v.ModName() != "a.jar" {
		t.Errorf("ModName = %q", v.ModName())
	}
	v.Lookup = &provider.LookupResult{ModName: "Remote", VersionNumber: "2.0"}
	if v.ModName() != "Remote" || v.ModVersion() != "2.0" {
		t.Errorf("ModName/ModVersion = %q/%q", v.ModName(), v.ModVersion())
	}
	v.Descriptor = &manifest.Descriptor{Name: "Local", Version: "1.0"}
	if v.ModName() != "Local" || v.ModVersion() != "1.0" {
		t.Errorf("ModName/ModVersion = %q/%q", v.ModName(), v.ModVersion())
	}
}

func TestNewTarget(t *testing.T) {
	if _, err := NewTarget("", "fabric"); err == nil {
		t.Error("expected error for empty version")
	}
	if _, err := NewTarget("latest", "fabric"); err == nil {
		t.Error("expected error for non-numeric version")
	}
	if _, err := NewTarget("1.20.1", "rift"); err == nil {
		t.Error("expected error for unknown loader")
	}
	tg, err := NewTarget(" 1.20.1 ", "")
	if err != nil {
		t.Fatalf("NewTarget: %v", err)
	}
	if tg.Loader != manifest.LoaderAny || tg.GameVersion != "1.20.1" {
		t.Errorf("unexpected target %+v", tg)
	}
	if tg.String() != "1.20.1/any" {
		t.Errorf("String = %q", tg.String())
	}
}

func TestParseStrategyAndPreference(t *testing.T) {
	if s, err := ParseStrategy("BOTH"); err != nil || s != StrategyBoth {
		t.Errorf("ParseStrategy(BOTH) = %s, %v", s, err)
	}
	if _, err := ParseStrategy("cloud"); err == nil {
		t.Error("expected error for unknown strategy")
	}
	if p, err := ParsePreference(""); err != nil || p != PreferNone {
		t.Errorf("ParsePreference(\"\") = %s, %v", p, err)
	}
	if _, err := ParsePreference("newest"); err == nil {
		t.Error("expected error for unknown preference")
	}
	if StrategyLocal.UsesOnline() || !StrategyBoth.UsesOnline() || StrategyOnline.UsesLocal() {
		t.Error("strategy predicates are wrong")
	}
}
