package main

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"sync/atomic"
	"testing"

	"github.com/sydlexius/modcheck/internal/archive/archivetest"
	"github.com/sydlexius/modcheck/internal/compat"
	"github.com/sydlexius/modcheck/internal/provider"
	"github.com/sydlexius/modcheck/internal/report"
	"github.com/sydlexius/modcheck/internal/scanner"
	"github.com/sydlexius/modcheck/internal/settings"
)

const fabricMod = `{
  "schemaVersion": 1,
  "id": "examplemod",
  "name": "Example Mod",
  "version": "1.0.0",
  "depends": {"minecraft": ">=1.20 <=1.20.4"}
}`

// isolate points every file modcheck touches into a temp dir and returns the
// persistent flags that select it.
func isolate(t *testing.T) (dir string, base []string) {
	t.Helper()
	dir = t.TempDir()
	t.Setenv("MODCHECK_CACHE_PATH", filepath.Join(dir, "cache.db"))
	t.Setenv("MODCHECK_KEY_FILE", filepath.Join(dir, "secret.key"))
	t.Setenv("MODCHECK_CF_API_KEY", "")
	t.Setenv("MODCHECK_LOG_FORMAT", "text")
	t.Setenv("LC_ALL", "en_US.UTF-8")
	return dir, []string{
		"--config", filepath.Join(dir, "config.yaml"),
		"--settings", filepath.Join(dir, "settings.json"),
	}
}

func modsDir(t *testing.T) string {
	t.Helper()
	dir := t.TempDir()
	archivetest.Write(t, dir, "example-1.0.0.jar", map[string]string{"fabric.mod.json": fabricMod})
	if err := os.WriteFile(filepath.Join(dir, "notes.txt"), []byte("ignored"), 0o600); err != nil {
		t.Fatal(err)
	}
	return dir
}

func run(t *testing.T, args ...string) (code int, stdout, stderr string) {
	t.Helper()
	var out, errOut bytes.Buffer
	code = execute(context.Background(), args, &out, &errOut)
	return code, out.String(), errOut.String()
}

func decodeScan(t *testing.T, stdout string) scanner.ScanResult {
	t.Helper()
	var res scanner.ScanResult
	if err := json.Unmarshal([]byte(stdout), &res); err != nil {
		t.Fatalf("decoding scan result: %v\n%s", err, stdout)
	}
	return res
}

func TestScanLocalJSON(t *testing.T) {
	_, base := isolate(t)
	mods := modsDir(t)

	code, stdout, stderr := run(t, append(base, mods,
		"--mc", "1.20.1", "--loader", "fabric", "--strategy", "local", "--format", "json")...)
	if code != ExitOK {
		t.Fatalf("exit code = %d, stderr:\n%s", code, stderr)
	}

	res := decodeScan(t, stdout)
	if res.Status != scanner.StatusCompleted {
		t.Errorf("status = %q, want completed", res.Status)
	}
	if len(res.Verdicts) != 1 {
		t.Fatalf("got %d verdicts, want 1", len(res.Verdicts))
	}
	v := res.Verdicts[0]
	if v.Status != compat.StatusCompatible || v.Source != compat.SourceLocal {
		t.Errorf("verdict = %s/%s, want compatible/local", v.Status, v.Source)
	}
	if v.Online != nil {
		t.Error("local strategy should not produce an online sub-verdict")
	}
}

func TestScanSubcommandTable(t *testing.T) {
	_, base := isolate(t)
	mods := modsDir(t)

	code, stdout, stderr := run(t, append([]string{"scan"}, append(base, mods,
		"--mc", "1.19.2", "--loader", "fabric", "--strategy", "local")...)...)
	if code != ExitOK {
		t.Fatalf("exit code = %d, stderr:\n%s", code, stderr)
	}
	for _, want := range []string{"example-1.0.0.jar", "Example Mod 1.0.0", "FAIL", "Done! Checked 1 files"} {
		if !strings.Contains(stdout, want) {
			t.Errorf("table output missing %q:\n%s", want, stdout)
		}
	}
}

func TestScanIncompatibleStillExitsZero(t *testing.T) {
	_, base := isolate(t)
	mods := modsDir(t)

	code, stdout, _ := run(t, append(base, mods,
		"--mc", "1.20.1", "--loader", "forge", "--strategy", "local", "--format", "json")...)
	if code != ExitOK {
		t.Fatalf("exit code = %d, want 0", code)
	}
	res := decodeScan(t, stdout)
	if got := res.Count(compat.StatusIncompatible); got != 1 {
		t.Errorf("incompatible count = %d, want 1", got)
	}
}

func TestUsageErrors(t *testing.T) {
	_, base := isolate(t)
	mods := modsDir(t)

	tests := []struct {
		name string
		args []string
	}{
		{"missing target", []string{mods, "--strategy", "local"}},
		{"bad strategy", []string{mods, "--mc", "1.20.1", "--strategy", "sometimes"}},
		{"bad loader", []string{mods, "--mc", "1.20.1", "--loader", "rift"}},
		{"bad prefer", []string{mods, "--mc", "1.20.1", "--prefer", "both"}},
		{"bad game version", []string{mods, "--mc", "latest"}},
		{"bad format", []string{mods, "--mc", "1.20.1", "--format", "xml"}},
		{"unknown flag", []string{mods, "--frobnicate"}},
		{"too many args", []string{mods, mods, "--mc", "1.20.1"}},
		{"negative threads", []string{mods, "--mc", "1.20.1", "--threads", "-1"}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			code, _, stderr := run(t, append(base, tt.args...)...)
			if code != ExitUsage {
				t.Errorf("exit code = %d, want %d; stderr:\n%s", code, ExitUsage, stderr)
			}
			if !strings.Contains(stderr, "--help") {
				t.Errorf("usage error should point at --help, got:\n%s", stderr)
			}
		})
	}
}

func TestScanMissingDirectory(t *testing.T) {
	_, base := isolate(t)
	missing := filepath.Join(t.TempDir(), "nope")

	code, _, stderr := run(t, append(base, missing, "--mc", "1.20.1", "--strategy", "local")...)
	if code != ExitFailure {
		t.Errorf("exit code = %d, want %d", code, ExitFailure)
	}
	if !strings.Contains(stderr, "nope") {
		t.Errorf("stderr should name the directory:\n%s", stderr)
	}
}

func TestSaveAndReuseSettings(t *testing.T) {
	dir, base := isolate(t)
	mods := modsDir(t)

	code, _, stderr := run(t, append(base, mods,
		"--mc", "1.20.1", "--loader", "fabric", "--strategy", "local", "--relaxed-mc", "--save", "--format", "json")...)
	if code != ExitOK {
		t.Fatalf("first run exit code = %d, stderr:\n%s", code, stderr)
	}

	saved, err := settings.NewStore(filepath.Join(dir, "settings.json")).Load()
	if err != nil {
		t.Fatalf("loading saved settings: %v", err)
	}
	if saved.GameVersion != "1.20.1" || saved.Loader != "fabric" || saved.Strategy != "local" || !saved.Relaxed {
		t.Errorf("saved settings = %+v", saved)
	}
	if saved.ModsDir != mods {
		t.Errorf("saved mods dir = %q, want %q", saved.ModsDir, mods)
	}

	// No directory, target or strategy on the command line.
	code, stdout, stderr := run(t, append(base, "--format", "json")...)
	if code != ExitOK {
		t.Fatalf("second run exit code = %d, stderr:\n%s", code, stderr)
	}
	res := decodeScan(t, stdout)
	if res.Directory != mods || res.Target.GameVersion != "1.20.1" || res.Strategy != compat.StrategyLocal {
		t.Errorf("second run used dir=%q target=%s strategy=%s", res.Directory, res.Target, res.Strategy)
	}
	if !res.Target.Relaxed {
		t.Error("relaxed flag was not restored")
	}
}

func TestScanWithoutSaveLeavesSettingsAlone(t *testing.T) {
	dir, base := isolate(t)
	mods := modsDir(t)

	code, _, _ := run(t, append(base, mods, "--mc", "1.20.1", "--strategy", "local", "--format", "json")...)
	if code != ExitOK {
		t.Fatalf("exit code = %d", code)
	}
	if _, err := os.Stat(filepath.Join(dir, "settings.json")); !errors.Is(err, os.ErrNotExist) {
		t.Errorf("settings file should not exist without --save, stat err = %v", err)
	}
}

func TestBrokenSettingsFileWarns(t *testing.T) {
	dir, base := isolate(t)
	mods := modsDir(t)
	if err := os.WriteFile(filepath.Join(dir, "settings.json"), []byte("{not json"), 0o600); err != nil {
		t.Fatal(err)
	}

	code, _, stderr := run(t, append(base, mods, "--mc", "1.20.1", "--strategy", "local", "--format", "json")...)
	if code != ExitOK {
		t.Fatalf("exit code = %d, stderr:\n%s", code, stderr)
	}
	if !strings.Contains(stderr, "using default settings") {
		t.Errorf("expected a warning about the settings file, got:\n%s", stderr)
	}
}

func TestJSONOut(t *testing.T) {
	_, base := isolate(t)
	mods := modsDir(t)
	out := filepath.Join(t.TempDir(), "result.json")

	code, stdout, stderr := run(t, append(base, mods,
		"--mc", "1.20.1", "--strategy", "local", "--json-out", out)...)
	if code != ExitOK {
		t.Fatalf("exit code = %d, stderr:\n%s", code, stderr)
	}
	if !strings.Contains(stdout, "example-1.0.0.jar") {
		t.Errorf("table should still be printed:\n%s", stdout)
	}
	data, err := os.ReadFile(out)
	if err != nil {
		t.Fatalf("reading json-out: %v", err)
	}
	if res := decodeScan(t, string(data)); len(res.Verdicts) != 1 {
		t.Errorf("json-out has %d verdicts, want 1", len(res.Verdicts))
	}
}

// modrinthServer knows no file and counts the hash lookups it answers,
// single or batched.
func modrinthServer(t *testing.T) (*httptest.Server, *atomic.Int32) {
	t.Helper()
	var lookups atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		switch {
		case strings.HasPrefix(r.URL.Path, "/v2/version_file/"):
			lookups.Add(1)
			http.NotFound(w, r)
		case r.URL.Path == "/v2/version_files":
			lookups.Add(1)
			fmt.Fprint(w, `{}`) //nolint:errcheck
		default:
			fmt.Fprint(w, `{"about":"test"}`) //nolint:errcheck
		}
	}))
	t.Cleanup(srv.Close)
	t.Setenv("MODCHECK_MODRINTH_URL", srv.URL)
	return srv, &lookups
}

func TestScanBothWithUnknownFile(t *testing.T) {
	_, base := isolate(t)
	_, lookups := modrinthServer(t)
	mods := modsDir(t)

	code, stdout, stderr := run(t, append(base, mods,
		"--mc", "1.20.1", "--loader", "fabric", "--format", "json")...)
	if code != ExitOK {
		t.Fatalf("exit code = %d, stderr:\n%s", code, stderr)
	}
	v := decodeScan(t, stdout).Verdicts[0]
	if v.Status != compat.StatusUnknown || v.Source != compat.SourceBothDisagree {
		t.Errorf("verdict = %s/%s, want unknown/both-disagree", v.Status, v.Source)
	}
	if v.Online == nil || v.Online.Code != compat.CodeNotFound {
		t.Errorf("online sub-verdict = %+v, want not_found", v.Online)
	}
	if lookups.Load() == 0 {
		t.Error("expected at least one Modrinth lookup")
	}

	// --prefer local settles the disagreement.
	code, stdout, _ = run(t, append(base, mods,
		"--mc", "1.20.1", "--loader", "fabric", "--prefer", "local", "--format", "json")...)
	if code != ExitOK {
		t.Fatalf("exit code = %d", code)
	}
	v = decodeScan(t, stdout).Verdicts[0]
	if v.Status != compat.StatusCompatible || !strings.HasSuffix(v.Reason, ", using local") {
		t.Errorf("verdict = %s %q, want compatible using local", v.Status, v.Reason)
	}
}

func TestScanUsesLookupCache(t *testing.T) {
	_, base := isolate(t)
	_, lookups := modrinthServer(t)
	mods := modsDir(t)
	args := append(base, mods, "--mc", "1.20.1", "--strategy", "online", "--format", "json")

	if code, _, stderr := run(t, args...); code != ExitOK {
		t.Fatalf("exit code = %d, stderr:\n%s", code, stderr)
	}
	first := lookups.Load()
	if code, _, _ := run(t, args...); code != ExitOK {
		t.Fatalf("second run exit code = %d", code)
	}
	if got := lookups.Load(); got != first {
		t.Errorf("second run made %d more lookups, want 0 (cached miss)", got-first)
	}
	if code, _, _ := run(t, append(args, "--no-cache")...); code != ExitOK {
		t.Fatalf("no-cache run exit code = %d", code)
	}
	if got := lookups.Load(); got == first {
		t.Error("--no-cache should bypass the cache")
	}
}

func TestInspect(t *testing.T) {
	_, base := isolate(t)
	mods := modsDir(t)
	file := filepath.Join(mods, "example-1.0.0.jar")

	code, stdout, stderr := run(t, append([]string{"inspect", file}, append(base, "--strategy", "local", "--format", "json")...)...)
	if code != ExitOK {
		t.Fatalf("exit code = %d, stderr:\n%s", code, stderr)
	}
	var in report.Inspection
	if err := json.Unmarshal([]byte(stdout), &in); err != nil {
		t.Fatalf("decoding inspection: %v\n%s", err, stdout)
	}
	if in.Descriptor == nil || in.Descriptor.ModID != "examplemod" {
		t.Errorf("descriptor = %+v, want examplemod", in.Descriptor)
	}
	if in.Online || in.Lookup != nil {
		t.Error("local inspection should skip the online lookup")
	}
	if len(in.Digests.SHA1) != 40 {
		t.Errorf("sha1 = %q", in.Digests.SHA1)
	}
}

func TestInspectRequiresFile(t *testing.T) {
	_, base := isolate(t)
	if code, _, _ := run(t, append([]string{"inspect"}, base...)...); code != ExitUsage {
		t.Errorf("exit code = %d, want %d", code, ExitUsage)
	}
}

func TestPing(t *testing.T) {
	_, base := isolate(t)
	modrinthServer(t)

	code, stdout, stderr := run(t, append([]string{"ping"}, append(base, "--format", "json")...)...)
	if code != ExitOK {
		t.Fatalf("exit code = %d, stderr:\n%s", code, stderr)
	}
	var results []report.PingResult
	if err := json.Unmarshal([]byte(stdout), &results); err != nil {
		t.Fatalf("decoding ping: %v\n%s", err, stdout)
	}
	got := map[provider.ProviderName]report.PingResult{}
	for _, r := range results {
		got[r.Provider] = r
	}
	if r := got[provider.NameModrinth]; !r.Configured || !r.OK {
		t.Errorf("modrinth = %+v, want configured and ok", r)
	}
	if r := got[provider.NameCurseForge]; r.Configured {
		t.Errorf("curseforge without a key should be skipped, got %+v", r)
	}
}

func TestKeyLifecycle(t *testing.T) {
	dir, base := isolate(t)
	keyArgs := func(args ...string) []string { return append(append([]string{"key"}, args...), base...) }

	statusOf := func() provider.KeyStatus {
		t.Helper()
		code, stdout, stderr := run(t, keyArgs("status", "--format", "json")...)
		if code != ExitOK {
			t.Fatalf("key status exit code = %d, stderr:\n%s", code, stderr)
		}
		var statuses []provider.KeyStatus
		if err := json.Unmarshal([]byte(stdout), &statuses); err != nil {
			t.Fatalf("decoding key status: %v\n%s", err, stdout)
		}
		for _, s := range statuses {
			if s.Name == provider.NameCurseForge {
				return s
			}
		}
		t.Fatal("curseforge missing from key status")
		return provider.KeyStatus{}
	}

	if s := statusOf(); s.HasKey || s.Status != provider.KeyStatusUnconfigured {
		t.Errorf("initial status = %+v", s)
	}
	if _, err := os.Stat(filepath.Join(dir, "secret.key")); !errors.Is(err, os.ErrNotExist) {
		t.Error("listing keys should not create the encryption key file")
	}

	code, stdout, stderr := run(t, keyArgs("set", "curseforge", "test-key")...)
	if code != ExitOK {
		t.Fatalf("key set exit code = %d, stderr:\n%s", code, stderr)
	}
	if !strings.Contains(stdout, "CurseForge") {
		t.Errorf("key set output = %q", stdout)
	}
	if s := statusOf(); !s.HasKey || s.Status != provider.KeyStatusUntested {
		t.Errorf("status after set = %+v", s)
	}

	if code, _, _ := run(t, keyArgs("delete", "curseforge")...); code != ExitOK {
		t.Fatalf("key delete exit code = %d", code)
	}
	if s := statusOf(); s.HasKey {
		t.Errorf("status after delete = %+v", s)
	}
}

func TestKeyRejectsKeylessProvider(t *testing.T) {
	_, base := isolate(t)
	code, _, _ := run(t, append([]string{"key", "set", "modrinth", "abc"}, base...)...)
	if code != ExitUsage {
		t.Errorf("exit code = %d, want %d", code, ExitUsage)
	}
}

func TestCacheCommands(t *testing.T) {
	_, base := isolate(t)

	for _, sub := range []string{"info", "prune", "clear"} {
		code, stdout, stderr := run(t, append([]string{"cache", sub}, base...)...)
		if code != ExitOK {
			t.Fatalf("cache %s exit code = %d, stderr:\n%s", sub, code, stderr)
		}
		if stdout == "" {
			t.Errorf("cache %s printed nothing", sub)
		}
	}
	if code, _, _ := run(t, append([]string{"cache", "prune", "--older-than", "-1h"}, base...)...); code != ExitUsage {
		t.Errorf("negative --older-than exit code = %d, want %d", code, ExitUsage)
	}
}

func TestVersion(t *testing.T) {
	_, base := isolate(t)
	code, stdout, _ := run(t, append([]string{"version"}, base...)...)
	if code != ExitOK || !strings.HasPrefix(stdout, "modcheck ") {
		t.Errorf("version: code=%d out=%q", code, stdout)
	}
}

func TestExitCode(t *testing.T) {
	tests := []struct {
		name string
		err  error
		want int
	}{
		{"nil", nil, ExitOK},
		{"usage", usageError(errors.New("bad flag")), ExitUsage},
		{"wrapped usage", fmt.Errorf("outer: %w", usageError(errors.New("bad"))), ExitUsage},
		{"directory", fmt.Errorf("%w: %w", scanner.ErrDirectoryAccess, os.ErrNotExist), ExitFailure},
		{"plain", errors.New("boom"), ExitFailure},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := exitCode(tt.err); got != tt.want {
				t.Errorf("exitCode(%v) = %d, want %d", tt.err, got, tt.want)
			}
		})
	}
	if usageError(nil) != nil {
		t.Error("usageError(nil) should be nil")
	}
}
