package manifest

import (
	"bufio"
	"bytes"
	"path/filepath"
	"regexp"
	"strings"

	"github.com/sydlexius/modcheck/internal/archive"
)

// Hints are guesses taken from a file name. They are informational only and
// never decide compatibility.
type Hints struct {
	Loader       Loader   `json:"loader,omitempty" yaml:"loader,omitempty"`
	GameVersions []string `json:"game_versions,omitempty" yaml:"game_versions,omitempty"`
}

// IsZero reports whether no hint was found.
func (h Hints) IsZero() bool { return h.Loader == "" && len(h.GameVersions) == 0 }

var (
	loaderNameRe   = regexp.MustCompile(`(?i)(?:^|[-_.+ ])(neoforge|fabric|forge|quilt|liteloader)(?:$|[-_.+ ])`)
	taggedGameRe   = regexp.MustCompile(`(?:mc|minecraft|for)[-_ ]?(\d+\.\d+(?:\.\d+)?)`)
	anyVersionRe   = regexp.MustCompile(`\d+\.\d+(?:\.\d+)?`)
	disabledSuffix = regexp.MustCompile(`(?i)\.(disabled|old)$`)
)

// FilenameHints guesses the loader and game versions from a mod file name
// such as "sodium-fabric-mc1.20.1-0.5.3.jar".
func FilenameHints(name string) Hints {
	base := disabledSuffix.ReplaceAllString(filepath.Base(name), "")
	var h Hints

	if m := loaderNameRe.FindStringSubmatch(base); m != nil {
		h.Loader = Loader(strings.ToLower(m[1]))
	} else if strings.HasSuffix(strings.ToLower(base), ".litemod") {
		h.Loader = LoaderLiteLoader
	}

	lower := strings.ToLower(base)
	seen := map[string]bool{}
	for _, m := range taggedGameRe.FindAllStringSubmatch(lower, -1) {
		if !seen[m[1]] {
			seen[m[1]] = true
			h.GameVersions = append(h.GameVersions, m[1])
		}
	}
	if len(h.GameVersions) == 0 {
		stem := strings.TrimSuffix(base, filepath.Ext(base))
		// A single version-like token is taken as the game version; with
		// several there is no telling it apart from the mod version.
		if tokens := anyVersionRe.FindAllString(stem, -1); len(tokens) == 1 {
			h.GameVersions = tokens
		}
	}
	return h
}

// implementationVersion reads Implementation-Version from the jar manifest,
// which build tools substitute for "${file.jarVersion}".
func implementationVersion(a *archive.Archive) string {
	data, err := a.ReadFile("META-INF/MANIFEST.MF")
	if err != nil {
		return ""
	}
	sc := bufio.NewScanner(bytes.NewReader(data))
	for sc.Scan() {
		key, value, ok := strings.Cut(sc.Text(), ":")
		if ok && strings.EqualFold(strings.TrimSpace(key), "Implementation-Version") {
			return strings.TrimSpace(value)
		}
	}
	return ""
}
