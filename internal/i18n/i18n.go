// Package i18n translates user-facing labels. Locale files are embedded JSON
// with nested sections addressed by dotted keys ("status.compatible").
package i18n

import (
	"embed"
	"encoding/json"
	"fmt"
	"os"
	"path"
	"slices"
	"strings"

	"golang.org/x/text/language"
)

// DefaultLanguage is used when nothing better matches and for missing keys.
const DefaultLanguage = "en"

//go:embed locales/*.json
var localeFS embed.FS

// Bundle holds every loaded locale.
type Bundle struct {
	messages map[string]map[string]any
	codes    []string
	matcher  language.Matcher
}

// Load parses the embedded locale files.
func Load() (*Bundle, error) {
	entries, err := localeFS.ReadDir("locales")
	if err != nil {
		return nil, fmt.Errorf("listing locales: %w", err)
	}

	b := &Bundle{messages: make(map[string]map[string]any, len(entries))}
	for _, e := range entries {
		code := strings.TrimSuffix(e.Name(), ".json")
		data, err := localeFS.ReadFile(path.Join("locales", e.Name()))
		if err != nil {
			return nil, fmt.Errorf("reading locale %s: %w", code, err)
		}
		var m map[string]any
		if err := json.Unmarshal(data, &m); err != nil {
			return nil, fmt.Errorf("decoding locale %s: %w", code, err)
		}
		b.messages[code] = m
		b.codes = append(b.codes, code)
	}
	if _, ok := b.messages[DefaultLanguage]; !ok {
		return nil, fmt.Errorf("default locale %q missing", DefaultLanguage)
	}

	// The matcher falls back to its first tag, so the default goes first.
	slices.Sort(b.codes)
	b.codes = slices.DeleteFunc(b.codes, func(c string) bool { return c == DefaultLanguage })
	b.codes = slices.Insert(b.codes, 0, DefaultLanguage)
	tags := make([]language.Tag, len(b.codes))
	for i, c := range b.codes {
		tags[i] = language.Make(normalize(c))
	}
	b.matcher = language.NewMatcher(tags)
	return b, nil
}

// Languages returns the locale codes with their display names, default first.
func (b *Bundle) Languages() [][2]string {
	out := make([][2]string, 0, len(b.codes))
	for _, c := range b.codes {
		name := c
		if v, ok := lookup(b.messages[c], "_meta.name").(string); ok {
			name = v
		}
		out = append(out, [2]string{c, name})
	}
	return out
}

// Has reports whether code names a loaded locale.
func (b *Bundle) Has(code string) bool {
	_, ok := b.messages[code]
	return ok
}

// Match negotiates the best locale for the given preferences, which may be
// BCP 47 tags, Accept-Language lists or POSIX locale names such as
// "ja_JP.UTF-8". The first preference that matches wins.
func (b *Bundle) Match(prefs ...string) string {
	for _, p := range prefs {
		if p == "" {
			continue
		}
		if b.Has(p) {
			return p
		}
		_, idx, conf := b.matcher.Match(language.Make(normalize(p)))
		if conf != language.No {
			return b.codes[idx]
		}
	}
	return DefaultLanguage
}

// Detect picks a locale from LC_ALL, LC_MESSAGES and LANG, in that order.
func (b *Bundle) Detect() string {
	return b.Match(os.Getenv("LC_ALL"), os.Getenv("LC_MESSAGES"), os.Getenv("LANG"))
}

// Translator returns a translator for code, falling back to the default
// language when code is not loaded.
func (b *Bundle) Translator(code string) *Translator {
	if !b.Has(code) {
		code = DefaultLanguage
	}
	return &Translator{bundle: b, lang: code}
}

// Translator resolves keys for one language.
type Translator struct {
	bundle *Bundle
	lang   string
}

// Lang returns the active locale code.
func (t *Translator) Lang() string { return t.lang }

// T translates key. Missing keys fall back to English and then to the key
// itself. args are name/value pairs substituted for {name} placeholders.
func (t *Translator) T(key string, args ...any) string {
	msg, ok := lookup(t.bundle.messages[t.lang], key).(string)
	if !ok && t.lang != DefaultLanguage {
		msg, ok = lookup(t.bundle.messages[DefaultLanguage], key).(string)
	}
	if !ok {
		return key
	}
	if len(args) < 2 {
		return msg
	}
	pairs := make([]string, 0, len(args))
	for i := 0; i+1 < len(args); i += 2 {
		pairs = append(pairs, "{"+fmt.Sprint(args[i])+"}", fmt.Sprint(args[i+1]))
	}
	return strings.NewReplacer(pairs...).Replace(msg)
}

func lookup(m map[string]any, key string) any {
	var cur any = m
	for part := range strings.SplitSeq(key, ".") {
		node, ok := cur.(map[string]any)
		if !ok {
			return nil
		}
		if cur, ok = node[part]; !ok {
			return nil
		}
	}
	return cur
}

// normalize turns POSIX locale names into BCP 47: "zh_CN.UTF-8" becomes
// "zh-CN". "C" and "POSIX" carry no language.
func normalize(s string) string {
	if i := strings.IndexAny(s, ".@"); i >= 0 {
		s = s[:i]
	}
	if s == "C" || s == "POSIX" {
		return ""
	}
	return strings.ReplaceAll(s, "_", "-")
}
