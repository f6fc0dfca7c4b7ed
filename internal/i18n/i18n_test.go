package i18n

import "testing"

func mustLoad(t *testing.T) *Bundle {
	t.Helper()
	b, err := Load()
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	return b
}

func TestLanguages(t *testing.T) {
	langs := mustLoad(t).Languages()
	if len(langs) != 3 {
		t.Fatalf("got %d languages, want 3: %v", len(langs), langs)
	}
	if langs[0] != [2]string{"en", "English"} {
		t.Errorf("first language = %v, want en/English", langs[0])
	}
	names := map[string]string{}
	for _, l := range langs {
		names[l[0]] = l[1]
	}
	if names["zh_CN"] != "简体中文" || names["ja"] != "日本語" {
		t.Errorf("names = %v", names)
	}
}

func TestMatch(t *testing.T) {
	b := mustLoad(t)
	tests := []struct {
		prefs []string
		want  string
	}{
		{[]string{"ja"}, "ja"},
		{[]string{"zh_CN"}, "zh_CN"},
		{[]string{"zh-CN"}, "zh_CN"},
		{[]string{"ja_JP.UTF-8"}, "ja"},
		{[]string{"en_US.UTF-8"}, "en"},
		{[]string{"C"}, "en"},
		{[]string{""}, "en"},
		{[]string{"", "ja-JP"}, "ja"},
		{nil, "en"},
	}
	for _, tt := range tests {
		if got := b.Match(tt.prefs...); got != tt.want {
			t.Errorf("Match(%q) = %q, want %q", tt.prefs, got, tt.want)
		}
	}
}

func TestDetect(t *testing.T) {
	b := mustLoad(t)
	t.Setenv("LC_ALL", "")
	t.Setenv("LC_MESSAGES", "")
	t.Setenv("LANG", "zh_CN.UTF-8")
	if got := b.Detect(); got != "zh_CN" {
		t.Errorf("Detect = %q, want zh_CN", got)
	}
	t.Setenv("LC_ALL", "ja_JP.UTF-8")
	if got := b.Detect(); got != "ja" {
		t.Errorf("Detect with LC_ALL = %q, want ja", got)
	}
}

func TestTranslate(t *testing.T) {
	b := mustLoad(t)
	en := b.Translator("en")
	zh := b.Translator("zh_CN")
	ja := b.Translator("ja")

	if got := en.T("status.compatible"); got != "OK" {
		t.Errorf("en status.compatible = %q", got)
	}
	if got := zh.T("status.incompatible"); got != "不兼容" {
		t.Errorf("zh status.incompatible = %q", got)
	}
	// ja has no size label; English is used.
	if got := ja.T("report.size"); got != "Size" {
		t.Errorf("ja report.size = %q, want English fallback", got)
	}
	if got := ja.T("no.such.key"); got != "no.such.key" {
		t.Errorf("missing key = %q, want key", got)
	}
	// A section is not a message.
	if got := en.T("status"); got != "status" {
		t.Errorf("section lookup = %q, want key", got)
	}
}

func TestTranslatePlaceholders(t *testing.T) {
	en := mustLoad(t).Translator("en")
	got := en.T("summary.counts", "compatible", 3, "incompatible", 1, "unknown", 0)
	if got != "3 compatible, 1 incompatible, 0 unknown" {
		t.Errorf("got %q", got)
	}
	if got := en.T("scan.no_mods", "dir", "/mods"); got != "No mod files found in /mods." {
		t.Errorf("got %q", got)
	}
}

func TestTranslatorUnknownLanguage(t *testing.T) {
	tr := mustLoad(t).Translator("xx")
	if tr.Lang() != "en" {
		t.Errorf("Lang = %q, want en", tr.Lang())
	}
}
