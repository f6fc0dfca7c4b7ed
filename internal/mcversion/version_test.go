package mcversion

import "testing"

func TestCompare(t *testing.T) {
	tests := []struct {
		a, b string
		want int
	}{
		{"1.20", "1.20.0", 0},
		{"1.20.1", "1.20", 1},
		{"1.19.4", "1.20", -1},
		{"1.20.10", "1.20.9", 1},
		{"1.20-pre1", "1.20", -1},
		{"1.20-pre2", "1.20-pre10", -1},
		{"1.20-pre1", "1.20-rc1", -1},
		{"1.20 Pre-Release 1", "1.20", -1},
		{"v1.20.1", "1.20.1", 0},
		{"1.20.1+build.3", "1.20.1", 0},
		{"1.21", "1.20.4", 1},
		{"1.20.5-", "1.20.5-pre1", -1},
		{"1.20.5-", "1.20.5", -1},
		{"1.20.5-", "1.20.4", 1},
		{"1.20.5-", "1.20.5.0-", 0},
	}
	for _, tt := range tests {
		t.Run(tt.a+"_vs_"+tt.b, func(t *testing.T) {
			got := Compare(Parse(tt.a), Parse(tt.b))
			if got != tt.want {
				t.Errorf("Compare(%q, %q) = %d, want %d", tt.a, tt.b, got, tt.want)
			}
			if back := Compare(Parse(tt.b), Parse(tt.a)); back != -tt.want {
				t.Errorf("Compare(%q, %q) = %d, want %d", tt.b, tt.a, back, -tt.want)
			}
		})
	}
}

func TestParse(t *testing.T) {
	v := Parse("1.20.4-rc1")
	if v.Len() != 3 {
		t.Fatalf("expected 3 components, got %d", v.Len())
	}
	if v.Component(1) != 20 || v.Component(2) != 4 {
		t.Errorf("unexpected components: %d.%d", v.Component(1), v.Component(2))
	}
	if v.IsRelease() {
		t.Error("expected pre-release")
	}
	if v.String() != "1.20.4-rc1" {
		t.Errorf("expected raw string preserved, got %q", v.String())
	}
	if v.Component(7) != 0 {
		t.Error("expected zero past the end")
	}

	if !Parse("${mcversion}").IsZero() {
		t.Error("expected placeholder to parse as zero version")
	}
	if !Parse("").IsZero() {
		t.Error("expected empty string to parse as zero version")
	}
}

func TestSnapshotOrdersBelowReleases(t *testing.T) {
	// "23w31a" is read as major 23, which is not meaningful but stable.
	v := Parse("23w31a")
	if v.Len() != 1 || v.IsRelease() {
		t.Fatalf("unexpected parse of snapshot: len=%d release=%v", v.Len(), v.IsRelease())
	}
}

func TestSameMinor(t *testing.T) {
	if !SameMinor(Parse("1.20"), Parse("1.20.4")) {
		t.Error("expected 1.20 and 1.20.4 to share minor")
	}
	if SameMinor(Parse("1.20.4"), Parse("1.21")) {
		t.Error("expected 1.20.4 and 1.21 to differ")
	}
	if SameMinor(Parse(""), Parse("1.20")) {
		t.Error("expected zero version never to match")
	}
}
