// Package mcversion parses Minecraft game versions and the version-range
// grammars used by mod loaders to declare game compatibility.
package mcversion

import (
	"strconv"
	"strings"
)

// Version is a parsed game version. The numeric release components are
// compared numerically; anything after them (pre-release, release candidate,
// snapshot suffix) is kept as a pre-release tag that sorts before the release.
// A bare trailing hyphen ("1.20.5-") marks the floor below every pre-release
// of that version.
type Version struct {
	raw   string
	nums  []int
	pre   string
	floor bool
}

// Parse parses s leniently. It never fails: a string without any leading
// numeric component yields a Version with no components, which compares
// lower than every real release.
func Parse(s string) Version {
	raw := strings.TrimSpace(s)
	v := Version{raw: raw}

	body := raw
	if i := strings.IndexByte(body, '+'); i >= 0 {
		body = body[:i]
	}
	if len(body) > 1 && (body[0] == 'v' || body[0] == 'V') && isDigit(body[1]) {
		body = body[1:]
	}

	i := 0
	for i < len(body) {
		j := i
		for j < len(body) && isDigit(body[j]) {
			j++
		}
		if j == i {
			break
		}
		n, err := strconv.Atoi(body[i:j])
		if err != nil {
			break
		}
		v.nums = append(v.nums, n)
		i = j
		if i+1 < len(body) && body[i] == '.' && isDigit(body[i+1]) {
			i++
			continue
		}
		break
	}
	v.pre = strings.TrimLeft(body[i:], "-._ ")
	v.floor = v.pre == "" && body[i:] == "-"
	return v
}

// String returns the version as it was written.
func (v Version) String() string { return v.raw }

// IsZero reports whether v has no numeric component.
func (v Version) IsZero() bool { return len(v.nums) == 0 }

// IsRelease reports whether v carries no pre-release tag.
func (v Version) IsRelease() bool { return v.pre == "" && !v.floor }

// Component returns the i-th numeric component, or 0 past the end.
func (v Version) Component(i int) int {
	if i < 0 || i >= len(v.nums) {
		return 0
	}
	return v.nums[i]
}

// Len returns the number of numeric components.
func (v Version) Len() int { return len(v.nums) }

// Compare returns -1, 0 or 1. Missing components count as zero, so
// "1.20" equals "1.20.0".
func Compare(a, b Version) int {
	n := max(len(a.nums), len(b.nums))
	for i := range n {
		x, y := a.Component(i), b.Component(i)
		if x < y {
			return -1
		}
		if x > y {
			return 1
		}
	}
	switch {
	case a.floor || b.floor:
		switch {
		case a.floor == b.floor:
			return 0
		case a.floor:
			return -1
		}
		return 1
	case a.pre == b.pre:
		return 0
	case a.pre == "":
		return 1
	case b.pre == "":
		return -1
	}
	return comparePre(a.pre, b.pre)
}

// Equal reports whether a and b compare equal.
func Equal(a, b Version) bool { return Compare(a, b) == 0 }

// SameMinor reports whether a and b share major and minor components,
// e.g. 1.20 and 1.20.4.
func SameMinor(a, b Version) bool {
	if a.IsZero() || b.IsZero() {
		return false
	}
	return a.Component(0) == b.Component(0) && a.Component(1) == b.Component(1)
}

// comparePre orders pre-release tags with a natural sort: digit runs are
// compared numerically, everything else case-insensitively.
func comparePre(a, b string) int {
	a, b = strings.ToLower(a), strings.ToLower(b)
	for {
		a, b = strings.TrimLeft(a, "-._ "), strings.TrimLeft(b, "-._ ")
		if a == "" || b == "" {
			break
		}
		ca, ra := nextChunk(a)
		cb, rb := nextChunk(b)
		da, db := isDigit(ca[0]), isDigit(cb[0])
		switch {
		case da && db:
			na, _ := strconv.Atoi(ca)
			nb, _ := strconv.Atoi(cb)
			if na != nb {
				if na < nb {
					return -1
				}
				return 1
			}
		case da:
			return -1
		case db:
			return 1
		default:
			if c := strings.Compare(ca, cb); c != 0 {
				return c
			}
		}
		a, b = ra, rb
	}
	switch {
	case a == b:
		return 0
	case a == "":
		return -1
	default:
		return 1
	}
}

// nextChunk splits a non-empty, separator-free prefix off s.
func nextChunk(s string) (chunk, rest string) {
	digit := isDigit(s[0])
	i := 1
	for i < len(s) && isDigit(s[i]) == digit && !isSep(s[i]) {
		i++
	}
	return s[:i], s[i:]
}

func isDigit(c byte) bool { return c >= '0' && c <= '9' }

func isSep(c byte) bool { return c == '-' || c == '.' || c == '_' || c == ' ' }
