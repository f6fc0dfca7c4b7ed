package mcversion

import (
	"errors"
	"strings"
)

// ErrInvalidConstraint is returned when a declared version range cannot be
// parsed.
var ErrInvalidConstraint = errors.New("invalid version constraint")

// Constraint is a set of game versions a mod declares support for.
type Constraint interface {
	Contains(v Version) bool
	String() string
}

// Any matches every version ("*").
type Any struct{}

// Contains always returns true.
func (Any) Contains(Version) bool { return true }

func (Any) String() string { return "*" }

// Exact matches a single version. Trailing zero components are ignored,
// so Exact "1.20" matches "1.20.0" but not "1.20.1".
type Exact struct {
	V Version
}

// Contains reports whether v equals the declared version.
func (e Exact) Contains(v Version) bool { return Equal(e.V, v) }

func (e Exact) String() string { return e.V.String() }

// Bound is a one-sided comparison such as ">=1.20".
type Bound struct {
	Op string // one of ">=", ">", "<=", "<", "="
	V  Version
}

// Contains evaluates the comparison against v.
func (b Bound) Contains(v Version) bool {
	c := Compare(v, b.V)
	switch b.Op {
	case ">=":
		return c >= 0
	case ">":
		return c > 0
	case "<=":
		return c <= 0
	case "<":
		return c < 0
	default:
		return c == 0
	}
}

func (b Bound) String() string { return b.Op + b.V.String() }

// Prefix matches versions whose leading components equal Nums, the
// expansion of an x-range like "1.20.x".
type Prefix struct {
	Nums []int
	Raw  string
}

// Contains reports whether v starts with the prefix components.
func (p Prefix) Contains(v Version) bool {
	if v.IsZero() {
		return false
	}
	for i, n := range p.Nums {
		if v.Component(i) != n {
			return false
		}
	}
	return true
}

func (p Prefix) String() string { return p.Raw }

// AllOf is the intersection of its members.
type AllOf []Constraint

// Contains reports whether every member contains v.
func (a AllOf) Contains(v Version) bool {
	for _, c := range a {
		if !c.Contains(v) {
			return false
		}
	}
	return true
}

func (a AllOf) String() string { return join(a, " ") }

// AnyOf is the union of its members.
type AnyOf []Constraint

// Contains reports whether at least one member contains v.
func (a AnyOf) Contains(v Version) bool {
	for _, c := range a {
		if c.Contains(v) {
			return true
		}
	}
	return false
}

func (a AnyOf) String() string { return join(a, " || ") }

// ContainsRelaxed is Contains with the relaxed rule applied to exact
// declarations: an exact version also accepts targets on the same
// major.minor line (1.20 accepts 1.20.1).
func ContainsRelaxed(c Constraint, v Version) bool {
	if c.Contains(v) {
		return true
	}
	switch t := c.(type) {
	case Exact:
		return SameMinor(t.V, v)
	case AnyOf:
		for _, m := range t {
			if ContainsRelaxed(m, v) {
				return true
			}
		}
	}
	return false
}

// ParseExact parses a single exact version. Unexpanded build placeholders
// such as "${mcversion}" are rejected.
func ParseExact(s string) (Constraint, error) {
	s = strings.TrimSpace(s)
	if s == "" || strings.Contains(s, "${") {
		return nil, invalid(s, "no version")
	}
	v := Parse(s)
	if v.IsZero() {
		return nil, invalid(s, "not a version")
	}
	return Exact{V: v}, nil
}

func join(cs []Constraint, sep string) string {
	parts := make([]string, len(cs))
	for i, c := range cs {
		parts[i] = c.String()
	}
	return strings.Join(parts, sep)
}

func invalid(s, why string) error {
	return &ParseError{Input: s, Reason: why}
}

// ParseError describes why a constraint string was rejected.
type ParseError struct {
	Input  string
	Reason string
}

func (e *ParseError) Error() string {
	return "invalid version constraint " + quote(e.Input) + ": " + e.Reason
}

// Is lets callers match any ParseError against ErrInvalidConstraint.
func (e *ParseError) Is(target error) bool { return target == ErrInvalidConstraint }

func quote(s string) string { return "\"" + s + "\"" }
