package mcversion

import "strings"

// Maven is a Maven version range as used by Forge and NeoForge
// versionRange fields. A range is a union of restrictions such as
// "[1.20,1.20.2),[1.20.4]". A range without brackets is a soft requirement
// (Maven's "recommended version"): it names a version but restricts nothing,
// so Contains is true for every version.
type Maven struct {
	Raw          string
	Soft         bool
	Recommended  Version
	Restrictions []Restriction
}

// Restriction is one bracketed interval. A nil bound is unbounded.
type Restriction struct {
	Lower          *Version
	LowerInclusive bool
	Upper          *Version
	UpperInclusive bool
}

// Contains reports whether v lies inside the interval.
func (r Restriction) Contains(v Version) bool {
	if r.Lower != nil {
		c := Compare(v, *r.Lower)
		if c < 0 || (c == 0 && !r.LowerInclusive) {
			return false
		}
	}
	if r.Upper != nil {
		c := Compare(v, *r.Upper)
		if c > 0 || (c == 0 && !r.UpperInclusive) {
			return false
		}
	}
	return true
}

// Contains reports whether any restriction contains v. Soft requirements
// contain everything.
func (m Maven) Contains(v Version) bool {
	if m.Soft {
		return true
	}
	for _, r := range m.Restrictions {
		if r.Contains(v) {
			return true
		}
	}
	return false
}

func (m Maven) String() string { return m.Raw }

// ParseMaven parses a Maven version range with Maven's own rules:
// "[a,b)" style intervals, "[a]" for an exact version, open ends "(,b]" and
// "[a,)", comma-separated unions of non-overlapping intervals, and a bare
// version as a soft requirement.
func ParseMaven(s string) (Constraint, error) {
	raw := strings.TrimSpace(s)
	if raw == "" {
		return nil, invalid(s, "empty range")
	}
	if strings.Contains(raw, "${") {
		return nil, invalid(s, "unexpanded placeholder")
	}
	if raw[0] != '[' && raw[0] != '(' {
		v := Parse(raw)
		if v.IsZero() {
			return nil, invalid(s, "not a version")
		}
		return Maven{Raw: raw, Soft: true, Recommended: v}, nil
	}

	m := Maven{Raw: raw}
	rest := raw
	// Each restriction must start no earlier than the previous one ends.
	// Once one is unbounded above, later ones are not checked.
	var upper *Version
	for rest != "" {
		if rest[0] != '[' && rest[0] != '(' {
			return nil, invalid(s, "only fully-qualified sets allowed in multiple set scenario")
		}
		end := strings.IndexAny(rest, "])")
		if end < 0 {
			return nil, invalid(s, "unbounded range")
		}
		r, err := parseRestriction(s, rest[:end+1])
		if err != nil {
			return nil, err
		}
		if upper != nil && (r.Lower == nil || Compare(*r.Lower, *upper) < 0) {
			return nil, invalid(s, "ranges overlap")
		}
		m.Restrictions = append(m.Restrictions, r)
		upper = r.Upper

		rest = strings.TrimSpace(rest[end+1:])
		if strings.HasPrefix(rest, ",") {
			rest = strings.TrimSpace(rest[1:])
			if rest == "" {
				return nil, invalid(s, "trailing comma")
			}
		}
	}
	return m, nil
}

func parseRestriction(input, part string) (Restriction, error) {
	r := Restriction{
		LowerInclusive: part[0] == '[',
		UpperInclusive: part[len(part)-1] == ']',
	}
	inner := strings.TrimSpace(part[1 : len(part)-1])

	lo, hi, found := strings.Cut(inner, ",")
	if !found {
		if !r.LowerInclusive || !r.UpperInclusive {
			return r, invalid(input, "single version must be surrounded by []")
		}
		v := Parse(inner)
		if v.IsZero() {
			return r, invalid(input, "not a version: "+inner)
		}
		r.Lower, r.Upper = &v, &v
		return r, nil
	}

	lo, hi = strings.TrimSpace(lo), strings.TrimSpace(hi)
	if strings.Contains(hi, ",") {
		return r, invalid(input, "too many commas in "+part)
	}
	if lo != "" {
		v := Parse(lo)
		if v.IsZero() {
			return r, invalid(input, "not a version: "+lo)
		}
		r.Lower = &v
	}
	if hi != "" {
		v := Parse(hi)
		if v.IsZero() {
			return r, invalid(input, "not a version: "+hi)
		}
		r.Upper = &v
	}
	if r.Lower != nil && r.Upper != nil {
		switch c := Compare(*r.Upper, *r.Lower); {
		case c < 0:
			return r, invalid(input, "range defies version ordering: "+part)
		case c == 0:
			return r, invalid(input, "range cannot have identical boundaries: "+part)
		}
	}
	return r, nil
}
