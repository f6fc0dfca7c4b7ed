package mcversion

import (
	"strconv"
	"strings"
)

// ParseFabric parses a Fabric version predicate as found in fabric.mod.json
// "depends" entries (Quilt uses the same grammar):
//
//	*            any version
//	1.20.1       exactly 1.20.1 (also "=1.20.1")
//	>=1.20 <1.21 space-separated terms are intersected
//	~1.20.1      >=1.20.1 <1.21
//	^1.20.1      >=1.20.1 <2
//	1.20.x       any 1.20 release line
//	a || b       union (npm style, accepted for robustness)
func ParseFabric(s string) (Constraint, error) {
	raw := strings.TrimSpace(s)
	if raw == "" {
		return nil, invalid(s, "empty predicate")
	}

	var union AnyOf
	for alt := range strings.SplitSeq(raw, "||") {
		fields := strings.Fields(alt)
		if len(fields) == 0 {
			return nil, invalid(s, "empty alternative")
		}
		var all AllOf
		for _, f := range fields {
			c, err := parseFabricTerm(s, f)
			if err != nil {
				return nil, err
			}
			all = append(all, c)
		}
		if len(all) == 1 {
			union = append(union, all[0])
		} else {
			union = append(union, all)
		}
	}
	if len(union) == 1 {
		return union[0], nil
	}
	return union, nil
}

func parseFabricTerm(input, term string) (Constraint, error) {
	if term == "*" || term == "x" || term == "X" {
		return Any{}, nil
	}

	op := ""
	for _, candidate := range []string{">=", "<=", ">", "<", "=", "~", "^"} {
		if strings.HasPrefix(term, candidate) {
			op = candidate
			break
		}
	}
	vs := strings.TrimSpace(term[len(op):])
	if vs == "" || strings.Contains(vs, "${") {
		return nil, invalid(input, "missing version after "+quote(op))
	}

	if nums, ok := wildcard(vs); ok {
		switch op {
		case "", "=", "~":
			return Prefix{Nums: nums, Raw: term}, nil
		case ">=", "<":
			return Bound{Op: op, V: Parse(joinNums(nums))}, nil
		default:
			return nil, invalid(input, "wildcard not allowed with "+quote(op))
		}
	}

	v := Parse(vs)
	if v.IsZero() {
		return nil, invalid(input, "not a version: "+vs)
	}

	switch op {
	case "", "=":
		return Exact{V: v}, nil
	case "~":
		upper := []int{v.Component(0), v.Component(1) + 1}
		if v.Len() == 1 {
			upper = []int{v.Component(0) + 1}
		}
		return AllOf{Bound{Op: ">=", V: v}, Bound{Op: "<", V: Parse(joinNums(upper))}}, nil
	case "^":
		return AllOf{Bound{Op: ">=", V: v}, Bound{Op: "<", V: Parse(joinNums([]int{v.Component(0) + 1}))}}, nil
	default:
		return Bound{Op: op, V: v}, nil
	}
}

// wildcard recognises x-ranges ("1.20.x", "1.*") and returns the fixed
// leading components.
func wildcard(s string) ([]int, bool) {
	parts := strings.Split(s, ".")
	last := parts[len(parts)-1]
	if last != "x" && last != "X" && last != "*" {
		return nil, false
	}
	nums := make([]int, 0, len(parts)-1)
	for _, p := range parts[:len(parts)-1] {
		v := Parse(p)
		if v.Len() != 1 || !v.IsRelease() {
			return nil, false
		}
		nums = append(nums, v.Component(0))
	}
	return nums, true
}

func joinNums(nums []int) string {
	var b strings.Builder
	for i, n := range nums {
		if i > 0 {
			b.WriteByte('.')
		}
		b.WriteString(strconv.Itoa(n))
	}
	return b.String()
}
