package semver

import (
	"fmt"
	"strings"
)

// ParseError reports a malformed version or range string.
type ParseError struct {
	Input  string
	Reason string
}

func (e *ParseError) Error() string {
	return fmt.Sprintf("invalid version spec %q: %s", e.Input, e.Reason)
}

// Range is a version constraint in NuGet interval notation.
//
// Three shapes exist:
//
//   - the empty range, which matches every version;
//   - a plain version ("1.0"), meaning "this version or any greater one"
//     (minimum inclusive, no maximum);
//   - an explicit interval ("[1.0,2.0)", "(,1.0]", "[1.0]"), with per-bound
//     inclusivity. "[1.0]" pins exactly 1.0: a bracketed minimum with a
//     present-but-empty inclusive maximum degenerates to an exact match.
type Range struct {
	// Min and Max are the interval bounds. An invalid Version means the
	// bound is absent.
	Min Version
	Max Version

	// MinInclusive and MaxInclusive record the bracket style of each bound.
	MinInclusive bool
	MaxInclusive bool

	// Interval is true when the spec was written in bracket notation.
	// A plain version keeps Interval false and acts as an inclusive floor.
	Interval bool

	raw string
}

// ParseRange parses a version constraint string. An empty string yields the
// empty range. A leading "[" or "(" selects interval notation; anything else
// is parsed as a plain floor version.
func ParseRange(s string) (Range, error) {
	raw := strings.TrimSpace(s)
	if raw == "" {
		return Range{}, nil
	}

	if raw[0] != '[' && raw[0] != '(' {
		v := Parse(raw)
		if !v.IsValid() {
			return Range{}, &ParseError{Input: s, Reason: "malformed version"}
		}
		return Range{Min: v, MinInclusive: true, raw: raw}, nil
	}

	last := raw[len(raw)-1]
	if last != ']' && last != ')' {
		return Range{}, &ParseError{Input: s, Reason: "unterminated interval"}
	}

	r := Range{
		Interval:     true,
		MinInclusive: raw[0] == '[',
		MaxInclusive: last == ']',
		raw:          raw,
	}

	inner := raw[1 : len(raw)-1]
	minPart, maxPart, hasComma := strings.Cut(inner, ",")
	minPart = strings.TrimSpace(minPart)
	maxPart = strings.TrimSpace(maxPart)

	if !hasComma {
		// "[1.0]" style: single bounded version, empty inclusive maximum.
		maxPart = ""
	}

	if minPart != "" {
		r.Min = Parse(minPart)
		if !r.Min.IsValid() {
			return Range{}, &ParseError{Input: s, Reason: "malformed minimum bound"}
		}
	}
	if maxPart != "" {
		r.Max = Parse(maxPart)
		if !r.Max.IsValid() {
			return Range{}, &ParseError{Input: s, Reason: "malformed maximum bound"}
		}
	}

	if !r.Min.IsValid() && !r.Max.IsValid() {
		return Range{}, &ParseError{Input: s, Reason: "interval needs at least one bound"}
	}

	return r, nil
}

// MustParseRange parses a constraint and panics on error. Test helper.
func MustParseRange(s string) Range {
	r, err := ParseRange(s)
	if err != nil {
		panic(err)
	}
	return r
}

// Exact constructs a range pinned to a single version.
func Exact(v Version) Range {
	return Range{Min: v, MinInclusive: true, MaxInclusive: true, Interval: true, raw: "[" + v.Normalized() + "]"}
}

// Floor constructs a minimum-inclusive, open-ended range.
func Floor(v Version) Range {
	return Range{Min: v, MinInclusive: true, raw: v.String()}
}

// IsEmpty reports whether the range has no bounds at all.
func (r Range) IsEmpty() bool {
	return !r.Min.IsValid() && !r.Max.IsValid()
}

// IsExact reports whether the range pins exactly one version: an interval
// minimum with an absent-but-inclusive maximum.
func (r Range) IsExact() bool {
	return r.Interval && r.Min.IsValid() && !r.Max.IsValid() && r.MaxInclusive
}

// HasFloorOnly reports whether the range constrains only from below.
func (r Range) HasFloorOnly() bool {
	if r.IsEmpty() || r.IsExact() {
		return false
	}
	return r.Min.IsValid() && !r.Max.IsValid()
}

// String returns the constraint in the notation it was written in.
func (r Range) String() string {
	if r.raw != "" {
		return r.raw
	}
	if r.IsEmpty() {
		return ""
	}
	if !r.Interval {
		return r.Min.Normalized()
	}
	var b strings.Builder
	if r.MinInclusive {
		b.WriteByte('[')
	} else {
		b.WriteByte('(')
	}
	if r.Min.IsValid() {
		b.WriteString(r.Min.Normalized())
	}
	b.WriteByte(',')
	if r.Max.IsValid() {
		b.WriteString(r.Max.Normalized())
	}
	if r.MaxInclusive {
		b.WriteByte(']')
	} else {
		b.WriteByte(')')
	}
	return b.String()
}

// Satisfies reports whether candidate falls inside the range.
//
//   - The empty range matches anything.
//   - A plain version is an inclusive floor: candidate >= min.
//   - "[1.0]" matches only 1.0 exactly.
//   - Intervals apply each present bound with its own inclusivity.
func (r Range) Satisfies(candidate Version) bool {
	if !candidate.IsValid() {
		return false
	}
	if r.IsEmpty() {
		return true
	}
	if !r.Interval {
		return candidate.Compare(r.Min) >= 0
	}
	if r.IsExact() {
		return candidate.Compare(r.Min) == 0
	}

	if r.Min.IsValid() {
		c := candidate.Compare(r.Min)
		if c < 0 || (c == 0 && !r.MinInclusive) {
			return false
		}
	}
	if r.Max.IsValid() {
		c := candidate.Compare(r.Max)
		if c > 0 || (c == 0 && !r.MaxInclusive) {
			return false
		}
	}
	return true
}

// Overlaps reports whether two constraints can be satisfied by a common
// version, using the bound-membership heuristic the dependency merger relies
// on: the ranges overlap when a bound of one falls inside the other,
// honoring exclusivity at shared boundary points. This is deliberately not a
// full interval intersection; exact pins are compared against the other
// range directly.
func (r Range) Overlaps(o Range) bool {
	if r.IsEmpty() || o.IsEmpty() {
		return true
	}
	if r.IsExact() {
		return o.Satisfies(r.Min)
	}
	if o.IsExact() {
		return r.Satisfies(o.Min)
	}
	return r.containsBound(o) || o.containsBound(r)
}

func (r Range) containsBound(o Range) bool {
	if o.Min.IsValid() {
		if r.Satisfies(o.Min) && !(excludedBoundary(r, o.Min) && !o.MinInclusive) {
			return true
		}
	}
	if o.Max.IsValid() {
		if r.Satisfies(o.Max) && !(excludedBoundary(r, o.Max) && !o.MaxInclusive) {
			return true
		}
	}
	return false
}

// excludedBoundary reports whether v sits exactly on one of r's bounds.
func excludedBoundary(r Range, v Version) bool {
	if r.Min.IsValid() && v.Compare(r.Min) == 0 {
		return true
	}
	if r.Max.IsValid() && v.Compare(r.Max) == 0 {
		return true
	}
	return false
}
