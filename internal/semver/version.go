// Package semver implements the four-part semantic versions and version
// ranges used by NuGet-style package feeds.
//
// Versions carry up to four numeric components (major.minor.patch.revision),
// an optional pre-release suffix, and optional build metadata. Build metadata
// is preserved for display but never participates in ordering.
package semver

import (
	"sort"
	"strconv"
	"strings"
)

// Version is an immutable parsed package version.
//
// The zero Version is the invalid sentinel: Parse returns it for malformed
// input instead of an error, and callers must check IsValid before using a
// Version in range logic.
type Version struct {
	Major    int
	Minor    int
	Patch    int
	Revision int

	// Pre holds the pre-release labels ("alpha", "rc.1" -> ["rc","1"]).
	// A nil slice means a release version.
	Pre []string

	// Meta is the build metadata after "+". Display only.
	Meta string

	raw string
	ok  bool
}

// Parse parses a version string like "1.2", "1.2.3.4", "1.0.0-alpha.1" or
// "1.0.0+sha.5114f85". Missing minor/patch/revision components default to
// zero. Malformed input yields the invalid sentinel rather than an error.
func Parse(s string) Version {
	raw := strings.TrimSpace(s)
	if raw == "" {
		return Version{}
	}

	rest := raw

	var meta string
	if idx := strings.Index(rest, "+"); idx >= 0 {
		meta = rest[idx+1:]
		rest = rest[:idx]
		if meta == "" {
			return Version{}
		}
	}

	var pre []string
	if idx := strings.Index(rest, "-"); idx >= 0 {
		suffix := rest[idx+1:]
		rest = rest[:idx]
		if suffix == "" {
			return Version{}
		}
		pre = strings.Split(suffix, ".")
	}

	parts := strings.Split(rest, ".")
	if len(parts) == 0 || len(parts) > 4 {
		return Version{}
	}

	nums := [4]int{}
	for i, p := range parts {
		n, err := strconv.Atoi(p)
		if err != nil || n < 0 || p == "" {
			return Version{}
		}
		nums[i] = n
	}

	return Version{
		Major:    nums[0],
		Minor:    nums[1],
		Patch:    nums[2],
		Revision: nums[3],
		Pre:      pre,
		Meta:     meta,
		raw:      raw,
		ok:       true,
	}
}

// New constructs a release version from numeric components.
func New(major, minor, patch, revision int) Version {
	v := Version{Major: major, Minor: minor, Patch: patch, Revision: revision, ok: true}
	v.raw = v.Normalized()
	return v
}

// IsValid reports whether the version parsed successfully.
func (v Version) IsValid() bool { return v.ok }

// IsPrerelease reports whether the version carries a pre-release suffix.
func (v Version) IsPrerelease() bool { return len(v.Pre) > 0 }

// String returns the original text the version was parsed from.
func (v Version) String() string {
	if !v.ok {
		return "invalid"
	}
	if v.raw != "" {
		return v.raw
	}
	return v.Normalized()
}

// Normalized returns the canonical form of the version, without build
// metadata. Two versions are identical iff their normalized forms match.
func (v Version) Normalized() string {
	if !v.ok {
		return "invalid"
	}
	var b strings.Builder
	b.WriteString(strconv.Itoa(v.Major))
	b.WriteByte('.')
	b.WriteString(strconv.Itoa(v.Minor))
	b.WriteByte('.')
	b.WriteString(strconv.Itoa(v.Patch))
	if v.Revision > 0 {
		b.WriteByte('.')
		b.WriteString(strconv.Itoa(v.Revision))
	}
	if len(v.Pre) > 0 {
		b.WriteByte('-')
		b.WriteString(strings.Join(v.Pre, "."))
	}
	return b.String()
}

// Compare returns -1, 0 or 1 ordering v against o.
//
// Numeric components compare first. At equal numbers a release version is
// greater than a pre-release one. Pre-release suffixes compare label by
// label: numeric labels compare numerically against each other and sort
// before alphanumeric labels; alphanumeric labels compare case-insensitively;
// a suffix that runs out of labels first is smaller. Build metadata is
// ignored, so versions differing only in metadata compare equal.
func (v Version) Compare(o Version) int {
	if c := cmpInt(v.Major, o.Major); c != 0 {
		return c
	}
	if c := cmpInt(v.Minor, o.Minor); c != 0 {
		return c
	}
	if c := cmpInt(v.Patch, o.Patch); c != 0 {
		return c
	}
	if c := cmpInt(v.Revision, o.Revision); c != 0 {
		return c
	}

	switch {
	case len(v.Pre) == 0 && len(o.Pre) == 0:
		return 0
	case len(v.Pre) == 0:
		return 1
	case len(o.Pre) == 0:
		return -1
	}

	return comparePre(v.Pre, o.Pre)
}

// Equal reports whether v and o compare equal (build metadata ignored).
func (v Version) Equal(o Version) bool { return v.Compare(o) == 0 }

// Less reports whether v orders strictly before o.
func (v Version) Less(o Version) bool { return v.Compare(o) < 0 }

func comparePre(a, b []string) int {
	n := len(a)
	if len(b) < n {
		n = len(b)
	}
	for i := 0; i < n; i++ {
		if c := comparePreLabel(a[i], b[i]); c != 0 {
			return c
		}
	}
	// The shorter label list sorts first.
	return cmpInt(len(a), len(b))
}

func comparePreLabel(a, b string) int {
	an, aNum := parseNumericLabel(a)
	bn, bNum := parseNumericLabel(b)

	switch {
	case aNum && bNum:
		return cmpInt(an, bn)
	case aNum:
		// Numeric labels sort before alphanumeric ones.
		return -1
	case bNum:
		return 1
	}

	al, bl := strings.ToLower(a), strings.ToLower(b)
	switch {
	case al < bl:
		return -1
	case al > bl:
		return 1
	}
	return 0
}

func parseNumericLabel(s string) (int, bool) {
	if s == "" {
		return 0, false
	}
	for _, r := range s {
		if r < '0' || r > '9' {
			return 0, false
		}
	}
	n, err := strconv.Atoi(s)
	if err != nil {
		return 0, false
	}
	return n, true
}

func cmpInt(a, b int) int {
	switch {
	case a < b:
		return -1
	case a > b:
		return 1
	}
	return 0
}

// Sort orders a slice of versions ascending, in place.
func Sort(versions []Version) {
	sort.Slice(versions, func(i, j int) bool {
		return versions[i].Less(versions[j])
	})
}
