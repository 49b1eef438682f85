// Package core provides shared types and the package-source system.
package core

import (
	"strings"

	"github.com/git-pkgs/nupkg/internal/semver"
)

// Identifier names a requested or installed package: a case-insensitive
// package name paired with a version constraint.
//
// Identity and ordering use the resolved version, not the constraint text:
// two identifiers with different ranges but the same concrete version are
// equal.
type Identifier struct {
	Name string
	Spec semver.Range

	// Manual marks packages the user asked for directly, as opposed to
	// ones pulled in as dependencies.
	Manual bool
}

// NewIdentifier builds an identifier from a free-form constraint string.
// A leading "[" or "(" selects interval notation; anything else is a plain
// minimum-inclusive version. An empty spec matches any version.
func NewIdentifier(name, spec string) (Identifier, error) {
	r, err := semver.ParseRange(spec)
	if err != nil {
		return Identifier{}, err
	}
	return Identifier{Name: name, Spec: r}, nil
}

// Pinned builds an identifier fixed to one concrete version.
func Pinned(name string, v semver.Version) Identifier {
	return Identifier{Name: name, Spec: semver.Exact(v)}
}

// Version returns the resolved version of the identifier: the minimum bound
// for pinned and floor specs, the invalid sentinel when only a ceiling or an
// empty spec is present.
func (id Identifier) Version() semver.Version {
	return id.Spec.Min
}

// HasVersionRange reports whether the spec was written in interval notation.
func (id Identifier) HasVersionRange() bool {
	return id.Spec.Interval
}

// IsPrerelease reports whether the resolved version carries a pre-release
// suffix.
func (id Identifier) IsPrerelease() bool {
	return id.Version().IsPrerelease()
}

// InRange reports whether candidate satisfies the identifier's constraint.
func (id Identifier) InRange(candidate semver.Version) bool {
	return id.Spec.Satisfies(candidate)
}

// Equal reports identity: fold-equal names and equal resolved versions.
// Build metadata never participates.
func (id Identifier) Equal(o Identifier) bool {
	return strings.EqualFold(id.Name, o.Name) && id.Version().Compare(o.Version()) == 0
}

// Compare orders identifiers by case-insensitive name, then by resolved
// version.
func (id Identifier) Compare(o Identifier) int {
	a, b := strings.ToLower(id.Name), strings.ToLower(o.Name)
	switch {
	case a < b:
		return -1
	case a > b:
		return 1
	}
	return id.Version().Compare(o.Version())
}

// Key returns the case-folded name used for map identity.
func (id Identifier) Key() string {
	return strings.ToLower(id.Name)
}

// SpecKey returns a cache key covering both name and constraint.
func (id Identifier) SpecKey() string {
	return id.Key() + "@" + id.Spec.String()
}

func (id Identifier) String() string {
	if s := id.Spec.String(); s != "" {
		return id.Name + " " + s
	}
	return id.Name
}

// DependencyGroup is the set of dependencies a package publishes for one
// target platform profile. The empty label is the catch-all group.
type DependencyGroup struct {
	Profile      string
	Dependencies []Identifier
}

// PackageMetadata is the summary a source returns for one resolved package.
//
// Constructed fresh per query and never mutated afterwards, except that
// DependencyGroups may be absent until the source's DependencyGroups call
// supplies it; the resolver caches that detail fetch per run.
type PackageMetadata struct {
	Identifier

	Title       string
	Description string
	Authors     string
	ProjectURL  string
	LicenseURL  string
	Tags        []string

	// AvailableVersions lists every known version, ascending.
	AvailableVersions []semver.Version

	// DependencyGroups is nil until the detail fetch ran. An empty,
	// non-nil slice means the package has no dependencies.
	DependencyGroups []DependencyGroup

	// ContentPath and ContentURL locate the package archive. Which one is
	// set depends on the source variant.
	ContentPath string
	ContentURL  string

	// Source points back at the originating source for detail lookups.
	// Lookup only, no ownership.
	Source Source
}

// SearchQuery parameterizes a source listing.
type SearchQuery struct {
	Term               string
	IncludePrerelease  bool
	IncludeAllVersions bool
	Take               int
	Skip               int
}
