package core

import (
	"sort"
	"strings"

	"github.com/git-pkgs/nupkg/internal/events"
	"github.com/git-pkgs/nupkg/internal/semver"
)

// UpdateBatchSize bounds how many installed packages one remote update query
// names. Keeps query strings under typical URL length limits; a tunable, not
// an invariant.
const UpdateBatchSize = 25

// BestVersion picks from an ascending version list the highest version
// satisfying the identifier. When nothing satisfies a spec that has a
// minimum bound, it falls back to the next available version above that
// floor and reports the substitution through the sink. The second return is
// false when no candidate is acceptable at all.
//
// The fallback is a deliberate, load-bearing contract: callers expect to get
// a candidate whenever one exists above the requested floor, even without an
// exact range match.
func BestVersion(versions []semver.Version, id Identifier, sink events.Sink) (semver.Version, bool) {
	for i := len(versions) - 1; i >= 0; i-- {
		if id.InRange(versions[i]) {
			return versions[i], true
		}
	}

	if !id.Spec.Min.IsValid() || id.Spec.IsExact() {
		return semver.Version{}, false
	}

	// Nothing in range: substitute the first version above the floor.
	for _, v := range versions {
		c := v.Compare(id.Spec.Min)
		if c > 0 || (c == 0 && id.Spec.MinInclusive) {
			events.Emit(sink, events.Event{
				Kind:    events.FallbackVersion,
				Package: id.Name,
				Version: v.String(),
				Message: "no version matches " + id.Spec.String() + "; substituting next above minimum",
			})
			return v, true
		}
	}
	return semver.Version{}, false
}

// FilterPrerelease drops pre-release versions unless they are requested.
func FilterPrerelease(versions []semver.Version, include bool) []semver.Version {
	if include {
		return versions
	}
	out := versions[:0:0]
	for _, v := range versions {
		if !v.IsPrerelease() {
			out = append(out, v)
		}
	}
	return out
}

// DedupeNewest collapses a listing to one entry per package name, keeping
// the highest version, unless all versions were requested. Order of first
// appearance is preserved.
func DedupeNewest(metas []*PackageMetadata, includeAllVersions bool) []*PackageMetadata {
	if includeAllVersions {
		return metas
	}

	best := make(map[string]*PackageMetadata)
	order := make([]string, 0, len(metas))
	for _, m := range metas {
		key := strings.ToLower(m.Name)
		prev, seen := best[key]
		if !seen {
			best[key] = m
			order = append(order, key)
			continue
		}
		if m.Version().Compare(prev.Version()) > 0 {
			best[key] = m
		}
	}

	out := make([]*PackageMetadata, 0, len(order))
	for _, key := range order {
		out = append(out, best[key])
	}
	return out
}

// Page applies skip/take to a listing. Take <= 0 means no limit.
func Page(metas []*PackageMetadata, take, skip int) []*PackageMetadata {
	if skip < 0 {
		skip = 0
	}
	if skip >= len(metas) {
		return nil
	}
	metas = metas[skip:]
	if take > 0 && take < len(metas) {
		metas = metas[:take]
	}
	return metas
}

// Batch splits installed identifiers into bounded chunks for remote update
// queries.
func Batch(ids []Identifier, size int) [][]Identifier {
	if size <= 0 {
		size = UpdateBatchSize
	}
	var out [][]Identifier
	for len(ids) > size {
		out = append(out, ids[:size])
		ids = ids[size:]
	}
	if len(ids) > 0 {
		out = append(out, ids)
	}
	return out
}

// SortMetadata orders a listing by identifier: case-insensitive name, then
// version.
func SortMetadata(metas []*PackageMetadata) {
	sort.SliceStable(metas, func(i, j int) bool {
		return metas[i].Identifier.Compare(metas[j].Identifier) < 0
	})
}

// UpdatesFromVersions builds the GetUpdates result for one installed
// identifier given its full ascending version list, applying the
// strictly-greater rule.
func UpdatesFromVersions(installed Identifier, versions []semver.Version, includePrerelease bool) (semver.Version, bool) {
	versions = FilterPrerelease(versions, includePrerelease)
	var best semver.Version
	found := false
	for _, v := range versions {
		if v.Compare(installed.Version()) > 0 {
			if !found || v.Compare(best) > 0 {
				best = v
				found = true
			}
		}
	}
	return best, found
}
