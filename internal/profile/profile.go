// Package profile selects the dependency group best matching the host's
// target platform profile.
//
// All compatibility policy lives in one ordered tier table built from the
// current profile: the native tier first, then tiers for each older or
// broader platform generation the profile can consume, and a catch-all
// empty-label tier last. A candidate label scores tierIndex*1000 plus its
// position within the tier; the lowest score wins and a label absent from
// every tier is ineligible.
package profile

import (
	"fmt"
	"slices"
	"strings"
)

// Profiles are written as target framework monikers: "net8.0",
// "netcoreapp3.1", "netstandard2.0", "net48".
const DefaultProfile = "netstandard2.0"

var modernNet = []string{"net9.0", "net8.0", "net7.0", "net6.0", "net5.0"}

var coreApp = []string{
	"netcoreapp3.1", "netcoreapp3.0",
	"netcoreapp2.2", "netcoreapp2.1", "netcoreapp2.0",
	"netcoreapp1.1", "netcoreapp1.0",
}

var netStandard = []string{
	"netstandard2.1", "netstandard2.0",
	"netstandard1.6", "netstandard1.5", "netstandard1.4",
	"netstandard1.3", "netstandard1.2", "netstandard1.1", "netstandard1.0",
}

var netFramework = []string{
	"net48", "net472", "net471", "net47",
	"net462", "net461", "net46",
	"net452", "net451", "net45",
	"net403", "net40", "net35", "net30", "net20",
}

// maxStandardFor maps a .NET Framework moniker to the newest .NET Standard
// generation it can consume.
var maxStandardFor = map[string]string{
	"net48":  "netstandard2.0",
	"net472": "netstandard2.0",
	"net471": "netstandard2.0",
	"net47":  "netstandard2.0",
	"net462": "netstandard2.0",
	"net461": "netstandard2.0",
	"net46":  "netstandard1.3",
	"net452": "netstandard1.2",
	"net451": "netstandard1.2",
	"net45":  "netstandard1.1",
}

// Resolver holds the tier table for one current profile. Treated as a
// read-only snapshot for the duration of a resolution run.
type Resolver struct {
	current string
	tiers   [][]string
}

// New builds a resolver for the current platform profile.
func New(current string) (*Resolver, error) {
	tiers, err := buildTiers(strings.ToLower(strings.TrimSpace(current)))
	if err != nil {
		return nil, err
	}
	return &Resolver{current: current, tiers: tiers}, nil
}

// Current returns the profile the resolver was built for.
func (r *Resolver) Current() string {
	return r.current
}

func buildTiers(current string) ([][]string, error) {
	if i := slices.Index(modernNet, current); i >= 0 {
		return [][]string{
			{current},
			modernNet[i+1:],
			coreApp,
			netStandard,
			{""},
		}, nil
	}

	if i := slices.Index(coreApp, current); i >= 0 {
		standards := netStandard
		if current < "netcoreapp3.0" {
			// netstandard2.1 needs Core 3.0 or newer.
			standards = netStandard[1:]
		}
		return [][]string{
			{current},
			coreApp[i+1:],
			standards,
			{""},
		}, nil
	}

	if i := slices.Index(netStandard, current); i >= 0 {
		return [][]string{
			{current},
			netStandard[i+1:],
			{""},
		}, nil
	}

	if i := slices.Index(netFramework, current); i >= 0 {
		var standards []string
		if maxStd, ok := maxStandardFor[current]; ok {
			if j := slices.Index(netStandard, maxStd); j >= 0 {
				standards = netStandard[j:]
			}
		}
		return [][]string{
			{current},
			netFramework[i+1:],
			standards,
			{""},
		}, nil
	}

	return nil, fmt.Errorf("unknown platform profile: %q", current)
}

// Best selects the single compatible label from labels, or false when none
// matches any tier. Given the same profile and the same candidate set the
// selection is always identical.
func (r *Resolver) Best(labels []string) (string, bool) {
	const ineligible = int(^uint(0) >> 1)

	bestScore := ineligible
	bestLabel := ""
	for _, label := range labels {
		if s := r.score(label); s < bestScore {
			bestScore = s
			bestLabel = label
		}
	}
	if bestScore == ineligible {
		return "", false
	}
	return bestLabel, true
}

func (r *Resolver) score(label string) int {
	const ineligible = int(^uint(0) >> 1)

	norm := Normalize(label)
	for ti, tier := range r.tiers {
		for pi, entry := range tier {
			if norm == Normalize(entry) {
				return ti*1000 + pi
			}
		}
	}
	return ineligible
}

// Normalize folds a group label to its comparable form: lower case, no
// punctuation, full framework names reduced to their short monikers. "any"
// and the empty label both normalize to the catch-all.
func Normalize(label string) string {
	s := strings.ToLower(strings.TrimSpace(label))
	if s == "" || s == "any" {
		return ""
	}

	s = strings.ReplaceAll(s, "version=v", "")
	s = strings.TrimPrefix(s, ".")
	for _, ch := range []string{".", ",", "+"} {
		s = strings.ReplaceAll(s, ch, "")
	}

	if rest, ok := strings.CutPrefix(s, "netframework"); ok {
		s = "net" + rest
	}
	return s
}
