package core

import (
	"fmt"
	"strings"

	"github.com/git-pkgs/nupkg/internal/semver"
	packageurl "github.com/package-url/packageurl-go"
)

// PURL returns the Package URL for the identifier, e.g.
// "pkg:nuget/Newtonsoft.Json@13.0.3". Identifiers without a concrete
// resolved version render without the @version suffix.
func (id Identifier) PURL() string {
	p := packageurl.NewPackageURL(packageurl.TypeNuget, "", id.Name, purlVersion(id), nil, "")
	return p.ToString()
}

func purlVersion(id Identifier) string {
	v := id.Version()
	if !v.IsValid() || (id.HasVersionRange() && !id.Spec.IsExact()) {
		return ""
	}
	return v.Normalized()
}

// ParsePURL parses a "pkg:nuget/..." string into an identifier. A version
// component becomes an exact pin; its absence leaves the spec empty.
func ParsePURL(purl string) (Identifier, error) {
	p, err := packageurl.FromString(purl)
	if err != nil {
		return Identifier{}, err
	}
	if !strings.EqualFold(p.Type, packageurl.TypeNuget) {
		return Identifier{}, fmt.Errorf("unsupported purl type: %s", p.Type)
	}

	name := p.Name
	if p.Namespace != "" {
		name = p.Namespace + "." + p.Name
	}

	if p.Version == "" {
		return Identifier{Name: name}, nil
	}
	v := semver.Parse(p.Version)
	if !v.IsValid() {
		return Identifier{}, fmt.Errorf("invalid version in purl: %s", p.Version)
	}
	return Pinned(name, v), nil
}
