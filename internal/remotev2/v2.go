// Package remotev2 provides a package source speaking the legacy OData feed
// protocol (Atom XML).
package remotev2

import (
	"context"
	"fmt"
	"net/url"
	"sort"
	"strings"

	"github.com/git-pkgs/nupkg/client"
	"github.com/git-pkgs/nupkg/internal/core"
	"github.com/git-pkgs/nupkg/internal/events"
	"github.com/git-pkgs/nupkg/internal/semver"
)

const kind = "v2"

func init() {
	core.Register(kind, func(cfg core.Config, c *client.Client, sink events.Sink) (core.Source, error) {
		return New(cfg.Name, cfg.URL, c, sink), nil
	})
}

// Source queries one OData feed endpoint.
type Source struct {
	name    string
	baseURL string
	client  *client.Client
	sink    events.Sink
}

// New creates a v2 source for the feed at baseURL.
func New(name, baseURL string, c *client.Client, sink events.Sink) *Source {
	return &Source{
		name:    name,
		baseURL: strings.TrimSuffix(baseURL, "/"),
		client:  c,
		sink:    sink,
	}
}

func (s *Source) Name() string { return s.name }
func (s *Source) Kind() string { return kind }

type feed struct {
	Entries []entry `xml:"entry"`
}

type entry struct {
	Title      string     `xml:"title"`
	Content    content    `xml:"content"`
	Properties properties `xml:"properties"`
}

type content struct {
	Src string `xml:"src,attr"`
}

type properties struct {
	ID           string `xml:"Id"`
	Version      string `xml:"Version"`
	Title        string `xml:"Title"`
	Authors      string `xml:"Authors"`
	Description  string `xml:"Description"`
	ProjectURL   string `xml:"ProjectUrl"`
	LicenseURL   string `xml:"LicenseUrl"`
	Tags         string `xml:"Tags"`
	Dependencies string `xml:"Dependencies"`
}

func (e *entry) id() string {
	if e.Properties.ID != "" {
		return e.Properties.ID
	}
	return e.Title
}

func (s *Source) fetchByID(ctx context.Context, name string) ([]entry, error) {
	u := fmt.Sprintf("%s/FindPackagesById()?id='%s'&$orderby=Version", s.baseURL, url.QueryEscape(name))
	var f feed
	if err := s.client.GetXML(ctx, u, &f); err != nil {
		return nil, err
	}
	return f.Entries, nil
}

func (s *Source) FindVersions(ctx context.Context, name string) ([]semver.Version, error) {
	entries, err := s.fetchByID(ctx, name)
	if err != nil {
		return nil, err
	}

	versions := make([]semver.Version, 0, len(entries))
	for _, e := range entries {
		if v := semver.Parse(e.Properties.Version); v.IsValid() {
			versions = append(versions, v)
		}
	}
	semver.Sort(versions)
	return versions, nil
}

func (s *Source) FindBestMatch(ctx context.Context, id core.Identifier) (*core.PackageMetadata, error) {
	entries, err := s.fetchByID(ctx, id.Name)
	if err != nil {
		return nil, err
	}
	if len(entries) == 0 {
		return nil, nil
	}

	versions := make([]semver.Version, 0, len(entries))
	for _, e := range entries {
		if v := semver.Parse(e.Properties.Version); v.IsValid() {
			versions = append(versions, v)
		}
	}
	semver.Sort(versions)

	best, ok := core.BestVersion(versions, id, s.sink)
	if !ok {
		return nil, nil
	}

	for i := range entries {
		if semver.Parse(entries[i].Properties.Version).Equal(best) {
			return s.metadataFor(&entries[i], versions), nil
		}
	}
	return nil, nil
}

func (s *Source) metadataFor(e *entry, versions []semver.Version) *core.PackageMetadata {
	v := semver.Parse(e.Properties.Version)

	contentURL := e.Content.Src
	if contentURL == "" {
		contentURL = fmt.Sprintf("%s/package/%s/%s", s.baseURL, e.id(), v.Normalized())
	}

	return &core.PackageMetadata{
		Identifier:        core.Pinned(e.id(), v),
		Title:             e.Properties.Title,
		Description:       e.Properties.Description,
		Authors:           e.Properties.Authors,
		ProjectURL:        e.Properties.ProjectURL,
		LicenseURL:        e.Properties.LicenseURL,
		Tags:              strings.Fields(e.Properties.Tags),
		AvailableVersions: versions,
		DependencyGroups:  parseDependencies(e.Properties.Dependencies),
		ContentURL:        contentURL,
		Source:            s,
	}
}

// parseDependencies decodes the feed's packed dependency property:
// "Id:Range:Profile|Id:Range:Profile|...". Segments with an empty id mark
// an empty group for that profile. Group order follows first appearance.
func parseDependencies(packed string) []core.DependencyGroup {
	groups := []core.DependencyGroup{}
	if strings.TrimSpace(packed) == "" {
		return groups
	}

	index := make(map[string]int)
	for _, seg := range strings.Split(packed, "|") {
		parts := strings.SplitN(seg, ":", 3)
		depID := strings.TrimSpace(parts[0])
		spec := ""
		profile := ""
		if len(parts) > 1 {
			spec = strings.TrimSpace(parts[1])
		}
		if len(parts) > 2 {
			profile = strings.TrimSpace(parts[2])
		}

		gi, ok := index[strings.ToLower(profile)]
		if !ok {
			groups = append(groups, core.DependencyGroup{Profile: profile})
			gi = len(groups) - 1
			index[strings.ToLower(profile)] = gi
		}

		if depID == "" {
			continue
		}
		dep, err := core.NewIdentifier(depID, spec)
		if err != nil {
			continue
		}
		groups[gi].Dependencies = append(groups[gi].Dependencies, dep)
	}
	return groups
}

func (s *Source) DependencyGroups(ctx context.Context, id core.Identifier) ([]core.DependencyGroup, error) {
	entries, err := s.fetchByID(ctx, id.Name)
	if err != nil {
		return nil, err
	}
	for i := range entries {
		if semver.Parse(entries[i].Properties.Version).Equal(id.Version()) {
			return parseDependencies(entries[i].Properties.Dependencies), nil
		}
	}
	return nil, core.ErrNotFound
}

func (s *Source) Search(ctx context.Context, q core.SearchQuery) ([]*core.PackageMetadata, error) {
	take := q.Take
	if take <= 0 {
		take = 30
	}
	u := fmt.Sprintf("%s/Search()?searchTerm='%s'&targetFramework=''&includePrerelease=%t&$skip=%d&$top=%d",
		s.baseURL, url.QueryEscape(q.Term), q.IncludePrerelease, q.Skip, take)

	var f feed
	if err := s.client.GetXML(ctx, u, &f); err != nil {
		return nil, err
	}

	metas := make([]*core.PackageMetadata, 0, len(f.Entries))
	for i := range f.Entries {
		e := &f.Entries[i]
		v := semver.Parse(e.Properties.Version)
		if !v.IsValid() {
			continue
		}
		if v.IsPrerelease() && !q.IncludePrerelease {
			continue
		}
		metas = append(metas, s.metadataFor(e, []semver.Version{v}))
	}

	metas = core.DedupeNewest(metas, q.IncludeAllVersions)
	core.SortMetadata(metas)
	return metas, nil
}

// GetUpdates batches installed identifiers into bounded GetUpdates()
// requests so query strings stay under URL length limits.
func (s *Source) GetUpdates(ctx context.Context, installed []core.Identifier, includePrerelease bool) ([]*core.PackageMetadata, error) {
	var out []*core.PackageMetadata

	for _, batch := range core.Batch(installed, core.UpdateBatchSize) {
		ids := make([]string, len(batch))
		versions := make([]string, len(batch))
		for i, inst := range batch {
			ids[i] = inst.Name
			versions[i] = inst.Version().Normalized()
		}

		u := fmt.Sprintf("%s/GetUpdates()?packageIds='%s'&versions='%s'&includePrerelease=%t&includeAllVersions=false",
			s.baseURL,
			url.QueryEscape(strings.Join(ids, "|")),
			url.QueryEscape(strings.Join(versions, "|")),
			includePrerelease)

		var f feed
		if err := s.client.GetXML(ctx, u, &f); err != nil {
			return nil, err
		}

		for i := range f.Entries {
			e := &f.Entries[i]
			v := semver.Parse(e.Properties.Version)
			if !v.IsValid() {
				continue
			}
			if !strictlyNewer(batch, e.id(), v) {
				continue
			}
			out = append(out, s.metadataFor(e, []semver.Version{v}))
		}
	}

	sort.SliceStable(out, func(i, j int) bool {
		return out[i].Identifier.Compare(out[j].Identifier) < 0
	})
	return out, nil
}

// strictlyNewer guards against feeds that echo the installed version back.
func strictlyNewer(installed []core.Identifier, name string, v semver.Version) bool {
	for _, inst := range installed {
		if strings.EqualFold(inst.Name, name) {
			return v.Compare(inst.Version()) > 0
		}
	}
	return false
}
