// Package remotev3 provides a package source speaking the JSON feed
// protocol: a service index naming the search, registration, and flat
// container endpoints.
package remotev3

import (
	"context"
	"errors"
	"fmt"
	"net/url"
	"strings"
	"sync"

	"github.com/git-pkgs/nupkg/client"
	"github.com/git-pkgs/nupkg/internal/core"
	"github.com/git-pkgs/nupkg/internal/events"
	"github.com/git-pkgs/nupkg/internal/semver"
)

const kind = "v3"

func init() {
	core.Register(kind, func(cfg core.Config, c *client.Client, sink events.Sink) (core.Source, error) {
		return New(cfg.Name, cfg.URL, c, sink), nil
	})
}

// Source queries one JSON feed. Endpoint discovery through the service
// index happens on first use and is cached; a failed discovery (network,
// cancelled context) is retried on the next call rather than cached.
type Source struct {
	name     string
	indexURL string
	client   *client.Client
	sink     events.Sink

	mu        sync.Mutex
	ready     bool
	endpoints endpoints
}

type endpoints struct {
	search       string
	registration string
	flat         string
}

// New creates a v3 source. baseURL points at the service index document,
// with or without the trailing "index.json".
func New(name, baseURL string, c *client.Client, sink events.Sink) *Source {
	u := strings.TrimSuffix(baseURL, "/")
	if !strings.HasSuffix(u, "index.json") {
		u += "/index.json"
	}
	return &Source{name: name, indexURL: u, client: c, sink: sink}
}

func (s *Source) Name() string { return s.name }
func (s *Source) Kind() string { return kind }

type serviceIndex struct {
	Resources []struct {
		ID   string `json:"@id"`
		Type string `json:"@type"`
	} `json:"resources"`
}

func (s *Source) resolve(ctx context.Context) (endpoints, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.ready {
		return s.endpoints, nil
	}

	var idx serviceIndex
	if err := s.client.GetJSON(ctx, s.indexURL, &idx); err != nil {
		return endpoints{}, fmt.Errorf("service index %s: %w", s.indexURL, err)
	}

	var eps endpoints
	for _, res := range idx.Resources {
		switch {
		case strings.HasPrefix(res.Type, "SearchQueryService"):
			if eps.search == "" {
				eps.search = strings.TrimSuffix(res.ID, "/")
			}
		case strings.HasPrefix(res.Type, "RegistrationsBaseUrl"):
			if eps.registration == "" {
				eps.registration = strings.TrimSuffix(res.ID, "/")
			}
		case strings.HasPrefix(res.Type, "PackageBaseAddress"):
			if eps.flat == "" {
				eps.flat = strings.TrimSuffix(res.ID, "/")
			}
		}
	}
	if eps.flat == "" {
		return endpoints{}, fmt.Errorf("service index %s lists no package base address", s.indexURL)
	}

	s.endpoints = eps
	s.ready = true
	return eps, nil
}

type flatIndex struct {
	Versions []string `json:"versions"`
}

func (s *Source) FindVersions(ctx context.Context, name string) ([]semver.Version, error) {
	eps, err := s.resolve(ctx)
	if err != nil {
		return nil, err
	}

	lower := strings.ToLower(name)
	var idx flatIndex
	if err := s.client.GetJSON(ctx, fmt.Sprintf("%s/%s/index.json", eps.flat, lower), &idx); err != nil {
		if errors.Is(err, client.ErrNotFound) {
			return nil, nil
		}
		return nil, err
	}

	versions := make([]semver.Version, 0, len(idx.Versions))
	for _, raw := range idx.Versions {
		if v := semver.Parse(raw); v.IsValid() {
			versions = append(versions, v)
		}
	}
	semver.Sort(versions)
	return versions, nil
}

func (s *Source) FindBestMatch(ctx context.Context, id core.Identifier) (*core.PackageMetadata, error) {
	eps, err := s.resolve(ctx)
	if err != nil {
		return nil, err
	}

	versions, err := s.FindVersions(ctx, id.Name)
	if err != nil {
		return nil, err
	}
	if len(versions) == 0 {
		return nil, nil
	}

	best, ok := core.BestVersion(versions, id, s.sink)
	if !ok {
		return nil, nil
	}

	meta := &core.PackageMetadata{
		Identifier:        core.Pinned(id.Name, best),
		AvailableVersions: versions,
		ContentURL:        contentURL(eps.flat, id.Name, best),
		Source:            s,
	}

	// Registration details are best effort; the summary stands on its own
	// and the resolver fetches dependency groups separately when needed.
	if leaf, err := s.registrationLeaf(ctx, id.Name, best); err == nil && leaf != nil {
		meta.Identifier = core.Pinned(leaf.ID, best)
		meta.Title = leaf.Title
		meta.Description = leaf.Description
		meta.Authors = asString(leaf.Authors)
		meta.ProjectURL = leaf.ProjectURL
		meta.LicenseURL = leaf.LicenseURL
		meta.Tags = asStrings(leaf.Tags)
		meta.DependencyGroups = groupsFromLeaf(leaf)
	}
	return meta, nil
}

func contentURL(flat, name string, v semver.Version) string {
	lower := strings.ToLower(name)
	lowerV := strings.ToLower(v.Normalized())
	return fmt.Sprintf("%s/%s/%s/%s.%s.nupkg", flat, lower, lowerV, lower, lowerV)
}

type registrationIndex struct {
	Items []registrationPage `json:"items"`
}

type registrationPage struct {
	ID    string             `json:"@id"`
	Items []registrationItem `json:"items"`
}

type registrationItem struct {
	CatalogEntry catalogEntry `json:"catalogEntry"`
}

type catalogEntry struct {
	ID               string            `json:"id"`
	Version          string            `json:"version"`
	Title            string            `json:"title"`
	Authors          any               `json:"authors"`
	Description      string            `json:"description"`
	ProjectURL       string            `json:"projectUrl"`
	LicenseURL       string            `json:"licenseUrl"`
	Tags             any               `json:"tags"`
	DependencyGroups []dependencyGroup `json:"dependencyGroups"`
}

type dependencyGroup struct {
	TargetFramework string `json:"targetFramework"`
	Dependencies    []struct {
		ID    string `json:"id"`
		Range string `json:"range"`
	} `json:"dependencies"`
}

// registrationLeaf finds the catalog entry for one concrete version,
// chasing non-inlined registration pages when needed.
func (s *Source) registrationLeaf(ctx context.Context, name string, v semver.Version) (*catalogEntry, error) {
	eps, err := s.resolve(ctx)
	if err != nil {
		return nil, err
	}
	if eps.registration == "" {
		return nil, core.ErrNotFound
	}

	var idx registrationIndex
	u := fmt.Sprintf("%s/%s/index.json", eps.registration, strings.ToLower(name))
	if err := s.client.GetJSON(ctx, u, &idx); err != nil {
		return nil, err
	}

	for i := range idx.Items {
		page := &idx.Items[i]
		if len(page.Items) == 0 && page.ID != "" {
			var full registrationPage
			if err := s.client.GetJSON(ctx, page.ID, &full); err != nil {
				continue
			}
			page = &full
		}
		for j := range page.Items {
			ce := &page.Items[j].CatalogEntry
			if semver.Parse(ce.Version).Equal(v) {
				return ce, nil
			}
		}
	}
	return nil, core.ErrNotFound
}

func groupsFromLeaf(leaf *catalogEntry) []core.DependencyGroup {
	groups := make([]core.DependencyGroup, 0, len(leaf.DependencyGroups))
	for _, g := range leaf.DependencyGroups {
		cg := core.DependencyGroup{Profile: g.TargetFramework}
		for _, d := range g.Dependencies {
			dep, err := core.NewIdentifier(d.ID, d.Range)
			if err != nil {
				continue
			}
			cg.Dependencies = append(cg.Dependencies, dep)
		}
		groups = append(groups, cg)
	}
	return groups
}

func (s *Source) DependencyGroups(ctx context.Context, id core.Identifier) ([]core.DependencyGroup, error) {
	leaf, err := s.registrationLeaf(ctx, id.Name, id.Version())
	if err != nil {
		return nil, err
	}
	return groupsFromLeaf(leaf), nil
}

type searchResponse struct {
	Data []searchResult `json:"data"`
}

type searchResult struct {
	ID          string `json:"id"`
	Version     string `json:"version"`
	Title       string `json:"title"`
	Description string `json:"description"`
	ProjectURL  string `json:"projectUrl"`
	LicenseURL  string `json:"licenseUrl"`
	Authors     any    `json:"authors"`
	Tags        any    `json:"tags"`
	Versions    []struct {
		Version string `json:"version"`
	} `json:"versions"`
}

func (s *Source) Search(ctx context.Context, q core.SearchQuery) ([]*core.PackageMetadata, error) {
	eps, err := s.resolve(ctx)
	if err != nil {
		return nil, err
	}
	if eps.search == "" {
		return nil, fmt.Errorf("source %s has no search service", s.name)
	}

	take := q.Take
	if take <= 0 {
		take = 30
	}
	u := fmt.Sprintf("%s?q=%s&skip=%d&take=%d&prerelease=%t&semVerLevel=2.0.0",
		eps.search, url.QueryEscape(q.Term), q.Skip, take, q.IncludePrerelease)

	var resp searchResponse
	if err := s.client.GetJSON(ctx, u, &resp); err != nil {
		return nil, err
	}

	var metas []*core.PackageMetadata
	for _, r := range resp.Data {
		versions := make([]semver.Version, 0, len(r.Versions))
		for _, rv := range r.Versions {
			if v := semver.Parse(rv.Version); v.IsValid() {
				versions = append(versions, v)
			}
		}
		semver.Sort(versions)
		versions = core.FilterPrerelease(versions, q.IncludePrerelease)

		if q.IncludeAllVersions {
			for _, v := range versions {
				metas = append(metas, s.searchMetadata(&r, v, versions, eps.flat))
			}
			continue
		}

		v := semver.Parse(r.Version)
		if !v.IsValid() || (v.IsPrerelease() && !q.IncludePrerelease) {
			if len(versions) == 0 {
				continue
			}
			v = versions[len(versions)-1]
		}
		metas = append(metas, s.searchMetadata(&r, v, versions, eps.flat))
	}

	core.SortMetadata(metas)
	return metas, nil
}

func (s *Source) searchMetadata(r *searchResult, v semver.Version, versions []semver.Version, flat string) *core.PackageMetadata {
	return &core.PackageMetadata{
		Identifier:        core.Pinned(r.ID, v),
		Title:             r.Title,
		Description:       r.Description,
		Authors:           asString(r.Authors),
		ProjectURL:        r.ProjectURL,
		LicenseURL:        r.LicenseURL,
		Tags:              asStrings(r.Tags),
		AvailableVersions: versions,
		ContentURL:        contentURL(flat, r.ID, v),
		Source:            s,
	}
}

// GetUpdates walks installed packages one by one; the protocol has no batch
// update endpoint, so the flat container version list serves as the query.
func (s *Source) GetUpdates(ctx context.Context, installed []core.Identifier, includePrerelease bool) ([]*core.PackageMetadata, error) {
	var out []*core.PackageMetadata
	for _, inst := range installed {
		versions, err := s.FindVersions(ctx, inst.Name)
		if err != nil {
			return nil, err
		}
		best, ok := core.UpdatesFromVersions(inst, versions, includePrerelease)
		if !ok {
			continue
		}
		meta, err := s.FindBestMatch(ctx, core.Pinned(inst.Name, best))
		if err != nil || meta == nil {
			continue
		}
		out = append(out, meta)
	}
	core.SortMetadata(out)
	return out, nil
}

// asString flattens a feed field that may arrive as a string or a list.
func asString(v any) string {
	switch t := v.(type) {
	case string:
		return t
	case []any:
		parts := make([]string, 0, len(t))
		for _, e := range t {
			if s, ok := e.(string); ok {
				parts = append(parts, s)
			}
		}
		return strings.Join(parts, ", ")
	}
	return ""
}

func asStrings(v any) []string {
	switch t := v.(type) {
	case string:
		return strings.Fields(t)
	case []any:
		out := make([]string, 0, len(t))
		for _, e := range t {
			if s, ok := e.(string); ok {
				out = append(out, s)
			}
		}
		return out
	}
	return nil
}
