// Package local provides a package source backed by a directory of .nupkg
// archives named "<id>.<version>.nupkg".
package local

import (
	"context"
	"os"
	"path/filepath"
	"strings"

	"github.com/git-pkgs/nupkg/client"
	"github.com/git-pkgs/nupkg/internal/core"
	"github.com/git-pkgs/nupkg/internal/events"
	"github.com/git-pkgs/nupkg/internal/nuspec"
	"github.com/git-pkgs/nupkg/internal/semver"
)

const kind = "local"

func init() {
	core.Register(kind, func(cfg core.Config, _ *client.Client, sink events.Sink) (core.Source, error) {
		return New(cfg.Name, cfg.Path, sink)
	})
}

// Source scans a directory on every query, so externally dropped archives
// are picked up without invalidation.
type Source struct {
	name string
	root string
	sink events.Sink
}

// New creates a local source rooted at dir.
func New(name, dir string, sink events.Sink) (*Source, error) {
	abs, err := filepath.Abs(dir)
	if err != nil {
		return nil, err
	}
	return &Source{name: name, root: abs, sink: sink}, nil
}

func (s *Source) Name() string { return s.name }
func (s *Source) Kind() string { return kind }

type archive struct {
	id      string
	version semver.Version
	path    string
}

// scan lists every parseable .nupkg in the root. Unreadable directories
// yield an empty listing, unparseable filenames are skipped.
func (s *Source) scan() []archive {
	entries, err := os.ReadDir(s.root)
	if err != nil {
		return nil
	}

	var out []archive
	for _, e := range entries {
		if e.IsDir() || !strings.EqualFold(filepath.Ext(e.Name()), ".nupkg") {
			continue
		}
		id, v, ok := splitArchiveName(e.Name())
		if !ok {
			continue
		}
		out = append(out, archive{id: id, version: v, path: filepath.Join(s.root, e.Name())})
	}
	return out
}

// splitArchiveName splits "Foo.Bar.1.2.3.nupkg" into its id and version.
// The version is the longest dot-suffix that parses and starts with a digit.
func splitArchiveName(filename string) (string, semver.Version, bool) {
	stem := filename[:len(filename)-len(filepath.Ext(filename))]
	for i := 0; i < len(stem); i++ {
		if stem[i] != '.' {
			continue
		}
		rest := stem[i+1:]
		if rest == "" || rest[0] < '0' || rest[0] > '9' {
			continue
		}
		if v := semver.Parse(rest); v.IsValid() {
			return stem[:i], v, true
		}
	}
	return "", semver.Version{}, false
}

func (s *Source) FindVersions(_ context.Context, name string) ([]semver.Version, error) {
	var versions []semver.Version
	for _, a := range s.scan() {
		if strings.EqualFold(a.id, name) {
			versions = append(versions, a.version)
		}
	}
	semver.Sort(versions)
	return versions, nil
}

func (s *Source) FindBestMatch(ctx context.Context, id core.Identifier) (*core.PackageMetadata, error) {
	archives := s.scan()

	var versions []semver.Version
	for _, a := range archives {
		if strings.EqualFold(a.id, id.Name) {
			versions = append(versions, a.version)
		}
	}
	if len(versions) == 0 {
		return nil, nil
	}
	semver.Sort(versions)

	best, ok := core.BestVersion(versions, id, s.sink)
	if !ok {
		return nil, nil
	}

	for _, a := range archives {
		if strings.EqualFold(a.id, id.Name) && a.version.Equal(best) {
			return s.metadataFor(a, versions)
		}
	}
	return nil, nil
}

// metadataFor builds full metadata from the archive's embedded nuspec.
// Local archives carry their dependency groups inline, so the detail fetch
// is satisfied immediately.
func (s *Source) metadataFor(a archive, versions []semver.Version) (*core.PackageMetadata, error) {
	m, err := nuspec.FromArchive(a.path)
	if err != nil {
		return nil, err
	}

	meta := &core.PackageMetadata{
		Identifier:        core.Pinned(a.id, a.version),
		Title:             m.Metadata.Title,
		Description:       m.Metadata.Description,
		Authors:           m.Metadata.Authors,
		ProjectURL:        m.Metadata.ProjectURL,
		LicenseURL:        m.Metadata.LicenseURL,
		Tags:              m.Metadata.TagList(),
		AvailableVersions: versions,
		DependencyGroups:  GroupsFromNuspec(&m.Metadata.Dependencies),
		ContentPath:       a.path,
		Source:            s,
	}
	return meta, nil
}

// GroupsFromNuspec converts nuspec dependency declarations into dependency
// groups. The legacy flat list becomes the catch-all group.
func GroupsFromNuspec(deps *nuspec.Dependencies) []core.DependencyGroup {
	groups := make([]core.DependencyGroup, 0, len(deps.Groups)+1)
	for _, g := range deps.Groups {
		cg := core.DependencyGroup{Profile: g.TargetFramework}
		for _, d := range g.Dependencies {
			id, err := core.NewIdentifier(d.ID, d.Version)
			if err != nil {
				continue
			}
			cg.Dependencies = append(cg.Dependencies, id)
		}
		groups = append(groups, cg)
	}

	if len(deps.Flat) > 0 {
		cg := core.DependencyGroup{}
		for _, d := range deps.Flat {
			id, err := core.NewIdentifier(d.ID, d.Version)
			if err != nil {
				continue
			}
			cg.Dependencies = append(cg.Dependencies, id)
		}
		groups = append(groups, cg)
	}
	return groups
}

func (s *Source) DependencyGroups(_ context.Context, id core.Identifier) ([]core.DependencyGroup, error) {
	for _, a := range s.scan() {
		if strings.EqualFold(a.id, id.Name) && a.version.Equal(id.Version()) {
			m, err := nuspec.FromArchive(a.path)
			if err != nil {
				return nil, err
			}
			return GroupsFromNuspec(&m.Metadata.Dependencies), nil
		}
	}
	return nil, core.ErrNotFound
}

func (s *Source) Search(_ context.Context, q core.SearchQuery) ([]*core.PackageMetadata, error) {
	term := strings.ToLower(q.Term)

	byID := make(map[string][]semver.Version)
	var order []archive
	for _, a := range s.scan() {
		if term != "" && !strings.Contains(strings.ToLower(a.id), term) {
			continue
		}
		if a.version.IsPrerelease() && !q.IncludePrerelease {
			continue
		}
		byID[strings.ToLower(a.id)] = append(byID[strings.ToLower(a.id)], a.version)
		order = append(order, a)
	}

	var metas []*core.PackageMetadata
	for _, a := range order {
		versions := byID[strings.ToLower(a.id)]
		semver.Sort(versions)
		m, err := s.metadataFor(a, versions)
		if err != nil {
			continue
		}
		metas = append(metas, m)
	}

	metas = core.DedupeNewest(metas, q.IncludeAllVersions)
	core.SortMetadata(metas)
	return core.Page(metas, q.Take, q.Skip), nil
}

func (s *Source) GetUpdates(ctx context.Context, installed []core.Identifier, includePrerelease bool) ([]*core.PackageMetadata, error) {
	var out []*core.PackageMetadata
	for _, inst := range installed {
		versions, err := s.FindVersions(ctx, inst.Name)
		if err != nil || len(versions) == 0 {
			continue
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
	return out, nil
}
