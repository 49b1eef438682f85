package resolve

import (
	"context"
	"fmt"

	"github.com/git-pkgs/nupkg/internal/core"
	"github.com/git-pkgs/nupkg/internal/events"
	"github.com/git-pkgs/nupkg/internal/semver"
	"github.com/git-pkgs/nupkg/manifest"
)

// Uninstall removes one installed package and its manifest record.
func (m *Manager) Uninstall(ctx context.Context, name string) error {
	mf, err := m.store.Load()
	if err != nil {
		return err
	}

	rec, ok := mf.Find(name)
	if !ok {
		return fmt.Errorf("package %s is not installed", name)
	}

	if err := m.installer.Uninstall(rec.Identifier()); err != nil {
		return err
	}
	mf.Remove(rec.Name)
	if err := m.store.Save(mf); err != nil {
		return err
	}

	events.Emit(m.sink, events.Event{
		Kind:    events.Uninstalled,
		Package: rec.Name,
		Version: rec.Version,
	})
	return nil
}

// UninstallAll removes every installed package, writing the manifest back
// after each step so an interruption leaves it accurate.
func (m *Manager) UninstallAll(ctx context.Context) error {
	mf, err := m.store.Load()
	if err != nil {
		return err
	}

	for len(mf.Packages) > 0 {
		if err := ctx.Err(); err != nil {
			return err
		}
		rec := mf.Packages[0]
		if err := m.installer.Uninstall(rec.Identifier()); err != nil {
			return err
		}
		mf.Remove(rec.Name)
		if err := m.store.Save(mf); err != nil {
			return err
		}
		events.Emit(m.sink, events.Event{
			Kind:    events.Uninstalled,
			Package: rec.Name,
			Version: rec.Version,
		})
	}
	return nil
}

// Update upgrades one installed package to the newest acceptable version.
// Nothing happens when the installed version is already the newest.
func (m *Manager) Update(ctx context.Context, name string, includePrerelease bool) (*Result, error) {
	mf, err := m.store.Load()
	if err != nil {
		return nil, err
	}
	rec, ok := mf.Find(name)
	if !ok {
		return nil, fmt.Errorf("package %s is not installed", name)
	}

	best, found, err := m.newestAbove(ctx, rec.Identifier(), includePrerelease)
	if err != nil {
		return nil, err
	}
	if !found {
		return &Result{Status: StatusAlreadySatisfied}, nil
	}

	id := core.Pinned(rec.Name, best)
	id.Manual = rec.Manual
	return m.install(ctx, id, true)
}

// UpdateAll upgrades every installed package in manifest order. The first
// infrastructure error stops the batch; domain failures are reported in the
// last non-satisfied result.
func (m *Manager) UpdateAll(ctx context.Context, includePrerelease bool) (*Result, error) {
	mf, err := m.store.Load()
	if err != nil {
		return nil, err
	}

	combined := &Result{Status: StatusAlreadySatisfied}
	for _, rec := range mf.Packages {
		if err := ctx.Err(); err != nil {
			return combined, err
		}
		res, err := m.Update(ctx, rec.Name, includePrerelease)
		if err != nil {
			return combined, err
		}
		combined.Plan = append(combined.Plan, res.Plan...)
		combined.Installed = append(combined.Installed, res.Installed...)
		if res.Status != StatusAlreadySatisfied {
			combined.Status = res.Status
			combined.Err = res.Err
		}
	}
	return combined, nil
}

// newestAbove finds the highest version strictly greater than the
// installed one across the sources, first hit wins.
func (m *Manager) newestAbove(ctx context.Context, installed core.Identifier, includePrerelease bool) (semver.Version, bool, error) {
	var firstErr error
	for _, src := range m.sources {
		versions, err := src.FindVersions(ctx, installed.Name)
		if err != nil {
			if firstErr == nil {
				firstErr = err
			}
			continue
		}
		if len(versions) == 0 {
			continue
		}
		best, ok := core.UpdatesFromVersions(installed, versions, includePrerelease)
		return best, ok, nil
	}
	return semver.Version{}, false, firstErr
}

// Restore reinstalls every manifest record whose package directory is
// missing from disk. Packages already present are left alone.
func (m *Manager) Restore(ctx context.Context) (*Result, error) {
	mf, err := m.store.Load()
	if err != nil {
		return nil, err
	}

	onDisk, err := m.installer.InstalledDirs()
	if err != nil {
		return nil, err
	}
	present := make(map[string]semver.Version, len(onDisk))
	for _, id := range onDisk {
		present[id.Key()] = id.Version()
	}

	res := &Result{Status: StatusAlreadySatisfied}
	for _, rec := range mf.Packages {
		if err := ctx.Err(); err != nil {
			res.Status = StatusPartiallyFailed
			res.Err = err
			return res, nil
		}

		id := rec.Identifier()
		if v, ok := present[id.Key()]; ok && v.Compare(id.Version()) == 0 {
			continue
		}

		events.Emit(m.sink, events.Event{
			Kind:    events.ManifestConsistency,
			Package: rec.Name,
			Version: rec.Version,
			Message: "manifest entry missing on disk, restoring",
		})

		step, err := m.install(ctx, id, true)
		if err != nil {
			return res, err
		}
		res.Plan = append(res.Plan, step.Plan...)
		res.Installed = append(res.Installed, step.Installed...)
		if step.Status == StatusUnresolvable || step.Status == StatusPartiallyFailed {
			res.Status = StatusPartiallyFailed
			res.Err = step.Err
			return res, nil
		}
		res.Status = StatusInstalled
	}
	return res, nil
}

// Reconcile removes orphaned install directories: package identities on
// disk that the current manifest does not list. Disagreement between the
// manifest and disk is reported, never fatal.
func (m *Manager) Reconcile(ctx context.Context) ([]core.Identifier, error) {
	mf, err := m.store.Load()
	if err != nil {
		return nil, err
	}

	onDisk, err := m.installer.InstalledDirs()
	if err != nil {
		return nil, err
	}

	var removed []core.Identifier
	for _, id := range onDisk {
		if err := ctx.Err(); err != nil {
			return removed, err
		}

		rec, listed := mf.Find(id.Name)
		if listed && semver.Parse(rec.Version).Compare(id.Version()) == 0 {
			continue
		}

		events.Emit(m.sink, events.Event{
			Kind:    events.ManifestConsistency,
			Package: id.Name,
			Version: id.Version().Normalized(),
			Message: "on-disk package not in manifest, removing",
		})
		if err := m.installer.Uninstall(id); err != nil {
			return removed, err
		}
		removed = append(removed, id)
	}
	return removed, nil
}

// Outdated reports, for each installed package, the newest strictly
// greater version any source offers. First source naming a package wins.
func (m *Manager) Outdated(ctx context.Context, includePrerelease bool) ([]*core.PackageMetadata, error) {
	mf, err := m.store.Load()
	if err != nil {
		return nil, err
	}
	installed := mf.Identifiers()
	if len(installed) == 0 {
		return nil, nil
	}

	seen := make(map[string]bool)
	var out []*core.PackageMetadata
	var firstErr error
	for _, src := range m.sources {
		updates, err := src.GetUpdates(ctx, installed, includePrerelease)
		if err != nil {
			if firstErr == nil {
				firstErr = err
			}
			continue
		}
		for _, u := range updates {
			if seen[u.Key()] {
				continue
			}
			seen[u.Key()] = true
			out = append(out, u)
		}
	}
	if out == nil && firstErr != nil {
		return nil, firstErr
	}
	core.SortMetadata(out)
	return out, nil
}

// Search queries every source and merges the listings, deduplicating by
// name across sources with the earlier source winning. Paging applies to
// the merged result only; sources are asked for enough rows to cover the
// requested window.
func (m *Manager) Search(ctx context.Context, q core.SearchQuery) ([]*core.PackageMetadata, error) {
	srcQ := q
	srcQ.Skip = 0
	if q.Take > 0 {
		srcQ.Take = q.Skip + q.Take
	}

	var merged []*core.PackageMetadata
	var firstErr error
	seen := make(map[string]bool)

	for _, src := range m.sources {
		metas, err := src.Search(ctx, srcQ)
		if err != nil {
			if firstErr == nil {
				firstErr = err
			}
			continue
		}
		for _, meta := range metas {
			key := meta.Key()
			if !q.IncludeAllVersions && seen[key] {
				continue
			}
			seen[key] = true
			merged = append(merged, meta)
		}
	}
	if merged == nil && firstErr != nil {
		return nil, firstErr
	}

	core.SortMetadata(merged)
	return core.Page(merged, q.Take, q.Skip), nil
}

// Installed returns the manifest records, re-read from disk.
func (m *Manager) Installed() ([]manifest.Record, error) {
	mf, err := m.store.Load()
	if err != nil {
		return nil, err
	}
	return mf.Packages, nil
}

// List is Installed filtered to manually requested packages when manualOnly
// is set.
func (m *Manager) List(manualOnly bool) ([]manifest.Record, error) {
	recs, err := m.Installed()
	if err != nil {
		return nil, err
	}
	if !manualOnly {
		return recs, nil
	}
	out := recs[:0:0]
	for _, r := range recs {
		if r.Manual {
			out = append(out, r)
		}
	}
	return out, nil
}
