package resolve

import (
	"context"
	"sync"

	"golang.org/x/sync/singleflight"

	"github.com/git-pkgs/nupkg/internal/core"
	"github.com/git-pkgs/nupkg/internal/events"
	"github.com/git-pkgs/nupkg/manifest"
)

// session holds the per-run state: a manifest snapshot plus metadata and
// dependency-group caches. Diamond dependencies hit the cache, so each
// identifier is fetched at most once per run even under concurrent walks.
type session struct {
	m  *Manager
	mf *manifest.File

	flight singleflight.Group

	mu     sync.Mutex
	metas  map[string]*core.PackageMetadata
	groups map[string][]core.DependencyGroup
}

func (m *Manager) session(mf *manifest.File) *session {
	return &session{
		m:      m,
		mf:     mf,
		metas:  make(map[string]*core.PackageMetadata),
		groups: make(map[string][]core.DependencyGroup),
	}
}

// plan is the ordered install list under construction. Duplicates collapse
// to the highest requested version per name; order is dependency-first.
type plan struct {
	steps []*core.PackageMetadata
	index map[string]int

	// visiting guards against dependency cycles during the walk.
	visiting map[string]bool
}

func newPlan() *plan {
	return &plan{
		index:    make(map[string]int),
		visiting: make(map[string]bool),
	}
}

func (p *plan) identifiers() []core.Identifier {
	out := make([]core.Identifier, len(p.steps))
	for i, meta := range p.steps {
		out[i] = meta.Identifier
	}
	return out
}

// walk resolves one identifier and recurses into its dependency group,
// appending to the plan dependencies-first.
func (s *session) walk(ctx context.Context, id core.Identifier, p *plan, force bool) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	key := id.Key()
	if p.visiting[key] {
		return nil
	}

	// Duplicate guard: an entry already queued at an equal-or-higher
	// version is final; a lower one is upgraded in place below.
	if i, ok := p.index[key]; ok {
		queued := p.steps[i].Version()
		if id.Version().IsValid() && queued.Compare(id.Version()) >= 0 {
			return nil
		}
	}

	// Skip dependencies the manifest already covers, unless forced.
	if !force {
		if rec, ok := s.mf.Find(id.Name); ok && satisfiedBy(id, rec, s.m.sink) {
			return nil
		}
	}

	events.Emit(s.m.sink, events.Event{Kind: events.Resolving, Package: id.Name, Message: "resolving " + id.String()})

	meta, err := s.findBestMatch(ctx, id)
	if err != nil {
		return err
	}
	if meta == nil {
		return &core.UnresolvableError{ID: id}
	}
	meta.Manual = id.Manual

	events.Emit(s.m.sink, events.Event{
		Kind:    events.Resolved,
		Package: meta.Name,
		Version: meta.Version().Normalized(),
	})

	if i, ok := p.index[key]; ok {
		if p.steps[i].Version().Compare(meta.Version()) >= 0 {
			return nil
		}
		p.steps[i] = meta
	}

	deps, err := s.dependencies(ctx, meta)
	if err != nil {
		return err
	}

	p.visiting[key] = true
	for _, dep := range deps {
		if err := s.walk(ctx, dep, p, false); err != nil {
			delete(p.visiting, key)
			return err
		}
	}
	delete(p.visiting, key)

	if _, ok := p.index[key]; !ok {
		p.index[key] = len(p.steps)
		p.steps = append(p.steps, meta)
	}
	return nil
}

// findBestMatch queries the enabled sources in priority order and stops at
// the first hit. Results are memoized per (name, spec) and concurrent
// lookups for the same key share one fetch.
func (s *session) findBestMatch(ctx context.Context, id core.Identifier) (*core.PackageMetadata, error) {
	key := id.SpecKey()

	s.mu.Lock()
	if meta, ok := s.metas[key]; ok {
		s.mu.Unlock()
		return meta, nil
	}
	s.mu.Unlock()

	v, err, _ := s.flight.Do(key, func() (any, error) {
		var firstErr error
		for _, src := range s.m.sources {
			meta, err := src.FindBestMatch(ctx, id)
			if err != nil {
				if firstErr == nil {
					firstErr = err
				}
				continue
			}
			if meta != nil {
				return meta, nil
			}
		}
		if firstErr != nil {
			return (*core.PackageMetadata)(nil), firstErr
		}
		return (*core.PackageMetadata)(nil), nil
	})
	if err != nil {
		return nil, err
	}

	meta := v.(*core.PackageMetadata)
	s.mu.Lock()
	s.metas[key] = meta
	s.mu.Unlock()
	return meta, nil
}

// dependencies picks the dependency group matching the active profile. A
// package without groups has no dependencies; published groups with no
// compatible label are an error rather than a silent default.
func (s *session) dependencies(ctx context.Context, meta *core.PackageMetadata) ([]core.Identifier, error) {
	groups := meta.DependencyGroups
	if groups == nil {
		var err error
		groups, err = s.dependencyGroups(ctx, meta)
		if err != nil {
			return nil, err
		}
	}
	if len(groups) == 0 {
		return nil, nil
	}

	labels := make([]string, len(groups))
	for i, g := range groups {
		labels[i] = g.Profile
	}

	best, ok := s.m.profile.Best(labels)
	if !ok {
		return nil, &core.AmbiguousProfileError{
			ID:      meta.Identifier,
			Profile: s.m.profile.Current(),
			Labels:  labels,
		}
	}

	for _, g := range groups {
		if g.Profile == best {
			return g.Dependencies, nil
		}
	}
	return nil, nil
}

// dependencyGroups runs the detail fetch for a concrete version, memoized
// per run.
func (s *session) dependencyGroups(ctx context.Context, meta *core.PackageMetadata) ([]core.DependencyGroup, error) {
	key := meta.Key() + "@" + meta.Version().Normalized()

	s.mu.Lock()
	if g, ok := s.groups[key]; ok {
		s.mu.Unlock()
		return g, nil
	}
	s.mu.Unlock()

	if meta.Source == nil {
		return nil, nil
	}

	v, err, _ := s.flight.Do("groups:"+key, func() (any, error) {
		return meta.Source.DependencyGroups(ctx, meta.Identifier)
	})
	if err != nil {
		return nil, err
	}

	groups := v.([]core.DependencyGroup)
	s.mu.Lock()
	s.groups[key] = groups
	s.mu.Unlock()
	return groups, nil
}
