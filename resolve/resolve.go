// Package resolve implements the dependency resolution and install
// orchestrator. It walks dependency graphs across configured package
// sources, builds ordered install plans, and keeps the persisted manifest
// consistent with on-disk state.
package resolve

import (
	"context"
	"errors"
	"fmt"

	"github.com/git-pkgs/nupkg/internal/core"
	"github.com/git-pkgs/nupkg/internal/events"
	"github.com/git-pkgs/nupkg/internal/profile"
	"github.com/git-pkgs/nupkg/manifest"
)

// Installer commits plan steps. The orchestrator calls it one package at a
// time and does not inspect its file operations.
type Installer interface {
	Install(ctx context.Context, meta *core.PackageMetadata) error
	Uninstall(id core.Identifier) error

	// InstalledDirs lists package identities present on disk, for
	// reconciling against the manifest.
	InstalledDirs() ([]core.Identifier, error)
}

// Status is the terminal state of one orchestration run.
type Status int

const (
	// StatusAlreadySatisfied means an installed record covered the request
	// and nothing was done.
	StatusAlreadySatisfied Status = iota
	// StatusInstalled means the full plan committed.
	StatusInstalled
	// StatusUnresolvable means no enabled source satisfied the request.
	StatusUnresolvable
	// StatusPartiallyFailed means a plan step failed mid-commit; earlier
	// steps remain installed.
	StatusPartiallyFailed
)

func (s Status) String() string {
	switch s {
	case StatusAlreadySatisfied:
		return "already satisfied"
	case StatusInstalled:
		return "installed"
	case StatusUnresolvable:
		return "unresolvable"
	case StatusPartiallyFailed:
		return "partially failed"
	}
	return fmt.Sprintf("status(%d)", int(s))
}

// Result reports the outcome of an install run.
type Result struct {
	Status Status

	// Plan is the ordered, deduplicated list of packages the run decided
	// to install, dependencies before dependents.
	Plan []core.Identifier

	// Installed lists the steps that actually committed.
	Installed []core.Identifier

	// Err carries the domain failure for Unresolvable and PartiallyFailed.
	Err error
}

// Config assembles a Manager. Sources are consulted in order; the first
// hit wins.
type Config struct {
	Sources   []core.Source
	Profile   string
	Store     *manifest.Store
	Installer Installer
	Sink      events.Sink
}

// Manager is a long-lived orchestrator session. It re-reads the manifest
// before each operation; only per-run caches live on the session objects it
// spawns.
type Manager struct {
	sources   []core.Source
	profile   *profile.Resolver
	store     *manifest.Store
	installer Installer
	sink      events.Sink
}

// NewManager validates the configuration and builds a manager. An empty
// profile falls back to profile.DefaultProfile.
func NewManager(cfg Config) (*Manager, error) {
	if len(cfg.Sources) == 0 {
		return nil, errors.New("no package sources configured")
	}
	if cfg.Store == nil {
		return nil, errors.New("no manifest store configured")
	}
	if cfg.Installer == nil {
		return nil, errors.New("no installer configured")
	}

	name := cfg.Profile
	if name == "" {
		name = profile.DefaultProfile
	}
	prof, err := profile.New(name)
	if err != nil {
		return nil, err
	}

	return &Manager{
		sources:   cfg.Sources,
		profile:   prof,
		store:     cfg.Store,
		installer: cfg.Installer,
		sink:      cfg.Sink,
	}, nil
}

// Profile returns the active target profile label.
func (m *Manager) Profile() string { return m.profile.Current() }

// Install resolves the identifier's dependency closure and commits the
// resulting plan. The returned error covers infrastructure failures
// (manifest I/O); domain outcomes land in Result.
func (m *Manager) Install(ctx context.Context, id core.Identifier) (*Result, error) {
	return m.install(ctx, id, false)
}

func (m *Manager) install(ctx context.Context, id core.Identifier, force bool) (*Result, error) {
	mf, err := m.store.Load()
	if err != nil {
		return nil, err
	}
	s := m.session(mf)

	if !force {
		if rec, ok := mf.Find(id.Name); ok && satisfiedBy(id, rec, m.sink) {
			return &Result{Status: StatusAlreadySatisfied}, nil
		}
	}

	p := newPlan()
	if err := s.walk(ctx, id, p, force); err != nil {
		var unres *core.UnresolvableError
		if errors.As(err, &unres) {
			return &Result{Status: StatusUnresolvable, Err: err}, nil
		}
		return nil, err
	}

	return m.commit(ctx, mf, p, id, force)
}

// satisfiedBy implements the idempotent short-circuit: an installed version
// in range is fine, and a newer installed version satisfies a stricter
// requirement without a downgrade.
func satisfiedBy(id core.Identifier, rec manifest.Record, sink events.Sink) bool {
	installed := rec.Identifier().Version()
	if !installed.IsValid() {
		return false
	}
	if id.InRange(installed) {
		events.Emit(sink, events.Event{
			Kind:    events.AlreadySatisfied,
			Package: rec.Name,
			Version: rec.Version,
		})
		return true
	}
	if id.Version().IsValid() && installed.Compare(id.Version()) > 0 {
		events.Emit(sink, events.Event{
			Kind:    events.NewerInstalled,
			Package: rec.Name,
			Version: rec.Version,
			Message: "requirement " + id.Spec.String() + " already satisfied by newer installed release",
		})
		return true
	}
	return false
}

// commit hands the plan to the installer one step at a time, dependencies
// first, writing the manifest back after every committed step. A failing
// step abandons the rest without rolling back earlier ones. Forced runs
// (restore, explicit update) install even when the manifest already lists
// the step's version; the record may be stale against disk.
func (m *Manager) commit(ctx context.Context, mf *manifest.File, p *plan, requested core.Identifier, force bool) (*Result, error) {
	res := &Result{Status: StatusInstalled, Plan: p.identifiers()}
	if len(p.steps) == 0 {
		res.Status = StatusAlreadySatisfied
		return res, nil
	}

	for _, meta := range p.steps {
		if err := ctx.Err(); err != nil {
			res.Status = StatusPartiallyFailed
			res.Err = err
			return res, nil
		}

		// Update in place: an older installed version is removed first.
		if rec, ok := mf.Find(meta.Name); ok {
			if !force && rec.Identifier().Version().Compare(meta.Version()) >= 0 {
				continue
			}
			if err := m.installer.Uninstall(rec.Identifier()); err != nil {
				res.Status = StatusPartiallyFailed
				res.Err = &core.InstallStepError{ID: meta.Identifier, Err: err}
				return res, nil
			}
		}

		events.Emit(m.sink, events.Event{
			Kind:    events.Installing,
			Package: meta.Name,
			Version: meta.Version().Normalized(),
		})

		if err := m.installer.Install(ctx, meta); err != nil {
			events.Emit(m.sink, events.Event{
				Kind:    events.InstallFailed,
				Package: meta.Name,
				Version: meta.Version().Normalized(),
				Err:     err,
			})
			res.Status = StatusPartiallyFailed
			res.Err = &core.InstallStepError{ID: meta.Identifier, Err: err}
			return res, nil
		}

		rec := manifest.RecordOf(meta.Identifier)
		// The requested root is manual by definition; dependencies are not.
		rec.Manual = meta.Manual || requested.Key() == meta.Key()
		mf.Add(rec)
		if err := m.store.Save(mf); err != nil {
			res.Status = StatusPartiallyFailed
			res.Err = err
			return res, nil
		}

		events.Emit(m.sink, events.Event{
			Kind:    events.Installed,
			Package: meta.Name,
			Version: meta.Version().Normalized(),
		})
		res.Installed = append(res.Installed, meta.Identifier)
	}
	return res, nil
}
