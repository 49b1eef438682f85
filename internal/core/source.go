package core

import (
	"context"
	"fmt"
	"sync"

	"github.com/git-pkgs/nupkg/client"
	"github.com/git-pkgs/nupkg/internal/events"
	"github.com/git-pkgs/nupkg/internal/semver"
)

// Source is the interface implemented by all package-source variants. The
// set is closed: "local", "v2" and "v3" register themselves through Register
// and behave identically except for how metadata is fetched.
type Source interface {
	// Name returns the configured display name of this source.
	Name() string

	// Kind returns the variant kind ("local", "v2", "v3").
	Kind() string

	// FindVersions returns every known version of a package, ascending.
	FindVersions(ctx context.Context, name string) ([]semver.Version, error)

	// FindBestMatch returns the highest version satisfying the identifier,
	// or, when nothing matches a spec with a minimum bound, the next
	// available version above that floor (reported through a warning
	// event). Returns nil when the package is unknown or nothing is
	// acceptable.
	FindBestMatch(ctx context.Context, id Identifier) (*PackageMetadata, error)

	// Search returns a paged, deduplicated listing for a term.
	Search(ctx context.Context, q SearchQuery) ([]*PackageMetadata, error)

	// GetUpdates returns, for each installed identifier, metadata whose
	// version is strictly greater than the installed one.
	GetUpdates(ctx context.Context, installed []Identifier, includePrerelease bool) ([]*PackageMetadata, error)

	// DependencyGroups fetches the dependency groups of a concrete
	// package version. The resolver memoizes this per run.
	DependencyGroups(ctx context.Context, id Identifier) ([]DependencyGroup, error)
}

// Config describes one configured source instance.
type Config struct {
	Name    string `yaml:"name"`
	Kind    string `yaml:"kind"`
	URL     string `yaml:"url,omitempty"`
	Path    string `yaml:"path,omitempty"`
	Enabled bool   `yaml:"enabled"`
}

// Factory creates a source instance from its configuration. The sink
// receives the source's warning events (fallback substitutions); it may be
// nil.
type Factory func(cfg Config, c *client.Client, sink events.Sink) (Source, error)

var (
	factories = make(map[string]Factory)
	mu        sync.RWMutex
)

// Register adds a source factory for a kind. Source variants call this from
// init; the all package blank-imports every variant.
func Register(kind string, factory Factory) {
	mu.Lock()
	defer mu.Unlock()
	factories[kind] = factory
}

// New creates a source for the given configuration. If c is nil,
// client.DefaultClient() is used for remote kinds.
func New(cfg Config, c *client.Client, sink events.Sink) (Source, error) {
	mu.RLock()
	factory, ok := factories[cfg.Kind]
	mu.RUnlock()

	if !ok {
		return nil, fmt.Errorf("unknown source kind: %s", cfg.Kind)
	}
	if c == nil {
		c = client.DefaultClient()
	}
	return factory(cfg, c, sink)
}

// SupportedKinds returns all registered source kinds.
func SupportedKinds() []string {
	mu.RLock()
	defer mu.RUnlock()

	kinds := make([]string, 0, len(factories))
	for kind := range factories {
		kinds = append(kinds, kind)
	}
	return kinds
}
