// Package nupkg provides a NuGet-style package manager core: a semantic
// version and range model, package sources over local directories and the
// v2/v3 remote feed protocols, and a target-profile aware dependency
// resolver.
//
// Basic usage:
//
//	import (
//		"context"
//		"github.com/git-pkgs/nupkg"
//		_ "github.com/git-pkgs/nupkg/all"
//	)
//
//	src, err := nupkg.NewSource(nupkg.SourceConfig{
//		Name: "nuget.org",
//		Kind: "v3",
//		URL:  "https://api.nuget.org/v3/index.json",
//	}, nil, nil)
//	if err != nil {
//		log.Fatal(err)
//	}
//
//	id, _ := nupkg.NewIdentifier("Newtonsoft.Json", "[13.0,)")
//	meta, err := src.FindBestMatch(context.Background(), id)
//
// The all subpackage registers every source kind; blank-import it before
// calling NewSource.
package nupkg

import (
	"github.com/git-pkgs/nupkg/client"
	"github.com/git-pkgs/nupkg/internal/core"
	"github.com/git-pkgs/nupkg/internal/events"
	"github.com/git-pkgs/nupkg/internal/profile"
	"github.com/git-pkgs/nupkg/internal/semver"
)

// Re-export types from internal/core
type (
	// Source is the interface implemented by all package-source variants.
	Source = core.Source

	// SourceConfig describes one configured source instance.
	SourceConfig = core.Config

	// Identifier names a requested or installed package.
	Identifier = core.Identifier

	// DependencyGroup is one target-profile dependency set.
	DependencyGroup = core.DependencyGroup

	// PackageMetadata is the summary a source returns for a package.
	PackageMetadata = core.PackageMetadata

	// SearchQuery parameterizes a source listing.
	SearchQuery = core.SearchQuery
)

// Re-export the version model
type (
	// Version is a four-part semantic version.
	Version = semver.Version

	// VersionRange is a version constraint in interval notation.
	VersionRange = semver.Range
)

// Re-export progress events
type (
	// Event is one entry in the resolution progress stream.
	Event = events.Event

	// EventSink receives progress events.
	EventSink = events.Sink
)

// Re-export errors
var ErrNotFound = core.ErrNotFound

// Error types
type (
	ParseError            = semver.ParseError
	UnresolvableError     = core.UnresolvableError
	AmbiguousProfileError = core.AmbiguousProfileError
	InstallStepError      = core.InstallStepError
	HTTPError             = client.HTTPError
	RateLimitError        = client.RateLimitError
)

// ParseVersion parses a version string. Malformed input yields the invalid
// sentinel; check IsValid before using the result in range logic.
func ParseVersion(s string) Version {
	return semver.Parse(s)
}

// ParseRange parses a version constraint: interval notation when the string
// opens with "[" or "(", a plain minimum-inclusive version otherwise.
func ParseRange(s string) (VersionRange, error) {
	return semver.ParseRange(s)
}

// NewIdentifier builds an identifier from a name and a free-form constraint
// string.
func NewIdentifier(name, spec string) (Identifier, error) {
	return core.NewIdentifier(name, spec)
}

// NewSource creates a source for the given configuration.
// If c is nil, DefaultClient() is used for remote kinds; sink may be nil.
//
// Supported kinds: "local", "v2", "v3" (each must be imported to register).
func NewSource(cfg SourceConfig, c *Client, sink EventSink) (Source, error) {
	return core.New(cfg, c, sink)
}

// SupportedKinds returns all registered source kinds.
// Note: source packages must be imported to be registered.
func SupportedKinds() []string {
	return core.SupportedKinds()
}

// DefaultProfile is the target profile assumed when none is configured.
const DefaultProfile = profile.DefaultProfile

// Client is an HTTP client with retry logic for package feeds.
type Client = client.Client

// DefaultClient returns a client with sensible defaults:
// - 30s timeout
// - 5 retries with exponential backoff
// - Retry on 429 and 5xx responses
func DefaultClient() *Client {
	return client.DefaultClient()
}

// NewClient creates a new client with the given options.
func NewClient(opts ...Option) *Client {
	return client.NewClient(opts...)
}

// Option configures a Client.
type Option = client.Option

// WithTimeout sets the HTTP client timeout.
var WithTimeout = client.WithTimeout

// WithMaxRetries sets the maximum number of retries.
var WithMaxRetries = client.WithMaxRetries

// WithUserAgent sets the User-Agent header.
var WithUserAgent = client.WithUserAgent

// ParsePURL parses a package URL (pkg:nuget/Name@Version) into an
// identifier.
func ParsePURL(s string) (Identifier, error) {
	return core.ParsePURL(s)
}
