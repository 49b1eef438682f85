// Package events carries the structured progress stream emitted during
// resolution and install runs. Nothing in the core requires a sink to be
// present; callers that want progress attach one.
package events

import (
	"github.com/charmbracelet/log"
)

// Kind labels a progress event.
type Kind string

const (
	// Resolving is emitted when an identifier enters resolution.
	Resolving Kind = "resolving"
	// Resolved is emitted when a source produced a concrete version.
	Resolved Kind = "resolved"
	// FallbackVersion is emitted when FindBestMatch substituted the next
	// available version above an unmatched floor.
	FallbackVersion Kind = "fallback_version"
	// AlreadySatisfied is emitted when an installed package short-circuits
	// a request.
	AlreadySatisfied Kind = "already_satisfied"
	// Installing is emitted before each committed plan step.
	Installing Kind = "installing"
	// Installed is emitted after a plan step committed successfully.
	Installed Kind = "installed"
	// InstallFailed is emitted when a plan step fails; remaining steps are
	// abandoned.
	InstallFailed Kind = "install_failed"
	// Uninstalled is emitted after a package is removed.
	Uninstalled Kind = "uninstalled"
	// NewerInstalled is emitted when a stricter requirement is already
	// satisfied by a newer installed release.
	NewerInstalled Kind = "newer_installed"
	// ManifestConsistency is emitted when the manifest and on-disk state
	// disagree. Never fatal; reconciliation handles it.
	ManifestConsistency Kind = "manifest_consistency"
)

// Event is one entry in the progress stream.
type Event struct {
	Kind    Kind
	Package string
	Version string
	Message string
	Err     error
}

// Sink receives progress events. Implementations must not block resolution.
type Sink interface {
	Emit(Event)
}

// Nop discards every event.
type Nop struct{}

func (Nop) Emit(Event) {}

// Logger adapts a charmbracelet logger into a Sink.
type Logger struct {
	l *log.Logger
}

// NewLogger wraps l into a Sink. A nil logger uses the package default.
func NewLogger(l *log.Logger) *Logger {
	if l == nil {
		l = log.Default()
	}
	return &Logger{l: l}
}

func (s *Logger) Emit(e Event) {
	kv := make([]any, 0, 6)
	if e.Package != "" {
		kv = append(kv, "package", e.Package)
	}
	if e.Version != "" {
		kv = append(kv, "version", e.Version)
	}
	if e.Err != nil {
		kv = append(kv, "err", e.Err)
	}

	msg := e.Message
	if msg == "" {
		msg = string(e.Kind)
	}

	switch e.Kind {
	case FallbackVersion, ManifestConsistency, NewerInstalled:
		s.l.Warn(msg, kv...)
	case InstallFailed:
		s.l.Error(msg, kv...)
	default:
		s.l.Debug(msg, kv...)
	}
}

// Emit sends e to sink if one is attached.
func Emit(sink Sink, e Event) {
	if sink != nil {
		sink.Emit(e)
	}
}
