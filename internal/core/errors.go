package core

import (
	"errors"
	"fmt"
)

// ErrNotFound is returned when a package or version is not found on a
// source.
var ErrNotFound = errors.New("not found")

// UnresolvableError reports that no enabled source satisfied an identifier.
// Surfaced to the caller, never retried automatically.
type UnresolvableError struct {
	ID Identifier
}

func (e *UnresolvableError) Error() string {
	return fmt.Sprintf("no source satisfies %s", e.ID)
}

func (e *UnresolvableError) Unwrap() error {
	return ErrNotFound
}

// AmbiguousProfileError reports that a package publishes dependency groups
// but none is compatible with the current platform profile. Surfaced rather
// than defaulted, since silently picking a group could install incompatible
// binaries.
type AmbiguousProfileError struct {
	ID      Identifier
	Profile string
	Labels  []string
}

func (e *AmbiguousProfileError) Error() string {
	return fmt.Sprintf("%s: no dependency group of %v is compatible with profile %q", e.ID, e.Labels, e.Profile)
}

// InstallStepError wraps a failure from the installer collaborator. The
// failing step aborts the remaining plan but already-committed steps are
// left in place.
type InstallStepError struct {
	ID  Identifier
	Err error
}

func (e *InstallStepError) Error() string {
	return fmt.Sprintf("install step %s: %v", e.ID, e.Err)
}

func (e *InstallStepError) Unwrap() error {
	return e.Err
}
