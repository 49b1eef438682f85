// Package manifest persists the installed-package records as a YAML
// document. The file is re-read before each bulk operation and rewritten
// atomically after each committed step, so a crash mid-batch leaves it
// consistent with the packages already on disk.
package manifest

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"gopkg.in/yaml.v3"

	"github.com/git-pkgs/nupkg/internal/core"
	"github.com/git-pkgs/nupkg/internal/semver"
)

// Record is one installed package.
type Record struct {
	Name    string `yaml:"name"`
	Version string `yaml:"version"`
	Manual  bool   `yaml:"manual,omitempty"`
}

// Identifier converts a record back into a pinned identifier.
func (r Record) Identifier() core.Identifier {
	id := core.Pinned(r.Name, semver.Parse(r.Version))
	id.Manual = r.Manual
	return id
}

// RecordOf builds the persisted form of a pinned identifier.
func RecordOf(id core.Identifier) Record {
	return Record{
		Name:    id.Name,
		Version: id.Version().Normalized(),
		Manual:  id.Manual,
	}
}

// File is the in-memory manifest document.
type File struct {
	Packages []Record `yaml:"packages"`
}

// Find returns the record for a name, case-insensitively.
func (f *File) Find(name string) (Record, bool) {
	for _, r := range f.Packages {
		if strings.EqualFold(r.Name, name) {
			return r, true
		}
	}
	return Record{}, false
}

// Add inserts or replaces the record for its name.
func (f *File) Add(rec Record) {
	for i, r := range f.Packages {
		if strings.EqualFold(r.Name, rec.Name) {
			f.Packages[i] = rec
			return
		}
	}
	f.Packages = append(f.Packages, rec)
}

// Remove deletes the record for a name. Reports whether one was present.
func (f *File) Remove(name string) bool {
	for i, r := range f.Packages {
		if strings.EqualFold(r.Name, name) {
			f.Packages = append(f.Packages[:i], f.Packages[i+1:]...)
			return true
		}
	}
	return false
}

// Identifiers returns every record as a pinned identifier, in manifest order.
func (f *File) Identifiers() []core.Identifier {
	out := make([]core.Identifier, len(f.Packages))
	for i, r := range f.Packages {
		out[i] = r.Identifier()
	}
	return out
}

// sortRecords fixes the serialization order: name ascending with empty
// names first, then version ascending.
func sortRecords(recs []Record) {
	sort.SliceStable(recs, func(i, j int) bool {
		a, b := strings.ToLower(recs[i].Name), strings.ToLower(recs[j].Name)
		if a != b {
			return a < b
		}
		return semver.Parse(recs[i].Version).Compare(semver.Parse(recs[j].Version)) < 0
	})
}

// Store reads and writes one manifest file.
type Store struct {
	path string
}

// NewStore creates a store for the manifest at path. The file need not
// exist yet.
func NewStore(path string) *Store {
	return &Store{path: path}
}

// Path returns the manifest location.
func (s *Store) Path() string { return s.path }

// Load reads the manifest. A missing file yields an empty document.
func (s *Store) Load() (*File, error) {
	data, err := os.ReadFile(s.path)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return &File{}, nil
		}
		return nil, fmt.Errorf("reading manifest %s: %w", s.path, err)
	}

	var f File
	if err := yaml.Unmarshal(data, &f); err != nil {
		return nil, fmt.Errorf("parsing manifest %s: %w", s.path, err)
	}
	return &f, nil
}

// Save writes the manifest atomically: serialize to a temp file in the
// same directory, then rename over the target.
func (s *Store) Save(f *File) error {
	sortRecords(f.Packages)

	data, err := yaml.Marshal(f)
	if err != nil {
		return fmt.Errorf("encoding manifest: %w", err)
	}

	dir := filepath.Dir(s.path)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return fmt.Errorf("creating manifest dir: %w", err)
	}

	tmp, err := os.CreateTemp(dir, ".manifest-*.yaml")
	if err != nil {
		return fmt.Errorf("creating temp manifest: %w", err)
	}
	tmpName := tmp.Name()

	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		os.Remove(tmpName)
		return fmt.Errorf("writing manifest: %w", err)
	}
	if err := tmp.Close(); err != nil {
		os.Remove(tmpName)
		return fmt.Errorf("closing manifest: %w", err)
	}
	if err := os.Rename(tmpName, s.path); err != nil {
		os.Remove(tmpName)
		return fmt.Errorf("replacing manifest %s: %w", s.path, err)
	}
	return nil
}
