// Package nuspec reads the XML manifest embedded in .nupkg archives.
package nuspec

import (
	"archive/zip"
	"encoding/xml"
	"fmt"
	"io"
	"path"
	"strings"
)

// Manifest is the root of a .nuspec document.
type Manifest struct {
	XMLName  xml.Name `xml:"package"`
	Metadata Metadata `xml:"metadata"`
}

// Metadata carries the package description fields.
type Metadata struct {
	ID           string       `xml:"id"`
	Version      string       `xml:"version"`
	Title        string       `xml:"title"`
	Authors      string       `xml:"authors"`
	Description  string       `xml:"description"`
	ProjectURL   string       `xml:"projectUrl"`
	LicenseURL   string       `xml:"licenseUrl"`
	Tags         string       `xml:"tags"`
	Dependencies Dependencies `xml:"dependencies"`
}

// Dependencies holds either profile groups or the legacy flat list.
type Dependencies struct {
	Groups []Group      `xml:"group"`
	Flat   []Dependency `xml:"dependency"`
}

// Group is one target-profile dependency group. An absent targetFramework
// attribute is the catch-all group.
type Group struct {
	TargetFramework string       `xml:"targetFramework,attr"`
	Dependencies    []Dependency `xml:"dependency"`
}

// Dependency is one dependency entry.
type Dependency struct {
	ID      string `xml:"id,attr"`
	Version string `xml:"version,attr"`
}

// TagList splits the space-separated tags field.
func (m *Metadata) TagList() []string {
	return strings.Fields(m.Tags)
}

// Read decodes a .nuspec document.
func Read(r io.Reader) (*Manifest, error) {
	var m Manifest
	if err := xml.NewDecoder(r).Decode(&m); err != nil {
		return nil, fmt.Errorf("decoding nuspec: %w", err)
	}
	if m.Metadata.ID == "" {
		return nil, fmt.Errorf("nuspec has no package id")
	}
	return &m, nil
}

// FromArchive extracts and decodes the .nuspec entry of a .nupkg archive.
func FromArchive(nupkgPath string) (*Manifest, error) {
	zr, err := zip.OpenReader(nupkgPath)
	if err != nil {
		return nil, fmt.Errorf("opening %s: %w", nupkgPath, err)
	}
	defer zr.Close()

	for _, f := range zr.File {
		// The manifest sits at the archive root.
		if path.Dir(f.Name) != "." || !strings.EqualFold(path.Ext(f.Name), ".nuspec") {
			continue
		}
		rc, err := f.Open()
		if err != nil {
			return nil, fmt.Errorf("opening nuspec in %s: %w", nupkgPath, err)
		}
		defer rc.Close()
		return Read(rc)
	}
	return nil, fmt.Errorf("%s has no nuspec entry", nupkgPath)
}
