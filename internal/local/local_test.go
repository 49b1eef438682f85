package local

import (
	"archive/zip"
	"context"
	"fmt"
	"os"
	"path/filepath"
	"testing"

	"github.com/git-pkgs/nupkg/internal/core"
	"github.com/git-pkgs/nupkg/internal/semver"
)

func TestSplitArchiveName(t *testing.T) {
	tests := []struct {
		filename string
		id       string
		version  string
		ok       bool
	}{
		{"Newtonsoft.Json.13.0.3.nupkg", "Newtonsoft.Json", "13.0.3", true},
		{"Foo.1.0.nupkg", "Foo", "1.0", true},
		{"Foo.Bar.2.0.0-beta.nupkg", "Foo.Bar", "2.0.0-beta", true},
		{"noversion.nupkg", "", "", false},
	}

	for _, tt := range tests {
		id, v, ok := splitArchiveName(tt.filename)
		if ok != tt.ok {
			t.Errorf("splitArchiveName(%q) ok = %v, want %v", tt.filename, ok, tt.ok)
			continue
		}
		if ok && (id != tt.id || v.String() != tt.version) {
			t.Errorf("splitArchiveName(%q) = %s %s, want %s %s", tt.filename, id, v, tt.id, tt.version)
		}
	}
}

func TestFindVersions(t *testing.T) {
	dir := t.TempDir()
	writePackage(t, dir, "Foo", "1.0.0", "")
	writePackage(t, dir, "Foo", "2.0.0", "")
	writePackage(t, dir, "foo", "1.5.0", "")
	writePackage(t, dir, "Bar", "1.0.0", "")

	src := mustSource(t, dir)
	got, err := src.FindVersions(context.Background(), "FOO")
	if err != nil {
		t.Fatalf("FindVersions: %v", err)
	}
	if len(got) != 3 {
		t.Fatalf("expected 3 versions across case variants, got %d", len(got))
	}
	// Ascending.
	for i := 0; i < len(got)-1; i++ {
		if got[i].Compare(got[i+1]) >= 0 {
			t.Errorf("versions not ascending: %v", got)
		}
	}
}

func TestFindBestMatch(t *testing.T) {
	dir := t.TempDir()
	writePackage(t, dir, "Foo", "0.9.0", "")
	writePackage(t, dir, "Foo", "1.0.0", "")
	writePackage(t, dir, "Foo", "1.5.0", `
	  <group targetFramework="netstandard2.0">
	    <dependency id="Dep.One" version="2.0" />
	  </group>`)
	writePackage(t, dir, "Foo", "2.0.0", "")

	src := mustSource(t, dir)
	id, _ := core.NewIdentifier("Foo", "[1.0,2.0)")

	meta, err := src.FindBestMatch(context.Background(), id)
	if err != nil {
		t.Fatalf("FindBestMatch: %v", err)
	}
	if meta == nil {
		t.Fatal("expected a match")
	}
	if meta.Version().String() != "1.5.0" {
		t.Errorf("version = %s, want 1.5.0", meta.Version())
	}
	if meta.ContentPath == "" {
		t.Error("local metadata should carry a content path")
	}
	if len(meta.DependencyGroups) != 1 || meta.DependencyGroups[0].Profile != "netstandard2.0" {
		t.Errorf("dependency groups = %+v", meta.DependencyGroups)
	}
}

func TestFindBestMatchUnknownPackage(t *testing.T) {
	src := mustSource(t, t.TempDir())
	id, _ := core.NewIdentifier("Missing", "1.0")

	meta, err := src.FindBestMatch(context.Background(), id)
	if err != nil {
		t.Fatalf("FindBestMatch: %v", err)
	}
	if meta != nil {
		t.Errorf("expected nil for unknown package, got %+v", meta)
	}
}

func TestDependencyGroups(t *testing.T) {
	dir := t.TempDir()
	writePackage(t, dir, "Foo", "1.0.0", `
	  <group targetFramework="net45">
	    <dependency id="Legacy.Dep" version="1.0" />
	  </group>
	  <group targetFramework="netstandard2.0" />`)

	src := mustSource(t, dir)
	groups, err := src.DependencyGroups(context.Background(), core.Pinned("Foo", semver.Parse("1.0.0")))
	if err != nil {
		t.Fatalf("DependencyGroups: %v", err)
	}
	if len(groups) != 2 {
		t.Fatalf("expected 2 groups, got %d", len(groups))
	}
	if groups[0].Profile != "net45" || len(groups[0].Dependencies) != 1 {
		t.Errorf("group 0 = %+v", groups[0])
	}
}

func TestSearch(t *testing.T) {
	dir := t.TempDir()
	writePackage(t, dir, "Json.Lib", "1.0.0", "")
	writePackage(t, dir, "Json.Lib", "2.0.0", "")
	writePackage(t, dir, "Json.Lib", "3.0.0-beta", "")
	writePackage(t, dir, "Other.Thing", "1.0.0", "")

	src := mustSource(t, dir)

	metas, err := src.Search(context.Background(), core.SearchQuery{Term: "json"})
	if err != nil {
		t.Fatalf("Search: %v", err)
	}
	if len(metas) != 1 {
		t.Fatalf("expected 1 deduplicated hit, got %d", len(metas))
	}
	// Newest release wins; prerelease excluded by default.
	if metas[0].Version().String() != "2.0.0" {
		t.Errorf("version = %s, want 2.0.0", metas[0].Version())
	}

	metas, err = src.Search(context.Background(), core.SearchQuery{Term: "json", IncludePrerelease: true, IncludeAllVersions: true})
	if err != nil {
		t.Fatalf("Search: %v", err)
	}
	if len(metas) != 3 {
		t.Errorf("all-versions search got %d entries", len(metas))
	}
}

func TestSearchPaging(t *testing.T) {
	dir := t.TempDir()
	for i := 1; i <= 5; i++ {
		writePackage(t, dir, fmt.Sprintf("Pkg%d", i), "1.0.0", "")
	}

	src := mustSource(t, dir)
	metas, err := src.Search(context.Background(), core.SearchQuery{Take: 2, Skip: 2})
	if err != nil {
		t.Fatalf("Search: %v", err)
	}
	if len(metas) != 2 {
		t.Errorf("expected page of 2, got %d", len(metas))
	}
}

func TestGetUpdates(t *testing.T) {
	dir := t.TempDir()
	writePackage(t, dir, "Foo", "1.0.0", "")
	writePackage(t, dir, "Foo", "2.0.0", "")
	writePackage(t, dir, "Bar", "1.0.0", "")

	src := mustSource(t, dir)
	installed := []core.Identifier{
		core.Pinned("Foo", semver.Parse("1.0.0")),
		core.Pinned("Bar", semver.Parse("1.0.0")),
	}

	updates, err := src.GetUpdates(context.Background(), installed, false)
	if err != nil {
		t.Fatalf("GetUpdates: %v", err)
	}
	if len(updates) != 1 {
		t.Fatalf("expected 1 update, got %d", len(updates))
	}
	if updates[0].Name != "Foo" || updates[0].Version().String() != "2.0.0" {
		t.Errorf("update = %s %s", updates[0].Name, updates[0].Version())
	}
}

func mustSource(t *testing.T, dir string) *Source {
	t.Helper()
	src, err := New("test-local", dir, nil)
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	return src
}

// writePackage drops a minimal .nupkg named "<id>.<version>.nupkg" into dir.
// groups is raw nuspec group XML, empty for a dependency-free package.
func writePackage(t *testing.T, dir, id, version, groups string) {
	t.Helper()

	nuspec := fmt.Sprintf(`<package><metadata>
	  <id>%s</id>
	  <version>%s</version>
	  <description>test package</description>
	  <dependencies>%s</dependencies>
	</metadata></package>`, id, version, groups)

	path := filepath.Join(dir, fmt.Sprintf("%s.%s.nupkg", id, version))
	f, err := os.Create(path)
	if err != nil {
		t.Fatal(err)
	}
	defer f.Close()

	zw := zip.NewWriter(f)
	w, err := zw.Create(id + ".nuspec")
	if err != nil {
		t.Fatal(err)
	}
	if _, err := w.Write([]byte(nuspec)); err != nil {
		t.Fatal(err)
	}
	if err := zw.Close(); err != nil {
		t.Fatal(err)
	}
}
