package nuspec

import (
	"archive/zip"
	"os"
	"path/filepath"
	"strings"
	"testing"
)

const sampleNuspec = `<?xml version="1.0" encoding="utf-8"?>
<package xmlns="http://schemas.microsoft.com/packaging/2013/05/nuspec.xsd">
  <metadata>
    <id>Newtonsoft.Json</id>
    <version>13.0.3</version>
    <title>Json.NET</title>
    <authors>James Newton-King</authors>
    <description>Json.NET is a popular high-performance JSON framework for .NET</description>
    <projectUrl>https://www.newtonsoft.com/json</projectUrl>
    <tags>json serializer</tags>
    <dependencies>
      <group targetFramework=".NETStandard2.0">
        <dependency id="System.Text.Json" version="[6.0,)" />
      </group>
      <group targetFramework=".NETFramework4.5" />
    </dependencies>
  </metadata>
</package>`

func TestRead(t *testing.T) {
	m, err := Read(strings.NewReader(sampleNuspec))
	if err != nil {
		t.Fatalf("Read: %v", err)
	}

	if m.Metadata.ID != "Newtonsoft.Json" {
		t.Errorf("id = %q", m.Metadata.ID)
	}
	if m.Metadata.Version != "13.0.3" {
		t.Errorf("version = %q", m.Metadata.Version)
	}
	if got := m.Metadata.TagList(); len(got) != 2 || got[0] != "json" {
		t.Errorf("tags = %v", got)
	}

	groups := m.Metadata.Dependencies.Groups
	if len(groups) != 2 {
		t.Fatalf("expected 2 groups, got %d", len(groups))
	}
	if groups[0].TargetFramework != ".NETStandard2.0" {
		t.Errorf("group 0 label = %q", groups[0].TargetFramework)
	}
	if len(groups[0].Dependencies) != 1 || groups[0].Dependencies[0].ID != "System.Text.Json" {
		t.Errorf("group 0 deps = %v", groups[0].Dependencies)
	}
	if len(groups[1].Dependencies) != 0 {
		t.Errorf("empty group should have no deps, got %v", groups[1].Dependencies)
	}
}

func TestReadLegacyFlatList(t *testing.T) {
	doc := `<package><metadata>
	  <id>Old.Package</id><version>1.0</version>
	  <dependencies>
	    <dependency id="Dep.One" version="2.0" />
	    <dependency id="Dep.Two" version="" />
	  </dependencies>
	</metadata></package>`

	m, err := Read(strings.NewReader(doc))
	if err != nil {
		t.Fatalf("Read: %v", err)
	}
	if len(m.Metadata.Dependencies.Flat) != 2 {
		t.Errorf("flat deps = %v", m.Metadata.Dependencies.Flat)
	}
}

func TestReadRejectsMissingID(t *testing.T) {
	if _, err := Read(strings.NewReader(`<package><metadata></metadata></package>`)); err == nil {
		t.Error("expected error for nuspec without id")
	}
}

func TestFromArchive(t *testing.T) {
	path := writeNupkg(t, "Newtonsoft.Json.nuspec", sampleNuspec)

	m, err := FromArchive(path)
	if err != nil {
		t.Fatalf("FromArchive: %v", err)
	}
	if m.Metadata.ID != "Newtonsoft.Json" {
		t.Errorf("id = %q", m.Metadata.ID)
	}
}

func TestFromArchiveIgnoresNestedNuspec(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "pkg.nupkg")

	f, err := os.Create(path)
	if err != nil {
		t.Fatal(err)
	}
	zw := zip.NewWriter(f)
	// Only a nested nuspec, none at the root.
	w, _ := zw.Create("content/inner.nuspec")
	w.Write([]byte(sampleNuspec))
	zw.Close()
	f.Close()

	if _, err := FromArchive(path); err == nil {
		t.Error("expected error when no root-level nuspec exists")
	}
}

func writeNupkg(t *testing.T, nuspecName, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "pkg.nupkg")

	f, err := os.Create(path)
	if err != nil {
		t.Fatal(err)
	}
	defer f.Close()

	zw := zip.NewWriter(f)
	w, err := zw.Create(nuspecName)
	if err != nil {
		t.Fatal(err)
	}
	if _, err := w.Write([]byte(content)); err != nil {
		t.Fatal(err)
	}
	if err := zw.Close(); err != nil {
		t.Fatal(err)
	}
	return path
}
