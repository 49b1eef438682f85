package install

import (
	"archive/zip"
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/git-pkgs/nupkg/internal/core"
	"github.com/git-pkgs/nupkg/internal/semver"
)

func TestDirName(t *testing.T) {
	id := core.Pinned("Newtonsoft.Json", semver.Parse("13.0.3"))
	if got := DirName(id); got != "Newtonsoft.Json.13.0.3" {
		t.Errorf("DirName = %q", got)
	}
}

func TestSplitDirName(t *testing.T) {
	tests := []struct {
		dir     string
		name    string
		version string
		ok      bool
	}{
		{"Newtonsoft.Json.13.0.3", "Newtonsoft.Json", "13.0.3", true},
		{"Foo.1.0", "Foo", "1.0", true},
		{"Foo.Bar.2.1.0-beta", "Foo.Bar", "2.1.0-beta", true},
		{"NoVersionHere", "", "", false},
		{"", "", "", false},
	}

	for _, tt := range tests {
		id, ok := SplitDirName(tt.dir)
		if ok != tt.ok {
			t.Errorf("SplitDirName(%q) ok = %v, want %v", tt.dir, ok, tt.ok)
			continue
		}
		if !ok {
			continue
		}
		if id.Name != tt.name || id.Version().String() != tt.version {
			t.Errorf("SplitDirName(%q) = %s %s, want %s %s", tt.dir, id.Name, id.Version(), tt.name, tt.version)
		}
	}
}

func TestInstallFromLocalArchive(t *testing.T) {
	root := t.TempDir()
	archive := writeArchive(t, map[string]string{
		"Foo.nuspec":      "<package><metadata><id>Foo</id><version>1.0</version></metadata></package>",
		"lib/net45/a.dll": "binary",
	})

	inst := New(root, nil)
	meta := &core.PackageMetadata{
		Identifier:  core.Pinned("Foo", semver.Parse("1.0.0")),
		ContentPath: archive,
	}

	if err := inst.Install(context.Background(), meta); err != nil {
		t.Fatalf("Install: %v", err)
	}

	extracted := filepath.Join(root, "Foo.1.0.0", "lib", "net45", "a.dll")
	data, err := os.ReadFile(extracted)
	if err != nil {
		t.Fatalf("expected extracted file: %v", err)
	}
	if string(data) != "binary" {
		t.Errorf("content = %q", data)
	}
}

func TestInstallReplacesExisting(t *testing.T) {
	root := t.TempDir()
	dest := filepath.Join(root, "Foo.1.0.0")
	if err := os.MkdirAll(dest, 0o755); err != nil {
		t.Fatal(err)
	}
	stale := filepath.Join(dest, "stale.txt")
	if err := os.WriteFile(stale, []byte("old"), 0o644); err != nil {
		t.Fatal(err)
	}

	inst := New(root, nil)
	meta := &core.PackageMetadata{
		Identifier:  core.Pinned("Foo", semver.Parse("1.0.0")),
		ContentPath: writeArchive(t, map[string]string{"fresh.txt": "new"}),
	}
	if err := inst.Install(context.Background(), meta); err != nil {
		t.Fatalf("Install: %v", err)
	}

	if _, err := os.Stat(stale); !os.IsNotExist(err) {
		t.Error("stale file should be gone after reinstall")
	}
}

func TestInstallRejectsEscapingEntries(t *testing.T) {
	root := t.TempDir()
	inst := New(root, nil)

	meta := &core.PackageMetadata{
		Identifier:  core.Pinned("Evil", semver.Parse("1.0.0")),
		ContentPath: writeArchive(t, map[string]string{"../escape.txt": "nope"}),
	}
	if err := inst.Install(context.Background(), meta); err == nil {
		t.Fatal("expected error for path traversal entry")
	}
	if _, err := os.Stat(filepath.Join(root, "..", "escape.txt")); !os.IsNotExist(err) {
		t.Error("escaping file must not be written")
	}
	if _, err := os.Stat(filepath.Join(root, "Evil.1.0.0")); !os.IsNotExist(err) {
		t.Error("failed install should clean up its directory")
	}
}

func TestUninstall(t *testing.T) {
	root := t.TempDir()
	id := core.Pinned("Foo", semver.Parse("1.0"))
	if err := os.MkdirAll(filepath.Join(root, DirName(id)), 0o755); err != nil {
		t.Fatal(err)
	}

	inst := New(root, nil)
	if err := inst.Uninstall(id); err != nil {
		t.Fatalf("Uninstall: %v", err)
	}
	if _, err := os.Stat(filepath.Join(root, DirName(id))); !os.IsNotExist(err) {
		t.Error("directory should be removed")
	}

	// Missing directory is tolerated.
	if err := inst.Uninstall(id); err != nil {
		t.Errorf("second Uninstall: %v", err)
	}
}

func TestInstalledDirs(t *testing.T) {
	root := t.TempDir()
	for _, dir := range []string{"Foo.1.0", "Bar.2.1.0", "notapackage"} {
		if err := os.MkdirAll(filepath.Join(root, dir), 0o755); err != nil {
			t.Fatal(err)
		}
	}

	inst := New(root, nil)
	ids, err := inst.InstalledDirs()
	if err != nil {
		t.Fatalf("InstalledDirs: %v", err)
	}
	if len(ids) != 2 {
		t.Errorf("expected 2 package dirs, got %d", len(ids))
	}
}

func TestInstalledDirsMissingRoot(t *testing.T) {
	inst := New(filepath.Join(t.TempDir(), "absent"), nil)
	ids, err := inst.InstalledDirs()
	if err != nil {
		t.Fatalf("InstalledDirs: %v", err)
	}
	if ids != nil {
		t.Errorf("expected nil for missing root, got %v", ids)
	}
}

func writeArchive(t *testing.T, files map[string]string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "pkg.nupkg")

	f, err := os.Create(path)
	if err != nil {
		t.Fatal(err)
	}
	defer f.Close()

	zw := zip.NewWriter(f)
	for name, content := range files {
		w, err := zw.Create(name)
		if err != nil {
			t.Fatal(err)
		}
		if _, err := w.Write([]byte(content)); err != nil {
			t.Fatal(err)
		}
	}
	if err := zw.Close(); err != nil {
		t.Fatal(err)
	}
	return path
}
