package manifest

import (
	"os"
	"path/filepath"
	"testing"
)

func TestStoreLoadMissingFile(t *testing.T) {
	store := NewStore(filepath.Join(t.TempDir(), "manifest.yaml"))

	f, err := store.Load()
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if len(f.Packages) != 0 {
		t.Errorf("expected empty manifest, got %d records", len(f.Packages))
	}
}

func TestStoreRoundTrip(t *testing.T) {
	store := NewStore(filepath.Join(t.TempDir(), "manifest.yaml"))

	f := &File{}
	f.Add(Record{Name: "Newtonsoft.Json", Version: "13.0.3", Manual: true})
	f.Add(Record{Name: "Serilog", Version: "3.1.1"})

	if err := store.Save(f); err != nil {
		t.Fatalf("Save: %v", err)
	}

	loaded, err := store.Load()
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if len(loaded.Packages) != 2 {
		t.Fatalf("expected 2 records, got %d", len(loaded.Packages))
	}

	rec, ok := loaded.Find("newtonsoft.json")
	if !ok {
		t.Fatal("case-insensitive Find failed")
	}
	if rec.Version != "13.0.3" || !rec.Manual {
		t.Errorf("record = %+v", rec)
	}
}

func TestSaveSortsDeterministically(t *testing.T) {
	store := NewStore(filepath.Join(t.TempDir(), "manifest.yaml"))

	f := &File{Packages: []Record{
		{Name: "Zebra", Version: "1.0"},
		{Name: "alpha", Version: "2.0"},
		{Name: "Alpha", Version: "1.0"},
	}}
	if err := store.Save(f); err != nil {
		t.Fatalf("Save: %v", err)
	}

	loaded, err := store.Load()
	if err != nil {
		t.Fatalf("Load: %v", err)
	}

	var got []string
	for _, r := range loaded.Packages {
		got = append(got, r.Name+" "+r.Version)
	}
	want := []string{"Alpha 1.0", "alpha 2.0", "Zebra 1.0"}
	for i := range want {
		if got[i] != want[i] {
			t.Errorf("position %d = %q, want %q", i, got[i], want[i])
		}
	}
}

func TestAddReplacesByName(t *testing.T) {
	f := &File{}
	f.Add(Record{Name: "Foo", Version: "1.0"})
	f.Add(Record{Name: "foo", Version: "2.0"})

	if len(f.Packages) != 1 {
		t.Fatalf("expected 1 record after replace, got %d", len(f.Packages))
	}
	if f.Packages[0].Version != "2.0" {
		t.Errorf("version = %s, want 2.0", f.Packages[0].Version)
	}
}

func TestRemove(t *testing.T) {
	f := &File{}
	f.Add(Record{Name: "Foo", Version: "1.0"})

	if !f.Remove("FOO") {
		t.Error("Remove should report success case-insensitively")
	}
	if f.Remove("Foo") {
		t.Error("second Remove should report absence")
	}
	if len(f.Packages) != 0 {
		t.Errorf("expected empty manifest, got %d", len(f.Packages))
	}
}

func TestRecordIdentifierRoundTrip(t *testing.T) {
	rec := Record{Name: "Foo", Version: "1.2.3-beta", Manual: true}
	id := rec.Identifier()

	if id.Name != "Foo" || !id.Manual {
		t.Errorf("identifier = %+v", id)
	}
	if id.Version().String() != "1.2.3-beta" {
		t.Errorf("version = %s", id.Version())
	}

	back := RecordOf(id)
	if back != rec {
		t.Errorf("round trip changed record: %+v vs %+v", back, rec)
	}
}

func TestSaveIsAtomic(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "manifest.yaml")
	store := NewStore(path)

	if err := store.Save(&File{Packages: []Record{{Name: "Foo", Version: "1.0"}}}); err != nil {
		t.Fatalf("Save: %v", err)
	}

	// No temp files left behind.
	entries, err := os.ReadDir(dir)
	if err != nil {
		t.Fatal(err)
	}
	if len(entries) != 1 || entries[0].Name() != "manifest.yaml" {
		t.Errorf("unexpected directory contents: %v", entries)
	}
}
