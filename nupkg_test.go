package nupkg_test

import (
	"testing"

	"github.com/git-pkgs/nupkg"
	_ "github.com/git-pkgs/nupkg/all"
)

func TestSupportedKinds(t *testing.T) {
	kinds := nupkg.SupportedKinds()
	want := map[string]bool{"local": false, "v2": false, "v3": false}

	for _, k := range kinds {
		if _, ok := want[k]; !ok {
			t.Errorf("unexpected kind %q", k)
			continue
		}
		want[k] = true
	}
	for k, seen := range want {
		if !seen {
			t.Errorf("kind %q not registered", k)
		}
	}
}

func TestNewSourceUnknownKind(t *testing.T) {
	_, err := nupkg.NewSource(nupkg.SourceConfig{Name: "x", Kind: "gopher"}, nil, nil)
	if err == nil {
		t.Fatal("expected error for unknown kind")
	}
}

func TestNewSourceLocal(t *testing.T) {
	src, err := nupkg.NewSource(nupkg.SourceConfig{
		Name: "cache",
		Kind: "local",
		Path: t.TempDir(),
	}, nil, nil)
	if err != nil {
		t.Fatalf("NewSource: %v", err)
	}
	if src.Name() != "cache" || src.Kind() != "local" {
		t.Errorf("source = %s/%s", src.Name(), src.Kind())
	}
}

func TestParseVersion(t *testing.T) {
	v := nupkg.ParseVersion("1.2.3-beta.1+build.5")
	if !v.IsValid() || !v.IsPrerelease() {
		t.Errorf("version = %+v", v)
	}
	if nupkg.ParseVersion("not-a-version").IsValid() {
		t.Error("malformed input should yield the invalid sentinel")
	}
}

func TestParseRangeAndMembership(t *testing.T) {
	r, err := nupkg.ParseRange("[1.0,2.0)")
	if err != nil {
		t.Fatalf("ParseRange: %v", err)
	}
	if !r.Satisfies(nupkg.ParseVersion("1.5")) {
		t.Error("1.5 should satisfy [1.0,2.0)")
	}
	if r.Satisfies(nupkg.ParseVersion("2.0")) {
		t.Error("2.0 should not satisfy [1.0,2.0)")
	}
}

func TestParsePURL(t *testing.T) {
	id, err := nupkg.ParsePURL("pkg:nuget/Newtonsoft.Json@13.0.3")
	if err != nil {
		t.Fatalf("ParsePURL: %v", err)
	}
	if id.Name != "Newtonsoft.Json" {
		t.Errorf("name = %q", id.Name)
	}
}
