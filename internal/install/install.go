// Package install extracts .nupkg archives into a versioned directory
// layout under one install root.
package install

import (
	"archive/zip"
	"context"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/git-pkgs/nupkg/client"
	"github.com/git-pkgs/nupkg/internal/core"
	"github.com/git-pkgs/nupkg/internal/semver"
)

// DirName is the on-disk directory name for an installed package,
// "<Name>.<Version>".
func DirName(id core.Identifier) string {
	return id.Name + "." + id.Version().Normalized()
}

// SplitDirName recovers the identifier from an install directory name.
// The version is the longest dot-suffix that parses and starts with a digit.
func SplitDirName(dir string) (core.Identifier, bool) {
	for i := 0; i < len(dir); i++ {
		if dir[i] != '.' {
			continue
		}
		rest := dir[i+1:]
		if rest == "" || rest[0] < '0' || rest[0] > '9' {
			continue
		}
		if v := semver.Parse(rest); v.IsValid() {
			return core.Pinned(dir[:i], v), true
		}
	}
	return core.Identifier{}, false
}

// DirInstaller installs packages by extracting their archive into
// "<root>/<Name>.<Version>/". Remote content is downloaded through the
// shared client.
type DirInstaller struct {
	root   string
	client *client.Client
}

// New creates an installer rooted at dir. If c is nil the default client
// is used for downloads.
func New(dir string, c *client.Client) *DirInstaller {
	if c == nil {
		c = client.DefaultClient()
	}
	return &DirInstaller{root: dir, client: c}
}

// Root returns the install root directory.
func (d *DirInstaller) Root() string { return d.root }

// Install places the package under the install root. An existing directory
// for the same name and version is replaced.
func (d *DirInstaller) Install(ctx context.Context, meta *core.PackageMetadata) error {
	archive := meta.ContentPath
	if archive == "" {
		if meta.ContentURL == "" {
			return fmt.Errorf("package %s has no content location", meta.Identifier)
		}
		tmp, err := d.download(ctx, meta.ContentURL)
		if err != nil {
			return err
		}
		defer os.Remove(tmp)
		archive = tmp
	}

	dest := filepath.Join(d.root, DirName(meta.Identifier))
	if err := os.RemoveAll(dest); err != nil {
		return fmt.Errorf("clearing %s: %w", dest, err)
	}
	if err := extract(archive, dest); err != nil {
		os.RemoveAll(dest)
		return err
	}
	return nil
}

// Uninstall removes the package directory. A missing directory is not an
// error; the manifest may be ahead of the disk.
func (d *DirInstaller) Uninstall(id core.Identifier) error {
	dest := filepath.Join(d.root, DirName(id))
	if err := os.RemoveAll(dest); err != nil {
		return fmt.Errorf("removing %s: %w", dest, err)
	}
	return nil
}

// InstalledDirs lists the identifiers of package directories currently
// under the root. Used by manifest reconciliation.
func (d *DirInstaller) InstalledDirs() ([]core.Identifier, error) {
	entries, err := os.ReadDir(d.root)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, nil
		}
		return nil, fmt.Errorf("reading install root %s: %w", d.root, err)
	}

	var out []core.Identifier
	for _, e := range entries {
		if !e.IsDir() {
			continue
		}
		if id, ok := SplitDirName(e.Name()); ok {
			out = append(out, id)
		}
	}
	return out, nil
}

func (d *DirInstaller) download(ctx context.Context, url string) (string, error) {
	body, err := d.client.Download(ctx, url)
	if err != nil {
		return "", err
	}
	defer body.Close()

	tmp, err := os.CreateTemp("", "nupkg-*.nupkg")
	if err != nil {
		return "", fmt.Errorf("creating temp archive: %w", err)
	}
	if _, err := io.Copy(tmp, body); err != nil {
		tmp.Close()
		os.Remove(tmp.Name())
		return "", fmt.Errorf("downloading %s: %w", url, err)
	}
	if err := tmp.Close(); err != nil {
		os.Remove(tmp.Name())
		return "", err
	}
	return tmp.Name(), nil
}

// extract unpacks a zip archive into dest, rejecting entries that escape it.
func extract(archive, dest string) error {
	zr, err := zip.OpenReader(archive)
	if err != nil {
		return fmt.Errorf("opening %s: %w", archive, err)
	}
	defer zr.Close()

	if err := os.MkdirAll(dest, 0o755); err != nil {
		return err
	}

	for _, f := range zr.File {
		target := filepath.Join(dest, filepath.FromSlash(f.Name))
		if !strings.HasPrefix(target, filepath.Clean(dest)+string(os.PathSeparator)) {
			return fmt.Errorf("archive entry %q escapes install dir", f.Name)
		}

		if f.FileInfo().IsDir() {
			if err := os.MkdirAll(target, 0o755); err != nil {
				return err
			}
			continue
		}

		if err := os.MkdirAll(filepath.Dir(target), 0o755); err != nil {
			return err
		}
		rc, err := f.Open()
		if err != nil {
			return fmt.Errorf("opening archive entry %s: %w", f.Name, err)
		}
		out, err := os.OpenFile(target, os.O_WRONLY|os.O_CREATE|os.O_TRUNC, 0o644)
		if err != nil {
			rc.Close()
			return err
		}
		_, err = io.Copy(out, rc)
		rc.Close()
		if cerr := out.Close(); err == nil {
			err = cerr
		}
		if err != nil {
			return fmt.Errorf("extracting %s: %w", f.Name, err)
		}
	}
	return nil
}
