// Package storage confines file paths supplied by API clients to the
// directories the server is configured to read images from and write audio to.
package storage

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
)

var ErrOutsideDir = errors.New("path escapes storage directory")

// Dir resolves client paths relative to a base directory.
type Dir struct {
	base string
}

// NewDir returns a Dir rooted at base. The directory does not have to exist yet.
func NewDir(base string) *Dir {
	if abs, err := filepath.Abs(base); err == nil {
		base = abs
	}
	return &Dir{base: filepath.Clean(base)}
}

// Resolve returns the absolute path of name inside the directory. name must
// be relative and must not climb out with "..". Symlinks on the existing part
// of the path must also resolve inside the directory.
func (d *Dir) Resolve(name string) (string, error) {
	if !filepath.IsLocal(name) {
		return "", fmt.Errorf("%w: %q", ErrOutsideDir, name)
	}
	path := filepath.Join(d.base, name)
	if err := d.checkLinks(path); err != nil {
		return "", err
	}
	return path, nil
}

func (d *Dir) checkLinks(path string) error {
	existing := path
	for existing != d.base {
		if _, err := os.Lstat(existing); err == nil {
			break
		}
		existing = filepath.Dir(existing)
	}
	if _, err := os.Lstat(existing); err != nil {
		return nil
	}

	resolved, err := filepath.EvalSymlinks(existing)
	if err != nil {
		return fmt.Errorf("resolve %s: %w", existing, err)
	}
	base := d.base
	if b, err := filepath.EvalSymlinks(d.base); err == nil {
		base = b
	}

	rel, err := filepath.Rel(base, resolved)
	if err != nil || !filepath.IsLocal(rel) {
		return fmt.Errorf("%w: %s", ErrOutsideDir, path)
	}
	return nil
}
