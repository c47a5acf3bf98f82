// Package storage prepares the on-disk layout before any component opens a file.
package storage

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
)

const dirPerm = 0o755

// Provision creates the parent directory of every path and proves each
// directory is writable. It runs once at startup; components never create
// directories on their own. All failures are returned together.
func Provision(paths ...string) error {
	seen := make(map[string]bool, len(paths))
	var errs []error

	for _, path := range paths {
		if path == "" {
			continue
		}
		dir := filepath.Dir(path)
		if seen[dir] {
			continue
		}
		seen[dir] = true

		if err := provisionDir(dir); err != nil {
			errs = append(errs, err)
		}
	}

	return errors.Join(errs...)
}

func provisionDir(dir string) error {
	if err := os.MkdirAll(dir, dirPerm); err != nil {
		return fmt.Errorf("create directory %s: %w", dir, err)
	}
	if err := Probe(dir); err != nil {
		return err
	}
	return nil
}

// Probe checks that dir accepts new files by creating and removing one.
func Probe(dir string) error {
	f, err := os.CreateTemp(dir, ".probe-*")
	if err != nil {
		return fmt.Errorf("directory %s is not writable: %w", dir, err)
	}
	name := f.Name()
	closeErr := f.Close()
	removeErr := os.Remove(name)
	if err := errors.Join(closeErr, removeErr); err != nil {
		return fmt.Errorf("probe %s: %w", dir, err)
	}
	return nil
}
