// Package fsutil holds small file helpers shared by the CLI.
package fsutil

import (
	"fmt"
	"os"
	"path/filepath"
)

// WriteFileAtomic replaces path with data. The content is written to a
// temporary file in the same directory, synced and renamed over path, so a
// reader sees either the old or the new file and never a partial key.
// perm is applied before any data is written.
func WriteFileAtomic(path string, data []byte, perm os.FileMode) error {
	dir, name := filepath.Split(path)
	if dir == "" {
		dir = "."
	}

	f, err := os.CreateTemp(dir, ".tmp-"+name+"-*")
	if err != nil {
		return fmt.Errorf("fsutil: write %s: %w", path, err)
	}
	tmpPath := f.Name()
	defer os.Remove(tmpPath) // no-op after a successful rename

	if err := f.Chmod(perm); err != nil {
		f.Close()
		return fmt.Errorf("fsutil: write %s: %w", path, err)
	}
	if _, err := f.Write(data); err != nil {
		f.Close()
		return fmt.Errorf("fsutil: write %s: %w", path, err)
	}
	if err := f.Sync(); err != nil {
		f.Close()
		return fmt.Errorf("fsutil: write %s: %w", path, err)
	}
	if err := f.Close(); err != nil {
		return fmt.Errorf("fsutil: write %s: %w", path, err)
	}
	if err := os.Rename(tmpPath, path); err != nil {
		return fmt.Errorf("fsutil: write %s: %w", path, err)
	}
	return nil
}
