// Package platform wraps the filesystem primitives the copy engine relies on
// for durability: preallocation, data sync, and atomic file replacement.
package platform

import (
	"fmt"
	"os"
	"path/filepath"
)

// WriteFileAtomic replaces path with data so that readers observe either the
// previous content or the new content, never a partial write. The data is
// synced before the rename and the parent directory is synced after it.
func WriteFileAtomic(path string, data []byte, perm os.FileMode) error {
	dir := filepath.Dir(path)
	tmp, err := os.CreateTemp(dir, "."+filepath.Base(path)+".tmp-*")
	if err != nil {
		return fmt.Errorf("create temp for %s: %w", path, err)
	}
	tmpName := tmp.Name()

	_, writeErr := tmp.Write(data)
	syncErr := tmp.Sync()
	closeErr := tmp.Close()

	switch {
	case writeErr != nil:
		_ = os.Remove(tmpName)
		return fmt.Errorf("write %s: %w", tmpName, writeErr)
	case syncErr != nil:
		_ = os.Remove(tmpName)
		return fmt.Errorf("sync %s: %w", tmpName, syncErr)
	case closeErr != nil:
		_ = os.Remove(tmpName)
		return fmt.Errorf("close %s: %w", tmpName, closeErr)
	}

	if err := os.Chmod(tmpName, perm); err != nil {
		_ = os.Remove(tmpName)
		return fmt.Errorf("chmod %s: %w", tmpName, err)
	}

	if err := os.Rename(tmpName, path); err != nil {
		_ = os.Remove(tmpName)
		return fmt.Errorf("rename %s -> %s: %w", tmpName, path, err)
	}

	return SyncDir(dir)
}

// SyncDir flushes directory metadata (entry creation, renames) to disk.
func SyncDir(dir string) error {
	d, err := os.Open(dir)
	if err != nil {
		return fmt.Errorf("open dir %s: %w", dir, err)
	}
	defer d.Close()
	if err := d.Sync(); err != nil {
		return fmt.Errorf("sync dir %s: %w", dir, err)
	}
	return nil
}
