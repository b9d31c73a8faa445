//go:build !linux

package platform

import "os"

// Datasync falls back to a full fsync where fdatasync is unavailable.
func Datasync(f *os.File) error {
	return f.Sync()
}
