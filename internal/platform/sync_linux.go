//go:build linux

package platform

import (
	"os"

	"golang.org/x/sys/unix"
)

// Datasync flushes file data to stable storage without forcing a metadata
// flush unless the file size changed.
//
//nolint:gosec // G115: fd values are small non-negative integers
func Datasync(f *os.File) error {
	for {
		err := unix.Fdatasync(int(f.Fd()))
		if err != unix.EINTR {
			return err
		}
	}
}
