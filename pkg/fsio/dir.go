package fsio

import (
	"fmt"
	"os"

	"golang.org/x/sys/unix"
)

// CreateFolder creates dir and any missing parents.
func CreateFolder(dir string) error {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return fmt.Errorf("fsio: unable to create folder %s: %w", dir, err)
	}
	return nil
}

// DeleteFolder recursively removes dir. Removing an already-absent
// directory is not an error.
func DeleteFolder(dir string) error {
	if err := os.RemoveAll(dir); err != nil {
		return fmt.Errorf("fsio: unable to delete folder %s: %w", dir, err)
	}
	return nil
}

// Exists reports whether path refers to an existing file or directory.
func Exists(path string) bool {
	_, err := os.Stat(path)
	return err == nil
}

// DeleteFile removes a single file. Removing an already-absent file is not
// an error.
func DeleteFile(path string) error {
	if err := os.Remove(path); err != nil && !os.IsNotExist(err) {
		return fmt.Errorf("fsio: unable to delete file %s: %w", path, err)
	}
	return nil
}

// FreeSpace reports the number of bytes free on the filesystem containing
// path.
func FreeSpace(path string) (uint64, error) {
	var stat unix.Statfs_t
	if err := unix.Statfs(path, &stat); err != nil {
		return 0, fmt.Errorf("fsio: free space check failed for %s: %w", path, err)
	}
	return stat.Bavail * uint64(stat.Bsize), nil
}
