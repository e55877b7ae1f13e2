//go:build darwin

package platform

import (
	"os"

	"golang.org/x/sys/unix"
)

// ReflinkSupported is optimistic on macOS: APFS is the default filesystem
// and clonefile fails cheaply with ENOTSUP elsewhere.
func ReflinkSupported(string) bool { return true }

// Clone creates dstPath as a copy-on-write clone of srcPath via
// clonefile(2). clonefile refuses to overwrite, so the exclusive-create
// contract holds. Callers fall back to a streaming copy on error.
func Clone(srcPath, dstPath string, perm os.FileMode) error {
	if err := unix.Clonefile(srcPath, dstPath, 0); err != nil {
		return err
	}
	return os.Chmod(dstPath, perm)
}
