//go:build linux

package platform

import "golang.org/x/sys/unix"

// RenameNoReplace atomically renames oldpath to newpath, failing with
// EEXIST if newpath exists. This closes the TOCTOU window between the
// destination existence check and the publish rename.
func RenameNoReplace(oldpath, newpath string) error {
	return unix.Renameat2(unix.AT_FDCWD, oldpath, unix.AT_FDCWD, newpath, unix.RENAME_NOREPLACE)
}
