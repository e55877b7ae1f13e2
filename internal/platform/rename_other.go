//go:build !linux && !windows

package platform

import "os"

// RenameNoReplace emulates a no-clobber rename with link+unlink. link(2)
// fails with EEXIST if newpath exists and never exposes a partially-written
// entry, so the no-partial-files invariant is preserved; the only cost is a
// brief window where both names refer to the same inode.
func RenameNoReplace(oldpath, newpath string) error {
	if err := os.Link(oldpath, newpath); err != nil {
		return err
	}
	return os.Remove(oldpath)
}
