//go:build windows

package platform

import "golang.org/x/sys/windows"

// RenameNoReplace uses MoveFileEx without MOVEFILE_REPLACE_EXISTING, which
// fails if newpath exists.
func RenameNoReplace(oldpath, newpath string) error {
	from, err := windows.UTF16PtrFromString(LongPath(oldpath))
	if err != nil {
		return err
	}
	to, err := windows.UTF16PtrFromString(LongPath(newpath))
	if err != nil {
		return err
	}
	return windows.MoveFileEx(from, to, 0)
}
