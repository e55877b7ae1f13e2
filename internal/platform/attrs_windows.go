//go:build windows

package platform

import "golang.org/x/sys/windows"

// attrMask selects the attribute bits worth carrying between files.
const attrMask = windows.FILE_ATTRIBUTE_HIDDEN |
	windows.FILE_ATTRIBUTE_SYSTEM |
	windows.FILE_ATTRIBUTE_ARCHIVE |
	windows.FILE_ATTRIBUTE_READONLY

// CopyAttributes transfers the hidden/system/archive/readonly bits from src
// to dst. Applied after permissions and timestamps; errors are returned for
// the caller to log, never fatal.
func CopyAttributes(src, dst string) error {
	srcPtr, err := windows.UTF16PtrFromString(LongPath(src))
	if err != nil {
		return err
	}
	attrs, err := windows.GetFileAttributes(srcPtr)
	if err != nil {
		return err
	}

	dstPtr, err := windows.UTF16PtrFromString(LongPath(dst))
	if err != nil {
		return err
	}
	existing, err := windows.GetFileAttributes(dstPtr)
	if err != nil {
		return err
	}

	merged := (existing &^ attrMask) | (attrs & attrMask)
	return windows.SetFileAttributes(dstPtr, merged)
}
