//go:build windows

package engine

import (
	"io/fs"
	"os"
	"time"

	"golang.org/x/sys/windows"

	"github.com/bamsammich/ferry/internal/platform"
)

// identityOf resolves the canonical identity of a directory on Windows:
// (volume serial, file index). The FileInfo alone is not enough — a
// metadata handle has to be opened with backup semantics.
func identityOf(path string, _ fs.FileInfo) (DevIno, bool) {
	p, err := windows.UTF16PtrFromString(platform.LongPath(path))
	if err != nil {
		return DevIno{}, false
	}
	h, err := windows.CreateFile(p, 0,
		windows.FILE_SHARE_READ|windows.FILE_SHARE_WRITE|windows.FILE_SHARE_DELETE,
		nil, windows.OPEN_EXISTING, windows.FILE_FLAG_BACKUP_SEMANTICS, 0)
	if err != nil {
		return DevIno{}, false
	}
	defer windows.CloseHandle(h)

	var fi windows.ByHandleFileInformation
	if err := windows.GetFileInformationByHandle(h, &fi); err != nil {
		return DevIno{}, false
	}
	return DevIno{
		Dev: uint64(fi.VolumeSerialNumber),
		Ino: uint64(fi.FileIndexHigh)<<32 | uint64(fi.FileIndexLow),
	}, true
}

// atimeOf returns the access time of an entry.
func atimeOf(info fs.FileInfo) time.Time {
	if d, ok := info.Sys().(*windows.Win32FileAttributeData); ok {
		return time.Unix(0, d.LastAccessTime.Nanoseconds())
	}
	return time.Time{}
}

// setFileTimes sets atime/mtime on the final (renamed) path.
func setFileTimes(path string, accTime, modTime time.Time) error {
	if accTime.IsZero() {
		accTime = modTime
	}
	return os.Chtimes(platform.LongPath(path), accTime, modTime)
}
