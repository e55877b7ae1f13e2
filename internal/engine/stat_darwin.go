//go:build darwin

package engine

import (
	"io/fs"
	"syscall"
	"time"

	"golang.org/x/sys/unix"
)

// identityOf extracts the canonical identity of an entry: (device, inode).
func identityOf(_ string, info fs.FileInfo) (DevIno, bool) {
	stat, ok := info.Sys().(*syscall.Stat_t)
	if !ok {
		return DevIno{}, false
	}
	return DevIno{Dev: uint64(stat.Dev), Ino: stat.Ino}, true
}

// atimeOf returns the access time of an entry, or the zero time if the
// platform stat is unavailable.
func atimeOf(info fs.FileInfo) time.Time {
	stat, ok := info.Sys().(*syscall.Stat_t)
	if !ok {
		return time.Time{}
	}
	return time.Unix(stat.Atimespec.Sec, stat.Atimespec.Nsec)
}

// setFileTimes sets atime/mtime on the final (renamed) path. Darwin lacks
// UTIME_OMIT, so a zero atime falls back to the mtime.
func setFileTimes(path string, accTime, modTime time.Time) error {
	atime := unix.NsecToTimespec(modTime.UnixNano())
	if !accTime.IsZero() {
		atime = unix.NsecToTimespec(accTime.UnixNano())
	}
	times := []unix.Timespec{
		atime,
		unix.NsecToTimespec(modTime.UnixNano()),
	}
	return unix.UtimesNanoAt(unix.AT_FDCWD, path, times, 0)
}
