//go:build linux

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
	return time.Unix(stat.Atim.Sec, stat.Atim.Nsec)
}

// setFileTimes sets atime/mtime on the final (renamed) path. Path-based on
// purpose: some filesystems reset times on rename, so the temp fd is the
// wrong target.
func setFileTimes(path string, accTime, modTime time.Time) error {
	atime := unix.Timespec{Nsec: unix.UTIME_OMIT}
	if !accTime.IsZero() {
		atime = unix.NsecToTimespec(accTime.UnixNano())
	}
	times := []unix.Timespec{
		atime,
		unix.NsecToTimespec(modTime.UnixNano()),
	}
	return unix.UtimesNanoAt(unix.AT_FDCWD, path, times, 0)
}
