// Package platform hides the per-OS copy, clone, and rename primitives
// behind a uniform API. The copy ladder falls back to a portable path when
// the fast syscall is unavailable; the Linux no-clobber rename has no
// fallback.
package platform

import "os"

// CopyMethod identifies which syscall/strategy was used for a copy.
type CopyMethod int

const (
	ReadWrite     CopyMethod = iota
	CopyFileRange            // Linux copy_file_range(2)
	Sendfile                 // Linux sendfile(2)
	Reflink                  // FICLONE / clonefile CoW clone
)

func (m CopyMethod) String() string {
	switch m {
	case ReadWrite:
		return "read_write"
	case CopyFileRange:
		return "copy_file_range"
	case Sendfile:
		return "sendfile"
	case Reflink:
		return "reflink"
	default:
		return "unknown"
	}
}

// CopyResult reports the outcome of a copy operation.
type CopyResult struct {
	BytesWritten int64
	Method       CopyMethod
}

// CopyFileParams describes one contiguous range to copy. A zero Length
// means "from SrcOffset to SrcSize".
type CopyFileParams struct {
	DstFd     *os.File
	SrcPath   string
	SrcOffset int64
	SrcSize   int64
	Length    int64
}
