package engine

import (
	"io/fs"
	"time"

	"github.com/bamsammich/ferry/internal/copyerr"
)

// Kind identifies the kind of filesystem entry a work item describes.
type Kind int

const (
	KindFile Kind = iota
	KindDir
	KindSymlink
)

func (k Kind) String() string {
	switch k {
	case KindFile:
		return "file"
	case KindDir:
		return "dir"
	case KindSymlink:
		return "symlink"
	default:
		return "unknown"
	}
}

// DevIno uniquely identifies an inode. Used by the walker's ancestor stack
// for cycle detection.
type DevIno struct {
	Dev uint64
	Ino uint64
}

// Item is one unit of work produced by the walker. The destination path is
// derived from the source path by prefix substitution; each item is owned
// by exactly one worker from dispatch to completion.
type Item struct {
	Src        string
	Dst        string
	LinkTarget string // symlinks: stored target text, never resolved
	ModTime    time.Time
	AccTime    time.Time
	Size       int64
	Mode       fs.FileMode
	Depth      int
	Kind       Kind
	Escaping   bool // symlink target resolves outside the source root
}

// Failure records one tolerated per-item error.
type Failure struct {
	Src  string
	Dst  string
	Code copyerr.Code
	Err  error
}
