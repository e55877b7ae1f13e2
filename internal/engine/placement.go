package engine

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"log/slog"
	"os"
	"path/filepath"
	"syscall"

	"github.com/google/uuid"

	"github.com/bamsammich/ferry/internal/copyerr"
	"github.com/bamsammich/ferry/internal/platform"
)

// copyChunkSize bounds how many bytes are copied between cancel-token
// checks during a single file placement, so mid-file cancellation is
// observable even on the in-kernel fast paths.
const copyChunkSize = 8 << 20

// tmpName builds a uniquely-named temp path in the same directory as the
// final destination. Same-directory is load-bearing: rename is only atomic
// within one filesystem.
func tmpName(dir, base string) string {
	return filepath.Join(dir, fmt.Sprintf(".%s.%s.ferry-tmp", base, uuid.NewString()[:8]))
}

// placeFile runs the atomic placement protocol for one regular file:
// reflink-or-stream into a temp file, optional fsync, then publish via
// rename. The original destination is never touched until the rename, and
// the temp file is unlinked on every failure path.
//
// The returned action may downgrade to ActionSkip when a no-clobber rename
// loses a creation race under the Skip policy.
func (ex *executor) placeFile(ctx context.Context, item Item, dec Decision) (int64, Action, error) {
	dir := filepath.Dir(item.Dst)
	tmpPath := tmpName(dir, filepath.Base(item.Dst))

	RegisterTmp(tmpPath)
	renamed := false
	defer func() {
		DeregisterTmp(tmpPath)
		if !renamed {
			_ = os.Remove(tmpPath)
		}
	}()

	written, err := ex.writeTmp(ctx, item, tmpPath)
	if err != nil {
		return written, dec.Action, err
	}

	action, err := ex.publish(tmpPath, item.Dst, dec)
	if err != nil {
		return written, action, err
	}
	renamed = true
	return written, action, nil
}

// writeTmp fills tmpPath with the source content: reflink fast path first
// when enabled, then the streaming ladder in bounded chunks.
func (ex *executor) writeTmp(ctx context.Context, item Item, tmpPath string) (int64, error) {
	if ex.cfg.Reflink && platform.ReflinkSupported(filepath.Dir(item.Dst)) {
		err := platform.Clone(item.Src, tmpPath, 0o600)
		if err == nil {
			if ex.cfg.Fsync {
				if err := syncPath(tmpPath); err != nil {
					return item.Size, err
				}
			}
			ex.stats.AddBytesCopied(item.Size)
			ex.progress()
			return item.Size, nil
		}
		// Advisory: any clone failure silently falls back to streaming.
		slog.Debug("reflink failed, streaming instead", "src", item.Src, "error", err)
	}

	// Temp mode is strictly tighter than any source mode; the final mode is
	// applied after the rename.
	tmpFd, err := os.OpenFile(platform.LongPath(tmpPath), os.O_WRONLY|os.O_CREATE|os.O_EXCL, 0o600)
	if err != nil {
		return 0, err
	}

	written, err := ex.streamCopy(ctx, item, tmpFd)
	if err != nil {
		tmpFd.Close()
		return written, err
	}

	if ex.cfg.Fsync {
		if err := tmpFd.Sync(); err != nil {
			tmpFd.Close()
			return written, err
		}
	}
	return written, tmpFd.Close()
}

// streamCopy copies the file content in bounded chunks, re-checking the
// cancel token and the no-space stop between chunks so mid-file
// cancellation is observable even on the in-kernel fast paths.
func (ex *executor) streamCopy(ctx context.Context, item Item, tmpFd *os.File) (int64, error) {
	if item.Size == 0 {
		return 0, nil
	}

	var written int64
	for offset := int64(0); offset < item.Size; offset += copyChunkSize {
		if err := ctx.Err(); err != nil {
			return written, copyerr.New(copyerr.CodeCancelled, item.Src, err)
		}
		if ex.noSpace() {
			return written, copyerr.New(copyerr.CodeNoSpace, item.Dst, syscall.ENOSPC)
		}

		length := item.Size - offset
		if length > copyChunkSize {
			length = copyChunkSize
		}

		result, err := platform.CopyFile(platform.CopyFileParams{
			SrcPath:   item.Src,
			DstFd:     tmpFd,
			SrcOffset: offset,
			SrcSize:   item.Size,
			Length:    length,
		})
		written += result.BytesWritten
		ex.stats.AddBytesCopied(result.BytesWritten)
		if err != nil {
			return written, err
		}
		ex.progress()
	}
	return written, nil
}

// publish renames the temp file onto the destination. Copy-where-absent
// uses a no-clobber rename so a destination created inside the TOCTOU
// window is detected; overwrite uses a plain rename so readers observe
// either the old or the new file, never absence.
func (ex *executor) publish(tmpPath, dst string, dec Decision) (Action, error) {
	switch dec.Action {
	case ActionCopy:
		err := platform.RenameNoReplace(tmpPath, platform.LongPath(dst))
		if err == nil {
			return ActionCopy, nil
		}
		if errors.Is(err, fs.ErrExist) || errors.Is(err, syscall.EEXIST) {
			switch ex.cfg.OnConflict {
			case Skip, UpdateNewer:
				return ActionSkip, nil
			case Overwrite:
				return ActionOverwrite, os.Rename(tmpPath, platform.LongPath(dst))
			default:
				return ActionFail, copyerr.New(copyerr.CodeAlreadyExists, dst, err)
			}
		}
		return ActionFail, err

	case ActionOverwrite, ActionUpdate:
		if err := os.Rename(tmpPath, platform.LongPath(dst)); err != nil {
			return ActionFail, err
		}
		return dec.Action, nil

	default:
		return ActionFail, copyerr.New(copyerr.CodeInternal, dst, fmt.Errorf("publish called with action %d", dec.Action))
	}
}

// placeSymlink replicates a symlink with its stored target text, never
// resolving it. Overwrite replaces via rename of a freshly-created link so
// the swap is atomic and transfers the source's type.
func (ex *executor) placeSymlink(item Item, dec Decision) (Action, error) {
	switch dec.Action {
	case ActionCopy:
		err := os.Symlink(item.LinkTarget, item.Dst)
		if err == nil {
			return ActionCopy, nil
		}
		if errors.Is(err, fs.ErrExist) {
			// Created behind our back since the policy check.
			switch ex.cfg.OnConflict {
			case Skip, UpdateNewer:
				return ActionSkip, nil
			case Overwrite:
				return ex.replaceSymlink(item)
			default:
				return ActionFail, copyerr.New(copyerr.CodeAlreadyExists, item.Dst, err)
			}
		}
		return ActionFail, err

	case ActionOverwrite:
		return ex.replaceSymlink(item)

	default:
		return ActionFail, copyerr.New(copyerr.CodeInternal, item.Dst, fmt.Errorf("placeSymlink called with action %d", dec.Action))
	}
}

func (ex *executor) replaceSymlink(item Item) (Action, error) {
	dir := filepath.Dir(item.Dst)
	tmpPath := tmpName(dir, filepath.Base(item.Dst))

	RegisterTmp(tmpPath)
	defer DeregisterTmp(tmpPath)

	if err := os.Symlink(item.LinkTarget, tmpPath); err != nil {
		return ActionFail, err
	}
	if err := os.Rename(tmpPath, item.Dst); err != nil {
		_ = os.Remove(tmpPath)
		return ActionFail, err
	}
	return ActionOverwrite, nil
}

// syncPath fsyncs an already-written file by path (reflink fast path has no
// open descriptor to sync).
func syncPath(path string) error {
	fd, err := os.Open(path)
	if err != nil {
		return err
	}
	if err := fd.Sync(); err != nil {
		fd.Close()
		return err
	}
	return fd.Close()
}
