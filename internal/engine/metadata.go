package engine

import (
	"log/slog"
	"os"

	"github.com/bamsammich/ferry/internal/platform"
)

// applyFileMetadata transfers mode bits, timestamps, and platform
// attributes onto the final (renamed) destination. Timestamps are set on
// the path, not the temp fd: some filesystems reset times on rename.
func (ex *executor) applyFileMetadata(item Item) error {
	if item.Kind == KindSymlink {
		// Links carry no mode bits worth copying, and their timestamps are
		// not preserved.
		return nil
	}

	if ex.cfg.PreservePermissions {
		if err := os.Chmod(platform.LongPath(item.Dst), item.Mode.Perm()); err != nil {
			return err
		}
	}

	if ex.cfg.PreserveTimestamps {
		if err := setFileTimes(item.Dst, item.AccTime, item.ModTime); err != nil {
			return err
		}
	}

	if ex.cfg.PreserveAttributes {
		if err := platform.CopyAttributes(item.Src, item.Dst); err != nil {
			// Attribute bits are best-effort everywhere.
			slog.Debug("copy attributes", "dst", item.Dst, "error", err)
		}
	}

	return nil
}

// applyDirMetadata applies deferred directory metadata deepest-first, after
// all children are placed. A source directory with mode 0500 would
// otherwise block its own contents from being written.
func (ex *executor) applyDirMetadata(dirs []appliedDir) {
	for i := len(dirs) - 1; i >= 0; i-- {
		item := dirs[i].item

		if ex.cfg.PreservePermissions {
			if err := os.Chmod(platform.LongPath(item.Dst), item.Mode.Perm()); err != nil {
				ex.warnf("set permissions on %s: %v", item.Dst, err)
				continue
			}
		}
		if ex.cfg.PreserveTimestamps {
			if err := setFileTimes(item.Dst, item.AccTime, item.ModTime); err != nil {
				ex.warnf("set times on %s: %v", item.Dst, err)
			}
		}
		if ex.cfg.PreserveAttributes {
			if err := platform.CopyAttributes(item.Src, item.Dst); err != nil {
				slog.Debug("copy attributes", "dst", item.Dst, "error", err)
			}
		}
	}
}
