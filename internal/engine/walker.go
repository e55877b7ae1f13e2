package engine

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/bamsammich/ferry/internal/copyerr"
	"github.com/bamsammich/ferry/internal/event"
	"github.com/bamsammich/ferry/internal/platform"
)

// ancestor is one frame of the walker's cycle-detection stack: the
// canonical identity of a directory on the current path from the root.
// The stack is per-walk, never shared; sibling directories that happen to
// share an identity (several symlinks to one real directory) are not loops.
type ancestor struct {
	id   DevIno
	path string
}

// walker streams the source tree in pre-order. It never follows symlinks:
// entry types come from lstat, and links are emitted as symlink items with
// their stored target text. Directories are created synchronously here, so
// a child item is never dispatched before its parent exists on disk.
type walker struct {
	srcRoot string
	dstRoot string
	ex      *executor
	stack   []ancestor
	dirs    []appliedDir
}

// appliedDir remembers a created/accepted directory so its metadata can be
// applied after all children are placed. Restrictive source permissions
// must not prevent writing the directory's contents.
type appliedDir struct {
	item Item
}

func (w *walker) run(ctx context.Context, rootInfo fs.FileInfo, out chan<- Item) {
	defer close(out)

	w.recordDir(Item{
		Src:     w.srcRoot,
		Dst:     w.dstRoot,
		Kind:    KindDir,
		Mode:    rootInfo.Mode(),
		ModTime: rootInfo.ModTime(),
		AccTime: atimeOf(rootInfo),
	})
	w.walkDir(ctx, w.srcRoot, w.dstRoot, rootInfo, 0, out)
}

func (w *walker) walkDir(ctx context.Context, srcDir, dstDir string, info fs.FileInfo, depth int, out chan<- Item) {
	if id, ok := identityOf(srcDir, info); ok {
		for _, a := range w.stack {
			if a.id == id {
				w.ex.recordFailure(srcDir, dstDir,
					copyerr.New(copyerr.CodeSymlinkLoop, srcDir, fmt.Errorf("already on ancestor chain at %s", a.path)))
				return
			}
		}
		w.stack = append(w.stack, ancestor{id: id, path: srcDir})
		defer func() { w.stack = w.stack[:len(w.stack)-1] }()
	}

	entries, err := os.ReadDir(srcDir)
	if err != nil {
		w.ex.recordFailure(srcDir, dstDir, copyerr.Wrap(srcDir, err))
		return
	}

	for _, entry := range entries {
		if w.halted(ctx) {
			return
		}

		srcPath := filepath.Join(srcDir, entry.Name())
		dstPath := filepath.Join(dstDir, entry.Name())

		entryInfo, err := entry.Info()
		if err != nil {
			// Entry vanished between readdir and lstat.
			w.ex.recordFailure(srcPath, dstPath, copyerr.Wrap(srcPath, err))
			continue
		}

		rel := w.rel(srcPath)
		mode := entryInfo.Mode()

		switch {
		case mode.IsDir():
			if w.ex.cfg.MaxDepth > 0 && depth+1 > w.ex.cfg.MaxDepth {
				continue
			}
			if !w.ex.cfg.Filter.Match(rel, true, 0) {
				continue
			}
			if !w.ex.counting() {
				if err := w.ensureDir(srcPath, dstPath, entryInfo); err != nil {
					w.ex.recordFailure(srcPath, dstPath, copyerr.Wrap(srcPath, err))
					continue
				}
			}
			w.walkDir(ctx, srcPath, dstPath, entryInfo, depth+1, out)

		case mode&fs.ModeSymlink != 0:
			if !w.ex.cfg.Filter.Match(rel, false, 0) {
				continue
			}
			target, err := os.Readlink(srcPath)
			if err != nil {
				w.ex.recordFailure(srcPath, dstPath, copyerr.Wrap(srcPath, err))
				continue
			}
			w.send(ctx, out, Item{
				Src:        srcPath,
				Dst:        dstPath,
				Kind:       KindSymlink,
				Mode:       mode,
				ModTime:    entryInfo.ModTime(),
				AccTime:    atimeOf(entryInfo),
				LinkTarget: target,
				Depth:      depth + 1,
				Escaping:   escapes(w.srcRoot, srcDir, target),
			})

		case mode.IsRegular():
			if !w.ex.cfg.Filter.Match(rel, false, entryInfo.Size()) {
				continue
			}
			w.ex.stats.AddFilesTotal(1)
			w.ex.stats.AddBytesTotal(entryInfo.Size())
			w.send(ctx, out, Item{
				Src:     srcPath,
				Dst:     dstPath,
				Kind:    KindFile,
				Size:    entryInfo.Size(),
				Mode:    mode,
				ModTime: entryInfo.ModTime(),
				AccTime: atimeOf(entryInfo),
				Depth:   depth + 1,
			})

		default:
			// Sockets, devices, FIFOs.
			slog.Debug("skipping special file", "path", srcPath, "mode", mode.String())
		}
	}
}

// ensureDir creates dstPath if absent and accepts it if it is already a
// directory. The created mode is widened with owner-write/search so
// children can be placed; the source mode is applied in the deferred
// metadata pass.
func (w *walker) ensureDir(srcPath, dstPath string, info fs.FileInfo) error {
	action := event.ActionSkip

	dstInfo, err := os.Lstat(dstPath)
	switch {
	case err == nil:
		if !dstInfo.IsDir() {
			return copyerr.New(copyerr.CodeAlreadyExists, dstPath, errors.New("destination exists and is not a directory"))
		}
	case errors.Is(err, fs.ErrNotExist):
		if mkErr := os.Mkdir(platform.LongPath(dstPath), info.Mode().Perm()|0o700); mkErr != nil {
			// Lost a race with a concurrent invocation; a directory is fine.
			if st, stErr := os.Lstat(dstPath); stErr != nil || !st.IsDir() {
				return mkErr
			}
		} else {
			w.ex.stats.AddDirsCreated(1)
			action = event.ActionCopy
		}
	default:
		return err
	}

	w.ex.emit(event.Event{
		Type:      event.ExecuteItem,
		Timestamp: time.Now(),
		Src:       srcPath,
		Dst:       dstPath,
		Item:      KindDir.String(),
		Action:    action,
	})

	w.recordDir(Item{
		Src:     srcPath,
		Dst:     dstPath,
		Kind:    KindDir,
		Mode:    info.Mode(),
		ModTime: info.ModTime(),
		AccTime: atimeOf(info),
	})
	return nil
}

func (w *walker) recordDir(item Item) {
	w.dirs = append(w.dirs, appliedDir{item: item})
}

// send blocks when the work queue is full; backpressure bounds memory to a
// function of parallelism, not tree size.
func (w *walker) send(ctx context.Context, out chan<- Item, item Item) {
	select {
	case out <- item:
	case <-ctx.Done():
	}
}

// halted reports whether the walk should stop entirely. Caller
// cancellation stops emission immediately; a no-space stop does NOT halt
// the walk — enumeration continues (without creating directories) so the
// remaining count reported to the caller is exact.
func (w *walker) halted(ctx context.Context) bool {
	return ctx.Err() != nil
}

func (w *walker) rel(path string) string {
	rel, err := filepath.Rel(w.srcRoot, path)
	if err != nil {
		return path
	}
	return filepath.ToSlash(rel)
}

// escapes reports whether a symlink target, resolved lexically against the
// link's containing directory, lands outside the source root. No symlink
// resolution is performed.
func escapes(root, linkDir, target string) bool {
	resolved := target
	if !filepath.IsAbs(target) {
		resolved = filepath.Join(linkDir, target)
	}
	resolved = filepath.Clean(resolved)

	rel, err := filepath.Rel(root, resolved)
	if err != nil {
		return true
	}
	return rel == ".." || strings.HasPrefix(rel, ".."+string(filepath.Separator))
}
