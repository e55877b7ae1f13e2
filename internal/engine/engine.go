// Package engine implements the core of ferry: a parallel, crash-safe,
// resumable file-tree copier. The pipeline is walker → work queue →
// worker pool, sharing one cancellation context and one stats collector.
package engine

import (
	"context"
	"fmt"
	"io/fs"
	"log/slog"
	"os"
	"path/filepath"
	"time"

	"github.com/bamsammich/ferry/internal/copyerr"
	"github.com/bamsammich/ferry/internal/event"
	"github.com/bamsammich/ferry/internal/filter"
	"github.com/bamsammich/ferry/internal/stats"
)

// Config describes one copy operation. The zero value is not useful; start
// from DefaultConfig.
type Config struct {
	// Parallel is the worker count (default 16).
	Parallel int
	// OnConflict selects the policy when the destination exists.
	OnConflict ConflictMode
	// Fsync flushes each file's data to disk before the publish rename.
	Fsync bool
	// PreservePermissions copies mode bits onto placed entries.
	PreservePermissions bool
	// PreserveTimestamps copies mtime/atime onto placed entries.
	PreserveTimestamps bool
	// PreserveAttributes copies platform attribute bits (Windows).
	PreserveAttributes bool
	// MaxDepth caps directory depth, measured in directory transitions
	// from the source root. Zero means unlimited.
	MaxDepth int
	// BlockEscapingSymlinks fails symlinks whose target resolves outside
	// the source root instead of copying them verbatim.
	BlockEscapingSymlinks bool
	// Reflink attempts an in-kernel copy-on-write clone before streaming.
	Reflink bool
	// Journal enables the SQLite resume journal.
	Journal bool
	// Filter optionally prunes items before they are emitted.
	Filter *filter.Chain

	// Events receives typed planner/executor records. The caller must
	// drain the channel; sends block when it is full.
	Events chan<- event.Event
	// Verbose is invoked once per placed/skipped/failed item. Called
	// concurrently from worker goroutines; must be safe for concurrent use.
	Verbose func(ItemResult)
	// Progress is invoked with cumulative bytes copied. Same concurrency
	// caveat as Verbose.
	Progress func(int64)
	// Warn receives non-fatal diagnostics.
	Warn func(string)

	// Stats is the shared collector; one is created when nil.
	Stats *stats.Collector
}

// DefaultConfig returns the defaults documented in the operation contract.
func DefaultConfig() Config {
	return Config{
		Parallel:            16,
		OnConflict:          Skip,
		Fsync:               true,
		PreservePermissions: true,
		PreserveTimestamps:  true,
		PreserveAttributes:  true,
		Reflink:             true,
	}
}

// ItemResult is the payload handed to the Verbose callback.
type ItemResult struct {
	Src    string
	Dst    string
	Kind   Kind
	Action event.Action
	Bytes  int64
	Err    error
}

// Result is the outcome of a copy operation. Err is nil on full success;
// otherwise it is a *copyerr.Error whose Code distinguishes partial_copy,
// cancelled, no_space, and the terminal input errors. Stats is always
// populated, including on terminal errors.
type Result struct {
	Stats     stats.Snapshot
	Failures  []Failure
	Remaining int64 // after a no-space stop: the failed item plus the items never started
	Err       error
}

// Run executes a copy operation, blocking until complete. Cancellation is
// cooperative through ctx: in-flight items finish to a clean boundary
// (published or temp unlinked) and already-placed files are never rolled
// back.
func Run(ctx context.Context, src, dst string, cfg Config) Result {
	applyDefaults(&cfg)
	collector := cfg.Stats

	srcInfo, err := os.Lstat(src)
	if err != nil {
		return Result{
			Stats: collector.Snapshot(),
			Err:   copyerr.New(copyerr.CodeSourceNotFound, src, err),
		}
	}

	if cfg.Events != nil {
		cfg.Events <- event.Event{
			Type:      event.EffectiveConfig,
			Timestamp: time.Now(),
			Config:    configPayload(src, dst, &cfg, false),
		}
	}

	ex := &executor{cfg: &cfg, stats: collector}

	if cfg.Journal && srcInfo.IsDir() {
		j, jErr := OpenJournal(src, dst)
		if jErr != nil {
			slog.Warn("resume journal unavailable", "error", jErr)
		} else {
			ex.journal = j
			defer j.Close()
		}
	}

	defer CleanupTmpFiles()

	if srcInfo.IsDir() {
		return ex.runTree(ctx, src, dst, srcInfo)
	}
	return ex.runSingle(ctx, src, dst, srcInfo)
}

func applyDefaults(cfg *Config) {
	if cfg.Parallel <= 0 {
		cfg.Parallel = 16
	}
	if cfg.Stats == nil {
		cfg.Stats = stats.NewCollector()
	}
}

// runTree copies a directory tree. Directories are created synchronously
// by the walker; files and symlinks flow through the bounded work queue to
// the pool.
func (ex *executor) runTree(ctx context.Context, src, dst string, srcInfo fs.FileInfo) Result {
	if err := os.MkdirAll(dst, srcInfo.Mode().Perm()|0o700); err != nil {
		return Result{Stats: ex.stats.Snapshot(), Err: copyerr.Wrap(dst, err)}
	}

	ex.dstRoot = dst
	items := make(chan Item, ex.cfg.Parallel*2)
	w := &walker{srcRoot: src, dstRoot: dst, ex: ex}

	go w.run(ctx, srcInfo, items)
	ex.runWorkers(ctx, items)

	if ctx.Err() == nil {
		ex.applyDirMetadata(w.dirs)
	}

	if ex.journal != nil {
		if err := ex.journal.Flush(); err != nil {
			slog.Warn("flush resume journal", "error", err)
		}
	}

	return ex.finish(ctx)
}

// runSingle copies one file or symlink. When dst is an existing directory,
// the entry is copied into it under its source basename.
func (ex *executor) runSingle(ctx context.Context, src, dst string, srcInfo fs.FileInfo) Result {
	item, err := singleItem(src, dst, srcInfo)
	if err != nil {
		return Result{Stats: ex.stats.Snapshot(), Err: err}
	}
	item.AccTime = atimeOf(srcInfo)

	if err := os.MkdirAll(filepath.Dir(item.Dst), 0o755); err != nil {
		return Result{Stats: ex.stats.Snapshot(), Err: copyerr.Wrap(item.Dst, err)}
	}
	if item.Kind == KindFile {
		ex.stats.AddFilesTotal(1)
		ex.stats.AddBytesTotal(item.Size)
	}

	items := make(chan Item, 1)
	items <- item
	close(items)
	ex.runWorkers(ctx, items)

	return ex.finish(ctx)
}

// finish synthesizes the outcome from the run's terminal state. Terminal
// errors carry the stats snapshot at the moment of termination.
func (ex *executor) finish(ctx context.Context) Result {
	snap := ex.stats.Snapshot()
	failures, dropped := ex.snapshotFailures()

	res := Result{Stats: snap, Failures: failures}

	switch {
	case ctx.Err() != nil:
		res.Err = copyerr.New(copyerr.CodeCancelled, "", context.Cause(ctx))
	case ex.noSpace():
		res.Remaining = ex.remaining.Load()
		res.Err = copyerr.New(copyerr.CodeNoSpace, "",
			fmt.Errorf("%d copied, %d remaining", snap.FilesCopied, res.Remaining))
	case snap.Errors > 0:
		total := int(snap.Errors)
		res.Err = copyerr.New(copyerr.CodePartialCopy, "",
			fmt.Errorf("%d of %d items failed", total, snap.FilesTotal))
		if dropped > 0 {
			slog.Debug("failure list truncated", "recorded", len(failures), "dropped", dropped)
		}
	}

	return res
}

func configPayload(src, dst string, cfg *Config, dryRun bool) *event.ConfigPayload {
	return &event.ConfigPayload{
		Source:     src,
		Dest:       dst,
		Parallel:   cfg.Parallel,
		OnConflict: cfg.OnConflict.String(),
		Fsync:      cfg.Fsync,
		Reflink:    cfg.Reflink,
		MaxDepth:   cfg.MaxDepth,
		DryRun:     dryRun,
	}
}
