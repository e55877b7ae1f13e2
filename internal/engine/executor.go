package engine

import (
	"context"
	"fmt"
	"path/filepath"
	"sync"
	"sync/atomic"
	"time"

	"github.com/bamsammich/ferry/internal/copyerr"
	"github.com/bamsammich/ferry/internal/event"
	"github.com/bamsammich/ferry/internal/stats"
)

// maxRecordedFailures bounds the failure list; the errors counter keeps
// the true total.
const maxRecordedFailures = 100

// executor owns the worker pool, the stats accumulator, and the failure
// list for one run. Each item is owned by exactly one worker from dispatch
// to completion.
type executor struct {
	cfg     *Config
	stats   *stats.Collector
	journal *Journal
	dstRoot string

	noSpaceHit atomic.Bool
	remaining  atomic.Int64

	mu       sync.Mutex
	failures []Failure
	dropped  int
}

// noSpace reports whether any worker has observed an out-of-space error.
// Once set the executor stops starting new placements; in-flight items
// finish to a clean boundary (rename done or temp unlinked).
func (ex *executor) noSpace() bool { return ex.noSpaceHit.Load() }

// counting reports whether items are only being counted, not executed.
func (ex *executor) counting() bool { return ex.noSpaceHit.Load() }

func (ex *executor) recordFailure(src, dst string, err error) {
	ce := copyerr.Wrap(src, err)
	ex.stats.AddErrors(1)

	if ce.Code == copyerr.CodeNoSpace {
		ex.noSpaceHit.Store(true)
		// The failed item is outstanding work: a resume re-copies it.
		ex.remaining.Add(1)
	}

	ex.mu.Lock()
	if len(ex.failures) < maxRecordedFailures {
		ex.failures = append(ex.failures, Failure{Src: src, Dst: dst, Code: ce.Code, Err: ce})
	} else {
		ex.dropped++
	}
	ex.mu.Unlock()

	ex.emit(event.Event{
		Type:      event.ExecuteItem,
		Timestamp: time.Now(),
		Src:       src,
		Dst:       dst,
		Action:    event.ActionFail,
		ErrorCode: string(ce.Code),
	})
	ex.verbose(ItemResult{Src: src, Dst: dst, Action: event.ActionFail, Err: ce})
}

// runWorkers consumes items until the walker closes the channel. Workers
// block only on the queue read and on filesystem syscalls; the cancel
// token is checked before each item and between chunks inside placements.
func (ex *executor) runWorkers(ctx context.Context, items <-chan Item) {
	var wg sync.WaitGroup
	for i := 0; i < ex.cfg.Parallel; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for item := range items {
				if ctx.Err() != nil {
					// Drain without executing so the walker never blocks.
					continue
				}
				if ex.noSpace() {
					ex.remaining.Add(1)
					continue
				}
				ex.process(ctx, item)
			}
		}()
	}
	wg.Wait()
}

func (ex *executor) process(ctx context.Context, item Item) {
	if item.Kind == KindSymlink && item.Escaping {
		if ex.cfg.BlockEscapingSymlinks {
			ex.recordFailure(item.Src, item.Dst,
				copyerr.New(copyerr.CodeInvalidInput, item.Src,
					fmt.Errorf("symlink target %q resolves outside the source root", item.LinkTarget)))
			return
		}
		ex.warnf("symlink %s -> %s resolves outside the source root", item.Src, item.LinkTarget)
	}

	if ex.journal != nil && item.Kind == KindFile && ex.cfg.OnConflict == Skip {
		if ex.journal.Done(ex.relDst(item), item.Size, item.ModTime.UnixNano()) {
			ex.finishSkip(item)
			return
		}
	}

	dec := decide(&item, ex.cfg.OnConflict)
	switch dec.Action {
	case ActionFail:
		ex.recordFailure(item.Src, item.Dst, copyerr.New(dec.Code, item.Dst, nil))
		return
	case ActionSkip:
		ex.finishSkip(item)
		return
	}

	var (
		written int64
		action  = dec.Action
		err     error
	)
	switch item.Kind {
	case KindFile:
		written, action, err = ex.placeFile(ctx, item, dec)
	case KindSymlink:
		action, err = ex.placeSymlink(item, dec)
	default:
		err = copyerr.New(copyerr.CodeInternal, item.Src, fmt.Errorf("unexpected item kind %v", item.Kind))
	}

	switch {
	case err == nil && action == ActionSkip:
		// Lost a no-clobber race under Skip: the destination appeared
		// between the policy check and the rename.
		ex.finishSkip(item)
		return
	case err != nil:
		if copyerr.IsCancelled(err) {
			return
		}
		if ex.noSpace() {
			// The placement aborted because the pool is stopping; the item
			// itself did not fail.
			ex.remaining.Add(1)
			return
		}
		ex.recordFailure(item.Src, item.Dst, err)
		return
	}

	if metaErr := ex.applyFileMetadata(item); metaErr != nil {
		ex.recordFailure(item.Src, item.Dst, metaErr)
	}

	// Bytes are accumulated chunk-by-chunk inside the placement.
	switch item.Kind {
	case KindFile:
		ex.stats.AddFilesCopied(1)
	case KindSymlink:
		ex.stats.AddSymlinksCopied(1)
	}
	if ex.journal != nil && item.Kind == KindFile {
		ex.journal.Record(ex.relDst(item), item.Size, item.ModTime.UnixNano())
	}

	ex.emit(event.Event{
		Type:      event.ExecuteItem,
		Timestamp: time.Now(),
		Src:       item.Src,
		Dst:       item.Dst,
		Item:      item.Kind.String(),
		Action:    action.Event(),
		Bytes:     written,
	})
	ex.verbose(ItemResult{Src: item.Src, Dst: item.Dst, Kind: item.Kind, Action: action.Event(), Bytes: written})
	ex.progress()
}

func (ex *executor) finishSkip(item Item) {
	ex.stats.AddFilesSkipped(1)
	ex.emit(event.Event{
		Type:      event.ExecuteItem,
		Timestamp: time.Now(),
		Src:       item.Src,
		Dst:       item.Dst,
		Item:      item.Kind.String(),
		Action:    event.ActionSkip,
	})
	ex.verbose(ItemResult{Src: item.Src, Dst: item.Dst, Kind: item.Kind, Action: event.ActionSkip})
}

func (ex *executor) emit(ev event.Event) {
	if ex.cfg.Events != nil {
		ex.cfg.Events <- ev
	}
}

func (ex *executor) verbose(r ItemResult) {
	if ex.cfg.Verbose != nil {
		ex.cfg.Verbose(r)
	}
}

func (ex *executor) progress() {
	if ex.cfg.Progress != nil {
		ex.cfg.Progress(ex.stats.BytesCopied())
	}
}

func (ex *executor) warnf(format string, args ...any) {
	if ex.cfg.Warn != nil {
		ex.cfg.Warn(fmt.Sprintf(format, args...))
	}
}

// relDst keys journal rows by destination-relative path so the journal
// stays valid across invocations from different working directories.
func (ex *executor) relDst(item Item) string {
	rel, err := filepath.Rel(ex.dstRoot, item.Dst)
	if err != nil {
		return item.Dst
	}
	return filepath.ToSlash(rel)
}

func (ex *executor) snapshotFailures() ([]Failure, int) {
	ex.mu.Lock()
	defer ex.mu.Unlock()
	out := make([]Failure, len(ex.failures))
	copy(out, ex.failures)
	return out, ex.dropped
}
