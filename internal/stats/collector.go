// Package stats accumulates copy-run counters with lock-free atomics.
package stats

import (
	"fmt"
	"sync"
	"sync/atomic"
	"time"
)

const ringSize = 60

// Collector tracks counters for one copy operation. All Add methods are
// safe for concurrent use from worker goroutines.
type Collector struct {
	filesCopied    atomic.Int64
	filesSkipped   atomic.Int64
	dirsCreated    atomic.Int64
	symlinksCopied atomic.Int64
	bytesCopied    atomic.Int64
	errors         atomic.Int64
	bytesTotal     atomic.Int64
	filesTotal     atomic.Int64
	startTime      time.Time

	// Throughput ring — written only by the presenter's Tick(), not workers.
	mu         sync.Mutex
	throughput [ringSize]int64
	ringIdx    int
	ringCount  int
	lastBytes  int64
}

// NewCollector creates a Collector with startTime set to now.
func NewCollector() *Collector {
	return &Collector{startTime: time.Now()}
}

// Snapshot is a point-in-time read of all counters.
type Snapshot struct {
	FilesCopied    int64
	FilesSkipped   int64
	DirsCreated    int64
	SymlinksCopied int64
	BytesCopied    int64
	Errors         int64
	BytesTotal     int64
	FilesTotal     int64
	Elapsed        time.Duration
}

func (c *Collector) AddFilesCopied(n int64)    { c.filesCopied.Add(n) }
func (c *Collector) AddFilesSkipped(n int64)   { c.filesSkipped.Add(n) }
func (c *Collector) AddDirsCreated(n int64)    { c.dirsCreated.Add(n) }
func (c *Collector) AddSymlinksCopied(n int64) { c.symlinksCopied.Add(n) }
func (c *Collector) AddBytesCopied(n int64)    { c.bytesCopied.Add(n) }
func (c *Collector) AddErrors(n int64)         { c.errors.Add(n) }

// AddFilesTotal atomically increments the total file count (written by the
// walker as items are discovered).
func (c *Collector) AddFilesTotal(n int64) { c.filesTotal.Add(n) }

// AddBytesTotal atomically increments the total byte count.
func (c *Collector) AddBytesTotal(n int64) { c.bytesTotal.Add(n) }

// BytesCopied returns the current cumulative byte count.
func (c *Collector) BytesCopied() int64 { return c.bytesCopied.Load() }

// Snapshot returns a consistent point-in-time read of all counters.
// Counters are monotonic; a snapshot taken after the executor joins is
// final.
func (c *Collector) Snapshot() Snapshot {
	return Snapshot{
		FilesCopied:    c.filesCopied.Load(),
		FilesSkipped:   c.filesSkipped.Load(),
		DirsCreated:    c.dirsCreated.Load(),
		SymlinksCopied: c.symlinksCopied.Load(),
		BytesCopied:    c.bytesCopied.Load(),
		Errors:         c.errors.Load(),
		BytesTotal:     c.bytesTotal.Load(),
		FilesTotal:     c.filesTotal.Load(),
		Elapsed:        c.Elapsed(),
	}
}

// Tick snapshots the byte delta into the ring buffer. Called ~1/sec by the
// presenter.
func (c *Collector) Tick() {
	current := c.bytesCopied.Load()

	c.mu.Lock()
	defer c.mu.Unlock()

	c.throughput[c.ringIdx] = current - c.lastBytes
	c.lastBytes = current
	c.ringIdx = (c.ringIdx + 1) % ringSize
	if c.ringCount < ringSize {
		c.ringCount++
	}
}

// RollingSpeed returns average bytes/sec over the last n seconds of samples.
func (c *Collector) RollingSpeed(seconds int) float64 {
	c.mu.Lock()
	defer c.mu.Unlock()

	count := seconds
	if count > c.ringCount {
		count = c.ringCount
	}
	if count == 0 {
		return 0
	}
	var sum int64
	for i := 0; i < count; i++ {
		idx := (c.ringIdx - 1 - i + ringSize) % ringSize
		sum += c.throughput[idx]
	}
	return float64(sum) / float64(count)
}

// Elapsed returns time since collector creation.
func (c *Collector) Elapsed() time.Duration {
	return time.Since(c.startTime)
}

func (s Snapshot) String() string {
	return fmt.Sprintf(
		"copied=%d skipped=%d dirs=%d symlinks=%d bytes=%d errors=%d",
		s.FilesCopied, s.FilesSkipped, s.DirsCreated, s.SymlinksCopied,
		s.BytesCopied, s.Errors,
	)
}
