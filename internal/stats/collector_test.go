package stats

import (
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestCollector_ConcurrentAdds(t *testing.T) {
	c := NewCollector()

	var wg sync.WaitGroup
	for i := 0; i < 8; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for j := 0; j < 1000; j++ {
				c.AddFilesCopied(1)
				c.AddBytesCopied(10)
			}
		}()
	}
	wg.Wait()

	snap := c.Snapshot()
	assert.Equal(t, int64(8000), snap.FilesCopied)
	assert.Equal(t, int64(80000), snap.BytesCopied)
}

func TestCollector_Snapshot(t *testing.T) {
	c := NewCollector()
	c.AddFilesCopied(3)
	c.AddFilesSkipped(2)
	c.AddDirsCreated(1)
	c.AddSymlinksCopied(4)
	c.AddBytesCopied(1024)
	c.AddErrors(1)

	snap := c.Snapshot()
	assert.Equal(t, int64(3), snap.FilesCopied)
	assert.Equal(t, int64(2), snap.FilesSkipped)
	assert.Equal(t, int64(1), snap.DirsCreated)
	assert.Equal(t, int64(4), snap.SymlinksCopied)
	assert.Equal(t, int64(1024), snap.BytesCopied)
	assert.Equal(t, int64(1), snap.Errors)
	assert.Positive(t, snap.Elapsed)
}

func TestCollector_RollingSpeed(t *testing.T) {
	c := NewCollector()

	// No samples yet.
	assert.Zero(t, c.RollingSpeed(10))

	c.AddBytesCopied(1000)
	c.Tick()
	c.AddBytesCopied(3000)
	c.Tick()

	// Two samples: 1000 and 3000 bytes.
	assert.InDelta(t, 2000, c.RollingSpeed(2), 0.1)
}

func TestSnapshot_String(t *testing.T) {
	c := NewCollector()
	c.AddFilesCopied(1)
	assert.Contains(t, c.Snapshot().String(), "copied=1")
}
