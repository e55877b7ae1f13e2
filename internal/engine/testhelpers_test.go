package engine

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/bamsammich/ferry/internal/copyerr"
	"github.com/bamsammich/ferry/internal/stats"
)

// newTestCollector is a shorthand for unit tests that drive the executor
// directly.
func newTestCollector() *stats.Collector {
	return stats.NewCollector()
}

// createTestTree populates root with a standard test tree:
//
//	a.txt             (10 bytes)
//	b.bin             (1 MiB)
//	c.txt             (empty)
//	sub/mid.txt       (19 bytes)
//	sub/deep/leaf.txt (17 bytes)
//	link.txt          → a.txt (symlink)
func createTestTree(t *testing.T, root string) {
	t.Helper()

	require.NoError(t, os.MkdirAll(filepath.Join(root, "sub", "deep"), 0o755))

	require.NoError(t, os.WriteFile(filepath.Join(root, "a.txt"), []byte("aaaaaaaaaa"), 0o644))

	big := make([]byte, 1<<20)
	for i := range big {
		big[i] = byte(i % 251)
	}
	require.NoError(t, os.WriteFile(filepath.Join(root, "b.bin"), big, 0o644))

	require.NoError(t, os.WriteFile(filepath.Join(root, "c.txt"), nil, 0o644))

	require.NoError(t, os.WriteFile(
		filepath.Join(root, "sub", "mid.txt"),
		[]byte("middle file content"),
		0o644,
	))
	require.NoError(t, os.WriteFile(
		filepath.Join(root, "sub", "deep", "leaf.txt"),
		[]byte("leaf file content"),
		0o644,
	))

	require.NoError(t, os.Symlink("a.txt", filepath.Join(root, "link.txt")))
}

// readFile fails the test on error.
func readFile(t *testing.T, path string) []byte {
	t.Helper()
	data, err := os.ReadFile(path)
	require.NoError(t, err)
	return data
}

// copyerrCode extracts the taxonomy code carried by err.
func copyerrCode(t *testing.T, err error) string {
	t.Helper()
	var ce *copyerr.Error
	require.ErrorAs(t, err, &ce)
	return string(ce.Code)
}

// defaultTestConfig returns the library defaults with a small worker pool
// and the reflink fast path disabled so tests exercise the streaming
// placement protocol deterministically.
func defaultTestConfig() Config {
	cfg := DefaultConfig()
	cfg.Parallel = 4
	cfg.Reflink = false
	return cfg
}
