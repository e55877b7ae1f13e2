package engine

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/bamsammich/ferry/internal/copyerr"
	"github.com/bamsammich/ferry/internal/filter"
)

func TestRun_SymlinkLoopCopiedVerbatim(t *testing.T) {
	dir := t.TempDir()
	src := filepath.Join(dir, "src")
	dst := filepath.Join(dir, "dst")
	require.NoError(t, os.MkdirAll(filepath.Join(src, "d"), 0o755))
	require.NoError(t, os.Symlink("..", filepath.Join(src, "d", "loop")))

	result := Run(context.Background(), src, dst, defaultTestConfig())
	require.NoError(t, result.Err)

	// The link is replicated, never followed: no infinite descent.
	target, err := os.Readlink(filepath.Join(dst, "d", "loop"))
	require.NoError(t, err)
	assert.Equal(t, "..", target)
	assert.Equal(t, int64(1), result.Stats.SymlinksCopied)
}

func TestRun_BlockEscapingSymlinks(t *testing.T) {
	dir := t.TempDir()
	src := filepath.Join(dir, "src")
	dst := filepath.Join(dir, "dst")
	require.NoError(t, os.MkdirAll(src, 0o755))
	require.NoError(t, os.WriteFile(filepath.Join(src, "f"), []byte("ok"), 0o644))
	require.NoError(t, os.Symlink("../../etc/passwd", filepath.Join(src, "escape")))

	cfg := defaultTestConfig()
	cfg.BlockEscapingSymlinks = true
	result := Run(context.Background(), src, dst, cfg)

	require.Error(t, result.Err)
	assert.Equal(t, "partial_copy", copyerrCode(t, result.Err))
	require.Len(t, result.Failures, 1)
	assert.Equal(t, copyerr.CodeInvalidInput, result.Failures[0].Code)

	// The honest file still landed; the escaping link did not.
	assert.Equal(t, []byte("ok"), readFile(t, filepath.Join(dst, "f")))
	_, err := os.Lstat(filepath.Join(dst, "escape"))
	assert.True(t, os.IsNotExist(err))
}

func TestRun_EscapingSymlinkCopiedByDefault(t *testing.T) {
	dir := t.TempDir()
	src := filepath.Join(dir, "src")
	dst := filepath.Join(dir, "dst")
	require.NoError(t, os.MkdirAll(src, 0o755))
	require.NoError(t, os.Symlink("../outside", filepath.Join(src, "escape")))

	result := Run(context.Background(), src, dst, defaultTestConfig())
	require.NoError(t, result.Err)

	target, err := os.Readlink(filepath.Join(dst, "escape"))
	require.NoError(t, err)
	assert.Equal(t, "../outside", target)
}

func TestRun_MaxDepth(t *testing.T) {
	dir := t.TempDir()
	src := filepath.Join(dir, "src")
	dst := filepath.Join(dir, "dst")
	require.NoError(t, os.MkdirAll(filepath.Join(src, "l1", "l2"), 0o755))
	require.NoError(t, os.WriteFile(filepath.Join(src, "root.txt"), []byte("0"), 0o644))
	require.NoError(t, os.WriteFile(filepath.Join(src, "l1", "one.txt"), []byte("1"), 0o644))
	require.NoError(t, os.WriteFile(filepath.Join(src, "l1", "l2", "two.txt"), []byte("2"), 0o644))

	cfg := defaultTestConfig()
	cfg.MaxDepth = 1
	result := Run(context.Background(), src, dst, cfg)
	require.NoError(t, result.Err)

	// Depth 1 reaches l1 and its files; l2 is beyond the cap and simply
	// not emitted.
	assert.FileExists(t, filepath.Join(dst, "root.txt"))
	assert.FileExists(t, filepath.Join(dst, "l1", "one.txt"))
	assert.NoDirExists(t, filepath.Join(dst, "l1", "l2"))
}

func TestRun_FilterExcludes(t *testing.T) {
	dir := t.TempDir()
	src := filepath.Join(dir, "src")
	dst := filepath.Join(dir, "dst")
	require.NoError(t, os.MkdirAll(src, 0o755))
	require.NoError(t, os.WriteFile(filepath.Join(src, "keep.txt"), []byte("k"), 0o644))
	require.NoError(t, os.WriteFile(filepath.Join(src, "drop.log"), []byte("d"), 0o644))

	chain := filter.NewChain()
	require.NoError(t, chain.AddExclude("*.log"))

	cfg := defaultTestConfig()
	cfg.Filter = chain
	result := Run(context.Background(), src, dst, cfg)
	require.NoError(t, result.Err)

	assert.FileExists(t, filepath.Join(dst, "keep.txt"))
	_, err := os.Lstat(filepath.Join(dst, "drop.log"))
	assert.True(t, os.IsNotExist(err))
	assert.Equal(t, int64(1), result.Stats.FilesCopied)
}

func TestRun_PermissionDeniedIsPerItem(t *testing.T) {
	if os.Getuid() == 0 {
		t.Skip("root ignores permission bits")
	}

	dir := t.TempDir()
	src := filepath.Join(dir, "src")
	dst := filepath.Join(dir, "dst")
	require.NoError(t, os.MkdirAll(filepath.Join(src, "locked"), 0o755))
	require.NoError(t, os.WriteFile(filepath.Join(src, "open.txt"), []byte("ok"), 0o644))
	require.NoError(t, os.WriteFile(filepath.Join(src, "locked", "secret"), []byte("s"), 0o644))
	require.NoError(t, os.Chmod(filepath.Join(src, "locked"), 0o000))
	t.Cleanup(func() {
		_ = os.Chmod(filepath.Join(src, "locked"), 0o755)
		_ = os.Chmod(filepath.Join(dst, "locked"), 0o755)
	})

	result := Run(context.Background(), src, dst, defaultTestConfig())

	// The readable file copies; the unreadable directory is one failure.
	require.Error(t, result.Err)
	assert.Equal(t, "partial_copy", copyerrCode(t, result.Err))
	assert.FileExists(t, filepath.Join(dst, "open.txt"))
	require.NotEmpty(t, result.Failures)
	assert.Equal(t, copyerr.CodePermissionDenied, result.Failures[0].Code)
}

func TestEscapes(t *testing.T) {
	root := filepath.Join(string(filepath.Separator), "data", "tree")
	linkDir := filepath.Join(root, "sub")

	cases := []struct {
		target string
		want   bool
	}{
		{"..", false},              // resolves to the root itself
		{"../..", true},            // resolves above the root
		{"../../other", true},      // sibling of the root
		{"file.txt", false},        // inside link dir
		{"../file.txt", false},     // inside root
		{"a/../../file", false},    // collapses to root/file
		{"a/../../../file", true},  // collapses above root
		{"/data/tree/sub", false},  // absolute inside
		{"/etc/passwd", true},      // absolute outside
	}
	for _, tc := range cases {
		assert.Equal(t, tc.want, escapes(root, linkDir, tc.target), "target %q", tc.target)
	}
}

func TestAncestorStack_SiblingIdentityNotLoop(t *testing.T) {
	// Two sibling directories never co-occur on the stack, so a shared
	// identity only trips the detector for true ancestors. The siblings
	// here have distinct identities (a shared one needs a bind mount); the
	// test checks that walking one sibling after the other records no loop.
	dir := t.TempDir()
	src := filepath.Join(dir, "src")
	dst := filepath.Join(dir, "dst")
	require.NoError(t, os.MkdirAll(filepath.Join(src, "x"), 0o755))
	require.NoError(t, os.MkdirAll(filepath.Join(src, "y"), 0o755))
	require.NoError(t, os.WriteFile(filepath.Join(src, "x", "f"), []byte("x"), 0o644))
	require.NoError(t, os.WriteFile(filepath.Join(src, "y", "f"), []byte("y"), 0o644))

	result := Run(context.Background(), src, dst, defaultTestConfig())
	require.NoError(t, result.Err)
	assert.Equal(t, int64(2), result.Stats.FilesCopied)
	assert.Equal(t, int64(0), result.Stats.Errors)
}
