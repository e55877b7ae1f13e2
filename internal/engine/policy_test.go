package engine

import (
	"context"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/bamsammich/ferry/internal/copyerr"
)

func TestDecide_DestinationAbsent(t *testing.T) {
	dir := t.TempDir()
	item := &Item{Kind: KindFile, Dst: filepath.Join(dir, "missing")}

	for _, mode := range []ConflictMode{Skip, Overwrite, UpdateNewer, ErrorIfExists} {
		dec := decide(item, mode)
		assert.Equal(t, ActionCopy, dec.Action, "mode %s", mode)
	}
}

func TestDecide_DestinationPresent(t *testing.T) {
	dir := t.TempDir()
	dst := filepath.Join(dir, "f")
	require.NoError(t, os.WriteFile(dst, []byte("old"), 0o644))

	item := &Item{Kind: KindFile, Dst: dst, ModTime: time.Now()}

	assert.Equal(t, ActionSkip, decide(item, Skip).Action)
	assert.Equal(t, ActionOverwrite, decide(item, Overwrite).Action)

	dec := decide(item, ErrorIfExists)
	assert.Equal(t, ActionFail, dec.Action)
	assert.Equal(t, copyerr.CodeAlreadyExists, dec.Code)
}

func TestDecide_UpdateNewer(t *testing.T) {
	dir := t.TempDir()
	dst := filepath.Join(dir, "f")
	require.NoError(t, os.WriteFile(dst, []byte("old"), 0o644))

	dstInfo, err := os.Stat(dst)
	require.NoError(t, err)

	newer := &Item{Kind: KindFile, Dst: dst, ModTime: dstInfo.ModTime().Add(time.Second)}
	assert.Equal(t, ActionUpdate, decide(newer, UpdateNewer).Action)

	equal := &Item{Kind: KindFile, Dst: dst, ModTime: dstInfo.ModTime()}
	assert.Equal(t, ActionSkip, decide(equal, UpdateNewer).Action)

	older := &Item{Kind: KindFile, Dst: dst, ModTime: dstInfo.ModTime().Add(-time.Second)}
	assert.Equal(t, ActionSkip, decide(older, UpdateNewer).Action)
}

func TestDecide_DirectoryNeverReplaced(t *testing.T) {
	dir := t.TempDir()
	dst := filepath.Join(dir, "d")
	require.NoError(t, os.MkdirAll(dst, 0o755))

	item := &Item{Kind: KindFile, Dst: dst}
	for _, mode := range []ConflictMode{Skip, Overwrite, UpdateNewer, ErrorIfExists} {
		dec := decide(item, mode)
		assert.Equal(t, ActionFail, dec.Action, "mode %s", mode)
		assert.Equal(t, copyerr.CodeIsADirectory, dec.Code, "mode %s", mode)
	}
}

func TestRun_UpdateNewerCopiesNewerSource(t *testing.T) {
	dir := t.TempDir()
	src := filepath.Join(dir, "src")
	dst := filepath.Join(dir, "dst")
	require.NoError(t, os.MkdirAll(src, 0o755))
	require.NoError(t, os.MkdirAll(dst, 0o755))

	srcFile := filepath.Join(src, "x")
	dstFile := filepath.Join(dst, "x")
	require.NoError(t, os.WriteFile(srcFile, []byte("new content"), 0o644))
	require.NoError(t, os.WriteFile(dstFile, []byte("old content"), 0o644))

	// Source strictly newer than destination.
	base := time.Now().Add(-time.Hour)
	require.NoError(t, os.Chtimes(dstFile, base, base))
	require.NoError(t, os.Chtimes(srcFile, base.Add(time.Second), base.Add(time.Second)))

	cfg := defaultTestConfig()
	cfg.OnConflict = UpdateNewer
	result := Run(context.Background(), src, dst, cfg)
	require.NoError(t, result.Err)

	assert.Equal(t, int64(1), result.Stats.FilesCopied)
	assert.Equal(t, []byte("new content"), readFile(t, dstFile))
}

func TestRun_UpdateNewerSkipsOlderSource(t *testing.T) {
	dir := t.TempDir()
	src := filepath.Join(dir, "src")
	dst := filepath.Join(dir, "dst")
	require.NoError(t, os.MkdirAll(src, 0o755))
	require.NoError(t, os.MkdirAll(dst, 0o755))

	srcFile := filepath.Join(src, "x")
	dstFile := filepath.Join(dst, "x")
	require.NoError(t, os.WriteFile(srcFile, []byte("old content"), 0o644))
	require.NoError(t, os.WriteFile(dstFile, []byte("kept content"), 0o644))

	base := time.Now().Add(-time.Hour)
	require.NoError(t, os.Chtimes(srcFile, base, base))
	require.NoError(t, os.Chtimes(dstFile, base.Add(time.Second), base.Add(time.Second)))

	cfg := defaultTestConfig()
	cfg.OnConflict = UpdateNewer
	result := Run(context.Background(), src, dst, cfg)
	require.NoError(t, result.Err)

	assert.Equal(t, int64(0), result.Stats.FilesCopied)
	assert.Equal(t, int64(1), result.Stats.FilesSkipped)
	assert.Equal(t, []byte("kept content"), readFile(t, dstFile))
}

func TestRun_OverwriteDirectoryWithFileFails(t *testing.T) {
	dir := t.TempDir()
	src := filepath.Join(dir, "src")
	dst := filepath.Join(dir, "dst")
	require.NoError(t, os.MkdirAll(src, 0o755))
	require.NoError(t, os.MkdirAll(filepath.Join(dst, "k"), 0o755))
	require.NoError(t, os.WriteFile(filepath.Join(src, "k"), []byte("file"), 0o644))
	require.NoError(t, os.WriteFile(filepath.Join(dst, "k", "inside"), []byte("precious"), 0o644))

	cfg := defaultTestConfig()
	cfg.OnConflict = Overwrite
	result := Run(context.Background(), src, dst, cfg)

	require.Error(t, result.Err)
	assert.Equal(t, "partial_copy", copyerrCode(t, result.Err))
	require.Len(t, result.Failures, 1)
	assert.Equal(t, copyerr.CodeIsADirectory, result.Failures[0].Code)

	// The directory and its contents are untouched.
	assert.Equal(t, []byte("precious"), readFile(t, filepath.Join(dst, "k", "inside")))
}

func TestRun_ErrorModeFailsOnExisting(t *testing.T) {
	dir := t.TempDir()
	src := filepath.Join(dir, "src")
	dst := filepath.Join(dir, "dst")
	require.NoError(t, os.MkdirAll(src, 0o755))
	require.NoError(t, os.MkdirAll(dst, 0o755))
	require.NoError(t, os.WriteFile(filepath.Join(src, "x"), []byte("src"), 0o644))
	require.NoError(t, os.WriteFile(filepath.Join(dst, "x"), []byte("dst"), 0o644))

	cfg := defaultTestConfig()
	cfg.OnConflict = ErrorIfExists
	result := Run(context.Background(), src, dst, cfg)

	require.Error(t, result.Err)
	require.Len(t, result.Failures, 1)
	assert.Equal(t, copyerr.CodeAlreadyExists, result.Failures[0].Code)
	assert.Equal(t, []byte("dst"), readFile(t, filepath.Join(dst, "x")))
}

func TestParseConflictMode(t *testing.T) {
	for in, want := range map[string]ConflictMode{
		"skip":      Skip,
		"overwrite": Overwrite,
		"update":    UpdateNewer,
		"error":     ErrorIfExists,
	} {
		got, err := ParseConflictMode(in)
		require.NoError(t, err)
		assert.Equal(t, want, got)
	}

	_, err := ParseConflictMode("bogus")
	assert.Error(t, err)
}
