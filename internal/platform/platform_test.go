package platform

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCopyFile_WholeFile(t *testing.T) {
	dir := t.TempDir()
	src := filepath.Join(dir, "src")
	dst := filepath.Join(dir, "dst")

	data := make([]byte, 2<<20)
	for i := range data {
		data[i] = byte(i % 253)
	}
	require.NoError(t, os.WriteFile(src, data, 0o644))

	dstFd, err := os.OpenFile(dst, os.O_WRONLY|os.O_CREATE|os.O_EXCL, 0o600)
	require.NoError(t, err)

	result, err := CopyFile(CopyFileParams{
		SrcPath: src,
		DstFd:   dstFd,
		SrcSize: int64(len(data)),
	})
	require.NoError(t, err)
	require.NoError(t, dstFd.Close())

	assert.Equal(t, int64(len(data)), result.BytesWritten)

	got, err := os.ReadFile(dst)
	require.NoError(t, err)
	assert.Equal(t, data, got)
}

func TestCopyFile_Range(t *testing.T) {
	dir := t.TempDir()
	src := filepath.Join(dir, "src")
	dst := filepath.Join(dir, "dst")

	data := []byte("0123456789abcdef")
	require.NoError(t, os.WriteFile(src, data, 0o644))

	dstFd, err := os.OpenFile(dst, os.O_RDWR|os.O_CREATE|os.O_EXCL, 0o600)
	require.NoError(t, err)

	// Copy the middle 8 bytes at the same offset.
	result, err := CopyFile(CopyFileParams{
		SrcPath:   src,
		DstFd:     dstFd,
		SrcOffset: 4,
		SrcSize:   int64(len(data)),
		Length:    8,
	})
	require.NoError(t, err)
	require.NoError(t, dstFd.Close())

	assert.Equal(t, int64(8), result.BytesWritten)

	got, err := os.ReadFile(dst)
	require.NoError(t, err)
	assert.Equal(t, data[4:12], got[4:12])
}

func TestRenameNoReplace(t *testing.T) {
	dir := t.TempDir()
	a := filepath.Join(dir, "a")
	b := filepath.Join(dir, "b")
	require.NoError(t, os.WriteFile(a, []byte("a"), 0o644))

	// Target absent: succeeds.
	require.NoError(t, RenameNoReplace(a, b))
	assert.NoFileExists(t, a)
	assert.FileExists(t, b)

	// Target present: fails and leaves both untouched.
	c := filepath.Join(dir, "c")
	require.NoError(t, os.WriteFile(c, []byte("c"), 0o644))
	err := RenameNoReplace(c, b)
	require.Error(t, err)

	got, readErr := os.ReadFile(b)
	require.NoError(t, readErr)
	assert.Equal(t, []byte("a"), got)
	assert.FileExists(t, c)
}

func TestReflinkSupported_NoPanic(t *testing.T) {
	// Support depends on the filesystem under the test dir; only the
	// contract that it answers without side effects is portable.
	_ = ReflinkSupported(t.TempDir())
}

func TestLongPath_Unix(t *testing.T) {
	assert.Equal(t, "/a/b", LongPath("/a/b"))
}

func TestCopyMethod_String(t *testing.T) {
	assert.Equal(t, "read_write", ReadWrite.String())
	assert.Equal(t, "copy_file_range", CopyFileRange.String())
	assert.Equal(t, "reflink", Reflink.String())
}
