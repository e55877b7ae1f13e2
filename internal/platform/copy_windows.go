//go:build windows

package platform

import (
	"io"
	"os"
)

// CopyFile copies a range with buffered read/write. Windows has no
// positional-copy syscall we target, so this seeks both files explicitly.
func CopyFile(params CopyFileParams) (CopyResult, error) {
	srcFd, err := os.Open(LongPath(params.SrcPath))
	if err != nil {
		return CopyResult{}, err
	}
	defer srcFd.Close()

	if params.SrcOffset > 0 {
		if _, err := srcFd.Seek(params.SrcOffset, io.SeekStart); err != nil {
			return CopyResult{}, err
		}
		if _, err := params.DstFd.Seek(params.SrcOffset, io.SeekStart); err != nil {
			return CopyResult{}, err
		}
	}

	n, err := io.CopyN(params.DstFd, srcFd, copyLength(params))
	if err == io.EOF {
		err = nil
	}
	return CopyResult{BytesWritten: n, Method: ReadWrite}, err
}

func copyLength(params CopyFileParams) int64 {
	if params.Length > 0 {
		return params.Length
	}
	return params.SrcSize - params.SrcOffset
}
