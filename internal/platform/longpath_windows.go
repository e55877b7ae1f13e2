//go:build windows

package platform

import (
	"path/filepath"
	"strings"
)

// LongPath converts an absolute path to extended-length form (\\?\ prefix)
// so names longer than 125 characters and total paths beyond MAX_PATH work
// on filesystems that support them. Relative paths and already-prefixed
// paths pass through unchanged.
func LongPath(path string) string {
	if strings.HasPrefix(path, `\\?\`) || !filepath.IsAbs(path) {
		return path
	}
	if strings.HasPrefix(path, `\\`) {
		// UNC path: \\server\share -> \\?\UNC\server\share
		return `\\?\UNC` + path[1:]
	}
	return `\\?\` + path
}
