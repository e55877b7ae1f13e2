//go:build !linux && !darwin

package platform

import (
	"errors"
	"os"
)

var errReflinkUnsupported = errors.New("reflink not supported on this platform")

// ReflinkSupported always reports false where no CoW clone syscall exists.
func ReflinkSupported(string) bool { return false }

// Clone always fails; callers fall back to a streaming copy.
func Clone(_, _ string, _ os.FileMode) error {
	return errReflinkUnsupported
}
