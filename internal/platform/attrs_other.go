//go:build !windows

package platform

// CopyAttributes is a no-op outside Windows; mode bits cover everything.
func CopyAttributes(_, _ string) error { return nil }
