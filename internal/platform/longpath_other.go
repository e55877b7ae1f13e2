//go:build !windows

package platform

// LongPath is a no-op outside Windows.
func LongPath(path string) string { return path }
