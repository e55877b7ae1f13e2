//go:build windows

package ui

import (
	"os"

	"golang.org/x/sys/windows"
)

// IsTTY reports whether f is attached to a console.
func IsTTY(f *os.File) bool {
	var mode uint32
	return windows.GetConsoleMode(windows.Handle(f.Fd()), &mode) == nil
}
