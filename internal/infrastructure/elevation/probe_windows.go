//go:build windows

package elevation

import "golang.org/x/sys/windows"

func isProcessElevated() bool {
	return windows.GetCurrentProcessToken().IsElevated()
}
