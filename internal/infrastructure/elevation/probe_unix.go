//go:build unix

package elevation

import "golang.org/x/sys/unix"

func isProcessElevated() bool {
	return unix.Geteuid() == 0
}
