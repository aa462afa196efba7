//go:build !windows

package archive

import (
	"errors"
	"os/exec"
	"syscall"
)

// ExitCode extracts the status of a compressor that failed. A process ended by
// a signal reports 128 plus the signal number, as a shell would.
func ExitCode(err error) (int, bool) {
	var ee *exec.ExitError
	if !errors.As(err, &ee) {
		return 0, false
	}
	switch ws, ok := ee.Sys().(syscall.WaitStatus); {
	case !ok:
		return ee.ExitCode(), ee.ExitCode() >= 0
	case ws.Signaled():
		return 128 + int(ws.Signal()), true
	default:
		return ws.ExitStatus(), true
	}
}
