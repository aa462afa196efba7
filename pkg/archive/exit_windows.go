//go:build windows

package archive

import (
	"errors"
	"os/exec"
)

// ExitCode extracts the status of a compressor that failed. Windows has no
// signals; a killed process reports exit code 1.
func ExitCode(err error) (int, bool) {
	var ee *exec.ExitError
	if !errors.As(err, &ee) {
		return 0, false
	}
	return ee.ExitCode(), ee.ExitCode() >= 0
}
