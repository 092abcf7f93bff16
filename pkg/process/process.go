package process

import (
	"errors"
	"io/fs"
	"os"
	"os/exec"
	"strings"
)

// IsBinaryNotFound reports whether a spawn error means the executable is missing
func IsBinaryNotFound(err error) bool {
	if err == nil {
		return false
	}
	if errors.Is(err, exec.ErrNotFound) || errors.Is(err, fs.ErrNotExist) {
		return true
	}
	errStr := strings.ToLower(err.Error())
	return strings.Contains(errStr, "executable file not found") ||
		strings.Contains(errStr, "no such file") ||
		strings.Contains(errStr, "cannot find the file")
}

// IsProcessDone reports whether a signal failed only because the process already exited
func IsProcessDone(err error) bool {
	return errors.Is(err, os.ErrProcessDone)
}

// ExitCode extracts an exit code from a process state, -1 when unknown.
// A process ended by a signal reports the negated signal number.
func ExitCode(state *os.ProcessState) int {
	if state == nil {
		return -1
	}
	if code, ok := signalExitCode(state); ok {
		return code
	}
	return state.ExitCode()
}
