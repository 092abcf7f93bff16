//go:build windows

package process

import (
	"os"
	"os/exec"
	"syscall"
)

func PrepareCommand(cmd *exec.Cmd) {
	if cmd.SysProcAttr == nil {
		cmd.SysProcAttr = &syscall.SysProcAttr{}
	}
	cmd.SysProcAttr.CreationFlags |= syscall.CREATE_NEW_PROCESS_GROUP
}

// SendTerminationSignal has no graceful equivalent for a console-less child on Windows,
// so it terminates the process directly.
func SendTerminationSignal(proc *os.Process) error {
	return proc.Kill()
}

func ForceKill(proc *os.Process) error {
	return proc.Kill()
}

// Windows has no signal exit status
func signalExitCode(state *os.ProcessState) (int, bool) {
	return 0, false
}
