//go:build !windows

package process

import (
	"os"
	"os/exec"
	"syscall"
)

// PrepareCommand puts the child in its own process group so signals reach its helpers too
func PrepareCommand(cmd *exec.Cmd) {
	if cmd.SysProcAttr == nil {
		cmd.SysProcAttr = &syscall.SysProcAttr{}
	}
	cmd.SysProcAttr.Setpgid = true
}

// SendTerminationSignal sends SIGTERM to the process group, falling back to the process itself
func SendTerminationSignal(proc *os.Process) error {
	return signalGroup(proc, syscall.SIGTERM)
}

// ForceKill sends SIGKILL to the process group, falling back to the process itself
func ForceKill(proc *os.Process) error {
	return signalGroup(proc, syscall.SIGKILL)
}

func signalGroup(proc *os.Process, sig syscall.Signal) error {
	if err := syscall.Kill(-proc.Pid, sig); err == nil {
		return nil
	}
	return proc.Signal(sig)
}

func signalExitCode(state *os.ProcessState) (int, bool) {
	status, ok := state.Sys().(syscall.WaitStatus)
	if !ok || !status.Signaled() {
		return 0, false
	}
	return -int(status.Signal()), true
}
