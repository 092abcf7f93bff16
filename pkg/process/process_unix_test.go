//go:build !windows

package process

import (
	"os/exec"
	"syscall"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSignals_ReachProcessGroup(t *testing.T) {
	cmd := exec.Command("/bin/sh", "-c", "sleep 30")
	PrepareCommand(cmd)
	require.NoError(t, cmd.Start())

	done := make(chan error, 1)
	go func() { done <- cmd.Wait() }()

	require.NoError(t, SendTerminationSignal(cmd.Process))

	select {
	case <-done:
	case <-time.After(5 * time.Second):
		_ = ForceKill(cmd.Process)
		t.Fatal("process did not exit after termination signal")
	}
	assert.Equal(t, -int(syscall.SIGTERM), ExitCode(cmd.ProcessState))

	err := ForceKill(cmd.Process)
	assert.True(t, IsProcessDone(err))
}

func TestExitCode_NormalExit(t *testing.T) {
	cmd := exec.Command("/bin/sh", "-c", "exit 3")
	_ = cmd.Run()
	assert.Equal(t, 3, ExitCode(cmd.ProcessState))
}
