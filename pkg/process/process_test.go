package process

import (
	"fmt"
	"os"
	"os/exec"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestIsBinaryNotFound(t *testing.T) {
	_, lookErr := exec.LookPath("definitely-not-a-real-tunnel-binary")
	_, statErr := os.Stat(filepath.Join(t.TempDir(), "missing"))

	assert.True(t, IsBinaryNotFound(lookErr))
	assert.True(t, IsBinaryNotFound(statErr))
	assert.True(t, IsBinaryNotFound(fmt.Errorf("wrapped: %w", exec.ErrNotFound)))
	assert.False(t, IsBinaryNotFound(os.ErrPermission))
	assert.False(t, IsBinaryNotFound(nil))
}

func TestIsProcessDone(t *testing.T) {
	assert.True(t, IsProcessDone(fmt.Errorf("signal: %w", os.ErrProcessDone)))
	assert.False(t, IsProcessDone(os.ErrPermission))
}

func TestExitCode_NilState(t *testing.T) {
	assert.Equal(t, -1, ExitCode(nil))
}
