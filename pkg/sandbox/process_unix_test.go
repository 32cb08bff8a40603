//go:build !windows

package sandbox

import (
	"fmt"
	"os"
	"os/exec"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/sys/unix"
)

// processExists reports whether pid is alive. A zombie waiting for its
// reaper counts as gone.
func processExists(pid int) bool {
	if pid <= 0 {
		return false
	}
	if err := unix.Kill(pid, 0); err != nil && err != unix.EPERM {
		return false
	}
	stat, err := os.ReadFile(fmt.Sprintf("/proc/%d/stat", pid))
	if err != nil {
		return true
	}
	// The state follows the parenthesised command name.
	if i := strings.LastIndexByte(string(stat), ')'); i >= 0 && i+2 < len(stat) {
		return stat[i+2] != 'Z'
	}
	return true
}

func TestPrepareCommandForTermination(t *testing.T) {
	prepareCommandForTermination(nil)

	cmd := exec.Command("echo", "test")
	prepareCommandForTermination(cmd)

	require.NotNil(t, cmd.SysProcAttr)
	assert.True(t, cmd.SysProcAttr.Setpgid)
}

func TestTerminateProcessTree(t *testing.T) {
	assert.NoError(t, terminateProcessTree(nil))
	assert.NoError(t, terminateProcessTree(exec.Command("echo", "test")))

	cmd := exec.Command("sleep", "30")
	prepareCommandForTermination(cmd)
	require.NoError(t, cmd.Start())

	require.NoError(t, terminateProcessTree(cmd))

	done := make(chan error, 1)
	go func() { done <- cmd.Wait() }()

	select {
	case err := <-done:
		assert.Error(t, err, "killed process should report a signal exit")
	case <-time.After(2 * time.Second):
		t.Fatal("process was not terminated")
	}
}
