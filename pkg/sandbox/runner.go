// Package sandbox runs untrusted scripts in an external interpreter with a
// hard wall-clock limit.
//
// Every run gets its own script file and its own process group. When the
// limit expires the whole group is killed and reaped before Run returns.
package sandbox

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/exec"
	"path/filepath"
	"time"

	"github.com/google/uuid"

	"github.com/bookowl/botross/pkg/logger"
)

const (
	DefaultTimeout = 5 * time.Second

	// DefaultMaxOutput caps how much combined output is kept per run.
	DefaultMaxOutput = 64 * 1024

	// waitDelay bounds how long Wait keeps draining the output pipe after
	// the interpreter itself has gone.
	waitDelay = 2 * time.Second
)

type Outcome int

const (
	OutcomeCompleted Outcome = iota
	OutcomeTimedOut
	OutcomeSpawnFailed
)

func (o Outcome) String() string {
	switch o {
	case OutcomeCompleted:
		return "completed"
	case OutcomeTimedOut:
		return "timed_out"
	case OutcomeSpawnFailed:
		return "spawn_failed"
	default:
		return fmt.Sprintf("Outcome(%d)", int(o))
	}
}

type Result struct {
	Outcome Outcome
	Mode    Mode
	// Output is stdout and stderr interleaved as the process wrote them.
	Output    string
	Truncated bool
	// ExitCode is -1 unless the process exited on its own.
	ExitCode int
	Duration time.Duration
	// Err is the reason for OutcomeSpawnFailed, or the parent context's
	// error when the run was cut short by cancellation.
	Err error
}

type Options struct {
	// Command is the interpreter and its leading arguments; the script path
	// is appended.
	Command   []string
	Timeout   time.Duration
	WorkDir   string
	MaxOutput int
}

type Runner struct {
	command   []string
	timeout   time.Duration
	workDir   string
	maxOutput int
}

func NewRunner(opts Options) *Runner {
	command := opts.Command
	if len(command) == 0 {
		command = []string{"python3"}
	}
	timeout := opts.Timeout
	if timeout <= 0 {
		timeout = DefaultTimeout
	}
	workDir := opts.WorkDir
	if workDir == "" {
		workDir = os.TempDir()
	}
	maxOutput := opts.MaxOutput
	if maxOutput <= 0 {
		maxOutput = DefaultMaxOutput
	}

	return &Runner{
		command:   append([]string(nil), command...),
		timeout:   timeout,
		workDir:   workDir,
		maxOutput: maxOutput,
	}
}

func (r *Runner) Timeout() time.Duration {
	return r.timeout
}

// Run writes req to a fresh script file, runs the interpreter on it and
// waits at most the runner's timeout. Run never returns while the child
// process is still alive.
func (r *Runner) Run(ctx context.Context, req Request) Result {
	start := time.Now()
	res := Result{Mode: req.Mode, ExitCode: -1}

	scriptPath := filepath.Join(r.workDir, "botross-"+uuid.NewString()+".py")
	if err := writeScript(scriptPath, req.Source()); err != nil {
		res.Outcome = OutcomeSpawnFailed
		res.Err = err
		res.Duration = time.Since(start)
		return res
	}
	defer func() {
		if err := os.Remove(scriptPath); err != nil && !errors.Is(err, os.ErrNotExist) {
			logger.WarnCF("sandbox", "Failed to remove script", map[string]any{
				"path":  scriptPath,
				"error": err.Error(),
			})
		}
	}()

	args := append(append([]string(nil), r.command[1:]...), scriptPath)
	cmd := exec.Command(r.command[0], args...)
	cmd.Dir = r.workDir
	out := &limitedBuffer{limit: r.maxOutput}
	cmd.Stdout = out
	cmd.Stderr = out
	cmd.WaitDelay = waitDelay
	prepareCommandForTermination(cmd)

	if err := cmd.Start(); err != nil {
		res.Outcome = OutcomeSpawnFailed
		res.Err = fmt.Errorf("failed to start %s: %w", r.command[0], err)
		res.Duration = time.Since(start)
		return res
	}

	logger.DebugCF("sandbox", "Interpreter started", map[string]any{
		"pid":  cmd.Process.Pid,
		"mode": req.Mode.String(),
	})

	done := make(chan error, 1)
	go func() {
		done <- cmd.Wait()
	}()

	timer := time.NewTimer(r.timeout)
	defer timer.Stop()

	select {
	case err := <-done:
		res.Outcome = OutcomeCompleted
		res.Output = out.String()
		res.Truncated = out.truncated
		res.ExitCode = exitCode(cmd, err)
		if err != nil && !isExitError(err) {
			logger.WarnCF("sandbox", "Interpreter wait returned error", map[string]any{
				"error": err.Error(),
			})
		}
		r.killDescendants(cmd)
	case <-timer.C:
		r.kill(cmd, done)
		res.Outcome = OutcomeTimedOut
	case <-ctx.Done():
		r.kill(cmd, done)
		res.Outcome = OutcomeTimedOut
		res.Err = ctx.Err()
	}

	res.Duration = time.Since(start)
	logger.InfoCF("sandbox", "Interpreter finished", map[string]any{
		"outcome":     res.Outcome.String(),
		"exit_code":   res.ExitCode,
		"duration_ms": res.Duration.Milliseconds(),
	})
	return res
}

// kill terminates the process group and blocks until Wait has reaped it.
func (r *Runner) kill(cmd *exec.Cmd, done <-chan error) {
	if err := terminateProcessTree(cmd); err != nil {
		logger.ErrorCF("sandbox", "Failed to kill interpreter", map[string]any{
			"pid":   cmd.Process.Pid,
			"error": err.Error(),
		})
	}
	<-done
	logger.InfoCF("sandbox", "Interpreter killed", map[string]any{
		"pid": cmd.Process.Pid,
	})
}

// killDescendants kills whatever the script left running in its process
// group after the interpreter itself exited. An empty group is not an error.
func (r *Runner) killDescendants(cmd *exec.Cmd) {
	if err := terminateProcessTree(cmd); err != nil {
		logger.DebugCF("sandbox", "Failed to kill leftover processes", map[string]any{
			"pid":   cmd.Process.Pid,
			"error": err.Error(),
		})
	}
}

// writeScript creates path and makes sure the contents are on disk before
// any interpreter can open it.
func writeScript(path, source string) error {
	f, err := os.OpenFile(path, os.O_CREATE|os.O_EXCL|os.O_WRONLY, 0o600)
	if err != nil {
		return fmt.Errorf("failed to create script: %w", err)
	}
	if _, err := f.WriteString(source); err != nil {
		f.Close()
		os.Remove(path)
		return fmt.Errorf("failed to write script: %w", err)
	}
	if err := f.Sync(); err != nil {
		f.Close()
		os.Remove(path)
		return fmt.Errorf("failed to flush script: %w", err)
	}
	if err := f.Close(); err != nil {
		os.Remove(path)
		return fmt.Errorf("failed to close script: %w", err)
	}
	return nil
}

func isExitError(err error) bool {
	var exitErr *exec.ExitError
	return errors.As(err, &exitErr)
}

func exitCode(cmd *exec.Cmd, err error) int {
	var exitErr *exec.ExitError
	if errors.As(err, &exitErr) {
		return exitErr.ExitCode()
	}
	if cmd.ProcessState != nil {
		return cmd.ProcessState.ExitCode()
	}
	return -1
}

// limitedBuffer keeps the first limit bytes and silently drops the rest so
// a chatty script cannot exhaust memory. Writes never fail, which keeps the
// child from dying on a broken pipe.
type limitedBuffer struct {
	buf       []byte
	limit     int
	truncated bool
}

func (b *limitedBuffer) Write(p []byte) (int, error) {
	room := b.limit - len(b.buf)
	if room <= 0 {
		b.truncated = b.truncated || len(p) > 0
		return len(p), nil
	}
	if len(p) > room {
		b.buf = append(b.buf, p[:room]...)
		b.truncated = true
		return len(p), nil
	}
	b.buf = append(b.buf, p...)
	return len(p), nil
}

func (b *limitedBuffer) String() string {
	return string(b.buf)
}
