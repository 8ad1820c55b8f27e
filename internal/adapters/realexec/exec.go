// Package realexec provides a real implementation of the CommandRunner port using os/exec.
package realexec

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"os"
	"os/exec"
	"time"

	"github.com/acolita/mutagen-bridge/internal/ports"
)

// Runner implements ports.CommandRunner using the standard os/exec package.
type Runner struct{}

// New returns a new real CommandRunner.
func New() *Runner {
	return &Runner{}
}

// Run executes the command and waits for it to finish. See ports.CommandRunner.
func (r *Runner) Run(ctx context.Context, cmd ports.Command) (ports.CommandResult, error) {
	runCtx := ctx
	if cmd.Timeout > 0 {
		var cancel context.CancelFunc
		runCtx, cancel = context.WithTimeout(ctx, cmd.Timeout)
		defer cancel()
	}

	c := exec.CommandContext(runCtx, cmd.Path, cmd.Args...)
	if len(cmd.Env) > 0 {
		c.Env = append(os.Environ(), cmd.Env...)
	}

	var stdout, stderr bytes.Buffer
	c.Stdout = &stdout
	c.Stderr = &stderr
	// Detached children (the mutagen daemon) inherit the output pipes.
	// Bound the pipe drain so Wait does not hang on them.
	c.WaitDelay = 2 * time.Second

	err := c.Run()
	result := ports.CommandResult{
		Stdout: stdout.String(),
		Stderr: stderr.String(),
	}
	if c.ProcessState != nil {
		result.ExitCode = c.ProcessState.ExitCode()
	}

	if ctxErr := runCtx.Err(); ctxErr != nil {
		return result, fmt.Errorf("command %s: %w", cmd.Path, ctxErr)
	}
	if err != nil {
		var exitErr *exec.ExitError
		if errors.As(err, &exitErr) {
			// Non-zero exit is reported through the result, not the error.
			return result, nil
		}
		if errors.Is(err, exec.ErrWaitDelay) {
			return result, nil
		}
		return result, err
	}
	return result, nil
}

// LookPath searches for an executable named file in the directories listed in PATH.
func (r *Runner) LookPath(name string) (string, error) {
	return exec.LookPath(name)
}

// Ensure Runner implements ports.CommandRunner.
var _ ports.CommandRunner = (*Runner)(nil)
