// Package ports defines interfaces for external dependencies (Ports and Adapters pattern).
package ports

import (
	"context"
	"time"
)

// Command describes one external process invocation.
type Command struct {
	// Path is the program to run, either an absolute path or a name
	// resolved against PATH by the runner.
	Path string

	// Args are the program arguments, not including the program itself.
	Args []string

	// Env holds extra environment entries in "KEY=value" form. They are
	// appended to the inherited environment, so later entries win.
	Env []string

	// Timeout bounds the process runtime. Zero means only the caller's
	// context limits execution.
	Timeout time.Duration
}

// CommandResult holds the outcome of a finished process.
type CommandResult struct {
	Stdout   string
	Stderr   string
	ExitCode int
}

// CommandRunner abstracts subprocess execution for testing.
type CommandRunner interface {
	// Run executes the command and waits for it to finish. A non-zero
	// exit status is not an error: the result carries the exit code and
	// captured output. Run returns an error only when the process could
	// not be started or was killed by the timeout or context; timeout
	// errors wrap context.DeadlineExceeded.
	Run(ctx context.Context, cmd Command) (CommandResult, error)

	// LookPath searches for an executable named file in the directories
	// listed in PATH.
	LookPath(name string) (string, error)
}
