// Package fakeexec provides a fake command runner for testing.
package fakeexec

import (
	"context"
	"fmt"
	"strings"
	"sync"

	"github.com/acolita/mutagen-bridge/internal/ports"
)

// Runner is a fake command runner that replays queued responses and
// records every invocation. Tests either enqueue responses in call
// order or set RunFunc for full control.
type Runner struct {
	mu sync.Mutex

	// RunFunc, when set, handles every Run call instead of the queue.
	RunFunc func(ctx context.Context, cmd ports.Command) (ports.CommandResult, error)

	// LookPathFunc, when set, handles LookPath calls.
	LookPathFunc func(name string) (string, error)

	calls []ports.Command
	queue []response
}

type response struct {
	result ports.CommandResult
	err    error
}

// New creates a new fake Runner with an empty response queue.
func New() *Runner {
	return &Runner{}
}

// Run records the call, then delegates to RunFunc or pops the next
// queued response. An empty queue is a test configuration error.
func (r *Runner) Run(ctx context.Context, cmd ports.Command) (ports.CommandResult, error) {
	r.mu.Lock()
	r.calls = append(r.calls, cmd)
	fn := r.RunFunc
	var next response
	popped := false
	if fn == nil && len(r.queue) > 0 {
		next = r.queue[0]
		r.queue = r.queue[1:]
		popped = true
	}
	r.mu.Unlock()

	if fn != nil {
		return fn(ctx, cmd)
	}
	if !popped {
		return ports.CommandResult{}, fmt.Errorf("fakeexec: no response queued for %s", CommandLine(cmd))
	}
	return next.result, next.err
}

// LookPath delegates to LookPathFunc, or fails loudly when unconfigured.
func (r *Runner) LookPath(name string) (string, error) {
	r.mu.Lock()
	fn := r.LookPathFunc
	r.mu.Unlock()
	if fn != nil {
		return fn(name)
	}
	return "", fmt.Errorf("fakeexec: LookPath not configured for %q", name)
}

// Enqueue appends a response to the replay queue.
func (r *Runner) Enqueue(result ports.CommandResult, err error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.queue = append(r.queue, response{result: result, err: err})
}

// EnqueueOutput appends a successful response with the given stdout.
func (r *Runner) EnqueueOutput(stdout string) {
	r.Enqueue(ports.CommandResult{Stdout: stdout}, nil)
}

// EnqueueExit appends a failed-process response with the given exit code
// and stderr.
func (r *Runner) EnqueueExit(code int, stderr string) {
	r.Enqueue(ports.CommandResult{ExitCode: code, Stderr: stderr}, nil)
}

// Calls returns all recorded Run calls.
func (r *Runner) Calls() []ports.Command {
	r.mu.Lock()
	defer r.mu.Unlock()
	calls := make([]ports.Command, len(r.calls))
	copy(calls, r.calls)
	return calls
}

// CallLines returns the recorded calls rendered as space-joined command
// lines, convenient for assertions.
func (r *Runner) CallLines() []string {
	calls := r.Calls()
	lines := make([]string, len(calls))
	for i, c := range calls {
		lines[i] = CommandLine(c)
	}
	return lines
}

// CommandLine renders a command as a single space-joined line.
func CommandLine(cmd ports.Command) string {
	return strings.Join(append([]string{cmd.Path}, cmd.Args...), " ")
}

// Ensure Runner implements ports.CommandRunner.
var _ ports.CommandRunner = (*Runner)(nil)
