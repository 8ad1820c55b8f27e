// Package engine locates and drives the mutagen CLI.
package engine

import (
	"context"
	"errors"
	"log/slog"
	"strings"
	"time"

	"github.com/acolita/mutagen-bridge/internal/ports"
)

const binaryName = "mutagen"

// searchPaths are checked in order before falling back to PATH lookup.
var searchPaths = []string{
	"/home/linuxbrew/.linuxbrew/bin/mutagen",
	"/usr/local/bin/mutagen",
	"/usr/bin/mutagen",
}

// Options configure a Runner.
type Options struct {
	Binary         string        // explicit binary path, skips discovery
	CommandTimeout time.Duration // bound for list/action commands (default 60s)
	CreateTimeout  time.Duration // bound for session creation (default 120s)
	DaemonGrace    time.Duration // settle time after daemon start (default 1s)
}

// Runner executes mutagen commands and maps their failures to typed errors.
type Runner struct {
	runner ports.CommandRunner
	fs     ports.FileSystem
	clock  ports.Clock
	opts   Options
}

// New creates a Runner. Zero option fields are filled with defaults.
func New(runner ports.CommandRunner, fs ports.FileSystem, clock ports.Clock, opts Options) *Runner {
	if opts.CommandTimeout <= 0 {
		opts.CommandTimeout = 60 * time.Second
	}
	if opts.CreateTimeout <= 0 {
		opts.CreateTimeout = 120 * time.Second
	}
	if opts.DaemonGrace <= 0 {
		opts.DaemonGrace = time.Second
	}
	return &Runner{
		runner: runner,
		fs:     fs,
		clock:  clock,
		opts:   opts,
	}
}

// CommandTimeout returns the default command bound.
func (r *Runner) CommandTimeout() time.Duration { return r.opts.CommandTimeout }

// CreateTimeout returns the session creation bound.
func (r *Runner) CreateTimeout() time.Duration { return r.opts.CreateTimeout }

// resolveBinary locates the mutagen binary. Resolution happens on every
// call so an install performed while the server runs is picked up.
func (r *Runner) resolveBinary() (string, error) {
	if r.opts.Binary != "" {
		return r.opts.Binary, nil
	}
	for _, path := range searchPaths {
		if _, err := r.fs.Stat(path); err == nil {
			return path, nil
		}
	}
	if path, err := r.runner.LookPath(binaryName); err == nil {
		return path, nil
	}
	return "", &BinaryNotFoundError{Searched: append(append([]string{}, searchPaths...), "PATH")}
}

// InstalledPath reports where the mutagen binary lives, if anywhere.
func (r *Runner) InstalledPath() (string, bool) {
	path, err := r.resolveBinary()
	return path, err == nil
}

// Run executes mutagen with the default command timeout.
func (r *Runner) Run(ctx context.Context, args ...string) (string, error) {
	return r.RunTimeout(ctx, r.opts.CommandTimeout, args...)
}

// RunTimeout executes mutagen with an explicit timeout. On success it
// returns the command's stdout. Failures are typed: BinaryNotFoundError
// when the CLI is missing, TimeoutError when the bound is exceeded, and
// CommandFailedError when the process exits non-zero.
func (r *Runner) RunTimeout(ctx context.Context, timeout time.Duration, args ...string) (string, error) {
	bin, err := r.resolveBinary()
	if err != nil {
		return "", err
	}

	slog.Debug("running mutagen command",
		slog.String("args", strings.Join(args, " ")),
		slog.Duration("timeout", timeout),
	)

	res, err := r.runner.Run(ctx, ports.Command{Path: bin, Args: args, Timeout: timeout})
	if err != nil {
		if errors.Is(err, context.DeadlineExceeded) {
			return "", &TimeoutError{Args: args, Seconds: int(timeout / time.Second)}
		}
		return "", err
	}
	if res.ExitCode != 0 {
		output := strings.TrimSpace(res.Stderr)
		if output == "" {
			output = strings.TrimSpace(res.Stdout)
		}
		return "", &CommandFailedError{Args: args, ExitCode: res.ExitCode, Output: output}
	}
	return res.Stdout, nil
}

// ListSessions runs "sync list" and parses the stanzas. When name is
// non-empty only that session is listed. Long includes conflict detail.
func (r *Runner) ListSessions(ctx context.Context, name string, long bool) ([]Session, error) {
	args := []string{"sync", "list"}
	if long {
		args = append(args, "--long")
	}
	if name != "" {
		args = append(args, name)
	}
	out, err := r.Run(ctx, args...)
	if err != nil {
		return nil, err
	}
	return ParseSessions(out), nil
}

// DaemonStatus returns "running" or "stopped". Any failure, including a
// missing binary, reads as stopped.
func (r *Runner) DaemonStatus(ctx context.Context) string {
	out, err := r.Run(ctx, "daemon", "list")
	if err != nil {
		return "stopped"
	}
	if strings.Contains(strings.ToLower(out), "running") {
		return "running"
	}
	return "stopped"
}

// StartDaemon starts the daemon and waits the grace period so the first
// session command does not race daemon startup.
func (r *Runner) StartDaemon(ctx context.Context) error {
	if _, err := r.Run(ctx, "daemon", "start"); err != nil {
		return err
	}
	r.clock.Sleep(r.opts.DaemonGrace)
	return nil
}

// EnsureDaemon starts the daemon when it is not already running.
func (r *Runner) EnsureDaemon(ctx context.Context) error {
	if r.DaemonStatus(ctx) == "running" {
		return nil
	}
	return r.StartDaemon(ctx)
}
