// Package rsync runs one-shot rsync transfers that seed a sync session
// with data before the engine takes over.
package rsync

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strconv"
	"strings"
	"time"

	"github.com/acolita/mutagen-bridge/internal/ports"
)

// DefaultTimeout bounds a single transfer.
const DefaultTimeout = 300 * time.Second

// Direction selects which endpoint seeds the other.
type Direction string

const (
	// Download copies the remote tree into the local path.
	Download Direction = "download"
	// Upload copies the local tree onto the remote.
	Upload Direction = "upload"
)

// Job describes one transfer.
type Job struct {
	Direction  Direction
	Host       string
	Port       int
	User       string
	KeyPath    string // optional private key passed to ssh -i
	RemotePath string
	LocalPath  string
}

// Runner executes rsync through the command runner port.
type Runner struct {
	exec    ports.CommandRunner
	timeout time.Duration
}

// New creates a Runner. A zero timeout falls back to DefaultTimeout.
func New(exec ports.CommandRunner, timeout time.Duration) *Runner {
	if timeout <= 0 {
		timeout = DefaultTimeout
	}
	return &Runner{exec: exec, timeout: timeout}
}

// Timeout returns the configured transfer bound.
func (r *Runner) Timeout() time.Duration {
	return r.timeout
}

// Seed runs the transfer, streaming progress through fn when it is
// non-nil. Progress reporting requires the pseudo-terminal path; a nil
// fn routes through the command runner port instead.
func (r *Runner) Seed(ctx context.Context, job Job, fn ProgressFunc) error {
	if fn == nil {
		return r.Sync(ctx, job)
	}
	return r.SyncWithProgress(ctx, job, fn)
}

// Sync runs the transfer and waits for it to finish.
func (r *Runner) Sync(ctx context.Context, job Job) error {
	path, err := r.exec.LookPath("rsync")
	if err != nil {
		return fmt.Errorf("rsync is not installed: %w", err)
	}

	args := buildArgs(job)
	slog.Info("running initial sync",
		slog.String("direction", string(job.Direction)),
		slog.String("host", job.Host),
		slog.String("remote_path", job.RemotePath),
		slog.String("local_path", job.LocalPath),
	)

	result, err := r.exec.Run(ctx, ports.Command{
		Path:    path,
		Args:    args,
		Timeout: r.timeout,
	})
	if err != nil {
		if errors.Is(err, context.DeadlineExceeded) {
			return fmt.Errorf("rsync timed out after %d seconds", int(r.timeout.Seconds()))
		}
		return fmt.Errorf("run rsync: %w", err)
	}
	if result.ExitCode != 0 {
		output := strings.TrimSpace(result.Stderr)
		if output == "" {
			output = strings.TrimSpace(result.Stdout)
		}
		return fmt.Errorf("rsync failed: %s", output)
	}
	return nil
}

// buildArgs assembles the rsync argument list. The source side carries
// the trailing slash so rsync copies directory contents rather than
// nesting the directory itself.
func buildArgs(job Job) []string {
	sshCmd := []string{"ssh", "-p", strconv.Itoa(portOrDefault(job.Port))}
	if job.KeyPath != "" {
		sshCmd = append(sshCmd, "-i", job.KeyPath)
	}
	sshCmd = append(sshCmd, "-o", "StrictHostKeyChecking=no", "-o", "UserKnownHostsFile=/dev/null")

	remote := fmt.Sprintf("%s@%s:%s", job.User, job.Host, job.RemotePath)

	args := []string{"-avz", "--progress", "-e", strings.Join(sshCmd, " ")}
	if job.Direction == Upload {
		return append(args, job.LocalPath+"/", remote)
	}
	return append(args, remote+"/", job.LocalPath)
}

func portOrDefault(port int) int {
	if port == 0 {
		return 22
	}
	return port
}
