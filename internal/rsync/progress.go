package rsync

import (
	"bufio"
	"bytes"
	"context"
	"fmt"
	"io"
	"os/exec"
	"regexp"
	"strconv"
	"strings"

	"github.com/creack/pty"
)

// ProgressFunc receives transfer progress as rsync reports it.
type ProgressFunc func(percent int, line string)

var percentRe = regexp.MustCompile(`(\d{1,3})%`)

// SyncWithProgress runs the transfer under a pseudo-terminal and feeds
// progress lines to fn as they arrive. rsync only emits per-file
// progress when talking to a tty, which is why this path does not go
// through the command runner port.
func (r *Runner) SyncWithProgress(ctx context.Context, job Job, fn ProgressFunc) error {
	path, err := r.exec.LookPath("rsync")
	if err != nil {
		return fmt.Errorf("rsync is not installed: %w", err)
	}

	runCtx, cancel := context.WithTimeout(ctx, r.timeout)
	defer cancel()

	cmd := exec.CommandContext(runCtx, path, buildArgs(job)...)
	ptmx, err := pty.Start(cmd)
	if err != nil {
		return fmt.Errorf("start rsync: %w", err)
	}
	defer ptmx.Close()

	tail := streamProgress(ptmx, fn)

	err = cmd.Wait()
	if runCtx.Err() == context.DeadlineExceeded {
		return fmt.Errorf("rsync timed out after %d seconds", int(r.timeout.Seconds()))
	}
	if err != nil {
		return fmt.Errorf("rsync failed: %s", tail)
	}
	return nil
}

// streamProgress scans \r and \n separated output, reporting percent
// lines through fn. It returns the last non-progress line for error
// context. The pty read error on child exit is expected and ignored.
func streamProgress(r io.Reader, fn ProgressFunc) string {
	scanner := bufio.NewScanner(r)
	scanner.Split(scanProgressLines)

	last := ""
	for scanner.Scan() {
		line := strings.TrimSpace(scanner.Text())
		if line == "" {
			continue
		}
		if pct, ok := ParseProgress(line); ok {
			if fn != nil {
				fn(pct, line)
			}
			continue
		}
		last = line
	}
	return last
}

// ParseProgress extracts the percent figure from an rsync progress
// line. It reports false for lines without one.
func ParseProgress(line string) (int, bool) {
	m := percentRe.FindStringSubmatch(line)
	if m == nil {
		return 0, false
	}
	pct, err := strconv.Atoi(m[1])
	if err != nil || pct > 100 {
		return 0, false
	}
	return pct, true
}

// scanProgressLines splits on both \n and the \r rewrites rsync uses
// for in-place progress updates.
func scanProgressLines(data []byte, atEOF bool) (int, []byte, error) {
	if atEOF && len(data) == 0 {
		return 0, nil, nil
	}
	if i := bytes.IndexAny(data, "\r\n"); i >= 0 {
		return i + 1, data[:i], nil
	}
	if atEOF {
		return len(data), data, nil
	}
	return 0, nil, nil
}
