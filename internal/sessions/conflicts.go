package sessions

import (
	"context"
	"log/slog"
	"strings"
)

// Conflict is one conflicting path reported by the engine. Conflicts
// are derived from verbose status output on every fetch, never stored.
type Conflict struct {
	Path string `json:"path"`
}

// Conflicts fetches verbose status for the session and extracts the
// conflicting paths, deduplicated across the two endpoint markers.
func (o *Orchestrator) Conflicts(ctx context.Context, name string) ([]Conflict, error) {
	output, err := o.engine.Run(ctx, "sync", "list", "--long", name)
	if err != nil {
		return nil, err
	}
	return parseConflicts(output), nil
}

// parseConflicts scans for lines opening with an endpoint marker. The
// second whitespace-delimited token is the path; a path flagged on
// both sides counts once.
func parseConflicts(output string) []Conflict {
	var conflicts []Conflict
	seen := make(map[string]bool)
	for _, line := range strings.Split(output, "\n") {
		line = strings.TrimSpace(line)
		if !strings.HasPrefix(line, "(alpha)") && !strings.HasPrefix(line, "(beta)") {
			continue
		}
		fields := strings.Fields(line)
		if len(fields) < 2 {
			continue
		}
		path := fields[1]
		if seen[path] {
			continue
		}
		seen[path] = true
		conflicts = append(conflicts, Conflict{Path: path})
	}
	return conflicts
}

// Resolve terminates the session and recreates it in one-way-replica
// mode with the winner's endpoint as source. This forces the winner's
// content for the entire session: it does not resolve individual
// files, and any in-flight comparison state is discarded.
func (o *Orchestrator) Resolve(ctx context.Context, name string, winner Winner) error {
	if !winner.Valid() {
		return &InvalidWinnerError{Winner: string(winner)}
	}

	session, err := o.Find(ctx, name)
	if err != nil {
		return err
	}

	if _, err := o.engine.Run(ctx, "sync", "terminate", name); err != nil {
		return err
	}
	slog.Info("terminated session for conflict resolution", slog.String("session", name))

	source, dest := session.Alpha.URL, session.Beta.URL
	if winner == WinnerBeta {
		source, dest = session.Beta.URL, session.Alpha.URL
	}

	args := []string{
		"sync", "create",
		"--name=" + name,
		"--mode=" + string(OneWayReplica),
		"--default-file-mode=" + o.sync.FileMode,
		"--default-directory-mode=" + o.sync.DirectoryMode,
		source, dest,
	}
	if _, err := o.engine.RunTimeout(ctx, o.engine.CreateTimeout(), args...); err != nil {
		return err
	}

	slog.Info("recreated session with forced winner",
		slog.String("session", name),
		slog.String("winner", string(winner)),
	)
	return nil
}
