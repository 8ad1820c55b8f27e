package sessions

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/acolita/mutagen-bridge/internal/config"
	"github.com/acolita/mutagen-bridge/internal/engine"
	"github.com/acolita/mutagen-bridge/internal/ports"
	"github.com/acolita/mutagen-bridge/internal/rsync"
	"github.com/acolita/mutagen-bridge/internal/sshconf"
)

// Copier seeds session data with a bulk transfer before the engine
// takes over incremental sync. progress may be nil when nobody is
// listening.
type Copier interface {
	Seed(ctx context.Context, job rsync.Job, progress rsync.ProgressFunc) error
}

// Orchestrator translates connection specs into engine invocations and
// drives the session lifecycle.
type Orchestrator struct {
	engine *engine.Runner
	synth  *sshconf.Synthesizer
	copier Copier   // optional
	notify Notifier // optional
	fs     ports.FileSystem
	sync   config.SyncConfig
}

// NewOrchestrator creates an Orchestrator. copier may be nil to
// disable initial transfers, notify may be nil to silence events.
func NewOrchestrator(eng *engine.Runner, synth *sshconf.Synthesizer, copier Copier, notify Notifier, fs ports.FileSystem, syncCfg config.SyncConfig) *Orchestrator {
	if syncCfg.DefaultMode == "" {
		syncCfg.DefaultMode = string(TwoWaySafe)
	}
	if syncCfg.FileMode == "" {
		syncCfg.FileMode = "0644"
	}
	if syncCfg.DirectoryMode == "" {
		syncCfg.DirectoryMode = "0755"
	}
	return &Orchestrator{
		engine: eng,
		synth:  synth,
		copier: copier,
		notify: notify,
		fs:     fs,
		sync:   syncCfg,
	}
}

// Engine exposes the underlying engine runner for status queries.
func (o *Orchestrator) Engine() *engine.Runner {
	return o.engine
}

// Create validates the spec, optionally seeds the local path, prepares
// SSH credentials and creates the session. It returns the sanitized
// session name. A failed seed transfer aborts the whole operation
// before any session exists.
func (o *Orchestrator) Create(ctx context.Context, spec Spec) (string, error) {
	mode := spec.Mode
	if mode == "" {
		mode = Mode(o.sync.DefaultMode)
	}
	if !mode.Valid() {
		return "", &InvalidModeError{Mode: string(mode)}
	}
	switch spec.SeedDirection {
	case "", SeedSkip, SeedDownload, SeedUpload:
	default:
		return "", &InvalidSeedDirectionError{Direction: spec.SeedDirection}
	}

	name := SanitizeName(spec.Name)

	if err := o.fs.MkdirAll(spec.LocalPath, 0755); err != nil {
		return "", fmt.Errorf("create local directory: %w", err)
	}

	if (spec.SeedDirection == SeedDownload || spec.SeedDirection == SeedUpload) && o.copier != nil {
		job := rsync.Job{
			Direction:  rsync.Direction(spec.SeedDirection),
			Host:       spec.Host,
			Port:       spec.Port,
			User:       spec.User,
			KeyPath:    spec.KeyPath,
			RemotePath: spec.RemotePath,
			LocalPath:  spec.LocalPath,
		}
		var progress rsync.ProgressFunc
		if o.notify != nil {
			progress = func(percent int, line string) {
				o.notify.SyncProgress(name, percent, line)
			}
		}
		if err := o.copier.Seed(ctx, job, progress); err != nil {
			return "", err
		}
	}

	url, err := o.synth.RemoteURL(sshconf.Connection{
		Name:       spec.Name,
		Host:       spec.Host,
		Port:       spec.Port,
		User:       spec.User,
		RemotePath: spec.RemotePath,
		KeyPath:    spec.KeyPath,
	}, name)
	if err != nil {
		return "", err
	}

	args := []string{
		"sync", "create",
		"--name=" + name,
		"--mode=" + string(mode),
		"--default-file-mode=" + o.sync.FileMode,
		"--default-directory-mode=" + o.sync.DirectoryMode,
	}
	for _, pattern := range o.sync.DefaultIgnores {
		args = append(args, "--ignore="+pattern)
	}
	// In replica mode the first endpoint overwrites the second, so the
	// remote leads. All other modes list the local path first.
	if mode == OneWayReplica {
		args = append(args, url, spec.LocalPath)
	} else {
		args = append(args, spec.LocalPath, url)
	}

	if _, err := o.engine.RunTimeout(ctx, o.engine.CreateTimeout(), args...); err != nil {
		return "", err
	}

	slog.Info("session created",
		slog.String("session", name),
		slog.String("mode", string(mode)),
	)
	if o.notify != nil {
		o.notify.SessionCreated(name)
	}
	return name, nil
}

// Apply runs a lifecycle action against the named session. Unknown
// actions are rejected before any process is spawned.
func (o *Orchestrator) Apply(ctx context.Context, name string, action Action) error {
	if !action.Valid() {
		return &InvalidActionError{Action: string(action)}
	}
	if _, err := o.engine.Run(ctx, "sync", string(action), name); err != nil {
		return err
	}
	slog.Info("session action applied",
		slog.String("session", name),
		slog.String("action", string(action)),
	)
	if o.notify != nil {
		o.notify.SessionAction(name, string(action))
	}
	return nil
}

// List returns current sessions, starting the daemon first when it is
// down. A listing timeout yields an empty result instead of an error:
// the daemon may still be warming up, and the caller's next poll will
// catch up.
func (o *Orchestrator) List(ctx context.Context) ([]engine.Session, error) {
	if err := o.engine.EnsureDaemon(ctx); err != nil {
		return nil, err
	}
	sessions, err := o.engine.ListSessions(ctx, "", false)
	if err != nil {
		if engine.IsTimeout(err) {
			slog.Warn("session list timed out, returning empty list",
				slog.String("error", err.Error()))
			return []engine.Session{}, nil
		}
		return nil, err
	}
	return sessions, nil
}

// Find returns the named session or SessionNotFoundError.
func (o *Orchestrator) Find(ctx context.Context, name string) (*engine.Session, error) {
	sessions, err := o.engine.ListSessions(ctx, "", false)
	if err != nil {
		return nil, err
	}
	for i := range sessions {
		if sessions[i].Name == name {
			return &sessions[i], nil
		}
	}
	return nil, &SessionNotFoundError{Name: name}
}
