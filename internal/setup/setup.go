// Package setup runs the interactive first-run flows: writing the
// initial config file and adding saved connections from the terminal.
package setup

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"path/filepath"

	"github.com/acolita/mutagen-bridge/internal/config"
	"github.com/acolita/mutagen-bridge/internal/ports"
	"github.com/acolita/mutagen-bridge/internal/store"
)

// ErrAborted reports that the user backed out of a form.
var ErrAborted = errors.New("setup aborted")

// ExistsError reports a config file that would be overwritten.
type ExistsError struct {
	Path string
}

func (e *ExistsError) Error() string {
	return fmt.Sprintf("config file %s already exists (re-run with --force to overwrite)", e.Path)
}

// Wizard drives the interactive configuration and connection flows.
type Wizard struct {
	fs     ports.FileSystem
	dialog ports.DialogProvider
}

// New creates a Wizard.
func New(fs ports.FileSystem, dialog ports.DialogProvider) *Wizard {
	return &Wizard{fs: fs, dialog: dialog}
}

// InitConfig interactively builds the server configuration and writes
// it to path (the default config path when empty). An existing file is
// refused unless force is set. Returns the written path.
func (w *Wizard) InitConfig(path string, force bool) (string, error) {
	if path == "" {
		path = config.DefaultConfigPath()
	}
	if path == "" {
		return "", errors.New("cannot determine config path")
	}
	if !force {
		if _, err := w.fs.Stat(path); err == nil {
			return "", &ExistsError{Path: path}
		}
	}

	cfg := config.DefaultConfig()
	storePath := cfg.Store.Path
	if storePath == "" {
		storePath = config.DefaultStorePath()
	}

	result, err := w.dialog.SetupForm(ports.SetupFormData{
		Listen:       cfg.Server.Listen,
		EngineBinary: cfg.Engine.Binary,
		StorePath:    storePath,
		UseKeyring:   cfg.SSH.UseKeyring,
	})
	if err != nil {
		return "", fmt.Errorf("setup form: %w", err)
	}
	if !result.Confirmed {
		return "", ErrAborted
	}

	cfg.Server.Listen = result.Listen
	cfg.Engine.Binary = result.EngineBinary
	cfg.Store.Path = result.StorePath
	cfg.SSH.UseKeyring = result.UseKeyring

	if err := cfg.Validate(); err != nil {
		return "", err
	}
	if err := w.fs.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return "", fmt.Errorf("create config directory: %w", err)
	}
	if err := config.Save(cfg, path, w.fs); err != nil {
		return "", err
	}

	slog.Info("config written", slog.String("path", path))
	return path, nil
}

// AddConnection interactively defines a saved connection and stores
// it. The sync mode defaults to defaultMode when the form leaves it
// empty.
func (w *Wizard) AddConnection(ctx context.Context, st *store.Store, defaultMode string) (*store.Connection, error) {
	if defaultMode == "" {
		defaultMode = "two-way-safe"
	}

	result, err := w.dialog.ConnectionForm(ports.ConnectionFormData{
		Port:     22,
		SyncMode: defaultMode,
	})
	if err != nil {
		return nil, fmt.Errorf("connection form: %w", err)
	}
	if !result.Confirmed {
		return nil, ErrAborted
	}
	if result.SyncMode == "" {
		result.SyncMode = defaultMode
	}

	conn := &store.Connection{
		Name:       result.Name,
		Host:       result.Host,
		Port:       result.Port,
		User:       result.User,
		RemotePath: result.RemotePath,
		LocalPath:  result.LocalPath,
		KeyPath:    result.KeyPath,
		SyncMode:   result.SyncMode,
	}
	if err := st.Upsert(ctx, conn); err != nil {
		return nil, err
	}

	slog.Info("connection saved",
		slog.String("name", conn.Name),
		slog.String("host", conn.Host),
	)
	return conn, nil
}
