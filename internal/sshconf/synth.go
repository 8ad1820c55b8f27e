// Package sshconf synthesizes SSH client configuration and credentials
// for sync endpoints.
//
// Sessions that authenticate with a private key get a host alias in the
// user's SSH config so the sync engine, which has no key flag of its
// own, picks the key up through OpenSSH. Sessions without a usable key
// fall back to plain user@host URLs and whatever ambient credentials
// SSH finds.
package sshconf

import (
	"fmt"
	"log/slog"
	"path/filepath"
	"strings"

	"github.com/acolita/mutagen-bridge/internal/ports"
)

const markerPrefix = "# mutagen-bridge: "

// Connection describes one remote endpoint to prepare credentials for.
type Connection struct {
	Name       string // display name, recorded in the config marker
	Host       string
	Port       int
	User       string
	RemotePath string
	KeyPath    string // optional private key
}

// KeyRegistrar loads private keys into a running SSH agent.
type KeyRegistrar interface {
	RegisterKey(keyPath string) error
}

// Synthesizer writes host aliases into the user's SSH config and builds
// endpoint URLs.
type Synthesizer struct {
	fs         ports.FileSystem
	registrar  KeyRegistrar // optional, best-effort
	configPath string       // empty means ~/.ssh/config
}

// New creates a Synthesizer. registrar may be nil to skip agent
// registration; configPath overrides the default ~/.ssh/config.
func New(fs ports.FileSystem, registrar KeyRegistrar, configPath string) *Synthesizer {
	return &Synthesizer{
		fs:         fs,
		registrar:  registrar,
		configPath: configPath,
	}
}

// RemoteURL prepares credentials for the connection and returns the
// endpoint URL the sync engine should use.
//
// With a readable private key the URL points at a host alias
// ("mutagen-<session>") that carries host, port and key through the SSH
// config entry written by EnsureEntry. Without one the URL embeds the
// address directly: user@host:path, or user@host:port:path for
// non-default ports.
func (s *Synthesizer) RemoteURL(conn Connection, sessionName string) (string, error) {
	if conn.KeyPath != "" {
		if _, err := s.fs.Stat(conn.KeyPath); err == nil {
			alias, err := s.EnsureEntry(conn, sessionName)
			if err != nil {
				return "", err
			}
			return fmt.Sprintf("%s@%s:%s", conn.User, alias, conn.RemotePath), nil
		}
		slog.Warn("ssh key file missing, falling back to plain URL",
			slog.String("key_path", conn.KeyPath),
			slog.String("session", sessionName),
		)
	}

	if conn.Port != 0 && conn.Port != 22 {
		return fmt.Sprintf("%s@%s:%d:%s", conn.User, conn.Host, conn.Port, conn.RemotePath), nil
	}
	return fmt.Sprintf("%s@%s:%s", conn.User, conn.Host, conn.RemotePath), nil
}

// EnsureEntry repairs key permissions, writes the marked host alias
// block into the SSH config when it is not already there, and offers
// the key to the SSH agent. It returns the alias. The write is
// idempotent: the marker comment keys the block, so repeated calls for
// the same connection name leave the file untouched.
func (s *Synthesizer) EnsureEntry(conn Connection, sessionName string) (string, error) {
	alias := "mutagen-" + sessionName

	s.fixKeyPermissions(conn.KeyPath)

	path, err := s.resolveConfigPath()
	if err != nil {
		return "", err
	}
	if err := s.fs.MkdirAll(filepath.Dir(path), 0700); err != nil {
		return "", fmt.Errorf("create ssh directory: %w", err)
	}

	existing := ""
	if data, err := s.fs.ReadFile(path); err == nil {
		existing = string(data)
	}

	marker := markerPrefix + conn.Name
	if !strings.Contains(existing, marker) {
		port := conn.Port
		if port == 0 {
			port = 22
		}
		block := fmt.Sprintf("\n%s\nHost %s\n  HostName %s\n  User %s\n  Port %d\n  IdentityFile %s\n  StrictHostKeyChecking no\n  UserKnownHostsFile /dev/null\n\n",
			marker, alias, conn.Host, conn.User, port, conn.KeyPath)
		if err := s.fs.WriteFile(path, []byte(existing+block), 0600); err != nil {
			return "", fmt.Errorf("write ssh config: %w", err)
		}
		slog.Info("added ssh config entry",
			slog.String("alias", alias),
			slog.String("host", conn.Host),
		)
	}

	if s.registrar != nil {
		if err := s.registrar.RegisterKey(conn.KeyPath); err != nil {
			slog.Debug("ssh agent registration skipped",
				slog.String("key_path", conn.KeyPath),
				slog.String("error", err.Error()),
			)
		}
	}

	return alias, nil
}

// RemoveEntry deletes the marked block for the named connection from
// the SSH config. Removing an absent entry is not an error.
func (s *Synthesizer) RemoveEntry(name string) error {
	path, err := s.resolveConfigPath()
	if err != nil {
		return err
	}
	data, err := s.fs.ReadFile(path)
	if err != nil {
		return nil
	}

	marker := markerPrefix + name
	lines := strings.Split(string(data), "\n")
	out := make([]string, 0, len(lines))
	skipping := false
	for _, line := range lines {
		if strings.TrimSpace(line) == marker {
			// Drop the blank separator written before the marker.
			if n := len(out); n > 0 && strings.TrimSpace(out[n-1]) == "" {
				out = out[:n-1]
			}
			skipping = true
			continue
		}
		if skipping {
			if strings.TrimSpace(line) == "" {
				skipping = false
			}
			continue
		}
		out = append(out, line)
	}

	cleaned := strings.Join(out, "\n")
	if cleaned == string(data) {
		return nil
	}
	if err := s.fs.WriteFile(path, []byte(cleaned), 0600); err != nil {
		return fmt.Errorf("write ssh config: %w", err)
	}
	slog.Info("removed ssh config entry", slog.String("name", name))
	return nil
}

// fixKeyPermissions tightens the key file to 0600 when needed. SSH
// refuses group/world readable keys; failure here only surfaces later
// as an auth error, so it is logged and not fatal.
func (s *Synthesizer) fixKeyPermissions(keyPath string) {
	info, err := s.fs.Stat(keyPath)
	if err != nil {
		return
	}
	if info.Mode().Perm() == 0600 {
		return
	}
	if err := s.fs.Chmod(keyPath, 0600); err != nil {
		slog.Warn("could not fix key permissions",
			slog.String("key_path", keyPath),
			slog.String("error", err.Error()),
		)
	}
}

func (s *Synthesizer) resolveConfigPath() (string, error) {
	if s.configPath != "" {
		return s.configPath, nil
	}
	home, err := s.fs.UserHomeDir()
	if err != nil {
		return "", fmt.Errorf("resolve home directory: %w", err)
	}
	return filepath.Join(home, ".ssh", "config"), nil
}
