// Package config handles configuration parsing for mutagen-bridge.
package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strconv"

	"github.com/bmatcuk/doublestar/v4"
	"gopkg.in/yaml.v3"

	"github.com/acolita/mutagen-bridge/internal/ports"
)

// DefaultConfigPath returns the default config file path:
// $XDG_CONFIG_HOME/mutagen-bridge/config.yaml or ~/.config/mutagen-bridge/config.yaml
func DefaultConfigPath() string {
	dir := os.Getenv("XDG_CONFIG_HOME")
	if dir == "" {
		home, err := os.UserHomeDir()
		if err != nil {
			return ""
		}
		dir = filepath.Join(home, ".config")
	}
	return filepath.Join(dir, "mutagen-bridge", "config.yaml")
}

// DefaultStorePath returns the default connection database path:
// $XDG_DATA_HOME/mutagen-bridge/connections.db or ~/.local/share/mutagen-bridge/connections.db
func DefaultStorePath() string {
	dir := os.Getenv("XDG_DATA_HOME")
	if dir == "" {
		home, err := os.UserHomeDir()
		if err != nil {
			return ""
		}
		dir = filepath.Join(home, ".local", "share")
	}
	return filepath.Join(dir, "mutagen-bridge", "connections.db")
}

// Config represents the top-level configuration.
type Config struct {
	Server  ServerConfig  `yaml:"server"`
	Engine  EngineConfig  `yaml:"engine"`
	Sync    SyncConfig    `yaml:"sync"`
	SSH     SSHConfig     `yaml:"ssh"`
	Store   StoreConfig   `yaml:"store"`
	Logging LoggingConfig `yaml:"logging"`
}

// ServerConfig defines the HTTP API listener.
type ServerConfig struct {
	Listen string `yaml:"listen"` // host:port the API binds to
}

// EngineConfig defines how the mutagen CLI is located and invoked.
type EngineConfig struct {
	Binary                string `yaml:"binary"`                  // explicit mutagen path, skips discovery
	CommandTimeoutSeconds int    `yaml:"command_timeout_seconds"` // bound for list/action commands
	CreateTimeoutSeconds  int    `yaml:"create_timeout_seconds"`  // bound for session creation
	DaemonGraceSeconds    int    `yaml:"daemon_grace_seconds"`    // settle time after daemon start
}

// SyncConfig defines session creation defaults.
type SyncConfig struct {
	DefaultMode         string   `yaml:"default_mode"`          // sync mode when a connection has none
	FileMode            string   `yaml:"file_mode"`             // octal permission applied to synced files
	DirectoryMode       string   `yaml:"directory_mode"`        // octal permission applied to synced directories
	DefaultIgnores      []string `yaml:"default_ignores"`       // glob patterns excluded from every session
	RsyncTimeoutSeconds int      `yaml:"rsync_timeout_seconds"` // bound for the initial rsync transfer
}

// SSHConfig defines SSH credential handling.
type SSHConfig struct {
	ConfigPath     string `yaml:"config_path"`      // empty means ~/.ssh/config
	KnownHostsPath string `yaml:"known_hosts_path"` // empty means ~/.ssh/known_hosts
	UseAgent       bool   `yaml:"use_agent"`        // register keys with the SSH agent
	UseKeyring     bool   `yaml:"use_keyring"`      // look up key passphrases in the OS keyring
}

// StoreConfig defines connection persistence.
type StoreConfig struct {
	Path string `yaml:"path"` // empty means DefaultStorePath()
}

// LoggingConfig defines logging settings.
type LoggingConfig struct {
	Level    string `yaml:"level"`    // "debug", "info", "warn", "error"
	Sanitize bool   `yaml:"sanitize"` // sanitize sensitive data from logs
}

// SyncModes are the session modes the engine accepts.
var SyncModes = []string{"two-way-safe", "two-way-resolved", "one-way-safe", "one-way-replica"}

// DefaultConfig returns the default configuration.
func DefaultConfig() *Config {
	return &Config{
		Server: ServerConfig{
			Listen: "127.0.0.1:8617",
		},
		Engine: EngineConfig{
			CommandTimeoutSeconds: 60,
			CreateTimeoutSeconds:  120,
			DaemonGraceSeconds:    1,
		},
		Sync: SyncConfig{
			DefaultMode:         "two-way-safe",
			FileMode:            "0644",
			DirectoryMode:       "0755",
			RsyncTimeoutSeconds: 300,
		},
		SSH: SSHConfig{
			UseAgent:   true,
			UseKeyring: true,
		},
		Logging: LoggingConfig{
			Level:    "info",
			Sanitize: true,
		},
	}
}

// Load loads configuration from a YAML file.
// An optional FileSystem can be passed for testing; if omitted, the real OS is used.
func Load(path string, fsys ...ports.FileSystem) (*Config, error) {
	cfg := DefaultConfig()

	if path == "" {
		return cfg, nil
	}

	var data []byte
	var err error
	if len(fsys) > 0 && fsys[0] != nil {
		data, err = fsys[0].ReadFile(path)
	} else {
		data, err = os.ReadFile(path)
	}
	if err != nil {
		if os.IsNotExist(err) {
			// File doesn't exist yet; return defaults (setup --init creates it)
			return cfg, nil
		}
		return nil, fmt.Errorf("read config file: %w", err)
	}

	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("parse config file: %w", err)
	}

	return cfg, nil
}

// Validate validates the configuration and fills zeroed values with defaults.
func (c *Config) Validate() error {
	if c.Server.Listen == "" {
		c.Server.Listen = "127.0.0.1:8617"
	}
	if c.Engine.CommandTimeoutSeconds <= 0 {
		c.Engine.CommandTimeoutSeconds = 60
	}
	if c.Engine.CreateTimeoutSeconds <= 0 {
		c.Engine.CreateTimeoutSeconds = 120
	}
	if c.Engine.DaemonGraceSeconds < 0 {
		c.Engine.DaemonGraceSeconds = 1
	}
	if c.Sync.RsyncTimeoutSeconds <= 0 {
		c.Sync.RsyncTimeoutSeconds = 300
	}
	if c.Sync.DefaultMode == "" {
		c.Sync.DefaultMode = "two-way-safe"
	}
	if !validSyncMode(c.Sync.DefaultMode) {
		return fmt.Errorf("invalid sync mode %q", c.Sync.DefaultMode)
	}
	if c.Sync.FileMode == "" {
		c.Sync.FileMode = "0644"
	}
	if c.Sync.DirectoryMode == "" {
		c.Sync.DirectoryMode = "0755"
	}
	if err := validOctalMode(c.Sync.FileMode); err != nil {
		return fmt.Errorf("file_mode: %w", err)
	}
	if err := validOctalMode(c.Sync.DirectoryMode); err != nil {
		return fmt.Errorf("directory_mode: %w", err)
	}
	for _, pattern := range c.Sync.DefaultIgnores {
		if !doublestar.ValidatePattern(pattern) {
			return fmt.Errorf("invalid ignore pattern %q", pattern)
		}
	}
	return nil
}

func validSyncMode(mode string) bool {
	for _, m := range SyncModes {
		if m == mode {
			return true
		}
	}
	return false
}

func validOctalMode(s string) error {
	if _, err := strconv.ParseUint(s, 8, 32); err != nil {
		return fmt.Errorf("not an octal permission: %q", s)
	}
	return nil
}

// Save writes the configuration to a YAML file.
// An optional FileSystem can be passed for testing; if omitted, the real OS is used.
func Save(cfg *Config, path string, fsys ...ports.FileSystem) error {
	data, err := yaml.Marshal(cfg)
	if err != nil {
		return fmt.Errorf("marshal config: %w", err)
	}

	if len(fsys) > 0 && fsys[0] != nil {
		return fsys[0].WriteFile(path, data, 0644)
	}
	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return fmt.Errorf("create config directory: %w", err)
	}
	return os.WriteFile(path, data, 0644)
}
