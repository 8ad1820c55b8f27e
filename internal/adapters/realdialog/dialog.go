// Package realdialog implements ports.DialogProvider with terminal
// forms. The forms run on the controlling terminal, so callers must
// only invoke them from interactive CLI flows, never while the server
// is detached.
package realdialog

import (
	"fmt"
	"net"
	"strconv"
	"strings"

	"github.com/charmbracelet/huh"

	"github.com/acolita/mutagen-bridge/internal/ports"
)

// Provider runs huh forms on the controlling terminal.
type Provider struct{}

// New returns a new terminal dialog provider.
func New() *Provider {
	return &Provider{}
}

// ConnectionForm collects a saved-connection definition.
func (p *Provider) ConnectionForm(prefill ports.ConnectionFormData) (ports.ConnectionFormData, error) {
	result := prefill
	portStr := strconv.Itoa(prefill.Port)
	if portStr == "0" {
		portStr = "22"
	}
	if result.SyncMode == "" {
		result.SyncMode = "two-way-safe"
	}
	var confirmed bool

	form := huh.NewForm(
		huh.NewGroup(
			huh.NewInput().
				Title("Connection Name").
				Description("Display name; also the basis of the session name").
				Validate(required("name")).
				Value(&result.Name),

			huh.NewInput().
				Title("Host").
				Description("SSH hostname or IP address").
				Validate(required("host")).
				Value(&result.Host),

			huh.NewInput().
				Title("Port").
				Description("SSH port").
				Validate(validPort).
				Value(&portStr),

			huh.NewInput().
				Title("User").
				Description("SSH username").
				Validate(required("user")).
				Value(&result.User),
		),
		huh.NewGroup(
			huh.NewInput().
				Title("Remote Path").
				Description("Directory on the server to sync").
				Validate(required("remote path")).
				Value(&result.RemotePath),

			huh.NewInput().
				Title("Local Path").
				Description("Local directory to sync").
				Validate(required("local path")).
				Value(&result.LocalPath),

			huh.NewInput().
				Title("SSH Key Path").
				Description("Private key path (leave empty for agent/default keys)").
				Value(&result.KeyPath),

			huh.NewSelect[string]().
				Title("Sync Mode").
				Options(
					huh.NewOption("Two-way safe", "two-way-safe"),
					huh.NewOption("Two-way resolved", "two-way-resolved"),
					huh.NewOption("One-way safe", "one-way-safe"),
					huh.NewOption("One-way replica", "one-way-replica"),
				).
				Value(&result.SyncMode),
		),
		huh.NewGroup(
			huh.NewConfirm().
				Title("Save this connection?").
				Value(&confirmed),
		),
	)

	if err := form.Run(); err != nil {
		return prefill, err
	}

	port, err := strconv.Atoi(strings.TrimSpace(portStr))
	if err != nil {
		port = 22
	}
	result.Port = port
	result.Confirmed = confirmed

	return result, nil
}

// SetupForm collects server configuration for the first run.
func (p *Provider) SetupForm(prefill ports.SetupFormData) (ports.SetupFormData, error) {
	result := prefill
	var confirmed bool

	form := huh.NewForm(
		huh.NewGroup(
			huh.NewInput().
				Title("Listen Address").
				Description("host:port the API binds to").
				Validate(validListen).
				Value(&result.Listen),

			huh.NewInput().
				Title("Mutagen Binary").
				Description("Path to the mutagen binary (leave empty for auto-detection)").
				Value(&result.EngineBinary),

			huh.NewInput().
				Title("Database Path").
				Description("Where saved connections are stored").
				Validate(required("database path")).
				Value(&result.StorePath),

			huh.NewConfirm().
				Title("Use the system keyring for SSH secrets?").
				Value(&result.UseKeyring),
		),
		huh.NewGroup(
			huh.NewConfirm().
				Title("Write this configuration?").
				Value(&confirmed),
		),
	)

	if err := form.Run(); err != nil {
		return prefill, err
	}
	result.Confirmed = confirmed

	return result, nil
}

func required(field string) func(string) error {
	return func(s string) error {
		if strings.TrimSpace(s) == "" {
			return fmt.Errorf("%s is required", field)
		}
		return nil
	}
}

func validPort(s string) error {
	n, err := strconv.Atoi(strings.TrimSpace(s))
	if err != nil || n < 1 || n > 65535 {
		return fmt.Errorf("port must be a number between 1 and 65535")
	}
	return nil
}

func validListen(s string) error {
	if _, _, err := net.SplitHostPort(strings.TrimSpace(s)); err != nil {
		return fmt.Errorf("listen address must be host:port")
	}
	return nil
}

// Ensure Provider implements ports.DialogProvider.
var _ ports.DialogProvider = (*Provider)(nil)
