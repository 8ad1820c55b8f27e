package setup

import (
	"context"
	"errors"
	"path/filepath"
	"testing"
	"time"

	"github.com/acolita/mutagen-bridge/internal/config"
	"github.com/acolita/mutagen-bridge/internal/ports"
	"github.com/acolita/mutagen-bridge/internal/store"
	"github.com/acolita/mutagen-bridge/internal/testing/fakes/fakeclock"
	"github.com/acolita/mutagen-bridge/internal/testing/fakes/fakedialog"
	"github.com/acolita/mutagen-bridge/internal/testing/fakes/fakefs"
)

const configPath = "/home/test/.config/mutagen-bridge/config.yaml"

func acceptedSetup() ports.SetupFormData {
	return ports.SetupFormData{
		Listen:     "0.0.0.0:9000",
		StorePath:  "/home/test/.local/share/mutagen-bridge/connections.db",
		UseKeyring: false,
		Confirmed:  true,
	}
}

func TestInitConfig_WritesFile(t *testing.T) {
	fsys := fakefs.New()
	dialog := fakedialog.New()
	dialog.SetupResult = acceptedSetup()

	path, err := New(fsys, dialog).InitConfig(configPath, false)
	if err != nil {
		t.Fatalf("InitConfig() error = %v", err)
	}
	if path != configPath {
		t.Errorf("path = %q", path)
	}

	cfg, err := config.Load(path, fsys)
	if err != nil {
		t.Fatalf("reload config: %v", err)
	}
	if cfg.Server.Listen != "0.0.0.0:9000" {
		t.Errorf("listen = %q", cfg.Server.Listen)
	}
	if cfg.Store.Path != "/home/test/.local/share/mutagen-bridge/connections.db" {
		t.Errorf("store path = %q", cfg.Store.Path)
	}
	if cfg.SSH.UseKeyring {
		t.Error("keyring still enabled")
	}
	// Untouched sections keep their defaults.
	if cfg.Sync.DefaultMode != "two-way-safe" || cfg.Engine.CommandTimeoutSeconds != 60 {
		t.Errorf("defaults lost: %+v", cfg)
	}
}

func TestInitConfig_PrefillsDefaults(t *testing.T) {
	fsys := fakefs.New()
	dialog := fakedialog.New()
	dialog.SetupResult = acceptedSetup()

	if _, err := New(fsys, dialog).InitConfig(configPath, false); err != nil {
		t.Fatalf("InitConfig() error = %v", err)
	}

	if !dialog.SetupCalled {
		t.Fatal("form never shown")
	}
	if dialog.SetupPrefill.Listen != "127.0.0.1:8617" {
		t.Errorf("prefill listen = %q", dialog.SetupPrefill.Listen)
	}
	if !dialog.SetupPrefill.UseKeyring {
		t.Error("prefill keyring = false, want default true")
	}
	if dialog.SetupPrefill.StorePath == "" {
		t.Error("prefill store path empty")
	}
}

func TestInitConfig_RefusesExistingFile(t *testing.T) {
	fsys := fakefs.New()
	fsys.AddFile(configPath, []byte("server:\n  listen: 127.0.0.1:1\n"), 0644)
	dialog := fakedialog.New()

	_, err := New(fsys, dialog).InitConfig(configPath, false)
	var exists *ExistsError
	if !errors.As(err, &exists) {
		t.Fatalf("error = %v, want ExistsError", err)
	}
	if exists.Path != configPath {
		t.Errorf("path = %q", exists.Path)
	}
	if dialog.SetupCalled {
		t.Error("form shown despite existing config")
	}
}

func TestInitConfig_ForceOverwrites(t *testing.T) {
	fsys := fakefs.New()
	fsys.AddFile(configPath, []byte("server:\n  listen: 127.0.0.1:1\n"), 0644)
	dialog := fakedialog.New()
	dialog.SetupResult = acceptedSetup()

	if _, err := New(fsys, dialog).InitConfig(configPath, true); err != nil {
		t.Fatalf("InitConfig() error = %v", err)
	}

	cfg, err := config.Load(configPath, fsys)
	if err != nil {
		t.Fatal(err)
	}
	if cfg.Server.Listen != "0.0.0.0:9000" {
		t.Errorf("listen = %q, want overwritten value", cfg.Server.Listen)
	}
}

func TestInitConfig_Aborted(t *testing.T) {
	fsys := fakefs.New()
	dialog := fakedialog.New()
	dialog.SetupResult = ports.SetupFormData{Listen: "0.0.0.0:9000", Confirmed: false}

	_, err := New(fsys, dialog).InitConfig(configPath, false)
	if !errors.Is(err, ErrAborted) {
		t.Fatalf("error = %v, want ErrAborted", err)
	}
	if _, err := fsys.Stat(configPath); err == nil {
		t.Error("config written despite abort")
	}
}

func TestInitConfig_FormError(t *testing.T) {
	fsys := fakefs.New()
	dialog := fakedialog.New()
	dialog.Err = errors.New("terminal gone")

	_, err := New(fsys, dialog).InitConfig(configPath, false)
	if err == nil || !errors.Is(err, dialog.Err) {
		t.Fatalf("error = %v", err)
	}
}

func newTestStore(t *testing.T) *store.Store {
	t.Helper()
	clock := fakeclock.New(time.Date(2024, 6, 1, 12, 0, 0, 0, time.UTC))
	st, err := store.Open(filepath.Join(t.TempDir(), "connections.db"), clock)
	if err != nil {
		t.Fatalf("open store: %v", err)
	}
	t.Cleanup(func() { st.Close() })
	return st
}

func TestAddConnection_SavesToStore(t *testing.T) {
	st := newTestStore(t)
	dialog := fakedialog.New()
	dialog.ConnectionResult = ports.ConnectionFormData{
		Name:       "Web App",
		Host:       "example.com",
		Port:       2222,
		User:       "deploy",
		RemotePath: "/srv/app",
		LocalPath:  "/home/test/projects/app",
		SyncMode:   "one-way-safe",
		Confirmed:  true,
	}

	conn, err := New(fakefs.New(), dialog).AddConnection(context.Background(), st, "two-way-safe")
	if err != nil {
		t.Fatalf("AddConnection() error = %v", err)
	}
	if conn.ID == 0 {
		t.Error("connection id not assigned")
	}

	stored, err := st.GetByName(context.Background(), "Web App")
	if err != nil {
		t.Fatalf("GetByName() error = %v", err)
	}
	if stored.Host != "example.com" || stored.Port != 2222 || stored.SyncMode != "one-way-safe" {
		t.Errorf("stored = %+v", stored)
	}
}

func TestAddConnection_PrefillCarriesDefaults(t *testing.T) {
	st := newTestStore(t)
	dialog := fakedialog.New()
	dialog.ConnectionResult = ports.ConnectionFormData{
		Name: "X", Host: "h", User: "u", RemotePath: "/r", LocalPath: "/l",
		Port: 22, SyncMode: "one-way-replica", Confirmed: true,
	}

	if _, err := New(fakefs.New(), dialog).AddConnection(context.Background(), st, "one-way-replica"); err != nil {
		t.Fatal(err)
	}
	if dialog.ConnectionPrefill.Port != 22 {
		t.Errorf("prefill port = %d", dialog.ConnectionPrefill.Port)
	}
	if dialog.ConnectionPrefill.SyncMode != "one-way-replica" {
		t.Errorf("prefill mode = %q", dialog.ConnectionPrefill.SyncMode)
	}
}

func TestAddConnection_Aborted(t *testing.T) {
	st := newTestStore(t)
	dialog := fakedialog.New()
	dialog.ConnectionResult = ports.ConnectionFormData{Name: "Web App", Confirmed: false}

	_, err := New(fakefs.New(), dialog).AddConnection(context.Background(), st, "")
	if !errors.Is(err, ErrAborted) {
		t.Fatalf("error = %v, want ErrAborted", err)
	}

	list, err := st.List(context.Background())
	if err != nil {
		t.Fatal(err)
	}
	if len(list) != 0 {
		t.Errorf("store has %d connections after abort", len(list))
	}
}
