// mutagen-bridge is an HTTP control plane for Mutagen file sync sessions.
package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/acolita/mutagen-bridge/internal/adapters/realclock"
	"github.com/acolita/mutagen-bridge/internal/adapters/realdialog"
	"github.com/acolita/mutagen-bridge/internal/adapters/realexec"
	"github.com/acolita/mutagen-bridge/internal/adapters/realfs"
	"github.com/acolita/mutagen-bridge/internal/adapters/realnet"
	"github.com/acolita/mutagen-bridge/internal/config"
	"github.com/acolita/mutagen-bridge/internal/engine"
	"github.com/acolita/mutagen-bridge/internal/httpapi"
	"github.com/acolita/mutagen-bridge/internal/logging"
	"github.com/acolita/mutagen-bridge/internal/push"
	"github.com/acolita/mutagen-bridge/internal/remotefs"
	"github.com/acolita/mutagen-bridge/internal/rsync"
	"github.com/acolita/mutagen-bridge/internal/security"
	"github.com/acolita/mutagen-bridge/internal/sessions"
	"github.com/acolita/mutagen-bridge/internal/setup"
	"github.com/acolita/mutagen-bridge/internal/sshconf"
	"github.com/acolita/mutagen-bridge/internal/sshkeys"
	"github.com/acolita/mutagen-bridge/internal/store"
)

// Version information - set at build time.
var (
	Version   = "1.0.0"
	BuildTime = "unknown"
	GitCommit = "unknown"
)

func main() {
	var (
		configPath  string
		listen      string
		showVersion bool
		debug       bool
		runInit     bool
		force       bool
		addConn     bool
	)

	flag.StringVar(&configPath, "config", "", "Path to configuration file")
	flag.StringVar(&listen, "listen", "", "Listen address host:port (overrides config)")
	flag.BoolVar(&showVersion, "version", false, "Show version information")
	flag.BoolVar(&debug, "debug", false, "Enable debug logging")
	flag.BoolVar(&runInit, "init", false, "Interactively write a config file and exit")
	flag.BoolVar(&force, "force", false, "Overwrite the existing config file on -init")
	flag.BoolVar(&addConn, "add", false, "Interactively save a connection and exit")
	flag.Parse()

	if showVersion {
		fmt.Printf("mutagen-bridge version %s\n", Version)
		fmt.Printf("  Build time: %s\n", BuildTime)
		fmt.Printf("  Git commit: %s\n", GitCommit)
		os.Exit(0)
	}

	fs := realfs.New()

	if runInit {
		wizard := setup.New(fs, realdialog.New())
		path, err := wizard.InitConfig(configPath, force)
		if err != nil {
			if errors.Is(err, setup.ErrAborted) {
				fmt.Fprintln(os.Stderr, "Setup aborted, nothing written.")
				os.Exit(0)
			}
			fmt.Fprintf(os.Stderr, "Error writing config: %v\n", err)
			os.Exit(1)
		}
		fmt.Printf("Wrote %s\n", path)
		os.Exit(0)
	}

	if configPath == "" {
		configPath = config.DefaultConfigPath()
	}

	// Load configuration
	cfg, err := config.Load(configPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error loading config: %v\n", err)
		os.Exit(1)
	}

	// Override listen address from command line if provided
	if listen != "" {
		cfg.Server.Listen = listen
	}

	// Enable debug logging if flag is set
	if debug {
		cfg.Logging.Level = "debug"
	}

	// Validate configuration
	if err := cfg.Validate(); err != nil {
		fmt.Fprintf(os.Stderr, "Invalid configuration: %v\n", err)
		os.Exit(1)
	}

	// Setup logging
	logging.Setup(cfg.Logging.Level, cfg.Logging.Sanitize)

	clock := realclock.New()

	storePath := cfg.Store.Path
	if storePath == "" {
		storePath = config.DefaultStorePath()
	}
	if storePath == "" {
		fmt.Fprintln(os.Stderr, "Cannot determine the connection store path; set store.path in the config")
		os.Exit(1)
	}

	st, err := store.Open(storePath, clock)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error opening connection store: %v\n", err)
		os.Exit(1)
	}

	if addConn {
		wizard := setup.New(fs, realdialog.New())
		conn, err := wizard.AddConnection(context.Background(), st, cfg.Sync.DefaultMode)
		st.Close()
		if err != nil {
			if errors.Is(err, setup.ErrAborted) {
				fmt.Fprintln(os.Stderr, "Aborted, nothing saved.")
				os.Exit(0)
			}
			fmt.Fprintf(os.Stderr, "Error saving connection: %v\n", err)
			os.Exit(1)
		}
		fmt.Printf("Saved connection %q\n", conn.Name)
		os.Exit(0)
	}

	slog.Info("starting mutagen-bridge",
		slog.String("version", Version),
		slog.String("listen", cfg.Server.Listen),
		slog.String("store", st.Path()),
	)

	execRunner := realexec.New()
	netDialer := realnet.NewDialer()

	eng := engine.New(execRunner, fs, clock, engine.Options{
		Binary:         cfg.Engine.Binary,
		CommandTimeout: time.Duration(cfg.Engine.CommandTimeoutSeconds) * time.Second,
		CreateTimeout:  time.Duration(cfg.Engine.CreateTimeoutSeconds) * time.Second,
		DaemonGrace:    time.Duration(cfg.Engine.DaemonGraceSeconds) * time.Second,
	})

	var secrets *security.KeyringStore
	if cfg.SSH.UseKeyring {
		secrets = security.NewKeyringStore()
	}

	// A nil *KeyringStore must not leak into the interface fields below.
	var registrar sshconf.KeyRegistrar
	if cfg.SSH.UseAgent {
		if secrets != nil {
			registrar = sshconf.NewAgent(fs, netDialer, secrets)
		} else {
			registrar = sshconf.NewAgent(fs, netDialer, nil)
		}
	}
	synth := sshconf.New(fs, registrar, cfg.SSH.ConfigPath)

	browserOpts := remotefs.Options{
		FileSystem: fs,
		NetDialer:  netDialer,
	}
	if secrets != nil {
		browserOpts.Secrets = secrets
	}
	browser := remotefs.New(browserOpts)

	copier := rsync.New(execRunner, time.Duration(cfg.Sync.RsyncTimeoutSeconds)*time.Second)
	hub := push.NewHub()
	orch := sessions.NewOrchestrator(eng, synth, copier, hub, fs, cfg.Sync)

	api := httpapi.New(cfg.Server.Listen, httpapi.Options{
		Orchestrator:    orch,
		Store:           st,
		Keys:            sshkeys.NewScanner(fs),
		Browser:         browser,
		Hub:             hub,
		DefaultSyncMode: cfg.Sync.DefaultMode,
	})

	// Set up config hot-reload if a config file path is known
	var configWatcher *config.Watcher
	if configPath != "" {
		var watcherErr error
		configWatcher, watcherErr = config.NewWatcher(configPath, func(newCfg *config.Config) {
			// Apply command line overrides to new config
			if debug {
				newCfg.Logging.Level = "debug"
			}
			logging.Setup(newCfg.Logging.Level, newCfg.Logging.Sanitize)
			slog.Info("config reloaded; listener and store changes apply on restart",
				slog.String("path", configPath),
			)
		})
		if watcherErr != nil {
			slog.Warn("config hot-reload disabled",
				slog.String("error", watcherErr.Error()),
			)
		} else {
			slog.Info("config hot-reload enabled",
				slog.String("path", configPath),
			)
		}
	}

	// Run until interrupted
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	runErr := api.Start(ctx)

	if configWatcher != nil {
		configWatcher.Close()
	}
	if err := st.Close(); err != nil {
		slog.Warn("closing connection store", slog.String("error", err.Error()))
	}

	if runErr != nil && !errors.Is(runErr, context.Canceled) {
		slog.Error("server error", slog.String("error", runErr.Error()))
		os.Exit(1)
	}

	slog.Info("shutdown complete")
}
