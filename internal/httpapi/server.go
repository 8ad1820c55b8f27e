// Package httpapi serves the control API consumed by the GUI frontend.
package httpapi

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net"
	"net/http"
	"sync"
	"time"

	"github.com/acolita/mutagen-bridge/internal/diagnose"
	"github.com/acolita/mutagen-bridge/internal/push"
	"github.com/acolita/mutagen-bridge/internal/remotefs"
	"github.com/acolita/mutagen-bridge/internal/sessions"
	"github.com/acolita/mutagen-bridge/internal/sshkeys"
	"github.com/acolita/mutagen-bridge/internal/store"
)

// Version is reported by the banner and health endpoints.
const Version = "1.0.0"

// Options carry the collaborators behind the API surface.
type Options struct {
	Orchestrator *sessions.Orchestrator
	Store        *store.Store
	Keys         *sshkeys.Scanner
	Browser      *remotefs.Browser
	Hub          *push.Hub

	// DefaultSyncMode fills connection payloads that omit sync_mode.
	DefaultSyncMode string
}

// Server is the HTTP control plane.
type Server struct {
	orch     *sessions.Orchestrator
	store    *store.Store
	keys     *sshkeys.Scanner
	browser  *remotefs.Browser
	hub      *push.Hub
	analyzer *diagnose.Analyzer

	defaultSyncMode string

	addr     string
	handler  http.Handler
	httpSrv  *http.Server
	mu       sync.Mutex
	listener net.Listener
	shutdown sync.Once
	shutErr  error
}

// New assembles the route table. addr is the host:port to bind.
func New(addr string, opts Options) *Server {
	s := &Server{
		orch:            opts.Orchestrator,
		store:           opts.Store,
		keys:            opts.Keys,
		browser:         opts.Browser,
		hub:             opts.Hub,
		analyzer:        diagnose.NewAnalyzer(),
		defaultSyncMode: opts.DefaultSyncMode,
		addr:            addr,
	}
	if s.defaultSyncMode == "" {
		s.defaultSyncMode = "two-way-safe"
	}

	mux := http.NewServeMux()
	mux.HandleFunc("GET /{$}", s.handleBanner)
	mux.HandleFunc("GET /api/health", s.handleHealth)
	mux.HandleFunc("GET /api/ssh-keys", s.handleSSHKeys)
	mux.HandleFunc("GET /api/system/mutagen-installed", s.handleEngineInstalled)
	mux.HandleFunc("GET /api/daemon/status", s.handleDaemonStatus)
	mux.HandleFunc("POST /api/daemon/start", s.handleDaemonStart)
	mux.HandleFunc("GET /api/sessions", s.handleSessionList)
	mux.HandleFunc("POST /api/sessions/create", s.handleSessionCreate)
	mux.HandleFunc("POST /api/sessions/action", s.handleSessionAction)
	mux.HandleFunc("GET /api/sessions/{name}/conflicts", s.handleConflictList)
	mux.HandleFunc("POST /api/sessions/{name}/resolve-conflicts", s.handleConflictResolve)
	mux.HandleFunc("GET /api/connections", s.handleConnectionList)
	mux.HandleFunc("POST /api/connections", s.handleConnectionCreate)
	mux.HandleFunc("GET /api/connections/{id}", s.handleConnectionGet)
	mux.HandleFunc("PUT /api/connections/{id}", s.handleConnectionUpdate)
	mux.HandleFunc("DELETE /api/connections/{id}", s.handleConnectionDelete)
	mux.HandleFunc("POST /api/connections/{id}/duplicate", s.handleConnectionDuplicate)
	mux.HandleFunc("POST /api/connections/{id}/connect", s.handleQuickConnect)
	mux.HandleFunc("POST /api/export", s.handleExport)
	mux.HandleFunc("POST /api/import", s.handleImport)
	mux.HandleFunc("POST /api/remote/browse", s.handleRemoteBrowse)
	if s.hub != nil {
		mux.Handle("GET /ws", s.hub)
	}

	s.handler = corsLocalhost(withRequestID(mux))
	s.httpSrv = &http.Server{
		Handler:           s.handler,
		ReadHeaderTimeout: 5 * time.Second,
	}
	return s
}

// Handler exposes the assembled route table, middleware included.
func (s *Server) Handler() http.Handler {
	return s.handler
}

// Addr returns the bound listener address, or the configured one before
// Start.
func (s *Server) Addr() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.listener != nil {
		return s.listener.Addr().String()
	}
	return s.addr
}

// Start binds the listener and serves until ctx is cancelled or the
// server fails.
func (s *Server) Start(ctx context.Context) error {
	ln, err := net.Listen("tcp", s.addr)
	if err != nil {
		return fmt.Errorf("listen %s: %w", s.addr, err)
	}
	s.mu.Lock()
	s.listener = ln
	s.mu.Unlock()

	slog.Info("api listening", slog.String("addr", ln.Addr().String()))

	errCh := make(chan error, 1)
	go func() {
		if err := s.httpSrv.Serve(ln); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()

	select {
	case <-ctx.Done():
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		_ = s.Shutdown(shutdownCtx)
		return ctx.Err()
	case err := <-errCh:
		if err != nil {
			_ = s.Shutdown(context.Background())
			return fmt.Errorf("serve api: %w", err)
		}
		return nil
	}
}

// Shutdown disconnects push subscribers and drains in-flight requests.
func (s *Server) Shutdown(ctx context.Context) error {
	s.shutdown.Do(func() {
		if s.hub != nil {
			s.hub.Close()
		}
		if err := s.httpSrv.Shutdown(ctx); err != nil {
			s.shutErr = err
		}
	})
	return s.shutErr
}
