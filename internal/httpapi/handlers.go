package httpapi

import (
	"fmt"
	"net/http"
	"strconv"
	"strings"

	"github.com/acolita/mutagen-bridge/internal/engine"
	"github.com/acolita/mutagen-bridge/internal/remotefs"
	"github.com/acolita/mutagen-bridge/internal/sessions"
	"github.com/acolita/mutagen-bridge/internal/store"
)

// connectionConfig is the payload shared by session creation and the
// connection CRUD endpoints.
type connectionConfig struct {
	Name                 string   `json:"name"`
	Host                 string   `json:"host"`
	Port                 int      `json:"port"`
	Username             string   `json:"username"`
	RemotePath           string   `json:"remote_path"`
	LocalPath            string   `json:"local_path"`
	SSHKeyPath           string   `json:"ssh_key_path"`
	SyncMode             string   `json:"sync_mode"`
	Tags                 []string `json:"tags"`
	InitialSyncDirection string   `json:"initial_sync_direction"`
}

func (c *connectionConfig) validate() error {
	for field, value := range map[string]string{
		"name":        c.Name,
		"host":        c.Host,
		"username":    c.Username,
		"remote_path": c.RemotePath,
		"local_path":  c.LocalPath,
	} {
		if strings.TrimSpace(value) == "" {
			return fmt.Errorf("%s is required", field)
		}
	}
	return nil
}

func (c *connectionConfig) normalize(defaultSyncMode string) {
	if c.Port == 0 {
		c.Port = 22
	}
	if c.SyncMode == "" {
		c.SyncMode = defaultSyncMode
	}
}

func (c *connectionConfig) connection() store.Connection {
	return store.Connection{
		Name:       c.Name,
		Host:       c.Host,
		Port:       c.Port,
		User:       c.Username,
		RemotePath: c.RemotePath,
		LocalPath:  c.LocalPath,
		KeyPath:    c.SSHKeyPath,
		SyncMode:   c.SyncMode,
		Tags:       c.Tags,
	}
}

func (c *connectionConfig) spec() sessions.Spec {
	return sessions.Spec{
		Name:          c.Name,
		Host:          c.Host,
		Port:          c.Port,
		User:          c.Username,
		RemotePath:    c.RemotePath,
		LocalPath:     c.LocalPath,
		KeyPath:       c.SSHKeyPath,
		Mode:          sessions.Mode(c.SyncMode),
		SeedDirection: c.InitialSyncDirection,
	}
}

func specFromConnection(conn *store.Connection) sessions.Spec {
	return sessions.Spec{
		Name:       conn.Name,
		Host:       conn.Host,
		Port:       conn.Port,
		User:       conn.User,
		RemotePath: conn.RemotePath,
		LocalPath:  conn.LocalPath,
		KeyPath:    conn.KeyPath,
		Mode:       sessions.Mode(conn.SyncMode),
	}
}

type bannerResponse struct {
	Message string `json:"message"`
	Version string `json:"version"`
}

type healthResponse struct {
	Status string `json:"status"`
}

type installedResponse struct {
	Installed  bool    `json:"installed"`
	Path       *string `json:"path"`
	InstallURL string  `json:"install_url"`
}

type daemonStatusResponse struct {
	Status string `json:"status"`
}

type messageResponse struct {
	Message string `json:"message"`
}

type sessionResponse struct {
	Message string `json:"message"`
	Name    string `json:"name"`
}

type sessionActionRequest struct {
	SessionName string `json:"session_name"`
	Action      string `json:"action"`
}

type conflictsResponse struct {
	Conflicts []sessions.Conflict `json:"conflicts"`
	Count     int                 `json:"count"`
}

type resolveRequest struct {
	Winner string `json:"winner"`
}

type duplicateResponse struct {
	Message string `json:"message"`
	ID      int64  `json:"id"`
	Name    string `json:"name"`
}

type importResponse struct {
	Message  string `json:"message"`
	Imported int    `json:"imported"`
	Skipped  int    `json:"skipped"`
}

type browseRequest struct {
	Host       string `json:"host"`
	Port       int    `json:"port"`
	Username   string `json:"username"`
	SSHKeyPath string `json:"ssh_key_path"`
	Path       string `json:"path"`
}

func (s *Server) handleBanner(w http.ResponseWriter, _ *http.Request) {
	s.writeJSON(w, http.StatusOK, bannerResponse{
		Message: "Mutagen Bridge API",
		Version: Version,
	})
}

func (s *Server) handleHealth(w http.ResponseWriter, _ *http.Request) {
	s.writeJSON(w, http.StatusOK, healthResponse{Status: "ok"})
}

func (s *Server) handleSSHKeys(w http.ResponseWriter, _ *http.Request) {
	keys, err := s.keys.Scan()
	if err != nil {
		s.writeOperationError(w, err)
		return
	}
	s.writeJSON(w, http.StatusOK, keys)
}

func (s *Server) handleEngineInstalled(w http.ResponseWriter, _ *http.Request) {
	resp := installedResponse{InstallURL: engine.InstallURL}
	if path, ok := s.orch.Engine().InstalledPath(); ok {
		resp.Installed = true
		resp.Path = &path
	}
	s.writeJSON(w, http.StatusOK, resp)
}

func (s *Server) handleDaemonStatus(w http.ResponseWriter, r *http.Request) {
	status := s.orch.Engine().DaemonStatus(r.Context())
	s.writeJSON(w, http.StatusOK, daemonStatusResponse{Status: status})
}

func (s *Server) handleDaemonStart(w http.ResponseWriter, r *http.Request) {
	if err := s.orch.Engine().StartDaemon(r.Context()); err != nil {
		s.writeOperationError(w, err)
		return
	}
	s.writeJSON(w, http.StatusOK, messageResponse{Message: "Daemon started"})
}

func (s *Server) handleSessionList(w http.ResponseWriter, r *http.Request) {
	list, err := s.orch.List(r.Context())
	if err != nil {
		s.writeOperationError(w, err)
		return
	}
	if list == nil {
		list = []engine.Session{}
	}
	s.writeJSON(w, http.StatusOK, list)
}

// handleSessionCreate saves the connection, then creates the session.
// The saved record survives even when session creation fails, so the
// user can fix the problem and retry from the stored connection.
func (s *Server) handleSessionCreate(w http.ResponseWriter, r *http.Request) {
	var req connectionConfig
	if err := decodeJSON(r, &req); err != nil {
		s.writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	if err := req.validate(); err != nil {
		s.writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	req.normalize(s.defaultSyncMode)

	conn := req.connection()
	if err := s.store.Upsert(r.Context(), &conn); err != nil {
		s.writeOperationError(w, err)
		return
	}

	name, err := s.orch.Create(r.Context(), req.spec())
	if err != nil {
		s.writeOperationError(w, err)
		return
	}
	s.writeJSON(w, http.StatusOK, sessionResponse{Message: "Session created", Name: name})
}

func (s *Server) handleSessionAction(w http.ResponseWriter, r *http.Request) {
	var req sessionActionRequest
	if err := decodeJSON(r, &req); err != nil {
		s.writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	if strings.TrimSpace(req.SessionName) == "" {
		s.writeError(w, http.StatusBadRequest, "session_name is required")
		return
	}
	if err := s.orch.Apply(r.Context(), req.SessionName, sessions.Action(req.Action)); err != nil {
		s.writeOperationError(w, err)
		return
	}
	s.writeJSON(w, http.StatusOK, messageResponse{
		Message: fmt.Sprintf("Action %s performed", req.Action),
	})
}

func (s *Server) handleConflictList(w http.ResponseWriter, r *http.Request) {
	conflicts, err := s.orch.Conflicts(r.Context(), r.PathValue("name"))
	if err != nil {
		s.writeOperationError(w, err)
		return
	}
	if conflicts == nil {
		conflicts = []sessions.Conflict{}
	}
	s.writeJSON(w, http.StatusOK, conflictsResponse{Conflicts: conflicts, Count: len(conflicts)})
}

func (s *Server) handleConflictResolve(w http.ResponseWriter, r *http.Request) {
	var req resolveRequest
	if err := decodeJSON(r, &req); err != nil {
		s.writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	winner := req.Winner
	if winner == "" {
		winner = string(sessions.WinnerAlpha)
	}
	if err := s.orch.Resolve(r.Context(), r.PathValue("name"), sessions.Winner(winner)); err != nil {
		s.writeOperationError(w, err)
		return
	}
	s.writeJSON(w, http.StatusOK, messageResponse{
		Message: fmt.Sprintf("Conflicts resolved - %s version will be used", winner),
	})
}

func (s *Server) handleConnectionList(w http.ResponseWriter, r *http.Request) {
	connections, err := s.store.List(r.Context())
	if err != nil {
		s.writeOperationError(w, err)
		return
	}
	s.writeJSON(w, http.StatusOK, connections)
}

// handleConnectionCreate inserts a connection without starting a
// session. Unlike session creation, an existing name is a conflict
// here, never a silent update.
func (s *Server) handleConnectionCreate(w http.ResponseWriter, r *http.Request) {
	var req connectionConfig
	if err := decodeJSON(r, &req); err != nil {
		s.writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	if err := req.validate(); err != nil {
		s.writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	req.normalize(s.defaultSyncMode)

	if _, err := s.store.GetByName(r.Context(), req.Name); err == nil {
		s.writeOperationError(w, &store.DuplicateNameError{Name: req.Name})
		return
	} else if !store.IsNotFound(err) {
		s.writeOperationError(w, err)
		return
	}

	conn := req.connection()
	if err := s.store.Upsert(r.Context(), &conn); err != nil {
		s.writeOperationError(w, err)
		return
	}
	s.writeJSON(w, http.StatusCreated, conn)
}

func (s *Server) connectionID(w http.ResponseWriter, r *http.Request) (int64, bool) {
	id, err := strconv.ParseInt(r.PathValue("id"), 10, 64)
	if err != nil {
		s.writeError(w, http.StatusBadRequest, "invalid connection id")
		return 0, false
	}
	return id, true
}

func (s *Server) handleConnectionGet(w http.ResponseWriter, r *http.Request) {
	id, ok := s.connectionID(w, r)
	if !ok {
		return
	}
	conn, err := s.store.Get(r.Context(), id)
	if err != nil {
		s.writeOperationError(w, err)
		return
	}
	s.writeJSON(w, http.StatusOK, conn)
}

func (s *Server) handleConnectionUpdate(w http.ResponseWriter, r *http.Request) {
	id, ok := s.connectionID(w, r)
	if !ok {
		return
	}
	var req connectionConfig
	if err := decodeJSON(r, &req); err != nil {
		s.writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	if err := req.validate(); err != nil {
		s.writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	req.normalize(s.defaultSyncMode)

	conn := req.connection()
	if err := s.store.Update(r.Context(), id, &conn); err != nil {
		s.writeOperationError(w, err)
		return
	}
	s.writeJSON(w, http.StatusOK, messageResponse{Message: "Connection updated successfully"})
}

func (s *Server) handleConnectionDelete(w http.ResponseWriter, r *http.Request) {
	id, ok := s.connectionID(w, r)
	if !ok {
		return
	}
	if err := s.store.Delete(r.Context(), id); err != nil {
		s.writeOperationError(w, err)
		return
	}
	s.writeJSON(w, http.StatusOK, messageResponse{Message: "Connection deleted"})
}

func (s *Server) handleConnectionDuplicate(w http.ResponseWriter, r *http.Request) {
	id, ok := s.connectionID(w, r)
	if !ok {
		return
	}
	dup, err := s.store.Duplicate(r.Context(), id)
	if err != nil {
		s.writeOperationError(w, err)
		return
	}
	s.writeJSON(w, http.StatusOK, duplicateResponse{
		Message: "Connection duplicated",
		ID:      dup.ID,
		Name:    dup.Name,
	})
}

// handleQuickConnect starts syncing from a saved connection: resume
// when a session with the connection's sanitized name already exists,
// create one otherwise.
func (s *Server) handleQuickConnect(w http.ResponseWriter, r *http.Request) {
	id, ok := s.connectionID(w, r)
	if !ok {
		return
	}
	conn, err := s.store.Get(r.Context(), id)
	if err != nil {
		s.writeOperationError(w, err)
		return
	}
	if err := s.store.TouchLastUsed(r.Context(), id); err != nil {
		s.writeOperationError(w, err)
		return
	}

	sessionName := sessions.SanitizeName(conn.Name)
	list, err := s.orch.List(r.Context())
	if err != nil {
		s.writeOperationError(w, err)
		return
	}
	for _, sess := range list {
		if sess.Name != sessionName {
			continue
		}
		if err := s.orch.Apply(r.Context(), sessionName, sessions.ActionResume); err != nil {
			s.writeOperationError(w, err)
			return
		}
		s.writeJSON(w, http.StatusOK, sessionResponse{Message: "Session resumed", Name: sessionName})
		return
	}

	name, err := s.orch.Create(r.Context(), specFromConnection(conn))
	if err != nil {
		s.writeOperationError(w, err)
		return
	}
	s.writeJSON(w, http.StatusOK, sessionResponse{Message: "Session created", Name: name})
}

func (s *Server) handleExport(w http.ResponseWriter, r *http.Request) {
	data, err := s.store.Export(r.Context())
	if err != nil {
		s.writeOperationError(w, err)
		return
	}
	s.writeJSON(w, http.StatusOK, data)
}

func (s *Server) handleImport(w http.ResponseWriter, r *http.Request) {
	var data store.ExportData
	if err := decodeJSON(r, &data); err != nil {
		s.writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	result, err := s.store.Import(r.Context(), &data)
	if err != nil {
		s.writeOperationError(w, err)
		return
	}
	s.writeJSON(w, http.StatusOK, importResponse{
		Message:  "Import complete",
		Imported: result.Imported,
		Skipped:  result.Skipped,
	})
}

func (s *Server) handleRemoteBrowse(w http.ResponseWriter, r *http.Request) {
	var req browseRequest
	if err := decodeJSON(r, &req); err != nil {
		s.writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	if strings.TrimSpace(req.Host) == "" || strings.TrimSpace(req.Username) == "" {
		s.writeError(w, http.StatusBadRequest, "host and username are required")
		return
	}
	if s.browser == nil {
		s.writeError(w, http.StatusServiceUnavailable, "remote browsing is unavailable")
		return
	}
	listing, err := s.browser.Browse(remotefs.Target{
		Host:    req.Host,
		Port:    req.Port,
		User:    req.Username,
		KeyPath: req.SSHKeyPath,
	}, req.Path)
	if err != nil {
		s.writeOperationError(w, err)
		return
	}
	s.writeJSON(w, http.StatusOK, listing)
}
