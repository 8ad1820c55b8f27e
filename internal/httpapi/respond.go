package httpapi

import (
	"encoding/json"
	"log/slog"
	"net/http"

	"github.com/acolita/mutagen-bridge/internal/diagnose"
	"github.com/acolita/mutagen-bridge/internal/engine"
	"github.com/acolita/mutagen-bridge/internal/sessions"
	"github.com/acolita/mutagen-bridge/internal/store"
)

// errorResponse is the error envelope. detail matches what the frontend
// already reads; hint rides along for failures worth explaining.
type errorResponse struct {
	Detail string         `json:"detail"`
	Hint   *diagnose.Hint `json:"hint,omitempty"`
}

func (s *Server) writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		slog.Error("encode response", slog.String("error", err.Error()))
	}
}

func (s *Server) writeError(w http.ResponseWriter, status int, detail string) {
	s.writeJSON(w, status, errorResponse{Detail: detail})
}

// writeOperationError maps a domain failure onto a status code. Client
// mistakes come back bare; server-side failures carry a recovery hint.
func (s *Server) writeOperationError(w http.ResponseWriter, err error) {
	switch {
	case engine.IsBinaryNotFound(err):
		s.writeJSON(w, http.StatusServiceUnavailable, errorResponse{
			Detail: err.Error(),
			Hint:   s.analyzer.Best(err),
		})
	case sessions.IsValidation(err):
		s.writeError(w, http.StatusBadRequest, err.Error())
	case sessions.IsNotFound(err), store.IsNotFound(err):
		s.writeError(w, http.StatusNotFound, err.Error())
	case store.IsDuplicateName(err):
		s.writeError(w, http.StatusConflict, err.Error())
	default:
		s.writeJSON(w, http.StatusInternalServerError, errorResponse{
			Detail: err.Error(),
			Hint:   s.analyzer.Best(err),
		})
	}
}

func decodeJSON(r *http.Request, v any) error {
	defer r.Body.Close()
	return json.NewDecoder(r.Body).Decode(v)
}
