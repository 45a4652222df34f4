package daemon

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/petal-labs/tooltailor/override"
	"github.com/petal-labs/tooltailor/tool"
)

const (
	codeInvalidJSON     = "INVALID_JSON"
	codeInvalidOverlay  = "INVALID_OVERLAY"
	codeSessionNotFound = "SESSION_NOT_FOUND"
	codeInternal        = "INTERNAL"

	maxOverlayBytes = 1 << 20
)

// ServerConfig controls daemon HTTP server dependencies.
type ServerConfig struct {
	Service *tool.CustomizationService
	Logger  *slog.Logger
	// SessionIdleTimeout drops sessions unused for longer. Zero means
	// DefaultSessionIdleTimeout.
	SessionIdleTimeout time.Duration
	// MaxSessions caps open sessions; the least recently used is evicted.
	// Zero means DefaultMaxSessions.
	MaxSessions int
}

// Server exposes customization sessions over HTTP.
type Server struct {
	service  *tool.CustomizationService
	sessions *sessionRegistry
	logger   *slog.Logger
}

// NewServer constructs a daemon API server.
func NewServer(cfg ServerConfig) (*Server, error) {
	if cfg.Service == nil {
		return nil, errors.New("daemon: customization service is nil")
	}
	if cfg.Logger == nil {
		cfg.Logger = slog.Default()
	}
	return &Server{
		service:  cfg.Service,
		sessions: newSessionRegistry(cfg.SessionIdleTimeout, cfg.MaxSessions),
		logger:   cfg.Logger,
	}, nil
}

// SweepSessions drops idle sessions and returns how many were removed.
func (s *Server) SweepSessions() int {
	removed := s.sessions.sweep()
	if removed > 0 {
		s.logger.Debug("idle sessions dropped", "count", removed)
	}
	return removed
}

// Service returns the backing customization service.
func (s *Server) Service() *tool.CustomizationService {
	return s.service
}

// Handler returns an http.Handler exposing daemon APIs.
func (s *Server) Handler() http.Handler {
	mux := http.NewServeMux()

	mux.HandleFunc("GET /api/servers", s.handleListServers)
	mux.HandleFunc("GET /api/servers/{server}/tools", s.handleListTools)
	mux.HandleFunc("GET /api/servers/{server}/customization", s.handleGetCustomization)
	mux.HandleFunc("DELETE /api/servers/{server}/customization", s.handleResetCustomization)
	mux.HandleFunc("GET /api/servers/{server}/overlay", s.handleExportOverlay)
	mux.HandleFunc("PUT /api/servers/{server}/overlay", s.handleImportOverlay)
	mux.HandleFunc("GET /api/servers/{server}/drift", s.handleDrift)
	mux.HandleFunc("POST /api/servers/{server}/sessions", s.handleOpenSession)

	mux.HandleFunc("GET /api/sessions/{id}", s.handleGetSession)
	mux.HandleFunc("DELETE /api/sessions/{id}", s.handleCloseSession)
	mux.HandleFunc("POST /api/sessions/{id}/edit", s.handleOpenEdit)
	mux.HandleFunc("PUT /api/sessions/{id}/edit", s.handleChangeEdit)
	mux.HandleFunc("DELETE /api/sessions/{id}/edit", s.handleCancelEdit)
	mux.HandleFunc("POST /api/sessions/{id}/edit/save", s.handleSaveEdit)
	mux.HandleFunc("PUT /api/sessions/{id}/enabled", s.handleSetEnabled)
	mux.HandleFunc("POST /api/sessions/{id}/reset", s.handleResetTool)
	mux.HandleFunc("POST /api/sessions/{id}/refresh", s.handleRefreshSession)
	mux.HandleFunc("POST /api/sessions/{id}/apply", s.handleApply)

	return mux
}

type openEditRequest struct {
	Tool string `json:"tool"`
}

type changeEditRequest struct {
	Name        *string `json:"name,omitempty"`
	Description *string `json:"description,omitempty"`
}

type setEnabledRequest struct {
	Tool    string `json:"tool,omitempty"`
	All     bool   `json:"all,omitempty"`
	Enabled bool   `json:"enabled"`
}

type toolView struct {
	override.ResolvedTool
	Enabled bool `json:"enabled"`
}

type sessionView struct {
	ID         string             `json:"id"`
	Server     string             `json:"server"`
	CreatedAt  time.Time          `json:"created_at"`
	Tools      []toolView         `json:"tools"`
	HasChanges bool               `json:"has_changes"`
	Draft      override.EditDraft `json:"draft"`
}

type apiErrorDetail struct {
	Code    string `json:"code"`
	Message string `json:"message"`
	Details any    `json:"details,omitempty"`
}

type apiErrorResponse struct {
	Error apiErrorDetail `json:"error"`
}

func (s *Server) handleListServers(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]any{
		"servers": s.service.Servers(),
	})
}

func (s *Server) handleListTools(w http.ResponseWriter, r *http.Request) {
	server := r.PathValue("server")
	in, err := s.service.Load(r.Context(), server)
	if err != nil {
		s.writeServiceError(w, err)
		return
	}
	resolved := override.ResolveInputs(in)
	resolved = tool.FilterTools(resolved, r.URL.Query().Get("q"))

	views := make([]toolView, 0, len(resolved))
	for _, t := range resolved {
		views = append(views, toolView{ResolvedTool: t, Enabled: t.IsInitialEnabled})
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"server": server,
		"tools":  views,
	})
}

func (s *Server) handleGetCustomization(w http.ResponseWriter, r *http.Request) {
	server := r.PathValue("server")
	record, _, err := s.service.Customization(r.Context(), server)
	if err != nil {
		s.writeServiceError(w, err)
		return
	}
	record.Server = server
	writeJSON(w, http.StatusOK, record)
}

func (s *Server) handleResetCustomization(w http.ResponseWriter, r *http.Request) {
	if err := s.service.Reset(r.Context(), r.PathValue("server")); err != nil {
		s.writeServiceError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (s *Server) handleExportOverlay(w http.ResponseWriter, r *http.Request) {
	overlay, err := s.service.Export(r.Context(), r.PathValue("server"))
	if err != nil {
		s.writeServiceError(w, err)
		return
	}
	data, err := tool.MarshalOverlayYAML(overlay)
	if err != nil {
		writeJSONError(w, http.StatusInternalServerError, codeInternal, err.Error(), nil)
		return
	}
	w.Header().Set("Content-Type", "application/yaml")
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write(data)
}

func (s *Server) handleImportOverlay(w http.ResponseWriter, r *http.Request) {
	server := r.PathValue("server")
	data, err := io.ReadAll(io.LimitReader(r.Body, maxOverlayBytes))
	if err != nil {
		writeJSONError(w, http.StatusBadRequest, codeInvalidOverlay, err.Error(), nil)
		return
	}
	overlay, _, err := tool.ParseOverlayYAML(data)
	if err != nil {
		writeJSONError(w, http.StatusBadRequest, codeInvalidOverlay, err.Error(), nil)
		return
	}
	if strings.TrimSpace(overlay.Server) == "" {
		overlay.Server = server
	}
	if overlay.Server != server {
		writeJSONError(w, http.StatusBadRequest, codeInvalidOverlay,
			fmt.Sprintf("overlay targets server %q, not %q", overlay.Server, server), nil)
		return
	}

	stored, diags, err := s.service.Import(r.Context(), overlay)
	if err != nil {
		s.writeServiceError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"customization": stored,
		"diagnostics":   diags,
	})
}

func (s *Server) handleDrift(w http.ResponseWriter, r *http.Request) {
	report, err := s.service.Drift(r.Context(), r.PathValue("server"))
	if err != nil {
		s.writeServiceError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, report)
}

func (s *Server) handleOpenSession(w http.ResponseWriter, r *http.Request) {
	server := r.PathValue("server")
	session, err := s.service.Open(r.Context(), server)
	if err != nil {
		s.writeServiceError(w, err)
		return
	}
	entry := s.sessions.open(server, session)
	s.logger.Debug("session opened", "session", entry.id, "server", server)

	entry.mu.Lock()
	defer entry.mu.Unlock()
	writeJSON(w, http.StatusCreated, viewSession(entry))
}

func (s *Server) handleGetSession(w http.ResponseWriter, r *http.Request) {
	s.withSession(w, r, func(entry *editSession) {
		writeJSON(w, http.StatusOK, viewSession(entry))
	})
}

func (s *Server) handleCloseSession(w http.ResponseWriter, r *http.Request) {
	id := r.PathValue("id")
	if !s.sessions.close(id) {
		writeSessionNotFound(w, id)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (s *Server) handleOpenEdit(w http.ResponseWriter, r *http.Request) {
	var req openEditRequest
	if err := decodeJSONBody(r, &req); err != nil {
		writeJSONError(w, http.StatusBadRequest, codeInvalidJSON, err.Error(), nil)
		return
	}
	s.withSession(w, r, func(entry *editSession) {
		if _, ok := entry.session.OpenTool(req.Tool); !ok {
			s.writeServiceError(w, tool.ToolNotFound(entry.server, req.Tool))
			return
		}
		writeJSON(w, http.StatusOK, viewSession(entry))
	})
}

func (s *Server) handleChangeEdit(w http.ResponseWriter, r *http.Request) {
	var req changeEditRequest
	if err := decodeJSONBody(r, &req); err != nil {
		writeJSONError(w, http.StatusBadRequest, codeInvalidJSON, err.Error(), nil)
		return
	}
	s.withSession(w, r, func(entry *editSession) {
		if !entry.session.Draft().IsOpen {
			s.writeServiceError(w, tool.NoEditOpen())
			return
		}
		if req.Name != nil {
			entry.session.ChangeName(*req.Name)
		}
		if req.Description != nil {
			entry.session.ChangeDescription(*req.Description)
		}
		writeJSON(w, http.StatusOK, viewSession(entry))
	})
}

func (s *Server) handleCancelEdit(w http.ResponseWriter, r *http.Request) {
	s.withSession(w, r, func(entry *editSession) {
		entry.session.Cancel()
		writeJSON(w, http.StatusOK, viewSession(entry))
	})
}

func (s *Server) handleSaveEdit(w http.ResponseWriter, r *http.Request) {
	s.withSession(w, r, func(entry *editSession) {
		patch, ok := entry.session.Save()
		if !ok {
			s.writeServiceError(w, tool.NoEditOpen())
			return
		}
		writeJSON(w, http.StatusOK, map[string]any{
			"changed": patch.Changed(),
			"session": viewSession(entry),
		})
	})
}

func (s *Server) handleSetEnabled(w http.ResponseWriter, r *http.Request) {
	var req setEnabledRequest
	if err := decodeJSONBody(r, &req); err != nil {
		writeJSONError(w, http.StatusBadRequest, codeInvalidJSON, err.Error(), nil)
		return
	}
	s.withSession(w, r, func(entry *editSession) {
		switch {
		case req.All:
			entry.session.SetAllEnabled(req.Enabled)
		case !entry.session.SetEnabled(req.Tool, req.Enabled):
			s.writeServiceError(w, tool.ToolNotFound(entry.server, req.Tool))
			return
		}
		writeJSON(w, http.StatusOK, viewSession(entry))
	})
}

type resetToolRequest struct {
	Tool string `json:"tool"`
}

func (s *Server) handleResetTool(w http.ResponseWriter, r *http.Request) {
	var req resetToolRequest
	if err := decodeJSONBody(r, &req); err != nil {
		writeJSONError(w, http.StatusBadRequest, codeInvalidJSON, err.Error(), nil)
		return
	}
	s.withSession(w, r, func(entry *editSession) {
		patch, ok := entry.session.ResetTool(req.Tool)
		if !ok {
			s.writeServiceError(w, tool.ToolNotFound(entry.server, req.Tool))
			return
		}
		writeJSON(w, http.StatusOK, map[string]any{
			"changed": patch.Changed(),
			"session": viewSession(entry),
		})
	})
}

func (s *Server) handleRefreshSession(w http.ResponseWriter, r *http.Request) {
	s.withSession(w, r, func(entry *editSession) {
		in, err := s.service.Load(r.Context(), entry.server)
		if err != nil {
			s.writeServiceError(w, err)
			return
		}
		entry.session.Refresh(in.RegistryTools, in.ServerTools)
		writeJSON(w, http.StatusOK, viewSession(entry))
	})
}

func (s *Server) handleApply(w http.ResponseWriter, r *http.Request) {
	s.withSession(w, r, func(entry *editSession) {
		stored, err := s.service.Commit(r.Context(), entry.server, entry.session)
		if err != nil {
			s.writeServiceError(w, err)
			return
		}
		writeJSON(w, http.StatusOK, map[string]any{
			"customization": stored,
			"session":       viewSession(entry),
		})
	})
}

// withSession runs fn while holding the session's lock.
func (s *Server) withSession(w http.ResponseWriter, r *http.Request, fn func(entry *editSession)) {
	id := r.PathValue("id")
	entry, ok := s.sessions.get(id)
	if !ok {
		writeSessionNotFound(w, id)
		return
	}
	entry.mu.Lock()
	defer entry.mu.Unlock()
	fn(entry)
}

func viewSession(entry *editSession) sessionView {
	tools := entry.session.Tools()
	views := make([]toolView, 0, len(tools))
	for _, t := range tools {
		enabled, _ := entry.session.IsToolEnabled(t.DisplayName)
		views = append(views, toolView{ResolvedTool: t, Enabled: enabled})
	}
	return sessionView{
		ID:         entry.id,
		Server:     entry.server,
		CreatedAt:  entry.createdAt,
		Tools:      views,
		HasChanges: entry.session.HasChanges(),
		Draft:      entry.session.Draft(),
	}
}

func (s *Server) writeServiceError(w http.ResponseWriter, err error) {
	if err == nil {
		return
	}
	var custom *tool.CustomizationError
	if !errors.As(err, &custom) {
		s.logger.Error("daemon request failed", "error", err)
		writeJSONError(w, http.StatusInternalServerError, codeInternal, err.Error(), nil)
		return
	}

	status := statusForCode(custom.Code)
	if status >= http.StatusInternalServerError {
		s.logger.Error("daemon request failed", "code", custom.Code, "error", err)
	}
	var details any
	if len(custom.Details) > 0 {
		details = custom.Details
	}
	writeJSONError(w, status, custom.Code, custom.Message, details)
}

func statusForCode(code string) int {
	switch code {
	case tool.ErrorCodeServerNotFound, tool.ErrorCodeToolNotFound:
		return http.StatusNotFound
	case tool.ErrorCodeValidationFailed:
		return http.StatusBadRequest
	case tool.ErrorCodeNoEditOpen:
		return http.StatusConflict
	case tool.ErrorCodeDiscoveryFailed:
		return http.StatusBadGateway
	default:
		return http.StatusInternalServerError
	}
}

func writeSessionNotFound(w http.ResponseWriter, id string) {
	writeJSONError(w, http.StatusNotFound, codeSessionNotFound, fmt.Sprintf("session %q not found", id), nil)
}

func decodeJSONBody(r *http.Request, target any) error {
	if target == nil {
		return errors.New("decode target is nil")
	}
	decoder := json.NewDecoder(r.Body)
	decoder.DisallowUnknownFields()
	if err := decoder.Decode(target); err != nil {
		return err
	}
	if decoder.More() {
		return errors.New("request body must contain a single JSON object")
	}
	return nil
}

func writeJSON(w http.ResponseWriter, status int, payload any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(payload)
}

func writeJSONError(w http.ResponseWriter, status int, code, message string, details any) {
	writeJSON(w, status, apiErrorResponse{
		Error: apiErrorDetail{
			Code:    code,
			Message: message,
			Details: details,
		},
	})
}
