/*
 * This file is part of Loqa (https://github.com/loqalabs/loqa).
 * Copyright (C) 2025 Loqa Labs
 *
 * This program is free software: you can redistribute it and/or modify
 * it under the terms of the GNU Affero General Public License as published by
 * the Free Software Foundation, either version 3 of the License, or
 * (at your option) any later version.
 *
 * This program is distributed in the hope that it will be useful,
 * but WITHOUT ANY WARRANTY; without even the implied warranty of
 * MERCHANTABILITY or FITNESS FOR A PARTICULAR PURPOSE. See the
 * GNU Affero General Public License for more details.
 *
 * You should have received a copy of the GNU Affero General Public License
 * along with this program. If not, see <https://www.gnu.org/licenses/>.
 */

package api

import (
	"encoding/json"
	"errors"
	"net/http"

	"github.com/go-chi/chi/v5"
	"go.uber.org/zap"

	"github.com/loqalabs/loqa-voicecmd/internal/logging"
	"github.com/loqalabs/loqa-voicecmd/internal/manager"
)

// SessionsHandler handles HTTP requests for live speech sessions
type SessionsHandler struct {
	sessions SessionManager
}

// NewSessionsHandler creates a new sessions handler
func NewSessionsHandler(sessions SessionManager) *SessionsHandler {
	return &SessionsHandler{sessions: sessions}
}

// ListSessionsResponse represents the response for listing live sessions
type ListSessionsResponse struct {
	Sessions []manager.Info `json:"sessions"`
	Total    int            `json:"total"`
}

// HandleList handles GET /api/sessions
func (h *SessionsHandler) HandleList(w http.ResponseWriter, _ *http.Request) {
	sessions := h.sessions.List()
	writeJSON(w, http.StatusOK, ListSessionsResponse{Sessions: sessions, Total: len(sessions)})
}

// HandleStart handles POST /api/sessions
func (h *SessionsHandler) HandleStart(w http.ResponseWriter, r *http.Request) {
	info, err := h.sessions.Start(r.Context())
	if err != nil {
		logging.LogError(err, "Failed to start session")
		writeError(w, http.StatusServiceUnavailable, "Speech engine unavailable")
		return
	}

	logging.Component("api").Info("Session started via API", zap.String("session_id", info.ID))
	writeJSON(w, http.StatusCreated, info)
}

// HandleGet handles GET /api/sessions/{id}
func (h *SessionsHandler) HandleGet(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	info, err := h.sessions.Get(id)
	if err != nil {
		h.writeManagerError(w, err, id)
		return
	}
	writeJSON(w, http.StatusOK, info)
}

// HandleStop handles POST /api/sessions/{id}/stop
func (h *SessionsHandler) HandleStop(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	if err := h.sessions.Stop(r.Context(), id); err != nil {
		h.writeManagerError(w, err, id)
		return
	}
	writeJSON(w, http.StatusAccepted, map[string]string{"id": id, "action": "stop"})
}

// HandleStopListening handles POST /api/sessions/{id}/stop-listening
func (h *SessionsHandler) HandleStopListening(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	if err := h.sessions.StopListening(r.Context(), id); err != nil {
		h.writeManagerError(w, err, id)
		return
	}
	writeJSON(w, http.StatusAccepted, map[string]string{"id": id, "action": "stop-listening"})
}

func (h *SessionsHandler) writeManagerError(w http.ResponseWriter, err error, id string) {
	switch {
	case errors.Is(err, manager.ErrSessionNotFound):
		writeError(w, http.StatusNotFound, "Session not found")
	case errors.Is(err, manager.ErrNotListening):
		writeError(w, http.StatusConflict, "Session is not listening")
	default:
		logging.LogError(err, "Session request failed", zap.String("session_id", id))
		writeError(w, http.StatusInternalServerError, "Internal server error")
	}
}

func writeJSON(w http.ResponseWriter, status int, data interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(data); err != nil {
		logging.LogError(err, "Failed to write JSON response")
	}
}

func writeError(w http.ResponseWriter, status int, message string) {
	writeJSON(w, status, map[string]interface{}{
		"error":   true,
		"message": message,
	})
}
