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
	"errors"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"
	"go.uber.org/zap"

	"github.com/loqalabs/loqa-voicecmd/internal/events"
	"github.com/loqalabs/loqa-voicecmd/internal/logging"
	"github.com/loqalabs/loqa-voicecmd/internal/storage"
)

// SessionEventsHandler handles HTTP requests for recorded sessions
type SessionEventsHandler struct {
	store SessionEventReader
}

// NewSessionEventsHandler creates a new session events handler
func NewSessionEventsHandler(store SessionEventReader) *SessionEventsHandler {
	return &SessionEventsHandler{store: store}
}

// ListSessionEventsResponse represents the response for listing session events
type ListSessionEventsResponse struct {
	Events     []*events.SessionEvent `json:"events"`
	Total      int64                  `json:"total"`
	Page       int                    `json:"page"`
	PageSize   int                    `json:"page_size"`
	TotalPages int                    `json:"total_pages"`
}

// HandleList handles GET /api/session-events
func (h *SessionEventsHandler) HandleList(w http.ResponseWriter, r *http.Request) {
	h.listSessionEvents(w, r)
}

// HandleGet handles GET /api/session-events/{id}
func (h *SessionEventsHandler) HandleGet(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	event, err := h.store.GetByUUID(id)
	if err != nil {
		if errors.Is(err, storage.ErrNotFound) {
			writeError(w, http.StatusNotFound, "Session event not found")
			return
		}
		logging.LogError(err, "Failed to get session event", zap.String("uuid", id))
		writeError(w, http.StatusInternalServerError, "Internal server error")
		return
	}

	writeJSON(w, http.StatusOK, event)
}

// listFilters are the enumerated query parameters of a history listing.
type listFilters struct {
	Reason    string `json:"reason" validate:"omitempty,oneof=success fail cancel"`
	SortBy    string `json:"sort_by" validate:"omitempty,oneof=started_at terminated_at confidence"`
	SortOrder string `json:"sort_order" validate:"omitempty,oneof=ASC DESC"`
}

func (h *SessionEventsHandler) listSessionEvents(w http.ResponseWriter, r *http.Request) {
	query := r.URL.Query()

	filters := listFilters{
		Reason:    query.Get("reason"),
		SortBy:    query.Get("sort_by"),
		SortOrder: strings.ToUpper(query.Get("sort_order")),
	}
	if err := checkStruct(&filters); err != nil {
		writeBindError(w, err)
		return
	}

	// Pagination
	page := parseIntParam(query.Get("page"), 1)
	pageSize := parseIntParam(query.Get("page_size"), 20)
	if pageSize > 100 {
		pageSize = 100
	}
	if pageSize < 1 {
		pageSize = 1
	}
	if page < 1 {
		page = 1
	}

	options := storage.ListOptions{
		SessionID: query.Get("session_id"),
		Engine:    query.Get("engine"),
		Reason:    filters.Reason,
		Intent:    query.Get("intent"),
		Limit:     pageSize,
		Offset:    (page - 1) * pageSize,
		SortBy:    filters.SortBy,
		SortOrder: filters.SortOrder,
	}

	var ok bool
	if options.StartTime, ok = parseTimeParam(query.Get("start_time")); !ok {
		writeError(w, http.StatusBadRequest, "start_time must be RFC3339")
		return
	}
	if options.EndTime, ok = parseTimeParam(query.Get("end_time")); !ok {
		writeError(w, http.StatusBadRequest, "end_time must be RFC3339")
		return
	}

	total, err := h.store.Count(options)
	if err != nil {
		logging.LogError(err, "Failed to count session events")
		writeError(w, http.StatusInternalServerError, "Internal server error")
		return
	}

	list, err := h.store.List(options)
	if err != nil {
		logging.LogError(err, "Failed to list session events")
		writeError(w, http.StatusInternalServerError, "Internal server error")
		return
	}

	totalPages := int((total + int64(pageSize) - 1) / int64(pageSize))
	writeJSON(w, http.StatusOK, ListSessionEventsResponse{
		Events:     list,
		Total:      total,
		Page:       page,
		PageSize:   pageSize,
		TotalPages: totalPages,
	})
}

// parseIntParam parses integer parameter with default value
func parseIntParam(param string, defaultValue int) int {
	if param == "" {
		return defaultValue
	}
	if value, err := strconv.Atoi(param); err == nil {
		return value
	}
	return defaultValue
}

// parseTimeParam parses an optional RFC3339 parameter. ok is false only for
// a present but malformed value.
func parseTimeParam(param string) (*time.Time, bool) {
	if param == "" {
		return nil, true
	}
	t, err := time.Parse(time.RFC3339, param)
	if err != nil {
		return nil, false
	}
	return &t, true
}
