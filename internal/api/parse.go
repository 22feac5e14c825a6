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
	"net/http"
	"strings"
	"time"

	"github.com/loqalabs/loqa-voicecmd/internal/nlp"
)

// ParseRequest is the body of POST /api/parse
type ParseRequest struct {
	Text string `json:"text" validate:"required,max=1000"`
	// Reference is the RFC3339 time relative expressions resolve against.
	// It defaults to now.
	Reference string `json:"reference,omitempty" validate:"omitempty,datetime=2006-01-02T15:04:05Z07:00"`
}

// ParseResponse is the reply of POST /api/parse
type ParseResponse struct {
	Command      nlp.Command `json:"command"`
	NumberedDate *int        `json:"numbered_date,omitempty"`
}

// ParseHandler interprets text without a speech session
type ParseHandler struct {
	now func() time.Time
}

// NewParseHandler creates a new parse handler
func NewParseHandler() *ParseHandler {
	return &ParseHandler{now: time.Now}
}

// HandleParse handles POST /api/parse
func (h *ParseHandler) HandleParse(w http.ResponseWriter, r *http.Request) {
	var req ParseRequest
	if err := decodeJSON(w, r, &req, func(req *ParseRequest) {
		req.Text = strings.TrimSpace(req.Text)
	}); err != nil {
		writeBindError(w, err)
		return
	}

	ref := h.now()
	if req.Reference != "" {
		ref, _ = time.Parse(time.RFC3339, req.Reference)
	}
	text := req.Text

	resp := ParseResponse{Command: nlp.InterpretAt(text, ref)}
	if date, ok := nlp.ParseDateTextToNumberedDateAt(text, ref); ok {
		resp.NumberedDate = &date
	}

	writeJSON(w, http.StatusOK, resp)
}
