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

// Package api exposes sessions, their recorded history and the command
// parser over HTTP.
package api

import (
	"context"
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/loqalabs/loqa-voicecmd/internal/events"
	"github.com/loqalabs/loqa-voicecmd/internal/manager"
	"github.com/loqalabs/loqa-voicecmd/internal/security"
	"github.com/loqalabs/loqa-voicecmd/internal/storage"
)

// SessionManager is the part of manager.Manager the API drives.
type SessionManager interface {
	Start(ctx context.Context) (manager.Info, error)
	Get(id string) (manager.Info, error)
	List() []manager.Info
	Stop(ctx context.Context, id string) error
	StopListening(ctx context.Context, id string) error
}

// SessionEventReader is the read side of storage.SessionEventsStore.
type SessionEventReader interface {
	GetByUUID(uuid string) (*events.SessionEvent, error)
	List(options storage.ListOptions) ([]*events.SessionEvent, error)
	Count(options storage.ListOptions) (int64, error)
}

// RegisterRoutes mounts the handlers under /api. events may be nil when
// session history is not recorded.
func RegisterRoutes(r chi.Router, sessions *SessionsHandler, events *SessionEventsHandler, parse *ParseHandler, opts ...RouteOption) {
	var settings routeSettings
	for _, opt := range opts {
		opt(&settings)
	}

	r.NotFound(func(w http.ResponseWriter, _ *http.Request) {
		writeError(w, http.StatusNotFound, "Not found")
	})
	r.MethodNotAllowed(func(w http.ResponseWriter, _ *http.Request) {
		writeError(w, http.StatusMethodNotAllowed, "Method not allowed")
	})

	r.Route("/api", func(r chi.Router) {
		r.Route("/sessions", func(r chi.Router) {
			r.Get("/", sessions.HandleList)
			if settings.startLimit > 0 {
				r.With(RateLimit(settings.startLimit, settings.startWindow)).Post("/", sessions.HandleStart)
			} else {
				r.Post("/", sessions.HandleStart)
			}
			r.Route("/{id}", func(r chi.Router) {
				r.Use(requireID("Invalid session ID"))
				r.Get("/", sessions.HandleGet)
				r.Post("/stop", sessions.HandleStop)
				r.Post("/stop-listening", sessions.HandleStopListening)
			})
		})

		if events != nil {
			r.Route("/session-events", func(r chi.Router) {
				r.Get("/", events.HandleList)
				r.With(requireID("Invalid event ID")).Get("/{id}", events.HandleGet)
			})
		}

		r.Post("/parse", parse.HandleParse)
	})
}

// requireID rejects requests whose {id} parameter is not a UUID.
func requireID(message string) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if err := security.ValidateID(chi.URLParam(r, "id")); err != nil {
				writeError(w, http.StatusBadRequest, message)
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}
