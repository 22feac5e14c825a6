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

package server

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"golang.org/x/sync/errgroup"
	"google.golang.org/grpc"
	"google.golang.org/grpc/reflection"

	"github.com/loqalabs/loqa-voicecmd/internal/api"
	"github.com/loqalabs/loqa-voicecmd/internal/config"
	loqagrpc "github.com/loqalabs/loqa-voicecmd/internal/grpc"
	"github.com/loqalabs/loqa-voicecmd/internal/logging"
	"github.com/loqalabs/loqa-voicecmd/internal/manager"
	"github.com/loqalabs/loqa-voicecmd/internal/metrics"
)

// healthRefreshInterval is how often dependency checks are re-run for gRPC
// health watchers.
const healthRefreshInterval = 10 * time.Second

// Pinger is a dependency reachable with a ping, such as the session database.
type Pinger interface {
	Ping() error
}

// Connection is a dependency with a live connection, such as NATS.
type Connection interface {
	IsConnected() bool
}

// Deps are the components the server hosts. Database, NATS and Events are
// optional.
type Deps struct {
	Manager  *manager.Manager
	Events   api.SessionEventReader
	Database Pinger
	NATS     Connection
}

// Server hosts the HTTP API and the gRPC health service
type Server struct {
	cfg    *config.Config
	mux    *chi.Mux
	server *http.Server
	grpc   *grpc.Server
	health *loqagrpc.HealthService

	manager  *manager.Manager
	database Pinger
	nats     Connection

	// Server context for graceful shutdown
	ctx    context.Context
	cancel context.CancelFunc
}

// New creates a new server around the session manager
func New(cfg *config.Config, deps Deps) *Server {
	ctx, cancel := context.WithCancel(context.Background())

	s := &Server{
		cfg:      cfg,
		mux:      chi.NewRouter(),
		grpc:     grpc.NewServer(),
		manager:  deps.Manager,
		database: deps.Database,
		nats:     deps.NATS,
		ctx:      ctx,
		cancel:   cancel,
	}

	s.server = &http.Server{
		Addr:         net.JoinHostPort(cfg.Server.Host, strconv.Itoa(cfg.Server.Port)),
		Handler:      s.mux,
		ReadTimeout:  cfg.Server.ReadTimeout,
		WriteTimeout: cfg.Server.WriteTimeout,
		IdleTimeout:  60 * time.Second,
	}

	s.health = loqagrpc.NewHealthService(s.checks())
	s.health.Register(s.grpc)
	reflection.Register(s.grpc)

	s.routes(deps.Events)

	return s
}

// Handler returns the HTTP handler serving every route.
func (s *Server) Handler() http.Handler {
	return s.mux
}

// checks maps dependency names to their readiness probes.
func (s *Server) checks() map[string]loqagrpc.Check {
	checks := map[string]loqagrpc.Check{}
	if s.database != nil {
		checks["database"] = func(context.Context) error {
			return s.database.Ping()
		}
	}
	if s.nats != nil {
		checks["nats"] = func(context.Context) error {
			if !s.nats.IsConnected() {
				return errors.New("not connected")
			}
			return nil
		}
	}
	return checks
}

func (s *Server) routes(events api.SessionEventReader) {
	s.mux.Use(middleware.Recoverer)
	s.mux.Use(metrics.HTTP)
	if len(s.cfg.Server.CORSOrigins) > 0 {
		s.mux.Use(api.CORS(s.cfg.Server.CORSOrigins))
	}

	s.mux.Get("/health", s.handleHealth)
	s.mux.Handle("/metrics", promhttp.Handler())

	var eventsHandler *api.SessionEventsHandler
	if events != nil {
		eventsHandler = api.NewSessionEventsHandler(events)
	}
	api.RegisterRoutes(s.mux,
		api.NewSessionsHandler(s.manager),
		eventsHandler,
		api.NewParseHandler(),
		api.WithStartLimit(s.cfg.Server.StartLimit, time.Minute))

	logging.Sugar.Infow("🌐 HTTP routes configured",
		"sessions_endpoint", "/api/sessions",
		"history_enabled", eventsHandler != nil,
		"parse_endpoint", "/api/parse",
		"metrics_endpoint", "/metrics")
}

// Start starts the gRPC and HTTP listeners and blocks until both have
// stopped.
func (s *Server) Start() error {
	grpcAddr := net.JoinHostPort(s.cfg.Server.Host, strconv.Itoa(s.cfg.Server.GRPCPort))
	listener, err := net.Listen("tcp", grpcAddr)
	if err != nil {
		return fmt.Errorf("failed to listen on %s: %w", grpcAddr, err)
	}

	logging.Sugar.Infow("🚀 Loqa voice command service starting",
		"http_port", s.cfg.Server.Port,
		"grpc_port", s.cfg.Server.GRPCPort,
		"speech_engine", s.cfg.Speech.Engine)

	g, ctx := errgroup.WithContext(s.ctx)
	g.Go(func() error {
		s.health.Run(ctx, healthRefreshInterval)
		return nil
	})
	g.Go(func() error {
		if err := s.grpc.Serve(listener); err != nil {
			return fmt.Errorf("gRPC server failed: %w", err)
		}
		return nil
	})
	g.Go(func() error {
		// Either listener failing takes the other one down.
		<-ctx.Done()
		s.grpc.GracefulStop()
		return nil
	})
	g.Go(func() error {
		if err := s.server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return fmt.Errorf("HTTP server failed: %w", err)
		}
		return nil
	})

	return g.Wait()
}

// Stop cancels live sessions and gracefully shuts down both listeners
func (s *Server) Stop() error {
	logging.Sugar.Infow("🛑 Shutting down voice command service")

	s.cancel()
	s.health.Shutdown()

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	if s.manager != nil {
		s.manager.Close(shutdownCtx)
	}
	s.grpc.GracefulStop()

	if err := s.server.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("server shutdown failed: %w", err)
	}

	logging.Sugar.Infow("✅ Voice command service shut down successfully")
	return nil
}

// handleHealth reports dependency readiness and the live session count
func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}

	s.health.Refresh(r.Context())

	status := "ok"
	services := map[string]string{}
	for name, check := range s.checks() {
		if err := check(r.Context()); err != nil {
			services[name] = err.Error()
			status = "degraded"
			continue
		}
		services[name] = "ok"
	}

	health := map[string]interface{}{
		"status":        status,
		"timestamp":     time.Now(),
		"speech_engine": s.cfg.Speech.Engine,
		"services":      services,
	}
	if s.manager != nil {
		health["live_sessions"] = s.manager.Count()
	}

	w.Header().Set("Content-Type", "application/json")
	if status != "ok" {
		w.WriteHeader(http.StatusServiceUnavailable)
	}
	if err := writeJSON(w, health); err != nil {
		logging.Sugar.Errorw("Failed to write health response", "error", err)
	}
}

// Helper functions

func writeJSON(w http.ResponseWriter, data interface{}) error {
	return json.NewEncoder(w).Encode(data)
}
