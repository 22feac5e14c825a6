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

package grpc

import (
	"context"
	"sort"
	"sync"
	"time"

	"go.uber.org/zap"
	"google.golang.org/grpc"
	"google.golang.org/grpc/health"
	healthpb "google.golang.org/grpc/health/grpc_health_v1"

	"github.com/loqalabs/loqa-voicecmd/internal/logging"
)

// Check reports whether a dependency is usable.
type Check func(ctx context.Context) error

// HealthService publishes dependency readiness through the standard gRPC
// health protocol. Each check is exposed as its own service name; the empty
// name reports SERVING only while every check passes.
type HealthService struct {
	health *health.Server
	checks map[string]Check
	log    *zap.Logger

	mu     sync.Mutex
	status map[string]healthpb.HealthCheckResponse_ServingStatus
}

// NewHealthService creates a health service for checks keyed by name.
func NewHealthService(checks map[string]Check) *HealthService {
	h := &HealthService{
		health: health.NewServer(),
		checks: checks,
		log:    logging.Component("grpc_health"),
		status: make(map[string]healthpb.HealthCheckResponse_ServingStatus),
	}
	h.health.SetServingStatus("", healthpb.HealthCheckResponse_NOT_SERVING)
	return h
}

// Register adds the health service to s.
func (h *HealthService) Register(s *grpc.Server) {
	healthpb.RegisterHealthServer(s, h.health)
}

// Refresh runs every check once and updates the published statuses.
func (h *HealthService) Refresh(ctx context.Context) {
	names := make([]string, 0, len(h.checks))
	for name := range h.checks {
		names = append(names, name)
	}
	sort.Strings(names)

	overall := healthpb.HealthCheckResponse_SERVING
	for _, name := range names {
		status := healthpb.HealthCheckResponse_SERVING
		if err := h.checks[name](ctx); err != nil {
			status = healthpb.HealthCheckResponse_NOT_SERVING
			overall = healthpb.HealthCheckResponse_NOT_SERVING
			h.log.Debug("Health check failing", zap.String("check", name), zap.Error(err))
		}
		h.set(name, status)
	}
	h.set("", overall)
}

func (h *HealthService) set(name string, status healthpb.HealthCheckResponse_ServingStatus) {
	h.mu.Lock()
	previous, seen := h.status[name]
	h.status[name] = status
	h.mu.Unlock()

	if seen && previous != status {
		h.log.Info("Health status changed",
			zap.String("check", name),
			zap.Stringer("status", status))
	}
	h.health.SetServingStatus(name, status)
}

// Status returns the last published status of a check, or of the whole
// service for the empty name.
func (h *HealthService) Status(name string) healthpb.HealthCheckResponse_ServingStatus {
	h.mu.Lock()
	defer h.mu.Unlock()
	if status, ok := h.status[name]; ok {
		return status
	}
	return healthpb.HealthCheckResponse_SERVICE_UNKNOWN
}

// Run refreshes on every tick until ctx is done.
func (h *HealthService) Run(ctx context.Context, interval time.Duration) {
	h.Refresh(ctx)

	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			h.Refresh(ctx)
		}
	}
}

// Shutdown marks every service NOT_SERVING and ignores later updates.
func (h *HealthService) Shutdown() {
	h.mu.Lock()
	h.status[""] = healthpb.HealthCheckResponse_NOT_SERVING
	for name := range h.checks {
		h.status[name] = healthpb.HealthCheckResponse_NOT_SERVING
	}
	h.mu.Unlock()
	h.health.Shutdown()
}
