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

// Package metrics exports Prometheus metrics for speech sessions and the
// HTTP API. Labels never carry session IDs.
package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// SessionsStartedTotal counts sessions created, by engine.
	SessionsStartedTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "loqa_voicecmd_sessions_started_total",
		Help: "Total number of speech sessions started, by engine.",
	}, []string{"engine"})

	// SessionsTerminatedTotal counts terminated sessions, by engine and reason.
	SessionsTerminatedTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "loqa_voicecmd_sessions_terminated_total",
		Help: "Total number of speech sessions terminated, by engine and reason.",
	}, []string{"engine", "reason"})

	// StatusTransitionsTotal counts status changes, by the status entered.
	StatusTransitionsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "loqa_voicecmd_status_transitions_total",
		Help: "Total number of session status transitions, by new status.",
	}, []string{"status"})

	// IntentsTotal counts interpreted commands, by intent.
	IntentsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "loqa_voicecmd_intents_total",
		Help: "Total number of interpreted commands, by intent.",
	}, []string{"intent"})

	// SessionDuration observes the time from start to termination.
	SessionDuration = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "loqa_voicecmd_session_duration_seconds",
		Help:    "Speech session duration from start to termination, by reason.",
		Buckets: []float64{0.5, 1, 2, 5, 10, 20, 30, 60},
	}, []string{"reason"})

	// LiveSessions tracks sessions that have not terminated yet.
	LiveSessions = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "loqa_voicecmd_live_sessions",
		Help: "Current number of live speech sessions.",
	})
)

// RecordSessionStarted counts a new session.
func RecordSessionStarted(engine string) {
	SessionsStartedTotal.WithLabelValues(engine).Inc()
	LiveSessions.Inc()
}

// RecordStatus counts a status transition.
func RecordStatus(status string) {
	StatusTransitionsTotal.WithLabelValues(status).Inc()
}

// RecordSessionTerminated counts a terminated session and its duration.
func RecordSessionTerminated(engine, reason string, duration time.Duration) {
	SessionsTerminatedTotal.WithLabelValues(engine, reason).Inc()
	SessionDuration.WithLabelValues(reason).Observe(duration.Seconds())
	LiveSessions.Dec()
}

// RecordIntent counts an interpreted command.
func RecordIntent(intent string) {
	IntentsTotal.WithLabelValues(intent).Inc()
}
