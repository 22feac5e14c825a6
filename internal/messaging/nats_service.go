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

package messaging

import (
	"encoding/json"
	"fmt"
	"time"

	"github.com/nats-io/nats.go"
	"go.uber.org/zap"

	"github.com/loqalabs/loqa-voicecmd/internal/logging"
)

// NATSService owns the NATS connection used for session fan-out and for
// talking to remote speech engines.
type NATSService struct {
	config NATSConfig
	conn   *nats.Conn
}

// NATSConfig holds connection settings
type NATSConfig struct {
	URL           string
	Name          string
	MaxReconnects int
	ReconnectWait time.Duration
}

// StatusEvent is published on every session status change
type StatusEvent struct {
	SessionID string      `json:"session_id"`
	Status    string      `json:"status"`
	Reason    string      `json:"reason,omitempty"`
	Data      interface{} `json:"data,omitempty"`
	Timestamp int64       `json:"timestamp"`
}

// DictationEvent is published on every transcript update
type DictationEvent struct {
	SessionID  string      `json:"session_id"`
	Text       string      `json:"text"`
	IsFinal    bool        `json:"is_final"`
	Confidence float64     `json:"confidence,omitempty"`
	Diff       interface{} `json:"diff,omitempty"`
	Timestamp  int64       `json:"timestamp"`
}

// NATS subjects for session fan-out
const (
	SubjectSessionStatus    = "loqa.speech.sessions.status"
	SubjectSessionDictation = "loqa.speech.sessions.dictation"
)

// NewNATSService creates a new NATS service instance
func NewNATSService(config NATSConfig) *NATSService {
	if config.URL == "" {
		config.URL = nats.DefaultURL
	}
	if config.Name == "" {
		config.Name = "loqa-voicecmd"
	}
	if config.ReconnectWait <= 0 {
		config.ReconnectWait = 2 * time.Second
	}
	return &NATSService{config: config}
}

// Connect establishes connection to NATS server
func (ns *NATSService) Connect() error {
	logging.LogNATSEvent(ns.config.URL, "connect")

	opts := []nats.Option{
		nats.Name(ns.config.Name),
		nats.ReconnectWait(ns.config.ReconnectWait),
		nats.MaxReconnects(ns.config.MaxReconnects),
		nats.DisconnectErrHandler(func(nc *nats.Conn, err error) {
			logging.LogWarn("NATS disconnected", zap.Error(err))
		}),
		nats.ReconnectHandler(func(nc *nats.Conn) {
			logging.LogNATSEvent(nc.ConnectedUrl(), "reconnected")
		}),
		nats.ClosedHandler(func(nc *nats.Conn) {
			logging.LogNATSEvent(ns.config.URL, "closed")
		}),
	}

	conn, err := nats.Connect(ns.config.URL, opts...)
	if err != nil {
		return fmt.Errorf("failed to connect to NATS: %w", err)
	}

	ns.conn = conn
	logging.LogNATSEvent(conn.ConnectedUrl(), "connected")
	return nil
}

// PublishStatus publishes a session status change
func (ns *NATSService) PublishStatus(event *StatusEvent) error {
	if err := ns.publishJSON(SubjectSessionStatus, event); err != nil {
		return err
	}
	logging.LogNATSEvent(SubjectSessionStatus, "publish",
		zap.String("session_id", event.SessionID),
		zap.String("status", event.Status))
	return nil
}

// PublishDictation publishes a transcript update
func (ns *NATSService) PublishDictation(event *DictationEvent) error {
	return ns.publishJSON(SubjectSessionDictation, event)
}

// SubscribeToStatus subscribes to session status changes
func (ns *NATSService) SubscribeToStatus(handler func(*StatusEvent)) (*nats.Subscription, error) {
	if ns.conn == nil {
		return nil, fmt.Errorf("NATS connection not established")
	}

	return ns.conn.Subscribe(SubjectSessionStatus, func(msg *nats.Msg) {
		var event StatusEvent
		if err := json.Unmarshal(msg.Data, &event); err != nil {
			logging.LogError(err, "Error unmarshaling status event")
			return
		}
		handler(&event)
	})
}

// Request implements Transport.
func (ns *NATSService) Request(subject string, data []byte, timeout time.Duration) ([]byte, error) {
	if ns.conn == nil {
		return nil, fmt.Errorf("NATS connection not established")
	}
	msg, err := ns.conn.Request(subject, data, timeout)
	if err != nil {
		return nil, fmt.Errorf("request to %s failed: %w", subject, err)
	}
	return msg.Data, nil
}

// Subscribe implements Transport. The returned function drains the
// subscription.
func (ns *NATSService) Subscribe(subject string, handler func(data []byte)) (func() error, error) {
	if ns.conn == nil {
		return nil, fmt.Errorf("NATS connection not established")
	}
	sub, err := ns.conn.Subscribe(subject, func(msg *nats.Msg) {
		handler(msg.Data)
	})
	if err != nil {
		return nil, fmt.Errorf("failed to subscribe to %s: %w", subject, err)
	}
	return sub.Drain, nil
}

func (ns *NATSService) publishJSON(subject string, v interface{}) error {
	if ns.conn == nil {
		return fmt.Errorf("NATS connection not established")
	}

	data, err := json.Marshal(v)
	if err != nil {
		return fmt.Errorf("failed to marshal event for %s: %w", subject, err)
	}

	if err := ns.conn.Publish(subject, data); err != nil {
		return fmt.Errorf("failed to publish to %s: %w", subject, err)
	}
	return nil
}

// Close closes the NATS connection
func (ns *NATSService) Close() {
	if ns.conn != nil {
		ns.conn.Close()
	}
}

// IsConnected returns true if connected to NATS
func (ns *NATSService) IsConnected() bool {
	return ns.conn != nil && ns.conn.IsConnected()
}
