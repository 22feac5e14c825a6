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
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"slices"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/loqalabs/loqa-voicecmd/internal/logging"
	"github.com/loqalabs/loqa-voicecmd/internal/speech"
)

// Transport is the request/reply and subscription surface the remote
// recognizer needs. NATSService implements it.
type Transport interface {
	Request(subject string, data []byte, timeout time.Duration) ([]byte, error)
	Subscribe(subject string, handler func(data []byte)) (unsubscribe func() error, err error)
}

// Engine event types published on the events subject.
const (
	EngineEventStarted = "started"
	EngineEventResult  = "result"
	EngineEventStopped = "stopped"
)

// EngineRequest is sent to start or stop recognition for a session.
type EngineRequest struct {
	SessionID string `json:"session_id"`
	Language  string `json:"language,omitempty"`
}

// EngineReply answers an EngineRequest.
type EngineReply struct {
	OK    bool   `json:"ok"`
	Error string `json:"error,omitempty"`
}

// EngineEvent is a recognition event from a remote engine.
type EngineEvent struct {
	Type       string  `json:"type"`
	Text       string  `json:"text,omitempty"`
	IsFinal    bool    `json:"is_final,omitempty"`
	Confidence float64 `json:"confidence,omitempty"`
	Error      string  `json:"error,omitempty"`
	Timestamp  int64   `json:"timestamp,omitempty"`
}

// StartSubject is where engine start requests go.
func StartSubject(engine string) string {
	return fmt.Sprintf("loqa.speech.%s.start", engine)
}

// StopSubject is where engine stop requests go.
func StopSubject(engine string) string {
	return fmt.Sprintf("loqa.speech.%s.stop", engine)
}

// EventsSubject is where an engine publishes the events of one session.
func EventsSubject(engine, sessionID string) string {
	return fmt.Sprintf("loqa.speech.%s.events.%s", engine, sessionID)
}

// NATSRecognizer drives a speech engine running behind NATS. One recognizer
// serves one session.
type NATSRecognizer struct {
	transport Transport
	engine    string
	sessionID string
	language  string
	timeout   time.Duration
	log       *zap.Logger

	mu          sync.Mutex
	unsubscribe func() error
	onStart     []func()
	onResult    []func(speech.DictationResult)
	onStop      []func(error)
}

// NewNATSRecognizer creates a recognizer for sessionID on the named engine.
func NewNATSRecognizer(transport Transport, engine, sessionID string, timeout time.Duration) *NATSRecognizer {
	if timeout <= 0 {
		timeout = 5 * time.Second
	}
	return &NATSRecognizer{
		transport: transport,
		engine:    engine,
		sessionID: sessionID,
		language:  "en-US",
		timeout:   timeout,
		log: logging.Component("nats_recognizer").With(
			zap.String("engine", engine),
			zap.String("session_id", sessionID)),
	}
}

// Start subscribes to the session's event subject and asks the engine to
// begin listening.
func (r *NATSRecognizer) Start(ctx context.Context) (bool, error) {
	if err := ctx.Err(); err != nil {
		return false, err
	}

	r.mu.Lock()
	if r.unsubscribe == nil {
		unsubscribe, err := r.transport.Subscribe(EventsSubject(r.engine, r.sessionID), r.handleEvent)
		if err != nil {
			r.mu.Unlock()
			return false, fmt.Errorf("failed to subscribe to engine events: %w", err)
		}
		r.unsubscribe = unsubscribe
	}
	r.mu.Unlock()

	return r.request(ctx, StartSubject(r.engine))
}

// Stop asks the engine to finish. The engine answers with a stopped event.
func (r *NATSRecognizer) Stop(ctx context.Context) (bool, error) {
	return r.request(ctx, StopSubject(r.engine))
}

func (r *NATSRecognizer) request(ctx context.Context, subject string) (bool, error) {
	payload, err := json.Marshal(EngineRequest{SessionID: r.sessionID, Language: r.language})
	if err != nil {
		return false, fmt.Errorf("failed to marshal engine request: %w", err)
	}

	timeout := r.timeout
	if deadline, ok := ctx.Deadline(); ok {
		if remaining := time.Until(deadline); remaining < timeout {
			timeout = remaining
		}
	}

	data, err := r.transport.Request(subject, payload, timeout)
	if err != nil {
		return false, err
	}

	var reply EngineReply
	if err := json.Unmarshal(data, &reply); err != nil {
		return false, fmt.Errorf("invalid engine reply: %w", err)
	}
	if reply.Error != "" {
		return false, errors.New(reply.Error)
	}

	logging.LogNATSEvent(subject, "request", zap.Bool("ok", reply.OK))
	return reply.OK, nil
}

// Uninstall drains the event subscription and drops all listeners.
func (r *NATSRecognizer) Uninstall() {
	r.mu.Lock()
	unsubscribe := r.unsubscribe
	r.unsubscribe = nil
	r.onStart = nil
	r.onResult = nil
	r.onStop = nil
	r.mu.Unlock()

	if unsubscribe != nil {
		if err := unsubscribe(); err != nil {
			r.log.Warn("Failed to drain engine subscription", zap.Error(err))
		}
	}
}

// RegisterStartEventListener implements speech.Recognizer.
func (r *NATSRecognizer) RegisterStartEventListener(fn func()) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.onStart = append(r.onStart, fn)
}

// RegisterReceivedEventListener implements speech.Recognizer.
func (r *NATSRecognizer) RegisterReceivedEventListener(fn func(speech.DictationResult)) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.onResult = append(r.onResult, fn)
}

// RegisterStopEventListener implements speech.Recognizer.
func (r *NATSRecognizer) RegisterStopEventListener(fn func(error)) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.onStop = append(r.onStop, fn)
}

// handleEvent runs on the subscription's delivery goroutine, so listeners
// see events one at a time and in order.
func (r *NATSRecognizer) handleEvent(data []byte) {
	var event EngineEvent
	if err := json.Unmarshal(data, &event); err != nil {
		r.log.Warn("Dropping malformed engine event", zap.Error(err))
		return
	}

	r.mu.Lock()
	onStart := slices.Clone(r.onStart)
	onResult := slices.Clone(r.onResult)
	onStop := slices.Clone(r.onStop)
	r.mu.Unlock()

	switch event.Type {
	case EngineEventStarted:
		for _, fn := range onStart {
			fn()
		}
	case EngineEventResult:
		result := speech.DictationResult{
			Text:       event.Text,
			IsFinal:    event.IsFinal,
			Confidence: event.Confidence,
		}
		if event.Timestamp > 0 {
			result.ReceivedAt = time.UnixMilli(event.Timestamp)
		}
		for _, fn := range onResult {
			fn(result)
		}
	case EngineEventStopped:
		var stopErr error
		if event.Error != "" {
			stopErr = errors.New(event.Error)
		}
		for _, fn := range onStop {
			fn(stopErr)
		}
	default:
		r.log.Debug("Ignoring unknown engine event", zap.String("type", event.Type))
	}
}
