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

// Package manager keeps the live speech command sessions of the service and
// records each one when it finishes.
package manager

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/loqalabs/loqa-voicecmd/internal/events"
	"github.com/loqalabs/loqa-voicecmd/internal/logging"
	"github.com/loqalabs/loqa-voicecmd/internal/messaging"
	"github.com/loqalabs/loqa-voicecmd/internal/metrics"
	"github.com/loqalabs/loqa-voicecmd/internal/nlp"
	"github.com/loqalabs/loqa-voicecmd/internal/speech"
)

var (
	// ErrSessionNotFound is returned for IDs that are not live sessions.
	ErrSessionNotFound = errors.New("session not found")
	// ErrNotListening is returned when stop-listening targets a session that
	// is not listening.
	ErrNotListening = errors.New("session is not listening")
)

// RecognizerFactory creates the recognizer for a new session.
type RecognizerFactory func(sessionID string) (speech.Recognizer, error)

// Publisher fans session activity out to other services.
type Publisher interface {
	PublishStatus(event *messaging.StatusEvent) error
	PublishDictation(event *messaging.DictationEvent) error
}

// EventStore persists finished sessions.
type EventStore interface {
	Insert(event *events.SessionEvent) error
}

// Info is a snapshot of a live session.
type Info struct {
	ID         string                  `json:"id"`
	Engine     string                  `json:"engine"`
	Status     speech.SessionStatus    `json:"status"`
	StartedAt  time.Time               `json:"started_at"`
	Transcript string                  `json:"transcript,omitempty"`
	History    []speech.StatusChange   `json:"history"`
	Last       *speech.DictationResult `json:"last,omitempty"`
}

// Manager owns the live sessions.
type Manager struct {
	factory   RecognizerFactory
	publisher Publisher
	store     EventStore
	engine    string
	timings   speech.Timings
	clock     speech.Clock
	log       *zap.Logger

	mu       sync.RWMutex
	sessions map[string]*entry
	wg       sync.WaitGroup
}

type entry struct {
	session   *speech.Session
	startedAt time.Time
}

// Option configures a Manager.
type Option func(*Manager)

// WithPublisher sets where status and dictation events are published.
func WithPublisher(p Publisher) Option {
	return func(m *Manager) { m.publisher = p }
}

// WithStore sets where finished sessions are recorded.
func WithStore(s EventStore) Option {
	return func(m *Manager) { m.store = s }
}

// WithEngine names the speech engine in published and stored records.
func WithEngine(name string) Option {
	return func(m *Manager) { m.engine = name }
}

// WithTimings sets the session lifecycle delays.
func WithTimings(t speech.Timings) Option {
	return func(m *Manager) { m.timings = t }
}

// WithClock sets the clock handed to every session.
func WithClock(c speech.Clock) Option {
	return func(m *Manager) { m.clock = c }
}

// WithLogger sets the manager logger.
func WithLogger(l *zap.Logger) Option {
	return func(m *Manager) {
		if l != nil {
			m.log = l
		}
	}
}

// New creates a Manager that builds recognizers with factory.
func New(factory RecognizerFactory, opts ...Option) *Manager {
	m := &Manager{
		factory:  factory,
		engine:   "default",
		timings:  speech.DefaultTimings(),
		clock:    speech.SystemClock(),
		log:      logging.Component("manager"),
		sessions: make(map[string]*entry),
	}
	for _, opt := range opts {
		opt(m)
	}
	return m
}

// Start creates a session and starts it in the background. The returned
// snapshot reflects the session before its recognizer has answered.
func (m *Manager) Start(ctx context.Context) (Info, error) {
	id := uuid.New().String()

	recognizer, err := m.factory(id)
	if err != nil {
		return Info{}, fmt.Errorf("failed to create recognizer: %w", err)
	}

	session := speech.New(recognizer,
		speech.WithID(id),
		speech.WithClock(m.clock),
		speech.WithTimings(m.timings),
		speech.WithAnalyzer(m.commandAnalyzer()),
		speech.WithLogger(m.log.Named("session")),
		speech.WithStatusChangeListener(func(status speech.SessionStatus, payload *speech.TerminationPayload) {
			m.handleStatus(id, status, payload)
		}),
		speech.WithDictationOutputListener(func(result speech.DictationResult) {
			m.handleDictation(id, result)
		}),
	)

	e := &entry{session: session, startedAt: m.clock.Now()}
	m.mu.Lock()
	m.sessions[id] = e
	m.mu.Unlock()
	metrics.RecordSessionStarted(m.engine)

	info := m.snapshot(id, e)

	// The request context usually ends long before the session does.
	startCtx := context.WithoutCancel(ctx)
	m.wg.Add(1)
	go func() {
		defer m.wg.Done()
		if err := session.RequestStart(startCtx); err != nil {
			m.log.Warn("Session start rejected", zap.String(logging.FieldSessionID, id), zap.Error(err))
		}
	}()

	m.log.Info("Session created", zap.String(logging.FieldSessionID, id), zap.String("engine", m.engine))
	return info, nil
}

// Get returns a snapshot of a live session.
func (m *Manager) Get(id string) (Info, error) {
	e, err := m.lookup(id)
	if err != nil {
		return Info{}, err
	}
	return m.snapshot(id, e), nil
}

// List returns snapshots of every live session, oldest first.
func (m *Manager) List() []Info {
	m.mu.RLock()
	ids := make([]string, 0, len(m.sessions))
	entries := make(map[string]*entry, len(m.sessions))
	for id, e := range m.sessions {
		ids = append(ids, id)
		entries[id] = e
	}
	m.mu.RUnlock()

	infos := make([]Info, 0, len(ids))
	for _, id := range ids {
		infos = append(infos, m.snapshot(id, entries[id]))
	}
	sort.Slice(infos, func(i, j int) bool {
		if infos[i].StartedAt.Equal(infos[j].StartedAt) {
			return infos[i].ID < infos[j].ID
		}
		return infos[i].StartedAt.Before(infos[j].StartedAt)
	})
	return infos
}

// Done returns a channel closed when the session terminates.
func (m *Manager) Done(id string) (<-chan struct{}, error) {
	e, err := m.lookup(id)
	if err != nil {
		return nil, err
	}
	return e.session.Done(), nil
}

// Stop cancels a session. It returns once the session has terminated or, for
// a session stopped before starting, moved to Exiting.
func (m *Manager) Stop(ctx context.Context, id string) error {
	e, err := m.lookup(id)
	if err != nil {
		return err
	}
	e.session.RequestStop(ctx)
	return nil
}

// StopListening ends recognition and lets the session finish its analysis
// in the background.
func (m *Manager) StopListening(ctx context.Context, id string) error {
	e, err := m.lookup(id)
	if err != nil {
		return err
	}
	if e.session.Status() != speech.StatusListening {
		return ErrNotListening
	}

	stopCtx := context.WithoutCancel(ctx)
	m.wg.Add(1)
	go func() {
		defer m.wg.Done()
		if err := e.session.RequestStopListening(stopCtx); err != nil {
			m.log.Warn("Stop listening failed", zap.String(logging.FieldSessionID, id), zap.Error(err))
		}
	}()
	return nil
}

// Count returns the number of live sessions.
func (m *Manager) Count() int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return len(m.sessions)
}

// Close cancels every live session and waits for background work.
func (m *Manager) Close(ctx context.Context) {
	m.mu.RLock()
	live := make([]*entry, 0, len(m.sessions))
	for _, e := range m.sessions {
		live = append(live, e)
	}
	m.mu.RUnlock()

	for _, e := range live {
		e.session.RequestStop(ctx)
		e.session.Dispose()
	}

	// Sessions that have not terminated yet are dropped without an event.
	m.mu.Lock()
	for range m.sessions {
		metrics.LiveSessions.Dec()
	}
	m.sessions = make(map[string]*entry)
	m.mu.Unlock()

	m.wg.Wait()
}

func (m *Manager) lookup(id string) (*entry, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	e, ok := m.sessions[id]
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrSessionNotFound, id)
	}
	return e, nil
}

func (m *Manager) snapshot(id string, e *entry) Info {
	info := Info{
		ID:        id,
		Engine:    m.engine,
		Status:    e.session.Status(),
		StartedAt: e.startedAt,
		History:   e.session.History(),
		Last:      e.session.Last(),
	}
	if info.Last != nil {
		info.Transcript = info.Last.Text
	}
	return info
}

// commandAnalyzer holds Analyzing for the configured time, then reads the
// final transcript as a command.
func (m *Manager) commandAnalyzer() speech.Analyzer {
	hold := speech.HoldAnalyzer{Clock: m.clock, Duration: m.timings.AnalysisDuration}
	return speech.AnalyzerFunc(func(ctx context.Context, last *speech.DictationResult) (interface{}, error) {
		if _, err := hold.Analyze(ctx, last); err != nil {
			return nil, err
		}
		if last == nil || last.Text == "" {
			return nil, errors.New("no transcript to interpret")
		}
		return nlp.InterpretAt(last.Text, m.clock.Now()), nil
	})
}

func (m *Manager) handleStatus(id string, status speech.SessionStatus, payload *speech.TerminationPayload) {
	metrics.RecordStatus(status.String())

	if m.publisher != nil {
		event := &messaging.StatusEvent{
			SessionID: id,
			Status:    status.String(),
			Timestamp: m.clock.Now().UnixMilli(),
		}
		if payload != nil {
			event.Reason = payload.Reason.String()
			event.Data = payload.Data
		}
		if err := m.publisher.PublishStatus(event); err != nil {
			m.log.Warn("Failed to publish status", zap.String(logging.FieldSessionID, id), zap.Error(err))
		}
	}

	if status == speech.StatusTerminated {
		m.finish(id, payload)
	}
}

func (m *Manager) handleDictation(id string, result speech.DictationResult) {
	if m.publisher == nil {
		return
	}
	event := &messaging.DictationEvent{
		SessionID:  id,
		Text:       result.Text,
		IsFinal:    result.IsFinal,
		Confidence: result.Confidence,
		Timestamp:  result.ReceivedAt.UnixMilli(),
	}
	if result.DiffResult != nil {
		event.Diff = result.DiffResult
	}
	if err := m.publisher.PublishDictation(event); err != nil {
		m.log.Warn("Failed to publish dictation", zap.String(logging.FieldSessionID, id), zap.Error(err))
	}
}

// finish runs from the Terminated listener: it records the session, drops it
// from the registry and releases its recognizer.
func (m *Manager) finish(id string, payload *speech.TerminationPayload) {
	m.mu.Lock()
	e, ok := m.sessions[id]
	delete(m.sessions, id)
	m.mu.Unlock()
	if !ok {
		return
	}

	reason := events.ReasonCancel
	if payload != nil {
		reason = payload.Reason.String()
		if cmd, isCmd := payload.Data.(nlp.Command); isCmd {
			metrics.RecordIntent(string(cmd.Intent))
		}
	}
	metrics.RecordSessionTerminated(m.engine, reason, m.clock.Now().Sub(e.startedAt))

	if m.store != nil {
		event := buildSessionEvent(id, m.engine, e, payload)
		if err := m.store.Insert(event); err != nil {
			logging.LogError(err, "Failed to store session event", zap.String(logging.FieldSessionID, id))
		}
	}

	e.session.Dispose()
}

func buildSessionEvent(id, engine string, e *entry, payload *speech.TerminationPayload) *events.SessionEvent {
	event := events.NewSessionEvent(id, engine, e.startedAt)

	history := e.session.History()
	for _, change := range history {
		event.AddStatus(change.Status.String(), change.At)
	}
	terminatedAt := e.startedAt
	if len(history) > 0 {
		terminatedAt = history[len(history)-1].At
	}

	reason := speech.ReasonCancel
	var message string
	var data interface{}
	if payload != nil {
		reason = payload.Reason
		data = payload.Data
	}
	if reason != speech.ReasonSuccess {
		if text, ok := data.(string); ok {
			message = text
		}
	}
	event.SetTermination(reason.String(), terminatedAt, message)

	if last := e.session.Last(); last != nil {
		event.SetTranscript(last.Text, clampConfidence(last.Confidence))
	}

	if cmd, ok := data.(nlp.Command); ok {
		event.SetCommand(cmd.Verb, string(cmd.Intent))
		if cmd.Time != nil {
			switch cmd.Time.Type {
			case nlp.VariableDate:
				event.SetDate(cmd.Time.Date)
			case nlp.VariablePeriod:
				event.SetPeriod(cmd.Time.Period[0], cmd.Time.Period[1])
			}
		}
	}

	return event
}

func clampConfidence(c float64) float64 {
	if c < 0 {
		return 0
	}
	if c > 1 {
		return 1
	}
	return c
}
