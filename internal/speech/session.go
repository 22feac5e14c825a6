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

package speech

import (
	"context"
	"errors"
	"fmt"
	"slices"
	"sync"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/loqalabs/loqa-voicecmd/internal/logging"
)

// ErrSessionNotIdle is returned by RequestStart once a session has left
// StatusIdle. Sessions are single use.
var ErrSessionNotIdle = errors.New("speech session is not idle")

// Session drives a Recognizer through one voice command, from Idle to
// Terminated. It is safe for concurrent use.
//
// Status listeners run synchronously on the goroutine that caused the
// transition. They must not call RequestStart, RequestStop or
// RequestStopListening on the same session.
type Session struct {
	id          string
	recognizer  Recognizer
	log         *zap.Logger
	clock       Clock
	timings     Timings
	analyzer    Analyzer
	onStatus    StatusChangeListener
	onDictation DictationOutputListener

	ctx    context.Context
	cancel context.CancelFunc

	// notifyMu serializes transitions so listeners observe them in order.
	notifyMu sync.Mutex

	mu              sync.Mutex
	status          SessionStatus
	statusUpdatedAt time.Time
	history         []StatusChange
	previous        *DictationResult
	last            *DictationResult

	done        chan struct{}
	doneOnce    sync.Once
	disposeOnce sync.Once
}

// New creates an idle session bound to recognizer and subscribes to its
// events. Call Dispose when the session is no longer needed.
func New(recognizer Recognizer, opts ...Option) *Session {
	s := &Session{
		id:          uuid.New().String(),
		recognizer:  recognizer,
		log:         logging.Component("speech"),
		clock:       SystemClock(),
		timings:     DefaultTimings(),
		onStatus:    func(SessionStatus, *TerminationPayload) {},
		onDictation: func(DictationResult) {},
		done:        make(chan struct{}),
	}
	for _, opt := range opts {
		opt(s)
	}
	if s.analyzer == nil {
		s.analyzer = HoldAnalyzer{Clock: s.clock, Duration: s.timings.AnalysisDuration}
	}
	s.log = s.log.With(zap.String(logging.FieldSessionID, s.id))
	s.ctx, s.cancel = context.WithCancel(context.Background())

	now := s.clock.Now()
	s.status = StatusIdle
	s.statusUpdatedAt = now
	s.history = []StatusChange{{Status: StatusIdle, At: now}}

	recognizer.RegisterStartEventListener(s.handleStarted)
	recognizer.RegisterReceivedEventListener(s.handleResult)
	recognizer.RegisterStopEventListener(s.handleStopped)

	return s
}

// ID returns the session identifier.
func (s *Session) ID() string {
	return s.id
}

// Status returns the current status.
func (s *Session) Status() SessionStatus {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.status
}

// Done is closed when the session reaches StatusTerminated.
func (s *Session) Done() <-chan struct{} {
	return s.done
}

// History returns every status the session has held, oldest first.
func (s *Session) History() []StatusChange {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]StatusChange, len(s.history))
	copy(out, s.history)
	return out
}

// Last returns the most recent transcript, or nil before the first result.
func (s *Session) Last() *DictationResult {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.last == nil {
		return nil
	}
	r := *s.last
	return &r
}

// RequestStart moves an idle session to Starting and starts the recognizer.
// A recognizer that cannot start cancels the session; that outcome is
// reported through the status listener, not as an error.
func (s *Session) RequestStart(ctx context.Context) error {
	if _, ok := s.transition(StatusStarting, nil, StatusIdle); !ok {
		return ErrSessionNotIdle
	}

	ok, err := s.recognizer.Start(ctx)
	if err != nil || !ok {
		fields := []zap.Field{zap.Bool("started", ok)}
		if err != nil {
			fields = append(fields, zap.Error(err))
		}
		s.log.Warn("Recognizer failed to start", fields...)

		s.waitForMinDuration()
		s.terminateFrom(ReasonCancel, errorData(err), StatusStarting, StatusListening)
	}
	return nil
}

// RequestStop ends the session on behalf of the user. The session moves to
// Exiting at once. A running recognizer is then stopped and the session is
// cancelled; an idle session stays at Exiting, and one already Analyzing or
// Exiting is left to finish on its own.
func (s *Session) RequestStop(ctx context.Context) {
	original, changed := s.transition(StatusExiting, nil)
	if !changed {
		return
	}

	switch original {
	case StatusStarting, StatusListening:
	default:
		return
	}

	if _, err := s.recognizer.Stop(ctx); err != nil {
		s.log.Warn("Recognizer stop failed", zap.Error(err))
	}
	s.waitForMinDuration()
	s.terminate(ReasonCancel, nil)
}

// RequestStopListening asks the recognizer to finish while the session is
// Listening. The following transitions come from the recognizer's stop
// event. Calls in any other status do nothing.
func (s *Session) RequestStopListening(ctx context.Context) error {
	if s.Status() != StatusListening {
		return nil
	}
	if _, err := s.recognizer.Stop(ctx); err != nil {
		return fmt.Errorf("failed to stop recognizer: %w", err)
	}
	return nil
}

// Dispose releases the recognizer subscription. Repeated calls are no-ops.
func (s *Session) Dispose() {
	s.disposeOnce.Do(func() {
		s.cancel()
		s.recognizer.Uninstall()
		s.log.Debug("Session disposed")
	})
}

func (s *Session) handleStarted() {
	s.transition(StatusListening, nil, StatusStarting)
}

func (s *Session) handleResult(result DictationResult) {
	s.mu.Lock()
	if result.ReceivedAt.IsZero() {
		result.ReceivedAt = s.clock.Now()
	}
	s.previous = s.last
	if s.previous != nil {
		result.DiffResult = DiffWords(s.previous.Text, result.Text)
	} else {
		result.DiffResult = nil
	}
	stored := result
	s.last = &stored
	s.mu.Unlock()

	s.onDictation(result)
}

func (s *Session) handleStopped(stopErr error) {
	if stopErr != nil {
		// Stops requested through RequestStop have already moved the session on.
		if status := s.Status(); status != StatusStarting && status != StatusListening {
			s.log.Debug("Ignoring recognizer stop", zap.Stringer("status", status))
			return
		}
		s.log.Warn("Recognition failed", zap.Error(stopErr))
		s.waitForMinDuration()
		s.terminateFrom(ReasonFail, errorData(stopErr), StatusStarting, StatusListening)
		return
	}

	if from, ok := s.transition(StatusAnalyzing, nil, StatusStarting, StatusListening); !ok {
		s.log.Debug("Ignoring recognizer stop", zap.Stringer("status", from))
		return
	}

	s.mu.Lock()
	last := s.last
	s.mu.Unlock()

	data, err := s.analyzer.Analyze(s.ctx, last)
	if err != nil {
		s.log.Warn("Analysis failed", zap.Error(err))
		s.waitForMinDuration()
		s.terminate(ReasonFail, errorData(err))
		return
	}

	s.changeStatus(StatusExiting, nil)
	s.clock.Sleep(s.timings.ExitDuration)
	s.terminate(ReasonSuccess, data)
}

func (s *Session) terminate(reason TerminationReason, data interface{}) {
	s.changeStatus(StatusTerminated, &TerminationPayload{Reason: reason, Data: data})
}

// terminateFrom terminates only while the session is still in one of from.
func (s *Session) terminateFrom(reason TerminationReason, data interface{}, from ...SessionStatus) {
	s.transition(StatusTerminated, &TerminationPayload{Reason: reason, Data: data}, from...)
}

func (s *Session) changeStatus(status SessionStatus, payload *TerminationPayload) {
	s.transition(status, payload)
}

// transition moves the session to status and notifies the listener. When
// from is given the current status must be one of them; the check and the
// change happen under the same lock. It returns the status before the call
// and whether the transition happened. Once Terminated, the session ignores
// further changes.
func (s *Session) transition(status SessionStatus, payload *TerminationPayload, from ...SessionStatus) (SessionStatus, bool) {
	s.notifyMu.Lock()
	defer s.notifyMu.Unlock()

	s.mu.Lock()
	previous := s.status
	if previous == StatusTerminated || (len(from) > 0 && !slices.Contains(from, previous)) {
		s.mu.Unlock()
		return previous, false
	}
	now := s.clock.Now()
	s.status = status
	s.statusUpdatedAt = now
	s.history = append(s.history, StatusChange{Status: status, At: now, Payload: payload})
	s.mu.Unlock()

	if payload != nil {
		s.log.Info("Speech session terminated",
			zap.Stringer("from", previous),
			zap.Stringer("reason", payload.Reason))
	} else {
		s.log.Debug("Speech session status changed",
			zap.Stringer("from", previous),
			zap.Stringer("to", status))
	}

	s.onStatus(status, payload)

	if status == StatusTerminated {
		s.doneOnce.Do(func() { close(s.done) })
	}
	return previous, true
}

// waitForMinDuration sleeps off whatever remains of the minimum display time
// of the current status.
func (s *Session) waitForMinDuration() {
	s.mu.Lock()
	elapsed := s.clock.Now().Sub(s.statusUpdatedAt)
	s.mu.Unlock()

	if remaining := s.timings.MinStatusDuration - elapsed; remaining > 0 {
		s.clock.Sleep(remaining)
	}
}

func errorData(err error) interface{} {
	if err == nil {
		return nil
	}
	return err.Error()
}
