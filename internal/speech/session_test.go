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
	"reflect"
	"sync"
	"testing"
	"time"

	"go.uber.org/goleak"
)

type fakeClock struct {
	mu    sync.Mutex
	now   time.Time
	slept []time.Duration
}

func newFakeClock() *fakeClock {
	return &fakeClock{now: time.Date(2022, 2, 16, 9, 0, 0, 0, time.UTC)}
}

func (c *fakeClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *fakeClock) Sleep(d time.Duration) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.now = c.now.Add(d)
	c.slept = append(c.slept, d)
}

func (c *fakeClock) Slept() []time.Duration {
	c.mu.Lock()
	defer c.mu.Unlock()
	return append([]time.Duration(nil), c.slept...)
}

type statusRecorder struct {
	mu       sync.Mutex
	statuses []SessionStatus
	payloads []*TerminationPayload
}

func (r *statusRecorder) listen(status SessionStatus, payload *TerminationPayload) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.statuses = append(r.statuses, status)
	r.payloads = append(r.payloads, payload)
}

func (r *statusRecorder) Statuses() []SessionStatus {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]SessionStatus(nil), r.statuses...)
}

func (r *statusRecorder) Last() *TerminationPayload {
	r.mu.Lock()
	defer r.mu.Unlock()
	if len(r.payloads) == 0 {
		return nil
	}
	return r.payloads[len(r.payloads)-1]
}

func newTestSession(t *testing.T, rec Recognizer, opts ...Option) (*Session, *statusRecorder, *fakeClock) {
	t.Helper()
	clock := newFakeClock()
	recorder := &statusRecorder{}
	opts = append([]Option{WithClock(clock), WithStatusChangeListener(recorder.listen)}, opts...)
	s := New(rec, opts...)
	t.Cleanup(s.Dispose)
	return s, recorder, clock
}

func assertStatuses(t *testing.T, got []SessionStatus, want ...SessionStatus) {
	t.Helper()
	if !reflect.DeepEqual(got, want) {
		t.Fatalf("statuses = %v, want %v", got, want)
	}
}

func assertDone(t *testing.T, s *Session, want bool) {
	t.Helper()
	select {
	case <-s.Done():
		if !want {
			t.Fatal("Done() closed before termination")
		}
	default:
		if want {
			t.Fatal("Done() not closed after termination")
		}
	}
}

func TestSession_SuccessfulCommand(t *testing.T) {
	defer goleak.VerifyNone(t, goleak.IgnoreCurrent())

	rec := NewScriptedRecognizer("show my", "show my steps")
	s, recorder, clock := newTestSession(t, rec)
	ctx := context.Background()

	if s.Status() != StatusIdle {
		t.Fatalf("new session status = %v, want idle", s.Status())
	}
	if err := s.RequestStart(ctx); err != nil {
		t.Fatalf("RequestStart() error = %v", err)
	}
	if s.Status() != StatusListening {
		t.Fatalf("status after start = %v, want listening", s.Status())
	}
	if err := s.RequestStopListening(ctx); err != nil {
		t.Fatalf("RequestStopListening() error = %v", err)
	}

	assertStatuses(t, recorder.Statuses(),
		StatusStarting, StatusListening, StatusAnalyzing, StatusExiting, StatusTerminated)
	payload := recorder.Last()
	if payload == nil || payload.Reason != ReasonSuccess {
		t.Fatalf("termination payload = %+v, want success", payload)
	}
	want := []time.Duration{4000 * time.Millisecond, 1000 * time.Millisecond}
	if got := clock.Slept(); !reflect.DeepEqual(got, want) {
		t.Errorf("sleeps = %v, want %v", got, want)
	}
	if last := s.Last(); last == nil || last.Text != "show my steps" || !last.IsFinal {
		t.Errorf("Last() = %+v", last)
	}
	assertDone(t, s, true)
}

func TestSession_AnalyzerOutputBecomesPayload(t *testing.T) {
	rec := NewScriptedRecognizer("compare sleep")
	analyzer := AnalyzerFunc(func(_ context.Context, last *DictationResult) (interface{}, error) {
		return "analyzed: " + last.Text, nil
	})
	s, recorder, clock := newTestSession(t, rec, WithAnalyzer(analyzer))
	ctx := context.Background()

	_ = s.RequestStart(ctx)
	_ = s.RequestStopListening(ctx)

	payload := recorder.Last()
	if payload == nil || payload.Reason != ReasonSuccess || payload.Data != "analyzed: compare sleep" {
		t.Fatalf("payload = %+v", payload)
	}
	if got := clock.Slept(); !reflect.DeepEqual(got, []time.Duration{time.Second}) {
		t.Errorf("sleeps = %v, want only the exit hold", got)
	}
}

func TestSession_AnalyzerErrorFails(t *testing.T) {
	rec := NewScriptedRecognizer("browse")
	analyzer := AnalyzerFunc(func(context.Context, *DictationResult) (interface{}, error) {
		return nil, errors.New("model unavailable")
	})
	s, recorder, _ := newTestSession(t, rec, WithAnalyzer(analyzer))
	ctx := context.Background()

	_ = s.RequestStart(ctx)
	_ = s.RequestStopListening(ctx)

	assertStatuses(t, recorder.Statuses(),
		StatusStarting, StatusListening, StatusAnalyzing, StatusTerminated)
	if payload := recorder.Last(); payload.Reason != ReasonFail || payload.Data != "model unavailable" {
		t.Errorf("payload = %+v, want fail", payload)
	}
}

func TestSession_StartFailureCancels(t *testing.T) {
	tests := []struct {
		name string
		rec  *ScriptedRecognizer
	}{
		{"reports not started", &ScriptedRecognizer{FailStart: true}},
		{"returns error", &ScriptedRecognizer{StartErr: errors.New("microphone busy")}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			s, recorder, _ := newTestSession(t, tt.rec)

			if err := s.RequestStart(context.Background()); err != nil {
				t.Fatalf("RequestStart() error = %v", err)
			}

			assertStatuses(t, recorder.Statuses(), StatusStarting, StatusTerminated)
			if payload := recorder.Last(); payload.Reason != ReasonCancel {
				t.Errorf("reason = %v, want cancel", payload.Reason)
			}
			assertDone(t, s, true)
		})
	}
}

func TestSession_MinimumStatusDuration(t *testing.T) {
	s, _, _ := newTestSession(t, &ScriptedRecognizer{FailStart: true})
	_ = s.RequestStart(context.Background())

	history := s.History()
	if len(history) != 3 {
		t.Fatalf("history length = %d, want 3", len(history))
	}
	starting, terminated := history[1], history[2]
	if starting.Status != StatusStarting || terminated.Status != StatusTerminated {
		t.Fatalf("unexpected history %+v", history)
	}
	if gap := terminated.At.Sub(starting.At); gap < 500*time.Millisecond {
		t.Errorf("terminated %v after starting, want at least 500ms", gap)
	}
}

func TestSession_MinimumDurationAlreadyElapsed(t *testing.T) {
	rec := NewScriptedRecognizer("hello")
	s, recorder, clock := newTestSession(t, rec)
	_ = s.RequestStart(context.Background())

	clock.Sleep(2 * time.Second)
	rec.EmitStop(errors.New("late failure"))

	assertStatuses(t, recorder.Statuses(), StatusStarting, StatusListening, StatusTerminated)
	if got := clock.Slept(); len(got) != 1 {
		t.Errorf("sleeps = %v, want no extra wait", got)
	}
}

func TestSession_RecognitionErrorFails(t *testing.T) {
	rec := NewScriptedRecognizer("hello")
	rec.AutoStop = true
	rec.StopErr = errors.New("no speech detected")
	s, recorder, clock := newTestSession(t, rec)

	_ = s.RequestStart(context.Background())

	assertStatuses(t, recorder.Statuses(), StatusStarting, StatusListening, StatusTerminated)
	payload := recorder.Last()
	if payload.Reason != ReasonFail || payload.Data != "no speech detected" {
		t.Errorf("payload = %+v, want fail", payload)
	}
	if got := clock.Slept(); !reflect.DeepEqual(got, []time.Duration{500 * time.Millisecond}) {
		t.Errorf("sleeps = %v", got)
	}
}

func TestSession_RequestStop(t *testing.T) {
	t.Run("from idle stays exiting", func(t *testing.T) {
		rec := NewScriptedRecognizer()
		s, recorder, _ := newTestSession(t, rec)

		s.RequestStop(context.Background())

		assertStatuses(t, recorder.Statuses(), StatusExiting)
		if rec.Stops() != 0 {
			t.Errorf("recognizer stopped %d times, want 0", rec.Stops())
		}
		assertDone(t, s, false)
	})

	t.Run("from listening cancels", func(t *testing.T) {
		rec := NewScriptedRecognizer("record my")
		s, recorder, clock := newTestSession(t, rec)
		ctx := context.Background()
		_ = s.RequestStart(ctx)

		s.RequestStop(ctx)

		assertStatuses(t, recorder.Statuses(),
			StatusStarting, StatusListening, StatusExiting, StatusTerminated)
		if payload := recorder.Last(); payload.Reason != ReasonCancel {
			t.Errorf("reason = %v, want cancel", payload.Reason)
		}
		if rec.Stops() != 1 {
			t.Errorf("recognizer stopped %d times, want 1", rec.Stops())
		}
		if got := clock.Slept(); !reflect.DeepEqual(got, []time.Duration{500 * time.Millisecond}) {
			t.Errorf("sleeps = %v", got)
		}
	})

	t.Run("recognizer stop error still cancels", func(t *testing.T) {
		rec := NewScriptedRecognizer()
		rec.StopCallErr = errors.New("engine gone")
		s, recorder, _ := newTestSession(t, rec)
		ctx := context.Background()
		_ = s.RequestStart(ctx)

		s.RequestStop(ctx)

		if payload := recorder.Last(); payload == nil || payload.Reason != ReasonCancel {
			t.Errorf("payload = %+v, want cancel", payload)
		}
	})

	t.Run("from exiting only repeats exiting", func(t *testing.T) {
		rec := NewScriptedRecognizer()
		s, recorder, _ := newTestSession(t, rec)
		ctx := context.Background()

		s.RequestStop(ctx)
		s.RequestStop(ctx)

		assertStatuses(t, recorder.Statuses(), StatusExiting, StatusExiting)
		if rec.Stops() != 0 {
			t.Errorf("recognizer stopped %d times, want 0", rec.Stops())
		}
	})

	t.Run("late recognizer events do not reverse exiting", func(t *testing.T) {
		rec := NewScriptedRecognizer()
		s, recorder, _ := newTestSession(t, rec)

		s.RequestStop(context.Background())
		rec.fireStart()
		rec.EmitStop(nil)
		rec.EmitStop(errors.New("late failure"))

		assertStatuses(t, recorder.Statuses(), StatusExiting)
		assertDone(t, s, false)
	})

	t.Run("after termination does nothing", func(t *testing.T) {
		s, recorder, _ := newTestSession(t, &ScriptedRecognizer{FailStart: true})
		ctx := context.Background()
		_ = s.RequestStart(ctx)

		s.RequestStop(ctx)

		assertStatuses(t, recorder.Statuses(), StatusStarting, StatusTerminated)
		if s.Status() != StatusTerminated {
			t.Errorf("status = %v, want terminated", s.Status())
		}
	})
}

// blockingStartRecognizer holds Start until release is closed, leaving the
// session in Starting.
type blockingStartRecognizer struct {
	*ScriptedRecognizer
	entered chan struct{}
	release chan struct{}
}

func (r *blockingStartRecognizer) Start(ctx context.Context) (bool, error) {
	close(r.entered)
	<-r.release
	return r.ScriptedRecognizer.Start(ctx)
}

func TestSession_RequestStopWhileStarting(t *testing.T) {
	defer goleak.VerifyNone(t, goleak.IgnoreCurrent())

	rec := &blockingStartRecognizer{
		ScriptedRecognizer: NewScriptedRecognizer("too late"),
		entered:            make(chan struct{}),
		release:            make(chan struct{}),
	}
	s, recorder, clock := newTestSession(t, rec)
	ctx := context.Background()

	started := make(chan error, 1)
	go func() { started <- s.RequestStart(ctx) }()

	<-rec.entered
	if s.Status() != StatusStarting {
		t.Fatalf("status while recognizer starts = %v, want starting", s.Status())
	}

	s.RequestStop(ctx)

	assertStatuses(t, recorder.Statuses(), StatusStarting, StatusExiting, StatusTerminated)
	if payload := recorder.Last(); payload == nil || payload.Reason != ReasonCancel {
		t.Errorf("payload = %+v, want cancel", payload)
	}
	if rec.Stops() != 1 {
		t.Errorf("recognizer stopped %d times, want 1", rec.Stops())
	}
	if got := clock.Slept(); !reflect.DeepEqual(got, []time.Duration{500 * time.Millisecond}) {
		t.Errorf("sleeps = %v, want one 500ms wait", got)
	}
	assertDone(t, s, true)

	// The start event that arrives once the recognizer finally starts is ignored.
	close(rec.release)
	if err := <-started; err != nil {
		t.Fatalf("RequestStart() error = %v", err)
	}
	assertStatuses(t, recorder.Statuses(), StatusStarting, StatusExiting, StatusTerminated)
}

func TestSession_RequestStopWhileAnalyzing(t *testing.T) {
	defer goleak.VerifyNone(t, goleak.IgnoreCurrent())

	entered := make(chan struct{})
	release := make(chan struct{})
	analyzer := AnalyzerFunc(func(context.Context, *DictationResult) (interface{}, error) {
		close(entered)
		<-release
		return nil, nil
	})

	rec := NewScriptedRecognizer("highlight")
	s, recorder, _ := newTestSession(t, rec, WithAnalyzer(analyzer))
	ctx := context.Background()
	_ = s.RequestStart(ctx)

	finished := make(chan struct{})
	go func() {
		defer close(finished)
		_ = s.RequestStopListening(ctx)
	}()

	<-entered
	s.RequestStop(ctx)
	if s.Status() != StatusExiting {
		t.Errorf("status right after RequestStop = %v, want exiting", s.Status())
	}
	if rec.Stops() != 1 {
		t.Errorf("recognizer stopped %d times, want only the stop-listening call", rec.Stops())
	}
	close(release)
	<-finished

	// The analysis still runs to completion and re-enters Exiting on its way out.
	assertStatuses(t, recorder.Statuses(),
		StatusStarting, StatusListening, StatusAnalyzing, StatusExiting, StatusExiting, StatusTerminated)
	if payload := recorder.Last(); payload.Reason != ReasonSuccess {
		t.Errorf("reason = %v, want success", payload.Reason)
	}
}

func TestSession_RequestStartTwice(t *testing.T) {
	s, _, _ := newTestSession(t, NewScriptedRecognizer())
	ctx := context.Background()

	if err := s.RequestStart(ctx); err != nil {
		t.Fatalf("first RequestStart() error = %v", err)
	}
	if err := s.RequestStart(ctx); !errors.Is(err, ErrSessionNotIdle) {
		t.Errorf("second RequestStart() error = %v, want ErrSessionNotIdle", err)
	}
}

func TestSession_RequestStopListeningOutsideListening(t *testing.T) {
	rec := NewScriptedRecognizer()
	s, recorder, _ := newTestSession(t, rec)

	if err := s.RequestStopListening(context.Background()); err != nil {
		t.Fatalf("RequestStopListening() error = %v", err)
	}
	if rec.Stops() != 0 || len(recorder.Statuses()) != 0 {
		t.Error("stop-listening from idle should do nothing")
	}
}

func TestSession_RequestStopListeningError(t *testing.T) {
	rec := NewScriptedRecognizer()
	rec.StopCallErr = errors.New("engine gone")
	s, _, _ := newTestSession(t, rec)
	ctx := context.Background()
	_ = s.RequestStart(ctx)

	if err := s.RequestStopListening(ctx); !errors.Is(err, rec.StopCallErr) {
		t.Errorf("RequestStopListening() error = %v, want wrapped engine error", err)
	}
	if s.Status() != StatusListening {
		t.Errorf("status = %v, want listening", s.Status())
	}
}

func TestSession_DictationDiffs(t *testing.T) {
	var mu sync.Mutex
	var outputs []DictationResult
	listener := func(r DictationResult) {
		mu.Lock()
		defer mu.Unlock()
		outputs = append(outputs, r)
	}

	rec := NewScriptedRecognizer("turn", "turn on")
	s, recorder, clock := newTestSession(t, rec, WithDictationOutputListener(listener))
	_ = s.RequestStart(context.Background())

	mu.Lock()
	defer mu.Unlock()
	if len(outputs) != 2 {
		t.Fatalf("got %d dictation outputs, want 2", len(outputs))
	}
	if outputs[0].DiffResult != nil {
		t.Errorf("first result diff = %+v, want none", outputs[0].DiffResult)
	}
	want := []DiffPart{
		{Value: "turn", Count: 1},
		{Value: " on", Added: true, Count: 2},
	}
	if !reflect.DeepEqual(outputs[1].DiffResult, want) {
		t.Errorf("second result diff = %+v, want %+v", outputs[1].DiffResult, want)
	}
	if !outputs[0].ReceivedAt.Equal(clock.Now()) {
		t.Errorf("ReceivedAt = %v, want clock time", outputs[0].ReceivedAt)
	}
	assertStatuses(t, recorder.Statuses(), StatusStarting, StatusListening)
}

func TestSession_Dispose(t *testing.T) {
	rec := NewScriptedRecognizer("ignored")
	s := New(rec, WithClock(newFakeClock()))

	s.Dispose()
	s.Dispose()

	if rec.Uninstalls() != 1 {
		t.Errorf("Uninstall called %d times, want 1", rec.Uninstalls())
	}
}

func TestSession_OptionsAndIdentity(t *testing.T) {
	s := New(NewScriptedRecognizer(), WithID("fixed-id"), WithTimings(Timings{MinStatusDuration: time.Millisecond}))
	defer s.Dispose()

	if s.ID() != "fixed-id" {
		t.Errorf("ID() = %q, want fixed-id", s.ID())
	}
	if other := New(NewScriptedRecognizer()); other.ID() == "" || other.ID() == s.ID() {
		t.Errorf("generated ID %q should be unique", other.ID())
	}
	history := s.History()
	if len(history) != 1 || history[0].Status != StatusIdle {
		t.Errorf("History() = %+v, want idle only", history)
	}
}

func TestStatusText(t *testing.T) {
	for status := StatusIdle; status <= StatusTerminated; status++ {
		text, _ := status.MarshalText()
		var decoded SessionStatus
		if err := decoded.UnmarshalText(text); err != nil || decoded != status {
			t.Errorf("status %v round trip = %v, %v", status, decoded, err)
		}
	}
	if _, err := ParseTerminationReason("unknown"); err == nil {
		t.Error("ParseTerminationReason(unknown) should fail")
	}
	if r, err := ParseTerminationReason("cancel"); err != nil || r != ReasonCancel {
		t.Errorf("ParseTerminationReason(cancel) = %v, %v", r, err)
	}
}
