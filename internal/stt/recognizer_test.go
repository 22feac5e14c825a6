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

package stt

import (
	"context"
	"errors"
	"testing"

	"github.com/loqalabs/loqa-voicecmd/internal/speech"
)

type fakeTranscriber struct {
	readyErr error
	segments []string
	err      error
}

func (f *fakeTranscriber) Ready() error { return f.readyErr }

func (f *fakeTranscriber) Transcribe([]float32) ([]string, error) {
	return f.segments, f.err
}

func collect(r *Recognizer) (*int, *[]speech.DictationResult, *[]error) {
	started := 0
	var results []speech.DictationResult
	var stops []error
	r.RegisterStartEventListener(func() { started++ })
	r.RegisterReceivedEventListener(func(res speech.DictationResult) { results = append(results, res) })
	r.RegisterStopEventListener(func(err error) { stops = append(stops, err) })
	return &started, &results, &stops
}

func TestRecognizer_CumulativeSegments(t *testing.T) {
	transcriber := &fakeTranscriber{segments: []string{"compare my sleep", "last week"}}
	r := NewRecognizer(transcriber, &BufferSource{Samples: make([]float32, SampleRate)})
	started, results, stops := collect(r)
	ctx := context.Background()

	if ok, err := r.Start(ctx); !ok || err != nil {
		t.Fatalf("Start() = %v, %v", ok, err)
	}
	if *started != 1 {
		t.Errorf("start events = %d, want 1", *started)
	}
	if ok, err := r.Stop(ctx); !ok || err != nil {
		t.Fatalf("Stop() = %v, %v", ok, err)
	}

	want := []speech.DictationResult{
		{Text: "compare my sleep"},
		{Text: "compare my sleep last week", IsFinal: true},
	}
	if len(*results) != len(want) {
		t.Fatalf("results = %+v", *results)
	}
	for i := range want {
		if (*results)[i].Text != want[i].Text || (*results)[i].IsFinal != want[i].IsFinal {
			t.Errorf("result %d = %+v, want %+v", i, (*results)[i], want[i])
		}
	}
	if len(*stops) != 1 || (*stops)[0] != nil {
		t.Errorf("stops = %v, want one clean stop", *stops)
	}

	if ok, _ := r.Stop(ctx); ok {
		t.Error("second Stop() should report false")
	}
}

func TestRecognizer_Failures(t *testing.T) {
	tests := []struct {
		name        string
		transcriber *fakeTranscriber
		samples     []float32
	}{
		{"transcription error", &fakeTranscriber{err: errors.New("decoder crashed")}, make([]float32, 10)},
		{"no speech", &fakeTranscriber{}, make([]float32, 10)},
		{"no audio", &fakeTranscriber{segments: []string{"hi"}}, nil},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			r := NewRecognizer(tt.transcriber, &BufferSource{Samples: tt.samples})
			_, results, stops := collect(r)
			ctx := context.Background()

			_, _ = r.Start(ctx)
			_, _ = r.Stop(ctx)

			if len(*results) != 0 {
				t.Errorf("results = %+v, want none", *results)
			}
			if len(*stops) != 1 || (*stops)[0] == nil {
				t.Errorf("stops = %v, want one failed stop", *stops)
			}
		})
	}
}

func TestRecognizer_NotReady(t *testing.T) {
	r := NewRecognizer(&fakeTranscriber{readyErr: errors.New("no model")}, &BufferSource{})
	started, _, _ := collect(r)

	ok, err := r.Start(context.Background())
	if ok || err == nil {
		t.Errorf("Start() = %v, %v; want failure", ok, err)
	}
	if *started != 0 {
		t.Error("start event should not fire")
	}
}

func TestRecognizer_SessionCancelledWithoutModel(t *testing.T) {
	transcriber, err := NewWhisperTranscriber("/nonexistent/model.bin")
	if err != nil {
		t.Skipf("whisper build: %v", err)
	}
	defer func() { _ = transcriber.Close() }()

	var reason speech.TerminationReason = -1
	s := speech.New(NewRecognizer(transcriber, &BufferSource{}),
		speech.WithTimings(speech.Timings{}),
		speech.WithStatusChangeListener(func(_ speech.SessionStatus, p *speech.TerminationPayload) {
			if p != nil {
				reason = p.Reason
			}
		}))
	defer s.Dispose()

	_ = s.RequestStart(context.Background())
	if reason != speech.ReasonCancel {
		t.Errorf("reason = %v, want cancel", reason)
	}
}

func TestRecognizer_UninstallDropsListeners(t *testing.T) {
	r := NewRecognizer(&fakeTranscriber{segments: []string{"hi"}}, &BufferSource{Samples: []float32{0}})
	_, results, stops := collect(r)
	ctx := context.Background()

	_, _ = r.Start(ctx)
	r.Uninstall()
	_, _ = r.Stop(ctx)

	if len(*results) != 0 || len(*stops) != 0 {
		t.Error("listeners should be dropped by Uninstall")
	}
}
