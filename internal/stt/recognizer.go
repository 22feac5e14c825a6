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

// Package stt runs speech recognition in process.
package stt

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"slices"
	"sync"

	"go.uber.org/zap"

	"github.com/loqalabs/loqa-voicecmd/internal/logging"
	"github.com/loqalabs/loqa-voicecmd/internal/speech"
)

// SampleRate is the rate whisper expects, in Hz.
const SampleRate = 16000

// Transcriber turns captured audio into text segments.
type Transcriber interface {
	Ready() error
	Transcribe(samples []float32) ([]string, error)
}

// SampleSource captures audio between Begin and End.
type SampleSource interface {
	Begin(ctx context.Context) error
	End() ([]float32, error)
}

// BufferSource replays fixed samples. It is used for file input and tests.
type BufferSource struct {
	Samples []float32
}

// Begin implements SampleSource.
func (b *BufferSource) Begin(context.Context) error { return nil }

// End implements SampleSource.
func (b *BufferSource) End() ([]float32, error) {
	return b.Samples, nil
}

// Recognizer is a speech.Recognizer backed by a local Transcriber. Audio is
// captured while listening; on Stop it is transcribed and every segment is
// reported as a growing transcript before the stop event fires.
type Recognizer struct {
	transcriber Transcriber
	source      SampleSource
	log         *zap.Logger

	mu        sync.Mutex
	listening bool
	onStart   []func()
	onResult  []func(speech.DictationResult)
	onStop    []func(error)
}

// NewRecognizer creates a recognizer reading from source.
func NewRecognizer(transcriber Transcriber, source SampleSource) *Recognizer {
	return &Recognizer{
		transcriber: transcriber,
		source:      source,
		log:         logging.Component("stt"),
	}
}

// Start implements speech.Recognizer.
func (r *Recognizer) Start(ctx context.Context) (bool, error) {
	if err := r.transcriber.Ready(); err != nil {
		return false, err
	}
	if err := r.source.Begin(ctx); err != nil {
		return false, fmt.Errorf("failed to open audio source: %w", err)
	}

	r.mu.Lock()
	r.listening = true
	onStart := slices.Clone(r.onStart)
	r.mu.Unlock()

	for _, fn := range onStart {
		fn()
	}
	return true, nil
}

// Stop implements speech.Recognizer.
func (r *Recognizer) Stop(context.Context) (bool, error) {
	r.mu.Lock()
	if !r.listening {
		r.mu.Unlock()
		return false, nil
	}
	r.listening = false
	onResult := slices.Clone(r.onResult)
	onStop := slices.Clone(r.onStop)
	r.mu.Unlock()

	stopErr := r.transcribe(onResult)
	for _, fn := range onStop {
		fn(stopErr)
	}
	return true, nil
}

func (r *Recognizer) transcribe(onResult []func(speech.DictationResult)) error {
	samples, err := r.source.End()
	if err != nil {
		return fmt.Errorf("failed to read audio: %w", err)
	}
	if len(samples) == 0 {
		return errors.New("no audio captured")
	}

	segments, err := r.transcriber.Transcribe(samples)
	if err != nil {
		return err
	}
	if len(segments) == 0 {
		return errors.New("no speech recognized")
	}

	r.log.Debug("Transcribed audio",
		zap.Int("samples", len(samples)),
		zap.Int("segments", len(segments)))

	for i := range segments {
		result := speech.DictationResult{
			Text:    strings.Join(segments[:i+1], " "),
			IsFinal: i == len(segments)-1,
		}
		for _, fn := range onResult {
			fn(result)
		}
	}
	return nil
}

// Uninstall implements speech.Recognizer.
func (r *Recognizer) Uninstall() {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.listening = false
	r.onStart = nil
	r.onResult = nil
	r.onStop = nil
}

// RegisterStartEventListener implements speech.Recognizer.
func (r *Recognizer) RegisterStartEventListener(fn func()) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.onStart = append(r.onStart, fn)
}

// RegisterReceivedEventListener implements speech.Recognizer.
func (r *Recognizer) RegisterReceivedEventListener(fn func(speech.DictationResult)) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.onResult = append(r.onResult, fn)
}

// RegisterStopEventListener implements speech.Recognizer.
func (r *Recognizer) RegisterStopEventListener(fn func(error)) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.onStop = append(r.onStop, fn)
}
