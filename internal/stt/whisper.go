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

//go:build whisper

package stt

import (
	"fmt"
	"os"
	"strings"
	"sync"

	"github.com/ggerganov/whisper.cpp/bindings/go/pkg/whisper"
	"go.uber.org/zap"

	"github.com/loqalabs/loqa-voicecmd/internal/logging"
)

// WhisperTranscriber runs whisper.cpp locally
type WhisperTranscriber struct {
	mu        sync.Mutex
	model     whisper.Model
	modelPath string
	language  string
}

// NewWhisperTranscriber loads the model at modelPath
func NewWhisperTranscriber(modelPath string) (*WhisperTranscriber, error) {
	if _, err := os.Stat(modelPath); os.IsNotExist(err) {
		return nil, fmt.Errorf("whisper model not found at %s", modelPath)
	}

	model, err := whisper.New(modelPath)
	if err != nil {
		return nil, fmt.Errorf("failed to load whisper model: %w", err)
	}

	logging.Component("stt").Info("Whisper model loaded", zap.String("path", modelPath))
	return &WhisperTranscriber{
		model:     model,
		modelPath: modelPath,
		language:  "en",
	}, nil
}

// Ready reports whether the model is loaded.
func (wt *WhisperTranscriber) Ready() error {
	wt.mu.Lock()
	defer wt.mu.Unlock()
	if wt.model == nil {
		return fmt.Errorf("whisper model not initialized")
	}
	return nil
}

// Transcribe converts 16 kHz mono samples to text segments
func (wt *WhisperTranscriber) Transcribe(samples []float32) ([]string, error) {
	wt.mu.Lock()
	defer wt.mu.Unlock()

	if wt.model == nil {
		return nil, fmt.Errorf("whisper model not initialized")
	}

	ctx, err := wt.model.NewContext()
	if err != nil {
		return nil, fmt.Errorf("failed to create whisper context: %w", err)
	}
	if err := ctx.SetLanguage(wt.language); err != nil {
		return nil, fmt.Errorf("failed to set whisper language: %w", err)
	}

	if err := ctx.Process(samples, nil, nil, nil); err != nil {
		return nil, fmt.Errorf("failed to process audio: %w", err)
	}

	var segments []string
	for {
		segment, err := ctx.NextSegment()
		if err != nil {
			break
		}
		if text := strings.TrimSpace(segment.Text); text != "" {
			segments = append(segments, text)
		}
	}

	return segments, nil
}

// Close releases the model
func (wt *WhisperTranscriber) Close() error {
	wt.mu.Lock()
	defer wt.mu.Unlock()
	if wt.model != nil {
		err := wt.model.Close()
		wt.model = nil
		return err
	}
	return nil
}
