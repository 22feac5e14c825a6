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
	"bytes"
	"context"
	"encoding/binary"
	"errors"
	"fmt"
	"io"
	"os"
	"os/exec"
	"strconv"
	"sync"
	"time"
)

// FFmpegSource captures microphone audio as 16 kHz mono s16le through an
// ffmpeg child process. One capture runs at a time.
type FFmpegSource struct {
	Command     string // defaults to "ffmpeg"
	InputFormat string // defaults to "pulse"
	InputDevice string // defaults to "default"

	mu      sync.Mutex
	cmd     *exec.Cmd
	stderr  *bytes.Buffer
	pcm     *bytes.Buffer
	waitErr chan error
}

// NewFFmpegSource creates a source for the given ffmpeg input.
func NewFFmpegSource(command, inputFormat, inputDevice string) *FFmpegSource {
	return &FFmpegSource{Command: command, InputFormat: inputFormat, InputDevice: inputDevice}
}

func (s *FFmpegSource) args() []string {
	format, device := s.InputFormat, s.InputDevice
	if format == "" {
		format = "pulse"
	}
	if device == "" {
		device = "default"
	}
	return []string{
		"-nostdin",
		"-hide_banner",
		"-loglevel", "warning",
		"-f", format,
		"-i", device,
		"-ac", "1",
		"-ar", strconv.Itoa(SampleRate),
		"-f", "s16le",
		"-",
	}
}

// Begin starts ffmpeg and buffers its output until End.
func (s *FFmpegSource) Begin(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.cmd != nil {
		return errors.New("capture already running")
	}

	command := s.Command
	if command == "" {
		command = "ffmpeg"
	}

	cmd := exec.CommandContext(ctx, command, s.args()...)
	stderr := &bytes.Buffer{}
	cmd.Stderr = stderr

	stdout, err := cmd.StdoutPipe()
	if err != nil {
		return fmt.Errorf("failed to create ffmpeg stdout pipe: %w", err)
	}
	if err := cmd.Start(); err != nil {
		return fmt.Errorf("failed to start ffmpeg: %w", err)
	}

	pcm := &bytes.Buffer{}
	copied := make(chan error, 1)
	go func() {
		_, err := io.Copy(pcm, stdout)
		copied <- err
	}()

	waitErr := make(chan error, 1)
	go func() {
		<-copied
		waitErr <- cmd.Wait()
	}()

	s.cmd, s.stderr, s.pcm, s.waitErr = cmd, stderr, pcm, waitErr
	return nil
}

// End interrupts ffmpeg and returns the captured samples.
func (s *FFmpegSource) End() ([]float32, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.cmd == nil {
		return nil, errors.New("capture not running")
	}
	cmd, stderr, pcm, waitErr := s.cmd, s.stderr, s.pcm, s.waitErr
	s.cmd = nil

	_ = cmd.Process.Signal(os.Interrupt)

	var err error
	select {
	case err = <-waitErr:
	case <-time.After(1200 * time.Millisecond):
		_ = cmd.Process.Kill()
		err = <-waitErr
	}

	var exitErr *exec.ExitError
	if err != nil && !errors.As(err, &exitErr) {
		return nil, fmt.Errorf("ffmpeg capture failed: %w: %s", err, bytes.TrimSpace(stderr.Bytes()))
	}

	return DecodePCM16(pcm.Bytes()), nil
}

// DecodePCM16 converts little-endian signed 16-bit samples to [-1, 1).
// A trailing odd byte is dropped.
func DecodePCM16(data []byte) []float32 {
	samples := make([]float32, len(data)/2)
	for i := range samples {
		v := int16(binary.LittleEndian.Uint16(data[2*i:]))
		samples[i] = float32(v) / 32768
	}
	return samples
}
