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
	"slices"
	"testing"
)

func TestDecodePCM16(t *testing.T) {
	tests := []struct {
		name string
		data []byte
		want []float32
	}{
		{"empty", nil, []float32{}},
		{"silence", []byte{0, 0}, []float32{0}},
		{"extremes", []byte{0xff, 0x7f, 0x00, 0x80}, []float32{32767.0 / 32768, -1}},
		{"half", []byte{0x00, 0x40, 0x00, 0xc0}, []float32{0.5, -0.5}},
		{"trailing byte", []byte{0x00, 0x40, 0x01}, []float32{0.5}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := DecodePCM16(tt.data); !slices.Equal(got, tt.want) {
				t.Errorf("DecodePCM16() = %v, want %v", got, tt.want)
			}
		})
	}
}

func TestFFmpegSource_Args(t *testing.T) {
	s := NewFFmpegSource("", "", "")
	args := s.args()
	want := []string{"-f", "pulse", "-i", "default", "-ac", "1", "-ar", "16000", "-f", "s16le", "-"}
	if !slices.Equal(args[len(args)-len(want):], want) {
		t.Errorf("args = %v", args)
	}

	s = NewFFmpegSource("ffmpeg", "alsa", "hw:1")
	args = s.args()
	if !slices.Contains(args, "alsa") || !slices.Contains(args, "hw:1") {
		t.Errorf("args = %v, want alsa input hw:1", args)
	}
}

func TestFFmpegSource_MissingCommand(t *testing.T) {
	s := NewFFmpegSource("/nonexistent/ffmpeg", "", "")
	if err := s.Begin(context.Background()); err == nil {
		t.Fatal("Begin() error = nil, want failure for missing binary")
	}
	if _, err := s.End(); err == nil {
		t.Error("End() error = nil without a running capture")
	}
}
