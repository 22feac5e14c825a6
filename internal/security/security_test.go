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

package security

import (
	"errors"
	"testing"
)

func TestSanitizeLogInput(t *testing.T) {
	tests := []struct {
		name     string
		input    string
		expected string
	}{
		{"clean input", "normal text", "normal text"},
		{"newline", "line1\nline2", "line1line2"},
		{"carriage return", "line1\rline2", "line1line2"},
		{"forged entry", "ok\r\n[ERROR] fake", "ok[ERROR] fake"},
		{"empty", "", ""},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := SanitizeLogInput(tt.input); got != tt.expected {
				t.Errorf("SanitizeLogInput(%q) = %q, want %q", tt.input, got, tt.expected)
			}
		})
	}
}

func TestValidateID(t *testing.T) {
	tests := []struct {
		name    string
		id      string
		wantErr bool
	}{
		{"canonical uuid", "6ba7b810-9dad-11d1-80b4-00c04fd430c8", false},
		{"upper case uuid", "6BA7B810-9DAD-11D1-80B4-00C04FD430C8", false},
		{"empty", "", true},
		{"path traversal", "../../etc/passwd", true},
		{"braced uuid", "{6ba7b810-9dad-11d1-80b4-00c04fd430c8}", true},
		{"urn form", "urn:uuid:6ba7b810-9dad-11d1-80b4-00c04fd430c8", true},
		{"compact form", "6ba7b8109dad11d180b400c04fd430c8", true},
		{"bad hex", "6ba7b810-9dad-11d1-80b4-00c04fd430zz", true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := ValidateID(tt.id)
			if tt.wantErr {
				if !errors.Is(err, ErrInvalidID) {
					t.Errorf("ValidateID(%q) = %v, want ErrInvalidID", tt.id, err)
				}
			} else if err != nil {
				t.Errorf("ValidateID(%q) unexpected error: %v", tt.id, err)
			}
		})
	}
}
