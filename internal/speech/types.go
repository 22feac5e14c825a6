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
	"fmt"
	"time"
)

// SessionStatus is a step of the session lifecycle. Statuses are ordered by
// lifecycle position.
type SessionStatus int

const (
	StatusIdle SessionStatus = iota
	StatusStarting
	StatusListening
	StatusAnalyzing
	StatusExiting
	StatusTerminated
)

var statusNames = map[SessionStatus]string{
	StatusIdle:       "idle",
	StatusStarting:   "starting",
	StatusListening:  "listening",
	StatusAnalyzing:  "analyzing",
	StatusExiting:    "exiting",
	StatusTerminated: "terminated",
}

func (s SessionStatus) String() string {
	if name, ok := statusNames[s]; ok {
		return name
	}
	return fmt.Sprintf("status(%d)", int(s))
}

// MarshalText encodes the status by name.
func (s SessionStatus) MarshalText() ([]byte, error) {
	return []byte(s.String()), nil
}

// UnmarshalText decodes a status name.
func (s *SessionStatus) UnmarshalText(text []byte) error {
	for status, name := range statusNames {
		if name == string(text) {
			*s = status
			return nil
		}
	}
	return fmt.Errorf("unknown session status %q", text)
}

// TerminationReason explains how a session reached StatusTerminated.
type TerminationReason int

const (
	ReasonSuccess TerminationReason = iota
	ReasonFail
	ReasonCancel
)

var reasonNames = map[TerminationReason]string{
	ReasonSuccess: "success",
	ReasonFail:    "fail",
	ReasonCancel:  "cancel",
}

func (r TerminationReason) String() string {
	if name, ok := reasonNames[r]; ok {
		return name
	}
	return fmt.Sprintf("reason(%d)", int(r))
}

// MarshalText encodes the reason by name.
func (r TerminationReason) MarshalText() ([]byte, error) {
	return []byte(r.String()), nil
}

// UnmarshalText decodes a reason name.
func (r *TerminationReason) UnmarshalText(text []byte) error {
	for reason, name := range reasonNames {
		if name == string(text) {
			*r = reason
			return nil
		}
	}
	return fmt.Errorf("unknown termination reason %q", text)
}

// ParseTerminationReason decodes a reason name.
func ParseTerminationReason(name string) (TerminationReason, error) {
	var r TerminationReason
	err := r.UnmarshalText([]byte(name))
	return r, err
}

// TerminationPayload accompanies the transition into StatusTerminated.
type TerminationPayload struct {
	Reason TerminationReason `json:"reason"`
	Data   interface{}       `json:"data,omitempty"`
}

// DiffPart is one run of a word-level diff. Unchanged runs have neither
// Added nor Removed set.
type DiffPart struct {
	Value   string `json:"value"`
	Added   bool   `json:"added,omitempty"`
	Removed bool   `json:"removed,omitempty"`
	Count   int    `json:"count"`
}

// DictationResult is one transcript update from the recognizer. DiffResult
// is filled in by the session from the second result onward.
type DictationResult struct {
	Text       string     `json:"text"`
	IsFinal    bool       `json:"is_final"`
	Confidence float64    `json:"confidence,omitempty"`
	ReceivedAt time.Time  `json:"received_at"`
	DiffResult []DiffPart `json:"diff_result,omitempty"`
}

// StatusChange is an entry of a session's status history.
type StatusChange struct {
	Status  SessionStatus       `json:"status"`
	At      time.Time           `json:"at"`
	Payload *TerminationPayload `json:"payload,omitempty"`
}
