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

package events

import (
	"encoding/json"
	"fmt"
	"time"

	"github.com/google/uuid"
)

// Termination reasons as stored.
const (
	ReasonSuccess = "success"
	ReasonFail    = "fail"
	ReasonCancel  = "cancel"
)

// Time value kinds as stored.
const (
	TimeTypeNone   = ""
	TimeTypeDate   = "date"
	TimeTypePeriod = "period"
)

// StatusRecord is one step of a session's status history.
type StatusRecord struct {
	Status string    `json:"status"`
	At     time.Time `json:"at"`
}

// SessionEvent is the persisted record of a finished speech command session
type SessionEvent struct {
	// Core identification
	UUID      string `json:"uuid" db:"uuid"`
	SessionID string `json:"session_id" db:"session_id"`
	Engine    string `json:"engine" db:"engine"`

	// Lifecycle
	StartedAt    time.Time      `json:"started_at" db:"started_at"`
	TerminatedAt time.Time      `json:"terminated_at" db:"terminated_at"`
	Statuses     []StatusRecord `json:"statuses" db:"statuses"`
	Reason       string         `json:"reason" db:"reason"`
	ErrorMessage string         `json:"error_message,omitempty" db:"error_message"`

	// Recognition
	Transcript string  `json:"transcript" db:"transcript"`
	Confidence float64 `json:"confidence" db:"confidence"`

	// Interpreted command
	Verb        string `json:"verb,omitempty" db:"verb"`
	Intent      string `json:"intent,omitempty" db:"intent"`
	TimeType    string `json:"time_type,omitempty" db:"time_type"`
	DateValue   int    `json:"date_value,omitempty" db:"date_value"`
	PeriodStart int    `json:"period_start,omitempty" db:"period_start"`
	PeriodEnd   int    `json:"period_end,omitempty" db:"period_end"`
}

// NewSessionEvent creates a SessionEvent with a generated UUID
func NewSessionEvent(sessionID, engine string, startedAt time.Time) *SessionEvent {
	return &SessionEvent{
		UUID:      uuid.New().String(),
		SessionID: sessionID,
		Engine:    engine,
		StartedAt: startedAt,
	}
}

// GetUUID returns the event UUID.
func (se *SessionEvent) GetUUID() string {
	return se.UUID
}

func (se *SessionEvent) GetSessionID() string {
	return se.SessionID
}

func (se *SessionEvent) GetReason() string {
	return se.Reason
}

// AddStatus appends to the status history
func (se *SessionEvent) AddStatus(status string, at time.Time) {
	se.Statuses = append(se.Statuses, StatusRecord{Status: status, At: at})
}

// SetTranscript sets the final transcript
func (se *SessionEvent) SetTranscript(text string, confidence float64) {
	se.Transcript = text
	se.Confidence = confidence
}

// SetTermination records how and when the session ended
func (se *SessionEvent) SetTermination(reason string, at time.Time, message string) {
	se.Reason = reason
	se.TerminatedAt = at
	se.ErrorMessage = message
}

// SetCommand sets the interpreted verb and intent
func (se *SessionEvent) SetCommand(verb, intent string) {
	se.Verb = verb
	se.Intent = intent
}

// SetDate records a single numbered date
func (se *SessionEvent) SetDate(date int) {
	se.TimeType = TimeTypeDate
	se.DateValue = date
	se.PeriodStart, se.PeriodEnd = 0, 0
}

// SetPeriod records an inclusive numbered date period
func (se *SessionEvent) SetPeriod(start, end int) {
	se.TimeType = TimeTypePeriod
	se.DateValue = 0
	se.PeriodStart, se.PeriodEnd = start, end
}

// Duration is the time from start to termination.
func (se *SessionEvent) Duration() time.Duration {
	if se.TerminatedAt.IsZero() {
		return 0
	}
	return se.TerminatedAt.Sub(se.StartedAt)
}

// StatusesJSON returns the status history as JSON for database storage
func (se *SessionEvent) StatusesJSON() (string, error) {
	if se.Statuses == nil {
		return "[]", nil
	}

	data, err := json.Marshal(se.Statuses)
	if err != nil {
		return "", fmt.Errorf("failed to marshal statuses: %w", err)
	}

	return string(data), nil
}

// SetStatusesFromJSON parses a JSON status history
func (se *SessionEvent) SetStatusesFromJSON(jsonStr string) error {
	if jsonStr == "" || jsonStr == "[]" {
		se.Statuses = []StatusRecord{}
		return nil
	}

	var statuses []StatusRecord
	if err := json.Unmarshal([]byte(jsonStr), &statuses); err != nil {
		return fmt.Errorf("failed to unmarshal statuses JSON: %w", err)
	}

	se.Statuses = statuses
	return nil
}

// IsValid performs basic validation on the session event
func (se *SessionEvent) IsValid() error {
	if se.UUID == "" {
		return fmt.Errorf("UUID is required")
	}

	if se.SessionID == "" {
		return fmt.Errorf("sessionID is required")
	}

	if se.StartedAt.IsZero() {
		return fmt.Errorf("started_at is required")
	}

	switch se.Reason {
	case ReasonSuccess, ReasonFail, ReasonCancel:
	default:
		return fmt.Errorf("unknown termination reason %q", se.Reason)
	}

	if !se.TerminatedAt.IsZero() && se.TerminatedAt.Before(se.StartedAt) {
		return fmt.Errorf("terminated_at must not precede started_at")
	}

	if se.Confidence < 0 || se.Confidence > 1 {
		return fmt.Errorf("confidence must be between 0 and 1")
	}

	switch se.TimeType {
	case TimeTypeNone:
	case TimeTypeDate:
		if se.DateValue <= 0 {
			return fmt.Errorf("date_value is required for a date")
		}
	case TimeTypePeriod:
		if se.PeriodStart <= 0 || se.PeriodEnd < se.PeriodStart {
			return fmt.Errorf("invalid period %d..%d", se.PeriodStart, se.PeriodEnd)
		}
	default:
		return fmt.Errorf("unknown time type %q", se.TimeType)
	}

	return nil
}

// String returns a human-readable representation of the session event
func (se *SessionEvent) String() string {
	return fmt.Sprintf("SessionEvent{UUID: %s, SessionID: %s, Reason: %s, Intent: %s, Transcript: %q}",
		se.UUID, se.SessionID, se.Reason, se.Intent, se.Transcript)
}
