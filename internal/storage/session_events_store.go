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

package storage

import (
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/loqalabs/loqa-voicecmd/internal/events"
	"github.com/loqalabs/loqa-voicecmd/internal/logging"
)

const sessionEventColumns = `uuid, session_id, engine, started_at, terminated_at, statuses,
	reason, error_message, transcript, confidence,
	verb, intent, time_type, date_value, period_start, period_end`

// SessionEventsStore handles database operations for session events
type SessionEventsStore struct {
	db *Database
}

// NewSessionEventsStore creates a new session events store
func NewSessionEventsStore(db *Database) *SessionEventsStore {
	return &SessionEventsStore{db: db}
}

// Insert stores a finished session in the database
func (s *SessionEventsStore) Insert(event *events.SessionEvent) error {
	if err := event.IsValid(); err != nil {
		return fmt.Errorf("invalid session event: %w", err)
	}

	statusesJSON, err := event.StatusesJSON()
	if err != nil {
		return fmt.Errorf("failed to serialize statuses: %w", err)
	}

	query := `
		INSERT INTO session_events (` + sessionEventColumns + `)
		VALUES (
			?, ?, ?, ?, ?, ?,
			?, ?, ?, ?,
			?, ?, ?, ?, ?, ?
		)`

	_, err = s.db.DB().Exec(query,
		event.UUID, event.SessionID, event.Engine, event.StartedAt.UTC(), event.TerminatedAt.UTC(), statusesJSON,
		event.Reason, event.ErrorMessage, event.Transcript, event.Confidence,
		event.Verb, event.Intent, event.TimeType, event.DateValue, event.PeriodStart, event.PeriodEnd,
	)
	if err != nil {
		return fmt.Errorf("failed to insert session event: %w", err)
	}

	logging.LogSessionEvent(event, "Stored session event", zap.String("intent", event.Intent))
	return nil
}

// GetByUUID retrieves a session event by its UUID
func (s *SessionEventsStore) GetByUUID(uuid string) (*events.SessionEvent, error) {
	query := `SELECT ` + sessionEventColumns + ` FROM session_events WHERE uuid = ?`

	event, err := scanSessionEvent(s.db.DB().QueryRow(query, uuid))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("session event %s: %w", uuid, ErrNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get session event: %w", err)
	}
	return event, nil
}

// List retrieves session events with pagination and filtering
func (s *SessionEventsStore) List(options ListOptions) ([]*events.SessionEvent, error) {
	query, args := buildListQuery(options)

	rows, err := s.db.DB().Query(query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to query session events: %w", err)
	}
	defer func() { _ = rows.Close() }()

	eventsList := []*events.SessionEvent{}
	for rows.Next() {
		event, err := scanSessionEvent(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan session event: %w", err)
		}
		eventsList = append(eventsList, event)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating session events: %w", err)
	}

	return eventsList, nil
}

// Count returns the number of session events matching the filter
func (s *SessionEventsStore) Count(options ListOptions) (int64, error) {
	options.Limit = 0
	options.Offset = 0
	query, args := buildListQuery(options)

	countQuery := "SELECT COUNT(*) FROM (" + query + ") AS filtered"

	var count int64
	if err := s.db.DB().QueryRow(countQuery, args...).Scan(&count); err != nil {
		return 0, fmt.Errorf("failed to count session events: %w", err)
	}

	return count, nil
}

// Delete removes a session event by UUID
func (s *SessionEventsStore) Delete(uuid string) error {
	result, err := s.db.DB().Exec("DELETE FROM session_events WHERE uuid = ?", uuid)
	if err != nil {
		return fmt.Errorf("failed to delete session event: %w", err)
	}

	rowsAffected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to get rows affected: %w", err)
	}

	if rowsAffected == 0 {
		return fmt.Errorf("session event %s: %w", uuid, ErrNotFound)
	}

	logging.LogDatabaseOperation("DELETE", "session_events", zap.String("uuid", uuid))
	return nil
}

// ListOptions defines filtering and pagination options
type ListOptions struct {
	// Filtering
	SessionID string
	Engine    string
	Reason    string
	Intent    string
	StartTime *time.Time
	EndTime   *time.Time

	// Pagination
	Limit  int
	Offset int

	// Sorting
	SortBy    string // "started_at", "terminated_at", "confidence"
	SortOrder string // "ASC", "DESC"
}

var sortColumns = map[string]bool{
	"started_at":    true,
	"terminated_at": true,
	"confidence":    true,
}

// buildListQuery constructs the SQL query based on ListOptions
func buildListQuery(options ListOptions) (string, []interface{}) {
	query := `SELECT ` + sessionEventColumns + ` FROM session_events WHERE 1=1`

	var args []interface{}

	if options.SessionID != "" {
		query += " AND session_id = ?"
		args = append(args, options.SessionID)
	}

	if options.Engine != "" {
		query += " AND engine = ?"
		args = append(args, options.Engine)
	}

	if options.Reason != "" {
		query += " AND reason = ?"
		args = append(args, options.Reason)
	}

	if options.Intent != "" {
		query += " AND intent = ?"
		args = append(args, options.Intent)
	}

	if options.StartTime != nil {
		query += " AND started_at >= ?"
		args = append(args, options.StartTime.UTC())
	}

	if options.EndTime != nil {
		query += " AND started_at <= ?"
		args = append(args, options.EndTime.UTC())
	}

	sortBy := options.SortBy
	if !sortColumns[sortBy] {
		sortBy = "started_at"
	}

	sortOrder := strings.ToUpper(options.SortOrder)
	if sortOrder != "ASC" {
		sortOrder = "DESC"
	}

	query += fmt.Sprintf(" ORDER BY %s %s", sortBy, sortOrder)

	if options.Limit > 0 {
		query += " LIMIT ?"
		args = append(args, options.Limit)

		if options.Offset > 0 {
			query += " OFFSET ?"
			args = append(args, options.Offset)
		}
	}

	return query, args
}

type rowScanner interface {
	Scan(dest ...interface{}) error
}

func scanSessionEvent(row rowScanner) (*events.SessionEvent, error) {
	var event events.SessionEvent
	var statusesJSON string

	err := row.Scan(
		&event.UUID, &event.SessionID, &event.Engine, &event.StartedAt, &event.TerminatedAt, &statusesJSON,
		&event.Reason, &event.ErrorMessage, &event.Transcript, &event.Confidence,
		&event.Verb, &event.Intent, &event.TimeType, &event.DateValue, &event.PeriodStart, &event.PeriodEnd,
	)
	if err != nil {
		return nil, err
	}

	if err := event.SetStatusesFromJSON(statusesJSON); err != nil {
		return nil, fmt.Errorf("failed to parse statuses JSON: %w", err)
	}

	return &event, nil
}
