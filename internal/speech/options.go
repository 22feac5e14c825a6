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

import "go.uber.org/zap"

// StatusChangeListener is told about every status transition. payload is set
// only for StatusTerminated.
type StatusChangeListener func(status SessionStatus, payload *TerminationPayload)

// DictationOutputListener receives every transcript update.
type DictationOutputListener func(result DictationResult)

// Option configures a Session.
type Option func(*Session)

// WithStatusChangeListener sets the status listener.
func WithStatusChangeListener(fn StatusChangeListener) Option {
	return func(s *Session) {
		if fn != nil {
			s.onStatus = fn
		}
	}
}

// WithDictationOutputListener sets the dictation listener.
func WithDictationOutputListener(fn DictationOutputListener) Option {
	return func(s *Session) {
		if fn != nil {
			s.onDictation = fn
		}
	}
}

// WithAnalyzer replaces the default HoldAnalyzer.
func WithAnalyzer(a Analyzer) Option {
	return func(s *Session) {
		s.analyzer = a
	}
}

// WithTimings overrides the lifecycle delays.
func WithTimings(t Timings) Option {
	return func(s *Session) {
		s.timings = t
	}
}

// WithClock overrides the wall clock.
func WithClock(c Clock) Option {
	return func(s *Session) {
		s.clock = c
	}
}

// WithLogger sets the session logger.
func WithLogger(l *zap.Logger) Option {
	return func(s *Session) {
		if l != nil {
			s.log = l
		}
	}
}

// WithID overrides the generated session ID.
func WithID(id string) Option {
	return func(s *Session) {
		if id != "" {
			s.id = id
		}
	}
}
