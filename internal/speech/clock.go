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
	"context"
	"time"
)

// Clock supplies time to a session. Tests substitute a virtual clock.
type Clock interface {
	Now() time.Time
	Sleep(d time.Duration)
}

type realClock struct{}

func (realClock) Now() time.Time        { return time.Now() }
func (realClock) Sleep(d time.Duration) { time.Sleep(d) }

// SystemClock returns the wall clock.
func SystemClock() Clock {
	return realClock{}
}

// Timings holds the fixed delays of the session lifecycle.
type Timings struct {
	// MinStatusDuration is the shortest time a status is shown before a
	// failed or cancelled session terminates.
	MinStatusDuration time.Duration
	// AnalysisDuration is how long the default analyzer holds Analyzing.
	AnalysisDuration time.Duration
	// ExitDuration is how long Exiting is held after a successful analysis.
	ExitDuration time.Duration
}

// DefaultTimings returns the production delays.
func DefaultTimings() Timings {
	return Timings{
		MinStatusDuration: 500 * time.Millisecond,
		AnalysisDuration:  4000 * time.Millisecond,
		ExitDuration:      1000 * time.Millisecond,
	}
}

// Analyzer runs once recognition has finished cleanly, while the session is
// Analyzing. Its output becomes the Data of the Success payload; an error
// terminates the session with ReasonFail.
type Analyzer interface {
	Analyze(ctx context.Context, last *DictationResult) (interface{}, error)
}

// AnalyzerFunc adapts a function to Analyzer.
type AnalyzerFunc func(ctx context.Context, last *DictationResult) (interface{}, error)

// Analyze calls f.
func (f AnalyzerFunc) Analyze(ctx context.Context, last *DictationResult) (interface{}, error) {
	return f(ctx, last)
}

// HoldAnalyzer stands in for a real analysis stage: it waits Duration and
// produces no data.
type HoldAnalyzer struct {
	Clock    Clock
	Duration time.Duration
}

// Analyze waits the configured duration.
func (h HoldAnalyzer) Analyze(context.Context, *DictationResult) (interface{}, error) {
	h.Clock.Sleep(h.Duration)
	return nil, nil
}
