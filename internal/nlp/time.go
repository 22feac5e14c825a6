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

package nlp

import (
	"encoding/json"
	"fmt"
	"time"

	"github.com/loqalabs/loqa-voicecmd/internal/datetime"
	"github.com/loqalabs/loqa-voicecmd/internal/nlp/chrono"
)

// VariableType tags the value carried by a ParsedTimeValue.
type VariableType string

const (
	VariableDate   VariableType = "date"
	VariablePeriod VariableType = "period"
)

// ParsedTimeValue is either a single numbered date or an inclusive period of
// two numbered dates.
type ParsedTimeValue struct {
	Type   VariableType `json:"type"`
	Date   int          `json:"date,omitempty"`
	Period [2]int       `json:"period,omitempty"`
}

// MarshalJSON emits {"type": ..., "value": n} or {"type": ..., "value": [s, e]}.
func (v ParsedTimeValue) MarshalJSON() ([]byte, error) {
	var value interface{}
	switch v.Type {
	case VariableDate:
		value = v.Date
	case VariablePeriod:
		value = v.Period
	default:
		return nil, fmt.Errorf("unknown time value type %q", v.Type)
	}
	return json.Marshal(struct {
		Type  VariableType `json:"type"`
		Value interface{}  `json:"value"`
	}{v.Type, value})
}

func (v ParsedTimeValue) String() string {
	if v.Type == VariablePeriod {
		return fmt.Sprintf("period[%d..%d]", v.Period[0], v.Period[1])
	}
	return fmt.Sprintf("date[%d]", v.Date)
}

// ParseTimeText returns the best date or period mentioned in text, relative
// to now, or nil when nothing confident is found.
func ParseTimeText(text string) *ParsedTimeValue {
	return ParseTimeTextAt(text, time.Now())
}

// ParseTimeTextAt is ParseTimeText with an explicit reference time.
func ParseTimeTextAt(text string, ref time.Time) *ParsedTimeValue {
	results := chrono.Parse(text, ref)
	if len(results) == 0 {
		return nil
	}
	best := results[0]

	if best.End != nil {
		start, okStart := resolveBoundary(best.Start, datetime.StartOfMonth, datetime.StartOfYear)
		end, okEnd := resolveBoundary(best.End, datetime.EndOfMonth, datetime.EndOfYear)
		if !okStart || !okEnd {
			return nil
		}
		return &ParsedTimeValue{
			Type:   VariablePeriod,
			Period: [2]int{datetime.ToNumberedDate(start), datetime.ToNumberedDate(end)},
		}
	}

	switch {
	case best.Start.IsCertain(chrono.Day):
		return &ParsedTimeValue{
			Type: VariableDate,
			Date: datetime.ToNumberedDate(best.Start.Date()),
		}
	case best.Start.IsCertain(chrono.Month):
		date := best.Start.Date()
		return &ParsedTimeValue{
			Type: VariablePeriod,
			Period: [2]int{
				datetime.ToNumberedDate(datetime.StartOfMonth(date)),
				datetime.ToNumberedDate(datetime.EndOfMonth(date)),
			},
		}
	}
	return nil
}

// resolveBoundary picks the exact day when it is certain, otherwise widens to
// the month or year edge given by byMonth or byYear.
func resolveBoundary(c *chrono.Components, byMonth, byYear func(time.Time) time.Time) (time.Time, bool) {
	date := c.Date()
	switch {
	case c.IsCertain(chrono.Day):
		return date, true
	case c.IsCertain(chrono.Month):
		return byMonth(date), true
	case c.IsCertain(chrono.Year):
		return byYear(date), true
	}
	return time.Time{}, false
}

// ParseDateTextToNumberedDate returns the single day mentioned in text. It
// reports false for ranges and for anything less precise than a day.
func ParseDateTextToNumberedDate(text string) (int, bool) {
	return ParseDateTextToNumberedDateAt(text, time.Now())
}

// ParseDateTextToNumberedDateAt is ParseDateTextToNumberedDate with an
// explicit reference time.
func ParseDateTextToNumberedDateAt(text string, ref time.Time) (int, bool) {
	results := chrono.Parse(text, ref)
	if len(results) == 0 {
		return 0, false
	}
	best := results[0]
	if best.End != nil || !best.Start.IsCertain(chrono.Day) {
		return 0, false
	}
	return datetime.ToNumberedDate(best.Start.Date()), true
}
