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

// Package datetime converts calendar dates to and from the integer
// "numbered date" encoding used for storage and range comparisons.
package datetime

import "time"

// ToNumberedDate encodes the calendar date of t as year*10000 + month*100 + day.
// The time of day and location offset are ignored.
func ToNumberedDate(t time.Time) int {
	y, m, d := t.Date()
	return y*10000 + int(m)*100 + d
}

// FromNumberedDate decodes a numbered date into midnight of that day in loc.
// A nil loc means time.Local.
func FromNumberedDate(n int, loc *time.Location) time.Time {
	if loc == nil {
		loc = time.Local
	}
	return time.Date(n/10000, time.Month((n/100)%100), n%100, 0, 0, 0, 0, loc)
}

// IsValidNumberedDate reports whether n names a real calendar day.
func IsValidNumberedDate(n int) bool {
	if n <= 0 {
		return false
	}
	y, m, d := n/10000, (n/100)%100, n%100
	if m < 1 || m > 12 || d < 1 {
		return false
	}
	return d <= DaysIn(time.Month(m), y)
}

// DaysIn returns the number of days in month m of year y.
func DaysIn(m time.Month, y int) int {
	return time.Date(y, m+1, 0, 0, 0, 0, 0, time.UTC).Day()
}

// StartOfDay returns midnight of t's day.
func StartOfDay(t time.Time) time.Time {
	y, m, d := t.Date()
	return time.Date(y, m, d, 0, 0, 0, 0, t.Location())
}

// StartOfMonth returns midnight of the first day of t's month.
func StartOfMonth(t time.Time) time.Time {
	return time.Date(t.Year(), t.Month(), 1, 0, 0, 0, 0, t.Location())
}

// EndOfMonth returns the last nanosecond of t's month.
func EndOfMonth(t time.Time) time.Time {
	return StartOfMonth(t).AddDate(0, 1, 0).Add(-time.Nanosecond)
}

// StartOfYear returns midnight of January 1st of t's year.
func StartOfYear(t time.Time) time.Time {
	return time.Date(t.Year(), time.January, 1, 0, 0, 0, 0, t.Location())
}

// EndOfYear returns the last nanosecond of t's year.
func EndOfYear(t time.Time) time.Time {
	return StartOfYear(t).AddDate(1, 0, 0).Add(-time.Nanosecond)
}

// StartOfWeek returns midnight of the Sunday that begins t's week.
func StartOfWeek(t time.Time) time.Time {
	day := StartOfDay(t)
	return day.AddDate(0, 0, -int(day.Weekday()))
}

// EndOfWeek returns the last nanosecond of the Saturday that ends t's week.
func EndOfWeek(t time.Time) time.Time {
	return StartOfWeek(t).AddDate(0, 0, 7).Add(-time.Nanosecond)
}
