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

package chrono

import (
	"fmt"
	"time"

	"github.com/loqalabs/loqa-voicecmd/internal/datetime"
)

// Component identifies a calendar field of a parsed date.
type Component int

const (
	Year Component = iota
	Month
	Day
)

func (c Component) String() string {
	switch c {
	case Year:
		return "year"
	case Month:
		return "month"
	case Day:
		return "day"
	default:
		return fmt.Sprintf("component(%d)", int(c))
	}
}

// Components holds the calendar fields of one side of a parsed expression.
// A field is certain when the text fixed it, and implied when it was filled
// in from the reference date.
type Components struct {
	values  [3]int
	certain [3]bool
	loc     *time.Location
}

// NewComponents returns components with every field implied from ref.
func NewComponents(ref time.Time) *Components {
	c := &Components{loc: ref.Location()}
	c.values[Year] = ref.Year()
	c.values[Month] = int(ref.Month())
	c.values[Day] = ref.Day()
	return c
}

// Assign sets a field and marks it certain.
func (c *Components) Assign(comp Component, value int) {
	c.values[comp] = value
	c.certain[comp] = true
}

// Imply sets a field without changing its certainty. Certain fields are left
// untouched.
func (c *Components) Imply(comp Component, value int) {
	if c.certain[comp] {
		return
	}
	c.values[comp] = value
}

// AssignDate assigns year, month and day from t.
func (c *Components) AssignDate(t time.Time) {
	c.Assign(Year, t.Year())
	c.Assign(Month, int(t.Month()))
	c.Assign(Day, t.Day())
}

// ImplyDate implies year, month and day from t.
func (c *Components) ImplyDate(t time.Time) {
	c.Imply(Year, t.Year())
	c.Imply(Month, int(t.Month()))
	c.Imply(Day, t.Day())
}

// Get returns the current value of a field, certain or implied.
func (c *Components) Get(comp Component) int {
	return c.values[comp]
}

// IsCertain reports whether the text fixed the field.
func (c *Components) IsCertain(comp Component) bool {
	return c.certain[comp]
}

// Date resolves the fields to midnight of the described day. An implied day
// beyond the end of the month is clamped to the month's last day.
func (c *Components) Date() time.Time {
	y, m, d := c.values[Year], time.Month(c.values[Month]), c.values[Day]
	if last := datetime.DaysIn(m, y); d > last {
		d = last
	}
	return time.Date(y, m, d, 0, 0, 0, 0, c.loc)
}

// valid reports whether the certain fields describe a real calendar day.
func (c *Components) valid() bool {
	m := c.values[Month]
	if m < 1 || m > 12 {
		return false
	}
	if c.certain[Day] {
		d := c.values[Day]
		return d >= 1 && d <= datetime.DaysIn(time.Month(m), c.values[Year])
	}
	return true
}

func (c *Components) clone() *Components {
	cp := *c
	return &cp
}

// ParsedResult is one date expression found in the text.
type ParsedResult struct {
	Index int
	Text  string
	Start *Components
	End   *Components

	ambiguous bool
}

func (r ParsedResult) end() int {
	return r.Index + len(r.Text)
}
