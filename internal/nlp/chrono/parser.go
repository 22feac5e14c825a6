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

// Package chrono extracts English date expressions from free text. Each
// result records which calendar fields the text made certain, so callers can
// widen vague mentions ("January 2022") into periods instead of guessing a day.
package chrono

import (
	"regexp"
	"sort"
	"strconv"
	"time"

	"github.com/loqalabs/loqa-voicecmd/internal/datetime"
)

const (
	monthPattern   = `(january|february|march|april|may|june|july|august|september|october|november|december|jan|feb|mar|apr|jun|jul|aug|sept|sep|oct|nov|dec)`
	weekdayPattern = `(sunday|monday|tuesday|wednesday|thursday|friday|saturday)`
	ordinalSuffix  = `(?:st|nd|rd|th)?`
	numberPattern  = `(\d+|an?|one|two|three|four|five|six|seven|eight|nine|ten|eleven|twelve)`
	unitPattern    = `(days?|weeks?|months?|years?)`
	rangeJoiner    = `(?:-|–|to|through|thru|until|till)`
)

var monthNames = map[string]time.Month{
	"january": time.January, "jan": time.January,
	"february": time.February, "feb": time.February,
	"march": time.March, "mar": time.March,
	"april": time.April, "apr": time.April,
	"may":  time.May,
	"june": time.June, "jun": time.June,
	"july": time.July, "jul": time.July,
	"august": time.August, "aug": time.August,
	"september": time.September, "sept": time.September, "sep": time.September,
	"october": time.October, "oct": time.October,
	"november": time.November, "nov": time.November,
	"december": time.December, "dec": time.December,
}

var weekdayNames = map[string]time.Weekday{
	"sunday":    time.Sunday,
	"monday":    time.Monday,
	"tuesday":   time.Tuesday,
	"wednesday": time.Wednesday,
	"thursday":  time.Thursday,
	"friday":    time.Friday,
	"saturday":  time.Saturday,
}

var numberWords = map[string]int{
	"a": 1, "an": 1, "one": 1, "two": 2, "three": 3, "four": 4, "five": 5, "six": 6,
	"seven": 7, "eight": 8, "nine": 9, "ten": 10, "eleven": 11, "twelve": 12,
}

// Month words that are also common English words only count as dates when a
// day or year accompanies them or they sit inside a range.
var ambiguousMonths = map[string]bool{"may": true, "march": true, "mar": true}

// extractor turns the submatches of a rule into components. It returns nil
// start when the match does not describe a real date.
type extractor func(ref time.Time, m []string) (start, end *Components)

type rule struct {
	pattern *regexp.Regexp
	// span is the submatch group that delimits the result text; 0 is the whole match.
	span    int
	extract extractor

	// ambiguous marks a match that only counts as a date inside a range.
	ambiguous func(m []string) bool
}

var rules = []rule{
	{
		pattern: regexp.MustCompile(`\b` + monthPattern + `\b\.?\s+(\d{1,2})` + ordinalSuffix + `\s*` + rangeJoiner + `\s*(\d{1,2})` + ordinalSuffix + `\b(?:,?\s+(\d{4})\b)?`),
		extract: extractMonthDayRange,
	},
	{
		pattern:   regexp.MustCompile(`\b` + monthPattern + `\b\.?(?:\s+(\d{1,2})` + ordinalSuffix + `\b)?(?:,?\s+(?:of\s+)?(\d{4})\b)?`),
		extract:   extractMonthName,
		ambiguous: bareAmbiguousMonth,
	},
	{
		pattern: regexp.MustCompile(`\b(\d{1,2})` + ordinalSuffix + `\s+(?:of\s+)?` + monthPattern + `\b\.?(?:,?\s+(\d{4})\b)?`),
		extract: extractDayMonth,
	},
	{
		pattern: regexp.MustCompile(`\b(\d{4})-(\d{1,2})-(\d{1,2})\b`),
		extract: extractISO,
	},
	{
		pattern: regexp.MustCompile(`\b(\d{1,2})/(\d{1,2})(?:/(\d{4}|\d{2}))?\b`),
		extract: extractSlash,
	},
	{
		pattern: regexp.MustCompile(`\b(?:in|during|from|since|between|year|to|until|till|through|and)\s+((?:19|20)\d{2})\b`),
		span:    1,
		extract: extractYear,
	},
	{
		pattern: regexp.MustCompile(`\b(today|tonight|now|yesterday|tomorrow)\b`),
		extract: extractCasual,
	},
	{
		pattern: regexp.MustCompile(`\b` + numberPattern + `\s+` + unitPattern + `\s+(?:ago|earlier)\b`),
		extract: extractOffset(-1),
	},
	{
		pattern: regexp.MustCompile(`\b` + numberPattern + `\s+` + unitPattern + `\s+(?:from\s+now|later)\b`),
		extract: extractOffset(1),
	},
	{
		pattern: regexp.MustCompile(`\bin\s+` + numberPattern + `\s+` + unitPattern + `\b`),
		extract: extractOffset(1),
	},
	{
		pattern: regexp.MustCompile(`\b(this|last|past|previous|next|coming)\s+(week|month|year)\b`),
		extract: extractRelativeUnit,
	},
	{
		pattern: regexp.MustCompile(`\b(?:(this|last|past|previous|next|coming)\s+)?` + weekdayPattern + `\b`),
		extract: extractWeekday,
	},
}

// Parse returns every date expression found in text, ordered by position.
// Fields the text leaves open are implied from ref.
func Parse(text string, ref time.Time) []ParsedResult {
	lowered := asciiLower(text)

	var candidates []ParsedResult
	for _, r := range rules {
		for _, loc := range r.pattern.FindAllStringSubmatchIndex(lowered, -1) {
			m := submatches(lowered, loc)
			start, end := r.extract(ref, m)
			if start == nil || !start.valid() || (end != nil && !end.valid()) {
				continue
			}
			from, to := loc[2*r.span], loc[2*r.span+1]
			candidates = append(candidates, ParsedResult{
				Index:     from,
				Text:      text[from:to],
				Start:     start,
				End:       end,
				ambiguous: r.ambiguous != nil && r.ambiguous(m),
			})
		}
	}

	return mergeRanges(text, confirmAmbiguous(lowered, removeOverlaps(candidates)))
}

// removeOverlaps keeps the earliest, and then longest, of overlapping results.
func removeOverlaps(candidates []ParsedResult) []ParsedResult {
	sort.SliceStable(candidates, func(i, j int) bool {
		if candidates[i].Index != candidates[j].Index {
			return candidates[i].Index < candidates[j].Index
		}
		return len(candidates[i].Text) > len(candidates[j].Text)
	})

	var kept []ParsedResult
	lastEnd := -1
	for _, c := range candidates {
		if c.Index < lastEnd {
			continue
		}
		kept = append(kept, c)
		lastEnd = c.end()
	}
	return kept
}

func submatches(s string, loc []int) []string {
	m := make([]string, len(loc)/2)
	for i := range m {
		if loc[2*i] >= 0 {
			m[i] = s[loc[2*i]:loc[2*i+1]]
		}
	}
	return m
}

// asciiLower lowercases ASCII letters only, so byte offsets stay aligned with
// the original text.
func asciiLower(s string) string {
	b := []byte(s)
	for i, c := range b {
		if c >= 'A' && c <= 'Z' {
			b[i] = c + ('a' - 'A')
		}
	}
	return string(b)
}

// maxCount bounds "in N days" style offsets.
const maxCount = 10000

func atoi(s string) int {
	n, err := strconv.Atoi(s)
	if err != nil {
		return 0
	}
	return n
}

func parseCount(s string) (int, bool) {
	if n, ok := numberWords[s]; ok {
		return n, true
	}
	n, err := strconv.Atoi(s)
	if err != nil || n > maxCount {
		return 0, false
	}
	return n, true
}

// expandYear maps a two-digit year onto 1950-2049.
func expandYear(yy int) int {
	if yy < 50 {
		return 2000 + yy
	}
	return 1900 + yy
}

func monthDay(ref time.Time, month string, day string, year string) *Components {
	c := NewComponents(ref)
	c.Assign(Month, int(monthNames[month]))
	if day != "" {
		c.Assign(Day, atoi(day))
	} else {
		c.Imply(Day, 1)
	}
	if year != "" {
		c.Assign(Year, atoi(year))
	}
	return c
}

func extractMonthDayRange(ref time.Time, m []string) (*Components, *Components) {
	start := monthDay(ref, m[1], m[2], m[4])
	end := monthDay(ref, m[1], m[3], m[4])
	if end.Get(Day) < start.Get(Day) {
		return nil, nil
	}
	return start, end
}

func bareAmbiguousMonth(m []string) bool {
	return ambiguousMonths[m[1]] && m[2] == "" && m[3] == ""
}

func extractMonthName(ref time.Time, m []string) (*Components, *Components) {
	return monthDay(ref, m[1], m[2], m[3]), nil
}

func extractDayMonth(ref time.Time, m []string) (*Components, *Components) {
	return monthDay(ref, m[2], m[1], m[3]), nil
}

func extractISO(ref time.Time, m []string) (*Components, *Components) {
	c := NewComponents(ref)
	c.Assign(Year, atoi(m[1]))
	c.Assign(Month, atoi(m[2]))
	c.Assign(Day, atoi(m[3]))
	return c, nil
}

func extractSlash(ref time.Time, m []string) (*Components, *Components) {
	c := NewComponents(ref)
	c.Assign(Month, atoi(m[1]))
	c.Assign(Day, atoi(m[2]))
	if m[3] != "" {
		year := atoi(m[3])
		if len(m[3]) == 2 {
			year = expandYear(year)
		}
		c.Assign(Year, year)
	}
	return c, nil
}

func extractYear(ref time.Time, m []string) (*Components, *Components) {
	c := NewComponents(ref)
	c.Assign(Year, atoi(m[1]))
	c.Imply(Month, int(time.January))
	c.Imply(Day, 1)
	return c, nil
}

func extractCasual(ref time.Time, m []string) (*Components, *Components) {
	day := ref
	switch m[1] {
	case "yesterday":
		day = ref.AddDate(0, 0, -1)
	case "tomorrow":
		day = ref.AddDate(0, 0, 1)
	}
	c := NewComponents(ref)
	c.AssignDate(day)
	return c, nil
}

func extractOffset(sign int) extractor {
	return func(ref time.Time, m []string) (*Components, *Components) {
		n, ok := parseCount(m[1])
		if !ok {
			return nil, nil
		}
		n *= sign
		var day time.Time
		switch m[2][0] {
		case 'd':
			day = ref.AddDate(0, 0, n)
		case 'w':
			day = ref.AddDate(0, 0, 7*n)
		case 'm':
			day = ref.AddDate(0, n, 0)
		default:
			day = ref.AddDate(n, 0, 0)
		}
		c := NewComponents(ref)
		c.AssignDate(day)
		return c, nil
	}
}

func modifierOffset(modifier string) int {
	switch modifier {
	case "last", "past", "previous":
		return -1
	case "next", "coming":
		return 1
	default:
		return 0
	}
}

func extractRelativeUnit(ref time.Time, m []string) (*Components, *Components) {
	offset := modifierOffset(m[1])
	switch m[2] {
	case "week":
		anchor := ref.AddDate(0, 0, 7*offset)
		start := NewComponents(ref)
		start.AssignDate(datetime.StartOfWeek(anchor))
		end := NewComponents(ref)
		end.AssignDate(datetime.EndOfWeek(anchor))
		return start, end
	case "month":
		anchor := datetime.StartOfMonth(ref).AddDate(0, offset, 0)
		c := NewComponents(ref)
		c.Assign(Year, anchor.Year())
		c.Assign(Month, int(anchor.Month()))
		c.Imply(Day, 1)
		return c, nil
	default:
		c := NewComponents(ref)
		c.Assign(Year, ref.Year()+offset)
		c.Imply(Month, int(time.January))
		c.Imply(Day, 1)
		return c, nil
	}
}

// extractWeekday resolves "this X" within the current Sunday-first week,
// "next X" to the first X after today and "last X" to the most recent X
// before today. A bare weekday takes the current week's X but leaves the day
// implied.
func extractWeekday(ref time.Time, m []string) (*Components, *Components) {
	target := weekdayNames[m[2]]
	today := datetime.StartOfDay(ref)
	c := NewComponents(ref)

	switch modifierOffset(m[1]) {
	case 1:
		delta := (int(target) - int(today.Weekday()) + 7) % 7
		if delta == 0 {
			delta = 7
		}
		c.AssignDate(today.AddDate(0, 0, delta))
	case -1:
		delta := (int(today.Weekday()) - int(target) + 7) % 7
		if delta == 0 {
			delta = 7
		}
		c.AssignDate(today.AddDate(0, 0, -delta))
	default:
		day := datetime.StartOfWeek(today).AddDate(0, 0, int(target))
		if m[1] == "this" {
			c.AssignDate(day)
		} else {
			c.ImplyDate(day)
		}
	}
	return c, nil
}
