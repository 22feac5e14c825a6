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
	"regexp"
	"strings"
)

var (
	rangeGap      = regexp.MustCompile(`^\s*(?:-|–|to|through|thru|until|till|and)\s*$`)
	rangeOpener   = regexp.MustCompile(`(?:from|between)\s+$`)
	andRangeGap   = regexp.MustCompile(`^\s*and\s*$`)
	betweenOpener = regexp.MustCompile(`between\s+$`)
)

// mergeRanges joins adjacent results separated only by a range word into a
// single result with both a start and an end.
func mergeRanges(text string, results []ParsedResult) []ParsedResult {
	lowered := asciiLower(text)

	var merged []ParsedResult
	for i := 0; i < len(results); i++ {
		cur := results[i]
		if cur.End != nil || i+1 >= len(results) || results[i+1].End != nil {
			merged = append(merged, cur)
			continue
		}

		next := results[i+1]
		prefix := lowered[:cur.Index]
		if !joinsRange(lowered, cur, next) {
			merged = append(merged, cur)
			continue
		}

		from := cur.Index
		if loc := rangeOpener.FindStringIndex(prefix); loc != nil {
			from = loc[0]
		}
		start, end := cur.Start.clone(), next.Start.clone()
		shareFields(start, end)

		merged = append(merged, ParsedResult{
			Index: from,
			Text:  text[from:next.end()],
			Start: start,
			End:   end,
		})
		i++
	}
	return merged
}

// joinsRange reports whether only a range word separates a and b. "and" only
// joins when "between" opens the range.
func joinsRange(lowered string, a, b ParsedResult) bool {
	gap := lowered[a.end():b.Index]
	if !rangeGap.MatchString(gap) {
		return false
	}
	return !andRangeGap.MatchString(gap) || betweenOpener.MatchString(lowered[:a.Index])
}

// confirmAmbiguous drops ambiguous results unless "from" or "between" opens
// them or a range word joins them to another month.
func confirmAmbiguous(lowered string, results []ParsedResult) []ParsedResult {
	var kept []ParsedResult
	for i, r := range results {
		if !r.ambiguous || rangeOpener.MatchString(lowered[:r.Index]) ||
			(i > 0 && joinsMonth(lowered, results[i-1], r)) ||
			(i+1 < len(results) && joinsMonth(lowered, r, results[i+1])) {
			kept = append(kept, r)
		}
	}
	return kept
}

func joinsMonth(lowered string, a, b ParsedResult) bool {
	if a.End != nil || b.End != nil || !a.Start.IsCertain(Month) || !b.Start.IsCertain(Month) {
		return false
	}
	return joinsRange(lowered, a, b)
}

// shareFields copies a certain year across the two sides of a range when only
// one side mentions it, copies a certain month to a side that names only a
// day, and rolls an open-year end forward when the range would otherwise run
// backwards.
func shareFields(start, end *Components) {
	switch {
	case end.IsCertain(Year) && !start.IsCertain(Year):
		start.Imply(Year, end.Get(Year))
	case start.IsCertain(Year) && !end.IsCertain(Year):
		end.Imply(Year, start.Get(Year))
	}

	switch {
	case end.IsCertain(Month) && !start.IsCertain(Month) && start.IsCertain(Day):
		start.Imply(Month, end.Get(Month))
	case start.IsCertain(Month) && !end.IsCertain(Month) && end.IsCertain(Day):
		end.Imply(Month, start.Get(Month))
	}

	if end.Date().Before(start.Date()) {
		switch {
		case !end.IsCertain(Year):
			end.Imply(Year, end.Get(Year)+1)
		case !start.IsCertain(Year):
			start.Imply(Year, start.Get(Year)-1)
		}
	}
}

// String renders a result for logs.
func (r ParsedResult) String() string {
	var b strings.Builder
	b.WriteString(r.Text)
	b.WriteString(" [")
	b.WriteString(r.Start.Date().Format("2006-01-02"))
	if r.End != nil {
		b.WriteString(" .. ")
		b.WriteString(r.End.Date().Format("2006-01-02"))
	}
	b.WriteString("]")
	return b.String()
}
