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
	"testing"
	"time"
)

// Wednesday, 16 February 2022.
var ref = time.Date(2022, time.February, 16, 10, 0, 0, 0, time.UTC)

func day(t *testing.T, c *Components) string {
	t.Helper()
	if c == nil {
		t.Fatal("components are nil")
	}
	return c.Date().Format("2006-01-02")
}

func TestParse_SingleDates(t *testing.T) {
	tests := []struct {
		name       string
		text       string
		wantText   string
		wantDate   string
		dayCertain bool
	}{
		{"Yesterday", "how many steps did I take yesterday", "yesterday", "2022-02-15", true},
		{"Tomorrow", "Tomorrow", "Tomorrow", "2022-02-17", true},
		{"Next weekday", "show me next Tuesday", "next Tuesday", "2022-02-22", true},
		{"Last weekday", "compare with last friday", "last friday", "2022-02-11", true},
		{"This weekday", "this friday", "this friday", "2022-02-18", true},
		{"Bare weekday", "on friday", "friday", "2022-02-18", false},
		{"Days ago", "3 days ago", "3 days ago", "2022-02-13", true},
		{"In weeks", "in two weeks", "in two weeks", "2022-03-02", true},
		{"Month and day", "set sleep on March 5", "March 5", "2022-03-05", true},
		{"Month day year", "March 5th, 2021", "March 5th, 2021", "2021-03-05", true},
		{"Day of month", "the 5th of March 2021", "5th of March 2021", "2021-03-05", true},
		{"ISO", "2021-03-05", "2021-03-05", "2021-03-05", true},
		{"Slash", "on 3/5/2021", "3/5/2021", "2021-03-05", true},
		{"Short year slash", "3/5/21", "3/5/21", "2021-03-05", true},
		{"Last century slash", "12/31/99", "12/31/99", "1999-12-31", true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			results := Parse(tt.text, ref)
			if len(results) == 0 {
				t.Fatalf("Parse(%q) returned no results", tt.text)
			}
			r := results[0]
			if r.Text != tt.wantText {
				t.Errorf("Text = %q, want %q", r.Text, tt.wantText)
			}
			if r.End != nil {
				t.Errorf("End = %v, want nil", r.End.Date())
			}
			if got := day(t, r.Start); got != tt.wantDate {
				t.Errorf("Start = %s, want %s", got, tt.wantDate)
			}
			if r.Start.IsCertain(Day) != tt.dayCertain {
				t.Errorf("IsCertain(Day) = %v, want %v", r.Start.IsCertain(Day), tt.dayCertain)
			}
		})
	}
}

func TestParse_MonthCertainty(t *testing.T) {
	results := Parse("January 2022", ref)
	if len(results) != 1 {
		t.Fatalf("got %d results, want 1", len(results))
	}
	start := results[0].Start
	if !start.IsCertain(Year) || !start.IsCertain(Month) {
		t.Error("year and month should be certain")
	}
	if start.IsCertain(Day) {
		t.Error("day should not be certain")
	}
	if got := day(t, start); got != "2022-01-01" {
		t.Errorf("Start = %s, want 2022-01-01", got)
	}

	results = Parse("last month", ref)
	if len(results) != 1 {
		t.Fatalf("got %d results, want 1", len(results))
	}
	if got := day(t, results[0].Start); got != "2022-01-01" {
		t.Errorf("last month = %s, want 2022-01-01", got)
	}
	if results[0].Start.IsCertain(Day) {
		t.Error("last month should not be day certain")
	}
}

func TestParse_Ranges(t *testing.T) {
	tests := []struct {
		name      string
		text      string
		wantText  string
		wantStart string
		wantEnd   string
	}{
		{"Shared year", "March 5 to March 10 2021", "March 5 to March 10 2021", "2021-03-05", "2021-03-10"},
		{"Day range", "March 5 to 10", "March 5 to 10", "2022-03-05", "2022-03-10"},
		{"Between and", "between jan 3 and jan 7", "between jan 3 and jan 7", "2022-01-03", "2022-01-07"},
		{"Years", "steps from 2020 to 2021", "from 2020 to 2021", "2020-01-01", "2021-01-01"},
		{"Rolls over year end", "December 20 to January 5", "December 20 to January 5", "2022-12-20", "2023-01-05"},
		{"This week", "this week", "this week", "2022-02-13", "2022-02-19"},
		{"Dashed ISO", "2021-03-05 - 2021-03-10", "2021-03-05 - 2021-03-10", "2021-03-05", "2021-03-10"},
		{"Between ambiguous month", "between March and April 2021", "between March and April 2021", "2021-03-01", "2021-04-01"},
		{"From ambiguous months", "from March to May", "from March to May", "2022-03-01", "2022-05-01"},
		{"Ambiguous month joined to a month", "May to July", "May to July", "2022-05-01", "2022-07-01"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			results := Parse(tt.text, ref)
			if len(results) != 1 {
				t.Fatalf("Parse(%q) returned %d results, want 1", tt.text, len(results))
			}
			r := results[0]
			if r.Text != tt.wantText {
				t.Errorf("Text = %q, want %q", r.Text, tt.wantText)
			}
			if r.End == nil {
				t.Fatal("End should be set for a range")
			}
			if got := day(t, r.Start); got != tt.wantStart {
				t.Errorf("Start = %s, want %s", got, tt.wantStart)
			}
			if got := day(t, r.End); got != tt.wantEnd {
				t.Errorf("End = %s, want %s", got, tt.wantEnd)
			}
		})
	}
}

func TestParse_NoMatch(t *testing.T) {
	for _, text := range []string{
		"",
		"hello world",
		"may I see my heart rate",
		"February 30",
		"13/45/2021",
		"walked 2000 steps",
		"I may walk to the park",
		"march in place",
		"in 99999999999999999999 days",
		"100000 days ago",
	} {
		if results := Parse(text, ref); len(results) != 0 {
			t.Errorf("Parse(%q) = %v, want no results", text, results)
		}
	}
}

func TestParse_OrderedByPosition(t *testing.T) {
	results := Parse("compare yesterday with last friday", ref)
	if len(results) != 2 {
		t.Fatalf("got %d results, want 2", len(results))
	}
	if results[0].Text != "yesterday" || results[1].Text != "last friday" {
		t.Errorf("unexpected order: %q, %q", results[0].Text, results[1].Text)
	}
}

func TestComponents_ImplyKeepsCertainValues(t *testing.T) {
	c := NewComponents(ref)
	c.Assign(Year, 2020)
	c.Imply(Year, 2030)
	if c.Get(Year) != 2020 {
		t.Errorf("Imply overwrote a certain year: %d", c.Get(Year))
	}
	c.Imply(Month, 4)
	if c.IsCertain(Month) {
		t.Error("Imply must not make a field certain")
	}
}
