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

// Package nlp turns dictated utterances into typed commands: a verb intent and,
// when one is mentioned, a date or period.
package nlp

import (
	"regexp"
	"strings"
	"time"
)

var wordPattern = regexp.MustCompile(`[a-z]+(?:'[a-z]+)?`)

// Command is the structured reading of one utterance.
type Command struct {
	Text   string           `json:"text"`
	Verb   string           `json:"verb"`
	Intent Intent           `json:"intent"`
	Time   *ParsedTimeValue `json:"time,omitempty"`
}

// Interpret reads text relative to now.
func Interpret(text string) Command {
	return InterpretAt(text, time.Now())
}

// InterpretAt picks the first known verb in text as the root (or the first
// word when none is known), classifies it and extracts the time mention.
func InterpretAt(text string, ref time.Time) Command {
	cmd := Command{
		Text: text,
		Time: ParseTimeTextAt(text, ref),
	}

	words := wordPattern.FindAllString(strings.ToLower(text), -1)
	for _, w := range words {
		if _, ok := defaultVerbs.Lookup(w); ok {
			cmd.Verb = w
			break
		}
	}
	if cmd.Verb == "" && len(words) > 0 {
		cmd.Verb = words[0]
	}
	cmd.Intent = InferVerbType(cmd.Verb)
	return cmd
}
