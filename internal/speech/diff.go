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
	"regexp"
	"strings"

	"github.com/pmezard/go-difflib/difflib"
)

var wordTokens = regexp.MustCompile(`[\p{L}\p{N}_']+|\s+|[^\p{L}\p{N}_'\s]`)

// DiffWords compares two transcripts token by token, where a token is a word,
// a run of whitespace or a single punctuation mark. Removed runs come before
// the added runs that replace them.
func DiffWords(oldText, newText string) []DiffPart {
	a := tokenize(oldText)
	b := tokenize(newText)

	var parts []DiffPart
	for _, op := range difflib.NewMatcher(a, b).GetOpCodes() {
		switch op.Tag {
		case 'e':
			parts = appendPart(parts, a[op.I1:op.I2], false, false)
		case 'd':
			parts = appendPart(parts, a[op.I1:op.I2], false, true)
		case 'i':
			parts = appendPart(parts, b[op.J1:op.J2], true, false)
		case 'r':
			parts = appendPart(parts, a[op.I1:op.I2], false, true)
			parts = appendPart(parts, b[op.J1:op.J2], true, false)
		}
	}
	return parts
}

func appendPart(parts []DiffPart, tokens []string, added, removed bool) []DiffPart {
	if len(tokens) == 0 {
		return parts
	}
	return append(parts, DiffPart{
		Value:   strings.Join(tokens, ""),
		Added:   added,
		Removed: removed,
		Count:   len(tokens),
	})
}

func tokenize(text string) []string {
	return wordTokens.FindAllString(text, -1)
}
