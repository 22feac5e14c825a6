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

// Intent is the kind of command a root verb asks for.
type Intent string

const (
	IntentAssignTrivial Intent = "assign_trivial"
	IntentBrowse        Intent = "browse"
	IntentCompare       Intent = "compare"
	IntentHighlight     Intent = "highlight"
)

// VerbTable maps lemmatized root verbs to intents. It is read-only once built.
type VerbTable struct {
	verbs map[string]Intent
}

// NewVerbTable builds a table from intent → verbs groups. A verb listed under
// several intents keeps the last one given.
func NewVerbTable(groups map[Intent][]string) *VerbTable {
	verbs := make(map[string]Intent)
	for intent, list := range groups {
		for _, verb := range list {
			verbs[verb] = intent
		}
	}
	return &VerbTable{verbs: verbs}
}

// Infer returns the intent for root, falling back to IntentAssignTrivial.
// Matching is exact and case-sensitive.
func (t *VerbTable) Infer(root string) Intent {
	if intent, ok := t.verbs[root]; ok {
		return intent
	}
	return IntentAssignTrivial
}

// Lookup reports whether root is a known verb.
func (t *VerbTable) Lookup(root string) (Intent, bool) {
	intent, ok := t.verbs[root]
	return intent, ok
}

var defaultVerbs = NewVerbTable(map[Intent][]string{
	IntentAssignTrivial: {"set", "assign", "put", "change", "modify", "edit", "replace"},
	IntentBrowse:        {"browse", "go", "show", "explore"},
	IntentCompare:       {"compare"},
	IntentHighlight:     {"highlight", "count"},
})

// DefaultVerbTable returns the shared built-in verb table.
func DefaultVerbTable() *VerbTable {
	return defaultVerbs
}

// InferVerbType classifies root with the built-in verb table.
func InferVerbType(root string) Intent {
	return defaultVerbs.Infer(root)
}
