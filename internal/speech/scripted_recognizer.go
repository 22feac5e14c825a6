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
	"slices"
	"sync"
)

// ScriptedRecognizer is a deterministic Recognizer. Start fires the start
// event and replays Script as result events; when AutoStop is set it then
// fires the stop event with StopErr. Events are delivered on the calling
// goroutine.
type ScriptedRecognizer struct {
	Script   []DictationResult
	AutoStop bool
	// FailStart makes Start report that listening could not begin.
	FailStart bool
	StartErr  error
	// StopErr is passed to the stop event, simulating a recognition error.
	StopErr error
	// StopCallErr is returned from Stop without firing the stop event.
	StopCallErr error

	mu          sync.Mutex
	onStart     []func()
	onResult    []func(DictationResult)
	onStop      []func(error)
	starts      int
	stops       int
	uninstalled int
}

// NewScriptedRecognizer scripts one result per text; the last is final.
func NewScriptedRecognizer(texts ...string) *ScriptedRecognizer {
	r := &ScriptedRecognizer{}
	for i, text := range texts {
		r.Script = append(r.Script, DictationResult{Text: text, IsFinal: i == len(texts)-1})
	}
	return r
}

// Start implements Recognizer.
func (r *ScriptedRecognizer) Start(context.Context) (bool, error) {
	r.mu.Lock()
	r.starts++
	failed := r.FailStart || r.StartErr != nil
	err := r.StartErr
	script := append([]DictationResult(nil), r.Script...)
	autoStop := r.AutoStop
	stopErr := r.StopErr
	r.mu.Unlock()

	if failed {
		return false, err
	}

	r.fireStart()
	for _, result := range script {
		r.Emit(result)
	}
	if autoStop {
		r.EmitStop(stopErr)
	}
	return true, nil
}

// Stop implements Recognizer.
func (r *ScriptedRecognizer) Stop(context.Context) (bool, error) {
	r.mu.Lock()
	r.stops++
	callErr := r.StopCallErr
	stopErr := r.StopErr
	r.mu.Unlock()

	if callErr != nil {
		return false, callErr
	}
	r.EmitStop(stopErr)
	return true, nil
}

// Uninstall implements Recognizer.
func (r *ScriptedRecognizer) Uninstall() {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.uninstalled++
	r.onStart = nil
	r.onResult = nil
	r.onStop = nil
}

// RegisterStartEventListener implements Recognizer.
func (r *ScriptedRecognizer) RegisterStartEventListener(fn func()) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.onStart = append(r.onStart, fn)
}

// RegisterReceivedEventListener implements Recognizer.
func (r *ScriptedRecognizer) RegisterReceivedEventListener(fn func(DictationResult)) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.onResult = append(r.onResult, fn)
}

// RegisterStopEventListener implements Recognizer.
func (r *ScriptedRecognizer) RegisterStopEventListener(fn func(error)) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.onStop = append(r.onStop, fn)
}

// Emit delivers a result event.
func (r *ScriptedRecognizer) Emit(result DictationResult) {
	r.mu.Lock()
	listeners := slices.Clone(r.onResult)
	r.mu.Unlock()
	for _, fn := range listeners {
		fn(result)
	}
}

// EmitStop delivers a stop event.
func (r *ScriptedRecognizer) EmitStop(err error) {
	r.mu.Lock()
	listeners := slices.Clone(r.onStop)
	r.mu.Unlock()
	for _, fn := range listeners {
		fn(err)
	}
}

func (r *ScriptedRecognizer) fireStart() {
	r.mu.Lock()
	listeners := slices.Clone(r.onStart)
	r.mu.Unlock()
	for _, fn := range listeners {
		fn()
	}
}

// Starts reports how many times Start was called.
func (r *ScriptedRecognizer) Starts() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.starts
}

// Stops reports how many times Stop was called.
func (r *ScriptedRecognizer) Stops() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.stops
}

// Uninstalls reports how many times Uninstall was called.
func (r *ScriptedRecognizer) Uninstalls() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.uninstalled
}
