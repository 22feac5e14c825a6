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

import "context"

// Recognizer is a speech-to-text engine driven by a Session.
//
// Start reports false when listening could not begin. Once started, the
// engine fires the start listener, then result listeners as the transcript
// evolves, and finally the stop listener with a non-nil error if recognition
// failed. Listeners must be called one at a time.
type Recognizer interface {
	Start(ctx context.Context) (bool, error)
	Stop(ctx context.Context) (bool, error)
	// Uninstall releases the engine and drops every registered listener.
	Uninstall()

	RegisterStartEventListener(fn func())
	RegisterReceivedEventListener(fn func(DictationResult))
	RegisterStopEventListener(fn func(error))
}
