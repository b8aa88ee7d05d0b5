/*
 * Copyright (c) 2025 by Alexander Drost, Oldenburg, Germany.
 * This file is licensed to you under the Apache License, Version 2.0 (the "License"); you may not use this file except in compliance with the License.  You may obtain a copy of the License at
 *   http://www.apache.org/licenses/LICENSE-2.0
 * Unless required by applicable law or agreed to in writing, software distributed under the License is distributed on an
 * "AS IS" BASIS, WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.  See the License for the specific language governing permissions and limitations under the License.
 */

package history

import (
	"fmt"
	"time"

	"levelforge/internal/command"
)

// Action is what happened to a command in the ledger.
type Action int

const (
	ActionExecute Action = iota + 1
	ActionUndo
	ActionRedo
	// ActionEvict: dropped from the front of a sequence over capacity.
	ActionEvict
	// ActionTruncate: redo future discarded by a new command.
	ActionTruncate
	ActionClear
)

func (a Action) String() string {
	switch a {
	case ActionExecute:
		return "execute"
	case ActionUndo:
		return "undo"
	case ActionRedo:
		return "redo"
	case ActionEvict:
		return "evict"
	case ActionTruncate:
		return "truncate"
	case ActionClear:
		return "clear"
	default:
		return fmt.Sprintf("action(%d)", int(a))
	}
}

// Disposes reports whether the action ends the command's lifetime.
func (a Action) Disposes() bool {
	return a == ActionEvict || a == ActionClear
}

// Event describes one ledger transition. Counts are taken once the whole
// operation that produced the event has finished.
type Event struct {
	Action    Action
	Kind      command.Kind
	Label     string
	UndoCount int
	RedoCount int
	Time      time.Time
}

// Observer is notified of ledger transitions, in order.
type Observer interface {
	OnLedgerEvent(Event)
}

// ObserverFunc adapts a function to Observer.
type ObserverFunc func(Event)

func (f ObserverFunc) OnLedgerEvent(e Event) { f(e) }
