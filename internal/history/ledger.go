/*
 * Copyright (c) 2025 by Alexander Drost, Oldenburg, Germany.
 * This file is licensed to you under the Apache License, Version 2.0 (the "License"); you may not use this file except in compliance with the License.  You may obtain a copy of the License at
 *   http://www.apache.org/licenses/LICENSE-2.0
 * Unless required by applicable law or agreed to in writing, software distributed under the License is distributed on an
 * "AS IS" BASIS, WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.  See the License for the specific language governing permissions and limitations under the License.
 */

// Package history implements the undo/redo ledger: two ordered sequences of
// commands ("done" and "undone") with a capacity bound. Commands that fall out
// of the ledger by eviction or by Clear are disposed exactly once. A new
// command drops the redo future without disposing it.
package history

import (
	"log/slog"
	"time"

	"levelforge/internal/command"
	applog "levelforge/internal/log"
)

// DefaultMaxSize is used when Options.MaxSize is not positive.
const DefaultMaxSize = 30

// Options configures a Ledger.
type Options struct {
	// MaxSize bounds each sequence; the oldest entries are evicted beyond it.
	MaxSize int
	// Logger defaults to the "history" component logger.
	Logger    *slog.Logger
	Observers []Observer
}

// Ledger is the undo/redo history of one editing session.
//
// It is not safe for concurrent use. The editor calls it synchronously from
// its update loop; observers run after the ledger state is consistent.
type Ledger struct {
	maxSize   int
	done      []command.Command
	undone    []command.Command
	log       *slog.Logger
	observers []Observer
	pending   []Event
}

func New(opts Options) *Ledger {
	if opts.MaxSize <= 0 {
		opts.MaxSize = DefaultMaxSize
	}
	if opts.Logger == nil {
		opts.Logger = applog.WithComponent("history")
	}
	return &Ledger{
		maxSize:   opts.MaxSize,
		log:       opts.Logger,
		observers: append([]Observer(nil), opts.Observers...),
	}
}

// Subscribe adds an observer.
func (l *Ledger) Subscribe(o Observer) {
	if o != nil {
		l.observers = append(l.observers, o)
	}
}

// ExecuteCommand applies c, records it as the most recent done entry and
// drops the redo future. A nil command is ignored.
func (l *Ledger) ExecuteCommand(c command.Command) {
	if c == nil {
		return
	}
	c.Execute()
	l.done = append(l.done, c)
	l.record(ActionExecute, c)
	// any new action invalidates the redo future; undone commands may still
	// reference objects that are back in the scene, so they are not disposed
	for _, u := range l.undone {
		l.record(ActionTruncate, u)
	}
	l.undone = nil
	l.enforceLimit()
	l.flush()
}

// Undo reverts the most recent done command. It reports false when there is
// nothing to undo.
func (l *Ledger) Undo() bool {
	n := len(l.done)
	if n == 0 {
		return false
	}
	c := l.done[n-1]
	l.done[n-1] = nil
	l.done = l.done[:n-1]
	c.Undo()
	l.undone = append(l.undone, c)
	l.record(ActionUndo, c)
	l.enforceLimit()
	l.flush()
	return true
}

// Redo re-applies the most recently undone command. It reports false when
// there is nothing to redo.
func (l *Ledger) Redo() bool {
	n := len(l.undone)
	if n == 0 {
		return false
	}
	c := l.undone[n-1]
	l.undone[n-1] = nil
	l.undone = l.undone[:n-1]
	c.Execute()
	l.done = append(l.done, c)
	l.record(ActionRedo, c)
	l.enforceLimit()
	l.flush()
	return true
}

// Clear disposes every command in both sequences and empties them. Used when
// the session resets, e.g. on scene reload.
func (l *Ledger) Clear() {
	n := len(l.done) + len(l.undone)
	for _, c := range l.done {
		l.dispose(ActionClear, c)
	}
	for _, c := range l.undone {
		l.dispose(ActionClear, c)
	}
	l.done, l.undone = nil, nil
	if n > 0 {
		l.log.Debug("history cleared", slog.Int("disposed", n))
	}
	l.flush()
}

func (l *Ledger) CanUndo() bool       { return len(l.done) > 0 }
func (l *Ledger) CanRedo() bool       { return len(l.undone) > 0 }
func (l *Ledger) UndoCount() int      { return len(l.done) }
func (l *Ledger) RedoCount() int      { return len(l.undone) }
func (l *Ledger) MaxHistorySize() int { return l.maxSize }

// SetMaxHistorySize changes the bound (minimum 1) and evicts what no longer fits.
func (l *Ledger) SetMaxHistorySize(n int) {
	if n < 1 {
		l.log.Warn("max history size below 1, clamping", slog.Int("requested", n))
		n = 1
	}
	l.maxSize = n
	l.enforceLimit()
	l.flush()
}

// UndoLabel is the label of the command Undo would revert.
func (l *Ledger) UndoLabel() (string, bool) {
	if n := len(l.done); n > 0 {
		return l.done[n-1].Label(), true
	}
	return "", false
}

// RedoLabel is the label of the command Redo would re-apply.
func (l *Ledger) RedoLabel() (string, bool) {
	if n := len(l.undone); n > 0 {
		return l.undone[n-1].Label(), true
	}
	return "", false
}

// Labels returns both sequences' labels, oldest first.
func (l *Ledger) Labels() (done, undone []string) {
	for _, c := range l.done {
		done = append(done, c.Label())
	}
	for _, c := range l.undone {
		undone = append(undone, c.Label())
	}
	return done, undone
}

// enforceLimit evicts from the front (oldest) of each overflowing sequence.
// Evicted commands are not undone or re-executed: what is on screen is
// already consistent. They are disposed since nothing can reach them anymore.
func (l *Ledger) enforceLimit() {
	for len(l.done) > l.maxSize {
		c := l.done[0]
		l.done[0] = nil
		l.done = l.done[1:]
		l.dispose(ActionEvict, c)
	}
	for len(l.undone) > l.maxSize {
		c := l.undone[0]
		l.undone[0] = nil
		l.undone = l.undone[1:]
		l.dispose(ActionEvict, c)
	}
}

func (l *Ledger) dispose(a Action, c command.Command) {
	// capture before Dispose ends the command's lifetime
	l.record(a, c)
	if a == ActionEvict {
		l.log.Debug("command evicted", slog.String("kind", c.Kind().String()), slog.String("label", c.Label()))
	}
	c.Dispose()
}

func (l *Ledger) record(a Action, c command.Command) {
	l.pending = append(l.pending, Event{Action: a, Kind: c.Kind(), Label: c.Label(), Time: time.Now()})
}

func (l *Ledger) flush() {
	if len(l.pending) == 0 {
		return
	}
	events := l.pending
	l.pending = nil
	for i := range events {
		events[i].UndoCount = len(l.done)
		events[i].RedoCount = len(l.undone)
	}
	for _, o := range l.observers {
		for _, e := range events {
			o.OnLedgerEvent(e)
		}
	}
}
