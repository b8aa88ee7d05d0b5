/*
 * Copyright (c) 2025 by Alexander Drost, Oldenburg, Germany.
 * This file is licensed to you under the Apache License, Version 2.0 (the "License"); you may not use this file except in compliance with the License.  You may obtain a copy of the License at
 *   http://www.apache.org/licenses/LICENSE-2.0
 * Unless required by applicable law or agreed to in writing, software distributed under the License is distributed on an
 * "AS IS" BASIS, WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.  See the License for the specific language governing permissions and limitations under the License.
 */

package script

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"math"

	"levelforge/internal/history"
	applog "levelforge/internal/log"
	"levelforge/internal/scene"
	"levelforge/internal/session"
	"levelforge/internal/spatial"
)

// ErrExpectation is returned when an expect statement does not hold.
var ErrExpectation = errors.New("expectation failed")

// ErrUnknownName is returned for a name no statement has bound.
var ErrUnknownName = errors.New("unknown name")

const posTolerance = 1e-6

// Runner executes a parsed script against a session.
type Runner struct {
	world     *scene.World
	ledger    *history.Ledger
	selection *scene.Selection
	session   *session.Session
	out       io.Writer
	log       *slog.Logger

	names map[string]scene.Handle

	// Line is the line of the step being run; crash reports read it.
	Line int
}

// NewRunner wires a runner. out receives print output; nil discards it.
func NewRunner(w *scene.World, l *history.Ledger, sel *scene.Selection, s *session.Session, out io.Writer) *Runner {
	if out == nil {
		out = io.Discard
	}
	return &Runner{
		world:     w,
		ledger:    l,
		selection: sel,
		session:   s,
		out:       out,
		log:       applog.WithComponent("script"),
		names:     map[string]scene.Handle{},
	}
}

// Lookup returns the entity bound to name.
func (r *Runner) Lookup(name string) (scene.Handle, bool) {
	h, ok := r.names[name]
	return h, ok
}

// Run executes every step in order and stops at the first failure.
func (r *Runner) Run(ctx context.Context, sc Script) error {
	for _, st := range sc.Steps {
		if err := ctx.Err(); err != nil {
			return err
		}
		r.Line = st.LineNo
		if err := r.step(st); err != nil {
			r.log.Debug("step failed", slog.Int("line", st.LineNo), slog.String("op", st.Op.String()), slog.Any("err", err))
			return fmt.Errorf("line %d: %s: %w", st.LineNo, st.Op, err)
		}
	}
	return nil
}

func (r *Runner) lookup(name string) (scene.Handle, error) {
	h, ok := r.names[name]
	if !ok {
		return scene.Nil, fmt.Errorf("%w %q", ErrUnknownName, name)
	}
	return h, nil
}

func (r *Runner) bind(name string, h scene.Handle) {
	r.names[name] = h
	r.world.SetName(h, name)
}

func (r *Runner) step(st Step) error {
	switch st.Op {
	case OpSpawn:
		h, err := r.session.Spawn(st.Prototype, spatial.AtYaw(st.Position[0], st.Position[1], st.Position[2], st.Yaw))
		if err != nil {
			return err
		}
		r.bind(st.Names[0], h)

	case OpDrag:
		pose := spatial.At(st.Position[0], st.Position[1], st.Position[2])
		h, err := r.session.SpawnAndDrag(st.Hand, st.Prototype, pose, pose)
		if err != nil {
			return err
		}
		r.bind(st.Names[0], h)

	case OpSelect:
		hs := make([]scene.Handle, 0, len(st.Names))
		for _, n := range st.Names {
			h, err := r.lookup(n)
			if err != nil {
				return err
			}
			hs = append(hs, h)
		}
		r.selection.Set(hs...)

	case OpDeselect:
		r.selection.Clear()

	case OpGrab:
		h, err := r.lookup(st.Names[0])
		if err != nil {
			return err
		}
		pose := spatial.At(st.Position[0], st.Position[1], st.Position[2])
		return r.session.GrabStart(st.Hand, h, pose)

	case OpMove:
		pose := spatial.AtYaw(st.Position[0], st.Position[1], st.Position[2], st.Yaw)
		r.session.HandMoved(st.Hand, pose)

	case OpRelease:
		r.session.GrabEnd(st.Hand)

	case OpDuplicate:
		src := scene.Nil
		if st.Source != "" {
			h, err := r.lookup(st.Source)
			if err != nil {
				return err
			}
			src = h
		}
		pose := spatial.At(st.Position[0], st.Position[1], st.Position[2])
		if err := r.session.Duplicate(st.Hand, src, pose); err != nil {
			return err
		}
		copies := r.session.Holding(st.Hand)
		if len(copies) != len(st.Names) {
			return fmt.Errorf("%d copies made but %d names given", len(copies), len(st.Names))
		}
		for i, h := range copies {
			r.bind(st.Names[i], h)
		}

	case OpDelete:
		h, err := r.lookup(st.Names[0])
		if err != nil {
			return err
		}
		return r.session.Delete(h)

	case OpDeleteSelection:
		_, err := r.session.DeleteSelection()
		return err

	case OpCancel:
		r.session.Cancel(st.Hand)

	case OpUndo:
		if !r.session.Undo() {
			r.log.Info("nothing undone", slog.Int("line", st.LineNo))
		}

	case OpRedo:
		if !r.session.Redo() {
			r.log.Info("nothing redone", slog.Int("line", st.LineNo))
		}

	case OpClear:
		r.session.Reset()

	case OpHistory:
		r.ledger.SetMaxHistorySize(st.N)

	case OpPrint:
		r.print()

	case OpExpectUndo:
		if got := r.ledger.UndoCount(); got != st.N {
			return fmt.Errorf("%w: undo count %d, want %d", ErrExpectation, got, st.N)
		}

	case OpExpectRedo:
		if got := r.ledger.RedoCount(); got != st.N {
			return fmt.Errorf("%w: redo count %d, want %d", ErrExpectation, got, st.N)
		}

	case OpExpectCount:
		if got := len(r.world.ActiveEntities()); got != st.N {
			return fmt.Errorf("%w: %d objects in scene, want %d", ErrExpectation, got, st.N)
		}

	case OpExpectPos:
		h, err := r.lookup(st.Names[0])
		if err != nil {
			return err
		}
		p, ok := r.world.Pose(h)
		if !ok || !r.world.Active(h) {
			return fmt.Errorf("%w: %s is not in the scene", ErrExpectation, st.Names[0])
		}
		if d := spatial.Distance(p.Position, st.Position); d > posTolerance {
			return fmt.Errorf("%w: %s at %s, want %s", ErrExpectation, st.Names[0], spatial.FormatVec(p.Position), spatial.FormatVec(st.Position))
		}

	case OpExpectScale:
		h, err := r.lookup(st.Names[0])
		if err != nil {
			return err
		}
		s, ok := r.world.Scale(h)
		if !ok {
			return fmt.Errorf("%w: %s is not in the scene", ErrExpectation, st.Names[0])
		}
		for i := range s {
			if math.Abs(s[i]-st.Value) > posTolerance {
				return fmt.Errorf("%w: %s scale %s, want %g", ErrExpectation, st.Names[0], spatial.FormatVec(s), st.Value)
			}
		}

	default:
		return fmt.Errorf("unsupported step %s", st.Op)
	}
	return nil
}

func (r *Runner) print() {
	_, _ = fmt.Fprintf(r.out, "history: undo=%d redo=%d max=%d", r.ledger.UndoCount(), r.ledger.RedoCount(), r.ledger.MaxHistorySize())
	if label, ok := r.ledger.UndoLabel(); ok {
		_, _ = fmt.Fprintf(r.out, " next-undo=%q", label)
	}
	if label, ok := r.ledger.RedoLabel(); ok {
		_, _ = fmt.Fprintf(r.out, " next-redo=%q", label)
	}
	_, _ = fmt.Fprintln(r.out)
	for _, h := range r.world.ActiveEntities() {
		t, _ := r.world.Transform(h)
		proto, _ := r.world.Prototype(h)
		_, _ = fmt.Fprintf(r.out, "  %-12s %-8s pos=%s scale=%s\n", r.world.Name(h), proto, spatial.FormatVec(t.Position), spatial.FormatVec(t.Scale))
	}
}
