/*
 * Copyright (c) 2025 by Alexander Drost, Oldenburg, Germany.
 * This file is licensed to you under the Apache License, Version 2.0 (the "License"); you may not use this file except in compliance with the License.  You may obtain a copy of the License at
 *   http://www.apache.org/licenses/LICENSE-2.0
 * Unless required by applicable law or agreed to in writing, software distributed under the License is distributed on an
 * "AS IS" BASIS, WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.  See the License for the specific language governing permissions and limitations under the License.
 */

package session

import (
	"errors"
	"testing"

	"github.com/go-gl/mathgl/mgl64"
	"github.com/google/go-cmp/cmp"
	"github.com/google/go-cmp/cmp/cmpopts"

	"levelforge/internal/catalog"
	"levelforge/internal/history"
	applog "levelforge/internal/log"
	"levelforge/internal/scene"
	"levelforge/internal/spatial"
)

var approx = cmpopts.EquateApprox(0, 1e-9)

type fixture struct {
	world  *scene.World
	ledger *history.Ledger
	sel    *scene.Selection
	s      *Session
}

func newFixture(t *testing.T, opts Options) *fixture {
	t.Helper()
	w := scene.NewWorld(catalog.Builtin())
	l := history.New(history.Options{MaxSize: 30, Logger: applog.Discard()})
	sel := scene.NewSelection(w)
	opts.Logger = applog.Discard()
	return &fixture{world: w, ledger: l, sel: sel, s: New(w, l, sel, opts)}
}

func (f *fixture) spawn(t *testing.T, proto string, p spatial.Pose) scene.Handle {
	t.Helper()
	h, err := f.world.Instantiate(proto, p)
	if err != nil {
		t.Fatalf("Instantiate(%s): %v", proto, err)
	}
	return h
}

func (f *fixture) position(t *testing.T, h scene.Handle) mgl64.Vec3 {
	t.Helper()
	p, ok := f.world.Pose(h)
	if !ok {
		t.Fatalf("%s has no pose", h)
	}
	return p.Position
}

func wantPos(t *testing.T, got mgl64.Vec3, x, y, z float64) {
	t.Helper()
	if diff := cmp.Diff([3]float64{x, y, z}, [3]float64(got), approx); diff != "" {
		t.Fatalf("position mismatch (-want +got):\n%s", diff)
	}
}

func TestSingleGrabCommitsOnRelease(t *testing.T) {
	f := newFixture(t, Options{})
	e := f.spawn(t, "cube", spatial.At(0, 0, 0))

	if err := f.s.GrabStart(Right, e, spatial.At(0, 0, 1)); err != nil {
		t.Fatalf("GrabStart: %v", err)
	}
	f.s.HandMoved(Right, spatial.At(2, 0, 1))
	wantPos(t, f.position(t, e), 2, 0, 0)
	if f.ledger.UndoCount() != 0 {
		t.Fatalf("nothing may be committed before release")
	}

	f.s.GrabEnd(Right)
	if f.ledger.UndoCount() != 1 || f.ledger.RedoCount() != 0 {
		t.Fatalf("counts = %d/%d, want 1/0", f.ledger.UndoCount(), f.ledger.RedoCount())
	}
	if !f.s.Undo() {
		t.Fatalf("undo refused")
	}
	wantPos(t, f.position(t, e), 0, 0, 0)
	f.s.Redo()
	wantPos(t, f.position(t, e), 2, 0, 0)
}

func TestHeldEntityFollowsHandRotation(t *testing.T) {
	f := newFixture(t, Options{})
	e := f.spawn(t, "cube", spatial.At(1, 0, 0))
	if err := f.s.GrabStart(Left, e, spatial.IdentityPose()); err != nil {
		t.Fatalf("GrabStart: %v", err)
	}
	// a quarter turn about +Y carries +X onto -Z
	f.s.HandMoved(Left, spatial.AtYaw(0, 0, 0, 90))
	wantPos(t, f.position(t, e), 0, 0, -1)
}

func TestDuplicateThenDragIsOneEntry(t *testing.T) {
	f := newFixture(t, Options{})
	src := f.spawn(t, "crate", spatial.At(0, 0, 0))

	if err := f.s.Duplicate(Right, src, spatial.IdentityPose()); err != nil {
		t.Fatalf("Duplicate: %v", err)
	}
	held := f.s.Holding(Right)
	if len(held) != 1 || held[0] == src {
		t.Fatalf("hand should hold the new copy, holds %v", held)
	}
	cp := held[0]
	pending := f.s.Pending(Right)
	// the grab event for the freshly spawned copy must not start a Grab
	if err := f.s.GrabStart(Right, cp, spatial.IdentityPose()); err != nil {
		t.Fatalf("GrabStart on own copy: %v", err)
	}
	if f.s.Pending(Right) != pending {
		t.Fatalf("pending command replaced by GrabStart")
	}

	f.s.HandMoved(Right, spatial.At(3, 0, 0))
	f.s.GrabEnd(Right)

	if f.ledger.UndoCount() != 1 {
		t.Fatalf("UndoCount = %d, want 1", f.ledger.UndoCount())
	}
	wantPos(t, f.position(t, cp), 3, 0, 0)
	wantPos(t, f.position(t, src), 0, 0, 0)
	if s, _ := f.world.Scale(cp); !s.ApproxEqual(spatial.UniformScale(0.8)) {
		t.Fatalf("copy scale = %v, want source scale", s)
	}

	f.s.Undo()
	if f.world.Active(cp) || !f.world.Active(src) {
		t.Fatalf("undo must hide only the copy")
	}
	f.s.Redo()
	if !f.world.Active(cp) {
		t.Fatalf("redo must show the copy again")
	}
	wantPos(t, f.position(t, cp), 3, 0, 0)
}

func TestTwoHandScale(t *testing.T) {
	f := newFixture(t, Options{MinScale: 0.05, MaxScale: 20, DropNoOpGestures: true})
	e := f.spawn(t, "crate", spatial.At(0, 0, 0))

	if err := f.s.GrabStart(Left, e, spatial.At(-1, 0, 0)); err != nil {
		t.Fatalf("left GrabStart: %v", err)
	}
	if err := f.s.GrabStart(Right, e, spatial.At(1, 0, 0)); err != nil {
		t.Fatalf("right GrabStart: %v", err)
	}
	if !f.s.TwoHanded() {
		t.Fatalf("expected two-hand mode")
	}

	f.s.HandMoved(Right, spatial.At(3, 0, 0))
	got, _ := f.world.Scale(e)
	if diff := cmp.Diff([3]float64{1.6, 1.6, 1.6}, [3]float64(got), approx); diff != "" {
		t.Fatalf("scale mismatch (-want +got):\n%s", diff)
	}

	f.s.GrabEnd(Right)
	if f.s.TwoHanded() {
		t.Fatalf("two-hand mode should end on release")
	}
	if len(f.s.Holding(Left)) != 1 {
		t.Fatalf("left hand should keep holding the target")
	}
	f.s.GrabEnd(Left)

	if f.ledger.UndoCount() != 1 {
		t.Fatalf("UndoCount = %d, want 1 (only the scale)", f.ledger.UndoCount())
	}
	f.s.Undo()
	if s, _ := f.world.Scale(e); !s.ApproxEqual(spatial.UniformScale(0.8)) {
		t.Fatalf("undo scale = %v, want 0.8", s)
	}
}

func TestTwoHandScaleIsClamped(t *testing.T) {
	f := newFixture(t, Options{MinScale: 0.05, MaxScale: 1})
	e := f.spawn(t, "crate", spatial.At(0, 0, 0))
	_ = f.s.GrabStart(Left, e, spatial.At(-1, 0, 0))
	_ = f.s.GrabStart(Right, e, spatial.At(1, 0, 0))
	f.s.HandMoved(Right, spatial.At(5, 0, 0))
	if s, _ := f.world.Scale(e); !s.ApproxEqual(spatial.UniformScale(1)) {
		t.Fatalf("scale = %v, want clamped to 1", s)
	}
}

func TestBatchGrabMovesSelection(t *testing.T) {
	f := newFixture(t, Options{})
	a := f.spawn(t, "cube", spatial.At(0, 0, 0))
	b := f.spawn(t, "cube", spatial.At(1, 0, 0))
	c := f.spawn(t, "cube", spatial.At(2, 0, 0))
	f.sel.Set(a, b, c)

	if err := f.s.GrabStart(Left, b, spatial.IdentityPose()); err != nil {
		t.Fatalf("GrabStart: %v", err)
	}
	if len(f.s.Holding(Left)) != 3 {
		t.Fatalf("expected whole selection held")
	}
	f.s.HandMoved(Left, spatial.At(0, 1, 0))
	f.s.GrabEnd(Left)

	if f.ledger.UndoCount() != 1 {
		t.Fatalf("UndoCount = %d, want 1", f.ledger.UndoCount())
	}
	wantPos(t, f.position(t, a), 0, 1, 0)
	wantPos(t, f.position(t, c), 2, 1, 0)
	f.s.Undo()
	wantPos(t, f.position(t, a), 0, 0, 0)
	wantPos(t, f.position(t, b), 1, 0, 0)
	wantPos(t, f.position(t, c), 2, 0, 0)
}

func TestBatchDuplicateCommitsOnRelease(t *testing.T) {
	f := newFixture(t, Options{})
	a := f.spawn(t, "cube", spatial.At(0, 0, 0))
	b := f.spawn(t, "cube", spatial.At(1, 0, 0))
	f.sel.Set(a, b)

	if err := f.s.Duplicate(Left, scene.Nil, spatial.IdentityPose()); err != nil {
		t.Fatalf("Duplicate: %v", err)
	}
	copies := f.s.Holding(Left)
	if len(copies) != 2 {
		t.Fatalf("expected 2 copies held, got %d", len(copies))
	}
	f.s.HandMoved(Left, spatial.At(0, 0, 2))
	f.s.GrabEnd(Left)

	if f.ledger.UndoCount() != 1 {
		t.Fatalf("UndoCount = %d, want 1", f.ledger.UndoCount())
	}
	wantPos(t, f.position(t, copies[1]), 1, 0, 2)
	if n := len(f.world.ActiveEntities()); n != 4 {
		t.Fatalf("active = %d, want 4", n)
	}
	f.s.Undo()
	if n := len(f.world.ActiveEntities()); n != 2 {
		t.Fatalf("active after undo = %d, want 2", n)
	}
}

func TestCancelGrabRestoresPose(t *testing.T) {
	f := newFixture(t, Options{})
	e := f.spawn(t, "cube", spatial.At(0, 0, 0))
	_ = f.s.GrabStart(Left, e, spatial.IdentityPose())
	f.s.HandMoved(Left, spatial.At(4, 4, 4))
	f.s.Cancel(Left)

	wantPos(t, f.position(t, e), 0, 0, 0)
	if f.ledger.UndoCount() != 0 || f.s.Busy() {
		t.Fatalf("cancel must leave no history and free the hand")
	}
}

func TestCancelDuplicateDestroysCopy(t *testing.T) {
	f := newFixture(t, Options{})
	src := f.spawn(t, "cube", spatial.At(0, 0, 0))
	_ = f.s.Duplicate(Right, src, spatial.IdentityPose())
	cp := f.s.Holding(Right)[0]
	f.s.Cancel(Right)

	if f.world.Alive(cp) {
		t.Fatalf("cancelled copy should be destroyed")
	}
	if f.world.Len() != 1 || f.ledger.UndoCount() != 0 {
		t.Fatalf("world len = %d, undo = %d; want 1, 0", f.world.Len(), f.ledger.UndoCount())
	}
}

func TestCancelTwoHandRevertsScale(t *testing.T) {
	f := newFixture(t, Options{DropNoOpGestures: true})
	e := f.spawn(t, "cube", spatial.At(0, 0, 0))
	_ = f.s.GrabStart(Left, e, spatial.At(-1, 0, 0))
	_ = f.s.GrabStart(Right, e, spatial.At(1, 0, 0))
	f.s.HandMoved(Right, spatial.At(3, 0, 0))
	f.s.Cancel(Right)

	if s, _ := f.world.Scale(e); !s.ApproxEqual(spatial.UniformScale(1)) {
		t.Fatalf("scale = %v, want 1 after cancel", s)
	}
	if f.s.TwoHanded() || len(f.s.Holding(Left)) != 1 {
		t.Fatalf("left hand should continue with a plain grab")
	}
}

func TestUndoRefusedDuringGesture(t *testing.T) {
	f := newFixture(t, Options{})
	if _, err := f.s.Spawn("cube", spatial.At(0, 0, 0)); err != nil {
		t.Fatalf("Spawn: %v", err)
	}
	e := f.world.ActiveEntities()[0]
	_ = f.s.GrabStart(Left, e, spatial.IdentityPose())
	if f.s.Undo() {
		t.Fatalf("undo must be refused while a hand is busy")
	}
	f.s.GrabEnd(Left)
	if !f.s.Undo() {
		t.Fatalf("undo should work after release")
	}
}

func TestSpawnUnknownPrototype(t *testing.T) {
	f := newFixture(t, Options{})
	_, err := f.s.Spawn("dragon", spatial.IdentityPose())
	if !errors.Is(err, ErrNoTarget) {
		t.Fatalf("err = %v, want ErrNoTarget", err)
	}
	if f.ledger.UndoCount() != 0 {
		t.Fatalf("failed spawn must not reach the ledger")
	}
}

func TestSpawnAndDrag(t *testing.T) {
	f := newFixture(t, Options{})
	e, err := f.s.SpawnAndDrag(Left, "lamp", spatial.At(0, 1, 0), spatial.At(0, 1, 0))
	if err != nil {
		t.Fatalf("SpawnAndDrag: %v", err)
	}
	f.s.HandMoved(Left, spatial.At(5, 1, 0))
	f.s.GrabEnd(Left)
	wantPos(t, f.position(t, e), 5, 1, 0)
	f.s.Undo()
	if f.world.Active(e) {
		t.Fatalf("undo should hide the spawned lamp")
	}
	f.s.Redo()
	wantPos(t, f.position(t, e), 5, 1, 0)
}

func TestGrabStartErrors(t *testing.T) {
	f := newFixture(t, Options{})
	a := f.spawn(t, "cube", spatial.At(0, 0, 0))
	b := f.spawn(t, "cube", spatial.At(1, 0, 0))
	if err := f.s.GrabStart(Left, a, spatial.IdentityPose()); err != nil {
		t.Fatalf("GrabStart: %v", err)
	}
	if err := f.s.GrabStart(Left, b, spatial.IdentityPose()); !errors.Is(err, ErrBusy) {
		t.Fatalf("err = %v, want ErrBusy", err)
	}
	f.world.Destroy(b)
	if err := f.s.GrabStart(Right, b, spatial.IdentityPose()); !errors.Is(err, ErrNoTarget) {
		t.Fatalf("err = %v, want ErrNoTarget", err)
	}
}

func TestGrabOverlappingOtherHandIsRefused(t *testing.T) {
	f := newFixture(t, Options{})
	a := f.spawn(t, "cube", spatial.At(0, 0, 0))
	b := f.spawn(t, "cube", spatial.At(1, 0, 0))
	c := f.spawn(t, "cube", spatial.At(5, 0, 0))
	f.sel.Set(a, b)

	if err := f.s.GrabStart(Left, a, spatial.IdentityPose()); err != nil {
		t.Fatalf("GrabStart: %v", err)
	}
	if err := f.s.GrabStart(Right, b, spatial.At(1, 0, 0)); !errors.Is(err, ErrBusy) {
		t.Fatalf("second batch over the held selection: err = %v, want ErrBusy", err)
	}
	if len(f.s.Holding(Right)) != 0 {
		t.Fatalf("right hand must stay empty, holds %v", f.s.Holding(Right))
	}

	// a selection that only partly overlaps is refused too
	f.sel.Set(b, c)
	if err := f.s.GrabStart(Right, c, spatial.At(5, 0, 0)); !errors.Is(err, ErrBusy) {
		t.Fatalf("partly overlapping batch: err = %v, want ErrBusy", err)
	}

	f.s.HandMoved(Left, spatial.At(0, 2, 0))
	f.s.GrabEnd(Left)
	wantPos(t, f.position(t, a), 0, 2, 0)
	wantPos(t, f.position(t, b), 1, 2, 0)
	wantPos(t, f.position(t, c), 5, 0, 0)
	if f.ledger.UndoCount() != 1 {
		t.Fatalf("UndoCount = %d, want 1", f.ledger.UndoCount())
	}
}

func TestDeleteSelectionIsOneEntry(t *testing.T) {
	f := newFixture(t, Options{})
	a := f.spawn(t, "cube", spatial.At(0, 0, 0))
	b := f.spawn(t, "cube", spatial.At(1, 0, 0))
	f.sel.Set(a, b)

	n, err := f.s.DeleteSelection()
	if err != nil || n != 2 {
		t.Fatalf("DeleteSelection = %d, %v", n, err)
	}
	if f.ledger.UndoCount() != 1 || f.world.Active(a) || f.world.Active(b) {
		t.Fatalf("both deleted as one step")
	}
	f.s.Undo()
	if !f.world.Active(a) || !f.world.Active(b) {
		t.Fatalf("undo should restore both")
	}
}

func TestDeleteHeldIsRefused(t *testing.T) {
	f := newFixture(t, Options{})
	e := f.spawn(t, "cube", spatial.At(0, 0, 0))
	_ = f.s.GrabStart(Right, e, spatial.IdentityPose())
	if err := f.s.Delete(e); !errors.Is(err, ErrBusy) {
		t.Fatalf("err = %v, want ErrBusy", err)
	}
}

func TestResetCancelsAndClears(t *testing.T) {
	f := newFixture(t, Options{})
	_, _ = f.s.Spawn("cube", spatial.At(0, 0, 0))
	src := f.world.ActiveEntities()[0]
	_ = f.s.Duplicate(Left, src, spatial.IdentityPose())
	f.s.Reset()

	if f.s.Busy() || f.ledger.CanUndo() || f.ledger.CanRedo() {
		t.Fatalf("reset should leave an idle session and empty history")
	}
	// the copy is cancelled; clearing the history disposes the spawn and
	// destroys the cube with it
	if f.world.Len() != 0 {
		t.Fatalf("world len = %d, want 0", f.world.Len())
	}
}

func TestParseHand(t *testing.T) {
	for in, want := range map[string]Hand{"left": Left, "L": Left, " right ": Right, "r": Right} {
		got, err := ParseHand(in)
		if err != nil || got != want {
			t.Fatalf("ParseHand(%q) = %v, %v", in, got, err)
		}
	}
	if _, err := ParseHand("middle"); err == nil {
		t.Fatalf("expected error")
	}
}
