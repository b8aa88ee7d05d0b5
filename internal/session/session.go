/*
 * Copyright (c) 2025 by Alexander Drost, Oldenburg, Germany.
 * This file is licensed to you under the Apache License, Version 2.0 (the "License"); you may not use this file except in compliance with the License.  You may obtain a copy of the License at
 *   http://www.apache.org/licenses/LICENSE-2.0
 * Unless required by applicable law or agreed to in writing, software distributed under the License is distributed on an
 * "AS IS" BASIS, WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.  See the License for the specific language governing permissions and limitations under the License.
 */

// Package session turns continuous hand gestures (press, drag, release) into
// committed ledger commands: single-hand grabs, two-hand scaling, duplicate
// and drag, and multi-selection batch moves.
//
// A gesture in progress owns an uncommitted command. Only when the gesture
// ends is the command handed to the ledger; an abandoned gesture never
// reaches it.
package session

import (
	"errors"
	"fmt"
	"log/slog"
	"strings"

	"levelforge/internal/command"
	applog "levelforge/internal/log"
	"levelforge/internal/scene"
	"levelforge/internal/spatial"
)

var (
	ErrNoTarget = errors.New("no target")
	ErrBusy     = errors.New("hand is busy")
)

// Hand identifies a controller.
type Hand int

const (
	Left Hand = iota
	Right
)

func (h Hand) String() string {
	if h == Right {
		return "right"
	}
	return "left"
}

func (h Hand) other() Hand { return 1 - h }

// ParseHand accepts "left"/"l" and "right"/"r".
func ParseHand(s string) (Hand, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "left", "l":
		return Left, nil
	case "right", "r":
		return Right, nil
	}
	return Left, fmt.Errorf("unknown hand %q", s)
}

// Ledger is the part of the history the session submits to.
type Ledger interface {
	ExecuteCommand(c command.Command)
	Undo() bool
	Redo() bool
	Clear()
}

// SelectionProvider answers the current multi-selection.
type SelectionProvider interface {
	GetMultiSelection() []scene.Handle
}

// Options tunes gesture handling.
type Options struct {
	// MinScale and MaxScale clamp two-hand scaling per axis. Zero disables a bound.
	MinScale float64
	MaxScale float64
	// DropNoOpGestures skips committing grabs, moves and scales that end where
	// they started.
	DropNoOpGestures bool
	Logger           *slog.Logger
}

type heldEntity struct {
	entity scene.Handle
	offset spatial.Pose // entity pose in the hand's frame
}

// gesture is what one hand is doing.
type gesture struct {
	handPose spatial.Pose
	held     []heldEntity
	pending  command.Command
	created  []scene.Handle // entities spawned by pending, not yet committed
}

func (g *gesture) holds(h scene.Handle) bool {
	for _, e := range g.held {
		if e.entity == h {
			return true
		}
	}
	return false
}

func (g *gesture) single() (scene.Handle, bool) {
	if len(g.held) != 1 {
		return scene.Nil, false
	}
	return g.held[0].entity, true
}

type twoHand struct {
	target    scene.Handle
	startDist float64
	scale     *command.Scale
}

// Session coordinates both hands over one world and one ledger.
// Like the ledger it is driven from a single update loop.
type Session struct {
	world     command.World
	ledger    Ledger
	selection SelectionProvider
	opts      Options
	log       *slog.Logger

	hands [2]*gesture
	two   *twoHand
}

// New creates a session. selection may be nil when multi-select is not used.
func New(w command.World, l Ledger, selection SelectionProvider, opts Options) *Session {
	if opts.Logger == nil {
		opts.Logger = applog.WithComponent("session")
	}
	return &Session{world: w, ledger: l, selection: selection, opts: opts, log: opts.Logger}
}

func (s *Session) multiSelection() []scene.Handle {
	if s.selection == nil {
		return nil
	}
	return s.selection.GetMultiSelection()
}

func contains(hs []scene.Handle, h scene.Handle) bool {
	for _, x := range hs {
		if x == h {
			return true
		}
	}
	return false
}

func (s *Session) hold(handPose spatial.Pose, entities ...scene.Handle) []heldEntity {
	out := make([]heldEntity, 0, len(entities))
	for _, e := range entities {
		p, ok := s.world.Pose(e)
		if !ok {
			continue
		}
		out = append(out, heldEntity{entity: e, offset: p.RelativeTo(handPose)})
	}
	return out
}

func (s *Session) commit(c command.Command) {
	s.ledger.ExecuteCommand(c)
	s.log.Debug("command committed", slog.String("kind", c.Kind().String()), slog.String("label", c.Label()))
}

// changed reports whether a finished transform command did anything.
func changed(c command.Command) bool {
	switch v := c.(type) {
	case *command.Grab:
		return v.Changed()
	case *command.Move:
		return v.Changed()
	case *command.Scale:
		return v.Changed()
	case *command.BatchMove:
		return v.Changed()
	}
	return true
}

func (s *Session) commitFinished(c command.Command) {
	if s.opts.DropNoOpGestures && !changed(c) {
		s.log.Debug("no-op gesture dropped", slog.String("kind", c.Kind().String()))
		return
	}
	s.commit(c)
}

// GrabStart begins holding target with hand.
//
// With a multi-selection that contains target, every selected entity is held
// and a batch move is started. If the other hand already holds target alone,
// the session switches to two-hand scaling; any other overlap with what the
// other hand holds is refused with ErrBusy. Grabbing an entity this hand just
// spawned (duplicate or drag-spawn) is a no-op: the creating command already
// tracks its transform.
func (s *Session) GrabStart(hand Hand, target scene.Handle, handPose spatial.Pose) error {
	if g := s.hands[hand]; g != nil {
		if contains(g.created, target) {
			return nil
		}
		return fmt.Errorf("%w: %s hand holds %d object(s)", ErrBusy, hand, len(g.held))
	}
	if !s.world.Active(target) {
		return fmt.Errorf("%w: %s is not in the scene", ErrNoTarget, target)
	}

	if other := s.hands[hand.other()]; other != nil && s.two == nil {
		if h, ok := other.single(); ok && h == target {
			s.enterTwoHand(hand, target, handPose)
			return nil
		}
	}
	if s.heldByAnyHand(target) {
		return fmt.Errorf("%w: %s is held by the %s hand", ErrBusy, target, hand.other())
	}

	if sel := s.multiSelection(); len(sel) > 1 && contains(sel, target) {
		for _, h := range sel {
			if s.heldByAnyHand(h) {
				return fmt.Errorf("%w: selected %s is held by the %s hand", ErrBusy, h, hand.other())
			}
		}
		bm := command.NewBatchMove(s.world, sel)
		s.hands[hand] = &gesture{handPose: handPose, held: s.hold(handPose, sel...), pending: bm}
		s.log.Debug("batch grab started", slog.String("hand", hand.String()), slog.Int("objects", len(sel)))
		return nil
	}

	s.hands[hand] = &gesture{
		handPose: handPose,
		held:     s.hold(handPose, target),
		pending:  command.NewGrab(s.world, target),
	}
	return nil
}

func (s *Session) enterTwoHand(hand Hand, target scene.Handle, handPose spatial.Pose) {
	other := s.hands[hand.other()]
	// the first hand's grab (or spawn) is its own undo step
	if other.pending != nil {
		s.finalize(other)
		s.commitFinished(other.pending)
		other.pending, other.created = nil, nil
	}
	dist := spatial.Distance(handPose.Position, other.handPose.Position)
	if dist < 1e-6 {
		dist = 1e-6
	}
	s.two = &twoHand{target: target, startDist: dist, scale: command.NewScale(s.world, target)}
	s.hands[hand] = &gesture{handPose: handPose, held: s.hold(handPose, target)}
	s.log.Debug("two-hand scale started", slog.String("target", target.String()), slog.Float64("dist", dist))
}

// HandMoved updates a hand pose for this frame. Held entities follow the hand;
// in two-hand mode the target scale follows the distance between the hands.
func (s *Session) HandMoved(hand Hand, handPose spatial.Pose) {
	g := s.hands[hand]
	if g == nil {
		return
	}
	g.handPose = handPose

	if s.two != nil && g.holds(s.two.target) {
		s.applyTwoHandScale()
		return
	}

	poses := make([]spatial.Pose, len(g.held))
	for i, e := range g.held {
		poses[i] = handPose.Mul(e.offset)
		s.world.SetPose(e.entity, poses[i])
	}
	switch c := g.pending.(type) {
	case *command.CreateAndMove:
		if len(poses) == 1 {
			c.UpdateTransform(poses[0])
		}
	case *command.BatchDuplicate:
		if err := c.UpdateTransforms(poses); err != nil {
			s.log.Warn("duplicate update rejected", slog.Any("err", err))
		}
	}
}

func (s *Session) applyTwoHandScale() {
	l, r := s.hands[Left], s.hands[Right]
	if l == nil || r == nil {
		return
	}
	dist := spatial.Distance(l.handPose.Position, r.handPose.Position)
	factor := dist / s.two.startDist
	next := spatial.ClampScale(spatial.ScaleBy(s.two.scale.BaseScale(), factor), s.opts.MinScale, s.opts.MaxScale)
	s.world.SetScale(s.two.target, next)
}

// finalize writes the end state of g's pending command from the world.
func (s *Session) finalize(g *gesture) {
	switch c := g.pending.(type) {
	case *command.Grab:
		if p, ok := s.world.Pose(c.Target()); ok {
			c.SetEndTransform(p)
		}
	case *command.BatchMove:
		c.CaptureEndTransforms()
	case *command.CreateAndMove:
		if p, ok := s.world.Pose(c.Entity()); ok {
			c.UpdateTransform(p)
		}
	case *command.BatchDuplicate:
		poses := make([]spatial.Pose, 0, len(g.held))
		for _, e := range g.held {
			if p, ok := s.world.Pose(e.entity); ok {
				poses = append(poses, p)
			}
		}
		if err := c.UpdateTransforms(poses); err != nil {
			s.log.Warn("duplicate end state rejected", slog.Any("err", err))
		}
	}
}

// GrabEnd releases hand and commits its gesture.
func (s *Session) GrabEnd(hand Hand) {
	g := s.hands[hand]
	if g == nil {
		return
	}
	s.hands[hand] = nil

	if s.two != nil && g.holds(s.two.target) {
		s.exitTwoHand(hand, true)
		return
	}
	if g.pending == nil {
		return
	}
	s.finalize(g)
	s.commitFinished(g.pending)
}

// exitTwoHand ends scaling after hand let go. The remaining hand keeps
// holding the target with a fresh grab.
func (s *Session) exitTwoHand(released Hand, keep bool) {
	two := s.two
	s.two = nil
	if keep {
		p, okP := s.world.Pose(two.target)
		sc, okS := s.world.Scale(two.target)
		if okP && okS {
			two.scale.SetEndState(p, sc)
			s.commitFinished(two.scale)
		}
	} else {
		two.scale.Undo()
	}
	if rest := s.hands[released.other()]; rest != nil {
		rest.held = s.hold(rest.handPose, two.target)
		rest.pending = command.NewGrab(s.world, two.target)
		rest.created = nil
	}
}

// Duplicate copies what hand holds, or target when the hand is empty, and
// leaves the hand holding the copy. With a multi-selection of more than one
// entity every selected entity is copied as one batch. The copy is committed
// when the hand releases.
func (s *Session) Duplicate(hand Hand, target scene.Handle, handPose spatial.Pose) error {
	if s.two != nil {
		return fmt.Errorf("%w: two-hand scaling in progress", ErrBusy)
	}
	var sources []scene.Handle
	if sel := s.multiSelection(); len(sel) > 1 && (target.IsNil() || contains(sel, target)) {
		sources = sel
	} else {
		src := target
		if g := s.hands[hand]; src.IsNil() && g != nil {
			if h, ok := g.single(); ok {
				src = h
			}
		}
		if src.IsNil() || !s.world.Active(src) {
			return fmt.Errorf("%w: nothing to duplicate", ErrNoTarget)
		}
		sources = []scene.Handle{src}
	}

	// whatever the hand was doing is its own undo step
	if g := s.hands[hand]; g != nil {
		s.hands[hand] = nil
		if g.pending != nil {
			s.finalize(g)
			s.commitFinished(g.pending)
		}
	}

	poses := make([]spatial.Pose, len(sources))
	for i, src := range sources {
		poses[i], _ = s.world.Pose(src)
	}

	var (
		pending command.Command
		created []scene.Handle
	)
	if len(sources) == 1 {
		cam := command.NewCreateAndMove(s.world, command.FromEntity(sources[0]), poses[0])
		cam.Execute()
		if cam.Entity().IsNil() {
			return fmt.Errorf("%w: could not copy %s", ErrNoTarget, sources[0])
		}
		pending, created = cam, []scene.Handle{cam.Entity()}
	} else {
		bd, err := command.NewBatchDuplicate(s.world, sources, poses)
		if err != nil {
			s.log.Warn("batch duplicate rejected", slog.Any("err", err))
			return err
		}
		bd.Execute()
		for _, h := range bd.Entities() {
			if !h.IsNil() {
				created = append(created, h)
			}
		}
		pending = bd
	}
	s.hands[hand] = &gesture{handPose: handPose, held: s.hold(handPose, created...), pending: pending, created: created}
	s.log.Debug("duplicate started", slog.String("hand", hand.String()), slog.Int("copies", len(created)))
	return nil
}

// SpawnAndDrag instantiates prototype at pose and leaves hand holding it; the
// creation and the drag commit as one step on release.
func (s *Session) SpawnAndDrag(hand Hand, prototype string, pose, handPose spatial.Pose) (scene.Handle, error) {
	if s.hands[hand] != nil {
		return scene.Nil, fmt.Errorf("%w: %s hand", ErrBusy, hand)
	}
	cam := command.NewCreateAndMove(s.world, command.FromPrototype(prototype), pose)
	cam.Execute()
	e := cam.Entity()
	if e.IsNil() {
		return scene.Nil, fmt.Errorf("%w: cannot spawn %q", ErrNoTarget, prototype)
	}
	s.hands[hand] = &gesture{handPose: handPose, held: s.hold(handPose, e), pending: cam, created: []scene.Handle{e}}
	return e, nil
}

// Spawn instantiates prototype at pose and commits it immediately.
func (s *Session) Spawn(prototype string, pose spatial.Pose) (scene.Handle, error) {
	c := command.NewCreate(s.world, prototype, pose)
	c.Execute()
	if c.Entity().IsNil() {
		return scene.Nil, fmt.Errorf("%w: cannot spawn %q", ErrNoTarget, prototype)
	}
	s.commit(c)
	return c.Entity(), nil
}

func (s *Session) heldByAnyHand(h scene.Handle) bool {
	for _, g := range s.hands {
		if g != nil && g.holds(h) {
			return true
		}
	}
	return false
}

// Delete removes target as one undo step.
func (s *Session) Delete(target scene.Handle) error {
	if !s.world.Active(target) {
		return fmt.Errorf("%w: %s is not in the scene", ErrNoTarget, target)
	}
	if s.heldByAnyHand(target) {
		return fmt.Errorf("%w: %s is held", ErrBusy, target)
	}
	s.commit(command.NewDelete(s.world, target))
	return nil
}

// DeleteSelection removes every selected entity as one undo step and
// returns how many were removed.
func (s *Session) DeleteSelection() (int, error) {
	sel := s.multiSelection()
	if len(sel) == 0 {
		return 0, fmt.Errorf("%w: empty selection", ErrNoTarget)
	}
	if len(sel) == 1 {
		return 1, s.Delete(sel[0])
	}
	dels := make([]command.Command, 0, len(sel))
	for _, h := range sel {
		if s.heldByAnyHand(h) {
			return 0, fmt.Errorf("%w: %s is held", ErrBusy, h)
		}
		dels = append(dels, command.NewDelete(s.world, h))
	}
	s.commit(command.NewGroup(fmt.Sprintf("delete %d objects", len(dels)), dels...))
	return len(dels), nil
}

// Cancel abandons hand's gesture. Its effects are reverted and entities it
// spawned are destroyed; nothing reaches the ledger.
func (s *Session) Cancel(hand Hand) {
	g := s.hands[hand]
	if g == nil {
		return
	}
	s.hands[hand] = nil
	if s.two != nil && g.holds(s.two.target) {
		s.exitTwoHand(hand, false)
		return
	}
	if g.pending == nil {
		return
	}
	g.pending.Undo()
	for _, h := range g.created {
		s.world.Destroy(h)
	}
	s.log.Debug("gesture cancelled", slog.String("hand", hand.String()), slog.String("kind", g.pending.Kind().String()))
}

// Busy reports whether either hand is in a gesture.
func (s *Session) Busy() bool { return s.hands[Left] != nil || s.hands[Right] != nil }

// Undo reverts the last committed command. It is refused while a gesture is
// in progress so the held entities stay consistent with their pending command.
func (s *Session) Undo() bool {
	if s.Busy() {
		s.log.Debug("undo refused during gesture")
		return false
	}
	return s.ledger.Undo()
}

// Redo re-applies the last undone command; refused during a gesture.
func (s *Session) Redo() bool {
	if s.Busy() {
		s.log.Debug("redo refused during gesture")
		return false
	}
	return s.ledger.Redo()
}

// Reset cancels both hands and clears the ledger, as on scene reload.
func (s *Session) Reset() {
	s.Cancel(Left)
	s.Cancel(Right)
	s.ledger.Clear()
}

// Holding lists what hand currently holds.
func (s *Session) Holding(hand Hand) []scene.Handle {
	g := s.hands[hand]
	if g == nil {
		return nil
	}
	out := make([]scene.Handle, len(g.held))
	for i, e := range g.held {
		out[i] = e.entity
	}
	return out
}

// Pending returns hand's uncommitted command, if any.
func (s *Session) Pending(hand Hand) command.Command {
	if g := s.hands[hand]; g != nil {
		return g.pending
	}
	return nil
}

// TwoHanded reports whether both hands are scaling one entity.
func (s *Session) TwoHanded() bool { return s.two != nil }
