/*
 * Copyright (c) 2025 by Alexander Drost, Oldenburg, Germany.
 * This file is licensed to you under the Apache License, Version 2.0 (the "License"); you may not use this file except in compliance with the License.  You may obtain a copy of the License at
 *   http://www.apache.org/licenses/LICENSE-2.0
 * Unless required by applicable law or agreed to in writing, software distributed under the License is distributed on an
 * "AS IS" BASIS, WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.  See the License for the specific language governing permissions and limitations under the License.
 */

package command

import (
	"fmt"
	"log/slog"

	"github.com/go-gl/mathgl/mgl64"

	"levelforge/internal/scene"
	"levelforge/internal/spatial"
)

// Template names what a creating command instantiates: a catalog prototype
// or an existing entity.
type Template struct {
	Prototype string
	Source    scene.Handle
}

// FromPrototype returns a template for a catalog prototype.
func FromPrototype(name string) Template { return Template{Prototype: name} }

// FromEntity returns a template that clones an existing entity.
func FromEntity(h scene.Handle) Template { return Template{Source: h} }

func (t Template) String() string {
	if !t.Source.IsNil() {
		return t.Source.String()
	}
	return t.Prototype
}

// spawned is the entity slot owned by a creating command. The entity is
// created at most once; afterwards show only reactivates and reposes it.
type spawned struct {
	tpl       Template
	scale     mgl64.Vec3
	keepScale bool
	entity    scene.Handle
	created   bool
}

func newSpawned(w World, tpl Template) spawned {
	s := spawned{tpl: tpl}
	if !tpl.Source.IsNil() {
		// duplicates carry the source scale explicitly, prototype defaults do not apply
		if sc, ok := w.Scale(tpl.Source); ok {
			s.scale, s.keepScale = sc, true
		}
	}
	return s
}

func (s *spawned) show(w World, pose spatial.Pose) {
	if !s.created {
		var (
			h   scene.Handle
			err error
		)
		if s.tpl.Source.IsNil() {
			h, err = w.Instantiate(s.tpl.Prototype, pose)
		} else {
			h, err = w.Clone(s.tpl.Source, pose)
		}
		if err != nil {
			logger().Warn("instantiate skipped", slog.String("template", s.tpl.String()), slog.Any("err", err))
			return
		}
		if s.keepScale {
			w.SetScale(h, s.scale)
		}
		s.entity, s.created = h, true
		return
	}
	if !w.Alive(s.entity) {
		return
	}
	w.SetActive(s.entity, true)
	w.SetPose(s.entity, pose)
}

func (s *spawned) hide(w World) {
	if s.created {
		w.SetActive(s.entity, false)
	}
}

func (s *spawned) moveTo(w World, pose spatial.Pose) {
	if s.created && w.Active(s.entity) {
		w.SetPose(s.entity, pose)
	}
}

// release destroys the entity for good, shown or hidden. Stale handles are
// ignored.
func (s *spawned) release(w World) {
	if s.created && w.Alive(s.entity) {
		w.Destroy(s.entity)
	}
}

// Create instantiates a prototype. Undo hides the entity, redo shows it again
// at the original pose, Dispose destroys it.
type Create struct {
	base
	world World
	pose  spatial.Pose
	slot  spawned
}

func NewCreate(w World, prototype string, pose spatial.Pose) *Create {
	return &Create{
		base:  base{kind: KindCreate, label: "create " + prototype},
		world: w,
		pose:  pose,
		slot:  newSpawned(w, FromPrototype(prototype)),
	}
}

func (c *Create) Execute() { c.live("Execute"); c.slot.show(c.world, c.pose) }
func (c *Create) Undo()    { c.live("Undo"); c.slot.hide(c.world) }
func (c *Create) Dispose() { c.endLife(); c.slot.release(c.world) }

// Entity returns the created entity, or scene.Nil before the first Execute.
func (c *Create) Entity() scene.Handle { return c.slot.entity }

// Duplicate clones an existing entity, keeping the source scale captured at
// construction.
type Duplicate struct {
	base
	world World
	pose  spatial.Pose
	slot  spawned
}

func NewDuplicate(w World, source scene.Handle, pose spatial.Pose) *Duplicate {
	return &Duplicate{
		base:  base{kind: KindDuplicate, label: fmt.Sprintf("duplicate %s", source)},
		world: w,
		pose:  pose,
		slot:  newSpawned(w, FromEntity(source)),
	}
}

func (c *Duplicate) Execute() { c.live("Execute"); c.slot.show(c.world, c.pose) }
func (c *Duplicate) Undo()    { c.live("Undo"); c.slot.hide(c.world) }
func (c *Duplicate) Dispose() { c.endLife(); c.slot.release(c.world) }

func (c *Duplicate) Entity() scene.Handle { return c.slot.entity }

// CreateAndMove spawns an entity and then tracks where it is dragged, so that
// "spawn, then drag into place" is one undo step. UpdateTransform may be
// called any number of times; redo restores the last pose given.
type CreateAndMove struct {
	base
	world World
	start spatial.Pose
	final spatial.Pose
	slot  spawned
}

func NewCreateAndMove(w World, tpl Template, pose spatial.Pose) *CreateAndMove {
	return &CreateAndMove{
		base:  base{kind: KindCreateAndMove, label: "create " + tpl.String()},
		world: w,
		start: pose,
		final: pose,
		slot:  newSpawned(w, tpl),
	}
}

func (c *CreateAndMove) Execute() { c.live("Execute"); c.slot.show(c.world, c.final) }
func (c *CreateAndMove) Undo()    { c.live("Undo"); c.slot.hide(c.world) }
func (c *CreateAndMove) Dispose() { c.endLife(); c.slot.release(c.world) }

// UpdateTransform records the final pose and moves the live entity there.
func (c *CreateAndMove) UpdateTransform(p spatial.Pose) {
	c.live("UpdateTransform")
	c.final = p
	c.slot.moveTo(c.world, p)
}

func (c *CreateAndMove) Entity() scene.Handle     { return c.slot.entity }
func (c *CreateAndMove) StartPose() spatial.Pose  { return c.start }
func (c *CreateAndMove) FinalPose() spatial.Pose  { return c.final }
func (c *CreateAndMove) FromEntity() scene.Handle { return c.slot.tpl.Source }

// Delete hides a pre-existing entity; Undo restores its previous active
// flag. Dispose destroys it permanently.
type Delete struct {
	base
	world     World
	target    scene.Handle
	applied   bool
	wasActive bool
}

func NewDelete(w World, target scene.Handle) *Delete {
	return &Delete{
		base:   base{kind: KindDelete, label: fmt.Sprintf("delete %s", target)},
		world:  w,
		target: target,
	}
}

func (c *Delete) Execute() {
	c.live("Execute")
	if c.applied || !c.world.Alive(c.target) {
		return
	}
	c.wasActive = c.world.Active(c.target)
	c.world.SetActive(c.target, false)
	c.applied = true
}

func (c *Delete) Undo() {
	c.live("Undo")
	if c.applied && c.world.SetActive(c.target, c.wasActive) {
		c.applied = false
	}
}

// Dispose destroys the target permanently, whether or not the delete is in
// effect.
func (c *Delete) Dispose() {
	c.endLife()
	if c.world.Alive(c.target) {
		c.world.Destroy(c.target)
	}
}

func (c *Delete) Target() scene.Handle { return c.target }
