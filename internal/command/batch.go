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

	"levelforge/internal/scene"
	"levelforge/internal/spatial"
)

// moveRecord is one entry of a batch move.
type moveRecord struct {
	target scene.Handle
	before spatial.Pose
	after  spatial.Pose
	valid  bool
}

// BatchMove moves many entities as one ledger entry.
type BatchMove struct {
	base
	world   World
	records []moveRecord
	hasEnd  bool
}

// NewBatchMove captures the current pose of every target.
func NewBatchMove(w World, targets []scene.Handle) *BatchMove {
	c := &BatchMove{
		base:    base{kind: KindBatchMove, label: fmt.Sprintf("move %d objects", len(targets))},
		world:   w,
		records: make([]moveRecord, len(targets)),
	}
	for i, h := range targets {
		p, ok := w.Pose(h)
		c.records[i] = moveRecord{target: h, before: p, valid: ok}
	}
	return c
}

// SetEndTransforms sets the after pose of every entry, in target order. A
// list of the wrong length is rejected and nothing changes.
func (c *BatchMove) SetEndTransforms(poses []spatial.Pose) error {
	c.live("SetEndTransforms")
	if len(poses) != len(c.records) {
		return fmt.Errorf("%w: %d poses for %d objects", ErrLengthMismatch, len(poses), len(c.records))
	}
	for i := range c.records {
		c.records[i].after = poses[i]
	}
	c.hasEnd = true
	return nil
}

// CaptureEndTransforms reads the after poses from the world.
func (c *BatchMove) CaptureEndTransforms() {
	c.live("CaptureEndTransforms")
	for i := range c.records {
		r := &c.records[i]
		if p, ok := c.world.Pose(r.target); ok {
			r.after = p
		} else {
			r.after = r.before
		}
	}
	c.hasEnd = true
}

func (c *BatchMove) Execute() {
	c.live("Execute")
	if !c.hasEnd {
		c.CaptureEndTransforms()
	}
	for _, r := range c.records {
		if r.valid {
			c.world.SetPose(r.target, r.after)
		}
	}
}

func (c *BatchMove) Undo() {
	c.live("Undo")
	for _, r := range c.records {
		if r.valid {
			c.world.SetPose(r.target, r.before)
		}
	}
}

func (c *BatchMove) Dispose() { c.endLife() }

// Targets lists the moved entities in construction order.
func (c *BatchMove) Targets() []scene.Handle {
	out := make([]scene.Handle, len(c.records))
	for i, r := range c.records {
		out[i] = r.target
	}
	return out
}

// Changed reports whether any entry ends somewhere other than it started.
func (c *BatchMove) Changed() bool {
	if !c.hasEnd {
		return false
	}
	for _, r := range c.records {
		if r.valid && !r.before.ApproxEqual(r.after) {
			return true
		}
	}
	return false
}

// dupRecord is one entry of a batch duplicate.
type dupRecord struct {
	slot spawned
	pose spatial.Pose
}

// BatchDuplicate clones many entities as one ledger entry. Dispose destroys
// every copy.
type BatchDuplicate struct {
	base
	world   World
	records []dupRecord
}

// NewBatchDuplicate prepares one copy per source at the matching pose.
func NewBatchDuplicate(w World, sources []scene.Handle, poses []spatial.Pose) (*BatchDuplicate, error) {
	if len(sources) != len(poses) {
		return nil, fmt.Errorf("%w: %d poses for %d sources", ErrLengthMismatch, len(poses), len(sources))
	}
	c := &BatchDuplicate{
		base:    base{kind: KindBatchDuplicate, label: fmt.Sprintf("duplicate %d objects", len(sources))},
		world:   w,
		records: make([]dupRecord, len(sources)),
	}
	for i, src := range sources {
		c.records[i] = dupRecord{slot: newSpawned(w, FromEntity(src)), pose: poses[i]}
	}
	return c, nil
}

// UpdateTransforms sets the pose of every copy and moves the live ones. A
// list of the wrong length is rejected and nothing changes.
func (c *BatchDuplicate) UpdateTransforms(poses []spatial.Pose) error {
	c.live("UpdateTransforms")
	if len(poses) != len(c.records) {
		return fmt.Errorf("%w: %d poses for %d copies", ErrLengthMismatch, len(poses), len(c.records))
	}
	for i := range c.records {
		r := &c.records[i]
		r.pose = poses[i]
		r.slot.moveTo(c.world, r.pose)
	}
	return nil
}

func (c *BatchDuplicate) Execute() {
	c.live("Execute")
	for i := range c.records {
		r := &c.records[i]
		r.slot.show(c.world, r.pose)
	}
}

func (c *BatchDuplicate) Undo() {
	c.live("Undo")
	for i := range c.records {
		c.records[i].slot.hide(c.world)
	}
}

func (c *BatchDuplicate) Dispose() {
	c.endLife()
	for i := range c.records {
		c.records[i].slot.release(c.world)
	}
}

// Entities lists the created copies; entries not created yet are scene.Nil.
func (c *BatchDuplicate) Entities() []scene.Handle {
	out := make([]scene.Handle, len(c.records))
	for i, r := range c.records {
		out[i] = r.slot.entity
	}
	return out
}

// Sources lists the entities being copied.
func (c *BatchDuplicate) Sources() []scene.Handle {
	out := make([]scene.Handle, len(c.records))
	for i, r := range c.records {
		out[i] = r.slot.tpl.Source
	}
	return out
}

// Group runs child commands as one undo step: forward on Execute, in reverse
// on Undo. The group owns its children and disposes each of them once.
type Group struct {
	base
	children []Command
}

func NewGroup(label string, children ...Command) *Group {
	kept := make([]Command, 0, len(children))
	for _, ch := range children {
		if ch != nil {
			kept = append(kept, ch)
		}
	}
	return &Group{base: base{kind: KindGroup, label: label}, children: kept}
}

func (g *Group) Execute() {
	g.live("Execute")
	for _, ch := range g.children {
		ch.Execute()
	}
}

func (g *Group) Undo() {
	g.live("Undo")
	for i := len(g.children) - 1; i >= 0; i-- {
		g.children[i].Undo()
	}
}

func (g *Group) Dispose() {
	g.endLife()
	for _, ch := range g.children {
		ch.Dispose()
	}
}

func (g *Group) Len() int { return len(g.children) }
