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

	"github.com/go-gl/mathgl/mgl64"

	"levelforge/internal/scene"
	"levelforge/internal/spatial"
)

// poseChange is the before/after record shared by Move and Grab.
// The after pose is resolved from the world at first Execute when no end
// transform was set.
type poseChange struct {
	world  World
	target scene.Handle
	before spatial.Pose
	after  spatial.Pose
	valid  bool
	hasEnd bool
}

func newPoseChange(w World, target scene.Handle) poseChange {
	p, ok := w.Pose(target)
	return poseChange{world: w, target: target, before: p, valid: ok}
}

func (c *poseChange) apply() {
	if !c.valid {
		return
	}
	if !c.hasEnd {
		p, ok := c.world.Pose(c.target)
		if !ok {
			return
		}
		c.after, c.hasEnd = p, true
	}
	c.world.SetPose(c.target, c.after)
}

func (c *poseChange) revert() {
	if c.valid {
		c.world.SetPose(c.target, c.before)
	}
}

func (c *poseChange) setEnd(p spatial.Pose) {
	c.after, c.hasEnd = p, true
}

// Move repositions one entity.
type Move struct {
	base
	poseChange
}

// NewMove captures the target's current pose as the before state.
func NewMove(w World, target scene.Handle) *Move {
	return &Move{
		base:       base{kind: KindMove, label: fmt.Sprintf("move %s", target)},
		poseChange: newPoseChange(w, target),
	}
}

func (c *Move) Execute() { c.live("Execute"); c.apply() }
func (c *Move) Undo()    { c.live("Undo"); c.revert() }
func (c *Move) Dispose() { c.endLife() }

// SetEndTransform records the pose reached when the gesture ended.
func (c *Move) SetEndTransform(p spatial.Pose) { c.live("SetEndTransform"); c.setEnd(p) }

func (c *Move) Target() scene.Handle     { return c.target }
func (c *Move) BeforePose() spatial.Pose { return c.before }
func (c *Move) AfterPose() spatial.Pose  { return c.after }
func (c *Move) Changed() bool            { return c.hasEnd && !c.before.ApproxEqual(c.after) }

// Grab is a move made by a hand holding the entity: before is the pose at
// grab start, after the pose at release.
type Grab struct {
	base
	poseChange
}

func NewGrab(w World, target scene.Handle) *Grab {
	return &Grab{
		base:       base{kind: KindGrab, label: fmt.Sprintf("grab %s", target)},
		poseChange: newPoseChange(w, target),
	}
}

func (c *Grab) Execute() { c.live("Execute"); c.apply() }
func (c *Grab) Undo()    { c.live("Undo"); c.revert() }
func (c *Grab) Dispose() { c.endLife() }

// SetEndTransform records the release pose.
func (c *Grab) SetEndTransform(p spatial.Pose) { c.live("SetEndTransform"); c.setEnd(p) }

func (c *Grab) Target() scene.Handle     { return c.target }
func (c *Grab) BeforePose() spatial.Pose { return c.before }
func (c *Grab) AfterPose() spatial.Pose  { return c.after }
func (c *Grab) Changed() bool            { return c.hasEnd && !c.before.ApproxEqual(c.after) }

// Scale changes an entity's scale and pose together.
type Scale struct {
	base
	world  World
	target scene.Handle
	before spatial.Transform
	after  spatial.Transform
	valid  bool
	hasEnd bool
}

// NewScale captures the target's current pose and scale.
func NewScale(w World, target scene.Handle) *Scale {
	c := &Scale{
		base:   base{kind: KindScale, label: fmt.Sprintf("scale %s", target)},
		world:  w,
		target: target,
	}
	p, okP := w.Pose(target)
	s, okS := w.Scale(target)
	c.before = spatial.Transform{Pose: p, Scale: s}
	c.valid = okP && okS
	return c
}

func (c *Scale) Execute() {
	c.live("Execute")
	if !c.valid {
		return
	}
	if !c.hasEnd {
		p, okP := c.world.Pose(c.target)
		s, okS := c.world.Scale(c.target)
		if !okP || !okS {
			return
		}
		c.after, c.hasEnd = spatial.Transform{Pose: p, Scale: s}, true
	}
	c.world.SetPose(c.target, c.after.Pose)
	c.world.SetScale(c.target, c.after.Scale)
}

func (c *Scale) Undo() {
	c.live("Undo")
	if !c.valid {
		return
	}
	c.world.SetPose(c.target, c.before.Pose)
	c.world.SetScale(c.target, c.before.Scale)
}

func (c *Scale) Dispose() { c.endLife() }

// SetEndState records the pose and scale reached when the gesture ended.
func (c *Scale) SetEndState(p spatial.Pose, s mgl64.Vec3) {
	c.live("SetEndState")
	c.after, c.hasEnd = spatial.Transform{Pose: p, Scale: s}, true
}

func (c *Scale) Target() scene.Handle      { return c.target }
func (c *Scale) Before() spatial.Transform { return c.before }
func (c *Scale) After() spatial.Transform  { return c.after }
func (c *Scale) BaseScale() mgl64.Vec3     { return c.before.Scale }
func (c *Scale) Changed() bool {
	return c.hasEnd && (!c.before.Pose.ApproxEqual(c.after.Pose) || !c.before.Scale.ApproxEqualThreshold(c.after.Scale, 1e-9))
}
