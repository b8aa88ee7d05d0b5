/*
 * Copyright (c) 2025 by Alexander Drost, Oldenburg, Germany.
 * This file is licensed to you under the Apache License, Version 2.0 (the "License"); you may not use this file except in compliance with the License.  You may obtain a copy of the License at
 *   http://www.apache.org/licenses/LICENSE-2.0
 * Unless required by applicable law or agreed to in writing, software distributed under the License is distributed on an
 * "AS IS" BASIS, WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.  See the License for the specific language governing permissions and limitations under the License.
 */

package scene

import (
	"fmt"
	"sort"

	"github.com/go-gl/mathgl/mgl64"

	"levelforge/internal/catalog"
	"levelforge/internal/spatial"
)

type slot struct {
	generation uint32
	alive      bool
	active     bool
	prototype  string
	name       string
	pose       spatial.Pose
	scale      mgl64.Vec3
}

// World is a generational arena of editable entities. It implements the
// spawner and manipulable capabilities the commands consume.
// It is not safe for concurrent use; the editor drives it from one update loop.
type World struct {
	slots   []slot
	free    []uint32
	catalog *catalog.Catalog
	alive   int
}

// NewWorld creates an empty world. A nil catalog accepts any prototype name
// with unit scale.
func NewWorld(c *catalog.Catalog) *World {
	return &World{catalog: c}
}

func (w *World) lookup(h Handle) *slot {
	if h.IsNil() {
		return nil
	}
	idx := h.Index()
	if int(idx) >= len(w.slots) {
		return nil
	}
	s := &w.slots[idx]
	if !s.alive || s.generation != h.Generation() {
		return nil
	}
	return s
}

func (w *World) allocate() Handle {
	if n := len(w.free); n > 0 {
		idx := w.free[n-1]
		w.free = w.free[:n-1]
		s := &w.slots[idx]
		s.alive = true
		w.alive++
		return newHandle(idx, s.generation)
	}
	idx := uint32(len(w.slots))
	w.slots = append(w.slots, slot{generation: 1, alive: true})
	w.alive++
	return newHandle(idx, 1)
}

// Instantiate creates an active entity from a catalog prototype at pose.
func (w *World) Instantiate(prototype string, pose spatial.Pose) (Handle, error) {
	scale := mgl64.Vec3{1, 1, 1}
	if w.catalog != nil {
		p, err := w.catalog.Lookup(prototype)
		if err != nil {
			return Nil, err
		}
		scale = p.DefaultScale()
	}
	h := w.allocate()
	s := w.lookup(h)
	s.active = true
	s.prototype = prototype
	s.pose = pose.Normalized()
	s.scale = scale
	return h, nil
}

// Clone creates an active copy of src at pose, carrying src's prototype and
// scale. It fails when src is stale.
func (w *World) Clone(src Handle, pose spatial.Pose) (Handle, error) {
	s := w.lookup(src)
	if s == nil {
		return Nil, fmt.Errorf("clone %s: stale handle", src)
	}
	proto, scale := s.prototype, s.scale
	h := w.allocate()
	d := w.lookup(h)
	d.active = true
	d.prototype = proto
	d.pose = pose.Normalized()
	d.scale = scale
	return h, nil
}

// Destroy frees the slot. Destroying a stale handle is a no-op.
func (w *World) Destroy(h Handle) {
	s := w.lookup(h)
	if s == nil {
		return
	}
	idx := h.Index()
	*s = slot{generation: s.generation + 1}
	if s.generation == 0 {
		s.generation = 1
	}
	w.free = append(w.free, idx)
	w.alive--
}

// Alive reports whether h refers to a live slot.
func (w *World) Alive(h Handle) bool { return w.lookup(h) != nil }

// SetActive shows or hides the entity. It reports false for stale handles.
func (w *World) SetActive(h Handle, active bool) bool {
	s := w.lookup(h)
	if s == nil {
		return false
	}
	s.active = active
	return true
}

// Active reports whether the entity exists and is shown.
func (w *World) Active(h Handle) bool {
	s := w.lookup(h)
	return s != nil && s.active
}

func (w *World) Pose(h Handle) (spatial.Pose, bool) {
	s := w.lookup(h)
	if s == nil {
		return spatial.Pose{}, false
	}
	return s.pose, true
}

func (w *World) SetPose(h Handle, p spatial.Pose) bool {
	s := w.lookup(h)
	if s == nil {
		return false
	}
	s.pose = p.Normalized()
	return true
}

func (w *World) Scale(h Handle) (mgl64.Vec3, bool) {
	s := w.lookup(h)
	if s == nil {
		return mgl64.Vec3{}, false
	}
	return s.scale, true
}

func (w *World) SetScale(h Handle, v mgl64.Vec3) bool {
	s := w.lookup(h)
	if s == nil {
		return false
	}
	s.scale = v
	return true
}

// Transform returns pose and scale together.
func (w *World) Transform(h Handle) (spatial.Transform, bool) {
	s := w.lookup(h)
	if s == nil {
		return spatial.Transform{}, false
	}
	return spatial.Transform{Pose: s.pose, Scale: s.scale}, true
}

// Prototype returns the prototype name the entity was created from.
func (w *World) Prototype(h Handle) (string, bool) {
	s := w.lookup(h)
	if s == nil {
		return "", false
	}
	return s.prototype, true
}

// SetName attaches a display name, used by scripts and CLI output.
func (w *World) SetName(h Handle, name string) bool {
	s := w.lookup(h)
	if s == nil {
		return false
	}
	s.name = name
	return true
}

// Name returns the display name, falling back to prototype + handle.
func (w *World) Name(h Handle) string {
	s := w.lookup(h)
	if s == nil {
		return h.String()
	}
	if s.name != "" {
		return s.name
	}
	return s.prototype + h.String()
}

// Len is the number of live slots, active or not.
func (w *World) Len() int { return w.alive }

// Entities lists live handles in slot order.
func (w *World) Entities() []Handle {
	out := make([]Handle, 0, w.alive)
	for i := range w.slots {
		s := &w.slots[i]
		if s.alive {
			out = append(out, newHandle(uint32(i), s.generation))
		}
	}
	return out
}

// ActiveEntities lists shown entities sorted by name.
func (w *World) ActiveEntities() []Handle {
	var out []Handle
	for _, h := range w.Entities() {
		if w.Active(h) {
			out = append(out, h)
		}
	}
	sort.SliceStable(out, func(i, j int) bool { return w.Name(out[i]) < w.Name(out[j]) })
	return out
}
