/*
 * Copyright (c) 2025 by Alexander Drost, Oldenburg, Germany.
 * This file is licensed to you under the Apache License, Version 2.0 (the "License"); you may not use this file except in compliance with the License.  You may obtain a copy of the License at
 *   http://www.apache.org/licenses/LICENSE-2.0
 * Unless required by applicable law or agreed to in writing, software distributed under the License is distributed on an
 * "AS IS" BASIS, WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.  See the License for the specific language governing permissions and limitations under the License.
 */

package scene

// Selection is an ordered set of handles. It serves the multi-selection
// query the manipulation session reads.
type Selection struct {
	world *World
	items []Handle
}

// NewSelection creates an empty selection over w. w is used to filter out
// stale handles on read; a nil world returns items unfiltered.
func NewSelection(w *World) *Selection { return &Selection{world: w} }

func (s *Selection) index(h Handle) int {
	for i, it := range s.items {
		if it == h {
			return i
		}
	}
	return -1
}

// Add appends h if not already selected.
func (s *Selection) Add(h Handle) {
	if h.IsNil() || s.index(h) >= 0 {
		return
	}
	s.items = append(s.items, h)
}

// Remove drops h from the selection.
func (s *Selection) Remove(h Handle) {
	if i := s.index(h); i >= 0 {
		s.items = append(s.items[:i], s.items[i+1:]...)
	}
}

// Set replaces the selection.
func (s *Selection) Set(hs ...Handle) {
	s.items = s.items[:0]
	for _, h := range hs {
		s.Add(h)
	}
}

func (s *Selection) Clear() { s.items = nil }

func (s *Selection) Contains(h Handle) bool { return s.index(h) >= 0 }

// GetMultiSelection returns the selected handles that are still alive and
// shown, in selection order.
func (s *Selection) GetMultiSelection() []Handle {
	out := make([]Handle, 0, len(s.items))
	for _, h := range s.items {
		if s.world != nil && !s.world.Active(h) {
			continue
		}
		out = append(out, h)
	}
	return out
}
