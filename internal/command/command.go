/*
 * Copyright (c) 2025 by Alexander Drost, Oldenburg, Germany.
 * This file is licensed to you under the Apache License, Version 2.0 (the "License"); you may not use this file except in compliance with the License.  You may obtain a copy of the License at
 *   http://www.apache.org/licenses/LICENSE-2.0
 * Unless required by applicable law or agreed to in writing, software distributed under the License is distributed on an
 * "AS IS" BASIS, WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.  See the License for the specific language governing permissions and limitations under the License.
 */

// Package command implements the reversible editing operations recorded by
// the history ledger: create, delete, duplicate, move, scale, grab and their
// batch forms.
//
// Every command implements Execute, Undo and Dispose. Commands that own no
// entity release nothing on Dispose, but the call still ends their lifetime:
// any further call panics with ErrDisposed.
//
// Commands tolerate targets that disappeared behind their back. A stale
// handle turns the affected step into a no-op.
package command

import (
	"errors"
	"fmt"
	"log/slog"

	"github.com/go-gl/mathgl/mgl64"

	applog "levelforge/internal/log"
	"levelforge/internal/scene"
	"levelforge/internal/spatial"
)

var (
	// ErrDisposed is the panic value (wrapped) raised when a disposed command is used.
	ErrDisposed = errors.New("command used after dispose")
	// ErrLengthMismatch rejects batch updates whose pose list does not line up
	// with the command's entries.
	ErrLengthMismatch = errors.New("batch length mismatch")
)

// Spawner creates, destroys, shows and hides entities.
type Spawner interface {
	Instantiate(prototype string, pose spatial.Pose) (scene.Handle, error)
	Clone(src scene.Handle, pose spatial.Pose) (scene.Handle, error)
	Destroy(h scene.Handle)
	SetActive(h scene.Handle, active bool) bool
	Active(h scene.Handle) bool
}

// Manipulable reads and writes entity placement.
type Manipulable interface {
	Alive(h scene.Handle) bool
	Pose(h scene.Handle) (spatial.Pose, bool)
	SetPose(h scene.Handle, p spatial.Pose) bool
	Scale(h scene.Handle) (mgl64.Vec3, bool)
	SetScale(h scene.Handle, s mgl64.Vec3) bool
}

// World is everything a command may touch. *scene.World satisfies it.
type World interface {
	Spawner
	Manipulable
}

// Command is a reversible unit of work.
type Command interface {
	Execute()
	Undo()
	// Dispose ends the command's lifetime and releases what it owns.
	Dispose()
	Kind() Kind
	Label() string
}

// Kind tags the command variant.
type Kind int

const (
	KindCreate Kind = iota + 1
	KindDelete
	KindDuplicate
	KindCreateAndMove
	KindMove
	KindScale
	KindGrab
	KindBatchMove
	KindBatchDuplicate
	KindGroup
)

var kindNames = map[Kind]string{
	KindCreate:         "create",
	KindDelete:         "delete",
	KindDuplicate:      "duplicate",
	KindCreateAndMove:  "create-and-move",
	KindMove:           "move",
	KindScale:          "scale",
	KindGrab:           "grab",
	KindBatchMove:      "batch-move",
	KindBatchDuplicate: "batch-duplicate",
	KindGroup:          "group",
}

func (k Kind) String() string {
	if s, ok := kindNames[k]; ok {
		return s
	}
	return fmt.Sprintf("kind(%d)", int(k))
}

// base carries the variant tag, the display label and the disposed flag.
type base struct {
	kind     Kind
	label    string
	disposed bool
}

func (b *base) Kind() Kind { return b.kind }

func (b *base) Label() string {
	if b.label != "" {
		return b.label
	}
	return b.kind.String()
}

// SetLabel overrides the label shown in undo/redo menus.
func (b *base) SetLabel(s string) { b.label = s }

// Disposed reports whether Dispose already ran.
func (b *base) Disposed() bool { return b.disposed }

func (b *base) live(op string) {
	if b.disposed {
		panic(fmt.Errorf("%s %s: %w", b.kind, op, ErrDisposed))
	}
}

func (b *base) endLife() {
	b.live("Dispose")
	b.disposed = true
}

func logger() *slog.Logger { return applog.WithComponent("command") }

var (
	_ Command = (*Create)(nil)
	_ Command = (*Delete)(nil)
	_ Command = (*Duplicate)(nil)
	_ Command = (*CreateAndMove)(nil)
	_ Command = (*Move)(nil)
	_ Command = (*Scale)(nil)
	_ Command = (*Grab)(nil)
	_ Command = (*BatchMove)(nil)
	_ Command = (*BatchDuplicate)(nil)
	_ Command = (*Group)(nil)
)
