/*
 * Copyright (c) 2025 by Alexander Drost, Oldenburg, Germany.
 * This file is licensed to you under the Apache License, Version 2.0 (the "License"); you may not use this file except in compliance with the License.  You may obtain a copy of the License at
 *   http://www.apache.org/licenses/LICENSE-2.0
 * Unless required by applicable law or agreed to in writing, software distributed under the License is distributed on an
 * "AS IS" BASIS, WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.  See the License for the specific language governing permissions and limitations under the License.
 */

package script

import (
	"fmt"

	"github.com/go-gl/mathgl/mgl64"

	"levelforge/internal/session"
)

// Script is a parsed gesture script: one step per statement line.
type Script struct {
	Steps []Step
}

// Op is the statement kind of a step.
type Op int

const (
	OpUnknown Op = iota
	OpSpawn
	OpDrag
	OpSelect
	OpDeselect
	OpGrab
	OpMove
	OpRelease
	OpDuplicate
	OpDelete
	OpDeleteSelection
	OpCancel
	OpUndo
	OpRedo
	OpClear
	OpHistory
	OpPrint
	OpExpectUndo
	OpExpectRedo
	OpExpectCount
	OpExpectPos
	OpExpectScale
)

var opNames = map[Op]string{
	OpSpawn:           "spawn",
	OpDrag:            "drag",
	OpSelect:          "select",
	OpDeselect:        "deselect",
	OpGrab:            "grab",
	OpMove:            "move",
	OpRelease:         "release",
	OpDuplicate:       "duplicate",
	OpDelete:          "delete",
	OpDeleteSelection: "delete selection",
	OpCancel:          "cancel",
	OpUndo:            "undo",
	OpRedo:            "redo",
	OpClear:           "clear",
	OpHistory:         "history",
	OpPrint:           "print",
	OpExpectUndo:      "expect undo",
	OpExpectRedo:      "expect redo",
	OpExpectCount:     "expect count",
	OpExpectPos:       "expect pos",
	OpExpectScale:     "expect scale",
}

func (o Op) String() string {
	if s, ok := opNames[o]; ok {
		return s
	}
	return fmt.Sprintf("op(%d)", int(o))
}

// Step is one statement. Only the fields its Op uses are set.
type Step struct {
	Op        Op
	Hand      session.Hand
	Prototype string
	Source    string   // duplicate source when the hand is empty
	Names     []string // entity names: spawn/drag/grab/delete/expect take one, select and duplicate many
	Position  mgl64.Vec3
	Yaw       float64
	N         int     // history size or expected count
	Value     float64 // expected uniform scale
	LineNo    int     // 1-based line number in the source
}

// Error represents a parse error with position context.
type Error struct {
	Line    int
	Column  int
	Message string
}

func (e Error) Error() string { return fmt.Sprintf("%d:%d: %s", e.Line, e.Column, e.Message) }
