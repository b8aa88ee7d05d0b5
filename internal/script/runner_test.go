/*
 * Copyright (c) 2025 by Alexander Drost, Oldenburg, Germany.
 * This file is licensed to you under the Apache License, Version 2.0 (the "License"); you may not use this file except in compliance with the License.  You may obtain a copy of the License at
 *   http://www.apache.org/licenses/LICENSE-2.0
 * Unless required by applicable law or agreed to in writing, software distributed under the License is distributed on an
 * "AS IS" BASIS, WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.  See the License for the specific language governing permissions and limitations under the License.
 */

package script

import (
	"bytes"
	"context"
	"errors"
	"os"
	"strings"
	"testing"

	"levelforge/internal/catalog"
	"levelforge/internal/history"
	applog "levelforge/internal/log"
	"levelforge/internal/scene"
	"levelforge/internal/session"
)

func newRunner(t *testing.T) (*Runner, *bytes.Buffer) {
	t.Helper()
	w := scene.NewWorld(catalog.Builtin())
	l := history.New(history.Options{MaxSize: 30, Logger: applog.Discard()})
	sel := scene.NewSelection(w)
	s := session.New(w, l, sel, session.Options{MinScale: 0.05, MaxScale: 20, Logger: applog.Discard()})
	var out bytes.Buffer
	r := NewRunner(w, l, sel, s, &out)
	r.log = applog.Discard()
	return r, &out
}

func mustParse(t *testing.T, src string) Script {
	t.Helper()
	s, errs := Parse(src)
	if len(errs) != 0 {
		t.Fatalf("parse errors: %+v", errs)
	}
	return s
}

func TestRunWorkshopScript(t *testing.T) {
	data, err := os.ReadFile("testdata/workshop.lvf")
	if err != nil {
		t.Fatalf("read script: %v", err)
	}
	r, out := newRunner(t)
	if err := r.Run(context.Background(), mustParse(t, string(data))); err != nil {
		t.Fatalf("Run: %v", err)
	}
	text := out.String()
	for _, want := range []string{"history: undo=6 redo=1 max=30", "box", "copy", "pos=0 3 5", "history: undo=2 redo=1 max=2"} {
		if !strings.Contains(text, want) {
			t.Fatalf("print output lacks %q:\n%s", want, text)
		}
	}
	if _, ok := r.Lookup("copy"); !ok {
		t.Fatalf("copy should be bound")
	}
}

func TestFailedExpectationReportsLine(t *testing.T) {
	r, _ := newRunner(t)
	err := r.Run(context.Background(), mustParse(t, "spawn cube as a at 0 0 0\n\nexpect undo 3\n"))
	if !errors.Is(err, ErrExpectation) {
		t.Fatalf("err = %v, want ErrExpectation", err)
	}
	if !strings.HasPrefix(err.Error(), "line 3: expect undo:") {
		t.Fatalf("error should name the line: %v", err)
	}
	if r.Line != 3 {
		t.Fatalf("Line = %d, want 3", r.Line)
	}
}

func TestUnknownNameFails(t *testing.T) {
	r, _ := newRunner(t)
	err := r.Run(context.Background(), mustParse(t, "grab left ghost at 0 0 0"))
	if !errors.Is(err, ErrUnknownName) {
		t.Fatalf("err = %v, want ErrUnknownName", err)
	}
}

func TestSessionErrorsSurface(t *testing.T) {
	r, _ := newRunner(t)
	src := "spawn cube as a at 0 0 0\ngrab left a at 0 0 0\ndelete a\n"
	if err := r.Run(context.Background(), mustParse(t, src)); !errors.Is(err, session.ErrBusy) {
		t.Fatalf("err = %v, want ErrBusy", err)
	}
}

func TestCancelledContextStops(t *testing.T) {
	r, _ := newRunner(t)
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	if err := r.Run(ctx, mustParse(t, "spawn cube as a at 0 0 0")); !errors.Is(err, context.Canceled) {
		t.Fatalf("err = %v, want context.Canceled", err)
	}
	if r.ledger.UndoCount() != 0 {
		t.Fatalf("no step may run after cancellation")
	}
}

func TestDragThenCancelLeavesNothing(t *testing.T) {
	r, _ := newRunner(t)
	src := "drag left lamp as l at 0 1 0\nmove left 4 1 0\ncancel left\nexpect count 0\nexpect undo 0\n"
	if err := r.Run(context.Background(), mustParse(t, src)); err != nil {
		t.Fatalf("Run: %v", err)
	}
}
