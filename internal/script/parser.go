/*
 * Copyright (c) 2025 by Alexander Drost, Oldenburg, Germany.
 * This file is licensed to you under the Apache License, Version 2.0 (the "License"); you may not use this file except in compliance with the License.  You may obtain a copy of the License at
 *   http://www.apache.org/licenses/LICENSE-2.0
 * Unless required by applicable law or agreed to in writing, software distributed under the License is distributed on an
 * "AS IS" BASIS, WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.  See the License for the specific language governing permissions and limitations under the License.
 */

package script

import (
	"bufio"
	"fmt"
	"regexp"
	"strconv"
	"strings"

	"github.com/go-gl/mathgl/mgl64"

	"levelforge/internal/session"
)

// Statement patterns. Keywords are case-insensitive; names and prototypes are not.
var (
	reSpawn     = regexp.MustCompile(`^(?i:spawn)\s+(\S+)\s+(?i:as)\s+(\S+)\s+(?i:at)\s+(\S+)\s+(\S+)\s+(\S+)(?:\s+(?i:yaw)\s+(\S+))?$`)
	reDrag      = regexp.MustCompile(`^(?i:drag)\s+(\S+)\s+(\S+)\s+(?i:as)\s+(\S+)\s+(?i:at)\s+(\S+)\s+(\S+)\s+(\S+)$`)
	reSelect    = regexp.MustCompile(`^(?i:select)\s+(.+)$`)
	reGrab      = regexp.MustCompile(`^(?i:grab)\s+(\S+)\s+(\S+)\s+(?i:at)\s+(\S+)\s+(\S+)\s+(\S+)$`)
	reMove      = regexp.MustCompile(`^(?i:move)\s+(\S+)\s+(\S+)\s+(\S+)\s+(\S+)(?:\s+(?i:yaw)\s+(\S+))?$`)
	reDuplicate = regexp.MustCompile(`^(?i:duplicate)\s+(\S+)(?:\s+(\S+))?\s+(?i:as)\s+(\S+)\s+(?i:at)\s+(\S+)\s+(\S+)\s+(\S+)$`)
	reHandOnly  = regexp.MustCompile(`^(?i:(release|cancel))\s+(\S+)$`)
	reDelete    = regexp.MustCompile(`^(?i:delete)\s+(\S+)$`)
	reHistory   = regexp.MustCompile(`^(?i:history)\s+(\S+)$`)
	reExpectN   = regexp.MustCompile(`^(?i:expect)\s+(?i:(undo|redo|count))\s+(\S+)$`)
	reExpectPos = regexp.MustCompile(`^(?i:expect)\s+(?i:pos)\s+(\S+)\s+(\S+)\s+(\S+)\s+(\S+)$`)
	reExpectSc  = regexp.MustCompile(`^(?i:expect)\s+(?i:scale)\s+(\S+)\s+(\S+)$`)
	reName      = regexp.MustCompile(`^[A-Za-z_][A-Za-z0-9_.\-]*$`)
)

// bare keyword statements
var keywords = map[string]Op{
	"deselect": OpDeselect,
	"undo":     OpUndo,
	"redo":     OpRedo,
	"clear":    OpClear,
	"print":    OpPrint,
}

// Parse parses gesture script text into steps. All errors are collected; a
// script with errors should not be run.
//
// One statement per line. Blank lines and lines starting with '#' or ';'
// are ignored, as is anything after a '#' that follows whitespace.
//
//	spawn <proto> as <name> at x y z [yaw deg]
//	drag <hand> <proto> as <name> at x y z
//	select <name> [<name>...]      (space or comma separated)
//	deselect
//	grab <hand> <name> at x y z
//	move <hand> x y z [yaw deg]
//	release <hand>
//	duplicate <hand> [<source>] as <name>[,<name>...] at x y z
//	delete <name> | delete selection
//	cancel <hand>
//	undo | redo | clear | print
//	history <n>
//	expect undo|redo|count <n>
//	expect pos <name> x y z
//	expect scale <name> <s>
func Parse(input string) (Script, []Error) {
	s := Script{}
	var errs []Error

	scanner := bufio.NewScanner(strings.NewReader(input))
	lineNo := 0
	for scanner.Scan() {
		lineNo++
		raw := strings.TrimRight(scanner.Text(), "\r\n")
		if i := strings.Index(raw, " #"); i >= 0 {
			raw = raw[:i]
		}
		indent := len(raw) - len(strings.TrimLeft(raw, " \t"))
		trim := strings.TrimSpace(raw)
		if trim == "" || strings.HasPrefix(trim, "#") || strings.HasPrefix(trim, ";") {
			continue
		}

		p := lineParser{line: trim, lineNo: lineNo, indent: indent}
		step, ok := p.parse()
		if !ok {
			errs = append(errs, p.errs...)
			continue
		}
		step.LineNo = lineNo
		s.Steps = append(s.Steps, step)
	}
	if err := scanner.Err(); err != nil {
		errs = append(errs, Error{Line: lineNo, Column: 1, Message: err.Error()})
	}
	return s, errs
}

// lineParser parses one statement and tracks columns for error reporting.
type lineParser struct {
	line   string
	lineNo int
	indent int
	idx    []int // submatch indexes of the matched pattern
	errs   []Error
}

func (p *lineParser) fail(col int, format string, args ...any) {
	p.errs = append(p.errs, Error{Line: p.lineNo, Column: p.indent + col, Message: fmt.Sprintf(format, args...)})
}

func (p *lineParser) match(re *regexp.Regexp) bool {
	p.idx = re.FindStringSubmatchIndex(p.line)
	return p.idx != nil
}

// group returns submatch n and its 1-based column; ok is false when the
// optional group did not participate.
func (p *lineParser) group(n int) (string, int, bool) {
	a, b := p.idx[2*n], p.idx[2*n+1]
	if a < 0 {
		return "", 0, false
	}
	return p.line[a:b], a + 1, true
}

func (p *lineParser) str(n int) string {
	v, _, _ := p.group(n)
	return v
}

func (p *lineParser) float(n int) float64 {
	v, col, ok := p.group(n)
	if !ok {
		return 0
	}
	f, err := strconv.ParseFloat(v, 64)
	if err != nil {
		p.fail(col, "expected a number, got %q", v)
	}
	return f
}

func (p *lineParser) integer(n int) int {
	v, col, _ := p.group(n)
	i, err := strconv.Atoi(v)
	if err != nil {
		p.fail(col, "expected an integer, got %q", v)
	}
	return i
}

func (p *lineParser) vec(first int) mgl64.Vec3 {
	return mgl64.Vec3{p.float(first), p.float(first + 1), p.float(first + 2)}
}

func (p *lineParser) hand(n int) session.Hand {
	v, col, _ := p.group(n)
	h, err := session.ParseHand(v)
	if err != nil {
		p.fail(col, "%v", err)
	}
	return h
}

func (p *lineParser) name(n int) string {
	v, col, _ := p.group(n)
	if !reName.MatchString(v) {
		p.fail(col, "invalid name %q", v)
	}
	return v
}

// names splits a name list on commas and spaces.
func (p *lineParser) names(n int) []string {
	v, col, _ := p.group(n)
	var out []string
	start := -1
	for i := 0; i <= len(v); i++ {
		sep := i == len(v) || v[i] == ',' || v[i] == ' ' || v[i] == '\t'
		switch {
		case !sep && start < 0:
			start = i
		case sep && start >= 0:
			tok := v[start:i]
			if !reName.MatchString(tok) {
				p.fail(col+start, "invalid name %q", tok)
			}
			out = append(out, tok)
			start = -1
		}
	}
	if len(out) == 0 {
		p.fail(col, "expected at least one name")
	}
	return out
}

func (p *lineParser) parse() (Step, bool) {
	var st Step
	switch {
	case p.match(reSpawn):
		st = Step{Op: OpSpawn, Prototype: p.str(1), Names: []string{p.name(2)}, Position: p.vec(3), Yaw: p.float(6)}
	case p.match(reDrag):
		st = Step{Op: OpDrag, Hand: p.hand(1), Prototype: p.str(2), Names: []string{p.name(3)}, Position: p.vec(4)}
	case p.match(reGrab):
		st = Step{Op: OpGrab, Hand: p.hand(1), Names: []string{p.name(2)}, Position: p.vec(3)}
	case p.match(reMove):
		st = Step{Op: OpMove, Hand: p.hand(1), Position: p.vec(2), Yaw: p.float(5)}
	case p.match(reDuplicate):
		st = Step{Op: OpDuplicate, Hand: p.hand(1), Names: p.names(3), Position: p.vec(4)}
		if _, _, ok := p.group(2); ok {
			st.Source = p.name(2)
		}
	case p.match(reHandOnly):
		op := OpRelease
		if strings.EqualFold(p.str(1), "cancel") {
			op = OpCancel
		}
		st = Step{Op: op, Hand: p.hand(2)}
	case p.match(reDelete):
		if strings.EqualFold(p.str(1), "selection") {
			st = Step{Op: OpDeleteSelection}
		} else {
			st = Step{Op: OpDelete, Names: []string{p.name(1)}}
		}
	case p.match(reHistory):
		st = Step{Op: OpHistory, N: p.integer(1)}
		if st.N < 1 && len(p.errs) == 0 {
			_, col, _ := p.group(1)
			p.fail(col, "history size must be at least 1")
		}
	case p.match(reExpectN):
		op := map[string]Op{"undo": OpExpectUndo, "redo": OpExpectRedo, "count": OpExpectCount}[strings.ToLower(p.str(1))]
		st = Step{Op: op, N: p.integer(2)}
	case p.match(reExpectPos):
		st = Step{Op: OpExpectPos, Names: []string{p.name(1)}, Position: p.vec(2)}
	case p.match(reExpectSc):
		st = Step{Op: OpExpectScale, Names: []string{p.name(1)}, Value: p.float(2)}
	case p.match(reSelect):
		st = Step{Op: OpSelect, Names: p.names(1)}
	default:
		word := strings.ToLower(strings.Fields(p.line)[0])
		if op, ok := keywords[word]; ok && len(strings.Fields(p.line)) == 1 {
			return Step{Op: op}, true
		}
		if _, ok := keywords[word]; ok {
			p.fail(len(word)+2, "%s takes no arguments", word)
		} else if isStatement(word) {
			p.fail(1, "malformed %s statement", word)
		} else {
			p.fail(1, "unknown statement %q", word)
		}
		return Step{}, false
	}
	return st, len(p.errs) == 0
}

func isStatement(word string) bool {
	switch word {
	case "spawn", "drag", "select", "grab", "move", "release", "duplicate", "delete", "cancel", "history", "expect":
		return true
	}
	return false
}
