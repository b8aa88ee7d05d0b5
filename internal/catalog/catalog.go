/*
 * Copyright (c) 2025 by Alexander Drost, Oldenburg, Germany.
 * This file is licensed to you under the Apache License, Version 2.0 (the "License"); you may not use this file except in compliance with the License.  You may obtain a copy of the License at
 *   http://www.apache.org/licenses/LICENSE-2.0
 * Unless required by applicable law or agreed to in writing, software distributed under the License is distributed on an
 * "AS IS" BASIS, WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.  See the License for the specific language governing permissions and limitations under the License.
 */

// Package catalog holds the prototype templates that Create commands spawn
// from. A catalog is a small YAML document validated against a JSON schema
// before it is accepted.
package catalog

import (
	"errors"
	"fmt"
	"log/slog"
	"os"
	"sort"
	"strings"

	"github.com/go-gl/mathgl/mgl64"
	gojsonschema "github.com/xeipuuv/gojsonschema"
	"gopkg.in/yaml.v3"

	applog "levelforge/internal/log"
)

var ErrUnknownPrototype = errors.New("unknown prototype")

// Prototype is a spawnable template. Scale is the default scale applied on
// instantiation; duplicates carry their source's scale instead.
type Prototype struct {
	Name        string     `yaml:"name"`
	Description string     `yaml:"description,omitempty"`
	Scale       [3]float64 `yaml:"scale,omitempty"`
	Tags        []string   `yaml:"tags,omitempty"`
}

// DefaultScale returns the prototype scale, or unit scale when unset.
func (p Prototype) DefaultScale() mgl64.Vec3 {
	if p.Scale == [3]float64{} {
		return mgl64.Vec3{1, 1, 1}
	}
	return mgl64.Vec3(p.Scale)
}

type document struct {
	Version    int         `yaml:"version"`
	Prototypes []Prototype `yaml:"prototypes"`
}

// Catalog is an immutable name -> prototype lookup.
type Catalog struct {
	byName map[string]Prototype
}

const schema = `{
  "$schema": "http://json-schema.org/draft-07/schema#",
  "type": "object",
  "required": ["prototypes"],
  "properties": {
    "version": {"type": "integer", "minimum": 1},
    "prototypes": {
      "type": "array",
      "minItems": 1,
      "items": {
        "type": "object",
        "required": ["name"],
        "properties": {
          "name": {"type": "string", "pattern": "^[a-z0-9][a-z0-9_\\-]*$"},
          "description": {"type": "string"},
          "scale": {
            "type": "array",
            "minItems": 3,
            "maxItems": 3,
            "items": {"type": "number", "exclusiveMinimum": 0}
          },
          "tags": {"type": "array", "items": {"type": "string"}}
        },
        "additionalProperties": false
      }
    }
  }
}`

// Builtin returns the catalog used when no catalog file is configured.
func Builtin() *Catalog {
	c, _ := New(
		Prototype{Name: "cube", Description: "unit cube"},
		Prototype{Name: "sphere", Description: "unit sphere"},
		Prototype{Name: "crate", Description: "wooden crate", Scale: [3]float64{0.8, 0.8, 0.8}, Tags: []string{"prop"}},
		Prototype{Name: "pillar", Description: "stone pillar", Scale: [3]float64{0.5, 3, 0.5}, Tags: []string{"structure"}},
		Prototype{Name: "lamp", Description: "floor lamp", Scale: [3]float64{0.3, 1.6, 0.3}, Tags: []string{"prop", "light"}},
	)
	return c
}

// New builds a catalog from prototypes. Duplicate names are rejected.
func New(protos ...Prototype) (*Catalog, error) {
	c := &Catalog{byName: make(map[string]Prototype, len(protos))}
	for _, p := range protos {
		name := strings.TrimSpace(p.Name)
		if name == "" {
			return nil, errors.New("prototype name is required")
		}
		if _, dup := c.byName[name]; dup {
			return nil, fmt.Errorf("duplicate prototype %q", name)
		}
		p.Name = name
		c.byName[name] = p
	}
	return c, nil
}

// Parse validates and decodes a YAML catalog document.
func Parse(data []byte) (*Catalog, error) {
	var raw any
	if err := yaml.Unmarshal(data, &raw); err != nil {
		return nil, fmt.Errorf("decode catalog yaml: %w", err)
	}
	if raw == nil {
		return nil, errors.New("catalog is empty")
	}
	res, err := gojsonschema.Validate(gojsonschema.NewStringLoader(schema), gojsonschema.NewGoLoader(raw))
	if err != nil {
		return nil, fmt.Errorf("validate catalog: %w", err)
	}
	if !res.Valid() {
		msgs := make([]string, 0, len(res.Errors()))
		for _, e := range res.Errors() {
			msgs = append(msgs, e.String())
		}
		return nil, fmt.Errorf("catalog schema violations: %s", strings.Join(msgs, "; "))
	}
	var doc document
	if err := yaml.Unmarshal(data, &doc); err != nil {
		return nil, fmt.Errorf("decode catalog: %w", err)
	}
	return New(doc.Prototypes...)
}

// Load reads and parses a catalog file.
func Load(path string) (*Catalog, error) {
	l := applog.WithOperation(applog.WithComponent("catalog"), "load").With(slog.String("path", path))
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read catalog: %w", err)
	}
	c, err := Parse(data)
	if err != nil {
		l.Error("catalog rejected", slog.Any("err", err))
		return nil, err
	}
	l.Info("catalog loaded", slog.Int("prototypes", c.Len()))
	return c, nil
}

// Lookup returns the prototype with the given name.
func (c *Catalog) Lookup(name string) (Prototype, error) {
	if c == nil {
		return Prototype{}, fmt.Errorf("%w: %s", ErrUnknownPrototype, name)
	}
	p, ok := c.byName[name]
	if !ok {
		return Prototype{}, fmt.Errorf("%w: %s", ErrUnknownPrototype, name)
	}
	return p, nil
}

// Names lists prototype names in sorted order.
func (c *Catalog) Names() []string {
	if c == nil {
		return nil
	}
	out := make([]string, 0, len(c.byName))
	for n := range c.byName {
		out = append(out, n)
	}
	sort.Strings(out)
	return out
}

func (c *Catalog) Len() int {
	if c == nil {
		return 0
	}
	return len(c.byName)
}
