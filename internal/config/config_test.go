/*
 * Copyright (c) 2025 by Alexander Drost, Oldenburg, Germany.
 * This file is licensed to you under the Apache License, Version 2.0 (the "License"); you may not use this file except in compliance with the License.  You may obtain a copy of the License at
 *   http://www.apache.org/licenses/LICENSE-2.0
 * Unless required by applicable law or agreed to in writing, software distributed under the License is distributed on an
 * "AS IS" BASIS, WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.  See the License for the specific language governing permissions and limitations under the License.
 */

package config

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
)

// isolate points the user config at an empty temp dir and clears overrides.
func isolate(t *testing.T) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "config.yaml")
	t.Setenv(EnvConfigPath, path)
	for _, k := range Keys() {
		name := envKeys[k]
		t.Setenv(name, "")
	}
	return path
}

func TestLoadWithoutFileUsesDefaults(t *testing.T) {
	isolate(t)
	cfg, err := Load()
	if err != nil {
		t.Fatalf("Load() error: %v", err)
	}
	if cfg.History.MaxSize != 30 || cfg.Manipulation.MinScale != 0.05 || cfg.Manipulation.MaxScale != 20 {
		t.Fatalf("unexpected defaults: %#v", cfg)
	}
	if err := cfg.Validate(); err != nil {
		t.Fatalf("defaults must validate: %v", err)
	}
}

func TestSaveThenLoadRoundTrips(t *testing.T) {
	isolate(t)
	cfg := Defaults()
	cfg.History.MaxSize = 12
	cfg.Manipulation.DropNoOp = true
	cfg.Catalog.Path = "/srv/props.yaml"
	if err := Save(cfg); err != nil {
		t.Fatalf("Save: %v", err)
	}
	got, err := Load()
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if got.History.MaxSize != 12 || !got.Manipulation.DropNoOp || got.Catalog.Path != "/srv/props.yaml" {
		t.Fatalf("round trip lost fields: %#v", got)
	}
}

func TestEnvOverridesHistoryAndScale(t *testing.T) {
	isolate(t)
	t.Setenv(EnvHistoryMax, "5")
	t.Setenv(EnvMinScale, "0.5")
	t.Setenv(EnvMaxScale, "not-a-number")
	cfg, err := Load()
	if err != nil {
		t.Fatalf("Load() error: %v", err)
	}
	if cfg.History.MaxSize != 5 || cfg.Manipulation.MinScale != 0.5 {
		t.Fatalf("env overrides not applied: %#v", cfg)
	}
	if cfg.Manipulation.MaxScale != 20 {
		t.Fatalf("unparsable override must be ignored, got %g", cfg.Manipulation.MaxScale)
	}
	if name, ok := EnvOverrideFor("history.max_size"); !ok || name != EnvHistoryMax {
		t.Fatalf("EnvOverrideFor(history.max_size) = %q, %v", name, ok)
	}
	if _, ok := EnvOverrideFor("catalog.path"); ok {
		t.Fatalf("catalog.path is not overridden")
	}
}

func TestJournalPathEnablesJournal(t *testing.T) {
	path := isolate(t)
	cfg, _ := Load()
	if cfg.Journal.Enabled {
		t.Fatalf("journal should be off by default")
	}
	if got, want := cfg.JournalPath(), filepath.Join(filepath.Dir(path), "journal.sqlite"); got != want {
		t.Fatalf("JournalPath = %q, want %q", got, want)
	}
	t.Setenv(EnvJournalPath, "/tmp/lvf.sqlite")
	cfg, _ = Load()
	if !cfg.Journal.Enabled || cfg.JournalPath() != "/tmp/lvf.sqlite" {
		t.Fatalf("journal env override not applied: %#v", cfg.Journal)
	}
}

func TestMergeIncludesLogging(t *testing.T) {
	dst := Defaults()
	src := Defaults()
	src.Logging.Level = " DEBUG "
	src.Logging.Format = "json"
	src.Logging.Source = true
	src.Logging.File = "/var/log/lvf.log"
	mergeInto(&dst, &src)
	if dst.Logging.Level != "debug" || dst.Logging.Format != "json" || !dst.Logging.Source || dst.Logging.File != "/var/log/lvf.log" {
		t.Fatalf("logging fields not merged correctly: %#v", dst.Logging)
	}
	opts := dst.LogOptions()
	if opts.Level != "debug" || !opts.AddSource || opts.File != "/var/log/lvf.log" {
		t.Fatalf("LogOptions = %#v", opts)
	}
}

func TestMalformedUserFileFallsBack(t *testing.T) {
	path := isolate(t)
	if err := os.WriteFile(path, []byte("history: [unclosed"), 0o600); err != nil {
		t.Fatal(err)
	}
	cfg, err := Load()
	if err != nil {
		t.Fatalf("Load() error: %v", err)
	}
	if cfg.History.MaxSize != 30 {
		t.Fatalf("expected defaults, got %#v", cfg.History)
	}
	if _, err := LoadFile(path); err == nil {
		t.Fatalf("LoadFile must report a malformed file")
	}
}

func TestLoadFileValidates(t *testing.T) {
	isolate(t)
	path := filepath.Join(t.TempDir(), "bad.yaml")
	data := "manipulation:\n  min_scale: 2\n  max_scale: 1\n"
	if err := os.WriteFile(path, []byte(data), 0o600); err != nil {
		t.Fatal(err)
	}
	_, err := LoadFile(path)
	if err == nil || !strings.Contains(err.Error(), "max_scale") {
		t.Fatalf("err = %v, want max_scale validation error", err)
	}
}

func TestValidateHistorySize(t *testing.T) {
	cfg := Defaults()
	cfg.History.MaxSize = 0
	if err := cfg.Validate(); err == nil {
		t.Fatalf("max_size 0 must be rejected")
	}
}
