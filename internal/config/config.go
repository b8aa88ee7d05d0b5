/*
 * Copyright (c) 2025 by Alexander Drost, Oldenburg, Germany.
 * This file is licensed to you under the Apache License, Version 2.0 (the "License"); you may not use this file except in compliance with the License.  You may obtain a copy of the License at
 *   http://www.apache.org/licenses/LICENSE-2.0
 * Unless required by applicable law or agreed to in writing, software distributed under the License is distributed on an
 * "AS IS" BASIS, WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.  See the License for the specific language governing permissions and limitations under the License.
 */

package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"runtime"
	"strconv"
	"strings"

	"gopkg.in/yaml.v3"

	applog "levelforge/internal/log"
)

// AppConfig is the user-editable configuration persisted to a YAML file in the user scope.
// Environment variables are treated as read-only overrides at runtime.
//
// config_version: bump when the structure changes in a backward-incompatible way.
// Unknown fields are ignored on unmarshal.

type HistoryConfig struct {
	MaxSize int `yaml:"max_size"`
}

type ManipulationConfig struct {
	MinScale float64 `yaml:"min_scale"`
	MaxScale float64 `yaml:"max_scale"`
	// DropNoOp skips committing gestures that end where they started.
	DropNoOp bool `yaml:"drop_noop"`
}

type JournalConfig struct {
	Enabled bool   `yaml:"enabled"`
	Path    string `yaml:"path"` // empty: journal.sqlite next to the config file
}

type CatalogConfig struct {
	Path string `yaml:"path"` // empty: built-in prototypes
}

type LoggingConfig struct {
	Level  string `yaml:"level"`
	Format string `yaml:"format"`
	Source bool   `yaml:"source"`
	File   string `yaml:"file"`
}

type AppConfig struct {
	ConfigVersion int                `yaml:"config_version"`
	History       HistoryConfig      `yaml:"history"`
	Manipulation  ManipulationConfig `yaml:"manipulation"`
	Journal       JournalConfig      `yaml:"journal"`
	Catalog       CatalogConfig      `yaml:"catalog"`
	Logging       LoggingConfig      `yaml:"logging"`
}

// Defaults returns the application defaults.
func Defaults() AppConfig {
	return AppConfig{
		ConfigVersion: 1,
		History:       HistoryConfig{MaxSize: 30},
		Manipulation:  ManipulationConfig{MinScale: 0.05, MaxScale: 20},
		Journal:       JournalConfig{Enabled: false},
		Logging:       LoggingConfig{Level: "info", Format: "console"},
	}
}

// Env var names used as overrides.
const (
	EnvConfigPath  = "LVF_CONFIG"
	EnvHistoryMax  = "LVF_HISTORY_MAX"
	EnvMinScale    = "LVF_MIN_SCALE"
	EnvMaxScale    = "LVF_MAX_SCALE"
	EnvJournal     = "LVF_JOURNAL"
	EnvJournalPath = "LVF_JOURNAL_PATH"
	EnvCatalogPath = "LVF_CATALOG_PATH"
	// EnvLogLevel Logging envs
	EnvLogLevel  = "LVF_LOG_LEVEL"
	EnvLogFormat = "LVF_LOG_FORMAT"
	EnvLogSource = "LVF_LOG_SOURCE"
	EnvLogFile   = "LVF_LOG_FILE"
)

// ConfigPath returns the per-user config file path. LVF_CONFIG replaces it.
func ConfigPath() (string, error) {
	if p := strings.TrimSpace(os.Getenv(EnvConfigPath)); p != "" {
		return p, nil
	}
	var base string
	switch runtime.GOOS {
	case "windows":
		base = os.Getenv("AppData")
		if base == "" { // fallback
			base = filepath.Join(os.Getenv("USERPROFILE"), "AppData", "Roaming")
		}
		base = filepath.Join(base, "LevelForge")
	case "darwin":
		base = filepath.Join(os.Getenv("HOME"), "Library", "Application Support", "LevelForge")
	default: // linux and others
		if xdg := os.Getenv("XDG_CONFIG_HOME"); xdg != "" {
			base = filepath.Join(xdg, "levelforge")
		} else {
			base = filepath.Join(os.Getenv("HOME"), ".config", "levelforge")
		}
	}
	if base == "" {
		return "", errors.New("cannot resolve config directory")
	}
	return filepath.Join(base, "config.yaml"), nil
}

// Load reads the user config file (if present), applies defaults, and merges environment overrides.
// A missing or unreadable user file falls back to defaults.
func Load() (AppConfig, error) {
	cfg := Defaults()
	path, err := ConfigPath()
	if err != nil {
		return cfg, err
	}
	if data, err := os.ReadFile(path); err == nil {
		var fileCfg AppConfig
		if err := yaml.Unmarshal(data, &fileCfg); err == nil {
			mergeInto(&cfg, &fileCfg)
		} else {
			applog.WithComponent("config").Warn("ignoring malformed config", "path", path, "err", err)
		}
	}
	applyEnvOverrides(&cfg)
	return cfg, nil
}

// LoadFile reads an explicit config file. Unlike Load, a missing or malformed
// file is an error, and the result is validated.
func LoadFile(path string) (AppConfig, error) {
	cfg := Defaults()
	data, err := os.ReadFile(path)
	if err != nil {
		return cfg, fmt.Errorf("read config: %w", err)
	}
	var fileCfg AppConfig
	if err := yaml.Unmarshal(data, &fileCfg); err != nil {
		return cfg, fmt.Errorf("parse config %s: %w", path, err)
	}
	mergeInto(&cfg, &fileCfg)
	applyEnvOverrides(&cfg)
	if err := cfg.Validate(); err != nil {
		return cfg, fmt.Errorf("config %s: %w", path, err)
	}
	return cfg, nil
}

// Save writes the user config YAML.
func Save(cfg AppConfig) error {
	path, err := ConfigPath()
	if err != nil {
		return err
	}
	return SaveTo(path, cfg)
}

// SaveTo writes cfg as YAML to path.
func SaveTo(path string, cfg AppConfig) error {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return err
	}
	data, err := yaml.Marshal(cfg)
	if err != nil {
		return err
	}
	return os.WriteFile(path, data, 0o600)
}

// Validate rejects settings the editor cannot run with.
func (c AppConfig) Validate() error {
	if c.History.MaxSize < 1 {
		return fmt.Errorf("history.max_size must be at least 1, got %d", c.History.MaxSize)
	}
	m := c.Manipulation
	if m.MinScale <= 0 {
		return fmt.Errorf("manipulation.min_scale must be positive, got %g", m.MinScale)
	}
	if m.MaxScale < m.MinScale {
		return fmt.Errorf("manipulation.max_scale %g is below min_scale %g", m.MaxScale, m.MinScale)
	}
	return nil
}

// JournalPath resolves the journal database location.
func (c AppConfig) JournalPath() string {
	if p := strings.TrimSpace(c.Journal.Path); p != "" {
		return p
	}
	cp, err := ConfigPath()
	if err != nil {
		return "journal.sqlite"
	}
	return filepath.Join(filepath.Dir(cp), "journal.sqlite")
}

// LogOptions maps the logging section onto logger options.
func (c AppConfig) LogOptions() applog.Options {
	return applog.Options{
		Level:     c.Logging.Level,
		Format:    c.Logging.Format,
		AddSource: c.Logging.Source,
		File:      c.Logging.File,
	}
}

func mergeInto(dst *AppConfig, src *AppConfig) {
	if src.ConfigVersion != 0 {
		dst.ConfigVersion = src.ConfigVersion
	}
	if src.History.MaxSize != 0 {
		dst.History.MaxSize = src.History.MaxSize
	}
	if src.Manipulation.MinScale != 0 {
		dst.Manipulation.MinScale = src.Manipulation.MinScale
	}
	if src.Manipulation.MaxScale != 0 {
		dst.Manipulation.MaxScale = src.Manipulation.MaxScale
	}
	// booleans: copy directly from src (file) so user preferences persist
	dst.Manipulation.DropNoOp = src.Manipulation.DropNoOp
	dst.Journal.Enabled = src.Journal.Enabled
	if strings.TrimSpace(src.Journal.Path) != "" {
		dst.Journal.Path = strings.TrimSpace(src.Journal.Path)
	}
	if strings.TrimSpace(src.Catalog.Path) != "" {
		dst.Catalog.Path = strings.TrimSpace(src.Catalog.Path)
	}
	// logging
	if strings.TrimSpace(src.Logging.Level) != "" {
		dst.Logging.Level = strings.ToLower(strings.TrimSpace(src.Logging.Level))
	}
	if strings.TrimSpace(src.Logging.Format) != "" {
		dst.Logging.Format = strings.ToLower(strings.TrimSpace(src.Logging.Format))
	}
	dst.Logging.Source = src.Logging.Source
	if strings.TrimSpace(src.Logging.File) != "" {
		dst.Logging.File = strings.TrimSpace(src.Logging.File)
	}
}

func truthy(v string) bool {
	lv := strings.ToLower(v)
	return lv == "1" || lv == "true" || lv == "on" || lv == "yes"
}

func applyEnvOverrides(cfg *AppConfig) {
	if v := strings.TrimSpace(os.Getenv(EnvHistoryMax)); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			cfg.History.MaxSize = n
		}
	}
	if v := strings.TrimSpace(os.Getenv(EnvMinScale)); v != "" {
		if f, err := strconv.ParseFloat(v, 64); err == nil {
			cfg.Manipulation.MinScale = f
		}
	}
	if v := strings.TrimSpace(os.Getenv(EnvMaxScale)); v != "" {
		if f, err := strconv.ParseFloat(v, 64); err == nil {
			cfg.Manipulation.MaxScale = f
		}
	}
	if v := strings.TrimSpace(os.Getenv(EnvJournal)); v != "" {
		cfg.Journal.Enabled = truthy(v)
	}
	if v := strings.TrimSpace(os.Getenv(EnvJournalPath)); v != "" {
		cfg.Journal.Path = v
		cfg.Journal.Enabled = true
	}
	if v := strings.TrimSpace(os.Getenv(EnvCatalogPath)); v != "" {
		cfg.Catalog.Path = v
	}
	// logging overrides
	if v := strings.TrimSpace(os.Getenv(EnvLogLevel)); v != "" {
		cfg.Logging.Level = strings.ToLower(v)
	}
	if v := strings.TrimSpace(os.Getenv(EnvLogFormat)); v != "" {
		cfg.Logging.Format = strings.ToLower(v)
	}
	if v := strings.TrimSpace(os.Getenv(EnvLogSource)); v != "" {
		cfg.Logging.Source = truthy(v)
	}
	if v := strings.TrimSpace(os.Getenv(EnvLogFile)); v != "" {
		cfg.Logging.File = v
	}
}

var envKeys = map[string]string{
	"history.max_size":       EnvHistoryMax,
	"manipulation.min_scale": EnvMinScale,
	"manipulation.max_scale": EnvMaxScale,
	"journal.enabled":        EnvJournal,
	"journal.path":           EnvJournalPath,
	"catalog.path":           EnvCatalogPath,
	"logging.level":          EnvLogLevel,
	"logging.format":         EnvLogFormat,
	"logging.source":         EnvLogSource,
	"logging.file":           EnvLogFile,
}

// EnvOverrideFor returns the env var name if the field is overridden by environment variables.
func EnvOverrideFor(key string) (string, bool) {
	name, ok := envKeys[key]
	if !ok || os.Getenv(name) == "" {
		return "", false
	}
	return name, true
}

// Keys lists the dotted keys that EnvOverrideFor knows, in display order.
func Keys() []string {
	return []string{
		"history.max_size",
		"manipulation.min_scale",
		"manipulation.max_scale",
		"journal.enabled",
		"journal.path",
		"catalog.path",
		"logging.level",
		"logging.format",
		"logging.source",
		"logging.file",
	}
}
