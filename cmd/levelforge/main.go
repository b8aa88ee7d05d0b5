/*
 * Copyright (c) 2025 by Alexander Drost, Oldenburg, Germany.
 * This file is licensed to you under the Apache License, Version 2.0 (the "License"); you may not use this file except in compliance with the License.  You may obtain a copy of the License at
 *   http://www.apache.org/licenses/LICENSE-2.0
 * Unless required by applicable law or agreed to in writing, software distributed under the License is distributed on an
 * "AS IS" BASIS, WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.  See the License for the specific language governing permissions and limitations under the License.
 */

package main

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"strconv"

	"gopkg.in/yaml.v3"

	"levelforge/internal/catalog"
	"levelforge/internal/config"
	"levelforge/internal/crash"
	"levelforge/internal/history"
	"levelforge/internal/journal"
	applog "levelforge/internal/log"
	"levelforge/internal/scene"
	"levelforge/internal/script"
	"levelforge/internal/session"
	"levelforge/internal/version"
)

func usage() {
	fmt.Println("LevelForge: headless level editing core")
	fmt.Printf("Version: %s\n", version.String())
	fmt.Println()
	fmt.Println("Usage:")
	fmt.Println("  levelforge version|-v|--version     Show version")
	fmt.Println("  levelforge run <script>             Run a gesture script against an empty scene")
	fmt.Println("  levelforge journal [<db>] [<n>]     Show recorded sessions and the last n ledger events")
	fmt.Println("  levelforge config                   Print the effective configuration")
}

func main() {
	cfg, err := config.Load()
	if err != nil {
		fmt.Println("Error:", err)
		os.Exit(1)
	}
	applog.Init(cfg.LogOptions())
	l := applog.WithComponent("cli")
	cc := &crash.Context{}
	defer crash.Recover(cc)

	args := os.Args
	l.Debug("start", slog.Int("args", len(args)))
	if len(args) > 1 {
		switch args[1] {
		case "version", "--version", "-v":
			fmt.Println(version.String())
			return
		case "run":
			if len(args) < 3 {
				fmt.Println("run requires <script>")
				usage()
				os.Exit(2)
			}
			os.Exit(runScript(cfg, args[2], cc))
		case "journal":
			path := cfg.JournalPath()
			if len(args) >= 3 {
				path = args[2]
			}
			n := 20
			if len(args) >= 4 {
				v, err := strconv.Atoi(args[3])
				if err != nil || v <= 0 {
					fmt.Println("journal: <n> must be a positive number")
					os.Exit(2)
				}
				n = v
			}
			os.Exit(showJournal(path, n))
		case "config":
			os.Exit(showConfig(cfg))
		}
	}

	usage()
}

func runScript(cfg config.AppConfig, path string, cc *crash.Context) int {
	l := applog.WithOperation(applog.WithComponent("cli"), "run").With(slog.String("script", path))
	if err := cfg.Validate(); err != nil {
		fmt.Println("Error:", err)
		return 2
	}
	data, err := os.ReadFile(path)
	if err != nil {
		fmt.Println("Error:", err)
		return 1
	}
	sc, errs := script.Parse(string(data))
	if len(errs) > 0 {
		for _, e := range errs {
			fmt.Printf("%s:%s\n", path, e.Error())
		}
		return 2
	}

	cat := catalog.Builtin()
	if cfg.Catalog.Path != "" {
		if cat, err = catalog.Load(cfg.Catalog.Path); err != nil {
			fmt.Println("Error:", err)
			return 1
		}
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
	defer stop()

	var observers []history.Observer
	if cfg.Journal.Enabled {
		j, err := journal.Open(cfg.JournalPath())
		if err != nil {
			l.Warn("journal unavailable; continuing without it", slog.Any("err", err))
		} else {
			defer func() {
				if err := j.Close(); err != nil {
					l.Warn("close journal failed", slog.Any("err", err))
				}
			}()
			observers = append(observers, j)
			ctx = applog.ContextWithSession(ctx, j.SessionID())
		}
	}

	world := scene.NewWorld(cat)
	sel := scene.NewSelection(world)
	ledger := history.New(history.Options{MaxSize: cfg.History.MaxSize, Observers: observers})
	sess := session.New(world, ledger, sel, session.Options{
		MinScale:         cfg.Manipulation.MinScale,
		MaxScale:         cfg.Manipulation.MaxScale,
		DropNoOpGestures: cfg.Manipulation.DropNoOp,
	})
	runner := script.NewRunner(world, ledger, sel, sess, os.Stdout)

	cc.Script = path
	cc.Line = &runner.Line
	cc.History = ledger

	l.InfoContext(ctx, "running script", slog.Int("steps", len(sc.Steps)), slog.Int("prototypes", cat.Len()))
	if err := runner.Run(ctx, sc); err != nil {
		l.ErrorContext(ctx, "script failed", slog.Any("err", err))
		fmt.Printf("%s: %v\n", path, err)
		return 1
	}
	fmt.Printf("ok: %d steps, %d objects, undo=%d redo=%d\n", len(sc.Steps), len(world.ActiveEntities()), ledger.UndoCount(), ledger.RedoCount())
	return 0
}

func showJournal(path string, n int) int {
	if _, err := os.Stat(path); err != nil {
		fmt.Println("Error: no journal at", path)
		return 1
	}
	j, err := journal.Open(path)
	if err != nil {
		fmt.Println("Error:", err)
		return 1
	}
	defer j.Close()

	ctx := context.Background()
	sessions, err := j.Sessions(ctx)
	if err != nil {
		fmt.Println("Error:", err)
		return 1
	}
	fmt.Printf("Sessions: %d\n", len(sessions))
	for _, s := range sessions {
		ended := "open"
		if !s.Ended.IsZero() {
			ended = s.Ended.Local().Format("2006-01-02 15:04:05")
		}
		fmt.Printf("  %s  %s  %s -> %s  events=%d\n", s.ID, s.App, s.Started.Local().Format("2006-01-02 15:04:05"), ended, s.Events)
	}
	entries, err := j.Recent(ctx, n)
	if err != nil {
		fmt.Println("Error:", err)
		return 1
	}
	fmt.Printf("Last %d events:\n", len(entries))
	for i := len(entries) - 1; i >= 0; i-- {
		e := entries[i]
		fmt.Printf("  %s #%-4d %-8s %-15s %-28q undo=%d redo=%d\n", shortID(e.Session), e.Seq, e.Action, e.Kind, e.Label, e.UndoCount, e.RedoCount)
	}
	return 0
}

func showConfig(cfg config.AppConfig) int {
	path, _ := config.ConfigPath()
	fmt.Println("# config file:", path)
	data, err := yaml.Marshal(cfg)
	if err != nil {
		fmt.Println("Error:", err)
		return 1
	}
	fmt.Print(string(data))
	for _, k := range config.Keys() {
		if name, ok := config.EnvOverrideFor(k); ok {
			fmt.Printf("# %s overridden by %s\n", k, name)
		}
	}
	if err := cfg.Validate(); err != nil {
		fmt.Println("# invalid:", err)
		return 1
	}
	return 0
}

// shortID trims a session id for listings; ids from foreign databases may be
// shorter than the prefix.
func shortID(id string) string {
	if len(id) > 8 {
		return id[:8]
	}
	return id
}
