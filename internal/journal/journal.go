/*
 * Copyright (c) 2025 by Alexander Drost, Oldenburg, Germany.
 * This file is licensed to you under the Apache License, Version 2.0 (the "License"); you may not use this file except in compliance with the License.  You may obtain a copy of the License at
 *   http://www.apache.org/licenses/LICENSE-2.0
 * Unless required by applicable law or agreed to in writing, software distributed under the License is distributed on an
 * "AS IS" BASIS, WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.  See the License for the specific language governing permissions and limitations under the License.
 */

// Package journal keeps a diagnostic trail of ledger transitions in a local
// SQLite database. It is write-mostly; nothing in it is ever replayed into a
// ledger.
package journal

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/google/uuid"

	"levelforge/internal/history"
	applog "levelforge/internal/log"
	"levelforge/internal/version"

	// Pure-Go SQLite driver (CGO-free)
	_ "modernc.org/sqlite"
)

// schemaVersion tracks the journal schema. Bump it together with a migration step.
const schemaVersion = 1

const writeTimeout = 2 * time.Second

// Journal records ledger events for one editing session. It implements
// history.Observer.
type Journal struct {
	db      *sql.DB
	path    string
	session string
	started bool
	seq     int64
	err     error
	log     *slog.Logger
}

// Entry is one recorded event.
type Entry struct {
	Session   string
	Seq       int64
	Action    string
	Kind      string
	Label     string
	UndoCount int
	RedoCount int
	At        time.Time
}

// SessionInfo summarises one recorded session.
type SessionInfo struct {
	ID      string
	App     string
	Started time.Time
	Ended   time.Time // zero while open or after a crash
	Events  int
}

// Open creates or opens the journal at path, enables WAL and brings the
// schema up to date. A session row is only written with the first event.
func Open(path string) (*Journal, error) {
	l := applog.WithOperation(applog.WithComponent("journal"), "open").With(slog.String("path", path))
	if strings.TrimSpace(path) == "" {
		return nil, errors.New("journal path is required")
	}
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		l.Error("create journal dir failed", slog.Any("err", err))
		return nil, fmt.Errorf("create journal dir: %w", err)
	}
	dsn := fmt.Sprintf("file:%s?_pragma=busy_timeout(5000)", filepath.ToSlash(path))
	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		l.Error("sqlite open failed", slog.Any("err", err))
		return nil, fmt.Errorf("open sqlite: %w", err)
	}
	db.SetMaxOpenConns(1)
	db.SetMaxIdleConns(1)

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	if _, err := db.ExecContext(ctx, "PRAGMA journal_mode=WAL;"); err != nil {
		_ = db.Close()
		l.Error("enable WAL failed", slog.Any("err", err))
		return nil, fmt.Errorf("enable WAL: %w", err)
	}
	if err := ensureSchema(ctx, db); err != nil {
		_ = db.Close()
		l.Error("ensure schema failed", slog.Any("err", err))
		return nil, err
	}

	j := &Journal{
		db:      db,
		path:    path,
		session: uuid.NewString(),
		log:     applog.WithComponent("journal").With(slog.String("path", path)),
	}
	l.Debug("journal ready", slog.String("session", j.session))
	return j, nil
}

func ensureSchema(ctx context.Context, db *sql.DB) error {
	ddl := []string{
		`CREATE TABLE IF NOT EXISTS version (
			id          INTEGER PRIMARY KEY CHECK(id=1),
			schema      INTEGER NOT NULL,
			app         TEXT,
			created_at  TEXT NOT NULL,
			updated_at  TEXT NOT NULL
		);`,
		`CREATE TABLE IF NOT EXISTS sessions (
			id          TEXT PRIMARY KEY,
			app         TEXT,
			started_at  TEXT NOT NULL,
			ended_at    TEXT
		);`,
		`CREATE TABLE IF NOT EXISTS events (
			id          INTEGER PRIMARY KEY AUTOINCREMENT,
			session_id  TEXT NOT NULL REFERENCES sessions(id),
			seq         INTEGER NOT NULL,
			action      TEXT NOT NULL,
			kind        TEXT NOT NULL,
			label       TEXT,
			undo_count  INTEGER NOT NULL,
			redo_count  INTEGER NOT NULL,
			at          TEXT NOT NULL
		);`,
		`CREATE INDEX IF NOT EXISTS idx_events_session ON events(session_id, seq);`,
	}
	for _, q := range ddl {
		if _, err := db.ExecContext(ctx, q); err != nil {
			return fmt.Errorf("create table: %w", err)
		}
	}
	now := time.Now().UTC().Format(time.RFC3339)
	var cur int
	err := db.QueryRowContext(ctx, `SELECT schema FROM version WHERE id=1`).Scan(&cur)
	switch {
	case errors.Is(err, sql.ErrNoRows):
		if _, err := db.ExecContext(ctx, `INSERT INTO version (id, schema, app, created_at, updated_at) VALUES(1, ?, ?, ?, ?)`, schemaVersion, version.String(), now, now); err != nil {
			return fmt.Errorf("insert version: %w", err)
		}
	case err != nil:
		return fmt.Errorf("read version: %w", err)
	case cur > schemaVersion:
		return fmt.Errorf("journal schema %d is newer than supported %d", cur, schemaVersion)
	default:
		if _, err := db.ExecContext(ctx, `UPDATE version SET app=?, updated_at=? WHERE id=1`, version.String(), now); err != nil {
			return fmt.Errorf("update version: %w", err)
		}
	}
	return nil
}

// SessionID identifies the rows written by this journal.
func (j *Journal) SessionID() string { return j.session }

// Path is the database file.
func (j *Journal) Path() string { return j.path }

// Err returns the first write failure, if any. Recording stops after it.
func (j *Journal) Err() error { return j.err }

// OnLedgerEvent appends e. Failures are logged once and latched in Err; the
// ledger itself is never affected.
func (j *Journal) OnLedgerEvent(e history.Event) {
	if j.err != nil {
		return
	}
	ctx, cancel := context.WithTimeout(context.Background(), writeTimeout)
	defer cancel()
	if err := j.record(ctx, e); err != nil {
		j.err = err
		j.log.Warn("journal write failed; recording stopped", slog.Any("err", err))
	}
}

func (j *Journal) record(ctx context.Context, e history.Event) error {
	at := e.Time
	if at.IsZero() {
		at = time.Now()
	}
	if !j.started {
		if _, err := j.db.ExecContext(ctx, `INSERT INTO sessions (id, app, started_at) VALUES(?, ?, ?)`,
			j.session, version.String(), at.UTC().Format(time.RFC3339Nano)); err != nil {
			return fmt.Errorf("insert session: %w", err)
		}
		j.started = true
	}
	j.seq++
	_, err := j.db.ExecContext(ctx,
		`INSERT INTO events (session_id, seq, action, kind, label, undo_count, redo_count, at) VALUES(?, ?, ?, ?, ?, ?, ?, ?)`,
		j.session, j.seq, e.Action.String(), e.Kind.String(), e.Label, e.UndoCount, e.RedoCount, at.UTC().Format(time.RFC3339Nano))
	if err != nil {
		return fmt.Errorf("insert event: %w", err)
	}
	return nil
}

// Recent returns up to limit events across all sessions, newest first.
func (j *Journal) Recent(ctx context.Context, limit int) ([]Entry, error) {
	if limit <= 0 {
		limit = 50
	}
	rows, err := j.db.QueryContext(ctx,
		`SELECT session_id, seq, action, kind, COALESCE(label, ''), undo_count, redo_count, at
		 FROM events ORDER BY id DESC LIMIT ?`, limit)
	if err != nil {
		return nil, fmt.Errorf("query events: %w", err)
	}
	defer rows.Close()
	var out []Entry
	for rows.Next() {
		var (
			e  Entry
			at string
		)
		if err := rows.Scan(&e.Session, &e.Seq, &e.Action, &e.Kind, &e.Label, &e.UndoCount, &e.RedoCount, &at); err != nil {
			return nil, fmt.Errorf("scan event: %w", err)
		}
		e.At, _ = time.Parse(time.RFC3339Nano, at)
		out = append(out, e)
	}
	return out, rows.Err()
}

// Sessions lists recorded sessions, newest first.
func (j *Journal) Sessions(ctx context.Context) ([]SessionInfo, error) {
	rows, err := j.db.QueryContext(ctx,
		`SELECT s.id, COALESCE(s.app, ''), s.started_at, COALESCE(s.ended_at, ''),
		        (SELECT COUNT(*) FROM events e WHERE e.session_id = s.id)
		 FROM sessions s ORDER BY s.started_at DESC`)
	if err != nil {
		return nil, fmt.Errorf("query sessions: %w", err)
	}
	defer rows.Close()
	var out []SessionInfo
	for rows.Next() {
		var (
			s              SessionInfo
			started, ended string
		)
		if err := rows.Scan(&s.ID, &s.App, &started, &ended, &s.Events); err != nil {
			return nil, fmt.Errorf("scan session: %w", err)
		}
		s.Started, _ = time.Parse(time.RFC3339Nano, started)
		if ended != "" {
			s.Ended, _ = time.Parse(time.RFC3339Nano, ended)
		}
		out = append(out, s)
	}
	return out, rows.Err()
}

// Close marks the session ended and closes the database.
func (j *Journal) Close() error {
	if j.db == nil {
		return nil
	}
	if j.started {
		ctx, cancel := context.WithTimeout(context.Background(), writeTimeout)
		_, err := j.db.ExecContext(ctx, `UPDATE sessions SET ended_at=? WHERE id=?`, time.Now().UTC().Format(time.RFC3339Nano), j.session)
		cancel()
		if err != nil {
			j.log.Warn("mark session ended failed", slog.Any("err", err))
		}
	}
	err := j.db.Close()
	j.db = nil
	return err
}
