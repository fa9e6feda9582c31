/*
 * Copyright (c) 2025 by Alexander Drost, Oldenburg, Germany.
 * This file is licensed to you under the Apache License, Version 2.0 (the "License"); you may not use this file except in compliance with the License.  You may obtain a copy of the License at
 *   http://www.apache.org/licenses/LICENSE-2.0
 * Unless required by applicable law or agreed to in writing, software distributed under the License is distributed on an
 * "AS IS" BASIS, WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.  See the License for the specific language governing permissions and limitations under the License.
 */
package storage

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

	applog "gomemecanvas/internal/log"
	"gomemecanvas/internal/version"

	// Pure-Go SQLite driver (CGO-free)
	_ "modernc.org/sqlite"
)

const (
	// DefaultDBFileName is used when the configured path names a directory.
	DefaultDBFileName = "memes.sqlite"

	// schemaVersion tracks the local SQLite schema.
	// Bump this when you perform breaking schema changes and add migrations.
	schemaVersion = 2
)

// SQLiteStore is the embedded composition store. It also carries the
// thumbnail cache.
type SQLiteStore struct {
	sqlStore
	path string
}

var _ Store = (*SQLiteStore)(nil)

// Path returns the database file path.
func (s *SQLiteStore) Path() string { return s.path }

// OpenSQLite creates or opens the database at path, enables WAL mode, ensures
// the meta/version tables and schema exist and runs pending migrations.
func OpenSQLite(path string) (*SQLiteStore, error) {
	l := applog.WithOperation(applog.WithComponent("storage"), "sqlite_open").With(
		slog.String("path", path),
	)
	if strings.TrimSpace(path) == "" {
		return nil, errors.New("database path is required")
	}
	if st, err := os.Stat(path); err == nil && st.IsDir() {
		path = filepath.Join(path, DefaultDBFileName)
	}
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		l.Error("create db dir failed", slog.Any("err", err))
		return nil, fmt.Errorf("create db dir: %w", err)
	}
	db, err := openSQLiteDB(path)
	if err != nil {
		l.Error("sqlite open failed", slog.Any("err", err))
		return nil, err
	}

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	// Ensure WAL mode is active.
	if _, err := db.ExecContext(ctx, "PRAGMA journal_mode=WAL;"); err != nil {
		_ = db.Close()
		l.Error("enable WAL failed", slog.Any("err", err))
		return nil, fmt.Errorf("enable WAL: %w", err)
	}
	if _, err := db.ExecContext(ctx, "PRAGMA foreign_keys=ON;"); err != nil {
		l.Warn("enable foreign_keys failed", slog.Any("err", err))
	}
	if err := ensureMetaAndVersion(ctx, db); err != nil {
		_ = db.Close()
		l.Error("ensure meta/version failed", slog.Any("err", err))
		return nil, err
	}
	if err := ensureSchema(ctx, db); err != nil {
		_ = db.Close()
		l.Error("ensure schema failed", slog.Any("err", err))
		return nil, err
	}
	if err := runMigrations(ctx, db); err != nil {
		_ = db.Close()
		l.Error("run migrations failed", slog.Any("err", err))
		return nil, err
	}

	l.Info("store ready")
	return &SQLiteStore{
		sqlStore: newSQLStore(db, dialectSQLite, applog.WithComponent("storage").With(slog.String("driver", "sqlite"))),
		path:     path,
	}, nil
}

func openSQLiteDB(path string) (*sql.DB, error) {
	// Use a URI with shared cache and set busy timeout. Convert to forward slashes for SQLite URI.
	dsn := fmt.Sprintf("file:%s?cache=shared&_pragma=busy_timeout(5000)", filepath.ToSlash(path))
	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, fmt.Errorf("open sqlite: %w", err)
	}
	// Set reasonable connection pool limits for embedded usage.
	db.SetMaxOpenConns(1)
	db.SetMaxIdleConns(1)
	return db, nil
}

func ensureMetaAndVersion(ctx context.Context, db *sql.DB) error {
	ddl := []string{
		`CREATE TABLE IF NOT EXISTS meta (
			key   TEXT PRIMARY KEY,
			value TEXT NOT NULL
		);`,
		`CREATE TABLE IF NOT EXISTS version (
			id          INTEGER PRIMARY KEY CHECK(id=1),
			schema      INTEGER NOT NULL,
			app         TEXT,
			created_at  TEXT NOT NULL,
			updated_at  TEXT NOT NULL
		);`,
	}
	for _, q := range ddl {
		if _, err := db.ExecContext(ctx, q); err != nil {
			return fmt.Errorf("create table: %w", err)
		}
	}
	now := time.Now().UTC().Format(time.RFC3339)
	appv := version.String()
	var curSchema int
	err := db.QueryRowContext(ctx, `SELECT schema FROM version WHERE id=1`).Scan(&curSchema)
	switch {
	case errors.Is(err, sql.ErrNoRows):
		// Fresh DB: ensureSchema creates everything at the current version.
		if _, err := db.ExecContext(ctx, `INSERT INTO version (id, schema, app, created_at, updated_at) VALUES(1, ?, ?, ?, ?)`, schemaVersion, appv, now, now); err != nil {
			return fmt.Errorf("insert version: %w", err)
		}
	case err != nil:
		return fmt.Errorf("read version: %w", err)
	default:
		// Keep the existing schema number for migrations.
		if _, err := db.ExecContext(ctx, `UPDATE version SET app=?, updated_at=? WHERE id=1`, appv, now); err != nil {
			return fmt.Errorf("update version: %w", err)
		}
	}
	return nil
}

// runMigrations applies incremental schema migrations up to schemaVersion.
func runMigrations(ctx context.Context, db *sql.DB) error {
	var cur int
	if err := db.QueryRowContext(ctx, `SELECT schema FROM version WHERE id=1`).Scan(&cur); err != nil {
		return fmt.Errorf("read schema version: %w", err)
	}
	if cur > schemaVersion {
		// Do not downgrade.
		return nil
	}
	for cur < schemaVersion {
		next := cur + 1
		switch next {
		case 2:
			// v1 had no caption index; backfill it from the memes table.
			tx, err := db.BeginTx(ctx, nil)
			if err != nil {
				return fmt.Errorf("begin migration %d: %w", next, err)
			}
			stmts := []string{
				`INSERT INTO fts_captions(fts_captions) VALUES('rebuild');`,
				`CREATE INDEX IF NOT EXISTS idx_memes_user ON memes(user_id);`,
			}
			for _, q := range stmts {
				if _, err := tx.ExecContext(ctx, q); err != nil {
					_ = tx.Rollback()
					return fmt.Errorf("migration %d stmt failed: %w", next, err)
				}
			}
			if _, err := tx.ExecContext(ctx, `UPDATE version SET schema=?, updated_at=? WHERE id=1`, next, time.Now().UTC().Format(time.RFC3339)); err != nil {
				_ = tx.Rollback()
				return fmt.Errorf("migration %d update version: %w", next, err)
			}
			if err := tx.Commit(); err != nil {
				return fmt.Errorf("migration %d commit: %w", next, err)
			}
			// Best-effort optimize outside the tx.
			_, _ = db.ExecContext(ctx, `INSERT INTO fts_captions(fts_captions) VALUES('optimize')`)
		default:
			// Unknown future step.
		}
		cur = next
	}
	return nil
}

// ensureSchema creates tables, the caption FTS index and its triggers if they
// do not exist.
func ensureSchema(ctx context.Context, db *sql.DB) error {
	ddl := []string{
		`CREATE TABLE IF NOT EXISTS memes (
			id              TEXT    PRIMARY KEY,
			user_id         TEXT    NOT NULL DEFAULT '',
			image_data      TEXT    NOT NULL,
			base_image_data TEXT    NOT NULL DEFAULT '',
			stage_w         REAL    NOT NULL DEFAULT 0,
			stage_h         REAL    NOT NULL DEFAULT 0,
			text_boxes      TEXT    NOT NULL DEFAULT '[]',
			caption         TEXT    NOT NULL DEFAULT '',
			upvotes         INTEGER NOT NULL DEFAULT 0,
			created_at      INTEGER NOT NULL
		);`,
		`CREATE INDEX IF NOT EXISTS idx_memes_created ON memes(created_at);`,
		`CREATE INDEX IF NOT EXISTS idx_memes_upvotes ON memes(upvotes);`,
		`CREATE INDEX IF NOT EXISTS idx_memes_user ON memes(user_id);`,

		`CREATE TABLE IF NOT EXISTS upvotes (
			id         TEXT    PRIMARY KEY,
			meme_id    TEXT    NOT NULL,
			user_id    TEXT    NOT NULL,
			created_at INTEGER NOT NULL,
			UNIQUE(meme_id, user_id),
			FOREIGN KEY(meme_id) REFERENCES memes(id) ON DELETE CASCADE
		);`,

		// External-content FTS5 index over memes.caption, fed by triggers.
		`CREATE VIRTUAL TABLE IF NOT EXISTS fts_captions USING fts5(
			caption,
			content='memes',
			content_rowid='rowid',
			tokenize = 'unicode61'
		);`,
		`CREATE TRIGGER IF NOT EXISTS memes_ai AFTER INSERT ON memes BEGIN
			INSERT INTO fts_captions(rowid, caption) VALUES (new.rowid, new.caption);
		END;`,
		`CREATE TRIGGER IF NOT EXISTS memes_ad AFTER DELETE ON memes BEGIN
			INSERT INTO fts_captions(fts_captions, rowid, caption) VALUES('delete', old.rowid, old.caption);
		END;`,
		`CREATE TRIGGER IF NOT EXISTS memes_au AFTER UPDATE OF caption ON memes BEGIN
			INSERT INTO fts_captions(fts_captions, rowid, caption) VALUES('delete', old.rowid, old.caption);
			INSERT INTO fts_captions(rowid, caption) VALUES (new.rowid, new.caption);
		END;`,

		`CREATE TABLE IF NOT EXISTS previews (
			id          INTEGER PRIMARY KEY,
			meme_id     TEXT    NOT NULL,
			w           INTEGER NOT NULL DEFAULT 0,
			h           INTEGER NOT NULL DEFAULT 0,
			thumb_blob  BLOB    NOT NULL,
			size        INTEGER NOT NULL DEFAULT 0,
			updated_at  INTEGER NOT NULL,
			last_access INTEGER
		);`,
		`CREATE UNIQUE INDEX IF NOT EXISTS ux_previews_variant ON previews(meme_id, w, h);`,
		`CREATE INDEX IF NOT EXISTS idx_previews_access ON previews(last_access);`,
	}
	for _, q := range ddl {
		if _, err := db.ExecContext(ctx, q); err != nil {
			return fmt.Errorf("ensure schema: %w", err)
		}
	}
	return nil
}

// Search matches caption text with FTS5 syntax (terms, quoted phrases,
// AND/OR/NOT). Empty text returns nothing.
func (s *SQLiteStore) Search(ctx context.Context, text string, limit int) ([]SearchResult, error) {
	if strings.TrimSpace(text) == "" {
		return nil, nil
	}
	if limit <= 0 {
		limit = DefaultListLimit
	}
	rows, err := s.db.QueryContext(ctx, `SELECT m.id, snippet(fts_captions, 0, '[', ']', '…', 10)
		FROM fts_captions JOIN memes m ON fts_captions.rowid = m.rowid
		WHERE fts_captions MATCH ?
		ORDER BY rank LIMIT ?`, text, limit)
	if err != nil {
		return nil, fmt.Errorf("search: %w", err)
	}
	defer rows.Close()
	var out []SearchResult
	for rows.Next() {
		var r SearchResult
		if err := rows.Scan(&r.MemeID, &r.Snippet); err != nil {
			return nil, err
		}
		out = append(out, r)
	}
	return out, rows.Err()
}

// IntegrityCheck runs PRAGMA quick_check and reports the first problem.
func (s *SQLiteStore) IntegrityCheck(ctx context.Context) error {
	return quickCheck(ctx, s.db)
}

func quickCheck(ctx context.Context, db *sql.DB) error {
	var res string
	if err := db.QueryRowContext(ctx, `PRAGMA quick_check;`).Scan(&res); err != nil {
		return fmt.Errorf("quick_check: %w", err)
	}
	if !strings.EqualFold(res, "ok") {
		return fmt.Errorf("quick_check: %s", res)
	}
	return nil
}

// RecoverSQLite checks the database at path and, when it cannot be opened or
// fails the integrity check, moves it into a backups directory beside it so a
// fresh store can be created. It reports whether the file was moved.
func RecoverSQLite(ctx context.Context, path string) (bool, error) {
	l := applog.WithOperation(applog.WithComponent("storage"), "sqlite_recover").With(slog.String("path", path))
	fi, err := os.Stat(path)
	if err == nil && fi.IsDir() {
		path = filepath.Join(path, DefaultDBFileName)
		_, err = os.Stat(path)
	}
	if errors.Is(err, os.ErrNotExist) {
		return false, nil
	}
	healthy := func() bool {
		db, err := openSQLiteDB(path)
		if err != nil {
			return false
		}
		defer db.Close()
		return quickCheck(ctx, db) == nil
	}
	if healthy() {
		return false, nil
	}
	bdir := filepath.Join(filepath.Dir(path), "backups")
	if err := os.MkdirAll(bdir, 0o755); err != nil {
		return false, fmt.Errorf("create backups dir: %w", err)
	}
	ts := time.Now().UTC().Format("20060102T150405Z")
	dst := filepath.Join(bdir, filepath.Base(path)+"."+ts+".corrupt")
	if err := os.Rename(path, dst); err != nil {
		return false, fmt.Errorf("move corrupt db: %w", err)
	}
	for _, suffix := range []string{"-wal", "-shm"} {
		_ = os.Remove(path + suffix)
	}
	l.Warn("corrupt database moved aside", slog.String("backup", dst))
	return true, nil
}
