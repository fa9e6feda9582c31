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
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"strconv"
	"strings"
	"time"

	"github.com/google/uuid"

	"gomemecanvas/internal/domain"
)

type dialect int

const (
	dialectSQLite dialect = iota
	dialectPostgres
)

// rebind rewrites ? placeholders to $n for Postgres.
func (d dialect) rebind(q string) string {
	if d != dialectPostgres || !strings.Contains(q, "?") {
		return q
	}
	var b strings.Builder
	b.Grow(len(q) + 8)
	n := 0
	for _, r := range q {
		if r == '?' {
			n++
			b.WriteByte('$')
			b.WriteString(strconv.Itoa(n))
			continue
		}
		b.WriteRune(r)
	}
	return b.String()
}

// sqlStore holds the CRUD shared by the SQLite and Postgres stores. Queries
// are written with ? placeholders and rebound per dialect.
type sqlStore struct {
	db       *sql.DB
	dialect  dialect
	log      *slog.Logger
	now      func() time.Time
	newID    func() string
	capBytes int64
}

// DB exposes the underlying handle.
func (s *sqlStore) DB() *sql.DB { return s.db }

func (s *sqlStore) exec(ctx context.Context, q string, args ...any) (sql.Result, error) {
	return s.db.ExecContext(ctx, s.dialect.rebind(q), args...)
}

func (s *sqlStore) queryRow(ctx context.Context, q string, args ...any) *sql.Row {
	return s.db.QueryRowContext(ctx, s.dialect.rebind(q), args...)
}

const memeColumns = `id, user_id, image_data, base_image_data, stage_w, stage_h, text_boxes, upvotes, created_at`

func (s *sqlStore) Save(ctx context.Context, m *domain.Meme) error {
	if err := validateForSave(m); err != nil {
		return err
	}
	boxes := m.TextBoxes
	if boxes == nil {
		boxes = []domain.TextBox{}
	}
	raw, err := json.Marshal(boxes)
	if err != nil {
		return fmt.Errorf("encode text boxes: %w", err)
	}
	if m.CreatedAt == 0 {
		m.CreatedAt = s.now().UnixMilli()
	}
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin tx: %w", err)
	}
	q := `INSERT INTO memes(id, user_id, image_data, base_image_data, stage_w, stage_h, text_boxes, caption, upvotes, created_at)
		VALUES(?,?,?,?,?,?,?,?,0,?)
		ON CONFLICT(id) DO UPDATE SET user_id=excluded.user_id, image_data=excluded.image_data,
			base_image_data=excluded.base_image_data, stage_w=excluded.stage_w, stage_h=excluded.stage_h,
			text_boxes=excluded.text_boxes, caption=excluded.caption`
	if _, err := tx.ExecContext(ctx, s.dialect.rebind(q),
		m.ID, m.UserID, m.ImageData, m.BaseImageData, m.StageWidth, m.StageHeight,
		string(raw), captionText(m.TextBoxes), m.CreatedAt); err != nil {
		_ = tx.Rollback()
		return fmt.Errorf("upsert meme: %w", err)
	}
	// Cached thumbnails are stale once the raster changes.
	if _, err := tx.ExecContext(ctx, s.dialect.rebind(`DELETE FROM previews WHERE meme_id=?`), m.ID); err != nil {
		_ = tx.Rollback()
		return fmt.Errorf("drop previews: %w", err)
	}
	var up, created int64
	if err := tx.QueryRowContext(ctx, s.dialect.rebind(`SELECT upvotes, created_at FROM memes WHERE id=?`), m.ID).Scan(&up, &created); err != nil {
		_ = tx.Rollback()
		return fmt.Errorf("read back meme: %w", err)
	}
	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit: %w", err)
	}
	m.Upvotes = int(up)
	m.CreatedAt = created
	s.log.Debug("meme saved", slog.String("id", m.ID), slog.Int("boxes", len(m.TextBoxes)))
	return nil
}

type scanner interface {
	Scan(dest ...any) error
}

func scanMeme(sc scanner) (domain.Meme, error) {
	var (
		m     domain.Meme
		raw   string
		up    int64
		sw    float64
		sh    float64
		ctime int64
	)
	if err := sc.Scan(&m.ID, &m.UserID, &m.ImageData, &m.BaseImageData, &sw, &sh, &raw, &up, &ctime); err != nil {
		return m, err
	}
	m.StageWidth, m.StageHeight = sw, sh
	m.Upvotes = int(up)
	m.CreatedAt = ctime
	if strings.TrimSpace(raw) != "" {
		if err := json.Unmarshal([]byte(raw), &m.TextBoxes); err != nil {
			return m, fmt.Errorf("decode text boxes for %s: %w", m.ID, err)
		}
	}
	if m.TextBoxes == nil {
		m.TextBoxes = []domain.TextBox{}
	}
	return m, nil
}

func (s *sqlStore) Get(ctx context.Context, id string) (*domain.Meme, error) {
	m, err := scanMeme(s.queryRow(ctx, `SELECT `+memeColumns+` FROM memes WHERE id=?`, id))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("get meme: %w", err)
	}
	return &m, nil
}

func (s *sqlStore) List(ctx context.Context, opt ListOptions) ([]domain.Meme, error) {
	opt = normalizeList(opt)
	var (
		sb   strings.Builder
		args []any
	)
	sb.WriteString(`SELECT ` + memeColumns + ` FROM memes`)
	if u := strings.TrimSpace(opt.UserID); u != "" {
		sb.WriteString(` WHERE user_id=?`)
		args = append(args, u)
	}
	sb.WriteString(" " + orderClause(opt.Sort) + " LIMIT ? OFFSET ?")
	args = append(args, opt.Limit, opt.Offset)
	rows, err := s.db.QueryContext(ctx, s.dialect.rebind(sb.String()), args...)
	if err != nil {
		return nil, fmt.Errorf("list memes: %w", err)
	}
	defer rows.Close()
	out := make([]domain.Meme, 0, opt.Limit)
	for rows.Next() {
		m, err := scanMeme(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, m)
	}
	return out, rows.Err()
}

func (s *sqlStore) Delete(ctx context.Context, id string) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin tx: %w", err)
	}
	for _, q := range []string{
		`DELETE FROM upvotes WHERE meme_id=?`,
		`DELETE FROM previews WHERE meme_id=?`,
	} {
		if _, err := tx.ExecContext(ctx, s.dialect.rebind(q), id); err != nil {
			_ = tx.Rollback()
			return fmt.Errorf("delete dependents: %w", err)
		}
	}
	res, err := tx.ExecContext(ctx, s.dialect.rebind(`DELETE FROM memes WHERE id=?`), id)
	if err != nil {
		_ = tx.Rollback()
		return fmt.Errorf("delete meme: %w", err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		_ = tx.Rollback()
		return ErrNotFound
	}
	return tx.Commit()
}

func (s *sqlStore) ToggleUpvote(ctx context.Context, memeID, userID string) (bool, int, error) {
	if strings.TrimSpace(userID) == "" {
		return false, 0, errors.New("user id is required")
	}
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return false, 0, fmt.Errorf("begin tx: %w", err)
	}
	rollback := func(err error) (bool, int, error) {
		_ = tx.Rollback()
		return false, 0, err
	}
	var exists int
	err = tx.QueryRowContext(ctx, s.dialect.rebind(`SELECT 1 FROM memes WHERE id=?`), memeID).Scan(&exists)
	if errors.Is(err, sql.ErrNoRows) {
		return rollback(ErrNotFound)
	}
	if err != nil {
		return rollback(fmt.Errorf("lookup meme: %w", err))
	}
	res, err := tx.ExecContext(ctx, s.dialect.rebind(`DELETE FROM upvotes WHERE meme_id=? AND user_id=?`), memeID, userID)
	if err != nil {
		return rollback(fmt.Errorf("remove upvote: %w", err))
	}
	removed, _ := res.RowsAffected()
	upvoted := removed == 0
	if upvoted {
		if _, err := tx.ExecContext(ctx, s.dialect.rebind(`INSERT INTO upvotes(id, meme_id, user_id, created_at) VALUES(?,?,?,?)`),
			s.newID(), memeID, userID, s.now().UnixMilli()); err != nil {
			return rollback(fmt.Errorf("add upvote: %w", err))
		}
	}
	// The cached counter is recomputed, never incremented, so it cannot drift.
	if _, err := tx.ExecContext(ctx, s.dialect.rebind(`UPDATE memes SET upvotes=(SELECT COUNT(*) FROM upvotes WHERE meme_id=?) WHERE id=?`), memeID, memeID); err != nil {
		return rollback(fmt.Errorf("update count: %w", err))
	}
	var count int64
	if err := tx.QueryRowContext(ctx, s.dialect.rebind(`SELECT upvotes FROM memes WHERE id=?`), memeID).Scan(&count); err != nil {
		return rollback(fmt.Errorf("read count: %w", err))
	}
	if err := tx.Commit(); err != nil {
		return false, 0, fmt.Errorf("commit: %w", err)
	}
	return upvoted, int(count), nil
}

// HasUpvoted reports whether userID currently upvotes memeID.
func (s *sqlStore) HasUpvoted(ctx context.Context, memeID, userID string) (bool, error) {
	var one int
	err := s.queryRow(ctx, `SELECT 1 FROM upvotes WHERE meme_id=? AND user_id=?`, memeID, userID).Scan(&one)
	if errors.Is(err, sql.ErrNoRows) {
		return false, nil
	}
	if err != nil {
		return false, fmt.Errorf("query upvote: %w", err)
	}
	return true, nil
}

func (s *sqlStore) Ping(ctx context.Context) error { return s.db.PingContext(ctx) }

func (s *sqlStore) Close() error { return s.db.Close() }

func newSQLStore(db *sql.DB, d dialect, l *slog.Logger) sqlStore {
	return sqlStore{
		db:       db,
		dialect:  d,
		log:      l,
		now:      time.Now,
		newID:    uuid.NewString,
		capBytes: MaxPreviewsBytesFromEnv(),
	}
}
