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
	"os"
	"strconv"
	"strings"
)

// PreviewCache stores rendered thumbnails keyed by meme and size, bounded by
// a byte cap with least-recently-used eviction.
type PreviewCache interface {
	GetOrCreatePreview(ctx context.Context, memeID string, w, h int, gen func(context.Context) ([]byte, error)) ([]byte, error)
}

// SetPreviewCap overrides the cache cap. n ≤ 0 disables eviction.
func (s *sqlStore) SetPreviewCap(n int64) { s.capBytes = n }

// GetPreview returns the cached thumbnail for (memeID, w, h) and updates its
// access time. A miss returns nil, nil.
func (s *sqlStore) GetPreview(ctx context.Context, memeID string, w, h int) ([]byte, error) {
	var blob []byte
	err := s.queryRow(ctx, `SELECT thumb_blob FROM previews WHERE meme_id=? AND w=? AND h=?`, memeID, w, h).Scan(&blob)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("query preview: %w", err)
	}
	// touch
	_, _ = s.exec(ctx, `UPDATE previews SET last_access=? WHERE meme_id=? AND w=? AND h=?`, s.now().UnixNano(), memeID, w, h)
	return blob, nil
}

// PutPreview upserts a thumbnail and enforces the cache cap.
func (s *sqlStore) PutPreview(ctx context.Context, memeID string, w, h int, blob []byte) error {
	if len(blob) == 0 {
		return errors.New("empty preview")
	}
	now := s.now().UnixNano()
	_, err := s.exec(ctx, `INSERT INTO previews(meme_id, w, h, thumb_blob, size, updated_at, last_access)
		VALUES(?,?,?,?,?,?,?)
		ON CONFLICT(meme_id, w, h) DO UPDATE SET thumb_blob=excluded.thumb_blob, size=excluded.size,
			updated_at=excluded.updated_at, last_access=excluded.last_access`,
		memeID, w, h, blob, len(blob), now, now)
	if err != nil {
		return fmt.Errorf("upsert preview: %w", err)
	}
	if s.capBytes > 0 {
		return s.EvictPreviewsToFit(ctx, s.capBytes)
	}
	return nil
}

// GetOrCreatePreview fetches a preview or generates and stores it using gen.
func (s *sqlStore) GetOrCreatePreview(ctx context.Context, memeID string, w, h int, gen func(context.Context) ([]byte, error)) ([]byte, error) {
	if b, err := s.GetPreview(ctx, memeID, w, h); err != nil {
		return nil, err
	} else if b != nil {
		return b, nil
	}
	if gen == nil {
		return nil, nil
	}
	data, err := gen(ctx)
	if err != nil {
		return nil, err
	}
	if len(data) == 0 {
		return nil, nil
	}
	if err := s.PutPreview(ctx, memeID, w, h, data); err != nil {
		return nil, err
	}
	return data, nil
}

// EvictPreviewsToFit deletes least-recently-used rows until the total size is
// at most capBytes.
func (s *sqlStore) EvictPreviewsToFit(ctx context.Context, capBytes int64) error {
	total, err := s.TotalPreviewBytes(ctx)
	if err != nil {
		return err
	}
	if total <= capBytes {
		return nil
	}
	// Oldest access first, never-accessed rows before everything else.
	rows, err := s.db.QueryContext(ctx, `SELECT id, size FROM previews ORDER BY
		CASE WHEN last_access IS NULL THEN 0 ELSE 1 END ASC, last_access ASC, id ASC`)
	if err != nil {
		return fmt.Errorf("select victims: %w", err)
	}
	toDelete := make([]any, 0, 32)
	cur := total
	for rows.Next() {
		var id, sz int64
		if err := rows.Scan(&id, &sz); err != nil {
			_ = rows.Close()
			return err
		}
		toDelete = append(toDelete, id)
		cur -= sz
		if cur <= capBytes {
			break
		}
	}
	if err := rows.Err(); err != nil {
		_ = rows.Close()
		return err
	}
	// Close the cursor before writing; SQLite runs on a single connection.
	if err := rows.Close(); err != nil {
		return err
	}
	if len(toDelete) == 0 {
		return nil
	}
	q := `DELETE FROM previews WHERE id IN (` + placeholders(len(toDelete)) + `)`
	if _, err := s.exec(ctx, q, toDelete...); err != nil {
		return fmt.Errorf("evict delete: %w", err)
	}
	return nil
}

// TotalPreviewBytes returns the bytes tracked by previews.size.
func (s *sqlStore) TotalPreviewBytes(ctx context.Context) (int64, error) {
	var total int64
	if err := s.queryRow(ctx, `SELECT COALESCE(SUM(size),0) FROM previews`).Scan(&total); err != nil {
		return 0, fmt.Errorf("sum previews size: %w", err)
	}
	return total, nil
}

func placeholders(n int) string {
	if n <= 0 {
		return ""
	}
	return strings.TrimSuffix(strings.Repeat("?,", n), ",")
}

// MaxPreviewsBytesFromEnv reads GMC_PREVIEWS_MAX_BYTES, defaulting to 64MB if unset.
func MaxPreviewsBytesFromEnv() int64 {
	const def = 64 * 1024 * 1024
	v := os.Getenv("GMC_PREVIEWS_MAX_BYTES")
	if v == "" {
		return def
	}
	n, err := strconv.ParseInt(v, 10, 64)
	if err != nil || n <= 0 {
		return def
	}
	return n
}
