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
	"errors"
	"fmt"
	"strings"

	"gomemecanvas/internal/domain"
)

// ErrNotFound is returned when a record does not exist.
var ErrNotFound = errors.New("not found")

// Sort orders for List.
const (
	SortUpvotes = "upvotes"
	SortNewest  = "newest"
	SortOldest  = "oldest"
)

// ListOptions filters and orders List results. An empty Sort means newest
// first; Limit ≤ 0 selects DefaultListLimit.
type ListOptions struct {
	Sort   string
	Limit  int
	Offset int
	UserID string
}

const DefaultListLimit = 50

// SearchResult is one caption search hit. Snippet marks matches with [ ].
type SearchResult struct {
	MemeID  string
	Snippet string
}

// Store persists memes and upvotes.
type Store interface {
	// Save inserts or replaces m. The upvote count is owned by the store and
	// is not overwritten on replace.
	Save(ctx context.Context, m *domain.Meme) error
	Get(ctx context.Context, id string) (*domain.Meme, error)
	List(ctx context.Context, opt ListOptions) ([]domain.Meme, error)
	Delete(ctx context.Context, id string) error
	// ToggleUpvote adds the user's upvote or removes it when present and
	// returns the new state and count.
	ToggleUpvote(ctx context.Context, memeID, userID string) (upvoted bool, count int, err error)
	// Search matches caption text. Results are ordered by relevance.
	Search(ctx context.Context, text string, limit int) ([]SearchResult, error)
	Ping(ctx context.Context) error
	Close() error
}

// Config selects and configures a Store.
type Config struct {
	Driver string // sqlite | postgres
	Path   string // sqlite database file
	DSN    string // postgres connection string
}

// Open opens the store selected by cfg.Driver.
func Open(ctx context.Context, cfg Config) (Store, error) {
	switch strings.ToLower(strings.TrimSpace(cfg.Driver)) {
	case "", "sqlite":
		return OpenSQLite(cfg.Path)
	case "postgres", "pg", "pgx":
		return OpenPostgres(ctx, cfg.DSN)
	default:
		return nil, fmt.Errorf("unknown store driver %q", cfg.Driver)
	}
}

// normalizeList fills defaults into opt.
func normalizeList(opt ListOptions) ListOptions {
	switch opt.Sort {
	case SortUpvotes, SortNewest, SortOldest:
	default:
		opt.Sort = SortNewest
	}
	if opt.Limit <= 0 {
		opt.Limit = DefaultListLimit
	}
	if opt.Offset < 0 {
		opt.Offset = 0
	}
	return opt
}

// orderClause maps a sort key to SQL shared by both dialects.
func orderClause(sort string) string {
	switch sort {
	case SortUpvotes:
		return "ORDER BY upvotes DESC, created_at DESC, id"
	case SortOldest:
		return "ORDER BY created_at ASC, id"
	default:
		return "ORDER BY created_at DESC, id"
	}
}

// captionText joins all box texts; it feeds the full-text index.
func captionText(boxes []domain.TextBox) string {
	parts := make([]string, 0, len(boxes))
	for _, b := range boxes {
		if t := strings.TrimSpace(b.Text); t != "" {
			parts = append(parts, t)
		}
	}
	return strings.Join(parts, "\n")
}

func validateForSave(m *domain.Meme) error {
	if m == nil {
		return errors.New("nil meme")
	}
	if strings.TrimSpace(m.ID) == "" {
		return errors.New("meme id is required")
	}
	if strings.TrimSpace(m.ImageData) == "" {
		return errors.New("meme image data is required")
	}
	return nil
}
