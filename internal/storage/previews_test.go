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
	"testing"
	"time"
)

func TestPreviewsPutGetAndEvict(t *testing.T) {
	s := openTestStore(t)
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	// Tiny cap forces eviction quickly.
	s.SetPreviewCap(64)
	clock := time.Unix(1000, 0)
	s.now = func() time.Time { clock = clock.Add(time.Millisecond); return clock }

	for _, w := range []int{100, 200, 300} {
		if err := s.PutPreview(ctx, "m1", w, w, make([]byte, 40)); err != nil {
			t.Fatalf("put %d: %v", w, err)
		}
	}
	total, err := s.TotalPreviewBytes(ctx)
	if err != nil {
		t.Fatalf("total: %v", err)
	}
	if total > 64 {
		t.Fatalf("expected eviction to <=64 bytes, got %d", total)
	}
	// Only the newest survives.
	b, err := s.GetPreview(ctx, "m1", 300, 300)
	if err != nil || len(b) != 40 {
		t.Fatalf("expected newest preview to survive: %d %v", len(b), err)
	}
	if b, _ := s.GetPreview(ctx, "m1", 100, 100); b != nil {
		t.Fatalf("oldest preview should be evicted")
	}
	if err := s.PutPreview(ctx, "m1", 400, 400, make([]byte, 40)); err != nil {
		t.Fatalf("put D: %v", err)
	}
	if total2, err := s.TotalPreviewBytes(ctx); err != nil || total2 > 64 {
		t.Fatalf("post total: %v / %d", err, total2)
	}
	if err := s.PutPreview(ctx, "m1", 1, 1, nil); err == nil {
		t.Fatalf("expected error for empty blob")
	}
}

func TestGetOrCreatePreview(t *testing.T) {
	s := openTestStore(t)
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	calls := 0
	gen := func(context.Context) ([]byte, error) { calls++; return []byte("abcd"), nil }
	b, err := s.GetOrCreatePreview(ctx, "m2", 64, 64, gen)
	if err != nil {
		t.Fatalf("getOrCreate: %v", err)
	}
	if string(b) != "abcd" {
		t.Fatalf("unexpected data: %q", string(b))
	}
	// Second call hits the cache.
	if _, err = s.GetOrCreatePreview(ctx, "m2", 64, 64, gen); err != nil {
		t.Fatalf("getOrCreate 2: %v", err)
	}
	if calls != 1 {
		t.Fatalf("generator should be called once, got %d", calls)
	}
	var _ PreviewCache = s
}

func TestSaveInvalidatesPreviews(t *testing.T) {
	s := openTestStore(t)
	ctx := context.Background()
	m := testMeme("m", "u", 1, "x")
	if err := s.Save(ctx, m); err != nil {
		t.Fatalf("Save: %v", err)
	}
	if err := s.PutPreview(ctx, "m", 10, 10, []byte("png")); err != nil {
		t.Fatalf("PutPreview: %v", err)
	}
	if err := s.Save(ctx, m); err != nil {
		t.Fatalf("Save again: %v", err)
	}
	if b, _ := s.GetPreview(ctx, "m", 10, 10); b != nil {
		t.Fatalf("preview should be dropped when the meme is replaced")
	}
}

func TestMaxPreviewsBytesFromEnv(t *testing.T) {
	t.Setenv("GMC_PREVIEWS_MAX_BYTES", "1234")
	if got := MaxPreviewsBytesFromEnv(); got != 1234 {
		t.Fatalf("got %d", got)
	}
	t.Setenv("GMC_PREVIEWS_MAX_BYTES", "junk")
	if got := MaxPreviewsBytesFromEnv(); got != 64*1024*1024 {
		t.Fatalf("invalid value must fall back to default, got %d", got)
	}
}
