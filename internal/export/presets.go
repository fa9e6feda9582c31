/*
 * Copyright (c) 2025 by Alexander Drost, Oldenburg, Germany.
 * This file is licensed to you under the Apache License, Version 2.0 (the "License"); you may not use this file except in compliance with the License.  You may obtain a copy of the License at
 *   http://www.apache.org/licenses/LICENSE-2.0
 * Unless required by applicable law or agreed to in writing, software distributed under the License is distributed on an
 * "AS IS" BASIS, WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.  See the License for the specific language governing permissions and limitations under the License.
 */
package export

import (
	"context"
	"fmt"
	"log/slog"
	"path/filepath"
	"strings"

	applog "gomemecanvas/internal/log"
	"gomemecanvas/internal/render"
	"gomemecanvas/internal/storage"
)

// PresetName represents a named export preset.
type PresetName string

const (
	PresetOriginal PresetName = "original"
	PresetWeb      PresetName = "web"
	PresetThumb    PresetName = "thumb"
)

// ParsePreset maps a user string to a preset; unknown names are an error.
func ParsePreset(s string) (PresetName, error) {
	switch p := PresetName(strings.ToLower(strings.TrimSpace(s))); p {
	case "", PresetOriginal:
		return PresetOriginal, nil
	case PresetWeb, PresetThumb:
		return p, nil
	default:
		return "", fmt.Errorf("unknown preset: %s", s)
	}
}

func presetMaxSide(p PresetName) int {
	switch p {
	case PresetWeb:
		return 1080
	case PresetThumb:
		return 256
	default:
		return 0
	}
}

// BatchOptions controls batch export of stored memes.
//
// Path semantics: each meme is written as <id>.png in OutDir, with <id>.json
// beside it when Records is set. A relative OutDir is created as given.
type BatchOptions struct {
	Preset   PresetName
	OutDir   string
	List     storage.ListOptions
	Records  bool
	Rerender bool
}

// BatchExport exports the memes selected by opt.List and returns how many were written.
func BatchExport(ctx context.Context, st storage.Store, r *render.Rasterizer, opt BatchOptions) (int, error) {
	if st == nil {
		return 0, fmt.Errorf("store is nil")
	}
	if strings.TrimSpace(opt.OutDir) == "" {
		opt.OutDir = string(opt.Preset)
		if opt.OutDir == "" {
			opt.OutDir = string(PresetOriginal)
		}
	}
	l := applog.WithOperation(applog.WithComponent("export"), "batch").With(
		slog.String("out", opt.OutDir), slog.String("preset", string(opt.Preset)),
	)
	memes, err := st.List(ctx, opt.List)
	if err != nil {
		return 0, fmt.Errorf("list memes: %w", err)
	}
	n := 0
	for i := range memes {
		if err := ctx.Err(); err != nil {
			return n, err
		}
		m := &memes[i]
		name := safeName(m.ID)
		png := filepath.Join(opt.OutDir, name+".png")
		if err := ExportMemePNG(m, png, r, PNGOptions{Preset: opt.Preset, Rerender: opt.Rerender}); err != nil {
			return n, fmt.Errorf("png %s: %w", m.ID, err)
		}
		if opt.Records {
			if err := storage.WriteRecord(filepath.Join(opt.OutDir, name+".json"), *m); err != nil {
				return n, fmt.Errorf("record %s: %w", m.ID, err)
			}
		}
		n++
	}
	l.Info("batch export done", slog.Int("count", n))
	return n, nil
}

// safeName keeps ids usable as file names.
func safeName(id string) string {
	return strings.Map(func(r rune) rune {
		switch {
		case r >= 'a' && r <= 'z', r >= 'A' && r <= 'Z', r >= '0' && r <= '9', r == '-', r == '_':
			return r
		default:
			return '_'
		}
	}, id)
}
