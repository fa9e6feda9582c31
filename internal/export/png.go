/*
 * Copyright (c) 2025 by Alexander Drost, Oldenburg, Germany.
 * This file is licensed to you under the Apache License, Version 2.0 (the "License"); you may not use this file except in compliance with the License.  You may obtain a copy of the License at
 *   http://www.apache.org/licenses/LICENSE-2.0
 * Unless required by applicable law or agreed to in writing, software distributed under the License is distributed on an
 * "AS IS" BASIS, WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.  See the License for the specific language governing permissions and limitations under the License.
 */
// Package export writes compositions to files: single PNGs at a preset size
// and batch exports of a store's memes as PNG plus JSON record pairs.
package export

import (
	"fmt"
	"image"
	"os"
	"path/filepath"

	"gomemecanvas/internal/domain"
	"gomemecanvas/internal/geom"
	"gomemecanvas/internal/render"
)

// PNGOptions controls PNG export behavior.
//   - Preset selects the output size; MaxSide > 0 overrides it.
//   - Rerender draws the boxes again over the kept base image instead of
//     using the stored raster. Records without a base always use the raster.
type PNGOptions struct {
	Preset   PresetName
	MaxSide  int
	Rerender bool
}

// ComposeRecord returns the image a record exports as. The stored raster is
// the canonical output; re-rendering uses r over the base at the record's stage.
func ComposeRecord(m *domain.Meme, r *render.Rasterizer, rerender bool) (image.Image, error) {
	if m == nil {
		return nil, fmt.Errorf("record is nil")
	}
	if rerender && m.BaseImageData != "" {
		base, err := render.DecodeDataURL(m.BaseImageData)
		if err != nil {
			return nil, fmt.Errorf("decode base image: %w", err)
		}
		if r == nil {
			r = render.New(nil)
		}
		stage := geom.Size{W: m.StageWidth, H: m.StageHeight}
		if !stage.Valid() {
			b := base.Bounds()
			stage = geom.FitDisplay(geom.Size{W: float64(b.Dx()), H: float64(b.Dy())}, geom.DisplayMax, geom.DisplayMax)
		}
		return r.Render(base, m.TextBoxes, stage), nil
	}
	img, err := render.DecodeDataURL(m.ImageData)
	if err != nil {
		return nil, fmt.Errorf("decode image: %w", err)
	}
	return img, nil
}

// ExportMemePNG writes the record as a PNG at path, creating parent directories.
func ExportMemePNG(m *domain.Meme, path string, r *render.Rasterizer, opt PNGOptions) error {
	img, err := ComposeRecord(m, r, opt.Rerender)
	if err != nil {
		return err
	}
	side := opt.MaxSide
	if side <= 0 {
		side = presetMaxSide(opt.Preset)
	}
	if side > 0 {
		b := img.Bounds()
		if b.Dx() > side || b.Dy() > side {
			img = render.Thumbnail(img, side)
		}
	}
	return writePNG(path, img)
}

func writePNG(path string, img image.Image) error {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return fmt.Errorf("ensure out dir: %w", err)
	}
	f, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("create png: %w", err)
	}
	if err := render.EncodePNG(f, img); err != nil {
		_ = f.Close()
		return fmt.Errorf("encode png: %w", err)
	}
	if err := f.Close(); err != nil {
		return fmt.Errorf("close png: %w", err)
	}
	return nil
}
