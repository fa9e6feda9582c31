/*
 * Copyright (c) 2025 by Alexander Drost, Oldenburg, Germany.
 * This file is licensed to you under the Apache License, Version 2.0 (the "License"); you may not use this file except in compliance with the License.  You may obtain a copy of the License at
 *   http://www.apache.org/licenses/LICENSE-2.0
 * Unless required by applicable law or agreed to in writing, software distributed under the License is distributed on an
 * "AS IS" BASIS, WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.  See the License for the specific language governing permissions and limitations under the License.
 */

// Package render rasterizes a composition (base image plus text boxes) onto a
// bitmap at the image's native resolution. It is the only path that produces
// pixels for download, persistence and preview.
package render

import (
	"cmp"
	"errors"
	"image"
	"math"
	"slices"

	"gomemecanvas/internal/domain"
	"gomemecanvas/internal/geom"
	"gomemecanvas/internal/textlayout"
)

// ErrNoImage is returned by the export helpers when there is nothing to encode.
var ErrNoImage = errors.New("no base image")

// Text block constants in output pixels relative to the font size.
const (
	LineHeightFactor = 1.2
	MinStrokeWidth   = 3
	MinTextWidth     = 50
)

// Rasterizer draws boxes over a base image. The zero value is usable: it draws
// with the basic fixed face and the classic caption style.
type Rasterizer struct {
	Fonts  *textlayout.FontLibrary
	Style  textlayout.TextStyle
	Limits geom.Limits
}

// New returns a Rasterizer using fonts and the classic style. A nil library
// selects the embedded Go fonts.
func New(fonts *textlayout.FontLibrary) *Rasterizer {
	if fonts == nil {
		fonts = textlayout.DefaultLibrary()
	}
	st, _ := textlayout.GetStyle("Classic")
	return &Rasterizer{Fonts: fonts, Style: st, Limits: geom.DefaultLimits}
}

func (r *Rasterizer) provider() textlayout.Provider {
	if r.Fonts == nil {
		return textlayout.BasicProvider{}
	}
	return textlayout.OTProvider{Lib: r.Fonts}
}

func (r *Rasterizer) style() textlayout.TextStyle {
	if r.Style.Name == "" {
		st, _ := textlayout.GetStyle("Classic")
		return st
	}
	return r.Style
}

// Visible returns the boxes that get rasterized: non-blank text, ordered by
// zIndex with ties kept in input order.
func Visible(boxes []domain.TextBox) []domain.TextBox {
	out := make([]domain.TextBox, 0, len(boxes))
	for _, b := range boxes {
		if !b.Blank() {
			out = append(out, b)
		}
	}
	slices.SortStableFunc(out, func(a, b domain.TextBox) int { return cmp.Compare(a.ZIndex, b.ZIndex) })
	return out
}

// Draw paints base over the whole surface and then every visible box. Box
// geometry is resolved against stage, the overlay the ratios were committed
// from. A nil base draws nothing; a degenerate stage draws only the base.
func (r *Rasterizer) Draw(s Surface, base image.Image, boxes []domain.TextBox, stage geom.Size) {
	if s == nil || base == nil {
		return
	}
	s.DrawImage(base)
	if !stage.Valid() {
		return
	}
	w, h := s.Size()
	out := geom.Size{W: float64(w), H: float64(h)}
	for _, b := range Visible(boxes) {
		r.drawBox(s, b, out, stage)
	}
}

func (r *Rasterizer) drawBox(s Surface, b domain.TextBox, out, stage geom.Size) {
	g, ok := geom.ToOutputPixels(b, out, stage, r.Limits)
	if !ok {
		return
	}
	fontPx := math.Max(geom.MinRenderFont, geom.BaseFontPixels(b, stage.W)*g.Scale)
	st := textlayout.StyleForBox(r.style(), b)
	s.SetFont(textlayout.FontSpec{Family: st.Family, SizePx: fontPx, Weight: 700})

	maxW := math.Max(MinTextWidth, g.Rect.W-2*g.Padding)
	cx := g.Rect.X + g.Rect.W/2
	y := g.Rect.Y + g.Padding
	lh := fontPx * LineHeightFactor
	stroke := math.Max(MinStrokeWidth, fontPx/8)
	for line := range textlayout.Lines(b.Text, maxW, s) {
		if line != "" {
			s.StrokeText(line, cx, y, stroke, st.Stroke)
			s.FillText(line, cx, y, st.Fill)
		}
		y += lh
	}
}

// Render rasterizes onto a new bitmap sized to the base image's intrinsic
// bounds. It returns nil when base is nil.
func (r *Rasterizer) Render(base image.Image, boxes []domain.TextBox, stage geom.Size) *image.RGBA {
	if base == nil {
		return nil
	}
	b := base.Bounds()
	dst := image.NewRGBA(image.Rect(0, 0, b.Dx(), b.Dy()))
	r.Draw(NewImageSurface(dst, r.provider()), base, boxes, stage)
	return dst
}
