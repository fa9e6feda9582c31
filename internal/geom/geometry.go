/*
 * Copyright (c) 2025 by Alexander Drost, Oldenburg, Germany.
 * This file is licensed to you under the Apache License, Version 2.0 (the "License"); you may not use this file except in compliance with the License.  You may obtain a copy of the License at
 *   http://www.apache.org/licenses/LICENSE-2.0
 * Unless required by applicable law or agreed to in writing, software distributed under the License is distributed on an
 * "AS IS" BASIS, WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.  See the License for the specific language governing permissions and limitations under the License.
 */

// Package geom converts text box geometry between its three coordinate spaces:
// stored ratios, overlay (stage) pixels and output (native bitmap) pixels.
//
// Ratios are canonical. Every transform here is total: degenerate input is
// clamped or reported as a no-op, never turned into NaN or negative sizes.
package geom

import (
	"math"

	"gomemecanvas/internal/domain"
)

// Defaults shared by the editor and the rasterizer. The editor limits can be
// overridden through configuration; see Limits.
const (
	MinBoxWidth      = 140
	MinBoxHeight     = 60
	BoxPadding       = 12
	DefaultFontRatio = 0.05
	MinBaseFont      = 18
	MinRenderFont    = 12
)

// Pt is a 2D point.
type Pt struct{ X, Y float64 }

// Size is a width/height pair.
type Size struct{ W, H float64 }

// Valid reports whether both dimensions are positive and finite.
func (s Size) Valid() bool {
	return s.W > 0 && s.H > 0 && !math.IsInf(s.W, 0) && !math.IsInf(s.H, 0)
}

// Rect is an axis-aligned rectangle defined by its top-left corner and size.
type Rect struct {
	X, Y float64
	W, H float64
}

// R is shorthand for a Rect literal.
func R(x, y, w, h float64) Rect { return Rect{X: x, Y: y, W: w, H: h} }

// Min is the top-left corner.
func (r Rect) Min() Pt { return Pt{r.X, r.Y} }

// Max is the bottom-right corner.
func (r Rect) Max() Pt { return Pt{r.X + r.W, r.Y + r.H} }

// Center is the midpoint of r.
func (r Rect) Center() Pt { return Pt{r.X + r.W/2, r.Y + r.H/2} }

// Contains reports whether p lies inside r, edges included.
func (r Rect) Contains(p Pt) bool {
	return p.X >= r.X && p.Y >= r.Y && p.X <= r.X+r.W && p.Y <= r.Y+r.H
}

// Inset returns a rectangle inset by dx,dy on all sides (negative grows).
func (r Rect) Inset(dx, dy float64) Rect {
	return Rect{X: r.X + dx, Y: r.Y + dy, W: r.W - 2*dx, H: r.H - 2*dy}
}

// Limits are the minimum resolved box dimensions in overlay pixels.
type Limits struct{ MinW, MinH float64 }

// DefaultLimits keeps boxes large enough to grab and type into.
var DefaultLimits = Limits{MinW: MinBoxWidth, MinH: MinBoxHeight}

func (l Limits) orDefault() Limits {
	if l.MinW <= 0 {
		l.MinW = MinBoxWidth
	}
	if l.MinH <= 0 {
		l.MinH = MinBoxHeight
	}
	return l
}

// Clamp bounds v to [lo, hi]. When hi < lo the upper bound wins.
func Clamp(v, lo, hi float64) float64 {
	return math.Min(math.Max(v, lo), hi)
}

// ToOverlayPixels resolves a box against the stage: ratio times stage dimension,
// width/height raised to the minimums (but never beyond the stage) and the
// position clamped so the box stays inside the stage. ok is false for a
// degenerate stage, in which case nothing should be drawn or committed.
func ToOverlayPixels(b domain.TextBox, stage Size, lim Limits) (r Rect, ok bool) {
	if !stage.Valid() {
		return Rect{}, false
	}
	lim = lim.orDefault()
	w := math.Min(stage.W, math.Max(lim.MinW, finite(b.WidthRatio)*stage.W))
	h := math.Min(stage.H, math.Max(lim.MinH, finite(b.HeightRatio)*stage.H))
	x := Clamp(finite(b.LeftRatio)*stage.W, 0, math.Max(stage.W-w, 0))
	y := Clamp(finite(b.TopRatio)*stage.H, 0, math.Max(stage.H-h, 0))
	return Rect{X: x, Y: y, W: w, H: h}, true
}

// DisplayMax is the default bound of the on-screen stage in either dimension.
const DisplayMax = 600

// FitDisplay scales an intrinsic image size down, preserving aspect ratio, so
// it fits inside maxW×maxH. Smaller images keep their size. It is the stage a
// headless render assumes when the caller does not supply one.
func FitDisplay(img Size, maxW, maxH float64) Size {
	if !img.Valid() {
		return Size{}
	}
	w, h := img.W, img.H
	if maxW > 0 && w > maxW {
		h = h * maxW / w
		w = maxW
	}
	if maxH > 0 && h > maxH {
		w = w * maxH / h
		h = maxH
	}
	return Size{W: w, H: h}
}

// OutputGeometry is a box resolved against the native output bitmap.
type OutputGeometry struct {
	Rect    Rect
	Scale   float64 // average of the horizontal and vertical output/stage ratios
	Padding float64 // BoxPadding in output pixels
}

// OutputScale is the uniform factor used for font size and padding. Averaging the
// two axes keeps text proportionate when the image is stretched non-uniformly.
func OutputScale(out, stage Size) float64 {
	if !out.Valid() || !stage.Valid() {
		return 1
	}
	return (out.W/stage.W + out.H/stage.H) / 2
}

// ToOutputPixels projects the overlay rectangle of b onto the output bitmap, so
// the exported pixels line up with what the user sees on the stage.
func ToOutputPixels(b domain.TextBox, out, stage Size, lim Limits) (OutputGeometry, bool) {
	if !out.Valid() {
		return OutputGeometry{}, false
	}
	ov, ok := ToOverlayPixels(b, stage, lim)
	if !ok {
		return OutputGeometry{}, false
	}
	sx := out.W / stage.W
	sy := out.H / stage.H
	scale := OutputScale(out, stage)
	return OutputGeometry{
		Rect:    Rect{X: ov.X * sx, Y: ov.Y * sy, W: ov.W * sx, H: ov.H * sy},
		Scale:   scale,
		Padding: BoxPadding * scale,
	}, true
}

// CommitRatios stores an overlay pixel rectangle into b as ratios of stage.
// The rectangle is clamped into the stage first. It returns false and leaves b
// untouched when the stage is degenerate.
func CommitRatios(b *domain.TextBox, r Rect, stage Size) bool {
	if b == nil || !stage.Valid() {
		return false
	}
	w := Clamp(finite(r.W), 0, stage.W)
	h := Clamp(finite(r.H), 0, stage.H)
	x := Clamp(finite(r.X), 0, stage.W-w)
	y := Clamp(finite(r.Y), 0, stage.H-h)
	b.LeftRatio = x / stage.W
	b.TopRatio = y / stage.H
	b.WidthRatio = w / stage.W
	b.HeightRatio = h / stage.H
	ClampRatios(b)
	return true
}

// ClampRatios forces all ratio fields into [0,1] with left+width ≤ 1 and
// top+height ≤ 1. A missing font ratio falls back to DefaultFontRatio.
func ClampRatios(b *domain.TextBox) {
	if b == nil {
		return
	}
	b.WidthRatio = Clamp(finite(b.WidthRatio), 0, 1)
	b.HeightRatio = Clamp(finite(b.HeightRatio), 0, 1)
	b.LeftRatio = Clamp(finite(b.LeftRatio), 0, 1-b.WidthRatio)
	b.TopRatio = Clamp(finite(b.TopRatio), 0, 1-b.HeightRatio)
	if fr := finite(b.FontSizeRatio); fr <= 0 {
		b.FontSizeRatio = DefaultFontRatio
	} else {
		b.FontSizeRatio = math.Min(fr, 1)
	}
}

// BaseFontPixels is the font size in stage pixels: the cache when present,
// otherwise derived from the font ratio and the stage width.
func BaseFontPixels(b domain.TextBox, stageW float64) float64 {
	if px, ok := b.CachedFontSize(); ok {
		return px
	}
	return RatioFontPixels(b.FontSizeRatio, stageW)
}

// RatioFontPixels derives a stage font size from a ratio of the stage width.
func RatioFontPixels(ratio, stageW float64) float64 {
	ratio = finite(ratio)
	if ratio <= 0 {
		ratio = DefaultFontRatio
	}
	return math.Max(MinBaseFont, finite(stageW)*ratio)
}

// RefreshFontCache recomputes the font size cache from the canonical ratio.
func RefreshFontCache(b *domain.TextBox, stageW float64) {
	if b == nil || stageW <= 0 {
		return
	}
	b.SetFontSize(RatioFontPixels(b.FontSizeRatio, stageW))
}

func finite(v float64) float64 {
	if math.IsNaN(v) || math.IsInf(v, 0) {
		return 0
	}
	return v
}
