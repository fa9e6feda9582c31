/*
 * Copyright (c) 2025 by Alexander Drost, Oldenburg, Germany.
 * This file is licensed to you under the Apache License, Version 2.0 (the "License"); you may not use this file except in compliance with the License.  You may obtain a copy of the License at
 *   http://www.apache.org/licenses/LICENSE-2.0
 * Unless required by applicable law or agreed to in writing, software distributed under the License is distributed on an
 * "AS IS" BASIS, WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.  See the License for the specific language governing permissions and limitations under the License.
 */

package render

import (
	"image"
	"image/color"
	"image/draw"
	"math"

	xdraw "golang.org/x/image/draw"
	"golang.org/x/image/font"
	"golang.org/x/image/math/fixed"

	"gomemecanvas/internal/textlayout"
)

// Surface is the drawing handle the Rasterizer paints onto. It is passed in
// explicitly on every call; nothing in this package keeps a global canvas.
//
// Text positions follow a top baseline: y is the top of the line box and cx the
// horizontal centre of the line.
type Surface interface {
	Size() (w, h int)
	// DrawImage paints img stretched over the whole surface.
	DrawImage(img image.Image)
	SetFont(spec textlayout.FontSpec)
	// MeasureString returns the advance of s in the current font.
	MeasureString(s string) float64
	StrokeText(s string, cx, y, width float64, c color.Color)
	FillText(s string, cx, y float64, c color.Color)
}

// ImageSurface draws onto an *image.RGBA with x/image font faces.
type ImageSurface struct {
	dst      *image.RGBA
	provider textlayout.Provider
	face     font.Face
	ascent   float64
}

// NewImageSurface wraps dst. A nil provider falls back to the basic 7x13 face.
func NewImageSurface(dst *image.RGBA, provider textlayout.Provider) *ImageSurface {
	if provider == nil {
		provider = textlayout.BasicProvider{}
	}
	s := &ImageSurface{dst: dst, provider: provider}
	s.SetFont(textlayout.FontSpec{SizePx: 12})
	return s
}

func (s *ImageSurface) Image() *image.RGBA { return s.dst }

func (s *ImageSurface) Size() (int, int) {
	b := s.dst.Bounds()
	return b.Dx(), b.Dy()
}

func (s *ImageSurface) DrawImage(img image.Image) {
	if img == nil {
		return
	}
	db := s.dst.Bounds()
	sb := img.Bounds()
	if db.Dx() == sb.Dx() && db.Dy() == sb.Dy() {
		draw.Draw(s.dst, db, img, sb.Min, draw.Src)
		return
	}
	xdraw.CatmullRom.Scale(s.dst, db, img, sb, xdraw.Src, nil)
}

func (s *ImageSurface) SetFont(spec textlayout.FontSpec) {
	face, met := s.provider.Resolve(spec)
	s.face = face
	s.ascent = met.Ascent
}

func (s *ImageSurface) MeasureString(str string) float64 {
	return textlayout.FaceMeasurer{Face: s.face}.MeasureString(str)
}

// FillText draws the glyphs of str in c.
func (s *ImageSurface) FillText(str string, cx, y float64, c color.Color) {
	mask := s.textMask(str, cx, y, 0)
	if mask == nil {
		return
	}
	draw.DrawMask(s.dst, mask.Bounds(), image.NewUniform(c), image.Point{}, mask, mask.Bounds().Min, draw.Over)
}

// StrokeText draws an outline of the given line width around the glyphs of
// str. The glyph coverage is dilated by a disc of radius width/2, which gives
// the rounded joins of a canvas stroke.
func (s *ImageSurface) StrokeText(str string, cx, y, width float64, c color.Color) {
	r := int(math.Ceil(width / 2))
	if r < 1 {
		r = 1
	}
	mask := s.textMask(str, cx, y, r)
	if mask == nil {
		return
	}
	outline := dilate(mask, width/2)
	draw.DrawMask(s.dst, outline.Bounds(), image.NewUniform(c), image.Point{}, outline, outline.Bounds().Min, draw.Over)
}

// textMask rasterizes str into an alpha mask in destination coordinates,
// padded by pad pixels on every side.
func (s *ImageSurface) textMask(str string, cx, y float64, pad int) *image.Alpha {
	if str == "" || s.face == nil {
		return nil
	}
	adv := s.MeasureString(str)
	dot := fixed.Point26_6{
		X: fixed.Int26_6(math.Round((cx - adv/2) * 64)),
		Y: fixed.Int26_6(math.Round((y + s.ascent) * 64)),
	}
	bounds, _ := font.BoundString(s.face, str)
	bounds = bounds.Add(dot)
	rect := image.Rect(
		bounds.Min.X.Floor()-pad, bounds.Min.Y.Floor()-pad,
		bounds.Max.X.Ceil()+pad, bounds.Max.Y.Ceil()+pad,
	)
	if rect.Empty() {
		return nil
	}
	mask := image.NewAlpha(rect)
	d := &font.Drawer{Dst: mask, Src: image.Opaque, Face: s.face, Dot: dot}
	d.DrawString(str)
	return mask
}

// dilate returns a mask where every pixel takes the maximum coverage found
// within radius of it.
func dilate(src *image.Alpha, radius float64) *image.Alpha {
	b := src.Bounds()
	out := image.NewAlpha(b)
	ri := int(math.Ceil(radius))
	r2 := radius * radius
	var offs []image.Point
	for dy := -ri; dy <= ri; dy++ {
		for dx := -ri; dx <= ri; dx++ {
			if float64(dx*dx+dy*dy) <= r2+0.5 {
				offs = append(offs, image.Point{X: dx, Y: dy})
			}
		}
	}
	for y := b.Min.Y; y < b.Max.Y; y++ {
		for x := b.Min.X; x < b.Max.X; x++ {
			a := src.AlphaAt(x, y).A
			if a == 0 {
				continue
			}
			for _, o := range offs {
				p := image.Point{X: x + o.X, Y: y + o.Y}
				if !p.In(b) {
					continue
				}
				i := out.PixOffset(p.X, p.Y)
				if out.Pix[i] < a {
					out.Pix[i] = a
				}
			}
		}
	}
	return out
}
