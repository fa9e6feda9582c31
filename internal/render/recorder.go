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
	"unicode/utf8"

	"gomemecanvas/internal/textlayout"
)

// OpKind names a recorded draw call.
type OpKind string

const (
	OpImage  OpKind = "image"
	OpFont   OpKind = "font"
	OpStroke OpKind = "stroke"
	OpFill   OpKind = "fill"
)

// Op is one recorded draw call.
type Op struct {
	Kind  OpKind
	Text  string
	X, Y  float64
	Width float64 // stroke line width
	Font  textlayout.FontSpec
	Color color.Color
}

// Recorder is a Surface that logs draw calls instead of painting. Glyphs are
// measured as CharWidth pixels each (default 0.6 of the font size).
type Recorder struct {
	W, H      int
	CharWidth float64
	Ops       []Op

	font textlayout.FontSpec
}

func NewRecorder(w, h int) *Recorder { return &Recorder{W: w, H: h} }

func (r *Recorder) Size() (int, int) { return r.W, r.H }

func (r *Recorder) DrawImage(img image.Image) {
	if img == nil {
		return
	}
	r.Ops = append(r.Ops, Op{Kind: OpImage})
}

func (r *Recorder) SetFont(spec textlayout.FontSpec) {
	r.font = spec
	r.Ops = append(r.Ops, Op{Kind: OpFont, Font: spec})
}

func (r *Recorder) MeasureString(s string) float64 {
	cw := r.CharWidth
	if cw <= 0 {
		cw = r.font.SizePx * 0.6
	}
	return float64(utf8.RuneCountInString(s)) * cw
}

func (r *Recorder) StrokeText(s string, cx, y, width float64, c color.Color) {
	r.Ops = append(r.Ops, Op{Kind: OpStroke, Text: s, X: cx, Y: y, Width: width, Font: r.font, Color: c})
}

func (r *Recorder) FillText(s string, cx, y float64, c color.Color) {
	r.Ops = append(r.Ops, Op{Kind: OpFill, Text: s, X: cx, Y: y, Font: r.font, Color: c})
}

// Count returns how many recorded ops are of kind k.
func (r *Recorder) Count(k OpKind) int {
	n := 0
	for _, op := range r.Ops {
		if op.Kind == k {
			n++
		}
	}
	return n
}

// Reset drops all recorded ops.
func (r *Recorder) Reset() { r.Ops = r.Ops[:0] }
