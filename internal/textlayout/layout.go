/*
 * Copyright (c) 2025 by Alexander Drost, Oldenburg, Germany.
 * This file is licensed to you under the Apache License, Version 2.0 (the "License"); you may not use this file except in compliance with the License.  You may obtain a copy of the License at
 *   http://www.apache.org/licenses/LICENSE-2.0
 * Unless required by applicable law or agreed to in writing, software distributed under the License is distributed on an
 * "AS IS" BASIS, WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.  See the License for the specific language governing permissions and limitations under the License.
 */

package textlayout

// Abstractions for text measurement. The wrapping algorithm only needs a width
// function; the concrete engine (x/image faces, a fixed-width stub in tests)
// stays behind the Measurer interface.

import (
	"golang.org/x/image/font"
	"golang.org/x/image/font/basicfont"
)

// Measurer returns the advance width of s in pixels.
type Measurer interface {
	MeasureString(s string) float64
}

// MeasureFunc adapts a plain function to Measurer.
type MeasureFunc func(s string) float64

func (f MeasureFunc) MeasureString(s string) float64 { return f(s) }

// FontSpec describes a requested font.
type FontSpec struct {
	Family string  // logical family name; empty selects the library default
	SizePx float64 // pixel size at 72 DPI
	Weight int     // 100..900
}

// Metrics provides font metrics in pixels for the resolved face.
type Metrics struct {
	Ascent, Descent, LineGap float64
}

// Provider maps FontSpec to a concrete font.Face.
type Provider interface {
	Resolve(FontSpec) (font.Face, Metrics)
}

// BasicProvider uses x/image/basicfont Face7x13 for deterministic tests.
type BasicProvider struct{}

func (BasicProvider) Resolve(spec FontSpec) (font.Face, Metrics) {
	f := basicfont.Face7x13
	return f, metricsOf(f)
}

func metricsOf(f font.Face) Metrics {
	m := f.Metrics()
	return Metrics{
		Ascent:  float64(m.Ascent.Round()),
		Descent: float64(m.Descent.Round()),
		LineGap: float64(m.Height.Round() - m.Ascent.Round() - m.Descent.Round()),
	}
}

// FaceMeasurer measures strings with an x/image font face, kerning included.
type FaceMeasurer struct {
	Face font.Face
}

func (m FaceMeasurer) MeasureString(s string) float64 {
	if m.Face == nil {
		return 0
	}
	return advance(&font.Drawer{Face: m.Face}, s)
}

func advance(d *font.Drawer, s string) float64 {
	return float64(d.MeasureString(s)) / 64 // fixed.Int26_6 to px
}

// Measure returns the width and single-line height of s for the given spec.
func Measure(provider Provider, spec FontSpec, s string) (w, h float64) {
	if provider == nil {
		provider = BasicProvider{}
	}
	face, met := provider.Resolve(spec)
	return advance(&font.Drawer{Face: face}, s), met.Ascent + met.Descent
}
