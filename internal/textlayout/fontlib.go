/*
 * Copyright (c) 2025 by Alexander Drost, Oldenburg, Germany.
 * This file is licensed to you under the Apache License, Version 2.0 (the "License"); you may not use this file except in compliance with the License.  You may obtain a copy of the License at
 *   http://www.apache.org/licenses/LICENSE-2.0
 * Unless required by applicable law or agreed to in writing, software distributed under the License is distributed on an
 * "AS IS" BASIS, WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.  See the License for the specific language governing permissions and limitations under the License.
 */

package textlayout

import (
	"fmt"
	"os"
	"sync"

	"golang.org/x/image/font"
	"golang.org/x/image/font/gofont/gobold"
	"golang.org/x/image/font/gofont/goregular"
	"golang.org/x/image/font/opentype"
)

// Built-in family names. DefaultFamily is the heavy face used for meme captions.
const (
	DefaultFamily = "Go Bold"
	RegularFamily = "Go Regular"
)

// FontLibrary stores loaded OpenType fonts mapped by family name. It is safe
// for concurrent use. Faces it hands out are not: every call builds a fresh face,
// so callers own theirs.
type FontLibrary struct {
	mu       sync.Mutex
	fonts    map[string]*opentype.Font
	fallback string
}

func NewFontLibrary() *FontLibrary { return &FontLibrary{fonts: make(map[string]*opentype.Font)} }

// DefaultLibrary returns a library preloaded with the embedded Go fonts.
// DefaultFamily is the fallback for unknown families.
func DefaultLibrary() *FontLibrary {
	fl := NewFontLibrary()
	// The embedded TTFs are known-good; parse errors cannot happen here.
	_ = fl.LoadBytes(DefaultFamily, gobold.TTF)
	_ = fl.LoadBytes(RegularFamily, goregular.TTF)
	fl.fallback = DefaultFamily
	return fl
}

// LoadTTF loads a font file into the library under the given family.
func (fl *FontLibrary) LoadTTF(family, path string) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("read font %s: %w", path, err)
	}
	return fl.LoadBytes(family, data)
}

// LoadBytes parses an in-memory TTF/OTF and registers it under family.
// The first font loaded becomes the fallback if none is set.
func (fl *FontLibrary) LoadBytes(family string, data []byte) error {
	f, err := opentype.Parse(data)
	if err != nil {
		return fmt.Errorf("parse font %s: %w", family, err)
	}
	fl.mu.Lock()
	defer fl.mu.Unlock()
	if fl.fonts == nil {
		fl.fonts = make(map[string]*opentype.Font)
	}
	fl.fonts[family] = f
	if fl.fallback == "" {
		fl.fallback = family
	}
	return nil
}

// SetFallback selects the family used for unknown names.
func (fl *FontLibrary) SetFallback(family string) {
	fl.mu.Lock()
	fl.fallback = family
	fl.mu.Unlock()
}

// Families lists the registered family names (unordered).
func (fl *FontLibrary) Families() []string {
	fl.mu.Lock()
	defer fl.mu.Unlock()
	out := make([]string, 0, len(fl.fonts))
	for k := range fl.fonts {
		out = append(out, k)
	}
	return out
}

// Has reports whether family is registered.
func (fl *FontLibrary) Has(family string) bool {
	fl.mu.Lock()
	defer fl.mu.Unlock()
	_, ok := fl.fonts[family]
	return ok
}

// face builds a face for family at size px, falling back to the library
// default for unknown families.
func (fl *FontLibrary) face(family string, size float64) (font.Face, error) {
	if fl == nil {
		return nil, fmt.Errorf("nil font library")
	}
	fl.mu.Lock()
	f, ok := fl.fonts[family]
	if !ok {
		family = fl.fallback
		f, ok = fl.fonts[family]
	}
	fl.mu.Unlock()
	if !ok {
		return nil, fmt.Errorf("font family %q not loaded", family)
	}
	fc, err := opentype.NewFace(f, &opentype.FaceOptions{Size: size, DPI: 72, Hinting: font.HintingFull})
	if err != nil {
		return nil, fmt.Errorf("new face %s@%v: %w", family, size, err)
	}
	return fc, nil
}

// OTProvider resolves FontSpec using a FontLibrary and falls back to another Provider.
// It uses kerning as provided by opentype.Face and font.Drawer.
type OTProvider struct {
	Lib      *FontLibrary
	Fallback Provider
}

func (p OTProvider) Resolve(spec FontSpec) (font.Face, Metrics) {
	if spec.SizePx <= 0 {
		spec.SizePx = 12
	}
	if p.Lib != nil {
		if face, err := p.Lib.face(spec.Family, spec.SizePx); err == nil {
			return face, metricsOf(face)
		}
	}
	fb := p.Fallback
	if fb == nil {
		fb = BasicProvider{}
	}
	return fb.Resolve(spec)
}
