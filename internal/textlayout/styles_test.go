/*
 * Copyright (c) 2025 by Alexander Drost, Oldenburg, Germany.
 * This file is licensed to you under the Apache License, Version 2.0 (the "License"); you may not use this file except in compliance with the License.  You may obtain a copy of the License at
 *   http://www.apache.org/licenses/LICENSE-2.0
 * Unless required by applicable law or agreed to in writing, software distributed under the License is distributed on an
 * "AS IS" BASIS, WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.  See the License for the specific language governing permissions and limitations under the License.
 */

package textlayout

import (
	"testing"
)

func TestBuiltinStyles(t *testing.T) {
	names := ListStyles()
	if len(names) < 3 {
		t.Fatalf("expected at least 3 builtin styles, got %v", names)
	}
	for _, n := range names {
		if _, ok := GetStyle(n); !ok {
			t.Fatalf("%s style missing", n)
		}
	}
	c, _ := GetStyle("Classic")
	if c.Fill != ClassicFill || c.Stroke.A != 217 {
		t.Fatalf("unexpected classic colours: %+v", c)
	}
}

func TestParseHexColor(t *testing.T) {
	cases := map[string]struct {
		r, g, b, a uint8
		ok         bool
	}{
		"#fff":      {0xff, 0xff, 0xff, 0xff, true},
		"000000":    {0, 0, 0, 0xff, true},
		"#11223380": {0x11, 0x22, 0x33, 0x80, true},
		"#12":       {ok: false},
		"#zzzzzz":   {ok: false},
		"":          {ok: false},
	}
	for in, want := range cases {
		c, ok := ParseHexColor(in)
		if ok != want.ok {
			t.Fatalf("%q: ok=%v want %v", in, ok, want.ok)
		}
		if ok && (c.R != want.r || c.G != want.g || c.B != want.b || c.A != want.a) {
			t.Fatalf("%q: got %+v", in, c)
		}
	}
}

func TestStyleForBoxOverrides(t *testing.T) {
	base, _ := GetStyle("Classic")
	s := StyleForBox(base, boxWithStyle("#ff0000", "bogus", RegularFamily))
	if s.Fill.R != 0xff || s.Fill.G != 0 {
		t.Fatalf("fill override not applied: %+v", s.Fill)
	}
	if s.Stroke != base.Stroke {
		t.Fatalf("unparseable stroke should keep base: %+v", s.Stroke)
	}
	if s.Family != RegularFamily {
		t.Fatalf("family override not applied: %q", s.Family)
	}
}

func TestOTProvider_Fallback(t *testing.T) {
	// No fonts loaded but resolve should work via fallback
	otp := OTProvider{Lib: NewFontLibrary()}
	w, h := Measure(otp, FontSpec{Family: "Nonexistent", SizePx: 12}, "Hello")
	if w <= 0 || h <= 0 {
		t.Fatalf("expected positive measure with fallback: w=%v h=%v", w, h)
	}
}

func TestDefaultLibraryScalesWithSize(t *testing.T) {
	otp := OTProvider{Lib: DefaultLibrary()}
	w1, _ := Measure(otp, FontSpec{SizePx: 20}, "HELLO")
	w2, _ := Measure(otp, FontSpec{SizePx: 40}, "HELLO")
	if !(w2 > w1*1.5) {
		t.Fatalf("expected width to grow with size: %v vs %v", w1, w2)
	}
	// Unknown families fall back to the bold default.
	w3, _ := Measure(otp, FontSpec{Family: "Impact", SizePx: 20}, "HELLO")
	if w3 != w1 {
		t.Fatalf("expected fallback to default family: %v vs %v", w3, w1)
	}
}

func TestLoadTTFMissingFile(t *testing.T) {
	fl := NewFontLibrary()
	if err := fl.LoadTTF("x", t.TempDir()+"/missing.ttf"); err == nil {
		t.Fatalf("expected error for missing font file")
	}
	if err := fl.LoadBytes("x", []byte("not a font")); err == nil {
		t.Fatalf("expected parse error")
	}
	if fl.Has("x") {
		t.Fatalf("failed load must not register the family")
	}
}
