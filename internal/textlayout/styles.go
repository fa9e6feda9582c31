/*
 * Copyright (c) 2025 by Alexander Drost, Oldenburg, Germany.
 * This file is licensed to you under the Apache License, Version 2.0 (the "License"); you may not use this file except in compliance with the License.  You may obtain a copy of the License at
 *   http://www.apache.org/licenses/LICENSE-2.0
 * Unless required by applicable law or agreed to in writing, software distributed under the License is distributed on an
 * "AS IS" BASIS, WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.  See the License for the specific language governing permissions and limitations under the License.
 */

package textlayout

import (
	"image/color"
	"strconv"
	"strings"

	"gomemecanvas/internal/domain"
)

// TextStyle is a caption preset: the face plus the fill and outline colours.
// The outline is drawn first, the fill on top.
type TextStyle struct {
	Name   string
	Family string
	Fill   color.NRGBA
	Stroke color.NRGBA
}

// Classic caption colours: white fill with a near-opaque black outline.
var (
	ClassicFill   = color.NRGBA{R: 0xff, G: 0xff, B: 0xff, A: 0xff}
	ClassicStroke = color.NRGBA{R: 0, G: 0, B: 0, A: 217} // rgba(0,0,0,0.85)
)

var builtinStyles = map[string]TextStyle{
	"Classic": {Name: "Classic", Family: DefaultFamily, Fill: ClassicFill, Stroke: ClassicStroke},
	"Caption": {
		Name:   "Caption",
		Family: RegularFamily,
		Fill:   color.NRGBA{A: 0xff},
		Stroke: color.NRGBA{R: 0xff, G: 0xff, B: 0xff, A: 217},
	},
	"Shout": {
		Name:   "Shout",
		Family: DefaultFamily,
		Fill:   color.NRGBA{R: 0xff, G: 0xd6, B: 0x00, A: 0xff},
		Stroke: ClassicStroke,
	},
}

// GetStyle returns a builtin style preset by name. The second return value is false if
// the style is not found.
func GetStyle(name string) (TextStyle, bool) { s, ok := builtinStyles[name]; return s, ok }

// ListStyles lists the names of the builtin styles in stable order.
func ListStyles() []string {
	return []string{"Classic", "Caption", "Shout"}
}

// StyleForBox resolves the effective style of a box: base, overridden by the
// box's own family and colours where they are set and parse.
func StyleForBox(base TextStyle, b domain.TextBox) TextStyle {
	s := base
	if b.FontFamily != "" {
		s.Family = b.FontFamily
	}
	if c, ok := ParseHexColor(b.FillColor); ok {
		s.Fill = c
	}
	if c, ok := ParseHexColor(b.StrokeColor); ok {
		s.Stroke = c
	}
	return s
}

// ParseHexColor parses #rgb, #rrggbb and #rrggbbaa (the leading # is optional).
func ParseHexColor(s string) (color.NRGBA, bool) {
	s = strings.TrimPrefix(strings.TrimSpace(s), "#")
	switch len(s) {
	case 3:
		s = string([]byte{s[0], s[0], s[1], s[1], s[2], s[2]}) + "ff"
	case 6:
		s += "ff"
	case 8:
	default:
		return color.NRGBA{}, false
	}
	v, err := strconv.ParseUint(s, 16, 32)
	if err != nil {
		return color.NRGBA{}, false
	}
	return color.NRGBA{R: uint8(v >> 24), G: uint8(v >> 16), B: uint8(v >> 8), A: uint8(v)}, true
}
