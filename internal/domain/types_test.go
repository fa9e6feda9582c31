/*
 * Copyright (c) 2025 by Alexander Drost, Oldenburg, Germany.
 * This file is licensed to you under the Apache License, Version 2.0 (the "License"); you may not use this file except in compliance with the License.  You may obtain a copy of the License at
 *   http://www.apache.org/licenses/LICENSE-2.0
 * Unless required by applicable law or agreed to in writing, software distributed under the License is distributed on an
 * "AS IS" BASIS, WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.  See the License for the specific language governing permissions and limitations under the License.
 */

package domain

import (
	"encoding/json"
	"strings"
	"testing"
)

func TestNormalizeText(t *testing.T) {
	in := "one\u00a0two\r\nthree\r"
	if got, want := NormalizeText(in), "one two\nthree"; got != want {
		t.Fatalf("NormalizeText = %q, want %q", got, want)
	}
	if got := NormalizeText("plain"); got != "plain" {
		t.Fatalf("plain text changed: %q", got)
	}
}

func TestBlank(t *testing.T) {
	if !(TextBox{Text: " \n\t"}).Blank() {
		t.Fatalf("whitespace-only text should be blank")
	}
	if (TextBox{Text: " a "}).Blank() {
		t.Fatalf("text with a glyph is not blank")
	}
}

func TestMemeJSONKeepsAllBoxFields(t *testing.T) {
	fs := 28.0
	m := Meme{
		ID:        "m1",
		ImageData: "data:image/png;base64,AAAA",
		TextBoxes: []TextBox{{
			ID: "b1", Text: "hello", LeftRatio: 0.1, TopRatio: 0.2, WidthRatio: 0.3, HeightRatio: 0.4,
			FontSizeRatio: 0.05, FontSize: &fs, FillColor: "#ffffff", StrokeColor: "#000000",
			FontFamily: "Impact", TextAlign: "center", ZIndex: 7,
		}},
		Upvotes:   2,
		CreatedAt: 1700000000000,
	}
	b, err := json.Marshal(m)
	if err != nil {
		t.Fatalf("marshal: %v", err)
	}
	for _, key := range []string{`"imageData"`, `"textBoxes"`, `"leftRatio"`, `"fontSizeRatio"`, `"zIndex":7`, `"fontSize":28`} {
		if !strings.Contains(string(b), key) {
			t.Fatalf("json %s missing %s", b, key)
		}
	}
	var got Meme
	if err := json.Unmarshal(b, &got); err != nil {
		t.Fatalf("unmarshal: %v", err)
	}
	gb := got.TextBoxes[0]
	if gb.FontSize == nil || *gb.FontSize != 28 || gb.FillColor != "#ffffff" || gb.TextAlign != "center" || gb.ZIndex != 7 {
		t.Fatalf("box fields lost: %+v", gb)
	}
}

func TestCloneDoesNotShareFontSize(t *testing.T) {
	b := TextBox{ID: "x"}
	b.SetFontSize(20)
	c := b.Clone()
	c.SetFontSize(30)
	*c.FontSize = 40
	if v, _ := b.CachedFontSize(); v != 20 {
		t.Fatalf("original cache mutated: %v", v)
	}
}

func TestEditSourcePrefersBase(t *testing.T) {
	m := Meme{ImageData: "rendered"}
	if m.EditSource() != "rendered" {
		t.Fatalf("without a base the rendered image is the source")
	}
	m.BaseImageData = "base"
	if m.EditSource() != "base" {
		t.Fatalf("base image should win")
	}
}
