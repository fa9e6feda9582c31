/*
 * Copyright (c) 2025 by Alexander Drost, Oldenburg, Germany.
 * This file is licensed to you under the Apache License, Version 2.0 (the "License"); you may not use this file except in compliance with the License.  You may obtain a copy of the License at
 *   http://www.apache.org/licenses/LICENSE-2.0
 * Unless required by applicable law or agreed to in writing, software distributed under the License is distributed on an
 * "AS IS" BASIS, WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.  See the License for the specific language governing permissions and limitations under the License.
 */

package domain

// This file defines the persisted shape of a meme composition. Field names mirror the
// JSON record exchanged with the store ({imageData, textBoxes}) so that a record can be
// rehydrated into an editing session and serialized back without losing fields.

import "strings"

// TextBox is a user-editable text region placed over the base image.
// Geometry is stored as fractions of the overlay (stage) size at commit time.
type TextBox struct {
	ID            string   `json:"id"`
	Text          string   `json:"text"`
	LeftRatio     float64  `json:"leftRatio"`
	TopRatio      float64  `json:"topRatio"`
	WidthRatio    float64  `json:"widthRatio"`
	HeightRatio   float64  `json:"heightRatio"`
	FontSizeRatio float64  `json:"fontSizeRatio"`
	FontSize      *float64 `json:"fontSize,omitempty"` // cache; FontSizeRatio is canonical
	FillColor     string   `json:"fillColor,omitempty"`
	StrokeColor   string   `json:"strokeColor,omitempty"`
	FontFamily    string   `json:"fontFamily,omitempty"`
	TextAlign     string   `json:"textAlign,omitempty"` // left, center, right
	ZIndex        int      `json:"zIndex"`
}

// Blank reports whether the box has no visible text. Blank boxes stay editable
// but are never rasterized.
func (b TextBox) Blank() bool { return strings.TrimSpace(b.Text) == "" }

// Clone returns a deep copy (the font size cache is a pointer).
func (b TextBox) Clone() TextBox {
	c := b
	if b.FontSize != nil {
		v := *b.FontSize
		c.FontSize = &v
	}
	return c
}

// CachedFontSize returns the cached absolute font size, if any.
func (b TextBox) CachedFontSize() (float64, bool) {
	if b.FontSize == nil || *b.FontSize <= 0 {
		return 0, false
	}
	return *b.FontSize, true
}

// SetFontSize stores px as the font size cache.
func (b *TextBox) SetFontSize(px float64) { b.FontSize = &px }

// NormalizeText replaces no-break spaces with spaces and strips carriage returns.
func NormalizeText(s string) string {
	if !strings.ContainsAny(s, "\u00a0\r") {
		return s
	}
	s = strings.ReplaceAll(s, "\u00a0", " ")
	return strings.ReplaceAll(s, "\r", "")
}

// CloneBoxes deep-copies a slice of boxes.
func CloneBoxes(in []TextBox) []TextBox {
	if in == nil {
		return nil
	}
	out := make([]TextBox, len(in))
	for i, b := range in {
		out[i] = b.Clone()
	}
	return out
}

// Meme is the persisted composition record. ImageData holds the rendered PNG
// (data URL or bare base64) produced by the canonical rasterization path.
// BaseImageData keeps the undecorated base so the record can be re-edited
// without drawing the text twice; the stage fields are the overlay size the
// box ratios were committed against.
type Meme struct {
	ID            string    `json:"id"`
	UserID        string    `json:"userId,omitempty"`
	ImageData     string    `json:"imageData"`
	BaseImageData string    `json:"baseImageData,omitempty"`
	StageWidth    float64   `json:"stageWidth,omitempty"`
	StageHeight   float64   `json:"stageHeight,omitempty"`
	TextBoxes     []TextBox `json:"textBoxes"`
	Upvotes       int       `json:"upvotes"`
	CreatedAt     int64     `json:"createdAt"` // unix milliseconds
}

// EditSource is the image to load when re-editing: the base if it was kept,
// the rendered image otherwise.
func (m Meme) EditSource() string {
	if m.BaseImageData != "" {
		return m.BaseImageData
	}
	return m.ImageData
}

// Upvote records that a user upvoted a meme. A user holds at most one upvote per meme.
type Upvote struct {
	ID        string `json:"id"`
	MemeID    string `json:"memeId"`
	UserID    string `json:"userId"`
	CreatedAt int64  `json:"createdAt"`
}
