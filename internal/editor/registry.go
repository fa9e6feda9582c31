/*
 * Copyright (c) 2025 by Alexander Drost, Oldenburg, Germany.
 * This file is licensed to you under the Apache License, Version 2.0 (the "License"); you may not use this file except in compliance with the License.  You may obtain a copy of the License at
 *   http://www.apache.org/licenses/LICENSE-2.0
 * Unless required by applicable law or agreed to in writing, software distributed under the License is distributed on an
 * "AS IS" BASIS, WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.  See the License for the specific language governing permissions and limitations under the License.
 */

// Package editor holds the interactive side of a composition: the box
// registry, the pointer gesture controller and the session tying both to a
// base image and the rasterizer.
//
// None of the types in this package are safe for concurrent use. They model a
// single UI event loop; callers that serve several users build one Session per
// request.
package editor

import (
	"cmp"
	"slices"

	"github.com/google/uuid"

	"gomemecanvas/internal/domain"
	"gomemecanvas/internal/geom"
)

// Registry is the ordered set of text boxes in a composition together with the
// z-order cursor. Boxes keep insertion order; Ordered gives draw order.
type Registry struct {
	boxes  []domain.TextBox
	cursor int
	newID  func() string
}

func NewRegistry() *Registry { return &Registry{cursor: 1, newID: uuid.NewString} }

// Len returns the number of boxes.
func (r *Registry) Len() int { return len(r.boxes) }

// Cursor is the highest zIndex handed out so far. It only grows.
func (r *Registry) Cursor() int { return r.cursor }

// NextZ advances the cursor and returns the new stacking value.
func (r *Registry) NextZ() int {
	r.cursor++
	return r.cursor
}

// Add appends b with a fresh zIndex above every other box. An empty ID is
// replaced with a new UUID. The stored copy is returned.
func (r *Registry) Add(b domain.TextBox) domain.TextBox {
	b = b.Clone()
	if b.ID == "" || r.index(b.ID) >= 0 {
		b.ID = r.newID()
	}
	b.Text = domain.NormalizeText(b.Text)
	b.ZIndex = r.NextZ()
	r.boxes = append(r.boxes, b)
	return b.Clone()
}

func (r *Registry) index(id string) int {
	return slices.IndexFunc(r.boxes, func(b domain.TextBox) bool { return b.ID == id })
}

// Get returns a copy of the box with id.
func (r *Registry) Get(id string) (domain.TextBox, bool) {
	i := r.index(id)
	if i < 0 {
		return domain.TextBox{}, false
	}
	return r.boxes[i].Clone(), true
}

// Update applies fn to the stored box with id and reports whether it exists.
// The ID cannot be changed through fn.
func (r *Registry) Update(id string, fn func(*domain.TextBox)) bool {
	i := r.index(id)
	if i < 0 {
		return false
	}
	fn(&r.boxes[i])
	r.boxes[i].ID = id
	return true
}

// Delete removes the box with id. The cursor is left untouched.
func (r *Registry) Delete(id string) bool {
	i := r.index(id)
	if i < 0 {
		return false
	}
	r.boxes = slices.Delete(r.boxes, i, i+1)
	return true
}

// Clear removes every box. The cursor keeps counting so values are never reused.
func (r *Registry) Clear() { r.boxes = nil }

// BringToFront gives the box a zIndex above every other box.
func (r *Registry) BringToFront(id string) bool {
	return r.Update(id, func(b *domain.TextBox) { b.ZIndex = r.NextZ() })
}

// Boxes returns deep copies in insertion order.
func (r *Registry) Boxes() []domain.TextBox { return domain.CloneBoxes(r.boxes) }

// Ordered returns deep copies sorted by zIndex, ties kept in insertion order.
func (r *Registry) Ordered() []domain.TextBox {
	out := r.Boxes()
	slices.SortStableFunc(out, func(a, b domain.TextBox) int { return cmp.Compare(a.ZIndex, b.ZIndex) })
	return out
}

// Load replaces the contents with persisted boxes. Ratios are clamped with the
// live-editing bounds, missing or duplicate IDs are regenerated and the cursor
// moves to one past the highest zIndex present.
func (r *Registry) Load(boxes []domain.TextBox) {
	r.boxes = make([]domain.TextBox, 0, len(boxes))
	seen := make(map[string]bool, len(boxes))
	maxZ := 0
	for _, b := range boxes {
		b = b.Clone()
		if b.ID == "" || seen[b.ID] {
			b.ID = r.newID()
		}
		seen[b.ID] = true
		b.Text = domain.NormalizeText(b.Text)
		geom.ClampRatios(&b)
		maxZ = max(maxZ, b.ZIndex)
		r.boxes = append(r.boxes, b)
	}
	if len(boxes) > 0 {
		r.cursor = maxZ + 1
	}
}

// Snapshot serializes the registry into the persisted textBoxes shape.
func (r *Registry) Snapshot() []domain.TextBox { return r.Boxes() }
