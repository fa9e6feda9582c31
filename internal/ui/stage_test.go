/*
 * Copyright (c) 2025 by Alexander Drost, Oldenburg, Germany.
 * This file is licensed to you under the Apache License, Version 2.0 (the "License"); you may not use this file except in compliance with the License.  You may obtain a copy of the License at
 *   http://www.apache.org/licenses/LICENSE-2.0
 * Unless required by applicable law or agreed to in writing, software distributed under the License is distributed on an
 * "AS IS" BASIS, WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.  See the License for the specific language governing permissions and limitations under the License.
 */
package ui

import (
	"testing"

	"gomemecanvas/internal/editor"
	"gomemecanvas/internal/geom"
)

func TestStageOriginCentresAndClamps(t *testing.T) {
	o := StageOrigin(geom.Size{W: 800, H: 600}, geom.Size{W: 600, H: 400})
	if o.X != 100 || o.Y != 100 {
		t.Fatalf("expected (100,100), got %+v", o)
	}
	o = StageOrigin(geom.Size{W: 300, H: 200}, geom.Size{W: 600, H: 400})
	if o.X != 0 || o.Y != 0 {
		t.Fatalf("expected origin clamped to 0, got %+v", o)
	}
	p := ToStage(geom.Pt{X: 150, Y: 130}, geom.Size{W: 800, H: 600}, geom.Size{W: 600, H: 400})
	if p.X != 50 || p.Y != 30 {
		t.Fatalf("unexpected stage point %+v", p)
	}
}

func TestOverlayShapesActiveBoxLast(t *testing.T) {
	c := editor.NewController(editor.NewRegistry(), geom.Limits{})
	c.SetStage(600, 400)
	a, ok := c.CreateAt(geom.Pt{X: 100, Y: 100})
	if !ok {
		t.Fatalf("CreateAt failed")
	}
	b, ok := c.CreateAt(geom.Pt{X: 400, Y: 300})
	if !ok {
		t.Fatalf("CreateAt failed")
	}
	c.Activate(a.ID)

	shapes := OverlayShapes(c)
	if len(shapes) != 2+1+len(editor.Corners) {
		t.Fatalf("expected 2 frames, 1 strip and %d handles, got %d shapes", len(editor.Corners), len(shapes))
	}
	if shapes[0].BoxID != b.ID || shapes[1].BoxID != a.ID || !shapes[1].Active {
		t.Fatalf("frames not in z order: %+v", shapes[:2])
	}
	if shapes[2].Kind != ShapeChrome || shapes[2].BoxID != a.ID {
		t.Fatalf("expected the move strip of the active box, got %+v", shapes[2])
	}
	for _, s := range shapes[3:] {
		if s.Kind != ShapeHandle {
			t.Fatalf("expected handles after the strip, got %+v", s)
		}
	}
}

func TestOverlayShapesWithoutStage(t *testing.T) {
	c := editor.NewController(editor.NewRegistry(), geom.Limits{})
	if got := OverlayShapes(c); len(got) != 0 {
		t.Fatalf("expected no shapes without a stage, got %d", len(got))
	}
}
