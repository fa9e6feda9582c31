/*
 * Copyright (c) 2025 by Alexander Drost, Oldenburg, Germany.
 * This file is licensed to you under the Apache License, Version 2.0 (the "License"); you may not use this file except in compliance with the License.  You may obtain a copy of the License at
 *   http://www.apache.org/licenses/LICENSE-2.0
 * Unless required by applicable law or agreed to in writing, software distributed under the License is distributed on an
 * "AS IS" BASIS, WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.  See the License for the specific language governing permissions and limitations under the License.
 */

package editor

import (
	"encoding/json"
	"math"
	"math/rand/v2"
	"testing"

	"gomemecanvas/internal/domain"
	"gomemecanvas/internal/geom"
)

const eps = 1e-6

func rectNear(a, b geom.Rect) bool {
	return math.Abs(a.X-b.X) < eps && math.Abs(a.Y-b.Y) < eps && math.Abs(a.W-b.W) < eps && math.Abs(a.H-b.H) < eps
}

func newStage(t *testing.T) *Controller {
	t.Helper()
	c := NewController(NewRegistry(), geom.DefaultLimits)
	c.SetStage(800, 600)
	return c
}

// place adds a box occupying r on the controller's stage.
func place(t *testing.T, c *Controller, r geom.Rect) string {
	t.Helper()
	b := c.Registry().Add(domain.TextBox{Text: "x", FontSizeRatio: geom.DefaultFontRatio})
	stage := c.Stage()
	c.Registry().Update(b.ID, func(tb *domain.TextBox) { geom.CommitRatios(tb, r, stage) })
	return b.ID
}

func checkInvariants(t *testing.T, c *Controller) {
	t.Helper()
	for _, b := range c.Registry().Boxes() {
		for _, v := range []float64{b.LeftRatio, b.TopRatio, b.WidthRatio, b.HeightRatio} {
			if v < 0 || v > 1 || math.IsNaN(v) {
				t.Fatalf("ratio out of range: %+v", b)
			}
		}
		if b.LeftRatio+b.WidthRatio > 1+eps || b.TopRatio+b.HeightRatio > 1+eps {
			t.Fatalf("box exceeds stage: %+v", b)
		}
		r, _ := c.Rect(b.ID)
		if r.W < geom.MinBoxWidth-eps || r.H < geom.MinBoxHeight-eps {
			t.Fatalf("box below minimum size: %+v", r)
		}
	}
}

func TestCreateAtNearCornerClampsToStage(t *testing.T) {
	c := newStage(t)
	b, ok := c.CreateAt(geom.Pt{X: 100, Y: 50})
	if !ok {
		t.Fatalf("create failed")
	}
	r, _ := c.Rect(b.ID)
	if !rectNear(r, geom.R(0, 0, 260, 140)) {
		t.Fatalf("unexpected rect %+v", r)
	}
	if c.Active() != b.ID {
		t.Fatalf("new box should be active")
	}
	if px, _ := b.CachedFontSize(); px != 34 || math.Abs(b.FontSizeRatio-34.0/800) > eps {
		t.Fatalf("unexpected font: %v ratio %v", px, b.FontSizeRatio)
	}
}

func TestCreateAtCentresOnPointer(t *testing.T) {
	c := newStage(t)
	b, _ := c.CreateAt(geom.Pt{X: 400, Y: 300})
	r, _ := c.Rect(b.ID)
	if ctr := r.Center(); math.Abs(ctr.X-400) > eps || math.Abs(ctr.Y-300) > eps {
		t.Fatalf("box not centred on pointer: %+v", r)
	}
}

func TestDefaultBoxSizeAppliesMinimums(t *testing.T) {
	w, h := DefaultBoxSize(geom.Size{W: 200, H: 120}, geom.DefaultLimits)
	if w != 140 || h != 60 {
		t.Fatalf("expected minimums, got %vx%v", w, h)
	}
	w, h = DefaultBoxSize(geom.Size{W: 100, H: 50}, geom.DefaultLimits)
	if w != 100 || h != 50 {
		t.Fatalf("stage should cap the size, got %vx%v", w, h)
	}
}

func TestMoveClampsInsideStage(t *testing.T) {
	c := newStage(t)
	id := place(t, c, geom.R(50, 50, 200, 100))
	start := geom.Pt{X: 100, Y: 55} // on the chrome strip
	if h := c.PointerDown(start); h.Part != PartChrome || h.BoxID != id {
		t.Fatalf("expected chrome hit, got %+v", h)
	}
	if _, ok := c.State().(Moving); !ok {
		t.Fatalf("expected Moving state, got %T", c.State())
	}
	c.PointerMove(geom.Pt{X: start.X + 1000, Y: start.Y + 1000})
	c.PointerUp()
	r, _ := c.Rect(id)
	if !rectNear(r, geom.R(600, 500, 200, 100)) {
		t.Fatalf("unexpected rect after drag %+v", r)
	}
	if _, ok := c.State().(Idle); !ok {
		t.Fatalf("gesture should end in Idle")
	}
}

func TestMoveUsesAbsoluteDelta(t *testing.T) {
	c := newStage(t)
	id := place(t, c, geom.R(100, 100, 200, 100))
	c.BeginMove(id, geom.Pt{X: 0, Y: 0})
	for i := 1; i <= 50; i++ {
		c.PointerMove(geom.Pt{X: float64(i) * 1.37, Y: float64(i) * 0.91})
	}
	c.PointerMove(geom.Pt{X: 10, Y: 20})
	c.PointerUp()
	r, _ := c.Rect(id)
	if !rectNear(r, geom.R(110, 120, 200, 100)) {
		t.Fatalf("moves should not accumulate drift: %+v", r)
	}
}

func TestResizeTopLeft(t *testing.T) {
	c := newStage(t)
	id := place(t, c, geom.R(50, 50, 200, 100))
	h := c.PointerDown(geom.Pt{X: 50, Y: 50})
	if h.Part != PartHandle || h.Dir != TopLeft {
		t.Fatalf("expected top-left handle, got %+v", h)
	}
	c.PointerMove(geom.Pt{X: 0, Y: 0})
	c.PointerUp()
	r, _ := c.Rect(id)
	if !rectNear(r, geom.R(0, 0, 250, 150)) {
		t.Fatalf("unexpected rect %+v", r)
	}

	// Further out stays clamped at 0.
	c.BeginResize(id, TopLeft, geom.Pt{X: 0, Y: 0})
	c.PointerMove(geom.Pt{X: -500, Y: -500})
	c.PointerCancel()
	r, _ = c.Rect(id)
	if !rectNear(r, geom.R(0, 0, 250, 150)) {
		t.Fatalf("expected clamp at origin, got %+v", r)
	}
}

func TestResizeRespectsMinimumAndStage(t *testing.T) {
	stage := geom.Size{W: 800, H: 600}
	init := geom.R(100, 100, 200, 100)
	r := ResizeRect(init, BottomRight, -1000, -1000, stage, geom.DefaultLimits)
	if !rectNear(r, geom.R(100, 100, 140, 60)) {
		t.Fatalf("shrink should stop at minimums: %+v", r)
	}
	r = ResizeRect(init, BottomRight, 5000, 5000, stage, geom.DefaultLimits)
	if !rectNear(r, geom.R(100, 100, 700, 500)) {
		t.Fatalf("grow should stop at the stage: %+v", r)
	}
	r = ResizeRect(init, TopLeft, 1000, 1000, stage, geom.DefaultLimits)
	if !rectNear(r, geom.R(160, 140, 140, 60)) {
		t.Fatalf("top-left shrink should keep the opposite edges: %+v", r)
	}
	r = ResizeRect(init, TopRight, 30, -30, stage, geom.DefaultLimits)
	if !rectNear(r, geom.R(100, 70, 230, 130)) {
		t.Fatalf("unexpected top-right resize: %+v", r)
	}
}

func TestResizeSingleEdge(t *testing.T) {
	stage := geom.Size{W: 800, H: 600}
	init := geom.R(100, 100, 200, 100)
	cases := []struct {
		dir  Direction
		want geom.Rect
	}{
		{Right, geom.R(100, 100, 240, 100)},
		{Left, geom.R(140, 100, 160, 100)},
		{Bottom, geom.R(100, 100, 200, 140)},
		{Top, geom.R(100, 140, 200, 60)},
	}
	for _, tc := range cases {
		if r := ResizeRect(init, tc.dir, 40, 40, stage, geom.DefaultLimits); !rectNear(r, tc.want) {
			t.Fatalf("%s: got %+v, want %+v", tc.dir, r, tc.want)
		}
	}

	c := newStage(t)
	id := place(t, c, init)
	if !c.BeginResize(id, Right, geom.Pt{X: 300, Y: 150}) {
		t.Fatalf("BeginResize(Right) refused")
	}
	c.PointerMove(geom.Pt{X: 2000, Y: 900})
	c.PointerUp()
	r, _ := c.Rect(id)
	if !rectNear(r, geom.R(100, 100, 700, 100)) {
		t.Fatalf("right edge should stop at the stage and keep height: %+v", r)
	}
}

func TestActivationRaisesZOrder(t *testing.T) {
	c := newStage(t)
	ids := []string{
		place(t, c, geom.R(0, 0, 200, 100)),
		place(t, c, geom.R(300, 0, 200, 100)),
		place(t, c, geom.R(0, 300, 200, 100)),
	}
	for _, seq := range [][]int{{2, 0, 1}, {1, 2, 0, 1}, {0}} {
		for _, i := range seq {
			c.Activate(ids[i])
		}
		last := ids[seq[len(seq)-1]]
		top, _ := c.Registry().Get(last)
		for _, b := range c.Registry().Boxes() {
			if b.ID != last && b.ZIndex >= top.ZIndex {
				t.Fatalf("%s should be strictly on top: %+v", last, c.Registry().Boxes())
			}
		}
	}
}

func TestHitTestPrefersTopMost(t *testing.T) {
	c := newStage(t)
	a := place(t, c, geom.R(100, 100, 200, 100))
	b := place(t, c, geom.R(150, 150, 200, 100))
	if h := c.HitTest(geom.Pt{X: 200, Y: 160}); h.BoxID != b || h.Part != PartChrome {
		t.Fatalf("expected top box chrome, got %+v", h)
	}
	c.Activate(a)
	if h := c.HitTest(geom.Pt{X: 200, Y: 160}); h.BoxID != a || h.Part != PartContent {
		t.Fatalf("expected raised box content, got %+v", h)
	}
	if h := c.HitTest(geom.Pt{X: 700, Y: 550}); h.Part != PartNone {
		t.Fatalf("expected empty stage, got %+v", h)
	}
}

func TestPointerDownOnContentActivatesOnly(t *testing.T) {
	c := newStage(t)
	id := place(t, c, geom.R(100, 100, 200, 100))
	before := c.Registry().Len()
	h := c.PointerDown(geom.Pt{X: 200, Y: 170})
	if h.Part != PartContent || c.Active() != id || c.Registry().Len() != before {
		t.Fatalf("unexpected result %+v active=%q", h, c.Active())
	}
	if _, ok := c.State().(Idle); !ok {
		t.Fatalf("content press should not start a gesture")
	}
}

func TestPointerDownDuringGestureIsIgnored(t *testing.T) {
	c := newStage(t)
	id := place(t, c, geom.R(100, 100, 200, 100))
	c.BeginMove(id, geom.Pt{X: 150, Y: 110})
	if h := c.PointerDown(geom.Pt{X: 700, Y: 550}); h.Part != PartNone || c.Registry().Len() != 1 {
		t.Fatalf("press during a gesture must not create boxes")
	}
}

func TestDegenerateStageIsNoOp(t *testing.T) {
	c := NewController(NewRegistry(), geom.Limits{})
	if _, ok := c.CreateAt(geom.Pt{X: 10, Y: 10}); ok {
		t.Fatalf("create without stage should fail")
	}
	if h := c.PointerDown(geom.Pt{X: 10, Y: 10}); h.Part != PartNone || c.Registry().Len() != 0 {
		t.Fatalf("pointer down without stage must do nothing")
	}
	c.SetStage(800, 600)
	id := place(t, c, geom.R(50, 50, 200, 100))
	c.BeginMove(id, geom.Pt{})
	before, _ := c.Registry().Get(id)
	c.SetStage(0, 0)
	if c.PointerMove(geom.Pt{X: 100, Y: 100}) {
		t.Fatalf("move on a zero stage must be ignored")
	}
	after, _ := c.Registry().Get(id)
	if before.LeftRatio != after.LeftRatio || before.TopRatio != after.TopRatio {
		t.Fatalf("stale geometry must be preserved")
	}
}

func TestCancelAndUpShareCleanup(t *testing.T) {
	c := newStage(t)
	id := place(t, c, geom.R(50, 50, 200, 100))
	renders := 0
	c.OnChange(func() { renders++ })
	c.BeginResize(id, BottomRight, geom.Pt{X: 250, Y: 150})
	n := renders
	c.PointerCancel()
	if renders != n+1 {
		t.Fatalf("cancel should trigger a final render")
	}
	if _, ok := c.State().(Idle); !ok {
		t.Fatalf("cancel should return to Idle")
	}
	c.PointerUp()
	if renders != n+1 {
		t.Fatalf("ending an idle controller should not render")
	}
}

func TestEditDeleteClear(t *testing.T) {
	c := newStage(t)
	b, _ := c.CreateAt(geom.Pt{X: 400, Y: 300})
	if !c.EditText(b.ID, "hello world\r") {
		t.Fatalf("edit failed")
	}
	got, _ := c.Registry().Get(b.ID)
	if got.Text != "hello world" {
		t.Fatalf("text not normalized: %q", got.Text)
	}
	other := place(t, c, geom.R(0, 0, 200, 100))
	if !c.Delete(b.ID) || c.Active() != "" {
		t.Fatalf("deleting the active box should clear the selection")
	}
	if c.Delete(b.ID) || c.EditText(b.ID, "x") {
		t.Fatalf("operations on a deleted box should report false")
	}
	c.Activate(other)
	cursor := c.Registry().Cursor()
	c.ClearAll()
	if c.Registry().Len() != 0 || c.Active() != "" {
		t.Fatalf("clear all should empty the registry and selection")
	}
	nb, _ := c.CreateAt(geom.Pt{X: 10, Y: 10})
	if nb.ZIndex <= cursor {
		t.Fatalf("z values must not be reused: %d <= %d", nb.ZIndex, cursor)
	}
}

func TestSetStageRefreshesFontCache(t *testing.T) {
	c := newStage(t)
	b, _ := c.CreateAt(geom.Pt{X: 400, Y: 300}) // 34px at 800 wide
	c.SetStage(400, 300)
	got, _ := c.Registry().Get(b.ID)
	if px, _ := got.CachedFontSize(); px != 18 {
		t.Fatalf("expected 17px floored to 18, got %v", px)
	}
	c.SetStage(1600, 1200)
	got, _ = c.Registry().Get(b.ID)
	if px, _ := got.CachedFontSize(); math.Abs(px-68) > eps {
		t.Fatalf("expected 68px, got %v", px)
	}
}

func TestRandomGesturesKeepInvariants(t *testing.T) {
	c := newStage(t)
	rng := rand.New(rand.NewPCG(1, 2))
	pt := func() geom.Pt { return geom.Pt{X: rng.Float64()*1200 - 200, Y: rng.Float64()*1000 - 200} }
	for i := 0; i < 400; i++ {
		switch rng.IntN(4) {
		case 0:
			c.CreateAt(geom.Pt{X: rng.Float64() * 800, Y: rng.Float64() * 600})
		case 1, 2:
			c.PointerDown(pt())
			for j := 0; j < 5; j++ {
				c.PointerMove(pt())
			}
			c.PointerUp()
		case 3:
			boxes := c.Registry().Boxes()
			if len(boxes) > 0 {
				b := boxes[rng.IntN(len(boxes))]
				r, _ := c.Rect(b.ID)
				c.BeginResize(b.ID, Corners[rng.IntN(len(Corners))], r.Min())
				c.PointerMove(pt())
				c.PointerCancel()
			}
		}
		checkInvariants(t, c)
	}
}

func TestSnapshotRoundTripKeepsGeometry(t *testing.T) {
	c := newStage(t)
	c.CreateAt(geom.Pt{X: 120, Y: 80})
	c.CreateAt(geom.Pt{X: 640, Y: 480})
	id := place(t, c, geom.R(33.3, 44.4, 222.2, 111.1))
	c.EditText(id, "keep me")

	raw, err := json.Marshal(c.Registry().Snapshot())
	if err != nil {
		t.Fatalf("marshal: %v", err)
	}
	var boxes []domain.TextBox
	if err := json.Unmarshal(raw, &boxes); err != nil {
		t.Fatalf("unmarshal: %v", err)
	}
	c2 := NewController(NewRegistry(), geom.DefaultLimits)
	c2.Registry().Load(boxes)
	c2.SetStage(800, 600)
	for _, b := range c.Registry().Boxes() {
		r1, _ := c.Rect(b.ID)
		r2, ok := c2.Rect(b.ID)
		if !ok || !rectNear(r1, r2) {
			t.Fatalf("geometry changed for %s: %+v vs %+v", b.ID, r1, r2)
		}
		got, _ := c2.Registry().Get(b.ID)
		if got.Text != b.Text || got.ZIndex != b.ZIndex {
			t.Fatalf("fields lost: %+v vs %+v", got, b)
		}
	}
}
