/*
 * Copyright (c) 2025 by Alexander Drost, Oldenburg, Germany.
 * This file is licensed to you under the Apache License, Version 2.0 (the "License"); you may not use this file except in compliance with the License.  You may obtain a copy of the License at
 *   http://www.apache.org/licenses/LICENSE-2.0
 * Unless required by applicable law or agreed to in writing, software distributed under the License is distributed on an
 * "AS IS" BASIS, WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.  See the License for the specific language governing permissions and limitations under the License.
 */

package geom

import (
	"math"
	"testing"

	"gomemecanvas/internal/domain"
)

func near(a, b float64) bool { return math.Abs(a-b) < 1e-9 }

func TestRectContainsAndInset(t *testing.T) {
	r := R(10, 20, 100, 50)
	if !r.Contains(Pt{10, 20}) || !r.Contains(Pt{110, 70}) {
		t.Fatalf("expected edge points to be contained")
	}
	if r.Contains(Pt{9, 20}) {
		t.Fatalf("point left of rect should not be contained")
	}
	in := r.Inset(5, 5)
	if in.X != 15 || in.Y != 25 || in.W != 90 || in.H != 40 {
		t.Fatalf("unexpected inset: %+v", in)
	}
	if c := r.Center(); c.X != 60 || c.Y != 45 {
		t.Fatalf("unexpected center: %+v", c)
	}
	if r.Min() != (Pt{10, 20}) || r.Max() != (Pt{110, 70}) {
		t.Fatalf("unexpected corners: %+v %+v", r.Min(), r.Max())
	}
}

func TestClamp(t *testing.T) {
	if Clamp(5, 0, 10) != 5 || Clamp(-1, 0, 10) != 0 || Clamp(11, 0, 10) != 10 {
		t.Fatalf("clamp within bounds failed")
	}
	if Clamp(5, 10, 3) != 3 {
		t.Fatalf("upper bound should win when hi < lo")
	}
}

func TestToOverlayPixelsAppliesMinimums(t *testing.T) {
	b := domain.TextBox{LeftRatio: 0.5, TopRatio: 0.5, WidthRatio: 0.01, HeightRatio: 0.01}
	r, ok := ToOverlayPixels(b, Size{800, 600}, DefaultLimits)
	if !ok {
		t.Fatalf("expected ok")
	}
	if r.W != MinBoxWidth || r.H != MinBoxHeight {
		t.Fatalf("minimums not applied: %+v", r)
	}
	if r.X != 400 || r.Y != 300 {
		t.Fatalf("unexpected position: %+v", r)
	}
}

func TestToOverlayPixelsKeepsBoxInsideStage(t *testing.T) {
	b := domain.TextBox{LeftRatio: 0.95, TopRatio: 0.95, WidthRatio: 0.25, HeightRatio: 0.2}
	r, _ := ToOverlayPixels(b, Size{800, 600}, DefaultLimits)
	if r.X+r.W > 800 || r.Y+r.H > 600 {
		t.Fatalf("box escapes stage: %+v", r)
	}
	// A stage smaller than the minimums caps the box at the stage size.
	r, _ = ToOverlayPixels(b, Size{100, 40}, DefaultLimits)
	if r.W != 100 || r.H != 40 || r.X != 0 || r.Y != 0 {
		t.Fatalf("unexpected tiny-stage rect: %+v", r)
	}
}

func TestToOverlayPixelsDegenerateStage(t *testing.T) {
	for _, s := range []Size{{0, 600}, {800, 0}, {-1, -1}, {math.Inf(1), 10}} {
		if _, ok := ToOverlayPixels(domain.TextBox{WidthRatio: 0.5}, s, DefaultLimits); ok {
			t.Fatalf("stage %+v should be rejected", s)
		}
	}
}

func TestToOutputPixelsScalesOverlay(t *testing.T) {
	b := domain.TextBox{LeftRatio: 0.25, TopRatio: 0.5, WidthRatio: 0.5, HeightRatio: 0.25}
	g, ok := ToOutputPixels(b, Size{1600, 1200}, Size{800, 600}, DefaultLimits)
	if !ok {
		t.Fatalf("expected ok")
	}
	if g.Rect != R(400, 600, 800, 300) {
		t.Fatalf("unexpected output rect: %+v", g.Rect)
	}
	if g.Scale != 2 || g.Padding != 24 {
		t.Fatalf("unexpected scale/padding: %v %v", g.Scale, g.Padding)
	}
}

func TestOutputScaleAveragesAxes(t *testing.T) {
	if s := OutputScale(Size{1600, 600}, Size{800, 600}); s != 1.5 {
		t.Fatalf("expected 1.5, got %v", s)
	}
	if s := OutputScale(Size{}, Size{800, 600}); s != 1 {
		t.Fatalf("degenerate output should give 1, got %v", s)
	}
}

func TestCommitRatiosRoundTrip(t *testing.T) {
	stage := Size{800, 600}
	var b domain.TextBox
	if !CommitRatios(&b, R(600, 500, 200, 100), stage) {
		t.Fatalf("commit failed")
	}
	if !near(b.LeftRatio, 0.75) || !near(b.TopRatio, 500.0/600) || !near(b.WidthRatio, 0.25) || !near(b.HeightRatio, 100.0/600) {
		t.Fatalf("unexpected ratios: %+v", b)
	}
	r, _ := ToOverlayPixels(b, stage, DefaultLimits)
	if !near(r.X, 600) || !near(r.Y, 500) || !near(r.W, 200) || !near(r.H, 100) {
		t.Fatalf("round trip mismatch: %+v", r)
	}
}

func TestCommitRatiosClampsAndRejects(t *testing.T) {
	b := domain.TextBox{LeftRatio: 0.1}
	if CommitRatios(&b, R(0, 0, 10, 10), Size{0, 0}) {
		t.Fatalf("degenerate stage should not commit")
	}
	if b.LeftRatio != 0.1 {
		t.Fatalf("box must be untouched on failed commit")
	}
	CommitRatios(&b, R(-50, 900, 2000, 100), Size{800, 600})
	if b.LeftRatio != 0 || b.WidthRatio != 1 || !near(b.TopRatio+b.HeightRatio, 1) {
		t.Fatalf("unexpected clamp: %+v", b)
	}
}

func TestClampRatiosRepairsMalformed(t *testing.T) {
	b := domain.TextBox{LeftRatio: math.NaN(), TopRatio: 0.9, WidthRatio: 1.5, HeightRatio: 0.5, FontSizeRatio: -1}
	ClampRatios(&b)
	if b.LeftRatio != 0 || b.WidthRatio != 1 || b.HeightRatio != 0.5 || b.TopRatio != 0.5 {
		t.Fatalf("unexpected ratios: %+v", b)
	}
	if b.FontSizeRatio != DefaultFontRatio {
		t.Fatalf("expected default font ratio, got %v", b.FontSizeRatio)
	}
}

func TestFontPixels(t *testing.T) {
	b := domain.TextBox{FontSizeRatio: 0.05}
	if px := BaseFontPixels(b, 800); px != 40 {
		t.Fatalf("expected 40, got %v", px)
	}
	if px := BaseFontPixels(b, 200); px != MinBaseFont {
		t.Fatalf("expected floor %v, got %v", MinBaseFont, px)
	}
	b.SetFontSize(31)
	if px := BaseFontPixels(b, 800); px != 31 {
		t.Fatalf("cache should win, got %v", px)
	}
	RefreshFontCache(&b, 1000)
	if px, _ := b.CachedFontSize(); px != 50 {
		t.Fatalf("refresh should recompute from ratio, got %v", px)
	}
}

func TestFitDisplay(t *testing.T) {
	if s := FitDisplay(Size{1200, 900}, DisplayMax, DisplayMax); s != (Size{600, 450}) {
		t.Fatalf("unexpected landscape fit: %+v", s)
	}
	if s := FitDisplay(Size{300, 1200}, DisplayMax, DisplayMax); s != (Size{150, 600}) {
		t.Fatalf("unexpected portrait fit: %+v", s)
	}
	if s := FitDisplay(Size{320, 240}, DisplayMax, DisplayMax); s != (Size{320, 240}) {
		t.Fatalf("small images keep their size: %+v", s)
	}
	if s := FitDisplay(Size{}, DisplayMax, DisplayMax); s.Valid() {
		t.Fatalf("degenerate input should stay degenerate: %+v", s)
	}
}
