/*
 * Copyright (c) 2025 by Alexander Drost, Oldenburg, Germany.
 * This file is licensed to you under the Apache License, Version 2.0 (the "License"); you may not use this file except in compliance with the License.  You may obtain a copy of the License at
 *   http://www.apache.org/licenses/LICENSE-2.0
 * Unless required by applicable law or agreed to in writing, software distributed under the License is distributed on an
 * "AS IS" BASIS, WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.  See the License for the specific language governing permissions and limitations under the License.
 */

package editor

import (
	"log/slog"
	"math"
	"strings"

	"gomemecanvas/internal/domain"
	"gomemecanvas/internal/geom"
	applog "gomemecanvas/internal/log"
)

// Direction names a resize handle. Corners combine one vertical and one
// horizontal edge; a bare edge moves that side only.
type Direction string

const (
	TopLeft     Direction = "top-left"
	TopRight    Direction = "top-right"
	BottomLeft  Direction = "bottom-left"
	BottomRight Direction = "bottom-right"

	Top    Direction = "top"
	Bottom Direction = "bottom"
	Left   Direction = "left"
	Right  Direction = "right"
)

// Corners lists the handles drawn on every box.
var Corners = []Direction{TopLeft, TopRight, BottomLeft, BottomRight}

func (d Direction) has(edge string) bool { return strings.Contains(string(d), edge) }

// Chrome and handle sizes in overlay pixels.
const (
	ChromeHeight = 24
	HandleSize   = 14
)

// Part is the region of a box under the pointer.
type Part int

const (
	PartNone    Part = iota // empty stage
	PartContent             // editable text area
	PartChrome              // toolbar strip used for moving
	PartHandle              // resize handle
)

// Hit is the result of a hit test.
type Hit struct {
	BoxID string
	Part  Part
	Dir   Direction // set for PartHandle
}

// GestureState is the controller's pointer state: Idle, Moving or Resizing.
type GestureState interface{ gesture() }

type Idle struct{}

// Moving drags a box by its chrome. Init is the box rect at gesture start.
type Moving struct {
	BoxID string
	Start geom.Pt
	Init  geom.Rect
}

// Resizing drags one handle of a box.
type Resizing struct {
	BoxID string
	Dir   Direction
	Start geom.Pt
	Init  geom.Rect
}

func (Idle) gesture()     {}
func (Moving) gesture()   {}
func (Resizing) gesture() {}

// Controller turns pointer input on the overlay into registry mutations. All
// operations are total: geometry is clamped, never rejected, and a degenerate
// stage turns every operation into a no-op.
type Controller struct {
	reg      *Registry
	stage    geom.Size
	limits   geom.Limits
	active   string
	state    GestureState
	onChange func()
	log      *slog.Logger
}

// NewController drives reg. Zero limits select geom.DefaultLimits.
func NewController(reg *Registry, limits geom.Limits) *Controller {
	if reg == nil {
		reg = NewRegistry()
	}
	if limits.MinW <= 0 || limits.MinH <= 0 {
		limits = geom.DefaultLimits
	}
	return &Controller{reg: reg, limits: limits, state: Idle{}, log: applog.WithComponent("editor")}
}

// OnChange registers the callback run after every mutation, typically a re-render.
func (c *Controller) OnChange(fn func()) { c.onChange = fn }

func (c *Controller) changed() {
	if c.onChange != nil {
		c.onChange()
	}
}

func (c *Controller) Registry() *Registry { return c.reg }
func (c *Controller) Stage() geom.Size    { return c.stage }
func (c *Controller) Limits() geom.Limits { return c.limits }
func (c *Controller) Active() string      { return c.active }
func (c *Controller) State() GestureState { return c.state }

// SetStage records the overlay size. Font size caches are recomputed from
// their ratios so they follow the new width.
func (c *Controller) SetStage(w, h float64) {
	c.stage = geom.Size{W: w, H: h}
	if !c.stage.Valid() {
		return
	}
	for i := range c.reg.boxes {
		geom.RefreshFontCache(&c.reg.boxes[i], w)
	}
	c.changed()
}

// Rect resolves a box to overlay pixels.
func (c *Controller) Rect(id string) (geom.Rect, bool) {
	b, ok := c.reg.Get(id)
	if !ok {
		return geom.Rect{}, false
	}
	return geom.ToOverlayPixels(b, c.stage, c.limits)
}

// HandleRect is the hit area of a resize handle of r.
func HandleRect(r geom.Rect, d Direction) geom.Rect {
	x, y := r.X, r.Y
	if d.has("right") {
		x += r.W
	}
	if d.has("bottom") {
		y += r.H
	}
	return geom.R(x-HandleSize/2, y-HandleSize/2, HandleSize, HandleSize)
}

// ChromeRect is the toolbar strip along the top of r.
func ChromeRect(r geom.Rect) geom.Rect {
	return geom.R(r.X, r.Y, r.W, math.Min(ChromeHeight, r.H))
}

// HitTest finds the top-most box part under pt. Handles win over chrome,
// chrome over content.
func (c *Controller) HitTest(pt geom.Pt) Hit {
	if !c.stage.Valid() {
		return Hit{}
	}
	ordered := c.reg.Ordered()
	for i := len(ordered) - 1; i >= 0; i-- {
		b := ordered[i]
		r, ok := geom.ToOverlayPixels(b, c.stage, c.limits)
		if !ok {
			continue
		}
		for _, d := range Corners {
			if HandleRect(r, d).Contains(pt) {
				return Hit{BoxID: b.ID, Part: PartHandle, Dir: d}
			}
		}
		if ChromeRect(r).Contains(pt) {
			return Hit{BoxID: b.ID, Part: PartChrome}
		}
		if r.Contains(pt) {
			return Hit{BoxID: b.ID, Part: PartContent}
		}
	}
	return Hit{}
}

// PointerDown dispatches a press: empty stage creates a box, content activates,
// chrome starts a move and a handle starts a resize. A press during an active
// gesture is ignored.
func (c *Controller) PointerDown(pt geom.Pt) Hit {
	if !c.stage.Valid() {
		return Hit{}
	}
	if _, idle := c.state.(Idle); !idle {
		return Hit{}
	}
	h := c.HitTest(pt)
	switch h.Part {
	case PartNone:
		if b, ok := c.CreateAt(pt); ok {
			return Hit{BoxID: b.ID, Part: PartContent}
		}
	case PartContent:
		c.Activate(h.BoxID)
	case PartChrome:
		c.BeginMove(h.BoxID, pt)
	case PartHandle:
		c.BeginResize(h.BoxID, h.Dir, pt)
	}
	return h
}

// BeginMove activates the box and captures its rect for a move gesture.
func (c *Controller) BeginMove(id string, pt geom.Pt) bool {
	r, ok := c.Rect(id)
	if !ok {
		return false
	}
	c.Activate(id)
	c.state = Moving{BoxID: id, Start: pt, Init: r}
	return true
}

// BeginResize activates the box and captures its rect for a resize gesture.
func (c *Controller) BeginResize(id string, d Direction, pt geom.Pt) bool {
	r, ok := c.Rect(id)
	if !ok {
		return false
	}
	c.Activate(id)
	c.state = Resizing{BoxID: id, Dir: d, Start: pt, Init: r}
	return true
}

// PointerMove updates the active gesture from the absolute delta between pt
// and the gesture start. It reports whether anything changed.
func (c *Controller) PointerMove(pt geom.Pt) bool {
	if !c.stage.Valid() {
		return false
	}
	var (
		id string
		r  geom.Rect
	)
	switch g := c.state.(type) {
	case Moving:
		id, r = g.BoxID, MoveRect(g.Init, pt.X-g.Start.X, pt.Y-g.Start.Y, c.stage)
	case Resizing:
		id, r = g.BoxID, ResizeRect(g.Init, g.Dir, pt.X-g.Start.X, pt.Y-g.Start.Y, c.stage, c.limits)
	default:
		return false
	}
	stage := c.stage
	ok := c.reg.Update(id, func(b *domain.TextBox) { geom.CommitRatios(b, r, stage) })
	if !ok {
		c.state = Idle{}
		return false
	}
	c.changed()
	return true
}

// PointerUp ends the gesture.
func (c *Controller) PointerUp() { c.endGesture() }

// PointerCancel ends the gesture exactly like PointerUp.
func (c *Controller) PointerCancel() { c.endGesture() }

func (c *Controller) endGesture() {
	if _, idle := c.state.(Idle); idle {
		return
	}
	c.state = Idle{}
	c.changed()
}

// MoveRect offsets init by dx,dy and clamps it inside stage.
func MoveRect(init geom.Rect, dx, dy float64, stage geom.Size) geom.Rect {
	return geom.Rect{
		X: geom.Clamp(init.X+dx, 0, stage.W-init.W),
		Y: geom.Clamp(init.Y+dy, 0, stage.H-init.H),
		W: init.W,
		H: init.H,
	}
}

// ResizeRect moves the edges named by d by dx,dy. Each dimension keeps the
// minimum size and stays inside the stage on its side.
func ResizeRect(init geom.Rect, d Direction, dx, dy float64, stage geom.Size, lim geom.Limits) geom.Rect {
	r := init
	switch {
	case d.has("left"):
		r.X = geom.Clamp(init.X+dx, 0, math.Max(0, init.X+init.W-lim.MinW))
		r.W = init.W + (init.X - r.X)
	case d.has("right"):
		r.W = geom.Clamp(init.W+dx, lim.MinW, stage.W-init.X)
	}
	switch {
	case d.has("top"):
		r.Y = geom.Clamp(init.Y+dy, 0, math.Max(0, init.Y+init.H-lim.MinH))
		r.H = init.H + (init.Y - r.Y)
	case d.has("bottom"):
		r.H = geom.Clamp(init.H+dy, lim.MinH, stage.H-init.Y)
	}
	r.W = math.Min(r.W, stage.W-r.X)
	r.H = math.Min(r.H, stage.H-r.Y)
	return r
}

// DefaultBoxSize is the size of a newly created box on stage.
func DefaultBoxSize(stage geom.Size, lim geom.Limits) (w, h float64) {
	w = geom.Clamp(math.Min(stage.W*0.45, 260), lim.MinW, stage.W)
	h = geom.Clamp(math.Min(stage.H*0.25, 140), lim.MinH, stage.H)
	return w, h
}

// DefaultFontPixels is the font size of a newly created box on a stage of width w.
func DefaultFontPixels(w float64) float64 { return geom.Clamp(w*geom.DefaultFontRatio, 18, 34) }

// CreateAt spawns a box centred on pt, clamped to the stage, makes it active
// and puts it above every other box.
func (c *Controller) CreateAt(pt geom.Pt) (domain.TextBox, bool) {
	if !c.stage.Valid() {
		return domain.TextBox{}, false
	}
	w, h := DefaultBoxSize(c.stage, c.limits)
	r := geom.Rect{
		X: geom.Clamp(pt.X-w/2, 0, c.stage.W-w),
		Y: geom.Clamp(pt.Y-h/2, 0, c.stage.H-h),
		W: w,
		H: h,
	}
	fontPx := DefaultFontPixels(c.stage.W)
	var b domain.TextBox
	geom.CommitRatios(&b, r, c.stage)
	b.FontSizeRatio = fontPx / c.stage.W
	b.SetFontSize(fontPx)
	b = c.reg.Add(b)
	c.active = b.ID
	c.log.Debug("box created", slog.String("id", b.ID), slog.Float64("x", r.X), slog.Float64("y", r.Y))
	c.changed()
	return b, true
}

// Activate marks the box active and brings it to the front.
func (c *Controller) Activate(id string) bool {
	if !c.reg.BringToFront(id) {
		return false
	}
	c.active = id
	c.changed()
	return true
}

// EditText normalizes text and stores it on the box.
func (c *Controller) EditText(id, text string) bool {
	text = domain.NormalizeText(text)
	if !c.reg.Update(id, func(b *domain.TextBox) { b.Text = text }) {
		return false
	}
	c.changed()
	return true
}

// Delete removes the box, clearing the selection and any gesture on it.
func (c *Controller) Delete(id string) bool {
	if !c.reg.Delete(id) {
		return false
	}
	if c.active == id {
		c.active = ""
	}
	switch g := c.state.(type) {
	case Moving:
		if g.BoxID == id {
			c.state = Idle{}
		}
	case Resizing:
		if g.BoxID == id {
			c.state = Idle{}
		}
	}
	c.log.Debug("box deleted", slog.String("id", id))
	c.changed()
	return true
}

// ClearAll empties the registry and the selection.
func (c *Controller) ClearAll() {
	c.reg.Clear()
	c.active = ""
	c.state = Idle{}
	c.changed()
}
