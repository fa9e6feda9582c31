/*
 * Copyright (c) 2025 by Alexander Drost, Oldenburg, Germany.
 * This file is licensed to you under the Apache License, Version 2.0 (the "License"); you may not use this file except in compliance with the License.  You may obtain a copy of the License at
 *   http://www.apache.org/licenses/LICENSE-2.0
 * Unless required by applicable law or agreed to in writing, software distributed under the License is distributed on an
 * "AS IS" BASIS, WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.  See the License for the specific language governing permissions and limitations under the License.
 */
// Package ui is the desktop editor. The Fyne front end is only compiled with
// -tags fyne; the stage mapping and overlay layout here are shared and build
// everywhere.
package ui

import (
	"math"

	"gomemecanvas/internal/editor"
	"gomemecanvas/internal/geom"
	"gomemecanvas/internal/render"
	"gomemecanvas/internal/storage"
	"gomemecanvas/internal/templates"
)

// Options configures Run.
type Options struct {
	ImagePath  string // loaded on start when set
	OpenID     string // stored meme to open on start
	UserID     string // owner of saved memes
	Store      storage.Store
	Driver     string // store driver name for telemetry
	Templates  templates.Gallery
	Raster     *render.Rasterizer
	Limits     geom.Limits
	DisplayMax float64
	CrashDir   string
}

// StageOrigin is where the stage sits inside a view of the given size. The
// stage is centred and never pushed above or left of the view.
func StageOrigin(view, stage geom.Size) geom.Pt {
	return geom.Pt{
		X: math.Max(0, (view.W-stage.W)/2),
		Y: math.Max(0, (view.H-stage.H)/2),
	}
}

// ToStage maps a view position to stage coordinates.
func ToStage(p geom.Pt, view, stage geom.Size) geom.Pt {
	o := StageOrigin(view, stage)
	return geom.Pt{X: p.X - o.X, Y: p.Y - o.Y}
}

// ShapeKind is the role of an overlay rectangle.
type ShapeKind int

const (
	ShapeFrame  ShapeKind = iota // outline of a box
	ShapeChrome                  // move strip of the active box
	ShapeHandle                  // resize handle of the active box
)

// Shape is one overlay rectangle in stage pixels.
type Shape struct {
	BoxID  string
	Kind   ShapeKind
	Rect   geom.Rect
	Active bool
}

// OverlayShapes lists the editing chrome for the controller's boxes in paint
// order: frames bottom to top, then the active box's strip and handles.
func OverlayShapes(c *editor.Controller) []Shape {
	var out []Shape
	active := c.Active()
	var activeRect geom.Rect
	hasActive := false
	for _, b := range c.Registry().Ordered() {
		r, ok := c.Rect(b.ID)
		if !ok {
			continue
		}
		isActive := b.ID == active
		out = append(out, Shape{BoxID: b.ID, Kind: ShapeFrame, Rect: r, Active: isActive})
		if isActive {
			activeRect, hasActive = r, true
		}
	}
	if !hasActive {
		return out
	}
	out = append(out, Shape{BoxID: active, Kind: ShapeChrome, Rect: editor.ChromeRect(activeRect), Active: true})
	for _, d := range editor.Corners {
		out = append(out, Shape{BoxID: active, Kind: ShapeHandle, Rect: editor.HandleRect(activeRect, d), Active: true})
	}
	return out
}
