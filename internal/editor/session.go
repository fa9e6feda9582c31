/*
 * Copyright (c) 2025 by Alexander Drost, Oldenburg, Germany.
 * This file is licensed to you under the Apache License, Version 2.0 (the "License"); you may not use this file except in compliance with the License.  You may obtain a copy of the License at
 *   http://www.apache.org/licenses/LICENSE-2.0
 * Unless required by applicable law or agreed to in writing, software distributed under the License is distributed on an
 * "AS IS" BASIS, WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.  See the License for the specific language governing permissions and limitations under the License.
 */

package editor

import (
	"image"
	"io"
	"log/slog"
	"time"

	"gomemecanvas/internal/domain"
	"gomemecanvas/internal/geom"
	applog "gomemecanvas/internal/log"
	"gomemecanvas/internal/render"
)

// LoadMode says what happens to existing boxes when a base image is loaded.
type LoadMode int

const (
	// ClearBoxes starts a fresh composition (new template or upload).
	ClearBoxes LoadMode = iota
	// KeepBoxes keeps the boxes, used when re-editing a saved composition.
	KeepBoxes
)

// Session is one composition being edited: base image, registry, controller
// and the rasterizer that produces every exported bitmap.
type Session struct {
	reg        *Registry
	ctrl       *Controller
	rasterizer *render.Rasterizer
	base       image.Image
	onRender   func(*image.RGBA)
	log        *slog.Logger
}

// NewSession builds an empty session. A nil rasterizer selects render.New(nil).
// The session works on a copy of r carrying its limits, so one rasterizer can
// back many sessions.
func NewSession(r *render.Rasterizer, limits geom.Limits) *Session {
	if r == nil {
		r = render.New(nil)
	}
	rc := *r
	reg := NewRegistry()
	s := &Session{
		reg:        reg,
		ctrl:       NewController(reg, limits),
		rasterizer: &rc,
		log:        applog.WithComponent("session"),
	}
	rc.Limits = s.ctrl.Limits()
	s.ctrl.OnChange(s.rerender)
	return s
}

func (s *Session) Registry() *Registry     { return s.reg }
func (s *Session) Controller() *Controller { return s.ctrl }
func (s *Session) Image() image.Image      { return s.base }

// OnRender registers a callback receiving a fresh bitmap after every change.
// Without one, mutations do not rasterize.
func (s *Session) OnRender(fn func(*image.RGBA)) { s.onRender = fn }

func (s *Session) rerender() {
	if s.onRender == nil {
		return
	}
	s.onRender(s.Render())
}

// LoadImage replaces the base image. A nil image clears it (the empty canvas
// state). ClearBoxes also empties the registry.
func (s *Session) LoadImage(img image.Image, mode LoadMode) {
	s.base = img
	if mode == ClearBoxes {
		s.ctrl.ClearAll()
		return
	}
	s.rerender()
}

// LoadImageFile decodes path and loads it. On failure the image is cleared and
// the error returned; the composition stays usable.
func (s *Session) LoadImageFile(path string, mode LoadMode) error {
	img, err := render.LoadImage(path)
	if err != nil {
		s.log.Error("load image failed", slog.String("path", path), slog.Any("err", err))
		s.LoadImage(nil, mode)
		return err
	}
	s.LoadImage(img, mode)
	return nil
}

// LoadDataURL is LoadImageFile for a base64 data URL.
func (s *Session) LoadDataURL(u string, mode LoadMode) error {
	img, err := render.DecodeDataURL(u)
	if err != nil {
		s.log.Error("decode image data failed", slog.Any("err", err))
		s.LoadImage(nil, mode)
		return err
	}
	s.LoadImage(img, mode)
	return nil
}

// Rehydrate restores a saved composition: base image plus its boxes, with the
// z-order cursor one past the highest zIndex.
func (s *Session) Rehydrate(img image.Image, boxes []domain.TextBox) {
	s.base = img
	s.reg.Load(boxes)
	if st := s.ctrl.Stage(); st.Valid() {
		s.ctrl.SetStage(st.W, st.H)
		return
	}
	s.rerender()
}

// Snapshot returns the boxes in their persisted shape.
func (s *Session) Snapshot() []domain.TextBox { return s.reg.Snapshot() }

// DisplayStage is the stage size a viewer shows the base image at, bounded by
// maxW×maxH. It is zero without an image.
func (s *Session) DisplayStage(maxW, maxH float64) geom.Size {
	if s.base == nil {
		return geom.Size{}
	}
	b := s.base.Bounds()
	return geom.FitDisplay(geom.Size{W: float64(b.Dx()), H: float64(b.Dy())}, maxW, maxH)
}

// Render rasterizes the composition at the image's native size. It returns
// nil without a base image.
func (s *Session) Render() *image.RGBA {
	return s.rasterizer.Render(s.base, s.reg.Boxes(), s.ctrl.Stage())
}

// ExportPNG writes the rendered composition as PNG.
func (s *Session) ExportPNG(w io.Writer) error {
	img := s.Render()
	if img == nil {
		return render.ErrNoImage
	}
	return render.EncodePNG(w, img)
}

// DataURL renders the composition into a PNG data URL.
func (s *Session) DataURL() (string, error) {
	img := s.Render()
	if img == nil {
		return "", render.ErrNoImage
	}
	return render.DataURL(img)
}

// Record builds the persisted record. imageData is the rendered PNG, so the
// stored raster is exactly what the editor shows; the base image and stage are
// kept alongside for re-editing.
func (s *Session) Record(id, userID string) (*domain.Meme, error) {
	data, err := s.DataURL()
	if err != nil {
		return nil, err
	}
	base, err := render.DataURL(s.base)
	if err != nil {
		return nil, err
	}
	st := s.ctrl.Stage()
	return &domain.Meme{
		ID:            id,
		UserID:        userID,
		ImageData:     data,
		BaseImageData: base,
		StageWidth:    st.W,
		StageHeight:   st.H,
		TextBoxes:     s.Snapshot(),
		CreatedAt:     time.Now().UnixMilli(),
	}, nil
}

// OpenRecord rehydrates a saved record for editing. The stage falls back to
// the display fit of the image when the record does not carry one.
func (s *Session) OpenRecord(m *domain.Meme) error {
	img, err := render.DecodeDataURL(m.EditSource())
	if err != nil {
		s.log.Error("decode record image failed", slog.String("id", m.ID), slog.Any("err", err))
		s.LoadImage(nil, ClearBoxes)
		return err
	}
	s.Rehydrate(img, m.TextBoxes)
	stage := geom.Size{W: m.StageWidth, H: m.StageHeight}
	if !stage.Valid() {
		stage = s.DisplayStage(geom.DisplayMax, geom.DisplayMax)
	}
	s.ctrl.SetStage(stage.W, stage.H)
	return nil
}
