/*
 * Copyright (c) 2025 by Alexander Drost, Oldenburg, Germany.
 * This file is licensed to you under the Apache License, Version 2.0 (the "License"); you may not use this file except in compliance with the License.  You may obtain a copy of the License at
 *   http://www.apache.org/licenses/LICENSE-2.0
 * Unless required by applicable law or agreed to in writing, software distributed under the License is distributed on an
 * "AS IS" BASIS, WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.  See the License for the specific language governing permissions and limitations under the License.
 */
package server

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"image"
	"io"
	"log/slog"
	"mime"
	"net/http"
	"strconv"
	"strings"
	"time"

	"gomemecanvas/internal/domain"
	"gomemecanvas/internal/editor"
	"gomemecanvas/internal/geom"
	"gomemecanvas/internal/render"
	"gomemecanvas/internal/storage"
	"gomemecanvas/internal/telemetry"
	"gomemecanvas/internal/templates"
)

// composeRequest is the body of render, create and update calls. The base is
// either ImageData or a gallery template. Stage is the overlay size the box
// ratios were committed against; zero selects the display fit of the image.
type composeRequest struct {
	ImageData   string           `json:"imageData"`
	TemplateID  string           `json:"templateId,omitempty"`
	TextBoxes   []domain.TextBox `json:"textBoxes"`
	StageWidth  float64          `json:"stageWidth"`
	StageHeight float64          `json:"stageHeight"`
}

type httpError struct {
	status int
	err    error
}

func (e *httpError) Error() string { return e.err.Error() }
func (e *httpError) Unwrap() error { return e.err }

func badRequest(format string, args ...any) error {
	return &httpError{status: http.StatusBadRequest, err: fmt.Errorf(format, args...)}
}

// fail maps err to a status and writes it.
func (s *Server) fail(w http.ResponseWriter, op string, err error) {
	var he *httpError
	var mbe *http.MaxBytesError
	switch {
	case errors.As(err, &he):
		writeError(w, he.status, he.err)
	case errors.As(err, &mbe):
		writeError(w, http.StatusRequestEntityTooLarge, errors.New("request too large"))
	case errors.Is(err, storage.ErrNotFound):
		writeError(w, http.StatusNotFound, errors.New("meme not found"))
	default:
		s.log.Error(op+" failed", slog.Any("err", err))
		writeError(w, http.StatusInternalServerError, errors.New("internal error"))
	}
}

// decodeCompose reads JSON or multipart/form-data. The multipart form carries
// the image as an "image" file part and the boxes as a "textBoxes" JSON field.
func (s *Server) decodeCompose(w http.ResponseWriter, r *http.Request) (composeRequest, image.Image, error) {
	var req composeRequest
	r.Body = http.MaxBytesReader(w, r.Body, s.opt.MaxUploadBytes)
	ct, _, _ := mime.ParseMediaType(r.Header.Get("Content-Type"))
	if ct == "multipart/form-data" {
		return s.decodeMultipart(r)
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		var mbe *http.MaxBytesError
		if errors.As(err, &mbe) {
			return req, nil, err
		}
		return req, nil, badRequest("decode request: %v", err)
	}
	if strings.TrimSpace(req.ImageData) == "" {
		img, err := s.templateImage(req.TemplateID)
		return req, img, err
	}
	img, err := render.DecodeDataURL(req.ImageData)
	if err != nil {
		return req, nil, badRequest("decode image: %v", err)
	}
	return req, img, nil
}

func (s *Server) decodeMultipart(r *http.Request) (composeRequest, image.Image, error) {
	var req composeRequest
	if err := r.ParseMultipartForm(8 << 20); err != nil {
		var mbe *http.MaxBytesError
		if errors.As(err, &mbe) {
			return req, nil, err
		}
		return req, nil, badRequest("parse form: %v", err)
	}
	if raw := r.FormValue("textBoxes"); raw != "" {
		if err := json.Unmarshal([]byte(raw), &req.TextBoxes); err != nil {
			return req, nil, badRequest("decode textBoxes: %v", err)
		}
	}
	req.StageWidth, _ = strconv.ParseFloat(r.FormValue("stageWidth"), 64)
	req.StageHeight, _ = strconv.ParseFloat(r.FormValue("stageHeight"), 64)
	req.TemplateID = r.FormValue("templateId")
	f, _, err := r.FormFile("image")
	if errors.Is(err, http.ErrMissingFile) {
		img, err := s.templateImage(req.TemplateID)
		return req, img, err
	}
	if err != nil {
		return req, nil, badRequest("image part: %v", err)
	}
	defer f.Close()
	img, _, err := render.DecodeImage(f)
	if err != nil {
		return req, nil, badRequest("decode image: %v", err)
	}
	return req, img, nil
}

// compose runs the editing path for one request: a fresh session, the boxes
// rehydrated against the stage, and a render at the image's native size.
func (s *Server) compose(img image.Image, req composeRequest) *editor.Session {
	sess := editor.NewSession(s.raster, s.opt.Limits)
	sess.Rehydrate(img, req.TextBoxes)
	stage := geom.Size{W: req.StageWidth, H: req.StageHeight}
	if !stage.Valid() {
		stage = sess.DisplayStage(s.opt.DisplayMax, s.opt.DisplayMax)
	}
	sess.Controller().SetStage(stage.W, stage.H)
	return sess
}

func (s *Server) rendered(sess *editor.Session, start time.Time) {
	b := sess.Image().Bounds()
	boxes := sess.Snapshot()
	s.opt.Telemetry.MemeRendered(telemetry.RenderStats{
		Source:   "server",
		Boxes:    len(boxes),
		Visible:  len(render.Visible(boxes)),
		Width:    b.Dx(),
		Height:   b.Dy(),
		Duration: time.Since(start),
	})
}

// POST /api/render → image/png
func (s *Server) handleRender(w http.ResponseWriter, r *http.Request) {
	start := time.Now()
	req, img, err := s.decodeCompose(w, r)
	if err != nil {
		s.fail(w, "render", err)
		return
	}
	if img == nil {
		writeError(w, http.StatusBadRequest, errors.New("image is required"))
		return
	}
	sess := s.compose(img, req)
	var buf bytes.Buffer
	if err := sess.ExportPNG(&buf); err != nil {
		s.fail(w, "render", err)
		return
	}
	s.rendered(sess, start)
	w.Header().Set("Content-Type", "image/png")
	w.Header().Set("Content-Length", strconv.Itoa(buf.Len()))
	w.WriteHeader(http.StatusOK)
	_, _ = io.Copy(w, &buf)
}

// GET /api/memes?sort=&limit=&offset=&user=
func (s *Server) handleList(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	opt := storage.ListOptions{Sort: q.Get("sort"), UserID: q.Get("user")}
	switch opt.Sort {
	case "", storage.SortNewest, storage.SortOldest, storage.SortUpvotes:
	default:
		writeError(w, http.StatusBadRequest, fmt.Errorf("unknown sort %q", opt.Sort))
		return
	}
	opt.Limit, _ = strconv.Atoi(q.Get("limit"))
	opt.Offset, _ = strconv.Atoi(q.Get("offset"))
	memes, err := s.store.List(r.Context(), opt)
	if err != nil {
		s.fail(w, "list", err)
		return
	}
	if memes == nil {
		memes = []domain.Meme{}
	}
	writeJSON(w, http.StatusOK, memes)
}

// GET /api/memes/{id}
func (s *Server) handleGet(w http.ResponseWriter, r *http.Request) {
	m, err := s.store.Get(r.Context(), r.PathValue("id"))
	if err != nil {
		s.fail(w, "get", err)
		return
	}
	writeJSON(w, http.StatusOK, m)
}

// POST /api/memes → 201 with the stored record
func (s *Server) handleCreate(w http.ResponseWriter, r *http.Request, user string) {
	start := time.Now()
	req, img, err := s.decodeCompose(w, r)
	if err != nil {
		s.fail(w, "create", err)
		return
	}
	if img == nil {
		writeError(w, http.StatusBadRequest, errors.New("image is required"))
		return
	}
	sess := s.compose(img, req)
	m, err := sess.Record(s.newID(), user)
	if err != nil {
		s.fail(w, "create", err)
		return
	}
	s.rendered(sess, start)
	if err := s.store.Save(r.Context(), m); err != nil {
		s.fail(w, "create", err)
		return
	}
	s.opt.Telemetry.MemeSaved(s.opt.Driver, len(m.TextBoxes), false)
	s.log.Info("meme created", slog.String("id", m.ID), slog.String("user", user))
	writeJSON(w, http.StatusCreated, m)
}

// owned loads id and checks that user owns it.
func (s *Server) owned(ctx context.Context, id, user string) (*domain.Meme, error) {
	m, err := s.store.Get(ctx, id)
	if err != nil {
		return nil, err
	}
	if m.UserID != user {
		return nil, &httpError{status: http.StatusForbidden, err: errors.New("not the owner of this meme")}
	}
	return m, nil
}

// PUT /api/memes/{id}. Omitted image data, boxes or stage keep the record's
// own.
func (s *Server) handleUpdate(w http.ResponseWriter, r *http.Request, user string) {
	start := time.Now()
	existing, err := s.owned(r.Context(), r.PathValue("id"), user)
	if err != nil {
		s.fail(w, "update", err)
		return
	}
	req, img, err := s.decodeCompose(w, r)
	if err != nil {
		s.fail(w, "update", err)
		return
	}
	if img == nil {
		if img, err = render.DecodeDataURL(existing.EditSource()); err != nil {
			s.fail(w, "update", fmt.Errorf("decode stored image: %w", err))
			return
		}
	}
	if req.TextBoxes == nil {
		req.TextBoxes = existing.TextBoxes
	}
	if req.StageWidth <= 0 || req.StageHeight <= 0 {
		req.StageWidth, req.StageHeight = existing.StageWidth, existing.StageHeight
	}
	sess := s.compose(img, req)
	m, err := sess.Record(existing.ID, existing.UserID)
	if err != nil {
		s.fail(w, "update", err)
		return
	}
	s.rendered(sess, start)
	m.CreatedAt = existing.CreatedAt
	if err := s.store.Save(r.Context(), m); err != nil {
		s.fail(w, "update", err)
		return
	}
	m.Upvotes = existing.Upvotes
	s.opt.Telemetry.MemeSaved(s.opt.Driver, len(m.TextBoxes), true)
	writeJSON(w, http.StatusOK, m)
}

// DELETE /api/memes/{id} → 204
func (s *Server) handleDelete(w http.ResponseWriter, r *http.Request, user string) {
	m, err := s.owned(r.Context(), r.PathValue("id"), user)
	if err != nil {
		s.fail(w, "delete", err)
		return
	}
	if err := s.store.Delete(r.Context(), m.ID); err != nil {
		s.fail(w, "delete", err)
		return
	}
	s.log.Info("meme deleted", slog.String("id", m.ID), slog.String("user", user))
	w.WriteHeader(http.StatusNoContent)
}

// POST /api/memes/{id}/upvote → {upvoted, upvotes}
func (s *Server) handleUpvote(w http.ResponseWriter, r *http.Request, user string) {
	upvoted, count, err := s.store.ToggleUpvote(r.Context(), r.PathValue("id"), user)
	if err != nil {
		s.fail(w, "upvote", err)
		return
	}
	s.opt.Telemetry.MemeUpvoted(upvoted)
	writeJSON(w, http.StatusOK, map[string]any{"upvoted": upvoted, "upvotes": count})
}

const (
	defaultThumbSize = 256
	minThumbSize     = 16
	maxThumbSize     = 1024
)

// GET /api/memes/{id}/thumbnail?size= → image/png bounded by size on its
// longer side. Stores that cache previews serve repeats from the cache.
func (s *Server) handleThumbnail(w http.ResponseWriter, r *http.Request) {
	id := r.PathValue("id")
	size := defaultThumbSize
	if v := r.URL.Query().Get("size"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil || n < minThumbSize || n > maxThumbSize {
			writeError(w, http.StatusBadRequest, fmt.Errorf("size must be between %d and %d", minThumbSize, maxThumbSize))
			return
		}
		size = n
	}
	gen := func(ctx context.Context) ([]byte, error) {
		m, err := s.store.Get(ctx, id)
		if err != nil {
			return nil, err
		}
		img, err := render.DecodeDataURL(m.ImageData)
		if err != nil {
			return nil, fmt.Errorf("decode stored image: %w", err)
		}
		return render.PNGBytes(render.Thumbnail(img, size))
	}
	var (
		data []byte
		err  error
	)
	if pc, ok := s.store.(storage.PreviewCache); ok {
		data, err = pc.GetOrCreatePreview(r.Context(), id, size, size, gen)
	} else {
		data, err = gen(r.Context())
	}
	if err != nil {
		s.fail(w, "thumbnail", err)
		return
	}
	w.Header().Set("Content-Type", "image/png")
	w.Header().Set("Cache-Control", "public, max-age=300")
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write(data)
}

type searchHit struct {
	MemeID  string `json:"memeId"`
	Snippet string `json:"snippet"`
}

// GET /api/search?q=&limit=
func (s *Server) handleSearch(w http.ResponseWriter, r *http.Request) {
	q := strings.TrimSpace(r.URL.Query().Get("q"))
	if q == "" {
		writeError(w, http.StatusBadRequest, errors.New("q is required"))
		return
	}
	limit, _ := strconv.Atoi(r.URL.Query().Get("limit"))
	res, err := s.store.Search(r.Context(), q, limit)
	if err != nil {
		s.fail(w, "search", err)
		return
	}
	out := make([]searchHit, 0, len(res))
	for _, h := range res {
		out = append(out, searchHit{MemeID: h.MemeID, Snippet: h.Snippet})
	}
	writeJSON(w, http.StatusOK, out)
}

// templateImage loads a gallery template. An empty id means no image.
func (s *Server) templateImage(id string) (image.Image, error) {
	if strings.TrimSpace(id) == "" {
		return nil, nil
	}
	img, err := s.opt.Templates.Load(id)
	if errors.Is(err, templates.ErrNotFound) {
		return nil, badRequest("unknown template %q", id)
	}
	if err != nil {
		return nil, fmt.Errorf("load template: %w", err)
	}
	return img, nil
}

// GET /api/templates → [{id, name}]
func (s *Server) handleTemplates(w http.ResponseWriter, r *http.Request) {
	list, err := s.opt.Templates.List()
	if err != nil {
		s.fail(w, "templates", err)
		return
	}
	if list == nil {
		list = []templates.Template{}
	}
	writeJSON(w, http.StatusOK, list)
}

// GET /api/templates/{id} → the template image file
func (s *Server) handleTemplateImage(w http.ResponseWriter, r *http.Request) {
	t, err := s.opt.Templates.Get(r.PathValue("id"))
	if errors.Is(err, templates.ErrNotFound) {
		writeError(w, http.StatusNotFound, err)
		return
	}
	if err != nil {
		s.fail(w, "template", err)
		return
	}
	http.ServeFile(w, r, t.Path)
}
