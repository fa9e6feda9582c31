/*
 * Copyright (c) 2025 by Alexander Drost, Oldenburg, Germany.
 * This file is licensed to you under the Apache License, Version 2.0 (the "License"); you may not use this file except in compliance with the License.  You may obtain a copy of the License at
 *   http://www.apache.org/licenses/LICENSE-2.0
 * Unless required by applicable law or agreed to in writing, software distributed under the License is distributed on an
 * "AS IS" BASIS, WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.  See the License for the specific language governing permissions and limitations under the License.
 */
// Package server exposes compositions over HTTP: rendering, the meme feed,
// owner-only edits and upvotes. Caller identity arrives in X-User-ID or as a
// signed bearer token; issuing real credentials stays outside this service.
package server

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"time"

	"github.com/google/uuid"

	"gomemecanvas/internal/geom"
	applog "gomemecanvas/internal/log"
	"gomemecanvas/internal/render"
	"gomemecanvas/internal/storage"
	"gomemecanvas/internal/telemetry"
	"gomemecanvas/internal/templates"
	"gomemecanvas/internal/version"
)

// Options configures a Server. Zero values select defaults.
type Options struct {
	Addr           string
	AuthSecret     string
	MaxUploadBytes int64
	Limits         geom.Limits
	DisplayMax     float64
	Driver         string // reported in telemetry
	Telemetry      *telemetry.Client
	Templates      templates.Gallery
}

const defaultMaxUpload = 20 << 20

// Server is the HTTP front of a store. It is safe for concurrent use: each
// request builds its own editing session.
type Server struct {
	store  storage.Store
	raster *render.Rasterizer
	opt    Options
	secret string
	log    *slog.Logger
	mux    *http.ServeMux
	newID  func() string
}

// New wires the routes. A nil rasterizer selects render.New(nil).
func New(st storage.Store, r *render.Rasterizer, opt Options) *Server {
	if r == nil {
		r = render.New(nil)
	}
	if opt.Addr == "" {
		opt.Addr = ":8080"
	}
	if opt.MaxUploadBytes <= 0 {
		opt.MaxUploadBytes = defaultMaxUpload
	}
	if opt.DisplayMax <= 0 {
		opt.DisplayMax = geom.DisplayMax
	}
	s := &Server{
		store:  st,
		raster: r,
		opt:    opt,
		secret: opt.AuthSecret,
		log:    applog.WithComponent("server"),
		mux:    http.NewServeMux(),
		newID:  uuid.NewString,
	}
	if s.secret == "" {
		s.secret = randomSecret()
		s.log.Warn("auth secret not set; tokens will not survive a restart")
	}
	s.routes()
	return s
}

func (s *Server) routes() {
	s.mux.HandleFunc("GET /healthz", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte("ok"))
	})
	s.mux.HandleFunc("GET /readyz", s.handleReady)
	s.mux.HandleFunc("GET /version", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "text/plain; charset=utf-8")
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte(version.String()))
	})
	s.mux.HandleFunc("POST /api/auth/token", s.handleToken)
	s.mux.HandleFunc("POST /api/render", s.handleRender)
	s.mux.HandleFunc("GET /api/memes", s.handleList)
	s.mux.HandleFunc("POST /api/memes", s.withUser(s.handleCreate))
	s.mux.HandleFunc("GET /api/memes/{id}", s.handleGet)
	s.mux.HandleFunc("PUT /api/memes/{id}", s.withUser(s.handleUpdate))
	s.mux.HandleFunc("DELETE /api/memes/{id}", s.withUser(s.handleDelete))
	s.mux.HandleFunc("POST /api/memes/{id}/upvote", s.withUser(s.handleUpvote))
	s.mux.HandleFunc("GET /api/memes/{id}/thumbnail", s.handleThumbnail)
	s.mux.HandleFunc("GET /api/search", s.handleSearch)
	s.mux.HandleFunc("GET /api/templates", s.handleTemplates)
	s.mux.HandleFunc("GET /api/templates/{id}", s.handleTemplateImage)
}

// Handler returns the routed handler with request logging.
func (s *Server) Handler() http.Handler { return s.logRequests(s.mux) }

// ListenAndServe serves until ctx is cancelled, then shuts down gracefully.
func (s *Server) ListenAndServe(ctx context.Context) error {
	srv := &http.Server{
		Addr:              s.opt.Addr,
		Handler:           s.Handler(),
		ReadHeaderTimeout: 10 * time.Second,
	}
	errc := make(chan error, 1)
	go func() { errc <- srv.ListenAndServe() }()
	s.log.Info("listening", slog.String("addr", s.opt.Addr))
	select {
	case err := <-errc:
		return err
	case <-ctx.Done():
	}
	sctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := srv.Shutdown(sctx); err != nil {
		return err
	}
	if err := <-errc; err != nil && !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	return nil
}

func (s *Server) handleReady(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), 2*time.Second)
	defer cancel()
	if err := s.store.Ping(ctx); err != nil {
		w.WriteHeader(http.StatusServiceUnavailable)
		_, _ = w.Write([]byte("db not ready"))
		return
	}
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write([]byte("ready"))
}

type statusRecorder struct {
	http.ResponseWriter
	status int
}

func (r *statusRecorder) WriteHeader(code int) {
	r.status = code
	r.ResponseWriter.WriteHeader(code)
}

func (s *Server) logRequests(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		rec := &statusRecorder{ResponseWriter: w, status: http.StatusOK}
		next.ServeHTTP(rec, r)
		s.log.Debug("request",
			slog.String("method", r.Method),
			slog.String("path", r.URL.Path),
			slog.Int("status", rec.status),
			slog.Duration("dur", time.Since(start)),
		)
	})
}
