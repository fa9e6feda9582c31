/*
 * Copyright (c) 2025 by Alexander Drost, Oldenburg, Germany.
 * This file is licensed to you under the Apache License, Version 2.0 (the "License"); you may not use this file except in compliance with the License.  You may obtain a copy of the License at
 *   http://www.apache.org/licenses/LICENSE-2.0
 * Unless required by applicable law or agreed to in writing, software distributed under the License is distributed on an
 * "AS IS" BASIS, WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.  See the License for the specific language governing permissions and limitations under the License.
 */
package main

import (
	"context"
	"encoding/json"
	"flag"
	"fmt"
	"io"
	"log/slog"
	"os"
	"strconv"
	"strings"

	"gomemecanvas/internal/config"
	"gomemecanvas/internal/domain"
	"gomemecanvas/internal/geom"
	"gomemecanvas/internal/render"
	"gomemecanvas/internal/storage"
	"gomemecanvas/internal/templates"
	"gomemecanvas/internal/textlayout"
)

// usageError is a bad command line; run prints usage for it.
type usageError string

func (e usageError) Error() string { return string(e) }

// customFamily is the family a configured font file is registered under.
const customFamily = "Custom"

type cliApp struct {
	cfg      config.AppConfig
	password string
	log      *slog.Logger
}

// parseArgs lets flags appear before, between or after positional arguments.
func parseArgs(fs *flag.FlagSet, args []string) ([]string, error) {
	fs.SetOutput(io.Discard)
	var pos []string
	for {
		if err := fs.Parse(args); err != nil {
			return nil, usageError(fmt.Sprintf("%s: %v", fs.Name(), err))
		}
		args = fs.Args()
		if len(args) == 0 {
			return pos, nil
		}
		pos = append(pos, args[0])
		args = args[1:]
	}
}

// parseStage reads "WxH" as a stage size.
func parseStage(s string) (geom.Size, error) {
	w, h, ok := strings.Cut(strings.ToLower(strings.TrimSpace(s)), "x")
	if !ok {
		return geom.Size{}, fmt.Errorf("stage must look like 600x400, got %q", s)
	}
	fw, err1 := strconv.ParseFloat(w, 64)
	fh, err2 := strconv.ParseFloat(h, 64)
	st := geom.Size{W: fw, H: fh}
	if err1 != nil || err2 != nil || !st.Valid() {
		return geom.Size{}, fmt.Errorf("stage must look like 600x400, got %q", s)
	}
	return st, nil
}

// readBoxes accepts either a bare box array or a record carrying textBoxes
// (and optionally its stage).
func readBoxes(path string) ([]domain.TextBox, geom.Size, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, geom.Size{}, err
	}
	trimmed := strings.TrimSpace(string(data))
	if strings.HasPrefix(trimmed, "[") {
		var boxes []domain.TextBox
		if err := json.Unmarshal(data, &boxes); err != nil {
			return nil, geom.Size{}, fmt.Errorf("decode boxes: %w", err)
		}
		return boxes, geom.Size{}, nil
	}
	var rec struct {
		TextBoxes   []domain.TextBox `json:"textBoxes"`
		StageWidth  float64          `json:"stageWidth"`
		StageHeight float64          `json:"stageHeight"`
	}
	if err := json.Unmarshal(data, &rec); err != nil {
		return nil, geom.Size{}, fmt.Errorf("decode boxes: %w", err)
	}
	return rec.TextBoxes, geom.Size{W: rec.StageWidth, H: rec.StageHeight}, nil
}

func (a *cliApp) limits() geom.Limits {
	return geom.Limits{MinW: a.cfg.Editor.MinBoxWidth, MinH: a.cfg.Editor.MinBoxHeight}
}

func (a *cliApp) gallery() templates.Gallery {
	return templates.Gallery{Dir: a.cfg.Editor.TemplatesDir}
}

func (a *cliApp) displayMax() float64 {
	if a.cfg.Editor.DisplayMax > 0 {
		return a.cfg.Editor.DisplayMax
	}
	return geom.DisplayMax
}

// rasterizer builds the rasterizer from the render config: style preset,
// optional font file and colour overrides.
func (a *cliApp) rasterizer() (*render.Rasterizer, error) {
	return buildRasterizer(a.cfg.Render, a.limits())
}

func buildRasterizer(rc config.RenderConfig, lim geom.Limits) (*render.Rasterizer, error) {
	fonts := textlayout.DefaultLibrary()
	r := render.New(fonts)
	r.Limits = lim
	if name := strings.TrimSpace(rc.Style); name != "" {
		st, ok := textlayout.GetStyle(name)
		if !ok {
			return nil, fmt.Errorf("unknown style %q (have %s)", name, strings.Join(textlayout.ListStyles(), ", "))
		}
		r.Style = st
	}
	if rc.FontFile != "" {
		if err := fonts.LoadTTF(customFamily, rc.FontFile); err != nil {
			return nil, err
		}
		r.Style.Family = customFamily
	}
	if rc.FillColor != "" {
		c, ok := textlayout.ParseHexColor(rc.FillColor)
		if !ok {
			return nil, fmt.Errorf("bad fill colour %q", rc.FillColor)
		}
		r.Style.Fill = c
	}
	if rc.StrokeColor != "" {
		c, ok := textlayout.ParseHexColor(rc.StrokeColor)
		if !ok {
			return nil, fmt.Errorf("bad stroke colour %q", rc.StrokeColor)
		}
		r.Style.Stroke = c
	}
	return r, nil
}

// openStore opens the configured store. A corrupt SQLite file is moved aside
// first so a fresh one can be created.
func (a *cliApp) openStore(ctx context.Context) (storage.Store, error) {
	sc := a.cfg.Store
	driver := strings.ToLower(strings.TrimSpace(sc.Driver))
	if driver == "" || driver == "sqlite" {
		moved, err := storage.RecoverSQLite(ctx, sc.Path)
		if err != nil {
			a.log.Warn("sqlite recovery check failed", slog.String("path", sc.Path), slog.Any("err", err))
		} else if moved {
			a.log.Warn("corrupt database moved to backups", slog.String("path", sc.Path))
		}
	}
	st, err := storage.Open(ctx, storage.Config{Driver: sc.Driver, Path: sc.Path, DSN: sc.StoreDSN(a.password)})
	if err != nil {
		return nil, fmt.Errorf("open %s store: %w", driverName(sc.Driver), err)
	}
	return st, nil
}

func driverName(d string) string {
	if strings.TrimSpace(d) == "" {
		return "sqlite"
	}
	return strings.ToLower(strings.TrimSpace(d))
}
