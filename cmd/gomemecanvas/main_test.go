/*
 * Copyright (c) 2025 by Alexander Drost, Oldenburg, Germany.
 * This file is licensed to you under the Apache License, Version 2.0 (the "License"); you may not use this file except in compliance with the License.  You may obtain a copy of the License at
 *   http://www.apache.org/licenses/LICENSE-2.0
 * Unless required by applicable law or agreed to in writing, software distributed under the License is distributed on an
 * "AS IS" BASIS, WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.  See the License for the specific language governing permissions and limitations under the License.
 */
package main

import (
	"flag"
	"image"
	"image/png"
	"os"
	"path/filepath"
	"testing"

	"gomemecanvas/internal/config"
	"gomemecanvas/internal/geom"
	"gomemecanvas/internal/textlayout"
)

type noSecrets struct{}

func (noSecrets) Get(string, string) (string, error) { return "", config.ErrSecretNotFound }
func (noSecrets) Set(string, string, string) error   { return nil }
func (noSecrets) Delete(string, string) error        { return nil }

// isolate points config and store into a temp dir and keeps the OS keyring out.
func isolate(t *testing.T) string {
	t.Helper()
	dir := t.TempDir()
	t.Setenv(config.EnvConfigPath, filepath.Join(dir, "config.yaml"))
	t.Setenv(config.EnvStorePath, filepath.Join(dir, "memes.sqlite"))
	prev := config.SetSecretStore(noSecrets{})
	t.Cleanup(func() { config.SetSecretStore(prev) })
	return dir
}

func writeTestPNG(t *testing.T, path string, w, h int) {
	t.Helper()
	f, err := os.Create(path)
	if err != nil {
		t.Fatal(err)
	}
	defer f.Close()
	if err := png.Encode(f, image.NewRGBA(image.Rect(0, 0, w, h))); err != nil {
		t.Fatal(err)
	}
}

func TestParseStage(t *testing.T) {
	st, err := parseStage("600x400")
	if err != nil || st.W != 600 || st.H != 400 {
		t.Fatalf("parseStage: %+v %v", st, err)
	}
	for _, bad := range []string{"", "600", "0x400", "axb", "600x-1"} {
		if _, err := parseStage(bad); err == nil {
			t.Fatalf("expected error for %q", bad)
		}
	}
}

func TestParseArgsInterleaved(t *testing.T) {
	fs := flag.NewFlagSet("render", flag.ContinueOnError)
	stage := fs.String("stage", "", "")
	pos, err := parseArgs(fs, []string{"in.png", "--stage", "300x200", "boxes.json", "out.png"})
	if err != nil {
		t.Fatalf("parseArgs: %v", err)
	}
	if *stage != "300x200" || len(pos) != 3 || pos[2] != "out.png" {
		t.Fatalf("unexpected parse: stage=%q pos=%v", *stage, pos)
	}
}

func TestReadBoxesArrayAndRecord(t *testing.T) {
	dir := t.TempDir()
	arr := filepath.Join(dir, "boxes.json")
	if err := os.WriteFile(arr, []byte(`[{"id":"a","text":"hi","leftRatio":0.1,"topRatio":0.1,"widthRatio":0.5,"heightRatio":0.2}]`), 0o644); err != nil {
		t.Fatal(err)
	}
	boxes, stage, err := readBoxes(arr)
	if err != nil || len(boxes) != 1 || stage.Valid() {
		t.Fatalf("array form: boxes=%d stage=%+v err=%v", len(boxes), stage, err)
	}
	rec := filepath.Join(dir, "record.json")
	if err := os.WriteFile(rec, []byte(`{"stageWidth":600,"stageHeight":400,"textBoxes":[{"id":"a","text":"x"},{"id":"b","text":"y"}]}`), 0o644); err != nil {
		t.Fatal(err)
	}
	boxes, stage, err = readBoxes(rec)
	if err != nil || len(boxes) != 2 || stage != (geom.Size{W: 600, H: 400}) {
		t.Fatalf("record form: boxes=%d stage=%+v err=%v", len(boxes), stage, err)
	}
}

func TestBuildRasterizerFromConfig(t *testing.T) {
	r, err := buildRasterizer(config.RenderConfig{Style: "Shout", FillColor: "#ff0000"}, geom.Limits{MinW: 100, MinH: 50})
	if err != nil {
		t.Fatalf("buildRasterizer: %v", err)
	}
	if r.Style.Name != "Shout" || r.Style.Fill.R != 0xff || r.Style.Fill.G != 0 {
		t.Fatalf("unexpected style: %+v", r.Style)
	}
	if r.Limits.MinW != 100 || r.Limits.MinH != 50 {
		t.Fatalf("limits not applied: %+v", r.Limits)
	}
	if _, err := buildRasterizer(config.RenderConfig{Style: "Nope"}, geom.Limits{}); err == nil {
		t.Fatalf("expected error for unknown style")
	}
	if _, err := buildRasterizer(config.RenderConfig{FontFile: filepath.Join(t.TempDir(), "missing.ttf")}, geom.Limits{}); err == nil {
		t.Fatalf("expected error for missing font file")
	}
	if !textlayout.DefaultLibrary().Has(textlayout.DefaultFamily) {
		t.Fatalf("default library lost its fallback family")
	}
}

func TestRunRenderCommand(t *testing.T) {
	dir := isolate(t)
	img := filepath.Join(dir, "in.png")
	writeTestPNG(t, img, 320, 240)
	boxes := filepath.Join(dir, "boxes.json")
	if err := os.WriteFile(boxes, []byte(`[{"id":"a","text":"TOP","leftRatio":0.1,"topRatio":0.05,"widthRatio":0.8,"heightRatio":0.3,"fontSizeRatio":0.08}]`), 0o644); err != nil {
		t.Fatal(err)
	}
	out := filepath.Join(dir, "out.png")
	if code := run([]string{"render", img, boxes, out, "--stage", "320x240"}); code != 0 {
		t.Fatalf("render exited %d", code)
	}
	if fi, err := os.Stat(out); err != nil || fi.Size() == 0 {
		t.Fatalf("expected output png, err=%v", err)
	}
	if code := run([]string{"render", img}); code != 2 {
		t.Fatalf("expected usage exit 2, got %d", code)
	}
}

func TestRunImportListExport(t *testing.T) {
	dir := isolate(t)
	rec := filepath.Join(dir, "rec.json")
	if err := os.WriteFile(rec, []byte(`{"id":"m1","userId":"u","imageData":"data:image/png;base64,AAAA","textBoxes":[{"id":"a","text":"hello","leftRatio":0,"topRatio":0,"widthRatio":0.5,"heightRatio":0.5}],"upvotes":0,"createdAt":1}`), 0o644); err != nil {
		t.Fatal(err)
	}
	if code := run([]string{"import", rec}); code != 0 {
		t.Fatalf("import exited %d", code)
	}
	if code := run([]string{"list", "newest"}); code != 0 {
		t.Fatalf("list exited %d", code)
	}
	out := filepath.Join(dir, "out", "m1.json")
	if code := run([]string{"export", "m1", out}); code != 0 {
		t.Fatalf("export exited %d", code)
	}
	if _, err := os.Stat(out); err != nil {
		t.Fatalf("expected exported record: %v", err)
	}
	if code := run([]string{"export", "missing", out}); code != 1 {
		t.Fatalf("expected failure for a missing meme, got %d", code)
	}
}
