/*
 * Copyright (c) 2025 by Alexander Drost, Oldenburg, Germany.
 * This file is licensed to you under the Apache License, Version 2.0 (the "License"); you may not use this file except in compliance with the License.  You may obtain a copy of the License at
 *   http://www.apache.org/licenses/LICENSE-2.0
 * Unless required by applicable law or agreed to in writing, software distributed under the License is distributed on an
 * "AS IS" BASIS, WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.  See the License for the specific language governing permissions and limitations under the License.
 */
// Package templates is the gallery of base images a meme can start from. A
// template is an image file in the gallery directory; its ID is the file name
// without extension.
package templates

import (
	"errors"
	"fmt"
	"image"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"unicode"

	"gomemecanvas/internal/render"
)

// ErrNotFound is returned for an unknown template ID.
var ErrNotFound = errors.New("template not found")

// Template is one gallery entry.
type Template struct {
	ID   string `json:"id"`
	Name string `json:"name"`
	Path string `json:"-"`
}

var imageExts = map[string]bool{
	".png": true, ".jpg": true, ".jpeg": true, ".gif": true, ".webp": true, ".bmp": true,
}

// IsImageFile reports whether name has an extension the gallery accepts.
func IsImageFile(name string) bool {
	return imageExts[strings.ToLower(filepath.Ext(name))]
}

// Gallery lists the templates in Dir. A missing directory is an empty gallery.
type Gallery struct {
	Dir string
}

// List returns the templates sorted by name.
func (g Gallery) List() ([]Template, error) {
	entries, err := os.ReadDir(g.Dir)
	if errors.Is(err, os.ErrNotExist) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("read templates dir: %w", err)
	}
	var out []Template
	seen := map[string]bool{}
	for _, e := range entries {
		if e.IsDir() || !IsImageFile(e.Name()) {
			continue
		}
		id := templateID(e.Name())
		if id == "" || seen[id] {
			continue
		}
		seen[id] = true
		out = append(out, Template{ID: id, Name: displayName(id), Path: filepath.Join(g.Dir, e.Name())})
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Name < out[j].Name })
	return out, nil
}

// Get finds a template by ID.
func (g Gallery) Get(id string) (Template, error) {
	list, err := g.List()
	if err != nil {
		return Template{}, err
	}
	id = strings.ToLower(strings.TrimSpace(id))
	for _, t := range list {
		if t.ID == id {
			return t, nil
		}
	}
	return Template{}, fmt.Errorf("%w: %s", ErrNotFound, id)
}

// Load decodes the template's image.
func (g Gallery) Load(id string) (image.Image, error) {
	t, err := g.Get(id)
	if err != nil {
		return nil, err
	}
	return render.LoadImage(t.Path)
}

func templateID(file string) string {
	base := strings.TrimSuffix(file, filepath.Ext(file))
	return strings.ToLower(strings.TrimSpace(base))
}

// displayName turns "distracted-boyfriend" into "Distracted Boyfriend".
func displayName(id string) string {
	words := strings.FieldsFunc(id, func(r rune) bool { return r == '-' || r == '_' || r == ' ' || r == '.' })
	for i, w := range words {
		r := []rune(w)
		r[0] = unicode.ToUpper(r[0])
		words[i] = string(r)
	}
	return strings.Join(words, " ")
}
