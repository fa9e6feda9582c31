/*
 * Copyright (c) 2025 by Alexander Drost, Oldenburg, Germany.
 * This file is licensed to you under the Apache License, Version 2.0 (the "License"); you may not use this file except in compliance with the License.  You may obtain a copy of the License at
 *   http://www.apache.org/licenses/LICENSE-2.0
 * Unless required by applicable law or agreed to in writing, software distributed under the License is distributed on an
 * "AS IS" BASIS, WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.  See the License for the specific language governing permissions and limitations under the License.
 */
package templates

import (
	"archive/zip"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"path"
	"path/filepath"
	"strings"
	"time"

	applog "gomemecanvas/internal/log"
)

// ManifestName is the human-readable note at the root of a pack.
const ManifestName = "templates.manifest.txt"

// ExportPack zips the gallery's images into a single .zip file with a manifest
// at the root. An empty or missing gallery still produces a pack holding only
// the manifest.
func ExportPack(dir, destZipPath string) (int, error) {
	l := applog.WithOperation(applog.WithComponent("templates"), "export").With(slog.String("dir", dir))
	if strings.TrimSpace(dir) == "" {
		return 0, errors.New("templates dir is required")
	}
	if strings.TrimSpace(destZipPath) == "" {
		return 0, errors.New("destZipPath is required")
	}
	list, err := Gallery{Dir: dir}.List()
	if err != nil {
		return 0, err
	}
	if err := os.MkdirAll(filepath.Dir(destZipPath), 0o755); err != nil {
		return 0, fmt.Errorf("ensure zip dir: %w", err)
	}
	// On Windows, remove destination if present before create
	_ = os.Remove(destZipPath)

	zf, err := os.Create(destZipPath)
	if err != nil {
		return 0, fmt.Errorf("create zip: %w", err)
	}
	defer func() { _ = zf.Close() }()
	zw := zip.NewWriter(zf)

	var names []string
	for _, t := range list {
		names = append(names, t.Name)
	}
	manifest := fmt.Sprintf("GoMemeCanvas Template Pack\nCreated: %s\nTemplates: %d\n\n%s\n",
		time.Now().Format(time.RFC3339), len(list), strings.Join(names, "\n"))
	w, err := zw.Create(ManifestName)
	if err != nil {
		return 0, fmt.Errorf("add manifest: %w", err)
	}
	if _, err := w.Write([]byte(manifest)); err != nil {
		return 0, fmt.Errorf("write manifest: %w", err)
	}

	added := 0
	for _, t := range list {
		if err := addFile(zw, path.Join("templates", filepath.Base(t.Path)), t.Path); err != nil {
			l.Error("zip build failed", slog.Any("err", err))
			return added, fmt.Errorf("build zip: %w", err)
		}
		added++
	}
	if err := zw.Close(); err != nil {
		return added, fmt.Errorf("finish zip: %w", err)
	}
	l.Info("template pack exported", slog.Int("files", added), slog.String("zip", destZipPath))
	return added, nil
}

func addFile(zw *zip.Writer, name, src string) error {
	fw, err := zw.Create(name)
	if err != nil {
		return err
	}
	f, err := os.Open(src)
	if err != nil {
		return err
	}
	defer func() { _ = f.Close() }()
	_, err = io.Copy(fw, f)
	return err
}

// InstallPack extracts the images of a pack into dir. Folder structure inside
// the archive is flattened; non-image entries are ignored and existing files
// are not overwritten. It returns the number of templates installed.
func InstallPack(dir, packZipPath string) (int, error) {
	l := applog.WithOperation(applog.WithComponent("templates"), "install").With(slog.String("dir", dir))
	if strings.TrimSpace(dir) == "" {
		return 0, errors.New("templates dir is required")
	}
	if strings.TrimSpace(packZipPath) == "" {
		return 0, errors.New("packZipPath is required")
	}
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return 0, fmt.Errorf("ensure templates dir: %w", err)
	}
	r, err := zip.OpenReader(packZipPath)
	if err != nil {
		return 0, fmt.Errorf("open pack: %w", err)
	}
	defer func() { _ = r.Close() }()

	installed := 0
	for _, f := range r.File {
		if f.FileInfo().IsDir() {
			continue
		}
		// Base name only, so entries cannot escape dir.
		name := path.Base(strings.ReplaceAll(f.Name, "\\", "/"))
		if name == ManifestName || strings.HasPrefix(name, ".") || !IsImageFile(name) {
			continue
		}
		target := filepath.Join(dir, name)
		if _, err := os.Stat(target); err == nil {
			l.Warn("skip existing file", slog.String("path", target))
			continue
		}
		if err := extract(f, target); err != nil {
			return installed, err
		}
		installed++
	}
	l.Info("template pack installed", slog.Int("files", installed))
	return installed, nil
}

func extract(f *zip.File, target string) error {
	rc, err := f.Open()
	if err != nil {
		return err
	}
	defer func() { _ = rc.Close() }()
	out, err := os.OpenFile(target, os.O_CREATE|os.O_WRONLY|os.O_EXCL, 0o644)
	if err != nil {
		return err
	}
	if _, err := io.Copy(out, rc); err != nil {
		_ = out.Close()
		_ = os.Remove(target)
		return err
	}
	return out.Close()
}
