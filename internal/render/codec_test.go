/*
 * Copyright (c) 2025 by Alexander Drost, Oldenburg, Germany.
 * This file is licensed to you under the Apache License, Version 2.0 (the "License"); you may not use this file except in compliance with the License.  You may obtain a copy of the License at
 *   http://www.apache.org/licenses/LICENSE-2.0
 * Unless required by applicable law or agreed to in writing, software distributed under the License is distributed on an
 * "AS IS" BASIS, WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.  See the License for the specific language governing permissions and limitations under the License.
 */

package render

import (
	"bytes"
	"errors"
	"image"
	"image/color"
	"image/jpeg"
	"os"
	"path/filepath"
	"strings"
	"testing"
)

func TestDataURLRoundTrip(t *testing.T) {
	img := solid(7, 5, color.RGBA{G: 200, A: 255})
	u, err := DataURL(img)
	if err != nil {
		t.Fatalf("data url: %v", err)
	}
	if !strings.HasPrefix(u, "data:image/png;base64,") {
		t.Fatalf("unexpected prefix: %.30s", u)
	}
	back, err := DecodeDataURL(u)
	if err != nil {
		t.Fatalf("decode: %v", err)
	}
	if back.Bounds().Dx() != 7 || back.Bounds().Dy() != 5 {
		t.Fatalf("unexpected bounds: %v", back.Bounds())
	}
	// Bare base64 is accepted too.
	if _, err := DecodeDataURL(strings.TrimPrefix(u, "data:image/png;base64,")); err != nil {
		t.Fatalf("bare base64: %v", err)
	}
}

func TestDecodeDataURLErrors(t *testing.T) {
	for _, in := range []string{"", "data:image/png,abc", "data:image/png;base64,@@@"} {
		if _, err := DecodeDataURL(in); !errors.Is(err, ErrBadDataURL) {
			t.Fatalf("%q: expected ErrBadDataURL, got %v", in, err)
		}
	}
}

func TestEncodeNilImage(t *testing.T) {
	if _, err := PNGBytes(nil); !errors.Is(err, ErrNoImage) {
		t.Fatalf("expected ErrNoImage, got %v", err)
	}
}

func TestLoadImageJPEG(t *testing.T) {
	p := filepath.Join(t.TempDir(), "in.jpg")
	var buf bytes.Buffer
	if err := jpeg.Encode(&buf, solid(16, 9, color.White), nil); err != nil {
		t.Fatalf("jpeg: %v", err)
	}
	if err := os.WriteFile(p, buf.Bytes(), 0o644); err != nil {
		t.Fatalf("write: %v", err)
	}
	img, err := LoadImage(p)
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if img.Bounds() != image.Rect(0, 0, 16, 9) {
		t.Fatalf("unexpected bounds %v", img.Bounds())
	}
	if _, err := LoadImage(filepath.Join(t.TempDir(), "missing.png")); err == nil {
		t.Fatalf("expected error for missing file")
	}
}

func TestThumbnail(t *testing.T) {
	th := Thumbnail(solid(800, 400, color.White), 200)
	if th.Bounds().Dx() != 200 || th.Bounds().Dy() != 100 {
		t.Fatalf("unexpected thumbnail size %v", th.Bounds())
	}
	th = Thumbnail(solid(50, 40, color.White), 200)
	if th.Bounds().Dx() != 50 || th.Bounds().Dy() != 40 {
		t.Fatalf("small images keep their size, got %v", th.Bounds())
	}
	if Thumbnail(nil, 10) != nil {
		t.Fatalf("nil image gives nil thumbnail")
	}
}
