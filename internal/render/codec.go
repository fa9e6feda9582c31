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
	"encoding/base64"
	"errors"
	"fmt"
	"image"
	_ "image/gif"  // register decoder
	_ "image/jpeg" // register decoder
	"image/png"
	"io"
	"os"
	"strings"

	_ "golang.org/x/image/bmp"  // register decoder
	xdraw "golang.org/x/image/draw"
	_ "golang.org/x/image/webp" // register decoder
)

// ErrBadDataURL reports a malformed data URL or base64 payload.
var ErrBadDataURL = errors.New("malformed image data URL")

const dataURLPrefix = "data:image/png;base64,"

// EncodePNG writes img as PNG.
func EncodePNG(w io.Writer, img image.Image) error {
	if img == nil {
		return ErrNoImage
	}
	if err := png.Encode(w, img); err != nil {
		return fmt.Errorf("encode png: %w", err)
	}
	return nil
}

// PNGBytes encodes img as PNG into memory.
func PNGBytes(img image.Image) ([]byte, error) {
	var buf bytes.Buffer
	if err := EncodePNG(&buf, img); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

// DataURL encodes img as a data:image/png;base64 URL, the shape stored in
// composition records.
func DataURL(img image.Image) (string, error) {
	b, err := PNGBytes(img)
	if err != nil {
		return "", err
	}
	return dataURLPrefix + base64.StdEncoding.EncodeToString(b), nil
}

// DecodeImage decodes PNG, JPEG, GIF, BMP or WebP. The format name is returned
// for logging.
func DecodeImage(r io.Reader) (image.Image, string, error) {
	img, format, err := image.Decode(r)
	if err != nil {
		return nil, "", fmt.Errorf("decode image: %w", err)
	}
	return img, format, nil
}

// LoadImage decodes the image file at path.
func LoadImage(path string) (image.Image, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("open image: %w", err)
	}
	defer func() { _ = f.Close() }()
	img, _, err := DecodeImage(f)
	return img, err
}

// DataURLBytes extracts the payload of a base64 data URL. A bare base64 string
// without the data: header is accepted too.
func DataURLBytes(s string) ([]byte, error) {
	s = strings.TrimSpace(s)
	if s == "" {
		return nil, ErrBadDataURL
	}
	if strings.HasPrefix(s, "data:") {
		comma := strings.IndexByte(s, ',')
		if comma < 0 || !strings.HasSuffix(s[:comma], ";base64") {
			return nil, ErrBadDataURL
		}
		s = s[comma+1:]
	}
	b, err := base64.StdEncoding.DecodeString(s)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrBadDataURL, err)
	}
	return b, nil
}

// DecodeDataURL decodes an image carried in a base64 data URL.
func DecodeDataURL(s string) (image.Image, error) {
	b, err := DataURLBytes(s)
	if err != nil {
		return nil, err
	}
	img, _, err := DecodeImage(bytes.NewReader(b))
	return img, err
}

// Thumbnail scales img down so its longer side is at most maxSide. Images that
// already fit are copied unscaled.
func Thumbnail(img image.Image, maxSide int) *image.RGBA {
	if img == nil {
		return nil
	}
	b := img.Bounds()
	w, h := b.Dx(), b.Dy()
	if maxSide > 0 && (w > maxSide || h > maxSide) {
		if w >= h {
			h = max(1, h*maxSide/w)
			w = maxSide
		} else {
			w = max(1, w*maxSide/h)
			h = maxSide
		}
	}
	dst := image.NewRGBA(image.Rect(0, 0, w, h))
	xdraw.ApproxBiLinear.Scale(dst, dst.Bounds(), img, b, xdraw.Src, nil)
	return dst
}
