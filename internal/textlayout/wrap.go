/*
 * Copyright (c) 2025 by Alexander Drost, Oldenburg, Germany.
 * This file is licensed to you under the Apache License, Version 2.0 (the "License"); you may not use this file except in compliance with the License.  You may obtain a copy of the License at
 *   http://www.apache.org/licenses/LICENSE-2.0
 * Unless required by applicable law or agreed to in writing, software distributed under the License is distributed on an
 * "AS IS" BASIS, WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.  See the License for the specific language governing permissions and limitations under the License.
 */

package textlayout

import (
	"iter"
	"strings"

	"gomemecanvas/internal/domain"
)

// SplitLines breaks text into display lines no wider than maxWidth as measured
// by m. Explicit newlines start a new paragraph and a blank paragraph yields one
// empty line. Words are never broken: a word wider than maxWidth sits alone on
// its line. A non-positive maxWidth leaves every paragraph unwrapped. Empty text
// yields nil.
func SplitLines(text string, maxWidth float64, m Measurer) []string {
	text = domain.NormalizeText(text)
	if text == "" {
		return nil
	}
	var lines []string
	for _, para := range strings.Split(text, "\n") {
		if strings.TrimSpace(para) == "" {
			lines = append(lines, "")
			continue
		}
		lines = append(lines, wrapParagraph(para, maxWidth, m)...)
	}
	return lines
}

// Lines is the lazy form of SplitLines. The sequence is recomputed on every
// iteration, so it can be ranged over any number of times.
func Lines(text string, maxWidth float64, m Measurer) iter.Seq[string] {
	return func(yield func(string) bool) {
		for _, l := range SplitLines(text, maxWidth, m) {
			if !yield(l) {
				return
			}
		}
	}
}

func wrapParagraph(para string, maxWidth float64, m Measurer) []string {
	if maxWidth <= 0 || m == nil {
		return []string{para}
	}
	words := strings.Split(para, " ")
	var out []string
	cur := words[0]
	for _, w := range words[1:] {
		candidate := strings.TrimSpace(cur + " " + w)
		if m.MeasureString(candidate) > maxWidth && cur != "" {
			out = append(out, cur)
			cur = w
			continue
		}
		cur = candidate
	}
	if cur != "" {
		out = append(out, cur)
	}
	if len(out) == 0 {
		return []string{""}
	}
	return out
}
