/*
 * Copyright (c) 2025 by Alexander Drost, Oldenburg, Germany.
 * This file is licensed to you under the Apache License, Version 2.0 (the "License"); you may not use this file except in compliance with the License.  You may obtain a copy of the License at
 *   http://www.apache.org/licenses/LICENSE-2.0
 * Unless required by applicable law or agreed to in writing, software distributed under the License is distributed on an
 * "AS IS" BASIS, WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.  See the License for the specific language governing permissions and limitations under the License.
 */
package telemetry

import "time"

// Event names emitted by the application.
const (
	EventMemeRendered = "meme_rendered"
	EventMemeSaved    = "meme_saved"
	EventMemeUpvoted  = "meme_upvoted"
)

// RenderStats describes one rasterization. It carries counts and sizes only.
type RenderStats struct {
	Source   string // cli, server or ui
	Boxes    int
	Visible  int
	Width    int
	Height   int
	Duration time.Duration
}

func (s RenderStats) props() map[string]any {
	return map[string]any{
		"source":  s.Source,
		"boxes":   s.Boxes,
		"visible": s.Visible,
		"width":   s.Width,
		"height":  s.Height,
		"ms":      s.Duration.Milliseconds(),
	}
}

// MemeRendered reports a finished rasterization.
func (c *Client) MemeRendered(s RenderStats) { c.Event(EventMemeRendered, s.props()) }

// MemeSaved reports a persisted composition. edit is true when an existing
// record was replaced.
func (c *Client) MemeSaved(driver string, boxes int, edit bool) {
	c.Event(EventMemeSaved, map[string]any{"driver": driver, "boxes": boxes, "edit": edit})
}

// MemeUpvoted reports an upvote toggle.
func (c *Client) MemeUpvoted(upvoted bool) {
	c.Event(EventMemeUpvoted, map[string]any{"upvoted": upvoted})
}

// MemeRendered using default client.
func MemeRendered(s RenderStats) { Default().MemeRendered(s) }

// MemeSaved using default client.
func MemeSaved(driver string, boxes int, edit bool) {
	Default().MemeSaved(driver, boxes, edit)
}

// MemeUpvoted using default client.
func MemeUpvoted(upvoted bool) { Default().MemeUpvoted(upvoted) }
