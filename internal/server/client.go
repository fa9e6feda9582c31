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
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"gomemecanvas/internal/domain"
	"gomemecanvas/internal/storage"
	"gomemecanvas/internal/templates"
)

// Client is a small HTTP client for the meme API, used by the CLI and tests.
type Client struct {
	BaseURL string
	Token   string // bearer token; wins over User
	User    string // sent as X-User-ID
	client  *http.Client
}

// NewClient creates a client. baseURL may include a trailing slash.
func NewClient(baseURL, token string) *Client {
	return &Client{
		BaseURL: strings.TrimRight(baseURL, "/"),
		Token:   token,
		client:  &http.Client{Timeout: 30 * time.Second},
	}
}

// APIError is a non-2xx response.
type APIError struct {
	Status  int
	Message string
}

func (e *APIError) Error() string {
	return fmt.Sprintf("server returned %d: %s", e.Status, e.Message)
}

// Compose is the payload of render, create and update calls.
type Compose struct {
	ImageData   string           `json:"imageData,omitempty"`
	TemplateID  string           `json:"templateId,omitempty"`
	TextBoxes   []domain.TextBox `json:"textBoxes,omitempty"`
	StageWidth  float64          `json:"stageWidth,omitempty"`
	StageHeight float64          `json:"stageHeight,omitempty"`
}

func (c *Client) do(ctx context.Context, method, path string, body any) (*http.Response, error) {
	u, err := url.Parse(c.BaseURL + path)
	if err != nil {
		return nil, err
	}
	var rd io.Reader
	if body != nil {
		b, err := json.Marshal(body)
		if err != nil {
			return nil, err
		}
		rd = bytes.NewReader(b)
	}
	req, err := http.NewRequestWithContext(ctx, method, u.String(), rd)
	if err != nil {
		return nil, err
	}
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	switch {
	case c.Token != "":
		req.Header.Set("Authorization", "Bearer "+c.Token)
	case c.User != "":
		req.Header.Set(UserHeader, c.User)
	}
	resp, err := c.client.Do(req)
	if err != nil {
		return nil, err
	}
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		defer resp.Body.Close()
		var e struct {
			Error string `json:"error"`
		}
		b, _ := io.ReadAll(io.LimitReader(resp.Body, 64<<10))
		if json.Unmarshal(b, &e) != nil || e.Error == "" {
			e.Error = strings.TrimSpace(string(b))
		}
		return nil, &APIError{Status: resp.StatusCode, Message: e.Error}
	}
	return resp, nil
}

func (c *Client) doJSON(ctx context.Context, method, path string, body, dest any) error {
	resp, err := c.do(ctx, method, path, body)
	if err != nil {
		return err
	}
	defer resp.Body.Close()
	if dest == nil {
		return nil
	}
	return json.NewDecoder(resp.Body).Decode(dest)
}

// ListMemes returns a feed page.
func (c *Client) ListMemes(ctx context.Context, opt storage.ListOptions) ([]domain.Meme, error) {
	q := url.Values{}
	if opt.Sort != "" {
		q.Set("sort", opt.Sort)
	}
	if opt.Limit > 0 {
		q.Set("limit", strconv.Itoa(opt.Limit))
	}
	if opt.Offset > 0 {
		q.Set("offset", strconv.Itoa(opt.Offset))
	}
	if opt.UserID != "" {
		q.Set("user", opt.UserID)
	}
	path := "/api/memes"
	if len(q) > 0 {
		path += "?" + q.Encode()
	}
	var list []domain.Meme
	if err := c.doJSON(ctx, http.MethodGet, path, nil, &list); err != nil {
		return nil, err
	}
	return list, nil
}

func (c *Client) GetMeme(ctx context.Context, id string) (*domain.Meme, error) {
	var m domain.Meme
	if err := c.doJSON(ctx, http.MethodGet, "/api/memes/"+url.PathEscape(id), nil, &m); err != nil {
		return nil, err
	}
	return &m, nil
}

// CreateMeme renders and stores a new composition owned by the caller.
func (c *Client) CreateMeme(ctx context.Context, in Compose) (*domain.Meme, error) {
	var m domain.Meme
	if err := c.doJSON(ctx, http.MethodPost, "/api/memes", in, &m); err != nil {
		return nil, err
	}
	return &m, nil
}

// UpdateMeme re-renders an owned composition. Empty fields keep the stored ones.
func (c *Client) UpdateMeme(ctx context.Context, id string, in Compose) (*domain.Meme, error) {
	var m domain.Meme
	if err := c.doJSON(ctx, http.MethodPut, "/api/memes/"+url.PathEscape(id), in, &m); err != nil {
		return nil, err
	}
	return &m, nil
}

func (c *Client) DeleteMeme(ctx context.Context, id string) error {
	return c.doJSON(ctx, http.MethodDelete, "/api/memes/"+url.PathEscape(id), nil, nil)
}

// ToggleUpvote flips the caller's upvote and returns the new state and count.
func (c *Client) ToggleUpvote(ctx context.Context, id string) (bool, int, error) {
	var out struct {
		Upvoted bool `json:"upvoted"`
		Upvotes int  `json:"upvotes"`
	}
	if err := c.doJSON(ctx, http.MethodPost, "/api/memes/"+url.PathEscape(id)+"/upvote", nil, &out); err != nil {
		return false, 0, err
	}
	return out.Upvoted, out.Upvotes, nil
}

// Search returns caption matches ordered by relevance.
func (c *Client) Search(ctx context.Context, text string, limit int) ([]storage.SearchResult, error) {
	q := url.Values{"q": {text}}
	if limit > 0 {
		q.Set("limit", strconv.Itoa(limit))
	}
	var hits []searchHit
	if err := c.doJSON(ctx, http.MethodGet, "/api/search?"+q.Encode(), nil, &hits); err != nil {
		return nil, err
	}
	out := make([]storage.SearchResult, 0, len(hits))
	for _, h := range hits {
		out = append(out, storage.SearchResult{MemeID: h.MemeID, Snippet: h.Snippet})
	}
	return out, nil
}

// Render returns the PNG for a composition without storing it.
func (c *Client) Render(ctx context.Context, in Compose) ([]byte, error) {
	resp, err := c.do(ctx, http.MethodPost, "/api/render", in)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()
	return io.ReadAll(resp.Body)
}

// IssueToken asks the server for a bearer token for subject.
func (c *Client) IssueToken(ctx context.Context, subject string, ttl time.Duration) (string, error) {
	var out struct {
		Token string `json:"token"`
	}
	body := map[string]any{"subject": subject, "ttl_seconds": int64(ttl / time.Second)}
	if err := c.doJSON(ctx, http.MethodPost, "/api/auth/token", body, &out); err != nil {
		return "", err
	}
	return out.Token, nil
}

// ListTemplates returns the server's template gallery.
func (c *Client) ListTemplates(ctx context.Context) ([]templates.Template, error) {
	var list []templates.Template
	if err := c.doJSON(ctx, http.MethodGet, "/api/templates", nil, &list); err != nil {
		return nil, err
	}
	return list, nil
}
