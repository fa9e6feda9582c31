/*
 * Copyright (c) 2025 by Alexander Drost, Oldenburg, Germany.
 * This file is licensed to you under the Apache License, Version 2.0 (the "License"); you may not use this file except in compliance with the License.  You may obtain a copy of the License at
 *   http://www.apache.org/licenses/LICENSE-2.0
 * Unless required by applicable law or agreed to in writing, software distributed under the License is distributed on an
 * "AS IS" BASIS, WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.  See the License for the specific language governing permissions and limitations under the License.
 */
package telemetry

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"sync"
	"sync/atomic"
	"testing"
	"time"
)

// collector records request bodies per path.
type collector struct {
	mu   sync.Mutex
	hits map[string][][]byte
}

func newCollector() (*collector, *httptest.Server) {
	c := &collector{hits: map[string][][]byte{}}
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		b, _ := io.ReadAll(r.Body)
		_ = r.Body.Close()
		c.mu.Lock()
		c.hits[r.URL.Path] = append(c.hits[r.URL.Path], append([]byte(nil), b...))
		c.mu.Unlock()
		w.WriteHeader(http.StatusOK)
	}))
	return c, srv
}

func (c *collector) get(path string) [][]byte {
	c.mu.Lock()
	defer c.mu.Unlock()
	return append([][]byte(nil), c.hits[path]...)
}

// waitFor polls until n bodies arrived on path or the deadline passes.
func (c *collector) waitFor(path string, n int) [][]byte {
	deadline := time.Now().Add(2 * time.Second)
	for time.Now().Before(deadline) {
		if got := c.get(path); len(got) >= n {
			return got
		}
		time.Sleep(10 * time.Millisecond)
	}
	return c.get(path)
}

func TestClient_EventAndUploadCrash(t *testing.T) {
	col, srv := newCollector()
	defer srv.Close()

	c := New(Config{OptIn: true, EventsURL: srv.URL + "/events", CrashURL: srv.URL + "/crash", Timeout: 2 * time.Second})
	defer c.Close()
	if !c.Enabled() {
		t.Fatalf("expected client to be enabled")
	}

	c.Event("started", map[string]any{"k": "v"})
	c.Flush(context.Background())
	events := col.waitFor("/events", 1)
	if len(events) == 0 {
		t.Fatalf("expected at least one event to be sent")
	}
	var m map[string]any
	if err := json.Unmarshal(events[0], &m); err != nil {
		t.Fatalf("bad event json: %v", err)
	}
	if m["name"] != "started" || m["k"] != "v" {
		t.Fatalf("event mismatch: %v", m)
	}
	if _, ok := m["ts"].(string); !ok {
		t.Fatalf("missing ts field")
	}

	c.UploadCrash([]byte("STACKTRACE"))
	if crashes := col.waitFor("/crash", 1); len(crashes) == 0 || string(crashes[0]) != "STACKTRACE" {
		t.Fatalf("expected crash upload to be sent, got %q", crashes)
	}
}

func TestMemeEventsCarryCountsOnly(t *testing.T) {
	col, srv := newCollector()
	defer srv.Close()
	c := New(Config{OptIn: true, EventsURL: srv.URL + "/events", Timeout: 2 * time.Second})
	defer c.Close()

	c.MemeRendered(RenderStats{Source: "cli", Boxes: 3, Visible: 2, Width: 600, Height: 400, Duration: 12 * time.Millisecond})
	c.MemeSaved("sqlite", 2, true)
	events := col.waitFor("/events", 2)
	if len(events) < 2 {
		t.Fatalf("expected two events, got %d", len(events))
	}
	byName := map[string]map[string]any{}
	for _, b := range events {
		var m map[string]any
		if err := json.Unmarshal(b, &m); err != nil {
			t.Fatalf("bad event json: %v", err)
		}
		byName[m["name"].(string)] = m
	}
	r := byName[EventMemeRendered]
	if r == nil || r["visible"] != float64(2) || r["width"] != float64(600) || r["ms"] != float64(12) {
		t.Fatalf("render event = %v", r)
	}
	s := byName[EventMemeSaved]
	if s == nil || s["driver"] != "sqlite" || s["edit"] != true {
		t.Fatalf("save event = %v", s)
	}
}

func TestNilClientIsSafe(t *testing.T) {
	var c *Client
	if c.Enabled() {
		t.Fatalf("nil client must be disabled")
	}
	c.Event("x", nil)
	c.MemeSaved("sqlite", 1, false)
	c.UploadCrash([]byte("x"))
}

func TestEnabled_DefaultClientAndFromEnv(t *testing.T) {
	t.Setenv("GMC_TELEMETRY_OPT_IN", "true")
	t.Setenv("GMC_TELEMETRY_URL", "http://127.0.0.1:0") // bogus URL but presence enables
	t.Setenv("GMC_CRASH_UPLOAD_URL", "")
	t.Setenv("GMC_TELEMETRY_TIMEOUT_MS", "100")

	cfg := FromEnv()
	if !cfg.OptIn || cfg.EventsURL == "" || cfg.Timeout != 100*time.Millisecond {
		t.Fatalf("FromEnv did not parse correctly: %+v", cfg)
	}
	NewDefault(cfg)
	if !Enabled() {
		t.Fatalf("default Enabled should be true with env config")
	}
}

func TestWithOverrides(t *testing.T) {
	cfg := Config{}.WithOverrides(true, " http://x/events ")
	if !cfg.OptIn || cfg.EventsURL != "http://x/events" {
		t.Fatalf("overrides not applied: %+v", cfg)
	}
	env := Config{OptIn: true, EventsURL: "http://env"}.WithOverrides(false, "http://file")
	if !env.OptIn || env.EventsURL != "http://env" {
		t.Fatalf("environment must win: %+v", env)
	}
}

func TestClient_DisabledAndEmptyEventName(t *testing.T) {
	var hits int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		atomic.AddInt32(&hits, 1)
		w.WriteHeader(http.StatusOK)
	}))
	defer srv.Close()

	c := New(Config{OptIn: false, EventsURL: srv.URL + "/events", CrashURL: srv.URL + "/crash", Timeout: time.Second})
	defer c.Close()
	if c.Enabled() {
		t.Fatalf("expected disabled client")
	}
	c.Event("ignored", nil)
	c.UploadCrash([]byte("ignored"))

	c2 := New(Config{OptIn: true, EventsURL: srv.URL + "/events", Timeout: time.Second})
	defer c2.Close()
	c2.Event("", nil)
	c2.Flush(context.Background())
	time.Sleep(50 * time.Millisecond)
	if atomic.LoadInt32(&hits) != 0 {
		t.Fatalf("expected no requests when disabled or unnamed")
	}
}

// An unroutable address exercises the send error paths.
func TestTelemetry_SendErrorBranches(t *testing.T) {
	c := New(Config{
		OptIn:        true,
		EventsURL:    "http://127.0.0.1:1/events",
		CrashURL:     "http://127.0.0.1:1/crash",
		Timeout:      50 * time.Millisecond,
		DebugLogging: true,
	})
	defer c.Close()
	c.Event("err", map[string]any{"a": 1})
	c.Flush(context.Background())
	c.UploadCrash([]byte("oops"))
	time.Sleep(50 * time.Millisecond)
}

func TestEventsShareSessionID(t *testing.T) {
	col, srv := newCollector()
	defer srv.Close()
	c := New(Config{OptIn: true, EventsURL: srv.URL + "/events", Timeout: time.Second})
	defer c.Close()

	c.Event("a", nil)
	c.Event("b", map[string]any{"name": "spoofed"})
	events := col.waitFor("/events", 2)
	if len(events) < 2 {
		t.Fatalf("expected two events, got %d", len(events))
	}
	var first, second map[string]any
	_ = json.Unmarshal(events[0], &first)
	_ = json.Unmarshal(events[1], &second)
	if first["session"] == "" || first["session"] != second["session"] {
		t.Fatalf("session ids differ: %v vs %v", first["session"], second["session"])
	}
	if second["name"] != "b" {
		t.Fatalf("props must not override the event name, got %v", second["name"])
	}
}

func TestFullOutboxDrops(t *testing.T) {
	block := make(chan struct{})
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		<-block
		w.WriteHeader(http.StatusOK)
	}))
	defer srv.Close()
	defer close(block)

	c := New(Config{OptIn: true, EventsURL: srv.URL + "/events", Timeout: 5 * time.Second})
	defer c.Close()
	for i := 0; i < outboxSize+10; i++ {
		c.Event("burst", nil)
	}
	if c.Dropped() == 0 {
		t.Fatalf("expected drops once the outbox is full")
	}
}

func TestNewDefaultReplacesClient(t *testing.T) {
	NewDefault(Config{})
	first := Default()
	if first.Enabled() {
		t.Fatalf("empty config must be disabled")
	}
	NewDefault(Config{OptIn: true, EventsURL: "http://127.0.0.1:1/events"})
	if Default() == first || !Enabled() {
		t.Fatalf("NewDefault must install a new enabled client")
	}
	InitDefault()
	if !Enabled() {
		t.Fatalf("InitDefault must keep the installed client")
	}
	NewDefault(Config{})
}
