/*
 * Copyright (c) 2025 by Alexander Drost, Oldenburg, Germany.
 * This file is licensed to you under the Apache License, Version 2.0 (the "License"); you may not use this file except
 * in compliance with the License.  You may obtain a copy of the License at
 *   http://www.apache.org/licenses/LICENSE-2.0
 * Unless required by applicable law or agreed to in writing, software distributed under the License is distributed on an
 * "AS IS" BASIS, WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.  See the License for the
 *  specific language governing permissions and limitations under the License.
 */

// Package telemetry sends opt-in anonymous events about compositions (how many
// boxes, output size, store driver; never text or images) and crash reports.
//
// Everything is disabled unless the user opted in and an endpoint is set.
// Events and crash reports share one bounded outbox drained by a single
// goroutine, so callers never block on the network.
package telemetry

import (
	"bytes"
	"context"
	"encoding/json"
	"log/slog"
	"net/http"
	"os"
	"runtime"
	"strconv"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"github.com/google/uuid"

	applog "gomemecanvas/internal/log"
	"gomemecanvas/internal/version"
)

// Environment variables read by FromEnv.
const (
	EnvOptIn     = "GMC_TELEMETRY_OPT_IN"
	EnvEventsURL = "GMC_TELEMETRY_URL"
	EnvCrashURL  = "GMC_CRASH_UPLOAD_URL"
	EnvTimeoutMS = "GMC_TELEMETRY_TIMEOUT_MS"
	EnvDebug     = "GMC_TELEMETRY_DEBUG"
)

const (
	defaultTimeout = 1500 * time.Millisecond
	outboxSize     = 64
	flushWait      = 500 * time.Millisecond
)

// Config holds runtime configuration for telemetry and crash uploads.
type Config struct {
	OptIn        bool
	EventsURL    string
	CrashURL     string
	Timeout      time.Duration
	DebugLogging bool
}

// FromEnv reads the GMC_TELEMETRY_* variables. A missing or malformed
// timeout falls back to 1.5s.
func FromEnv() Config {
	cfg := Config{
		OptIn:        parseBool(os.Getenv(EnvOptIn)),
		EventsURL:    strings.TrimSpace(os.Getenv(EnvEventsURL)),
		CrashURL:     strings.TrimSpace(os.Getenv(EnvCrashURL)),
		Timeout:      defaultTimeout,
		DebugLogging: os.Getenv(EnvDebug) != "",
	}
	if ms, err := strconv.Atoi(strings.TrimSpace(os.Getenv(EnvTimeoutMS))); err == nil && ms > 0 {
		cfg.Timeout = time.Duration(ms) * time.Millisecond
	}
	return cfg
}

// WithOverrides returns cfg with opt-in and endpoint taken from the user
// config when the environment left them unset.
func (cfg Config) WithOverrides(optIn bool, eventsURL string) Config {
	if !cfg.OptIn {
		cfg.OptIn = optIn
	}
	if cfg.EventsURL == "" {
		cfg.EventsURL = strings.TrimSpace(eventsURL)
	}
	return cfg
}

func parseBool(v string) bool {
	switch strings.ToLower(strings.TrimSpace(v)) {
	case "1", "true", "yes", "on":
		return true
	}
	return false
}

// outbound is one queued POST.
type outbound struct {
	url         string
	contentType string
	body        []byte
	what        string
}

// Client queues events and crash reports and posts them in the background.
// Sends that fail or overflow the outbox are dropped.
type Client struct {
	cfg     Config
	log     *slog.Logger
	cli     *http.Client
	session string

	outbox  chan outbound
	pending atomic.Int64
	dropped atomic.Int64
	once    sync.Once
	closed  chan struct{}
}

var (
	defaultMu     sync.Mutex
	defaultClient *Client
)

// InitDefault installs a client built from the environment unless one is
// already installed.
func InitDefault() {
	defaultMu.Lock()
	defer defaultMu.Unlock()
	if defaultClient == nil {
		defaultClient = New(FromEnv())
	}
}

// NewDefault replaces the package-level client with one built from cfg.
func NewDefault(cfg Config) {
	c := New(cfg)
	defaultMu.Lock()
	prev := defaultClient
	defaultClient = c
	defaultMu.Unlock()
	prev.Close()
}

// Default returns the package-level client.
func Default() *Client {
	InitDefault()
	defaultMu.Lock()
	defer defaultMu.Unlock()
	return defaultClient
}

// New constructs a client and starts its sender.
func New(cfg Config) *Client {
	if cfg.Timeout <= 0 {
		cfg.Timeout = defaultTimeout
	}
	c := &Client{
		cfg:     cfg,
		log:     applog.WithComponent("telemetry"),
		cli:     &http.Client{Timeout: cfg.Timeout},
		session: uuid.NewString(),
		outbox:  make(chan outbound, outboxSize),
		closed:  make(chan struct{}),
	}
	go c.loop()
	return c
}

// Enabled reports whether anonymous telemetry is enabled and an endpoint is configured.
func (c *Client) Enabled() bool { return c != nil && c.cfg.OptIn && c.cfg.EventsURL != "" }

// Enabled reports whether the default client sends events.
func Enabled() bool { return Default().Enabled() }

// Dropped counts events discarded because the outbox was full.
func (c *Client) Dropped() int64 {
	if c == nil {
		return 0
	}
	return c.dropped.Load()
}

// Event queues a small JSON event. props must not carry user content.
func (c *Client) Event(name string, props map[string]any) {
	if !c.Enabled() || name == "" {
		return
	}
	payload := make(map[string]any, len(props)+6)
	for k, v := range props {
		payload[k] = v
	}
	payload["name"] = name
	payload["ts"] = time.Now().UTC().Format(time.RFC3339Nano)
	payload["version"] = version.String()
	payload["session"] = c.session
	payload["os"] = runtime.GOOS
	payload["arch"] = runtime.GOARCH
	buf, err := json.Marshal(payload)
	if err != nil {
		c.debug("telemetry event not encodable", slog.String("event", name), slog.Any("err", err))
		return
	}
	c.enqueue(outbound{url: c.cfg.EventsURL, contentType: "application/json", body: buf, what: name})
}

// Event queues an event on the default client.
func Event(name string, props map[string]any) { Default().Event(name, props) }

// UploadCrash queues an already serialized crash report for the crash URL.
func (c *Client) UploadCrash(report []byte) {
	if c == nil || !c.cfg.OptIn || c.cfg.CrashURL == "" {
		return
	}
	c.enqueue(outbound{
		url:         c.cfg.CrashURL,
		contentType: "text/plain; charset=utf-8",
		body:        append([]byte(nil), report...),
		what:        "crash",
	})
}

// UploadCrash queues a crash report on the default client.
func UploadCrash(report []byte) { Default().UploadCrash(report) }

func (c *Client) enqueue(o outbound) {
	select {
	case <-c.closed:
		return
	default:
	}
	c.pending.Add(1)
	select {
	case c.outbox <- o:
	default:
		c.pending.Add(-1)
		c.dropped.Add(1)
	}
}

// Flush waits until queued items were attempted, ctx ends, or half a second
// passes, whichever comes first.
func (c *Client) Flush(ctx context.Context) {
	if c == nil {
		return
	}
	deadline := time.NewTimer(flushWait)
	defer deadline.Stop()
	tick := time.NewTicker(10 * time.Millisecond)
	defer tick.Stop()
	for c.pending.Load() > 0 {
		select {
		case <-ctx.Done():
			return
		case <-deadline.C:
			return
		case <-tick.C:
		}
	}
}

// Close stops the sender. Items still queued are discarded.
func (c *Client) Close() {
	if c == nil {
		return
	}
	c.once.Do(func() { close(c.closed) })
}

func (c *Client) loop() {
	for {
		select {
		case <-c.closed:
			return
		case o := <-c.outbox:
			c.send(o)
			c.pending.Add(-1)
		}
	}
}

func (c *Client) send(o outbound) {
	ctx, cancel := context.WithTimeout(context.Background(), c.cfg.Timeout)
	defer cancel()
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, o.url, bytes.NewReader(o.body))
	if err != nil {
		c.debug("telemetry request invalid", slog.String("what", o.what), slog.Any("err", err))
		return
	}
	req.Header.Set("Content-Type", o.contentType)
	resp, err := c.cli.Do(req)
	if err != nil {
		c.debug("telemetry send failed", slog.String("what", o.what), slog.Any("err", err))
		return
	}
	_ = resp.Body.Close()
	c.debug("telemetry sent", slog.String("what", o.what), slog.Int("status", resp.StatusCode))
}

func (c *Client) debug(msg string, attrs ...any) {
	if c.cfg.DebugLogging {
		c.log.Debug(msg, attrs...)
	}
}
