/*
 * Copyright (c) 2025 by Alexander Drost, Oldenburg, Germany.
 * This file is licensed to you under the Apache License, Version 2.0 (the "License"); you may not use this file except in compliance with the License.  You may obtain a copy of the License at
 *   http://www.apache.org/licenses/LICENSE-2.0
 * Unless required by applicable law or agreed to in writing, software distributed under the License is distributed on an
 * "AS IS" BASIS, WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.  See the License for the specific language governing permissions and limitations under the License.
 */
package config

import (
	"errors"
	"net/url"
	"os"
	"path/filepath"
	"runtime"
	"strconv"
	"strings"

	"gopkg.in/yaml.v3"
)

// AppConfig is the user-editable configuration persisted to a YAML file in the user scope.
// Environment variables are treated as read-only overrides at runtime.
//
// config_version: bump when the structure changes in a backward-incompatible way.
// Unknown fields are ignored on unmarshal.

type GeneralConfig struct {
	TelemetryOptIn    bool   `yaml:"telemetry_opt_in"`
	TelemetryEndpoint string `yaml:"telemetry_endpoint"`
}

// EditorConfig bounds interactive editing. Zero values fall back to the
// built-in minimums.
type EditorConfig struct {
	MinBoxWidth  float64 `yaml:"min_box_width"`
	MinBoxHeight float64 `yaml:"min_box_height"`
	DisplayMax   float64 `yaml:"display_max"`
	TemplatesDir string  `yaml:"templates_dir"` // template gallery images
}

type RenderConfig struct {
	FontFile    string `yaml:"font_file"` // optional TTF/OTF registered as the default family
	Style       string `yaml:"style"`     // Classic | Caption | Shout
	FillColor   string `yaml:"fill_color"`
	StrokeColor string `yaml:"stroke_color"`
}

type StoreConfig struct {
	Driver string `yaml:"driver"` // sqlite | postgres
	Path   string `yaml:"path"`
	DSN    string `yaml:"dsn"` // without password; see StorePassword
	// Password is not stored on disk; it lives in the OS keychain.
}

type ServerConfig struct {
	Addr           string `yaml:"addr"`
	MaxUploadBytes int64  `yaml:"max_upload_bytes"`
}

type LoggingConfig struct {
	Level  string `yaml:"level"`
	Format string `yaml:"format"`
	Source bool   `yaml:"source"`
	File   string `yaml:"file"`
}

type AppConfig struct {
	ConfigVersion int           `yaml:"config_version"`
	General       GeneralConfig `yaml:"general"`
	Editor        EditorConfig  `yaml:"editor"`
	Render        RenderConfig  `yaml:"render"`
	Store         StoreConfig   `yaml:"store"`
	Server        ServerConfig  `yaml:"server"`
	Logging       LoggingConfig `yaml:"logging"`
}

// Defaults returns the application defaults.
func Defaults() AppConfig {
	return AppConfig{
		ConfigVersion: 1,
		General:       GeneralConfig{TelemetryOptIn: false},
		Editor:        EditorConfig{MinBoxWidth: 140, MinBoxHeight: 60, DisplayMax: 600, TemplatesDir: defaultTemplatesDir()},
		Render:        RenderConfig{Style: "Classic"},
		Store:         StoreConfig{Driver: "sqlite", Path: defaultStorePath()},
		Server:        ServerConfig{Addr: ":8080", MaxUploadBytes: 20 << 20},
		Logging:       LoggingConfig{Level: "info", Format: "console", Source: false, File: ""},
	}
}

// Env var names used as overrides.
const (
	EnvConfigPath       = "GMC_CONFIG"
	EnvTelemetryOptIn   = "GMC_TELEMETRY_OPT_IN"
	EnvTelemetryURL     = "GMC_TELEMETRY_URL"
	EnvFontFile         = "GMC_FONT_FILE"
	EnvStyle            = "GMC_STYLE"
	EnvStoreDriver      = "GMC_STORE_DRIVER"
	EnvStorePath        = "GMC_STORE_PATH"
	EnvStoreDSN         = "GMC_PG_DSN"
	EnvServerAddr       = "GMC_ADDR"
	EnvServerMaxUpload  = "GMC_MAX_UPLOAD_BYTES"
	EnvEditorDisplayMax = "GMC_DISPLAY_MAX"
	EnvTemplatesDir     = "GMC_TEMPLATES_DIR"
	// EnvLogLevel Logging envs
	EnvLogLevel  = "GMC_LOG_LEVEL"
	EnvLogFormat = "GMC_LOG_FORMAT"
	EnvLogSource = "GMC_LOG_SOURCE"
	EnvLogFile   = "GMC_LOG_FILE"
)

func appDir() string {
	switch runtime.GOOS {
	case "windows":
		base := os.Getenv("AppData")
		if base == "" {
			base = filepath.Join(os.Getenv("USERPROFILE"), "AppData", "Roaming")
		}
		return filepath.Join(base, "GoMemeCanvas")
	case "darwin":
		return filepath.Join(os.Getenv("HOME"), "Library", "Application Support", "GoMemeCanvas")
	default: // linux and others
		if x := os.Getenv("XDG_CONFIG_HOME"); x != "" {
			return filepath.Join(x, "gomemecanvas")
		}
		return filepath.Join(os.Getenv("HOME"), ".config", "gomemecanvas")
	}
}

func defaultStorePath() string { return filepath.Join(appDir(), "memes.sqlite") }
func defaultTemplatesDir() string { return filepath.Join(appDir(), "templates") }

// ConfigPath returns the per-user config file path. GMC_CONFIG overrides it.
func ConfigPath() (string, error) {
	if p := strings.TrimSpace(os.Getenv(EnvConfigPath)); p != "" {
		return p, nil
	}
	base := appDir()
	if base == "" || base == "gomemecanvas" {
		return "", errors.New("cannot resolve config directory")
	}
	return filepath.Join(base, "config.yaml"), nil
}

// Load reads the user config file (if present), applies defaults, and merges environment overrides.
// The store password comes from the keyring and is returned separately.
func Load() (AppConfig, string, error) {
	cfg := Defaults()
	path, err := ConfigPath()
	if err != nil {
		return cfg, "", err
	}
	if data, err := os.ReadFile(path); err == nil {
		var fileCfg AppConfig
		if err := yaml.Unmarshal(data, &fileCfg); err == nil {
			mergeInto(&cfg, &fileCfg)
		}
	}
	applyEnvOverrides(&cfg)
	pw, _ := secretStore.Get(keyringService, keyringStorePassword)
	return cfg, pw, nil
}

// Save writes the user config YAML and persists the store password into the OS keyring (if non-empty).
func Save(cfg AppConfig, password string) error {
	path, err := ConfigPath()
	if err != nil {
		return err
	}
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return err
	}
	data, err := yaml.Marshal(cfg)
	if err != nil {
		return err
	}
	if err := os.WriteFile(path, data, 0o600); err != nil {
		return err
	}
	if password != "" {
		if err := secretStore.Set(keyringService, keyringStorePassword, password); err != nil {
			return err
		}
	}
	return nil
}

func mergeInto(dst *AppConfig, src *AppConfig) {
	if src.ConfigVersion != 0 {
		dst.ConfigVersion = src.ConfigVersion
	}
	// booleans: copy directly from src (file) so user preferences persist
	dst.General.TelemetryOptIn = src.General.TelemetryOptIn
	if s := strings.TrimSpace(src.General.TelemetryEndpoint); s != "" {
		dst.General.TelemetryEndpoint = s
	}
	if src.Editor.MinBoxWidth > 0 {
		dst.Editor.MinBoxWidth = src.Editor.MinBoxWidth
	}
	if src.Editor.MinBoxHeight > 0 {
		dst.Editor.MinBoxHeight = src.Editor.MinBoxHeight
	}
	if src.Editor.DisplayMax > 0 {
		dst.Editor.DisplayMax = src.Editor.DisplayMax
	}
	if s := strings.TrimSpace(src.Editor.TemplatesDir); s != "" {
		dst.Editor.TemplatesDir = s
	}
	if s := strings.TrimSpace(src.Render.FontFile); s != "" {
		dst.Render.FontFile = s
	}
	if s := strings.TrimSpace(src.Render.Style); s != "" {
		dst.Render.Style = s
	}
	if s := strings.TrimSpace(src.Render.FillColor); s != "" {
		dst.Render.FillColor = s
	}
	if s := strings.TrimSpace(src.Render.StrokeColor); s != "" {
		dst.Render.StrokeColor = s
	}
	if s := strings.TrimSpace(src.Store.Driver); s != "" {
		dst.Store.Driver = strings.ToLower(s)
	}
	if s := strings.TrimSpace(src.Store.Path); s != "" {
		dst.Store.Path = s
	}
	if s := strings.TrimSpace(src.Store.DSN); s != "" {
		dst.Store.DSN = s
	}
	if s := strings.TrimSpace(src.Server.Addr); s != "" {
		dst.Server.Addr = s
	}
	if src.Server.MaxUploadBytes > 0 {
		dst.Server.MaxUploadBytes = src.Server.MaxUploadBytes
	}
	// logging
	if strings.TrimSpace(src.Logging.Level) != "" {
		dst.Logging.Level = strings.ToLower(strings.TrimSpace(src.Logging.Level))
	}
	if strings.TrimSpace(src.Logging.Format) != "" {
		dst.Logging.Format = strings.ToLower(strings.TrimSpace(src.Logging.Format))
	}
	dst.Logging.Source = src.Logging.Source
	if strings.TrimSpace(src.Logging.File) != "" {
		dst.Logging.File = strings.TrimSpace(src.Logging.File)
	}
}

func envBool(v string) bool {
	lv := strings.ToLower(v)
	return lv == "1" || lv == "true" || lv == "on" || lv == "yes"
}

func applyEnvOverrides(cfg *AppConfig) {
	if v := strings.TrimSpace(os.Getenv(EnvTelemetryOptIn)); v != "" {
		cfg.General.TelemetryOptIn = envBool(v)
	}
	if v := strings.TrimSpace(os.Getenv(EnvTelemetryURL)); v != "" {
		cfg.General.TelemetryEndpoint = v
	}
	if v := strings.TrimSpace(os.Getenv(EnvEditorDisplayMax)); v != "" {
		if n, err := strconv.ParseFloat(v, 64); err == nil && n > 0 {
			cfg.Editor.DisplayMax = n
		}
	}
	if v := strings.TrimSpace(os.Getenv(EnvTemplatesDir)); v != "" {
		cfg.Editor.TemplatesDir = v
	}
	if v := strings.TrimSpace(os.Getenv(EnvFontFile)); v != "" {
		cfg.Render.FontFile = v
	}
	if v := strings.TrimSpace(os.Getenv(EnvStyle)); v != "" {
		cfg.Render.Style = v
	}
	if v := strings.TrimSpace(os.Getenv(EnvStoreDriver)); v != "" {
		cfg.Store.Driver = strings.ToLower(v)
	}
	if v := strings.TrimSpace(os.Getenv(EnvStorePath)); v != "" {
		cfg.Store.Path = v
	}
	if v := strings.TrimSpace(os.Getenv(EnvStoreDSN)); v != "" {
		cfg.Store.DSN = v
	}
	if v := strings.TrimSpace(os.Getenv(EnvServerAddr)); v != "" {
		cfg.Server.Addr = v
	}
	if v := strings.TrimSpace(os.Getenv(EnvServerMaxUpload)); v != "" {
		if n, err := strconv.ParseInt(v, 10, 64); err == nil && n > 0 {
			cfg.Server.MaxUploadBytes = n
		}
	}
	// logging overrides
	if v := strings.TrimSpace(os.Getenv(EnvLogLevel)); v != "" {
		cfg.Logging.Level = strings.ToLower(v)
	}
	if v := strings.TrimSpace(os.Getenv(EnvLogFormat)); v != "" {
		cfg.Logging.Format = strings.ToLower(v)
	}
	if v := strings.TrimSpace(os.Getenv(EnvLogSource)); v != "" {
		cfg.Logging.Source = envBool(v)
	}
	if v := strings.TrimSpace(os.Getenv(EnvLogFile)); v != "" {
		cfg.Logging.File = v
	}
}

var envKeys = map[string]string{
	"general.telemetry_opt_in":   EnvTelemetryOptIn,
	"general.telemetry_endpoint": EnvTelemetryURL,
	"editor.display_max":         EnvEditorDisplayMax,
	"editor.templates_dir":       EnvTemplatesDir,
	"render.font_file":           EnvFontFile,
	"render.style":               EnvStyle,
	"store.driver":               EnvStoreDriver,
	"store.path":                 EnvStorePath,
	"store.dsn":                  EnvStoreDSN,
	"server.addr":                EnvServerAddr,
	"server.max_upload_bytes":    EnvServerMaxUpload,
	"logging.level":              EnvLogLevel,
	"logging.format":             EnvLogFormat,
	"logging.source":             EnvLogSource,
	"logging.file":               EnvLogFile,
}

// EnvOverrideFor returns the env var name if the field is overridden by environment variables.
func EnvOverrideFor(key string) (string, bool) {
	name, ok := envKeys[key]
	if !ok || os.Getenv(name) == "" {
		return "", false
	}
	return name, true
}

// StoreDSN returns the Postgres DSN with password filled in when the DSN
// carries none.
func (s StoreConfig) StoreDSN(password string) string {
	dsn := strings.TrimSpace(s.DSN)
	if password == "" || dsn == "" {
		return dsn
	}
	if !strings.Contains(dsn, "://") {
		if strings.Contains(dsn, "password=") {
			return dsn
		}
		return dsn + " password=" + password
	}
	u, err := url.Parse(dsn)
	if err != nil || u.User == nil {
		return dsn
	}
	if _, set := u.User.Password(); set {
		return dsn
	}
	u.User = url.UserPassword(u.User.Username(), password)
	return u.String()
}
