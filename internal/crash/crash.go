/*
 * Copyright (c) 2025 by Alexander Drost, Oldenburg, Germany.
 * This file is licensed to you under the Apache License, Version 2.0 (the "License"); you may not use this file except in compliance with the License.  You may obtain a copy of the License at
 *   http://www.apache.org/licenses/LICENSE-2.0
 * Unless required by applicable law or agreed to in writing, software distributed under the License is distributed on an
 * "AS IS" BASIS, WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.  See the License for the specific language governing permissions and limitations under the License.
 */
// Package crash turns a panic at a process entry point into a crash report
// and an autosaved copy of the composition being edited.
package crash

import (
	"bytes"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"runtime"
	"runtime/debug"
	"time"

	"gomemecanvas/internal/domain"
	applog "gomemecanvas/internal/log"
	"gomemecanvas/internal/storage"
	"gomemecanvas/internal/telemetry"
	"gomemecanvas/internal/version"
)

// exitFn is used to allow testing of Recover without terminating the test process.
var exitFn = os.Exit

// Snapshotter yields the composition to autosave. editor.Session satisfies it.
type Snapshotter interface {
	Record(id, userID string) (*domain.Meme, error)
}

// Options says where reports go and what to autosave. A zero Dir uses the
// system temp dir; a nil Source skips the autosave.
type Options struct {
	Dir    string
	Source Snapshotter
}

// Recover captures a panic, logs an error with stacktrace, writes a report
// file and attempts a crash-safe autosave of the current composition.
//
// Usage: defer crash.Recover(opts)
func Recover(opts Options) {
	if r := recover(); r != nil {
		handle(opts, r)
	}
}

func handle(opts Options, r any) {
	l := applog.WithComponent("crash")
	stack := debug.Stack()
	l.Error("panic recovered", slog.Any("panic", r), slog.String("stack", string(stack)))

	reportPath, _ := writeReport(opts.Dir, r, stack)
	if opts.Source != nil {
		if path, err := autosave(opts.Dir, opts.Source); err != nil {
			l.Error("autosave failed", slog.Any("err", err))
		} else {
			l.Info("autosave written", slog.String("path", path))
		}
	}

	if _, err := fmt.Fprintf(os.Stderr, "A fatal error occurred. A crash report was saved to: %s\n", reportPath); err != nil {
		l.Error("failed to write crash message to stderr", slog.Any("err", err))
	}
	if _, err := fmt.Fprintf(os.Stderr, "Version: %s\nOS/Arch: %s/%s\n", version.String(), runtime.GOOS, runtime.GOARCH); err != nil {
		l.Error("failed to write version info to stderr", slog.Any("err", err))
	}
	exitFn(2)
}

func reportDir(dir string) string {
	if dir == "" {
		return os.TempDir()
	}
	_ = os.MkdirAll(dir, 0o755)
	return dir
}

// autosave writes the source's record as autosave-<stamp>.json. A panic while
// snapshotting is contained so the report survives.
func autosave(dir string, src Snapshotter) (path string, err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("snapshot panicked: %v", r)
		}
	}()
	m, err := src.Record("autosave-"+time.Now().Format("20060102-150405"), "")
	if err != nil {
		return "", err
	}
	path = filepath.Join(reportDir(dir), m.ID+".json")
	return path, storage.WriteRecord(path, *m)
}

func writeReport(dir string, panicVal any, stack []byte) (string, error) {
	stamp := time.Now().Format("20060102-150405")
	path := filepath.Join(reportDir(dir), fmt.Sprintf("crash-%s.log", stamp))

	f, err := os.OpenFile(path, os.O_CREATE|os.O_TRUNC|os.O_WRONLY, 0o644)
	if err != nil {
		return path, err
	}
	defer func() {
		if err := f.Close(); err != nil {
			applog.WithComponent("crash").Error("failed to close crash report file", slog.Any("err", err), slog.String("path", path))
		}
	}()

	var buf bytes.Buffer
	_, _ = fmt.Fprintf(&buf, "gomemecanvas crash report\n")
	_, _ = fmt.Fprintf(&buf, "Timestamp: %s\n", time.Now().Format(time.RFC3339))
	_, _ = fmt.Fprintf(&buf, "Version: %s\n", version.String())
	_, _ = fmt.Fprintf(&buf, "OS/Arch: %s/%s\n", runtime.GOOS, runtime.GOARCH)
	_, _ = fmt.Fprintf(&buf, "\nPanic: %v\n\n", panicVal)
	_, _ = fmt.Fprintf(&buf, "Stack:\n%s\n", string(stack))

	if _, err := f.Write(buf.Bytes()); err != nil {
		return path, err
	}
	_ = f.Sync()

	// Upload is opt-in; the default client drops it otherwise.
	telemetry.UploadCrash(buf.Bytes())
	return path, nil
}
