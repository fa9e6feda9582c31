/*
 * Copyright (c) 2025 by Alexander Drost, Oldenburg, Germany.
 * This file is licensed to you under the Apache License, Version 2.0 (the "License"); you may not use this file except in compliance with the License.  You may obtain a copy of the License at
 *   http://www.apache.org/licenses/LICENSE-2.0
 * Unless required by applicable law or agreed to in writing, software distributed under the License is distributed on an
 * "AS IS" BASIS, WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.  See the License for the specific language governing permissions and limitations under the License.
 */
package storage

import (
	_ "embed"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"math/rand"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"sync"
	"time"

	gojsonschema "github.com/xeipuuv/gojsonschema"

	"gomemecanvas/internal/domain"
)

// BackupsDirName holds timestamped copies of records replaced by WriteRecord.
const BackupsDirName = "backups"

//go:embed schema/meme.schema.json
var recordSchema []byte

var compiledSchema = sync.OnceValues(func() (*gojsonschema.Schema, error) {
	return gojsonschema.NewSchema(gojsonschema.NewBytesLoader(recordSchema))
})

// RecordSchema returns the JSON schema a composition record must satisfy.
func RecordSchema() []byte { return append([]byte(nil), recordSchema...) }

// ValidationError lists the schema violations of a record.
type ValidationError struct {
	Problems []string
}

func (e *ValidationError) Error() string {
	return "invalid record: " + strings.Join(e.Problems, "; ")
}

// ValidateRecord checks data against the record schema.
func ValidateRecord(data []byte) error {
	schema, err := compiledSchema()
	if err != nil {
		return fmt.Errorf("load record schema: %w", err)
	}
	res, err := schema.Validate(gojsonschema.NewBytesLoader(data))
	if err != nil {
		return fmt.Errorf("schema validate: %w", err)
	}
	if res.Valid() {
		return nil
	}
	ve := &ValidationError{}
	for _, e := range res.Errors() {
		ve.Problems = append(ve.Problems, e.String())
	}
	return ve
}

// DecodeRecord validates and parses a record.
func DecodeRecord(data []byte) (*domain.Meme, error) {
	if err := ValidateRecord(data); err != nil {
		return nil, err
	}
	var m domain.Meme
	if err := json.Unmarshal(data, &m); err != nil {
		return nil, fmt.Errorf("parse record: %w", err)
	}
	if m.TextBoxes == nil {
		m.TextBoxes = []domain.TextBox{}
	}
	return &m, nil
}

// EncodeRecord marshals m in human-readable form and validates the result.
func EncodeRecord(m domain.Meme) ([]byte, error) {
	if m.TextBoxes == nil {
		m.TextBoxes = []domain.TextBox{}
	}
	data, err := json.MarshalIndent(m, "", "  ")
	if err != nil {
		return nil, fmt.Errorf("marshal record: %w", err)
	}
	data = append(data, '\n')
	if err := ValidateRecord(data); err != nil {
		return nil, err
	}
	return data, nil
}

// WriteRecord writes m to path with transactional semantics and a timestamped
// backup of the previous file (if present).
func WriteRecord(path string, m domain.Meme) error {
	if strings.TrimSpace(path) == "" {
		return errors.New("record path is required")
	}
	data, err := EncodeRecord(m)
	if err != nil {
		return err
	}
	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return fmt.Errorf("create record dir: %w", err)
	}
	if _, statErr := os.Stat(path); statErr == nil {
		stamp := time.Now().Format("20060102-150405")
		bpath := filepath.Join(dir, BackupsDirName, fmt.Sprintf("%s.%s.bak", filepath.Base(path), stamp))
		if cerr := copyFile(path, bpath); cerr != nil {
			return fmt.Errorf("backup current record: %w", cerr)
		}
	}
	// Write to a temp file in the same directory, then rename over the target.
	temp := filepath.Join(dir, fmt.Sprintf(".%s.tmp-%d-%d", filepath.Base(path), os.Getpid(), rand.Int()))
	if werr := writeFileSync(temp, data); werr != nil {
		return fmt.Errorf("write temp record: %w", werr)
	}
	// On Windows, replace by removing destination first if needed
	if _, err := os.Stat(path); err == nil {
		_ = os.Remove(path)
	}
	if rerr := os.Rename(temp, path); rerr != nil {
		_ = os.Remove(temp)
		return fmt.Errorf("replace record: %w", rerr)
	}
	return nil
}

// ReadRecord loads a record from path. If the file cannot be read or fails
// validation, the latest backup is tried.
func ReadRecord(path string) (*domain.Meme, error) {
	b, err := os.ReadFile(path)
	if err != nil {
		m, berr := readLatestBackup(path)
		if berr != nil {
			return nil, fmt.Errorf("open record: %w; backup attempt: %v", err, berr)
		}
		return m, nil
	}
	m, derr := DecodeRecord(b)
	if derr != nil {
		m, berr := readLatestBackup(path)
		if berr != nil {
			return nil, fmt.Errorf("decode record: %w; backup attempt: %v", derr, berr)
		}
		return m, nil
	}
	return m, nil
}

// writeFileSync writes data to a file, ensures it is flushed to disk.
func writeFileSync(path string, data []byte) (err error) {
	f, err := os.OpenFile(path, os.O_CREATE|os.O_TRUNC|os.O_WRONLY, 0o644)
	if err != nil {
		return err
	}
	defer func() {
		if cerr := f.Close(); err == nil {
			err = cerr
		}
	}()
	if _, err := f.Write(data); err != nil {
		return err
	}
	return f.Sync()
}

// copyFile copies a file from src to dst (overwrites dst if exists).
func copyFile(src, dst string) (err error) {
	sf, err := os.Open(src)
	if err != nil {
		return err
	}
	defer func() {
		if cerr := sf.Close(); err == nil {
			err = cerr
		}
	}()
	if err := os.MkdirAll(filepath.Dir(dst), 0o755); err != nil {
		return err
	}
	df, err := os.OpenFile(dst, os.O_CREATE|os.O_TRUNC|os.O_WRONLY, 0o644)
	if err != nil {
		return err
	}
	defer func() {
		if cerr := df.Close(); err == nil {
			err = cerr
		}
	}()
	if _, err := io.Copy(df, sf); err != nil {
		return err
	}
	return df.Sync()
}

// readLatestBackup parses the newest backup of path.
func readLatestBackup(path string) (*domain.Meme, error) {
	bdir := filepath.Join(filepath.Dir(path), BackupsDirName)
	ents, err := os.ReadDir(bdir)
	if err != nil {
		return nil, fmt.Errorf("read backups dir: %w", err)
	}
	prefix := filepath.Base(path) + "."
	var candidates []string
	for _, e := range ents {
		name := e.Name()
		if strings.HasPrefix(name, prefix) && strings.HasSuffix(name, ".bak") {
			candidates = append(candidates, filepath.Join(bdir, name))
		}
	}
	if len(candidates) == 0 {
		return nil, errors.New("no backups found")
	}
	sort.Strings(candidates) // timestamp in name yields lexicographic order
	b, err := os.ReadFile(candidates[len(candidates)-1])
	if err != nil {
		return nil, fmt.Errorf("read latest backup: %w", err)
	}
	return DecodeRecord(b)
}
