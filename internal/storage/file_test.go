/*
 * Copyright (c) 2025 by Alexander Drost, Oldenburg, Germany.
 * This file is licensed to you under the Apache License, Version 2.0 (the "License"); you may not use this file except in compliance with the License.  You may obtain a copy of the License at
 *   http://www.apache.org/licenses/LICENSE-2.0
 * Unless required by applicable law or agreed to in writing, software distributed under the License is distributed on an
 * "AS IS" BASIS, WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.  See the License for the specific language governing permissions and limitations under the License.
 */
package storage

import (
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"gomemecanvas/internal/domain"
)

func TestWriteReadRecordRoundTrip(t *testing.T) {
	path := filepath.Join(t.TempDir(), "meme.json")
	m := *testMeme("r1", "alice", 42, "hello", "world")
	m.StageWidth, m.StageHeight = 600, 300
	if err := WriteRecord(path, m); err != nil {
		t.Fatalf("WriteRecord: %v", err)
	}
	got, err := ReadRecord(path)
	if err != nil {
		t.Fatalf("ReadRecord: %v", err)
	}
	if got.ID != "r1" || len(got.TextBoxes) != 2 || got.TextBoxes[1].Text != "world" || got.StageWidth != 600 {
		t.Fatalf("unexpected record: %+v", got)
	}
	// No temp files left behind.
	ents, _ := os.ReadDir(filepath.Dir(path))
	for _, e := range ents {
		if strings.Contains(e.Name(), ".tmp-") {
			t.Fatalf("temp file left behind: %s", e.Name())
		}
	}
}

func TestWriteRecordBacksUpAndReadFallsBack(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "meme.json")
	if err := WriteRecord(path, *testMeme("r1", "", 1, "first")); err != nil {
		t.Fatalf("WriteRecord 1: %v", err)
	}
	if err := WriteRecord(path, *testMeme("r1", "", 1, "second")); err != nil {
		t.Fatalf("WriteRecord 2: %v", err)
	}
	ents, err := os.ReadDir(filepath.Join(dir, BackupsDirName))
	if err != nil || len(ents) == 0 {
		t.Fatalf("expected a backup: %v", err)
	}
	// Corrupt the current file; the backup holds the first version.
	if err := os.WriteFile(path, []byte("{not json"), 0o644); err != nil {
		t.Fatalf("corrupt: %v", err)
	}
	got, err := ReadRecord(path)
	if err != nil {
		t.Fatalf("ReadRecord fallback: %v", err)
	}
	if got.TextBoxes[0].Text != "first" {
		t.Fatalf("expected backup contents, got %+v", got.TextBoxes)
	}
}

func TestReadRecordMissingWithoutBackup(t *testing.T) {
	if _, err := ReadRecord(filepath.Join(t.TempDir(), "none.json")); err == nil {
		t.Fatalf("expected error")
	}
}

func TestEncodedRecordConformsToSchema(t *testing.T) {
	data, err := EncodeRecord(domain.Meme{ID: "x", ImageData: "AAAA"})
	if err != nil {
		t.Fatalf("EncodeRecord: %v", err)
	}
	if !strings.Contains(string(data), `"textBoxes": []`) {
		t.Fatalf("nil boxes must encode as an empty array: %s", data)
	}
	if err := ValidateRecord(data); err != nil {
		t.Fatalf("ValidateRecord: %v", err)
	}
}

func TestValidateRecordRejectsBadShapes(t *testing.T) {
	cases := map[string]string{
		"missing image":  `{"id":"a","textBoxes":[]}`,
		"boxes not list": `{"id":"a","imageData":"x","textBoxes":{}}`,
		"box lacks text": `{"id":"a","imageData":"x","textBoxes":[{"id":"b","leftRatio":0,"topRatio":0,"widthRatio":1,"heightRatio":1}]}`,
		"bad align":      `{"id":"a","imageData":"x","textBoxes":[{"id":"b","text":"t","leftRatio":0,"topRatio":0,"widthRatio":1,"heightRatio":1,"textAlign":"justify"}]}`,
	}
	for name, doc := range cases {
		err := ValidateRecord([]byte(doc))
		var ve *ValidationError
		if !errors.As(err, &ve) || len(ve.Problems) == 0 {
			t.Fatalf("%s: expected ValidationError, got %v", name, err)
		}
	}
	if _, err := DecodeRecord([]byte(`{"id":"a","imageData":"x","textBoxes":[]}`)); err != nil {
		t.Fatalf("minimal record should decode: %v", err)
	}
}

func TestRecordSchemaIsACopy(t *testing.T) {
	a := RecordSchema()
	a[0] = 'X'
	if RecordSchema()[0] == 'X' {
		t.Fatalf("RecordSchema must return a copy")
	}
}
