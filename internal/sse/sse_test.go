// Copyright 2025 Esteban Alvarez. All Rights Reserved.
//
// Created: October 2025
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//     http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.

package sse

import (
	"bytes"
	"strings"
	"testing"

	"s2lite/internal/types"
)

func TestParseLastEventIDRoundtrip(t *testing.T) {
	id := LastEventID{SeqNum: 1, Count: 2, Bytes: 345}
	got, err := ParseLastEventID(id.Format())
	if err != nil {
		t.Fatalf("parse: %v", err)
	}
	if got != id {
		t.Fatalf("roundtrip mismatch: got %+v want %+v", got, id)
	}
}

func TestParseLastEventIDRejectsMalformed(t *testing.T) {
	for _, s := range []string{"", "1,2", "1,2,3,4", "a,2,3"} {
		if _, err := ParseLastEventID(s); err == nil {
			t.Fatalf("expected error for %q", s)
		}
	}
}

func TestWriteBatchFramesEventAndId(t *testing.T) {
	var buf bytes.Buffer
	records := []types.Record{{SeqNum: 1, Timestamp: 10, Body: []byte("p")}, {SeqNum: 2, Timestamp: 11, Body: []byte("q")}}
	if err := WriteBatch(&buf, records, 2, 16); err != nil {
		t.Fatalf("write batch: %v", err)
	}
	out := buf.String()
	if !strings.Contains(out, "event: batch\n") {
		t.Fatalf("missing event name: %q", out)
	}
	if !strings.Contains(out, "id: 2,2,16\n") {
		t.Fatalf("missing expected id line: %q", out)
	}
	if !strings.Contains(out, "data: ") {
		t.Fatalf("missing data line: %q", out)
	}
	if !strings.HasSuffix(out, "\n\n") {
		t.Fatalf("event must end with a blank line: %q", out)
	}
}

func TestWritePingAndError(t *testing.T) {
	var buf bytes.Buffer
	if err := WritePing(&buf, 42); err != nil {
		t.Fatalf("write ping: %v", err)
	}
	if !strings.Contains(buf.String(), "event: ping\n") || !strings.Contains(buf.String(), `"timestamp":42`) {
		t.Fatalf("unexpected ping frame: %q", buf.String())
	}

	buf.Reset()
	if err := WriteError(&buf, "boom"); err != nil {
		t.Fatalf("write error: %v", err)
	}
	if !strings.Contains(buf.String(), "event: error\n") || !strings.Contains(buf.String(), "data: boom\n") {
		t.Fatalf("unexpected error frame: %q", buf.String())
	}
}

func TestWriteDone(t *testing.T) {
	var buf bytes.Buffer
	if err := WriteDone(&buf); err != nil {
		t.Fatalf("write done: %v", err)
	}
	if buf.String() != "data: [DONE]\n\n" {
		t.Fatalf("unexpected done frame: %q", buf.String())
	}
}
