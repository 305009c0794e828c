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

// Package sse formats read-session output as Server-Sent Events and
// parses the Last-Event-Id resumption token clients send back. The event
// names and id shape are carried from the original implementation's SSE
// framing rather than invented fresh.
package sse

import (
	"encoding/json"
	"fmt"
	"io"
	"strconv"
	"strings"

	"s2lite/internal/types"
)

// wireHeader and wireRecord are the JSON shapes a batch event's data
// carries — encoding/json already base64-encodes []byte fields, which
// matches the default (non-raw) s2-format body encoding.
type wireHeader struct {
	Name  []byte `json:"name"`
	Value []byte `json:"value"`
}

type wireRecord struct {
	SeqNum    uint64       `json:"seq_num"`
	Timestamp uint64       `json:"timestamp"`
	Headers   []wireHeader `json:"headers,omitempty"`
	Body      []byte       `json:"body"`
}

type wireBatch struct {
	Records []wireRecord `json:"records"`
}

func toWireBatch(records []types.Record) wireBatch {
	out := wireBatch{Records: make([]wireRecord, len(records))}
	for i, r := range records {
		wr := wireRecord{SeqNum: r.SeqNum, Timestamp: r.Timestamp, Body: r.Body}
		for _, h := range r.Headers {
			wr.Headers = append(wr.Headers, wireHeader{Name: h.Name, Value: h.Value})
		}
		out.Records[i] = wr
	}
	return out
}

// LastEventID is the parsed form of the `Last-Event-Id: seq,count,bytes`
// resumption header: the last seq_num a client saw, and the record-count
// and metered-byte accounting it had reached. The server resumes after
// that seq_num and continues the count and byte totals carried in event
// ids from these values; the new session's ReadLimit is not reduced by them.
type LastEventID struct {
	SeqNum uint64
	Count  uint64
	Bytes  uint64
}

// Format renders a LastEventID (or the id of a just-sent batch) as the
// "seq,count,bytes" string used for both the `id:` field and the
// Last-Event-Id request header.
func (id LastEventID) Format() string {
	return fmt.Sprintf("%d,%d,%d", id.SeqNum, id.Count, id.Bytes)
}

// ParseLastEventID parses the "seq,count,bytes" resumption token. A
// missing or malformed header is the caller's cue to start the read from
// its own requested position instead of resuming.
func ParseLastEventID(s string) (LastEventID, error) {
	parts := strings.Split(s, ",")
	if len(parts) != 3 {
		return LastEventID{}, fmt.Errorf("sse: Last-Event-Id must have 3 comma-separated fields, got %d", len(parts))
	}
	seqNum, err := strconv.ParseUint(strings.TrimSpace(parts[0]), 10, 64)
	if err != nil {
		return LastEventID{}, fmt.Errorf("sse: invalid seq_num in Last-Event-Id: %w", err)
	}
	count, err := strconv.ParseUint(strings.TrimSpace(parts[1]), 10, 64)
	if err != nil {
		return LastEventID{}, fmt.Errorf("sse: invalid count in Last-Event-Id: %w", err)
	}
	bytes, err := strconv.ParseUint(strings.TrimSpace(parts[2]), 10, 64)
	if err != nil {
		return LastEventID{}, fmt.Errorf("sse: invalid bytes in Last-Event-Id: %w", err)
	}
	return LastEventID{SeqNum: seqNum, Count: count, Bytes: bytes}, nil
}

// writeEvent writes one SSE frame: an optional event name, an optional
// id, and one data line per newline-split chunk of data (SSE requires
// each line of a multi-line payload to carry its own "data:" prefix).
func writeEvent(w io.Writer, event, id, data string) error {
	var b strings.Builder
	if event != "" {
		fmt.Fprintf(&b, "event: %s\n", event)
	}
	if id != "" {
		fmt.Fprintf(&b, "id: %s\n", id)
	}
	for _, line := range strings.Split(data, "\n") {
		fmt.Fprintf(&b, "data: %s\n", line)
	}
	b.WriteString("\n")
	_, err := io.WriteString(w, b.String())
	return err
}

// WriteBatch emits a `batch` event carrying the records as JSON, with
// `id: <last_seq_num>,<count>,<bytes>` identifying the resumption point
// one past this batch.
func WriteBatch(w io.Writer, records []types.Record, runningCount, runningBytes uint64) error {
	data, err := json.Marshal(toWireBatch(records))
	if err != nil {
		return fmt.Errorf("sse: marshal batch: %w", err)
	}
	var lastSeqNum uint64
	if n := len(records); n > 0 {
		lastSeqNum = records[n-1].SeqNum
	}
	id := LastEventID{SeqNum: lastSeqNum, Count: runningCount, Bytes: runningBytes}.Format()
	return writeEvent(w, "batch", id, string(data))
}

// WritePing emits a `ping` event carrying the current tail timestamp, the
// heartbeat frame a streaming session sends while idle at the tail.
func WritePing(w io.Writer, timestampMillis uint64) error {
	data, err := json.Marshal(struct {
		Timestamp uint64 `json:"timestamp"`
	}{timestampMillis})
	if err != nil {
		return fmt.Errorf("sse: marshal ping: %w", err)
	}
	return writeEvent(w, "ping", "", string(data))
}

// WriteError emits an `error` event with a plain-text message.
func WriteError(w io.Writer, message string) error {
	return writeEvent(w, "error", "", message)
}

// WriteDone emits the terminal `data: [DONE]` frame every session ends
// with, event name omitted as the original framing does.
func WriteDone(w io.Writer) error {
	return writeEvent(w, "", "", "[DONE]")
}
