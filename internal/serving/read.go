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

package serving

import (
	"log"
	"net/http"
	"strconv"
	"strings"
	"time"

	"s2lite/internal/apierr"
	"s2lite/internal/authz"
	"s2lite/internal/engine"
	"s2lite/internal/sse"
	"s2lite/internal/types"
	"s2lite/internal/wire"
)

// parseReadRequest turns the read query parameters into an engine.ReadRequest.
// start: "earliest" (default) | "latest" | "seq_num:<n>" | "timestamp:<n>" | "tail_offset:<n>"
// until: "seq_num:<n>" | "timestamp:<n>" (absent means unbounded)
func parseReadRequest(r *http.Request) (engine.ReadRequest, error) {
	q := r.URL.Query()
	start, err := parseReadStart(q.Get("start"))
	if err != nil {
		return engine.ReadRequest{}, err
	}
	until, err := parseReadUntil(q.Get("until"))
	if err != nil {
		return engine.ReadRequest{}, err
	}

	var limit types.ReadLimit
	if raw := q.Get("limit_count"); raw != "" {
		n, err := strconv.ParseUint(raw, 10, 64)
		if err != nil {
			return engine.ReadRequest{}, apierr.New(apierr.CodeBadQuery, "invalid limit_count")
		}
		limit.Count = n
	}
	if raw := q.Get("limit_bytes"); raw != "" {
		n, err := strconv.ParseUint(raw, 10, 64)
		if err != nil {
			return engine.ReadRequest{}, apierr.New(apierr.CodeBadQuery, "invalid limit_bytes")
		}
		limit.Bytes = n
	}

	mode := types.SessionMode{Kind: types.SessionUnary, MaxWait: engine.DefaultMaxWait}
	if q.Get("mode") == "stream" {
		mode.Kind = types.SessionStreaming
	}
	if raw := q.Get("max_wait"); raw != "" {
		d, err := time.ParseDuration(raw)
		if err != nil {
			return engine.ReadRequest{}, apierr.New(apierr.CodeBadQuery, "invalid max_wait")
		}
		mode.MaxWait = d
	}

	return engine.ReadRequest{Start: start, End: until, Limit: limit, Mode: mode}, nil
}

func parseReadStart(raw string) (types.ReadStart, error) {
	switch {
	case raw == "" || raw == "earliest":
		return types.StartEarliest(), nil
	case raw == "latest":
		return types.StartLatest(), nil
	case strings.HasPrefix(raw, "seq_num:"):
		n, err := strconv.ParseUint(raw[len("seq_num:"):], 10, 64)
		if err != nil {
			return types.ReadStart{}, apierr.New(apierr.CodeBadQuery, "invalid start seq_num")
		}
		return types.StartAtSeqNum(n), nil
	case strings.HasPrefix(raw, "timestamp:"):
		n, err := strconv.ParseUint(raw[len("timestamp:"):], 10, 64)
		if err != nil {
			return types.ReadStart{}, apierr.New(apierr.CodeBadQuery, "invalid start timestamp")
		}
		return types.StartAtTimestamp(n), nil
	case strings.HasPrefix(raw, "tail_offset:"):
		n, err := strconv.ParseUint(raw[len("tail_offset:"):], 10, 64)
		if err != nil {
			return types.ReadStart{}, apierr.New(apierr.CodeBadQuery, "invalid start tail_offset")
		}
		return types.StartAtTailOffset(n), nil
	default:
		return types.ReadStart{}, apierr.New(apierr.CodeBadQuery, "unrecognized start")
	}
}

func parseReadUntil(raw string) (types.ReadUntil, error) {
	switch {
	case raw == "":
		return types.ReadUntil{}, nil
	case strings.HasPrefix(raw, "seq_num:"):
		n, err := strconv.ParseUint(raw[len("seq_num:"):], 10, 64)
		if err != nil {
			return types.ReadUntil{}, apierr.New(apierr.CodeBadQuery, "invalid until seq_num")
		}
		return types.UntilSeqNum(n), nil
	case strings.HasPrefix(raw, "timestamp:"):
		n, err := strconv.ParseUint(raw[len("timestamp:"):], 10, 64)
		if err != nil {
			return types.ReadUntil{}, apierr.New(apierr.CodeBadQuery, "invalid until timestamp")
		}
		return types.UntilTimestamp(n), nil
	default:
		return types.ReadUntil{}, apierr.New(apierr.CodeBadQuery, "unrecognized until")
	}
}

func (s *Server) handleRead(w http.ResponseWriter, r *http.Request) {
	basin, err := basinFromHeader(r)
	if err != nil {
		writeError(w, err)
		return
	}
	stream, err := parseStreamName(r.PathValue("stream"))
	if err != nil {
		writeError(w, err)
		return
	}
	if !s.authorize(w, r, basin, authz.ScopeRead) {
		return
	}
	req, err := parseReadRequest(r)
	if err != nil {
		writeError(w, err)
		return
	}

	switch accept(r) {
	case "text/event-stream":
		s.streamSSE(w, r, basin, stream, req)
	case "s2s/proto":
		s.streamS2S(w, r, basin, stream, req)
	default:
		s.readUnary(w, r, basin, stream, req)
	}
}

// readUnary collects exactly one batch (json or protobuf) and returns,
// used for both Accept: application/json and application/protobuf.
func (s *Server) readUnary(w http.ResponseWriter, r *http.Request, basin types.BasinName, stream types.StreamName, req engine.ReadRequest) {
	req.Mode = types.SessionMode{Kind: types.SessionUnary, MaxWait: req.Mode.MaxWait}
	ch, err := s.engine.Read(r.Context(), basin, stream, req)
	if err != nil {
		writeError(w, err)
		return
	}
	var records []types.Record
	for out := range ch {
		switch out.Kind {
		case engine.ReadOutputBatch:
			records = append(records, out.Batch.Records...)
		case engine.ReadOutputTerminal:
			if out.Terminal == engine.TerminalStorage {
				writeError(w, apierr.New(apierr.CodeStorage, "read session failed"))
				return
			}
		}
	}

	if accept(r) == "application/protobuf" || accept(r) == "application/x-protobuf" {
		w.Header().Set("Content-Type", "application/protobuf")
		w.WriteHeader(http.StatusOK)
		if _, err := w.Write(wire.EncodeBatch(records)); err != nil {
			log.Printf("serving: write protobuf read batch: %v", err)
		}
		return
	}

	dtos := make([]recordDTO, len(records))
	for i, rec := range records {
		dtos[i] = recordToDTO(rec)
	}
	writeJSON(w, http.StatusOK, struct {
		Records []recordDTO `json:"records"`
	}{Records: dtos})
}

// streamSSE serves the live/streaming read mode as Server-Sent Events.
func (s *Server) streamSSE(w http.ResponseWriter, r *http.Request, basin types.BasinName, stream types.StreamName, req engine.ReadRequest) {
	var runningCount, runningBytes uint64
	if cursor := r.Header.Get("Last-Event-Id"); cursor != "" {
		if pos, err := sse.ParseLastEventID(cursor); err == nil {
			req.Start = types.StartAtSeqNum(pos.SeqNum + 1)
			runningCount, runningBytes = pos.Count, pos.Bytes
		}
	}
	req.Mode = types.SessionMode{Kind: types.SessionStreaming, MaxWait: req.Mode.MaxWait}

	ch, err := s.engine.Read(r.Context(), basin, stream, req)
	if err != nil {
		writeError(w, err)
		return
	}

	w.Header().Set("Content-Type", "text/event-stream")
	w.Header().Set("Cache-Control", "no-cache")
	flusher, _ := w.(http.Flusher)

	for out := range ch {
		switch out.Kind {
		case engine.ReadOutputBatch:
			for _, rec := range out.Batch.Records {
				runningCount++
				runningBytes += rec.MeteredSize()
			}
			if err := sse.WriteBatch(w, out.Batch.Records, runningCount, runningBytes); err != nil {
				return
			}
		case engine.ReadOutputHeartbeat:
			if err := sse.WritePing(w, uint64(out.Heartbeat.Timestamp)); err != nil {
				return
			}
		case engine.ReadOutputTerminal:
			if out.Terminal == engine.TerminalStorage {
				sse.WriteError(w, "storage error")
			}
			sse.WriteDone(w)
		}
		if flusher != nil {
			flusher.Flush()
		}
	}
}

// streamS2S serves a streaming read as a sequence of length-prefixed
// protobuf Frame messages, terminated by a Frame carrying the terminal
// reason once the session ends.
func (s *Server) streamS2S(w http.ResponseWriter, r *http.Request, basin types.BasinName, stream types.StreamName, req engine.ReadRequest) {
	ch, err := s.engine.Read(r.Context(), basin, stream, req)
	if err != nil {
		writeError(w, err)
		return
	}
	w.Header().Set("Content-Type", "s2s/proto")
	flusher, _ := w.(http.Flusher)

	for out := range ch {
		switch out.Kind {
		case engine.ReadOutputBatch:
			payload := wire.EncodeBatch(out.Batch.Records)
			if err := wire.WriteFrame(w, wire.Frame{Kind: wire.FrameRegular, Payload: payload}); err != nil {
				return
			}
		case engine.ReadOutputTerminal:
			wire.WriteFrame(w, wire.Frame{Kind: wire.FrameTerminal, Reason: string(out.Terminal)})
		}
		if flusher != nil {
			flusher.Flush()
		}
	}
}
