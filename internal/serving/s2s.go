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
	"bufio"
	"net/http"

	"s2lite/internal/types"
	"s2lite/internal/wire"
)

// handleAppendStreaming drives an s2s/proto client->server append session:
// the client sends one Frame per append batch and reads back one Frame per
// ack, until it sends a Terminal frame to close the session.
func (s *Server) handleAppendStreaming(w http.ResponseWriter, r *http.Request, basin types.BasinName, stream types.StreamName) {
	reader := bufio.NewReader(r.Body)
	w.Header().Set("Content-Type", "s2s/proto")
	flusher, _ := w.(http.Flusher)

	for {
		frame, err := wire.ReadFrame(reader)
		if err != nil {
			wire.WriteFrame(w, wire.Frame{Kind: wire.FrameTerminal, Reason: "bad_frame"})
			return
		}
		if frame.Kind == wire.FrameTerminal {
			wire.WriteFrame(w, wire.Frame{Kind: wire.FrameTerminal, Reason: "done"})
			return
		}

		in, err := wire.DecodeAppendInput(frame.Payload)
		if err != nil {
			wire.WriteFrame(w, wire.Frame{Kind: wire.FrameTerminal, Reason: "bad_proto"})
			return
		}

		out, err := s.engine.Append(r.Context(), basin, stream, in)
		if err != nil {
			wire.WriteFrame(w, wire.Frame{Kind: wire.FrameTerminal, Reason: err.Error()})
			return
		}
		if err := wire.WriteFrame(w, wire.Frame{Kind: wire.FrameRegular, Payload: wire.EncodeAppendOutput(out)}); err != nil {
			return
		}
		if flusher != nil {
			flusher.Flush()
		}
	}
}
