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

// Package serving adapts HTTP requests onto internal/engine calls: JSON
// (default), unary protobuf, "s2s" streaming protobuf, and
// text/event-stream, with one error taxonomy rendered consistently across
// all four. It is the same "Server wraps a core + RegisterRoutes(mux)"
// shape cmd/ratelimiter-api's api.Server uses, generalized to this
// service's much larger route table.
package serving

import (
	"encoding/json"
	"net/http"
	"strconv"

	"s2lite/internal/apierr"
	"s2lite/internal/authz"
	"s2lite/internal/engine"
	"s2lite/internal/types"
)

// Server holds everything a handler needs: the engine, the authorizer, and
// nothing else — config values that shape individual requests (default
// max_wait, heartbeat interval) already live on the Engine itself.
type Server struct {
	engine *engine.Engine
	authz  authz.Authorizer
}

func NewServer(e *engine.Engine, a authz.Authorizer) *Server {
	if a == nil {
		a = authz.AllowAll{}
	}
	return &Server{engine: e, authz: a}
}

// RegisterRoutes wires every route in the HTTP surface onto mux, using the
// Go 1.22 "METHOD /pattern" ServeMux syntax so method dispatch doesn't need
// a manual switch in each handler.
func (s *Server) RegisterRoutes(mux *http.ServeMux) {
	mux.HandleFunc("GET /ping", handlePing)

	mux.HandleFunc("GET /v1/basins", s.handleListBasins)
	mux.HandleFunc("POST /v1/basins", s.handleCreateBasin)
	mux.HandleFunc("GET /v1/basins/{basin}", s.handleGetBasin)
	mux.HandleFunc("PUT /v1/basins/{basin}", s.handlePutBasin)
	mux.HandleFunc("PATCH /v1/basins/{basin}", s.handlePatchBasin)
	mux.HandleFunc("DELETE /v1/basins/{basin}", s.handleDeleteBasin)

	mux.HandleFunc("GET /v1/streams", s.handleListStreams)
	mux.HandleFunc("POST /v1/streams", s.handleCreateStream)
	mux.HandleFunc("PUT /v1/streams/{stream}", s.handlePutStream)
	mux.HandleFunc("PATCH /v1/streams/{stream}", s.handlePatchStream)
	mux.HandleFunc("DELETE /v1/streams/{stream}", s.handleDeleteStream)

	mux.HandleFunc("GET /v1/streams/{stream}/records/tail", s.handleTail)
	mux.HandleFunc("GET /v1/streams/{stream}/records", s.handleRead)
	mux.HandleFunc("POST /v1/streams/{stream}/records", s.handleAppend)
	mux.HandleFunc("PUT /v1/streams/{stream}/trim", s.handleTrim)
	mux.HandleFunc("PUT /v1/streams/{stream}/fence", s.handleFence)
}

func handlePing(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "text/plain")
	w.Write([]byte("pong"))
}

// authorize checks the bearer token in the Authorization header against
// the requested basin/scope, writing a 403 and returning false on denial.
func (s *Server) authorize(w http.ResponseWriter, r *http.Request, basin types.BasinName, scope authz.Scope) bool {
	token := bearerToken(r)
	if err := s.authz.Authorize(r.Context(), token, basin, scope); err != nil {
		writeError(w, err)
		return false
	}
	return true
}

func bearerToken(r *http.Request) string {
	const prefix = "Bearer "
	h := r.Header.Get("Authorization")
	if len(h) > len(prefix) && h[:len(prefix)] == prefix {
		return h[len(prefix):]
	}
	return ""
}

func parseBasinName(s string) (types.BasinName, error) {
	name, err := types.ParseBasinName(s)
	if err != nil {
		return "", apierr.New(apierr.CodeBadPath, err.Error())
	}
	return name, nil
}

func parseStreamName(s string) (types.StreamName, error) {
	name, err := types.ParseStreamName(s)
	if err != nil {
		return "", apierr.New(apierr.CodeBadPath, err.Error())
	}
	return name, nil
}

// basinFromHeader resolves the s2-basin header the stream routes rely on
// (spec: "basin in header s2-basin").
func basinFromHeader(r *http.Request) (types.BasinName, error) {
	raw := r.Header.Get("s2-basin")
	if raw == "" {
		return "", apierr.New(apierr.CodeBadHeader, "s2-basin header is required")
	}
	return parseBasinName(raw)
}

func queryLimit(r *http.Request, max int) int {
	raw := r.URL.Query().Get("limit")
	if raw == "" {
		return 0
	}
	n, err := strconv.Atoi(raw)
	if err != nil || n < 0 {
		return 0
	}
	if n > max {
		return max
	}
	return n
}

func (s *Server) handleListBasins(w http.ResponseWriter, r *http.Request) {
	if !s.authorize(w, r, "", authz.ScopeRead) {
		return
	}
	q := r.URL.Query()
	startAfter := types.BasinName(q.Get("start_after"))
	infos, err := s.engine.ListBasins(r.Context(), q.Get("prefix"), startAfter, queryLimit(r, 1000))
	if err != nil {
		writeError(w, err)
		return
	}
	out := basinListDTO{Basins: make([]basinDTO, len(infos))}
	for i, info := range infos {
		out.Basins[i] = basinInfoToDTO(info)
	}
	writeJSON(w, http.StatusOK, out)
}

func (s *Server) handleCreateBasin(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Basin  string          `json:"basin"`
		Config streamConfigDTO `json:"default_stream_config"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, apierr.New(apierr.CodeBadJSON, err.Error()))
		return
	}
	name, err := parseBasinName(req.Basin)
	if err != nil {
		writeError(w, err)
		return
	}
	if !s.authorize(w, r, name, authz.ScopeAdmin) {
		return
	}
	defaultCfg, err := req.Config.toStreamConfig()
	if err != nil {
		writeError(w, apierr.New(apierr.CodeInvalid, err.Error()))
		return
	}
	info, err := s.engine.CreateBasin(r.Context(), name, types.BasinConfig{DefaultStreamConfig: defaultCfg})
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, basinInfoToDTO(info))
}

// handlePutBasin is create-or-reconfigure: it creates the basin if absent,
// or replaces its default stream config wholesale if one already exists.
func (s *Server) handlePutBasin(w http.ResponseWriter, r *http.Request) {
	name, err := parseBasinName(r.PathValue("basin"))
	if err != nil {
		writeError(w, err)
		return
	}
	if !s.authorize(w, r, name, authz.ScopeAdmin) {
		return
	}
	var dto streamConfigDTO
	if err := json.NewDecoder(r.Body).Decode(&dto); err != nil {
		writeError(w, apierr.New(apierr.CodeBadJSON, err.Error()))
		return
	}
	cfg, err := dto.toStreamConfig()
	if err != nil {
		writeError(w, apierr.New(apierr.CodeInvalid, err.Error()))
		return
	}
	info, err := s.engine.CreateBasin(r.Context(), name, types.BasinConfig{DefaultStreamConfig: cfg})
	if isAlreadyExists(err) {
		patch := types.BasinConfigPatch{DefaultStreamConfig: types.OptionalValue(cfg)}
		info, err = s.engine.ReconfigureBasin(r.Context(), name, patch)
	}
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, basinInfoToDTO(info))
}

func (s *Server) handlePatchBasin(w http.ResponseWriter, r *http.Request) {
	name, err := parseBasinName(r.PathValue("basin"))
	if err != nil {
		writeError(w, err)
		return
	}
	if !s.authorize(w, r, name, authz.ScopeAdmin) {
		return
	}
	var dto basinConfigPatchDTO
	if err := json.NewDecoder(r.Body).Decode(&dto); err != nil {
		writeError(w, apierr.New(apierr.CodeBadJSON, err.Error()))
		return
	}
	patch, err := dto.toPatch()
	if err != nil {
		writeError(w, apierr.New(apierr.CodeInvalid, err.Error()))
		return
	}
	info, err := s.engine.ReconfigureBasin(r.Context(), name, patch)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, basinInfoToDTO(info))
}

func (s *Server) handleGetBasin(w http.ResponseWriter, r *http.Request) {
	name, err := parseBasinName(r.PathValue("basin"))
	if err != nil {
		writeError(w, err)
		return
	}
	if !s.authorize(w, r, name, authz.ScopeRead) {
		return
	}
	info, err := s.engine.GetBasin(r.Context(), name)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, basinInfoToDTO(info))
}

func (s *Server) handleDeleteBasin(w http.ResponseWriter, r *http.Request) {
	name, err := parseBasinName(r.PathValue("basin"))
	if err != nil {
		writeError(w, err)
		return
	}
	if !s.authorize(w, r, name, authz.ScopeAdmin) {
		return
	}
	if err := s.engine.DeleteBasin(r.Context(), name); err != nil {
		writeError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (s *Server) handleListStreams(w http.ResponseWriter, r *http.Request) {
	basin, err := basinFromHeader(r)
	if err != nil {
		writeError(w, err)
		return
	}
	if !s.authorize(w, r, basin, authz.ScopeRead) {
		return
	}
	q := r.URL.Query()
	startAfter := types.StreamName(q.Get("start_after"))
	infos, err := s.engine.ListStreams(r.Context(), basin, q.Get("prefix"), startAfter, queryLimit(r, 1000))
	if err != nil {
		writeError(w, err)
		return
	}
	out := streamListDTO{Streams: make([]streamDTO, len(infos))}
	for i, info := range infos {
		out.Streams[i] = streamInfoToDTO(info)
	}
	writeJSON(w, http.StatusOK, out)
}

func (s *Server) handleCreateStream(w http.ResponseWriter, r *http.Request) {
	basin, err := basinFromHeader(r)
	if err != nil {
		writeError(w, err)
		return
	}
	var req struct {
		Stream string          `json:"stream"`
		Config streamConfigDTO `json:"config"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, apierr.New(apierr.CodeBadJSON, err.Error()))
		return
	}
	stream, err := parseStreamName(req.Stream)
	if err != nil {
		writeError(w, err)
		return
	}
	if !s.authorize(w, r, basin, authz.ScopeAdmin) {
		return
	}
	cfg, err := req.Config.toStreamConfig()
	if err != nil {
		writeError(w, apierr.New(apierr.CodeInvalid, err.Error()))
		return
	}
	info, err := s.engine.CreateStream(r.Context(), basin, stream, cfg)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, streamInfoToDTO(info))
}

// handlePutStream is create-or-reconfigure, mirroring handlePutBasin.
func (s *Server) handlePutStream(w http.ResponseWriter, r *http.Request) {
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
	if !s.authorize(w, r, basin, authz.ScopeAdmin) {
		return
	}
	var dto streamConfigDTO
	if err := json.NewDecoder(r.Body).Decode(&dto); err != nil {
		writeError(w, apierr.New(apierr.CodeBadJSON, err.Error()))
		return
	}
	cfg, err := dto.toStreamConfig()
	if err != nil {
		writeError(w, apierr.New(apierr.CodeInvalid, err.Error()))
		return
	}
	info, err := s.engine.CreateStream(r.Context(), basin, stream, cfg)
	if isAlreadyExists(err) {
		patch := types.StreamConfigPatch{
			RetentionAge:        types.OptionalValue(cfg.RetentionAge),
			DeleteOnEmptyMinAge: types.OptionalValue(cfg.DeleteOnEmptyMinAge),
			StorageClass:        types.OptionalValue(cfg.StorageClass),
			Timestamping:        types.OptionalValue(cfg.Timestamping),
		}
		info, err = s.engine.ReconfigureStream(r.Context(), basin, stream, patch)
	}
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, streamInfoToDTO(info))
}

func isAlreadyExists(err error) bool {
	g, ok := err.(*apierr.Generic)
	return ok && g.Code == apierr.CodeResourceAlreadyExists
}

func (s *Server) handlePatchStream(w http.ResponseWriter, r *http.Request) {
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
	if !s.authorize(w, r, basin, authz.ScopeAdmin) {
		return
	}
	var dto streamConfigPatchDTO
	if err := json.NewDecoder(r.Body).Decode(&dto); err != nil {
		writeError(w, apierr.New(apierr.CodeBadJSON, err.Error()))
		return
	}
	patch, err := dto.toPatch()
	if err != nil {
		writeError(w, apierr.New(apierr.CodeInvalid, err.Error()))
		return
	}
	info, err := s.engine.ReconfigureStream(r.Context(), basin, stream, patch)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, streamInfoToDTO(info))
}

func (s *Server) handleDeleteStream(w http.ResponseWriter, r *http.Request) {
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
	if !s.authorize(w, r, basin, authz.ScopeAdmin) {
		return
	}
	if err := s.engine.DeleteStream(r.Context(), basin, stream); err != nil {
		writeError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (s *Server) handleTail(w http.ResponseWriter, r *http.Request) {
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
	pos, err := s.engine.Tail(r.Context(), basin, stream)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, tailResponseDTO{SeqNum: pos.SeqNum, Timestamp: pos.Timestamp})
}

func (s *Server) handleAppend(w http.ResponseWriter, r *http.Request) {
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
	if !s.authorize(w, r, basin, authz.ScopeWrite) {
		return
	}

	var in types.AppendInput
	switch contentType(r) {
	case "application/protobuf", "application/x-protobuf":
		in, err = decodeProtobufAppend(r)
	case "s2s/proto":
		s.handleAppendStreaming(w, r, basin, stream)
		return
	default:
		in, err = decodeJSONAppend(r)
	}
	if err != nil {
		writeError(w, err)
		return
	}

	out, err := s.engine.Append(r.Context(), basin, stream, in)
	if err != nil {
		writeError(w, err)
		return
	}
	writeAppendResult(w, r, out)
}

func (s *Server) handleTrim(w http.ResponseWriter, r *http.Request) {
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
	if !s.authorize(w, r, basin, authz.ScopeWrite) {
		return
	}
	var req struct {
		SeqNum uint64 `json:"seq_num"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, apierr.New(apierr.CodeBadJSON, err.Error()))
		return
	}
	out, err := s.engine.Trim(r.Context(), basin, stream, req.SeqNum)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, appendOutputToDTO(out))
}

func (s *Server) handleFence(w http.ResponseWriter, r *http.Request) {
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
	if !s.authorize(w, r, basin, authz.ScopeWrite) {
		return
	}
	var req struct {
		FencingToken string `json:"fencing_token"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, apierr.New(apierr.CodeBadJSON, err.Error()))
		return
	}
	token, err := types.ParseFencingToken([]byte(req.FencingToken))
	if err != nil {
		writeError(w, apierr.New(apierr.CodeInvalid, err.Error()))
		return
	}
	out, err := s.engine.Fence(r.Context(), basin, stream, token)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, appendOutputToDTO(out))
}

func decodeJSONAppend(r *http.Request) (types.AppendInput, error) {
	var dto appendRequestDTO
	if err := json.NewDecoder(r.Body).Decode(&dto); err != nil {
		return types.AppendInput{}, apierr.New(apierr.CodeBadJSON, err.Error())
	}
	in, err := dto.toAppendInput()
	if err != nil {
		return types.AppendInput{}, apierr.New(apierr.CodeInvalid, err.Error())
	}
	return in, nil
}

func writeAppendResult(w http.ResponseWriter, r *http.Request, out types.AppendOutput) {
	switch contentType(r) {
	case "application/protobuf", "application/x-protobuf":
		encodeProtobufAppendOutput(w, out)
	default:
		writeJSON(w, http.StatusOK, appendOutputToDTO(out))
	}
}

func contentType(r *http.Request) string {
	ct := r.Header.Get("Content-Type")
	for i, c := range ct {
		if c == ';' {
			return ct[:i]
		}
	}
	return ct
}

func accept(r *http.Request) string {
	a := r.Header.Get("Accept")
	for i, c := range a {
		if c == ',' || c == ';' {
			return a[:i]
		}
	}
	return a
}
