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
	"time"

	"s2lite/internal/engine"
	"s2lite/internal/types"
)

// These DTOs are the JSON wire shape. They exist separately from the
// internal types so the engine and keyspace packages never need to know
// about json tags or an over-the-wire naming convention.

type headerDTO struct {
	Name  []byte `json:"name"`
	Value []byte `json:"value"`
}

type recordDTO struct {
	Headers   []headerDTO `json:"headers,omitempty"`
	Body      []byte      `json:"body"`
	SeqNum    uint64      `json:"seq_num,omitempty"`
	Timestamp uint64      `json:"timestamp,omitempty"`
}

func (d recordDTO) toRecord() types.Record {
	headers := make([]types.Header, len(d.Headers))
	for i, h := range d.Headers {
		headers[i] = types.Header{Name: h.Name, Value: h.Value}
	}
	return types.Record{Headers: headers, Body: d.Body, SeqNum: d.SeqNum, Timestamp: d.Timestamp}
}

func recordToDTO(r types.Record) recordDTO {
	headers := make([]headerDTO, len(r.Headers))
	for i, h := range r.Headers {
		headers[i] = headerDTO{Name: h.Name, Value: h.Value}
	}
	return recordDTO{Headers: headers, Body: r.Body, SeqNum: r.SeqNum, Timestamp: r.Timestamp}
}

type appendRequestDTO struct {
	Records      []recordDTO `json:"records"`
	MatchSeqNum  *uint64     `json:"match_seq_num,omitempty"`
	FencingToken *string     `json:"fencing_token,omitempty"`
}

func (d appendRequestDTO) toAppendInput() (types.AppendInput, error) {
	records := make([]types.Record, len(d.Records))
	for i, r := range d.Records {
		records[i] = r.toRecord()
	}
	in := types.AppendInput{Batch: types.Batch{Records: records}}
	if d.MatchSeqNum != nil {
		in.MatchSeqNum = types.MatchSeqNum{SeqNum: *d.MatchSeqNum, Set: true}
	}
	if d.FencingToken != nil {
		token, err := types.ParseFencingToken([]byte(*d.FencingToken))
		if err != nil {
			return types.AppendInput{}, err
		}
		in.FencingToken = types.OptionalValue(token)
	}
	return in, nil
}

type appendResponseDTO struct {
	StartSeqNum    uint64 `json:"start_seq_num"`
	EndSeqNum      uint64 `json:"end_seq_num"`
	StartTimestamp uint64 `json:"start_timestamp"`
	EndTimestamp   uint64 `json:"end_timestamp"`
}

func appendOutputToDTO(out types.AppendOutput) appendResponseDTO {
	return appendResponseDTO{
		StartSeqNum:    out.StartSeqNum,
		EndSeqNum:      out.EndSeqNum,
		StartTimestamp: out.StartTimestamp,
		EndTimestamp:   out.EndTimestamp,
	}
}

type tailResponseDTO struct {
	SeqNum    uint64 `json:"seq_num"`
	Timestamp uint64 `json:"timestamp"`
}

// streamConfigDTO is the wire shape of types.StreamConfig: durations travel
// as whole seconds and enums as their lowercase names, matching the rest of
// the JSON surface's field conventions.
type streamConfigDTO struct {
	RetentionAgeSeconds        uint64 `json:"retention_age_seconds,omitempty"`
	DeleteOnEmptyMinAgeSeconds uint64 `json:"delete_on_empty_min_age_seconds,omitempty"`
	StorageClass               string `json:"storage_class,omitempty"`
	Timestamping               string `json:"timestamping,omitempty"`
}

func (d streamConfigDTO) toStreamConfig() (types.StreamConfig, error) {
	sc, err := types.ParseStorageClass(d.StorageClass)
	if err != nil {
		return types.StreamConfig{}, err
	}
	ts, err := types.ParseTimestampingMode(d.Timestamping)
	if err != nil {
		return types.StreamConfig{}, err
	}
	return types.StreamConfig{
		RetentionAge:        time.Duration(d.RetentionAgeSeconds) * time.Second,
		DeleteOnEmptyMinAge: time.Duration(d.DeleteOnEmptyMinAgeSeconds) * time.Second,
		StorageClass:        sc,
		Timestamping:        ts,
	}, nil
}

func streamConfigToDTO(cfg types.StreamConfig) streamConfigDTO {
	return streamConfigDTO{
		RetentionAgeSeconds:        uint64(cfg.RetentionAge.Seconds()),
		DeleteOnEmptyMinAgeSeconds: uint64(cfg.DeleteOnEmptyMinAge.Seconds()),
		StorageClass:               cfg.StorageClass.String(),
		Timestamping:               cfg.Timestamping.String(),
	}
}

// streamConfigPatchDTO is the wire shape of types.StreamConfigPatch: every
// field uses types.Optional so a PATCH body can distinguish "absent" (leave
// unchanged) from "null" (reset) from "present" (replace).
type streamConfigPatchDTO struct {
	RetentionAgeSeconds        types.Optional[uint64] `json:"retention_age_seconds"`
	DeleteOnEmptyMinAgeSeconds types.Optional[uint64] `json:"delete_on_empty_min_age_seconds"`
	StorageClass               types.Optional[string] `json:"storage_class"`
	Timestamping               types.Optional[string] `json:"timestamping"`
}

func (d streamConfigPatchDTO) toPatch() (types.StreamConfigPatch, error) {
	var p types.StreamConfigPatch
	if v, ok := d.RetentionAgeSeconds.Value(); ok {
		p.RetentionAge = types.OptionalValue(time.Duration(v) * time.Second)
	} else if d.RetentionAgeSeconds.IsNull() {
		p.RetentionAge = types.OptionalNull[time.Duration]()
	}
	if v, ok := d.DeleteOnEmptyMinAgeSeconds.Value(); ok {
		p.DeleteOnEmptyMinAge = types.OptionalValue(time.Duration(v) * time.Second)
	} else if d.DeleteOnEmptyMinAgeSeconds.IsNull() {
		p.DeleteOnEmptyMinAge = types.OptionalNull[time.Duration]()
	}
	if v, ok := d.StorageClass.Value(); ok {
		sc, err := types.ParseStorageClass(v)
		if err != nil {
			return types.StreamConfigPatch{}, err
		}
		p.StorageClass = types.OptionalValue(sc)
	}
	if v, ok := d.Timestamping.Value(); ok {
		ts, err := types.ParseTimestampingMode(v)
		if err != nil {
			return types.StreamConfigPatch{}, err
		}
		p.Timestamping = types.OptionalValue(ts)
	}
	return p, nil
}

type basinConfigPatchDTO struct {
	DefaultStreamConfig types.Optional[streamConfigDTO] `json:"default_stream_config"`
}

func (d basinConfigPatchDTO) toPatch() (types.BasinConfigPatch, error) {
	var p types.BasinConfigPatch
	if v, ok := d.DefaultStreamConfig.Value(); ok {
		cfg, err := v.toStreamConfig()
		if err != nil {
			return types.BasinConfigPatch{}, err
		}
		p.DefaultStreamConfig = types.OptionalValue(cfg)
	}
	return p, nil
}

type basinDTO struct {
	Name                string          `json:"name"`
	State               string          `json:"state"`
	DefaultStreamConfig streamConfigDTO `json:"default_stream_config"`
}

func basinInfoToDTO(info engine.BasinInfo) basinDTO {
	state := "active"
	if info.State == engine.BasinDeleting {
		state = "deleting"
	}
	return basinDTO{
		Name:                info.Name.String(),
		State:               state,
		DefaultStreamConfig: streamConfigToDTO(info.Config.DefaultStreamConfig),
	}
}

type basinListDTO struct {
	Basins []basinDTO `json:"basins"`
}

type streamDTO struct {
	Name   string          `json:"name"`
	Config streamConfigDTO `json:"config"`
}

func streamInfoToDTO(info engine.StreamInfo) streamDTO {
	return streamDTO{Name: info.Name.String(), Config: streamConfigToDTO(info.Config)}
}

type streamListDTO struct {
	Streams []streamDTO `json:"streams"`
}
