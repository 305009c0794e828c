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

package engine

import (
	"context"
	"fmt"

	"s2lite/internal/apierr"
	"s2lite/internal/keyspace"
	"s2lite/internal/kv"
	"s2lite/internal/types"
)

// BasinState mirrors the Creating -> Active -> Deleting state machine of
// spec.md §3/§4.4. A basin row's value is a state byte followed by the
// encoded default stream config (see serBasinValue); there is no separate
// activation step, so CreateBasin writes Active directly.
type BasinState byte

const (
	BasinActive BasinState = iota
	BasinDeleting
)

type BasinInfo struct {
	Name   types.BasinName
	State  BasinState
	Config types.BasinConfig
}

type StreamInfo struct {
	Basin  types.BasinName
	Name   types.StreamName
	Config types.StreamConfig
}

// serBasinValue combines the single state byte with the encoded default
// stream config, so a reconfigure never has to touch the state machine and
// a state transition never has to touch the config.
func serBasinValue(state BasinState, config types.BasinConfig) []byte {
	return append([]byte{byte(state)}, keyspace.SerStreamConfigValue(config.DefaultStreamConfig)...)
}

func deserBasinValue(val []byte) (BasinState, types.BasinConfig) {
	state := BasinActive
	var config types.BasinConfig
	if len(val) > 0 {
		state = BasinState(val[0])
	}
	if len(val) > 1 {
		if cfg, err := keyspace.DeserStreamConfigValue(val[1:]); err == nil {
			config.DefaultStreamConfig = cfg
		}
	}
	return state, config
}

// CreateBasin writes the basin row, failing with CodeResourceAlreadyExists
// if one already exists under this name.
func (e *Engine) CreateBasin(ctx context.Context, name types.BasinName, config types.BasinConfig) (BasinInfo, error) {
	key := keyspace.BasinKey(name)
	_, found, err := e.store.Get(ctx, key, kv.DurabilityRemote)
	if err != nil {
		return BasinInfo{}, apierr.New(apierr.CodeStorage, fmt.Sprintf("check existing basin: %v", err))
	}
	if found {
		return BasinInfo{}, apierr.New(apierr.CodeResourceAlreadyExists, fmt.Sprintf("basin %q already exists", name))
	}
	if err := e.store.Apply(ctx, []kv.Op{kv.Put(key, serBasinValue(BasinActive, config))}); err != nil {
		return BasinInfo{}, apierr.New(apierr.CodeStorage, fmt.Sprintf("create basin: %v", err))
	}
	return BasinInfo{Name: name, State: BasinActive, Config: config}, nil
}

// GetBasin looks up a basin's current state and config.
func (e *Engine) GetBasin(ctx context.Context, name types.BasinName) (BasinInfo, error) {
	val, found, err := e.store.Get(ctx, keyspace.BasinKey(name), kv.DurabilityRemote)
	if err != nil {
		return BasinInfo{}, apierr.New(apierr.CodeStorage, fmt.Sprintf("get basin: %v", err))
	}
	if !found {
		return BasinInfo{}, apierr.New(apierr.CodeBasinNotFound, fmt.Sprintf("basin %q not found", name))
	}
	state, config := deserBasinValue(val)
	return BasinInfo{Name: name, State: state, Config: config}, nil
}

// ReconfigureBasin applies a partial config update to an existing, non-
// Deleting basin and persists the result.
func (e *Engine) ReconfigureBasin(ctx context.Context, name types.BasinName, patch types.BasinConfigPatch) (BasinInfo, error) {
	info, err := e.GetBasin(ctx, name)
	if err != nil {
		return BasinInfo{}, err
	}
	if info.State == BasinDeleting {
		return BasinInfo{}, apierr.New(apierr.CodeBasinDeletionPending, fmt.Sprintf("basin %q is being deleted", name))
	}
	info.Config = info.Config.Apply(patch)
	if err := e.store.Apply(ctx, []kv.Op{kv.Put(keyspace.BasinKey(name), serBasinValue(info.State, info.Config))}); err != nil {
		return BasinInfo{}, apierr.New(apierr.CodeStorage, fmt.Sprintf("reconfigure basin: %v", err))
	}
	return info, nil
}

// ListBasins returns every basin whose name has the given prefix, in name
// order, optionally resuming strictly after startAfter, capped at limit
// (0 means no cap; the serving layer clamps an explicit limit to 1000 but
// passes 0 when the request gives none).
func (e *Engine) ListBasins(ctx context.Context, prefix string, startAfter types.BasinName, limit int) ([]BasinInfo, error) {
	start, end := keyspace.BasinScanRange()
	if startAfter != "" {
		start = append(keyspace.BasinKey(startAfter), 0x00)
	}
	entries, err := e.store.Scan(ctx, start, end, 0, kv.DurabilityRemote)
	if err != nil {
		return nil, apierr.New(apierr.CodeStorage, fmt.Sprintf("list basins: %v", err))
	}
	out := make([]BasinInfo, 0, len(entries))
	for _, ent := range entries {
		name, err := keyspace.DeserBasinKey(ent.Key)
		if err != nil {
			continue
		}
		if prefix != "" && !hasPrefix(name.String(), prefix) {
			continue
		}
		state, config := deserBasinValue(ent.Value)
		out = append(out, BasinInfo{Name: name, State: state, Config: config})
		if limit > 0 && len(out) >= limit {
			break
		}
	}
	return out, nil
}

func hasPrefix(s, prefix string) bool {
	return len(s) >= len(prefix) && s[:len(prefix)] == prefix
}

// DeleteBasin marks a basin Deleting and sets its BasinDeletionPending
// marker; internal/lifecycle's background coordinator does the actual
// per-stream cleanup asynchronously, resuming from the marker's cursor.
func (e *Engine) DeleteBasin(ctx context.Context, name types.BasinName) error {
	info, err := e.GetBasin(ctx, name)
	if err != nil {
		return err
	}
	if info.State == BasinDeleting {
		return nil // already in progress; idempotent
	}
	ops := []kv.Op{
		kv.Put(keyspace.BasinKey(name), serBasinValue(BasinDeleting, info.Config)),
		kv.Put(keyspace.BasinDeletionPendingKey(name), keyspace.SerBasinDeletionPendingValue("")),
	}
	if err := e.store.Apply(ctx, ops); err != nil {
		return apierr.New(apierr.CodeStorage, fmt.Sprintf("delete basin: %v", err))
	}
	return nil
}

// CreateStream writes the Stream row and its StreamId reverse mapping,
// rejecting the call if the owning basin is gone or being deleted, or if
// the stream already exists. A zero-value config falls back to the owning
// basin's default stream config.
func (e *Engine) CreateStream(ctx context.Context, basin types.BasinName, stream types.StreamName, config types.StreamConfig) (StreamInfo, error) {
	info, err := e.GetBasin(ctx, basin)
	if err != nil {
		return StreamInfo{}, err
	}
	if info.State == BasinDeleting {
		return StreamInfo{}, apierr.New(apierr.CodeBasinDeletionPending, fmt.Sprintf("basin %q is being deleted", basin))
	}
	if config == (types.StreamConfig{}) {
		config = info.Config.DefaultStreamConfig
	}

	streamKey := keyspace.StreamKey(basin, stream)
	_, found, err := e.store.Get(ctx, streamKey, kv.DurabilityRemote)
	if err != nil {
		return StreamInfo{}, apierr.New(apierr.CodeStorage, fmt.Sprintf("check existing stream: %v", err))
	}
	if found {
		return StreamInfo{}, apierr.New(apierr.CodeResourceAlreadyExists, fmt.Sprintf("stream %q already exists in basin %q", stream, basin))
	}

	id := keyspace.NewStreamID(basin, stream)
	ops := []kv.Op{
		kv.Put(streamKey, keyspace.SerStreamConfigValue(config)),
		kv.Put(keyspace.StreamIdMappingKey(id), keyspace.SerStreamIdMappingValue(basin, stream)),
	}
	if err := e.store.Apply(ctx, ops); err != nil {
		return StreamInfo{}, apierr.New(apierr.CodeStorage, fmt.Sprintf("create stream: %v", err))
	}
	return StreamInfo{Basin: basin, Name: stream, Config: config}, nil
}

// GetStreamConfig looks up a stream's current configuration.
func (e *Engine) GetStreamConfig(ctx context.Context, basin types.BasinName, stream types.StreamName) (types.StreamConfig, error) {
	val, found, err := e.store.Get(ctx, keyspace.StreamKey(basin, stream), kv.DurabilityRemote)
	if err != nil {
		return types.StreamConfig{}, apierr.New(apierr.CodeStorage, fmt.Sprintf("get stream config: %v", err))
	}
	if !found {
		return types.StreamConfig{}, apierr.New(apierr.CodeStreamNotFound, fmt.Sprintf("stream %q not found in basin %q", stream, basin))
	}
	cfg, err := keyspace.DeserStreamConfigValue(val)
	if err != nil {
		return types.StreamConfig{}, apierr.New(apierr.CodeStorage, fmt.Sprintf("decode stream config: %v", err))
	}
	return cfg, nil
}

// ReconfigureStream applies a partial config update to an existing stream.
// Like Append/Fence/Trim, it is rejected once the owning basin is Deleting.
func (e *Engine) ReconfigureStream(ctx context.Context, basin types.BasinName, stream types.StreamName, patch types.StreamConfigPatch) (StreamInfo, error) {
	if err := e.ensureBasinWritable(ctx, basin); err != nil {
		return StreamInfo{}, err
	}
	cfg, err := e.GetStreamConfig(ctx, basin, stream)
	if err != nil {
		return StreamInfo{}, err
	}
	cfg = cfg.Apply(patch)
	if err := e.store.Apply(ctx, []kv.Op{kv.Put(keyspace.StreamKey(basin, stream), keyspace.SerStreamConfigValue(cfg))}); err != nil {
		return StreamInfo{}, apierr.New(apierr.CodeStorage, fmt.Sprintf("reconfigure stream: %v", err))
	}
	return StreamInfo{Basin: basin, Name: stream, Config: cfg}, nil
}

// ListStreams returns every stream of one basin with the given name
// prefix, in name order, optionally resuming after startAfter.
func (e *Engine) ListStreams(ctx context.Context, basin types.BasinName, prefix string, startAfter types.StreamName, limit int) ([]StreamInfo, error) {
	start, end := keyspace.StreamListRange(basin, startAfter)
	entries, err := e.store.Scan(ctx, start, end, 0, kv.DurabilityRemote)
	if err != nil {
		return nil, apierr.New(apierr.CodeStorage, fmt.Sprintf("list streams: %v", err))
	}
	out := make([]StreamInfo, 0, len(entries))
	for _, ent := range entries {
		_, name, err := keyspace.DeserStreamKey(ent.Key)
		if err != nil {
			continue
		}
		if prefix != "" && !hasPrefix(name.String(), prefix) {
			continue
		}
		cfg, _ := keyspace.DeserStreamConfigValue(ent.Value)
		out = append(out, StreamInfo{Basin: basin, Name: name, Config: cfg})
		if limit > 0 && len(out) >= limit {
			break
		}
	}
	return out, nil
}

// DeleteStream performs explicit (synchronous) stream deletion per
// spec.md §4.6 mode (i): every record, the timestamp index, trim point,
// tail position, id mapping, and the Stream row are range-deleted before
// this call returns, in bounded chunks so a very long stream doesn't
// become one oversized transaction.
func (e *Engine) DeleteStream(ctx context.Context, basin types.BasinName, stream types.StreamName) error {
	streamKey := keyspace.StreamKey(basin, stream)
	if _, found, err := e.store.Get(ctx, streamKey, kv.DurabilityRemote); err != nil {
		return apierr.New(apierr.CodeStorage, fmt.Sprintf("check stream: %v", err))
	} else if !found {
		return apierr.New(apierr.CodeStreamNotFound, fmt.Sprintf("stream %q not found in basin %q", stream, basin))
	}

	id := keyspace.NewStreamID(basin, stream)
	for {
		start, end := keyspace.StreamRecordScanRange(id, 0, 0)
		entries, err := e.store.Scan(ctx, start, end, deletionChunkSize, kv.DurabilityRemote)
		if err != nil {
			return apierr.New(apierr.CodeStorage, fmt.Sprintf("scan records: %v", err))
		}
		if len(entries) == 0 {
			break
		}
		ops := make([]kv.Op, 0, len(entries))
		for _, ent := range entries {
			ops = append(ops, kv.Delete(ent.Key))
		}
		if err := e.store.Apply(ctx, ops); err != nil {
			return apierr.New(apierr.CodeStorage, fmt.Sprintf("delete records: %v", err))
		}
		if len(entries) < deletionChunkSize {
			break
		}
	}

	tsStart, tsEnd := keyspace.StreamRecordTimestampScanRange(id, 0)
	for {
		entries, err := e.store.Scan(ctx, tsStart, tsEnd, deletionChunkSize, kv.DurabilityRemote)
		if err != nil {
			return apierr.New(apierr.CodeStorage, fmt.Sprintf("scan timestamp index: %v", err))
		}
		if len(entries) == 0 {
			break
		}
		ops := make([]kv.Op, 0, len(entries))
		for _, ent := range entries {
			ops = append(ops, kv.Delete(ent.Key))
		}
		if err := e.store.Apply(ctx, ops); err != nil {
			return apierr.New(apierr.CodeStorage, fmt.Sprintf("delete timestamp index: %v", err))
		}
		if len(entries) < deletionChunkSize {
			break
		}
	}

	ops := []kv.Op{
		kv.Delete(keyspace.StreamTrimPointKey(id)),
		kv.Delete(keyspace.StreamTailPositionKey(id)),
		kv.Delete(keyspace.StreamIdMappingKey(id)),
		kv.Delete(streamKey),
	}
	if err := e.store.Apply(ctx, ops); err != nil {
		return apierr.New(apierr.CodeStorage, fmt.Sprintf("delete stream row: %v", err))
	}
	e.ForgetStream(id)
	return nil
}

// deletionChunkSize bounds how many keys a single scan/delete round of
// DeleteStream touches, mirroring internal/lifecycle's DeletionChunkSize
// without importing it (lifecycle imports engine, not the reverse).
const deletionChunkSize = 1000
