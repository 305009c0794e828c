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
	"sync/atomic"
	"time"

	"s2lite/internal/apierr"
	"s2lite/internal/keyspace"
	"s2lite/internal/kv"
	"s2lite/internal/metrics"
	"s2lite/internal/types"
)

// TimestampPolicy names the ways a user-supplied record timestamp that would
// violate monotonicity can be handled. Append takes no policy: it always
// clamps (TimestampClamp).
type TimestampPolicy int

const (
	TimestampClamp TimestampPolicy = iota
	TimestampReject
)

// Engine drives the append and read pipelines against a kv.Store. One
// Engine instance owns every basin and stream in a server process, the
// same "one shared singleton, many per-key entries" shape the teacher's
// Store holds over VSA instances.
type Engine struct {
	store   kv.Store
	streams streamStateStore
	now     func() time.Time

	evictionTTL       time.Duration
	heartbeatInterval time.Duration
}

type Option func(*Engine)

// WithClock overrides the wall-clock source, for deterministic tests.
func WithClock(now func() time.Time) Option {
	return func(e *Engine) { e.now = now }
}

func WithEvictionTTL(ttl time.Duration) Option {
	return func(e *Engine) { e.evictionTTL = ttl }
}

// WithHeartbeatInterval overrides how often a streaming read session at the
// tail emits a Heartbeat while idle. Tests shrink this well below the
// default 5s to observe a heartbeat without a real-time sleep.
func WithHeartbeatInterval(d time.Duration) Option {
	return func(e *Engine) { e.heartbeatInterval = d }
}

func New(store kv.Store, opts ...Option) *Engine {
	e := &Engine{
		store:             store,
		now:               time.Now,
		evictionTTL:       10 * time.Minute,
		heartbeatInterval: DefaultHeartbeatInterval,
	}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

// resolveStreamID confirms the Stream row is present, returning the derived
// StreamID. It does not create the stream and does not read the id-mapping.
func (e *Engine) resolveStreamID(ctx context.Context, basin types.BasinName, stream types.StreamName) (keyspace.StreamID, error) {
	id := keyspace.NewStreamID(basin, stream)
	_, found, err := e.store.Get(ctx, keyspace.StreamKey(basin, stream), kv.DurabilityRemote)
	if err != nil {
		return id, fmt.Errorf("engine: lookup stream: %w", err)
	}
	if !found {
		return id, apierr.New(apierr.CodeStreamNotFound, fmt.Sprintf("stream %q not found in basin %q", stream, basin))
	}
	return id, nil
}

// ensureBasinWritable rejects any write (append/fence/trim) against a basin
// that has been marked Deleting: spec.md §3 allows a stream in a Deleting
// basin to keep serving reads until removed, but appends are rejected. A
// basin that doesn't exist at all is left for resolveStreamID's
// CodeStreamNotFound to report, rather than a second not-found path here.
func (e *Engine) ensureBasinWritable(ctx context.Context, basin types.BasinName) error {
	info, err := e.GetBasin(ctx, basin)
	if g, ok := err.(*apierr.Generic); ok && g.Code == apierr.CodeBasinNotFound {
		return nil
	}
	if err != nil {
		return err
	}
	if info.State == BasinDeleting {
		return apierr.New(apierr.CodeBasinDeletionPending, fmt.Sprintf("basin %q is being deleted", basin))
	}
	return nil
}

// loadTail returns the stream's durable tail position, used on a
// cold cache miss (first append/read after process start or eviction).
func (e *Engine) loadTail(ctx context.Context, id keyspace.StreamID) (types.TailPosition, error) {
	val, found, err := e.store.Get(ctx, keyspace.StreamTailPositionKey(id), kv.DurabilityRemote)
	if err != nil {
		return types.TailPosition{}, fmt.Errorf("engine: load tail: %w", err)
	}
	if !found {
		return types.TailPosition{}, nil
	}
	pos, _, err := keyspace.DeserStreamTailPositionValue(val)
	if err != nil {
		return types.TailPosition{}, fmt.Errorf("engine: decode tail: %w", err)
	}
	return pos, nil
}

func (e *Engine) loadTrimPoint(ctx context.Context, id keyspace.StreamID) (uint64, error) {
	val, found, err := e.store.Get(ctx, keyspace.StreamTrimPointKey(id), kv.DurabilityRemote)
	if err != nil {
		return 0, fmt.Errorf("engine: load trim point: %w", err)
	}
	if !found {
		return 0, nil
	}
	return keyspace.DeserStreamTrimPointValue(val)
}

// coldLoad populates a freshly created streamState from durable storage the
// first time it's touched, so a process restart doesn't forget an
// in-flight stream's tail.
func (e *Engine) coldLoad(ctx context.Context, st *streamState) error {
	st.mu.Lock()
	defer st.mu.Unlock()
	if st.coldLoaded {
		return nil
	}
	tail, err := e.loadTail(ctx, st.id)
	if err != nil {
		return err
	}
	trimPoint, err := e.loadTrimPoint(ctx, st.id)
	if err != nil {
		return err
	}
	st.tail = tail
	st.trimPoint = trimPoint
	st.coldLoaded = true
	return nil
}

func (e *Engine) getStreamState(ctx context.Context, basin types.BasinName, stream types.StreamName) (*streamState, error) {
	id, err := e.resolveStreamID(ctx, basin, stream)
	if err != nil {
		return nil, err
	}
	st := e.streams.getOrCreate(id)
	if err := e.coldLoad(ctx, st); err != nil {
		return nil, err
	}
	return st, nil
}

// Append performs one append attempt end to end: lock, condition checks,
// timestamp/seq assignment, atomic KV write, cache update, broadcast.
func (e *Engine) Append(ctx context.Context, basin types.BasinName, stream types.StreamName, in types.AppendInput) (types.AppendOutput, error) {
	start := e.now()
	defer func() { metrics.ObserveAppend(e.now().Sub(start), len(in.Batch.Records)) }()

	if err := in.Batch.Validate(); err != nil {
		return types.AppendOutput{}, apierr.New(apierr.CodeInvalid, err.Error())
	}
	if err := e.ensureBasinWritable(ctx, basin); err != nil {
		return types.AppendOutput{}, err
	}

	st, err := e.getStreamState(ctx, basin, stream)
	if err != nil {
		return types.AppendOutput{}, err
	}
	cfg, err := e.GetStreamConfig(ctx, basin, stream)
	if err != nil {
		return types.AppendOutput{}, err
	}

	st.appendMu.Lock()
	defer st.appendMu.Unlock()

	tail := st.snapshotTail()
	currentToken := st.snapshotFencingToken()

	if in.MatchSeqNum.Set && in.MatchSeqNum.SeqNum != tail.SeqNum {
		metrics.ObserveConditionFailure(string(apierr.ReasonSeqNumMismatch))
		return types.AppendOutput{}, &apierr.AppendConditionFailed{
			Reason:         apierr.ReasonSeqNumMismatch,
			ExpectedSeqNum: tail.SeqNum,
			ActualSeqNum:   in.MatchSeqNum.SeqNum,
		}
	}
	if token, ok := in.FencingToken.Value(); ok && !token.Equal(currentToken) {
		metrics.ObserveConditionFailure(string(apierr.ReasonFencingTokenMismatch))
		return types.AppendOutput{}, &apierr.AppendConditionFailed{
			Reason:         apierr.ReasonFencingTokenMismatch,
			ExpectedSeqNum: tail.SeqNum,
		}
	}

	startPos := tail
	var ops []kv.Op
	lastTs := tail.Timestamp
	nextSeq := tail.SeqNum

	for i := range in.Batch.Records {
		r := &in.Batch.Records[i]
		ts := r.Timestamp
		switch cfg.Timestamping {
		case types.TimestampingModeClientRequire:
			if ts == 0 {
				return types.AppendOutput{}, apierr.New(apierr.CodeInvalid, "record timestamp is required by this stream's timestamping mode")
			}
		case types.TimestampingModeArrival:
			ts = uint64(e.now().UnixMilli())
		default: // TimestampingModeClientPrefer
			if ts == 0 {
				ts = uint64(e.now().UnixMilli())
			}
		}
		if ts < lastTs {
			ts = lastTs // TimestampClamp: monotonic clamp is the default policy
		}
		r.SeqNum = nextSeq
		r.Timestamp = ts
		lastTs = ts

		ops = append(ops,
			kv.Put(keyspace.StreamRecordKey(st.id, nextSeq), encodeEnvelope(*r)),
			kv.Put(keyspace.StreamRecordTimestampKey(st.id, types.TailPosition{SeqNum: nextSeq, Timestamp: ts}), keyspace.SerStreamRecordTimestampValue()),
		)
		nextSeq++
	}

	newTail := types.TailPosition{SeqNum: nextSeq, Timestamp: lastTs}
	ops = append(ops, kv.Put(keyspace.StreamTailPositionKey(st.id), keyspace.SerStreamTailPositionValue(newTail, uint32(e.now().Unix()))))

	if err := e.store.Apply(ctx, ops); err != nil {
		return types.AppendOutput{}, apierr.New(apierr.CodeStorage, fmt.Sprintf("append commit: %v", err))
	}

	st.mu.Lock()
	st.tail = newTail
	st.mu.Unlock()
	st.touch()

	st.hub.publish(ReadBatch{Records: append([]types.Record(nil), in.Batch.Records...)})

	return types.AppendOutput{
		StartSeqNum:    startPos.SeqNum,
		EndSeqNum:      newTail.SeqNum,
		StartTimestamp: startPos.Timestamp,
		EndTimestamp:   newTail.Timestamp,
	}, nil
}

// Fence applies a fence command: it writes a command log entry at the
// stream's next seq_num and mutates the current fencing token in the same
// transaction, so a reader scanning the log sees exactly why writes after
// this point required the new token.
func (e *Engine) Fence(ctx context.Context, basin types.BasinName, stream types.StreamName, token types.FencingToken) (types.AppendOutput, error) {
	if err := e.ensureBasinWritable(ctx, basin); err != nil {
		return types.AppendOutput{}, err
	}
	st, err := e.getStreamState(ctx, basin, stream)
	if err != nil {
		return types.AppendOutput{}, err
	}
	st.appendMu.Lock()
	defer st.appendMu.Unlock()

	tail := st.snapshotTail()
	seqNum := tail.SeqNum
	ts := uint64(e.now().UnixMilli())
	if ts < tail.Timestamp {
		ts = tail.Timestamp
	}

	ops := []kv.Op{
		kv.Put(keyspace.StreamRecordKey(st.id, seqNum), encodeFenceCommand(token)),
		kv.Put(keyspace.StreamRecordTimestampKey(st.id, types.TailPosition{SeqNum: seqNum, Timestamp: ts}), keyspace.SerStreamRecordTimestampValue()),
	}
	newTail := types.TailPosition{SeqNum: seqNum + 1, Timestamp: ts}
	ops = append(ops, kv.Put(keyspace.StreamTailPositionKey(st.id), keyspace.SerStreamTailPositionValue(newTail, uint32(e.now().Unix()))))

	if err := e.store.Apply(ctx, ops); err != nil {
		return types.AppendOutput{}, apierr.New(apierr.CodeStorage, fmt.Sprintf("fence commit: %v", err))
	}

	st.mu.Lock()
	st.tail = newTail
	st.fencingToken = token
	st.mu.Unlock()
	st.touch()

	return types.AppendOutput{StartSeqNum: seqNum, EndSeqNum: newTail.SeqNum, StartTimestamp: ts, EndTimestamp: ts}, nil
}

// Trim writes a trim command and advances the stream's trim point in the
// same transaction; the actual below-trim-point record deletion happens
// asynchronously via internal/lifecycle so a trim call stays O(1).
func (e *Engine) Trim(ctx context.Context, basin types.BasinName, stream types.StreamName, trimSeqNum uint64) (types.AppendOutput, error) {
	if err := e.ensureBasinWritable(ctx, basin); err != nil {
		return types.AppendOutput{}, err
	}
	st, err := e.getStreamState(ctx, basin, stream)
	if err != nil {
		return types.AppendOutput{}, err
	}
	st.appendMu.Lock()
	defer st.appendMu.Unlock()

	tail := st.snapshotTail()
	if trimSeqNum > tail.SeqNum {
		return types.AppendOutput{}, apierr.New(apierr.CodeInvalid, "trim point may not exceed the current tail")
	}

	seqNum := tail.SeqNum
	ts := uint64(e.now().UnixMilli())
	if ts < tail.Timestamp {
		ts = tail.Timestamp
	}

	trimVal, err := keyspace.SerStreamTrimPointValue(trimSeqNum)
	if err != nil {
		// trimSeqNum == 0: nothing to trim yet, a no-op rather than an error.
		st.touch()
		return types.AppendOutput{StartSeqNum: seqNum, EndSeqNum: seqNum, StartTimestamp: ts, EndTimestamp: ts}, nil
	}

	ops := []kv.Op{
		kv.Put(keyspace.StreamRecordKey(st.id, seqNum), encodeTrimCommand(trimSeqNum)),
		kv.Put(keyspace.StreamRecordTimestampKey(st.id, types.TailPosition{SeqNum: seqNum, Timestamp: ts}), keyspace.SerStreamRecordTimestampValue()),
		kv.Put(keyspace.StreamTrimPointKey(st.id), trimVal),
	}
	newTail := types.TailPosition{SeqNum: seqNum + 1, Timestamp: ts}
	ops = append(ops, kv.Put(keyspace.StreamTailPositionKey(st.id), keyspace.SerStreamTailPositionValue(newTail, uint32(e.now().Unix()))))

	// A trim that covers every record appended so far leaves the stream
	// empty of user data; if its config opts into delete-on-empty, arm the
	// timer-wheel deadline lifecycle.sweepExpiredDeadlines polls.
	if trimSeqNum == tail.SeqNum {
		if cfg, err := e.GetStreamConfig(ctx, basin, stream); err == nil && cfg.DeleteOnEmptyMinAge > 0 {
			deadlineSecs := uint32(e.now().Add(cfg.DeleteOnEmptyMinAge).Unix())
			ops = append(ops, kv.Put(
				keyspace.StreamDeleteOnEmptyDeadlineKey(deadlineSecs, st.id),
				keyspace.SerStreamDeleteOnEmptyDeadlineValue(cfg.DeleteOnEmptyMinAge),
			))
		}
	}

	if err := e.store.Apply(ctx, ops); err != nil {
		return types.AppendOutput{}, apierr.New(apierr.CodeStorage, fmt.Sprintf("trim commit: %v", err))
	}

	st.mu.Lock()
	st.tail = newTail
	st.trimPoint = trimSeqNum
	st.mu.Unlock()
	st.touch()

	return types.AppendOutput{StartSeqNum: seqNum, EndSeqNum: newTail.SeqNum, StartTimestamp: ts, EndTimestamp: ts}, nil
}

// Tail returns the current cached tail position, for the
// GET .../records/tail endpoint. It reads the Stream row to confirm the
// stream exists, and loads the tail from storage on a cold cache miss.
func (e *Engine) Tail(ctx context.Context, basin types.BasinName, stream types.StreamName) (types.TailPosition, error) {
	st, err := e.getStreamState(ctx, basin, stream)
	if err != nil {
		return types.TailPosition{}, err
	}
	return st.snapshotTail(), nil
}

// StreamCount reports how many stream states are currently cached
// in-process, for metrics.
func (e *Engine) StreamCount() int {
	count := 0
	e.streams.forEach(func(keyspace.StreamID, *streamState) { count++ })
	metrics.StreamsCached.Set(float64(count))
	return count
}

// evictIdleStreams is invoked by internal/lifecycle's periodic sweep.
func (e *Engine) evictIdleStreams(ttl time.Duration) int {
	var evicted int32
	e.streams.forEach(func(id keyspace.StreamID, _ *streamState) {
		if e.streams.evictIfIdle(id, ttl) {
			atomic.AddInt32(&evicted, 1)
		}
	})
	return int(evicted)
}

// EvictIdleStreams is the exported hook lifecycle's eviction task calls.
func (e *Engine) EvictIdleStreams() int {
	return e.evictIdleStreams(e.evictionTTL)
}

// ForgetStream drops a stream's cached state, used by internal/lifecycle
// once it has deleted the stream's durable keys so a stale cache entry
// can't keep serving reads/appends against data that no longer exists.
func (e *Engine) ForgetStream(id keyspace.StreamID) {
	e.streams.delete(id)
}

// LookupStreamID resolves a basin/stream pair's StreamID without requiring
// the Stream row to exist, for callers (like internal/lifecycle) that
// already know the stream existed and need its id to build deletion keys.
func LookupStreamID(basin types.BasinName, stream types.StreamName) keyspace.StreamID {
	return keyspace.NewStreamID(basin, stream)
}
