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
	"time"

	"s2lite/internal/apierr"
	"s2lite/internal/keyspace"
	"s2lite/internal/kv"
	"s2lite/internal/metrics"
	"s2lite/internal/types"
)

// FollowerMaxLag bounds how far behind a live tail subscriber may fall
// (in undelivered broadcast batches) before it is dropped.
const FollowerMaxLag = 25

// DefaultHeartbeatInterval is how often a streaming session emits a
// Heartbeat(tail) while idle at the tail, so clients can confirm liveness.
const DefaultHeartbeatInterval = 5 * time.Second

// DefaultMaxWait is the long-poll deadline for SessionUnary reads with no
// caller-supplied override.
const DefaultMaxWait = 60 * time.Second

type TerminalReason string

const (
	TerminalDone            TerminalReason = "done"
	TerminalLagged          TerminalReason = "lagged"
	TerminalStreamNotFound  TerminalReason = "stream_not_found"
	TerminalStorage         TerminalReason = "storage"
)

type ReadOutputKind int

const (
	ReadOutputBatch ReadOutputKind = iota
	ReadOutputHeartbeat
	ReadOutputTerminal
)

// ReadSessionOutput is one frame of a read session: a batch of records, a
// liveness heartbeat carrying the current tail, or a terminal signal.
type ReadSessionOutput struct {
	Kind      ReadOutputKind
	Batch     ReadBatch
	Heartbeat types.TailPosition
	Terminal  TerminalReason
}

// ReadRequest bundles every parameter of a read call.
type ReadRequest struct {
	Start types.ReadStart
	End   types.ReadUntil
	Limit types.ReadLimit
	Mode  types.SessionMode
}

// resolveStart turns a caller's ReadStart into a concrete seq_num to begin
// scanning from, given the stream's current trim point and tail.
func resolveStart(ctx context.Context, store kv.Store, id keyspace.StreamID, trimPoint uint64, tail types.TailPosition, start types.ReadStart) (uint64, error) {
	switch start.Kind {
	case types.ReadStartEarliest:
		return trimPoint, nil
	case types.ReadStartLatest:
		return tail.SeqNum, nil
	case types.ReadStartSeqNum:
		if err := UnwrittenCheck(start.SeqNum, trimPoint); err != nil {
			if uw, ok := err.(*apierr.Unwritten); ok {
				uw.Tail = tail.SeqNum
			}
			return 0, err
		}
		return start.SeqNum, nil
	case types.ReadStartTailOffset:
		if start.Offset >= tail.SeqNum {
			return trimPoint, nil
		}
		at := tail.SeqNum - start.Offset
		if at < trimPoint {
			at = trimPoint
		}
		return at, nil
	case types.ReadStartTimestamp:
		scanStart, scanEnd := keyspace.StreamRecordTimestampScanRange(id, start.Timestamp)
		entries, err := store.Scan(ctx, scanStart, scanEnd, 1, kv.DurabilityRemote)
		if err != nil {
			return 0, fmt.Errorf("engine: resolve timestamp start: %w", err)
		}
		if len(entries) == 0 {
			return tail.SeqNum, nil
		}
		_, pos, err := keyspace.DeserStreamRecordTimestampKey(entries[0].Key)
		if err != nil {
			return 0, fmt.Errorf("engine: decode timestamp index entry: %w", err)
		}
		return pos.SeqNum, nil
	default:
		return trimPoint, nil
	}
}

// resolveEndSeqNum turns a ReadUntil bound into an exclusive upper seq_num,
// or 0 (meaning unbounded / scan to tail) if End is unset.
func resolveEndSeqNum(ctx context.Context, store kv.Store, id keyspace.StreamID, end types.ReadUntil) (uint64, error) {
	switch end.Kind {
	case types.ReadUntilNone:
		return 0, nil
	case types.ReadUntilSeqNum:
		return end.SeqNum, nil
	case types.ReadUntilTimestamp:
		scanStart, scanEnd := keyspace.StreamRecordTimestampScanRange(id, end.Timestamp)
		entries, err := store.Scan(ctx, scanStart, scanEnd, 1, kv.DurabilityRemote)
		if err != nil {
			return 0, fmt.Errorf("engine: resolve timestamp end: %w", err)
		}
		if len(entries) == 0 {
			return 0, nil
		}
		_, pos, err := keyspace.DeserStreamRecordTimestampKey(entries[0].Key)
		if err != nil {
			return 0, err
		}
		return pos.SeqNum, nil
	default:
		return 0, nil
	}
}

const (
	historicalBatchMaxCount = types.RecordBatchMaxCount
	historicalBatchMaxBytes = types.RecordBatchMaxBytes
)

// Read opens a read session and streams ReadSessionOutput frames onto the
// returned channel until the request is satisfied, the limit is exhausted,
// the context is cancelled, or (Streaming mode) the caller stops reading.
// The channel is always closed after a Terminal frame.
func (e *Engine) Read(ctx context.Context, basin types.BasinName, stream types.StreamName, req ReadRequest) (<-chan ReadSessionOutput, error) {
	id, err := e.resolveStreamID(ctx, basin, stream)
	if err != nil {
		return nil, err
	}
	st := e.streams.getOrCreate(id)
	if err := e.coldLoad(ctx, st); err != nil {
		return nil, err
	}

	tail := st.snapshotTail()
	trimPoint := st.snapshotTrimPoint()
	if _, err := resolveStart(ctx, e.store, st.id, trimPoint, tail, req.Start); err != nil {
		return nil, err
	}

	out := make(chan ReadSessionOutput, 1)
	go e.runReadSession(ctx, st, req, out)
	return out, nil
}

func (e *Engine) runReadSession(ctx context.Context, st *streamState, req ReadRequest, out chan<- ReadSessionOutput) {
	defer close(out)

	tail := st.snapshotTail()
	trimPoint := st.snapshotTrimPoint()

	startSeq, err := resolveStart(ctx, e.store, st.id, trimPoint, tail, req.Start)
	if err != nil {
		sendTerminal(ctx, out, TerminalStorage)
		return
	}
	endSeqExclusive, err := resolveEndSeqNum(ctx, e.store, st.id, req.End)
	if err != nil {
		sendTerminal(ctx, out, TerminalStorage)
		return
	}

	limit := types.NewEvaluatedReadLimit(req.Limit)

	cursor := startSeq
	for {
		tail = st.snapshotTail()
		scanEnd := tail.SeqNum
		if endSeqExclusive != 0 && endSeqExclusive < scanEnd {
			scanEnd = endSeqExclusive
		}
		if cursor >= scanEnd {
			break
		}
		if limit.Exhausted() {
			sendTerminal(ctx, out, TerminalDone)
			return
		}

		batch, nextCursor, err := e.scanHistoricalBatch(ctx, st.id, cursor, scanEnd, limit)
		if err != nil {
			sendTerminal(ctx, out, TerminalStorage)
			return
		}
		if len(batch.Records) > 0 {
			select {
			case out <- ReadSessionOutput{Kind: ReadOutputBatch, Batch: batch}:
			case <-ctx.Done():
				return
			}
			if req.Mode.Kind == types.SessionUnary {
				sendTerminal(ctx, out, TerminalDone)
				return
			}
		}
		if nextCursor == cursor {
			break // no progress possible (the limit refused the next record, or the scan found nothing)
		}
		cursor = nextCursor
	}

	if limit.Exhausted() {
		sendTerminal(ctx, out, TerminalDone)
		return
	}
	if endSeqExclusive != 0 && cursor >= endSeqExclusive {
		sendTerminal(ctx, out, TerminalDone)
		return
	}

	if req.Mode.Kind == types.SessionUnary {
		e.runUnaryTailWait(ctx, st, req, out)
		return
	}

	e.runStreamingTail(ctx, st, req, cursor, endSeqExclusive, out)
}

func (e *Engine) scanHistoricalBatch(ctx context.Context, id keyspace.StreamID, fromSeq, toSeqExclusive uint64, limit *types.EvaluatedReadLimit) (ReadBatch, uint64, error) {
	scanStarted := e.now()
	defer func() { metrics.ObserveReadScan(e.now().Sub(scanStarted)) }()

	start, end := keyspace.StreamRecordScanRange(id, fromSeq, toSeqExclusive)
	entries, err := e.store.Scan(ctx, start, end, historicalBatchMaxCount, kv.DurabilityRemote)
	if err != nil {
		return ReadBatch{}, fromSeq, err
	}

	var batch ReadBatch
	var bytesUsed int
	cursor := fromSeq
	for _, ent := range entries {
		_, seqNum, err := keyspace.DeserStreamRecordKey(ent.Key)
		if err != nil {
			return ReadBatch{}, fromSeq, err
		}
		decoded, err := decodeEnvelope(ent.Value)
		if err != nil {
			return ReadBatch{}, fromSeq, err
		}
		if decoded.Tag != tagRecord {
			cursor = seqNum + 1
			continue // command records are log entries, not data returned to readers
		}
		rec := decoded.Record
		rec.SeqNum = seqNum
		meteredSize := rec.MeteredSize()
		if !limit.Allow(meteredSize) {
			return batch, cursor, nil
		}
		if bytesUsed+int(meteredSize) > historicalBatchMaxBytes && len(batch.Records) > 0 {
			return batch, cursor, nil
		}
		batch.Records = append(batch.Records, rec)
		bytesUsed += int(meteredSize)
		cursor = seqNum + 1
		if len(batch.Records) >= historicalBatchMaxCount {
			return batch, cursor, nil
		}
	}
	return batch, cursor, nil
}

func (e *Engine) runUnaryTailWait(ctx context.Context, st *streamState, req ReadRequest, out chan<- ReadSessionOutput) {
	maxWait := req.Mode.MaxWait
	if maxWait <= 0 {
		maxWait = DefaultMaxWait
	}
	ch := st.hub.subscribe()
	defer st.hub.unsubscribe(ch)

	timer := time.NewTimer(maxWait)
	defer timer.Stop()

	select {
	case batch, ok := <-ch:
		if ok {
			select {
			case out <- ReadSessionOutput{Kind: ReadOutputBatch, Batch: batch}:
			case <-ctx.Done():
				return
			}
		}
	case <-timer.C:
		// Deadline with nothing new: the session ends with Done and no
		// batch, so a unary caller gets zero records; the tail position is
		// not sent.
	case <-ctx.Done():
		return
	}
	sendTerminal(ctx, out, TerminalDone)
}

func (e *Engine) runStreamingTail(ctx context.Context, st *streamState, req ReadRequest, cursor, endSeqExclusive uint64, out chan<- ReadSessionOutput) {
	ch := st.hub.subscribe()
	defer st.hub.unsubscribe(ch)

	interval := e.heartbeatInterval
	if interval <= 0 {
		interval = DefaultHeartbeatInterval
	}
	heartbeat := time.NewTicker(interval)
	defer heartbeat.Stop()

	lag := 0
	for {
		select {
		case batch, ok := <-ch:
			if !ok {
				sendTerminal(ctx, out, TerminalLagged)
				return
			}
			lag++
			if lag > FollowerMaxLag {
				metrics.LaggedSubscribersTotal.Inc()
				sendTerminal(ctx, out, TerminalLagged)
				return
			}
			filtered := filterByEnd(batch, endSeqExclusive)
			if len(filtered.Records) > 0 {
				select {
				case out <- ReadSessionOutput{Kind: ReadOutputBatch, Batch: filtered}:
					lag = 0
				case <-ctx.Done():
					return
				}
			}
			if endSeqExclusive != 0 && len(batch.Records) > 0 && batch.Records[len(batch.Records)-1].SeqNum+1 >= endSeqExclusive {
				sendTerminal(ctx, out, TerminalDone)
				return
			}
		case <-heartbeat.C:
			tail := st.snapshotTail()
			select {
			case out <- ReadSessionOutput{Kind: ReadOutputHeartbeat, Heartbeat: tail}:
			case <-ctx.Done():
				return
			}
		case <-ctx.Done():
			return
		}
	}
}

func filterByEnd(batch ReadBatch, endSeqExclusive uint64) ReadBatch {
	if endSeqExclusive == 0 {
		return batch
	}
	var out ReadBatch
	for _, r := range batch.Records {
		if r.SeqNum >= endSeqExclusive {
			break
		}
		out.Records = append(out.Records, r)
	}
	return out
}

func sendTerminal(ctx context.Context, out chan<- ReadSessionOutput, reason TerminalReason) {
	select {
	case out <- ReadSessionOutput{Kind: ReadOutputTerminal, Terminal: reason}:
	case <-ctx.Done():
	}
}

// UnwrittenCheck returns an *apierr.Unwritten if fromSeqNum has already
// been trimmed away, for callers to check before starting a read.
func UnwrittenCheck(fromSeqNum, trimPoint uint64) error {
	if fromSeqNum < trimPoint {
		return &apierr.Unwritten{TrimPoint: trimPoint}
	}
	return nil
}
