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
	"testing"
	"time"

	"s2lite/internal/apierr"
	"s2lite/internal/keyspace"
	"s2lite/internal/kv"
	"s2lite/internal/kv/memkv"
	"s2lite/internal/types"
)

func mustBasin(t *testing.T, s string) types.BasinName {
	t.Helper()
	n, err := types.ParseBasinName(s)
	if err != nil {
		t.Fatalf("ParseBasinName(%q): %v", s, err)
	}
	return n
}

func mustStream(t *testing.T, s string) types.StreamName {
	t.Helper()
	n, err := types.ParseStreamName(s)
	if err != nil {
		t.Fatalf("ParseStreamName(%q): %v", s, err)
	}
	return n
}

// createStream seeds the Stream row and id-mapping row a real basin/create
// API call would have written, so Append/Read can resolve the stream.
func createStream(t *testing.T, store kv.Store, basin types.BasinName, stream types.StreamName) keyspace.StreamID {
	t.Helper()
	id := keyspace.NewStreamID(basin, stream)
	ops := []kv.Op{
		kv.Put(keyspace.StreamKey(basin, stream), keyspace.SerStreamConfigValue(types.StreamConfig{})),
		kv.Put(keyspace.StreamIdMappingKey(id), keyspace.SerStreamIdMappingValue(basin, stream)),
	}
	if err := store.Apply(context.Background(), ops); err != nil {
		t.Fatalf("seed stream: %v", err)
	}
	return id
}

func newTestEngine(opts ...Option) (*Engine, kv.Store) {
	store := memkv.New()
	return New(store, opts...), store
}

func records(bodies ...string) types.Batch {
	var b types.Batch
	for _, body := range bodies {
		b.Records = append(b.Records, types.Record{Body: []byte(body)})
	}
	return b
}

func TestAppendAssignsContiguousSeqNums(t *testing.T) {
	e, store := newTestEngine()
	basin, stream := mustBasin(t, "test-basin"), mustStream(t, "orders")
	createStream(t, store, basin, stream)

	out, err := e.Append(context.Background(), basin, stream, types.AppendInput{Batch: records("a", "b", "c")})
	if err != nil {
		t.Fatalf("Append: %v", err)
	}
	if out.StartSeqNum != 0 || out.EndSeqNum != 3 {
		t.Fatalf("got start=%d end=%d, want start=0 end=3", out.StartSeqNum, out.EndSeqNum)
	}

	out2, err := e.Append(context.Background(), basin, stream, types.AppendInput{Batch: records("d")})
	if err != nil {
		t.Fatalf("second Append: %v", err)
	}
	if out2.StartSeqNum != 3 || out2.EndSeqNum != 4 {
		t.Fatalf("got start=%d end=%d, want start=3 end=4", out2.StartSeqNum, out2.EndSeqNum)
	}

	tail, err := e.Tail(context.Background(), basin, stream)
	if err != nil {
		t.Fatalf("Tail: %v", err)
	}
	if tail.SeqNum != 4 {
		t.Fatalf("tail.SeqNum = %d, want 4", tail.SeqNum)
	}
}

func TestAppendUnknownStreamNotFound(t *testing.T) {
	e, _ := newTestEngine()
	_, err := e.Append(context.Background(), mustBasin(t, "test-basin"), mustStream(t, "ghost"), types.AppendInput{Batch: records("a")})
	var generic *apierr.Generic
	if !asGeneric(err, &generic) || generic.Code != apierr.CodeStreamNotFound {
		t.Fatalf("got err=%v, want apierr.CodeStreamNotFound", err)
	}
}

func asGeneric(err error, out **apierr.Generic) bool {
	g, ok := err.(*apierr.Generic)
	if ok {
		*out = g
	}
	return ok
}

func TestAppendMatchSeqNumMismatch(t *testing.T) {
	e, store := newTestEngine()
	basin, stream := mustBasin(t, "test-basin"), mustStream(t, "orders")
	createStream(t, store, basin, stream)

	if _, err := e.Append(context.Background(), basin, stream, types.AppendInput{Batch: records("a")}); err != nil {
		t.Fatalf("Append: %v", err)
	}

	_, err := e.Append(context.Background(), basin, stream, types.AppendInput{
		Batch:       records("b"),
		MatchSeqNum: types.MatchSeqNum{Set: true, SeqNum: 0},
	})
	cf, ok := err.(*apierr.AppendConditionFailed)
	if !ok {
		t.Fatalf("got err=%v (%T), want *apierr.AppendConditionFailed", err, err)
	}
	if cf.Reason != apierr.ReasonSeqNumMismatch || cf.ExpectedSeqNum != 1 {
		t.Fatalf("got reason=%v expected=%d, want mismatch/1", cf.Reason, cf.ExpectedSeqNum)
	}

	// The correct match_seq_num succeeds.
	out, err := e.Append(context.Background(), basin, stream, types.AppendInput{
		Batch:       records("b"),
		MatchSeqNum: types.MatchSeqNum{Set: true, SeqNum: 1},
	})
	if err != nil {
		t.Fatalf("Append with correct match_seq_num: %v", err)
	}
	if out.StartSeqNum != 1 {
		t.Fatalf("StartSeqNum = %d, want 1", out.StartSeqNum)
	}
}

func TestFenceRejectsStaleToken(t *testing.T) {
	e, store := newTestEngine()
	basin, stream := mustBasin(t, "test-basin"), mustStream(t, "orders")
	createStream(t, store, basin, stream)

	token, err := types.ParseFencingToken([]byte("epoch-2"))
	if err != nil {
		t.Fatalf("ParseFencingToken: %v", err)
	}
	if _, err := e.Fence(context.Background(), basin, stream, token); err != nil {
		t.Fatalf("Fence: %v", err)
	}

	stale, _ := types.ParseFencingToken([]byte("epoch-1"))
	_, err = e.Append(context.Background(), basin, stream, types.AppendInput{
		Batch:        records("a"),
		FencingToken: types.OptionalValue(stale),
	})
	cf, ok := err.(*apierr.AppendConditionFailed)
	if !ok || cf.Reason != apierr.ReasonFencingTokenMismatch {
		t.Fatalf("got err=%v, want fencing token mismatch", err)
	}

	// The current token succeeds.
	if _, err := e.Append(context.Background(), basin, stream, types.AppendInput{
		Batch:        records("a"),
		FencingToken: types.OptionalValue(token),
	}); err != nil {
		t.Fatalf("Append with current fencing token: %v", err)
	}
}

func TestTrimAdvancesTrimPointAndRejectsPastTail(t *testing.T) {
	e, store := newTestEngine()
	basin, stream := mustBasin(t, "test-basin"), mustStream(t, "orders")
	createStream(t, store, basin, stream)

	if _, err := e.Append(context.Background(), basin, stream, types.AppendInput{Batch: records("a", "b", "c")}); err != nil {
		t.Fatalf("Append: %v", err)
	}

	if _, err := e.Trim(context.Background(), basin, stream, 2); err != nil {
		t.Fatalf("Trim: %v", err)
	}

	st, err := e.getStreamState(context.Background(), basin, stream)
	if err != nil {
		t.Fatalf("getStreamState: %v", err)
	}
	if got := st.snapshotTrimPoint(); got != 2 {
		t.Fatalf("trimPoint = %d, want 2", got)
	}

	_, err = e.Trim(context.Background(), basin, stream, 999)
	var generic *apierr.Generic
	if !asGeneric(err, &generic) || generic.Code != apierr.CodeInvalid {
		t.Fatalf("got err=%v, want CodeInvalid for trim past tail", err)
	}
}

func TestReadHistoricalRoundTrip(t *testing.T) {
	e, store := newTestEngine()
	basin, stream := mustBasin(t, "test-basin"), mustStream(t, "orders")
	createStream(t, store, basin, stream)

	if _, err := e.Append(context.Background(), basin, stream, types.AppendInput{Batch: records("a", "b", "c", "d", "e")}); err != nil {
		t.Fatalf("Append: %v", err)
	}

	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()

	ch, err := e.Read(ctx, basin, stream, ReadRequest{
		Start: types.StartEarliest(),
		Mode:  types.SessionMode{Kind: types.SessionUnary, MaxWait: 50 * time.Millisecond},
	})
	if err != nil {
		t.Fatalf("Read: %v", err)
	}

	var got []types.Record
	var sawTerminal bool
	for out := range ch {
		switch out.Kind {
		case ReadOutputBatch:
			got = append(got, out.Batch.Records...)
		case ReadOutputTerminal:
			sawTerminal = true
			if out.Terminal != TerminalDone {
				t.Fatalf("terminal reason = %v, want TerminalDone", out.Terminal)
			}
		}
	}
	if !sawTerminal {
		t.Fatalf("session ended without a terminal frame")
	}
	if len(got) != 5 {
		t.Fatalf("got %d records, want 5", len(got))
	}
	wantBodies := []string{"a", "b", "c", "d", "e"}
	for i, r := range got {
		if string(r.Body) != wantBodies[i] {
			t.Fatalf("record %d body = %q, want %q", i, r.Body, wantBodies[i])
		}
		if r.SeqNum != uint64(i) {
			t.Fatalf("record %d seq_num = %d, want %d", i, r.SeqNum, i)
		}
		if r.Timestamp == 0 {
			t.Fatalf("record %d timestamp is zero, want assigned wall-clock value", i)
		}
	}
}

func TestReadRespectsCountLimit(t *testing.T) {
	e, store := newTestEngine()
	basin, stream := mustBasin(t, "test-basin"), mustStream(t, "orders")
	createStream(t, store, basin, stream)

	if _, err := e.Append(context.Background(), basin, stream, types.AppendInput{Batch: records("a", "b", "c", "d", "e")}); err != nil {
		t.Fatalf("Append: %v", err)
	}

	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()

	ch, err := e.Read(ctx, basin, stream, ReadRequest{
		Start: types.StartEarliest(),
		Limit: types.ReadLimit{Count: 2},
		Mode:  types.SessionMode{Kind: types.SessionUnary, MaxWait: 50 * time.Millisecond},
	})
	if err != nil {
		t.Fatalf("Read: %v", err)
	}

	var got []types.Record
	for out := range ch {
		if out.Kind == ReadOutputBatch {
			got = append(got, out.Batch.Records...)
		}
	}
	if len(got) != 2 {
		t.Fatalf("got %d records, want 2 (count limit)", len(got))
	}
}

func TestReadStreamingTailSeesLiveAppend(t *testing.T) {
	e, store := newTestEngine(WithHeartbeatInterval(20 * time.Millisecond))
	basin, stream := mustBasin(t, "test-basin"), mustStream(t, "orders")
	createStream(t, store, basin, stream)

	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()

	ch, err := e.Read(ctx, basin, stream, ReadRequest{
		Start: types.StartEarliest(),
		Mode:  types.SessionMode{Kind: types.SessionStreaming},
	})
	if err != nil {
		t.Fatalf("Read: %v", err)
	}

	// Give the session a moment to reach the tail and subscribe before we
	// append, so the new batch arrives over the broadcast hub rather than
	// the historical scan.
	time.Sleep(20 * time.Millisecond)
	if _, err := e.Append(context.Background(), basin, stream, types.AppendInput{Batch: records("live")}); err != nil {
		t.Fatalf("Append: %v", err)
	}

	var sawBatch, sawHeartbeat bool
	for out := range ch {
		switch out.Kind {
		case ReadOutputBatch:
			if len(out.Batch.Records) == 1 && string(out.Batch.Records[0].Body) == "live" {
				sawBatch = true
			}
		case ReadOutputHeartbeat:
			sawHeartbeat = true
		}
		if sawBatch && sawHeartbeat {
			cancel()
		}
	}
	if !sawBatch {
		t.Fatalf("never observed the live-appended batch")
	}
	if !sawHeartbeat {
		t.Fatalf("never observed a heartbeat")
	}
}

func TestReadUnwrittenBelowTrimPoint(t *testing.T) {
	e, store := newTestEngine()
	basin, stream := mustBasin(t, "test-basin"), mustStream(t, "orders")
	createStream(t, store, basin, stream)

	if _, err := e.Append(context.Background(), basin, stream, types.AppendInput{Batch: records("a", "b", "c")}); err != nil {
		t.Fatalf("Append: %v", err)
	}
	if _, err := e.Trim(context.Background(), basin, stream, 2); err != nil {
		t.Fatalf("Trim: %v", err)
	}

	if err := UnwrittenCheck(0, 2); err == nil {
		t.Fatalf("UnwrittenCheck(0, 2) = nil, want *apierr.Unwritten")
	} else if uw, ok := err.(*apierr.Unwritten); !ok || uw.TrimPoint != 2 {
		t.Fatalf("got err=%v, want Unwritten{TrimPoint:2}", err)
	}

	if err := UnwrittenCheck(2, 2); err != nil {
		t.Fatalf("UnwrittenCheck(2, 2) = %v, want nil", err)
	}
}

func TestStreamCountAndEviction(t *testing.T) {
	e, store := newTestEngine(WithEvictionTTL(time.Millisecond))
	basin, stream := mustBasin(t, "test-basin"), mustStream(t, "orders")
	createStream(t, store, basin, stream)

	if _, err := e.Append(context.Background(), basin, stream, types.AppendInput{Batch: records("a")}); err != nil {
		t.Fatalf("Append: %v", err)
	}
	if got := e.StreamCount(); got != 1 {
		t.Fatalf("StreamCount() = %d, want 1", got)
	}

	time.Sleep(5 * time.Millisecond)
	if evicted := e.EvictIdleStreams(); evicted != 1 {
		t.Fatalf("EvictIdleStreams() = %d, want 1", evicted)
	}
	if got := e.StreamCount(); got != 0 {
		t.Fatalf("StreamCount() after eviction = %d, want 0", got)
	}
}
