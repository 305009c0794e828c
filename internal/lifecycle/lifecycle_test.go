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

package lifecycle

import (
	"context"
	"testing"
	"time"

	"s2lite/internal/engine"
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

func seedStream(t *testing.T, store kv.Store, basin types.BasinName, stream types.StreamName) keyspace.StreamID {
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

func TestAdvanceBasinDeletionRemovesStreamsAndMarker(t *testing.T) {
	store := memkv.New()
	eng := engine.New(store)
	basin := mustBasin(t, "lifecycle-test")
	s1, s2 := mustStream(t, "alpha"), mustStream(t, "beta")
	seedStream(t, store, basin, s1)
	seedStream(t, store, basin, s2)

	ctx := context.Background()
	if err := store.Apply(ctx, []kv.Op{
		kv.Put(keyspace.BasinKey(basin), []byte{}),
		kv.Put(keyspace.BasinDeletionPendingKey(basin), keyspace.SerBasinDeletionPendingValue("")),
	}); err != nil {
		t.Fatalf("mark basin pending: %v", err)
	}

	c := New(store, eng, WithWorkerCount(1))

	// First pass deletes both streams and records the cursor.
	if err := c.advanceBasinDeletion(ctx, basin); err != nil {
		t.Fatalf("advanceBasinDeletion: %v", err)
	}
	if _, found, _ := store.Get(ctx, keyspace.StreamKey(basin, s1), kv.DurabilityRemote); found {
		t.Fatalf("stream %q still present after deletion pass", s1)
	}
	if _, found, _ := store.Get(ctx, keyspace.StreamKey(basin, s2), kv.DurabilityRemote); found {
		t.Fatalf("stream %q still present after deletion pass", s2)
	}

	// Second pass finds no remaining streams and clears the marker + basin row.
	if err := c.advanceBasinDeletion(ctx, basin); err != nil {
		t.Fatalf("advanceBasinDeletion (final): %v", err)
	}
	if _, found, _ := store.Get(ctx, keyspace.BasinDeletionPendingKey(basin), kv.DurabilityRemote); found {
		t.Fatalf("deletion-pending marker still present")
	}
	if _, found, _ := store.Get(ctx, keyspace.BasinKey(basin), kv.DurabilityRemote); found {
		t.Fatalf("basin row still present")
	}
}

func TestTrimGCStreamDeletesBelowTrimPoint(t *testing.T) {
	store := memkv.New()
	eng := engine.New(store)
	basin, stream := mustBasin(t, "lifecycle-test"), mustStream(t, "orders")
	seedStream(t, store, basin, stream)

	ctx := context.Background()
	if _, err := eng.Append(ctx, basin, stream, types.AppendInput{Batch: types.Batch{Records: []types.Record{
		{Body: []byte("a")}, {Body: []byte("b")}, {Body: []byte("c")},
	}}}); err != nil {
		t.Fatalf("Append: %v", err)
	}
	if _, err := eng.Trim(ctx, basin, stream, 2); err != nil {
		t.Fatalf("Trim: %v", err)
	}

	id := keyspace.NewStreamID(basin, stream)
	c := New(store, eng, WithWorkerCount(1))
	if err := c.trimGCStream(ctx, id); err != nil {
		t.Fatalf("trimGCStream: %v", err)
	}

	start, end := keyspace.StreamRecordScanRange(id, 0, 0)
	entries, err := store.Scan(ctx, start, end, 0, kv.DurabilityRemote)
	if err != nil {
		t.Fatalf("Scan: %v", err)
	}
	// Record at seq_num 2 survives (trim point) plus the trim command log
	// entry written at seq_num 3 by Trim itself.
	for _, ent := range entries {
		_, seqNum, err := keyspace.DeserStreamRecordKey(ent.Key)
		if err != nil {
			t.Fatalf("DeserStreamRecordKey: %v", err)
		}
		if seqNum < 2 {
			t.Fatalf("record at seq_num %d should have been garbage collected", seqNum)
		}
	}

	tsStart, tsEnd := keyspace.StreamRecordTimestampScanRange(id, 0)
	tsEntries, err := store.Scan(ctx, tsStart, tsEnd, 0, kv.DurabilityRemote)
	if err != nil {
		t.Fatalf("Scan timestamp index: %v", err)
	}
	for _, ent := range tsEntries {
		_, pos, err := keyspace.DeserStreamRecordTimestampKey(ent.Key)
		if err != nil {
			t.Fatalf("DeserStreamRecordTimestampKey: %v", err)
		}
		if pos.SeqNum < 2 {
			t.Fatalf("timestamp index entry at seq_num %d should have been garbage collected", pos.SeqNum)
		}
	}
}

func TestSweepExpiredDeadlinesDeletesEmptyStream(t *testing.T) {
	store := memkv.New()
	eng := engine.New(store)
	basin, stream := mustBasin(t, "lifecycle-test"), mustStream(t, "ephemeral")
	id := seedStream(t, store, basin, stream)

	ctx := context.Background()
	pastDeadline := uint32(time.Now().Add(-time.Hour).Unix())
	if err := store.Apply(ctx, []kv.Op{
		kv.Put(keyspace.StreamDeleteOnEmptyDeadlineKey(pastDeadline, id), keyspace.SerStreamDeleteOnEmptyDeadlineValue(0)),
	}); err != nil {
		t.Fatalf("seed deadline: %v", err)
	}

	c := New(store, eng, WithWorkerCount(1))
	if err := c.sweepExpiredDeadlines(ctx, "cleanup-0"); err != nil {
		t.Fatalf("sweepExpiredDeadlines: %v", err)
	}

	if _, found, _ := store.Get(ctx, keyspace.StreamKey(basin, stream), kv.DurabilityRemote); found {
		t.Fatalf("empty stream past its deadline should have been deleted")
	}
}
