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

package keyspace

import (
	"bytes"
	"testing"
	"time"

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

func TestStreamIDDeterministicAndDistinct(t *testing.T) {
	basin := mustBasin(t, "my-basin-1")
	a := NewStreamID(basin, mustStream(t, "alpha"))
	b := NewStreamID(basin, mustStream(t, "alpha"))
	if a != b {
		t.Fatalf("StreamID derivation must be deterministic")
	}
	c := NewStreamID(basin, mustStream(t, "beta"))
	if a == c {
		t.Fatalf("different stream names must not collide")
	}
	// Length-prefixing must stop "ab"+"c" colliding with "a"+"bc".
	d := NewStreamID(mustBasin(t, "basinabcdef"), mustStream(t, "x"))
	e := NewStreamID(mustBasin(t, "basinabcde"), mustStream(t, "fx"))
	if d == e {
		t.Fatalf("length-prefixed hash must not allow component boundary shifting")
	}
}

func TestBasinKeyRoundtrip(t *testing.T) {
	basin := mustBasin(t, "roundtrip-basin")
	key := BasinKey(basin)
	got, err := DeserBasinKey(key)
	if err != nil {
		t.Fatalf("DeserBasinKey: %v", err)
	}
	if got != basin {
		t.Fatalf("got %q, want %q", got, basin)
	}
}

func TestStreamKeyRoundtrip(t *testing.T) {
	basin := mustBasin(t, "roundtrip-basin")
	stream := mustStream(t, "events/orders")
	key := StreamKey(basin, stream)
	gotBasin, gotStream, err := DeserStreamKey(key)
	if err != nil {
		t.Fatalf("DeserStreamKey: %v", err)
	}
	if gotBasin != basin || gotStream != stream {
		t.Fatalf("got (%q,%q), want (%q,%q)", gotBasin, gotStream, basin, stream)
	}
}

func TestStreamIdMappingRoundtrip(t *testing.T) {
	basin := mustBasin(t, "roundtrip-basin")
	stream := mustStream(t, "events/orders")
	id := NewStreamID(basin, stream)

	key := StreamIdMappingKey(id)
	gotID, err := DeserStreamIdMappingKey(key)
	if err != nil {
		t.Fatalf("DeserStreamIdMappingKey: %v", err)
	}
	if gotID != id {
		t.Fatalf("key roundtrip mismatch")
	}

	val := SerStreamIdMappingValue(basin, stream)
	gotBasin, gotStream, err := DeserStreamIdMappingValue(val)
	if err != nil {
		t.Fatalf("DeserStreamIdMappingValue: %v", err)
	}
	if gotBasin != basin || gotStream != stream {
		t.Fatalf("value roundtrip mismatch: got (%q,%q)", gotBasin, gotStream)
	}
}

func TestStreamTailPositionRoundtrip(t *testing.T) {
	id := NewStreamID(mustBasin(t, "roundtrip-basin"), mustStream(t, "s"))
	key := StreamTailPositionKey(id)
	gotID, err := DeserStreamTailPositionKey(key)
	if err != nil || gotID != id {
		t.Fatalf("key roundtrip failed: %v", err)
	}

	pos := types.TailPosition{SeqNum: 42, Timestamp: 1000}
	val := SerStreamTailPositionValue(pos, 1700000000)
	if len(val) != 20 {
		t.Fatalf("expected exactly 20 bytes, got %d", len(val))
	}
	gotPos, wallclock, err := DeserStreamTailPositionValue(val)
	if err != nil {
		t.Fatalf("DeserStreamTailPositionValue: %v", err)
	}
	if gotPos != pos || wallclock != 1700000000 {
		t.Fatalf("value roundtrip mismatch: got %+v %d", gotPos, wallclock)
	}
}

func TestStreamTailPositionValueRequiresExactSize(t *testing.T) {
	_, _, err := DeserStreamTailPositionValue(make([]byte, 15))
	if err == nil {
		t.Fatalf("expected error for wrong-sized value")
	}
}

func TestStreamTrimPointRejectsZero(t *testing.T) {
	if _, err := SerStreamTrimPointValue(0); err == nil {
		t.Fatalf("expected error for zero trim point")
	}
	val, err := SerStreamTrimPointValue(7)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	got, err := DeserStreamTrimPointValue(val)
	if err != nil || got != 7 {
		t.Fatalf("roundtrip failed: got %d, err %v", got, err)
	}
}

func TestStreamRecordKeyOrdersBySeqNum(t *testing.T) {
	id := NewStreamID(mustBasin(t, "roundtrip-basin"), mustStream(t, "s"))
	k1 := StreamRecordKey(id, 1)
	k2 := StreamRecordKey(id, 2)
	k1000 := StreamRecordKey(id, 1000)
	if bytes.Compare(k1, k2) >= 0 {
		t.Fatalf("expected k1 < k2")
	}
	if bytes.Compare(k2, k1000) >= 0 {
		t.Fatalf("expected k2 < k1000: big-endian encoding must preserve numeric order")
	}

	gotID, gotSeq, err := DeserStreamRecordKey(k1000)
	if err != nil || gotID != id || gotSeq != 1000 {
		t.Fatalf("roundtrip failed: %v %v %d", err, gotID, gotSeq)
	}
}

func TestStreamRecordScanRangeIsPrefixBounded(t *testing.T) {
	id := NewStreamID(mustBasin(t, "roundtrip-basin"), mustStream(t, "s"))
	start, end := StreamRecordScanRange(id, 5, 0)
	inRange := StreamRecordKey(id, 5)
	outOfRange := StreamIdMappingKey(id)
	if bytes.Compare(inRange, start) < 0 || (end != nil && bytes.Compare(inRange, end) >= 0) {
		t.Fatalf("record at requested start should be in range")
	}
	if end != nil && bytes.Compare(outOfRange, end) < 0 && bytes.Compare(outOfRange, start) >= 0 {
		t.Fatalf("a different key type must not fall inside the scan range")
	}
}

func TestIncrementBytes(t *testing.T) {
	got, ok := IncrementBytes([]byte{0x01, 0x02})
	if !ok || !bytes.Equal(got, []byte{0x01, 0x03}) {
		t.Fatalf("got %v, ok %v", got, ok)
	}
	got, ok = IncrementBytes([]byte{0x01, 0xFF})
	if !ok || !bytes.Equal(got, []byte{0x02, 0x00}) {
		t.Fatalf("carry failed: got %v, ok %v", got, ok)
	}
	_, ok = IncrementBytes([]byte{0xFF, 0xFF})
	if ok {
		t.Fatalf("all-0xFF input has no successor")
	}
}

func TestDeleteOnEmptyDeadlineOrdering(t *testing.T) {
	id := NewStreamID(mustBasin(t, "roundtrip-basin"), mustStream(t, "s"))
	early := StreamDeleteOnEmptyDeadlineKey(100, id)
	late := StreamDeleteOnEmptyDeadlineKey(200, id)
	if bytes.Compare(early, late) >= 0 {
		t.Fatalf("earlier deadline must sort first")
	}

	gotDeadline, gotID, err := DeserStreamDeleteOnEmptyDeadlineKey(late)
	if err != nil || gotDeadline != 200 || gotID != id {
		t.Fatalf("roundtrip failed: %v %d %v", err, gotDeadline, gotID)
	}

	val := SerStreamDeleteOnEmptyDeadlineValue(90 * time.Second)
	gotAge, err := DeserStreamDeleteOnEmptyDeadlineValue(val)
	if err != nil || gotAge != 90*time.Second {
		t.Fatalf("value roundtrip failed: %v %v", err, gotAge)
	}
}

func TestWrongOrdinalRejected(t *testing.T) {
	id := NewStreamID(mustBasin(t, "roundtrip-basin"), mustStream(t, "s"))
	key := StreamTailPositionKey(id)
	if _, err := DeserStreamTrimPointKey(key); err == nil {
		t.Fatalf("expected InvalidOrdinal error when decoding with the wrong codec")
	}
}
