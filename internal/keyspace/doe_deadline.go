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
	"encoding/binary"
	"time"
)

const (
	doeDeadlineKeyLen   = 1 + 4 + StreamIDLen
	doeDeadlineValueLen = 8
)

// StreamDeleteOnEmptyDeadlineKey: KT | deadline_secs(u32 BE) | StreamId ->
// min_age_secs(u64). Ordering the deadline inside the key prefix turns the
// whole keyspace into a ready-to-scan timer wheel: "find everything due"
// is a single bounded range scan ending at now().

func StreamDeleteOnEmptyDeadlineKey(deadlineSecs uint32, id StreamID) []byte {
	buf := make([]byte, doeDeadlineKeyLen)
	buf[0] = KeyTypeStreamDeleteOnEmptyDeadline.Byte()
	binary.BigEndian.PutUint32(buf[1:5], deadlineSecs)
	copy(buf[5:], id.Bytes())
	return buf
}

func DeserStreamDeleteOnEmptyDeadlineKey(key []byte) (deadlineSecs uint32, id StreamID, err error) {
	if err = checkExactSize(key, doeDeadlineKeyLen); err != nil {
		return 0, StreamID{}, err
	}
	if err = checkOrdinal(key[0], KeyTypeStreamDeleteOnEmptyDeadline); err != nil {
		return 0, StreamID{}, err
	}
	deadlineSecs = binary.BigEndian.Uint32(key[1:5])
	id, err = StreamIDFromBytes(key[5:])
	return deadlineSecs, id, err
}

// ExpiredDeadlineScanRange returns the [start, end) bounds covering every
// deadline at or before nowSecs.
func ExpiredDeadlineScanRange(nowSecs uint32) (start, end []byte) {
	start = []byte{KeyTypeStreamDeleteOnEmptyDeadline.Byte()}
	maxID := StreamID{}
	for i := range maxID {
		maxID[i] = 0xFF
	}
	endKey := StreamDeleteOnEmptyDeadlineKey(nowSecs, maxID)
	end, _ = IncrementBytes(endKey)
	return start, end
}

func SerStreamDeleteOnEmptyDeadlineValue(minAge time.Duration) []byte {
	buf := make([]byte, doeDeadlineValueLen)
	binary.BigEndian.PutUint64(buf, uint64(minAge.Seconds()))
	return buf
}

func DeserStreamDeleteOnEmptyDeadlineValue(b []byte) (time.Duration, error) {
	if err := checkExactSize(b, doeDeadlineValueLen); err != nil {
		return 0, err
	}
	return time.Duration(binary.BigEndian.Uint64(b)) * time.Second, nil
}
