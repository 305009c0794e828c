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

	"s2lite/internal/types"
)

const streamRecordTimestampKeyLen = 1 + StreamIDLen + 8 + 8

// StreamRecordTimestampKey: KT | StreamId | Timestamp(u64 BE) |
// SeqNum(u64 BE) -> empty value. A secondary index letting reads-by-time
// resolve a starting seq_num with a bounded range scan instead of a linear
// search over every record.

func StreamRecordTimestampKey(id StreamID, pos types.TailPosition) []byte {
	buf := make([]byte, streamRecordTimestampKeyLen)
	buf[0] = KeyTypeStreamRecordTimestamp.Byte()
	copy(buf[1:1+StreamIDLen], id.Bytes())
	binary.BigEndian.PutUint64(buf[1+StreamIDLen:9+StreamIDLen], pos.Timestamp)
	binary.BigEndian.PutUint64(buf[9+StreamIDLen:], pos.SeqNum)
	return buf
}

func DeserStreamRecordTimestampKey(key []byte) (StreamID, types.TailPosition, error) {
	if err := checkExactSize(key, streamRecordTimestampKeyLen); err != nil {
		return StreamID{}, types.TailPosition{}, err
	}
	if err := checkOrdinal(key[0], KeyTypeStreamRecordTimestamp); err != nil {
		return StreamID{}, types.TailPosition{}, err
	}
	id, err := StreamIDFromBytes(key[1 : 1+StreamIDLen])
	if err != nil {
		return StreamID{}, types.TailPosition{}, err
	}
	ts := binary.BigEndian.Uint64(key[1+StreamIDLen : 9+StreamIDLen])
	seqNum := binary.BigEndian.Uint64(key[9+StreamIDLen:])
	return id, types.TailPosition{SeqNum: seqNum, Timestamp: ts}, nil
}

// StreamRecordTimestampScanRange bounds a scan to entries of one stream
// with timestamp >= fromTimestamp.
func StreamRecordTimestampScanRange(id StreamID, fromTimestamp uint64) (start, end []byte) {
	start = StreamRecordTimestampKey(id, types.TailPosition{Timestamp: fromTimestamp})
	prefix := make([]byte, 1+StreamIDLen)
	prefix[0] = KeyTypeStreamRecordTimestamp.Byte()
	copy(prefix[1:], id.Bytes())
	end, _ = IncrementBytes(prefix)
	return start, end
}

func SerStreamRecordTimestampValue() []byte { return nil }

func DeserStreamRecordTimestampValue(b []byte) error {
	return checkExactSize(b, 0)
}
