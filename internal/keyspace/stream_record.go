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

import "encoding/binary"

const streamRecordKeyLen = 1 + StreamIDLen + 8

// StreamRecordKey: KT | StreamId(32) | SeqNum(u64 BE) -> the encoded record
// envelope (headers, body, optional timestamp override), owned by the
// caller's record codec.

func StreamRecordKey(id StreamID, seqNum uint64) []byte {
	buf := make([]byte, streamRecordKeyLen)
	buf[0] = KeyTypeStreamRecord.Byte()
	copy(buf[1:1+StreamIDLen], id.Bytes())
	binary.BigEndian.PutUint64(buf[1+StreamIDLen:], seqNum)
	return buf
}

func DeserStreamRecordKey(key []byte) (StreamID, uint64, error) {
	if err := checkExactSize(key, streamRecordKeyLen); err != nil {
		return StreamID{}, 0, err
	}
	if err := checkOrdinal(key[0], KeyTypeStreamRecord); err != nil {
		return StreamID{}, 0, err
	}
	id, err := StreamIDFromBytes(key[1 : 1+StreamIDLen])
	if err != nil {
		return StreamID{}, 0, err
	}
	seqNum := binary.BigEndian.Uint64(key[1+StreamIDLen:])
	return id, seqNum, nil
}

// StreamRecordScanRange returns the [start, end) bounds for reading every
// record of a stream with seq_num in [fromSeqNum, toSeqNumExclusive). Pass
// toSeqNumExclusive == 0 to scan to the end of the stream's record range.
func StreamRecordScanRange(id StreamID, fromSeqNum, toSeqNumExclusive uint64) (start, end []byte) {
	start = StreamRecordKey(id, fromSeqNum)
	if toSeqNumExclusive == 0 {
		prefix := make([]byte, 1+StreamIDLen)
		prefix[0] = KeyTypeStreamRecord.Byte()
		copy(prefix[1:], id.Bytes())
		end, _ = IncrementBytes(prefix)
		return start, end
	}
	end = StreamRecordKey(id, toSeqNumExclusive)
	return start, end
}
