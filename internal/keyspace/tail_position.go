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

const (
	tailPositionKeyLen   = 1 + StreamIDLen
	tailPositionValueLen = 8 + 8 + 4
)

// StreamTailPositionKey: KT | StreamId -> SeqNum(8) | Timestamp(8) |
// wallclock_secs(4), exactly 20 bytes.

func StreamTailPositionKey(id StreamID) []byte {
	buf := make([]byte, tailPositionKeyLen)
	buf[0] = KeyTypeStreamTailPosition.Byte()
	copy(buf[1:], id.Bytes())
	return buf
}

func DeserStreamTailPositionKey(key []byte) (StreamID, error) {
	if err := checkExactSize(key, tailPositionKeyLen); err != nil {
		return StreamID{}, err
	}
	if err := checkOrdinal(key[0], KeyTypeStreamTailPosition); err != nil {
		return StreamID{}, err
	}
	return StreamIDFromBytes(key[1:])
}

func SerStreamTailPositionValue(pos types.TailPosition, wallclockSecs uint32) []byte {
	buf := make([]byte, tailPositionValueLen)
	binary.BigEndian.PutUint64(buf[0:8], pos.SeqNum)
	binary.BigEndian.PutUint64(buf[8:16], pos.Timestamp)
	binary.BigEndian.PutUint32(buf[16:20], wallclockSecs)
	return buf
}

func DeserStreamTailPositionValue(b []byte) (types.TailPosition, uint32, error) {
	if err := checkExactSize(b, tailPositionValueLen); err != nil {
		return types.TailPosition{}, 0, err
	}
	pos := types.TailPosition{
		SeqNum:    binary.BigEndian.Uint64(b[0:8]),
		Timestamp: binary.BigEndian.Uint64(b[8:16]),
	}
	wallclockSecs := binary.BigEndian.Uint32(b[16:20])
	return pos, wallclockSecs, nil
}
