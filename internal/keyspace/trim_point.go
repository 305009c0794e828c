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

const (
	trimPointKeyLen   = 1 + StreamIDLen
	trimPointValueLen = 8
)

// StreamTrimPointKey: KT | StreamId -> SeqNum(8), non-zero. Records with
// seq_num below this value are eligible for garbage collection.

func StreamTrimPointKey(id StreamID) []byte {
	buf := make([]byte, trimPointKeyLen)
	buf[0] = KeyTypeStreamTrimPoint.Byte()
	copy(buf[1:], id.Bytes())
	return buf
}

func DeserStreamTrimPointKey(key []byte) (StreamID, error) {
	if err := checkExactSize(key, trimPointKeyLen); err != nil {
		return StreamID{}, err
	}
	if err := checkOrdinal(key[0], KeyTypeStreamTrimPoint); err != nil {
		return StreamID{}, err
	}
	return StreamIDFromBytes(key[1:])
}

func SerStreamTrimPointValue(trimPoint uint64) ([]byte, error) {
	if trimPoint == 0 {
		return nil, errInvalidValue("trim_point", "must be non-zero")
	}
	buf := make([]byte, trimPointValueLen)
	binary.BigEndian.PutUint64(buf, trimPoint)
	return buf, nil
}

func DeserStreamTrimPointValue(b []byte) (uint64, error) {
	if err := checkExactSize(b, trimPointValueLen); err != nil {
		return 0, err
	}
	v := binary.BigEndian.Uint64(b)
	if v == 0 {
		return 0, errInvalidValue("trim_point", "must be non-zero")
	}
	return v, nil
}
