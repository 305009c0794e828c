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

import "s2lite/internal/types"

// Basin keys: KT | basin-utf8 -> serialized BasinRecord value (owned by the
// caller; this package only frames the key so basin listing is a plain
// prefix scan ordered by name).

func BasinKey(basin types.BasinName) []byte {
	buf := make([]byte, 1+len(basin))
	buf[0] = KeyTypeBasin.Byte()
	copy(buf[1:], basin.Bytes())
	return buf
}

func DeserBasinKey(key []byte) (types.BasinName, error) {
	if err := checkMinSize(key, 1+types.MinBasinNameLen); err != nil {
		return "", err
	}
	if err := checkOrdinal(key[0], KeyTypeBasin); err != nil {
		return "", err
	}
	name, err := types.ParseBasinName(string(key[1:]))
	if err != nil {
		return "", errInvalidValue("basin", err.Error())
	}
	return name, nil
}

// BasinScanRange returns the [start, end) byte bounds of the whole Basin
// keyspace, for listing every basin in name order.
func BasinScanRange() (start []byte, end []byte) {
	start = []byte{KeyTypeBasin.Byte()}
	end, ok := IncrementBytes(start)
	if !ok {
		return start, nil
	}
	return start, end
}

// BasinDeletionPendingKey: KT | basin-utf8 -> resumable cursor (last
// deleted stream name), so a crashed cleanup task can resume where it
// left off instead of rescanning from the start.

func BasinDeletionPendingKey(basin types.BasinName) []byte {
	buf := make([]byte, 1+len(basin))
	buf[0] = KeyTypeBasinDeletionPending.Byte()
	copy(buf[1:], basin.Bytes())
	return buf
}

func DeserBasinDeletionPendingKey(key []byte) (types.BasinName, error) {
	if err := checkMinSize(key, 1+types.MinBasinNameLen); err != nil {
		return "", err
	}
	if err := checkOrdinal(key[0], KeyTypeBasinDeletionPending); err != nil {
		return "", err
	}
	name, err := types.ParseBasinName(string(key[1:]))
	if err != nil {
		return "", errInvalidValue("basin", err.Error())
	}
	return name, nil
}

func SerBasinDeletionPendingValue(cursor types.StreamName) []byte {
	return []byte(cursor)
}

func DeserBasinDeletionPendingValue(b []byte) (types.StreamName, error) {
	if len(b) == 0 {
		return "", nil
	}
	return types.ParseStreamName(string(b))
}
