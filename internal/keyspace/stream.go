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

	"s2lite/internal/types"
)

const fieldSeparator = 0x00

// Stream keys: KT | basin-utf8 | 0x00 | stream-utf8 -> serialized
// StreamRecord value (owned by caller). Ordered so listing streams within
// one basin is a prefix scan on KT|basin|0x00.

func StreamKey(basin types.BasinName, stream types.StreamName) []byte {
	buf := make([]byte, 0, 1+len(basin)+1+len(stream))
	buf = append(buf, KeyTypeStream.Byte())
	buf = append(buf, basin.Bytes()...)
	buf = append(buf, fieldSeparator)
	buf = append(buf, stream.Bytes()...)
	return buf
}

func DeserStreamKey(key []byte) (types.BasinName, types.StreamName, error) {
	if err := checkMinSize(key, 1+types.MinBasinNameLen+1); err != nil {
		return "", "", err
	}
	if err := checkOrdinal(key[0], KeyTypeStream); err != nil {
		return "", "", err
	}
	body := key[1:]
	sep := bytes.IndexByte(body, fieldSeparator)
	if sep < 0 {
		return "", "", errMissingFieldSeparator()
	}
	basin, err := types.ParseBasinName(string(body[:sep]))
	if err != nil {
		return "", "", errInvalidValue("basin", err.Error())
	}
	stream, err := types.ParseStreamName(string(body[sep+1:]))
	if err != nil {
		return "", "", errInvalidValue("stream", err.Error())
	}
	return basin, stream, nil
}

// StreamListRange returns the [start, end) bounds for listing every stream
// of one basin in name order, optionally starting strictly after a cursor
// name (pass "" for no cursor).
func StreamListRange(basin types.BasinName, startAfter types.StreamName) (start, end []byte) {
	prefix := make([]byte, 0, 1+len(basin)+1)
	prefix = append(prefix, KeyTypeStream.Byte())
	prefix = append(prefix, basin.Bytes()...)
	prefix = append(prefix, fieldSeparator)
	if startAfter == "" {
		start = prefix
	} else {
		start = append(StreamKey(basin, startAfter), 0x00)
	}
	end, ok := IncrementBytes(prefix)
	if !ok {
		end = nil
	}
	return start, end
}

// StreamIdMappingKey: KT | StreamId -> basin | 0x00 | stream, the reverse
// mapping back from the fixed-width hash to the human-readable names.

func StreamIdMappingKey(id StreamID) []byte {
	buf := make([]byte, 1+StreamIDLen)
	buf[0] = KeyTypeStreamIdMapping.Byte()
	copy(buf[1:], id.Bytes())
	return buf
}

func DeserStreamIdMappingKey(key []byte) (StreamID, error) {
	if err := checkExactSize(key, 1+StreamIDLen); err != nil {
		return StreamID{}, err
	}
	if err := checkOrdinal(key[0], KeyTypeStreamIdMapping); err != nil {
		return StreamID{}, err
	}
	return StreamIDFromBytes(key[1:])
}

func SerStreamIdMappingValue(basin types.BasinName, stream types.StreamName) []byte {
	buf := make([]byte, 0, len(basin)+1+len(stream))
	buf = append(buf, basin.Bytes()...)
	buf = append(buf, fieldSeparator)
	buf = append(buf, stream.Bytes()...)
	return buf
}

func DeserStreamIdMappingValue(b []byte) (types.BasinName, types.StreamName, error) {
	if err := checkMinSize(b, types.MinBasinNameLen+1); err != nil {
		return "", "", err
	}
	sep := bytes.IndexByte(b, fieldSeparator)
	if sep < 0 {
		return "", "", errMissingFieldSeparator()
	}
	basin, err := types.ParseBasinName(string(b[:sep]))
	if err != nil {
		return "", "", errInvalidValue("basin", err.Error())
	}
	stream, err := types.ParseStreamName(string(b[sep+1:]))
	if err != nil {
		return "", "", errInvalidValue("stream", err.Error())
	}
	return basin, stream, nil
}
