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
	"encoding/binary"
	"fmt"

	"s2lite/internal/types"
)

// envelopeTag distinguishes a plain record from a command record stored at
// the same seq_num: a Fence or Trim command both writes a log entry and
// has a side effect applied in the same append transaction.
type envelopeTag byte

const (
	tagRecord envelopeTag = iota
	tagFenceCommand
	tagTrimCommand
)

// encodeEnvelope serializes a record's on-disk value: timestamp, headers,
// body. SeqNum lives only in the key (StreamRecordKey); Timestamp is
// duplicated here (alongside the timestamp-index key that exists purely
// for range lookups) so a historical scan can reconstruct a full Record
// without a second point lookup per record.
func encodeEnvelope(r types.Record) []byte {
	size := 1 + 8 + 4
	for _, h := range r.Headers {
		size += 4 + len(h.Name) + 4 + len(h.Value)
	}
	size += 4 + len(r.Body)
	buf := make([]byte, size)
	buf[0] = byte(tagRecord)
	off := 1
	binary.BigEndian.PutUint64(buf[off:], r.Timestamp)
	off += 8
	binary.BigEndian.PutUint32(buf[off:], uint32(len(r.Headers)))
	off += 4
	for _, h := range r.Headers {
		binary.BigEndian.PutUint32(buf[off:], uint32(len(h.Name)))
		off += 4
		off += copy(buf[off:], h.Name)
		binary.BigEndian.PutUint32(buf[off:], uint32(len(h.Value)))
		off += 4
		off += copy(buf[off:], h.Value)
	}
	binary.BigEndian.PutUint32(buf[off:], uint32(len(r.Body)))
	off += 4
	off += copy(buf[off:], r.Body)
	return buf
}

func encodeFenceCommand(token types.FencingToken) []byte {
	buf := make([]byte, 1+4+len(token))
	buf[0] = byte(tagFenceCommand)
	binary.BigEndian.PutUint32(buf[1:5], uint32(len(token)))
	copy(buf[5:], token)
	return buf
}

func encodeTrimCommand(seqNum uint64) []byte {
	buf := make([]byte, 1+8)
	buf[0] = byte(tagTrimCommand)
	binary.BigEndian.PutUint64(buf[1:], seqNum)
	return buf
}

// decodedEnvelope is whichever of the three shapes a stored value held.
type decodedEnvelope struct {
	Tag          envelopeTag
	Record       types.Record
	FenceToken   types.FencingToken
	TrimSeqNum   uint64
}

func decodeEnvelope(b []byte) (decodedEnvelope, error) {
	if len(b) < 1 {
		return decodedEnvelope{}, fmt.Errorf("engine: empty envelope")
	}
	tag := envelopeTag(b[0])
	switch tag {
	case tagRecord:
		off := 1
		if len(b) < off+8 {
			return decodedEnvelope{}, fmt.Errorf("engine: truncated envelope timestamp")
		}
		timestamp := binary.BigEndian.Uint64(b[off:])
		off += 8
		if len(b) < off+4 {
			return decodedEnvelope{}, fmt.Errorf("engine: truncated envelope header count")
		}
		headerCount := binary.BigEndian.Uint32(b[off:])
		off += 4
		headers := make([]types.Header, 0, headerCount)
		for i := uint32(0); i < headerCount; i++ {
			if len(b) < off+4 {
				return decodedEnvelope{}, fmt.Errorf("engine: truncated header name length")
			}
			nameLen := binary.BigEndian.Uint32(b[off:])
			off += 4
			if len(b) < off+int(nameLen) {
				return decodedEnvelope{}, fmt.Errorf("engine: truncated header name")
			}
			name := append([]byte(nil), b[off:off+int(nameLen)]...)
			off += int(nameLen)
			if len(b) < off+4 {
				return decodedEnvelope{}, fmt.Errorf("engine: truncated header value length")
			}
			valueLen := binary.BigEndian.Uint32(b[off:])
			off += 4
			if len(b) < off+int(valueLen) {
				return decodedEnvelope{}, fmt.Errorf("engine: truncated header value")
			}
			value := append([]byte(nil), b[off:off+int(valueLen)]...)
			off += int(valueLen)
			headers = append(headers, types.Header{Name: name, Value: value})
		}
		if len(b) < off+4 {
			return decodedEnvelope{}, fmt.Errorf("engine: truncated body length")
		}
		bodyLen := binary.BigEndian.Uint32(b[off:])
		off += 4
		if len(b) < off+int(bodyLen) {
			return decodedEnvelope{}, fmt.Errorf("engine: truncated body")
		}
		body := append([]byte(nil), b[off:off+int(bodyLen)]...)
		return decodedEnvelope{Tag: tagRecord, Record: types.Record{Headers: headers, Body: body, Timestamp: timestamp}}, nil

	case tagFenceCommand:
		if len(b) < 5 {
			return decodedEnvelope{}, fmt.Errorf("engine: truncated fence command")
		}
		tokenLen := binary.BigEndian.Uint32(b[1:5])
		if len(b) < 5+int(tokenLen) {
			return decodedEnvelope{}, fmt.Errorf("engine: truncated fence token")
		}
		token := append([]byte(nil), b[5:5+int(tokenLen)]...)
		return decodedEnvelope{Tag: tagFenceCommand, FenceToken: token}, nil

	case tagTrimCommand:
		if len(b) < 9 {
			return decodedEnvelope{}, fmt.Errorf("engine: truncated trim command")
		}
		return decodedEnvelope{Tag: tagTrimCommand, TrimSeqNum: binary.BigEndian.Uint64(b[1:9])}, nil

	default:
		return decodedEnvelope{}, fmt.Errorf("engine: unknown envelope tag %d", tag)
	}
}
