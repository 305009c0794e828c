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
	"crypto/hmac"
	"crypto/sha256"
	"encoding/binary"

	"s2lite/internal/types"
)

// StreamIDLen is the fixed width of a StreamID: constant-width stream keys
// enable tight index encoding and O(1) key arithmetic instead of storing
// the basin/stream name inline in every per-stream key.
const StreamIDLen = 32

// streamIDKey is a fixed, process-wide key for the keyed hash. It need not
// be secret — the construction only needs to be collision-resistant, not
// to authenticate against an adversary — but keeping it keyed (HMAC rather
// than a bare digest) avoids length-extension concerns for free.
var streamIDKey = []byte("s2lite-stream-id-v1")

// StreamID is a 32-byte collision-resistant identifier derived from a
// (basin, stream) pair, used as the fixed-width prefix of every per-stream
// key. The reverse mapping back to (basin, stream) is stored explicitly
// via StreamIdMapping since the hash itself is one-way.
type StreamID [StreamIDLen]byte

// NewStreamID derives a StreamID from a basin/stream pair by length-
// prefixing each component (so "ab"+"c" cannot collide with "a"+"bc") and
// running the result through a keyed hash.
func NewStreamID(basin types.BasinName, stream types.StreamName) StreamID {
	h := hmac.New(sha256.New, streamIDKey)
	writeLengthPrefixed(h, basin.Bytes())
	writeLengthPrefixed(h, stream.Bytes())
	var id StreamID
	copy(id[:], h.Sum(nil))
	return id
}

func writeLengthPrefixed(h interface{ Write([]byte) (int, error) }, b []byte) {
	var lenBuf [8]byte
	binary.BigEndian.PutUint64(lenBuf[:], uint64(len(b)))
	h.Write(lenBuf[:])
	h.Write(b)
}

func (id StreamID) Bytes() []byte { return id[:] }

func StreamIDFromBytes(b []byte) (StreamID, error) {
	var id StreamID
	if len(b) != StreamIDLen {
		return id, errInvalidSize(StreamIDLen, len(b))
	}
	copy(id[:], b)
	return id, nil
}
