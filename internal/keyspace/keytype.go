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

// Package keyspace encodes every entity of the data model into a single
// ordered byte-key namespace: each key begins with a one-byte KeyType
// ordinal followed by a type-specific body, and every integer is encoded
// big-endian so lexical byte order equals numeric order. This lets list
// and scan operations (list basins, list streams, read from a sequence
// number, expire deadlines) be a single bounded range scan with no
// secondary index engine.
package keyspace

// KeyType tags the entity a key encodes. Ordinals are stable on-disk
// identifiers — never renumber an existing entry.
type KeyType uint8

const (
	KeyTypeBasin KeyType = iota
	KeyTypeBasinDeletionPending
	KeyTypeStream
	KeyTypeStreamIdMapping
	KeyTypeStreamTailPosition
	KeyTypeStreamTrimPoint
	KeyTypeStreamRecord
	KeyTypeStreamRecordTimestamp
	KeyTypeStreamDeleteOnEmptyDeadline
	KeyTypeAccessToken
)

func (k KeyType) Byte() byte { return byte(k) }
