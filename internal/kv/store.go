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

// Package kv defines the KV substrate interface that internal/keyspace
// keys are written through and read from: a single ordered byte-key
// namespace supporting point lookups, bounded range scans, and atomic
// write batches. internal/kv/memkv and internal/kv/rediskv are the two
// backends selected by the server's -kv_backend flag, the same
// "adapter picked by a string selector" shape the persistence package
// uses for its own pluggable backends.
package kv

import "context"

// DurabilityLevel distinguishes acknowledgements that only need to survive
// on this node's in-memory cache (fast path for an append ack, since
// read-your-writes within a stream is served from the cached tail) from
// ones that must have reached the backend's durable storage (required
// before a read can observe the write from a different process).
type DurabilityLevel int

const (
	DurabilityMemory DurabilityLevel = iota
	DurabilityRemote
)

// OpKind tags a single write within a batch.
type OpKind int

const (
	OpPut OpKind = iota
	OpDelete
)

// Op is one write in an atomic batch.
type Op struct {
	Kind  OpKind
	Key   []byte
	Value []byte
}

func Put(key, value []byte) Op { return Op{Kind: OpPut, Key: key, Value: value} }
func Delete(key []byte) Op     { return Op{Kind: OpDelete, Key: key} }

// Entry is a single key/value pair returned from a range scan.
type Entry struct {
	Key   []byte
	Value []byte
}

// Store is the KV substrate's full surface: a single ordered namespace
// shared by every keyspace entity.
type Store interface {
	// Get performs a point lookup. found is false if the key is absent.
	Get(ctx context.Context, key []byte, level DurabilityLevel) (value []byte, found bool, err error)

	// Scan returns entries with start <= key < end, in ascending byte
	// order, capped at limit entries (0 means unbounded). end == nil
	// means unbounded above.
	Scan(ctx context.Context, start, end []byte, limit int, level DurabilityLevel) ([]Entry, error)

	// Apply commits every op atomically: either all writes are visible
	// to subsequent Get/Scan calls or none are.
	Apply(ctx context.Context, ops []Op) error

	Close() error
}
