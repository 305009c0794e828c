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

// Package engine implements the append and read pipelines: conditional,
// fenced appends with monotonic sequence/timestamp assignment, and reads
// that fuse a historical KV scan with a live tail subscription.
package engine

import (
	"sync"
	"sync/atomic"
	"time"

	"s2lite/internal/keyspace"
	"s2lite/internal/types"
)

// streamState is the per-stream in-memory cache: cached tail, current
// fencing token, trim point, and the broadcast hub live tailers subscribe
// to. Created lazily on first append or subscription and dropped by the
// lifecycle package once no tailers remain and the entry has been idle
// past a TTL — the same lazy-create/evict shape the teacher's Store uses
// for managed VSA instances, adapted to hold stream tail state instead of
// a rate-limiter accumulator.
type streamState struct {
	id keyspace.StreamID

	// appendMu serializes writers: the append pipeline's exclusive
	// per-stream lock (spec step 2).
	appendMu sync.Mutex

	mu           sync.RWMutex
	tail         types.TailPosition
	fencingToken types.FencingToken
	trimPoint    uint64
	coldLoaded   bool

	lastAccessed int64 // UnixNano, atomic

	hub *broadcastHub
}

func newStreamState(id keyspace.StreamID) *streamState {
	return &streamState{
		id:           id,
		lastAccessed: time.Now().UnixNano(),
		hub:          newBroadcastHub(),
	}
}

func (s *streamState) touch() {
	atomic.StoreInt64(&s.lastAccessed, time.Now().UnixNano())
}

func (s *streamState) idleSince() time.Duration {
	return time.Since(time.Unix(0, atomic.LoadInt64(&s.lastAccessed)))
}

func (s *streamState) snapshotTail() types.TailPosition {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.tail
}

func (s *streamState) snapshotFencingToken() types.FencingToken {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.fencingToken
}

func (s *streamState) snapshotTrimPoint() uint64 {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.trimPoint
}

// streamStateStore is a concurrent, lazily-populated map of StreamID to
// streamState, mirroring the teacher's core.Store GetOrCreate/ForEach/
// Delete/CloseAll shape over sync.Map.
type streamStateStore struct {
	states sync.Map // keyspace.StreamID -> *streamState
}

func (s *streamStateStore) getOrCreate(id keyspace.StreamID) *streamState {
	if actual, ok := s.states.Load(id); ok {
		st := actual.(*streamState)
		st.touch()
		return st
	}
	fresh := newStreamState(id)
	if actual, loaded := s.states.LoadOrStore(id, fresh); loaded {
		st := actual.(*streamState)
		st.touch()
		return st
	}
	return fresh
}

func (s *streamStateStore) forEach(f func(id keyspace.StreamID, st *streamState)) {
	s.states.Range(func(key, value any) bool {
		f(key.(keyspace.StreamID), value.(*streamState))
		return true
	})
}

// delete drops an entry unconditionally, used when the stream itself has
// been deleted from durable storage so the cache must not keep serving it.
func (s *streamStateStore) delete(id keyspace.StreamID) {
	s.states.Delete(id)
}

// evictIfIdle drops the entry if it is idle past ttl and has no live
// tailers, returning whether it evicted.
func (s *streamStateStore) evictIfIdle(id keyspace.StreamID, ttl time.Duration) bool {
	actual, ok := s.states.Load(id)
	if !ok {
		return false
	}
	st := actual.(*streamState)
	if st.hub.subscriberCount() > 0 || st.idleSince() < ttl {
		return false
	}
	s.states.Delete(id)
	return true
}
