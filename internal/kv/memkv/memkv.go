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

// Package memkv is an in-process kv.Store backed by a google/btree
// ordered tree, for single-node deployments and tests that don't need an
// external Redis dependency.
package memkv

import (
	"bytes"
	"context"
	"sync"

	"github.com/google/btree"

	"s2lite/internal/kv"
)

type item struct {
	key   []byte
	value []byte
}

func (a item) Less(b btree.Item) bool {
	return bytes.Compare(a.key, b.(item).key) < 0
}

// Store is a google/btree-backed kv.Store. All operations hold a single
// RWMutex around the tree — the Non-goal of multi-writer coordination
// beyond single-node serialization means one mutex per KV instance is
// sufficient, not a bottleneck to engineer around.
type Store struct {
	mu   sync.RWMutex
	tree *btree.BTree
}

// New returns an empty in-process store. The btree's degree (branching
// factor) is fixed at 32, a reasonable default for in-memory workloads.
func New() *Store {
	return &Store{tree: btree.New(32)}
}

func (s *Store) Get(_ context.Context, key []byte, _ kv.DurabilityLevel) ([]byte, bool, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	found := s.tree.Get(item{key: key})
	if found == nil {
		return nil, false, nil
	}
	it := found.(item)
	out := make([]byte, len(it.value))
	copy(out, it.value)
	return out, true, nil
}

func (s *Store) Scan(_ context.Context, start, end []byte, limit int, _ kv.DurabilityLevel) ([]kv.Entry, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var out []kv.Entry
	s.tree.AscendGreaterOrEqual(item{key: start}, func(i btree.Item) bool {
		it := i.(item)
		if end != nil && bytes.Compare(it.key, end) >= 0 {
			return false
		}
		k := make([]byte, len(it.key))
		copy(k, it.key)
		v := make([]byte, len(it.value))
		copy(v, it.value)
		out = append(out, kv.Entry{Key: k, Value: v})
		return limit <= 0 || len(out) < limit
	})
	return out, nil
}

func (s *Store) Apply(_ context.Context, ops []kv.Op) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, op := range ops {
		switch op.Kind {
		case kv.OpPut:
			key := make([]byte, len(op.Key))
			copy(key, op.Key)
			value := make([]byte, len(op.Value))
			copy(value, op.Value)
			s.tree.ReplaceOrInsert(item{key: key, value: value})
		case kv.OpDelete:
			s.tree.Delete(item{key: op.Key})
		}
	}
	return nil
}

func (s *Store) Close() error { return nil }
