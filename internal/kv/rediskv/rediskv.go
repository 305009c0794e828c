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

// Package rediskv is a kv.Store backed by github.com/redis/go-redis/v9, for
// deployments that want the KV substrate off-process. It keeps key
// ordering in a Redis sorted set (all members scored 0, so ZRANGEBYLEX
// performs the same byte-wise comparison internal/keyspace relies on) and
// stores values in plain string keys; writes commit through a MULTI/EXEC
// pipeline so a batch is atomic.
package rediskv

import (
	"context"
	"fmt"

	"github.com/redis/go-redis/v9"

	"s2lite/internal/kv"
)

const (
	indexKey   = "s2lite:idx"
	valuePfx   = "s2lite:val:"
)

// Store adapts a *redis.Client to kv.Store.
type Store struct {
	client *redis.Client
}

func New(client *redis.Client) *Store {
	return &Store{client: client}
}

func NewFromAddr(addr string) *Store {
	return New(redis.NewClient(&redis.Options{Addr: addr}))
}

func valueKey(key []byte) string {
	return valuePfx + string(key)
}

func (s *Store) Get(ctx context.Context, key []byte, _ kv.DurabilityLevel) ([]byte, bool, error) {
	v, err := s.client.Get(ctx, valueKey(key)).Bytes()
	if err == redis.Nil {
		return nil, false, nil
	}
	if err != nil {
		return nil, false, fmt.Errorf("rediskv: get %x: %w", key, err)
	}
	return v, true, nil
}

func (s *Store) Scan(ctx context.Context, start, end []byte, limit int, _ kv.DurabilityLevel) ([]kv.Entry, error) {
	max := "+"
	if end != nil {
		max = "(" + string(end)
	}
	rangeBy := &redis.ZRangeBy{
		Min: "[" + string(start),
		Max: max,
	}
	if limit > 0 {
		rangeBy.Count = int64(limit)
	}
	members, err := s.client.ZRangeByLex(ctx, indexKey, rangeBy).Result()
	if err != nil {
		return nil, fmt.Errorf("rediskv: zrangebylex: %w", err)
	}
	if len(members) == 0 {
		return nil, nil
	}

	valueKeys := make([]string, len(members))
	for i, m := range members {
		valueKeys[i] = valuePfx + m
	}
	values, err := s.client.MGet(ctx, valueKeys...).Result()
	if err != nil {
		return nil, fmt.Errorf("rediskv: mget: %w", err)
	}

	out := make([]kv.Entry, 0, len(members))
	for i, m := range members {
		if values[i] == nil {
			// Index and value drifted apart (e.g. a racing Apply); skip
			// rather than surface a phantom empty value.
			continue
		}
		strVal, ok := values[i].(string)
		if !ok {
			continue
		}
		out = append(out, kv.Entry{Key: []byte(m), Value: []byte(strVal)})
	}
	return out, nil
}

func (s *Store) Apply(ctx context.Context, ops []kv.Op) error {
	if len(ops) == 0 {
		return nil
	}
	_, err := s.client.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
		for _, op := range ops {
			member := string(op.Key)
			switch op.Kind {
			case kv.OpPut:
				pipe.ZAdd(ctx, indexKey, redis.Z{Score: 0, Member: member})
				pipe.Set(ctx, valueKey(op.Key), op.Value, 0)
			case kv.OpDelete:
				pipe.ZRem(ctx, indexKey, member)
				pipe.Del(ctx, valueKey(op.Key))
			}
		}
		return nil
	})
	if err != nil {
		return fmt.Errorf("rediskv: apply batch of %d ops: %w", len(ops), err)
	}
	return nil
}

func (s *Store) Close() error {
	return s.client.Close()
}
