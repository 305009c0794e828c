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
	"context"
	"testing"

	"s2lite/internal/apierr"
	"s2lite/internal/kv/memkv"
	"s2lite/internal/types"
)

func TestCreateAndGetBasin(t *testing.T) {
	e := New(memkv.New())
	ctx := context.Background()

	info, err := e.CreateBasin(ctx, types.BasinName("b1"), types.BasinConfig{})
	if err != nil {
		t.Fatalf("create basin: %v", err)
	}
	if info.State != BasinActive {
		t.Fatalf("expected new basin to be Active, got %v", info.State)
	}

	if _, err := e.CreateBasin(ctx, types.BasinName("b1"), types.BasinConfig{}); err == nil {
		t.Fatalf("expected error creating duplicate basin")
	} else if ae, ok := err.(*apierr.Generic); ok && ae.Code != apierr.CodeResourceAlreadyExists {
		t.Fatalf("expected CodeResourceAlreadyExists, got %v", ae.Code)
	}

	got, err := e.GetBasin(ctx, types.BasinName("b1"))
	if err != nil {
		t.Fatalf("get basin: %v", err)
	}
	if got.Name != "b1" || got.State != BasinActive {
		t.Fatalf("unexpected basin info: %+v", got)
	}

	if _, err := e.GetBasin(ctx, types.BasinName("missing")); err == nil {
		t.Fatalf("expected error for missing basin")
	}
}

func TestListBasinsOrderAndPrefix(t *testing.T) {
	e := New(memkv.New())
	ctx := context.Background()

	for _, name := range []string{"alpha-basin", "alpha-basin-2", "beta-basin"} {
		if _, err := e.CreateBasin(ctx, types.BasinName(name), types.BasinConfig{}); err != nil {
			t.Fatalf("create basin %q: %v", name, err)
		}
	}

	all, err := e.ListBasins(ctx, "", "", 0)
	if err != nil {
		t.Fatalf("list basins: %v", err)
	}
	if len(all) != 3 {
		t.Fatalf("expected 3 basins, got %d", len(all))
	}

	filtered, err := e.ListBasins(ctx, "alpha", "", 0)
	if err != nil {
		t.Fatalf("list basins with prefix: %v", err)
	}
	if len(filtered) != 2 {
		t.Fatalf("expected 2 basins with prefix alpha, got %d", len(filtered))
	}

	paged, err := e.ListBasins(ctx, "", "alpha-basin", 0)
	if err != nil {
		t.Fatalf("list basins after cursor: %v", err)
	}
	if len(paged) != 2 || paged[0].Name != "alpha-basin-2" {
		t.Fatalf("expected resume strictly after 'alpha-basin', got %+v", paged)
	}
}

func TestDeleteBasinMarksDeletingAndIsIdempotent(t *testing.T) {
	e := New(memkv.New())
	ctx := context.Background()

	if _, err := e.CreateBasin(ctx, types.BasinName("b1"), types.BasinConfig{}); err != nil {
		t.Fatalf("create basin: %v", err)
	}
	if err := e.DeleteBasin(ctx, types.BasinName("b1")); err != nil {
		t.Fatalf("delete basin: %v", err)
	}
	info, err := e.GetBasin(ctx, types.BasinName("b1"))
	if err != nil {
		t.Fatalf("get basin: %v", err)
	}
	if info.State != BasinDeleting {
		t.Fatalf("expected Deleting state, got %v", info.State)
	}
	if err := e.DeleteBasin(ctx, types.BasinName("b1")); err != nil {
		t.Fatalf("repeated delete must be idempotent: %v", err)
	}
}

func TestCreateStreamRejectedUnderDeletingBasin(t *testing.T) {
	e := New(memkv.New())
	ctx := context.Background()

	if _, err := e.CreateBasin(ctx, types.BasinName("b1"), types.BasinConfig{}); err != nil {
		t.Fatalf("create basin: %v", err)
	}
	if err := e.DeleteBasin(ctx, types.BasinName("b1")); err != nil {
		t.Fatalf("delete basin: %v", err)
	}
	if _, err := e.CreateStream(ctx, types.BasinName("b1"), types.StreamName("s1"), types.StreamConfig{}); err == nil {
		t.Fatalf("expected error creating stream under deleting basin")
	}
}

func TestCreateListAndDeleteStream(t *testing.T) {
	e := New(memkv.New())
	ctx := context.Background()

	if _, err := e.CreateBasin(ctx, types.BasinName("stream-test-basin"), types.BasinConfig{}); err != nil {
		t.Fatalf("create basin: %v", err)
	}
	if _, err := e.CreateStream(ctx, types.BasinName("stream-test-basin"), types.StreamName("s1"), types.StreamConfig{}); err != nil {
		t.Fatalf("create stream: %v", err)
	}
	if _, err := e.CreateStream(ctx, types.BasinName("stream-test-basin"), types.StreamName("s1"), types.StreamConfig{}); err == nil {
		t.Fatalf("expected error creating duplicate stream")
	}

	streams, err := e.ListStreams(ctx, types.BasinName("stream-test-basin"), "", "", 0)
	if err != nil {
		t.Fatalf("list streams: %v", err)
	}
	if len(streams) != 1 || streams[0].Name != "s1" {
		t.Fatalf("unexpected streams: %+v", streams)
	}

	records := types.Batch{Records: []types.Record{{Body: []byte("hello")}}}
	if _, err := e.Append(ctx, types.BasinName("stream-test-basin"), types.StreamName("s1"), types.AppendInput{Batch: records}); err != nil {
		t.Fatalf("append: %v", err)
	}

	if err := e.DeleteStream(ctx, types.BasinName("stream-test-basin"), types.StreamName("s1")); err != nil {
		t.Fatalf("delete stream: %v", err)
	}

	if _, err := e.ListStreams(ctx, types.BasinName("stream-test-basin"), "", "", 0); err != nil {
		t.Fatalf("list streams after delete: %v", err)
	}

	if err := e.DeleteStream(ctx, types.BasinName("stream-test-basin"), types.StreamName("s1")); err == nil {
		t.Fatalf("expected error deleting already-deleted stream")
	}
}
