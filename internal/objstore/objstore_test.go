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

package objstore

import (
	"context"
	"testing"
)

func TestLocalDiskPutGetDelete(t *testing.T) {
	d := NewLocalDisk(t.TempDir(), "basins")
	ctx := context.Background()

	if _, found, err := d.Get(ctx, "missing"); err != nil || found {
		t.Fatalf("expected miss for unwritten key, got found=%v err=%v", found, err)
	}

	if err := d.Put(ctx, "k1", []byte("v1")); err != nil {
		t.Fatalf("put: %v", err)
	}
	v, found, err := d.Get(ctx, "k1")
	if err != nil || !found || string(v) != "v1" {
		t.Fatalf("get after put: v=%q found=%v err=%v", v, found, err)
	}

	if err := d.Delete(ctx, "k1"); err != nil {
		t.Fatalf("delete: %v", err)
	}
	if _, found, err := d.Get(ctx, "k1"); err != nil || found {
		t.Fatalf("expected miss after delete, got found=%v err=%v", found, err)
	}

	if err := d.Delete(ctx, "k1"); err != nil {
		t.Fatalf("deleting an already-absent key must not error: %v", err)
	}
}

func TestNoOpDiscardsWrites(t *testing.T) {
	var s NoOp
	ctx := context.Background()
	if err := s.Put(ctx, "k", []byte("v")); err != nil {
		t.Fatalf("put: %v", err)
	}
	if _, found, err := s.Get(ctx, "k"); err != nil || found {
		t.Fatalf("expected NoOp to never retain a write, found=%v err=%v", found, err)
	}
}
