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

package types

import "testing"

func TestEvaluatedReadLimit_CountOnly(t *testing.T) {
	e := NewEvaluatedReadLimit(ReadLimit{Count: 2})
	if !e.Allow(10) {
		t.Fatalf("first record should be allowed")
	}
	if !e.Allow(10) {
		t.Fatalf("second record should be allowed")
	}
	if e.Allow(10) {
		t.Fatalf("third record should be denied by count limit")
	}
	if !e.Exhausted() {
		t.Fatalf("expected exhausted after count limit reached")
	}
}

func TestEvaluatedReadLimit_BytesAlwaysAllowsFirstRecord(t *testing.T) {
	e := NewEvaluatedReadLimit(ReadLimit{Bytes: 5})
	if !e.Allow(100) {
		t.Fatalf("first oversized record must still be allowed so reads make progress")
	}
	if e.Allow(1) {
		t.Fatalf("second record should be denied once byte budget is exceeded")
	}
}

func TestEvaluatedReadLimit_Unbounded(t *testing.T) {
	e := NewEvaluatedReadLimit(ReadLimit{})
	for i := 0; i < 1000; i++ {
		if !e.Allow(1) {
			t.Fatalf("unbounded limit should never deny")
		}
	}
	count, countUnbounded, bytes, bytesUnbounded := e.Remaining()
	if !countUnbounded || !bytesUnbounded {
		t.Fatalf("expected both dimensions unbounded")
	}
	_ = count
	_ = bytes
}

func TestEvaluatedReadLimit_Remaining(t *testing.T) {
	e := NewEvaluatedReadLimit(ReadLimit{Count: 5, Bytes: 100})
	e.Allow(40)
	count, countUnbounded, bytes, bytesUnbounded := e.Remaining()
	if countUnbounded || bytesUnbounded {
		t.Fatalf("expected bounded dimensions")
	}
	if count != 4 {
		t.Fatalf("expected 4 remaining count, got %d", count)
	}
	if bytes != 60 {
		t.Fatalf("expected 60 remaining bytes, got %d", bytes)
	}
}
