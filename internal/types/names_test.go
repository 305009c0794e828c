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

func TestParseBasinName(t *testing.T) {
	cases := []struct {
		name    string
		in      string
		wantErr bool
	}{
		{"valid", "my-basin-1", false},
		{"too short", "short", true},
		{"too long", "a23456789012345678901234567890123456789012345678901234567890", true},
		{"leading hyphen", "-my-basin", true},
		{"trailing hyphen", "my-basin-", true},
		{"uppercase rejected", "My-Basin1", true},
		{"underscore rejected", "my_basin1", true},
		{"min length ok", "abcdefgh", false},
	}
	for _, c := range cases {
		t.Run(c.name, func(t *testing.T) {
			_, err := ParseBasinName(c.in)
			if (err != nil) != c.wantErr {
				t.Fatalf("ParseBasinName(%q) error = %v, wantErr %v", c.in, err, c.wantErr)
			}
		})
	}
}

func TestParseStreamName(t *testing.T) {
	t.Run("empty rejected", func(t *testing.T) {
		if _, err := ParseStreamName(""); err == nil {
			t.Fatalf("expected error for empty stream name")
		}
	})
	t.Run("nul byte rejected", func(t *testing.T) {
		if _, err := ParseStreamName("a\x00b"); err == nil {
			t.Fatalf("expected error for embedded NUL")
		}
	})
	t.Run("slashes allowed", func(t *testing.T) {
		n, err := ParseStreamName("events/orders/2026")
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		if n.String() != "events/orders/2026" {
			t.Fatalf("got %q", n.String())
		}
	})
	t.Run("too long rejected", func(t *testing.T) {
		long := make([]byte, MaxStreamNameLen+1)
		for i := range long {
			long[i] = 'a'
		}
		if _, err := ParseStreamName(string(long)); err == nil {
			t.Fatalf("expected error for over-length stream name")
		}
	})
}
