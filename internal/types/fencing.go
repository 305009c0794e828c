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

import "bytes"

// MaxFencingTokenLen bounds a fencing token to 36 raw bytes. Tokens are
// opaque — no charset restriction, unlike basin/stream names.
const MaxFencingTokenLen = 36

// FencingToken is an opaque append-time guard set by a Fence command: an
// append that presents a token is accepted only if it equals the stream's
// current token; an append that presents none is not checked against it.
type FencingToken []byte

func ParseFencingToken(b []byte) (FencingToken, error) {
	if len(b) > MaxFencingTokenLen {
		return nil, invalid("fencing_token", "must not exceed 36 bytes")
	}
	out := make([]byte, len(b))
	copy(out, b)
	return FencingToken(out), nil
}

func (t FencingToken) Equal(other FencingToken) bool {
	return bytes.Equal(t, other)
}

func (t FencingToken) IsEmpty() bool { return len(t) == 0 }
