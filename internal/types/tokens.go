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

import "github.com/google/uuid"

// RequestToken is a client-supplied or server-generated idempotency key
// (the "s2-request-token" header) scoping retried appends to the same
// logical attempt.
type RequestToken string

// NewRequestToken generates a fresh idempotency key. The teacher's demo
// code hand-rolls a hex key with crypto/rand and a comment noting it
// avoids an external dependency only because it's a demo; a real build
// uses the ecosystem's uuid package instead.
func NewRequestToken() RequestToken {
	return RequestToken(uuid.NewString())
}

func ParseRequestToken(s string) (RequestToken, error) {
	if len(s) == 0 || len(s) > MaxTokenIDLen {
		return "", invalid("s2-request-token", "must be between 1 and 96 characters")
	}
	return RequestToken(s), nil
}

// CommitID uniquely identifies one server-side append attempt. The append
// paths do not generate one, and acknowledgements do not carry it.
type CommitID uuid.UUID

func NewCommitID() CommitID { return CommitID(uuid.New()) }

func (c CommitID) String() string { return uuid.UUID(c).String() }
