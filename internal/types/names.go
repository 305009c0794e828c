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

// Package types holds the validated, opaque data-model types shared by the
// storage engine and the serving adapters: basin/stream names, fencing
// tokens, record envelopes, batches, and the read-extent option types.
package types

import (
	"fmt"
	"strings"
)

const (
	MinBasinNameLen  = 8
	MaxBasinNameLen  = 48
	MaxStreamNameLen = 512
	MaxTokenIDLen    = 96
)

// ValidationError reports a rejected wire string or out-of-range field.
type ValidationError struct {
	Field  string
	Reason string
}

func (e *ValidationError) Error() string {
	if e.Field == "" {
		return e.Reason
	}
	return fmt.Sprintf("%s: %s", e.Field, e.Reason)
}

func invalid(field, reason string) error {
	return &ValidationError{Field: field, Reason: reason}
}

// BasinName is a validated basin identifier: 8-48 chars, [a-z0-9-], no
// leading/trailing hyphen.
type BasinName string

func ParseBasinName(s string) (BasinName, error) {
	if len(s) < MinBasinNameLen || len(s) > MaxBasinNameLen {
		return "", invalid("basin", fmt.Sprintf("length must be between %d and %d characters", MinBasinNameLen, MaxBasinNameLen))
	}
	if s[0] == '-' || s[len(s)-1] == '-' {
		return "", invalid("basin", "must not begin or end with a hyphen")
	}
	for _, r := range s {
		if !isLowerAlphaNumOrHyphen(r) {
			return "", invalid("basin", "must comprise lowercase letters, numbers and hyphens")
		}
	}
	return BasinName(s), nil
}

func (n BasinName) String() string  { return string(n) }
func (n BasinName) Bytes() []byte   { return []byte(n) }
func (n BasinName) IsEmpty() bool   { return len(n) == 0 }

// StreamName is a validated stream identifier: 1-512 chars, non-empty, no
// NUL byte (NUL is the field separator used in the id-mapping value).
type StreamName string

func ParseStreamName(s string) (StreamName, error) {
	if len(s) == 0 {
		return "", invalid("stream", "must not be empty")
	}
	if len(s) > MaxStreamNameLen {
		return "", invalid("stream", fmt.Sprintf("length must not exceed %d characters", MaxStreamNameLen))
	}
	if strings.IndexByte(s, 0) >= 0 {
		return "", invalid("stream", "must not contain a NUL byte")
	}
	return StreamName(s), nil
}

func (n StreamName) String() string { return string(n) }
func (n StreamName) Bytes() []byte  { return []byte(n) }

func isLowerAlphaNumOrHyphen(r rune) bool {
	return (r >= 'a' && r <= 'z') || (r >= '0' && r <= '9') || r == '-'
}

// AccessTokenID is a validated opaque identifier for a stored access token.
type AccessTokenID string

func ParseAccessTokenID(s string) (AccessTokenID, error) {
	if len(s) == 0 || len(s) > MaxTokenIDLen {
		return "", invalid("token_id", fmt.Sprintf("length must be between 1 and %d characters", MaxTokenIDLen))
	}
	return AccessTokenID(s), nil
}
