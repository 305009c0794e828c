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

import "time"

// StorageClass selects the backing tier records are retained on.
type StorageClass byte

const (
	StorageClassStandard StorageClass = iota
	StorageClassExpress
)

func (c StorageClass) String() string {
	if c == StorageClassExpress {
		return "express"
	}
	return "standard"
}

func ParseStorageClass(s string) (StorageClass, error) {
	switch s {
	case "", "standard":
		return StorageClassStandard, nil
	case "express":
		return StorageClassExpress, nil
	default:
		return 0, invalid("storage_class", "must be \"standard\" or \"express\"")
	}
}

// TimestampingMode controls how a record's timestamp is assigned on append.
type TimestampingMode byte

const (
	// TimestampingModeClientPrefer uses a client-supplied timestamp when
	// present, clamped to last_ts, falling back to arrival time otherwise.
	TimestampingModeClientPrefer TimestampingMode = iota
	// TimestampingModeClientRequire rejects an append with no client
	// timestamp instead of silently substituting arrival time.
	TimestampingModeClientRequire
	// TimestampingModeArrival always assigns the server's arrival time,
	// ignoring any client-supplied timestamp.
	TimestampingModeArrival
)

func (m TimestampingMode) String() string {
	switch m {
	case TimestampingModeClientRequire:
		return "client-require"
	case TimestampingModeArrival:
		return "arrival"
	default:
		return "client-prefer"
	}
}

func ParseTimestampingMode(s string) (TimestampingMode, error) {
	switch s {
	case "", "client-prefer":
		return TimestampingModeClientPrefer, nil
	case "client-require":
		return TimestampingModeClientRequire, nil
	case "arrival":
		return TimestampingModeArrival, nil
	default:
		return 0, invalid("timestamping_mode", "must be \"client-prefer\", \"client-require\", or \"arrival\"")
	}
}

// StreamConfig is the Stream entity's mutable configuration: how long
// records are retained, whether (and after how long) an empty stream is
// swept away, which storage tier it lives on, and how record timestamps are
// assigned.
type StreamConfig struct {
	// RetentionAge is the configured record retention age, stored and
	// returned with the config. No code reads it: trim-GC deletes only
	// records below the trim point, whatever their age.
	RetentionAge time.Duration
	// DeleteOnEmptyMinAge is how long a stream must stay empty (tail caught
	// up with trim point) before the lifecycle sweep deletes it. Zero
	// disables delete-on-empty for this stream.
	DeleteOnEmptyMinAge time.Duration
	StorageClass        StorageClass
	Timestamping        TimestampingMode
}

// DefaultStreamConfig is applied when a create-stream request carries no
// config: no retention limit, no delete-on-empty, standard storage,
// client-preferred timestamps.
func DefaultStreamConfig() StreamConfig {
	return StreamConfig{}
}

// StreamConfigPatch carries a PATCH /v1/streams/{stream} body: every field
// absent leaves the stored config unchanged.
type StreamConfigPatch struct {
	RetentionAge        Optional[time.Duration]
	DeleteOnEmptyMinAge Optional[time.Duration]
	StorageClass        Optional[StorageClass]
	Timestamping        Optional[TimestampingMode]
}

// Apply merges p onto c, returning the reconfigured value. A field that is
// Absent in p leaves c's value untouched; a field set to null resets it to
// its zero value.
func (c StreamConfig) Apply(p StreamConfigPatch) StreamConfig {
	if v, ok := p.RetentionAge.Value(); ok {
		c.RetentionAge = v
	} else if p.RetentionAge.IsNull() {
		c.RetentionAge = 0
	}
	if v, ok := p.DeleteOnEmptyMinAge.Value(); ok {
		c.DeleteOnEmptyMinAge = v
	} else if p.DeleteOnEmptyMinAge.IsNull() {
		c.DeleteOnEmptyMinAge = 0
	}
	if v, ok := p.StorageClass.Value(); ok {
		c.StorageClass = v
	}
	if v, ok := p.Timestamping.Value(); ok {
		c.Timestamping = v
	}
	return c
}

// BasinConfig is the Basin entity's mutable configuration: today just the
// stream config newly created streams inherit when their own create call
// doesn't override it.
type BasinConfig struct {
	DefaultStreamConfig StreamConfig
}

// BasinConfigPatch carries a PATCH /v1/basins/{basin} body.
type BasinConfigPatch struct {
	DefaultStreamConfig Optional[StreamConfig]
}

func (c BasinConfig) Apply(p BasinConfigPatch) BasinConfig {
	if v, ok := p.DefaultStreamConfig.Value(); ok {
		c.DefaultStreamConfig = v
	}
	return c
}
