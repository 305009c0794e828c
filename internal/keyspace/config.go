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

package keyspace

import (
	"encoding/binary"
	"time"

	"s2lite/internal/types"
)

// streamConfigValueLen: retention_secs(8) | delete_on_empty_min_age_secs(8)
// | storage_class(1) | timestamping_mode(1). This is the value half of both
// the Stream row (per-stream config) and the Basin row's trailing bytes
// (the basin's default stream config), so the two share one codec.
const streamConfigValueLen = 8 + 8 + 1 + 1

func SerStreamConfigValue(cfg types.StreamConfig) []byte {
	buf := make([]byte, streamConfigValueLen)
	binary.BigEndian.PutUint64(buf[0:8], uint64(cfg.RetentionAge.Seconds()))
	binary.BigEndian.PutUint64(buf[8:16], uint64(cfg.DeleteOnEmptyMinAge.Seconds()))
	buf[16] = byte(cfg.StorageClass)
	buf[17] = byte(cfg.Timestamping)
	return buf
}

func DeserStreamConfigValue(b []byte) (types.StreamConfig, error) {
	if err := checkExactSize(b, streamConfigValueLen); err != nil {
		return types.StreamConfig{}, err
	}
	return types.StreamConfig{
		RetentionAge:        time.Duration(binary.BigEndian.Uint64(b[0:8])) * time.Second,
		DeleteOnEmptyMinAge: time.Duration(binary.BigEndian.Uint64(b[8:16])) * time.Second,
		StorageClass:        types.StorageClass(b[16]),
		Timestamping:        types.TimestampingMode(b[17]),
	}, nil
}
