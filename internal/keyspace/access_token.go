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

import "s2lite/internal/types"

// AccessTokenKey: KT | token-id-utf8 -> serialized access-token record
// (owned by internal/authz), so listing/looking-up tokens is a plain
// prefix scan or point lookup.

func AccessTokenKey(id types.AccessTokenID) []byte {
	buf := make([]byte, 1+len(id))
	buf[0] = KeyTypeAccessToken.Byte()
	copy(buf[1:], id)
	return buf
}

func DeserAccessTokenKey(key []byte) (types.AccessTokenID, error) {
	if err := checkMinSize(key, 2); err != nil {
		return "", err
	}
	if err := checkOrdinal(key[0], KeyTypeAccessToken); err != nil {
		return "", err
	}
	id, err := types.ParseAccessTokenID(string(key[1:]))
	if err != nil {
		return "", errInvalidValue("token_id", err.Error())
	}
	return id, nil
}
