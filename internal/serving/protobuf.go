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

package serving

import (
	"io"
	"log"
	"net/http"

	"s2lite/internal/apierr"
	"s2lite/internal/types"
	"s2lite/internal/wire"
)

func decodeProtobufAppend(r *http.Request) (types.AppendInput, error) {
	body, err := io.ReadAll(r.Body)
	if err != nil {
		return types.AppendInput{}, apierr.New(apierr.CodeBadProto, err.Error())
	}
	in, err := wire.DecodeAppendInput(body)
	if err != nil {
		return types.AppendInput{}, apierr.New(apierr.CodeBadProto, err.Error())
	}
	return in, nil
}

func encodeProtobufAppendOutput(w http.ResponseWriter, out types.AppendOutput) {
	w.Header().Set("Content-Type", "application/protobuf")
	w.WriteHeader(http.StatusOK)
	if _, err := w.Write(wire.EncodeAppendOutput(out)); err != nil {
		log.Printf("serving: write protobuf append output: %v", err)
	}
}
