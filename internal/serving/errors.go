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
	"encoding/json"
	"log"
	"net/http"

	"s2lite/internal/apierr"
)

// statusCoder is implemented by every error type the engine/apierr package
// returns that carries its own HTTP status, whether generic or structured.
type statusCoder interface {
	Status() int
}

// errorBodyDTO is the wire shape for a generic error: a stable code plus a
// human-readable message, per the canonical error taxonomy.
type errorBodyDTO struct {
	Code    string `json:"code"`
	Message string `json:"message"`
}

type appendConditionFailedDTO struct {
	Code           string `json:"code"`
	Reason         string `json:"reason"`
	ExpectedSeqNum uint64 `json:"expected_seq_num"`
	ActualSeqNum   uint64 `json:"actual_seq_num,omitempty"`
}

type unwrittenDTO struct {
	Code      string `json:"code"`
	TrimPoint uint64 `json:"trim_point"`
	Tail      uint64 `json:"tail"`
}

// writeError renders any error the engine returns onto the response,
// picking the right status and body shape. Unrecognized errors (a bug
// surfacing a bare Go error rather than an apierr type) fall back to 500
// with CodeOther rather than leaking their message verbatim.
func writeError(w http.ResponseWriter, err error) {
	switch e := err.(type) {
	case *apierr.Generic:
		writeJSON(w, e.Status(), errorBodyDTO{Code: string(e.Code), Message: e.Message})
	case *apierr.AppendConditionFailed:
		writeJSON(w, e.Status(), appendConditionFailedDTO{
			Code:           string(apierr.CodeResourceAlreadyExists),
			Reason:         string(e.Reason),
			ExpectedSeqNum: e.ExpectedSeqNum,
			ActualSeqNum:   e.ActualSeqNum,
		})
	case *apierr.Unwritten:
		writeJSON(w, e.Status(), unwrittenDTO{Code: "unwritten", TrimPoint: e.TrimPoint, Tail: e.Tail})
	case statusCoder:
		writeJSON(w, e.Status(), errorBodyDTO{Code: string(apierr.CodeOther), Message: err.Error()})
	default:
		log.Printf("serving: unmapped error type %T: %v", err, err)
		writeJSON(w, http.StatusInternalServerError, errorBodyDTO{Code: string(apierr.CodeOther), Message: "internal error"})
	}
}

func writeJSON(w http.ResponseWriter, status int, body any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(body); err != nil {
		log.Printf("serving: encode response: %v", err)
	}
}
