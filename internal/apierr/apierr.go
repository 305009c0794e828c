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

// Package apierr maps the engine's internal error taxonomy onto the wire
// error codes and HTTP statuses every serving adapter (json/protobuf/sse)
// renders from.
package apierr

import "net/http"

// Code is a canonical, stable wire error code.
type Code string

const (
	CodeBadFrame  Code = "bad_frame"
	CodeBadHeader Code = "bad_header"
	CodeBadJSON   Code = "bad_json"
	CodeBadPath   Code = "bad_path"
	CodeBadProto  Code = "bad_proto"
	CodeBadQuery  Code = "bad_query"

	CodeInvalid Code = "invalid"

	CodeAccessTokenNotFound Code = "access_token_not_found"
	CodeBasinNotFound       Code = "basin_not_found"
	CodeStreamNotFound      Code = "stream_not_found"

	CodeBasinDeletionPending  Code = "basin_deletion_pending"
	CodeStreamDeletionPending Code = "stream_deletion_pending"
	CodeResourceAlreadyExists Code = "resource_already_exists"
	CodeTransactionConflict   Code = "transaction_conflict"

	CodePermissionDenied Code = "permission_denied"
	CodeQuotaExhausted   Code = "quota_exhausted"

	CodeRateLimited Code = "rate_limited"
	CodeClientHangup Code = "client_hangup"

	CodeHotServer  Code = "hot_server"
	CodeUnavailable Code = "unavailable"

	CodeTimeout Code = "timeout"

	CodeStorage Code = "storage"
	CodeOther   Code = "other"
)

// Status maps a canonical code to the HTTP status every adapter renders,
// per the table in the error handling design.
func (c Code) Status() int {
	switch c {
	case CodeBadFrame, CodeBadHeader, CodeBadJSON, CodeBadPath, CodeBadProto, CodeBadQuery:
		return http.StatusBadRequest
	case CodeInvalid:
		return http.StatusUnprocessableEntity
	case CodeAccessTokenNotFound, CodeBasinNotFound, CodeStreamNotFound:
		return http.StatusNotFound
	case CodeBasinDeletionPending, CodeStreamDeletionPending, CodeResourceAlreadyExists, CodeTransactionConflict:
		return http.StatusConflict
	case CodePermissionDenied, CodeQuotaExhausted:
		return http.StatusForbidden
	case CodeRateLimited:
		return http.StatusTooManyRequests
	case CodeClientHangup:
		return 499
	case CodeHotServer, CodeUnavailable:
		return http.StatusServiceUnavailable
	case CodeTimeout:
		return http.StatusRequestTimeout
	case CodeStorage, CodeOther:
		return http.StatusInternalServerError
	default:
		return http.StatusInternalServerError
	}
}

// Generic is the ordinary wire error shape: a canonical code plus a
// human-readable message.
type Generic struct {
	Code    Code
	Message string
}

func (e *Generic) Error() string { return e.Message }

func New(code Code, message string) error {
	return &Generic{Code: code, Message: message}
}

// AppendConditionFailed is a structured, non-generic error for a failed
// match_seq_num or fencing_token check: the client needs the actual tail
// position to decide how to retry, which a bare message can't carry.
// Rendered as HTTP 412.
type AppendConditionReason string

const (
	ReasonSeqNumMismatch     AppendConditionReason = "seq_num_mismatch"
	ReasonFencingTokenMismatch AppendConditionReason = "fencing_token_mismatch"
)

type AppendConditionFailed struct {
	Reason         AppendConditionReason
	ExpectedSeqNum uint64
	ActualSeqNum   uint64
}

func (e *AppendConditionFailed) Error() string {
	return "append condition failed: " + string(e.Reason)
}

func (e *AppendConditionFailed) Status() int { return http.StatusPreconditionFailed }

// Unwritten is a structured, non-generic error returned when a read
// requests a seq_num range that has already been trimmed away. Rendered
// as HTTP 416 with the current trim point so the client can re-seek.
type Unwritten struct {
	TrimPoint uint64
	Tail      uint64
}

func (e *Unwritten) Error() string { return "requested range is no longer retained" }

func (e *Unwritten) Status() int { return http.StatusRequestedRangeNotSatisfiable }
