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

// Package wire hand-frames the protobuf unary body and the s2s/proto
// streaming messages with protowire directly, rather than generated
// .pb.go code — there is no protoc step in this build, so low-level
// tag/varint encoding is the idiomatic choice.
package wire

import (
	"fmt"

	"google.golang.org/protobuf/encoding/protowire"

	"s2lite/internal/types"
)

// Field numbers for the Header message: name(1) bytes, value(2) bytes.
const (
	headerFieldName  = protowire.Number(1)
	headerFieldValue = protowire.Number(2)
)

func appendHeader(b []byte, h types.Header) []byte {
	b = protowire.AppendTag(b, headerFieldName, protowire.BytesType)
	b = protowire.AppendBytes(b, h.Name)
	b = protowire.AppendTag(b, headerFieldValue, protowire.BytesType)
	b = protowire.AppendBytes(b, h.Value)
	return b
}

func consumeHeader(b []byte) (types.Header, error) {
	var h types.Header
	for len(b) > 0 {
		num, typ, n := protowire.ConsumeTag(b)
		if n < 0 {
			return h, protowire.ParseError(n)
		}
		b = b[n:]
		switch num {
		case headerFieldName:
			v, m := protowire.ConsumeBytes(b)
			if m < 0 {
				return h, protowire.ParseError(m)
			}
			h.Name = append([]byte(nil), v...)
			b = b[m:]
		case headerFieldValue:
			v, m := protowire.ConsumeBytes(b)
			if m < 0 {
				return h, protowire.ParseError(m)
			}
			h.Value = append([]byte(nil), v...)
			b = b[m:]
		default:
			m := protowire.ConsumeFieldValue(num, typ, b)
			if m < 0 {
				return h, protowire.ParseError(m)
			}
			b = b[m:]
		}
	}
	return h, nil
}

// Field numbers for the Record message: body(1) bytes, timestamp(2)
// varint, headers(3) repeated embedded message.
const (
	recordFieldBody      = protowire.Number(1)
	recordFieldTimestamp = protowire.Number(2)
	recordFieldHeaders   = protowire.Number(3)
	recordFieldSeqNum    = protowire.Number(4)
)

// EncodeRecord marshals one record: body, timestamp, headers, and (for
// records already assigned a position) seq_num.
func EncodeRecord(r types.Record) []byte {
	var b []byte
	b = protowire.AppendTag(b, recordFieldBody, protowire.BytesType)
	b = protowire.AppendBytes(b, r.Body)
	if r.Timestamp != 0 {
		b = protowire.AppendTag(b, recordFieldTimestamp, protowire.VarintType)
		b = protowire.AppendVarint(b, r.Timestamp)
	}
	for _, h := range r.Headers {
		b = protowire.AppendTag(b, recordFieldHeaders, protowire.BytesType)
		b = protowire.AppendBytes(b, appendHeader(nil, h))
	}
	if r.SeqNum != 0 {
		b = protowire.AppendTag(b, recordFieldSeqNum, protowire.VarintType)
		b = protowire.AppendVarint(b, r.SeqNum)
	}
	return b
}

// DecodeRecord unmarshals one record previously produced by EncodeRecord.
func DecodeRecord(b []byte) (types.Record, error) {
	var r types.Record
	for len(b) > 0 {
		num, typ, n := protowire.ConsumeTag(b)
		if n < 0 {
			return r, protowire.ParseError(n)
		}
		b = b[n:]
		switch num {
		case recordFieldBody:
			v, m := protowire.ConsumeBytes(b)
			if m < 0 {
				return r, protowire.ParseError(m)
			}
			r.Body = append([]byte(nil), v...)
			b = b[m:]
		case recordFieldTimestamp:
			v, m := protowire.ConsumeVarint(b)
			if m < 0 {
				return r, protowire.ParseError(m)
			}
			r.Timestamp = v
			b = b[m:]
		case recordFieldSeqNum:
			v, m := protowire.ConsumeVarint(b)
			if m < 0 {
				return r, protowire.ParseError(m)
			}
			r.SeqNum = v
			b = b[m:]
		case recordFieldHeaders:
			v, m := protowire.ConsumeBytes(b)
			if m < 0 {
				return r, protowire.ParseError(m)
			}
			h, err := consumeHeader(v)
			if err != nil {
				return r, fmt.Errorf("wire: decode header: %w", err)
			}
			r.Headers = append(r.Headers, h)
			b = b[m:]
		default:
			m := protowire.ConsumeFieldValue(num, typ, b)
			if m < 0 {
				return r, protowire.ParseError(m)
			}
			b = b[m:]
		}
	}
	return r, nil
}

// Field number for a RecordBatch message: records(1) repeated embedded
// message. Used both for the "records" field of AppendInput and as the
// standalone ReadBatch wire shape.
const batchFieldRecords = protowire.Number(1)

// EncodeBatch marshals an ordered list of records.
func EncodeBatch(records []types.Record) []byte {
	var b []byte
	for _, r := range records {
		b = protowire.AppendTag(b, batchFieldRecords, protowire.BytesType)
		b = protowire.AppendBytes(b, EncodeRecord(r))
	}
	return b
}

// DecodeBatch unmarshals a RecordBatch message into an ordered record
// list.
func DecodeBatch(b []byte) ([]types.Record, error) {
	var records []types.Record
	for len(b) > 0 {
		num, typ, n := protowire.ConsumeTag(b)
		if n < 0 {
			return nil, protowire.ParseError(n)
		}
		b = b[n:]
		switch num {
		case batchFieldRecords:
			v, m := protowire.ConsumeBytes(b)
			if m < 0 {
				return nil, protowire.ParseError(m)
			}
			rec, err := DecodeRecord(v)
			if err != nil {
				return nil, fmt.Errorf("wire: decode record: %w", err)
			}
			records = append(records, rec)
			b = b[m:]
		default:
			m := protowire.ConsumeFieldValue(num, typ, b)
			if m < 0 {
				return nil, protowire.ParseError(m)
			}
			b = b[m:]
		}
	}
	return records, nil
}

// Field numbers for the AppendInput message: records(1) embedded
// RecordBatch, match_seq_num(2) optional varint, has_match_seq_num(3)
// bool-as-varint (protowire has no native optional scalar, so presence is
// carried explicitly), fencing_token(4) optional bytes.
const (
	appendInputFieldRecords        = protowire.Number(1)
	appendInputFieldMatchSeqNum    = protowire.Number(2)
	appendInputFieldHasMatchSeqNum = protowire.Number(3)
	appendInputFieldFencingToken   = protowire.Number(4)
)

// EncodeAppendInput marshals one unary/streaming append request body.
func EncodeAppendInput(in types.AppendInput) []byte {
	var b []byte
	b = protowire.AppendTag(b, appendInputFieldRecords, protowire.BytesType)
	b = protowire.AppendBytes(b, EncodeBatch(in.Batch.Records))
	if in.MatchSeqNum.Set {
		b = protowire.AppendTag(b, appendInputFieldHasMatchSeqNum, protowire.VarintType)
		b = protowire.AppendVarint(b, 1)
		b = protowire.AppendTag(b, appendInputFieldMatchSeqNum, protowire.VarintType)
		b = protowire.AppendVarint(b, in.MatchSeqNum.SeqNum)
	}
	if token, ok := in.FencingToken.Value(); ok {
		b = protowire.AppendTag(b, appendInputFieldFencingToken, protowire.BytesType)
		b = protowire.AppendBytes(b, token)
	}
	return b
}

// DecodeAppendInput unmarshals one append request body.
func DecodeAppendInput(b []byte) (types.AppendInput, error) {
	var in types.AppendInput
	var hasMatchSeqNum bool
	var matchSeqNum uint64
	for len(b) > 0 {
		num, typ, n := protowire.ConsumeTag(b)
		if n < 0 {
			return in, protowire.ParseError(n)
		}
		b = b[n:]
		switch num {
		case appendInputFieldRecords:
			v, m := protowire.ConsumeBytes(b)
			if m < 0 {
				return in, protowire.ParseError(m)
			}
			records, err := DecodeBatch(v)
			if err != nil {
				return in, err
			}
			in.Batch.Records = records
			b = b[m:]
		case appendInputFieldHasMatchSeqNum:
			v, m := protowire.ConsumeVarint(b)
			if m < 0 {
				return in, protowire.ParseError(m)
			}
			hasMatchSeqNum = v != 0
			b = b[m:]
		case appendInputFieldMatchSeqNum:
			v, m := protowire.ConsumeVarint(b)
			if m < 0 {
				return in, protowire.ParseError(m)
			}
			matchSeqNum = v
			b = b[m:]
		case appendInputFieldFencingToken:
			v, m := protowire.ConsumeBytes(b)
			if m < 0 {
				return in, protowire.ParseError(m)
			}
			token, err := types.ParseFencingToken(v)
			if err != nil {
				return in, err
			}
			in.FencingToken = types.OptionalValue(token)
			b = b[m:]
		default:
			m := protowire.ConsumeFieldValue(num, typ, b)
			if m < 0 {
				return in, protowire.ParseError(m)
			}
			b = b[m:]
		}
	}
	if hasMatchSeqNum {
		in.MatchSeqNum = types.MatchSeqNum{SeqNum: matchSeqNum, Set: true}
	}
	return in, nil
}

// Field numbers for the AppendOutput message.
const (
	appendOutputFieldStartSeqNum    = protowire.Number(1)
	appendOutputFieldEndSeqNum      = protowire.Number(2)
	appendOutputFieldStartTimestamp = protowire.Number(3)
	appendOutputFieldEndTimestamp   = protowire.Number(4)
)

// EncodeAppendOutput marshals an append ack.
func EncodeAppendOutput(out types.AppendOutput) []byte {
	var b []byte
	b = protowire.AppendTag(b, appendOutputFieldStartSeqNum, protowire.VarintType)
	b = protowire.AppendVarint(b, out.StartSeqNum)
	b = protowire.AppendTag(b, appendOutputFieldEndSeqNum, protowire.VarintType)
	b = protowire.AppendVarint(b, out.EndSeqNum)
	b = protowire.AppendTag(b, appendOutputFieldStartTimestamp, protowire.VarintType)
	b = protowire.AppendVarint(b, out.StartTimestamp)
	b = protowire.AppendTag(b, appendOutputFieldEndTimestamp, protowire.VarintType)
	b = protowire.AppendVarint(b, out.EndTimestamp)
	return b
}

// DecodeAppendOutput unmarshals an append ack.
func DecodeAppendOutput(b []byte) (types.AppendOutput, error) {
	var out types.AppendOutput
	for len(b) > 0 {
		num, typ, n := protowire.ConsumeTag(b)
		if n < 0 {
			return out, protowire.ParseError(n)
		}
		b = b[n:]
		switch num {
		case appendOutputFieldStartSeqNum:
			v, m := protowire.ConsumeVarint(b)
			if m < 0 {
				return out, protowire.ParseError(m)
			}
			out.StartSeqNum = v
			b = b[m:]
		case appendOutputFieldEndSeqNum:
			v, m := protowire.ConsumeVarint(b)
			if m < 0 {
				return out, protowire.ParseError(m)
			}
			out.EndSeqNum = v
			b = b[m:]
		case appendOutputFieldStartTimestamp:
			v, m := protowire.ConsumeVarint(b)
			if m < 0 {
				return out, protowire.ParseError(m)
			}
			out.StartTimestamp = v
			b = b[m:]
		case appendOutputFieldEndTimestamp:
			v, m := protowire.ConsumeVarint(b)
			if m < 0 {
				return out, protowire.ParseError(m)
			}
			out.EndTimestamp = v
			b = b[m:]
		default:
			m := protowire.ConsumeFieldValue(num, typ, b)
			if m < 0 {
				return out, protowire.ParseError(m)
			}
			b = b[m:]
		}
	}
	return out, nil
}
