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

package wire

import (
	"bufio"
	"fmt"
	"io"

	"google.golang.org/protobuf/encoding/protowire"
)

// MaxFrameLen bounds one s2s/proto frame body, well above the 1 MiB record
// batch cap to leave room for framing overhead while still rejecting a
// corrupt or hostile length prefix outright.
const MaxFrameLen = 2 * 1024 * 1024

// FrameKind distinguishes a regular payload frame from a session
// terminator, the two message shapes s2s/proto carries in both
// directions (client append session, server read session).
type FrameKind int

const (
	FrameRegular FrameKind = iota
	FrameTerminal
)

// Frame is one message of an s2s/proto stream: either a Regular frame
// wrapping an encoded AppendInput/AppendOutput/ReadBatch payload, or a
// Terminal frame carrying a terminal reason string.
type Frame struct {
	Kind    FrameKind
	Payload []byte
	Reason  string
}

// Field numbers for the Frame envelope message: regular(1) bytes,
// terminal_reason(2) string — a oneof expressed as "whichever field is
// present", since a frame is never both.
const (
	frameFieldRegular  = protowire.Number(1)
	frameFieldTerminal = protowire.Number(2)
)

// EncodeFrame marshals one frame's body (without the outer length
// prefix — see WriteFrame for the on-wire form).
func EncodeFrame(f Frame) []byte {
	var b []byte
	switch f.Kind {
	case FrameTerminal:
		b = protowire.AppendTag(b, frameFieldTerminal, protowire.BytesType)
		b = protowire.AppendString(b, f.Reason)
	default:
		b = protowire.AppendTag(b, frameFieldRegular, protowire.BytesType)
		b = protowire.AppendBytes(b, f.Payload)
	}
	return b
}

// DecodeFrame unmarshals one frame body produced by EncodeFrame.
func DecodeFrame(b []byte) (Frame, error) {
	var f Frame
	for len(b) > 0 {
		num, typ, n := protowire.ConsumeTag(b)
		if n < 0 {
			return f, protowire.ParseError(n)
		}
		b = b[n:]
		switch num {
		case frameFieldRegular:
			v, m := protowire.ConsumeBytes(b)
			if m < 0 {
				return f, protowire.ParseError(m)
			}
			f.Kind = FrameRegular
			f.Payload = append([]byte(nil), v...)
			b = b[m:]
		case frameFieldTerminal:
			v, m := protowire.ConsumeString(b)
			if m < 0 {
				return f, protowire.ParseError(m)
			}
			f.Kind = FrameTerminal
			f.Reason = v
			b = b[m:]
		default:
			m := protowire.ConsumeFieldValue(num, typ, b)
			if m < 0 {
				return f, protowire.ParseError(m)
			}
			b = b[m:]
		}
	}
	return f, nil
}

// WriteFrame writes one frame to w as a protobuf varint length prefix
// followed by the frame body, the length-prefixed framing s2s/proto uses
// for both the append-session request stream and the read-session
// response stream.
func WriteFrame(w io.Writer, f Frame) error {
	body := EncodeFrame(f)
	prefixed := protowire.AppendVarint(nil, uint64(len(body)))
	prefixed = append(prefixed, body...)
	_, err := w.Write(prefixed)
	return err
}

// ReadFrame reads one length-prefixed frame from r. It returns io.EOF
// only when zero bytes were read before the length prefix (a clean
// stream close); a truncated prefix or body is a wire error instead.
func ReadFrame(r *bufio.Reader) (Frame, error) {
	length, err := readVarint(r)
	if err != nil {
		return Frame{}, err
	}
	if length > MaxFrameLen {
		return Frame{}, fmt.Errorf("wire: frame length %d exceeds max %d", length, MaxFrameLen)
	}
	body := make([]byte, length)
	if _, err := io.ReadFull(r, body); err != nil {
		return Frame{}, fmt.Errorf("wire: read frame body: %w", err)
	}
	return DecodeFrame(body)
}

// readVarint reads a base-128 varint one byte at a time, the shape
// protowire.AppendVarint produces, without requiring the whole remaining
// stream to be buffered up front.
func readVarint(r *bufio.Reader) (uint64, error) {
	var x uint64
	var shift uint
	for {
		b, err := r.ReadByte()
		if err != nil {
			if err == io.EOF && shift > 0 {
				return 0, fmt.Errorf("wire: truncated frame length prefix: %w", io.ErrUnexpectedEOF)
			}
			return 0, err
		}
		x |= uint64(b&0x7f) << shift
		if b < 0x80 {
			return x, nil
		}
		shift += 7
		if shift >= 64 {
			return 0, fmt.Errorf("wire: varint overflow")
		}
	}
}
