//
// Copyright (C) 2021 Intel Corporation
//
// SPDX-License-Identifier: Apache-2.0

package cf591

import (
	"bytes"

	"github.com/pkg/errors"
)

// Wire frame layout, fixed by the reader firmware:
//
//	[0xCF][addr][lenHi][lenLo][cmd/status][payload...][crcLo][crcHi]
//
// The length field is the total frame length: payload length plus the
// seven bytes of fixed overhead. The CRC covers header through payload.
const (
	frameHeader   = 0xCF
	broadcastAddr = 0xFF

	frameOverhead = 7
	maxFrameLen   = 255
	maxPayloadLen = maxFrameLen - frameOverhead
)

var (
	ErrPayloadTooLarge = errors.New("payload exceeds maximum frame length")
	ErrBadHeader       = errors.New("frame does not start with the header marker")
	ErrTruncatedFrame  = errors.New("frame shorter than its declared length")
	ErrBadLength       = errors.New("frame length field out of range")
	ErrBadChecksum     = errors.New("frame checksum mismatch")
)

// response is one decoded reply frame. The command position carries the
// raw status byte; its payload layout depends on the command that
// solicited it.
type response struct {
	status  byte
	payload []byte
}

// encodeFrame builds a complete command frame around op and payload.
func encodeFrame(op byte, payload []byte) ([]byte, error) {
	if len(payload) > maxPayloadLen {
		return nil, errors.Wrapf(ErrPayloadTooLarge, "payload is %d bytes", len(payload))
	}

	total := len(payload) + frameOverhead
	f := make([]byte, 0, total)
	f = append(f, frameHeader, broadcastAddr, byte(total>>8), byte(total))
	f = append(f, op)
	f = append(f, payload...)
	crc := crc16(f)
	f = append(f, byte(crc), byte(crc>>8))
	return f, nil
}

// decodeFrame parses exactly one frame from data. A checksum mismatch or a
// truncated frame is always a decode failure, never a valid status.
func decodeFrame(data []byte) (*response, error) {
	if len(data) < frameOverhead {
		return nil, ErrTruncatedFrame
	}
	if data[0] != frameHeader {
		return nil, ErrBadHeader
	}

	total := int(data[2])<<8 | int(data[3])
	if total < frameOverhead || total > maxFrameLen {
		return nil, errors.Wrapf(ErrBadLength, "declared %d bytes", total)
	}
	if len(data) < total {
		return nil, ErrTruncatedFrame
	}

	want := uint16(data[total-2]) | uint16(data[total-1])<<8
	if got := crc16(data[:total-2]); got != want {
		return nil, errors.Wrapf(ErrBadChecksum, "calculated 0x%04X, frame carries 0x%04X", got, want)
	}

	payload := make([]byte, total-frameOverhead)
	copy(payload, data[5:total-2])
	return &response{status: data[4], payload: payload}, nil
}

// extractFrame scans buf for the next complete frame.
//
// It discards leading garbage up to the first header marker. Outcomes:
//   - a valid frame: (resp, bytes consumed through that frame, nil)
//   - more bytes needed: (nil, count of discardable garbage, nil)
//   - a framed-but-corrupt region: (nil, bytes consumed past the bad
//     header, error) so the caller can count corruption and resume the
//     scan on the remainder.
func extractFrame(buf []byte) (*response, int, error) {
	start := bytes.IndexByte(buf, frameHeader)
	if start < 0 {
		return nil, len(buf), nil
	}

	resp, err := decodeFrame(buf[start:])
	switch {
	case err == nil:
		total := int(buf[start+2])<<8 | int(buf[start+3])
		return resp, start + total, nil
	case errors.Is(err, ErrTruncatedFrame):
		return nil, start, nil
	default:
		// Resynchronize one byte past the bogus header.
		return nil, start + 1, err
	}
}
