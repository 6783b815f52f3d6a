//
// Copyright (C) 2021 Intel Corporation
//
// SPDX-License-Identifier: Apache-2.0

package cf591

import (
	"encoding/binary"
	"encoding/hex"
	"strings"

	"github.com/pkg/errors"
)

var ErrTagTooShort = errors.New("tag payload shorter than its declared EPC length")

// TagRecord is one tag observation reported during inventory.
//
// Seq increases monotonically within a session as the reader assigns it.
// RSSI is kept at device resolution, tenths of a dBm; use RSSIdBm for the
// scaled value so nothing is truncated before the caller sees it.
type TagRecord struct {
	Seq     uint16
	RSSI    int16
	Antenna uint8
	Channel uint8
	CRC     [2]byte
	PC      [2]byte
	EPC     []byte
}

// tagRecordOverhead is the fixed-width prefix before the variable EPC:
// seq(2) + rssi(2) + antenna(1) + channel(1) + crc(2) + pc(2) + len(1).
const tagRecordOverhead = 11

// decodeTagRecord parses an inventory report payload.
func decodeTagRecord(payload []byte) (*TagRecord, error) {
	if len(payload) < tagRecordOverhead {
		return nil, errors.Wrapf(ErrTagTooShort, "%d bytes", len(payload))
	}

	codeLen := int(payload[10])
	if tagRecordOverhead+codeLen > len(payload) {
		return nil, errors.Wrapf(ErrTagTooShort,
			"EPC length %d exceeds remaining %d bytes", codeLen, len(payload)-tagRecordOverhead)
	}

	t := &TagRecord{
		Seq:     binary.BigEndian.Uint16(payload[0:2]),
		RSSI:    int16(binary.BigEndian.Uint16(payload[2:4])),
		Antenna: payload[4],
		Channel: payload[5],
		EPC:     make([]byte, codeLen),
	}
	copy(t.CRC[:], payload[6:8])
	copy(t.PC[:], payload[8:10])
	copy(t.EPC, payload[11:11+codeLen])
	return t, nil
}

// RSSIdBm returns the signal strength in dBm.
func (t *TagRecord) RSSIdBm() float64 {
	return float64(t.RSSI) / 10.0
}

// EPCString returns the EPC as uppercase hex.
func (t *TagRecord) EPCString() string {
	return hexUpper(t.EPC)
}

// TagResponse is a tag's reply to a memory operation (read, write, lock,
// kill). TagStatus is the raw code the tag answered with; when the reader
// flags the operation failed, isoTagStatus maps it into the status
// taxonomy.
type TagResponse struct {
	TagStatus uint8
	Antenna   uint8
	CRC       [2]byte
	PC        [2]byte
	EPC       []byte
}

// tagResponseOverhead: status(1) + antenna(1) + crc(2) + pc(2) + len(1).
const tagResponseOverhead = 7

// decodeTagResponse parses a tag reply payload. Bytes after the EPC are
// returned as rest; for read operations they are the requested words.
func decodeTagResponse(payload []byte) (resp *TagResponse, rest []byte, err error) {
	if len(payload) < tagResponseOverhead {
		return nil, nil, errors.Wrapf(ErrTagTooShort, "%d bytes", len(payload))
	}

	codeLen := int(payload[6])
	if tagResponseOverhead+codeLen > len(payload) {
		return nil, nil, errors.Wrapf(ErrTagTooShort,
			"EPC length %d exceeds remaining %d bytes", codeLen, len(payload)-tagResponseOverhead)
	}

	r := &TagResponse{
		TagStatus: payload[0],
		Antenna:   payload[1],
		EPC:       make([]byte, codeLen),
	}
	copy(r.CRC[:], payload[2:4])
	copy(r.PC[:], payload[4:6])
	copy(r.EPC, payload[7:7+codeLen])

	tail := payload[7+codeLen:]
	if len(tail) > 0 {
		rest = make([]byte, len(tail))
		copy(rest, tail)
	}
	return r, rest, nil
}

// EPCString returns the EPC as uppercase hex.
func (r *TagResponse) EPCString() string {
	return hexUpper(r.EPC)
}

func hexUpper(b []byte) string {
	return strings.ToUpper(hex.EncodeToString(b))
}
