//
// Copyright (C) 2021 Intel Corporation
//
// SPDX-License-Identifier: Apache-2.0

package cf591

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestCRC16_KnownVectors(t *testing.T) {
	tests := []struct {
		name string
		data []byte
		want uint16
	}{
		{"empty input keeps the preset", nil, 0xFFFF},
		{"single zero byte", []byte{0x00}, 0x0F87},
		{"standard check string", []byte("123456789"), 0x6F91},
	}

	for _, test := range tests {
		t.Run(test.name, func(t *testing.T) {
			assert.Equal(t, test.want, crc16(test.data))
		})
	}
}

func TestCRC16_SensitiveToEveryBit(t *testing.T) {
	data := []byte{0xCF, 0xFF, 0x00, 0x0C, 0x01, 0xE2, 0x00, 0x34, 0x12}
	base := crc16(data)

	for i := range data {
		for bit := uint(0); bit < 8; bit++ {
			flipped := make([]byte, len(data))
			copy(flipped, data)
			flipped[i] ^= 1 << bit
			assert.NotEqual(t, base, crc16(flipped),
				"flipping byte %d bit %d must change the checksum", i, bit)
		}
	}
}
