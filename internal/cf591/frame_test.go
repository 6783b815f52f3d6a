//
// Copyright (C) 2021 Intel Corporation
//
// SPDX-License-Identifier: Apache-2.0

package cf591

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestEncodeFrame_Layout(t *testing.T) {
	payload := []byte{0x1E, 0x00}
	frame, err := encodeFrame(opSetPower, payload)
	require.NoError(t, err)
	require.Len(t, frame, len(payload)+frameOverhead)

	assert.EqualValues(t, frameHeader, frame[0])
	assert.EqualValues(t, broadcastAddr, frame[1])
	assert.EqualValues(t, 0x00, frame[2], "length high byte")
	assert.EqualValues(t, len(frame), frame[3], "length low byte is the total frame length")
	assert.EqualValues(t, opSetPower, frame[4])
	assert.Equal(t, payload, frame[5:7])

	crc := crc16(frame[:len(frame)-2])
	assert.EqualValues(t, byte(crc), frame[len(frame)-2], "CRC low byte first")
	assert.EqualValues(t, byte(crc>>8), frame[len(frame)-1])
}

func TestEncodeFrame_RejectsOversizedPayload(t *testing.T) {
	_, err := encodeFrame(opWriteTag, make([]byte, maxPayloadLen+1))
	assert.ErrorIs(t, err, ErrPayloadTooLarge)

	_, err = encodeFrame(opWriteTag, make([]byte, maxPayloadLen))
	assert.NoError(t, err)
}

func TestDecodeFrame_RoundTrip(t *testing.T) {
	tests := []struct {
		name    string
		status  byte
		payload []byte
	}{
		{"empty payload", 0x00, nil},
		{"inventory ended", 0x12, nil},
		{"power reading", 0x00, []byte{0x1E, 0x00}},
		{"tag report", 0x00, []byte{
			0x00, 0x01, 0xFD, 0x73, 0x01, 0x04, 0xBE, 0xEF,
			0x30, 0x00, 0x04, 0xE2, 0x00, 0x34, 0x12,
		}},
	}

	for _, test := range tests {
		t.Run(test.name, func(t *testing.T) {
			frame, err := encodeFrame(test.status, test.payload)
			require.NoError(t, err)

			resp, err := decodeFrame(frame)
			require.NoError(t, err)
			assert.Equal(t, test.status, resp.status)
			if len(test.payload) == 0 {
				assert.Empty(t, resp.payload)
			} else {
				assert.Equal(t, test.payload, resp.payload)
			}
		})
	}
}

func TestDecodeFrame_AnySingleBitFlipFailsChecksum(t *testing.T) {
	frame, err := encodeFrame(0x00, []byte{0xE2, 0x00, 0x34, 0x12})
	require.NoError(t, err)

	// Corrupt every bit of every byte that the checksum covers.
	for i := 0; i < len(frame)-2; i++ {
		for bit := uint(0); bit < 8; bit++ {
			corrupted := make([]byte, len(frame))
			copy(corrupted, frame)
			corrupted[i] ^= 1 << bit

			_, err := decodeFrame(corrupted)
			assert.Error(t, err,
				"flipping byte %d bit %d must not decode", i, bit)
		}
	}
}

func TestDecodeFrame_Malformed(t *testing.T) {
	good, err := encodeFrame(0x00, []byte{0x01, 0x02})
	require.NoError(t, err)

	tests := []struct {
		name string
		data []byte
		want error
	}{
		{"too short for any frame", good[:5], ErrTruncatedFrame},
		{"wrong header marker", append([]byte{0x42}, good[1:]...), ErrBadHeader},
		{"truncated mid-payload", good[:len(good)-3], ErrTruncatedFrame},
		{"impossible length field", []byte{0xCF, 0xFF, 0x00, 0x03, 0x00, 0x00, 0x00}, ErrBadLength},
	}

	for _, test := range tests {
		t.Run(test.name, func(t *testing.T) {
			_, err := decodeFrame(test.data)
			assert.ErrorIs(t, err, test.want)
		})
	}
}

func TestExtractFrame(t *testing.T) {
	frame, err := encodeFrame(0x00, []byte{0xAB})
	require.NoError(t, err)

	t.Run("skips leading garbage", func(t *testing.T) {
		buf := append([]byte{0x00, 0x13, 0x37}, frame...)
		resp, consumed, err := extractFrame(buf)
		require.NoError(t, err)
		require.NotNil(t, resp)
		assert.Equal(t, len(buf), consumed)
		assert.Equal(t, []byte{0xAB}, resp.payload)
	})

	t.Run("asks for more on a partial frame", func(t *testing.T) {
		resp, consumed, err := extractFrame(frame[:4])
		require.NoError(t, err)
		assert.Nil(t, resp)
		assert.Zero(t, consumed, "partial frame bytes must be kept")
	})

	t.Run("no header means all garbage", func(t *testing.T) {
		buf := []byte{0x01, 0x02, 0x03}
		resp, consumed, err := extractFrame(buf)
		require.NoError(t, err)
		assert.Nil(t, resp)
		assert.Equal(t, len(buf), consumed)
	})

	t.Run("reports corruption and resynchronizes past it", func(t *testing.T) {
		corrupted := make([]byte, len(frame))
		copy(corrupted, frame)
		corrupted[len(corrupted)-1] ^= 0x01

		buf := append(corrupted, frame...)

		resp, consumed, err := extractFrame(buf)
		require.ErrorIs(t, err, ErrBadChecksum)
		require.Nil(t, resp)
		require.Greater(t, consumed, 0)

		// With the bad stretch dropped, the scan finds the valid frame.
		buf = buf[consumed:]
		for {
			resp, consumed, err = extractFrame(buf)
			if err == nil {
				break
			}
			buf = buf[consumed:]
		}
		require.NotNil(t, resp)
		assert.Equal(t, []byte{0xAB}, resp.payload)
	})
}
