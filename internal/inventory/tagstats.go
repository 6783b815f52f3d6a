//
// Copyright (C) 2021 Intel Corporation
//
// SPDX-License-Identifier: Apache-2.0

package inventory

// TagStatsWindowSize is how many recent RSSI samples feed the per-antenna
// moving average.
const TagStatsWindowSize = 20

// tagStats tracks one tag's signal history at one antenna.
type tagStats struct {
	lastRead int64
	rssiDbm  *CircularBuffer
}

func newTagStats() *tagStats {
	return &tagStats{
		rssiDbm: NewCircularBuffer(TagStatsWindowSize),
	}
}

func (stats *tagStats) updateRSSI(rssi float64) {
	stats.rssiDbm.AddValue(rssi)
}

// updateLastRead moves the last-read timestamp forward only; out-of-order
// reads never rewind it.
func (stats *tagStats) updateLastRead(lastRead int64) {
	if lastRead <= stats.lastRead {
		return
	}
	stats.lastRead = lastRead
}

func (stats *tagStats) rssiCount() int {
	return stats.rssiDbm.Len()
}
