//
// Copyright (C) 2021 Intel Corporation
//
// SPDX-License-Identifier: Apache-2.0

package inventory

// StaticTag is a Tag frozen at a point in time for use with APIs. It holds
// no pointers into the live inventory, so callers may keep it as long as
// they like.
type StaticTag struct {
	// EPC is the tag's Electronic Product Code as uppercase hex.
	EPC string `json:"epc"`
	// PC is the tag's protocol control word as uppercase hex.
	PC string `json:"pc"`
	// Location is the tag's current antenna after alias resolution.
	Location string `json:"location"`
	// Antenna is the raw antenna port backing Location.
	Antenna uint8 `json:"antenna"`
	// LastRead is the last time the tag was read by any antenna
	// (Unix epoch milliseconds). Departed and age-out decisions key
	// off this value.
	LastRead int64 `json:"last_read"`
	// LastArrived is the most recent time this tag generated an
	// ArrivedEvent (Unix epoch milliseconds).
	LastArrived int64 `json:"last_arrived"`
	// LastDeparted is the most recent time this tag generated a
	// DepartedEvent (Unix epoch milliseconds).
	LastDeparted int64 `json:"last_departed"`
	// ReadCount is how many reads contributed to this record.
	ReadCount uint64 `json:"read_count"`
	// State is the tag's lifecycle state (Present, Departed, Unknown).
	State TagState `json:"state"`
	// StatsMap holds per-antenna read statistics, keyed by location name.
	StatsMap map[string]StaticTagStats `json:"stats_map"`
}

// StaticTagStats is a tagStats frozen in time, with the moving average
// already computed.
type StaticTagStats struct {
	LastRead int64   `json:"last_read"`
	MeanRSSI float64 `json:"mean_rssi"`
}
