//
// Copyright (C) 2021 Intel Corporation
//
// SPDX-License-Identifier: Apache-2.0

package inventory

import (
	"strconv"
)

// TagState is the lifecycle position of a tag in the inventory.
type TagState string

const (
	Unknown  TagState = "Unknown"
	Present  TagState = "Present"
	Departed TagState = "Departed"
)

// Tag is the live inventory record for one EPC. One reader serves all
// reads, so a tag's location is the antenna it is strongest at.
type Tag struct {
	EPC string
	// PC is the tag's protocol control word as reported, uppercase hex.
	PC string
	// Antenna is the antenna port the tag currently belongs to.
	Antenna uint8
	// Channel is the RF channel of the most recent read.
	Channel uint8
	// ReadCount is how many reads contributed to this record.
	ReadCount uint64

	LastRead     int64
	LastArrived  int64
	LastDeparted int64
	state        TagState

	// statsMap tracks signal history per antenna port; the mobility
	// profile compares entries when deciding whether the tag moved.
	statsMap map[uint8]*tagStats
}

// NewTag returns a Tag in the Unknown state with no antenna history.
func NewTag(epc string) *Tag {
	return &Tag{
		EPC:      epc,
		state:    Unknown,
		statsMap: make(map[uint8]*tagStats),
	}
}

func (tag *Tag) setState(newState TagState) {
	tag.setStateAt(newState, tag.LastRead)
}

func (tag *Tag) setStateAt(newState TagState, timestamp int64) {
	switch newState {
	case Present:
		tag.LastArrived = timestamp
	case Departed:
		tag.LastDeparted = timestamp
	}
	tag.state = newState
}

// resetStats clears the antenna history so a tag returning after a
// departure starts from fresh signal data.
func (tag *Tag) resetStats() {
	tag.statsMap = make(map[uint8]*tagStats)
}

func (tag *Tag) getStats(antenna uint8) *tagStats {
	stats, found := tag.statsMap[antenna]
	if !found {
		stats = newTagStats()
		tag.statsMap[antenna] = stats
	}
	return stats
}

// locationOf names an antenna port for events, snapshots, and the alias
// table.
func locationOf(antenna uint8) string {
	return "antenna_" + strconv.Itoa(int(antenna))
}
