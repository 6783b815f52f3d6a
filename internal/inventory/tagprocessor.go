//
// Copyright (C) 2021 Intel Corporation
//
// SPDX-License-Identifier: Apache-2.0

// Package inventory turns the reader's raw tag reads into a live tag
// inventory: deduplication by EPC, per-antenna signal smoothing, and
// Arrived / Moved / Departed events.
package inventory

import (
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/edgexfoundry/go-mod-core-contracts/clients/logger"

	"github.impcloud.net/RSP-Inventory-Suite/cf591-driver/internal/cf591"
)

// TagProcessor consumes tag reads and maintains the inventory. All methods
// are safe for concurrent use; the poll loop feeds reads in while API
// handlers take snapshots.
type TagProcessor struct {
	lc logger.LoggingClient

	mu        sync.Mutex
	inventory map[string]*Tag

	profile           mobilityProfile
	aliases           map[string]string
	departedThreshold time.Duration
	ageOutWindow      time.Duration
}

// NewTagProcessor creates a processor from the service configuration.
func NewTagProcessor(lc logger.LoggingClient, cfg ServiceConfig) *TagProcessor {
	inv := cfg.Inventory

	aliases := make(map[string]string, len(cfg.Aliases))
	for loc, alias := range cfg.Aliases {
		if loc == "" || alias == "" {
			continue
		}
		aliases[loc] = alias
	}

	return &TagProcessor{
		lc:                lc,
		inventory:         make(map[string]*Tag),
		profile:           newMobilityProfile(inv.MobilityProfileSlope, inv.MobilityProfileThreshold, inv.MobilityProfileHoldoffMillis),
		aliases:           aliases,
		departedThreshold: time.Duration(inv.DepartedThresholdSeconds) * time.Second,
		ageOutWindow:      time.Duration(inv.AgeOutHours) * time.Hour,
	}
}

// getAlias returns the alias for a location if one is defined, otherwise
// the location itself.
func (tp *TagProcessor) getAlias(location string) string {
	if alias, exists := tp.aliases[location]; exists {
		return alias
	}
	return location
}

// Process feeds one tag read into the inventory and returns the event it
// caused, or nil for an uneventful read.
func (tp *TagProcessor) Process(report *cf591.TagRecord) Event {
	return tp.ProcessAt(report, time.Now())
}

// ProcessAt is Process with the read time supplied by the caller. The
// reader's report frames carry no timestamps, so the host clock is
// authoritative; tests feed synthetic times through here.
func (tp *TagProcessor) ProcessAt(report *cf591.TagRecord, at time.Time) Event {
	tp.mu.Lock()
	defer tp.mu.Unlock()

	epc := report.EPCString()
	tag, exists := tp.inventory[epc]
	if !exists {
		tag = NewTag(epc)
		tp.inventory[epc] = tag
	}

	prevState := tag.state
	prevAntenna := tag.Antenna
	firstRead := tag.ReadCount == 0

	lastRead := UnixMilli(at)
	if lastRead > tag.LastRead {
		tag.LastRead = lastRead
	}
	tag.PC = fmt.Sprintf("%02X%02X", report.PC[0], report.PC[1])
	tag.Channel = report.Channel
	tag.ReadCount++

	rssi := report.RSSIdBm()
	readStats := tag.getStats(report.Antenna)
	readStats.updateRSSI(rssi)
	readStats.updateLastRead(lastRead)

	tp.updateLocation(tag, report.Antenna, firstRead, lastRead)

	switch prevState {
	case Unknown, Departed:
		tag.setState(Present)
		return ArrivedEvent{
			BaseEvent: BaseEvent{
				EPC:       tag.EPC,
				Timestamp: tag.LastRead,
			},
			Location: tp.getAlias(locationOf(tag.Antenna)),
			RSSI:     rssi,
		}

	case Present:
		if firstRead || prevAntenna == tag.Antenna {
			return nil
		}
		prevAlias := tp.getAlias(locationOf(prevAntenna))
		curAlias := tp.getAlias(locationOf(tag.Antenna))
		if prevAlias == curAlias {
			// Two ports covering one area share an alias; shuffling
			// between them is not a move.
			return nil
		}
		return MovedEvent{
			BaseEvent: BaseEvent{
				EPC:       tag.EPC,
				Timestamp: tag.LastRead,
			},
			OldLocation: prevAlias,
			NewLocation: curAlias,
		}
	}

	return nil
}

// updateLocation decides whether the read moves the tag to the reporting
// antenna. The current antenna keeps the tag until the new one's smoothed
// signal beats it by the mobility profile's margin.
func (tp *TagProcessor) updateLocation(tag *Tag, readAntenna uint8, firstRead bool, lastRead int64) {
	if firstRead || tag.Antenna == readAntenna {
		tag.Antenna = readAntenna
		return
	}

	prevStats, tracked := tag.statsMap[tag.Antenna]
	if !tracked || prevStats.rssiCount() == 0 {
		// Prior history was cleared; nothing to defend the old antenna.
		tag.Antenna = readAntenna
		return
	}

	readStats := tag.statsMap[readAntenna]
	if readStats.rssiCount() < 2 {
		// A single sample is too noisy to justify a move.
		return
	}

	incomingMean := readStats.rssiDbm.Mean()
	currentMean := prevStats.rssiDbm.Mean()
	offset := tp.profile.computeOffset(lastRead, prevStats.lastRead)

	if incomingMean > currentMean+offset {
		tp.lc.Debug("Tag moved antennas.",
			"epc", tag.EPC,
			"from", locationOf(tag.Antenna),
			"to", locationOf(readAntenna),
			"incomingAvg", fmt.Sprintf("%.2f", incomingMean),
			"currentAvg", fmt.Sprintf("%.2f", currentMean),
			"offset", fmt.Sprintf("%.2f", offset))
		tag.Antenna = readAntenna
	}
}

// AggregateDeparted marks Present tags unseen past the departed threshold
// as Departed and returns the events generated.
func (tp *TagProcessor) AggregateDeparted() []Event {
	return tp.aggregateDeparted(time.Now())
}

func (tp *TagProcessor) aggregateDeparted(now time.Time) []Event {
	tp.mu.Lock()
	defer tp.mu.Unlock()

	nowMs := UnixMilli(now)
	minLastRead := UnixMilli(now.Add(-tp.departedThreshold))

	var events []Event
	for _, tag := range tp.inventory {
		if tag.state != Present || tag.LastRead >= minLastRead {
			continue
		}

		tag.setStateAt(Departed, nowMs)
		events = append(events, DepartedEvent{
			BaseEvent: BaseEvent{
				EPC:       tag.EPC,
				Timestamp: nowMs,
			},
			LastRead:          tag.LastRead,
			LastKnownLocation: tp.getAlias(locationOf(tag.Antenna)),
		})

		// Fresh signal data if it ever comes back.
		tag.resetStats()
		tp.lc.Debug("Tag departed.", "epc", tag.EPC, "msSinceLastSeen", nowMs-tag.LastRead)
	}
	return events
}

// AgeOut drops Departed tags unseen past the age-out window and returns
// how many were removed.
func (tp *TagProcessor) AgeOut() int {
	return tp.ageOut(time.Now())
}

func (tp *TagProcessor) ageOut(now time.Time) int {
	tp.mu.Lock()
	defer tp.mu.Unlock()

	minLastRead := UnixMilli(now.Add(-tp.ageOutWindow))

	var removed int
	for epc, tag := range tp.inventory {
		if tag.state == Departed && tag.LastRead < minLastRead {
			removed++
			delete(tp.inventory, epc)
		}
	}

	if removed > 0 {
		tp.lc.Info(fmt.Sprintf("Inventory age-out removed %d tag(s).", removed))
	}
	return removed
}

// Snapshot freezes the whole inventory into StaticTags, sorted by EPC.
func (tp *TagProcessor) Snapshot() []StaticTag {
	tp.mu.Lock()
	defer tp.mu.Unlock()

	res := make([]StaticTag, 0, len(tp.inventory))
	for _, tag := range tp.inventory {
		static := StaticTag{
			EPC:          tag.EPC,
			PC:           tag.PC,
			Location:     tp.getAlias(locationOf(tag.Antenna)),
			Antenna:      tag.Antenna,
			LastRead:     tag.LastRead,
			LastArrived:  tag.LastArrived,
			LastDeparted: tag.LastDeparted,
			ReadCount:    tag.ReadCount,
			State:        tag.state,
			StatsMap:     make(map[string]StaticTagStats, len(tag.statsMap)),
		}

		for antenna, stats := range tag.statsMap {
			if stats.rssiCount() == 0 {
				continue
			}
			static.StatsMap[tp.getAlias(locationOf(antenna))] = StaticTagStats{
				LastRead: stats.lastRead,
				MeanRSSI: stats.rssiDbm.Mean(),
			}
		}

		res = append(res, static)
	}

	sort.Slice(res, func(i, j int) bool { return res[i].EPC < res[j].EPC })
	return res
}

// Restore seeds the inventory from a persisted snapshot. Signal history
// does not survive the round trip; the mobility profile starts fresh.
func (tp *TagProcessor) Restore(snapshot []StaticTag) {
	tp.mu.Lock()
	defer tp.mu.Unlock()

	for _, s := range snapshot {
		if s.EPC == "" {
			continue
		}

		tag := NewTag(s.EPC)
		tag.PC = s.PC
		tag.Antenna = s.Antenna
		tag.LastRead = s.LastRead
		tag.LastArrived = s.LastArrived
		tag.LastDeparted = s.LastDeparted
		tag.ReadCount = s.ReadCount
		if s.State != "" {
			tag.state = s.State
		}
		tp.inventory[s.EPC] = tag
	}
}

// Len returns how many tags the inventory currently tracks, in any state.
func (tp *TagProcessor) Len() int {
	tp.mu.Lock()
	defer tp.mu.Unlock()
	return len(tp.inventory)
}
