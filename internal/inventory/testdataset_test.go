//
// Copyright (C) 2021 Intel Corporation
//
// SPDX-License-Identifier: Apache-2.0

package inventory

import (
	"encoding/hex"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.impcloud.net/RSP-Inventory-Suite/cf591-driver/internal/cf591"
)

const (
	defaultAntenna = uint8(1)

	// Signal levels in device resolution, tenths of a dBm.
	rssiMin    = int16(-950)
	rssiMax    = int16(-550)
	rssiStrong = int16(-680)
	rssiWeak   = int16(-820)
)

type testDataset struct {
	tp           *TagProcessor
	epcs         []string
	readTimeOrig time.Time
	events       []Event
}

func newTestDataset(cfg ServiceConfig, tagCount int) *testDataset {
	ds := &testDataset{
		tp:           NewTagProcessor(getTestingLogger(), cfg),
		readTimeOrig: time.Now(),
	}
	for i := 0; i < tagCount; i++ {
		ds.epcs = append(ds.epcs, fmt.Sprintf("E280%020d", i))
	}
	ds.resetEvents()
	return ds
}

func (ds *testDataset) size() int {
	return len(ds.epcs)
}

func (ds *testDataset) resetEvents() {
	ds.events = make([]Event, 0)
}

// tag returns the live inventory record for a dataset index, or nil if
// that EPC was never read.
func (ds *testDataset) tag(tagIndex int) *Tag {
	return ds.tp.inventory[ds.epcs[tagIndex]]
}

type readParams struct {
	antenna uint8
	rssi    int16
	count   int
	// at is the read time; zero means the dataset's origin.
	at time.Time
}

func tagRecord(epc string, antenna uint8, rssi int16) *cf591.TagRecord {
	raw, err := hex.DecodeString(epc)
	if err != nil {
		panic(fmt.Sprintf("bad test EPC %q: %v", epc, err))
	}
	return &cf591.TagRecord{
		RSSI:    rssi,
		Antenna: antenna,
		Channel: 7,
		PC:      [2]byte{0x30, 0x00},
		EPC:     raw,
	}
}

func (ds *testDataset) readTag(tagIndex int, params readParams) {
	at := params.at
	if at.IsZero() {
		at = ds.readTimeOrig
	}

	for i := 0; i < params.count; i++ {
		e := ds.tp.ProcessAt(tagRecord(ds.epcs[tagIndex], params.antenna, params.rssi), at)
		if e != nil {
			ds.events = append(ds.events, e)
		}
	}
}

func (ds *testDataset) readAll(params readParams) {
	for i := range ds.epcs {
		ds.readTag(i, params)
	}
}

// sweepDeparted runs the departed aggregation as if the clock read now and
// collects whatever events it generated.
func (ds *testDataset) sweepDeparted(now time.Time) {
	ds.events = append(ds.events, ds.tp.aggregateDeparted(now)...)
}

func (ds *testDataset) verifyAll(expectedState TagState, expectedLocation string) error {
	var errs []string
	for i := range ds.epcs {
		if err := ds.verifyTag(i, expectedState, expectedLocation); err != nil {
			errs = append(errs, err.Error())
		}
	}

	if len(errs) > 0 {
		return errors.New(strings.Join(errs, "\n"))
	}
	return nil
}

func (ds *testDataset) verifyTag(tagIndex int, expectedState TagState, expectedLocation string) error {
	tag := ds.tag(tagIndex)
	if tag == nil {
		return fmt.Errorf("expected tag index %d (%s) to be in the inventory", tagIndex, ds.epcs[tagIndex])
	}

	if tag.state != expectedState {
		return fmt.Errorf("tag index %d (%s): state %v does not match expected state %v", tagIndex, tag.EPC, tag.state, expectedState)
	}

	// An empty expectedLocation means the caller does not care.
	if expectedLocation != "" {
		location := ds.tp.getAlias(locationOf(tag.Antenna))
		if location != expectedLocation {
			return fmt.Errorf("tag index %d (%s): location %v does not match expected location %v", tagIndex, tag.EPC, location, expectedLocation)
		}
	}

	return nil
}

func (ds *testDataset) verifyStateAll(expectedState TagState) error {
	return ds.verifyAll(expectedState, "")
}

func (ds *testDataset) verifyEventPattern(expectedCount int, expectedTypes ...EventType) error {
	if expectedCount%len(expectedTypes) != 0 {
		return fmt.Errorf("invalid event pattern: count %d is not divisible by pattern length %d", expectedCount, len(expectedTypes))
	}

	if len(ds.events) != expectedCount {
		return fmt.Errorf("expected %d %v events to be generated, but got %d: %#v", expectedCount, expectedTypes, len(ds.events), ds.events)
	}

	for i, e := range ds.events {
		expected := expectedTypes[i%len(expectedTypes)]
		if e.OfType() != expected {
			return fmt.Errorf("expected %v event at index %d but got %v: %#v", expected, i, e.OfType(), ds.events)
		}
	}

	return nil
}

func (ds *testDataset) verifyNoEvents() error {
	if len(ds.events) != 0 {
		return fmt.Errorf("expected no events to be generated, but got %d: %#v", len(ds.events), ds.events)
	}
	return nil
}
