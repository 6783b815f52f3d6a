//
// Copyright (C) 2021 Intel Corporation
//
// SPDX-License-Identifier: Apache-2.0

package inventory

// EventType names the kinds of inventory events the processor emits.
type EventType string

const (
	// ArrivedType marks a tag seen for the first time, or seen again after
	// it was Departed.
	ArrivedType EventType = "Arrived"
	// MovedType marks a tag whose strongest antenna changed.
	MovedType EventType = "Moved"
	// DepartedType marks a tag that has not been read for longer than the
	// departed threshold.
	DepartedType EventType = "Departed"
)

// BaseEvent carries the fields common to every inventory event.
type BaseEvent struct {
	// EPC is the tag's Electronic Product Code as uppercase hex.
	EPC string `json:"epc"`
	// Timestamp is when the event occurred, in milliseconds since the
	// Unix epoch.
	Timestamp int64 `json:"timestamp"`
}

// ArrivedEvent is emitted when a tag enters the inventory.
type ArrivedEvent struct {
	BaseEvent
	// Location is where the tag arrived, after alias resolution.
	Location string `json:"location"`
	// RSSI is the signal strength of the arriving read, in dBm.
	RSSI float64 `json:"rssi"`
}

// MovedEvent is emitted when a tag's location changes from one antenna to
// another.
type MovedEvent struct {
	BaseEvent
	// OldLocation is where the tag was before it moved.
	OldLocation string `json:"old_location"`
	// NewLocation is where the tag is now.
	NewLocation string `json:"new_location"`
}

// DepartedEvent is emitted when a tag has gone unread past the departed
// threshold.
type DepartedEvent struct {
	BaseEvent
	// LastRead is the last time the tag was read, in milliseconds since
	// the Unix epoch.
	LastRead int64 `json:"last_read"`
	// LastKnownLocation is where the tag was last seen.
	LastKnownLocation string `json:"last_known_location"`
}

// Event maps each event struct to its EventType.
type Event interface {
	OfType() EventType
}

// OfType for ArrivedEvent returns ArrivedType.
func (a ArrivedEvent) OfType() EventType {
	return ArrivedType
}

// OfType for MovedEvent returns MovedType.
func (m MovedEvent) OfType() EventType {
	return MovedType
}

// OfType for DepartedEvent returns DepartedType.
func (d DepartedEvent) OfType() EventType {
	return DepartedType
}
