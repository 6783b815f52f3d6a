//
// Copyright (C) 2021 Intel Corporation
//
// SPDX-License-Identifier: Apache-2.0

package cf591

import "time"

// Reader command opcodes. The ISO 18000-6C tag class and the reader
// management class occupy disjoint ranges.
const (
	// ISO 18000-6C tag operations.
	opInventoryContinue = 0x01
	opInventoryStop     = 0x02
	opReadTag           = 0x03
	opWriteTag          = 0x04
	opLockTag           = 0x05
	opKillTag           = 0x06
	opSetSelectMask     = 0x07
	opSetQValue         = 0x08
	opGetQValue         = 0x09

	// Reader management.
	opGetInfo       = 0x51
	opReboot        = 0x52
	opSetPower      = 0x53
	opGetPower      = 0x54
	opSetFrequency  = 0x55
	opGetFrequency  = 0x56
	opSetAntenna    = 0x57
	opGetAntenna    = 0x58
	opBuzzer        = 0x5B
	opSetTempLimit  = 0x60
	opGetTemp       = 0x61
	opGetDeviceInfo = 0x70
	opSetParameters = 0x71
	opGetParameters = 0x72
	opRelay         = 0x77
)

// Combined set/get opcodes take a leading selector byte.
const (
	typeSet = 0x01
	typeGet = 0x02
)

// Default timeouts mirroring the vendor tuning: a short window for tag
// polls, a common window for management commands, and a generous one for
// stopping inventory, where stale tag reports may precede the confirmation.
const (
	DefaultPollTimeout    = 50 * time.Millisecond
	DefaultCommandTimeout = 2 * time.Second
	DefaultStopTimeout    = 5 * time.Second
)
