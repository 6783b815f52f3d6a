//
// Copyright (C) 2021 Intel Corporation
//
// SPDX-License-Identifier: Apache-2.0

package cf591

import (
	"bytes"
	"strings"
)

// DeviceInfo identifies the RFID module: firmware and hardware versions
// plus the module serial number.
type DeviceInfo struct {
	Firmware string `json:"firmware"`
	Hardware string `json:"hardware"`
	Serial   string `json:"serial"`
}

// infoLen: firmware[32] + hardware[32] + serial[12] + reserved[12].
const infoLen = 88

// Info queries the RFID module's version block.
func (d *Device) Info() (DeviceInfo, error) {
	payload, err := d.command("get info", opGetInfo, nil)
	if err != nil {
		return DeviceInfo{}, err
	}
	if len(payload) < infoLen {
		return DeviceInfo{}, statusErr("get info", StatusRespFormatErr)
	}

	return DeviceInfo{
		Firmware: cString(payload[0:32]),
		Hardware: cString(payload[32:64]),
		Serial:   hexUpper(payload[64:76]),
	}, nil
}

// DeviceFullInfo identifies an integrated reader: the carrier device and
// the RFID module inside it.
type DeviceFullInfo struct {
	DeviceHardware string `json:"device_hardware"`
	DeviceFirmware string `json:"device_firmware"`
	DeviceSerial   string `json:"device_serial"`
	ModuleHardware string `json:"module_hardware"`
	ModuleFirmware string `json:"module_firmware"`
	ModuleSerial   string `json:"module_serial"`
}

// fullInfoLen: two version pairs of 32 bytes each plus two 12-byte serials.
const fullInfoLen = 152

// FullInfo queries the integrated reader's version block.
func (d *Device) FullInfo() (DeviceFullInfo, error) {
	payload, err := d.command("get device info", opGetDeviceInfo, nil)
	if err != nil {
		return DeviceFullInfo{}, err
	}
	if len(payload) < fullInfoLen {
		return DeviceFullInfo{}, statusErr("get device info", StatusRespFormatErr)
	}

	return DeviceFullInfo{
		DeviceHardware: cString(payload[0:32]),
		DeviceFirmware: cString(payload[32:64]),
		DeviceSerial:   hexUpper(payload[64:76]),
		ModuleHardware: cString(payload[76:108]),
		ModuleFirmware: cString(payload[108:140]),
		ModuleSerial:   hexUpper(payload[140:152]),
	}, nil
}

// cString interprets a fixed-width, NUL-padded field.
func cString(b []byte) string {
	if i := bytes.IndexByte(b, 0); i >= 0 {
		b = b[:i]
	}
	return strings.TrimSpace(string(b))
}
