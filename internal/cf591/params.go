//
// Copyright (C) 2021 Intel Corporation
//
// SPDX-License-Identifier: Apache-2.0

package cf591

import (
	"encoding/binary"

	"github.com/pkg/errors"
)

// WorkMode selects how the reader initiates inventory.
type WorkMode uint8

const (
	// WorkModeAnswer: the reader scans only when the host commands it.
	WorkModeAnswer WorkMode = 0
	// WorkModeActive: the reader scans on its own and pushes reports.
	WorkModeActive WorkMode = 1
	// WorkModeTrigger: scanning follows the external trigger input.
	WorkModeTrigger WorkMode = 2
)

// RFSession is the Gen2 session flag (S0-S3) tags persist their
// inventoried state in. Distinct from the host's session state machine.
type RFSession uint8

const (
	SessionS0 RFSession = iota
	SessionS1
	SessionS2
	SessionS3
)

// Region selects the regulatory frequency band. Each band carries a stock
// channel plan in the reader's firmware.
type Region uint8

const (
	RegionFCC   Region = 0x01 // US, 902-928 MHz
	RegionETSI  Region = 0x02 // EU, 865-868 MHz
	RegionChina Region = 0x03
	RegionKorea Region = 0x04
	RegionJapan Region = 0x05
	// RegionOpen unlocks a custom channel plan via SetFrequencyPlan.
	RegionOpen Region = 0x06
)

// DeviceParameters is the reader's persistent configuration block.
// Set writes the whole block; read-modify-write via Parameters first.
// A Get after a Set returns the values just set, subject to clamping the
// firmware applies to out-of-range fields.
type DeviceParameters struct {
	Address       uint8     `json:"address"`
	Protocol      uint8     `json:"protocol"`
	WorkMode      WorkMode  `json:"work_mode"`
	Interface     uint8     `json:"interface"`
	Baud          uint8     `json:"baud"`
	Wiegand       uint8     `json:"wiegand"`
	Antenna       uint8     `json:"antenna"`
	Region        Region    `json:"region"`
	FreqStartInt  uint16    `json:"freq_start_int"`
	FreqStartDec  uint16    `json:"freq_start_dec"`
	FreqStep      uint16    `json:"freq_step"`
	ChannelCount  uint8     `json:"channel_count"`
	Power         uint8     `json:"power"`
	InventoryArea uint8     `json:"inventory_area"`
	QValue        uint8     `json:"q_value"`
	Session       RFSession `json:"session"`
	AccessAddr    uint8     `json:"access_addr"`
	AccessLen     uint8     `json:"access_len"`
	FilterTime    uint8     `json:"filter_time"`
	TriggerTime   uint8     `json:"trigger_time"` // seconds
	BuzzerTime    uint8     `json:"buzzer_time"`
	PollInterval  uint8     `json:"poll_interval"`
}

const deviceParamsLen = 25

func encodeDeviceParameters(p DeviceParameters) []byte {
	b := make([]byte, deviceParamsLen)
	b[0] = p.Address
	b[1] = p.Protocol
	b[2] = uint8(p.WorkMode)
	b[3] = p.Interface
	b[4] = p.Baud
	b[5] = p.Wiegand
	b[6] = p.Antenna
	b[7] = uint8(p.Region)
	binary.BigEndian.PutUint16(b[8:10], p.FreqStartInt)
	binary.BigEndian.PutUint16(b[10:12], p.FreqStartDec)
	binary.BigEndian.PutUint16(b[12:14], p.FreqStep)
	b[14] = p.ChannelCount
	b[15] = p.Power
	b[16] = p.InventoryArea
	b[17] = p.QValue
	b[18] = uint8(p.Session)
	b[19] = p.AccessAddr
	b[20] = p.AccessLen
	b[21] = p.FilterTime
	b[22] = p.TriggerTime
	b[23] = p.BuzzerTime
	b[24] = p.PollInterval
	return b
}

func decodeDeviceParameters(b []byte) (DeviceParameters, error) {
	if len(b) < deviceParamsLen {
		return DeviceParameters{}, errors.Errorf(
			"parameter block is %d bytes, want %d", len(b), deviceParamsLen)
	}

	return DeviceParameters{
		Address:       b[0],
		Protocol:      b[1],
		WorkMode:      WorkMode(b[2]),
		Interface:     b[3],
		Baud:          b[4],
		Wiegand:       b[5],
		Antenna:       b[6],
		Region:        Region(b[7]),
		FreqStartInt:  binary.BigEndian.Uint16(b[8:10]),
		FreqStartDec:  binary.BigEndian.Uint16(b[10:12]),
		FreqStep:      binary.BigEndian.Uint16(b[12:14]),
		ChannelCount:  b[14],
		Power:         b[15],
		InventoryArea: b[16],
		QValue:        b[17],
		Session:       RFSession(b[18]),
		AccessAddr:    b[19],
		AccessLen:     b[20],
		FilterTime:    b[21],
		TriggerTime:   b[22],
		BuzzerTime:    b[23],
		PollInterval:  b[24],
	}, nil
}

// Parameters reads the reader's configuration block.
func (d *Device) Parameters() (DeviceParameters, error) {
	payload, err := d.command("get parameters", opGetParameters, nil)
	if err != nil {
		return DeviceParameters{}, err
	}
	p, derr := decodeDeviceParameters(payload)
	if derr != nil {
		return DeviceParameters{}, errors.Wrap(derr, "get parameters")
	}
	return p, nil
}

// SetParameters writes the reader's configuration block. The block is
// written whole; fetch with Parameters first to preserve fields you are
// not changing.
func (d *Device) SetParameters(p DeviceParameters) error {
	_, err := d.command("set parameters", opSetParameters, encodeDeviceParameters(p))
	return err
}

// SetRegion switches the regulatory band by rewriting the parameter block
// with only the region changed. The reader swaps in the band's stock
// channel plan on its own.
func (d *Device) SetRegion(region Region) error {
	p, err := d.Parameters()
	if err != nil {
		return errors.Wrap(err, "set region")
	}
	p.Region = region
	return d.SetParameters(p)
}

// FrequencyPlan is the RF channel plan: a regulatory region and the
// channel ladder inventory hops across.
type FrequencyPlan struct {
	Region    Region `json:"region"`
	StartFreq uint16 `json:"start_freq"`
	StopFreq  uint16 `json:"stop_freq"`
	StepFreq  uint16 `json:"step_freq"`
	Channels  uint8  `json:"channels"`
}

const freqPlanLen = 8

func encodeFrequencyPlan(p FrequencyPlan) []byte {
	b := make([]byte, freqPlanLen)
	b[0] = uint8(p.Region)
	binary.BigEndian.PutUint16(b[1:3], p.StartFreq)
	binary.BigEndian.PutUint16(b[3:5], p.StopFreq)
	binary.BigEndian.PutUint16(b[5:7], p.StepFreq)
	b[7] = p.Channels
	return b
}

func decodeFrequencyPlan(b []byte) (FrequencyPlan, error) {
	if len(b) < freqPlanLen {
		return FrequencyPlan{}, errors.Errorf(
			"frequency plan is %d bytes, want %d", len(b), freqPlanLen)
	}
	return FrequencyPlan{
		Region:    Region(b[0]),
		StartFreq: binary.BigEndian.Uint16(b[1:3]),
		StopFreq:  binary.BigEndian.Uint16(b[3:5]),
		StepFreq:  binary.BigEndian.Uint16(b[5:7]),
		Channels:  b[7],
	}, nil
}

// FrequencyPlan reads the active RF channel plan.
func (d *Device) FrequencyPlan() (FrequencyPlan, error) {
	payload, err := d.command("get frequency plan", opGetFrequency, nil)
	if err != nil {
		return FrequencyPlan{}, err
	}
	p, derr := decodeFrequencyPlan(payload)
	if derr != nil {
		return FrequencyPlan{}, errors.Wrap(derr, "get frequency plan")
	}
	return p, nil
}

// SetFrequencyPlan writes the RF channel plan. Frequency selection is
// regulatory configuration the caller owns; the driver only carries it.
func (d *Device) SetFrequencyPlan(p FrequencyPlan) error {
	_, err := d.command("set frequency plan", opSetFrequency, encodeFrequencyPlan(p))
	return err
}
