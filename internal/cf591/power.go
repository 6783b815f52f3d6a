//
// Copyright (C) 2021 Intel Corporation
//
// SPDX-License-Identifier: Apache-2.0

package cf591

// The distance-to-power table is empirical, measured with the stock 8dBi
// antenna on EPC class 1 labels in open air. Real range depends on tag
// type, antenna, and mounting, so these are documented ranges rather than
// a formula; pick the bucket whose ceiling covers the distance you want.
var powerForDistance = []struct {
	maxMeters float64
	power     uint8
}{
	{0.2, 5},
	{0.5, 10},
	{1.0, 15},
	{2.0, 18},
	{3.0, 20},
	{5.0, 23},
	{8.0, 26},
	{12.0, 28},
}

// PowerForDistance maps a desired read distance in meters to an RF power
// setting. Monotonically non-decreasing; distances beyond the table
// saturate at maximum power. Never fails.
func PowerForDistance(meters float64) uint8 {
	for _, row := range powerForDistance {
		if meters <= row.maxMeters {
			return row.power
		}
	}
	return MaxPower
}

// MaxPower is the strongest RF output the hardware accepts, in dBm.
const MaxPower = 30

// ClampPower saturates a requested power into the hardware's 0-30 range.
func ClampPower(power int) uint8 {
	if power < 0 {
		return 0
	}
	if power > MaxPower {
		return MaxPower
	}
	return uint8(power)
}
