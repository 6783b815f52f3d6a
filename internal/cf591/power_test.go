//
// Copyright (C) 2021 Intel Corporation
//
// SPDX-License-Identifier: Apache-2.0

package cf591

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestPowerForDistance(t *testing.T) {
	tests := []struct {
		meters float64
		want   uint8
	}{
		{0, 5},
		{0.2, 5},
		{0.21, 10},
		{1.0, 15},
		{4.0, 23},
		{12.0, 28},
		{12.1, MaxPower},
		{100, MaxPower},
	}

	for _, test := range tests {
		assert.Equal(t, test.want, PowerForDistance(test.meters),
			"%.2f meters", test.meters)
	}
}

func TestPowerForDistanceIsMonotonic(t *testing.T) {
	prev := uint8(0)
	for meters := 0.0; meters <= 15.0; meters += 0.1 {
		p := PowerForDistance(meters)
		assert.GreaterOrEqual(t, p, prev, "at %.1f meters", meters)
		prev = p
	}
}

func TestClampPower(t *testing.T) {
	assert.EqualValues(t, 0, ClampPower(-1))
	assert.EqualValues(t, 0, ClampPower(0))
	assert.EqualValues(t, 17, ClampPower(17))
	assert.EqualValues(t, MaxPower, ClampPower(MaxPower))
	assert.EqualValues(t, MaxPower, ClampPower(MaxPower+1))
	assert.EqualValues(t, MaxPower, ClampPower(1000))
}
