//
// Copyright (C) 2021 Intel Corporation
//
// SPDX-License-Identifier: Apache-2.0

package inventory

import (
	"math"
	"testing"
)

const epsilon = 0.00001

func TestNewMobilityProfileYIntercept(t *testing.T) {
	tests := []struct {
		name                                        string
		slope, threshold, holdoffMillis, yIntercept float64
	}{
		{"asset_tracking", -0.008, 6, 500, 10},
		{"retail_garment", -0.0005, 6, 60000, 36},
		{"example_1", -0.1, 7, 350, 7 - (-0.1 * 350)},
		{"example_2", -0.049, 13, 1250, 13 - (-0.049 * 1250)},
	}
	for _, test := range tests {
		test := test
		t.Run(test.name, func(t *testing.T) {
			mp := newMobilityProfile(test.slope, test.threshold, test.holdoffMillis)
			if math.Abs(mp.yIntercept-test.yIntercept) > epsilon {
				t.Errorf("Expected yIntercept to be: %v, but was: %v.", test.yIntercept, mp.yIntercept)
			}
		})
	}
}

func TestComputeOffset(t *testing.T) {
	mp := newMobilityProfile(-0.008, 6, 500)

	// Within the holdoff the offset is pinned at the threshold.
	if got := mp.computeOffset(1000, 1000); math.Abs(got-6) > epsilon {
		t.Errorf("Expected full threshold for a fresh read, got %v", got)
	}
	if got := mp.computeOffset(1400, 1000); math.Abs(got-6) > epsilon {
		t.Errorf("Expected full threshold inside the holdoff, got %v", got)
	}

	// At exactly the holdoff boundary the line crosses the threshold.
	if got := mp.computeOffset(1500, 1000); math.Abs(got-6) > epsilon {
		t.Errorf("Expected threshold at the holdoff boundary, got %v", got)
	}

	// Beyond the holdoff the offset decays along the slope.
	beyond := mp.computeOffset(2500, 1000)
	if beyond >= 6 {
		t.Errorf("Expected decayed offset past the holdoff, got %v", beyond)
	}
	if math.Abs(beyond-(-0.008*1500+mp.yIntercept)) > epsilon {
		t.Errorf("Offset did not follow the slope formula: %v", beyond)
	}

	// Far enough out it goes negative: the old antenna yields.
	if got := mp.computeOffset(100000, 1000); got >= 0 {
		t.Errorf("Expected negative offset for a stale read, got %v", got)
	}
}
