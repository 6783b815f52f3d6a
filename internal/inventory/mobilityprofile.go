//
// Copyright (C) 2021 Intel Corporation
//
// SPDX-License-Identifier: Apache-2.0

package inventory

// mobilityProfile defines the weighted slope formula used when deciding
// whether a tag has moved to a different antenna. A tag only moves when the
// new antenna's signal beats the old one's by a margin; that margin decays
// over time, so a tag that has not been seen at its old antenna for a while
// gives it up more easily.
type mobilityProfile struct {
	// slope, in dBm per millisecond, controls how fast the margin decays.
	slope float64
	// threshold is the margin in dBm while the old reading is fresh.
	threshold float64
	// holdoffMillis is how long the full threshold applies before the
	// slope starts eating into it.
	holdoffMillis float64
	// b = y - (m*x)
	yIntercept float64
}

func newMobilityProfile(slope, threshold, holdoffMillis float64) mobilityProfile {
	return mobilityProfile{
		slope:         slope,
		threshold:     threshold,
		holdoffMillis: holdoffMillis,
		yIntercept:    threshold - (slope * holdoffMillis),
	}
}

// computeOffset returns the dBm advantage the current antenna keeps, given
// when it last read the tag relative to referenceTimestamp. It starts at
// threshold and goes negative as the old reading ages out.
func (profile *mobilityProfile) computeOffset(referenceTimestamp, lastRead int64) float64 {
	// y = mx + b
	offset := (profile.slope * float64(referenceTimestamp-lastRead)) + profile.yIntercept
	if offset > profile.threshold {
		offset = profile.threshold
	}
	return offset
}
