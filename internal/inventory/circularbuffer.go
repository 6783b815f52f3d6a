//
// Copyright (C) 2021 Intel Corporation
//
// SPDX-License-Identifier: Apache-2.0

package inventory

// CircularBuffer is a fixed-window moving average over float64 samples.
// Once the window fills, each new sample overwrites the oldest one, so the
// mean tracks the most recent windowSize readings without reallocating.
//
// It is not safe for concurrent use; the TagProcessor's lock covers every
// buffer it owns.
type CircularBuffer struct {
	values []float64
	total  float64
	index  int
}

// NewCircularBuffer allocates a buffer holding up to windowSize samples.
func NewCircularBuffer(windowSize int) *CircularBuffer {
	if windowSize <= 0 {
		panic("illegal window size")
	}
	return &CircularBuffer{
		values: make([]float64, 0, windowSize),
	}
}

// Len returns how many samples are currently buffered.
func (buff *CircularBuffer) Len() int {
	return len(buff.values)
}

// Mean returns the average of the buffered samples. With nothing buffered
// it returns NaN; callers gate on Len first.
func (buff *CircularBuffer) Mean() float64 {
	return buff.total / float64(len(buff.values))
}

// AddValue inserts a sample, dropping the oldest one once the window is
// full. The running total is maintained incrementally so Mean stays O(1).
func (buff *CircularBuffer) AddValue(value float64) {
	if len(buff.values) < cap(buff.values) {
		buff.values = append(buff.values, value)
		buff.total += value
		return
	}

	buff.total += value - buff.values[buff.index]
	buff.values[buff.index] = value

	buff.index++
	if buff.index >= cap(buff.values) {
		buff.index = 0
	}
}
