//
// Copyright (C) 2021 Intel Corporation
//
// SPDX-License-Identifier: Apache-2.0

package inventory

import (
	"time"
)

// UnixMilli converts a time to milliseconds since the epoch. The zero time
// maps to 0 so unset timestamps stay unset through the conversion.
func UnixMilli(t time.Time) int64 {
	if t.IsZero() {
		return 0
	}
	return t.UnixMilli()
}

// UnixMilliNow returns the current time as milliseconds since the epoch.
func UnixMilliNow() int64 {
	return time.Now().UnixMilli()
}
