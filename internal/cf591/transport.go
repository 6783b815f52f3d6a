//
// Copyright (C) 2021 Intel Corporation
//
// SPDX-License-Identifier: Apache-2.0

package cf591

import (
	"time"

	"github.com/pkg/errors"
)

var (
	// ErrClosed is returned when operating on a transport after Close.
	ErrClosed = errors.New("transport closed")
	// ErrReadTimeout is returned by Transport.Read when no byte arrived
	// within the window. It means "nothing yet", not a broken link.
	ErrReadTimeout = errors.New("transport read timed out")
)

// Transport is the byte pipe to the reader. It owns the OS resource and
// nothing else: no framing, no retries, no protocol knowledge.
//
// Implementations must tolerate Close being called twice. Read returns
// ErrReadTimeout with a zero count when the window elapses without data;
// partial data before the deadline is returned as a short read.
type Transport interface {
	Write(p []byte) error
	Read(p []byte, timeout time.Duration) (int, error)
	// Flush discards unread input buffered on the connection.
	Flush() error
	Close() error
}
