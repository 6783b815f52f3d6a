//
// Copyright (C) 2021 Intel Corporation
//
// SPDX-License-Identifier: Apache-2.0

package cf591

import (
	"net"
	"sync"
	"time"

	"github.com/pkg/errors"
)

// NetworkTransport drives a reader exposing its UART over TCP, either
// natively or through a serial-device server. Same contract as the serial
// variant; read windows map onto connection deadlines.
type NetworkTransport struct {
	conn net.Conn

	mu     sync.Mutex
	closed bool
}

// OpenNetwork dials addr ("host:port") within timeout.
func OpenNetwork(addr string, timeout time.Duration) (*NetworkTransport, error) {
	conn, err := net.DialTimeout("tcp", addr, timeout)
	if err != nil {
		return nil, errors.Wrapf(err, "failed to connect to reader at %s", addr)
	}
	return &NetworkTransport{conn: conn}, nil
}

func (t *NetworkTransport) Write(p []byte) error {
	if t.isClosed() {
		return ErrClosed
	}

	if _, err := t.conn.Write(p); err != nil {
		return errors.Wrap(err, "network write failed")
	}
	return nil
}

func (t *NetworkTransport) Read(p []byte, timeout time.Duration) (int, error) {
	if t.isClosed() {
		return 0, ErrClosed
	}

	if err := t.conn.SetReadDeadline(time.Now().Add(timeout)); err != nil {
		return 0, errors.Wrap(err, "failed to set read deadline")
	}

	n, err := t.conn.Read(p)
	if err != nil {
		if ne, ok := err.(net.Error); ok && ne.Timeout() && n == 0 {
			return 0, ErrReadTimeout
		}
		return n, errors.Wrap(err, "network read failed")
	}
	return n, nil
}

// Flush drains whatever the reader already sent. TCP has no input buffer
// reset, so it reads with a short deadline until the pipe runs dry.
func (t *NetworkTransport) Flush() error {
	if t.isClosed() {
		return ErrClosed
	}

	var scratch [256]byte
	for {
		if err := t.conn.SetReadDeadline(time.Now().Add(5 * time.Millisecond)); err != nil {
			return errors.Wrap(err, "failed to set read deadline")
		}
		n, err := t.conn.Read(scratch[:])
		if err != nil {
			if ne, ok := err.(net.Error); ok && ne.Timeout() {
				return nil
			}
			return errors.Wrap(err, "network flush failed")
		}
		if n == 0 {
			return nil
		}
	}
}

func (t *NetworkTransport) Close() error {
	t.mu.Lock()
	defer t.mu.Unlock()
	if t.closed {
		return nil
	}
	t.closed = true
	return errors.Wrap(t.conn.Close(), "failed to close connection")
}

func (t *NetworkTransport) isClosed() bool {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.closed
}
