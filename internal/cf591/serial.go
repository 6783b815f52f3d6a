//
// Copyright (C) 2021 Intel Corporation
//
// SPDX-License-Identifier: Apache-2.0

package cf591

import (
	"sync"
	"time"

	"github.com/pkg/errors"
	"go.bug.st/serial"
)

// SerialTransport drives the reader over a local serial port (or a USB
// adapter enumerated as one). The reader's UART runs 8N1; only the baud
// rate varies, 115200 by default on the CF591.
type SerialTransport struct {
	port serial.Port

	mu     sync.Mutex
	closed bool
}

// OpenSerial opens device (e.g. "/dev/ttyUSB0") at the given baud rate.
func OpenSerial(device string, baud int) (*SerialTransport, error) {
	mode := &serial.Mode{
		BaudRate: baud,
		DataBits: 8,
		Parity:   serial.NoParity,
		StopBits: serial.OneStopBit,
	}

	port, err := serial.Open(device, mode)
	if err != nil {
		return nil, errors.Wrapf(err, "failed to open serial port %s @ %d", device, baud)
	}

	if err := port.ResetInputBuffer(); err != nil {
		_ = port.Close()
		return nil, errors.Wrapf(err, "failed to flush serial port %s", device)
	}

	return &SerialTransport{port: port}, nil
}

func (t *SerialTransport) Write(p []byte) error {
	if t.isClosed() {
		return ErrClosed
	}

	n, err := t.port.Write(p)
	if err != nil {
		return errors.Wrap(err, "serial write failed")
	}
	if n != len(p) {
		return errors.Errorf("serial short write: %d of %d bytes", n, len(p))
	}
	return nil
}

func (t *SerialTransport) Read(p []byte, timeout time.Duration) (int, error) {
	if t.isClosed() {
		return 0, ErrClosed
	}

	if err := t.port.SetReadTimeout(timeout); err != nil {
		return 0, errors.Wrap(err, "failed to set serial read timeout")
	}

	n, err := t.port.Read(p)
	if err != nil {
		return n, errors.Wrap(err, "serial read failed")
	}
	// The port signals an expired timeout as a zero-byte read.
	if n == 0 {
		return 0, ErrReadTimeout
	}
	return n, nil
}

func (t *SerialTransport) Flush() error {
	if t.isClosed() {
		return ErrClosed
	}
	return errors.Wrap(t.port.ResetInputBuffer(), "failed to flush serial input")
}

func (t *SerialTransport) Close() error {
	t.mu.Lock()
	defer t.mu.Unlock()
	if t.closed {
		return nil
	}
	t.closed = true
	return errors.Wrap(t.port.Close(), "failed to close serial port")
}

func (t *SerialTransport) isClosed() bool {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.closed
}
