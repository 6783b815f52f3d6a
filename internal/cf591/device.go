//
// Copyright (C) 2021 Intel Corporation
//
// SPDX-License-Identifier: Apache-2.0

// Package cf591 implements the host side of the CHAFON CF591 UHF RFID
// reader protocol: framing, command dispatch, the inventory session state
// machine, tag decoding, and reader management operations.
//
// The protocol is strictly half-duplex. A Device serializes all commands
// on one connection; callers wanting concurrent access from multiple
// goroutines get that serialization for free, but each call blocks until
// the reader answers or the window elapses.
package cf591

import (
	"fmt"
	"net"
	"sync"
	"time"

	"github.com/edgexfoundry/go-mod-core-contracts/clients/logger"
	"github.com/pkg/errors"
)

var (
	// ErrNotConnected is returned by operations on a closed Device.
	ErrNotConnected = errors.New("device not connected")
	// ErrInventoryRunning is returned by management commands while an
	// inventory session is live; stop it first.
	ErrInventoryRunning = errors.New("inventory session running")
	// ErrSessionActive is returned by StartInventory outside Idle.
	ErrSessionActive = errors.New("inventory session already started")
)

// Options tune a Device. Zero values select the defaults.
type Options struct {
	// Logger receives protocol-level debug output. Defaults to a client
	// that discards everything.
	Logger logger.LoggingClient
	// CommandTimeout bounds management command round-trips.
	CommandTimeout time.Duration
	// PollTimeout is the default window for Poll when the caller passes 0.
	PollTimeout time.Duration
	// StopTimeout bounds the stop-inventory confirmation.
	StopTimeout time.Duration
}

// Device is one open connection to a reader: the connection handle, the
// command dispatcher, and the inventory session rolled into the single
// owner the half-duplex protocol demands.
type Device struct {
	tr Transport
	lc logger.LoggingClient

	cmdTimeout  time.Duration
	pollTimeout time.Duration
	stopTimeout time.Duration

	mu     sync.Mutex
	closed bool
	rx     []byte // unconsumed transport bytes carried between reads

	state     SessionState
	startedAt time.Time
	rounds    uint32
	tagsRead  uint64
}

// NewDevice wraps an open Transport. The Device assumes ownership: Close
// closes the transport.
func NewDevice(tr Transport, opts Options) *Device {
	lc := opts.Logger
	if lc == nil {
		lc = logger.NewMockClient()
	}

	d := &Device{
		tr:          tr,
		lc:          lc,
		cmdTimeout:  opts.CommandTimeout,
		pollTimeout: opts.PollTimeout,
		stopTimeout: opts.StopTimeout,
	}
	if d.cmdTimeout <= 0 {
		d.cmdTimeout = DefaultCommandTimeout
	}
	if d.pollTimeout <= 0 {
		d.pollTimeout = DefaultPollTimeout
	}
	if d.stopTimeout <= 0 {
		d.stopTimeout = DefaultStopTimeout
	}
	return d
}

// Connect opens a serial or network transport from a target string and
// wraps it in a Device. Targets of the form "host:port" dial TCP; anything
// else is treated as a serial device path using baud.
func Connect(target string, baud int, opts Options) (*Device, error) {
	tr, err := openTarget(target, baud)
	if err != nil {
		return nil, err
	}
	return NewDevice(tr, opts), nil
}

func openTarget(target string, baud int) (Transport, error) {
	if host, port, err := net.SplitHostPort(target); err == nil && host != "" && port != "" {
		return OpenNetwork(target, DefaultCommandTimeout)
	}
	return OpenSerial(target, baud)
}

// Close stops any running inventory on a best-effort basis and releases
// the transport. Closing twice is a no-op.
func (d *Device) Close() error {
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.closed {
		return nil
	}

	if d.state == StateActive || d.state == StateStarting {
		if err := d.stopLocked(d.stopTimeout); err != nil {
			d.lc.Warn("Failed to stop inventory during close.", "error", err.Error())
		}
	}

	d.closed = true
	d.state = StateIdle
	return d.tr.Close()
}

// send writes one command frame and waits for one complete, valid response
// within timeout. One corrupted stretch is tolerated by resynchronizing
// within the same window; a second one fails the call. Callers hold d.mu.
func (d *Device) send(op byte, payload []byte, timeout time.Duration) (*response, error) {
	if err := d.writeFrame(op, payload); err != nil {
		return nil, err
	}
	return d.await(timeout)
}

// writeFrame encodes and writes one command frame. Callers hold d.mu.
func (d *Device) writeFrame(op byte, payload []byte) error {
	frame, err := encodeFrame(op, payload)
	if err != nil {
		return err
	}

	if err := d.tr.Write(frame); err != nil {
		return &StatusError{Op: "write command", Status: StatusCommWriteFailed, Cause: err}
	}
	d.lc.Trace("Wrote frame.", "opcode", fmt.Sprintf("0x%02X", op), "bytes", len(frame))
	return nil
}

// await reads until one complete frame decodes or timeout elapses.
// Leftover bytes beyond the frame stay buffered for the next call, so a
// burst of inventory reports is consumed one frame per call without
// another transport read. Callers hold d.mu.
func (d *Device) await(timeout time.Duration) (*response, error) {
	deadline := time.Now().Add(timeout)
	sawCorrupt := false

	for {
		// Drain whatever is already buffered before touching the wire.
		for len(d.rx) > 0 {
			resp, consumed, err := extractFrame(d.rx)
			d.rx = d.rx[consumed:]
			if err != nil {
				if sawCorrupt {
					d.rx = nil
					return nil, errors.Wrap(err, "giving up after repeated corrupt frames")
				}
				sawCorrupt = true
				d.lc.Debug("Dropping corrupt frame, resynchronizing.", "error", err.Error())
				continue
			}
			if resp != nil {
				return resp, nil
			}
			break // need more bytes
		}

		remaining := time.Until(deadline)
		if remaining <= 0 {
			return nil, statusErr("await response", StatusCommTimeout)
		}

		var chunk [256]byte
		n, err := d.tr.Read(chunk[:], remaining)
		if err != nil {
			if errors.Is(err, ErrReadTimeout) {
				return nil, statusErr("await response", StatusCommTimeout)
			}
			return nil, &StatusError{Op: "read response", Status: StatusCommReadFailed, Cause: err}
		}
		d.rx = append(d.rx, chunk[:n]...)
	}
}

// command runs one management round-trip: flush stale input, write the
// frame, await the reply, and convert a non-OK status into a StatusError.
func (d *Device) command(op string, opcode byte, payload []byte) ([]byte, error) {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.commandLocked(op, opcode, payload)
}

func (d *Device) commandLocked(op string, opcode byte, payload []byte) ([]byte, error) {
	if d.closed {
		return nil, ErrNotConnected
	}
	if d.state != StateIdle {
		return nil, errors.Wrap(ErrInventoryRunning, op)
	}

	d.rx = nil
	if err := d.tr.Flush(); err != nil && !errors.Is(err, ErrClosed) {
		d.lc.Warn("Failed to flush stale input.", "error", err.Error())
	}

	resp, err := d.send(opcode, payload, d.cmdTimeout)
	if err != nil {
		return nil, errors.Wrap(err, op)
	}
	if st := statusFromByte(resp.status); st != StatusOK {
		return nil, statusErr(op, st)
	}
	return resp.payload, nil
}

// Power reads the RF output power in dBm, 0-30.
func (d *Device) Power() (uint8, error) {
	payload, err := d.command("get power", opGetPower, nil)
	if err != nil {
		return 0, err
	}
	if len(payload) < 1 {
		return 0, statusErr("get power", StatusRespFormatErr)
	}
	return payload[0], nil
}

// SetPower sets the RF output power in dBm. Out-of-range values saturate
// to the 0-30 range the hardware accepts.
func (d *Device) SetPower(power int) error {
	_, err := d.command("set power", opSetPower, []byte{ClampPower(power), 0x00})
	return err
}

// AntennaMask reads the enabled-antenna bitmask, bit 0 = antenna 1.
func (d *Device) AntennaMask() (uint8, error) {
	payload, err := d.command("get antenna", opGetAntenna, nil)
	if err != nil {
		return 0, err
	}
	if len(payload) < 1 {
		return 0, statusErr("get antenna", StatusRespFormatErr)
	}
	return payload[0], nil
}

// SetAntennaMask selects which antenna ports inventory uses.
func (d *Device) SetAntennaMask(mask uint8) error {
	_, err := d.command("set antenna", opSetAntenna, []byte{mask})
	return err
}

// QValue reads the anti-collision Q parameter.
func (d *Device) QValue() (uint8, error) {
	payload, err := d.command("get Q value", opGetQValue, nil)
	if err != nil {
		return 0, err
	}
	if len(payload) < 1 {
		return 0, statusErr("get Q value", StatusRespFormatErr)
	}
	return payload[0], nil
}

// SetQValue sets the anti-collision Q parameter, 0-15. The reader firmware
// owns the Q algorithm; this only seeds it.
func (d *Device) SetQValue(q uint8) error {
	if q > 15 {
		return statusErr("set Q value", StatusCmdParamErr)
	}
	_, err := d.command("set Q value", opSetQValue, []byte{q, 0x00})
	return err
}

// Temperature reads the current internal temperature and the configured
// protection limit, both in degrees Celsius.
func (d *Device) Temperature() (current, limit uint8, err error) {
	payload, err := d.command("get temperature", opGetTemp, nil)
	if err != nil {
		return 0, 0, err
	}
	if len(payload) < 2 {
		return 0, 0, statusErr("get temperature", StatusRespFormatErr)
	}
	return payload[0], payload[1], nil
}

// SetTemperatureLimit sets the over-temperature protection threshold.
func (d *Device) SetTemperatureLimit(limit uint8) error {
	_, err := d.command("set temperature limit", opSetTempLimit, []byte{limit, 0x00})
	return err
}

// Buzzer switches the reader's beep-on-read behavior.
func (d *Device) Buzzer(on bool) error {
	v := byte(0)
	if on {
		v = 1
	}
	_, err := d.command("set buzzer", opBuzzer, []byte{typeSet, v})
	return err
}

// BuzzerState reads the beep-on-read setting.
func (d *Device) BuzzerState() (bool, error) {
	payload, err := d.command("get buzzer", opBuzzer, []byte{typeGet})
	if err != nil {
		return false, err
	}
	if len(payload) < 1 {
		return false, statusErr("get buzzer", StatusRespFormatErr)
	}
	return payload[0] != 0, nil
}

// Relay actions share one opcode with a selector byte, like the combined
// set/get commands.
const (
	relayRelease = 0x01
	relayClose   = 0x02
)

// Relay pulses the output relay: released or closed for the given number
// of seconds.
func (d *Device) Relay(close bool, seconds uint8) error {
	v := byte(relayRelease)
	if close {
		v = relayClose
	}
	_, err := d.command("switch relay", opRelay, []byte{v, seconds})
	return err
}

// Reboot restarts the reader. The link drops shortly after the reader
// acknowledges, so expect the next command to fail until it comes back.
func (d *Device) Reboot() error {
	_, err := d.command("reboot", opReboot, nil)
	return err
}
