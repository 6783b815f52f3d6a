//
// Copyright (C) 2021 Intel Corporation
//
// SPDX-License-Identifier: Apache-2.0

package cf591

import (
	"context"
	"encoding/json"
	"time"

	"github.com/pkg/errors"
)

// SessionState is the inventory session lifecycle position. Exactly one
// session exists per Device; tags are only produced while Active.
type SessionState int

const (
	StateIdle SessionState = iota
	StateStarting
	StateActive
	StateStopping
)

func (s SessionState) String() string {
	switch s {
	case StateIdle:
		return "Idle"
	case StateStarting:
		return "Starting"
	case StateActive:
		return "Active"
	case StateStopping:
		return "Stopping"
	default:
		return "Unknown"
	}
}

// MarshalJSON renders the state by name; status snapshots travel over the
// service API.
func (s SessionState) MarshalJSON() ([]byte, error) {
	return json.Marshal(s.String())
}

// SessionStatus is a point-in-time snapshot of the inventory session.
type SessionStatus struct {
	State     SessionState `json:"state"`
	StartedAt time.Time    `json:"started_at,omitempty"`
	Rounds    uint32       `json:"rounds"`
	TagsRead  uint64       `json:"tags_read"`
}

// SessionStatus reports the current session state and counters.
func (d *Device) SessionStatus() SessionStatus {
	d.mu.Lock()
	defer d.mu.Unlock()
	s := SessionStatus{
		State:    d.state,
		Rounds:   d.rounds,
		TagsRead: d.tagsRead,
	}
	if d.state != StateIdle {
		s.StartedAt = d.startedAt
	}
	return s
}

// StartInventory begins a tag inventory. roundCount bounds the number of
// anti-collision rounds; zero runs continuously until stopped.
//
// Valid only from Idle. The reader answers a start by streaming report
// frames, so this writes the command and hands all reading to Poll; a
// parameter the reader rejects surfaces on the first Poll.
func (d *Device) StartInventory(roundCount uint8) error {
	d.mu.Lock()
	defer d.mu.Unlock()

	if d.closed {
		return ErrNotConnected
	}
	if d.state != StateIdle {
		return errors.Wrapf(ErrSessionActive, "state %s", d.state)
	}

	d.state = StateStarting

	// Stale reports from a previous run must not surface as fresh reads.
	d.rx = nil
	if err := d.tr.Flush(); err != nil && !errors.Is(err, ErrClosed) {
		d.lc.Warn("Failed to flush stale input before inventory.", "error", err.Error())
	}

	// [round count][inventory parameter, reserved]
	if err := d.writeFrame(opInventoryContinue, []byte{roundCount, 0, 0, 0, 0}); err != nil {
		d.state = StateIdle
		return errors.Wrap(err, "start inventory")
	}

	d.state = StateActive
	d.startedAt = time.Now()
	d.rounds++
	d.lc.Debug("Inventory started.", "roundCount", roundCount)
	return nil
}

// Poll waits up to timeout for the next tag report. It returns (nil, nil)
// when the window closes without a tag or the reader says the inventory
// ended; both leave the session Active. Fatal communication failures drop
// the session to Idle and propagate. A zero timeout selects the default.
func (d *Device) Poll(timeout time.Duration) (*TagRecord, error) {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.pollLocked(timeout)
}

func (d *Device) pollLocked(timeout time.Duration) (*TagRecord, error) {
	if d.closed {
		return nil, ErrNotConnected
	}
	if d.state != StateActive {
		return nil, errors.Errorf("poll is invalid in state %s", d.state)
	}
	if timeout <= 0 {
		timeout = d.pollTimeout
	}

	resp, err := d.await(timeout)
	if err != nil {
		if IsTimeout(err) {
			return nil, nil
		}
		d.state = StateIdle
		return nil, errors.Wrap(err, "inventory poll")
	}

	st := statusFromByte(resp.status)
	switch {
	case st == StatusOK:
		tag, derr := decodeTagRecord(resp.payload)
		if derr != nil {
			return nil, errors.Wrap(derr, "inventory poll")
		}
		d.tagsRead++
		return tag, nil
	case isNoTag(st):
		return nil, nil
	}

	if cls, _ := Classify(st); cls == Fatal {
		d.state = StateIdle
	}
	return nil, statusErr("inventory poll", st)
}

// StopInventory ends the session. Stopping an Idle session is a no-op and
// writes nothing; an inventory the reader already ended on its own counts
// as stopped. The session is Idle when this returns, error or not.
func (d *Device) StopInventory(timeout time.Duration) error {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.stopLocked(timeout)
}

func (d *Device) stopLocked(timeout time.Duration) error {
	if d.closed {
		return ErrNotConnected
	}
	if d.state == StateIdle {
		return nil
	}
	if timeout <= 0 {
		timeout = d.stopTimeout
	}

	d.state = StateStopping
	defer func() { d.state = StateIdle }()

	if err := d.writeFrame(opInventoryStop, nil); err != nil {
		return errors.Wrap(err, "stop inventory")
	}

	// Report frames already in flight precede the confirmation; drain them.
	deadline := time.Now().Add(timeout)
	for {
		remaining := time.Until(deadline)
		if remaining <= 0 {
			return nil
		}

		resp, err := d.await(remaining)
		if err != nil {
			if IsTimeout(err) {
				return nil
			}
			return errors.Wrap(err, "stop inventory")
		}

		st := statusFromByte(resp.status)
		if st == StatusOK && len(resp.payload) >= tagRecordOverhead {
			d.lc.Trace("Discarding in-flight tag report during stop.")
			continue
		}
		if isBenignStop(st) {
			d.lc.Debug("Inventory stopped.", "status", st.String())
			return nil
		}
		return statusErr("stop inventory", st)
	}
}

// ReadOnce is the trigger-read composite: start inventory, poll until the
// first tag or the budget runs out, stop. The stop is attempted on every
// exit path, so the session is never left Active, including when ctx is
// cancelled mid-loop. A zero budget selects the command timeout.
func (d *Device) ReadOnce(ctx context.Context, budget time.Duration) (*TagRecord, error) {
	if budget <= 0 {
		budget = d.cmdTimeout
	}

	if err := d.StartInventory(0); err != nil {
		return nil, err
	}
	defer func() {
		if err := d.StopInventory(0); err != nil {
			d.lc.Warn("Failed to stop inventory after trigger read.", "error", err.Error())
		}
	}()

	deadline := time.Now().Add(budget)
	for {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		if !time.Now().Before(deadline) {
			return nil, nil
		}

		tag, err := d.Poll(d.pollTimeout)
		if err != nil {
			return nil, errors.Wrap(err, "trigger read")
		}
		if tag != nil {
			return tag, nil
		}
	}
}
