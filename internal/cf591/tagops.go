//
// Copyright (C) 2021 Intel Corporation
//
// SPDX-License-Identifier: Apache-2.0

package cf591

import (
	"encoding/binary"
	"time"

	"github.com/pkg/errors"
)

// MemoryBank addresses one of the four Gen2 tag memory banks.
type MemoryBank uint8

const (
	BankReserved MemoryBank = iota
	BankEPC
	BankTID
	BankUser
)

// Tag memory operations run in two phases, mirroring the air protocol:
// the reader acknowledges the command immediately, then reports the tag's
// reply in a second frame once the RF exchange finishes. tagOp runs both
// phases under one lock so nothing interleaves.
func (d *Device) tagOp(op string, opcode byte, payload []byte, timeout time.Duration) (*TagResponse, []byte, error) {
	d.mu.Lock()
	defer d.mu.Unlock()

	if _, err := d.commandLocked(op, opcode, payload); err != nil {
		return nil, nil, err
	}

	if timeout <= 0 {
		timeout = d.cmdTimeout
	}
	resp, err := d.await(timeout)
	if err != nil {
		return nil, nil, errors.Wrap(err, op)
	}

	if st := statusFromByte(resp.status); st != StatusOK {
		return nil, nil, statusErr(op, st)
	}

	tr, rest, derr := decodeTagResponse(resp.payload)
	if derr != nil {
		return nil, nil, errors.Wrap(derr, op)
	}
	return tr, rest, nil
}

// ReadTagMemory reads words 16-bit words from a tag memory bank starting
// at wordPtr. password is the tag's access password, all zeroes for
// unsecured tags. It returns the responding tag and the data it sent.
func (d *Device) ReadTagMemory(bank MemoryBank, wordPtr uint16, words uint8, password [4]byte, timeout time.Duration) (*TagResponse, []byte, error) {
	payload := make([]byte, 0, 9)
	payload = append(payload, 0x00) // select option, reserved
	payload = append(payload, password[:]...)
	payload = append(payload, uint8(bank))
	payload = binary.BigEndian.AppendUint16(payload, wordPtr)
	payload = append(payload, words)

	return d.tagOp("read tag memory", opReadTag, payload, timeout)
}

// WriteTagMemory writes data (whole 16-bit words) to a tag memory bank
// starting at wordPtr.
func (d *Device) WriteTagMemory(bank MemoryBank, wordPtr uint16, data []byte, password [4]byte, timeout time.Duration) (*TagResponse, error) {
	if len(data) == 0 || len(data)%2 != 0 {
		return nil, errors.Errorf("write data must be whole words, got %d bytes", len(data))
	}
	if len(data)/2 > 255 || 9+len(data) > maxPayloadLen {
		return nil, errors.Wrap(ErrPayloadTooLarge, "write tag memory")
	}

	payload := make([]byte, 0, 9+len(data))
	payload = append(payload, 0x00) // select option, reserved
	payload = append(payload, password[:]...)
	payload = append(payload, uint8(bank))
	payload = binary.BigEndian.AppendUint16(payload, wordPtr)
	payload = append(payload, uint8(len(data)/2))
	payload = append(payload, data...)

	tr, _, err := d.tagOp("write tag memory", opWriteTag, payload, timeout)
	return tr, err
}

// LockTag applies a lock action to a tag memory area. Area and action
// values follow the reader's lock command table.
func (d *Device) LockTag(area, action uint8, password [4]byte, timeout time.Duration) (*TagResponse, error) {
	payload := make([]byte, 0, 6)
	payload = append(payload, password[:]...)
	payload = append(payload, area, action)

	tr, _, err := d.tagOp("lock tag", opLockTag, payload, timeout)
	return tr, err
}

// KillTag permanently disables a tag. The tag must have a nonzero kill
// password programmed; the reader rejects the zero password.
func (d *Device) KillTag(password [4]byte, timeout time.Duration) (*TagResponse, error) {
	tr, _, err := d.tagOp("kill tag", opKillTag, password[:], timeout)
	return tr, err
}

// SetSelectMask installs a select filter so subsequent inventory and
// memory operations only address tags whose EPC matches mask. bits counts
// mask bits; a zero-bit mask clears the filter. This configures the
// reader, not a tag, so there is no tag reply phase.
func (d *Device) SetSelectMask(ptr uint16, bits uint8, mask []byte) error {
	if need := (int(bits) + 7) / 8; len(mask) < need {
		return errors.Errorf("mask is %d bytes, %d bits need %d", len(mask), bits, need)
	}

	payload := make([]byte, 0, 3+len(mask))
	payload = binary.BigEndian.AppendUint16(payload, ptr)
	payload = append(payload, bits)
	payload = append(payload, mask[:(int(bits)+7)/8]...)

	_, err := d.command("set select mask", opSetSelectMask, payload)
	return err
}
