//
// Copyright (C) 2021 Intel Corporation
//
// SPDX-License-Identifier: Apache-2.0

package cf591

import (
	"fmt"

	"github.com/pkg/errors"
)

// Status is a 32-bit reader status code.
// Zero is success; all failure codes live in the 0xFFFFFFxx range.
type Status uint32

const (
	StatusOK              Status = 0x00000000
	StatusPortHandleErr   Status = 0xFFFFFF01 // bad handle or serial parameters
	StatusPortOpenFailed  Status = 0xFFFFFF02
	StatusInternalErr     Status = 0xFFFFFF03
	StatusCmdParamErr     Status = 0xFFFFFF04 // parameter out of range or unsupported
	StatusSerialNumExists Status = 0xFFFFFF05
	StatusCmdInternalErr  Status = 0xFFFFFF06
	StatusInventoryStop   Status = 0xFFFFFF07 // no tags found or inventory ended
	StatusTagNoResponse   Status = 0xFFFFFF08
	StatusTagDecodeFail   Status = 0xFFFFFF09
	StatusCodeOverflow    Status = 0xFFFFFF0A // tag data exceeds one frame
	StatusAuthFail        Status = 0xFFFFFF0B
	StatusPasswordErr     Status = 0xFFFFFF0C
	StatusSAMNoResponse   Status = 0xFFFFFF0D
	StatusSAMCmdFail      Status = 0xFFFFFF0E
	StatusRespFormatErr   Status = 0xFFFFFF0F
	StatusHasMoreData     Status = 0xFFFFFF10
	StatusBufOverflow     Status = 0xFFFFFF11
	StatusCommTimeout     Status = 0xFFFFFF12 // no response within the window
	StatusCommWriteFailed Status = 0xFFFFFF13
	StatusCommReadFailed  Status = 0xFFFFFF14
	StatusNoMoreData      Status = 0xFFFFFF15
	StatusNotConnected    Status = 0xFFFFFF16
	StatusDisconnected    Status = 0xFFFFFF17
	StatusRespCRCErr      Status = 0xFFFFFF18
)

// Tag operation statuses reported by the tag itself during memory access,
// mapped from the Gen2 error code in a tag reply.
const (
	StatusTagOtherErr       Status = 0xFFFFFF50
	StatusTagNotSupported   Status = 0xFFFFFF51
	StatusTagNoPrivilege    Status = 0xFFFFFF52
	StatusTagMemOverrun     Status = 0xFFFFFF53
	StatusTagMemLocked      Status = 0xFFFFFF54
	StatusTagCryptoErr      Status = 0xFFFFFF55
	StatusTagNotEncap       Status = 0xFFFFFF56
	StatusTagRespOverflow   Status = 0xFFFFFF57
	StatusTagSecTimeout     Status = 0xFFFFFF58
	StatusTagLowPower       Status = 0xFFFFFF59
	StatusTagUnknownErr     Status = 0xFFFFFF5A
	StatusTagSensorCfg      Status = 0xFFFFFF5B
	StatusTagBusy           Status = 0xFFFFFF5C
	StatusTagMeasureUnsupp  Status = 0xFFFFFF5D
)

var statusText = map[Status]string{
	StatusOK:              "success",
	StatusPortHandleErr:   "bad handle or port parameters",
	StatusPortOpenFailed:  "failed to open port",
	StatusInternalErr:     "driver internal error",
	StatusCmdParamErr:     "command parameter invalid or unsupported",
	StatusSerialNumExists: "serial number already exists",
	StatusCmdInternalErr:  "reader internal error",
	StatusInventoryStop:   "inventory ended or no tags found",
	StatusTagNoResponse:   "tag did not respond",
	StatusTagDecodeFail:   "failed to demodulate tag data",
	StatusCodeOverflow:    "tag data exceeds maximum frame length",
	StatusAuthFail:        "authentication failed",
	StatusPasswordErr:     "access password incorrect",
	StatusSAMNoResponse:   "SAM card did not respond",
	StatusSAMCmdFail:      "SAM command failed",
	StatusRespFormatErr:   "malformed reader response",
	StatusHasMoreData:     "more data pending",
	StatusBufOverflow:     "buffer too small",
	StatusCommTimeout:     "timed out waiting for reader response",
	StatusCommWriteFailed: "failed to write to port",
	StatusCommReadFailed:  "failed to read from port",
	StatusNoMoreData:      "no more data",
	StatusNotConnected:    "connection not established",
	StatusDisconnected:    "connection lost",
	StatusRespCRCErr:      "reader response failed CRC check",
	StatusTagOtherErr:     "tag reported an unspecified error",
	StatusTagNotSupported: "tag does not support the parameter",
	StatusTagNoPrivilege:  "insufficient tag access privilege",
	StatusTagMemOverrun:   "tag memory overrun or missing bank",
	StatusTagMemLocked:    "tag memory locked",
	StatusTagCryptoErr:    "tag cipher suite error",
	StatusTagNotEncap:     "air command not encapsulated",
	StatusTagRespOverflow: "tag response buffer overflow",
	StatusTagSecTimeout:   "tag in security timeout",
	StatusTagLowPower:     "tag has insufficient power",
	StatusTagUnknownErr:   "tag reported an unknown error",
	StatusTagSensorCfg:    "tag sensor task limit exceeded",
	StatusTagBusy:         "tag busy",
	StatusTagMeasureUnsupp: "tag sensor measurement type unsupported",
}

func (s Status) String() string {
	if t, ok := statusText[s]; ok {
		return fmt.Sprintf("%s (0x%08X)", t, uint32(s))
	}
	return fmt.Sprintf("unknown status (0x%08X)", uint32(s))
}

// statusFromByte maps the raw status byte a response frame carries in its
// command position to the 32-bit status taxonomy.
func statusFromByte(b byte) Status {
	switch b {
	case 0x00:
		return StatusOK
	case 0x01:
		return StatusCmdParamErr
	case 0x02:
		return StatusCmdInternalErr
	case 0x03:
		return StatusSerialNumExists
	case 0x12:
		return StatusInventoryStop
	case 0x14:
		return StatusTagNoResponse
	case 0x15:
		return StatusTagDecodeFail
	case 0x16:
		return StatusAuthFail
	case 0x17:
		return StatusPasswordErr
	case 0x21:
		return StatusSAMNoResponse
	case 0x22:
		return StatusSAMCmdFail
	case 0xFF:
		return StatusNoMoreData
	default:
		return StatusRespFormatErr
	}
}

// isoTagStatus maps the Gen2 error code from a tag reply to the tag
// operation status range. The raw byte is preserved on TagResponse; this
// conversion is applied when the reader flags a tag-level failure.
func isoTagStatus(b byte) Status {
	switch b {
	case 0x00:
		return StatusTagOtherErr
	case 0x01:
		return StatusTagNotSupported
	case 0x02:
		return StatusTagNoPrivilege
	case 0x03:
		return StatusTagMemOverrun
	case 0x04:
		return StatusTagMemLocked
	case 0x05:
		return StatusTagCryptoErr
	case 0x06:
		return StatusTagNotEncap
	case 0x07:
		return StatusTagRespOverflow
	case 0x08:
		return StatusTagSecTimeout
	case 0x0B:
		return StatusTagLowPower
	case 0x81:
		return StatusTagSensorCfg
	case 0x82:
		return StatusTagBusy
	case 0x83:
		return StatusTagMeasureUnsupp
	default:
		return StatusTagUnknownErr
	}
}

// Class buckets every status into success, recoverable, or fatal.
type Class int

const (
	Success Class = iota
	Recoverable
	Fatal
)

func (c Class) String() string {
	switch c {
	case Success:
		return "success"
	case Recoverable:
		return "recoverable"
	case Fatal:
		return "fatal"
	default:
		return "unknown"
	}
}

// Action is the recommended caller policy for a status class.
type Action int

const (
	ActionNone Action = iota
	ActionRetry
	ActionIgnore
	ActionPropagate
)

func (a Action) String() string {
	switch a {
	case ActionNone:
		return "none"
	case ActionRetry:
		return "retry"
	case ActionIgnore:
		return "ignore"
	case ActionPropagate:
		return "propagate"
	default:
		return "unknown"
	}
}

// Classify maps a status to its class and the recommended action.
//
// Recoverable statuses mean "nothing happened yet" or "the tag population
// didn't cooperate this round"; polling callers retry or ignore them.
// Fatal statuses indicate the link or the command itself is broken and
// must reach the caller.
func Classify(s Status) (Class, Action) {
	switch s {
	case StatusOK:
		return Success, ActionNone
	case StatusCommTimeout, StatusInventoryStop, StatusTagNoResponse,
		StatusNoMoreData, StatusTagDecodeFail, StatusHasMoreData:
		return Recoverable, ActionRetry
	default:
		return Fatal, ActionPropagate
	}
}

// StatusError is a reader-reported failure carrying the raw status code.
type StatusError struct {
	Op     string
	Status Status
	Cause  error
}

func (e *StatusError) Error() string {
	if e.Op == "" {
		return e.Status.String()
	}
	return fmt.Sprintf("%s: %s", e.Op, e.Status)
}

func (e *StatusError) Unwrap() error { return e.Cause }

// statusErr builds a StatusError without a cause.
func statusErr(op string, s Status) *StatusError {
	return &StatusError{Op: op, Status: s}
}

func asStatusError(err error) (*StatusError, bool) {
	var se *StatusError
	if errors.As(err, &se) {
		return se, true
	}
	return nil, false
}

// IsStatus reports whether err is a StatusError carrying the given code.
func IsStatus(err error, s Status) bool {
	se, ok := asStatusError(err)
	return ok && se.Status == s
}

// IsTimeout reports whether err represents a communication timeout,
// i.e. the reader produced no complete response within the window.
func IsTimeout(err error) bool {
	return IsStatus(err, StatusCommTimeout)
}

// isBenignStop reports whether a status observed while stopping inventory
// may be swallowed: the reader answers an already-ended inventory with
// StatusInventoryStop, and an already-idle one with silence.
func isBenignStop(s Status) bool {
	return s == StatusOK || s == StatusInventoryStop || s == StatusCommTimeout
}

// isNoTag reports whether a poll status means "no tag this round" rather
// than a real failure.
func isNoTag(s Status) bool {
	switch s {
	case StatusInventoryStop, StatusCommTimeout, StatusNoMoreData, StatusTagNoResponse:
		return true
	}
	return false
}
