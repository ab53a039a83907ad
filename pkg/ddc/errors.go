// SPDX-License-Identifier: Apache-2.0
// Copyright (c) 2025 Kaz Walker, Thermoquad

package ddc

import (
	"errors"
	"fmt"
)

// Sentinel errors for inbound frame rejection. None of them is fatal: the
// caller drops the bytes reported by Extraction.Skip and carries on.
var (
	ErrIncomplete       = errors.New("ddc: incomplete frame")
	ErrUnrecognized     = errors.New("ddc: unrecognized address or command")
	ErrTruncated        = errors.New("ddc: frame shorter than command length")
	ErrChecksumMismatch = errors.New("ddc: checksum mismatch")
	ErrOversize         = errors.New("ddc: frame longer than command length")
)

// ErrUnknownControlCode is returned when encoding a control code outside
// START/STOP/KEEP_ALIVE. It indicates a programming error.
var ErrUnknownControlCode = errors.New("ddc: unknown control code")

// Status classifies the bytes at the start of a buffer
type Status int

const (
	StatusValid Status = iota
	StatusIncomplete
	StatusUnrecognized
	StatusTruncated
	StatusChecksumMismatch
	StatusOversize
)

// String returns the status name
func (s Status) String() string {
	switch s {
	case StatusValid:
		return "VALID"
	case StatusIncomplete:
		return "INCOMPLETE"
	case StatusUnrecognized:
		return "UNRECOGNIZED"
	case StatusTruncated:
		return "TRUNCATED"
	case StatusChecksumMismatch:
		return "CHECKSUM_MISMATCH"
	case StatusOversize:
		return "OVERSIZE"
	default:
		return fmt.Sprintf("STATUS(%d)", int(s))
	}
}

func (s Status) sentinel() error {
	switch s {
	case StatusIncomplete:
		return ErrIncomplete
	case StatusUnrecognized:
		return ErrUnrecognized
	case StatusTruncated:
		return ErrTruncated
	case StatusChecksumMismatch:
		return ErrChecksumMismatch
	case StatusOversize:
		return ErrOversize
	}
	return nil
}

// FrameError describes why the bytes at the start of a buffer were rejected
type FrameError struct {
	Status  Status
	Command byte
	Message string
}

// Error implements the error interface
func (e *FrameError) Error() string {
	return e.Message
}

// Unwrap returns the sentinel matching the status so errors.Is works
func (e *FrameError) Unwrap() error {
	return e.Status.sentinel()
}

// EncodeError reports an attempt to encode an invalid control frame
type EncodeError struct {
	Code ControlCode
}

func (e *EncodeError) Error() string {
	return fmt.Sprintf("ddc: cannot encode control code 0x%02X", uint8(e.Code))
}

func (e *EncodeError) Unwrap() error {
	return ErrUnknownControlCode
}
