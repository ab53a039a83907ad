// SPDX-License-Identifier: Apache-2.0
// Copyright (c) 2025 Kaz Walker, Thermoquad

package ddc

import "fmt"

// Extractor decides whether a buffer starts with a complete, valid frame.
// It is stateless: the same bytes always produce the same Extraction.
type Extractor struct {
	local  Address // expected target
	remote Address // expected source
	table  CommandTable
	min    int
}

// NewExtractor creates an extractor accepting frames sent by remote to local
// whose command appears in table. No verdict is given on fewer bytes than a
// header and checksum, even for an empty table.
func NewExtractor(local, remote Address, table CommandTable) *Extractor {
	min := table.MinFrameSize()
	if min < HeaderSize+ChecksumSize {
		min = HeaderSize + ChecksumSize
	}
	return &Extractor{
		local:  local,
		remote: remote,
		table:  table,
		min:    min,
	}
}

// NewInboundExtractor creates the controller-side extractor for genset telemetry
func NewInboundExtractor(self, peer Address) *Extractor {
	return NewExtractor(self, peer, InboundCommands)
}

// MinFrameSize returns the number of bytes needed before any verdict is given
func (e *Extractor) MinFrameSize() int {
	return e.min
}

// Extraction is the verdict on the bytes at the start of a buffer
type Extraction struct {
	Status  Status
	Command byte
	Length  int // frame length, set when Status is StatusValid
	Skip    int // bytes to drop before retrying, set when invalid

	have     int
	expected byte
	actual   byte
}

// Consumed returns how many bytes the caller should remove from its buffer
func (x Extraction) Consumed() int {
	if x.Status == StatusValid {
		return x.Length
	}
	return x.Skip
}

// Err returns nil for a valid frame and a *FrameError otherwise
func (x Extraction) Err() error {
	var msg string
	switch x.Status {
	case StatusValid:
		return nil
	case StatusIncomplete:
		msg = fmt.Sprintf("incomplete frame: %d bytes buffered", x.have)
	case StatusUnrecognized:
		msg = fmt.Sprintf("unrecognized frame header (command 0x%02X)", x.Command)
	case StatusTruncated:
		msg = fmt.Sprintf("truncated frame: command 0x%02X with %d bytes", x.Command, x.have)
	case StatusChecksumMismatch:
		msg = fmt.Sprintf("checksum mismatch: expected 0x%02X, got 0x%02X", x.expected, x.actual)
	case StatusOversize:
		msg = fmt.Sprintf("oversize frame: command 0x%02X with %d bytes", x.Command, x.have)
	default:
		msg = x.Status.String()
	}
	return &FrameError{Status: x.Status, Command: x.Command, Message: msg}
}

// Extract examines the frame starting at buf[0] of a byte stream.
//
// A valid frame's Length is the command's fixed size; bytes past it belong to
// the next frame. Every rejection skips exactly one byte so a single corrupt
// byte cannot push the stream out of alignment.
func (e *Extractor) Extract(buf []byte) Extraction {
	n := len(buf)
	if n < e.min {
		return Extraction{Status: StatusIncomplete, have: n}
	}

	target, source, cmd := readHeader(buf)
	size := e.table.FrameSize(cmd)
	if target != e.local || source != e.remote || size == 0 {
		return Extraction{Status: StatusUnrecognized, Command: cmd, Skip: 1, have: n}
	}

	if n < size {
		return Extraction{Status: StatusTruncated, Command: cmd, Skip: 1, have: n}
	}

	expected := Checksum(buf[:size-1])
	if buf[size-1] != expected {
		return Extraction{
			Status:   StatusChecksumMismatch,
			Command:  cmd,
			Skip:     1,
			have:     n,
			expected: expected,
			actual:   buf[size-1],
		}
	}

	return Extraction{Status: StatusValid, Command: cmd, Length: size, have: n}
}

// Validate examines an already delimited frame, as delivered by packet
// oriented transports. A frame longer than its command allows is rejected
// as StatusOversize, whatever byte sits at the expected checksum offset.
func (e *Extractor) Validate(frame []byte) Extraction {
	x := e.Extract(frame)
	switch x.Status {
	case StatusValid, StatusChecksumMismatch:
		if len(frame) > e.table.FrameSize(x.Command) {
			return Extraction{Status: StatusOversize, Command: x.Command, Skip: 1, have: len(frame)}
		}
	}
	return x
}
