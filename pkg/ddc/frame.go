// SPDX-License-Identifier: Apache-2.0
// Copyright (c) 2025 Kaz Walker, Thermoquad

package ddc

import (
	"encoding/binary"
	"fmt"
)

// String formats the address as 0xNNNN
func (a Address) String() string {
	return fmt.Sprintf("0x%04X", uint16(a))
}

// Frame is one DDC protocol frame
type Frame struct {
	Target   Address
	Source   Address
	Command  byte
	Payload  []byte
	Checksum byte
}

// NewFrame creates a frame and stamps its checksum
func NewFrame(target, source Address, command byte, payload []byte) *Frame {
	f := &Frame{
		Target:  target,
		Source:  source,
		Command: command,
		Payload: payload,
	}
	f.Checksum = Checksum(f.header()) + Checksum(payload)
	return f
}

// ParseFrame splits raw frame bytes into their fields. It checks only that
// the slice can hold a header and checksum; use an Extractor to validate.
func ParseFrame(data []byte) (*Frame, error) {
	if len(data) < HeaderSize+ChecksumSize {
		return nil, fmt.Errorf("frame too short: %d bytes (min %d)", len(data), HeaderSize+ChecksumSize)
	}
	payload := make([]byte, len(data)-HeaderSize-ChecksumSize)
	copy(payload, data[HeaderSize:len(data)-ChecksumSize])
	return &Frame{
		Target:   Address(binary.LittleEndian.Uint16(data[0:2])),
		Source:   Address(binary.LittleEndian.Uint16(data[2:4])),
		Command:  data[4],
		Payload:  payload,
		Checksum: data[len(data)-1],
	}, nil
}

func (f *Frame) header() []byte {
	h := make([]byte, HeaderSize)
	binary.LittleEndian.PutUint16(h[0:2], uint16(f.Target))
	binary.LittleEndian.PutUint16(h[2:4], uint16(f.Source))
	h[4] = f.Command
	return h
}

// Bytes returns the wire representation of the frame
func (f *Frame) Bytes() []byte {
	b := make([]byte, 0, f.Len())
	b = append(b, f.header()...)
	b = append(b, f.Payload...)
	return append(b, f.Checksum)
}

// Len returns the total wire length
func (f *Frame) Len() int {
	return HeaderSize + len(f.Payload) + ChecksumSize
}

// Valid reports whether the stored checksum matches the frame contents
func (f *Frame) Valid() bool {
	return f.Checksum == Checksum(f.header())+Checksum(f.Payload)
}

func readHeader(buf []byte) (target, source Address, command byte) {
	return Address(binary.LittleEndian.Uint16(buf[0:2])),
		Address(binary.LittleEndian.Uint16(buf[2:4])),
		buf[4]
}
