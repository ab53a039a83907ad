// SPDX-License-Identifier: Apache-2.0
// Copyright (c) 2025 Kaz Walker, Thermoquad

package ddc

// DefaultMaxBuffered is the default Stream buffer cap
const DefaultMaxBuffered = 4096

// Stream owns the receive buffer in front of a Driver. Bytes arrive in
// arbitrary chunks; Feed runs the driver over the buffer until it needs more.
//
// A Stream is not safe for concurrent use; give each reader goroutine its own.
type Stream struct {
	driver *Driver
	buf    []byte

	// MaxBuffered caps the bytes kept between Feed calls. The cap applies
	// after frames are processed; excess leading bytes are dropped and
	// counted as skipped.
	MaxBuffered int

	skipped      int // since the last valid frame
	totalSkipped int
}

// NewStream creates a stream feeding d
func NewStream(d *Driver) *Stream {
	return &Stream{
		driver:      d,
		buf:         make([]byte, 0, 2*TelemetryFrameSize),
		MaxBuffered: DefaultMaxBuffered,
	}
}

// Feed appends p and processes as many frames as the buffer holds. Every
// non-incomplete Result is returned in stream order, rejections included, so
// callers can count them. On error the results gathered so far are returned
// and the offending frame is dropped.
func (s *Stream) Feed(p []byte) ([]Result, error) {
	s.buf = append(s.buf, p...)
	defer s.trim()

	var results []Result
	for {
		res, err := s.driver.ProcessInbound(s.buf)
		if res.Status == StatusIncomplete && err == nil {
			return results, nil
		}
		s.drop(res.Consumed)

		if res.Valid() {
			s.skipped = 0
		} else {
			s.skipped += res.Consumed
			s.totalSkipped += res.Consumed
		}
		results = append(results, res)

		if err != nil {
			return results, err
		}
	}
}

// trim enforces MaxBuffered on the bytes left waiting for a verdict
func (s *Stream) trim() {
	if s.MaxBuffered <= 0 || len(s.buf) <= s.MaxBuffered {
		return
	}
	n := len(s.buf) - s.MaxBuffered
	s.drop(n)
	s.skipped += n
	s.totalSkipped += n
}

func (s *Stream) drop(n int) {
	s.buf = s.buf[:copy(s.buf, s.buf[n:])]
}

// Skipped returns the bytes discarded since the last valid frame
func (s *Stream) Skipped() int {
	return s.skipped
}

// TotalSkipped returns all bytes discarded by this stream
func (s *Stream) TotalSkipped() int {
	return s.totalSkipped
}

// Buffered returns the number of bytes waiting for a verdict
func (s *Stream) Buffered() int {
	return len(s.buf)
}

// Reset discards buffered bytes and skip counters, as after a reconnect
func (s *Stream) Reset() {
	s.buf = s.buf[:0]
	s.skipped = 0
	s.totalSkipped = 0
}
