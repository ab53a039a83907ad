// SPDX-License-Identifier: Apache-2.0
// Copyright (c) 2025 Kaz Walker, Thermoquad

package ddc

import "time"

// Logger is an optional logging interface for the driver. The driver logs
// rejected frames at Debug, emitted control frames at Info and encode
// failures at Error.
type Logger interface {
	Debug(msg string, keysAndValues ...interface{})
	Info(msg string, keysAndValues ...interface{})
	Error(msg string, keysAndValues ...interface{})
}

type nopLogger struct{}

func (nopLogger) Debug(string, ...interface{}) {}
func (nopLogger) Info(string, ...interface{})  {}
func (nopLogger) Error(string, ...interface{}) {}

// Config holds the driver configuration
type Config struct {
	Self    Address
	Peer    Address
	Mapping StatusMapping
	Clock   func() time.Time
	Logger  Logger
}

func defaultConfig() Config {
	return Config{
		Self:    SelfAddress,
		Peer:    PeerAddress,
		Mapping: DefaultStatusMapping,
		Clock:   time.Now,
		Logger:  nopLogger{},
	}
}

// Option is a functional option for configuring a Driver
type Option func(*Config)

// WithAddresses sets the controller (self) and genset (peer) bus addresses
func WithAddresses(self, peer Address) Option {
	return func(c *Config) {
		c.Self = self
		c.Peer = peer
	}
}

// WithStatusMapping replaces the alarm/status bit decoding
func WithStatusMapping(m StatusMapping) Option {
	return func(c *Config) {
		if m != nil {
			c.Mapping = m
		}
	}
}

// WithClock sets the time source used to stamp telemetry
func WithClock(clock func() time.Time) Option {
	return func(c *Config) {
		if clock != nil {
			c.Clock = clock
		}
	}
}

// WithLogger sets a logger for driver events
func WithLogger(l Logger) Option {
	return func(c *Config) {
		if l != nil {
			c.Logger = l
		}
	}
}
