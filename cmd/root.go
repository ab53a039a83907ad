// SPDX-License-Identifier: GPL-2.0-or-later
// Copyright (c) 2025 Kaz Walker, Thermoquad

package cmd

import (
	"fmt"
	"strconv"

	"github.com/Thermoquad/ddcstat/pkg/ddc"
	"github.com/spf13/cobra"
)

var (
	// Serial connection flags
	portName string
	baudRate int

	// WebSocket connection flags
	wsURL         string
	wsUsername    string
	wsNoSSLVerify bool

	// Bus addresses
	selfAddrFlag string
	peerAddrFlag string

	verbose bool
)

var rootCmd = &cobra.Command{
	Use:   "ddcstat",
	Short: "WhisperPower DDC Genset Protocol Tool",
	Long: `ddcstat - A CLI tool for monitoring and controlling WhisperPower gensets
over the DDC serial protocol.

Provides commands for telemetry logging, link diagnostics, start/stop control
with keep-alive, recording and replay, and a genset simulator.

Connection modes:
  Serial:    --port /dev/ttyUSB0 [--baud 9600]
  WebSocket: --url ws://host/path [--username user]

For WebSocket authentication, the password is read from the DDC_PASSWORD
environment variable, or prompted interactively if not set. The --password
flag is intentionally not provided to avoid leaking credentials in shell history.`,
	Version: "1.0.0",
}

func init() {
	// Serial connection flags
	rootCmd.PersistentFlags().StringVarP(&portName, "port", "p", "", "Serial port device")
	rootCmd.PersistentFlags().IntVarP(&baudRate, "baud", "b", 9600, "Baud rate (serial only)")

	// WebSocket connection flags
	rootCmd.PersistentFlags().StringVarP(&wsURL, "url", "u", "", "WebSocket URL (ws:// or wss://)")
	rootCmd.PersistentFlags().StringVar(&wsUsername, "username", "", "Username for HTTP Basic auth")
	rootCmd.PersistentFlags().BoolVar(&wsNoSSLVerify, "no-ssl-verify", false, "Skip TLS certificate verification (wss:// only)")

	// Bus addresses
	rootCmd.PersistentFlags().StringVar(&selfAddrFlag, "self-addr", "0x0081", "Controller bus address")
	rootCmd.PersistentFlags().StringVar(&peerAddrFlag, "peer-addr", "0x0088", "Genset bus address")

	rootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "Log driver events")
}

// Execute runs the root command
func Execute() error {
	return rootCmd.Execute()
}

// parseAddress accepts a 16-bit address in hex (0x prefix) or decimal
func parseAddress(s string) (ddc.Address, error) {
	v, err := strconv.ParseUint(s, 0, 16)
	if err != nil {
		return 0, fmt.Errorf("invalid bus address %q: %w", s, err)
	}
	return ddc.Address(v), nil
}

// busAddresses returns the controller and genset addresses from the flags
func busAddresses() (self, peer ddc.Address, err error) {
	if self, err = parseAddress(selfAddrFlag); err != nil {
		return 0, 0, err
	}
	if peer, err = parseAddress(peerAddrFlag); err != nil {
		return 0, 0, err
	}
	if self == peer {
		return 0, 0, fmt.Errorf("--self-addr and --peer-addr must differ (both %s)", self)
	}
	return self, peer, nil
}

// newDriver builds a driver from the persistent flags
func newDriver() (*ddc.Driver, error) {
	self, peer, err := busAddresses()
	if err != nil {
		return nil, err
	}
	opts := []ddc.Option{ddc.WithAddresses(self, peer)}
	if verbose {
		opts = append(opts, ddc.WithLogger(newStdLogger()))
	}
	return ddc.NewDriver(opts...), nil
}
