// SPDX-License-Identifier: GPL-2.0-or-later
// Copyright (c) 2025 Kaz Walker, Thermoquad

package cmd

import (
	"fmt"
	"os"
	"time"

	"github.com/Thermoquad/ddcstat/pkg/ddc"
	"github.com/spf13/cobra"
)

var (
	frameTestTimeout int
)

var frameTestCmd = &cobra.Command{
	Use:   "frame_test",
	Short: "Test connection by waiting for a valid DDC frame",
	Long: `Wait for a valid DDC telemetry frame on the connection until timeout.

This command connects to a serial port or WebSocket and waits for any valid
frame from the genset. It skips invalid bytes and waits for a complete frame
with matching addresses, known command and valid checksum.

Exit codes:
  0 - Frame received before timeout
  1 - Timeout reached without receiving a valid frame
  2 - Connection error

Useful for checking wiring, baud rate and bus addresses.`,
	RunE: runFrameTest,
}

func init() {
	rootCmd.AddCommand(frameTestCmd)
	frameTestCmd.Flags().IntVar(&frameTestTimeout, "timeout", 10, "Timeout in seconds to wait for a frame")
}

func runFrameTest(cmd *cobra.Command, args []string) error {
	driver, err := newDriver()
	if err != nil {
		return err
	}

	// Open connection (serial or WebSocket)
	conn, connInfo, err := OpenConnection()
	if err != nil {
		fmt.Fprintf(os.Stderr, "Connection error: %v\n", err)
		os.Exit(2)
	}
	defer conn.Close()

	cfg := driver.Config()
	fmt.Printf("ddcstat - Frame Test\n")
	fmt.Printf("Connection: %s\n", connInfo)
	fmt.Printf("Addresses: %s -> %s\n", cfg.Peer, cfg.Self)
	fmt.Printf("Timeout: %d seconds\n", frameTestTimeout)
	fmt.Printf("Waiting for valid DDC frame...\n\n")

	stream := ddc.NewStream(driver)
	buf := make([]byte, 128)

	// Channel for frame reception
	frameChan := make(chan ddc.Result, 1)
	errChan := make(chan error, 1)

	// Reader goroutine
	go func() {
		for {
			n, err := conn.Read(buf)
			if err != nil {
				errChan <- err
				return
			}

			skipped := stream.Skipped()
			results, err := stream.Feed(buf[:n])
			if err != nil {
				errChan <- err
				return
			}
			for _, res := range results {
				if !res.Valid() {
					skipped += res.Consumed
					continue
				}
				// Got a valid frame!
				if skipped > 0 {
					fmt.Printf("(skipped %d invalid bytes before sync)\n", skipped)
				}
				frameChan <- res
				return
			}
		}
	}()

	// Wait for frame or timeout
	select {
	case res := <-frameChan:
		fmt.Printf("SUCCESS: Received valid frame\n")
		fmt.Printf("  Command: %s (0x%02X)\n", ddc.FormatCommand(res.Telemetry.Command()), res.Telemetry.Command())
		fmt.Printf("  Length: %d bytes\n", len(res.Frame))
		fmt.Printf("  Checksum: 0x%02X\n", res.Frame[len(res.Frame)-1])
		fmt.Print(ddc.FormatTelemetry(res.Telemetry))
		os.Exit(0)

	case err := <-errChan:
		fmt.Fprintf(os.Stderr, "Read error: %v\n", err)
		os.Exit(2)

	case <-time.After(time.Duration(frameTestTimeout) * time.Second):
		fmt.Fprintf(os.Stderr, "TIMEOUT: No valid frame received within %d seconds\n", frameTestTimeout)
		os.Exit(1)
	}

	return nil
}
