// SPDX-License-Identifier: GPL-2.0-or-later
// Copyright (c) 2025 Kaz Walker, Thermoquad

package cmd

import (
	"errors"
	"fmt"
	"io"
	"log"
	"os"

	"github.com/Thermoquad/ddcstat/pkg/ddc"
	"github.com/spf13/cobra"
)

var (
	monitorRecord string
	monitorRaw    bool
)

var monitorCmd = &cobra.Command{
	Use:   "monitor",
	Short: "Display genset telemetry in human-readable format",
	Long: `Continuously decode and display DDC telemetry frames as they arrive.

Each GENERATOR_STATE and RUNTIME_STATE frame is shown with timestamp and
decoded fields. Bytes that do not form a valid frame are skipped one at a
time and reported before the next valid frame.

This command only listens; it never sends control frames.

With --record, every valid frame is appended to a CBOR recording that can be
played back with the replay command.

Supports both serial and WebSocket connections.`,
	RunE: runMonitor,
}

func init() {
	rootCmd.AddCommand(monitorCmd)
	monitorCmd.Flags().StringVar(&monitorRecord, "record", "", "Append valid frames to a CBOR recording")
	monitorCmd.Flags().BoolVar(&monitorRaw, "raw", false, "Also print frame bytes")
}

func runMonitor(cmd *cobra.Command, args []string) error {
	driver, err := newDriver()
	if err != nil {
		return err
	}

	var recorder *ddc.Recorder
	if monitorRecord != "" {
		f, err := os.OpenFile(monitorRecord, os.O_CREATE|os.O_APPEND|os.O_WRONLY, 0o644)
		if err != nil {
			return fmt.Errorf("failed to open recording: %w", err)
		}
		defer f.Close()
		recorder = ddc.NewRecorder(f)
	}

	// Open connection (serial or WebSocket)
	conn, connInfo, err := OpenConnection()
	if err != nil {
		return err
	}
	defer conn.Close()

	fmt.Printf("ddcstat - Telemetry Monitor\n")
	fmt.Printf("Connection: %s\n", connInfo)
	if recorder != nil {
		fmt.Printf("Recording: %s\n", monitorRecord)
	}
	fmt.Printf("Press Ctrl+C to exit\n\n")

	stream := ddc.NewStream(driver)
	buf := make([]byte, 128)

	for {
		n, err := conn.Read(buf)
		if err != nil {
			// For WebSocket connections, a read error usually means
			// the connection is permanently closed - exit gracefully
			if errors.Is(err, ErrConnectionClosed) || errors.Is(err, io.EOF) {
				log.Printf("Connection closed")
				return nil
			}
			log.Printf("Read error: %v", err)
			continue
		}
		if n == 0 {
			continue
		}

		skipped := stream.Skipped()
		results, err := stream.Feed(buf[:n])
		if err != nil {
			return err
		}

		for _, res := range results {
			if !res.Valid() {
				skipped += res.Consumed
				continue
			}
			if skipped > 0 {
				fmt.Printf("[SKIP] %d bytes before sync\n", skipped)
				skipped = 0
			}
			fmt.Print(ddc.FormatTelemetry(res.Telemetry))
			if monitorRaw {
				fmt.Print(ddc.FormatFrame(res.Frame))
			}
			if recorder != nil {
				if err := recorder.RecordResult(res); err != nil {
					return err
				}
			}
		}
	}
}
