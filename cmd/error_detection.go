// SPDX-License-Identifier: Apache-2.0
// Copyright (c) 2025 Kaz Walker, Thermoquad

package cmd

import (
	"errors"
	"fmt"
	"log"
	"time"

	"github.com/Thermoquad/ddcstat/pkg/ddc"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/spf13/cobra"
)

var (
	showAll       bool
	statsInterval int
	useTUI        bool
)

var errorDetectionCmd = &cobra.Command{
	Use:   "error_detection",
	Short: "Detect and analyze rejected frames and anomalous telemetry",
	Long: `Track frame errors, resynchronization and anomalous values with statistics.

This command validates each frame and detects:
  - Checksum mismatches
  - Unrecognized bytes (wrong address or unknown command)
  - Truncated and oversize frames
  - Anomalous telemetry (active alarms, start failure, RPM > 4000,
    RPM while stopped, unknown generator status, implausible battery
    voltage, inconsistent run-time counters)
  - Statistics and trends (frame rate, error rate, success rate)

By default, only errors are displayed. Use --show-all to display valid frames too.

Frames are validated in real-time, with errors highlighted immediately and
periodic statistics summaries displayed at configurable intervals.

Supports both serial and WebSocket connections.`,
	RunE: runErrorDetection,
}

func init() {
	rootCmd.AddCommand(errorDetectionCmd)
	errorDetectionCmd.Flags().BoolVar(&showAll, "show-all", false, "Show all frames (not just errors)")
	errorDetectionCmd.Flags().IntVar(&statsInterval, "stats-interval", 10, "Statistics update interval (seconds)")
	errorDetectionCmd.Flags().BoolVar(&useTUI, "tui", true, "Use terminal UI (false for text mode)")
}

func runErrorDetection(cmd *cobra.Command, args []string) error {
	if statsInterval <= 0 {
		return fmt.Errorf("--stats-interval must be positive, got %d", statsInterval)
	}

	driver, err := newDriver()
	if err != nil {
		return err
	}

	conn, connInfo, err := OpenConnection()
	if err != nil {
		return err
	}
	defer conn.Close()

	if useTUI {
		return runTUIMode(conn, connInfo, driver)
	}
	return runTextMode(conn, connInfo, driver)
}

// frameReader runs the stream over conn and reports every frame verdict.
// Rejections before the first valid frame are only counted; onSync receives
// that count once.
func frameReader(conn Connection, stream *ddc.Stream, onSync func(int), onFrame func(frameMsg)) error {
	buf := make([]byte, 128)
	synchronized := false
	skippedBeforeSync := 0

	for {
		n, err := conn.Read(buf)
		if err != nil {
			if errors.Is(err, ErrConnectionClosed) {
				return err
			}
			log.Printf("Read error: %v", err)
			time.Sleep(10 * time.Millisecond)
			continue
		}

		results, err := stream.Feed(buf[:n])
		if err != nil {
			log.Printf("Driver error: %v", err)
		}

		for _, res := range results {
			if !synchronized {
				if !res.Valid() {
					skippedBeforeSync += res.Consumed
					continue
				}
				synchronized = true
				onSync(skippedBeforeSync)
			}

			msg := frameMsg{result: res}
			if res.Valid() {
				msg.validationErrors = ddc.CheckTelemetry(res.Telemetry)
			}
			onFrame(msg)
		}
	}
}

// printRejection prints a rejected frame in highlighted format
func printRejection(res ddc.Result) {
	timestamp := time.Now().Format("15:04:05.000")
	fmt.Printf("[%s] \033[1;31m%s:\033[0m %v\n", timestamp, res.Status, res.Reject)
	fmt.Printf("  Skipped: %d byte(s)\n", res.Consumed)
	fmt.Printf("  >>> FRAME REJECTED <<<\n\n")
}

// printValidationErrors prints the anomalies found in a valid frame
func printValidationErrors(t ddc.Telemetry, errs []ddc.ValidationError) {
	timestamp := t.Time().Format("15:04:05.000")
	fmt.Printf("[%s] \033[1;33mANOMALY:\033[0m %s (0x%02X)\n", timestamp, ddc.FormatCommand(t.Command()), t.Command())
	fmt.Printf("  Checksum: \033[1;32mOK\033[0m\n")

	for i, err := range errs {
		switch err.Type {
		case ddc.AnomalyAlarm, ddc.AnomalyStartFailure:
			fmt.Printf("  Issue %d: \033[1;31m%s\033[0m\n", i+1, err.Message)
			if alarms, ok := err.Details["alarms"].(uint16); ok {
				fmt.Printf("    alarms=0x%04X\n", alarms)
			}

		case ddc.AnomalyHighRPM, ddc.AnomalyRPMWhileStopped:
			fmt.Printf("  Issue %d: \033[1;33m%s\033[0m\n", i+1, err.Message)
			if rpm, ok := err.Details["rpm"].(int); ok {
				fmt.Printf("    RPM=%d (max %d)\n", rpm, ddc.MaxRPM)
			}

		case ddc.AnomalyBatteryRange:
			fmt.Printf("  Issue %d: \033[1;33m%s\033[0m\n", i+1, err.Message)
			if volts, ok := err.Details["value"].(float64); ok {
				fmt.Printf("    Battery=%.2fV (valid: %.0f to %.0fV)\n", volts, ddc.MinBatteryVolts, ddc.MaxBatteryVolts)
			}

		default:
			fmt.Printf("  Issue %d: %s\n", i+1, err.Message)
		}
	}

	fmt.Printf("  >>> TELEMETRY ANOMALY <<<\n\n")
}

// runTUIMode runs error detection in TUI mode
func runTUIMode(conn Connection, connInfo string, driver *ddc.Driver) error {
	m := initialModel(connInfo, statsInterval, showAll)
	p := tea.NewProgram(m)

	go func() {
		err := frameReader(conn, ddc.NewStream(driver),
			func(skipped int) { p.Send(syncMsg{invalidBytes: skipped}) },
			func(msg frameMsg) { p.Send(msg) },
		)
		log.Printf("Reader stopped: %v", err)
	}()

	if _, err := p.Run(); err != nil {
		return fmt.Errorf("TUI error: %w", err)
	}

	return nil
}

// runTextMode runs error detection in text mode
func runTextMode(conn Connection, connInfo string, driver *ddc.Driver) error {
	fmt.Printf("ddcstat - Error Detection Mode\n")
	fmt.Printf("Connection: %s\n", connInfo)
	fmt.Printf("Statistics interval: %d seconds\n", statsInterval)
	if showAll {
		fmt.Printf("Mode: All frames\n")
	} else {
		fmt.Printf("Mode: Errors only\n")
	}
	fmt.Printf("Press Ctrl+C to exit\n\n")

	stats := ddc.NewStatistics()

	statsTicker := time.NewTicker(time.Duration(statsInterval) * time.Second)
	defer statsTicker.Stop()

	// Reader goroutine hands over verdicts; stats are only touched here
	syncs := make(chan int, 1)
	frames := make(chan frameMsg, 64)
	readerErr := make(chan error, 1)
	go func() {
		readerErr <- frameReader(conn, ddc.NewStream(driver),
			func(skipped int) { syncs <- skipped },
			func(msg frameMsg) { frames <- msg },
		)
	}()

	for {
		select {
		case skipped := <-syncs:
			printSync(skipped)

		case msg := <-frames:
			res := msg.result
			stats.Update(res, msg.validationErrors)

			switch {
			case !res.Valid():
				printRejection(res)
			case len(msg.validationErrors) > 0:
				printValidationErrors(res.Telemetry, msg.validationErrors)
			case showAll:
				fmt.Print(ddc.FormatTelemetry(res.Telemetry))
				fmt.Println()
			}

		case <-statsTicker.C:
			fmt.Println()
			fmt.Print(stats.String())
			fmt.Println()

		case err := <-readerErr:
			fmt.Println()
			fmt.Print(stats.String())
			return err
		}
	}
}
