// SPDX-License-Identifier: GPL-2.0-or-later
// Copyright (c) 2025 Kaz Walker, Thermoquad

package cmd

import (
	"errors"
	"fmt"
	"io"
	"os"
	"time"

	"github.com/Thermoquad/ddcstat/pkg/ddc"
	"github.com/spf13/cobra"
)

var (
	replayRaw   bool
	replayStats bool
)

var replayCmd = &cobra.Command{
	Use:   "replay FILE",
	Short: "Decode a recording made with monitor --record",
	Long: `Play back a CBOR recording of DDC frames.

Received frames are decoded again with the current --self-addr/--peer-addr
and shown with their recorded timestamps. Transmitted control frames, if the
recording holds any, are shown as raw frames.

No connection is opened.`,
	Args: cobra.ExactArgs(1),
	RunE: runReplay,
}

func init() {
	rootCmd.AddCommand(replayCmd)
	replayCmd.Flags().BoolVar(&replayRaw, "raw", false, "Also print frame bytes of received frames")
	replayCmd.Flags().BoolVar(&replayStats, "stats", false, "Print statistics after the last record")
}

func runReplay(cmd *cobra.Command, args []string) error {
	f, err := os.Open(args[0])
	if err != nil {
		return fmt.Errorf("failed to open recording: %w", err)
	}
	defer f.Close()

	self, peer, err := busAddresses()
	if err != nil {
		return err
	}

	// Samples carry the recorded time, not the replay time
	var current time.Time
	opts := []ddc.Option{
		ddc.WithAddresses(self, peer),
		ddc.WithClock(func() time.Time { return current }),
	}
	if verbose {
		opts = append(opts, ddc.WithLogger(newStdLogger()))
	}
	driver := ddc.NewDriver(opts...)
	stats := ddc.NewStatistics()

	player := ddc.NewPlayer(f)
	records := 0
	for {
		rec, err := player.Next()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			return fmt.Errorf("record %d: %w", records+1, err)
		}
		records++
		current = rec.Timestamp

		if rec.Direction == ddc.DirectionOutbound {
			fmt.Printf("[%s] TX ", rec.Timestamp.Format("15:04:05.000"))
			fmt.Print(ddc.FormatFrame(rec.Frame))
			continue
		}

		res, err := driver.ProcessFrame(rec.Frame)
		if err != nil {
			return fmt.Errorf("record %d: %w", records, err)
		}
		stats.Update(res, ddc.CheckTelemetry(res.Telemetry))

		if !res.Valid() {
			fmt.Printf("[%s] RX %s: %v\n", rec.Timestamp.Format("15:04:05.000"), res.Status, res.Reject)
			fmt.Print(ddc.FormatFrame(rec.Frame))
			continue
		}
		fmt.Print(ddc.FormatTelemetry(res.Telemetry))
		if replayRaw {
			fmt.Print(ddc.FormatFrame(res.Frame))
		}
	}

	fmt.Printf("\n%d records\n", records)
	if replayStats {
		fmt.Println()
		fmt.Print(stats.String())
	}
	return nil
}
